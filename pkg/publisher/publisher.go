// Package publisher publishes the nodes of a tree through the views
// registered for their effective types.
//
// Publish resolves a path with a [traverse.Resolver] and then:
//
//   - Redirect: answers with a 302 to the corrected URL
//   - NoRoot: fails with ErrRootNotFound
//   - Gone: fails with ErrNodeGone
//   - Match: dispatches "/" on the node's rule table
//   - Partial: dispatches the unmatched rest on the node's rule table
//
// A path no rule serves fails with ErrViewNotFound. [Publisher.ServeHTTP]
// mounts the same logic on net/http under the resolver's urlpath.
package publisher

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hasgeek/nodular/pkg/metrics"
	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
	"github.com/hasgeek/nodular/pkg/registry"
	"github.com/hasgeek/nodular/pkg/traverse"
	"github.com/hasgeek/nodular/pkg/view"
	"github.com/rs/zerolog"
)

var (
	ErrRootNotFound = errors.New("root not found")
	ErrNodeGone     = errors.New("node gone")
	// ErrBadRequest marks a request a view could not make sense of.
	ErrBadRequest = errors.New("bad request")
	// ErrViewNotFound means no view rule serves the path and method.
	ErrViewNotFound = view.ErrNotFound
)

// UserFunc extracts the requesting user from an HTTP request.
type UserFunc func(*http.Request) string

// PermissionsFunc extracts permissions granted to the requester from
// outside the tree, such as site roles.
type PermissionsFunc func(*http.Request) []string

// Request is one publish call.
type Request struct {
	Method string
	// Path is relative to the resolver's basepath.
	Path        string
	User        string
	Permissions []string
	// HTTP is the originating request, if any. Views may read it.
	HTTP *http.Request
}

// Response is a successful publish.
type Response struct {
	Status int
	// Redirect is the target URL path of a redirect.
	Redirect string
	// Body is whatever the view returned.
	Body any
	Node *models.Node
	// Allowed lists the methods served for the path on OPTIONS.
	Allowed []string
}

// Publisher dispatches publish calls. It is safe for concurrent use.
type Publisher struct {
	resolver *traverse.Resolver
	registry *registry.Registry
	source   view.PermissionSource
	user     UserFunc
	perms    PermissionsFunc
	metrics  *metrics.Metrics
	log      zerolog.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

func WithLogger(log zerolog.Logger) Option {
	return func(p *Publisher) {
		p.log = log
	}
}

// WithPermissionSource sets where node permissions come from.
func WithPermissionSource(src view.PermissionSource) Option {
	return func(p *Publisher) {
		p.source = src
	}
}

func WithUserFunc(fn UserFunc) Option {
	return func(p *Publisher) {
		p.user = fn
	}
}

func WithPermissionsFunc(fn PermissionsFunc) Option {
	return func(p *Publisher) {
		p.perms = fn
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Publisher) {
		p.metrics = m
	}
}

// New returns a publisher resolving paths with resolver and views from reg.
func New(resolver *traverse.Resolver, reg *registry.Registry, opts ...Option) *Publisher {
	p := &Publisher{
		resolver: resolver,
		registry: reg,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Resolver returns the resolver the publisher traverses with.
func (p *Publisher) Resolver() *traverse.Resolver {
	return p.resolver
}

// Publish resolves req.Path and renders the view serving it.
func (p *Publisher) Publish(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()
	resp, err := p.publish(ctx, req)
	outcome := Outcome(resp, err)
	if p.metrics != nil {
		p.metrics.ObservePublish(outcome, start)
	}
	p.log.Debug().Str("method", req.Method).Str("path", req.Path).Str("status", outcome).Err(err).Msg("published")
	return resp, err
}

func (p *Publisher) publish(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if method == "" {
		method = http.MethodGet
	}

	res, err := p.resolver.Traverse(ctx, req.Path, true)
	if err != nil {
		return nil, err
	}

	var dispatchPath string
	switch res.Status {
	case traverse.Redirect:
		return &Response{Status: http.StatusFound, Redirect: res.Path, Node: res.Node}, nil
	case traverse.NoRoot:
		return nil, fmt.Errorf("%w: %s", ErrRootNotFound, req.Path)
	case traverse.Gone:
		return nil, fmt.Errorf("%w: %s", ErrNodeGone, req.Path)
	case traverse.Match:
		dispatchPath = nodepath.Separator
	case traverse.Partial:
		dispatchPath = res.Path
	default:
		return nil, fmt.Errorf("publish %s: unknown traversal status %s", req.Path, res.Status)
	}

	table, err := p.registry.Table(res.Node.EffectiveType())
	if err != nil {
		return nil, err
	}
	m, err := table.Match(method, dispatchPath)
	if err != nil {
		if errors.Is(err, view.ErrMethodNotAllowed) {
			return &Response{Status: http.StatusMethodNotAllowed, Node: res.Node, Allowed: m.Allowed}, err
		}
		return nil, err
	}
	if m.Options {
		return &Response{Status: http.StatusOK, Node: res.Node, Allowed: m.Allowed}, nil
	}

	vc := &view.Context{
		Context:  ctx,
		Request:  req.HTTP,
		Node:     res.Node,
		User:     req.User,
		View:     m.View,
		Endpoint: m.Endpoint,
		Params:   m.Params,
		External: req.Permissions,
		Source:   p.source,
	}
	body, err := m.Handler(vc)
	if err != nil {
		return nil, err
	}
	return &Response{Status: http.StatusOK, Body: body, Node: res.Node}, nil
}

// URLFor returns the URL path of action on node: the node's path joined
// with the static path of the first rule whose endpoint is action,
// translated into URL space.
func (p *Publisher) URLFor(node *models.Node, action string, params ...string) (string, error) {
	table, err := p.registry.Table(node.EffectiveType())
	if err != nil {
		return "", err
	}
	suffix, ok := table.Build(action, params...)
	if !ok {
		return "", fmt.Errorf("%w: no endpoint %q for %s", ErrViewNotFound, action, node.EffectiveType())
	}
	path := node.Path
	if rest := strings.TrimPrefix(suffix, nodepath.Separator); rest != "" {
		path = nodepath.Join(path, rest)
	}
	return p.resolver.URLPath(path), nil
}

// Outcome names the result of a publish call for metrics and logs.
func Outcome(resp *Response, err error) string {
	switch {
	case err == nil && resp != nil && resp.Redirect != "":
		return metrics.OutcomeRedirect
	case err == nil:
		return metrics.OutcomeRendered
	case errors.Is(err, ErrNodeGone):
		return metrics.OutcomeGone
	case errors.Is(err, view.ErrForbidden):
		return metrics.OutcomeForbidden
	case errors.Is(err, view.ErrMethodNotAllowed):
		return metrics.OutcomeMethodNotAllowed
	case errors.Is(err, ErrRootNotFound), errors.Is(err, ErrViewNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
