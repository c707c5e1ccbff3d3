// Package traverse resolves request paths to nodes of one tree.
//
// A [Resolver] is anchored at a root node and publishes the subtree at
// its basepath under its urlpath. Traverse fetches the whole lineage of
// the requested path with a single range query and classifies the
// outcome as one of the [Status] values. On a partial match it consults
// the alias left under the deepest matched node to tell a renamed node
// (Redirect) from a deleted one (Gone).
package traverse

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
	"github.com/hasgeek/nodular/pkg/store"
	"github.com/rs/zerolog"
)

// Status classifies the outcome of a traversal.
type Status int

const (
	// Match means the path names an existing node exactly.
	Match Status = iota
	// Redirect means the path uses a name that was renamed away.
	Redirect
	// Partial means a prefix of the path matched and the rest is left to
	// the matched node's views.
	Partial
	// NoRoot means the configured root, or the node at basepath, is missing.
	NoRoot
	// Gone means the path names a node that was deleted or moved away.
	Gone
)

func (s Status) String() string {
	switch s {
	case Match:
		return "match"
	case Redirect:
		return "redirect"
	case Partial:
		return "partial"
	case NoRoot:
		return "noroot"
	case Gone:
		return "gone"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Result is the outcome of a traversal.
//
// For Match, Node is the node found and Path is empty. For Partial and
// Gone, Node is the deepest matched node and Path the unmatched rest,
// starting with "/". For Redirect, Node is the deepest matched node and
// Path the corrected URL path. For NoRoot, Node is nil.
type Result struct {
	Status Status
	Node   *models.Node
	Path   string
}

// Root identifies the root node of the published tree, either by id or
// by name. It is resolved against the store on first use.
type Root struct {
	ID   models.NodeID
	Name string
}

func RootByID(id models.NodeID) Root { return Root{ID: id} }

func RootNamed(name string) Root { return Root{Name: name} }

func (r Root) String() string {
	if !r.ID.IsZero() {
		return r.ID.String()
	}
	return r.Name
}

// Resolver traverses paths under one root. It is safe for concurrent use.
type Resolver struct {
	store    store.Reader
	root     Root
	basepath string
	urlpath  string
	observe  func(Status)
	log      zerolog.Logger

	mu     sync.Mutex
	rootID models.NodeID
}

// Option configures a Resolver.
type Option func(*Resolver)

func WithLogger(log zerolog.Logger) Option {
	return func(r *Resolver) {
		r.log = log
	}
}

// WithObserver registers fn to be called with the status of every
// completed traversal.
func WithObserver(fn func(Status)) Option {
	return func(r *Resolver) {
		r.observe = fn
	}
}

// New returns a resolver publishing the subtree at basepath under
// urlpath. Both must be absolute; an empty urlpath defaults to basepath.
func New(s store.Reader, root Root, basepath, urlpath string, opts ...Option) (*Resolver, error) {
	if root.ID.IsZero() && root.Name == "" {
		return nil, fmt.Errorf("traverse: root must have an id or a name")
	}
	base, err := nodepath.Clean(basepath)
	if err != nil {
		return nil, fmt.Errorf("basepath: %w", err)
	}
	url := base
	if urlpath != "" {
		if url, err = nodepath.Clean(urlpath); err != nil {
			return nil, fmt.Errorf("urlpath: %w", err)
		}
	}

	r := &Resolver{
		store:    s,
		root:     root,
		basepath: base,
		urlpath:  url,
		rootID:   root.ID,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

func (r *Resolver) Basepath() string { return r.basepath }

func (r *Resolver) Urlpath() string { return r.urlpath }

// RootID returns the id of the root node, looking it up by name on first
// use. It returns the zero id when no root by that name exists.
func (r *Resolver) RootID(ctx context.Context) (models.NodeID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.rootID.IsZero() {
		return r.rootID, nil
	}
	root, err := r.store.GetRoot(ctx, r.root.Name)
	if err != nil {
		return models.NodeID{}, fmt.Errorf("resolve root %q: %w", r.root.Name, err)
	}
	if root == nil {
		return models.NodeID{}, nil
	}
	r.rootID = root.ID
	r.log.Debug().Str("root", r.root.Name).Str("id", root.ID.String()).Msg("root resolved")
	return r.rootID, nil
}

// forgetRoot drops a root id that was looked up by name, so a root created
// again under that name is found on the next call.
func (r *Resolver) forgetRoot() {
	if !r.root.ID.IsZero() {
		return
	}
	r.mu.Lock()
	r.rootID = models.NodeID{}
	r.mu.Unlock()
}

// URLPath translates a node path into the URL space.
func (r *Resolver) URLPath(nodePath string) string {
	return nodepath.Rebase(nodePath, r.basepath, r.urlpath)
}

// Relative strips urlpath from a request URL path, giving the path to
// pass to Traverse. It reports false when the URL is not under urlpath.
func (r *Resolver) Relative(urlPath string) (string, bool) {
	if r.urlpath == nodepath.Separator {
		return urlPath, strings.HasPrefix(urlPath, nodepath.Separator)
	}
	if urlPath == r.urlpath {
		return nodepath.Separator, true
	}
	if rest, ok := strings.CutPrefix(urlPath, r.urlpath+nodepath.Separator); ok {
		return nodepath.Separator + rest, true
	}
	return "", false
}

// Traverse resolves path, taken relative to basepath, to the closest
// node. With redirect set, a partial match consults the alias for the
// first unmatched segment.
func (r *Resolver) Traverse(ctx context.Context, path string, redirect bool) (Result, error) {
	res, err := r.traverse(ctx, path, redirect)
	if err != nil {
		return Result{}, err
	}
	if res.Status == NoRoot {
		r.forgetRoot()
	}
	if r.observe != nil {
		r.observe(res.Status)
	}
	r.log.Debug().Str("path", path).Stringer("status", res.Status).Str("rest", res.Path).Msg("traversed")
	return res, nil
}

func (r *Resolver) traverse(ctx context.Context, path string, redirect bool) (Result, error) {
	rootID, err := r.RootID(ctx)
	if err != nil {
		return Result{}, err
	}
	if rootID.IsZero() {
		return Result{Status: NoRoot}, nil
	}

	target, probes := nodepath.Decompose(r.basepath, path)
	nodes, err := r.store.ListLineage(ctx, rootID, probes)
	if err != nil {
		return Result{}, fmt.Errorf("traverse %s: %w", target, err)
	}
	if len(nodes) == 0 {
		return Result{Status: NoRoot}, nil
	}

	last := nodes[len(nodes)-1]
	if last.Path == target {
		return Result{Status: Match, Node: last}, nil
	}
	if len(last.Path) < len(r.basepath) {
		return Result{Status: NoRoot}, nil
	}

	fragment := strings.TrimPrefix(target[len(last.Path):], nodepath.Separator)
	partial := Result{Status: Partial, Node: last, Path: nodepath.Separator + fragment}
	if !redirect {
		return partial, nil
	}

	name, rest := nodepath.FirstSegment(fragment)
	alias, err := r.store.GetAlias(ctx, last.ID, name)
	if err != nil {
		return Result{}, fmt.Errorf("traverse %s: %w", target, err)
	}
	if alias == nil {
		return partial, nil
	}
	gone := Result{Status: Gone, Node: last, Path: partial.Path}
	if alias.IsGone() {
		return gone, nil
	}

	dest, err := r.store.GetNode(ctx, alias.NodeID)
	if err != nil {
		return Result{}, fmt.Errorf("traverse %s: %w", target, err)
	}
	if dest == nil || !r.publishes(rootID, dest) {
		return gone, nil
	}
	corrected := dest.Path
	if rest != "" {
		corrected = nodepath.Join(corrected, rest)
	}
	return Result{Status: Redirect, Node: last, Path: r.URLPath(corrected)}, nil
}

// publishes reports whether n lies in the published part of the tree.
func (r *Resolver) publishes(rootID models.NodeID, n *models.Node) bool {
	if n.RootID != rootID {
		return false
	}
	return r.basepath == nodepath.Separator ||
		n.Path == r.basepath ||
		strings.HasPrefix(n.Path, r.basepath+nodepath.Separator)
}
