package view

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"sort"

	"github.com/hasgeek/nodular/pkg/models"
)

// ErrForbidden is returned by a handler guarded with RequiresPermission
// when the user holds none of the permissions it accepts.
var ErrForbidden = errors.New("forbidden")

// PermissionSource reports the permissions a user holds on a node.
type PermissionSource interface {
	Permissions(ctx context.Context, node *models.Node, user string) ([]string, error)
}

// PermissionSourceFunc adapts a function to PermissionSource.
type PermissionSourceFunc func(ctx context.Context, node *models.Node, user string) ([]string, error)

func (f PermissionSourceFunc) Permissions(ctx context.Context, node *models.Node, user string) ([]string, error) {
	return f(ctx, node, user)
}

// PermissionSet is a set of permission tokens.
type PermissionSet map[string]struct{}

func NewPermissionSet(perms ...string) PermissionSet {
	s := make(PermissionSet, len(perms))
	s.Add(perms...)
	return s
}

func (s PermissionSet) Add(perms ...string) {
	for _, p := range perms {
		s[p] = struct{}{}
	}
}

func (s PermissionSet) Has(perm string) bool {
	_, ok := s[perm]
	return ok
}

// Sorted returns the permissions in sorted order.
func (s PermissionSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for p := range s {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Context carries one view invocation.
type Context struct {
	context.Context

	Request  *http.Request
	Node     *models.Node
	User     string
	View     string
	Endpoint string
	Params   map[string]string

	// External holds permissions granted from outside the node, such as
	// site-wide roles. Nil means none were given.
	External []string
	Source   PermissionSource

	granted PermissionSet
}

// Param returns a captured or default rule parameter.
func (c *Context) Param(name string) string {
	return c.Params[name]
}

// Permissions returns the union of the node permissions reported by the
// permission source and the external permissions. The result is
// computed once per invocation.
func (c *Context) Permissions() (PermissionSet, error) {
	if c.granted != nil {
		return c.granted, nil
	}
	granted := NewPermissionSet(c.External...)
	if c.Source != nil && c.Node != nil {
		perms, err := c.Source.Permissions(c, c.Node, c.User)
		if err != nil {
			return nil, fmt.Errorf("permissions for %s: %w", c.Node.Path, err)
		}
		granted.Add(perms...)
	}
	c.granted = granted
	return granted, nil
}

// RequiresPermission guards a handler. The user must hold perm or any of
// others.
func RequiresPermission(perm string, others ...string) Middleware {
	accepted := append([]string{perm}, others...)
	return func(next HandlerFunc) HandlerFunc {
		return func(c *Context) (any, error) {
			has, err := c.Permissions()
			if err != nil {
				return nil, err
			}
			if slices.ContainsFunc(accepted, has.Has) {
				return next(c)
			}
			return nil, fmt.Errorf("%w: %s requires %s", ErrForbidden, c.Endpoint, perm)
		}
	}
}
