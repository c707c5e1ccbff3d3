// Package view declares node view classes and dispatches request paths
// to their handlers.
//
// A [Class] is a named set of routes built once at startup. A class may
// extend base classes: their routes come first and their handlers are
// inherited, and a route declared again by the subclass only replaces
// the handler for that endpoint. A [Table] combines the routes of every
// class registered for a node type into one gorilla/mux router, where
// the first registered rule for a path and method wins.
//
// Rules use the werkzeug style placeholders:
//
//	/edit              static
//	/<name>            one segment
//	/<int:id>          digits only
//	/<path:rest>       any remainder, slashes included
package view

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
)

// HandlerFunc renders one endpoint of a view for the node in c.
type HandlerFunc func(c *Context) (any, error)

// Middleware wraps a handler, for example to enforce a permission.
type Middleware func(HandlerFunc) HandlerFunc

// Rule is one declared route of a class.
type Rule struct {
	Pattern  string
	Endpoint string
	Methods  []string
	Defaults map[string]string
}

// RouteOption adjusts a rule as it is declared.
type RouteOption func(*Rule)

// Methods sets the HTTP methods of a rule. The default is GET.
func Methods(methods ...string) RouteOption {
	return func(r *Rule) {
		r.Methods = methods
	}
}

// Defaults sets parameter values passed to the handler when the rule
// does not capture them itself.
func Defaults(defaults map[string]string) RouteOption {
	return func(r *Rule) {
		r.Defaults = defaults
	}
}

// Class is a named collection of routes and endpoint handlers.
type Class struct {
	name     string
	rules    []Rule
	handlers map[string]HandlerFunc
}

// NewClass returns a class called name, inheriting the rules and
// handlers of bases in order.
func NewClass(name string, bases ...*Class) *Class {
	c := &Class{name: name, handlers: map[string]HandlerFunc{}}
	for _, base := range bases {
		c.rules = append(c.rules, base.rules...)
		for endpoint, h := range base.handlers {
			c.handlers[endpoint] = h
		}
	}
	return c
}

func (c *Class) Name() string {
	return c.name
}

// Route declares pattern for endpoint, served by h. Declaring the same
// endpoint again under another pattern adds an alternative rule; the
// latest handler given for an endpoint serves all of its rules.
func (c *Class) Route(pattern, endpoint string, h HandlerFunc, opts ...RouteOption) *Class {
	rule := Rule{Pattern: pattern, Endpoint: endpoint}
	for _, opt := range opts {
		opt(&rule)
	}
	rule.Methods = normalizeMethods(rule.Methods)
	c.rules = append(c.rules, rule)
	c.handlers[endpoint] = h
	return c
}

// Use wraps the handler of an already declared endpoint.
func (c *Class) Use(endpoint string, mw ...Middleware) *Class {
	h, ok := c.handlers[endpoint]
	if !ok {
		panic(fmt.Sprintf("view %s: no endpoint %q", c.name, endpoint))
	}
	for i := len(mw) - 1; i >= 0; i-- {
		h = mw[i](h)
	}
	c.handlers[endpoint] = h
	return c
}

// Rules returns the rules of the class, inherited ones first.
func (c *Class) Rules() []Rule {
	return slices.Clone(c.rules)
}

// Handler returns the handler serving endpoint.
func (c *Class) Handler(endpoint string) (HandlerFunc, bool) {
	h, ok := c.handlers[endpoint]
	return h, ok
}

// normalizeMethods defaults to GET, adds HEAD wherever GET is allowed and
// always adds OPTIONS.
func normalizeMethods(methods []string) []string {
	if len(methods) == 0 {
		methods = []string{http.MethodGet}
	}
	out := make([]string, 0, len(methods)+2)
	for _, m := range methods {
		m = strings.ToUpper(m)
		if !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	if slices.Contains(out, http.MethodGet) && !slices.Contains(out, http.MethodHead) {
		out = append(out, http.MethodHead)
	}
	if !slices.Contains(out, http.MethodOptions) {
		out = append(out, http.MethodOptions)
	}
	return out
}
