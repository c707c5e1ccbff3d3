package view

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/gorilla/mux"
)

var (
	// ErrNotFound means no rule matches the path.
	ErrNotFound = errors.New("view not found")
	// ErrMethodNotAllowed means a rule matches the path but not the method.
	ErrMethodNotAllowed = errors.New("method not allowed")
)

// Match is the outcome of matching a path against a table.
type Match struct {
	// Key is "class/endpoint".
	Key      string
	View     string
	Endpoint string
	Handler  HandlerFunc
	Params   map[string]string
	// Allowed lists every method served for the path. It is set for
	// OPTIONS requests and on ErrMethodNotAllowed.
	Allowed []string
	// Options reports a preflight request that needs no handler.
	Options bool
}

type entry struct {
	key      string
	class    *Class
	rule     Rule
	template string
	route    *mux.Route
}

// Table is the combined rule table of the classes registered for one
// node type.
type Table struct {
	router  *mux.Router
	entries []*entry
	byRoute map[*mux.Route]*entry
}

// NewTable combines the rules of classes, in order.
func NewTable(classes ...*Class) (*Table, error) {
	t := &Table{router: mux.NewRouter(), byRoute: map[*mux.Route]*entry{}}
	for _, c := range classes {
		for _, rule := range c.rules {
			if err := t.add(c, rule); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func (t *Table) add(c *Class, rule Rule) error {
	template, err := Translate(rule.Pattern)
	if err != nil {
		return fmt.Errorf("view %s endpoint %s: %w", c.name, rule.Endpoint, err)
	}
	route := t.router.NewRoute().Path(template).Methods(rule.Methods...)
	if err := route.GetError(); err != nil {
		return fmt.Errorf("view %s endpoint %s: %w", c.name, rule.Endpoint, err)
	}
	e := &entry{
		key:      c.name + "/" + rule.Endpoint,
		class:    c,
		rule:     rule,
		template: template,
		route:    route,
	}
	t.entries = append(t.entries, e)
	t.byRoute[route] = e
	return nil
}

// Len returns the number of rules in the table.
func (t *Table) Len() int {
	return len(t.entries)
}

// Keys returns the "class/endpoint" key of every rule, in table order.
func (t *Table) Keys() []string {
	keys := make([]string, len(t.entries))
	for i, e := range t.entries {
		keys[i] = e.key
	}
	return keys
}

// Match finds the rule serving method on path. A trailing slash on path
// is ignored.
func (t *Table) Match(method, path string) (*Match, error) {
	path = normalizePath(path)
	req := &http.Request{Method: strings.ToUpper(method), URL: &url.URL{Path: path}}

	var rm mux.RouteMatch
	if !t.router.Match(req, &rm) || rm.Route == nil {
		if errors.Is(rm.MatchErr, mux.ErrMethodMismatch) {
			return &Match{Allowed: t.allowed(path)}, fmt.Errorf("%w: %s %s", ErrMethodNotAllowed, method, path)
		}
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}

	e := t.byRoute[rm.Route]
	params := make(map[string]string, len(e.rule.Defaults)+len(rm.Vars))
	for k, v := range e.rule.Defaults {
		params[k] = v
	}
	for k, v := range rm.Vars {
		params[k] = v
	}
	h, _ := e.class.Handler(e.rule.Endpoint)
	m := &Match{
		Key:      e.key,
		View:     e.class.name,
		Endpoint: e.rule.Endpoint,
		Handler:  h,
		Params:   params,
	}
	if req.Method == http.MethodOptions {
		m.Options = true
		m.Allowed = t.allowed(path)
	}
	return m, nil
}

// allowed lists the methods any rule serves for path.
func (t *Table) allowed(path string) []string {
	var out []string
	for _, e := range t.entries {
		for _, method := range e.rule.Methods {
			if slices.Contains(out, method) {
				continue
			}
			var rm mux.RouteMatch
			if e.route.Match(&http.Request{Method: method, URL: &url.URL{Path: path}}, &rm) {
				out = append(out, method)
			}
		}
	}
	slices.Sort(out)
	return out
}

// Build returns the path of the first rule whose endpoint is action,
// filling its placeholders from params given as name, value pairs.
func (t *Table) Build(action string, params ...string) (string, bool) {
	for _, e := range t.entries {
		if e.rule.Endpoint != action && e.key != action {
			continue
		}
		u, err := e.route.URLPath(params...)
		if err != nil {
			continue
		}
		return u.Path, true
	}
	return "", false
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	return path
}

var placeholder = regexp.MustCompile(`<(?:([a-z]+):)?([A-Za-z_][A-Za-z0-9_]*)>`)

// Translate turns a werkzeug style rule into a gorilla/mux path template.
func Translate(pattern string) (string, error) {
	if !strings.HasPrefix(pattern, "/") {
		return "", fmt.Errorf("rule %q must start with '/'", pattern)
	}
	var err error
	template := placeholder.ReplaceAllStringFunc(pattern, func(m string) string {
		sub := placeholder.FindStringSubmatch(m)
		converter, name := sub[1], sub[2]
		switch converter {
		case "", "string":
			return "{" + name + "}"
		case "int":
			return "{" + name + ":[0-9]+}"
		case "path":
			return "{" + name + ":.*}"
		default:
			err = fmt.Errorf("rule %q: unknown converter %q", pattern, converter)
			return m
		}
	})
	if err != nil {
		return "", err
	}
	if strings.ContainsAny(template, "<>") {
		return "", fmt.Errorf("rule %q: malformed placeholder", pattern)
	}
	if len(template) > 1 {
		template = strings.TrimRight(template, "/")
	}
	return template, nil
}
