// Package registry lists the node types an application knows about,
// which types may contain which, and the view classes serving each
// effective type.
//
// There is no global registry. An application builds one at startup and
// hands it to the tree engine (as its type checker) and the publisher.
package registry

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/hasgeek/nodular/pkg/view"
)

// Any in ChildTypes makes a type a generic container. In ParentTypes it
// places the type in every generic container.
const Any = "*"

// NodeType describes a registered node type.
type NodeType struct {
	// Name is the type or instance type name views are looked up by.
	Name string
	// Base is the stored node type an instance type is built on. It is
	// empty for a stored type.
	Base        string
	Title       string
	ChildTypes  []string
	ParentTypes []string
	// Views are registered for Name along with the type.
	Views []*view.Class
}

// Registry maps node types to their rules and views. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	order    []string
	types    map[string]*NodeType
	children map[string]map[string]struct{}
	views    map[string][]*view.Class
	tables   map[string]*view.Table
}

func New() *Registry {
	return &Registry{
		types:    map[string]*NodeType{},
		children: map[string]map[string]struct{}{},
		views:    map[string][]*view.Class{},
		tables:   map[string]*view.Table{},
	}
}

// RegisterNode adds a node type. Registering a name again replaces its
// description; child relations accumulate.
func (r *Registry) RegisterNode(nt NodeType) error {
	if nt.Name == "" {
		return fmt.Errorf("registry: node type needs a name")
	}
	if nt.Title == "" {
		nt.Title = titleCase(nt.Name)
	}

	r.mu.Lock()
	if _, ok := r.types[nt.Name]; !ok {
		r.order = append(r.order, nt.Name)
	}
	stored := nt
	r.types[nt.Name] = &stored
	for _, child := range nt.ChildTypes {
		r.allow(nt.Name, child)
	}
	for _, parent := range nt.ParentTypes {
		r.allow(parent, nt.Name)
	}
	r.mu.Unlock()

	for _, v := range nt.Views {
		r.RegisterView(nt.Name, v)
	}
	return nil
}

func (r *Registry) allow(parent, child string) {
	set, ok := r.children[parent]
	if !ok {
		set = map[string]struct{}{}
		r.children[parent] = set
	}
	set[child] = struct{}{}
}

// RegisterView adds a view class for an effective type. Classes are
// consulted in registration order.
func (r *Registry) RegisterView(etype string, class *view.Class) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[etype] = append(r.views[etype], class)
	delete(r.tables, etype)
}

// NodeType returns the registered description of name.
func (r *Registry) NodeType(name string) (NodeType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	nt, ok := r.types[name]
	if !ok {
		return NodeType{}, false
	}
	return *nt, true
}

// NodeTypes returns every registered type in registration order.
func (r *Registry) NodeTypes() []NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]NodeType, len(r.order))
	for i, name := range r.order {
		out[i] = *r.types[name]
	}
	return out
}

// CanContain reports whether a node of parentType may hold a node of
// childType. Unregistered parent types accept anything; a registered type
// without child types accepts only types that list it, or Any, as a parent.
func (r *Registry) CanContain(parentType, childType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.types[parentType]; !ok {
		return true
	}
	allowed := r.children[parentType]
	if has(allowed, childType) || has(allowed, Any) {
		return true
	}
	return has(r.children[Any], childType)
}

func has(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

// Views returns the classes registered for etype.
func (r *Registry) Views(etype string) []*view.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*view.Class(nil), r.views[etype]...)
}

// Table returns the combined rule table of the views registered for
// etype. It is rebuilt after a view is added and cached otherwise. A
// type without views gets an empty table.
func (r *Registry) Table(etype string) (*view.Table, error) {
	r.mu.RLock()
	t, ok := r.tables[etype]
	r.mu.RUnlock()
	if ok {
		return t, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tables[etype]; ok {
		return t, nil
	}
	t, err := view.NewTable(r.views[etype]...)
	if err != nil {
		return nil, fmt.Errorf("registry: views for %s: %w", etype, err)
	}
	r.tables[etype] = t
	return t, nil
}

func titleCase(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == '-' || r == ' ' })
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
