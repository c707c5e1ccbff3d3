// Package views provides the stock JSON views for plain nodes.
package views

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/publisher"
	"github.com/hasgeek/nodular/pkg/registry"
	"github.com/hasgeek/nodular/pkg/tree"
	"github.com/hasgeek/nodular/pkg/view"
)

// Permissions checked by the write endpoints.
const (
	PermEdit   = "edit"
	PermDelete = "delete"
	// PermAdmin grants every permission.
	PermAdmin = "siteadmin"
)

const maxBody = 1 << 16

// NodeView returns the JSON view class for nodes edited through e:
//
//	GET    /               the node with its properties
//	GET    /children       the children, ordered by name
//	POST   /children       create a child from {"name", "title", "type"}
//	GET    /aliases        aliases left under the node
//	GET    /prop/<key>     a property, inherited from the nearest ancestor
//	DELETE /               delete the node and its subtree
func NodeView(e *tree.Engine) *view.Class {
	h := &handlers{engine: e}
	return view.NewClass("NodeView").
		Route("/", "index", h.index).
		Route("/children", "children", h.children).
		Route("/children", "create", h.create, view.Methods(http.MethodPost)).
		Route("/aliases", "aliases", h.aliases).
		Route("/prop/<key>", "prop", h.prop).
		Route("/", "delete", h.delete, view.Methods(http.MethodDelete)).
		Use("create", view.RequiresPermission(PermEdit, PermAdmin)).
		Use("delete", view.RequiresPermission(PermDelete, PermAdmin))
}

// Register registers the plain node type as a generic container served
// by NodeView.
func Register(reg *registry.Registry, e *tree.Engine) error {
	return reg.RegisterNode(registry.NodeType{
		Name:        models.DefaultType,
		Title:       "Node",
		ChildTypes:  []string{registry.Any},
		ParentTypes: []string{registry.Any},
		Views:       []*view.Class{NodeView(e)},
	})
}

type handlers struct {
	engine *tree.Engine
}

func (h *handlers) index(c *view.Context) (any, error) {
	return h.engine.Export(c, c.Node.ID)
}

func (h *handlers) children(c *view.Context) (any, error) {
	nodes, err := h.engine.Children(c.Node.ID).All(c)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(nodes))
	for i, n := range nodes {
		out[i] = n.AsJSON()
	}
	return map[string]any{"children": out}, nil
}

type createRequest struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

func (h *handlers) create(c *view.Context) (any, error) {
	if c.Request == nil || c.Request.Body == nil {
		return nil, fmt.Errorf("%w: missing body", publisher.ErrBadRequest)
	}
	var req createRequest
	if err := json.NewDecoder(io.LimitReader(c.Request.Body, maxBody)).Decode(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", publisher.ErrBadRequest, err)
	}
	n := &models.Node{Name: req.Name, Title: req.Title, Type: req.Type, ParentID: c.Node.ID}
	if c.User != "" {
		user := c.User
		n.UserID = &user
	}
	if err := h.engine.Create(c, n); err != nil {
		return nil, err
	}
	return n.AsJSON(), nil
}

func (h *handlers) aliases(c *view.Context) (any, error) {
	aliases, err := h.engine.Aliases(c, c.Node.ID)
	if err != nil {
		return nil, err
	}
	out := make([]map[string]any, len(aliases))
	for i, a := range aliases {
		entry := map[string]any{"name": a.Name, "gone": a.IsGone()}
		if !a.IsGone() {
			entry["node"] = a.NodeID.String()
		}
		out[i] = entry
	}
	return map[string]any{"aliases": out}, nil
}

func (h *handlers) prop(c *view.Context) (any, error) {
	key := c.Param("key")
	v, err := h.engine.GetProp(c, c.Node, key, nil)
	if err != nil {
		return nil, err
	}
	return map[string]any{"key": key, "value": v}, nil
}

func (h *handlers) delete(c *view.Context) (any, error) {
	if err := h.engine.Delete(c, c.Node.ID); err != nil {
		return nil, err
	}
	return map[string]any{"deleted": c.Node.Path}, nil
}
