// Package tree keeps the materialized paths, roots and aliases of a
// content tree consistent while it is edited.
//
// Every structural mutation offered by [Engine] (create, rename, move,
// delete) runs in one store transaction. Path recomputation over the
// whole subtree, root propagation, alias maintenance and the change log
// entry commit or roll back together, so readers see either the tree
// before the mutation or after it.
//
// # Aliases
//
// When a node leaves a (parent, name) slot the engine leaves a
// [models.NodeAlias] behind:
//
//   - renamed in place: the alias redirects to the node
//   - moved to another parent or deleted: the alias is a gone marker
//
// A slot has at most one alias. Vacating it again, or a node taking the
// name over, repoints the existing row. Nodes removed only because an
// ancestor was deleted get no alias of their own.
package tree

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
	"github.com/hasgeek/nodular/pkg/store"
	"github.com/rs/zerolog"
)

const entityNode = "node"

// TypeChecker decides which node types may be placed under which. The
// registry implements it.
type TypeChecker interface {
	CanContain(parentType, childType string) bool
}

// Engine performs tree mutations against a store.
type Engine struct {
	store store.Store
	types TypeChecker
	log   zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithLogger(log zerolog.Logger) Option {
	return func(e *Engine) {
		e.log = log
	}
}

// WithTypeChecker makes the engine reject children whose type the parent
// does not accept.
func WithTypeChecker(tc TypeChecker) Option {
	return func(e *Engine) {
		e.types = tc
	}
}

func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{store: s, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the store the engine writes to.
func (e *Engine) Store() store.Store {
	return e.store
}

// Get returns the node with the given id, or nil.
func (e *Engine) Get(ctx context.Context, id models.NodeID) (*models.Node, error) {
	return e.store.GetNode(ctx, id)
}

// GetByBUID returns the node with the given external id, or nil.
func (e *Engine) GetByBUID(ctx context.Context, buid string) (*models.Node, error) {
	return e.store.GetNodeByBUID(ctx, buid)
}

// Root returns the root node with the given name, or nil.
func (e *Engine) Root(ctx context.Context, name string) (*models.Node, error) {
	return e.store.GetRoot(ctx, name)
}

// Create inserts node. A zero ParentID makes it the root of a new tree;
// otherwise it is placed under that parent. ID, BUID, Path and RootID
// are filled in on success.
func (e *Engine) Create(ctx context.Context, node *models.Node) error {
	if err := prepareNew(node); err != nil {
		return err
	}
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		return e.create(ctx, tx, node)
	})
	if err != nil {
		return err
	}
	e.log.Debug().Str("op", "create").Str("node", node.ID.String()).Str("path", node.Path).Msg("node created")
	return nil
}

// Rename changes the name of a node. The old name keeps redirecting to
// the node through an alias.
func (e *Engine) Rename(ctx context.Context, id models.NodeID, name string) (*models.Node, error) {
	name, err := nodepath.ValidateName(name)
	if err != nil {
		return nil, err
	}

	var node *models.Node
	err = e.store.Transaction(ctx, func(tx store.Tx) error {
		n, err := mustGet(ctx, tx, id)
		if err != nil {
			return err
		}
		node = n
		if n.Name == name {
			return nil
		}
		oldName := n.Name

		var parent *models.Node
		if !n.IsRoot() {
			if parent, err = mustGet(ctx, tx, n.ParentID); err != nil {
				return err
			}
		}
		moved, err := e.place(ctx, tx, n, parent, name)
		if err != nil {
			return err
		}
		return recordChange(ctx, tx, n.ID.String(), models.ChangeOperationRename, models.JSONMap{
			"from": oldName, "to": name, "path": n.Path, "affected": moved,
		})
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("op", "rename").Str("node", node.ID.String()).Str("path", node.Path).Msg("node renamed")
	return node, nil
}

// Move attaches a node under a new parent, or makes it a root when
// parentID is zero. Moving into another tree re-roots the whole subtree.
func (e *Engine) Move(ctx context.Context, id, parentID models.NodeID) (*models.Node, error) {
	var node *models.Node
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		n, err := mustGet(ctx, tx, id)
		if err != nil {
			return err
		}
		node = n
		if n.ParentID == parentID {
			return nil
		}
		oldPath := n.Path

		parent, err := e.newParent(ctx, tx, n, parentID)
		if err != nil {
			return err
		}
		moved, err := e.place(ctx, tx, n, parent, n.Name)
		if err != nil {
			return err
		}
		return recordChange(ctx, tx, n.ID.String(), models.ChangeOperationMove, models.JSONMap{
			"from": oldPath, "to": n.Path, "root": n.RootID.String(), "affected": moved,
		})
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("op", "move").Str("node", node.ID.String()).Str("path", node.Path).Msg("node moved")
	return node, nil
}

// Delete removes a node and its whole subtree. The node's own slot under
// its parent becomes a gone marker.
func (e *Engine) Delete(ctx context.Context, id models.NodeID) error {
	var removed int
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		var err error
		removed, err = e.delete(ctx, tx, id)
		return err
	})
	if err != nil {
		return err
	}
	e.log.Debug().Str("op", "delete").Str("node", id.String()).Int("removed", removed).Msg("node deleted")
	return nil
}

func prepareNew(node *models.Node) error {
	name, err := nodepath.ValidateName(node.Name)
	if err != nil {
		return err
	}
	node.Name = name
	if node.Type == "" {
		node.Type = models.DefaultType
	}
	if node.Itype != nil {
		node.SetItype(*node.Itype)
	}
	return nil
}

func (e *Engine) create(ctx context.Context, tx store.Tx, node *models.Node) error {
	if node.ID.IsZero() {
		node.ID = models.NewNodeID()
	}
	if node.ParentID.IsZero() {
		node.RootID = node.ID
		node.Path = nodepath.Separator
	} else {
		parent, err := mustGet(ctx, tx, node.ParentID)
		if err != nil {
			return err
		}
		if err := e.checkType(parent, node); err != nil {
			return err
		}
		node.RootID = parent.RootID
		node.Path = nodepath.Join(parent.Path, node.Name)
		if err := nodepath.CheckLength(node.Path); err != nil {
			return err
		}
	}
	if node.PublishedAt == nil {
		now := time.Now().UTC()
		node.PublishedAt = &now
	}

	if err := tx.CreateNode(ctx, node); err != nil {
		return err
	}
	if !node.IsRoot() {
		if err := occupy(ctx, tx, node.ParentID, node.Name, node.ID); err != nil {
			return err
		}
	}
	return recordChange(ctx, tx, node.ID.String(), models.ChangeOperationCreate, models.JSONMap{
		"path": node.Path, "type": node.Type, "root": node.RootID.String(),
	})
}

func (e *Engine) delete(ctx context.Context, tx store.Tx, id models.NodeID) (int, error) {
	subtree, err := tx.ListSubtree(ctx, id)
	if err != nil {
		return 0, err
	}
	if len(subtree) == 0 {
		return 0, fmt.Errorf("node %s: %w", id, store.ErrNotFound)
	}
	node := subtree[0]

	ids := make([]models.NodeID, len(subtree))
	for i, n := range subtree {
		ids[i] = n.ID
	}
	if err := tx.DeleteNodes(ctx, ids); err != nil {
		return 0, err
	}
	if !node.IsRoot() {
		if err := vacate(ctx, tx, node.ParentID, node.Name, models.NodeID{}); err != nil {
			return 0, err
		}
	}
	err = recordChange(ctx, tx, node.ID.String(), models.ChangeOperationDelete, models.JSONMap{
		"path": node.Path, "root": node.RootID.String(), "removed": len(subtree),
	})
	return len(subtree), err
}

// newParent loads and validates the node that n is about to be attached to.
// A zero parentID returns nil, meaning n becomes a root.
func (e *Engine) newParent(ctx context.Context, tx store.Tx, n *models.Node, parentID models.NodeID) (*models.Node, error) {
	if parentID.IsZero() {
		return nil, nil
	}
	parent, err := mustGet(ctx, tx, parentID)
	if err != nil {
		return nil, err
	}
	if isWithin(parent, n) {
		return nil, fmt.Errorf("%w: %s is inside %s", store.ErrCycle, parent.Path, n.Path)
	}
	if err := e.checkType(parent, n); err != nil {
		return nil, err
	}
	return parent, nil
}

// isWithin reports whether candidate is n itself or one of its descendants.
func isWithin(candidate, n *models.Node) bool {
	if candidate.ID == n.ID {
		return true
	}
	if candidate.RootID != n.RootID {
		return false
	}
	return n.IsRoot() || strings.HasPrefix(candidate.Path, n.Path+nodepath.Separator)
}

// place gives n a new parent and name, recomputes the subtree and keeps
// the aliases of both slots up to date. A nil parent makes n a root. It
// returns the number of nodes whose path or root changed.
func (e *Engine) place(ctx context.Context, tx store.Tx, n, parent *models.Node, name string) (int, error) {
	oldParent, oldName := n.ParentID, n.Name

	n.Name = name
	parentPath := ""
	if parent == nil {
		n.ParentID = models.NodeID{}
		n.RootID = n.ID
	} else {
		n.ParentID = parent.ID
		n.RootID = parent.RootID
		parentPath = parent.Path
	}

	moved, err := e.relocate(ctx, tx, n, parentPath)
	if err != nil {
		return 0, err
	}

	if !oldParent.IsZero() && (oldParent != n.ParentID || oldName != name) {
		target := models.NodeID{}
		if oldParent == n.ParentID {
			target = n.ID
		}
		if err := vacate(ctx, tx, oldParent, oldName, target); err != nil {
			return 0, err
		}
	}
	if !n.IsRoot() {
		if err := occupy(ctx, tx, n.ParentID, n.Name, n.ID); err != nil {
			return 0, err
		}
	}
	return moved, nil
}

// relocate writes n and recomputes path and root for every descendant. All
// new paths are computed and length checked before the first write, so a
// failure leaves nothing half updated even before rollback.
func (e *Engine) relocate(ctx context.Context, tx store.Tx, n *models.Node, parentPath string) (int, error) {
	subtree, err := tx.ListSubtree(ctx, n.ID)
	if err != nil {
		return 0, err
	}
	if len(subtree) == 0 {
		return 0, fmt.Errorf("node %s: %w", n.ID, store.ErrNotFound)
	}

	if n.IsRoot() {
		n.Path = nodepath.Separator
	} else {
		n.Path = nodepath.Join(parentPath, n.Name)
	}
	if err := nodepath.CheckLength(n.Path); err != nil {
		return 0, err
	}

	paths := map[models.NodeID]string{n.ID: n.Path}
	descendants := subtree[1:]
	for _, d := range descendants {
		p := nodepath.Join(paths[d.ParentID], d.Name)
		if err := nodepath.CheckLength(p); err != nil {
			return 0, fmt.Errorf("descendant %s: %w", d.Name, err)
		}
		paths[d.ID] = p
	}

	if err := tx.UpdateNode(ctx, n); err != nil {
		return 0, err
	}
	moved := 1
	for _, d := range descendants {
		if d.Path == paths[d.ID] && d.RootID == n.RootID {
			continue
		}
		d.Path = paths[d.ID]
		d.RootID = n.RootID
		if err := tx.UpdateNode(ctx, d); err != nil {
			return 0, err
		}
		moved++
	}
	return moved, nil
}

func (e *Engine) checkType(parent, child *models.Node) error {
	if e.types == nil {
		return nil
	}
	if !e.types.CanContain(parent.EffectiveType(), child.EffectiveType()) {
		return fmt.Errorf("%w: %s cannot contain %s", store.ErrTypeNotAllowed, parent.EffectiveType(), child.EffectiveType())
	}
	return nil
}

// vacate records that a node left (parent, name). A zero target marks the
// slot as gone.
func vacate(ctx context.Context, tx store.Tx, parent models.NodeID, name string, target models.NodeID) error {
	return tx.PutAlias(ctx, &models.NodeAlias{ParentID: parent, Name: name, NodeID: target})
}

// occupy points an existing alias for (parent, name) at the node now
// holding that name. It never creates an alias.
func occupy(ctx context.Context, tx store.Tx, parent models.NodeID, name string, node models.NodeID) error {
	alias, err := tx.GetAlias(ctx, parent, name)
	if err != nil || alias == nil || alias.NodeID == node {
		return err
	}
	alias.NodeID = node
	return tx.PutAlias(ctx, alias)
}

func mustGet(ctx context.Context, r store.Reader, id models.NodeID) (*models.Node, error) {
	n, err := r.GetNode(ctx, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, fmt.Errorf("node %s: %w", id, store.ErrNotFound)
	}
	return n, nil
}

func recordChange(ctx context.Context, tx store.Tx, id string, op models.ChangeOperation, payload models.JSONMap) error {
	return tx.RecordChange(ctx, &models.ChangeRecord{
		EntityType: entityNode,
		EntityID:   id,
		Operation:  op,
		Payload:    payload,
	})
}
