package tree

import (
	"context"
	"fmt"
	"sort"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
	"github.com/hasgeek/nodular/pkg/store"
)

// Children is a mapping view over the children of one node, keyed by
// name. It holds only the owner's id; every call reads the store.
type Children struct {
	engine *Engine
	owner  models.NodeID
}

// Children returns the children view of the node with the given id.
func (e *Engine) Children(owner models.NodeID) *Children {
	return &Children{engine: e, owner: owner}
}

// Owner returns the id of the node whose children this view lists.
func (c *Children) Owner() models.NodeID {
	return c.owner
}

// Get returns the child called name, or nil.
func (c *Children) Get(ctx context.Context, name string) (*models.Node, error) {
	return c.engine.store.GetChild(ctx, c.owner, name)
}

func (c *Children) Contains(ctx context.Context, name string) (bool, error) {
	n, err := c.Get(ctx, name)
	return n != nil, err
}

// Keys returns the child names in sorted order.
func (c *Children) Keys(ctx context.Context) ([]string, error) {
	nodes, err := c.engine.store.ListChildren(ctx, c.owner)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = n.Name
	}
	sort.Strings(keys)
	return keys, nil
}

func (c *Children) Len(ctx context.Context) (int, error) {
	n, err := c.engine.store.CountChildren(ctx, c.owner)
	return int(n), err
}

// All returns the children ordered by name.
func (c *Children) All(ctx context.Context) ([]*models.Node, error) {
	nodes, err := c.engine.store.ListChildren(ctx, c.owner)
	if err != nil {
		return nil, err
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name < nodes[j].Name })
	return nodes, nil
}

// Set places node under the owner as name. A node that already exists is
// renamed and moved as needed; a new node is created. A different child
// already holding name is deleted first, unless node lives inside it.
func (c *Children) Set(ctx context.Context, name string, node *models.Node) error {
	name, err := nodepath.ValidateName(name)
	if err != nil {
		return err
	}
	e := c.engine
	err = e.store.Transaction(ctx, func(tx store.Tx) error {
		parent, err := mustGet(ctx, tx, c.owner)
		if err != nil {
			return err
		}
		existing, err := tx.GetChild(ctx, c.owner, name)
		if err != nil {
			return err
		}
		if existing != nil && existing.ID == node.ID {
			return nil
		}
		current, err := tx.GetNode(ctx, node.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			if current != nil && isWithin(current, existing) {
				return fmt.Errorf("%w: %s is inside %s", store.ErrCycle, current.Path, existing.Path)
			}
			if _, err := e.delete(ctx, tx, existing.ID); err != nil {
				return err
			}
		}
		if current == nil || node.ID.IsZero() {
			node.Name = name
			node.ParentID = c.owner
			if err := prepareNew(node); err != nil {
				return err
			}
			return e.create(ctx, tx, node)
		}

		if current.ParentID != c.owner {
			if isWithin(parent, current) {
				return fmt.Errorf("%w: %s is inside %s", store.ErrCycle, parent.Path, current.Path)
			}
			if err := e.checkType(parent, current); err != nil {
				return err
			}
		}
		oldPath := current.Path
		if _, err := e.place(ctx, tx, current, parent, name); err != nil {
			return err
		}
		*node = *current
		return recordChange(ctx, tx, node.ID.String(), models.ChangeOperationMove, models.JSONMap{
			"from": oldPath, "to": node.Path, "root": node.RootID.String(),
		})
	})
	if err != nil {
		return err
	}
	e.log.Debug().Str("op", "setitem").Str("node", node.ID.String()).Str("path", node.Path).Msg("child set")
	return nil
}

// Delete removes the child called name along with its subtree.
func (c *Children) Delete(ctx context.Context, name string) error {
	child, err := c.Get(ctx, name)
	if err != nil {
		return err
	}
	if child == nil {
		return fmt.Errorf("child %q: %w", name, store.ErrNotFound)
	}
	return c.engine.Delete(ctx, child.ID)
}

// Aliases returns every alias recorded under a parent, ordered by name.
func (e *Engine) Aliases(ctx context.Context, parent models.NodeID) ([]*models.NodeAlias, error) {
	aliases, err := e.store.ListAliases(ctx, parent)
	if err != nil {
		return nil, err
	}
	sort.Slice(aliases, func(i, j int) bool { return aliases[i].Name < aliases[j].Name })
	return aliases, nil
}
