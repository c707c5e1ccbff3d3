package tree

import (
	"context"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
	"github.com/hasgeek/nodular/pkg/store"
)

// Export returns the exchange form of a node: its JSON fields plus the
// decodable properties set on it.
func (e *Engine) Export(ctx context.Context, id models.NodeID) (map[string]any, error) {
	n, err := mustGet(ctx, e.store, id)
	if err != nil {
		return nil, err
	}
	props, err := e.Properties(ctx, id)
	if err != nil {
		return nil, err
	}
	out := n.AsJSON()
	out["properties"] = props
	return out, nil
}

// Import applies data exported from another site under parent. A node
// with the same buid is updated in place and, if needed, renamed and
// moved there; otherwise a new node is created.
func (e *Engine) Import(ctx context.Context, parentID models.NodeID, nodeType string, data models.NodeData) (*models.Node, error) {
	var existing *models.Node
	if data.UUID != "" {
		var err error
		if existing, err = e.store.GetNodeByBUID(ctx, data.UUID); err != nil {
			return nil, err
		}
	}

	var node *models.Node
	if existing == nil {
		node = &models.Node{ParentID: parentID, Type: nodeType}
		if err := node.ImportFrom(data); err != nil {
			return nil, err
		}
		if err := e.Create(ctx, node); err != nil {
			return nil, err
		}
	} else {
		name, err := nodepath.ValidateName(data.Name)
		if err != nil {
			return nil, err
		}
		if err := existing.ImportFrom(data); err != nil {
			return nil, err
		}
		if node, err = e.reimport(ctx, existing, parentID, name); err != nil {
			return nil, err
		}
	}

	for key, value := range data.Properties {
		if err := e.SetProperty(ctx, node.ID, key, value); err != nil {
			return nil, err
		}
	}
	return node, nil
}

func (e *Engine) reimport(ctx context.Context, n *models.Node, parentID models.NodeID, name string) (*models.Node, error) {
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		current, err := mustGet(ctx, tx, n.ID)
		if err != nil {
			return err
		}
		current.Title = n.Title
		current.UserID = n.UserID
		current.PublishedAt = n.PublishedAt
		if err := tx.UpdateNode(ctx, current); err != nil {
			return err
		}
		if current.ParentID != parentID || current.Name != name {
			var parent *models.Node
			if current.ParentID != parentID {
				parent, err = e.newParent(ctx, tx, current, parentID)
			} else if !parentID.IsZero() {
				parent, err = mustGet(ctx, tx, parentID)
			}
			if err != nil {
				return err
			}
			if _, err := e.place(ctx, tx, current, parent, name); err != nil {
				return err
			}
		}
		*n = *current
		return recordChange(ctx, tx, n.ID.String(), models.ChangeOperationUpdate, models.JSONMap{"import": n.BUID, "path": n.Path})
	})
	return n, err
}
