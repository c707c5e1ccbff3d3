package tree

import (
	"context"
	"time"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/store"
)

// SetTitle changes the display title of a node.
func (e *Engine) SetTitle(ctx context.Context, id models.NodeID, title string) (*models.Node, error) {
	return e.update(ctx, id, "title", func(n *models.Node) any {
		n.Title = title
		return title
	})
}

// SetItype sets or, with an empty string, clears the instance type
// override that views are looked up by.
func (e *Engine) SetItype(ctx context.Context, id models.NodeID, itype string) (*models.Node, error) {
	return e.update(ctx, id, "itype", func(n *models.Node) any {
		n.SetItype(itype)
		return n.Itype
	})
}

func (e *Engine) SetPublishedAt(ctx context.Context, id models.NodeID, at *time.Time) (*models.Node, error) {
	return e.update(ctx, id, "published_at", func(n *models.Node) any {
		if at != nil {
			t := at.UTC()
			at = &t
		}
		n.PublishedAt = at
		return at
	})
}

// SetUser records the user a node belongs to. An empty id clears it.
func (e *Engine) SetUser(ctx context.Context, id models.NodeID, userID string) (*models.Node, error) {
	return e.update(ctx, id, "userid", func(n *models.Node) any {
		if userID == "" {
			n.UserID = nil
			return nil
		}
		n.UserID = &userID
		return userID
	})
}

func (e *Engine) update(ctx context.Context, id models.NodeID, field string, apply func(*models.Node) any) (*models.Node, error) {
	var node *models.Node
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		n, err := mustGet(ctx, tx, id)
		if err != nil {
			return err
		}
		value := apply(n)
		if err := tx.UpdateNode(ctx, n); err != nil {
			return err
		}
		node = n
		return recordChange(ctx, tx, n.ID.String(), models.ChangeOperationUpdate, models.JSONMap{field: value})
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("op", "update").Str("node", id.String()).Str("field", field).Msg("node updated")
	return node, nil
}
