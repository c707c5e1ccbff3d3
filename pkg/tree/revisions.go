package tree

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/store"
)

const entityRevision = "revision"

// ReviseOptions describe a new revision. When From is set the new
// revision starts as a copy of that revision; Content, if given, then
// replaces the copied content.
type ReviseOptions struct {
	From     models.RevisionID
	UserID   string
	Language string
	Content  any
}

// Revise adds a revision to a node. The new revision has no status.
func (e *Engine) Revise(ctx context.Context, nodeID models.NodeID, opts ReviseOptions) (*models.Revision, error) {
	var content models.JSONValue
	if opts.Content != nil {
		raw, err := json.Marshal(opts.Content)
		if err != nil {
			return nil, fmt.Errorf("encode revision content: %w", err)
		}
		content = raw
	}

	var rev *models.Revision
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		if _, err := mustGet(ctx, tx, nodeID); err != nil {
			return err
		}
		if opts.From.IsZero() {
			rev = &models.Revision{NodeID: nodeID, Language: opts.Language}
		} else {
			from, err := tx.GetRevision(ctx, opts.From)
			if err != nil {
				return err
			}
			if from == nil || from.NodeID != nodeID {
				return fmt.Errorf("revision %s: %w", opts.From, store.ErrNotFound)
			}
			rev = from.Copy()
			if opts.Language != "" {
				rev.Language = opts.Language
			}
		}
		if content != nil {
			rev.Content = content
		}
		if opts.UserID != "" {
			rev.UserID = &opts.UserID
		}
		if err := tx.CreateRevision(ctx, rev); err != nil {
			return err
		}
		return tx.RecordChange(ctx, &models.ChangeRecord{
			EntityType: entityRevision,
			EntityID:   rev.ID.String(),
			Operation:  models.ChangeOperationCreate,
			Payload:    models.JSONMap{"node": nodeID.String(), "previous": rev.PreviousID.String()},
		})
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("op", "revise").Str("node", nodeID.String()).Str("revision", rev.ID.String()).Msg("revision created")
	return rev, nil
}

// SetRevisionStatus labels a revision. A nil status archives it. Only
// one revision per node and language may hold a given status, so the
// write fails with a unique conflict while another revision holds it;
// use Promote to move a status between revisions.
func (e *Engine) SetRevisionStatus(ctx context.Context, id models.RevisionID, status *int) (*models.Revision, error) {
	var rev *models.Revision
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		var err error
		rev, err = setStatus(ctx, tx, id, status)
		return err
	})
	return rev, err
}

// Promote gives a revision the status, archiving whichever revision of
// the same node and language held it before.
func (e *Engine) Promote(ctx context.Context, id models.RevisionID, status int) (*models.Revision, error) {
	var rev *models.Revision
	err := e.store.Transaction(ctx, func(tx store.Tx) error {
		target, err := tx.GetRevision(ctx, id)
		if err != nil {
			return err
		}
		if target == nil {
			return fmt.Errorf("revision %s: %w", id, store.ErrNotFound)
		}
		holder, err := tx.GetRevisionByStatus(ctx, target.NodeID, target.Language, &status)
		if err != nil {
			return err
		}
		if holder != nil && holder.ID != target.ID {
			if _, err := setStatus(ctx, tx, holder.ID, nil); err != nil {
				return err
			}
		}
		rev, err = setStatus(ctx, tx, id, &status)
		return err
	})
	if err != nil {
		return nil, err
	}
	e.log.Debug().Str("op", "promote").Str("revision", id.String()).Int("status", status).Msg("revision promoted")
	return rev, nil
}

// Revisions lists a node's revisions, newest first.
func (e *Engine) Revisions(ctx context.Context, nodeID models.NodeID) ([]*models.Revision, error) {
	return e.store.ListRevisions(ctx, nodeID)
}

// RevisionByStatus returns the revision holding status, or nil.
func (e *Engine) RevisionByStatus(ctx context.Context, nodeID models.NodeID, language string, status int) (*models.Revision, error) {
	return e.store.GetRevisionByStatus(ctx, nodeID, language, &status)
}

func setStatus(ctx context.Context, tx store.Tx, id models.RevisionID, status *int) (*models.Revision, error) {
	rev, err := tx.GetRevision(ctx, id)
	if err != nil {
		return nil, err
	}
	if rev == nil {
		return nil, fmt.Errorf("revision %s: %w", id, store.ErrNotFound)
	}
	rev.Status = status
	if err := tx.UpdateRevision(ctx, rev); err != nil {
		return nil, err
	}
	payload := models.JSONMap{"node": rev.NodeID.String(), "status": nil}
	if status != nil {
		payload["status"] = *status
	}
	return rev, tx.RecordChange(ctx, &models.ChangeRecord{
		EntityType: entityRevision,
		EntityID:   rev.ID.String(),
		Operation:  models.ChangeOperationUpdate,
		Payload:    payload,
	})
}
