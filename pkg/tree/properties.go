package tree

import (
	"context"
	"fmt"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/nodepath"
	"github.com/hasgeek/nodular/pkg/store"
)

const entityProperty = "property"

// SetProperty stores value under key on a node, replacing any previous
// value. The value must serialize to at most
// [models.MaxPropertyValueLength] characters of JSON.
func (e *Engine) SetProperty(ctx context.Context, id models.NodeID, key string, value any) error {
	if err := models.ValidateKey(key); err != nil {
		return err
	}
	raw, err := models.EncodePropertyValue(value)
	if err != nil {
		return err
	}
	err = e.store.Transaction(ctx, func(tx store.Tx) error {
		if _, err := mustGet(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.PutProperty(ctx, &models.Property{NodeID: id, Name: key, Value: raw}); err != nil {
			return err
		}
		return tx.RecordChange(ctx, &models.ChangeRecord{
			EntityType: entityProperty,
			EntityID:   id.String(),
			Operation:  models.ChangeOperationUpdate,
			Payload:    models.JSONMap{"key": key, "value": value},
		})
	})
	if err != nil {
		return err
	}
	e.log.Debug().Str("op", "setprop").Str("node", id.String()).Str("key", key).Msg("property set")
	return nil
}

// DeleteProperty removes key from a node. Removing a missing key is not
// an error.
func (e *Engine) DeleteProperty(ctx context.Context, id models.NodeID, key string) error {
	return e.store.Transaction(ctx, func(tx store.Tx) error {
		if err := tx.DeleteProperty(ctx, id, key); err != nil {
			return err
		}
		return tx.RecordChange(ctx, &models.ChangeRecord{
			EntityType: entityProperty,
			EntityID:   id.String(),
			Operation:  models.ChangeOperationDelete,
			Payload:    models.JSONMap{"key": key},
		})
	})
}

// Properties returns the decodable properties set directly on a node.
// Values whose stored JSON is invalid are left out.
func (e *Engine) Properties(ctx context.Context, id models.NodeID) (map[string]any, error) {
	props, err := e.store.ListProperties(ctx, id)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(props))
	for _, p := range props {
		if v, ok := p.Decoded(); ok {
			out[p.Name] = v
		}
	}
	return out, nil
}

// GetProp returns the value of key on node or on its nearest ancestor
// that has it, or def when no node in the lineage does. The lineage is
// fetched with a single range query.
func (e *Engine) GetProp(ctx context.Context, node *models.Node, key string, def any) (any, error) {
	_, paths := nodepath.Decompose(nodepath.Separator, node.Path)
	lineage, err := e.store.ListLineage(ctx, node.RootID, paths)
	if err != nil {
		return nil, fmt.Errorf("getprop %s: %w", key, err)
	}
	ids := make([]models.NodeID, len(lineage))
	for i, n := range lineage {
		ids[i] = n.ID
	}
	props, err := e.store.FindProperties(ctx, ids, key)
	if err != nil {
		return nil, fmt.Errorf("getprop %s: %w", key, err)
	}
	byNode := make(map[models.NodeID]*models.Property, len(props))
	for _, p := range props {
		byNode[p.NodeID] = p
	}
	for i := len(lineage) - 1; i >= 0; i-- {
		p, ok := byNode[lineage[i].ID]
		if !ok {
			continue
		}
		if v, ok := p.Decoded(); ok {
			return v, nil
		}
	}
	return def, nil
}
