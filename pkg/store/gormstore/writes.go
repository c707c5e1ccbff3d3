package gormstore

import (
	"context"
	"time"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/store"
	"gorm.io/gorm/clause"
)

// txQueries adds the write operations of store.Tx to queries. It only
// ever wraps a transaction handle.
type txQueries struct {
	queries
}

var _ store.Tx = (*txQueries)(nil)

func (q *txQueries) CreateNode(ctx context.Context, node *models.Node) error {
	return translateError(q.getDB(ctx).Create(node).Error)
}

func (q *txQueries) UpdateNode(ctx context.Context, node *models.Node) error {
	node.UpdatedAt = time.Now()
	res := q.getDB(ctx).Model(&models.Node{}).Where("id = ?", node.ID).Updates(map[string]any{
		"buid":         node.BUID,
		"name":         node.Name,
		"title":        node.Title,
		"path":         node.Path,
		"parent_id":    node.ParentID,
		"root_id":      node.RootID,
		"itype":        node.Itype,
		"user_id":      node.UserID,
		"published_at": node.PublishedAt,
		"updated_at":   node.UpdatedAt,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *txQueries) DeleteNodes(ctx context.Context, ids []models.NodeID) error {
	if len(ids) == 0 {
		return nil
	}
	db := q.getDB(ctx)
	if err := db.Where("node_id IN ?", ids).Delete(&models.Property{}).Error; err != nil {
		return err
	}
	if err := db.Where("node_id IN ?", ids).Delete(&models.Revision{}).Error; err != nil {
		return err
	}
	if err := db.Where("parent_id IN ?", ids).Delete(&models.NodeAlias{}).Error; err != nil {
		return err
	}
	err := db.Model(&models.NodeAlias{}).
		Where("node_id IN ?", ids).
		Updates(map[string]any{"node_id": nil, "updated_at": time.Now()}).Error
	if err != nil {
		return err
	}
	return db.Where("id IN ?", ids).Delete(&models.Node{}).Error
}

func (q *txQueries) PutAlias(ctx context.Context, alias *models.NodeAlias) error {
	err := q.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "parent_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"node_id", "updated_at"}),
	}).Create(alias).Error
	return translateError(err)
}

func (q *txQueries) PutProperty(ctx context.Context, prop *models.Property) error {
	err := q.getDB(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "node_id"}, {Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(prop).Error
	return translateError(err)
}

func (q *txQueries) DeleteProperty(ctx context.Context, nodeID models.NodeID, name string) error {
	return q.getDB(ctx).Where("node_id = ? AND name = ?", nodeID, name).Delete(&models.Property{}).Error
}

func (q *txQueries) CreateRevision(ctx context.Context, rev *models.Revision) error {
	return translateError(q.getDB(ctx).Create(rev).Error)
}

func (q *txQueries) UpdateRevision(ctx context.Context, rev *models.Revision) error {
	rev.UpdatedAt = time.Now()
	res := q.getDB(ctx).Model(&models.Revision{}).Where("id = ?", rev.ID).Updates(map[string]any{
		"status":     rev.Status,
		"language":   rev.Language,
		"user_id":    rev.UserID,
		"content":    rev.Content,
		"updated_at": rev.UpdatedAt,
	})
	if res.Error != nil {
		return translateError(res.Error)
	}
	if res.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (q *txQueries) RecordChange(ctx context.Context, change *models.ChangeRecord) error {
	if change.ChangedAt.IsZero() {
		change.ChangedAt = time.Now().UTC()
	}
	return q.getDB(ctx).Create(change).Error
}
