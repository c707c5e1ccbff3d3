package gormstore

import (
	"context"
	"errors"
	"time"

	"github.com/hasgeek/nodular/pkg/models"
	"gorm.io/gorm"
)

// queries implements store.Reader against either the pool or a transaction.
type queries struct {
	db *gorm.DB
}

func (q *queries) getDB(ctx context.Context) *gorm.DB {
	return q.db.WithContext(ctx)
}

// first runs a single row lookup, mapping "no rows" to a nil result.
func first[T any](db *gorm.DB, query string, args ...any) (*T, error) {
	var out T
	err := db.Where(query, args...).First(&out).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &out, nil
}

func (q *queries) GetNode(ctx context.Context, id models.NodeID) (*models.Node, error) {
	return first[models.Node](q.getDB(ctx), "id = ?", id)
}

func (q *queries) GetNodeByBUID(ctx context.Context, buid string) (*models.Node, error) {
	return first[models.Node](q.getDB(ctx), "buid = ?", buid)
}

func (q *queries) GetRoot(ctx context.Context, name string) (*models.Node, error) {
	return first[models.Node](q.getDB(ctx).Order("created_at ASC"), "parent_id IS NULL AND name = ?", name)
}

func (q *queries) ListRoots(ctx context.Context) ([]*models.Node, error) {
	var nodes []*models.Node
	err := q.getDB(ctx).Where("parent_id IS NULL").Order("name ASC").Find(&nodes).Error
	return nodes, err
}

func (q *queries) GetChild(ctx context.Context, parentID models.NodeID, name string) (*models.Node, error) {
	return first[models.Node](q.getDB(ctx), "parent_id = ? AND name = ?", parentID, name)
}

func (q *queries) ListChildren(ctx context.Context, parentID models.NodeID) ([]*models.Node, error) {
	var nodes []*models.Node
	err := q.getDB(ctx).Where("parent_id = ?", parentID).Order("name ASC").Find(&nodes).Error
	return nodes, err
}

func (q *queries) CountChildren(ctx context.Context, parentID models.NodeID) (int64, error) {
	var n int64
	err := q.getDB(ctx).Model(&models.Node{}).Where("parent_id = ?", parentID).Count(&n).Error
	return n, err
}

// ListSubtree walks the tree one level per query, so the result is in
// breadth-first order.
func (q *queries) ListSubtree(ctx context.Context, id models.NodeID) ([]*models.Node, error) {
	node, err := q.GetNode(ctx, id)
	if err != nil || node == nil {
		return nil, err
	}

	out := []*models.Node{node}
	frontier := []models.NodeID{node.ID}
	for len(frontier) > 0 {
		var level []*models.Node
		err := q.getDB(ctx).Where("parent_id IN ?", frontier).Order("path ASC").Find(&level).Error
		if err != nil {
			return nil, err
		}
		frontier = frontier[:0]
		for _, n := range level {
			frontier = append(frontier, n.ID)
		}
		out = append(out, level...)
	}
	return out, nil
}

func (q *queries) ListLineage(ctx context.Context, rootID models.NodeID, paths []string) ([]*models.Node, error) {
	var nodes []*models.Node
	if len(paths) == 0 {
		return nodes, nil
	}
	err := q.getDB(ctx).
		Where("root_id = ? AND path IN ?", rootID, paths).
		Order("path ASC").
		Find(&nodes).Error
	return nodes, err
}

func (q *queries) GetAlias(ctx context.Context, parentID models.NodeID, name string) (*models.NodeAlias, error) {
	return first[models.NodeAlias](q.getDB(ctx), "parent_id = ? AND name = ?", parentID, name)
}

func (q *queries) ListAliases(ctx context.Context, parentID models.NodeID) ([]*models.NodeAlias, error) {
	var aliases []*models.NodeAlias
	err := q.getDB(ctx).Where("parent_id = ?", parentID).Order("name ASC").Find(&aliases).Error
	return aliases, err
}

func (q *queries) ListAliasesTo(ctx context.Context, nodeID models.NodeID) ([]*models.NodeAlias, error) {
	var aliases []*models.NodeAlias
	err := q.getDB(ctx).Where("node_id = ?", nodeID).Order("name ASC").Find(&aliases).Error
	return aliases, err
}

func (q *queries) GetProperty(ctx context.Context, nodeID models.NodeID, name string) (*models.Property, error) {
	return first[models.Property](q.getDB(ctx), "node_id = ? AND name = ?", nodeID, name)
}

func (q *queries) ListProperties(ctx context.Context, nodeID models.NodeID) ([]*models.Property, error) {
	var props []*models.Property
	err := q.getDB(ctx).Where("node_id = ?", nodeID).Order("name ASC").Find(&props).Error
	return props, err
}

func (q *queries) FindProperties(ctx context.Context, nodeIDs []models.NodeID, name string) ([]*models.Property, error) {
	var props []*models.Property
	if len(nodeIDs) == 0 {
		return props, nil
	}
	err := q.getDB(ctx).Where("node_id IN ? AND name = ?", nodeIDs, name).Find(&props).Error
	return props, err
}

func (q *queries) GetRevision(ctx context.Context, id models.RevisionID) (*models.Revision, error) {
	return first[models.Revision](q.getDB(ctx), "id = ?", id)
}

func (q *queries) ListRevisions(ctx context.Context, nodeID models.NodeID) ([]*models.Revision, error) {
	var revs []*models.Revision
	err := q.getDB(ctx).Where("node_id = ?", nodeID).Order("created_at DESC").Find(&revs).Error
	return revs, err
}

func (q *queries) GetRevisionByStatus(ctx context.Context, nodeID models.NodeID, language string, status *int) (*models.Revision, error) {
	db := q.getDB(ctx).Order("created_at DESC")
	if status == nil {
		return first[models.Revision](db, "node_id = ? AND language = ? AND status IS NULL", nodeID, language)
	}
	return first[models.Revision](db, "node_id = ? AND language = ? AND status = ?", nodeID, language, *status)
}

func (q *queries) ListChangesSince(ctx context.Context, since time.Time, limit int) ([]*models.ChangeRecord, error) {
	var changes []*models.ChangeRecord
	query := q.getDB(ctx).
		Where("changed_at >= ?", since).
		Order("changed_at ASC").
		Order("id ASC")

	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&changes).Error
	return changes, err
}
