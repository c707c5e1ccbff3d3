// Package store defines the persistence boundary of a content tree.
//
// The tree engine, the traversal resolver and the snapshot tools only
// talk to a [Store]. An implementation must provide:
//
//   - point reads by node id, external id (buid), and (parent, name)
//   - the lineage range read: every node of one tree whose path is in a
//     given set, ordered by path ascending
//   - alias reads by (parent, name)
//   - transactions, through [Store.Transaction], in which every write of
//     one structural mutation commits or rolls back together
//
// # Conventions
//
// Point reads that find nothing return nil, nil. Writes that violate a
// uniqueness constraint fail with an error matching [ErrUniqueConflict].
// Writes are only reachable through a [Tx], so a cascade can never be
// observed half applied by another reader.
//
// The implementation in [github.com/hasgeek/nodular/pkg/store/gormstore]
// runs on PostgreSQL in production and on SQLite in tests.
package store

import (
	"context"
	"time"

	"github.com/hasgeek/nodular/pkg/models"
)

// Reader holds the read operations shared by a Store and a Tx.
type Reader interface {
	// Nodes
	GetNode(ctx context.Context, id models.NodeID) (*models.Node, error)
	GetNodeByBUID(ctx context.Context, buid string) (*models.Node, error)
	// GetRoot returns the oldest root node with the given name.
	GetRoot(ctx context.Context, name string) (*models.Node, error)
	ListRoots(ctx context.Context) ([]*models.Node, error)
	GetChild(ctx context.Context, parentID models.NodeID, name string) (*models.Node, error)
	ListChildren(ctx context.Context, parentID models.NodeID) ([]*models.Node, error)
	CountChildren(ctx context.Context, parentID models.NodeID) (int64, error)
	// ListSubtree returns the node and all of its descendants, every
	// parent before its children. It returns nil when the node is missing.
	ListSubtree(ctx context.Context, id models.NodeID) ([]*models.Node, error)
	// ListLineage returns the nodes of one tree whose path is in paths,
	// ordered by path ascending.
	ListLineage(ctx context.Context, rootID models.NodeID, paths []string) ([]*models.Node, error)

	// Aliases
	GetAlias(ctx context.Context, parentID models.NodeID, name string) (*models.NodeAlias, error)
	ListAliases(ctx context.Context, parentID models.NodeID) ([]*models.NodeAlias, error)
	ListAliasesTo(ctx context.Context, nodeID models.NodeID) ([]*models.NodeAlias, error)

	// Properties
	GetProperty(ctx context.Context, nodeID models.NodeID, name string) (*models.Property, error)
	ListProperties(ctx context.Context, nodeID models.NodeID) ([]*models.Property, error)
	FindProperties(ctx context.Context, nodeIDs []models.NodeID, name string) ([]*models.Property, error)

	// Revisions
	GetRevision(ctx context.Context, id models.RevisionID) (*models.Revision, error)
	ListRevisions(ctx context.Context, nodeID models.NodeID) ([]*models.Revision, error)
	GetRevisionByStatus(ctx context.Context, nodeID models.NodeID, language string, status *int) (*models.Revision, error)

	// Change log
	ListChangesSince(ctx context.Context, since time.Time, limit int) ([]*models.ChangeRecord, error)
}

// Writer holds the write operations, available only inside a transaction.
type Writer interface {
	CreateNode(ctx context.Context, node *models.Node) error
	// UpdateNode writes every mutable column of node. It fails with
	// ErrNotFound when the row does not exist.
	UpdateNode(ctx context.Context, node *models.Node) error
	// DeleteNodes removes the nodes with their properties, revisions and
	// the aliases they own, and turns aliases pointing at them into gone
	// markers. It does not create aliases for the deleted slots.
	DeleteNodes(ctx context.Context, ids []models.NodeID) error

	// PutAlias inserts the alias or repoints the existing (parent, name) row.
	PutAlias(ctx context.Context, alias *models.NodeAlias) error

	// PutProperty inserts the property or replaces the value of the existing row.
	PutProperty(ctx context.Context, prop *models.Property) error
	DeleteProperty(ctx context.Context, nodeID models.NodeID, name string) error

	CreateRevision(ctx context.Context, rev *models.Revision) error
	UpdateRevision(ctx context.Context, rev *models.Revision) error

	RecordChange(ctx context.Context, change *models.ChangeRecord) error
}

// Tx is the view of a store inside a transaction.
type Tx interface {
	Reader
	Writer
}

// Store is a transactional content tree store.
type Store interface {
	Reader

	// Transaction runs fn inside a transaction. The transaction commits
	// when fn returns nil and rolls back otherwise.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	Migrate(ctx context.Context) error
	Close() error
}
