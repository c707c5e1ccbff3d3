// Package snapshot writes whole trees to a CBOR stream and reads them back.
//
// A snapshot is a [Header] followed by one [Record] per entity: every
// node of the tree with parents before children, then the aliases,
// properties and revisions of those nodes. Aliases that point outside the
// tree are written as gone markers, since traversal already treats them
// that way.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/hasgeek/nodular/pkg/models"
	"github.com/hasgeek/nodular/pkg/store"
)

// Version is the snapshot format written by Dump.
const Version = 1

type Kind string

const (
	KindNode     Kind = "node"
	KindAlias    Kind = "alias"
	KindProperty Kind = "property"
	KindRevision Kind = "revision"
)

var (
	ErrUnsupportedVersion = errors.New("unsupported snapshot version")
	ErrNotRoot            = errors.New("snapshot: node is not a root")
)

type Header struct {
	Version int           `cbor:"version"`
	Root    models.NodeID `cbor:"root"`
	Created time.Time     `cbor:"created"`
}

// Record holds exactly one entity, named by Kind.
type Record struct {
	Kind     Kind              `cbor:"kind"`
	Node     *models.Node      `cbor:"node,omitempty"`
	Alias    *models.NodeAlias `cbor:"alias,omitempty"`
	Property *models.Property  `cbor:"property,omitempty"`
	Revision *models.Revision  `cbor:"revision,omitempty"`
}

// Stats counts the records written or read.
type Stats struct {
	Nodes      int `json:"nodes"`
	Aliases    int `json:"aliases"`
	Properties int `json:"properties"`
	Revisions  int `json:"revisions"`
}

func (s Stats) String() string {
	return fmt.Sprintf("%d nodes, %d aliases, %d properties, %d revisions", s.Nodes, s.Aliases, s.Properties, s.Revisions)
}

// Dump writes the tree rooted at rootID to w.
func Dump(ctx context.Context, r store.Reader, rootID models.NodeID, w io.Writer) (Stats, error) {
	var stats Stats
	nodes, err := r.ListSubtree(ctx, rootID)
	if err != nil {
		return stats, err
	}
	if len(nodes) == 0 {
		return stats, fmt.Errorf("dump %s: %w", rootID, store.ErrNotFound)
	}
	if !nodes[0].IsRoot() {
		return stats, fmt.Errorf("%w: %s", ErrNotRoot, rootID)
	}

	enc := newEncoder(w)
	if err := enc.Encode(Header{Version: Version, Root: rootID, Created: time.Now().UTC()}); err != nil {
		return stats, fmt.Errorf("write header: %w", err)
	}

	inTree := make(map[models.NodeID]struct{}, len(nodes))
	for _, n := range nodes {
		inTree[n.ID] = struct{}{}
		if err := enc.Encode(Record{Kind: KindNode, Node: n}); err != nil {
			return stats, fmt.Errorf("write node %s: %w", n.Path, err)
		}
		stats.Nodes++
	}

	for _, n := range nodes {
		aliases, err := r.ListAliases(ctx, n.ID)
		if err != nil {
			return stats, err
		}
		for _, a := range aliases {
			if _, ok := inTree[a.NodeID]; !ok {
				a.NodeID = models.NodeID{}
			}
			if err := enc.Encode(Record{Kind: KindAlias, Alias: a}); err != nil {
				return stats, fmt.Errorf("write alias %s: %w", a.Name, err)
			}
			stats.Aliases++
		}
	}

	for _, n := range nodes {
		props, err := r.ListProperties(ctx, n.ID)
		if err != nil {
			return stats, err
		}
		for _, p := range props {
			if err := enc.Encode(Record{Kind: KindProperty, Property: p}); err != nil {
				return stats, fmt.Errorf("write property %s: %w", p.Name, err)
			}
			stats.Properties++
		}
	}

	for _, n := range nodes {
		revs, err := r.ListRevisions(ctx, n.ID)
		if err != nil {
			return stats, err
		}
		// oldest first, so a restore recreates them in their original order
		for i := len(revs) - 1; i >= 0; i-- {
			if err := enc.Encode(Record{Kind: KindRevision, Revision: revs[i]}); err != nil {
				return stats, fmt.Errorf("write revision %s: %w", revs[i].ID, err)
			}
			stats.Revisions++
		}
	}
	return stats, nil
}

// Restore reads a snapshot from rd into s inside a single transaction.
// Restoring a tree whose root id already exists fails with
// store.ErrUniqueConflict and leaves s untouched.
func Restore(ctx context.Context, s store.Store, rd io.Reader) (Header, Stats, error) {
	var (
		h     Header
		stats Stats
	)
	dec := newDecoder(rd)
	if err := dec.Decode(&h); err != nil {
		return h, stats, fmt.Errorf("read header: %w", err)
	}
	if h.Version != Version {
		return h, stats, fmt.Errorf("%w: %d", ErrUnsupportedVersion, h.Version)
	}

	err := s.Transaction(ctx, func(tx store.Tx) error {
		existing, err := tx.GetNode(ctx, h.Root)
		if err != nil {
			return err
		}
		if existing != nil {
			return fmt.Errorf("%w: root %s already exists", store.ErrUniqueConflict, h.Root)
		}

		for {
			var rec Record
			err := dec.Decode(&rec)
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				return fmt.Errorf("read record %d: %w", stats.Nodes+stats.Aliases+stats.Properties+stats.Revisions, err)
			}
			if err := apply(ctx, tx, &rec, &stats); err != nil {
				return err
			}
		}
		if stats.Nodes == 0 {
			return fmt.Errorf("restore %s: snapshot has no nodes", h.Root)
		}
		return tx.RecordChange(ctx, &models.ChangeRecord{
			EntityType: "node",
			EntityID:   h.Root.String(),
			Operation:  models.ChangeOperationCreate,
			Payload:    models.JSONMap{"path": "/", "restored": stats.Nodes},
		})
	})
	return h, stats, err
}

func apply(ctx context.Context, tx store.Tx, rec *Record, stats *Stats) error {
	switch {
	case rec.Kind == KindNode && rec.Node != nil:
		if stats.Nodes == 0 && !rec.Node.IsRoot() {
			return fmt.Errorf("%w: first node %s", ErrNotRoot, rec.Node.Path)
		}
		stats.Nodes++
		return tx.CreateNode(ctx, rec.Node)
	case rec.Kind == KindAlias && rec.Alias != nil:
		stats.Aliases++
		return tx.PutAlias(ctx, rec.Alias)
	case rec.Kind == KindProperty && rec.Property != nil:
		rec.Property.ID = 0
		stats.Properties++
		return tx.PutProperty(ctx, rec.Property)
	case rec.Kind == KindRevision && rec.Revision != nil:
		stats.Revisions++
		return tx.CreateRevision(ctx, rec.Revision)
	default:
		return fmt.Errorf("restore: malformed %q record", rec.Kind)
	}
}
