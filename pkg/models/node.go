package models

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultType is the node type used when a node is created without one.
const DefaultType = "node"

// Node is a single entry in a content tree.
//
// A node's Path is materialized from its ancestry: a root node (one with
// no parent) always has the path "/", and every other node's path is its
// parent's path joined with its name. RootID points at the topmost
// ancestor, which is the node itself for a root. The tree engine keeps
// both in step under rename, move and delete; code outside the engine
// must treat them as read-only.
type Node struct {
	ID          NodeID     `gorm:"primaryKey" json:"id"`
	BUID        string     `gorm:"column:buid;size:22;not null;uniqueIndex" json:"buid"`
	Name        string     `gorm:"size:250;not null;uniqueIndex:idx_nodes_parent_name,priority:2" json:"name"`
	Title       string     `gorm:"size:250;not null" json:"title"`
	Path        string     `gorm:"size:1000;not null;uniqueIndex:idx_nodes_root_path,priority:2" json:"path"`
	ParentID    NodeID     `gorm:"uniqueIndex:idx_nodes_parent_name,priority:1" json:"parent_id"`
	RootID      NodeID     `gorm:"not null;uniqueIndex:idx_nodes_root_path,priority:1" json:"root_id"`
	Type        string     `gorm:"size:80;not null" json:"type"`
	Itype       *string    `gorm:"size:80" json:"itype,omitempty"`
	UserID      *string    `gorm:"size:80" json:"user_id,omitempty"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Node) TableName() string {
	return "nodes"
}

// BeforeCreate fills in the identifiers a caller did not set.
func (n *Node) BeforeCreate(tx *gorm.DB) error {
	if n.ID.IsZero() {
		n.ID = NewNodeID()
	}
	if n.BUID == "" {
		n.BUID = NewBUID()
	}
	if n.Type == "" {
		n.Type = DefaultType
	}
	return nil
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentID.IsZero()
}

// EffectiveType is the type views are looked up by: the instance type
// when one is set, the node's own type otherwise.
func (n *Node) EffectiveType() string {
	if n.Itype != nil && *n.Itype != "" {
		return *n.Itype
	}
	return n.Type
}

// SetItype sets the instance type override. An empty string clears it.
func (n *Node) SetItype(itype string) {
	itype = strings.TrimSpace(itype)
	if itype == "" {
		n.Itype = nil
		return
	}
	n.Itype = &itype
}

func (n *Node) String() string {
	return fmt.Sprintf("<Node %s %q>", n.Path, n.Title)
}

// AsJSON returns the exportable representation of the node.
func (n *Node) AsJSON() map[string]any {
	out := map[string]any{
		"buid":       n.BUID,
		"name":       n.Name,
		"title":      n.Title,
		"path":       n.Path,
		"type":       n.Type,
		"etype":      n.EffectiveType(),
		"created_at": isoformat(n.CreatedAt),
		"updated_at": isoformat(n.UpdatedAt),
	}
	if n.Itype != nil {
		out["itype"] = *n.Itype
	}
	if n.PublishedAt != nil {
		out["published_at"] = isoformat(*n.PublishedAt)
	}
	if n.UserID != nil {
		out["userid"] = *n.UserID
	}
	return out
}

// NodeData is the import form of a node, as produced by another site's
// export. Properties are applied by the tree engine, not by ImportFrom.
type NodeData struct {
	UUID        string         `json:"uuid"`
	Name        string         `json:"name"`
	Title       string         `json:"title"`
	Author      *string        `json:"author,omitempty"`
	PublishedAt string         `json:"published_at"`
	Properties  map[string]any `json:"properties,omitempty"`
}

// ImportFrom copies imported fields onto the node.
func (n *Node) ImportFrom(data NodeData) error {
	if data.UUID != "" {
		n.BUID = data.UUID
	}
	n.Name = data.Name
	n.Title = data.Title
	n.UserID = data.Author
	if data.PublishedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, data.PublishedAt)
		if err != nil {
			return fmt.Errorf("invalid published_at %q: %w", data.PublishedAt, err)
		}
		t = t.UTC()
		n.PublishedAt = &t
	}
	return nil
}

func isoformat(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000000Z")
}

// NewBUID returns a new 22 character URL-safe identifier, unique across
// sites, used to match nodes during import and export.
func NewBUID() string {
	id := uuid.New()
	return base64.RawURLEncoding.EncodeToString(id[:])
}
