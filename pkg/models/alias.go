package models

import "time"

// NodeAlias remembers a name that used to resolve under a parent.
//
// A non-zero NodeID redirects the old name to that node. A zero NodeID is
// a gone marker: the node that lived there was deleted or moved away.
// There is at most one alias per (parent, name); later vacancies of the
// same slot repoint the existing row.
type NodeAlias struct {
	ParentID  NodeID    `gorm:"primaryKey" json:"parent_id"`
	Name      string    `gorm:"primaryKey;size:250" json:"name"`
	NodeID    NodeID    `gorm:"index" json:"node_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (NodeAlias) TableName() string {
	return "node_aliases"
}

// IsGone reports whether the alias marks a permanently removed node.
func (a *NodeAlias) IsGone() bool {
	return a.NodeID.IsZero()
}
