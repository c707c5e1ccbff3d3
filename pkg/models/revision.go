package models

import (
	"time"

	"gorm.io/gorm"
)

// Revision is one full copy of a revisioned node's content.
//
// A node may have several labelled revisions live at once, one per
// (language, status) pair, plus any number of archived revisions whose
// Status is nil.
type Revision struct {
	ID         RevisionID `gorm:"primaryKey" json:"id"`
	NodeID     NodeID     `gorm:"not null;uniqueIndex:idx_revisions_node_language_status,priority:1" json:"node_id"`
	PreviousID RevisionID `json:"previous_id"`
	Language   string     `gorm:"size:5;not null;default:'';uniqueIndex:idx_revisions_node_language_status,priority:2" json:"language"`
	Status     *int       `gorm:"uniqueIndex:idx_revisions_node_language_status,priority:3" json:"status,omitempty"`
	UserID     *string    `gorm:"size:80" json:"user_id,omitempty"`
	Content    JSONValue  `gorm:"not null" json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

func (Revision) TableName() string {
	return "node_revisions"
}

func (r *Revision) BeforeCreate(tx *gorm.DB) error {
	if r.ID.IsZero() {
		r.ID = NewRevisionID()
	}
	if len(r.Content) == 0 {
		r.Content = JSONValue("{}")
	}
	return nil
}

// Copy returns a new unsaved revision carrying r's content, with r as its
// previous revision.
func (r *Revision) Copy() *Revision {
	content := make(JSONValue, len(r.Content))
	copy(content, r.Content)
	return &Revision{
		NodeID:     r.NodeID,
		PreviousID: r.ID,
		Language:   r.Language,
		Content:    content,
	}
}
