package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// ChangeOperation names the kind of mutation a ChangeRecord describes.
type ChangeOperation string

const (
	ChangeOperationCreate ChangeOperation = "CREATE"
	ChangeOperationUpdate ChangeOperation = "UPDATE"
	ChangeOperationRename ChangeOperation = "RENAME"
	ChangeOperationMove   ChangeOperation = "MOVE"
	ChangeOperationDelete ChangeOperation = "DELETE"
)

// ChangeRecord is one row of the change log. The tree engine writes a
// record in the same transaction as every mutation it performs, so the
// log never shows a change that was rolled back.
type ChangeRecord struct {
	ID         uint64          `gorm:"primaryKey;autoIncrement" json:"id"`
	EntityType string          `gorm:"size:40;not null;index:idx_changes_entity" json:"entity_type"`
	EntityID   string          `gorm:"size:300;not null;index:idx_changes_entity" json:"entity_id"`
	Operation  ChangeOperation `gorm:"size:20;not null" json:"operation"`
	ChangedAt  time.Time       `gorm:"not null;index" json:"changed_at"`
	Payload    JSONMap         `json:"payload,omitempty"`
}

func (ChangeRecord) TableName() string {
	return "change_log"
}

// JSONMap is a free-form JSON object column.
type JSONMap map[string]any

// Value implements the driver.Valuer interface for database storage
func (j JSONMap) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements the sql.Scanner interface for database retrieval
func (j *JSONMap) Scan(value any) error {
	if value == nil {
		*j = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("cannot scan type %T into JSONMap", value)
	}
	return json.Unmarshal(raw, j)
}

func (JSONMap) GormDataType() string { return "json" }

func (JSONMap) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}
