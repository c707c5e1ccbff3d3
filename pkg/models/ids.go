package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// cborTagUUID is the IANA registered CBOR tag for a binary UUID.
const cborTagUUID = 37

// NodeID is a typed ID for nodes. The zero value means "no node" and is
// stored as NULL, which is how a root node's parent is represented.
type NodeID struct {
	uuid uuid.UUID
}

func NewNodeID() NodeID {
	return NodeID{uuid: uuid.New()}
}

func NewNodeIDFromUUID(id uuid.UUID) NodeID {
	return NodeID{uuid: id}
}

func ParseNodeID(s string) (NodeID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return NodeID{}, fmt.Errorf("invalid node ID: %w", err)
	}
	return NodeID{uuid: id}, nil
}

func (n NodeID) UUID() uuid.UUID { return n.uuid }
func (n NodeID) String() string  { return n.uuid.String() }
func (n NodeID) IsZero() bool    { return n.uuid == uuid.Nil }

func (n NodeID) MarshalJSON() ([]byte, error) {
	return marshalJSONID(n.uuid)
}

func (n *NodeID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &n.uuid)
}

func (n NodeID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(n.uuid)
}

func (n *NodeID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &n.uuid)
}

func (n NodeID) Value() (driver.Value, error) {
	if n.IsZero() {
		return nil, nil
	}
	return n.uuid.String(), nil
}

func (n *NodeID) Scan(value any) error {
	return scanUUID(value, &n.uuid)
}

func (NodeID) GormDataType() string { return "uuid" }

func (NodeID) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return uuidColumnType(db)
}

// RevisionID is a typed ID for node revisions.
type RevisionID struct {
	uuid uuid.UUID
}

func NewRevisionID() RevisionID {
	return RevisionID{uuid: uuid.New()}
}

func ParseRevisionID(s string) (RevisionID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return RevisionID{}, fmt.Errorf("invalid revision ID: %w", err)
	}
	return RevisionID{uuid: id}, nil
}

func (r RevisionID) UUID() uuid.UUID { return r.uuid }
func (r RevisionID) String() string  { return r.uuid.String() }
func (r RevisionID) IsZero() bool    { return r.uuid == uuid.Nil }

func (r RevisionID) MarshalJSON() ([]byte, error) {
	return marshalJSONID(r.uuid)
}

func (r *RevisionID) UnmarshalJSON(data []byte) error {
	return unmarshalJSONID(data, &r.uuid)
}

func (r RevisionID) MarshalCBOR() ([]byte, error) {
	return marshalCBORID(r.uuid)
}

func (r *RevisionID) UnmarshalCBOR(data []byte) error {
	return unmarshalCBORID(data, &r.uuid)
}

func (r RevisionID) Value() (driver.Value, error) {
	if r.IsZero() {
		return nil, nil
	}
	return r.uuid.String(), nil
}

func (r *RevisionID) Scan(value any) error {
	return scanUUID(value, &r.uuid)
}

func (RevisionID) GormDataType() string { return "uuid" }

func (RevisionID) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	return uuidColumnType(db)
}

func uuidColumnType(db *gorm.DB) string {
	if db.Dialector.Name() == "postgres" {
		return "uuid"
	}
	return "varchar(36)"
}

func marshalJSONID(id uuid.UUID) ([]byte, error) {
	if id == uuid.Nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.String())
}

func unmarshalJSONID(data []byte, target *uuid.UUID) error {
	if bytes.Equal(data, []byte("null")) {
		*target = uuid.Nil
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*target = uuid.Nil
		return nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return err
	}
	*target = id
	return nil
}

func scanUUID(value any, target *uuid.UUID) error {
	if value == nil {
		*target = uuid.Nil
		return nil
	}

	switch v := value.(type) {
	case string:
		id, err := uuid.Parse(v)
		if err != nil {
			return err
		}
		*target = id
	case []byte:
		id, err := uuid.ParseBytes(v)
		if err != nil {
			return err
		}
		*target = id
	default:
		return fmt.Errorf("cannot scan type %T into UUID", value)
	}
	return nil
}

// marshalCBORID encodes id as a tag 37 byte string, or CBOR null when zero.
func marshalCBORID(id uuid.UUID) ([]byte, error) {
	if id == uuid.Nil {
		return cbor.Marshal(nil)
	}
	return cbor.Marshal(cbor.Tag{
		Number:  cborTagUUID,
		Content: id[:],
	})
}

func unmarshalCBORID(data []byte, target *uuid.UUID) error {
	if len(data) == 0 {
		return fmt.Errorf("empty CBOR data")
	}

	// null (0xf6) and undefined (0xf7) both mean the zero ID
	if data[0] == 0xf6 || data[0] == 0xf7 {
		*target = uuid.Nil
		return nil
	}

	var tag cbor.Tag
	if err := cbor.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("failed to unmarshal CBOR tag: %w", err)
	}
	if tag.Number != cborTagUUID {
		return fmt.Errorf("expected UUID tag (%d), got %d", cborTagUUID, tag.Number)
	}

	raw, ok := tag.Content.([]byte)
	if !ok {
		return fmt.Errorf("invalid UUID format: expected byte string, got %T", tag.Content)
	}
	id, err := uuid.FromBytes(raw)
	if err != nil {
		return err
	}
	*target = id
	return nil
}
