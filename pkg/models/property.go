package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// MaxPropertyValueLength caps the serialized JSON of a property value.
	MaxPropertyValueLength = 1000
	MaxNamespaceLength     = 40
	MaxPredicateLength     = 250
)

var (
	ErrValueTooLong = errors.New("property value too long")
	ErrInvalidKey   = errors.New("invalid property key")
)

// Property is a single key/value pair attached to a node. Keys are either
// a bare predicate or "namespace:predicate". Values are stored as their
// JSON encoding.
type Property struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement" json:"-"`
	NodeID    NodeID    `gorm:"not null;uniqueIndex:idx_properties_node_name,priority:1" json:"node_id"`
	Name      string    `gorm:"size:291;not null;uniqueIndex:idx_properties_node_name,priority:2" json:"name"`
	Value     JSONValue `gorm:"not null" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Property) TableName() string {
	return "node_properties"
}

// SplitKey splits a property key into namespace and predicate. A key
// without a colon has an empty namespace.
func SplitKey(key string) (namespace, predicate string) {
	if ns, pred, ok := strings.Cut(key, ":"); ok {
		return ns, pred
	}
	return "", key
}

// ValidateKey checks the namespace and predicate lengths of key.
func ValidateKey(key string) error {
	ns, pred := SplitKey(key)
	if pred == "" {
		return fmt.Errorf("%w: %q has no predicate", ErrInvalidKey, key)
	}
	if utf8.RuneCountInString(ns) > MaxNamespaceLength {
		return fmt.Errorf("%w: namespace longer than %d characters", ErrInvalidKey, MaxNamespaceLength)
	}
	if utf8.RuneCountInString(pred) > MaxPredicateLength {
		return fmt.Errorf("%w: predicate longer than %d characters", ErrInvalidKey, MaxPredicateLength)
	}
	return nil
}

// EncodePropertyValue serializes v for storage, enforcing the size cap.
func EncodePropertyValue(v any) (JSONValue, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode property value: %w", err)
	}
	if utf8.RuneCount(raw) > MaxPropertyValueLength {
		return nil, fmt.Errorf("%w: %d characters, limit is %d", ErrValueTooLong, utf8.RuneCount(raw), MaxPropertyValueLength)
	}
	return JSONValue(raw), nil
}

// Decoded returns the stored value. A payload that is not valid JSON
// reports ok == false; the raw bytes are left as they are.
func (p *Property) Decoded() (value any, ok bool) {
	if len(p.Value) == 0 {
		return nil, false
	}
	if err := json.Unmarshal(p.Value, &value); err != nil {
		return nil, false
	}
	return value, true
}
