package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// JSONValue holds one encoded JSON document. It is stored as jsonb on
// PostgreSQL and as text on SQLite, where a JSON column would take
// numeric affinity and hand scalar documents back as numbers.
type JSONValue datatypes.JSON

func (j JSONValue) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// Scan accepts what either driver returns for the column. Scalars are
// re-encoded, so a number stored by an older schema still reads back.
func (j *JSONValue) Scan(value any) error {
	switch v := value.(type) {
	case nil:
		*j = nil
	case []byte:
		*j = append(JSONValue(nil), v...)
	case string:
		*j = JSONValue(v)
	case int64, float64, bool:
		raw, err := json.Marshal(v)
		if err != nil {
			return err
		}
		*j = raw
	default:
		return fmt.Errorf("cannot scan type %T into JSONValue", value)
	}
	return nil
}

func (j JSONValue) MarshalJSON() ([]byte, error) {
	return datatypes.JSON(j).MarshalJSON()
}

func (j *JSONValue) UnmarshalJSON(b []byte) error {
	return (*datatypes.JSON)(j).UnmarshalJSON(b)
}

func (j JSONValue) String() string {
	return string(j)
}

func (JSONValue) GormDataType() string { return "json" }

func (JSONValue) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	if db.Dialector.Name() == "postgres" {
		return "jsonb"
	}
	return "text"
}
