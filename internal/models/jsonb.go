package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// JSONB type for PostgreSQL JSONB fields
type JSONB map[string]interface{}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONB)
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to unmarshal JSONB value: %v", value)
	}

	result := make(JSONB)
	err := json.Unmarshal(bytes, &result)
	*j = result
	return err
}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if len(j) == 0 {
		return json.Marshal(map[string]interface{}{})
	}
	return json.Marshal(j)
}

// Clone returns a shallow copy, safe to mutate at the top level.
func (j JSONB) Clone() JSONB {
	out := make(JSONB, len(j))
	for k, v := range j {
		out[k] = v
	}
	return out
}
