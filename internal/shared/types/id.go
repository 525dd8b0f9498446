package types

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// ID is a UUID wrapper for type safety
type ID string

// NewID generates a new random ID
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses a string into an ID
func ParseID(s string) (ID, error) {
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("invalid ID: %w", err)
	}
	return ID(s), nil
}

// MustParseID parses a string into an ID, panics on error
func MustParseID(s string) ID {
	id, err := ParseID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsZero checks if the ID is empty
func (id ID) IsZero() bool {
	return id == ""
}

// Value implements driver.Valuer for database serialization
func (id ID) Value() (driver.Value, error) {
	if id.IsZero() {
		return nil, nil
	}
	return string(id), nil
}

// Scan implements sql.Scanner for database deserialization
func (id *ID) Scan(value interface{}) error {
	if value == nil {
		*id = ""
		return nil
	}
	switch v := value.(type) {
	case ID:
		*id = v
	case string:
		*id = ID(v)
	case []byte:
		*id = ID(string(v))
	case [16]byte:
		*id = ID(uuid.UUID(v).String())
	default:
		return fmt.Errorf("cannot scan %T into ID", value)
	}
	return nil
}

// OptionalID is either a known ID or Unknown. Identities confirmed through the
// session check carry no id, and must never compare equal to another unknown one.
type OptionalID struct {
	id    ID
	known bool
}

// Unknown is the OptionalID with no value.
var Unknown = OptionalID{}

// Known wraps a non-empty ID. An empty ID yields Unknown.
func Known(id ID) OptionalID {
	if id.IsZero() {
		return Unknown
	}
	return OptionalID{id: id, known: true}
}

// Get returns the ID and whether it is known.
func (o OptionalID) Get() (ID, bool) {
	return o.id, o.known
}

// IsKnown reports whether an ID is present.
func (o OptionalID) IsKnown() bool {
	return o.known
}

// Same reports whether both values are known and equal. Two unknown ids are not the same.
func (o OptionalID) Same(other OptionalID) bool {
	return o.known && other.known && o.id == other.id
}

func (o OptionalID) String() string {
	if !o.known {
		return "<unknown>"
	}
	return o.id.String()
}

// MarshalJSON encodes Unknown as null.
func (o OptionalID) MarshalJSON() ([]byte, error) {
	if !o.known {
		return []byte("null"), nil
	}
	return json.Marshal(o.id.String())
}

// UnmarshalJSON decodes null, a missing value or "" as Unknown.
func (o *OptionalID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = Unknown
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("invalid optional ID: %w", err)
	}
	*o = Known(ID(s))
	return nil
}
