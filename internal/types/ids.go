package types

import (
	"fmt"

	"github.com/google/uuid"
)

// ID is a UUID string identifying requirements, formations, manifests and instances.
type ID string

// NewID generates a new random UUID and returns it as an ID.
func NewID() ID {
	return ID(uuid.New().String())
}

// ParseID parses and validates a string as a UUID, returning an ID.
func ParseID(s string) (ID, error) {
	if s == "" {
		return "", InvalidInput("ID cannot be empty")
	}

	parsed, err := uuid.Parse(s)
	if err != nil {
		return "", WrapError(INVALID_INPUT, fmt.Sprintf("invalid UUID %q", s), err)
	}

	return ID(parsed.String()), nil
}

// String returns the string representation of the ID.
func (id ID) String() string {
	return string(id)
}

// Short returns the first eight characters of the ID for log lines and tables.
func (id ID) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

// IsZero checks if the ID is empty.
func (id ID) IsZero() bool {
	return id == ""
}
