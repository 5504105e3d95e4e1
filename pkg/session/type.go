package session

import (
	"fmt"
	"strings"
)

// Type is the durability class of a session.
type Type string

const (
	// TypeMemory sessions live in an in-memory database that vanishes on close.
	TypeMemory Type = "memory"
	// TypePersistent sessions are backed by a storage backend.
	TypePersistent Type = "persistent"
)

// ParseType parses s case-insensitively. Empty input means TypeMemory.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case "", TypeMemory:
		return TypeMemory, nil
	case TypePersistent:
		return TypePersistent, nil
	default:
		return "", fmt.Errorf("%w: unknown session type %q", ErrInvalidConfig, s)
	}
}

func (t Type) String() string { return string(t) }
