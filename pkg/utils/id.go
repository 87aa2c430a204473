package utils

import "github.com/google/uuid"

// NewID returns a collision-resistant random identifier for a new entity
func NewID() string {
	return uuid.New().String()
}

// IsValidID reports whether s looks like an entity ID. Handlers reject
// malformed IDs before any store lookup.
func IsValidID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
