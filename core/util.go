package core

import (
	"strings"

	"github.com/google/uuid"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// NewID returns a random UUID, the primary key format of every record.
func NewID() string { return uuid.New().String() }

// StringPtr returns a pointer to s, for partial updates.
func StringPtr(s string) *string { return &s }

// BoolPtr returns a pointer to b, for partial updates.
func BoolPtr(b bool) *bool { return &b }
