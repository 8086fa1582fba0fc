// ABOUTME: ULID generation and parsing helpers shared by every board entity.
// ABOUTME: Centralizes ULID creation so all code uses the same entropy source.
package core

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// NewULID generates a new ULID using crypto/rand entropy.
func NewULID() ulid.ULID {
	return ulid.MustNew(ulid.Now(), rand.Reader)
}

// ParseID parses a ULID string, reporting a ValidationError naming the field
// when the input is malformed.
func ParseID(field, s string) (ulid.ULID, error) {
	id, err := ulid.Parse(s)
	if err != nil {
		return ulid.ULID{}, &ValidationError{Field: field, Reason: "not a valid id"}
	}
	return id, nil
}
