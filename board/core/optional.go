// ABOUTME: OptionalField[T] implements 3-state JSON semantics: absent, null, or value.
// ABOUTME: Patches use it where "leave unchanged" and "clear" must be told apart.
package core

import (
	"bytes"
	"encoding/json"
)

// OptionalField represents a field that can be absent, explicitly null, or have a value.
//
//   - Set=false:             field absent from JSON (don't update)
//   - Set=true, Valid=false: field is JSON null (clear the value)
//   - Set=true, Valid=true:  field has a value (set to Value)
//
// Tag struct fields with `omitzero` so an absent field stays absent on the wire.
type OptionalField[T any] struct {
	Set   bool
	Valid bool
	Value T
}

// Absent returns an OptionalField that represents a missing field.
func Absent[T any]() OptionalField[T] {
	return OptionalField[T]{}
}

// Null returns an OptionalField that represents an explicit null.
func Null[T any]() OptionalField[T] {
	return OptionalField[T]{Set: true}
}

// Present returns an OptionalField with a concrete value.
func Present[T any](v T) OptionalField[T] {
	return OptionalField[T]{Set: true, Valid: true, Value: v}
}

// IsZero reports whether the field is absent, which lets omitzero drop it.
func (o OptionalField[T]) IsZero() bool {
	return !o.Set
}

// MarshalJSON emits null unless the field holds a value.
func (o OptionalField[T]) MarshalJSON() ([]byte, error) {
	if !o.Set || !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

// UnmarshalJSON sets the field state based on the JSON value.
// A JSON null sets Set=true, Valid=false. Any other value sets both true.
func (o *OptionalField[T]) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		o.Valid = false
		return nil
	}
	o.Valid = true
	return json.Unmarshal(data, &o.Value)
}
