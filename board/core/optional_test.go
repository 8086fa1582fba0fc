// ABOUTME: Tests for OptionalField[T] three-state JSON semantics.
// ABOUTME: Covers absent, null, and present states inside a struct tagged omitzero.
package core_test

import (
	"encoding/json"
	"testing"

	"github.com/2389-research/funnel/board/core"
)

type optionalHolder struct {
	Color core.OptionalField[string] `json:"color,omitzero"`
}

func TestOptionalConstructors(t *testing.T) {
	if opt := core.Absent[string](); opt.Set || opt.Valid || !opt.IsZero() {
		t.Errorf("Absent: got %+v", opt)
	}
	if opt := core.Null[string](); !opt.Set || opt.Valid || opt.IsZero() {
		t.Errorf("Null: got %+v", opt)
	}
	if opt := core.Present(42); !opt.Set || !opt.Valid || opt.Value != 42 {
		t.Errorf("Present(42): got %+v", opt)
	}
}

func TestOptionalMarshalInStruct(t *testing.T) {
	tests := []struct {
		name string
		in   optionalHolder
		want string
	}{
		{"absent", optionalHolder{Color: core.Absent[string]()}, `{}`},
		{"null", optionalHolder{Color: core.Null[string]()}, `{"color":null}`},
		{"present", optionalHolder{Color: core.Present("#fff")}, `{"color":"#fff"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(tt.in)
			if err != nil {
				t.Fatalf("Marshal: %v", err)
			}
			if string(data) != tt.want {
				t.Errorf("Marshal = %s, want %s", data, tt.want)
			}
		})
	}
}

func TestOptionalUnmarshal(t *testing.T) {
	tests := []struct {
		json  string
		set   bool
		valid bool
		value string
	}{
		{`{}`, false, false, ""},
		{`{"color":null}`, true, false, ""},
		{`{"color":"#abc"}`, true, true, "#abc"},
	}
	for _, tt := range tests {
		var h optionalHolder
		if err := json.Unmarshal([]byte(tt.json), &h); err != nil {
			t.Fatalf("Unmarshal(%s): %v", tt.json, err)
		}
		if h.Color.Set != tt.set || h.Color.Valid != tt.valid || h.Color.Value != tt.value {
			t.Errorf("Unmarshal(%s) = %+v", tt.json, h.Color)
		}
	}

	var h optionalHolder
	if err := json.Unmarshal([]byte(`{"color":12}`), &h); err == nil {
		t.Error("expected type error for non-string value")
	}
}
