package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	type pair struct{ A int }
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"true", true, true},
		{"zero int", 0, false},
		{"int", 3, true},
		{"zero float", 0.0, false},
		{"float", 0.5, true},
		{"empty string", "", false},
		{"string", "Claim", true},
		{"not found position", Position{}, false},
		{"found position", At(0, 0), true},
		{"nil position pointer", (*Position)(nil), false},
		{"empty slice", []int{}, false},
		{"slice", []int{1}, true},
		{"empty map", map[string]int{}, false},
		{"zero struct", pair{}, false},
		{"struct", pair{A: 1}, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Truthy(tc.v))
		})
	}
}

func TestWorldState_BoolAgreesWithTruthy(t *testing.T) {
	w := NewWorldState(Capabilities{}, t0)
	values := map[string]any{
		"empty_slice": []string{},
		"full_slice":  []string{"x"},
		"empty_map":   map[string]int{},
		"nil_pointer": (*Position)(nil),
		"found_ptr":   &Position{X: 1, Y: 2, Found: true},
		"nil_value":   nil,
		"int64_zero":  int64(0),
		"text":        "Claim",
	}
	for name, v := range values {
		w.Set(name, v)
	}
	for name, v := range values {
		assert.Equal(t, Truthy(v), w.Bool(name), name)
	}
	assert.False(t, w.Bool("empty_slice"))
	assert.False(t, w.Bool("nil_pointer"))
	assert.True(t, w.Bool("found_ptr"))
}
