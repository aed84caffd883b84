package jsonx

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDynamicJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   any
		want    map[string]any
		wantErr bool
	}{
		{
			name: "simple struct",
			input: struct {
				Name string `json:"name"`
				Age  int    `json:"age"`
			}{Name: "test", Age: 30},
			want: map[string]any{"name": "test", "age": float64(30)},
		},
		{
			name:  "map passes through",
			input: map[string]any{"a": "b"},
			want:  map[string]any{"a": "b"},
		},
		{
			name:    "channel cannot be encoded",
			input:   make(chan int),
			wantErr: true,
		},
		{
			name:    "array is not an object",
			input:   []int{1, 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToDynamicJSON(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type label string

func TestConvertTo(t *testing.T) {
	tests := []struct {
		name   string
		value  any
		target reflect.Type
		want   any
	}{
		{"float to int", float64(42), reflect.TypeFor[int](), 42},
		{"int to float", 3, reflect.TypeFor[float64](), float64(3)},
		{"string to named string", "x", reflect.TypeFor[label](), label("x")},
		{"assignable", "same", reflect.TypeFor[string](), "same"},
		{"slice of any", []any{"a", "b"}, reflect.TypeFor[[]string](), []string{"a", "b"}},
		{"map into struct", map[string]any{"x": float64(1), "y": float64(2)}, reflect.TypeFor[point](), point{X: 1, Y: 2}},
		{"nil becomes zero", nil, reflect.TypeFor[int](), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertTo(tt.value, tt.target)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Interface())
		})
	}

	t.Run("incompatible shapes fail", func(t *testing.T) {
		_, err := ConvertTo("text", reflect.TypeFor[point]())
		assert.Error(t, err)
	})
}
