package reflectx

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type functionTestStruct struct{}

func (t *functionTestStruct) method() {}

type namedFunc func(string) string

func regularFunction()  {}
func withReturn() error { return nil }

func TestIsFunction(t *testing.T) {
	tests := []struct {
		name string
		fn   any
		want bool
	}{
		{"nil", nil, false},
		{"int", 42, false},
		{"string", "not a func", false},
		{"struct", functionTestStruct{}, false},
		{"regular function", regularFunction, true},
		{"anonymous function", func() {}, true},
		{"pointer method", (*functionTestStruct).method, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, IsFunction(tt.fn))
		})
	}
}

func TestFunctionName(t *testing.T) {
	var s functionTestStruct
	tests := []struct {
		name string
		fn   any
		want string
	}{
		{"not a function", 1, ""},
		{"regular function", regularFunction, "regularFunction"},
		{"method value", s.method, "method"},
		{"named function type", namedFunc(func(s string) string { return s }), "reflectx.namedFunc"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FunctionName(tt.fn))
		})
	}
}

func TestIsType(t *testing.T) {
	assert.True(t, IsType[map[string]any](reflect.TypeOf(map[string]any{})))
	assert.False(t, IsType[map[string]any](reflect.TypeOf(map[string]string{})))
}

func TestAcceptsContext(t *testing.T) {
	assert.True(t, AcceptsContext(reflect.TypeOf(func(context.Context, int) {})))
	assert.False(t, AcceptsContext(reflect.TypeOf(func(int, context.Context) {})))
	assert.False(t, AcceptsContext(reflect.TypeOf(func() {})))
	assert.False(t, AcceptsContext(reflect.TypeOf(42)))
}

func TestReturnsError(t *testing.T) {
	assert.True(t, ReturnsError(reflect.TypeOf(withReturn)))
	assert.True(t, ReturnsError(reflect.TypeOf(func() (int, error) { return 0, nil })))
	assert.False(t, ReturnsError(reflect.TypeOf(func() (error, int) { return nil, 0 })))
	assert.False(t, ReturnsError(reflect.TypeOf(regularFunction)))
}
