package reflectx

import (
	"context"
	"reflect"
	"runtime"
	"strings"
)

var (
	contextType = reflect.TypeFor[context.Context]()
	errorType   = reflect.TypeFor[error]()
)

func IsFunction(fn any) bool {
	if fn == nil {
		return false
	}
	return reflect.TypeOf(fn).Kind() == reflect.Func
}

// FunctionName derives a name for fn. Named function types use their type
// name, everything else the symbol name reported by the runtime with the
// package path and the method-value "-fm" suffix stripped.
func FunctionName(fn any) string {
	if !IsFunction(fn) {
		return ""
	}

	val := reflect.ValueOf(fn)
	typ := val.Type()
	if typ.Name() != "" {
		return typ.String()
	}

	rf := runtime.FuncForPC(val.Pointer())
	if rf == nil {
		return typ.String()
	}
	name := rf.Name()
	if lastDot := strings.LastIndex(name, "."); lastDot >= 0 {
		name = name[lastDot+1:]
	}
	return strings.TrimSuffix(name, "-fm")
}

// IsType reports whether t is exactly the type R.
func IsType[R any](t reflect.Type) bool {
	return t == reflect.TypeFor[R]()
}

// AcceptsContext reports whether the function type takes a context.Context
// as its first parameter.
func AcceptsContext(fnType reflect.Type) bool {
	return fnType.Kind() == reflect.Func && fnType.NumIn() > 0 && fnType.In(0) == contextType
}

// ReturnsError reports whether the last result of the function type is an error.
func ReturnsError(fnType reflect.Type) bool {
	if fnType.Kind() != reflect.Func || fnType.NumOut() == 0 {
		return false
	}
	return fnType.Out(fnType.NumOut()-1) == errorType
}
