package jsonx

import (
	"fmt"
	"reflect"

	"github.com/goccy/go-json"
)

// ToDynamicJSON converts any Go value to a dynamic JSON object represented as a map[string]any.
// It first marshals the input value to JSON bytes and then unmarshals those bytes into a map.
// If either the marshaling or unmarshaling process fails, an error is returned.
func ToDynamicJSON(val any) (map[string]any, error) {
	result := make(map[string]any)
	b, err := json.Marshal(val)
	if err != nil {
		return nil, err
	}
	if err = json.Unmarshal(b, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ConvertTo turns value into a reflect.Value of type target.
//
// Values that are already assignable are used as-is. Numbers convert to other
// numeric kinds and strings to other string kinds through reflection; every
// other combination (slices of any, nested maps into structs, ...) goes through
// a JSON round trip so the decoded shape from a tool call argument lands in the
// parameter type the function declares.
func ConvertTo(value any, target reflect.Type) (reflect.Value, error) {
	if value == nil {
		return reflect.Zero(target), nil
	}

	v := reflect.ValueOf(value)
	if v.Type().AssignableTo(target) {
		out := reflect.New(target).Elem()
		out.Set(v)
		return out, nil
	}

	switch {
	case isNumeric(v.Kind()) && isNumeric(target.Kind()):
		return v.Convert(target), nil
	case v.Kind() == reflect.String && target.Kind() == reflect.String:
		return v.Convert(target), nil
	}

	b, err := json.Marshal(value)
	if err != nil {
		return reflect.Value{}, fmt.Errorf("encode %T: %w", value, err)
	}
	out := reflect.New(target)
	if err := json.Unmarshal(b, out.Interface()); err != nil {
		return reflect.Value{}, fmt.Errorf("decode into %s: %w", target, err)
	}
	return out.Elem(), nil
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
