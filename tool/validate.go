package tool

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/alphadose/haxmap"
	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	validator "github.com/santhosh-tekuri/jsonschema/v6"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// compiled caches property validators by their schema document.
var compiled = haxmap.New[string, *validator.Schema]()

func newProperties() *orderedmap.OrderedMap[string, *jsonschema.Schema] {
	return orderedmap.New[string, *jsonschema.Schema]()
}

// Validate checks args against the parameter schema. Present arguments must
// match their declared JSON type. In strict mode every required parameter
// must be present and no undeclared argument may be given, unless the schema
// allows additional properties. Strict mode also validates each present
// argument in depth, so nested objects and array items must match too.
func (d Definition) Validate(args map[string]any) error {
	schema := d.Schema
	if schema == nil {
		_, schema = d.ToNameAndSchema()
	}

	if d.Strict {
		for _, name := range schema.Required {
			if _, ok := args[name]; !ok {
				return fmt.Errorf("%w: missing required parameter: %s", ErrValidation, name)
			}
		}
		if schema.AdditionalProperties != jsonschema.TrueSchema {
			names := make([]string, 0, len(args))
			for name := range args {
				names = append(names, name)
			}
			slices.Sort(names)
			for _, name := range names {
				if schema.Properties == nil {
					return fmt.Errorf("%w: unexpected parameter: %s", ErrValidation, name)
				}
				if _, ok := schema.Properties.Get(name); !ok {
					return fmt.Errorf("%w: unexpected parameter: %s", ErrValidation, name)
				}
			}
		}
	}

	if schema.Properties == nil {
		return nil
	}
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		value, ok := args[pair.Key]
		if !ok || value == nil || pair.Value == nil {
			continue
		}
		if !matchesType(pair.Value.Type, value) {
			return fmt.Errorf("%w: parameter %s must be %s", ErrValidation, pair.Key, article(pair.Value.Type))
		}
		if d.Strict {
			if err := validateDeep(pair.Key, pair.Value, value); err != nil {
				return err
			}
		}
	}
	return nil
}

func propertyValidator(schema *jsonschema.Schema) (*validator.Schema, error) {
	doc, err := json.Marshal(schema)
	if err != nil {
		return nil, err
	}
	key := string(doc)
	if sch, ok := compiled.Get(key); ok {
		return sch, nil
	}

	parsed, err := validator.UnmarshalJSON(bytes.NewReader(doc))
	if err != nil {
		return nil, err
	}
	c := validator.NewCompiler()
	if err := c.AddResource("parameter.json", parsed); err != nil {
		return nil, err
	}
	sch, err := c.Compile("parameter.json")
	if err != nil {
		return nil, err
	}
	compiled.Set(key, sch)
	return sch, nil
}

// validateDeep checks value against the full property schema. The value is
// round tripped through JSON so structs and Go numbers validate like the
// arguments a model would send.
func validateDeep(name string, schema *jsonschema.Schema, value any) error {
	sch, err := propertyValidator(schema)
	if err != nil {
		return fmt.Errorf("%w: parameter %s has an unusable schema: %w", ErrValidation, name, err)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("%w: parameter %s can't be encoded: %w", ErrValidation, name, err)
	}
	instance, err := validator.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("%w: parameter %s can't be decoded: %w", ErrValidation, name, err)
	}
	if err := sch.Validate(instance); err != nil {
		return fmt.Errorf("%w: parameter %s is invalid: %w", ErrValidation, name, err)
	}
	return nil
}

func article(jsonType string) string {
	switch jsonType {
	case "integer", "array", "object":
		return "an " + jsonType
	default:
		return "a " + jsonType
	}
}

func matchesType(jsonType string, value any) bool {
	v := reflect.ValueOf(value)
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return true
		}
		v = v.Elem()
	}

	switch jsonType {
	case "string":
		return v.Kind() == reflect.String
	case "integer":
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return true
		case reflect.Float32, reflect.Float64:
			f := v.Float()
			return f == math.Trunc(f) && !math.IsInf(f, 0)
		}
		return false
	case "number":
		switch v.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	case "boolean":
		return v.Kind() == reflect.Bool
	case "array":
		return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
	case "object":
		return v.Kind() == reflect.Map || v.Kind() == reflect.Struct
	case "null":
		return false
	default:
		return true
	}
}
