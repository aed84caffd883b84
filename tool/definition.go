package tool

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/casualjim/roost/pkg/reflectx"
	"github.com/casualjim/roost/pkg/stdx"
	"github.com/fogfish/opts"
	"github.com/invopop/jsonschema"
)

var (
	// ErrValidation wraps every argument validation failure.
	ErrValidation = errors.New("invalid tool arguments")
	// ErrNotFound is returned for names that aren't registered.
	ErrNotFound = errors.New("tool not found")
	// ErrAlreadyRegistered is returned when registering a taken name without update.
	ErrAlreadyRegistered = errors.New("tool already registered")
)

// PreProcessor rewrites arguments before they are validated.
type PreProcessor func(ctx context.Context, args map[string]any) (map[string]any, error)

// PostProcessor rewrites the result of a successful call.
type PostProcessor func(ctx context.Context, result any) (any, error)

// Definition describes a callable tool: its name, description, parameter
// schema and the function implementing it.
//
// The function may take a context.Context first. Its remaining parameters
// are either positional, named param0, param1... unless renamed with
// Parameters, or a single map[string]any receiving every argument. It may
// return nothing, a value, an error, or a value and an error.
type Definition struct {
	Name        string
	Description string
	Parameters  map[string]string
	Function    any
	Schema      *jsonschema.Schema
	PreProcess  PreProcessor
	PostProcess PostProcessor
	// Strict rejects missing required and unexpected arguments.
	Strict bool
}

// Option configures a Definition.
type Option = opts.Option[Definition]

var (
	Name        = opts.ForName[Definition, string]("Name")
	Description = opts.ForName[Definition, string]("Description")
	// Schema replaces the schema derived from the function signature.
	Schema      = opts.ForName[Definition, *jsonschema.Schema]("Schema")
	PreProcess  = opts.ForName[Definition, PreProcessor]("PreProcess")
	PostProcess = opts.ForName[Definition, PostProcessor]("PostProcess")
	Strict      = opts.ForName[Definition, bool]("Strict")
)

// Parameters names the positional parameters in order.
func Parameters(parameters ...string) Option {
	return opts.Type[Definition](func(o *Definition) error {
		o.Parameters = make(map[string]string, len(parameters))
		for i, p := range parameters {
			o.Parameters[fmt.Sprintf("param%d", i)] = p
		}
		return nil
	})
}

// Must is New, panicking on error.
func Must(f any, options ...Option) Definition {
	return stdx.Must1(New(f, options...))
}

// New creates a Definition for f. The name defaults to the function name and
// the schema to one derived from the signature.
func New(f any, options ...Option) (Definition, error) {
	if !reflectx.IsFunction(f) {
		return Definition{}, fmt.Errorf("provided value is not a function")
	}
	if err := checkSignature(reflect.TypeOf(f)); err != nil {
		return Definition{}, err
	}

	var def Definition
	if err := opts.Apply(&def, options); err != nil {
		return Definition{}, err
	}
	if def.Name == "" {
		def.Name = reflectx.FunctionName(f)
	}

	def.Function = f
	if def.Schema == nil {
		_, def.Schema = def.ToNameAndSchema()
	}
	return def, nil
}

func checkSignature(typ reflect.Type) error {
	if typ.IsVariadic() {
		return fmt.Errorf("variadic functions are not supported")
	}
	switch typ.NumOut() {
	case 0, 1:
		return nil
	case 2:
		if !reflectx.ReturnsError(typ) {
			return fmt.Errorf("the second result of a tool function must be an error, got %s", typ.Out(1))
		}
		return nil
	default:
		return fmt.Errorf("tool functions return at most a value and an error, got %d results", typ.NumOut())
	}
}

var kwargsType = reflect.TypeFor[map[string]any]()

// firstArg is the index of the first argument-bearing parameter.
func firstArg(typ reflect.Type) int {
	if reflectx.AcceptsContext(typ) {
		return 1
	}
	return 0
}

// takesKwargs reports whether the function receives all arguments as one map.
func takesKwargs(typ reflect.Type) bool {
	start := firstArg(typ)
	return typ.NumIn() == start+1 && typ.In(start) == kwargsType
}

// ParameterNames returns the positional parameter names in order. Functions
// taking a single map of arguments have none.
func (d Definition) ParameterNames() []string {
	typ := reflect.TypeOf(d.Function)
	if typ == nil || typ.Kind() != reflect.Func || takesKwargs(typ) {
		return nil
	}
	start := firstArg(typ)
	names := make([]string, 0, typ.NumIn()-start)
	for i := start; i < typ.NumIn(); i++ {
		name := fmt.Sprintf("param%d", i-start)
		if p, ok := d.Parameters[name]; ok {
			name = p
		}
		names = append(names, name)
	}
	return names
}

var functionReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// ToNameAndSchema returns the tool name and the parameter schema derived from
// the function signature.
func (d Definition) ToNameAndSchema() (string, *jsonschema.Schema) {
	return functionDefinitionJSON(&functionReflector, d)
}

func functionDefinitionJSON(reflector *jsonschema.Reflector, f Definition) (string, *jsonschema.Schema) {
	typ := reflect.TypeOf(f.Function)
	name := f.Name
	if name == "" {
		name = reflectx.FunctionName(f.Function)
	}

	schema := &jsonschema.Schema{
		Type:       "object",
		Properties: newProperties(),
	}
	if typ == nil || typ.Kind() != reflect.Func {
		return name, schema
	}
	if takesKwargs(typ) {
		schema.AdditionalProperties = jsonschema.TrueSchema
		return name, schema
	}

	start := firstArg(typ)
	var required []string
	for i, paramName := range f.ParameterNames() {
		propSchema := reflector.ReflectFromType(typ.In(start + i))
		propSchema.Version = ""
		schema.Properties.Set(paramName, propSchema)
		required = append(required, paramName)
	}
	if len(required) > 0 {
		schema.Required = required
	}
	return name, schema
}
