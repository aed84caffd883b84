package tool

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"
	"time"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/pkg/jsonx"
	"github.com/casualjim/roost/pkg/reflectx"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// Call is the event of invoking a tool with a set of arguments.
type Call struct {
	*event.Base
	def  Definition
	args map[string]any
}

// NewCall creates a pending call of def with args. The arguments are copied.
func NewCall(def Definition, args map[string]any) (*Call, error) {
	if !reflectx.IsFunction(def.Function) {
		return nil, fmt.Errorf("tool %q has no function", def.Name)
	}
	return &Call{
		Base: event.NewBase(),
		def:  def,
		args: maps.Clone(args),
	}, nil
}

// CallFromJSON creates a call from a JSON object of arguments. An empty
// input means no arguments.
func CallFromJSON(def Definition, raw []byte) (*Call, error) {
	args := map[string]any{}
	if len(raw) > 0 {
		if !gjson.ValidBytes(raw) {
			return nil, fmt.Errorf("%w: invalid json: %s", ErrValidation, raw)
		}
		parsed := gjson.ParseBytes(raw)
		if !parsed.IsObject() {
			return nil, fmt.Errorf("%w: arguments must be a json object", ErrValidation)
		}
		parsed.ForEach(func(key, value gjson.Result) bool {
			args[key.String()] = value.Value()
			return true
		})
	}
	return NewCall(def, args)
}

func (c *Call) Kind() string { return "tool_call" }

func (c *Call) Definition() Definition { return c.def }

// Arguments returns a copy of the arguments.
func (c *Call) Arguments() map[string]any { return maps.Clone(c.args) }

// Request exposes the tool name and arguments.
func (c *Call) Request() map[string]any {
	return map[string]any{
		"function":  c.def.Name,
		"arguments": maps.Clone(c.args),
	}
}

// Invoke runs the pre-processor, validates the arguments, calls the function
// and runs the post-processor. Elapsed time is recorded whatever the outcome.
func (c *Call) Invoke(ctx context.Context) {
	if !c.Start() {
		return
	}
	began := time.Now()
	result, err := c.run(ctx)
	c.Finish(result, err, time.Since(began))
}

func (c *Call) run(ctx context.Context) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("tool %s panicked: %v", c.def.Name, r)
		}
	}()

	args := c.args
	if c.def.PreProcess != nil {
		args, err = c.def.PreProcess(ctx, maps.Clone(args))
		if err != nil {
			return nil, err
		}
	}
	if err := c.def.Validate(args); err != nil {
		return nil, err
	}

	result, err = c.def.Call(ctx, args)
	if err != nil {
		return nil, err
	}

	if c.def.PostProcess != nil {
		return c.def.PostProcess(ctx, result)
	}
	return result, nil
}

// Call invokes the function with args without validating them. Missing
// positional arguments are passed as zero values.
func (d Definition) Call(ctx context.Context, args map[string]any) (any, error) {
	val := reflect.ValueOf(d.Function)
	typ := val.Type()
	callArgs := make([]reflect.Value, typ.NumIn())

	start := firstArg(typ)
	if start == 1 {
		callArgs[0] = reflect.ValueOf(&ctx).Elem()
	}

	if takesKwargs(typ) {
		kwargs := args
		if kwargs == nil {
			kwargs = map[string]any{}
		}
		callArgs[start] = reflect.ValueOf(kwargs)
	} else {
		for i, name := range d.ParameterNames() {
			paramType := typ.In(start + i)
			v, err := jsonx.ConvertTo(args[name], paramType)
			if err != nil {
				return nil, fmt.Errorf("%w: parameter %s: %w", ErrValidation, name, err)
			}
			callArgs[start+i] = v
		}
	}

	return unpackResults(typ, val.Call(callArgs))
}

func unpackResults(typ reflect.Type, results []reflect.Value) (any, error) {
	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		if reflectx.ReturnsError(typ) {
			return nil, asError(results[0])
		}
		return results[0].Interface(), nil
	default:
		if err := asError(results[1]); err != nil {
			return nil, err
		}
		return results[0].Interface(), nil
	}
}

func asError(v reflect.Value) error {
	if !v.IsValid() || v.IsNil() {
		return nil
	}
	err, ok := v.Interface().(error)
	if !ok {
		return errors.New("function returned a non-error value in the error position")
	}
	return err
}

// MarshalJSON adds the tool name and arguments to the base event document.
func (c *Call) MarshalJSON() ([]byte, error) {
	result, err := c.Base.MarshalJSON()
	if err != nil {
		return nil, err
	}
	result, err = sjson.SetBytes(result, "function", c.def.Name)
	if err != nil {
		return nil, err
	}
	args, err := json.Marshal(c.args)
	if err != nil {
		return nil, fmt.Errorf("marshal arguments: %w", err)
	}
	return sjson.SetRawBytes(result, "arguments", args)
}
