package tool

import (
	"context"
	"fmt"

	"github.com/casualjim/roost/event"
	"github.com/casualjim/roost/internal/registry"
	"github.com/invopop/jsonschema"
)

// FunctionSchema is the advertised shape of a registered tool.
type FunctionSchema struct {
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	Parameters  *jsonschema.Schema `json:"parameters"`
}

// Registry maps tool names to definitions. It is safe for concurrent use.
type Registry struct {
	tools registry.Registry[Definition]
}

func NewRegistry(defs ...Definition) (*Registry, error) {
	r := &Registry{tools: registry.New[Definition]()}
	for _, def := range defs {
		if err := r.Register(def, false); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds def under its name. A taken name fails with
// ErrAlreadyRegistered unless update is set.
func (r *Registry) Register(def Definition, update bool) error {
	if def.Name == "" {
		return fmt.Errorf("tool name cannot be empty")
	}
	if update {
		r.tools.Add(def.Name, def)
		return nil
	}
	if _, loaded := r.tools.GetOrAdd(def.Name, func() Definition { return def }); loaded {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, def.Name)
	}
	return nil
}

func (r *Registry) Get(name string) (Definition, bool) { return r.tools.Get(name) }

func (r *Registry) Has(name string) bool {
	_, ok := r.tools.Get(name)
	return ok
}

// Unregister removes name and reports whether it was registered.
func (r *Registry) Unregister(name string) bool { return r.tools.Del(name) }

// Names returns the registered names in lexical order.
func (r *Registry) Names() []string { return r.tools.Names() }

// Schemas describes every registered tool, ordered by name.
func (r *Registry) Schemas() []FunctionSchema {
	out := make([]FunctionSchema, 0, r.tools.Len())
	r.tools.Range(func(name string, def Definition) bool {
		schema := def.Schema
		if schema == nil {
			_, schema = def.ToNameAndSchema()
		}
		out = append(out, FunctionSchema{Name: name, Description: def.Description, Parameters: schema})
		return true
	})
	return out
}

// Match creates a call of the named tool.
func (r *Registry) Match(name string, args map[string]any) (*Call, error) {
	def, ok := r.tools.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return NewCall(def, args)
}

// MatchJSON creates a call of the named tool from JSON arguments.
func (r *Registry) MatchJSON(name string, raw []byte) (*Call, error) {
	def, ok := r.tools.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return CallFromJSON(def, raw)
}

// Invoke calls the named tool synchronously and returns the call, whose
// execution record holds the outcome.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (*Call, error) {
	call, err := r.Match(name, args)
	if err != nil {
		return nil, err
	}
	call.Invoke(ctx)
	return call, nil
}

var _ event.Event = (*Call)(nil)
