// Package registry is a concurrent name-keyed store.
package registry

import (
	"slices"

	"github.com/alphadose/haxmap"
)

type Registry[T any] interface {
	Get(name string) (T, bool)
	Add(name string, value T)
	// GetOrAdd stores the result of value unless name is taken. It returns
	// the stored value and whether it was already there.
	GetOrAdd(name string, value func() T) (T, bool)
	Del(name string) bool
	Names() []string
	Range(func(name string, value T) bool)
	Len() int
}

type registry[T any] struct {
	values *haxmap.Map[string, T]
}

func New[T any]() Registry[T] {
	return &registry[T]{
		values: haxmap.New[string, T](),
	}
}

func (r *registry[T]) Get(name string) (T, bool) {
	return r.values.Get(name)
}

func (r *registry[T]) Add(name string, value T) {
	r.values.Set(name, value)
}

func (r *registry[T]) GetOrAdd(name string, valueFn func() T) (T, bool) {
	return r.values.GetOrCompute(name, valueFn)
}

func (r *registry[T]) Del(name string) bool {
	if _, ok := r.values.Get(name); !ok {
		return false
	}
	r.values.Del(name)
	return true
}

// Names returns the registered names in lexical order.
func (r *registry[T]) Names() []string {
	names := make([]string, 0, r.values.Len())
	r.values.ForEach(func(name string, _ T) bool {
		names = append(names, name)
		return true
	})
	slices.Sort(names)
	return names
}

// Range visits entries in lexical name order until fn returns false.
func (r *registry[T]) Range(fn func(name string, value T) bool) {
	for _, name := range r.Names() {
		value, ok := r.values.Get(name)
		if !ok {
			continue
		}
		if !fn(name, value) {
			return
		}
	}
}

func (r *registry[T]) Len() int {
	return int(r.values.Len())
}
