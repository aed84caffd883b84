// Package pile provides a concurrency-safe, insertion-ordered collection of
// uniquely identified items.
//
// A Pile pairs an id→item map with a progression.Progression recording
// order. Both are mutated together under a single write lock, so the
// progression's identifiers always equal the map's keys and readers never
// observe one updated without the other.
//
// Typing:
//
// The type parameter already restricts what a Pile can hold at compile time.
// When T is an interface, a Pile can additionally declare a runtime item type:
// in non-strict mode items must be assignable to it, in strict mode their
// dynamic type must match it exactly. Violations fail with
// element.ErrTypeMismatch.
//
// Example:
//
//	p := pile.New[event.Event](pile.ItemType[*tool.Call](), pile.Strict(true))
//	if err := p.Append(call); err != nil {
//	    return err
//	}
//	for id, ev := range p.All() {
//	    fmt.Println(id, ev.Status())
//	}
package pile

import (
	"fmt"
	"iter"
	"reflect"
	"sync"

	"github.com/casualjim/roost/element"
	"github.com/casualjim/roost/progression"
	"github.com/casualjim/roost/pkg/stdx"
	"github.com/fogfish/opts"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Config holds the construction settings of a Pile.
type Config struct {
	Name     string
	ItemType reflect.Type
	Strict   bool
}

type Option = opts.Option[Config]

var (
	// Name sets the pile's name, stored on its progression.
	Name = opts.ForName[Config, string]("Name")
	// Strict requires items to match the declared item type exactly.
	Strict = opts.ForName[Config, bool]("Strict")
	// ItemTypeOf declares the runtime item type from a reflect.Type.
	ItemTypeOf = opts.ForName[Config, reflect.Type]("ItemType")
)

// ItemType declares E as the runtime item type.
func ItemType[E any]() Option {
	return opts.Type[Config](func(c *Config) error {
		c.ItemType = reflect.TypeFor[E]()
		return nil
	})
}

// Pile is an ordered, unique-keyed collection safe for concurrent use.
type Pile[T element.Element] struct {
	mu       sync.RWMutex
	items    map[uuid.UUID]T
	order    *progression.Progression
	itemType reflect.Type
	strict   bool
}

// New creates an empty pile.
func New[T element.Element](options ...Option) *Pile[T] {
	var cfg Config
	// options only assign fields, they can't fail
	_ = opts.Apply(&cfg, options)
	return &Pile[T]{
		items:    make(map[uuid.UUID]T),
		order:    progression.FromIDs(cfg.Name, nil),
		itemType: cfg.ItemType,
		strict:   cfg.Strict,
	}
}

// From creates a pile holding items in order. Duplicates and type violations fail.
func From[T element.Element](items []T, options ...Option) (*Pile[T], error) {
	p := New[T](options...)
	if err := p.Append(items...); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pile[T]) clone(name string, items []T) *Pile[T] {
	out := &Pile[T]{
		items:    make(map[uuid.UUID]T, len(items)),
		order:    progression.FromIDs(name, nil),
		itemType: p.itemType,
		strict:   p.strict,
	}
	for _, item := range items {
		id := item.ID()
		if _, ok := out.items[id]; ok {
			continue
		}
		out.items[id] = item
		_ = out.order.Append(id)
	}
	return out
}

// ItemType returns the declared runtime item type, nil when none was declared.
func (p *Pile[T]) ItemType() reflect.Type { return p.itemType }

func (p *Pile[T]) StrictType() bool { return p.strict }

func (p *Pile[T]) Name() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.order.Name()
}

func (p *Pile[T]) SetName(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.order.SetName(name)
}

func (p *Pile[T]) checkType(item T) error {
	if p.itemType == nil {
		return nil
	}
	actual := reflect.TypeOf(item)
	if actual == nil {
		return fmt.Errorf("%w: nil item", element.ErrTypeMismatch)
	}
	if p.strict {
		if actual != p.itemType {
			return fmt.Errorf("%w: expected exactly %s, got %s", element.ErrTypeMismatch, p.itemType, actual)
		}
		return nil
	}
	if !actual.AssignableTo(p.itemType) {
		return fmt.Errorf("%w: %s is not assignable to %s", element.ErrTypeMismatch, actual, p.itemType)
	}
	return nil
}

// validate checks every item and returns their ids. It fails on type
// violations, invalid ids and duplicates within items.
func (p *Pile[T]) validate(items []T) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(items))
	seen := make(map[uuid.UUID]struct{}, len(items))
	for _, item := range items {
		if err := p.checkType(item); err != nil {
			return nil, err
		}
		id, err := element.ValidateID(item)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s given twice", element.ErrExists, id)
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids, nil
}

// Include adds the items that aren't present yet and reports whether the
// pile changed. Items that fail validation make the whole call a no-op.
func (p *Pile[T]) Include(items ...T) bool {
	ids, err := p.validate(items)
	if err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	changed := false
	for i, id := range ids {
		if _, ok := p.items[id]; ok {
			continue
		}
		p.items[id] = items[i]
		_ = p.order.Append(id)
		changed = true
	}
	return changed
}

// Append adds items at the end. Unlike Include, an item that is already
// present fails the call with element.ErrExists and nothing is added.
func (p *Pile[T]) Append(items ...T) error {
	ids, err := p.validate(items)
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range ids {
		if _, ok := p.items[id]; ok {
			return fmt.Errorf("%w: %s", element.ErrExists, id)
		}
	}
	for i, id := range ids {
		p.items[id] = items[i]
	}
	return p.order.Append(ids)
}

// Insert places item before position index.
func (p *Pile[T]) Insert(index int, item T) error {
	ids, err := p.validate([]T{item})
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.items[ids[0]]; ok {
		return fmt.Errorf("%w: %s", element.ErrExists, ids[0])
	}
	if err := p.order.Insert(index, ids[0]); err != nil {
		return err
	}
	p.items[ids[0]] = item
	return nil
}

// Exclude removes the referenced items that are present and reports whether
// the pile changed.
func (p *Pile[T]) Exclude(refs ...any) bool {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return false
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	var gone []uuid.UUID
	for _, id := range ids {
		if _, ok := p.items[id]; ok {
			delete(p.items, id)
			gone = append(gone, id)
		}
	}
	if len(gone) == 0 {
		return false
	}
	p.order.Exclude(gone)
	return true
}

// Remove deletes the referenced item, failing with element.ErrNotFound when absent.
func (p *Pile[T]) Remove(ref any) error {
	_, err := p.Pop(ref)
	return err
}

// Pop removes and returns the referenced item.
func (p *Pile[T]) Pop(ref any) (T, error) {
	id, err := element.ValidateID(ref)
	if err != nil {
		return stdx.Zero[T](), err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	item, ok := p.items[id]
	if !ok {
		return stdx.Zero[T](), fmt.Errorf("%w: %s", element.ErrNotFound, id)
	}
	delete(p.items, id)
	p.order.Exclude(id)
	return item, nil
}

// PopLeft removes and returns the oldest item.
func (p *Pile[T]) PopLeft() (T, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id, err := p.order.PopLeft()
	if err != nil {
		return stdx.Zero[T](), err
	}
	item := p.items[id]
	delete(p.items, id)
	return item, nil
}

func (p *Pile[T]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	clear(p.items)
	p.order.Clear()
}

// Get returns the referenced item, or def when it is absent or ref is invalid.
func (p *Pile[T]) Get(ref any, def T) T {
	item, err := p.At(ref)
	if err != nil {
		return def
	}
	return item
}

// At returns the referenced item or an element.ErrNotFound error.
func (p *Pile[T]) At(ref any) (T, error) {
	id, err := element.ValidateID(ref)
	if err != nil {
		return stdx.Zero[T](), fmt.Errorf("%w: %w", element.ErrNotFound, err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	item, ok := p.items[id]
	if !ok {
		return stdx.Zero[T](), fmt.Errorf("%w: %s", element.ErrNotFound, id)
	}
	return item, nil
}

// Index returns the item at position i; negative positions count from the end.
func (p *Pile[T]) Index(i int) (T, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	id, err := p.order.Get(i)
	if err != nil {
		return stdx.Zero[T](), err
	}
	return p.items[id], nil
}

// Contains reports whether every referenced item is present.
func (p *Pile[T]) Contains(ref any) bool {
	ids, err := element.ValidateOrder(ref)
	if err != nil || len(ids) == 0 {
		return false
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, id := range ids {
		if _, ok := p.items[id]; !ok {
			return false
		}
	}
	return true
}

func (p *Pile[T]) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.items)
}

func (p *Pile[T]) IsEmpty() bool { return p.Len() == 0 }

// Keys returns the identifiers in order.
func (p *Pile[T]) Keys() []uuid.UUID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.order.IDs()
}

// IDs is Keys; it lets a pile be used as a reference list.
func (p *Pile[T]) IDs() []uuid.UUID { return p.Keys() }

// Values returns the items in order.
func (p *Pile[T]) Values() []T {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.valuesLocked()
}

func (p *Pile[T]) valuesLocked() []T {
	out := make([]T, 0, len(p.items))
	for _, id := range p.order.All() {
		out = append(out, p.items[id])
	}
	return out
}

// All iterates a snapshot of the pile in order; mutations made while
// iterating don't affect the sequence.
func (p *Pile[T]) All() iter.Seq2[uuid.UUID, T] {
	values := p.Values()
	return func(yield func(uuid.UUID, T) bool) {
		for _, item := range values {
			if !yield(item.ID(), item) {
				return
			}
		}
	}
}

// Progression returns a copy of the pile's order.
func (p *Pile[T]) Progression() *progression.Progression {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.order.Clone()
}

// snapshot copies the name and the items in order.
func (p *Pile[T]) snapshot() (string, []T) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.order.Name(), p.valuesLocked()
}

// keySet copies the identifiers held by p.
func (p *Pile[T]) keySet() map[uuid.UUID]struct{} {
	p.mu.RLock()
	defer p.mu.RUnlock()
	set := make(map[uuid.UUID]struct{}, len(p.items))
	for id := range p.items {
		set[id] = struct{}{}
	}
	return set
}

// Filter returns a new pile with the items matching keep, in order. keep
// runs on a snapshot without holding the pile's lock, so it may use the pile.
func (p *Pile[T]) Filter(keep func(T) bool) *Pile[T] {
	name, values := p.snapshot()
	matched := values[:0]
	for _, item := range values {
		if keep(item) {
			matched = append(matched, item)
		}
	}
	return p.clone(name, matched)
}

// Union returns a new pile with the items of p followed by the items of
// other that p doesn't hold. Items of other violating p's declared type fail
// the operation.
func (p *Pile[T]) Union(other *Pile[T]) (*Pile[T], error) {
	theirs := other.Values()
	for _, item := range theirs {
		if err := p.checkType(item); err != nil {
			return nil, err
		}
	}
	name, mine := p.snapshot()
	return p.clone(name, append(mine, theirs...)), nil
}

func (p *Pile[T]) selectBy(other *Pile[T], held bool) *Pile[T] {
	theirs := other.keySet()
	return p.Filter(func(item T) bool {
		_, ok := theirs[item.ID()]
		return ok == held
	})
}

// Difference returns a new pile with the items of p that other doesn't hold.
func (p *Pile[T]) Difference(other *Pile[T]) *Pile[T] {
	return p.selectBy(other, false)
}

// Intersection returns a new pile with the items of p that other also holds.
func (p *Pile[T]) Intersection(other *Pile[T]) *Pile[T] {
	return p.selectBy(other, true)
}

// SymmetricDifference returns a new pile with the items held by exactly one
// of the two piles, those of p first.
func (p *Pile[T]) SymmetricDifference(other *Pile[T]) (*Pile[T], error) {
	mine := p.Difference(other).Values()
	theirs := other.Difference(p).Values()
	for _, item := range theirs {
		if err := p.checkType(item); err != nil {
			return nil, err
		}
	}
	return p.clone(p.Name(), append(mine, theirs...)), nil
}

type pileJSON[T any] struct {
	Name  string      `json:"name,omitempty"`
	Order []uuid.UUID `json:"order"`
	Items []T         `json:"items"`
}

// MarshalJSON dumps the pile's name, order and items.
func (p *Pile[T]) MarshalJSON() ([]byte, error) {
	p.mu.RLock()
	doc := pileJSON[T]{
		Name:  p.order.Name(),
		Order: p.order.IDs(),
		Items: p.valuesLocked(),
	}
	p.mu.RUnlock()
	if doc.Order == nil {
		doc.Order = []uuid.UUID{}
	}
	return json.Marshal(doc)
}
