// Package progression implements an ordered, mutable sequence of identifiers.
//
// A Progression is list-like: it supports positional get/set/delete, slicing
// (which copies), appends and inserts. Alongside those it offers set-like
// Include/Exclude that report whether anything changed. Every input goes
// through element.ValidateOrder, so only values that resolve to an identifier
// can ever be stored.
//
// A Progression is not safe for concurrent use; owners such as pile.Pile and
// executor.Executor guard it with their own locks.
package progression

import (
	"fmt"
	"iter"
	"slices"
	"strings"

	"github.com/casualjim/roost/element"
	"github.com/google/uuid"
)

// Progression is an optionally named, ordered list of identifiers.
// The zero value is an empty, unnamed progression ready to use.
type Progression struct {
	name  string
	order []uuid.UUID
}

// New creates a progression named name holding refs in order.
func New(name string, refs ...any) (*Progression, error) {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return nil, err
	}
	return &Progression{name: name, order: ids}, nil
}

// FromIDs wraps a copy of ids without validation.
func FromIDs(name string, ids []uuid.UUID) *Progression {
	return &Progression{name: name, order: slices.Clone(ids)}
}

func (p *Progression) Name() string { return p.name }

func (p *Progression) SetName(name string) { p.name = name }

func (p *Progression) Len() int { return len(p.order) }

// IDs returns a copy of the identifiers in order.
func (p *Progression) IDs() []uuid.UUID { return slices.Clone(p.order) }

// All iterates positions and identifiers in order.
func (p *Progression) All() iter.Seq2[int, uuid.UUID] {
	return func(yield func(int, uuid.UUID) bool) {
		for i, id := range p.order {
			if !yield(i, id) {
				return
			}
		}
	}
}

// Contains reports whether every identifier referenced by ref is present.
// Unresolvable references are never contained.
func (p *Progression) Contains(ref any) bool {
	ids, err := element.ValidateOrder(ref)
	if err != nil || len(ids) == 0 {
		return false
	}
	for _, id := range ids {
		if !slices.Contains(p.order, id) {
			return false
		}
	}
	return true
}

func (p *Progression) normalize(i int) (int, error) {
	n := len(p.order)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("%w: index %d out of range [0,%d)", element.ErrNotFound, i, n)
	}
	return i, nil
}

func (p *Progression) bounds(start, end int) (int, int, error) {
	n := len(p.order)
	if start < 0 {
		start += n
	}
	if end < 0 {
		end += n
	}
	start = max(0, min(start, n))
	end = max(0, min(end, n))
	if start > end {
		return 0, 0, fmt.Errorf("%w: empty range [%d:%d]", element.ErrNotFound, start, end)
	}
	return start, end, nil
}

// Get returns the identifier at position i. Negative positions count from the end.
func (p *Progression) Get(i int) (uuid.UUID, error) {
	i, err := p.normalize(i)
	if err != nil {
		return uuid.Nil, err
	}
	return p.order[i], nil
}

// Slice returns a new progression with the identifiers in [start:end).
// Out of range bounds are clamped; an empty selection is an error.
func (p *Progression) Slice(start, end int) (*Progression, error) {
	start, end, err := p.bounds(start, end)
	if err != nil {
		return nil, err
	}
	if start == end {
		return nil, fmt.Errorf("%w: empty range [%d:%d]", element.ErrNotFound, start, end)
	}
	return FromIDs(p.name, p.order[start:end]), nil
}

// Set replaces the identifier at position i.
func (p *Progression) Set(i int, ref any) error {
	i, err := p.normalize(i)
	if err != nil {
		return err
	}
	id, err := element.ValidateID(ref)
	if err != nil {
		return err
	}
	p.order[i] = id
	return nil
}

// SetRange replaces the identifiers in [start:end) with refs.
func (p *Progression) SetRange(start, end int, refs ...any) error {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return err
	}
	start, end, err = p.bounds(start, end)
	if err != nil {
		return err
	}
	p.order = slices.Replace(p.order, start, end, ids...)
	return nil
}

// Delete removes the identifier at position i.
func (p *Progression) Delete(i int) error {
	i, err := p.normalize(i)
	if err != nil {
		return err
	}
	p.order = slices.Delete(p.order, i, i+1)
	return nil
}

// DeleteRange removes the identifiers in [start:end).
func (p *Progression) DeleteRange(start, end int) error {
	start, end, err := p.bounds(start, end)
	if err != nil {
		return err
	}
	p.order = slices.Delete(p.order, start, end)
	return nil
}

// Append adds refs at the end. Duplicates are allowed.
func (p *Progression) Append(refs ...any) error {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return err
	}
	p.order = append(p.order, ids...)
	return nil
}

// Insert adds refs before position i. Positions past the end append, negative
// positions count from the end.
func (p *Progression) Insert(i int, refs ...any) error {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return err
	}
	n := len(p.order)
	if i < 0 {
		i = max(0, i+n)
	}
	i = min(i, n)
	p.order = slices.Insert(p.order, i, ids...)
	return nil
}

// Extend appends every identifier of other.
func (p *Progression) Extend(other *Progression) error {
	if other == nil {
		return fmt.Errorf("%w: nil progression", element.ErrInvalidID)
	}
	p.order = append(p.order, other.order...)
	return nil
}

// Include appends the referenced identifiers that aren't present yet.
// It reports whether the progression changed; unresolvable input changes nothing.
func (p *Progression) Include(refs ...any) bool {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return false
	}
	changed := false
	for _, id := range ids {
		if !slices.Contains(p.order, id) {
			p.order = append(p.order, id)
			changed = true
		}
	}
	return changed
}

// Exclude removes every occurrence of the referenced identifiers and reports
// whether anything was removed.
func (p *Progression) Exclude(refs ...any) bool {
	ids, err := element.ValidateOrder(refs...)
	if err != nil || len(ids) == 0 {
		return false
	}
	before := len(p.order)
	p.order = slices.DeleteFunc(p.order, func(id uuid.UUID) bool {
		return slices.Contains(ids, id)
	})
	return len(p.order) != before
}

// Pop removes and returns the identifier at position i.
func (p *Progression) Pop(i int) (uuid.UUID, error) {
	i, err := p.normalize(i)
	if err != nil {
		return uuid.Nil, err
	}
	id := p.order[i]
	p.order = slices.Delete(p.order, i, i+1)
	return id, nil
}

// PopLeft removes and returns the first identifier.
func (p *Progression) PopLeft() (uuid.UUID, error) {
	if len(p.order) == 0 {
		return uuid.Nil, fmt.Errorf("%w: progression is empty", element.ErrNotFound)
	}
	return p.Pop(0)
}

// Index returns the position of the first occurrence of ref.
func (p *Progression) Index(ref any) (int, error) {
	id, err := element.ValidateID(ref)
	if err != nil {
		return -1, err
	}
	i := slices.Index(p.order, id)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s", element.ErrNotFound, id)
	}
	return i, nil
}

// Remove deletes the first occurrence of each referenced identifier. All of
// them must be present, otherwise nothing is removed.
func (p *Progression) Remove(refs ...any) error {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return err
	}
	next := slices.Clone(p.order)
	for _, id := range ids {
		i := slices.Index(next, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", element.ErrNotFound, id)
		}
		next = slices.Delete(next, i, i+1)
	}
	p.order = next
	return nil
}

// Count returns how many times ref occurs.
func (p *Progression) Count(ref any) int {
	id, err := element.ValidateID(ref)
	if err != nil {
		return 0
	}
	n := 0
	for _, v := range p.order {
		if v == id {
			n++
		}
	}
	return n
}

func (p *Progression) Clear() { p.order = nil }

// Reverse returns a reversed copy.
func (p *Progression) Reverse() *Progression {
	out := FromIDs(p.name, p.order)
	slices.Reverse(out.order)
	return out
}

// Clone returns an independent copy.
func (p *Progression) Clone() *Progression {
	return FromIDs(p.name, p.order)
}

// Plus returns a new progression with refs appended.
func (p *Progression) Plus(refs ...any) (*Progression, error) {
	out := p.Clone()
	if err := out.Append(refs...); err != nil {
		return nil, err
	}
	return out, nil
}

// Minus returns a new progression without any occurrence of refs.
func (p *Progression) Minus(refs ...any) (*Progression, error) {
	ids, err := element.ValidateOrder(refs...)
	if err != nil {
		return nil, err
	}
	out := p.Clone()
	out.order = slices.DeleteFunc(out.order, func(id uuid.UUID) bool {
		return slices.Contains(ids, id)
	})
	return out, nil
}

// Equal compares name and order.
func (p *Progression) Equal(other *Progression) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.name == other.name && slices.Equal(p.order, other.order)
}

func (p *Progression) String() string {
	var b strings.Builder
	b.WriteString("Progression(")
	if p.name != "" {
		b.WriteString(p.name)
		b.WriteString(": ")
	}
	for i, id := range p.order {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(id.String())
	}
	b.WriteString(")")
	return b.String()
}
