package pile

import (
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/casualjim/roost/element"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

type note struct {
	Key  uuid.UUID `json:"id"`
	Text string    `json:"text"`
}

func (n *note) ID() uuid.UUID { return n.Key }

type memo struct{ Key uuid.UUID }

func (m memo) ID() uuid.UUID { return m.Key }

func newNote(text string) *note { return &note{Key: element.NewID(), Text: text} }

func notes(n int) []*note {
	out := make([]*note, n)
	for i := range out {
		out[i] = newNote(string(rune('a' + i)))
	}
	return out
}

func idsOf[T element.Element](items ...T) []uuid.UUID {
	out := make([]uuid.UUID, len(items))
	for i, item := range items {
		out[i] = item.ID()
	}
	return out
}

func TestIncludeExcludeOrder(t *testing.T) {
	a, b, c := newNote("a"), newNote("b"), newNote("c")
	p := New[*note]()

	assert.True(t, p.Include(a, b, c))
	assert.True(t, p.Exclude(b))
	assert.Equal(t, idsOf(a, c), p.Keys())

	assert.False(t, p.Include(a), "including a present item is a no-op")
	assert.Equal(t, idsOf(a, c), p.Keys())
	assert.Equal(t, 2, p.Len())

	assert.False(t, p.Exclude(b), "excluding an absent item is a no-op")
	assert.False(t, p.Exclude("not-an-id"))
}

func TestAppend(t *testing.T) {
	in := notes(3)
	p, err := From(in[:2], Name("inbox"))
	require.NoError(t, err)
	assert.Equal(t, "inbox", p.Name())

	err = p.Append(in[2], in[0])
	require.ErrorIs(t, err, element.ErrExists)
	assert.Equal(t, 2, p.Len(), "failed append must not partially apply")

	require.NoError(t, p.Append(in[2]))
	assert.Equal(t, idsOf(in...), p.Keys())

	_, err = From([]*note{in[0], in[0]})
	assert.ErrorIs(t, err, element.ErrExists)
}

func TestInsertAndIndex(t *testing.T) {
	in := notes(3)
	p, err := From([]*note{in[0], in[2]})
	require.NoError(t, err)

	require.NoError(t, p.Insert(1, in[1]))
	assert.Equal(t, idsOf(in...), p.Keys())
	assert.ErrorIs(t, p.Insert(0, in[1]), element.ErrExists)

	last, err := p.Index(-1)
	require.NoError(t, err)
	assert.Same(t, in[2], last)

	_, err = p.Index(3)
	assert.ErrorIs(t, err, element.ErrNotFound)
}

func TestLookup(t *testing.T) {
	in := notes(2)
	p, err := From(in)
	require.NoError(t, err)
	missing := newNote("missing")

	got, err := p.At(in[1].ID())
	require.NoError(t, err)
	assert.Same(t, in[1], got)

	got, err = p.At(in[0].ID().String())
	require.NoError(t, err)
	assert.Same(t, in[0], got)

	_, err = p.At(missing)
	assert.ErrorIs(t, err, element.ErrNotFound)
	_, err = p.At(42)
	assert.ErrorIs(t, err, element.ErrNotFound)

	assert.Same(t, missing, p.Get(missing, missing))
	assert.Same(t, in[0], p.Get(in[0], nil))

	assert.True(t, p.Contains(in[0]))
	assert.True(t, p.Contains(idsOf(in...)))
	assert.False(t, p.Contains(missing))
	assert.False(t, p.Contains(nil))
}

func TestPopRemoveClear(t *testing.T) {
	in := notes(3)
	p, err := From(in)
	require.NoError(t, err)

	first, err := p.PopLeft()
	require.NoError(t, err)
	assert.Same(t, in[0], first)

	got, err := p.Pop(in[2])
	require.NoError(t, err)
	assert.Same(t, in[2], got)

	assert.ErrorIs(t, p.Remove(in[2]), element.ErrNotFound)
	require.NoError(t, p.Remove(in[1]))
	assert.True(t, p.IsEmpty())

	_, err = p.PopLeft()
	assert.ErrorIs(t, err, element.ErrNotFound)

	require.NoError(t, p.Append(in...))
	p.Clear()
	assert.Zero(t, p.Len())
	assert.Empty(t, p.Keys())
}

func TestStrictTyping(t *testing.T) {
	n := newNote("n")
	m := memo{Key: element.NewID()}

	t.Run("strict requires the exact type", func(t *testing.T) {
		p := New[element.Element](ItemType[*note](), Strict(true))
		assert.True(t, p.StrictType())
		assert.Equal(t, reflect.TypeFor[*note](), p.ItemType())

		require.NoError(t, p.Append(n))
		assert.ErrorIs(t, p.Append(m), element.ErrTypeMismatch)
		assert.False(t, p.Include(m))
		assert.Equal(t, 1, p.Len())
	})

	t.Run("lenient accepts assignable types", func(t *testing.T) {
		p := New[element.Element](ItemType[element.Element]())
		require.NoError(t, p.Append(n, m))
		assert.Equal(t, 2, p.Len())
	})

	t.Run("strict rejects implementations of a declared interface", func(t *testing.T) {
		p := New[element.Element](ItemType[element.Element](), Strict(true))
		assert.ErrorIs(t, p.Append(n), element.ErrTypeMismatch)
	})
}

func TestSetAlgebra(t *testing.T) {
	in := notes(4)
	left, err := From(in[:3])
	require.NoError(t, err)
	right, err := From(in[1:])
	require.NoError(t, err)

	union, err := left.Union(right)
	require.NoError(t, err)
	assert.Equal(t, idsOf(in...), union.Keys())

	assert.Equal(t, idsOf(in[0]), left.Difference(right).Keys())
	assert.Equal(t, idsOf(in[1], in[2]), left.Intersection(right).Keys())

	xor, err := left.SymmetricDifference(right)
	require.NoError(t, err)
	assert.Equal(t, idsOf(in[0], in[3]), xor.Keys())

	// operands are untouched
	assert.Equal(t, idsOf(in[:3]...), left.Keys())
	assert.Equal(t, idsOf(in[1:]...), right.Keys())
}

func TestFilterAndAll(t *testing.T) {
	in := notes(4)
	p, err := From(in)
	require.NoError(t, err)

	picked := p.Filter(func(n *note) bool { return n.Text == "a" || n.Text == "c" })
	assert.Equal(t, idsOf(in[0], in[2]), picked.Keys())

	var seen []uuid.UUID
	for id, item := range p.All() {
		assert.Equal(t, id, item.ID())
		seen = append(seen, id)
		// iteration walks a snapshot
		p.Exclude(id)
	}
	assert.Equal(t, idsOf(in...), seen)
	assert.Zero(t, p.Len())
}

func TestMarshalJSON(t *testing.T) {
	in := notes(2)
	p, err := From(in, Name("dump"))
	require.NoError(t, err)

	b, err := json.Marshal(p)
	require.NoError(t, err)

	assert.Equal(t, "dump", gjson.GetBytes(b, "name").String())
	assert.Equal(t, in[0].ID().String(), gjson.GetBytes(b, "order.0").String())
	assert.Equal(t, "b", gjson.GetBytes(b, "items.1.text").String())

	b, err = json.Marshal(New[*note]())
	require.NoError(t, err)
	assert.True(t, gjson.GetBytes(b, "order").IsArray())
}

func TestConcurrentMutation(t *testing.T) {
	p := New[*note]()
	in := notes(64)

	var wg sync.WaitGroup
	for _, n := range in {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.Include(n)
		}()
		go func() {
			defer wg.Done()
			_ = p.Keys()
			_ = p.Values()
		}()
	}
	wg.Wait()

	require.Equal(t, len(in), p.Len())
	keys := p.Keys()
	assert.ElementsMatch(t, idsOf(in...), keys)
	for _, id := range keys {
		assert.True(t, p.Contains(id))
	}
}

func TestConcurrentSetAlgebra(t *testing.T) {
	in := notes(8)
	left, err := From(in[:5])
	require.NoError(t, err)
	right, err := From(in[3:])
	require.NoError(t, err)
	extra := newNote("z")

	stop := make(chan struct{})
	var writers sync.WaitGroup
	for _, p := range []*Pile[*note]{left, right} {
		writers.Add(1)
		go func() {
			defer writers.Done()
			for {
				select {
				case <-stop:
					return
				default:
					p.Include(extra)
					p.Exclude(extra)
				}
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var readers sync.WaitGroup
		readers.Add(2)
		go func() {
			defer readers.Done()
			for range 500 {
				_ = left.Intersection(left)
				_ = left.Difference(right)
			}
		}()
		go func() {
			defer readers.Done()
			for range 500 {
				_ = right.Difference(left)
				_, _ = right.SymmetricDifference(left)
			}
		}()
		readers.Wait()
	}()

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("set operations blocked against concurrent writers")
	}
	close(stop)
	writers.Wait()

	assert.Equal(t, idsOf(in[:5]...), left.Intersection(left).Keys())
	assert.Equal(t, idsOf(in[:3]...), left.Difference(right).Keys())
}

func TestFilterMayUseThePile(t *testing.T) {
	in := notes(3)
	p, err := From(in)
	require.NoError(t, err)

	picked := p.Filter(func(n *note) bool {
		idx, err := p.Index(0)
		return err == nil && idx.ID() != n.ID() && p.Contains(n.ID())
	})
	assert.Equal(t, idsOf(in[1:]...), picked.Keys())
}
