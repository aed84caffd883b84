package progression

import (
	"testing"

	"github.com/casualjim/roost/element"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(n int) []uuid.UUID {
	out := make([]uuid.UUID, n)
	for i := range out {
		out[i] = element.NewID()
	}
	return out
}

func mustNew(t *testing.T, name string, refs ...any) *Progression {
	t.Helper()
	p, err := New(name, refs...)
	require.NoError(t, err)
	return p
}

func TestNew(t *testing.T) {
	t.Run("keeps the given order", func(t *testing.T) {
		in := ids(3)
		p := mustNew(t, "turns", in)
		assert.Equal(t, in, p.IDs())
		assert.Equal(t, "turns", p.Name())
		assert.Equal(t, 3, p.Len())
	})

	t.Run("rejects unresolvable input", func(t *testing.T) {
		_, err := New("", "not-an-id")
		assert.ErrorIs(t, err, element.ErrInvalidID)
	})

	t.Run("zero value is usable", func(t *testing.T) {
		var p Progression
		require.NoError(t, p.Append(element.NewID()))
		assert.Equal(t, 1, p.Len())
	})
}

func TestGetAndSlice(t *testing.T) {
	in := ids(4)
	p := mustNew(t, "p", in)

	got, err := p.Get(0)
	require.NoError(t, err)
	assert.Equal(t, in[0], got)

	got, err = p.Get(-1)
	require.NoError(t, err)
	assert.Equal(t, in[3], got)

	_, err = p.Get(4)
	assert.ErrorIs(t, err, element.ErrNotFound)

	s, err := p.Slice(1, 3)
	require.NoError(t, err)
	assert.Equal(t, in[1:3], s.IDs())
	assert.Equal(t, "p", s.Name())

	// slices are copies, not views
	require.NoError(t, s.Set(0, in[0]))
	got, _ = p.Get(1)
	assert.Equal(t, in[1], got)

	_, err = p.Slice(2, 2)
	assert.ErrorIs(t, err, element.ErrNotFound)
}

func TestSetAndDelete(t *testing.T) {
	in := ids(4)
	p := mustNew(t, "", in)
	repl := element.NewID()

	require.NoError(t, p.Set(1, repl))
	assert.Equal(t, []uuid.UUID{in[0], repl, in[2], in[3]}, p.IDs())

	assert.ErrorIs(t, p.Set(1, 12), element.ErrInvalidID)
	assert.ErrorIs(t, p.Set(10, repl), element.ErrNotFound)

	require.NoError(t, p.Delete(-1))
	assert.Equal(t, []uuid.UUID{in[0], repl, in[2]}, p.IDs())

	require.NoError(t, p.DeleteRange(0, 2))
	assert.Equal(t, []uuid.UUID{in[2]}, p.IDs())

	require.NoError(t, p.SetRange(0, 1, in[0], in[1]))
	assert.Equal(t, []uuid.UUID{in[0], in[1]}, p.IDs())
}

func TestAppendInsertExtend(t *testing.T) {
	in := ids(4)
	p := mustNew(t, "", in[0])

	require.NoError(t, p.Append(in[2]))
	require.NoError(t, p.Insert(1, in[1]))
	require.NoError(t, p.Insert(100, in[3]))
	assert.Equal(t, in, p.IDs())

	assert.ErrorIs(t, p.Append(in[0], "bad"), element.ErrInvalidID)
	assert.Equal(t, 4, p.Len(), "failed append must not partially apply")

	other := mustNew(t, "", in[0])
	require.NoError(t, p.Extend(other))
	assert.Equal(t, 2, p.Count(in[0]))

	assert.Error(t, p.Extend(nil))
}

func TestIncludeExclude(t *testing.T) {
	in := ids(3)
	p := mustNew(t, "", in[0])

	assert.True(t, p.Include(in[1], in[2]))
	assert.False(t, p.Include(in[1]), "already present")
	assert.False(t, p.Include("garbage"))
	assert.Equal(t, in, p.IDs())

	assert.True(t, p.Exclude(in[1]))
	assert.False(t, p.Exclude(in[1]))
	assert.Equal(t, []uuid.UUID{in[0], in[2]}, p.IDs())
}

func TestPopIndexRemove(t *testing.T) {
	in := ids(3)
	p := mustNew(t, "", in)

	first, err := p.PopLeft()
	require.NoError(t, err)
	assert.Equal(t, in[0], first)

	idx, err := p.Index(in[2])
	require.NoError(t, err)
	assert.Equal(t, 1, idx)

	_, err = p.Index(in[0])
	assert.ErrorIs(t, err, element.ErrNotFound)

	assert.ErrorIs(t, p.Remove(in[1], in[0]), element.ErrNotFound)
	assert.Equal(t, 2, p.Len(), "failed remove must not partially apply")

	require.NoError(t, p.Remove(in[1]))
	last, err := p.Pop(-1)
	require.NoError(t, err)
	assert.Equal(t, in[2], last)

	_, err = p.PopLeft()
	assert.ErrorIs(t, err, element.ErrNotFound)
}

func TestPlusMinusEqual(t *testing.T) {
	in := ids(3)
	p := mustNew(t, "a", in[0], in[1])

	sum, err := p.Plus(in[2])
	require.NoError(t, err)
	assert.Equal(t, in, sum.IDs())
	assert.Equal(t, 2, p.Len(), "operands are unchanged")

	diff, err := sum.Minus(in[1])
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{in[0], in[2]}, diff.IDs())

	assert.True(t, p.Equal(mustNew(t, "a", in[0], in[1])))
	assert.False(t, p.Equal(mustNew(t, "b", in[0], in[1])), "names differ")
	assert.False(t, p.Equal(mustNew(t, "a", in[1], in[0])), "order differs")

	rev := p.Reverse()
	assert.Equal(t, []uuid.UUID{in[1], in[0]}, rev.IDs())
}

func TestContainsAndAll(t *testing.T) {
	in := ids(2)
	p := mustNew(t, "", in)

	assert.True(t, p.Contains(in[0]))
	assert.True(t, p.Contains(in))
	assert.False(t, p.Contains(element.NewID()))
	assert.False(t, p.Contains(3.14))

	var seen []uuid.UUID
	for i, id := range p.All() {
		assert.Equal(t, len(seen), i)
		seen = append(seen, id)
	}
	assert.Equal(t, in, seen)

	p.Clear()
	assert.Zero(t, p.Len())
	assert.Equal(t, "Progression()", p.String())
}
