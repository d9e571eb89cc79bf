package cypher

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

func TestContext_BindAndGet(t *testing.T) {
	ctx := NewContext(storage.NewMemoryEngine())
	defer ctx.Destroy()

	require.NoError(t, ctx.Bind("n", value.Node(7)))
	got, err := ctx.Get("n")
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Node(7), got))

	// Rebinding replaces.
	require.NoError(t, ctx.Bind("n", value.Int(1)))
	got, err = ctx.Get("n")
	require.NoError(t, err)
	assert.Equal(t, value.KindInt, got.Kind())

	_, err = ctx.Get("missing")
	assert.ErrorIs(t, err, qerr.ErrNotFound)

	assert.ErrorIs(t, ctx.Bind("", value.Null()), qerr.ErrMisuse)
}

func TestContext_BindingsAreCopies(t *testing.T) {
	ctx := NewContext(nil)
	list := value.NewList(value.Int(1), value.Int(2))
	require.NoError(t, ctx.Bind("xs", list))

	got, _ := ctx.Get("xs")
	got = got.Append(value.Int(3))
	assert.Equal(t, 3, got.Len())

	again, _ := ctx.Get("xs")
	assert.Equal(t, 2, again.Len())
}

func TestContext_Names(t *testing.T) {
	ctx := NewContext(nil)
	for _, name := range []string{"b", "a", "c"} {
		require.NoError(t, ctx.Bind(name, value.Int(1)))
	}
	assert.Equal(t, []string{"a", "b", "c"}, ctx.Names())

	ctx.Unbind("b")
	ctx.Unbind("nope")
	assert.Equal(t, []string{"a", "c"}, ctx.Names())

	_, ok := ctx.Lookup("a")
	assert.True(t, ok)
	_, ok = ctx.Lookup("b")
	assert.False(t, ok)
}

func TestContext_ErrorKeepsFirst(t *testing.T) {
	ctx := NewContext(nil)
	assert.Equal(t, qerr.KindUnknown, ctx.ErrKind())

	first := qerr.New(qerr.KindTypeMismatch, "eval", "first")
	ctx.SetError(first)
	ctx.SetError(errors.New("second"))
	ctx.SetError(nil)

	assert.Same(t, first, ctx.Err())
	assert.Equal(t, qerr.KindTypeMismatch, ctx.ErrKind())

	ctx.ClearError()
	assert.NoError(t, ctx.Err())
}

func TestContext_Destroy(t *testing.T) {
	ctx := NewContext(nil)
	require.NoError(t, ctx.Bind("x", value.Int(1)))
	ctx.RowsProduced = 3
	ctx.RowsProcessed = 9
	ctx.SetError(qerr.ErrRange)

	ctx.Destroy()

	assert.Empty(t, ctx.Names())
	assert.Zero(t, ctx.RowsProduced)
	assert.Zero(t, ctx.RowsProcessed)
	assert.NoError(t, ctx.Err())
}

// ============================================================================
// Row
// ============================================================================

func TestRow_GetFirstMatch(t *testing.T) {
	r := NewRow(Col("a", value.Int(1)), Col("a", value.Int(2)), Col("b", value.String("x")))
	assert.Equal(t, 3, r.Len())
	assert.Equal(t, []string{"a", "a", "b"}, r.Names())

	v, ok := r.Get("a")
	require.True(t, ok)
	i, _ := v.AsInt()
	assert.Equal(t, int64(1), i)

	_, ok = r.Get("zzz")
	assert.False(t, ok)

	var nilRow *Row
	_, ok = nilRow.Get("a")
	assert.False(t, ok)
	assert.Zero(t, nilRow.Len())
}

func TestRow_CloneAndJSON(t *testing.T) {
	r := NewRow(Col("col0", value.Int(1)), Col("name", value.String("Al\"ice")))
	c := r.Clone()
	r.Reset()

	assert.Zero(t, r.Len())
	assert.Equal(t, `{"col0":1,"name":"Al\"ice"}`, c.JSON())

	r.CopyFrom(c)
	assert.Equal(t, c.JSON(), r.JSON())
}
