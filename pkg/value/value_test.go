package value

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphexec/pkg/qerr"
)

// ============================================================================
// Construction and copy
// ============================================================================

func TestValue_ZeroIsNull(t *testing.T) {
	var v Value
	assert.True(t, v.IsNull())
	assert.Equal(t, KindNull, v.Kind())
	assert.Equal(t, "null", v.String())
}

func TestValue_Accessors(t *testing.T) {
	b, ok := Bool(true).AsBool()
	assert.True(t, ok)
	assert.True(t, b)

	i, ok := Int(42).AsInt()
	assert.True(t, ok)
	assert.Equal(t, int64(42), i)

	f, ok := Int(3).AsFloat()
	assert.True(t, ok, "integers widen to float")
	assert.Equal(t, 3.0, f)

	_, ok = String("x").AsInt()
	assert.False(t, ok)

	id, ok := Node(7).ID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)

	id, ok = Rel(9).ID()
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
}

func TestValue_CopyIsIndependent(t *testing.T) {
	orig := NewMap(
		P("name", String("Alice")),
		P("tags", NewList(String("a"), NewList(Int(1)))),
	)
	cp := orig.Copy()

	// Mutate the copy through Set on an extracted element.
	tags, _ := cp.Get("tags")
	tags.Set(String("replaced"))
	cp.Reset()

	assert.True(t, cp.IsNull())
	got, ok := orig.Get("tags")
	require.True(t, ok)
	assert.Equal(t, `["a",[1]]`, got.JSON())
	assert.Equal(t, `{"name":"Alice","tags":["a",[1]]}`, orig.JSON())
}

func TestValue_ElemsReturnsCopies(t *testing.T) {
	inner := NewList(Int(1))
	list := NewList(inner)

	elems := list.Elems()
	elems[0] = String("changed")

	first, ok := list.Index(0)
	require.True(t, ok)
	assert.True(t, Equal(inner, first))
}

func TestValue_SetReplacesPayload(t *testing.T) {
	v := NewList(Int(1), Int(2))
	v.Set(String("now a string"))
	assert.Equal(t, KindString, v.Kind())
	assert.Equal(t, 0, len(v.Elems()))
}

func TestNewMap_DuplicateKeyOverwrites(t *testing.T) {
	m := NewMap(P("a", Int(1)), P("b", Int(2)), P("a", Int(3)))
	assert.Equal(t, []string{"a", "b"}, m.Keys())
	a, _ := m.Get("a")
	assert.Equal(t, Int(3), a)
}

func TestValue_WithAndAppend(t *testing.T) {
	m := NewMap(P("a", Int(1)))
	m2 := m.With("b", Int(2))
	assert.Equal(t, 1, m.Len())
	assert.Equal(t, []string{"a", "b"}, m2.Keys())

	l := NewList(Int(1))
	l2 := l.Append(Int(2), Int(3))
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, 3, l2.Len())
}

func TestValue_String(t *testing.T) {
	tests := []struct {
		v    Value
		want string
	}{
		{Null(), "null"},
		{Bool(false), "false"},
		{Int(-3), "-3"},
		{Float(2), "2.0"},
		{Float(0.5), "0.5"},
		{String("plain"), "plain"},
		{Node(1), "Node(1)"},
		{Rel(2), "Relationship(2)"},
		{NewList(Int(1), String("x")), `[1, "x"]`},
		{NewMap(P("k", Bool(true))), "{k: true}"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.v.String())
	}
}

// ============================================================================
// Compare / Equal
// ============================================================================

func TestCompare_NullOrdering(t *testing.T) {
	c, err := Compare(Null(), Null())
	require.NoError(t, err)
	assert.Equal(t, 0, c)

	for _, v := range []Value{Bool(false), Int(math.MinInt64), String(""), NewList()} {
		c, err = Compare(Null(), v)
		require.NoError(t, err)
		assert.Equal(t, -1, c, "null sorts before %v", v)

		c, err = Compare(v, Null())
		require.NoError(t, err)
		assert.Equal(t, 1, c)
	}
}

func TestCompare_WithinKind(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want int
	}{
		{"ints", Int(1), Int(2), -1},
		{"floats", Float(2.5), Float(2.5), 0},
		{"int vs float", Int(3), Float(2.5), 1},
		{"bools", Bool(false), Bool(true), -1},
		{"strings", String("b"), String("a"), 1},
		{"nodes by id", Node(4), Node(9), -1},
		{"rels by id", Rel(4), Rel(4), 0},
		{"lists elementwise", NewList(Int(1), Int(3)), NewList(Int(1), Int(2)), 1},
		{"list prefix shorter", NewList(Int(1)), NewList(Int(1), Int(2)), -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Compare(tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare_Antisymmetric(t *testing.T) {
	vals := []Value{
		Null(), Bool(true), Bool(false), Int(-1), Int(5), Float(4.5),
		String("a"), String("b"), Node(1), Node(2), NewList(Int(1)), NewList(),
	}
	for _, a := range vals {
		for _, b := range vals {
			ab, errAB := Compare(a, b)
			ba, errBA := Compare(b, a)
			if errAB != nil || errBA != nil {
				assert.Equal(t, errAB != nil, errBA != nil, "%v vs %v", a, b)
				continue
			}
			assert.Equal(t, ab, -ba, "%v vs %v", a, b)
		}
	}
}

func TestCompare_TypeMismatch(t *testing.T) {
	_, err := Compare(Int(1), String("1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, qerr.ErrTypeMismatch))

	_, err = Compare(Node(1), Rel(1))
	assert.True(t, errors.Is(err, qerr.ErrTypeMismatch))

	_, err = Compare(NewMap(), NewMap())
	assert.True(t, errors.Is(err, qerr.ErrTypeMismatch), "maps are not ordered")
}

func TestEqual(t *testing.T) {
	assert.True(t, Equal(Int(2), Float(2)))
	assert.True(t, Equal(Null(), Null()))
	assert.False(t, Equal(Null(), Int(0)))
	assert.False(t, Equal(Node(1), Rel(1)))
	assert.True(t, Equal(
		NewMap(P("a", Int(1)), P("b", Int(2))),
		NewMap(P("b", Int(2)), P("a", Int(1))),
	), "map equality ignores entry order")
	assert.False(t, Equal(NewList(Int(1)), NewList(Int(1), Int(2))))
}

// ============================================================================
// Go conversions
// ============================================================================

func TestFromGo(t *testing.T) {
	v, err := FromGo(map[string]any{
		"b":    2,
		"a":    "x",
		"list": []any{true, 1.5, nil},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "list"}, v.Keys(), "keys are ordered lexically")
	assert.Equal(t, `{"a":"x","b":2,"list":[true,1.5,null]}`, v.JSON())

	_, err = FromGo(struct{}{})
	assert.Error(t, err)
}

func TestToGo_RoundTrip(t *testing.T) {
	orig := NewMap(P("n", Node(3)), P("xs", NewList(Int(1), Float(2.5))), P("s", String("t")))
	back, err := FromGo(orig.ToGo())
	require.NoError(t, err)
	assert.True(t, Equal(orig, back))
}
