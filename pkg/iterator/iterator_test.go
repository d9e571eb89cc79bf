package iterator

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// socialGraph holds Alice(1, Person, 30), Bob(2, Person, 25), Post(3) and
// two relationships: 1-KNOWS->2 (10), 1-WROTE->3 (11).
func socialGraph(t *testing.T) *cypher.Context {
	t.Helper()
	return socialGraphOn(t, storage.NewMemoryEngine())
}

func socialGraphOn(t *testing.T, store storage.Engine) *cypher.Context {
	t.Helper()
	t.Cleanup(func() { store.Close() })

	nodes := []*storage.Node{
		{ID: "1", Labels: []string{"Person"}, Properties: map[string]any{"name": "Alice", "age": int64(30)}},
		{ID: "2", Labels: []string{"Person"}, Properties: map[string]any{"name": "Bob", "age": int64(25)}},
		{ID: "3", Labels: []string{"Post"}, Properties: map[string]any{"title": "Hello"}},
	}
	for _, n := range nodes {
		require.NoError(t, store.CreateNode(n))
	}
	require.NoError(t, store.CreateEdge(&storage.Edge{ID: "10", StartNode: "1", EndNode: "2", Type: "KNOWS"}))
	require.NoError(t, store.CreateEdge(&storage.Edge{ID: "11", StartNode: "1", EndNode: "3", Type: "WROTE"}))
	return cypher.NewContext(store)
}

func scan(alias string) *Plan { return &Plan{Kind: KindAllNodesScan, Alias: alias} }

func unaryPlan(kind Kind, child *Plan, fill func(p *Plan)) *Plan {
	p := &Plan{Kind: kind, Children: []*Plan{child}}
	if fill != nil {
		fill(p)
	}
	return p
}

// refRows renders single-column rows of entity refs the way results encode
// them.
func refRows(alias, kind string, ids ...int64) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, id := range ids {
		if i > 0 {
			sb.WriteByte(',')
		}
		fmt.Fprintf(&sb, `{%q:{"_type":%q,"_id":%d}}`, alias, kind, id)
	}
	sb.WriteByte(']')
	return sb.String()
}

func nodeRows(alias string, ids ...int64) string { return refRows(alias, "node", ids...) }

func drainJSON(t *testing.T, ctx *cypher.Context, p *Plan) string {
	t.Helper()
	it, err := Build(ctx, p)
	require.NoError(t, err)
	defer it.Destroy()
	rows, err := Drain(it)
	require.NoError(t, err)
	return EncodeJSON(rows)
}

// ============================================================================
// State machine
// ============================================================================

func TestIterator_NextBeforeOpen(t *testing.T) {
	ctx := socialGraph(t)
	for _, p := range []*Plan{
		scan("n"),
		unaryPlan(KindLimit, scan("n"), func(p *Plan) { p.Count = 1 }),
		unaryPlan(KindFilter, scan("n"), func(p *Plan) { p.Predicate = cypher.Lit(value.Bool(true)) }),
	} {
		it, err := Build(ctx, p)
		require.NoError(t, err)
		_, err = it.Next(&cypher.Row{})
		assert.ErrorIs(t, err, qerr.ErrMisuse, string(p.Kind))
		assert.Equal(t, StateUnopened, it.State())
	}
}

func TestIterator_ExhaustedStaysExhausted(t *testing.T) {
	ctx := socialGraph(t)
	it := NewLabelIndexScan(ctx, "n", "Post")
	require.NoError(t, it.Open())

	row := &cypher.Row{}
	ok, err := it.Next(row)
	require.NoError(t, err)
	require.True(t, ok)

	for i := 0; i < 3; i++ {
		ok, err = it.Next(row)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Equal(t, StateExhausted, it.State())
	}

	require.NoError(t, it.Close())
	require.NoError(t, it.Close(), "close is idempotent")
	assert.Equal(t, StateUnopened, it.State())
}

func TestIterator_RepeatableOpenClose(t *testing.T) {
	ctx := socialGraph(t)
	p := unaryPlan(KindProjection,
		unaryPlan(KindSort, scan("n"), func(p *Plan) {
			p.SortKeys = []SortKey{{Expr: cypher.Prop(cypher.Var("n"), "name")}}
		}),
		func(p *Plan) { p.Projections = []cypher.Expr{cypher.Call("id", cypher.Var("n"))} })

	it, err := Build(ctx, p)
	require.NoError(t, err)
	defer it.Destroy()

	first, err := Drain(it)
	require.NoError(t, err)
	second, err := Drain(it)
	require.NoError(t, err)

	assert.Equal(t, EncodeJSON(first), EncodeJSON(second))
	assert.Equal(t, `[{"col0":3},{"col0":1},{"col0":2}]`, EncodeJSON(first), "null names sort first")
}

func TestIterator_DestroyMidStream(t *testing.T) {
	ctx := socialGraph(t)
	it, err := Build(ctx, unaryPlan(KindLimit, scan("n"), func(p *Plan) { p.Count = 5 }))
	require.NoError(t, err)
	require.NoError(t, it.Open())

	ok, err := it.Next(&cypher.Row{})
	require.NoError(t, err)
	require.True(t, ok)

	child := it.Children()[0]
	it.Destroy()
	assert.Equal(t, StateUnopened, child.State())
	assert.Empty(t, it.Children())
	it.Destroy()

	assert.ErrorIs(t, it.Open(), qerr.ErrMisuse)
}

// ============================================================================
// Scans
// ============================================================================

func TestScans(t *testing.T) {
	badgerStore, err := storage.NewBadgerEngineWithOptions(storage.BadgerOptions{InMemory: true})
	require.NoError(t, err)
	for name, ctx := range map[string]*cypher.Context{
		"memory": socialGraph(t),
		"badger": socialGraphOn(t, badgerStore),
	} {
		t.Run(name, func(t *testing.T) { assertScans(t, ctx) })
	}
}

func assertScans(t *testing.T, ctx *cypher.Context) {

	assert.Equal(t, `[{"n":{"_type":"node","_id":1}},{"n":{"_type":"node","_id":2}},{"n":{"_type":"node","_id":3}}]`,
		drainJSON(t, ctx, scan("n")))
	assert.Equal(t, nodeRows("node", 1, 2, 3), drainJSON(t, ctx, scan("")))
	assert.Equal(t, nodeRows("p", 1, 2), drainJSON(t, ctx, &Plan{Kind: KindLabelIndexScan, Alias: "p", Label: "Person"}))
	assert.Equal(t, nodeRows("p", 2), drainJSON(t, ctx, &Plan{Kind: KindPropertyIndexScan, Alias: "p", Key: "age", Value: value.Int(25)}))
	assert.Equal(t, `[]`, drainJSON(t, ctx, &Plan{Kind: KindPropertyIndexScan, Alias: "p", Key: "age", Value: value.Null()}))
	assert.Equal(t, refRows("r", "relationship", 10, 11), drainJSON(t, ctx, &Plan{Kind: KindAllRelationshipsScan, Alias: "r"}))
	assert.Equal(t, refRows("rel", "relationship", 11), drainJSON(t, ctx, &Plan{Kind: KindTypeIndexScan, RelType: "WROTE"}))
}

func TestScan_RowsAreRefs(t *testing.T) {
	ctx := socialGraph(t)
	it := NewAllRelationshipsScan(ctx, "r")
	rows, err := Drain(it)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	v, ok := rows[0].Get("r")
	require.True(t, ok)
	assert.Equal(t, value.KindRelationship, v.Kind())
	assert.Equal(t, int64(2), ctx.RowsProcessed)
}

// countingStore records how a scan consumes its cursor.
type countingStore struct {
	storage.Engine
	pulled int
	closed int
}

func (s *countingStore) AllNodes() ([]*storage.Node, error) {
	panic("scans must not load every node")
}

func (s *countingStore) ScanNodes() (storage.Cursor, error) {
	c, err := s.Engine.ScanNodes()
	if err != nil {
		return nil, err
	}
	return &countingCursor{Cursor: c, store: s}, nil
}

type countingCursor struct {
	storage.Cursor
	store *countingStore
}

func (c *countingCursor) Next() (string, bool, error) {
	c.store.pulled++
	return c.Cursor.Next()
}

func (c *countingCursor) Close() error {
	c.store.closed++
	return c.Cursor.Close()
}

func TestScan_PullsFromCursor(t *testing.T) {
	store := &countingStore{Engine: storage.NewMemoryEngine()}
	ctx := socialGraphOn(t, store)

	it, err := Build(ctx, unaryPlan(KindLimit, scan("n"), func(p *Plan) { p.Count = 1 }))
	require.NoError(t, err)
	rows, err := Drain(it)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, 1, store.pulled, "limit stops pulling after one id")
	assert.Equal(t, 1, store.closed, "close releases the cursor")
	it.Destroy()
	assert.Equal(t, 1, store.closed)

	store.pulled = 0
	assert.Equal(t, nodeRows("n", 1, 2, 3), drainJSON(t, ctx, scan("n")))
	assert.Equal(t, 4, store.pulled, "three ids then end of cursor")
}

func TestScan_RequiresStore(t *testing.T) {
	it := NewAllNodesScan(cypher.NewContext(nil), "n")
	assert.ErrorIs(t, it.Open(), qerr.ErrMisuse)
}

// ============================================================================
// Operators
// ============================================================================

func TestFilter(t *testing.T) {
	ctx := socialGraph(t)

	older := unaryPlan(KindFilter, scan("n"), func(p *Plan) {
		p.Predicate = cypher.Cmp(cypher.OpGt, cypher.Prop(cypher.Var("n"), "age"), cypher.Lit(value.Int(26)))
	})
	assert.Equal(t, nodeRows("n", 1), drainJSON(t, ctx, older), "null ages are skipped, not errors")

	bad := unaryPlan(KindFilter, scan("n"), func(p *Plan) { p.Predicate = cypher.Lit(value.Int(1)) })
	it, err := Build(ctx, bad)
	require.NoError(t, err)
	_, err = Drain(it)
	assert.ErrorIs(t, err, qerr.ErrTypeMismatch)
	assert.ErrorIs(t, ctx.Err(), qerr.ErrTypeMismatch)
}

func TestProjection_Aliases(t *testing.T) {
	ctx := socialGraph(t)
	p := unaryPlan(KindProjection,
		&Plan{Kind: KindLabelIndexScan, Alias: "n", Label: "Person"},
		func(p *Plan) {
			p.Projections = []cypher.Expr{
				cypher.Prop(cypher.Var("n"), "name"),
				cypher.Arith(cypher.OpAdd, cypher.Prop(cypher.Var("n"), "age"), cypher.Lit(value.Int(1))),
			}
			p.Aliases = []string{"name"}
		})
	assert.Equal(t, `[{"name":"Alice","col1":31},{"name":"Bob","col1":26}]`, drainJSON(t, ctx, p))
}

func TestSort(t *testing.T) {
	ctx := socialGraph(t)
	byAge := func(desc bool) *Plan {
		return unaryPlan(KindSort, &Plan{Kind: KindLabelIndexScan, Alias: "n", Label: "Person"}, func(p *Plan) {
			p.SortKeys = []SortKey{{Expr: cypher.Prop(cypher.Var("n"), "age"), Descending: desc}}
		})
	}
	assert.Equal(t, nodeRows("n", 2, 1), drainJSON(t, ctx, byAge(false)))
	assert.Equal(t, nodeRows("n", 1, 2), drainJSON(t, ctx, byAge(true)))

	// Stable: equal keys keep scan order.
	constant := unaryPlan(KindSort, scan("n"), func(p *Plan) {
		p.SortKeys = []SortKey{{Expr: cypher.Lit(value.Int(0))}}
	})
	assert.Equal(t, nodeRows("n", 1, 2, 3), drainJSON(t, ctx, constant))

	capped, err := BuildWithOptions(ctx, byAge(false), Options{MaxSortRows: 1})
	require.NoError(t, err)
	assert.ErrorIs(t, capped.Open(), qerr.ErrOutOfMemory)

	mixed := unaryPlan(KindSort, scan("n"), func(p *Plan) {
		p.SortKeys = []SortKey{{Expr: cypher.Call("coalesce", cypher.Prop(cypher.Var("n"), "age"), cypher.Prop(cypher.Var("n"), "title"))}}
	})
	it, err := Build(ctx, mixed)
	require.NoError(t, err)
	assert.ErrorIs(t, it.Open(), qerr.ErrTypeMismatch)
}

func TestSkipAndLimit(t *testing.T) {
	ctx := socialGraph(t)

	skip := func(n int64, child *Plan) *Plan {
		return unaryPlan(KindSkip, child, func(p *Plan) { p.Count = n })
	}
	limit := func(n int64, child *Plan) *Plan {
		return unaryPlan(KindLimit, child, func(p *Plan) { p.Count = n })
	}

	assert.Equal(t, nodeRows("n", 2, 3), drainJSON(t, ctx, skip(1, scan("n"))))
	assert.Equal(t, `[]`, drainJSON(t, ctx, skip(5, scan("n"))))
	assert.Equal(t, nodeRows("n", 1, 2), drainJSON(t, ctx, limit(2, scan("n"))))
	assert.Equal(t, `[]`, drainJSON(t, ctx, limit(0, scan("n"))))
	assert.Equal(t, nodeRows("n", 2), drainJSON(t, ctx, limit(1, skip(1, scan("n")))))
}

func TestLimit_DoesNotPullPastN(t *testing.T) {
	ctx := socialGraph(t)
	it, err := Build(ctx, unaryPlan(KindLimit, scan("n"), func(p *Plan) { p.Count = 1 }))
	require.NoError(t, err)
	defer it.Destroy()

	rows, err := Drain(it)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Equal(t, int64(1), ctx.RowsProcessed)
}

// ============================================================================
// End to end
// ============================================================================

func TestEndToEnd_FilterProjectLimit(t *testing.T) {
	ctx := socialGraph(t)

	p := &Plan{
		Kind:  KindLimit,
		Count: 1,
		Children: []*Plan{{
			Kind:        KindProjection,
			Projections: []cypher.Expr{cypher.Lit(value.Int(1))},
			Children: []*Plan{{
				Kind: KindFilter,
				Predicate: cypher.Cmp(cypher.OpIn,
					cypher.Lit(value.String("Person")),
					cypher.Call("labels", cypher.Var("n"))),
				Children: []*Plan{{Kind: KindAllNodesScan, Alias: "n"}},
			}},
		}},
	}

	it, err := Build(ctx, p)
	require.NoError(t, err)
	defer it.Destroy()

	res, err := Execute(ctx, it)
	require.NoError(t, err)
	assert.Equal(t, `[{"col0":1}]`, res.JSON())
	assert.Equal(t, []string{"col0"}, res.Columns)
	assert.Equal(t, int64(1), res.Stats.RowsProduced)
	assert.Equal(t, int64(1), ctx.RowsProduced)
}
