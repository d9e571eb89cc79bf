package write

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

func setup(t *testing.T, opts Options) (*Context, *cypher.Context, storage.Engine) {
	t.Helper()
	store := storage.NewMemoryEngine()
	t.Cleanup(func() { store.Close() })
	exec := cypher.NewContext(store)
	w := New(exec, opts)
	t.Cleanup(func() { w.Close() })
	return w, exec, store
}

func nodeExists(t *testing.T, store storage.Engine, id int64) bool {
	t.Helper()
	ok, err := store.NodeExists(storage.NodeID(storage.FormatID(id)))
	require.NoError(t, err)
	return ok
}

func getNode(t *testing.T, store storage.Engine, id int64) *storage.Node {
	t.Helper()
	n, err := store.GetNode(storage.NodeID(storage.FormatID(id)))
	require.NoError(t, err)
	return n
}

func props(kv ...any) map[string]value.Value {
	out := make(map[string]value.Value, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		v, err := value.FromGo(kv[i+1])
		if err != nil {
			panic(err)
		}
		out[kv[i].(string)] = v
	}
	return out
}

// ============================================================================
// Transactions
// ============================================================================

func TestCreateNode_RollbackRemovesNode(t *testing.T) {
	w, exec, store := setup(t, DefaultOptions())

	require.NoError(t, w.Begin())
	id, err := w.CreateNode(CreateNodeOp{Variable: "n", Labels: []string{"Person"}, Properties: props("name", "Alice")})
	require.NoError(t, err)
	assert.True(t, nodeExists(t, store, id), "eager apply")

	bound, err := exec.Get("n")
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Node(id), bound))

	require.NoError(t, w.Rollback())
	assert.False(t, nodeExists(t, store, id))
	assert.False(t, w.InTransaction())
	assert.Zero(t, w.Stats().NodesCreated)
}

func TestBeginCommitRollback_NoOps(t *testing.T) {
	w, _, _ := setup(t, DefaultOptions())

	require.NoError(t, w.Commit(), "commit while idle")
	require.NoError(t, w.Rollback(), "rollback while idle")

	require.NoError(t, w.Begin())
	tx := w.TxID()
	assert.NotEmpty(t, tx)
	require.NoError(t, w.Begin())
	assert.Equal(t, tx, w.TxID(), "begin inside a transaction keeps it")
	require.NoError(t, w.Commit())
	assert.Empty(t, w.TxID())
}

func TestAutoCommit(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())

	id, err := w.CreateNode(CreateNodeOp{Labels: []string{"Person"}})
	require.NoError(t, err)
	assert.True(t, nodeExists(t, store, id))
	assert.False(t, w.InTransaction())
	assert.Empty(t, w.Log())
	assert.Equal(t, 1, w.Stats().NodesCreated)

	opts := DefaultOptions()
	opts.AutoCommit = false
	strict, _, _ := setup(t, opts)
	_, err = strict.CreateNode(CreateNodeOp{})
	assert.ErrorIs(t, err, qerr.ErrMisuse)
}

func TestCommit_AccumulatesStats(t *testing.T) {
	w, _, _ := setup(t, DefaultOptions())

	require.NoError(t, w.Begin())
	a, err := w.CreateNode(CreateNodeOp{Labels: []string{"Person"}, Properties: props("name", "A")})
	require.NoError(t, err)
	b, err := w.CreateNode(CreateNodeOp{Labels: []string{"Person"}})
	require.NoError(t, err)
	_, err = w.CreateRelationship(CreateRelationshipOp{From: a, To: b, Type: "KNOWS"})
	require.NoError(t, err)
	require.NoError(t, w.SetProperty(value.Node(b), "name", value.String("B")))
	require.NoError(t, w.SetLabels(b, "Admin", "Person"))
	require.NoError(t, w.Commit())

	assert.Equal(t, Stats{
		NodesCreated:         2,
		RelationshipsCreated: 1,
		PropertiesSet:        2,
		LabelsAdded:          3,
	}, w.Stats())
}

func TestClose_RollsBack(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	require.NoError(t, w.Begin())
	id, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	assert.False(t, nodeExists(t, store, id))

	_, err = w.CreateNode(CreateNodeOp{})
	assert.ErrorIs(t, err, qerr.ErrMisuse)
	assert.NoError(t, w.Close())
}

// ============================================================================
// Validation
// ============================================================================

func TestValidation(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())

	tests := []struct {
		name string
		op   CreateNodeOp
		want error
	}{
		{"bad label syntax", CreateNodeOp{Labels: []string{"1abc"}}, qerr.ErrFormat},
		{"label with dash", CreateNodeOp{Labels: []string{"a-b"}}, qerr.ErrFormat},
		{"reserved label", CreateNodeOp{Labels: []string{"match"}}, qerr.ErrMisuse},
		{"reserved variable", CreateNodeOp{Variable: "RETURN"}, qerr.ErrMisuse},
		{"long label", CreateNodeOp{Labels: []string{strings.Repeat("a", 256)}}, qerr.ErrRange},
		{"too many labels", CreateNodeOp{Labels: manyLabels(101)}, qerr.ErrRange},
		{"huge string", CreateNodeOp{Properties: props("s", strings.Repeat("x", 1<<20+1))}, qerr.ErrRange},
		{"map property", CreateNodeOp{Properties: map[string]value.Value{"m": value.NewMap()}}, qerr.ErrTypeMismatch},
		{"bad property name", CreateNodeOp{Properties: props("my prop", 1)}, qerr.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.CreateNode(tt.op)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	n, err := store.NodeCount()
	require.NoError(t, err)
	assert.Zero(t, n, "failed validation writes nothing")

	many := make(map[string]value.Value, 1001)
	for i := 0; i <= 1000; i++ {
		many["p"+itoa(i)] = value.Int(1)
	}
	_, err = w.CreateNode(CreateNodeOp{Properties: many})
	assert.ErrorIs(t, err, qerr.ErrRange)

	_, err = w.CreateNode(CreateNodeOp{Labels: []string{"_ok", "Ok_2"}})
	assert.NoError(t, err)
}

func manyLabels(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = "L" + itoa(i)
	}
	return out
}

func itoa(i int) string { return value.Int(int64(i)).String() }

func TestCreateRelationship_RequiresNodes(t *testing.T) {
	w, _, _ := setup(t, DefaultOptions())
	a, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)

	_, err = w.CreateRelationship(CreateRelationshipOp{From: a, To: 999, Type: "KNOWS"})
	assert.ErrorIs(t, err, qerr.ErrNotFound)

	_, err = w.CreateRelationship(CreateRelationshipOp{From: a, To: a, Type: "bad type"})
	assert.ErrorIs(t, err, qerr.ErrFormat)

	assert.ErrorIs(t, w.SetProperty(value.Node(999), "x", value.Int(1)), qerr.ErrNotFound)
	assert.ErrorIs(t, w.SetProperty(value.Int(1), "x", value.Int(1)), qerr.ErrTypeMismatch)
}

// ============================================================================
// Identity
// ============================================================================

func TestIDsAreFreshAgainstStore(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	for _, id := range []string{"1", "2", "4"} {
		require.NoError(t, store.CreateNode(&storage.Node{ID: storage.NodeID(id)}))
	}

	var got []int64
	for i := 0; i < 3; i++ {
		id, err := w.CreateNode(CreateNodeOp{})
		require.NoError(t, err)
		got = append(got, id)
	}
	assert.Equal(t, []int64{3, 5, 6}, got)
}

// ============================================================================
// Properties and labels
// ============================================================================

func TestSetProperty_Rollback(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	id, err := w.CreateNode(CreateNodeOp{Properties: props("name", "Alice", "age", 30)})
	require.NoError(t, err)

	require.NoError(t, w.Begin())
	require.NoError(t, w.SetProperty(value.Node(id), "name", value.String("Alicia")))
	require.NoError(t, w.SetProperty(value.Node(id), "city", value.String("Paris")))
	require.NoError(t, w.SetProperty(value.Node(id), "age", value.Null()), "null removes")

	n := getNode(t, store, id)
	assert.Equal(t, "Alicia", n.Properties["name"])
	assert.Equal(t, "Paris", n.Properties["city"])
	assert.NotContains(t, n.Properties, "age")

	require.NoError(t, w.Rollback())
	n = getNode(t, store, id)
	assert.Equal(t, "Alice", n.Properties["name"])
	assert.NotContains(t, n.Properties, "city")
	assert.True(t, storage.PropertyEqual(30, n.Properties["age"]))
}

func TestLabels_Rollback(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	id, err := w.CreateNode(CreateNodeOp{Labels: []string{"Person"}})
	require.NoError(t, err)

	require.NoError(t, w.Begin())
	require.NoError(t, w.SetLabels(id, "Admin", "Person"))
	assert.Equal(t, []string{"Person", "Admin"}, getNode(t, store, id).Labels)
	require.NoError(t, w.RemoveLabels(id, "Person", "Ghost"))
	assert.Equal(t, []string{"Admin"}, getNode(t, store, id).Labels)

	require.NoError(t, w.Rollback())
	assert.Equal(t, []string{"Person"}, getNode(t, store, id).Labels)

	assert.ErrorIs(t, w.SetLabels(id), qerr.ErrMisuse)
}

func TestRelationshipProperty(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	a, _ := w.CreateNode(CreateNodeOp{})
	b, _ := w.CreateNode(CreateNodeOp{})
	r, err := w.CreateRelationship(CreateRelationshipOp{From: a, To: b, Type: "KNOWS", Weight: 0.5})
	require.NoError(t, err)

	require.NoError(t, w.SetProperty(value.Rel(r), "since", value.Int(2020)))
	e, err := store.GetEdge(storage.EdgeID(storage.FormatID(r)))
	require.NoError(t, err)
	assert.True(t, storage.PropertyEqual(2020, e.Properties["since"]))
	assert.Equal(t, 0.5, e.Weight)

	require.NoError(t, w.RemoveProperty(value.Rel(r), "since"))
	e, err = store.GetEdge(storage.EdgeID(storage.FormatID(r)))
	require.NoError(t, err)
	assert.NotContains(t, e.Properties, "since")
}

// ============================================================================
// Merge
// ============================================================================

func TestMergeNode_Twice(t *testing.T) {
	w, exec, store := setup(t, DefaultOptions())
	op := MergeNodeOp{
		Variable: "u",
		Labels:   []string{"User"},
		Match:    props("email", "a@x.com"),
		OnCreate: props("visits", 1),
		OnMatch:  props("seen", true),
	}

	first, err := w.MergeNode(op)
	require.NoError(t, err)
	assert.True(t, first.WasCreated)
	bound, _ := exec.Get("u")
	assert.True(t, value.Equal(value.Node(first.ID), bound))

	n := getNode(t, store, first.ID)
	assert.Equal(t, "a@x.com", n.Properties["email"])
	assert.True(t, storage.PropertyEqual(1, n.Properties["visits"]))
	assert.NotContains(t, n.Properties, "seen")

	exec.Unbind("u")
	second, err := w.MergeNode(op)
	require.NoError(t, err)
	assert.False(t, second.WasCreated)
	assert.Equal(t, first.ID, second.ID)
	bound, _ = exec.Get("u")
	assert.True(t, value.Equal(value.Node(first.ID), bound))

	n = getNode(t, store, first.ID)
	assert.Equal(t, true, n.Properties["seen"])

	count, err := store.NodeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	stats := w.Stats()
	assert.Equal(t, 1, stats.NodesCreated)
	assert.Equal(t, 3, stats.PropertiesSet)
}

func TestMergeNode_MatchedIsNotUndoneByDeletion(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	created, err := w.MergeNode(MergeNodeOp{Labels: []string{"User"}, Match: props("email", "a@x.com")})
	require.NoError(t, err)

	require.NoError(t, w.Begin())
	matched, err := w.MergeNode(MergeNodeOp{
		Labels:  []string{"User"},
		Match:   props("email", "a@x.com"),
		OnMatch: props("name", "A"),
	})
	require.NoError(t, err)
	require.False(t, matched.WasCreated)
	require.NoError(t, w.Rollback())

	require.True(t, nodeExists(t, store, created.ID))
	assert.NotContains(t, getNode(t, store, created.ID).Properties, "name")
}

func TestMergeRelationship(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	a, _ := w.CreateNode(CreateNodeOp{})
	b, _ := w.CreateNode(CreateNodeOp{})

	op := MergeRelationshipOp{From: a, To: b, Type: "KNOWS", Match: props("via", "work"), OnMatch: props("n", 2)}
	first, err := w.MergeRelationship(op)
	require.NoError(t, err)
	assert.True(t, first.WasCreated)

	second, err := w.MergeRelationship(op)
	require.NoError(t, err)
	assert.False(t, second.WasCreated)
	assert.Equal(t, first.ID, second.ID)

	reverse, err := w.MergeRelationship(MergeRelationshipOp{From: b, To: a, Type: "KNOWS", Match: props("via", "work")})
	require.NoError(t, err)
	assert.True(t, reverse.WasCreated, "direction matters")

	c, err := store.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), c)
}

// ============================================================================
// Delete
// ============================================================================

func TestDelete_PlainFailsDetachSucceeds(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	hub, _ := w.CreateNode(CreateNodeOp{Labels: []string{"Hub"}})
	x, _ := w.CreateNode(CreateNodeOp{})
	y, _ := w.CreateNode(CreateNodeOp{})
	_, err := w.CreateRelationship(CreateRelationshipOp{From: hub, To: x, Type: "A"})
	require.NoError(t, err)
	_, err = w.CreateRelationship(CreateRelationshipOp{From: y, To: hub, Type: "B"})
	require.NoError(t, err)

	err = w.DeleteNode(hub)
	assert.ErrorIs(t, err, qerr.ErrConstraintViolation)
	assert.True(t, nodeExists(t, store, hub))
	edges, err := store.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), edges, "failed delete removes nothing")

	require.NoError(t, w.DetachDeleteNode(hub))
	assert.False(t, nodeExists(t, store, hub))
	edges, err = store.EdgeCount()
	require.NoError(t, err)
	assert.Zero(t, edges)

	assert.Equal(t, 1, w.Stats().NodesDeleted)
	assert.Equal(t, 2, w.Stats().RelationshipsDeleted)

	assert.ErrorIs(t, w.DeleteNode(hub), qerr.ErrNotFound)
}

func TestDetachDelete_Rollback(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	a, _ := w.CreateNode(CreateNodeOp{Labels: []string{"Person"}, Properties: props("name", "A")})
	b, _ := w.CreateNode(CreateNodeOp{})
	r, _ := w.CreateRelationship(CreateRelationshipOp{From: a, To: b, Type: "KNOWS"})

	require.NoError(t, w.Begin())
	require.NoError(t, w.DetachDeleteNode(a))
	require.NoError(t, w.DeleteNode(b))
	assert.False(t, nodeExists(t, store, a))

	require.NoError(t, w.Rollback())
	n := getNode(t, store, a)
	assert.Equal(t, []string{"Person"}, n.Labels)
	assert.Equal(t, "A", n.Properties["name"])
	assert.True(t, nodeExists(t, store, b))
	ok, err := store.EdgeExists(storage.EdgeID(storage.FormatID(r)))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDeleteRelationship(t *testing.T) {
	w, _, store := setup(t, DefaultOptions())
	a, _ := w.CreateNode(CreateNodeOp{})
	r, _ := w.CreateRelationship(CreateRelationshipOp{From: a, To: a, Type: "SELF"})

	require.NoError(t, w.DeleteRelationship(r))
	ok, err := store.EdgeExists(storage.EdgeID(storage.FormatID(r)))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.ErrorIs(t, w.DeleteRelationship(r), qerr.ErrNotFound)
}

// ============================================================================
// Deferred apply
// ============================================================================

func TestDeferApply(t *testing.T) {
	opts := DefaultOptions()
	opts.DeferApply = true
	w, _, store := setup(t, opts)

	require.NoError(t, w.Begin())
	a, err := w.CreateNode(CreateNodeOp{Labels: []string{"Person"}})
	require.NoError(t, err)
	b, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	assert.NotEqual(t, a, b, "pending creates reserve their ids")

	_, err = w.CreateRelationship(CreateRelationshipOp{From: a, To: b, Type: "KNOWS"})
	require.NoError(t, err, "pending nodes count as existing")
	require.NoError(t, w.SetProperty(value.Node(a), "name", value.String("A")))

	assert.False(t, nodeExists(t, store, a), "nothing applied before commit")
	for _, rec := range w.Log() {
		assert.False(t, rec.Applied)
	}

	require.NoError(t, w.Commit())
	n := getNode(t, store, a)
	assert.Equal(t, "A", n.Properties["name"])
	c, err := store.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), c)
}

func TestDeferApply_CommitFailureRollsBack(t *testing.T) {
	opts := DefaultOptions()
	opts.DeferApply = true
	w, exec, store := setup(t, opts)

	a, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	b, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	_, err = w.CreateRelationship(CreateRelationshipOp{From: a, To: b, Type: "KNOWS"})
	require.NoError(t, err)

	require.NoError(t, w.Begin())
	c, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	// The delete passes its call-time check, then a relationship appears
	// behind the write context's back so the delete fails at commit.
	require.NoError(t, store.DeleteEdge("1"))
	require.NoError(t, w.DeleteNode(a))
	require.NoError(t, store.CreateEdge(&storage.Edge{ID: "99", StartNode: "1", EndNode: "2", Type: "LATE"}))

	err = w.Commit()
	assert.ErrorIs(t, err, qerr.ErrConstraintViolation)
	assert.False(t, w.InTransaction())
	assert.False(t, nodeExists(t, store, c), "earlier applied records are undone")
	assert.True(t, nodeExists(t, store, a))
	assert.ErrorIs(t, exec.Err(), qerr.ErrConstraintViolation)
}

func TestDeferApply_MergeSeesPendingCreate(t *testing.T) {
	opts := DefaultOptions()
	opts.DeferApply = true
	w, _, store := setup(t, opts)

	require.NoError(t, w.Begin())
	op := MergeNodeOp{
		Variable: "u",
		Labels:   []string{"User"},
		Match:    props("email", "a@x.com"),
		OnMatch:  props("seen", true),
	}
	first, err := w.MergeNode(op)
	require.NoError(t, err)
	assert.True(t, first.WasCreated)

	second, err := w.MergeNode(op)
	require.NoError(t, err)
	assert.False(t, second.WasCreated)
	assert.Equal(t, first.ID, second.ID)

	a, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	rel, err := w.MergeRelationship(MergeRelationshipOp{From: first.ID, To: a, Type: "OWNS"})
	require.NoError(t, err)
	again, err := w.MergeRelationship(MergeRelationshipOp{From: first.ID, To: a, Type: "OWNS"})
	require.NoError(t, err)
	assert.Equal(t, rel.ID, again.ID)
	assert.False(t, again.WasCreated)

	require.NoError(t, w.Commit())
	n, err := store.NodeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Equal(t, true, getNode(t, store, first.ID).Properties["seen"])
	e, err := store.EdgeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), e)
}

func TestDeferApply_DeletePendingCreate(t *testing.T) {
	opts := DefaultOptions()
	opts.DeferApply = true
	w, _, store := setup(t, opts)

	require.NoError(t, w.Begin())
	a, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	require.NoError(t, w.DeleteNode(a))
	assert.ErrorIs(t, w.SetProperty(value.Node(a), "k", value.Int(1)), qerr.ErrNotFound,
		"a pending delete hides the node")
	assert.ErrorIs(t, w.DeleteNode(a), qerr.ErrNotFound)

	b, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	c, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	r, err := w.CreateRelationship(CreateRelationshipOp{From: b, To: c, Type: "KNOWS"})
	require.NoError(t, err)
	assert.ErrorIs(t, w.DeleteNode(b), qerr.ErrConstraintViolation)
	require.NoError(t, w.DetachDeleteNode(b))
	assert.ErrorIs(t, w.DeleteRelationship(r), qerr.ErrNotFound)

	require.NoError(t, w.Commit())
	assert.False(t, nodeExists(t, store, a))
	assert.False(t, nodeExists(t, store, b))
	assert.True(t, nodeExists(t, store, c))
	assert.Equal(t, 3, w.Stats().NodesCreated)
	assert.Equal(t, 2, w.Stats().NodesDeleted)
	assert.Equal(t, 1, w.Stats().RelationshipsDeleted)
}

// faultyStore fails selected writes while passing everything else through.
type faultyStore struct {
	storage.Engine
	createEdgeErr error
	updateNodeErr error
}

func (f *faultyStore) CreateEdge(e *storage.Edge) error {
	if f.createEdgeErr != nil {
		return f.createEdgeErr
	}
	return f.Engine.CreateEdge(e)
}

func (f *faultyStore) UpdateNode(n *storage.Node) error {
	if f.updateNodeErr != nil {
		return f.updateNodeErr
	}
	return f.Engine.UpdateNode(n)
}

func TestApplyFailure_DropsRecord(t *testing.T) {
	mem := storage.NewMemoryEngine()
	t.Cleanup(func() { mem.Close() })
	store := &faultyStore{Engine: mem}
	w := New(cypher.NewContext(store), DefaultOptions())
	t.Cleanup(func() { w.Close() })

	require.NoError(t, w.Begin())
	a, err := w.CreateNode(CreateNodeOp{Properties: props("name", "A")})
	require.NoError(t, err)
	b, err := w.CreateNode(CreateNodeOp{})
	require.NoError(t, err)
	logged := len(w.Log())

	diskFull := errors.New("disk full")
	store.createEdgeErr = diskFull
	_, err = w.CreateRelationship(CreateRelationshipOp{From: a, To: b, Type: "KNOWS"})
	assert.ErrorIs(t, err, qerr.ErrStorage)
	assert.ErrorIs(t, err, diskFull)
	assert.Len(t, w.Log(), logged)
	edges, err := mem.EdgeCount()
	require.NoError(t, err)
	assert.Zero(t, edges)

	store.updateNodeErr = diskFull
	err = w.SetProperty(value.Node(a), "name", value.String("B"))
	assert.Equal(t, qerr.KindStorage, qerr.KindOf(err))
	assert.ErrorIs(t, w.SetLabels(a, "Person"), qerr.ErrStorage)
	assert.Len(t, w.Log(), logged)
	n := getNode(t, mem, a)
	assert.Equal(t, "A", n.Properties["name"])
	assert.Empty(t, n.Labels)

	store.createEdgeErr, store.updateNodeErr = nil, nil
	require.NoError(t, w.Commit())
	assert.Equal(t, Stats{NodesCreated: 2, PropertiesSet: 1}, w.Stats())
}
