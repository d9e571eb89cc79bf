package plan

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/iterator"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
	"github.com/orneryd/graphexec/pkg/write"
)

func newGraph(t *testing.T) (*cypher.Context, *write.Context) {
	t.Helper()
	store := storage.NewMemoryEngine()
	t.Cleanup(func() { store.Close() })
	exec := cypher.NewContext(store)
	w := write.New(exec, write.DefaultOptions())
	t.Cleanup(func() { w.Close() })
	return exec, w
}

// ============================================================================
// Expressions
// ============================================================================

func TestParseExpr(t *testing.T) {
	tests := []struct {
		doc  string
		want string
	}{
		{`{lit: 42}`, "42"},
		{`7`, "7"},
		{`{var: n}`, "n"},
		{`{prop: {of: {var: n}, key: name}}`, "n.name"},
		{`{op: "+", args: [{lit: 1}, {lit: 2}]}`, "(1 + 2)"},
		{`{op: AND, args: [{lit: true}, {lit: false}]}`, "(true AND false)"},
		{`{op: starts_with, args: [{var: s}, {lit: a}]}`, "(s STARTS WITH 'a')"},
		{`{not: {var: x}}`, "(NOT x)"},
		{`{is_null: {var: x}}`, "(x IS NULL)"},
		{`{fn: toUpper, args: [{lit: abc}]}`, "toUpper('abc')"},
		{`{list: [{lit: 1}, {var: x}]}`, "[1, x]"},
		{`{in: [{lit: 1}, {list: [{lit: 1}]}]}`, "(1 IN [1])"},
	}
	for _, tt := range tests {
		t.Run(tt.doc, func(t *testing.T) {
			x, err := ParseExpr([]byte(tt.doc))
			require.NoError(t, err)
			assert.Equal(t, tt.want, x.String())
		})
	}
}

func TestParseExpr_Evaluates(t *testing.T) {
	ctx := cypher.NewContext(nil)
	require.NoError(t, ctx.Bind("x", value.Int(5)))

	x, err := ParseExpr([]byte(`{"op": "*", "args": [{"var": "x"}, {"op": "-", "args": [{"lit": 10}, {"lit": 3}]}]}`))
	require.NoError(t, err)
	got, err := cypher.Eval(ctx, x, nil)
	require.NoError(t, err)
	assert.True(t, value.Equal(value.Int(35), got))

	x, err = ParseExpr([]byte(`{map: {b: {lit: 1}, a: {lit: [1, two]}}}`))
	require.NoError(t, err)
	got, err = cypher.Eval(ctx, x, nil)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":[1,"two"]}`, got.JSON(), "map keeps document order")
}

func TestParseExpr_Errors(t *testing.T) {
	bad := []string{
		``,
		`{}`,
		`{lit: 1, var: x}`,
		`{op: "??", args: [{lit: 1}, {lit: 2}]}`,
		`{op: "+", args: [{lit: 1}]}`,
		`{var: x, args: []}`,
		`{prop: {of: {var: n}}}`,
		`{in: [{lit: 1}]}`,
		`{frob: 1}`,
	}
	for _, doc := range bad {
		t.Run(doc, func(t *testing.T) {
			_, err := ParseExpr([]byte(doc))
			assert.ErrorIs(t, err, qerr.ErrFormat)
		})
	}
}

// ============================================================================
// Plans
// ============================================================================

const personPlan = `
op: limit
limit: 1
children:
  - op: projection
    projections: [{prop: {of: {var: n}, key: name}}]
    aliases: [name]
    children:
      - op: sort
        sort: [{expr: {prop: {of: {var: n}, key: name}}, desc: true}]
        children:
          - op: filter
            predicate: {in: [{lit: Person}, {fn: labels, args: [{var: n}]}]}
            children: [{op: all_nodes_scan, alias: n}]
`

func TestParsePlan(t *testing.T) {
	p, err := ParsePlan([]byte(personPlan))
	require.NoError(t, err)

	assert.Equal(t, iterator.KindLimit, p.Kind)
	assert.Equal(t, int64(1), p.Count)
	proj := p.Children[0]
	assert.Equal(t, []string{"name"}, proj.Aliases)
	sort := proj.Children[0]
	require.Len(t, sort.SortKeys, 1)
	assert.True(t, sort.SortKeys[0].Descending)
	scan := sort.Children[0].Children[0]
	assert.Equal(t, iterator.KindAllNodesScan, scan.Kind)
	assert.Equal(t, "n", scan.Alias)
}

func TestParsePlan_Executes(t *testing.T) {
	exec, w := newGraph(t)
	for _, name := range []string{"Alice", "Bob"} {
		_, err := w.CreateNode(write.CreateNodeOp{
			Labels:     []string{"Person"},
			Properties: map[string]value.Value{"name": value.String(name)},
		})
		require.NoError(t, err)
	}
	_, err := w.CreateNode(write.CreateNodeOp{Labels: []string{"Post"}})
	require.NoError(t, err)

	p, err := ParsePlan([]byte(personPlan))
	require.NoError(t, err)
	root, err := iterator.Build(exec, p)
	require.NoError(t, err)
	res, err := iterator.Execute(exec, root)
	require.NoError(t, err)
	assert.Equal(t, `[{"name":"Bob"}]`, res.JSON())
}

func TestParsePlan_JSONAndValues(t *testing.T) {
	p, err := ParsePlan([]byte(`{"op": "property_index_scan", "alias": "n", "key": "age", "value": 30}`))
	require.NoError(t, err)
	assert.Equal(t, iterator.KindPropertyIndexScan, p.Kind)
	assert.True(t, value.Equal(value.Int(30), p.Value))

	p, err = ParsePlan([]byte(`{op: skip, count: 2, children: [{op: type_index_scan, type: KNOWS}]}`))
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Count)
	assert.Equal(t, "KNOWS", p.Children[0].RelType)
}

func TestParsePlan_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown op", `{op: hash_join}`},
		{"unknown key", `{op: all_nodes_scan, tabel: x}`},
		{"limit without count", `{op: limit, children: [{op: all_nodes_scan}]}`},
		{"bad predicate", `{op: filter, predicate: {nope: 1}, children: [{op: all_nodes_scan}]}`},
		{"not yaml", `{op: [`},
		{"empty", ``},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePlan([]byte(tt.doc))
			assert.ErrorIs(t, err, qerr.ErrFormat)
		})
	}
}

// ============================================================================
// Scripts
// ============================================================================

const socialScript = `
steps:
  - begin
  - create_node: {var: a, labels: [Person], props: {name: Alice, tags: [x, y]}}
  - create_node: {var: b, labels: [Person], props: {name: Bob}}
  - create_rel: {var: r, from: a, to: b, type: KNOWS, props: {since: 2020}}
  - set_property: {target: a, key: age, expr: {op: "+", args: [{lit: 29}, {lit: 1}]}}
  - set_labels: {node: b, labels: [Admin]}
  - merge_node: {var: a2, labels: [Person], match: {name: Alice}, on_match: {seen: true}}
  - commit
`

func TestScript_Run(t *testing.T) {
	exec, w := newGraph(t)
	s, err := ParseScript([]byte(socialScript))
	require.NoError(t, err)
	require.Len(t, s.Steps, 8)

	res, err := s.Run(exec, w)
	require.NoError(t, err)
	assert.False(t, w.InTransaction())

	merge := res.Steps[6]
	assert.Equal(t, "merge_node", merge.Op)
	assert.False(t, merge.Created)
	assert.Equal(t, res.Steps[1].ID, merge.ID)

	assert.Equal(t, 2, res.Stats.NodesCreated)
	assert.Equal(t, 1, res.Stats.RelationshipsCreated)
	assert.Equal(t, 3, res.Stats.LabelsAdded)

	n, err := exec.Store().GetNode(storage.NodeID(storage.FormatID(res.Steps[1].ID)))
	require.NoError(t, err)
	assert.True(t, storage.PropertyEqual(30, n.Properties["age"]))
	assert.Equal(t, true, n.Properties["seen"])
}

func TestScript_RollbackAndDelete(t *testing.T) {
	exec, w := newGraph(t)
	s, err := ParseScript([]byte(`
- create_node: {var: a}
- create_node: {var: b}
- create_rel: {var: r, from: a, to: b, type: T}
- begin
- delete: {target: a, detach: true}
- rollback
- delete: {target: r}
- delete: {target: a}
- remove_property: {target: b, key: missing}
- set_property: {target: {node: 2}, key: k, value: null}
`))
	require.NoError(t, err)
	_, err = s.Run(exec, w)
	require.NoError(t, err)

	count, err := exec.Store().NodeCount()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	edges, err := exec.Store().EdgeCount()
	require.NoError(t, err)
	assert.Zero(t, edges)
}

func TestScript_StepErrorsKeepKind(t *testing.T) {
	exec, w := newGraph(t)
	s, err := ParseScript([]byte(`
- create_node: {var: a}
- create_node: {var: b}
- create_rel: {from: a, to: b, type: T}
- delete: {target: a}
- create_node: {var: c}
`))
	require.NoError(t, err)

	res, err := s.Run(exec, w)
	require.Error(t, err)
	assert.ErrorIs(t, err, qerr.ErrConstraintViolation)
	assert.Contains(t, err.Error(), "step 4 (delete)")
	assert.Len(t, res.Steps, 3)

	s, err = ParseScript([]byte(`[{set_labels: {node: ghost, labels: [X]}}]`))
	require.NoError(t, err)
	_, err = s.Run(exec, w)
	assert.ErrorIs(t, err, qerr.ErrNotFound)
}

func TestParseScript_Errors(t *testing.T) {
	bad := map[string]string{
		"unknown step":     `[frobnicate]`,
		"unknown argument": `[{create_node: {var: a, colour: red}}]`,
		"two ops":          `[{begin: null, commit: null}]`,
		"missing type":     `[{create_rel: {from: 1, to: 2}}]`,
		"value and expr":   `[{set_property: {target: a, key: k, value: 1, expr: {lit: 1}}}]`,
		"tx with args":     `[{commit: {now: true}}]`,
		"bad ref":          `[{delete: {target: [1]}}]`,
		"not a list":       `steps: 3`,
		"extra root key":   `{steps: [], other: 1}`,
	}
	for name, doc := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := ParseScript([]byte(doc))
			require.Error(t, err)
			assert.True(t, errors.Is(err, qerr.ErrFormat), "got %v", err)
		})
	}
}
