// Package cypher holds the per-query execution state and the expression
// evaluator of the graphexec engine.
//
// A Context is created once per query invocation. It owns the variable
// bindings that write operations populate (CREATE binds its variable to a
// NodeRef) and that expressions read, a handle to the backing store, row
// counters, and the first error raised while the query ran.
//
// Expressions are a closed set of node types (Literal, Variable, Property,
// Arithmetic, Comparison, Logical, StringOp, FunctionCall, ListLiteral,
// MapLiteral) evaluated by Eval with Cypher's three-valued logic.
//
// Example:
//
//	ctx := cypher.NewContext(engine)
//	defer ctx.Destroy()
//
//	ctx.Bind("x", value.Int(5))
//	v, err := cypher.Eval(ctx, cypher.Arith(cypher.OpDiv, cypher.Var("x"), cypher.Lit(value.Int(0))), nil)
//	// v is Null: division by zero yields Null, not an error
package cypher

import (
	"sort"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// Context is the execution state of one query invocation.
//
// A Context is not safe for concurrent use. Independent queries running in
// parallel must each own a Context.
type Context struct {
	store    storage.Engine
	bindings map[string]value.Value

	// RowsProduced counts rows emitted by the root of an iterator tree.
	RowsProduced int64
	// RowsProcessed counts rows pulled from leaf scans.
	RowsProcessed int64

	err error
}

// NewContext creates an empty Context over store. A nil store is allowed for
// evaluation that never touches the graph.
func NewContext(store storage.Engine) *Context {
	return &Context{
		store:    store,
		bindings: make(map[string]value.Value),
	}
}

// Store returns the backing store handle.
func (c *Context) Store() storage.Engine {
	return c.store
}

// Bind stores a copy of v under name, replacing any earlier binding.
func (c *Context) Bind(name string, v value.Value) error {
	if name == "" {
		return qerr.New(qerr.KindMisuse, "bind", "variable name is empty")
	}
	if old, ok := c.bindings[name]; ok {
		old.Reset()
	}
	c.bindings[name] = v.Copy()
	return nil
}

// Get returns a copy of the value bound to name.
func (c *Context) Get(name string) (value.Value, error) {
	v, ok := c.bindings[name]
	if !ok {
		return value.Null(), qerr.New(qerr.KindNotFound, "get", "variable %q is not bound", name)
	}
	return v.Copy(), nil
}

// Lookup is Get without the error.
func (c *Context) Lookup(name string) (value.Value, bool) {
	v, ok := c.bindings[name]
	if !ok {
		return value.Null(), false
	}
	return v.Copy(), true
}

// Unbind removes a binding. Unknown names are ignored.
func (c *Context) Unbind(name string) {
	delete(c.bindings, name)
}

// Names returns the bound variable names in lexical order.
func (c *Context) Names() []string {
	names := make([]string, 0, len(c.bindings))
	for name := range c.bindings {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetError records err as the query's error unless one is already set.
func (c *Context) SetError(err error) {
	if err != nil && c.err == nil {
		c.err = err
	}
}

// Err returns the first error recorded for the query.
func (c *Context) Err() error { return c.err }

// ErrKind returns the kind of the recorded error.
func (c *Context) ErrKind() qerr.Kind { return qerr.KindOf(c.err) }

// ClearError forgets the recorded error.
func (c *Context) ClearError() { c.err = nil }

// Destroy drops every binding and resets counters. The store handle is not
// closed; it belongs to the caller.
func (c *Context) Destroy() {
	for name := range c.bindings {
		delete(c.bindings, name)
	}
	c.RowsProduced = 0
	c.RowsProcessed = 0
	c.err = nil
}
