package iterator

import (
	"strconv"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
)

// ============================================================================
// Filter
// ============================================================================

// Filter passes through child rows whose predicate evaluates to true. Null
// and false both reject the row.
type Filter struct {
	unary
	predicate cypher.Expr
}

// NewFilter wraps child with predicate.
func NewFilter(ctx *cypher.Context, child Iterator, predicate cypher.Expr) *Filter {
	return &Filter{unary: unary{base: base{name: "filter", ctx: ctx}, child: child}, predicate: predicate}
}

func (f *Filter) Open() error  { return f.openChild() }
func (f *Filter) Close() error { return f.closeChild() }
func (f *Filter) Destroy()     { f.destroyChild(f) }

func (f *Filter) Next(out *cypher.Row) (bool, error) {
	if done, err := f.beginNext(); done || err != nil {
		return false, err
	}
	for {
		ok, err := f.child.Next(out)
		if err != nil {
			return f.fail(err)
		}
		if !ok {
			return f.exhaust()
		}
		keep, err := cypher.EvalPredicate(f.ctx, f.predicate, out)
		if err != nil {
			return f.fail(err)
		}
		if keep {
			return true, nil
		}
	}
}

// ============================================================================
// Projection
// ============================================================================

// Projection computes one output column per expression. Columns are named
// by the matching alias, or positionally (col0, col1, ...) when the alias is
// empty or missing.
type Projection struct {
	unary
	exprs   []cypher.Expr
	aliases []string
	scratch cypher.Row
}

// NewProjection evaluates exprs against each child row.
func NewProjection(ctx *cypher.Context, child Iterator, exprs []cypher.Expr, aliases []string) *Projection {
	return &Projection{
		unary:   unary{base: base{name: "projection", ctx: ctx}, child: child},
		exprs:   exprs,
		aliases: aliases,
	}
}

// ColumnName returns the output name of column i.
func (p *Projection) ColumnName(i int) string {
	if i < len(p.aliases) && p.aliases[i] != "" {
		return p.aliases[i]
	}
	return "col" + strconv.Itoa(i)
}

func (p *Projection) Open() error { return p.openChild() }

func (p *Projection) Close() error {
	p.scratch.Reset()
	return p.closeChild()
}

func (p *Projection) Destroy() { p.destroyChild(p) }

func (p *Projection) Next(out *cypher.Row) (bool, error) {
	if done, err := p.beginNext(); done || err != nil {
		return false, err
	}
	ok, err := p.child.Next(&p.scratch)
	if err != nil {
		return p.fail(err)
	}
	if !ok {
		return p.exhaust()
	}

	out.Reset()
	for i, e := range p.exprs {
		v, err := cypher.Eval(p.ctx, e, &p.scratch)
		if err != nil {
			p.scratch.Reset()
			return p.fail(err)
		}
		out.Add(p.ColumnName(i), v)
	}
	p.scratch.Reset()
	return true, nil
}

// ============================================================================
// Skip and Limit
// ============================================================================

// Skip discards the first N child rows.
type Skip struct {
	unary
	n       int64
	skipped bool
}

// NewSkip drops n rows from child.
func NewSkip(ctx *cypher.Context, child Iterator, n int64) *Skip {
	return &Skip{unary: unary{base: base{name: "skip", ctx: ctx}, child: child}, n: n}
}

func (s *Skip) Open() error {
	s.skipped = false
	return s.openChild()
}

func (s *Skip) Close() error { return s.closeChild() }
func (s *Skip) Destroy()     { s.destroyChild(s) }

func (s *Skip) Next(out *cypher.Row) (bool, error) {
	if done, err := s.beginNext(); done || err != nil {
		return false, err
	}
	if !s.skipped {
		s.skipped = true
		for i := int64(0); i < s.n; i++ {
			ok, err := s.child.Next(out)
			if err != nil {
				return s.fail(err)
			}
			if !ok {
				out.Reset()
				return s.exhaust()
			}
		}
	}
	ok, err := s.child.Next(out)
	if err != nil {
		return s.fail(err)
	}
	if !ok {
		return s.exhaust()
	}
	return true, nil
}

// Limit yields at most N child rows. Rows beyond N are never pulled; the
// child stays open until Close.
type Limit struct {
	unary
	n       int64
	emitted int64
}

// NewLimit caps child at n rows.
func NewLimit(ctx *cypher.Context, child Iterator, n int64) *Limit {
	return &Limit{unary: unary{base: base{name: "limit", ctx: ctx}, child: child}, n: n}
}

func (l *Limit) Open() error {
	l.emitted = 0
	return l.openChild()
}

func (l *Limit) Close() error { return l.closeChild() }
func (l *Limit) Destroy()     { l.destroyChild(l) }

func (l *Limit) Next(out *cypher.Row) (bool, error) {
	if done, err := l.beginNext(); done || err != nil {
		return false, err
	}
	if l.emitted >= l.n {
		return l.exhaust()
	}
	ok, err := l.child.Next(out)
	if err != nil {
		return l.fail(err)
	}
	if !ok {
		return l.exhaust()
	}
	l.emitted++
	return true, nil
}

func checkCount(op string, n int64) error {
	if n < 0 {
		return qerr.New(qerr.KindRange, op, "count must not be negative, got %d", n)
	}
	return nil
}
