// Package iterator implements the pull-based (Volcano) execution engine of
// graphexec.
//
// Every operator implements Iterator and moves through the same states:
//
//	Unopened --Open--> Opened --Next returns false--> Exhausted
//	    ^                                                 |
//	    +---------------------- Close --------------------+
//
// Rows are produced only on demand: a parent calls Next on its child, the
// child fills the row passed in, and nothing is computed ahead of time except
// by Sort, which drains its child during Open.
//
// Example:
//
//	it, err := iterator.Build(ctx, &iterator.Plan{
//		Kind:  iterator.KindLimit,
//		Count: 10,
//		Children: []*iterator.Plan{
//			{Kind: iterator.KindLabelIndexScan, Alias: "n", Label: "Person"},
//		},
//	})
//	if err != nil {
//		return err
//	}
//	defer it.Destroy()
//
//	res, err := iterator.Execute(ctx, it)
package iterator

import (
	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
)

// State is the lifecycle position of an iterator.
type State int

const (
	StateUnopened State = iota
	StateOpened
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateOpened:
		return "opened"
	case StateExhausted:
		return "exhausted"
	}
	return "unopened"
}

// Iterator is one node of an execution tree.
type Iterator interface {
	// Open acquires resources and positions the iterator before its first
	// row. Opening an iterator that is already open restarts it.
	Open() error

	// Next fills out with the next row and reports true, or reports false
	// once the input is exhausted. Calling Next before Open is a misuse;
	// calling it after exhaustion keeps reporting false.
	Next(out *cypher.Row) (bool, error)

	// Close releases resources. It is safe on a closed or never-opened
	// iterator and leaves the iterator reusable through Open.
	Close() error

	// Destroy closes the iterator if needed and destroys its children.
	Destroy()

	// State reports the current lifecycle state.
	State() State

	// Children returns the direct inputs in plan order.
	Children() []Iterator
}

// base carries the state machine shared by every operator.
type base struct {
	name  string
	ctx   *cypher.Context
	state State
}

func (b *base) State() State { return b.state }

// beginNext validates a Next call. done reports that the iterator is
// already exhausted.
func (b *base) beginNext() (done bool, err error) {
	switch b.state {
	case StateUnopened:
		return false, qerr.New(qerr.KindMisuse, b.name, "next called before open")
	case StateExhausted:
		return true, nil
	}
	return false, nil
}

func (b *base) exhaust() (bool, error) {
	b.state = StateExhausted
	return false, nil
}

// fail records err on the context so the first failure of a query is kept.
func (b *base) fail(err error) (bool, error) {
	if b.ctx != nil {
		b.ctx.SetError(err)
	}
	return false, err
}

// unary is the base for operators with exactly one child.
type unary struct {
	base
	child Iterator
}

func (u *unary) Children() []Iterator {
	if u.child == nil {
		return nil
	}
	return []Iterator{u.child}
}

func (u *unary) openChild() error {
	if u.child == nil {
		return qerr.New(qerr.KindMisuse, u.name, "iterator was destroyed")
	}
	if u.state != StateUnopened {
		if err := u.child.Close(); err != nil {
			return err
		}
	}
	if err := u.child.Open(); err != nil {
		return err
	}
	u.state = StateOpened
	return nil
}

func (u *unary) closeChild() error {
	u.state = StateUnopened
	if u.child == nil {
		return nil
	}
	return u.child.Close()
}

func (u *unary) destroyChild(self Iterator) {
	_ = self.Close()
	if u.child != nil {
		u.child.Destroy()
		u.child = nil
	}
}

// Drain opens it, collects every row, and closes it again.
func Drain(it Iterator) ([]*cypher.Row, error) {
	if err := it.Open(); err != nil {
		_ = it.Close()
		return nil, err
	}
	var rows []*cypher.Row
	for {
		row := &cypher.Row{}
		ok, err := it.Next(row)
		if err != nil {
			_ = it.Close()
			return rows, err
		}
		if !ok {
			break
		}
		rows = append(rows, row)
	}
	return rows, it.Close()
}
