package iterator

import (
	"slices"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/value"
)

// SortKey orders rows by Expr. Nulls sort first ascending and last
// descending.
type SortKey struct {
	Expr       cypher.Expr
	Descending bool
}

// Sort drains its child during Open, orders the buffered rows and replays
// them. It is the only operator that buffers more than one row.
type Sort struct {
	unary
	keys    []SortKey
	maxRows int

	rows []sortedRow
	pos  int
}

type sortedRow struct {
	row  *cypher.Row
	keys []value.Value
}

// NewSort orders child by keys. maxRows bounds the buffer; zero means
// unbounded.
func NewSort(ctx *cypher.Context, child Iterator, keys []SortKey, maxRows int) *Sort {
	return &Sort{
		unary:   unary{base: base{name: "sort", ctx: ctx}, child: child},
		keys:    keys,
		maxRows: maxRows,
	}
}

func (s *Sort) Open() error {
	s.rows, s.pos = nil, 0
	if err := s.openChild(); err != nil {
		return err
	}
	if err := s.materialize(); err != nil {
		s.rows = nil
		_, err = s.fail(err)
		return err
	}
	return nil
}

func (s *Sort) materialize() error {
	for {
		row := &cypher.Row{}
		ok, err := s.child.Next(row)
		if err != nil {
			return err
		}
		if !ok {
			break
		}
		if s.maxRows > 0 && len(s.rows) >= s.maxRows {
			return qerr.New(qerr.KindOutOfMemory, "sort", "more than %d rows to sort", s.maxRows)
		}
		keys := make([]value.Value, len(s.keys))
		for i, k := range s.keys {
			if keys[i], err = cypher.Eval(s.ctx, k.Expr, row); err != nil {
				return err
			}
		}
		s.rows = append(s.rows, sortedRow{row: row, keys: keys})
	}

	var cmpErr error
	slices.SortStableFunc(s.rows, func(a, b sortedRow) int {
		for i, k := range s.keys {
			c, err := value.Compare(a.keys[i], b.keys[i])
			if err != nil {
				if cmpErr == nil {
					cmpErr = err
				}
				return 0
			}
			if k.Descending {
				c = -c
			}
			if c != 0 {
				return c
			}
		}
		return 0
	})
	return cmpErr
}

func (s *Sort) Next(out *cypher.Row) (bool, error) {
	if done, err := s.beginNext(); done || err != nil {
		return false, err
	}
	if s.pos >= len(s.rows) {
		return s.exhaust()
	}
	out.CopyFrom(s.rows[s.pos].row)
	s.pos++
	return true, nil
}

func (s *Sort) Close() error {
	s.rows, s.pos = nil, 0
	return s.closeChild()
}

func (s *Sort) Destroy() { s.destroyChild(s) }
