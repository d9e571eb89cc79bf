package iterator

import (
	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// DefaultNodeAlias and DefaultRelationshipAlias name scan columns when the
// plan leaves the alias empty.
const (
	DefaultNodeAlias         = "node"
	DefaultRelationshipAlias = "rel"
)

// source opens a cursor over the entity ids a scan streams, in store order.
type source func(store storage.Engine) (storage.Cursor, error)

// Scan is a leaf iterator streaming one entity reference per row under its
// alias. All scan kinds share it and differ only in their source. Ids are
// pulled from the store cursor one per Next.
type Scan struct {
	base
	alias  string
	rels   bool
	source source

	cursor storage.Cursor
}

func newScan(ctx *cypher.Context, name, alias string, rels bool, src source) *Scan {
	if alias == "" {
		alias = DefaultNodeAlias
		if rels {
			alias = DefaultRelationshipAlias
		}
	}
	return &Scan{base: base{name: name, ctx: ctx}, alias: alias, rels: rels, source: src}
}

// NewAllNodesScan streams every node.
func NewAllNodesScan(ctx *cypher.Context, alias string) *Scan {
	return newScan(ctx, "all-nodes-scan", alias, false, storage.Engine.ScanNodes)
}

// NewAllRelationshipsScan streams every relationship.
func NewAllRelationshipsScan(ctx *cypher.Context, alias string) *Scan {
	return newScan(ctx, "all-relationships-scan", alias, true, storage.Engine.ScanEdges)
}

// NewLabelIndexScan streams nodes carrying label.
func NewLabelIndexScan(ctx *cypher.Context, alias, label string) *Scan {
	return newScan(ctx, "label-index-scan", alias, false, func(s storage.Engine) (storage.Cursor, error) {
		return s.ScanNodesByLabel(label)
	})
}

// NewPropertyIndexScan streams nodes whose property key equals v.
func NewPropertyIndexScan(ctx *cypher.Context, alias, key string, v value.Value) *Scan {
	want := v.ToGo()
	return newScan(ctx, "property-index-scan", alias, false, func(s storage.Engine) (storage.Cursor, error) {
		if v.IsNull() {
			// Nothing equals Null.
			return emptyCursor{}, nil
		}
		return s.ScanNodesByProperty(key, want)
	})
}

// NewTypeIndexScan streams relationships of type relType.
func NewTypeIndexScan(ctx *cypher.Context, alias, relType string) *Scan {
	return newScan(ctx, "type-index-scan", alias, true, func(s storage.Engine) (storage.Cursor, error) {
		return s.ScanEdgesByType(relType)
	})
}

type emptyCursor struct{}

func (emptyCursor) Next() (string, bool, error) { return "", false, nil }
func (emptyCursor) Close() error { return nil }

// Alias returns the column name rows are emitted under.
func (s *Scan) Alias() string { return s.alias }

func (s *Scan) Children() []Iterator { return nil }

func (s *Scan) Open() error {
	if s.ctx == nil || s.ctx.Store() == nil {
		return qerr.New(qerr.KindMisuse, s.name, "scan requires a store")
	}
	s.release()
	cursor, err := s.source(s.ctx.Store())
	if err != nil {
		err = qerr.Wrap(qerr.KindStorage, s.name, err)
		s.ctx.SetError(err)
		return err
	}
	s.cursor = cursor
	s.state = StateOpened
	return nil
}

func (s *Scan) Next(out *cypher.Row) (bool, error) {
	if done, err := s.beginNext(); done || err != nil {
		return false, err
	}
	raw, ok, err := s.cursor.Next()
	if err != nil {
		return s.fail(qerr.Wrap(qerr.KindStorage, s.name, err))
	}
	if !ok {
		s.release()
		return s.exhaust()
	}

	id, err := storage.ParseID(raw)
	if err != nil {
		return s.fail(qerr.Wrap(qerr.KindFormat, s.name, err))
	}
	ref := value.Node(id)
	if s.rels {
		ref = value.Rel(id)
	}
	out.Reset()
	out.Add(s.alias, ref)
	s.ctx.RowsProcessed++
	return true, nil
}

// release closes the store cursor, ending any read transaction it holds.
func (s *Scan) release() {
	if s.cursor != nil {
		_ = s.cursor.Close()
		s.cursor = nil
	}
}

func (s *Scan) Close() error {
	s.release()
	s.state = StateUnopened
	return nil
}

func (s *Scan) Destroy() { _ = s.Close() }
