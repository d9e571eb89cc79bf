// Package plan decodes physical plans, expressions and write scripts from
// YAML or JSON documents.
//
// A plan is a tree of operator mappings:
//
//	op: limit
//	limit: 1
//	children:
//	  - op: projection
//	    projections: [{var: n}]
//	    children:
//	      - op: label_index_scan
//	        alias: n
//	        label: Person
//
// Decoding only checks document shape. Operator arity and required fields
// are checked by iterator.Build.
package plan

import (
	"os"

	"github.com/orneryd/graphexec/pkg/iterator"
	"github.com/orneryd/graphexec/pkg/qerr"
)

// Document is one operator of a plan tree in document form.
type Document struct {
	Op string `yaml:"op"`

	Alias string  `yaml:"alias,omitempty"`
	Label string  `yaml:"label,omitempty"`
	Key   string  `yaml:"key,omitempty"`
	Value Literal `yaml:"value,omitempty"`
	Type  string  `yaml:"type,omitempty"`

	Predicate   *Expression  `yaml:"predicate,omitempty"`
	Projections []Expression `yaml:"projections,omitempty"`
	Aliases     []string     `yaml:"aliases,omitempty"`
	Sort        []SortKey    `yaml:"sort,omitempty"`

	// Count serves skip and limit; Skip and Limit are per-operator
	// spellings of the same field.
	Count *int64 `yaml:"count,omitempty"`
	Skip  *int64 `yaml:"skip,omitempty"`
	Limit *int64 `yaml:"limit,omitempty"`

	Children []*Document `yaml:"children,omitempty"`
}

// SortKey is one ORDER BY key.
type SortKey struct {
	Expr Expression `yaml:"expr"`
	Desc bool       `yaml:"desc,omitempty"`
}

var kinds = map[string]iterator.Kind{
	string(iterator.KindAllNodesScan):         iterator.KindAllNodesScan,
	string(iterator.KindAllRelationshipsScan): iterator.KindAllRelationshipsScan,
	string(iterator.KindLabelIndexScan):       iterator.KindLabelIndexScan,
	string(iterator.KindPropertyIndexScan):    iterator.KindPropertyIndexScan,
	string(iterator.KindTypeIndexScan):        iterator.KindTypeIndexScan,
	string(iterator.KindFilter):               iterator.KindFilter,
	string(iterator.KindProjection):           iterator.KindProjection,
	string(iterator.KindSort):                 iterator.KindSort,
	string(iterator.KindSkip):                 iterator.KindSkip,
	string(iterator.KindLimit):                iterator.KindLimit,
}

// ParsePlan decodes a YAML or JSON plan document.
func ParsePlan(data []byte) (*iterator.Plan, error) {
	var doc Document
	if err := decode(data, &doc); err != nil {
		return nil, err
	}
	return doc.Plan()
}

// LoadPlan reads and decodes a plan file.
func LoadPlan(path string) (*iterator.Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindNotFound, "load-plan", err)
	}
	return ParsePlan(data)
}

// Plan converts the document tree into an iterator plan.
func (d *Document) Plan() (*iterator.Plan, error) {
	if d == nil {
		return nil, qerr.New(qerr.KindFormat, "plan", "empty plan node")
	}
	kind, ok := kinds[d.Op]
	if !ok {
		return nil, qerr.New(qerr.KindFormat, "plan", "unknown operator %q", d.Op)
	}

	p := &iterator.Plan{
		Kind:    kind,
		Alias:   d.Alias,
		Label:   d.Label,
		Key:     d.Key,
		Value:   d.Value.Value,
		RelType: d.Type,
		Aliases: d.Aliases,
	}
	if d.Predicate != nil {
		p.Predicate = d.Predicate.Expr
	}
	for _, e := range d.Projections {
		p.Projections = append(p.Projections, e.Expr)
	}
	for _, k := range d.Sort {
		if k.Expr.Expr == nil {
			return nil, qerr.New(qerr.KindFormat, "plan", "sort key without expr")
		}
		p.SortKeys = append(p.SortKeys, iterator.SortKey{Expr: k.Expr.Expr, Descending: k.Desc})
	}

	if kind == iterator.KindSkip || kind == iterator.KindLimit {
		n := d.Count
		if kind == iterator.KindSkip && d.Skip != nil {
			n = d.Skip
		}
		if kind == iterator.KindLimit && d.Limit != nil {
			n = d.Limit
		}
		if n == nil {
			return nil, qerr.New(qerr.KindFormat, "plan", "%s needs a count", d.Op)
		}
		p.Count = *n
	}

	for _, c := range d.Children {
		child, err := c.Plan()
		if err != nil {
			return nil, err
		}
		p.Children = append(p.Children, child)
	}
	return p, nil
}
