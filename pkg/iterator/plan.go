package iterator

import (
	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/value"
)

// Kind names a physical operator.
type Kind string

const (
	KindAllNodesScan         Kind = "all_nodes_scan"
	KindAllRelationshipsScan Kind = "all_relationships_scan"
	KindLabelIndexScan       Kind = "label_index_scan"
	KindPropertyIndexScan    Kind = "property_index_scan"
	KindTypeIndexScan        Kind = "type_index_scan"
	KindFilter               Kind = "filter"
	KindProjection           Kind = "projection"
	KindSort                 Kind = "sort"
	KindSkip                 Kind = "skip"
	KindLimit                Kind = "limit"
)

// Plan is one node of a physical plan tree as handed over by a planner.
// Only the fields relevant to Kind are read.
type Plan struct {
	Kind     Kind
	Children []*Plan

	// Scans.
	Alias   string
	Label   string
	Key     string
	Value   value.Value
	RelType string

	// Filter.
	Predicate cypher.Expr

	// Projection. Aliases may be shorter than Projections.
	Projections []cypher.Expr
	Aliases     []string

	// Sort.
	SortKeys []SortKey

	// Skip and Limit.
	Count int64
}

// Options tune iterator construction.
type Options struct {
	// MaxSortRows bounds Sort buffers; zero means unbounded.
	MaxSortRows int
}

// Build converts a plan tree into an iterator tree, one iterator per plan
// node with the same child order. Unknown kinds and wrong child counts fail
// here rather than during execution.
func Build(ctx *cypher.Context, p *Plan) (Iterator, error) {
	return BuildWithOptions(ctx, p, Options{})
}

// BuildWithOptions is Build with explicit Options.
func BuildWithOptions(ctx *cypher.Context, p *Plan, opts Options) (Iterator, error) {
	if p == nil {
		return nil, qerr.New(qerr.KindMisuse, "build", "nil plan")
	}

	switch p.Kind {
	case KindAllNodesScan, KindAllRelationshipsScan, KindLabelIndexScan, KindPropertyIndexScan, KindTypeIndexScan:
		if err := arity(p, 0); err != nil {
			return nil, err
		}
		return buildScan(ctx, p)
	case KindFilter, KindProjection, KindSort, KindSkip, KindLimit:
		if err := arity(p, 1); err != nil {
			return nil, err
		}
	default:
		return nil, qerr.New(qerr.KindMisuse, "build", "unknown operator kind %q", p.Kind)
	}

	if err := validateUnary(p); err != nil {
		return nil, err
	}
	child, err := BuildWithOptions(ctx, p.Children[0], opts)
	if err != nil {
		return nil, err
	}

	switch p.Kind {
	case KindFilter:
		return NewFilter(ctx, child, p.Predicate), nil
	case KindProjection:
		return NewProjection(ctx, child, p.Projections, p.Aliases), nil
	case KindSort:
		return NewSort(ctx, child, p.SortKeys, opts.MaxSortRows), nil
	case KindSkip:
		return NewSkip(ctx, child, p.Count), nil
	default:
		return NewLimit(ctx, child, p.Count), nil
	}
}

func buildScan(ctx *cypher.Context, p *Plan) (Iterator, error) {
	switch p.Kind {
	case KindAllNodesScan:
		return NewAllNodesScan(ctx, p.Alias), nil
	case KindAllRelationshipsScan:
		return NewAllRelationshipsScan(ctx, p.Alias), nil
	case KindLabelIndexScan:
		if p.Label == "" {
			return nil, qerr.New(qerr.KindMisuse, "build", "label_index_scan needs a label")
		}
		return NewLabelIndexScan(ctx, p.Alias, p.Label), nil
	case KindPropertyIndexScan:
		if p.Key == "" {
			return nil, qerr.New(qerr.KindMisuse, "build", "property_index_scan needs a key")
		}
		return NewPropertyIndexScan(ctx, p.Alias, p.Key, p.Value), nil
	default:
		if p.RelType == "" {
			return nil, qerr.New(qerr.KindMisuse, "build", "type_index_scan needs a relationship type")
		}
		return NewTypeIndexScan(ctx, p.Alias, p.RelType), nil
	}
}

func validateUnary(p *Plan) error {
	switch p.Kind {
	case KindFilter:
		if p.Predicate == nil {
			return qerr.New(qerr.KindMisuse, "build", "filter needs a predicate")
		}
	case KindProjection:
		if len(p.Projections) == 0 {
			return qerr.New(qerr.KindMisuse, "build", "projection needs at least one expression")
		}
		if len(p.Aliases) > len(p.Projections) {
			return qerr.New(qerr.KindMisuse, "build", "projection has %d aliases for %d expressions",
				len(p.Aliases), len(p.Projections))
		}
	case KindSort:
		if len(p.SortKeys) == 0 {
			return qerr.New(qerr.KindMisuse, "build", "sort needs at least one key")
		}
	case KindSkip, KindLimit:
		return checkCount(string(p.Kind), p.Count)
	}
	return nil
}

func arity(p *Plan, want int) error {
	if len(p.Children) != want {
		return qerr.New(qerr.KindMisuse, "build", "%s takes %d children, got %d", p.Kind, want, len(p.Children))
	}
	return nil
}
