package value

import (
	"cmp"
	"math"
	"strings"

	"github.com/orneryd/graphexec/pkg/qerr"
)

// Compare orders a against b, returning -1, 0 or +1.
//
// Null sorts before every non-Null value and equals itself. Integer and Float
// compare numerically with each other. Any other pair of different kinds is a
// type mismatch, as is a pair of Maps, since maps carry no order.
func Compare(a, b Value) (int, error) {
	switch {
	case a.kind == KindNull && b.kind == KindNull:
		return 0, nil
	case a.kind == KindNull:
		return -1, nil
	case b.kind == KindNull:
		return 1, nil
	}

	if a.IsNumeric() && b.IsNumeric() {
		return compareNumeric(a, b), nil
	}
	if a.kind != b.kind {
		return 0, qerr.New(qerr.KindTypeMismatch, "compare", "cannot compare %s with %s", a.kind, b.kind)
	}

	switch a.kind {
	case KindBool:
		return compareBool(a.b, b.b), nil
	case KindString:
		return strings.Compare(a.s, b.s), nil
	case KindNode, KindRelationship:
		return cmp.Compare(a.i, b.i), nil
	case KindList:
		n := min(len(a.list), len(b.list))
		for i := 0; i < n; i++ {
			c, err := Compare(a.list[i], b.list[i])
			if err != nil {
				return 0, err
			}
			if c != 0 {
				return c, nil
			}
		}
		return cmp.Compare(len(a.list), len(b.list)), nil
	}
	return 0, qerr.New(qerr.KindTypeMismatch, "compare", "%s values are not ordered", a.kind)
}

// Equal reports deep equality. Numbers compare by numeric value, Maps compare
// by key set regardless of entry order, and Null equals only Null.
func Equal(a, b Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return compareNumeric(a, b) == 0
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindString:
		return a.s == b.s
	case KindNode, KindRelationship:
		return a.i == b.i
	case KindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !Equal(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case KindMap:
		if len(a.pairs) != len(b.pairs) {
			return false
		}
		for _, p := range a.pairs {
			other, ok := b.Get(p.Key)
			if !ok || !Equal(p.Val, other) {
				return false
			}
		}
		return true
	}
	return false
}

func compareNumeric(a, b Value) int {
	if a.kind == KindInt && b.kind == KindInt {
		return cmp.Compare(a.i, b.i)
	}
	af, _ := a.AsFloat()
	bf, _ := b.AsFloat()
	// NaN sorts after every number so the order stays total.
	switch {
	case math.IsNaN(af) && math.IsNaN(bf):
		return 0
	case math.IsNaN(af):
		return 1
	case math.IsNaN(bf):
		return -1
	}
	return cmp.Compare(af, bf)
}

func compareBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}
