package cypher

import (
	"errors"
	"math"
	"math/bits"
	"regexp"
	"strings"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// Eval evaluates expr against row and the context bindings.
//
// Row columns shadow context bindings of the same name. row may be nil.
// Evaluation never writes to the context; the first error raised anywhere in
// the tree is returned and evaluation stops.
func Eval(ctx *Context, expr Expr, row *Row) (value.Value, error) {
	if expr == nil {
		return value.Null(), qerr.New(qerr.KindMisuse, "eval", "nil expression")
	}
	switch e := expr.(type) {
	case *Literal:
		return e.Value.Copy(), nil
	case *Variable:
		return evalVariable(ctx, e, row)
	case *Property:
		return evalProperty(ctx, e, row)
	case *Arithmetic:
		return evalArithmetic(ctx, e, row)
	case *Comparison:
		return evalComparison(ctx, e, row)
	case *Logical:
		return evalLogical(ctx, e, row)
	case *StringOp:
		return evalStringOp(ctx, e, row)
	case *FunctionCall:
		return evalFunction(ctx, e, row)
	case *ListLiteral:
		elems := make([]value.Value, 0, len(e.Elems))
		for _, x := range e.Elems {
			v, err := Eval(ctx, x, row)
			if err != nil {
				return value.Null(), err
			}
			elems = append(elems, v)
		}
		return value.NewList(elems...), nil
	case *MapLiteral:
		pairs := make([]value.Pair, 0, len(e.Entries))
		for _, entry := range e.Entries {
			v, err := Eval(ctx, entry.Value, row)
			if err != nil {
				return value.Null(), err
			}
			pairs = append(pairs, value.P(entry.Key, v))
		}
		return value.NewMap(pairs...), nil
	}
	return value.Null(), qerr.New(qerr.KindMisuse, "eval", "unsupported expression %T", expr)
}

// EvalPredicate evaluates expr as a filter condition. Null and false reject
// the row; any non-boolean result is a type mismatch.
func EvalPredicate(ctx *Context, expr Expr, row *Row) (bool, error) {
	v, err := Eval(ctx, expr, row)
	if err != nil {
		return false, err
	}
	switch v.Kind() {
	case value.KindNull:
		return false, nil
	case value.KindBool:
		return v.Truthy(), nil
	}
	return false, qerr.New(qerr.KindTypeMismatch, "predicate", "%s evaluated to %s, expected Boolean", expr, v.Kind())
}

func evalVariable(ctx *Context, e *Variable, row *Row) (value.Value, error) {
	if v, ok := row.Get(e.Name); ok {
		return v, nil
	}
	if ctx == nil {
		return value.Null(), qerr.New(qerr.KindNotFound, "eval", "variable %q is not bound", e.Name)
	}
	return ctx.Get(e.Name)
}

func evalProperty(ctx *Context, e *Property, row *Row) (value.Value, error) {
	subject, err := Eval(ctx, e.Subject, row)
	if err != nil {
		return value.Null(), err
	}
	switch subject.Kind() {
	case value.KindNull:
		return value.Null(), nil
	case value.KindMap:
		v, _ := subject.Get(e.Key)
		return v, nil
	case value.KindNode, value.KindRelationship:
		props, err := entityProperties(ctx, subject)
		if err != nil {
			return value.Null(), err
		}
		raw, ok := props[e.Key]
		if !ok {
			return value.Null(), nil
		}
		v, err := value.FromGo(raw)
		if err != nil {
			return value.Null(), qerr.Wrap(qerr.KindFormat, "property "+e.Key, err)
		}
		return v, nil
	}
	return value.Null(), qerr.New(qerr.KindTypeMismatch, "property", "cannot read .%s of %s", e.Key, subject.Kind())
}

// entityProperties loads the property map of a node or relationship ref.
func entityProperties(ctx *Context, ref value.Value) (map[string]any, error) {
	id, _ := ref.ID()
	store, err := requireStore(ctx)
	if err != nil {
		return nil, err
	}
	if ref.Kind() == value.KindNode {
		n, err := store.GetNode(storage.NodeID(storage.FormatID(id)))
		if err != nil {
			return nil, storageErr("node", id, err)
		}
		return n.Properties, nil
	}
	r, err := store.GetEdge(storage.EdgeID(storage.FormatID(id)))
	if err != nil {
		return nil, storageErr("relationship", id, err)
	}
	return r.Properties, nil
}

func requireStore(ctx *Context) (storage.Engine, error) {
	if ctx == nil || ctx.Store() == nil {
		return nil, qerr.New(qerr.KindMisuse, "eval", "graph access requires a store")
	}
	return ctx.Store(), nil
}

func storageErr(entity string, id int64, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return qerr.New(qerr.KindNotFound, "eval", "%s %d does not exist", entity, id)
	}
	return qerr.Wrap(qerr.KindStorage, "eval", err)
}

// ============================================================================
// Arithmetic
// ============================================================================

func evalArithmetic(ctx *Context, e *Arithmetic, row *Row) (value.Value, error) {
	l, err := Eval(ctx, e.Left, row)
	if err != nil {
		return value.Null(), err
	}
	r, err := Eval(ctx, e.Right, row)
	if err != nil {
		return value.Null(), err
	}
	return Arithmetic2(e.Op, l, r)
}

// Arithmetic2 applies op to two evaluated operands.
//
// Null operands yield Null. Integer op Integer stays Integer except for
// division and power; a Float operand makes the result Float. Division and
// modulo by zero yield Null. + also concatenates strings and lists.
func Arithmetic2(op ArithOp, l, r value.Value) (value.Value, error) {
	if l.IsNull() || r.IsNull() {
		return value.Null(), nil
	}

	if op == OpAdd {
		if v, ok := addNonNumeric(l, r); ok {
			return v, nil
		}
	}
	if !l.IsNumeric() || !r.IsNumeric() {
		return value.Null(), qerr.New(qerr.KindTypeMismatch, "arithmetic",
			"cannot apply %s to %s and %s", op, l.Kind(), r.Kind())
	}

	li, lInt := l.AsInt()
	ri, rInt := r.AsInt()
	lf, _ := l.AsFloat()
	rf, _ := r.AsFloat()

	switch op {
	case OpDiv:
		if rf == 0 {
			return value.Null(), nil
		}
		return value.Float(lf / rf), nil
	case OpMod:
		if rf == 0 {
			return value.Null(), nil
		}
		if lInt && rInt {
			if ri == -1 {
				return value.Int(0), nil
			}
			return value.Int(li % ri), nil
		}
		return value.Float(math.Mod(lf, rf)), nil
	case OpPow:
		return value.Float(math.Pow(lf, rf)), nil
	}

	if lInt && rInt {
		return intArith(op, li, ri)
	}
	switch op {
	case OpAdd:
		return value.Float(lf + rf), nil
	case OpSub:
		return value.Float(lf - rf), nil
	case OpMul:
		return value.Float(lf * rf), nil
	}
	return value.Null(), qerr.New(qerr.KindMisuse, "arithmetic", "unknown operator %d", op)
}

func addNonNumeric(l, r value.Value) (value.Value, bool) {
	switch {
	case l.Kind() == value.KindList && r.Kind() == value.KindList:
		return l.Append(r.Elems()...), true
	case l.Kind() == value.KindList:
		return l.Append(r), true
	case r.Kind() == value.KindList:
		return value.NewList(l).Append(r.Elems()...), true
	case l.Kind() == value.KindString || r.Kind() == value.KindString:
		return value.String(l.String() + r.String()), true
	}
	return value.Null(), false
}

func intArith(op ArithOp, a, b int64) (value.Value, error) {
	var (
		res      int64
		overflow bool
	)
	switch op {
	case OpAdd:
		res = a + b
		overflow = (a > 0 && b > 0 && res < 0) || (a < 0 && b < 0 && res >= 0)
	case OpSub:
		res = a - b
		overflow = (a >= 0 && b < 0 && res < 0) || (a < 0 && b > 0 && res >= 0)
	case OpMul:
		hi, lo := bits.Mul64(uint64(abs64(a)), uint64(abs64(b)))
		neg := (a < 0) != (b < 0)
		overflow = hi != 0 || (lo > math.MaxInt64 && !(neg && lo == 1<<63))
		res = a * b
	default:
		return value.Null(), qerr.New(qerr.KindMisuse, "arithmetic", "unknown operator %d", op)
	}
	if overflow {
		return value.Null(), qerr.New(qerr.KindRange, "arithmetic", "integer overflow in %d %s %d", a, op, b)
	}
	return value.Int(res), nil
}

func abs64(x int64) int64 {
	if x < 0 {
		return -x
	}
	return x
}

// ============================================================================
// Comparison
// ============================================================================

func evalComparison(ctx *Context, e *Comparison, row *Row) (value.Value, error) {
	l, err := Eval(ctx, e.Left, row)
	if err != nil {
		return value.Null(), err
	}
	switch e.Op {
	case OpIsNull:
		return value.Bool(l.IsNull()), nil
	case OpIsNotNull:
		return value.Bool(!l.IsNull()), nil
	}
	r, err := Eval(ctx, e.Right, row)
	if err != nil {
		return value.Null(), err
	}
	return Compare2(e.Op, l, r)
}

// Compare2 applies a binary comparison to two evaluated operands.
func Compare2(op CompareOp, l, r value.Value) (value.Value, error) {
	switch op {
	case OpIsNull:
		return value.Bool(l.IsNull()), nil
	case OpIsNotNull:
		return value.Bool(!l.IsNull()), nil
	case OpIn:
		return evalIn(l, r), nil
	case OpStartsWith:
		return stringPredicate(l, r, strings.HasPrefix), nil
	case OpEndsWith:
		return stringPredicate(l, r, strings.HasSuffix), nil
	case OpContains:
		return stringPredicate(l, r, strings.Contains), nil
	}

	if l.IsNull() || r.IsNull() {
		return value.Null(), nil
	}
	switch op {
	case OpEq:
		return value.Bool(value.Equal(l, r)), nil
	case OpNe:
		return value.Bool(!value.Equal(l, r)), nil
	}

	c, err := value.Compare(l, r)
	if err != nil {
		return value.Null(), err
	}
	switch op {
	case OpLt:
		return value.Bool(c < 0), nil
	case OpLe:
		return value.Bool(c <= 0), nil
	case OpGt:
		return value.Bool(c > 0), nil
	case OpGe:
		return value.Bool(c >= 0), nil
	}
	return value.Null(), qerr.New(qerr.KindMisuse, "compare", "unknown operator %d", op)
}

func evalIn(needle, haystack value.Value) value.Value {
	if haystack.Kind() != value.KindList {
		return value.Null()
	}
	if haystack.Len() == 0 {
		return value.Bool(false)
	}
	if needle.IsNull() {
		return value.Null()
	}
	sawNull := false
	for _, elem := range haystack.Elems() {
		if elem.IsNull() {
			sawNull = true
			continue
		}
		if value.Equal(needle, elem) {
			return value.Bool(true)
		}
	}
	if sawNull {
		return value.Null()
	}
	return value.Bool(false)
}

func stringPredicate(l, r value.Value, fn func(s, sub string) bool) value.Value {
	ls, lok := l.AsString()
	rs, rok := r.AsString()
	if !lok || !rok {
		return value.Null()
	}
	return value.Bool(fn(ls, rs))
}

// ============================================================================
// Logic
// ============================================================================

func evalLogical(ctx *Context, e *Logical, row *Row) (value.Value, error) {
	l, err := evalTruth(ctx, e.Left, row, e.Op)
	if err != nil {
		return value.Null(), err
	}
	switch e.Op {
	case OpNot:
		if l.IsNull() {
			return value.Null(), nil
		}
		return value.Bool(!l.Truthy()), nil
	case OpAnd:
		if isFalse(l) {
			return value.Bool(false), nil
		}
	case OpOr:
		if l.Truthy() {
			return value.Bool(true), nil
		}
	}

	r, err := evalTruth(ctx, e.Right, row, e.Op)
	if err != nil {
		return value.Null(), err
	}
	return Logic2(e.Op, l, r), nil
}

// Logic2 combines two Boolean-or-Null operands with Kleene logic.
func Logic2(op LogicOp, l, r value.Value) value.Value {
	switch op {
	case OpAnd:
		if isFalse(l) || isFalse(r) {
			return value.Bool(false)
		}
		if l.IsNull() || r.IsNull() {
			return value.Null()
		}
		return value.Bool(true)
	case OpOr:
		if l.Truthy() || r.Truthy() {
			return value.Bool(true)
		}
		if l.IsNull() || r.IsNull() {
			return value.Null()
		}
		return value.Bool(false)
	case OpXor:
		if l.IsNull() || r.IsNull() {
			return value.Null()
		}
		return value.Bool(l.Truthy() != r.Truthy())
	case OpNot:
		if l.IsNull() {
			return value.Null()
		}
		return value.Bool(!l.Truthy())
	}
	return value.Null()
}

func evalTruth(ctx *Context, x Expr, row *Row, op LogicOp) (value.Value, error) {
	v, err := Eval(ctx, x, row)
	if err != nil {
		return value.Null(), err
	}
	if v.IsNull() || v.Kind() == value.KindBool {
		return v, nil
	}
	return value.Null(), qerr.New(qerr.KindTypeMismatch, "logic", "%s expects Boolean operands, got %s", op, v.Kind())
}

func isFalse(v value.Value) bool {
	b, ok := v.AsBool()
	return ok && !b
}

// ============================================================================
// String operators
// ============================================================================

func evalStringOp(ctx *Context, e *StringOp, row *Row) (value.Value, error) {
	l, err := Eval(ctx, e.Left, row)
	if err != nil {
		return value.Null(), err
	}
	r, err := Eval(ctx, e.Right, row)
	if err != nil {
		return value.Null(), err
	}
	if l.IsNull() || r.IsNull() {
		return value.Null(), nil
	}

	switch e.Op {
	case OpConcat:
		return value.String(l.String() + r.String()), nil
	case OpStrStartsWith:
		return stringPredicate(l, r, strings.HasPrefix), nil
	case OpStrEndsWith:
		return stringPredicate(l, r, strings.HasSuffix), nil
	case OpStrContains:
		return stringPredicate(l, r, strings.Contains), nil
	case OpRegex:
		s, sok := l.AsString()
		pattern, pok := r.AsString()
		if !sok || !pok {
			return value.Null(), nil
		}
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return value.Null(), qerr.Wrap(qerr.KindFormat, "regex", err)
		}
		return value.Bool(re.MatchString(s)), nil
	}
	return value.Null(), qerr.New(qerr.KindMisuse, "string", "unknown operator %d", e.Op)
}

// ============================================================================
// Function calls
// ============================================================================

func evalFunction(ctx *Context, e *FunctionCall, row *Row) (value.Value, error) {
	args := make([]value.Value, 0, len(e.Args))
	for _, x := range e.Args {
		v, err := Eval(ctx, x, row)
		if err != nil {
			return value.Null(), err
		}
		args = append(args, v)
	}

	def, ok := LookupFunction(e.Name)
	if !ok {
		return value.Null(), qerr.New(qerr.KindNotFound, "call", "unknown function %s()", e.Name)
	}
	if len(args) < def.MinArgs || (def.MaxArgs >= 0 && len(args) > def.MaxArgs) {
		return value.Null(), qerr.New(qerr.KindMisuse, "call", "%s() takes %s arguments, got %d",
			def.Name, def.arityString(), len(args))
	}
	return def.Fn(ctx, args)
}
