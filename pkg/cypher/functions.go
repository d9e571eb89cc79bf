// Builtin scalar and list functions callable from FunctionCall expressions.

package cypher

import (
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/storage"
	"github.com/orneryd/graphexec/pkg/value"
)

// BuiltinFunc implements a function. Arguments are already evaluated and
// their count has been checked against the definition's arity.
type BuiltinFunc func(ctx *Context, args []value.Value) (value.Value, error)

// FunctionDef describes a registered function. MaxArgs < 0 means variadic.
type FunctionDef struct {
	Name    string
	MinArgs int
	MaxArgs int
	Fn      BuiltinFunc
}

func (d FunctionDef) arityString() string {
	switch {
	case d.MaxArgs < 0:
		return strconv.Itoa(d.MinArgs) + " or more"
	case d.MinArgs == d.MaxArgs:
		return strconv.Itoa(d.MinArgs)
	}
	return strconv.Itoa(d.MinArgs) + " to " + strconv.Itoa(d.MaxArgs)
}

var functions = map[string]FunctionDef{}

func register(name string, minArgs, maxArgs int, fn BuiltinFunc) {
	functions[strings.ToLower(name)] = FunctionDef{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Fn: fn}
}

// LookupFunction finds a builtin by case-insensitive name.
func LookupFunction(name string) (FunctionDef, bool) {
	def, ok := functions[strings.ToLower(name)]
	return def, ok
}

// FunctionNames lists every registered function, sorted.
func FunctionNames() []string {
	names := make([]string, 0, len(functions))
	for _, def := range functions {
		names = append(names, def.Name)
	}
	sort.Strings(names)
	return names
}

func init() {
	// strings
	register("toUpper", 1, 1, stringFn(strings.ToUpper))
	register("toLower", 1, 1, stringFn(strings.ToLower))
	register("trim", 1, 1, stringFn(strings.TrimSpace))
	register("ltrim", 1, 1, stringFn(func(s string) string { return strings.TrimLeft(s, " \t\r\n") }))
	register("rtrim", 1, 1, stringFn(func(s string) string { return strings.TrimRight(s, " \t\r\n") }))
	register("reverse", 1, 1, fnReverse)
	register("substring", 2, 3, fnSubstring)
	register("left", 2, 2, fnLeft)
	register("right", 2, 2, fnRight)
	register("replace", 3, 3, fnReplace)
	register("split", 2, 2, fnSplit)

	// sizes
	register("length", 1, 1, fnSize)
	register("size", 1, 1, fnSize)

	// math
	register("abs", 1, 1, fnAbs)
	register("ceil", 1, 1, floatFn(math.Ceil))
	register("floor", 1, 1, floatFn(math.Floor))
	register("round", 1, 1, floatFn(math.Round))
	register("sqrt", 1, 1, floatFn(math.Sqrt))
	register("sign", 1, 1, fnSign)

	// conversion
	register("toString", 1, 1, fnToString)
	register("toInteger", 1, 1, fnToInteger)
	register("toFloat", 1, 1, fnToFloat)
	register("toBoolean", 1, 1, fnToBoolean)

	// lists and maps
	register("coalesce", 1, -1, fnCoalesce)
	register("head", 1, 1, fnHead)
	register("tail", 1, 1, fnTail)
	register("last", 1, 1, fnLast)
	register("range", 2, 3, fnRange)
	register("keys", 1, 1, fnKeys)

	// graph
	register("labels", 1, 1, fnLabels)
	register("type", 1, 1, fnType)
	register("id", 1, 1, fnID)
	register("exists", 1, 1, fnExists)
	register("properties", 1, 1, fnProperties)

	// list aggregates
	register("count", 1, -1, fnCount)
	register("sum", 1, -1, fnSum)
	register("avg", 1, -1, fnAvg)
	register("min", 1, -1, fnMin)
	register("max", 1, -1, fnMax)
	register("collect", 1, -1, fnCollect)
}

func typeErr(fn string, want string, got value.Value) error {
	return qerr.New(qerr.KindTypeMismatch, fn, "expected %s, got %s", want, got.Kind())
}

// ============================================================================
// Strings
// ============================================================================

func stringFn(f func(string) string) BuiltinFunc {
	return func(_ *Context, args []value.Value) (value.Value, error) {
		if args[0].IsNull() {
			return value.Null(), nil
		}
		s, ok := args[0].AsString()
		if !ok {
			return value.Null(), typeErr("string function", "String", args[0])
		}
		return value.String(f(s)), nil
	}
}

func fnReverse(_ *Context, args []value.Value) (value.Value, error) {
	switch args[0].Kind() {
	case value.KindNull:
		return value.Null(), nil
	case value.KindList:
		elems := args[0].Elems()
		for i, j := 0, len(elems)-1; i < j; i, j = i+1, j-1 {
			elems[i], elems[j] = elems[j], elems[i]
		}
		return value.NewList(elems...), nil
	case value.KindString:
		s, _ := args[0].AsString()
		r := []rune(s)
		for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
			r[i], r[j] = r[j], r[i]
		}
		return value.String(string(r)), nil
	}
	return value.Null(), typeErr("reverse", "String or List", args[0])
}

// intArg reads an Integer argument; whole Floats are accepted.
func intArg(fn string, v value.Value) (int64, error) {
	if i, ok := v.AsInt(); ok {
		return i, nil
	}
	if f, ok := v.AsFloat(); ok && f == math.Trunc(f) {
		return int64(f), nil
	}
	return 0, typeErr(fn, "Integer", v)
}

// substring(s, start[, length]) counts in runes.
func fnSubstring(_ *Context, args []value.Value) (value.Value, error) {
	if args[0].IsNull() || args[1].IsNull() {
		return value.Null(), nil
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Null(), typeErr("substring", "String", args[0])
	}
	start, err := intArg("substring", args[1])
	if err != nil {
		return value.Null(), err
	}
	r := []rune(s)
	n := int64(len(r))
	if start < 0 {
		return value.Null(), qerr.New(qerr.KindRange, "substring", "negative start %d", start)
	}
	if start > n {
		start = n
	}
	end := n
	if len(args) == 3 && !args[2].IsNull() {
		length, err := intArg("substring", args[2])
		if err != nil {
			return value.Null(), err
		}
		if length < 0 {
			return value.Null(), qerr.New(qerr.KindRange, "substring", "negative length %d", length)
		}
		if length < end-start {
			end = start + length
		}
	}
	return value.String(string(r[start:end])), nil
}

func fnLeft(_ *Context, args []value.Value) (value.Value, error) {
	return edgeSlice("left", args, func(r []rune, n int) []rune { return r[:n] })
}

func fnRight(_ *Context, args []value.Value) (value.Value, error) {
	return edgeSlice("right", args, func(r []rune, n int) []rune { return r[len(r)-n:] })
}

func edgeSlice(fn string, args []value.Value, take func([]rune, int) []rune) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null(), nil
	}
	s, ok := args[0].AsString()
	if !ok {
		return value.Null(), typeErr(fn, "String", args[0])
	}
	n, err := intArg(fn, args[1])
	if err != nil {
		return value.Null(), err
	}
	if n < 0 {
		return value.Null(), qerr.New(qerr.KindRange, fn, "negative length %d", n)
	}
	r := []rune(s)
	if n > int64(len(r)) {
		n = int64(len(r))
	}
	return value.String(string(take(r, int(n)))), nil
}

func fnReplace(_ *Context, args []value.Value) (value.Value, error) {
	strs, null, err := stringArgs("replace", args)
	if err != nil || null {
		return value.Null(), err
	}
	return value.String(strings.ReplaceAll(strs[0], strs[1], strs[2])), nil
}

func fnSplit(_ *Context, args []value.Value) (value.Value, error) {
	strs, null, err := stringArgs("split", args)
	if err != nil || null {
		return value.Null(), err
	}
	parts := strings.Split(strs[0], strs[1])
	out := make([]value.Value, len(parts))
	for i, p := range parts {
		out[i] = value.String(p)
	}
	return value.NewList(out...), nil
}

// stringArgs reads every argument as a String. null reports a Null argument.
func stringArgs(fn string, args []value.Value) (strs []string, null bool, err error) {
	strs = make([]string, len(args))
	for i, a := range args {
		if a.IsNull() {
			return nil, true, nil
		}
		s, ok := a.AsString()
		if !ok {
			return nil, false, typeErr(fn, "String", a)
		}
		strs[i] = s
	}
	return strs, false, nil
}

func fnSize(_ *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	switch a.Kind() {
	case value.KindNull:
		return value.Null(), nil
	case value.KindString:
		s, _ := a.AsString()
		return value.Int(int64(utf8.RuneCountInString(s))), nil
	case value.KindList, value.KindMap:
		return value.Int(int64(a.Len())), nil
	}
	return value.Null(), typeErr("size", "String, List or Map", a)
}

// ============================================================================
// Math
// ============================================================================

func fnAbs(_ *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	if a.IsNull() {
		return value.Null(), nil
	}
	if i, ok := a.AsInt(); ok {
		if i == math.MinInt64 {
			return value.Null(), qerr.New(qerr.KindRange, "abs", "integer overflow")
		}
		return value.Int(abs64(i)), nil
	}
	if f, ok := a.AsFloat(); ok {
		return value.Float(math.Abs(f)), nil
	}
	return value.Null(), typeErr("abs", "number", a)
}

func floatFn(f func(float64) float64) BuiltinFunc {
	return func(_ *Context, args []value.Value) (value.Value, error) {
		if args[0].IsNull() {
			return value.Null(), nil
		}
		x, ok := args[0].AsFloat()
		if !ok {
			return value.Null(), typeErr("math function", "number", args[0])
		}
		return value.Float(f(x)), nil
	}
}

func fnSign(_ *Context, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null(), nil
	}
	x, ok := args[0].AsFloat()
	if !ok {
		return value.Null(), typeErr("sign", "number", args[0])
	}
	switch {
	case x > 0:
		return value.Int(1), nil
	case x < 0:
		return value.Int(-1), nil
	}
	return value.Int(0), nil
}

// ============================================================================
// Conversion
// ============================================================================

func fnToString(_ *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	switch a.Kind() {
	case value.KindNull:
		return value.Null(), nil
	case value.KindFloat:
		f, _ := a.AsFloat()
		return value.String(strconv.FormatFloat(f, 'g', -1, 64)), nil
	}
	return value.String(a.String()), nil
}

// toInteger truncates floats and parses strings; unparsable input is Null.
func fnToInteger(_ *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	switch a.Kind() {
	case value.KindInt:
		return a, nil
	case value.KindFloat:
		f, _ := a.AsFloat()
		if math.IsNaN(f) || f >= math.MaxInt64 || f < math.MinInt64 {
			return value.Null(), nil
		}
		return value.Int(int64(f)), nil
	case value.KindString:
		s, _ := a.AsString()
		s = strings.TrimSpace(s)
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return value.Int(i), nil
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f < math.MaxInt64 && f >= math.MinInt64 {
			return value.Int(int64(f)), nil
		}
		return value.Null(), nil
	case value.KindBool:
		if a.Truthy() {
			return value.Int(1), nil
		}
		return value.Int(0), nil
	}
	return value.Null(), nil
}

func fnToFloat(_ *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	switch a.Kind() {
	case value.KindInt, value.KindFloat:
		f, _ := a.AsFloat()
		return value.Float(f), nil
	case value.KindString:
		s, _ := a.AsString()
		if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return value.Float(f), nil
		}
	}
	return value.Null(), nil
}

func fnToBoolean(_ *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	switch a.Kind() {
	case value.KindBool:
		return a, nil
	case value.KindString:
		s, _ := a.AsString()
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true":
			return value.Bool(true), nil
		case "false":
			return value.Bool(false), nil
		}
	case value.KindInt:
		i, _ := a.AsInt()
		return value.Bool(i != 0), nil
	}
	return value.Null(), nil
}

// ============================================================================
// Lists and maps
// ============================================================================

func fnCoalesce(_ *Context, args []value.Value) (value.Value, error) {
	for _, a := range args {
		if !a.IsNull() {
			return a, nil
		}
	}
	return value.Null(), nil
}

func listArg(fn string, v value.Value) ([]value.Value, bool, error) {
	if v.IsNull() {
		return nil, true, nil
	}
	if v.Kind() != value.KindList {
		return nil, false, typeErr(fn, "List", v)
	}
	return v.Elems(), false, nil
}

func fnHead(_ *Context, args []value.Value) (value.Value, error) {
	elems, null, err := listArg("head", args[0])
	if err != nil || null || len(elems) == 0 {
		return value.Null(), err
	}
	return elems[0], nil
}

func fnTail(_ *Context, args []value.Value) (value.Value, error) {
	elems, null, err := listArg("tail", args[0])
	if err != nil || null {
		return value.Null(), err
	}
	if len(elems) == 0 {
		return value.NewList(), nil
	}
	return value.NewList(elems[1:]...), nil
}

func fnLast(_ *Context, args []value.Value) (value.Value, error) {
	elems, null, err := listArg("last", args[0])
	if err != nil || null || len(elems) == 0 {
		return value.Null(), err
	}
	return elems[len(elems)-1], nil
}

// maxRangeLen caps range() output so a typo cannot exhaust memory.
const maxRangeLen = 1 << 20

func fnRange(_ *Context, args []value.Value) (value.Value, error) {
	start, err := intArg("range", args[0])
	if err != nil {
		return value.Null(), err
	}
	end, err := intArg("range", args[1])
	if err != nil {
		return value.Null(), err
	}
	step := int64(1)
	if len(args) == 3 {
		if step, err = intArg("range", args[2]); err != nil {
			return value.Null(), err
		}
	}
	if step == 0 {
		return value.Null(), qerr.New(qerr.KindRange, "range", "step must not be zero")
	}

	var out []value.Value
	for i := start; (step > 0 && i <= end) || (step < 0 && i >= end); i += step {
		if len(out) == maxRangeLen {
			return value.Null(), qerr.New(qerr.KindOutOfMemory, "range", "more than %d elements", maxRangeLen)
		}
		out = append(out, value.Int(i))
		if (step > 0 && i > math.MaxInt64-step) || (step < 0 && i < math.MinInt64-step) {
			break
		}
	}
	return value.NewList(out...), nil
}

func fnKeys(ctx *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	var keys []string
	switch a.Kind() {
	case value.KindNull:
		return value.Null(), nil
	case value.KindMap:
		keys = a.Keys()
	case value.KindNode, value.KindRelationship:
		props, err := entityProperties(ctx, a)
		if err != nil {
			return value.Null(), err
		}
		for k := range props {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	default:
		return value.Null(), typeErr("keys", "Map, Node or Relationship", a)
	}
	out := make([]value.Value, len(keys))
	for i, k := range keys {
		out[i] = value.String(k)
	}
	return value.NewList(out...), nil
}

// ============================================================================
// Graph
// ============================================================================

func fnLabels(ctx *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	if a.IsNull() {
		return value.Null(), nil
	}
	if a.Kind() != value.KindNode {
		return value.Null(), typeErr("labels", "Node", a)
	}
	store, err := requireStore(ctx)
	if err != nil {
		return value.Null(), err
	}
	id, _ := a.ID()
	n, err := store.GetNode(storage.NodeID(storage.FormatID(id)))
	if err != nil {
		return value.Null(), storageErr("node", id, err)
	}
	out := make([]value.Value, len(n.Labels))
	for i, l := range n.Labels {
		out[i] = value.String(l)
	}
	return value.NewList(out...), nil
}

func fnType(ctx *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	if a.IsNull() {
		return value.Null(), nil
	}
	if a.Kind() != value.KindRelationship {
		return value.Null(), typeErr("type", "Relationship", a)
	}
	store, err := requireStore(ctx)
	if err != nil {
		return value.Null(), err
	}
	id, _ := a.ID()
	r, err := store.GetEdge(storage.EdgeID(storage.FormatID(id)))
	if err != nil {
		return value.Null(), storageErr("relationship", id, err)
	}
	return value.String(r.Type), nil
}

func fnID(_ *Context, args []value.Value) (value.Value, error) {
	if args[0].IsNull() {
		return value.Null(), nil
	}
	id, ok := args[0].ID()
	if !ok {
		return value.Null(), typeErr("id", "Node or Relationship", args[0])
	}
	return value.Int(id), nil
}

// exists is true for any non-Null argument, so exists(n.prop) tests presence.
func fnExists(_ *Context, args []value.Value) (value.Value, error) {
	return value.Bool(!args[0].IsNull()), nil
}

func fnProperties(ctx *Context, args []value.Value) (value.Value, error) {
	a := args[0]
	switch a.Kind() {
	case value.KindNull:
		return value.Null(), nil
	case value.KindMap:
		return a, nil
	case value.KindNode, value.KindRelationship:
		props, err := entityProperties(ctx, a)
		if err != nil {
			return value.Null(), err
		}
		v, err := value.FromGo(props)
		if err != nil {
			return value.Null(), qerr.Wrap(qerr.KindFormat, "properties", err)
		}
		return v, nil
	}
	return value.Null(), typeErr("properties", "Map, Node or Relationship", a)
}

// ============================================================================
// List aggregates
// ============================================================================

// aggregateInput flattens the arguments: a single List argument is
// aggregated element-wise, otherwise the arguments themselves are. Nulls are
// dropped.
func aggregateInput(args []value.Value) []value.Value {
	in := args
	if len(args) == 1 && args[0].Kind() == value.KindList {
		in = args[0].Elems()
	}
	out := make([]value.Value, 0, len(in))
	for _, v := range in {
		if !v.IsNull() {
			out = append(out, v)
		}
	}
	return out
}

func fnCount(_ *Context, args []value.Value) (value.Value, error) {
	return value.Int(int64(len(aggregateInput(args)))), nil
}

func fnCollect(_ *Context, args []value.Value) (value.Value, error) {
	return value.NewList(aggregateInput(args)...), nil
}

func fnSum(_ *Context, args []value.Value) (value.Value, error) {
	acc := value.Int(0)
	for _, v := range aggregateInput(args) {
		if !v.IsNumeric() {
			return value.Null(), typeErr("sum", "number", v)
		}
		next, err := Arithmetic2(OpAdd, acc, v)
		if err != nil {
			return value.Null(), err
		}
		acc = next
	}
	return acc, nil
}

func fnAvg(_ *Context, args []value.Value) (value.Value, error) {
	in := aggregateInput(args)
	if len(in) == 0 {
		return value.Null(), nil
	}
	var total float64
	for _, v := range in {
		f, ok := v.AsFloat()
		if !ok {
			return value.Null(), typeErr("avg", "number", v)
		}
		total += f
	}
	return value.Float(total / float64(len(in))), nil
}

func fnMin(_ *Context, args []value.Value) (value.Value, error) {
	return extreme("min", args, -1)
}

func fnMax(_ *Context, args []value.Value) (value.Value, error) {
	return extreme("max", args, 1)
}

func extreme(fn string, args []value.Value, want int) (value.Value, error) {
	in := aggregateInput(args)
	if len(in) == 0 {
		return value.Null(), nil
	}
	best := in[0]
	for _, v := range in[1:] {
		c, err := value.Compare(v, best)
		if err != nil {
			return value.Null(), qerr.Wrap(qerr.KindTypeMismatch, fn, err)
		}
		if c*want > 0 {
			best = v
		}
	}
	return best, nil
}
