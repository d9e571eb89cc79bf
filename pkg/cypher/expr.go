package cypher

import (
	"strings"

	"github.com/orneryd/graphexec/pkg/value"
)

// Expr is a node of an expression tree. The set of node types is closed;
// Eval dispatches on the concrete type.
type Expr interface {
	exprNode()
	String() string
}

// ArithOp is an arithmetic operator.
type ArithOp int

const (
	OpAdd ArithOp = iota
	OpSub
	OpMul
	OpDiv
	OpMod
	OpPow
)

var arithSymbols = [...]string{OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%", OpPow: "^"}

func (op ArithOp) String() string { return arithSymbols[op] }

// CompareOp is a comparison or predicate operator.
type CompareOp int

const (
	OpEq CompareOp = iota
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpIsNull
	OpIsNotNull
	OpStartsWith
	OpEndsWith
	OpContains
	OpIn
)

var compareSymbols = [...]string{
	OpEq: "=", OpNe: "<>", OpLt: "<", OpLe: "<=", OpGt: ">", OpGe: ">=",
	OpIsNull: "IS NULL", OpIsNotNull: "IS NOT NULL",
	OpStartsWith: "STARTS WITH", OpEndsWith: "ENDS WITH", OpContains: "CONTAINS", OpIn: "IN",
}

func (op CompareOp) String() string { return compareSymbols[op] }

// LogicOp is a boolean connective.
type LogicOp int

const (
	OpAnd LogicOp = iota
	OpOr
	OpNot
	OpXor
)

var logicSymbols = [...]string{OpAnd: "AND", OpOr: "OR", OpNot: "NOT", OpXor: "XOR"}

func (op LogicOp) String() string { return logicSymbols[op] }

// StrOp is a string operator.
type StrOp int

const (
	OpConcat StrOp = iota
	OpRegex
	OpStrStartsWith
	OpStrEndsWith
	OpStrContains
)

var strSymbols = [...]string{
	OpConcat: "+", OpRegex: "=~", OpStrStartsWith: "STARTS WITH",
	OpStrEndsWith: "ENDS WITH", OpStrContains: "CONTAINS",
}

func (op StrOp) String() string { return strSymbols[op] }

// Literal is a constant.
type Literal struct {
	Value value.Value
}

// Variable reads a row column or a context binding.
type Variable struct {
	Name string
}

// Property reads Key from a node, relationship or map.
type Property struct {
	Subject Expr
	Key     string
}

// Arithmetic applies an arithmetic operator.
type Arithmetic struct {
	Op          ArithOp
	Left, Right Expr
}

// Comparison applies a comparison. IS [NOT] NULL uses Left only.
type Comparison struct {
	Op          CompareOp
	Left, Right Expr
}

// Logical applies a boolean connective. NOT uses Left only.
type Logical struct {
	Op          LogicOp
	Left, Right Expr
}

// StringOp applies a string operator.
type StringOp struct {
	Op          StrOp
	Left, Right Expr
}

// FunctionCall invokes a registered builtin.
type FunctionCall struct {
	Name string
	Args []Expr
}

// ListLiteral builds a list from element expressions.
type ListLiteral struct {
	Elems []Expr
}

// MapEntry is one key of a MapLiteral.
type MapEntry struct {
	Key   string
	Value Expr
}

// MapLiteral builds a map from entry expressions, preserving order.
type MapLiteral struct {
	Entries []MapEntry
}

func (*Literal) exprNode()      {}
func (*Variable) exprNode()     {}
func (*Property) exprNode()     {}
func (*Arithmetic) exprNode()   {}
func (*Comparison) exprNode()   {}
func (*Logical) exprNode()      {}
func (*StringOp) exprNode()     {}
func (*FunctionCall) exprNode() {}
func (*ListLiteral) exprNode()  {}
func (*MapLiteral) exprNode()   {}

// ============================================================================
// Constructors
// ============================================================================

func Lit(v value.Value) *Literal                   { return &Literal{Value: v} }
func Var(name string) *Variable                    { return &Variable{Name: name} }
func Prop(subject Expr, key string) *Property      { return &Property{Subject: subject, Key: key} }
func Arith(op ArithOp, l, r Expr) *Arithmetic      { return &Arithmetic{Op: op, Left: l, Right: r} }
func Cmp(op CompareOp, l, r Expr) *Comparison      { return &Comparison{Op: op, Left: l, Right: r} }
func IsNull(x Expr) *Comparison                    { return &Comparison{Op: OpIsNull, Left: x} }
func IsNotNull(x Expr) *Comparison                 { return &Comparison{Op: OpIsNotNull, Left: x} }
func And(l, r Expr) *Logical                       { return &Logical{Op: OpAnd, Left: l, Right: r} }
func Or(l, r Expr) *Logical                        { return &Logical{Op: OpOr, Left: l, Right: r} }
func Xor(l, r Expr) *Logical                       { return &Logical{Op: OpXor, Left: l, Right: r} }
func Not(x Expr) *Logical                          { return &Logical{Op: OpNot, Left: x} }
func Str(op StrOp, l, r Expr) *StringOp            { return &StringOp{Op: op, Left: l, Right: r} }
func Call(name string, args ...Expr) *FunctionCall { return &FunctionCall{Name: name, Args: args} }
func List(elems ...Expr) *ListLiteral              { return &ListLiteral{Elems: elems} }
func Map(entries ...MapEntry) *MapLiteral          { return &MapLiteral{Entries: entries} }

// ============================================================================
// Rendering
// ============================================================================

func (e *Literal) String() string {
	if s, ok := e.Value.AsString(); ok {
		return "'" + strings.ReplaceAll(s, "'", "\\'") + "'"
	}
	return e.Value.String()
}

func (e *Variable) String() string { return e.Name }

func (e *Property) String() string { return e.Subject.String() + "." + e.Key }

func (e *Arithmetic) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

func (e *Comparison) String() string {
	if e.Op == OpIsNull || e.Op == OpIsNotNull {
		return "(" + e.Left.String() + " " + e.Op.String() + ")"
	}
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

func (e *Logical) String() string {
	if e.Op == OpNot {
		return "(NOT " + e.Left.String() + ")"
	}
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

func (e *StringOp) String() string {
	return "(" + e.Left.String() + " " + e.Op.String() + " " + e.Right.String() + ")"
}

func (e *FunctionCall) String() string {
	return e.Name + "(" + joinExprs(e.Args) + ")"
}

func (e *ListLiteral) String() string { return "[" + joinExprs(e.Elems) + "]" }

func (e *MapLiteral) String() string {
	parts := make([]string, len(e.Entries))
	for i, entry := range e.Entries {
		parts[i] = entry.Key + ": " + entry.Value.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, x := range exprs {
		parts[i] = x.String()
	}
	return strings.Join(parts, ", ")
}
