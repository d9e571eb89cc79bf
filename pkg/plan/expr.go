package plan

import (
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/value"
)

// Expression is an expression tree in document form. It decodes from one
// of these mappings:
//
//	{lit: 42}                         constant (scalars, lists, maps)
//	{var: n}                          row column or bound variable
//	{prop: {of: {var: n}, key: name}} property access
//	{op: "+", args: [a, b]}           binary operator
//	{not: x}, {is_null: x}, {is_not_null: x}
//	{fn: toUpper, args: [x]}          builtin function call
//	{list: [a, b]}, {map: {k: a}}     collection constructors
//	{in: [needle, list]}              membership
//
// A bare scalar is shorthand for a literal.
type Expression struct {
	cypher.Expr
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (e *Expression) UnmarshalYAML(n *yaml.Node) error {
	x, err := decodeExpr(n)
	if err != nil {
		return err
	}
	e.Expr = x
	return nil
}

// ParseExpr decodes a single YAML or JSON expression document.
func ParseExpr(data []byte) (cypher.Expr, error) {
	var e Expression
	if err := decode(data, &e); err != nil {
		return nil, err
	}
	if e.Expr == nil {
		return nil, qerr.New(qerr.KindFormat, "parse-expr", "empty expression")
	}
	return e.Expr, nil
}

var arithOps = map[string]cypher.ArithOp{
	"+": cypher.OpAdd, "-": cypher.OpSub, "*": cypher.OpMul,
	"/": cypher.OpDiv, "%": cypher.OpMod, "^": cypher.OpPow,
}

var compareOps = map[string]cypher.CompareOp{
	"=": cypher.OpEq, "<>": cypher.OpNe, "!=": cypher.OpNe,
	"<": cypher.OpLt, "<=": cypher.OpLe, ">": cypher.OpGt, ">=": cypher.OpGe,
	"starts_with": cypher.OpStartsWith, "ends_with": cypher.OpEndsWith,
	"contains": cypher.OpContains, "in": cypher.OpIn,
}

var logicOps = map[string]cypher.LogicOp{
	"and": cypher.OpAnd, "or": cypher.OpOr, "xor": cypher.OpXor,
}

var stringOps = map[string]cypher.StrOp{
	"=~": cypher.OpRegex, "||": cypher.OpConcat,
}

var exprForms = []string{"lit", "var", "prop", "op", "not", "is_null", "is_not_null", "fn", "list", "map", "in"}

func decodeExpr(n *yaml.Node) (cypher.Expr, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode, yaml.SequenceNode:
		v, err := literalValue(n)
		if err != nil {
			return nil, err
		}
		return cypher.Lit(v), nil
	case yaml.MappingNode:
	default:
		return nil, formatErr(n, "expression must be a mapping")
	}

	fields, err := mappingFields(n)
	if err != nil {
		return nil, err
	}
	form := ""
	for _, f := range exprForms {
		if _, ok := fields[f]; !ok {
			continue
		}
		if form != "" {
			return nil, formatErr(n, "expression has both %q and %q", form, f)
		}
		form = f
	}
	if form == "" {
		return nil, formatErr(n, "expression needs one of %s", strings.Join(exprForms, ", "))
	}
	allowed := map[string]bool{form: true, "args": form == "op" || form == "fn"}
	for k := range fields {
		if !allowed[k] {
			return nil, formatErr(n, "unexpected key %q in %s expression", k, form)
		}
	}
	body := fields[form]

	switch form {
	case "lit":
		v, err := literalValue(body)
		if err != nil {
			return nil, err
		}
		return cypher.Lit(v), nil

	case "var":
		name, err := scalarString(body)
		if err != nil {
			return nil, err
		}
		return cypher.Var(name), nil

	case "prop":
		return decodeProp(body)

	case "op":
		return decodeOperator(n, body, fields["args"])

	case "not", "is_null", "is_not_null":
		x, err := decodeExpr(body)
		if err != nil {
			return nil, err
		}
		switch form {
		case "not":
			return cypher.Not(x), nil
		case "is_null":
			return cypher.IsNull(x), nil
		}
		return cypher.IsNotNull(x), nil

	case "fn":
		name, err := scalarString(body)
		if err != nil {
			return nil, err
		}
		args, err := decodeExprList(fields["args"])
		if err != nil {
			return nil, err
		}
		return cypher.Call(name, args...), nil

	case "list":
		elems, err := decodeExprList(body)
		if err != nil {
			return nil, err
		}
		return cypher.List(elems...), nil

	case "map":
		return decodeMapLiteral(body)
	}

	// in
	args, err := decodeExprList(body)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, formatErr(body, "in takes 2 operands, got %d", len(args))
	}
	return cypher.Cmp(cypher.OpIn, args[0], args[1]), nil
}

func decodeProp(n *yaml.Node) (cypher.Expr, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, formatErr(n, "prop must be a mapping with of and key")
	}
	fields, err := mappingFields(n)
	if err != nil {
		return nil, err
	}
	if err := onlyKeys(n, fields, "of", "key"); err != nil {
		return nil, err
	}
	of, ok := fields["of"]
	if !ok {
		return nil, formatErr(n, "prop needs of")
	}
	keyNode, ok := fields["key"]
	if !ok {
		return nil, formatErr(n, "prop needs key")
	}
	subject, err := decodeExpr(of)
	if err != nil {
		return nil, err
	}
	key, err := scalarString(keyNode)
	if err != nil {
		return nil, err
	}
	return cypher.Prop(subject, key), nil
}

func decodeOperator(n, opNode, argsNode *yaml.Node) (cypher.Expr, error) {
	sym, err := scalarString(opNode)
	if err != nil {
		return nil, err
	}
	args, err := decodeExprList(argsNode)
	if err != nil {
		return nil, err
	}
	if len(args) != 2 {
		return nil, formatErr(n, "operator %q takes 2 args, got %d", sym, len(args))
	}
	l, r := args[0], args[1]

	word := strings.ToLower(sym)
	if op, ok := arithOps[sym]; ok {
		return cypher.Arith(op, l, r), nil
	}
	if op, ok := compareOps[word]; ok {
		return cypher.Cmp(op, l, r), nil
	}
	if op, ok := logicOps[word]; ok {
		return &cypher.Logical{Op: op, Left: l, Right: r}, nil
	}
	if op, ok := stringOps[sym]; ok {
		return cypher.Str(op, l, r), nil
	}
	return nil, formatErr(opNode, "unknown operator %q", sym)
}

func decodeExprList(n *yaml.Node) ([]cypher.Expr, error) {
	if n == nil {
		return nil, nil
	}
	n = resolve(n)
	if n.Kind != yaml.SequenceNode {
		return nil, formatErr(n, "expected a list of expressions")
	}
	out := make([]cypher.Expr, 0, len(n.Content))
	for _, c := range n.Content {
		x, err := decodeExpr(c)
		if err != nil {
			return nil, err
		}
		out = append(out, x)
	}
	return out, nil
}

func decodeMapLiteral(n *yaml.Node) (cypher.Expr, error) {
	n = resolve(n)
	if n.Kind != yaml.MappingNode {
		return nil, formatErr(n, "map must be a mapping")
	}
	entries := make([]cypher.MapEntry, 0, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, err := scalarString(n.Content[i])
		if err != nil {
			return nil, err
		}
		x, err := decodeExpr(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		entries = append(entries, cypher.MapEntry{Key: key, Value: x})
	}
	return cypher.Map(entries...), nil
}

// ============================================================================
// Literals
// ============================================================================

// Literal is a constant value in document form. Mappings keep their
// document key order.
type Literal struct {
	value.Value
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Literal) UnmarshalYAML(n *yaml.Node) error {
	v, err := literalValue(n)
	if err != nil {
		return err
	}
	l.Value = v
	return nil
}

func literalValue(n *yaml.Node) (value.Value, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		var x any
		if err := n.Decode(&x); err != nil {
			return value.Null(), formatErr(n, "bad literal: %v", err)
		}
		v, err := value.FromGo(x)
		if err != nil {
			return value.Null(), formatErr(n, "%v", err)
		}
		return v, nil
	case yaml.SequenceNode:
		elems := make([]value.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := literalValue(c)
			if err != nil {
				return value.Null(), err
			}
			elems = append(elems, v)
		}
		return value.NewList(elems...), nil
	case yaml.MappingNode:
		pairs := make([]value.Pair, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, err := scalarString(n.Content[i])
			if err != nil {
				return value.Null(), err
			}
			v, err := literalValue(n.Content[i+1])
			if err != nil {
				return value.Null(), err
			}
			pairs = append(pairs, value.P(key, v))
		}
		return value.NewMap(pairs...), nil
	}
	return value.Null(), formatErr(n, "unsupported literal")
}

// literalMap decodes a mapping of property literals.
func literalMap(n *yaml.Node) (map[string]value.Value, error) {
	if n == nil {
		return nil, nil
	}
	n = resolve(n)
	if n.Kind == yaml.ScalarNode && n.Tag == "!!null" {
		return nil, nil
	}
	if n.Kind != yaml.MappingNode {
		return nil, formatErr(n, "expected a mapping of properties")
	}
	out := make(map[string]value.Value, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, err := scalarString(n.Content[i])
		if err != nil {
			return nil, err
		}
		v, err := literalValue(n.Content[i+1])
		if err != nil {
			return nil, err
		}
		out[key] = v
	}
	return out, nil
}
