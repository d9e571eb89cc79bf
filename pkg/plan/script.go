package plan

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/graphexec/pkg/cypher"
	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/value"
	"github.com/orneryd/graphexec/pkg/write"
)

// Script is an ordered list of write steps:
//
//	steps:
//	  - begin
//	  - create_node: {var: a, labels: [Person], props: {name: Alice}}
//	  - create_node: {var: b, labels: [Person], props: {name: Bob}}
//	  - create_rel:  {var: r, from: a, to: b, type: KNOWS}
//	  - set_property: {target: a, key: age, value: 30}
//	  - commit
//
// Entity references are variable names bound by earlier steps, bare
// integers for node ids, or {node: id} / {rel: id}. The document may also
// be the bare list of steps.
type Script struct {
	Steps []Step
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Script) UnmarshalYAML(n *yaml.Node) error {
	n = resolve(n)
	if n.Kind == yaml.MappingNode {
		fields, err := mappingFields(n)
		if err != nil {
			return err
		}
		if err := onlyKeys(n, fields, "steps"); err != nil {
			return err
		}
		n = resolve(fields["steps"])
		if n == nil {
			return formatErr(nil, "script has no steps")
		}
	}
	if n.Kind != yaml.SequenceNode {
		return formatErr(n, "script must be a list of steps")
	}
	s.Steps = make([]Step, 0, len(n.Content))
	for _, c := range n.Content {
		var st Step
		if err := st.UnmarshalYAML(c); err != nil {
			return err
		}
		s.Steps = append(s.Steps, st)
	}
	return nil
}

// ParseScript decodes a YAML or JSON write script.
func ParseScript(data []byte) (*Script, error) {
	var s Script
	if err := decode(data, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadScript reads and decodes a script file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, qerr.Wrap(qerr.KindNotFound, "load-script", err)
	}
	return ParseScript(data)
}

// StepResult reports what one step did.
type StepResult struct {
	Step    int    `json:"step"`
	Op      string `json:"op"`
	ID      int64  `json:"id,omitempty"`
	Created bool   `json:"created,omitempty"`
}

// RunResult is the outcome of Script.Run.
type RunResult struct {
	Steps []StepResult `json:"steps"`
	Stats write.Stats  `json:"stats"`
}

// Run executes the steps in order against w. exec must be the context w was
// created over; it resolves variable references. Run stops at the first
// failing step and returns the results so far. A transaction the script
// leaves open stays open.
func (s *Script) Run(exec *cypher.Context, w *write.Context) (*RunResult, error) {
	res := &RunResult{}
	for i, st := range s.Steps {
		out, err := st.action.run(exec, w)
		if err != nil {
			res.Stats = w.Stats()
			return res, fmt.Errorf("step %d (%s): %w", i+1, st.Op, err)
		}
		out.Step = i + 1
		out.Op = st.Op
		res.Steps = append(res.Steps, out)
	}
	res.Stats = w.Stats()
	return res, nil
}

// ============================================================================
// Steps
// ============================================================================

// Step is one decoded script step.
type Step struct {
	Op     string
	Line   int
	action action
}

type action interface {
	// check validates the decoded argument keys.
	check(n *yaml.Node, fields map[string]*yaml.Node) error
	run(exec *cypher.Context, w *write.Context) (StepResult, error)
}

var stepActions = map[string]func() action{
	"begin":           func() action { return &txStep{op: "begin"} },
	"commit":          func() action { return &txStep{op: "commit"} },
	"rollback":        func() action { return &txStep{op: "rollback"} },
	"create_node":     func() action { return &createNodeStep{} },
	"create_rel":      func() action { return &createRelStep{} },
	"merge_node":      func() action { return &mergeNodeStep{} },
	"merge_rel":       func() action { return &mergeRelStep{} },
	"set_property":    func() action { return &setPropertyStep{} },
	"remove_property": func() action { return &removePropertyStep{} },
	"set_labels":      func() action { return &labelStep{} },
	"remove_label":    func() action { return &labelStep{remove: true} },
	"delete":          func() action { return &deleteStep{} },
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Step) UnmarshalYAML(n *yaml.Node) error {
	n = resolve(n)
	s.Line = n.Line

	var args *yaml.Node
	switch n.Kind {
	case yaml.ScalarNode:
		s.Op = n.Value
	case yaml.MappingNode:
		if len(n.Content) != 2 {
			return formatErr(n, "step must have exactly one operation key")
		}
		op, err := scalarString(n.Content[0])
		if err != nil {
			return err
		}
		s.Op = op
		args = resolve(n.Content[1])
	default:
		return formatErr(n, "step must be a name or a mapping")
	}

	newAction, ok := stepActions[s.Op]
	if !ok {
		return formatErr(n, "unknown step %q", s.Op)
	}
	a := newAction()
	fields := map[string]*yaml.Node{}
	if args != nil && !(args.Kind == yaml.ScalarNode && args.Tag == "!!null") {
		if args.Kind != yaml.MappingNode {
			return formatErr(args, "%s arguments must be a mapping", s.Op)
		}
		var err error
		if fields, err = mappingFields(args); err != nil {
			return err
		}
		if err := args.Decode(a); err != nil {
			if qerr.KindOf(err) != qerr.KindUnknown {
				return err
			}
			return formatErr(args, "%s: %v", s.Op, err)
		}
	} else {
		args = n
	}
	if err := a.check(args, fields); err != nil {
		return err
	}
	s.action = a
	return nil
}

func requireKeys(n *yaml.Node, fields map[string]*yaml.Node, keys ...string) error {
	for _, k := range keys {
		if _, ok := fields[k]; !ok {
			return formatErr(n, "missing %q", k)
		}
	}
	return nil
}

type txStep struct {
	op string
}

func (s *txStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	return onlyKeys(n, fields)
}

func (s *txStep) run(_ *cypher.Context, w *write.Context) (StepResult, error) {
	switch s.op {
	case "begin":
		return StepResult{}, w.Begin()
	case "commit":
		return StepResult{}, w.Commit()
	}
	return StepResult{}, w.Rollback()
}

type createNodeStep struct {
	Var    string     `yaml:"var"`
	Labels []string   `yaml:"labels"`
	Props  Properties `yaml:"props"`
}

func (s *createNodeStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	return onlyKeys(n, fields, "var", "labels", "props")
}

func (s *createNodeStep) run(_ *cypher.Context, w *write.Context) (StepResult, error) {
	id, err := w.CreateNode(write.CreateNodeOp{Variable: s.Var, Labels: s.Labels, Properties: s.Props})
	return StepResult{ID: id, Created: err == nil}, err
}

type createRelStep struct {
	Var    string     `yaml:"var"`
	From   Ref        `yaml:"from"`
	To     Ref        `yaml:"to"`
	Type   string     `yaml:"type"`
	Weight float64    `yaml:"weight"`
	Props  Properties `yaml:"props"`
}

func (s *createRelStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	if err := onlyKeys(n, fields, "var", "from", "to", "type", "weight", "props"); err != nil {
		return err
	}
	return requireKeys(n, fields, "from", "to", "type")
}

func (s *createRelStep) run(exec *cypher.Context, w *write.Context) (StepResult, error) {
	from, err := s.From.NodeID(exec)
	if err != nil {
		return StepResult{}, err
	}
	to, err := s.To.NodeID(exec)
	if err != nil {
		return StepResult{}, err
	}
	id, err := w.CreateRelationship(write.CreateRelationshipOp{
		Variable:   s.Var,
		From:       from,
		To:         to,
		Type:       s.Type,
		Weight:     s.Weight,
		Properties: s.Props,
	})
	return StepResult{ID: id, Created: err == nil}, err
}

type mergeNodeStep struct {
	Var      string     `yaml:"var"`
	Labels   []string   `yaml:"labels"`
	Match    Properties `yaml:"match"`
	OnCreate Properties `yaml:"on_create"`
	OnMatch  Properties `yaml:"on_match"`
}

func (s *mergeNodeStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	return onlyKeys(n, fields, "var", "labels", "match", "on_create", "on_match")
}

func (s *mergeNodeStep) run(_ *cypher.Context, w *write.Context) (StepResult, error) {
	res, err := w.MergeNode(write.MergeNodeOp{
		Variable: s.Var,
		Labels:   s.Labels,
		Match:    s.Match,
		OnCreate: s.OnCreate,
		OnMatch:  s.OnMatch,
	})
	return StepResult{ID: res.ID, Created: res.WasCreated}, err
}

type mergeRelStep struct {
	Var      string     `yaml:"var"`
	From     Ref        `yaml:"from"`
	To       Ref        `yaml:"to"`
	Type     string     `yaml:"type"`
	Match    Properties `yaml:"match"`
	OnCreate Properties `yaml:"on_create"`
	OnMatch  Properties `yaml:"on_match"`
}

func (s *mergeRelStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	if err := onlyKeys(n, fields, "var", "from", "to", "type", "match", "on_create", "on_match"); err != nil {
		return err
	}
	return requireKeys(n, fields, "from", "to", "type")
}

func (s *mergeRelStep) run(exec *cypher.Context, w *write.Context) (StepResult, error) {
	from, err := s.From.NodeID(exec)
	if err != nil {
		return StepResult{}, err
	}
	to, err := s.To.NodeID(exec)
	if err != nil {
		return StepResult{}, err
	}
	res, err := w.MergeRelationship(write.MergeRelationshipOp{
		Variable: s.Var,
		From:     from,
		To:       to,
		Type:     s.Type,
		Match:    s.Match,
		OnCreate: s.OnCreate,
		OnMatch:  s.OnMatch,
	})
	return StepResult{ID: res.ID, Created: res.WasCreated}, err
}

// setPropertyStep takes either a literal value or an expression evaluated
// against the bound variables. A null value removes the property.
type setPropertyStep struct {
	Target Ref         `yaml:"target"`
	Key    string      `yaml:"key"`
	Value  Literal     `yaml:"value"`
	Expr   *Expression `yaml:"expr"`
}

func (s *setPropertyStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	if err := onlyKeys(n, fields, "target", "key", "value", "expr"); err != nil {
		return err
	}
	if err := requireKeys(n, fields, "target", "key"); err != nil {
		return err
	}
	_, hasValue := fields["value"]
	_, hasExpr := fields["expr"]
	if hasValue == hasExpr {
		return formatErr(n, "set_property needs exactly one of value and expr")
	}
	return nil
}

func (s *setPropertyStep) run(exec *cypher.Context, w *write.Context) (StepResult, error) {
	target, err := s.Target.Resolve(exec)
	if err != nil {
		return StepResult{}, err
	}
	v := s.Value.Value
	if s.Expr != nil && s.Expr.Expr != nil {
		if v, err = cypher.Eval(exec, s.Expr.Expr, nil); err != nil {
			return StepResult{}, err
		}
	}
	id, _ := target.ID()
	return StepResult{ID: id}, w.SetProperty(target, s.Key, v)
}

type removePropertyStep struct {
	Target Ref    `yaml:"target"`
	Key    string `yaml:"key"`
}

func (s *removePropertyStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	if err := onlyKeys(n, fields, "target", "key"); err != nil {
		return err
	}
	return requireKeys(n, fields, "target", "key")
}

func (s *removePropertyStep) run(exec *cypher.Context, w *write.Context) (StepResult, error) {
	target, err := s.Target.Resolve(exec)
	if err != nil {
		return StepResult{}, err
	}
	id, _ := target.ID()
	return StepResult{ID: id}, w.RemoveProperty(target, s.Key)
}

type labelStep struct {
	Node   Ref      `yaml:"node"`
	Labels []string `yaml:"labels"`
	remove bool
}

func (s *labelStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	if err := onlyKeys(n, fields, "node", "labels"); err != nil {
		return err
	}
	return requireKeys(n, fields, "node", "labels")
}

func (s *labelStep) run(exec *cypher.Context, w *write.Context) (StepResult, error) {
	id, err := s.Node.NodeID(exec)
	if err != nil {
		return StepResult{}, err
	}
	if s.remove {
		return StepResult{ID: id}, w.RemoveLabels(id, s.Labels...)
	}
	return StepResult{ID: id}, w.SetLabels(id, s.Labels...)
}

type deleteStep struct {
	Target Ref  `yaml:"target"`
	Detach bool `yaml:"detach"`
}

func (s *deleteStep) check(n *yaml.Node, fields map[string]*yaml.Node) error {
	if err := onlyKeys(n, fields, "target", "detach"); err != nil {
		return err
	}
	return requireKeys(n, fields, "target")
}

func (s *deleteStep) run(exec *cypher.Context, w *write.Context) (StepResult, error) {
	target, err := s.Target.Resolve(exec)
	if err != nil {
		return StepResult{}, err
	}
	id, _ := target.ID()
	switch {
	case target.Kind() == value.KindRelationship:
		err = w.DeleteRelationship(id)
	case s.Detach:
		err = w.DetachDeleteNode(id)
	default:
		err = w.DeleteNode(id)
	}
	return StepResult{ID: id}, err
}

// ============================================================================
// Arguments
// ============================================================================

// Properties is a property map of literals.
type Properties map[string]value.Value

// UnmarshalYAML implements yaml.Unmarshaler.
func (p *Properties) UnmarshalYAML(n *yaml.Node) error {
	m, err := literalMap(n)
	if err != nil {
		return err
	}
	*p = m
	return nil
}

// Ref names a node or relationship by variable or id.
type Ref struct {
	Var string
	ID  int64
	Rel bool
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (r *Ref) UnmarshalYAML(n *yaml.Node) error {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		if n.Tag == "!!int" {
			return n.Decode(&r.ID)
		}
		if n.Tag != "!!str" || n.Value == "" {
			return formatErr(n, "reference must be a variable name or id")
		}
		r.Var = n.Value
		return nil
	case yaml.MappingNode:
		fields, err := mappingFields(n)
		if err != nil {
			return err
		}
		if err := onlyKeys(n, fields, "node", "rel"); err != nil {
			return err
		}
		if len(fields) != 1 {
			return formatErr(n, "reference needs exactly one of node and rel")
		}
		if id, ok := fields["rel"]; ok {
			r.Rel = true
			return id.Decode(&r.ID)
		}
		return fields["node"].Decode(&r.ID)
	}
	return formatErr(n, "reference must be a variable name or id")
}

// Resolve returns the referenced entity as a Node or Relationship value.
func (r Ref) Resolve(exec *cypher.Context) (value.Value, error) {
	if r.Var == "" {
		if r.Rel {
			return value.Rel(r.ID), nil
		}
		return value.Node(r.ID), nil
	}
	v, err := exec.Get(r.Var)
	if err != nil {
		return value.Null(), err
	}
	if k := v.Kind(); k != value.KindNode && k != value.KindRelationship {
		return value.Null(), qerr.New(qerr.KindTypeMismatch, "resolve", "%s is a %s, not an entity", r.Var, k)
	}
	return v, nil
}

// NodeID resolves r and requires a node.
func (r Ref) NodeID(exec *cypher.Context) (int64, error) {
	v, err := r.Resolve(exec)
	if err != nil {
		return 0, err
	}
	if v.Kind() != value.KindNode {
		return 0, qerr.New(qerr.KindTypeMismatch, "resolve", "expected a node, got %s", v.Kind())
	}
	id, _ := v.ID()
	return id, nil
}
