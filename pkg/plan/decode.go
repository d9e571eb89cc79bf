package plan

import (
	"bytes"
	"errors"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/orneryd/graphexec/pkg/qerr"
)

// decode parses a single YAML document into out, rejecting unknown keys.
// JSON input is accepted since it is valid YAML.
func decode(data []byte, out any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return qerr.New(qerr.KindFormat, "decode", "empty document")
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return qerr.New(qerr.KindFormat, "decode", "empty document")
		}
		if qerr.KindOf(err) != qerr.KindUnknown {
			return err
		}
		return qerr.Wrap(qerr.KindFormat, "decode", err)
	}
	return nil
}

func resolve(n *yaml.Node) *yaml.Node {
	for n != nil && n.Kind == yaml.AliasNode {
		n = n.Alias
	}
	if n != nil && n.Kind == yaml.DocumentNode && len(n.Content) == 1 {
		return resolve(n.Content[0])
	}
	return n
}

func formatErr(n *yaml.Node, format string, args ...any) error {
	if n != nil && n.Line > 0 {
		args = append([]any{n.Line}, args...)
		return qerr.New(qerr.KindFormat, "decode", "line %d: "+format, args...)
	}
	return qerr.New(qerr.KindFormat, "decode", format, args...)
}

// mappingFields indexes a mapping node by key. Duplicate keys are rejected.
func mappingFields(n *yaml.Node) (map[string]*yaml.Node, error) {
	fields := make(map[string]*yaml.Node, len(n.Content)/2)
	for i := 0; i+1 < len(n.Content); i += 2 {
		key, err := scalarString(n.Content[i])
		if err != nil {
			return nil, err
		}
		if _, dup := fields[key]; dup {
			return nil, formatErr(n.Content[i], "duplicate key %q", key)
		}
		fields[key] = n.Content[i+1]
	}
	return fields, nil
}

func onlyKeys(n *yaml.Node, fields map[string]*yaml.Node, allowed ...string) error {
	for k := range fields {
		ok := false
		for _, a := range allowed {
			if k == a {
				ok = true
				break
			}
		}
		if !ok {
			return formatErr(n, "unexpected key %q", k)
		}
	}
	return nil
}

func scalarString(n *yaml.Node) (string, error) {
	n = resolve(n)
	if n == nil || n.Kind != yaml.ScalarNode {
		return "", formatErr(n, "expected a scalar")
	}
	return n.Value, nil
}
