package write

import (
	"strings"

	"github.com/orneryd/graphexec/pkg/qerr"
	"github.com/orneryd/graphexec/pkg/value"
)

// Limits bounds the size of what a single mutation may write.
type Limits struct {
	MaxLabels      int
	MaxProperties  int
	MaxStringBytes int
	MaxNameLength  int
}

// DefaultLimits returns the stock ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxLabels:      100,
		MaxProperties:  1000,
		MaxStringBytes: 1 << 20,
		MaxNameLength:  255,
	}
}

var reservedWords = map[string]struct{}{}

func init() {
	for _, w := range []string{
		"CREATE", "MERGE", "SET", "DELETE", "DETACH", "MATCH", "WHERE",
		"RETURN", "WITH", "UNWIND", "OPTIONAL", "UNION", "ORDER", "BY",
		"SKIP", "LIMIT", "ASC", "DESC", "AND", "OR", "NOT", "XOR",
		"CASE", "WHEN", "THEN", "ELSE", "END", "AS", "DISTINCT",
		"TRUE", "FALSE", "NULL", "IN", "IS", "STARTS", "ENDS", "CONTAINS",
		"REMOVE", "ON",
	} {
		reservedWords[w] = struct{}{}
	}
}

// IsReserved reports whether word is a keyword, ignoring case.
func IsReserved(word string) bool {
	_, ok := reservedWords[strings.ToUpper(word)]
	return ok
}

// ValidateName checks a variable, label, relationship type or property
// name. what names the role for error messages.
func (l Limits) ValidateName(what, name string) error {
	if name == "" {
		return qerr.New(qerr.KindFormat, "validate", "%s name is empty", what)
	}
	if l.MaxNameLength > 0 && len(name) > l.MaxNameLength {
		return qerr.New(qerr.KindRange, "validate", "%s name is %d bytes, limit is %d", what, len(name), l.MaxNameLength)
	}
	if !isIdentifier(name) {
		return qerr.New(qerr.KindFormat, "validate", "invalid %s name %q", what, name)
	}
	if IsReserved(name) {
		return qerr.New(qerr.KindMisuse, "validate", "%s name %q is a reserved word", what, name)
	}
	return nil
}

// isIdentifier accepts a leading ASCII letter or underscore followed by
// ASCII letters, digits and underscores.
func isIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func (l Limits) validateVariable(name string) error {
	if name == "" {
		return nil
	}
	return l.ValidateName("variable", name)
}

func (l Limits) validateLabels(labels []string) error {
	if l.MaxLabels > 0 && len(labels) > l.MaxLabels {
		return qerr.New(qerr.KindRange, "validate", "%d labels, limit is %d", len(labels), l.MaxLabels)
	}
	for _, label := range labels {
		if err := l.ValidateName("label", label); err != nil {
			return err
		}
	}
	return nil
}

func (l Limits) validateProperties(props map[string]value.Value) error {
	if l.MaxProperties > 0 && len(props) > l.MaxProperties {
		return qerr.New(qerr.KindRange, "validate", "%d properties, limit is %d", len(props), l.MaxProperties)
	}
	for key, v := range props {
		if err := l.validateProperty(key, v); err != nil {
			return err
		}
	}
	return nil
}

func (l Limits) validateProperty(key string, v value.Value) error {
	if err := l.ValidateName("property", key); err != nil {
		return err
	}
	return l.validatePropertyValue(key, v)
}

// validatePropertyValue accepts scalars and lists of scalars. Maps and
// entity references cannot be stored.
func (l Limits) validatePropertyValue(key string, v value.Value) error {
	switch v.Kind() {
	case value.KindNull, value.KindBool, value.KindInt, value.KindFloat:
		return nil
	case value.KindString:
		s, _ := v.AsString()
		if l.MaxStringBytes > 0 && len(s) > l.MaxStringBytes {
			return qerr.New(qerr.KindRange, "validate", "property %s is %d bytes, limit is %d", key, len(s), l.MaxStringBytes)
		}
		return nil
	case value.KindList:
		for _, e := range v.Elems() {
			if e.Kind() == value.KindList {
				return qerr.New(qerr.KindTypeMismatch, "validate", "property %s: nested lists cannot be stored", key)
			}
			if err := l.validatePropertyValue(key, e); err != nil {
				return err
			}
		}
		return nil
	}
	return qerr.New(qerr.KindTypeMismatch, "validate", "property %s: %s values cannot be stored", key, v.Kind())
}

// toStorage converts validated properties, dropping Null entries.
func toStorage(props map[string]value.Value) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		if v.IsNull() {
			continue
		}
		out[k] = v.ToGo()
	}
	return out
}

// mergeProps overlays the given maps left to right.
func mergeProps(maps ...map[string]value.Value) map[string]value.Value {
	out := make(map[string]value.Value)
	for _, m := range maps {
		for k, v := range m {
			out[k] = v
		}
	}
	return out
}
