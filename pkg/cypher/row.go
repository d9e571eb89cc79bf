package cypher

import (
	"github.com/orneryd/graphexec/pkg/value"
)

// Column is one named cell of a Row.
type Column struct {
	Name  string
	Value value.Value
}

// Row is an ordered sequence of named values. Names need not be unique;
// lookups return the first match.
type Row struct {
	Columns []Column
}

// NewRow builds a row from columns, copying each value.
func NewRow(cols ...Column) *Row {
	r := &Row{Columns: make([]Column, 0, len(cols))}
	for _, c := range cols {
		r.Add(c.Name, c.Value)
	}
	return r
}

// Col is shorthand for building a Column.
func Col(name string, v value.Value) Column { return Column{Name: name, Value: v} }

// Add appends a copy of v under name.
func (r *Row) Add(name string, v value.Value) {
	r.Columns = append(r.Columns, Column{Name: name, Value: v.Copy()})
}

// Get returns a copy of the first column named name.
func (r *Row) Get(name string) (value.Value, bool) {
	if r == nil {
		return value.Null(), false
	}
	for _, c := range r.Columns {
		if c.Name == name {
			return c.Value.Copy(), true
		}
	}
	return value.Null(), false
}

// Len returns the column count.
func (r *Row) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Columns)
}

// Names returns column names in order.
func (r *Row) Names() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// Reset empties the row, keeping its capacity.
func (r *Row) Reset() {
	for i := range r.Columns {
		r.Columns[i].Value.Reset()
	}
	r.Columns = r.Columns[:0]
}

// Clone returns a deep copy.
func (r *Row) Clone() *Row {
	out := &Row{Columns: make([]Column, len(r.Columns))}
	for i, c := range r.Columns {
		out.Columns[i] = Column{Name: c.Name, Value: c.Value.Copy()}
	}
	return out
}

// CopyFrom replaces r's contents with a deep copy of src.
func (r *Row) CopyFrom(src *Row) {
	r.Reset()
	for _, c := range src.Columns {
		r.Add(c.Name, c.Value)
	}
}

// AppendJSON appends the row as a JSON object, columns in order.
func (r *Row) AppendJSON(dst []byte) []byte {
	dst = append(dst, '{')
	for i, c := range r.Columns {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = value.AppendQuoted(dst, c.Name)
		dst = append(dst, ':')
		dst = c.Value.AppendJSON(dst)
	}
	return append(dst, '}')
}

// JSON returns the row as a JSON object.
func (r *Row) JSON() string {
	return string(r.AppendJSON(nil))
}
