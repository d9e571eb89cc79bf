package iterator

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/orneryd/graphexec/pkg/cypher"
)

// Stats summarizes one execution.
type Stats struct {
	RowsProduced  int64         `json:"rows_produced"`
	RowsProcessed int64         `json:"rows_processed"`
	Elapsed       time.Duration `json:"elapsed_ns"`
}

// Result is a fully drained iterator tree.
type Result struct {
	Columns []string
	Rows    []*cypher.Row
	Stats   Stats
}

// Execute opens root, pulls every row and closes it. Columns come from the
// first row. On error the rows collected so far are discarded and the error
// is recorded on ctx.
func Execute(ctx *cypher.Context, root Iterator) (*Result, error) {
	start := time.Now()
	processedBefore := ctx.RowsProcessed

	rows, err := Drain(root)
	if err != nil {
		ctx.SetError(err)
		return nil, err
	}
	ctx.RowsProduced += int64(len(rows))

	res := &Result{
		Rows: rows,
		Stats: Stats{
			RowsProduced:  int64(len(rows)),
			RowsProcessed: ctx.RowsProcessed - processedBefore,
			Elapsed:       time.Since(start),
		},
	}
	if len(rows) > 0 {
		res.Columns = rows[0].Names()
	}
	return res, nil
}

// JSON encodes the result rows; see EncodeJSON.
func (r *Result) JSON() string { return EncodeJSON(r.Rows) }

// EncodeJSON renders rows as a JSON array of objects, columns in row order.
// Identical rows always produce identical bytes.
func EncodeJSON(rows []*cypher.Row) string {
	return string(appendRows(nil, rows))
}

// EncodeJSONIndent is EncodeJSON with indentation.
func EncodeJSONIndent(rows []*cypher.Row, indent string) (string, error) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, appendRows(nil, rows), "", indent); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func appendRows(dst []byte, rows []*cypher.Row) []byte {
	dst = append(dst, '[')
	for i, r := range rows {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = r.AppendJSON(dst)
	}
	return append(dst, ']')
}
