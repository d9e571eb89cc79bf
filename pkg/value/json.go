package value

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/orneryd/graphexec/pkg/qerr"
)

// JSON returns the canonical JSON encoding of v.
//
// Node and relationship references encode as {"_type":"node","_id":N} and
// {"_type":"relationship","_id":N}. Floats always carry a decimal point or an
// exponent so they decode back as Float. NaN and infinities encode as null.
func (v Value) JSON() string {
	return string(v.AppendJSON(nil))
}

// AppendJSON appends the canonical JSON encoding of v to dst.
func (v Value) AppendJSON(dst []byte) []byte {
	switch v.kind {
	case KindNull:
		return append(dst, "null"...)
	case KindBool:
		return strconv.AppendBool(dst, v.b)
	case KindInt:
		return strconv.AppendInt(dst, v.i, 10)
	case KindFloat:
		if math.IsNaN(v.f) || math.IsInf(v.f, 0) {
			return append(dst, "null"...)
		}
		return append(dst, formatFloat(v.f)...)
	case KindString:
		return AppendQuoted(dst, v.s)
	case KindNode:
		dst = append(dst, `{"_type":"node","_id":`...)
		dst = strconv.AppendInt(dst, v.i, 10)
		return append(dst, '}')
	case KindRelationship:
		dst = append(dst, `{"_type":"relationship","_id":`...)
		dst = strconv.AppendInt(dst, v.i, 10)
		return append(dst, '}')
	case KindList:
		dst = append(dst, '[')
		for i, e := range v.list {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = e.AppendJSON(dst)
		}
		return append(dst, ']')
	case KindMap:
		dst = append(dst, '{')
		for i, p := range v.pairs {
			if i > 0 {
				dst = append(dst, ',')
			}
			dst = AppendQuoted(dst, p.Key)
			dst = append(dst, ':')
			dst = p.Val.AppendJSON(dst)
		}
		return append(dst, '}')
	}
	return append(dst, "null"...)
}

const hexDigits = "0123456789abcdef"

// AppendQuoted appends s as a JSON string literal. Quotes, backslashes and
// every control character are escaped; invalid UTF-8 becomes U+FFFD.
func AppendQuoted(dst []byte, s string) []byte {
	dst = append(dst, '"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch c {
			case '"':
				dst = append(dst, '\\', '"')
			case '\\':
				dst = append(dst, '\\', '\\')
			case '\n':
				dst = append(dst, '\\', 'n')
			case '\r':
				dst = append(dst, '\\', 'r')
			case '\t':
				dst = append(dst, '\\', 't')
			case '\b':
				dst = append(dst, '\\', 'b')
			case '\f':
				dst = append(dst, '\\', 'f')
			default:
				if c < 0x20 || c == 0x7f {
					dst = append(dst, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
				} else {
					dst = append(dst, c)
				}
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			dst = append(dst, "\ufffd"...)
		} else {
			dst = append(dst, s[i:i+size]...)
		}
		i += size
	}
	return append(dst, '"')
}

func formatFloat(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eEnN") {
		s += ".0"
	}
	return s
}

// ParseJSON decodes a JSON document into a Value. Objects become Maps with
// their key order preserved, decimals and exponents become Float, and
// {"_type":"node"|"relationship","_id":N} objects become references. Empty
// input decodes as Null.
func ParseJSON(s string) (Value, error) {
	if strings.TrimSpace(s) == "" {
		return Null(), nil
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Null(), formatErr(err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Null(), qerr.New(qerr.KindFormat, "from-json", "trailing data after value")
	}
	return v, nil
}

// FromJSON replaces the receiver with the decoded document. On malformed
// input the receiver is left Null and a format error is returned.
func (v *Value) FromJSON(s string) error {
	v.Reset()
	parsed, err := ParseJSON(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalJSON implements json.Marshaler with the canonical encoding.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.AppendJSON(nil), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	return v.FromJSON(string(bytes.TrimSpace(data)))
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Null(), err
	}
	switch t := tok.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(t), nil
	case string:
		return String(t), nil
	case json.Number:
		return numberValue(t)
	case json.Delim:
		switch t {
		case '[':
			out := Value{kind: KindList, list: []Value{}}
			for dec.More() {
				e, err := decodeValue(dec)
				if err != nil {
					return Null(), err
				}
				out.list = append(out.list, e)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			return out, nil
		case '{':
			out := Value{kind: KindMap, pairs: []Pair{}}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return Null(), err
				}
				key, ok := keyTok.(string)
				if !ok {
					return Null(), errors.New("object key is not a string")
				}
				e, err := decodeValue(dec)
				if err != nil {
					return Null(), err
				}
				out.pairs = setPair(out.pairs, key, e)
			}
			if _, err := dec.Token(); err != nil {
				return Null(), err
			}
			if ref, ok := refFromPairs(out.pairs); ok {
				return ref, nil
			}
			return out, nil
		}
	}
	return Null(), errors.New("unexpected token")
}

func numberValue(n json.Number) (Value, error) {
	s := n.String()
	if !strings.ContainsAny(s, ".eE") {
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return Int(i), nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return Null(), err
	}
	return Float(f), nil
}

func refFromPairs(pairs []Pair) (Value, bool) {
	if len(pairs) != 2 || pairs[0].Key != "_type" || pairs[1].Key != "_id" {
		return Value{}, false
	}
	typ, ok := pairs[0].Val.AsString()
	if !ok {
		return Value{}, false
	}
	id, ok := pairs[1].Val.AsInt()
	if !ok {
		return Value{}, false
	}
	switch typ {
	case "node":
		return Node(id), true
	case "relationship":
		return Rel(id), true
	}
	return Value{}, false
}

func formatErr(err error) error {
	var qe *qerr.Error
	if errors.As(err, &qe) {
		return err
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return qerr.New(qerr.KindFormat, "from-json", "unexpected end of input")
	}
	return &qerr.Error{Kind: qerr.KindFormat, Op: "from-json", Err: err}
}
