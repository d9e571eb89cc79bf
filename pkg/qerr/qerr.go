// Package qerr defines the error kinds shared by the graphexec execution core.
//
// Every public operation in the value, cypher, iterator and write packages
// returns errors that carry one of the kinds below. Callers classify them with
// errors.Is against the sentinel values:
//
//	if errors.Is(err, qerr.ErrNotFound) {
//		// variable, node or relationship absent
//	}
//
// The message text is meant for humans and must not be parsed.
package qerr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an execution error.
type Kind int

const (
	KindUnknown Kind = iota
	KindMisuse
	KindOutOfMemory
	KindFormat
	KindTypeMismatch
	KindNotFound
	KindConstraint
	KindRange
	KindStorage
)

// Sentinel errors, one per kind.
var (
	ErrMisuse              = errors.New("misuse")
	ErrOutOfMemory         = errors.New("out of memory")
	ErrFormat              = errors.New("format error")
	ErrTypeMismatch        = errors.New("type mismatch")
	ErrNotFound            = errors.New("not found")
	ErrConstraintViolation = errors.New("constraint violation")
	ErrRange               = errors.New("range error")
	ErrStorage             = errors.New("storage error")
)

var kindSentinels = map[Kind]error{
	KindMisuse:       ErrMisuse,
	KindOutOfMemory:  ErrOutOfMemory,
	KindFormat:       ErrFormat,
	KindTypeMismatch: ErrTypeMismatch,
	KindNotFound:     ErrNotFound,
	KindConstraint:   ErrConstraintViolation,
	KindRange:        ErrRange,
	KindStorage:      ErrStorage,
}

func (k Kind) String() string {
	if s, ok := kindSentinels[k]; ok {
		return s.Error()
	}
	return "unknown"
}

// Sentinel returns the sentinel error for the kind, or nil for KindUnknown.
func (k Kind) Sentinel() error {
	return kindSentinels[k]
}

// Error is a classified error with the operation that raised it.
type Error struct {
	Kind Kind
	Op   string // e.g. "compare", "CreateNode"
	Msg  string
	Err  error // underlying cause, may be nil
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	if e.Op != "" {
		parts = append(parts, e.Op)
	}
	switch {
	case e.Msg != "":
		parts = append(parts, e.Msg)
	case e.Err == nil:
		parts = append(parts, e.Kind.String())
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	s := e.Kind.Sentinel()
	return s != nil && s == target
}

// New creates a classified error.
func New(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. A nil err yields nil.
func Wrap(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// KindOf extracts the kind of err. Errors that were never classified report
// KindUnknown; bare sentinels report their own kind.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Kind
	}
	for k, s := range kindSentinels {
		if errors.Is(err, s) {
			return k
		}
	}
	return KindUnknown
}
