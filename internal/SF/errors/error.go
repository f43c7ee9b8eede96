// Package errors defines the structured errors raised by pivot tables and
// their host. Every error carries a Class (which phase failed), a Kind (what
// failed) and optionally the wrapped engine error.
package errors

import (
	"errors"
	"fmt"
	"strconv"
)

// Class groups kinds by the phase that raised them.
type Class int

const (
	ClassNone Class = iota
	ClassDefinition
	ClassScan
	ClassCellResolution
	ClassMisuse
)

var classNames = []string{"Error", "DefinitionError", "ScanError", "CellResolutionError", "MisuseError"}

func (c Class) String() string {
	if int(c) < 0 || int(c) >= len(classNames) {
		return "Class(" + strconv.Itoa(int(c)) + ")"
	}
	return classNames[c]
}

// Kind is the specific failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindRowKeyQueryInvalid
	KindValueQueryInvalid
	KindColumnDefQueryInvalid
	KindColumnDefArityMismatch
	KindParameterArityMismatch
	KindDuplicateColumnKey
	KindDuplicateColumnName
	KindArgumentCount
	KindScan
	KindCellResolution
	KindMisuse
	KindNotFound
)

var kindInfo = map[Kind]struct {
	name  string
	class Class
}{
	KindUnknown:                {"Unknown", ClassNone},
	KindRowKeyQueryInvalid:     {"RowKeyQueryInvalid", ClassDefinition},
	KindValueQueryInvalid:      {"ValueQueryInvalid", ClassDefinition},
	KindColumnDefQueryInvalid:  {"ColumnDefQueryInvalid", ClassDefinition},
	KindColumnDefArityMismatch: {"ColumnDefArityMismatch", ClassDefinition},
	KindParameterArityMismatch: {"ParameterArityMismatch", ClassDefinition},
	KindDuplicateColumnKey:     {"DuplicateColumnKey", ClassDefinition},
	KindDuplicateColumnName:    {"DuplicateColumnName", ClassDefinition},
	KindArgumentCount:          {"ArgumentCount", ClassDefinition},
	KindScan:                   {"Scan", ClassScan},
	KindCellResolution:         {"CellResolution", ClassCellResolution},
	KindMisuse:                 {"Misuse", ClassMisuse},
	KindNotFound:               {"NotFound", ClassMisuse},
}

func (k Kind) String() string {
	if info, ok := kindInfo[k]; ok {
		return info.name
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// Class returns the class the kind belongs to.
func (k Kind) Class() Class {
	return kindInfo[k].class
}

// Error is a structured error carrying a kind, a human-readable message,
// and an optional wrapped underlying error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s(%s): %s: %v", e.Kind.Class(), e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s(%s): %s", e.Kind.Class(), e.Kind, e.Message)
}

// Unwrap returns the wrapped error for use with errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether this error matches target. Two *Error values match
// when their Kinds are equal.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Kind == t.Kind
	}
	return false
}

// Class returns the class of the error's kind.
func (e *Error) Class() Class { return e.Kind.Class() }

// Sentinels for errors.Is.
var (
	ErrRowKeyQueryInvalid     = &Error{Kind: KindRowKeyQueryInvalid}
	ErrValueQueryInvalid      = &Error{Kind: KindValueQueryInvalid}
	ErrColumnDefQueryInvalid  = &Error{Kind: KindColumnDefQueryInvalid}
	ErrColumnDefArityMismatch = &Error{Kind: KindColumnDefArityMismatch}
	ErrParameterArityMismatch = &Error{Kind: KindParameterArityMismatch}
	ErrDuplicateColumnKey     = &Error{Kind: KindDuplicateColumnKey}
	ErrDuplicateColumnName    = &Error{Kind: KindDuplicateColumnName}
	ErrArgumentCount          = &Error{Kind: KindArgumentCount}
	ErrScan                   = &Error{Kind: KindScan}
	ErrCellResolution         = &Error{Kind: KindCellResolution}
	ErrMisuse                 = &Error{Kind: KindMisuse}
	ErrNotFound               = &Error{Kind: KindNotFound}
)

// New creates a new *Error with the given kind and message.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates a new *Error with the given kind, wrapping err.
func Wrap(kind Kind, err error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// Definitionf creates a definition-time error of the given kind.
func Definitionf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Scanf wraps err as a scan failure.
func Scanf(err error, format string, args ...interface{}) *Error {
	return Wrap(KindScan, err, format, args...)
}

// Cellf wraps err as a cell resolution failure.
func Cellf(err error, format string, args ...interface{}) *Error {
	return Wrap(KindCellResolution, err, format, args...)
}

// Misusef reports an API misuse, such as reading a column from an
// unpositioned cursor.
func Misusef(format string, args ...interface{}) *Error {
	return &Error{Kind: KindMisuse, Message: fmt.Sprintf(format, args...)}
}

// NotFoundf reports a missing table or module.
func NotFoundf(format string, args ...interface{}) *Error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err.
// Returns KindUnknown for nil or for errors that carry no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ClassOf returns the Class of err.
func ClassOf(err error) Class {
	return KindOf(err).Class()
}

// IsDefinition reports whether err is a definition-time failure.
func IsDefinition(err error) bool { return ClassOf(err) == ClassDefinition }
