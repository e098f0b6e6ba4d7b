// Package errors provides the typed error kinds used throughout msigo.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the error kinds named by the package specification.
var (
	// ErrNotMsi indicates the underlying file isn't a CFB container or
	// lacks the required MSI metadata streams.
	ErrNotMsi = errors.New("not an msi package")
	// ErrMalformedPackage indicates a structural invariant was violated.
	ErrMalformedPackage = errors.New("malformed package")
	// ErrSchema indicates illegal DDL.
	ErrSchema = errors.New("invalid schema")
	// ErrQuery indicates a query parse or resolution error.
	ErrQuery = errors.New("invalid query")
	// ErrConstraint indicates a PK/FK/nullability/value-set/length violation.
	ErrConstraint = errors.New("constraint violation")
	// ErrUnsupported indicates a feature this library does not implement.
	ErrUnsupported = errors.New("unsupported")
)

// NotMsiError reports that a file could not be recognized as an MSI package.
type NotMsiError struct {
	Reason string // why the file was rejected
	Err    error  // underlying error, if any
}

func (e *NotMsiError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("not an msi package: %s", e.Reason)
	}
	return "not an msi package"
}

func (e *NotMsiError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotMsi
}

// MalformedPackageError reports a violated on-disk structural invariant.
type MalformedPackageError struct {
	Stream  string // stream in which the problem was found, if applicable
	Message string
	Err     error
}

func (e *MalformedPackageError) Error() string {
	if e.Stream != "" {
		return fmt.Sprintf("malformed package: %s: %s", e.Stream, e.Message)
	}
	return fmt.Sprintf("malformed package: %s", e.Message)
}

func (e *MalformedPackageError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformedPackage
}

// SchemaError reports illegal DDL: bad identifiers, duplicate columns,
// missing primary keys, and similar.
type SchemaError struct {
	Table   string
	Column  string
	Message string
	Err     error
}

func (e *SchemaError) Error() string {
	switch {
	case e.Table != "" && e.Column != "":
		return fmt.Sprintf("schema error: %s.%s: %s", e.Table, e.Column, e.Message)
	case e.Table != "":
		return fmt.Sprintf("schema error: %s: %s", e.Table, e.Message)
	default:
		return fmt.Sprintf("schema error: %s", e.Message)
	}
}

func (e *SchemaError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrSchema
}

// QueryError reports a parse error, unresolved name, type mismatch, or
// other problem evaluating a query.
type QueryError struct {
	Query   string // the offending query text, if known
	Pos     int    // byte offset into Query, -1 if not applicable
	Message string
	Err     error
}

func (e *QueryError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("query error at %d: %s", e.Pos, e.Message)
	}
	return fmt.Sprintf("query error: %s", e.Message)
}

func (e *QueryError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrQuery
}

// ConstraintError reports a primary-key, foreign-key, nullability,
// value-set, or length-overflow violation.
type ConstraintError struct {
	Kind    string // short label for the violated rule or failing operation, e.g. "primary key", "insert", "update", "type"
	Table   string
	Column  string
	Message string
	Err     error
}

func (e *ConstraintError) Error() string {
	if e.Table != "" && e.Column != "" {
		return fmt.Sprintf("%s constraint violated on %s.%s: %s", e.Kind, e.Table, e.Column, e.Message)
	}
	return fmt.Sprintf("%s constraint violated: %s", e.Kind, e.Message)
}

func (e *ConstraintError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrConstraint
}

// IOError wraps a failure from the underlying CFB container.
type IOError struct {
	Operation string
	Stream    string
	Err       error
}

func (e *IOError) Error() string {
	if e.Stream != "" {
		return fmt.Sprintf("failed to %s stream %q: %v", e.Operation, e.Stream, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnsupportedError reports a feature this library deliberately does not
// implement (transforms, patches, custom actions, signing).
type UnsupportedError struct {
	Feature string
	Reason  string
	Err     error
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// Constructors.

func NewNotMsi(reason string) *NotMsiError { return &NotMsiError{Reason: reason} }

func NewMalformed(stream, message string) *MalformedPackageError {
	return &MalformedPackageError{Stream: stream, Message: message}
}

func NewSchema(table, column, message string) *SchemaError {
	return &SchemaError{Table: table, Column: column, Message: message}
}

func NewQuery(query string, pos int, message string) *QueryError {
	return &QueryError{Query: query, Pos: pos, Message: message}
}

func NewConstraint(kind, table, column, message string) *ConstraintError {
	return &ConstraintError{Kind: kind, Table: table, Column: column, Message: message}
}

func NewIO(operation, stream string, err error) *IOError {
	return &IOError{Operation: operation, Stream: stream, Err: err}
}

func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{Feature: feature, Reason: reason}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is wraps errors.Is for convenience.
func Is(err, target error) bool { return errors.Is(err, target) }

// As wraps errors.As for convenience.
func As(err error, target interface{}) bool { return errors.As(err, target) }
