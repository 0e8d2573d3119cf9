// Package wrappererr defines the stable, coded errors surfaced by schema
// merging and version-aware field access. Codes are part of the public
// contract: callers and log pipelines match on them, so they never change
// meaning between releases.
package wrappererr

import (
	"fmt"
	"strings"
)

// Code is a stable machine-readable error code.
type Code string

// Schema analysis and merge errors.
const (
	CodeSchemaInvalid        Code = "SCHEMA-001"
	CodeSchemaCycle          Code = "SCHEMA-002"
	CodeSchemaDuplicateType  Code = "SCHEMA-003"
	CodeSchemaUnresolvedType Code = "SCHEMA-004"
	CodeSchemaIncompatible   Code = "SCHEMA-005"
)

// Value conversion errors.
const (
	CodeConvOutOfRange  Code = "CONV-001"
	CodeConvUnsupported Code = "CONV-002"
	CodeConvEnumValue   Code = "CONV-003"
	CodeConvLossy       Code = "CONV-004"
)

// Version resolution errors.
const (
	CodeVersionUnsupported Code = "VER-001"
	CodeVersionInvalid     Code = "VER-002"
)

// Field access errors.
const (
	CodeFieldNotAvailable Code = "FIELD-001"
	CodeFieldTypeConflict Code = "FIELD-002"
	CodeFieldNumberChange Code = "FIELD-003"
)

// Error is a coded error. All errors exported by this package unwrap to one.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates a coded error.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// codedError aliases Error so wrapper types can embed it without the field
// name colliding with the promoted Error method.
type codedError = Error

func (e *SchemaValidationError) Unwrap() error      { return e.codedError }
func (e *FieldNotAvailableError) Unwrap() error     { return e.codedError }
func (e *EnumValueNotSupportedError) Unwrap() error { return e.codedError }
func (e *TypeRangeError) Unwrap() error             { return e.codedError }
func (e *VersionNotSupportedError) Unwrap() error   { return e.codedError }

// SchemaValidationError reports an invalid or unmergeable schema, with the
// type path that led to the failure.
type SchemaValidationError struct {
	*codedError
	// Path is the chain of message names that reached the failure, outermost
	// first. For cycles the offending type appears twice.
	Path []string
}

// NewCycleError reports a circular message reference discovered while walking
// nested types.
func NewCycleError(path []string) *SchemaValidationError {
	return &SchemaValidationError{
		codedError: New(CodeSchemaCycle, "circular message reference: %s", strings.Join(path, " -> ")),
		Path:       append([]string(nil), path...),
	}
}

// NewSchemaInvalidError reports a structurally invalid schema.
func NewSchemaInvalidError(path []string, format string, args ...any) *SchemaValidationError {
	return &SchemaValidationError{
		codedError: New(CodeSchemaInvalid, format, args...),
		Path:       append([]string(nil), path...),
	}
}

// FieldNotAvailableError reports access to a field that does not exist in the
// requested schema version.
type FieldNotAvailableError struct {
	*codedError
	MessageName string
	FieldName   string
	Version     string
}

func NewFieldNotAvailableError(message, field, version string) *FieldNotAvailableError {
	return &FieldNotAvailableError{
		codedError:  New(CodeFieldNotAvailable, "field %s.%s is not available in version %s", message, field, version),
		MessageName: message,
		FieldName:   field,
		Version:     version,
	}
}

// EnumValueNotSupportedError reports an enum value that cannot be represented
// in the target version's enum.
type EnumValueNotSupportedError struct {
	*codedError
	EnumName string
	Value    string
	Version  string
}

func NewEnumValueNotSupportedError(enum, value, version string) *EnumValueNotSupportedError {
	return &EnumValueNotSupportedError{
		codedError: New(CodeConvEnumValue, "enum value %s.%s is not supported in version %s", enum, value, version),
		EnumName:   enum,
		Value:      value,
		Version:    version,
	}
}

// TypeRangeError reports a value that does not fit the narrower type of a
// specific version (e.g. an int64 written back to an int32 field).
type TypeRangeError struct {
	*codedError
	FieldName string
	Value     int64
	Target    string
}

func NewTypeRangeError(field string, value int64, target string) *TypeRangeError {
	return &TypeRangeError{
		codedError: New(CodeConvOutOfRange, "value %d of field %s does not fit %s", value, field, target),
		FieldName:  field,
		Value:      value,
		Target:     target,
	}
}

// VersionNotSupportedError reports a version identifier outside the merged
// version set.
type VersionNotSupportedError struct {
	*codedError
	Version   string
	Supported []string
}

func NewVersionNotSupportedError(version string, supported []string) *VersionNotSupportedError {
	return &VersionNotSupportedError{
		codedError: New(CodeVersionUnsupported, "version %s is not supported (known: %s)", version, strings.Join(supported, ", ")),
		Version:    version,
		Supported:  append([]string(nil), supported...),
	}
}
