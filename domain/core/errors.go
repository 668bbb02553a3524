package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound       = errors.New("resource not found")
	ErrExportNotFound = fmt.Errorf("%w: export", ErrNotFound)

	// Field and facet errors
	ErrUnknownField      = errors.New("unknown field")
	ErrUnknownFacet      = errors.New("unknown facet")
	ErrInvalidSelection  = errors.New("invalid selection")
	ErrUnknownDependency = errors.New("unknown dependency")

	// Data errors
	ErrEmptyFrame        = errors.New("dataframe has no rows")
	ErrSchemaMismatch    = errors.New("schema mismatch")
	ErrUnsupportedFormat = errors.New("unsupported format")

	// ErrNotAvailable marks a metric with no defined value (no contributing rows,
	// zero denominator). It is distinct from a computed zero.
	ErrNotAvailable = errors.New("not available")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

func NewUnknownFieldError(schema, field string) error {
	return fmt.Errorf("%w: %q is not part of schema %s", ErrUnknownField, field, schema)
}

func NewUnknownFacetError(schema, facet string) error {
	return fmt.Errorf("%w: %q is not a facet of schema %s", ErrUnknownFacet, facet, schema)
}

func NewSelectionError(facet string, reason string) error {
	return fmt.Errorf("%w for %s: %s", ErrInvalidSelection, facet, reason)
}

func NewSchemaMismatchError(field string, reason string) error {
	return fmt.Errorf("%w for field %s: %s", ErrSchemaMismatch, field, reason)
}

func NewUnsupportedFormatError(format string) error {
	return fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsFieldError reports whether err stems from a field or facet name that the
// dataframe schema does not define.
func IsFieldError(err error) bool {
	return errors.Is(err, ErrUnknownField) ||
		errors.Is(err, ErrUnknownFacet) ||
		errors.Is(err, ErrUnknownDependency)
}

func IsInputError(err error) bool {
	return IsFieldError(err) ||
		errors.Is(err, ErrInvalidSelection) ||
		errors.Is(err, ErrUnsupportedFormat) ||
		errors.Is(err, ErrSchemaMismatch)
}
