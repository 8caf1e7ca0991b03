// Package apperr holds the error taxonomy shared by the stores and its
// mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrValidation  = errors.New("validation failed")
	ErrTransaction = errors.New("transaction failed")
)

func NotFound(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}

// Transaction wraps a store failure. The cause is kept for logging only.
func Transaction(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransaction, op, err)
}

// Violations maps a field name to a short machine readable reason.
type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

func (v Violations) Add(field, reason string) {
	if _, ok := v[field]; !ok {
		v[field] = reason
	}
}

// Err returns nil when there are no violations.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return &ValidationError{Violations: v}
}

func Required(v Violations, field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

// ValidationError carries per field violations and matches ErrValidation.
type ValidationError struct {
	Violations Violations
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Violations))
	for f, reason := range e.Violations {
		fields = append(fields, f+"="+reason)
	}
	sort.Strings(fields)
	return ErrValidation.Error() + ": " + strings.Join(fields, ", ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is a shortcut for a single violation.
func Invalid(field, reason string) error {
	return &ValidationError{Violations: Violations{field: reason}}
}
