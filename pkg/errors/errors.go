// Package errors provides custom error types for the harmonizer system.
// These errors enable programmatic error checking across pipeline stages
// and ensure failures always name the offending keys or columns.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// New returns an error that formats as the given text.
// It's an alias for the standard library errors.New for convenience.
var New = errors.New

// Common sentinel errors for the harmonizer system
var (
	// ErrNotFound indicates that a requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates that a resource already exists
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates that provided input was invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrAPIKeyRequired indicates that an API key is required but not provided
	ErrAPIKeyRequired = errors.New("API key required")

	// ErrOracleUnavailable indicates a transient oracle failure; the call may be retried
	ErrOracleUnavailable = errors.New("oracle unavailable")

	// ErrOracleMalformed indicates an oracle returned a proposal that cannot be used
	ErrOracleMalformed = errors.New("oracle proposal malformed")

	// ErrUnresolvedMapping indicates the selector could not produce a total mapping
	ErrUnresolvedMapping = errors.New("mapping unresolved")

	// ErrMergeConflict indicates two raw columns mapped to one canonical key disagree
	ErrMergeConflict = errors.New("merge conflict")

	// ErrExplosionConsistency indicates the wide-to-long reshape hit invalid data
	ErrExplosionConsistency = errors.New("explosion consistency violation")

	// ErrFlattenCollision indicates the long-to-wide reshape would overwrite a cell
	ErrFlattenCollision = errors.New("flatten collision")

	// ErrTypeAmbiguous indicates a column mixes numeric and non-numeric values
	ErrTypeAmbiguous = errors.New("column type ambiguous")

	// ErrTimeout indicates that an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCanceled indicates that an operation was canceled
	ErrCanceled = errors.New("operation canceled")

	// ErrReadOnly indicates an attempt to modify a read-only resource
	ErrReadOnly = errors.New("read only")
)

// NotFoundError represents an error when a resource is not found
type NotFoundError struct {
	Resource string
	ID       string
}

// Error implements the error interface
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s with ID %s not found", e.Resource, e.ID)
}

// Is implements errors.Is support
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(resource, id string) *NotFoundError {
	return &NotFoundError{Resource: resource, ID: id}
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

// Is implements errors.Is support
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// OracleError represents a failure while querying a naming oracle. The
// StatusCode distinguishes transport-level failures from rejections.
type OracleError struct {
	Oracle     string // Oracle ID as string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface
func (e *OracleError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("oracle %s failed (status %d): %s", e.Oracle, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("oracle %s failed: %s", e.Oracle, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *OracleError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support. Only transport failures (status 0),
// rate limits, and server errors match ErrOracleUnavailable; permanent
// endpoint rejections like 400 match neither sentinel.
func (e *OracleError) Is(target error) bool {
	switch {
	case e.StatusCode == 401 || e.StatusCode == 403:
		return target == ErrAPIKeyRequired
	case e.StatusCode == 0 || e.StatusCode == 429 || e.StatusCode >= 500:
		return target == ErrOracleUnavailable
	}
	return false
}

// NewOracleError creates a new OracleError
func NewOracleError(oracle string, statusCode int, message string) *OracleError {
	return &OracleError{
		Oracle:     oracle,
		StatusCode: statusCode,
		Message:    message,
	}
}

// MalformedProposalError represents an oracle proposal that was rejected:
// it was not a valid string-to-string mapping, or it referenced keys
// outside the requested set. Not retried automatically.
type MalformedProposalError struct {
	Oracle string
	Reason string
	Keys   []string // offending keys, if key-specific
	Err    error
}

// Error implements the error interface
func (e *MalformedProposalError) Error() string {
	if len(e.Keys) > 0 {
		return fmt.Sprintf("oracle %s returned malformed proposal: %s (keys: %s)", e.Oracle, e.Reason, strings.Join(e.Keys, ", "))
	}
	return fmt.Sprintf("oracle %s returned malformed proposal: %s", e.Oracle, e.Reason)
}

// Unwrap implements errors.Unwrap
func (e *MalformedProposalError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support
func (e *MalformedProposalError) Is(target error) bool {
	return target == ErrOracleMalformed
}

// NewMalformedProposalError creates a new MalformedProposalError
func NewMalformedProposalError(oracle, reason string, keys []string) *MalformedProposalError {
	return &MalformedProposalError{Oracle: oracle, Reason: reason, Keys: keys}
}

// UnresolvedMappingError indicates the selector could not assign a
// canonical key to every raw key. A mapping carrying unresolved keys is
// invalid and must never reach the apply stage.
type UnresolvedMappingError struct {
	Kind string // "demographic" or "question"
	Keys []string
}

// Error implements the error interface
func (e *UnresolvedMappingError) Error() string {
	return fmt.Sprintf("%s mapping unresolved for %d key(s): %s", e.Kind, len(e.Keys), strings.Join(e.Keys, ", "))
}

// Is implements errors.Is support
func (e *UnresolvedMappingError) Is(target error) bool {
	return target == ErrUnresolvedMapping
}

// NewUnresolvedMappingError creates a new UnresolvedMappingError
func NewUnresolvedMappingError(kind string, keys []string) *UnresolvedMappingError {
	return &UnresolvedMappingError{Kind: kind, Keys: keys}
}

// MergeConflictError records a row where two raw columns mapped to the
// same canonical key hold different non-empty values. Surfaced as a
// data-quality finding, never silently resolved.
type MergeConflictError struct {
	Period string
	Key    string // canonical key the raw columns collided on
	Row    int
	Left   string
	Right  string

	// Values lists every distinct value observed in column order,
	// starting with Left and Right.
	Values []string
}

// Error implements the error interface
func (e *MergeConflictError) Error() string {
	values := e.Values
	if len(values) == 0 {
		values = []string{e.Left, e.Right}
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return fmt.Sprintf("merge conflict in period %s row %d for key %s: %s", e.Period, e.Row, e.Key, strings.Join(quoted, " vs "))
}

// Is implements errors.Is support
func (e *MergeConflictError) Is(target error) bool {
	return target == ErrMergeConflict
}

// NewMergeConflictError creates a new MergeConflictError
func NewMergeConflictError(period, key string, row int, left, right string) *MergeConflictError {
	return &MergeConflictError{Period: period, Key: key, Row: row, Left: left, Right: right,
		Values: []string{left, right}}
}

// ExplosionError represents an invariant violation during the
// wide-to-long reshape. Always fatal; indicates an upstream mapping or
// collector bug rather than bad user data.
type ExplosionError struct {
	Period string
	Column string
	Row    int
	Reason string
}

// Error implements the error interface
func (e *ExplosionError) Error() string {
	return fmt.Sprintf("explosion failed in period %s row %d column %s: %s", e.Period, e.Row, e.Column, e.Reason)
}

// Is implements errors.Is support
func (e *ExplosionError) Is(target error) bool {
	return target == ErrExplosionConsistency
}

// NewExplosionError creates a new ExplosionError
func NewExplosionError(period, column string, row int, reason string) *ExplosionError {
	return &ExplosionError{Period: period, Column: column, Row: row, Reason: reason}
}

// FlattenCollisionError represents two exploded rows landing on the same
// (identity, theme, question) cell during the long-to-wide reshape.
type FlattenCollisionError struct {
	Period   string
	Column   string
	Identity string
}

// Error implements the error interface
func (e *FlattenCollisionError) Error() string {
	return fmt.Sprintf("flatten collision in period %s: column %s already set for identity [%s]", e.Period, e.Column, e.Identity)
}

// Is implements errors.Is support
func (e *FlattenCollisionError) Is(target error) bool {
	return target == ErrFlattenCollision
}

// NewFlattenCollisionError creates a new FlattenCollisionError
func NewFlattenCollisionError(period, column, identity string) *FlattenCollisionError {
	return &FlattenCollisionError{Period: period, Column: column, Identity: identity}
}

// TypeAmbiguousError records a column whose non-null values mix numeric
// and non-numeric tokens. The column defaults to the identifier type.
type TypeAmbiguousError struct {
	Column  string
	Numeric int
	Text    int
}

// Error implements the error interface
func (e *TypeAmbiguousError) Error() string {
	return fmt.Sprintf("column %s has ambiguous type: %d numeric vs %d non-numeric values", e.Column, e.Numeric, e.Text)
}

// Is implements errors.Is support
func (e *TypeAmbiguousError) Is(target error) bool {
	return target == ErrTypeAmbiguous
}

// NewTypeAmbiguousError creates a new TypeAmbiguousError
func NewTypeAmbiguousError(column string, numeric, text int) *TypeAmbiguousError {
	return &TypeAmbiguousError{Column: column, Numeric: numeric, Text: text}
}

// ConfigError represents a configuration error
type ConfigError struct {
	Component string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	if e.Component != "" {
		return fmt.Sprintf("configuration error in %s: %s", e.Component, e.Message)
	}
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError
func NewConfigError(component, message string, err error) *ConfigError {
	return &ConfigError{
		Component: component,
		Message:   message,
		Err:       err,
	}
}

// ParseError represents an error when parsing data formats
type ParseError struct {
	Format  string // "json", "yaml", "csv", etc.
	File    string
	Line    int
	Column  int
	Message string
	Err     error
}

// Error implements the error interface
func (e *ParseError) Error() string {
	if e.File != "" && e.Line > 0 {
		return fmt.Sprintf("parse error in %s at %s:%d:%d: %s", e.Format, e.File, e.Line, e.Column, e.Message)
	}
	if e.File != "" {
		return fmt.Sprintf("parse error in %s file %s: %s", e.Format, e.File, e.Message)
	}
	return fmt.Sprintf("%s parse error: %s", e.Format, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *ParseError) Unwrap() error {
	return e.Err
}

// NewParseError creates a new ParseError
func NewParseError(format, file string, message string, err error) *ParseError {
	return &ParseError{
		Format:  format,
		File:    file,
		Message: message,
		Err:     err,
	}
}

// IOError represents an error during I/O operations
type IOError struct {
	Operation string // "read", "write", "create", "delete", "open", "close"
	Path      string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("IO error during %s of %s: %s", e.Operation, e.Path, e.Message)
	}
	return fmt.Sprintf("IO error during %s: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *IOError) Unwrap() error {
	return e.Err
}

// NewIOError creates a new IOError
func NewIOError(operation, path string, err error) *IOError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &IOError{
		Operation: operation,
		Path:      path,
		Message:   message,
		Err:       err,
	}
}

// StoreError represents an error during table store operations
type StoreError struct {
	Operation string // "create", "ingest", "load", "save", "list"
	Dataset   string
	Message   string
	Err       error
}

// Error implements the error interface
func (e *StoreError) Error() string {
	if e.Dataset != "" {
		return fmt.Sprintf("store %s failed for dataset %s: %s", e.Operation, e.Dataset, e.Message)
	}
	return fmt.Sprintf("store %s failed: %s", e.Operation, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError
func NewStoreError(operation, dataset string, err error) *StoreError {
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &StoreError{
		Operation: operation,
		Dataset:   dataset,
		Message:   message,
		Err:       err,
	}
}

// Helper functions for error checking

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if an error is an already exists error
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidInput)
}

// IsOracleUnavailable checks if an error indicates a transient oracle failure
func IsOracleUnavailable(err error) bool {
	return errors.Is(err, ErrOracleUnavailable)
}

// IsOracleMalformed checks if an error indicates a rejected oracle proposal
func IsOracleMalformed(err error) bool {
	return errors.Is(err, ErrOracleMalformed)
}

// IsUnresolvedMapping checks if an error indicates a non-total mapping
func IsUnresolvedMapping(err error) bool {
	return errors.Is(err, ErrUnresolvedMapping)
}

// IsMergeConflict checks if an error is a column merge conflict
func IsMergeConflict(err error) bool {
	return errors.Is(err, ErrMergeConflict)
}

// IsExplosionError checks if an error is an explosion invariant violation
func IsExplosionError(err error) bool {
	return errors.Is(err, ErrExplosionConsistency)
}

// IsFlattenCollision checks if an error is a flatten collision
func IsFlattenCollision(err error) bool {
	return errors.Is(err, ErrFlattenCollision)
}

// IsTypeAmbiguous checks if an error is a type inference ambiguity
func IsTypeAmbiguous(err error) bool {
	return errors.Is(err, ErrTypeAmbiguous)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}

// IsCanceled checks if an error is a cancellation error
func IsCanceled(err error) bool {
	return errors.Is(err, ErrCanceled)
}

// Helper wrapping functions for common patterns

// WrapValidation wraps an error as a ValidationError
func WrapValidation(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ValidationError{Field: field, Message: err.Error()}
}

// WrapIO wraps an error as an IOError
func WrapIO(operation, path string, err error) error {
	if err == nil {
		return nil
	}
	return NewIOError(operation, path, err)
}

// WrapParse wraps an error as a ParseError
func WrapParse(format, file string, err error) error {
	if err == nil {
		return nil
	}
	return NewParseError(format, file, err.Error(), err)
}

// WrapOracle wraps an error as an OracleError
func WrapOracle(oracle string, statusCode int, err error) error {
	if err == nil {
		return nil
	}
	return &OracleError{
		Oracle:     oracle,
		StatusCode: statusCode,
		Message:    err.Error(),
		Err:        err,
	}
}

// WrapStore wraps an error as a StoreError
func WrapStore(operation, dataset string, err error) error {
	if err == nil {
		return nil
	}
	return NewStoreError(operation, dataset, err)
}
