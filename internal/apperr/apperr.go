// Package apperr defines the error taxonomy shared across the deployment,
// asset-store, and agent subsystems.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for callers that need to branch on it (HTTP
// status mapping, retry policy, telemetry tagging) without string matching.
type Kind string

const (
	KindNotFound           Kind = "not_found"
	KindPermissionDenied   Kind = "permission_denied"
	KindValidation         Kind = "validation"
	KindConflict           Kind = "conflict"
	KindUpstreamUnavailable Kind = "upstream_unavailable"
	KindInternal           Kind = "internal"
)

// Error wraps an underlying cause with a Kind and an optional Reason,
// using %w rather than a parallel string-code system.
type Error struct {
	Kind   Kind
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Reason)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Err.Error())
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func new_(kind Kind, reason string, err error) *Error {
	return &Error{Kind: kind, Reason: reason, Err: err}
}

func NotFound(reason string) *Error             { return new_(KindNotFound, reason, nil) }
func PermissionDenied(reason string) *Error      { return new_(KindPermissionDenied, reason, nil) }
func Validation(reason string) *Error            { return new_(KindValidation, reason, nil) }
func Conflict(reason string) *Error              { return new_(KindConflict, reason, nil) }
func UpstreamUnavailable(reason string, err error) *Error {
	return new_(KindUpstreamUnavailable, reason, err)
}
func Internal(err error) *Error { return new_(KindInternal, "", err) }

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == kind
	}
	return false
}

// ValidationSub distinguishes the validation sub-domains (yaml, sql,
// schema, chart config, unknown dataset reference) without adding new
// Kinds.
type ValidationSub string

const (
	SubYaml               ValidationSub = "yaml"
	SubSQL                ValidationSub = "sql"
	SubSchema             ValidationSub = "schema"
	SubChartConfig        ValidationSub = "chart_config"
	SubUnknownDatasetRef  ValidationSub = "unknown_dataset_reference"
)

// ValidationError carries the sub-domain alongside the reason.
type ValidationError struct {
	Sub    ValidationSub
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation(%s): %s", e.Sub, e.Reason) }

func NewValidation(sub ValidationSub, reason string) *Error {
	return new_(KindValidation, reason, &ValidationError{Sub: sub, Reason: reason})
}

// SQLValidationFailed is the SQL validation failure
// ("SqlValidationFailed{reason}"): a Validation-kind error with sub-domain
// SubSQL.
func SQLValidationFailed(reason string) *Error {
	return NewValidation(SubSQL, reason)
}
