package errors

import (
	"errors"
	"fmt"
)

// AppError represents an application error with additional context
type AppError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Stage    string `json:"stage,omitempty"`
	Internal error  `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap returns the internal error for errors.Is and errors.As
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Common error codes
const (
	ErrCodeConfig               = "CONFIG_ERROR"
	ErrCodeFetch                = "FETCH_ERROR"
	ErrCodeUnknownFieldOption   = "UNKNOWN_FIELD_OPTION"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodePublish              = "PUBLISH_ERROR"
)

// Pipeline stages, recorded on per-alert failures so the batch report can
// say where an alert died without a verbose re-run.
const (
	StageScrape    = "scrape"
	StageClassify  = "classify"
	StageMapFields = "map_fields"
	StageRender    = "render"
	StageDedup     = "dedup"
	StagePublish   = "publish"
)

// New creates a new AppError
func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap wraps an error with an AppError
func Wrap(err error, code, message string) *AppError {
	return &AppError{Code: code, Message: message, Internal: err}
}

// WithStage tags an AppError with the pipeline stage it occurred in
func (e *AppError) WithStage(stage string) *AppError {
	e.Stage = stage
	return e
}

// Config creates a configuration error. These abort before any alert is processed.
func Config(message string) *AppError {
	return New(ErrCodeConfig, message)
}

// Configf creates a formatted configuration error
func Configf(format string, v ...interface{}) *AppError {
	return New(ErrCodeConfig, fmt.Sprintf(format, v...))
}

// Fetch creates an external fetch error
func Fetch(target string, err error) *AppError {
	return Wrap(err, ErrCodeFetch, fmt.Sprintf("failed to fetch from %s", target))
}

// UnknownFieldOption indicates a dropdown value that has no matching option
func UnknownFieldOption(field, value string) *AppError {
	return New(ErrCodeUnknownFieldOption,
		fmt.Sprintf("no option %q on field %q", value, field))
}

// MissingRequiredField indicates a required field that could not be resolved
func MissingRequiredField(field string) *AppError {
	return New(ErrCodeMissingRequiredField,
		fmt.Sprintf("required field %q did not resolve", field))
}

// Publish creates a ticket create/update error
func Publish(message string, err error) *AppError {
	return Wrap(err, ErrCodePublish, message)
}

// IsCode reports whether err carries the given application error code
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// StageOf returns the pipeline stage recorded on err, or empty
func StageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Stage
	}
	return ""
}
