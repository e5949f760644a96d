package errors

import (
	"fmt"
)

// Category represents the type of error.
type Category string

const (
	CategoryStorage       Category = "storage"
	CategorySerialization Category = "serialization"
	CategoryDatabase      Category = "database"
	CategoryCookie        Category = "cookie"
	CategoryConfig        Category = "config"
	CategoryCLI           Category = "cli"
)

// PersistError is a structured error with a registry code, a suggestion and
// documentation.
type PersistError struct {
	// Code is a unique error identifier (e.g., "P001").
	Code string

	// Category is the error type (storage, serialization, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// DocURL is a link to documentation about this error.
	DocURL string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *PersistError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *PersistError) Unwrap() error {
	return e.Wrapped
}

// WithSuggestion adds a fix suggestion to the error.
func (e *PersistError) WithSuggestion(s string) *PersistError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *PersistError) WithDetail(d string) *PersistError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *PersistError) Wrap(err error) *PersistError {
	e.Wrapped = err
	return e
}

// LogArgs returns the error as slog key/value pairs.
func (e *PersistError) LogArgs() []any {
	args := []any{"code", e.Code, "category", string(e.Category)}
	if e.Detail != "" {
		args = append(args, "detail", e.Detail)
	}
	if e.Wrapped != nil {
		args = append(args, "error", e.Wrapped.Error())
	}
	return args
}

// New creates a PersistError from a registered error code.
func New(code string) *PersistError {
	template, ok := GetTemplate(code)
	if !ok {
		return &PersistError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &PersistError{
		Code:       code,
		Category:   template.Category,
		Message:    template.Message,
		Detail:     template.Detail,
		Suggestion: template.Suggestion,
		DocURL:     template.DocURL,
	}
}

// Newf creates a new PersistError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *PersistError {
	return &PersistError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a PersistError.
// If err is already a PersistError it is returned unchanged.
func FromError(err error, code string) *PersistError {
	if err == nil {
		return nil
	}
	if pe, ok := err.(*PersistError); ok {
		return pe
	}
	return New(code).Wrap(err)
}
