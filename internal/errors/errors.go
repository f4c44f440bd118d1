// Package errors provides centralized error handling for the engine.
package errors

import (
	stderrors "errors"
	"fmt"
	"maps"
	"time"
)

// ErrorCategory groups errors for logging and metrics without exposing raw strings.
type ErrorCategory string

const (
	CategoryInput      ErrorCategory = "input"
	CategoryState       ErrorCategory = "state"
	CategoryCapacity    ErrorCategory = "capacity"
	CategoryProcessing  ErrorCategory = "processing"
	CategoryResource    ErrorCategory = "resource"
	CategoryAudio       ErrorCategory = "audio"
	CategoryGeneric     ErrorCategory = "generic"
)

// ComponentUnknown is used when no component was set explicitly.
const ComponentUnknown = "unknown"

// EnhancedError wraps an error with a component, category, and free-form context.
// It is the engine's single error shape: every stable error code in spec §7/§8
// is built as a sentinel *EnhancedError at package init time (see codes.go),
// and callers compare with errors.Is against those sentinels.
type EnhancedError struct {
	Err       error
	Component string
	Category  ErrorCategory
	Context   map[string]any
	Timestamp time.Time
}

func (ee *EnhancedError) Error() string {
	if ee.Err == nil {
		return "unknown error"
	}
	return ee.Err.Error()
}

func (ee *EnhancedError) Unwrap() error {
	return ee.Err
}

func (ee *EnhancedError) Is(target error) bool {
	if other, ok := target.(*EnhancedError); ok {
		return ee.Category == other.Category && stderrors.Is(ee.Err, other.Err)
	}
	return stderrors.Is(ee.Err, target)
}

// GetContext returns a copy of the error's context map.
func (ee *EnhancedError) GetContext() map[string]any {
	if ee.Context == nil {
		return nil
	}
	c := make(map[string]any, len(ee.Context))
	maps.Copy(c, ee.Context)
	return c
}

// ErrorBuilder provides a fluent interface for creating enhanced errors.
type ErrorBuilder struct {
	err       error
	component string
	category  ErrorCategory
	context   map[string]any
}

// New starts building an EnhancedError around err.
func New(err error) *ErrorBuilder {
	return &ErrorBuilder{err: err}
}

// Newf builds an EnhancedError around a formatted message.
func Newf(format string, args ...any) *ErrorBuilder {
	return New(fmt.Errorf(format, args...))
}

func (eb *ErrorBuilder) Component(component string) *ErrorBuilder {
	eb.component = component
	return eb
}

func (eb *ErrorBuilder) Category(category ErrorCategory) *ErrorBuilder {
	eb.category = category
	return eb
}

func (eb *ErrorBuilder) Context(key string, value any) *ErrorBuilder {
	if eb.context == nil {
		eb.context = make(map[string]any)
	}
	eb.context[key] = value
	return eb
}

// Build finalizes the EnhancedError.
func (eb *ErrorBuilder) Build() *EnhancedError {
	component := eb.component
	if component == "" {
		component = ComponentUnknown
	}
	category := eb.category
	if category == "" {
		category = CategoryGeneric
	}
	return &EnhancedError{
		Err:       eb.err,
		Component: component,
		Category:  category,
		Context:   eb.context,
		Timestamp: time.Now(),
	}
}

// Standard library passthroughs so this package is a drop-in for "errors".

func NewStd(text string) error { return stderrors.New(text) }

func Is(err, target error) bool { return stderrors.Is(err, target) }

func As(err error, target any) bool { return stderrors.As(err, target) }

func Unwrap(err error) error { return stderrors.Unwrap(err) }

func Join(errs ...error) error { return stderrors.Join(errs...) }

// IsCategory reports whether err is an EnhancedError tagged with category.
func IsCategory(err error, category ErrorCategory) bool {
	var ee *EnhancedError
	return As(err, &ee) && ee.Category == category
}
