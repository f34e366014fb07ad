// Package serrors holds coded errors shared by services and transports.
package serrors

import (
	"errors"
	"sort"
	"strings"
)

// BaseError is an error with a stable machine-readable code.
type BaseError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewError(code, message string) *BaseError {
	return &BaseError{Code: code, Message: message}
}

func (e *BaseError) Error() string {
	return e.Message
}

// Is matches any BaseError carrying the same code.
func (e *BaseError) Is(target error) bool {
	var other *BaseError
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Code returns the code of the first BaseError in err's chain.
func Code(err error) string {
	var base *BaseError
	if errors.As(err, &base) {
		return base.Code
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return v.Base.Code
	}
	return ""
}

// ValidationError reports field-level reasons under a coded base error.
type ValidationError struct {
	Base   *BaseError
	Fields map[string]string
}

func NewValidationError(base *BaseError, fields map[string]string) *ValidationError {
	if fields == nil {
		fields = map[string]string{}
	}
	return &ValidationError{Base: base, Fields: fields}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Base.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return e.Base.Message + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.Base
}
