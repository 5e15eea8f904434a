package config

import (
	"fmt"
	"strings"
	"time"
)

// ValidationError names an environment variable and what is wrong with it
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

// ValidationErrors collects every problem found in one pass
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for _, err := range e {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}
	return b.String()
}

func (e *ValidationErrors) add(err *ValidationError) {
	if err != nil {
		*e = append(*e, *err)
	}
}

// Validator checks one config section
type Validator func() ValidationErrors

// Validate runs validators and returns all their errors together, or nil
func Validate(validators ...Validator) error {
	var all ValidationErrors
	for _, v := range validators {
		all = append(all, v()...)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

func invalid(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func RequireNonEmpty(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	return nil
}

func RequirePositive(field string, value int) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %d", value)
	}
	return nil
}

func RequirePositiveDuration(field string, value time.Duration) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %v", value)
	}
	return nil
}

func RequireNonNegativeDuration(field string, value time.Duration) *ValidationError {
	if value < 0 {
		return invalid(field, "must be non-negative, got %v", value)
	}
	return nil
}

// RequireOneOf accepts value only if it is in allowed
func RequireOneOf(field, value string, allowed ...string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid(field, "must be one of [%s], got %q", strings.Join(allowed, ", "), value)
}
