package common

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ValidationError represents validation failures
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Validator collects field errors across a request
type Validator struct {
	errors []ValidationError
}

// NewValidator creates a new validator instance
func NewValidator() *Validator {
	return &Validator{
		errors: make([]ValidationError, 0),
	}
}

// Field validates a field and collects errors
func (v *Validator) Field(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	for _, rule := range rules {
		if err := rule(fieldName, value); err != nil {
			v.errors = append(v.errors, *err)
		}
	}
	return v
}

// Optional applies rules only when value is a non-nil pointer.
func (v *Validator) Optional(fieldName string, value interface{}, rules ...ValidationRule) *Validator {
	if isNilPtr(value) {
		return v
	}
	return v.Field(fieldName, value, rules...)
}

// Check records a failure when ok is false.
func (v *Validator) Check(ok bool, fieldName, message string) *Validator {
	if !ok {
		v.errors = append(v.errors, ValidationError{Field: fieldName, Message: message})
	}
	return v
}

// HasErrors returns true if there are validation errors
func (v *Validator) HasErrors() bool {
	return len(v.errors) > 0
}

// Errors returns all validation errors
func (v *Validator) Errors() []ValidationError {
	return v.errors
}

// ErrorMessage returns a combined error message as string
func (v *Validator) ErrorMessage() string {
	if !v.HasErrors() {
		return ""
	}

	var messages []string
	for _, err := range v.errors {
		messages = append(messages, err.Error())
	}
	return strings.Join(messages, "; ")
}

// Err returns an InvalidRequestShape error naming every failed field, or nil.
func (v *Validator) Err() error {
	if !v.HasErrors() {
		return nil
	}
	fields := make([]string, 0, len(v.errors))
	for _, e := range v.errors {
		fields = append(fields, e.Field)
	}
	return InvalidRequestShape(v.ErrorMessage(), fields...)
}

// ValidationRule represents a single validation rule
type ValidationRule func(fieldName string, value interface{}) *ValidationError

// Required rejects nil and blank strings.
func Required(fieldName string, value interface{}) *ValidationError {
	if value == nil || isNilPtr(value) {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	if s, ok := stringOf(value); ok && strings.TrimSpace(s) == "" {
		return &ValidationError{Field: fieldName, Value: value, Message: "is required"}
	}
	return nil
}

// Length bounds the rune count of a string field.
func Length(min, max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, ok := stringOf(value)
		if !ok {
			return nil
		}
		n := utf8.RuneCountInString(s)
		if n < min {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be at least %d characters", min)}
		}
		if max > 0 && n > max {
			return &ValidationError{Field: fieldName, Value: value, Message: fmt.Sprintf("must be at most %d characters", max)}
		}
		return nil
	}
}

// Between bounds an integer field, inclusive.
func Between(min, max int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		n, ok := intOf(value)
		if !ok {
			return nil
		}
		if n < min || n > max {
			return &ValidationError{Field: fieldName, Value: n, Message: fmt.Sprintf("must be between %d and %d", min, max)}
		}
		return nil
	}
}

// AtLeast sets a lower bound on an integer field.
func AtLeast(min int) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		n, ok := intOf(value)
		if !ok {
			return nil
		}
		if n < min {
			return &ValidationError{Field: fieldName, Value: n, Message: fmt.Sprintf("must be at least %d", min)}
		}
		return nil
	}
}

// Matches requires a string field to match re.
func Matches(re *regexp.Regexp, message string) ValidationRule {
	return func(fieldName string, value interface{}) *ValidationError {
		s, ok := stringOf(value)
		if !ok {
			return nil
		}
		if !re.MatchString(s) {
			return &ValidationError{Field: fieldName, Value: value, Message: message}
		}
		return nil
	}
}

var (
	reNPI   = regexp.MustCompile(`^\d{10}$`)
	reEmail = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// NPI requires exactly ten digits.
var NPI = Matches(reNPI, "must be exactly 10 digits")

// Email requires an address-shaped string.
var Email = Matches(reEmail, "must be a valid email address")

func stringOf(value interface{}) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case *string:
		if v == nil {
			return "", false
		}
		return *v, true
	}
	return "", false
}

func intOf(value interface{}) (int, bool) {
	switch v := value.(type) {
	case int:
		return v, true
	case *int:
		if v == nil {
			return 0, false
		}
		return *v, true
	case int64:
		return int(v), true
	case *int64:
		if v == nil {
			return 0, false
		}
		return int(*v), true
	}
	return 0, false
}

func isNilPtr(value interface{}) bool {
	switch v := value.(type) {
	case *string:
		return v == nil
	case *int:
		return v == nil
	case *int64:
		return v == nil
	case *bool:
		return v == nil
	}
	return false
}
