package v1

import "fmt"

// ValidationError marks malformed input. It is never retried.
type ValidationError struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("field '%s': %s", e.Field, e.Message)
	}
	return e.Message
}

// Details surfaces the failing field for API error responses.
func (e *ValidationError) Details() map[string]interface{} {
	d := make(map[string]interface{})
	if e.Field != "" {
		d["field"] = e.Field
	}
	return d
}

// NewValidationError creates a ValidationError for field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}
