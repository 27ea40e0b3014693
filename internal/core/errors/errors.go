package errors

const (
	HttpInternalError        = "internal_error"
	HttpInvalidJsonError     = "invalid_json"
	HttpValidationError      = "validation_failed"
	HttpNotFoundError        = "not_found"
	HttpRequestTooLargeError = "request_too_large"
	HttpUnavailableError     = "unavailable"
)

// ErrorResponse is the error response body for every API endpoint.
type ErrorResponse struct {
	ErrorType string      `json:"error_type"`
	Message   string      `json:"message"`
	Details   interface{} `json:"details,omitempty"`
}
