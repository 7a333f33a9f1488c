package service

import (
	"errors"
	"net/http"
)

// ValidationError is one field-level issue reported by the server.
type ValidationError struct {
	Location string `json:"location"`
	Path     string `json:"path"`
	Type     string `json:"type"`
	Msg      string `json:"msg"`
}

// APIError is the single normalized failure shape of the gateway.
// Transport failures carry no StatusCode.
type APIError struct {
	Message    string            `json:"message"`
	StatusCode int               `json:"statusCode,omitempty"`
	Errors     []ValidationError `json:"errors,omitempty"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

// HasStatus reports whether a response was received.
func (e *APIError) HasStatus() bool {
	return e != nil && e.StatusCode != 0
}

// NotFound reports a 404 rejection.
func (e *APIError) NotFound() bool {
	return e != nil && e.StatusCode == http.StatusNotFound
}

// Unauthorized reports a 401 or 403 rejection.
func (e *APIError) Unauthorized() bool {
	return e != nil && (e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden)
}

// FirstValidationMessage returns the first field-level message, if any.
func (e *APIError) FirstValidationMessage() string {
	if e == nil || len(e.Errors) == 0 {
		return ""
	}
	return e.Errors[0].Msg
}

// Clone returns a deep copy.
func (e *APIError) Clone() *APIError {
	if e == nil {
		return nil
	}
	c := *e
	if e.Errors != nil {
		c.Errors = append([]ValidationError(nil), e.Errors...)
	}
	return &c
}

// AsAPIError normalizes any error into an *APIError. A nil error stays nil.
func AsAPIError(err error) *APIError {
	if err == nil {
		return nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	msg := err.Error()
	if msg == "" {
		msg = "an error occurred"
	}
	return &APIError{Message: msg}
}
