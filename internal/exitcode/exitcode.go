// Package exitcode defines exit codes for the CLI.
package exitcode

import (
	"errors"

	"taskdesk/internal/service"
)

const (
	// Success indicates successful completion.
	Success = 0

	// UserError indicates a user error (bad args, not found, rejected input).
	UserError = 1

	// AuthError indicates the service refused the configured credentials.
	AuthError = 2

	// BackendError indicates a server, network, or malformed-response error.
	BackendError = 3
)

// FromError maps an error to an exit code. Gateway errors are classified
// by status: 401/403 are auth errors, other 4xx are user errors, anything
// else (5xx, no response) is a backend error. Errors raised before any
// request, such as a bad reference, are user errors.
func FromError(err error) int {
	if err == nil {
		return Success
	}
	var apiErr *service.APIError
	if !errors.As(err, &apiErr) {
		return UserError
	}
	switch {
	case apiErr.Unauthorized():
		return AuthError
	case apiErr.StatusCode >= 400 && apiErr.StatusCode < 500:
		return UserError
	default:
		return BackendError
	}
}
