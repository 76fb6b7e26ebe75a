package dto

import (
	"github.com/soundprediction/ontoweave/pkg/issues"
)

// Error codes returned in ErrorResponse.Error.
const (
	ErrCodeInvalidRequest   = "invalid_request"
	ErrCodeValidationFailed = "validation_failed"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodePersistFailed    = "persist_failed"
)

// ErrorResponse represents an error response. Issues is set when a batch
// or operation was rejected.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Message string         `json:"message,omitempty"`
	Issues  []issues.Issue `json:"issues,omitempty"`
}
