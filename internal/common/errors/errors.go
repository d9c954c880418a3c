// Package errors provides standardized error handling for the lead pipeline.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeCollaboratorUnavailable ErrorCode = "COLLABORATOR_UNAVAILABLE"

	ErrCodeFeedFetchFailed  ErrorCode = "FEED_FETCH_FAILED"
	ErrCodeInvalidTimeRange ErrorCode = "INVALID_TIME_RANGE"

	ErrCodeScoringFailed   ErrorCode = "SCORING_FAILED"
	ErrCodeEmbeddingFailed ErrorCode = "EMBEDDING_FAILED"

	ErrCodeSimilarityQueryFailed ErrorCode = "SIMILARITY_QUERY_FAILED"

	ErrCodeLeadNotFound       ErrorCode = "LEAD_NOT_FOUND"
	ErrCodeLeadAlreadyDecided ErrorCode = "LEAD_ALREADY_DECIDED"
	ErrCodeLeadSaveFailed     ErrorCode = "LEAD_SAVE_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewCollaboratorUnavailableError creates a retryable error for an unreachable
// external dependency (scorer API, news feed, Slack, database).
func NewCollaboratorUnavailableError(collaborator string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeCollaboratorUnavailable,
		Message:   fmt.Sprintf("Collaborator '%s' unavailable", collaborator),
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewFeedFetchFailedError creates a retryable feed fetch error.
func NewFeedFetchFailedError(company string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeFeedFetchFailed,
		Message:   "News feed fetch failed",
		Details:   fmt.Sprintf("company: %s, error: %s", company, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidTimeRangeError creates a non-retryable time range validation error.
func NewInvalidTimeRangeError(timeRange string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidTimeRange,
		Message:   "Unsupported time range",
		Details:   fmt.Sprintf("timeRange: %s", timeRange),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringFailedError creates a retryable scoring error.
func NewScoringFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringFailed,
		Message:   "Lead scoring API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewScoringResponseInvalidError creates a non-retryable error for a scorer
// response that does not match the expected schema.
func NewScoringResponseInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeScoringFailed,
		Message:   "Lead scoring response validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewEmbeddingFailedError creates a retryable embedding error.
func NewEmbeddingFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeEmbeddingFailed,
		Message:   "Embedding API error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSimilarityQueryFailedError creates a retryable vector search error.
func NewSimilarityQueryFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSimilarityQueryFailed,
		Message:   "Similarity search query failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewLeadNotFoundError creates a non-retryable missing lead error.
func NewLeadNotFoundError(leadID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadNotFound,
		Message:   "Lead not found",
		Details:   fmt.Sprintf("leadId: %s", leadID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLeadAlreadyDecidedError creates a non-retryable error for a second
// decision on the same lead.
func NewLeadAlreadyDecidedError(leadID, status string) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadAlreadyDecided,
		Message:   "Lead already has a terminal decision",
		Details:   fmt.Sprintf("leadId: %s, status: %s", leadID, status),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewLeadSaveFailedError creates a retryable persistence error.
func NewLeadSaveFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeLeadSaveFailed,
		Message:   "Lead persistence failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewNotificationSendFailedError creates a retryable notification send error.
func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Classification Helpers
// ==========================

// GetRetryCount returns the recommended retry count for an error code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeCollaboratorUnavailable,
		ErrCodeFeedFetchFailed,
		ErrCodeScoringFailed,
		ErrCodeEmbeddingFailed,
		ErrCodeSimilarityQueryFailed,
		ErrCodeLeadSaveFailed,
		ErrCodeNotificationSendFailed:
		return 3

	default:
		return 0
	}
}

// IsRetryable reports whether err carries a retryable StandardError.
// Unknown error types default to retryable.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Retryable
	}
	return true
}

// CodeOf extracts the ErrorCode from err, or empty when err is not a StandardError.
func CodeOf(err error) ErrorCode {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr.Code
	}
	return ""
}
