package services

import "errors"

var (
	// ErrCommandNotFound: unknown command id.
	ErrCommandNotFound = errors.New("command not found")
	// ErrAgentNotFound: unknown agent id.
	ErrAgentNotFound = errors.New("agent not found")
	// ErrInvalidState: the operation is illegal for the command's current status.
	ErrInvalidState = errors.New("operation not allowed in current command state")
	// ErrRetryLimitExceeded: retry_count already reached max_retries.
	ErrRetryLimitExceeded = errors.New("retry limit exceeded")
)
