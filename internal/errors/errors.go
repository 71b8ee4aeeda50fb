package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents stable error codes for pipeline failure modes
type ErrorCode string

const (
	// CacheCorrupt indicates the change-tracker snapshot could not be decoded
	CacheCorrupt ErrorCode = "CACHE_CORRUPT"
	// CacheWriteFailed indicates a state document could not be written
	CacheWriteFailed ErrorCode = "CACHE_WRITE_FAILED"
	// FeedbackCorrupt indicates the feedback document could not be decoded
	FeedbackCorrupt ErrorCode = "FEEDBACK_CORRUPT"
	// FixUnavailable indicates no fix template exists for a finding
	FixUnavailable ErrorCode = "FIX_UNAVAILABLE"
	// FixLowConfidence indicates a fix was refused at apply time
	FixLowConfidence ErrorCode = "FIX_LOW_CONFIDENCE"
	// FixApplyFailed indicates the target file could not be read or written
	FixApplyFailed ErrorCode = "FIX_APPLY_FAILED"
	// ProducerFailed indicates a producer returned an error during a run
	ProducerFailed ErrorCode = "PRODUCER_FAILED"
	// ConfigInvalid indicates the configuration failed validation
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditFile suggests editing a file by hand
	EditFile FixActionType = "edit-file"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Path        string        `json:"path,omitempty"`
	Safe        bool          `json:"safe,omitempty"`
	Description string        `json:"description,omitempty"`
}

// PipelineError is an error with a stable code and suggested remedies
type PipelineError struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error       // Underlying error (not exported to JSON)
}

// New creates a PipelineError with the default suggestions for code
func New(code ErrorCode, message string, cause error) *PipelineError {
	return &PipelineError{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *PipelineError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *PipelineError) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *PipelineError) WithDetails(details interface{}) *PipelineError {
	e.Details = details
	return e
}

// CodeOf returns the code of the first PipelineError in err's chain, or
// InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return InternalError
}

// Is reports whether err carries code.
func Is(err error, code ErrorCode) bool {
	var pe *PipelineError
	return errors.As(err, &pe) && pe.Code == code
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	CacheCorrupt: {
		{
			Type:        RunCommand,
			Command:     "rm .fip/cache/tracker.json",
			Safe:        true,
			Description: "Discard the change-tracker snapshot; the next scan rebuilds it",
		},
	},
	CacheWriteFailed: {
		{
			Type:        RunCommand,
			Command:     "ls -ld .fip/cache",
			Safe:        true,
			Description: "Check that the state directory is writable",
		},
	},
	FeedbackCorrupt: {
		{
			Type:        RunCommand,
			Command:     "rm .fip/feedback.json",
			Safe:        false,
			Description: "Discard learned feedback and start from defaults",
		},
	},
	FixLowConfidence: {
		{
			Type:        RunCommand,
			Command:     "fip fix",
			Safe:        true,
			Description: "Preview the suggestion and apply it by hand",
		},
	},
	ProducerFailed: {
		{
			Type:        RunCommand,
			Command:     "fip scan -v",
			Safe:        true,
			Description: "Re-run with verbose logging to see the producer error",
		},
	},
	ConfigInvalid: {
		{
			Type:        EditFile,
			Path:        ".fip/config.json",
			Description: "Correct the reported configuration field",
		},
	},
}

// GetSuggestedFixes returns suggested fixes for an error code
func GetSuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := ErrorActions[code]; ok {
		return fixes
	}
	return nil
}
