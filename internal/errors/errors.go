package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// NotFound indicates a document, binding or entry does not exist
	NotFound ErrorCode = "NOT_FOUND"
	// ParseError indicates a document could not be parsed cleanly
	ParseError ErrorCode = "PARSE_ERROR"
	// IOFailure indicates a file could not be read or written
	IOFailure ErrorCode = "IO_FAILURE"
	// MalformedImport indicates an import target that cannot be followed
	MalformedImport ErrorCode = "MALFORMED_IMPORT"
	// ImportCycle indicates an import chain that returns to a visited file
	ImportCycle ErrorCode = "IMPORT_CYCLE"
	// ImportTooDeep indicates an import chain longer than the configured limit
	ImportTooDeep ErrorCode = "IMPORT_TOO_DEEP"
	// SourceUnavailable indicates a knowledge-base source could not be loaded
	SourceUnavailable ErrorCode = "SOURCE_UNAVAILABLE"
	// CacheCorrupt indicates a cached blob failed its checksum or decoding
	CacheCorrupt ErrorCode = "CACHE_CORRUPT"
	// ConfigInvalid indicates a configuration value is out of range
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixActionType represents the type of fix action
type FixActionType string

const (
	// RunCommand suggests running a command
	RunCommand FixActionType = "run-command"
	// EditConfig suggests changing a configuration value
	EditConfig FixActionType = "edit-config"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Type        FixActionType `json:"type"`
	Command     string        `json:"command,omitempty"`
	Description string        `json:"description,omitempty"`
}

// Error is an error with a stable code and optional suggestions
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates an Error carrying the predefined fixes for its code
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: GetSuggestedFixes(code),
	}
}

// Newf is New with a formatted message and no cause
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// CodeOf returns the code of the first *Error in err's chain, or
// InternalError when there is none.
func CodeOf(err error) ErrorCode {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code
	}
	return InternalError
}

// HasCode reports whether err carries code anywhere in its chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if coded, ok := err.(*Error); ok && coded.Code == code {
			return true
		}
		err = stderrors.Unwrap(err)
	}
	return false
}

// ErrorActions maps error codes to suggested fix actions
var ErrorActions = map[ErrorCode][]FixAction{
	SourceUnavailable: {
		{
			Type:        RunCommand,
			Command:     "nixlsp kb status",
			Description: "Check which knowledge-base sources are configured and loadable",
		},
	},
	CacheCorrupt: {
		{
			Type:        RunCommand,
			Command:     "nixlsp kb build --force",
			Description: "Rebuild the knowledge-base cache",
		},
	},
	ConfigInvalid: {
		{
			Type:        RunCommand,
			Command:     "nixlsp config show",
			Description: "Inspect the effective configuration",
		},
	},
	ImportTooDeep: {
		{
			Type:        EditConfig,
			Command:     "resolver.maxImportDepth",
			Description: "Raise the import depth limit",
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
