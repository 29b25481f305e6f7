package batch

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes batch decoding failures.
type ErrorCode string

const (
	// CodeMalformedJSON indicates the document is not valid JSON.
	CodeMalformedJSON ErrorCode = "MALFORMED_JSON"

	// CodeSchemaViolation indicates the document does not match the batch
	// schema.
	CodeSchemaViolation ErrorCode = "SCHEMA_VIOLATION"

	// CodeUnknownStage indicates a stage name this build does not know.
	CodeUnknownStage ErrorCode = "UNKNOWN_STAGE"

	// CodeUnknownEventType indicates an event type this build does not know.
	CodeUnknownEventType ErrorCode = "UNKNOWN_EVENT_TYPE"

	// CodeMissingPayload indicates an event without the payload its type
	// requires.
	CodeMissingPayload ErrorCode = "MISSING_PAYLOAD"

	// CodeInvalidField indicates a field value outside its allowed set.
	CodeInvalidField ErrorCode = "INVALID_FIELD"
)

// DecodeError is a batch that could not be decoded.
type DecodeError struct {
	Code    ErrorCode
	Message string

	// Path is the JSON pointer of the offending value, when known.
	Path string
	Err  error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Code, e.Message, e.Path)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsDecodeError reports whether err is a DecodeError of any kind.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsSchemaError reports whether err is a schema violation.
func IsSchemaError(err error) bool {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code == CodeSchemaViolation
	}
	return false
}

// Code returns the code of a DecodeError, or "" for any other error.
func Code(err error) ErrorCode {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
