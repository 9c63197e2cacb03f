package booking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode identifies the terminal outcome of a rejected booking operation.
type ErrorCode string

const (
	ErrCodeValidation        ErrorCode = "validation_failed"
	ErrCodeInvalidOccurrence ErrorCode = "invalid_occurrence"
	ErrCodeSoldOut           ErrorCode = "sold_out"
	ErrCodeStorage           ErrorCode = "storage_error"
	ErrCodeSecurity          ErrorCode = "security_check_failed"
)

// Error is a user-visible booking rejection. Fields is populated only for
// validation failures and lists every offending field, not just the first.
type Error struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Fields  []string  `json:"fields,omitempty"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewValidationError aggregates field-level violations into a single
// rejection listing all of them.
func NewValidationError(fieldMessages []string) *Error {
	return &Error{
		Code:    ErrCodeValidation,
		Message: "invalid booking request: " + strings.Join(fieldMessages, "; "),
		Fields:  fieldMessages,
	}
}

// NewInvalidOccurrenceError signals that the chosen occurrence does not
// exist on the course.
func NewInvalidOccurrenceError(choice string) *Error {
	return &Error{
		Code:    ErrCodeInvalidOccurrence,
		Message: fmt.Sprintf("the selected date %q is not valid for this course", choice),
	}
}

// NewSoldOutError signals that the chosen occurrence has no seats left.
func NewSoldOutError() *Error {
	return &Error{
		Code:    ErrCodeSoldOut,
		Message: "sorry, the course is fully booked for this date",
	}
}

// NewStorageError wraps a persistence failure. The wrapped cause is for
// logs; the message shown to the caller stays generic.
func NewStorageError(err error) *Error {
	return &Error{
		Code:    ErrCodeStorage,
		Message: "the booking could not be saved, please try again later",
		cause:   err,
	}
}

// NewSecurityError signals a failed anti-forgery check on the submission.
func NewSecurityError() *Error {
	return &Error{
		Code:    ErrCodeSecurity,
		Message: "security check failed, please reload the form and retry",
	}
}

// AsError returns err as a booking error, or nil when it is not one.
func AsError(err error) *Error {
	var be *Error
	if errors.As(err, &be) {
		return be
	}
	return nil
}

// CodeOf extracts the booking error code from err, or an empty code when
// err is not a booking error.
func CodeOf(err error) ErrorCode {
	var be *Error
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}
