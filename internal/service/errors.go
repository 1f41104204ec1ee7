package service

import (
	"errors"
	"fmt"
)

// Error is a domain failure with a stable machine code. Handlers map codes
// to HTTP statuses; external subscribers never see these.
type Error struct {
	Code    string
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

// Stable error codes.
const (
	CodeInvalidTime          = "INVALID_TIME"
	CodeInvalidInput         = "INVALID_INPUT"
	CodeTimeConflict         = "TIME_CONFLICT"
	CodeDuplicateAppointment = "DUPLICATE_APPOINTMENT"
	CodeNotFound             = "APPOINTMENT_NOT_FOUND"
	CodeInvalidToken         = "INVALID_TOKEN"
	CodeInvalidStatus        = "INVALID_STATUS"
	CodeUnavailable          = "AVAILABILITY_UNVERIFIABLE"
)

func errInvalidTime(msg string) error {
	return &Error{Code: CodeInvalidTime, Message: msg}
}

func errInvalidInput(msg string) error {
	return &Error{Code: CodeInvalidInput, Message: msg}
}

func errTimeConflict() error {
	return &Error{Code: CodeTimeConflict, Message: "the requested time window overlaps an existing appointment"}
}

func errDuplicate() error {
	return &Error{Code: CodeDuplicateAppointment, Message: "an identical appointment request already exists"}
}

func errNotFound(id string) error {
	return &Error{Code: CodeNotFound, Message: "appointment not found: " + id}
}

func errInvalidToken() error {
	return &Error{Code: CodeInvalidToken, Message: "invalid confirmation token"}
}

func errInvalidStatus(op string, status string) error {
	return &Error{Code: CodeInvalidStatus, Message: fmt.Sprintf("cannot %s an appointment in status %s", op, status)}
}

func errUnavailable(err error) error {
	return &Error{Code: CodeUnavailable, Message: "unable to verify provider availability", err: err}
}

// CodeOf extracts the machine code, or "" for non-domain errors.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether the error is a missing-appointment failure,
// including the token lookup variant.
func IsNotFound(err error) bool {
	c := CodeOf(err)
	return c == CodeNotFound || c == CodeInvalidToken
}

// IsConflict reports whether the error is a time conflict or duplicate.
func IsConflict(err error) bool {
	c := CodeOf(err)
	return c == CodeTimeConflict || c == CodeDuplicateAppointment
}

// IsValidation reports whether the error is a caller input problem.
func IsValidation(err error) bool {
	c := CodeOf(err)
	return c == CodeInvalidTime || c == CodeInvalidInput
}

// IsInvalidState reports whether a lifecycle guard rejected the transition.
func IsInvalidState(err error) bool {
	return CodeOf(err) == CodeInvalidStatus
}

// IsUnavailable reports whether a dependency failure blocked the operation.
func IsUnavailable(err error) bool {
	return CodeOf(err) == CodeUnavailable
}
