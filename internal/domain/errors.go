package domain

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable discriminant clients switch on.
type ErrorCode string

const (
	CodeValidation         ErrorCode = "VALIDATION"
	CodeUnauthorized       ErrorCode = "UNAUTHORIZED"
	CodeEmailInUse         ErrorCode = "EMAIL_IN_USE"
	CodeInvalidCredentials ErrorCode = "INVALID_CREDENTIALS"
	CodeAccountNotFound    ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeInsufficientFunds  ErrorCode = "INSUFFICIENT_FUNDS"
	CodeTransferNotFound   ErrorCode = "TRANSFER_NOT_FOUND"
	CodeOTPExpired         ErrorCode = "OTP_EXPIRED"
	CodeOTPLocked          ErrorCode = "OTP_LOCKED"
	CodeOTPInvalid         ErrorCode = "OTP_INVALID"
	CodeOTPRequired        ErrorCode = "OTP_REQUIRED"
	CodeUnknownEndpoint    ErrorCode = "UNKNOWN_ENDPOINT"
	CodeInternal           ErrorCode = "INTERNAL_ERROR"
)

// Error is a classified failure. Two Errors match under errors.Is when their
// codes are equal, so the sentinels below work as targets.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// E builds an Error with the given code and message.
func E(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a cause to a new Error.
func Wrap(err error, code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

var (
	ErrValidation         = &Error{Code: CodeValidation, Message: "invalid request"}
	ErrUnauthorized       = &Error{Code: CodeUnauthorized, Message: "authentication required"}
	ErrEmailInUse         = &Error{Code: CodeEmailInUse, Message: "email already registered"}
	ErrInvalidCredentials = &Error{Code: CodeInvalidCredentials, Message: "invalid email or password"}
	ErrAccountNotFound    = &Error{Code: CodeAccountNotFound, Message: "account not found"}
	ErrInsufficientFunds  = &Error{Code: CodeInsufficientFunds, Message: "insufficient funds"}
	ErrTransferNotFound   = &Error{Code: CodeTransferNotFound, Message: "transfer not found"}
	ErrOTPExpired         = &Error{Code: CodeOTPExpired, Message: "one-time code has expired"}
	ErrOTPLocked          = &Error{Code: CodeOTPLocked, Message: "too many incorrect codes"}
	ErrOTPInvalid         = &Error{Code: CodeOTPInvalid, Message: "one-time code is incorrect"}
	ErrOTPRequired        = &Error{Code: CodeOTPRequired, Message: "transfer has not been verified"}
	ErrUnknownEndpoint    = &Error{Code: CodeUnknownEndpoint, Message: "unknown endpoint"}
)

// CodeOf classifies err. Anything that is not an *Error is INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// MessageOf returns the client-safe message for err. Causes of internal
// errors are never exposed.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "Something went wrong. Please contact an officer."
}
