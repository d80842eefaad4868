package service

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorCode classifies a failed operation.
type ErrorCode string

const (
	ErrorValidation          ErrorCode = "VALIDATION_FAILURE"
	ErrorGeneration          ErrorCode = "GENERATION_FAILURE"
	ErrorDelivery            ErrorCode = "DELIVERY_FAILURE"
	ErrorUpstreamUnavailable ErrorCode = "UPSTREAM_UNAVAILABLE"
)

// Error is returned by every service operation that fails.
type Error struct {
	Code   ErrorCode
	Reason string
	// Turn is the 1-based turn that failed, zero outside the turn loop.
	Turn int
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	prefix := fmt.Sprintf("service: %s (%s)", e.Code, e.Reason)
	if e.Turn > 0 {
		prefix = fmt.Sprintf("service: %s on turn %d (%s)", e.Code, e.Turn, e.Reason)
	}
	if e.Err == nil {
		return prefix
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, turn int, err error) *Error {
	return &Error{Code: code, Reason: reason, Turn: turn, Err: err}
}

// classify wraps err with code unless it stems from a timeout, a
// cancellation or a network failure, which are reported as
// ErrorUpstreamUnavailable.
func classify(code ErrorCode, reason string, turn int, err error) *Error {
	if isUnavailable(err) {
		code = ErrorUpstreamUnavailable
	}
	return newError(code, reason, turn, err)
}

func isUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// CodeOf returns the code carried by err, or "" when err is not an *Error.
func CodeOf(err error) ErrorCode {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Code
	}
	return ""
}
