package apierr

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies a failure for retry and surfacing decisions.
type Kind string

const (
	KindInvalidInput        Kind = "invalid_input"
	KindNotFound            Kind = "not_found"
	KindTimeout             Kind = "timeout"
	KindTransientDependency Kind = "transient_dependency"
	KindPermanentDependency Kind = "permanent_dependency"
	KindDataIntegrity       Kind = "data_integrity"
)

type Error struct {
	Kind   Kind
	Status int
	Code   string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Code)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

func New(kind Kind, code string, err error) *Error {
	return &Error{Kind: kind, Status: httpStatus(kind), Code: code, Err: err}
}

func Invalid(code string, err error) *Error {
	return New(KindInvalidInput, code, err)
}

func NotFound(code string, err error) *Error {
	return New(KindNotFound, code, err)
}

func Timeout(code string, err error) *Error {
	return New(KindTimeout, code, err)
}

func Transient(code string, err error) *Error {
	return New(KindTransientDependency, code, err)
}

func Permanent(code string, err error) *Error {
	return New(KindPermanentDependency, code, err)
}

func Integrity(code string, err error) *Error {
	return New(KindDataIntegrity, code, err)
}

// KindOf extracts the kind from an error chain. Unclassified errors report
// as transient so adapters err on the side of retrying.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindTransientDependency
}

// Retryable reports whether an operation failing with err should be retried
// at the adapter level.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindTransientDependency:
		return true
	default:
		return false
	}
}

func httpStatus(kind Kind) int {
	switch kind {
	case KindInvalidInput:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindTimeout:
		return http.StatusGatewayTimeout
	case KindTransientDependency:
		return http.StatusServiceUnavailable
	case KindPermanentDependency:
		return http.StatusBadGateway
	case KindDataIntegrity:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// StatusOf resolves the HTTP status for an error chain.
func StatusOf(err error) int {
	var ae *Error
	if errors.As(err, &ae) && ae.Status != 0 {
		return ae.Status
	}
	return httpStatus(KindOf(err))
}
