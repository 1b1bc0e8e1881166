package models

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind is the closed set of pipeline error classes. Every failure a
// component surfaces carries exactly one kind so retry policy and reporting
// stay mechanical.
type ErrorKind string

const (
	ErrKindInputInvalid  ErrorKind = "input_invalid"
	ErrKindUnknownSpider ErrorKind = "unknown_spider"
	ErrKindNetwork       ErrorKind = "network_failure"
	ErrKindHTTPStatus    ErrorKind = "http_status"
	ErrKindParse         ErrorKind = "parse_failure"
	ErrKindRateLimited   ErrorKind = "rate_limited"
	ErrKindTimeout       ErrorKind = "timeout"
	ErrKindQueueEnqueue  ErrorKind = "queue_enqueue_failure"
	ErrKindValidation    ErrorKind = "validation_failure"
	ErrKindUnavailable   ErrorKind = "unavailable"
)

// PipelineError wraps a cause with its kind and the operation that failed
type PipelineError struct {
	Kind   ErrorKind
	Op     string
	Status int // HTTP status when Kind == ErrKindHTTPStatus
	Err    error
}

func (e *PipelineError) Error() string {
	switch {
	case e.Kind == ErrKindHTTPStatus:
		return fmt.Sprintf("%s: %s: status %d", e.Kind, e.Op, e.Status)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
}

func (e *PipelineError) Unwrap() error { return e.Err }

// NewInputError flags malformed caller input; never retried
func NewInputError(op string, err error) *PipelineError {
	return &PipelineError{Kind: ErrKindInputInvalid, Op: op, Err: err}
}

// NewUnknownSpiderError flags an id or spiderType missing from the registry
func NewUnknownSpiderError(op string) *PipelineError {
	return &PipelineError{Kind: ErrKindUnknownSpider, Op: op}
}

// NewNetworkError wraps a transport-level failure
func NewNetworkError(op string, err error) *PipelineError {
	return &PipelineError{Kind: ErrKindNetwork, Op: op, Err: err}
}

// NewHTTPStatusError records a remote >= 400 response
func NewHTTPStatusError(op string, status int) *PipelineError {
	return &PipelineError{Kind: ErrKindHTTPStatus, Op: op, Status: status}
}

// NewParseError flags a response the adapter could not interpret; usually a
// platform layout change, so it is surfaced rather than retried
func NewParseError(op string, err error) *PipelineError {
	return &PipelineError{Kind: ErrKindParse, Op: op, Err: err}
}

// NewRateLimitedError flags local token-bucket starvation
func NewRateLimitedError(op string) *PipelineError {
	return &PipelineError{Kind: ErrKindRateLimited, Op: op}
}

// NewTimeoutError flags a per-message deadline expiry
func NewTimeoutError(op string, err error) *PipelineError {
	return &PipelineError{Kind: ErrKindTimeout, Op: op, Err: err}
}

// NewQueueEnqueueError flags a downstream queue rejection
func NewQueueEnqueueError(op string, err error) *PipelineError {
	return &PipelineError{Kind: ErrKindQueueEnqueue, Op: op, Err: err}
}

// NewValidationError flags a gazette record that violates its invariants
func NewValidationError(op string, err error) *PipelineError {
	return &PipelineError{Kind: ErrKindValidation, Op: op, Err: err}
}

// NewUnavailableError flags a missing external capability (e.g. no rendering
// browser); the harness marks these skipped rather than failed
func NewUnavailableError(op string) *PipelineError {
	return &PipelineError{Kind: ErrKindUnavailable, Op: op}
}

// KindOf extracts the error kind, classifying untyped errors by inspection
func KindOf(err error) ErrorKind {
	var perr *PipelineError
	if errors.As(err, &perr) {
		return perr.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrKindTimeout
		}
		return ErrKindNetwork
	}
	return ""
}

// IsRetryable reports whether the executor should requeue after this error.
// Network failures, timeouts and 5xx/429 statuses retry; parse failures and
// input errors surface immediately.
func IsRetryable(err error) bool {
	var perr *PipelineError
	if errors.As(err, &perr) {
		switch perr.Kind {
		case ErrKindNetwork, ErrKindTimeout:
			return true
		case ErrKindHTTPStatus:
			return perr.Status >= 500 || perr.Status == 429
		default:
			return false
		}
	}
	switch KindOf(err) {
	case ErrKindNetwork, ErrKindTimeout:
		return true
	}
	return false
}

// HTTPStatusOf returns the status code carried by an HttpStatus error, or 0
func HTTPStatusOf(err error) int {
	var perr *PipelineError
	if errors.As(err, &perr) && perr.Kind == ErrKindHTTPStatus {
		return perr.Status
	}
	return 0
}
