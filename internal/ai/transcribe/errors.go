package transcribe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrorCode identifies the failure class of a transcription call. The
// orchestrator maps these onto its own taxonomy exactly once; nothing
// downstream re-classifies.
type ErrorCode string

const (
	CodeTimeout            ErrorCode = "timeout"
	CodeNetwork            ErrorCode = "network"
	CodeConnectionReset    ErrorCode = "connection_reset"
	CodeGatewayTimeout     ErrorCode = "gateway_timeout"
	CodeClientClosed       ErrorCode = "client_closed"
	CodeInvalidAudio       ErrorCode = "invalid_audio"
	CodeServiceUnavailable ErrorCode = "service_unavailable"
	CodeUnknown            ErrorCode = "unknown"
)

// Error is a classified transcription failure.
type Error struct {
	Code   ErrorCode
	Status int // HTTP status when the provider answered, 0 otherwise
	Err    error
}

func (e *Error) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("transcription %s (http %d): %v", e.Code, e.Status, e.Err)
	}
	return fmt.Sprintf("transcription %s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Retryable reports whether the orchestrator should attempt the call again.
// Malformed input never becomes valid by retrying.
func (e *Error) Retryable() bool {
	return e.Code != CodeInvalidAudio
}

// AsError extracts a classified *Error, wrapping unclassified errors as
// CodeUnknown so callers always see a code.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var te *Error
	if errors.As(err, &te) {
		return te
	}
	return &Error{Code: CodeUnknown, Err: err}
}

// classifyTransport maps an http.Client error onto an ErrorCode.
func classifyTransport(err error) ErrorCode {
	if errors.Is(err, context.DeadlineExceeded) {
		return CodeTimeout
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return CodeTimeout
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return CodeNetwork
	}

	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection reset"):
		return CodeConnectionReset
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no such host"):
		return CodeNetwork
	case strings.Contains(msg, "unexpected EOF"), strings.Contains(msg, "EOF"):
		return CodeClientClosed
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return CodeNetwork
	}

	return CodeUnknown
}

// classifyStatus maps a non-2xx provider response onto an ErrorCode.
func classifyStatus(status int, body string) ErrorCode {
	switch status {
	case 499:
		return CodeClientClosed
	case 502, 504:
		return CodeGatewayTimeout
	case 503:
		return CodeServiceUnavailable
	case 400, 415, 422:
		return CodeInvalidAudio
	}
	if status == 500 && (strings.Contains(body, "invalid") || strings.Contains(body, "format")) {
		return CodeInvalidAudio
	}
	if status >= 500 {
		return CodeServiceUnavailable
	}
	return CodeUnknown
}
