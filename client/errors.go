package client

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrorKind classifies a failed Zotero call into one of the fixed categories
// the tool layer maps 1:1 onto its own error codes.
type ErrorKind string

const (
	// KindAuthError covers 401/403 and missing credentials.
	KindAuthError ErrorKind = "AUTH_ERROR"
	// KindNotFound covers 404 for items, collections, and attachments.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindRateLimited covers 429, with the server's Retry-After hint attached.
	KindRateLimited ErrorKind = "RATE_LIMITED"
	// KindValidationError covers upstream request rejections (400, 409, 412,
	// 413, 415, 422) and local precondition failures before any network call.
	KindValidationError ErrorKind = "VALIDATION_ERROR"
	// KindUpstreamError covers 5xx and any unexpected status.
	KindUpstreamError ErrorKind = "UPSTREAM_ERROR"
	// KindUpstreamUnavailable covers transport failures: DNS, connect,
	// timeout, or a torn response.
	KindUpstreamUnavailable ErrorKind = "UPSTREAM_UNAVAILABLE"
)

// Retryable reports whether the kind is transient and worth another attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindRateLimited, KindUpstreamError, KindUpstreamUnavailable:
		return true
	}
	return false
}

// APIError is the normalized form every failed logical call resolves to.
// Discriminate with errors.As.
type APIError struct {
	// Kind is the normalized error category.
	Kind ErrorKind
	// Status is the upstream HTTP status code. Zero for transport failures
	// and local validation errors.
	Status int
	// RetryAfter is the parsed server wait hint, when one was supplied.
	RetryAfter time.Duration
	// RequestID is the upstream request-tracing identifier, when present.
	RequestID string
	// Body holds a bounded, credential-free capture of the upstream response
	// body for diagnostics.
	Body []byte
	// CorrelationID tags the logical tool call this failure belongs to.
	CorrelationID string
	// AttachmentKey is set when an upload failed after the attachment item
	// was already created, so callers can reconcile the partial state.
	AttachmentKey string
	// Step names the upload step a failed upload session was in.
	Step UploadStep
	// Detail is a short human-readable description of the failure.
	Detail string

	cause error
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		if e.Status > 0 {
			return fmt.Sprintf("zotmcp: %s (status %d): %s", e.Kind, e.Status, e.Detail)
		}
		return fmt.Sprintf("zotmcp: %s: %s", e.Kind, e.Detail)
	}
	if e.Status > 0 {
		return fmt.Sprintf("zotmcp: %s (status %d)", e.Kind, e.Status)
	}
	return fmt.Sprintf("zotmcp: %s", e.Kind)
}

func (e *APIError) Unwrap() error {
	return e.cause
}

// clone copies the error so a caller can add context without mutating an
// error another goroutine may still hold.
func (e *APIError) clone() *APIError {
	clone := *e
	return &clone
}

// Retryable reports whether the error is transient.
func (e *APIError) Retryable() bool {
	if e == nil {
		return false
	}
	return e.Kind.Retryable()
}

// classifyStatus maps an HTTP status onto an ErrorKind. The table is fixed;
// anything unlisted is an upstream error.
func classifyStatus(status int) ErrorKind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuthError
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusBadRequest,
		http.StatusConflict,
		http.StatusPreconditionFailed,
		http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType,
		http.StatusUnprocessableEntity:
		return KindValidationError
	}
	return KindUpstreamError
}

// requestIDFromHeader extracts the upstream request identifier. Zotero has
// used two spellings of the header over time.
func requestIDFromHeader(h http.Header) string {
	if id := h.Get("X-Zotero-RequestID"); id != "" {
		return id
	}
	return h.Get("X-Zotero-Request-ID")
}

// parseRetryAfter interprets a Retry-After header value as delta seconds
// (integral or fractional) or an HTTP-date relative to now. Unparseable or
// non-positive values yield zero.
func parseRetryAfter(raw string, now time.Time) time.Duration {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	if seconds, err := strconv.ParseFloat(raw, 64); err == nil {
		if seconds <= 0 {
			return 0
		}
		return time.Duration(seconds * float64(time.Second))
	}
	if ts, err := http.ParseTime(raw); err == nil {
		delay := ts.Sub(now)
		if delay <= 0 {
			return 0
		}
		return delay
	}
	return 0
}

// validationError builds a local precondition failure: no network call was
// made, no status is attached.
func validationError(format string, args ...any) *APIError {
	return &APIError{Kind: KindValidationError, Detail: fmt.Sprintf(format, args...)}
}
