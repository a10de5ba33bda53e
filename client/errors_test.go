package client

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"

	"pkt.systems/zotmcp/internal/clock"
)

func TestClassifyStatus(t *testing.T) {
	cases := []struct {
		status int
		want   ErrorKind
	}{
		{401, KindAuthError},
		{403, KindAuthError},
		{404, KindNotFound},
		{429, KindRateLimited},
		{400, KindValidationError},
		{409, KindValidationError},
		{412, KindValidationError},
		{413, KindValidationError},
		{415, KindValidationError},
		{422, KindValidationError},
		{500, KindUpstreamError},
		{502, KindUpstreamError},
		{503, KindUpstreamError},
		{418, KindUpstreamError},
	}
	for _, tc := range cases {
		if got := classifyStatus(tc.status); got != tc.want {
			t.Fatalf("status %d: got %s, want %s", tc.status, got, tc.want)
		}
	}
}

func TestKindRetryable(t *testing.T) {
	for _, kind := range []ErrorKind{KindRateLimited, KindUpstreamError, KindUpstreamUnavailable} {
		if !kind.Retryable() {
			t.Fatalf("%s should be retryable", kind)
		}
	}
	for _, kind := range []ErrorKind{KindAuthError, KindNotFound, KindValidationError} {
		if kind.Retryable() {
			t.Fatalf("%s should not be retryable", kind)
		}
	}
	var nilErr *APIError
	if nilErr.Retryable() {
		t.Fatalf("nil error should not be retryable")
	}
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		raw  string
		want time.Duration
	}{
		{"", 0},
		{"2", 2 * time.Second},
		{"0.5", 500 * time.Millisecond},
		{"0", 0},
		{"-3", 0},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tc := range cases {
		if got := parseRetryAfter(tc.raw, now); got != tc.want {
			t.Fatalf("%q: got %v, want %v", tc.raw, got, tc.want)
		}
	}
}

func TestAPIErrorMessageForms(t *testing.T) {
	cases := []struct {
		err  *APIError
		want string
	}{
		{&APIError{Kind: KindNotFound}, "zotmcp: NOT_FOUND"},
		{&APIError{Kind: KindUpstreamError, Status: 503}, "zotmcp: UPSTREAM_ERROR (status 503)"},
		{&APIError{Kind: KindValidationError, Detail: "limit must be between 1 and 100."}, "zotmcp: VALIDATION_ERROR: limit must be between 1 and 100."},
		{&APIError{Kind: KindRateLimited, Status: 429, Detail: "slow down"}, "zotmcp: RATE_LIMITED (status 429): slow down"},
	}
	for _, tc := range cases {
		if got := tc.err.Error(); got != tc.want {
			t.Fatalf("got %q, want %q", got, tc.want)
		}
	}
}

func TestRequestIDFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Zotero-RequestID", "abc")
	if got := requestIDFromHeader(h); got != "abc" {
		t.Fatalf("got %q", got)
	}
	h = http.Header{}
	h.Set("X-Zotero-Request-ID", "def")
	if got := requestIDFromHeader(h); got != "def" {
		t.Fatalf("got %q", got)
	}
	if got := requestIDFromHeader(http.Header{}); got != "" {
		t.Fatalf("expected empty, got %q", got)
	}
}

func TestValidationErrorShape(t *testing.T) {
	err := validationError("limit must be between 1 and %d.", 100)
	if err.Kind != KindValidationError {
		t.Fatalf("kind %s", err.Kind)
	}
	if err.Status != 0 {
		t.Fatalf("local validation carries no status, got %d", err.Status)
	}
	if !strings.Contains(err.Error(), "limit must be between 1 and 100.") {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestAPIErrorCloneIsIndependent(t *testing.T) {
	orig := &APIError{Kind: KindUpstreamError, Status: 500}
	copied := orig.clone()
	copied.AttachmentKey = "ATT1"
	copied.Step = StepChildItemCreated
	if orig.AttachmentKey != "" || orig.Step != "" {
		t.Fatalf("clone must not mutate the original: %+v", orig)
	}
}

func TestClassifyResponseCapturesBoundedBody(t *testing.T) {
	c := &Client{clk: clock.System{}}

	header := http.Header{}
	header.Set("Retry-After", "2")
	header.Set("X-Zotero-RequestID", "req-9")
	apiErr := c.classifyResponse(&apiResponse{
		status: 429,
		header: header,
		body:   []byte("{\n  \"error\": \"slow down\"\n}"),
	}, "cid-1")
	if apiErr.Kind != KindRateLimited || apiErr.Status != 429 {
		t.Fatalf("classified %+v", apiErr)
	}
	if apiErr.RetryAfter != 2*time.Second || apiErr.RequestID != "req-9" || apiErr.CorrelationID != "cid-1" {
		t.Fatalf("headers %+v", apiErr)
	}
	if string(apiErr.Body) != `{"error":"slow down"}` {
		t.Fatalf("body should be captured compacted, got %q", apiErr.Body)
	}

	apiErr = c.classifyResponse(&apiResponse{
		status: 500,
		header: http.Header{},
		body:   bytes.Repeat([]byte("x"), 4096),
	}, "")
	if len(apiErr.Body) != 2048 {
		t.Fatalf("capture should stop at the bound, got %d bytes", len(apiErr.Body))
	}
}
