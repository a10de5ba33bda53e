package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/zotmcp/client"
	"pkt.systems/zotmcp/internal/correlation"
)

// errorCodePrefix turns a client.ErrorKind into the wire code agents match
// on, e.g. VALIDATION_ERROR becomes ZOTERO_VALIDATION_ERROR.
const errorCodePrefix = "ZOTERO_"

// codeAmbiguousCollection is the one code without a client.ErrorKind behind
// it: a collection name that resolves to several keys.
const codeAmbiguousCollection = "ZOTERO_AMBIGUOUS_COLLECTION"

type toolErrorEnvelope struct {
	Code    string           `json:"code"`
	Message string           `json:"message"`
	Details toolErrorDetails `json:"details"`
}

type toolErrorDetails struct {
	Retryable         bool     `json:"retryable"`
	HTTPStatus        int      `json:"http_status,omitempty"`
	RetryAfterSeconds float64  `json:"retry_after_seconds,omitempty"`
	RequestID         string   `json:"request_id,omitempty"`
	CorrelationID     string   `json:"correlation_id,omitempty"`
	AttachmentKey     string   `json:"attachment_key,omitempty"`
	UploadStep        string   `json:"upload_step,omitempty"`
	CollectionName    string   `json:"collection_name,omitempty"`
	Matches           []string `json:"matches,omitempty"`
}

// AmbiguousCollectionError reports a collection name lookup that matched
// more than one collection. Matches lists the candidate keys.
type AmbiguousCollectionError struct {
	Name    string
	Matches []string
}

func (e *AmbiguousCollectionError) Error() string {
	return fmt.Sprintf("collection name %q matched %d collections", e.Name, len(e.Matches))
}

// collectionNotFoundError reports a collection name lookup with no match.
type collectionNotFoundError struct {
	Name string
}

func (e *collectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q not found", e.Name)
}

// withStructuredToolErrors converts handler failures into the JSON error
// envelope before the SDK serializes them, so agents receive a machine
// readable code instead of prose. Free function: methods cannot carry type
// parameters.
func withStructuredToolErrors[In, Out any](h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		res, out, err := h(ctx, req, input)
		if err == nil {
			return res, out, nil
		}
		var zero Out
		return nil, zero, toolError{Envelope: classifyToolError(ctx, err)}
	}
}

// withToolTelemetry stamps a correlation identifier on the call context and
// logs call, success, and failure events with the call duration. Applied
// outside withStructuredToolErrors so the failure log carries the classified
// code.
func withToolTelemetry[In, Out any](s *server, name string, h mcpsdk.ToolHandlerFor[In, Out]) mcpsdk.ToolHandlerFor[In, Out] {
	return func(ctx context.Context, req *mcpsdk.CallToolRequest, input In) (*mcpsdk.CallToolResult, Out, error) {
		ctx, cid := correlation.Ensure(ctx)
		started := time.Now()
		s.toolLog.Debug("tool.call", "tool", name, "correlation_id", cid)
		res, out, err := h(ctx, req, input)
		durationMS := time.Since(started).Milliseconds()
		if err != nil {
			code := "ZOTERO_UPSTREAM_ERROR"
			var terr toolError
			if errors.As(err, &terr) {
				code = terr.Envelope.Code
			}
			s.toolLog.Warn("tool.error",
				"tool", name,
				"correlation_id", cid,
				"code", code,
				"duration_ms", durationMS)
			return res, out, err
		}
		s.toolLog.Info("tool.success",
			"tool", name,
			"correlation_id", cid,
			"duration_ms", durationMS)
		return res, out, nil
	}
}

type toolError struct {
	Envelope toolErrorEnvelope
}

func (e toolError) Error() string {
	envelope := map[string]any{"error": e.Envelope}
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return `{"error":{"code":"ZOTERO_UPSTREAM_ERROR","message":"failed to encode error envelope","details":{"retryable":false}}}`
	}
	return string(encoded)
}

// classifyToolError maps any handler error onto the fixed envelope. Client
// APIErrors translate kind for kind; everything else is an upstream error.
func classifyToolError(ctx context.Context, err error) toolErrorEnvelope {
	env := toolErrorEnvelope{
		Code:    "ZOTERO_UPSTREAM_ERROR",
		Message: strings.TrimSpace(err.Error()),
		Details: toolErrorDetails{
			Retryable:     true,
			CorrelationID: correlation.From(ctx),
		},
	}

	var ambiguous *AmbiguousCollectionError
	if errors.As(err, &ambiguous) {
		env.Code = codeAmbiguousCollection
		env.Message = "Multiple collections matched the provided name. Use collection_key instead."
		env.Details.Retryable = false
		env.Details.CollectionName = ambiguous.Name
		env.Details.Matches = append([]string(nil), ambiguous.Matches...)
		return env
	}

	var missing *collectionNotFoundError
	if errors.As(err, &missing) {
		env.Code = errorCodePrefix + string(client.KindNotFound)
		env.Message = "Collection not found."
		env.Details.Retryable = false
		env.Details.CollectionName = missing.Name
		return env
	}

	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		env.Code = errorCodePrefix + string(apiErr.Kind)
		env.Message = strings.TrimSpace(apiErr.Detail)
		if env.Message == "" {
			env.Message = defaultKindMessage(apiErr.Kind, apiErr.Status)
		}
		env.Details.Retryable = apiErr.Retryable()
		env.Details.HTTPStatus = apiErr.Status
		env.Details.RequestID = apiErr.RequestID
		if apiErr.CorrelationID != "" {
			env.Details.CorrelationID = apiErr.CorrelationID
		}
		env.Details.AttachmentKey = apiErr.AttachmentKey
		env.Details.UploadStep = string(apiErr.Step)
		if apiErr.RetryAfter > 0 {
			env.Details.RetryAfterSeconds = apiErr.RetryAfter.Seconds()
		}
		return env
	}

	return env
}

// defaultKindMessage supplies the human line when the upstream gave none.
func defaultKindMessage(kind client.ErrorKind, status int) string {
	switch kind {
	case client.KindAuthError:
		return "Zotero authentication failed."
	case client.KindNotFound:
		return "Zotero resource not found."
	case client.KindRateLimited:
		return "Zotero rate limit exceeded."
	case client.KindValidationError:
		return "Zotero rejected the request."
	case client.KindUpstreamError:
		if status >= 500 {
			return "Zotero service error."
		}
		return "Zotero request failed."
	case client.KindUpstreamUnavailable:
		return "Zotero is unreachable."
	}
	return "Zotero request failed."
}

// toolValidationError builds a local argument rejection in the same shape the
// upstream client produces, so the envelope comes out identical either way.
func toolValidationError(msg string) error {
	return &client.APIError{Kind: client.KindValidationError, Detail: msg}
}
