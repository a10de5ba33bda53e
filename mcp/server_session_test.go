package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

func connectMCPClientSession(t *testing.T, s *server) (*mcpsdk.ClientSession, func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "0.0.1"}, nil)
	mcpSrv := s.buildMCPServer()
	t1, t2 := mcpsdk.NewInMemoryTransports()
	ss, err := mcpSrv.Connect(ctx, t1, nil)
	if err != nil {
		cancel()
		t.Fatalf("server connect: %v", err)
	}
	cs, err := client.Connect(ctx, t2, nil)
	if err != nil {
		_ = ss.Close()
		cancel()
		t.Fatalf("client connect: %v", err)
	}
	return cs, func() {
		_ = cs.Close()
		_ = ss.Close()
		cancel()
	}
}

func extractToolErrorObject(t *testing.T, res *mcpsdk.CallToolResult) map[string]any {
	t.Helper()
	if res == nil {
		t.Fatalf("expected call tool result")
	}
	if len(res.Content) == 0 {
		t.Fatalf("expected error content entry")
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("expected text content, got %T", res.Content[0])
	}
	var content map[string]any
	if err := json.Unmarshal([]byte(text.Text), &content); err != nil {
		t.Fatalf("expected json error envelope text, got %q: %v", text.Text, err)
	}
	errRaw, ok := content["error"]
	if !ok {
		t.Fatalf("expected error object in content text, got %#v", content)
	}
	errObj, ok := errRaw.(map[string]any)
	if !ok {
		t.Fatalf("expected structured error object, got %T", errRaw)
	}
	return errObj
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func TestMCPSessionExposesAllTools(t *testing.T) {
	s := newToolTestServer(t, http.NotFoundHandler())
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	list, err := cs.ListTools(ctx, &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("list tools: %v", err)
	}

	got := make(map[string]bool, len(list.Tools))
	for _, tool := range list.Tools {
		got[tool.Name] = true
		if strings.TrimSpace(tool.Description) == "" {
			t.Fatalf("tool %s has an empty description", tool.Name)
		}
	}
	if len(got) != len(mcpToolNames) {
		t.Fatalf("listed %d tools, want %d: %v", len(got), len(mcpToolNames), got)
	}
	for _, name := range mcpToolNames {
		if !got[name] {
			t.Fatalf("missing tool %s", name)
		}
	}
}

func TestMCPSessionToolErrorEnvelope(t *testing.T) {
	s := newToolTestServer(t, http.NotFoundHandler())
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      toolSearchItems,
		Arguments: map[string]any{"query": ""},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected isError=true")
	}

	errObj := extractToolErrorObject(t, res)
	if got := toString(errObj["code"]); got != "ZOTERO_VALIDATION_ERROR" {
		t.Fatalf("code %q", got)
	}
	if got := toString(errObj["message"]); got != "query is required and must be a non-empty string." {
		t.Fatalf("message %q", got)
	}
	details, ok := errObj["details"].(map[string]any)
	if !ok {
		t.Fatalf("details: %#v", errObj["details"])
	}
	if retryable, ok := details["retryable"].(bool); !ok || retryable {
		t.Fatalf("validation failures must not be retryable: %#v", details)
	}
	if toString(details["correlation_id"]) == "" {
		t.Fatalf("expected a correlation id in details: %#v", details)
	}
}

func TestMCPSessionSortValuesTool(t *testing.T) {
	s := newToolTestServer(t, http.NotFoundHandler())
	cs, closeFn := connectMCPClientSession(t, s)
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{
		Name:      toolGetSortValues,
		Arguments: map[string]any{},
	})
	if err != nil {
		t.Fatalf("call tool: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %+v", res.Content)
	}

	structured, ok := res.StructuredContent.(map[string]any)
	if !ok {
		t.Fatalf("expected structured content, got %T", res.StructuredContent)
	}
	values, ok := structured["values"].([]any)
	if !ok || len(values) != 12 {
		t.Fatalf("values: %#v", structured["values"])
	}
	if structured["default"] != "relevance" || structured["fallback"] != "dateModified" {
		t.Fatalf("defaults: %#v", structured)
	}
}
