package mcp

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pkt.systems/pslog"
	"pkt.systems/zotmcp/client"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

// newToolTestServer backs the bridge with an httptest upstream acting as the
// Zotero API.
func newToolTestServer(t *testing.T, handler http.Handler) *server {
	t.Helper()
	upstream := httptest.NewServer(handler)
	t.Cleanup(upstream.Close)
	return newToolServerWithClientConfig(t, client.Config{BaseURL: upstream.URL})
}

// newToolServerWithClientConfig builds the server struct directly so tests
// can exercise handlers without a transport in the way.
func newToolServerWithClientConfig(t *testing.T, cfg client.Config) *server {
	t.Helper()
	cfg.APIKey = "test-key"
	cfg.UserID = "u1"
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 4 * time.Millisecond
	}
	upstream, err := client.New(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	discard := pslog.NewStructured(context.Background(), io.Discard)
	return &server{
		cfg: Config{
			APIKey:         cfg.APIKey,
			UserID:         cfg.UserID,
			BaseURL:        cfg.BaseURL,
			UploadMaxBytes: cfg.UploadMaxBytes,
			MCPPath:        "/mcp",
		},
		logger:       discard,
		lifecycleLog: discard,
		toolLog:      discard,
		transportLog: discard,
		upstream:     upstream,
		mcpHTTPPath:  "/mcp",
	}
}

func wantValidationDetail(t *testing.T, err error, want string) {
	t.Helper()
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Kind != client.KindValidationError {
		t.Fatalf("kind %s, want VALIDATION_ERROR", apiErr.Kind)
	}
	if apiErr.Detail != want {
		t.Fatalf("detail %q, want %q", apiErr.Detail, want)
	}
}

func TestCleanHTTPPath(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", "/mcp"},
		{"/mcp", "/mcp"},
		{"mcp", "/mcp"},
		{"/bridge/", "/bridge"},
		{"//a//b", "/a/b"},
		{"  /zotero  ", "/zotero"},
	}
	for _, tc := range cases {
		if got := cleanHTTPPath(tc.in); got != tc.want {
			t.Fatalf("cleanHTTPPath(%q)=%q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)
	if cfg.Listen == "" {
		t.Fatalf("expected default listen address")
	}
	if cfg.MCPPath != "/mcp" {
		t.Fatalf("mcp path %q", cfg.MCPPath)
	}
}

func TestNewServerStdioConfig(t *testing.T) {
	srv, err := NewServer(NewServerRequest{
		Config: Config{APIKey: "k", UserID: "u"},
		Logger: pslog.NewStructured(context.Background(), io.Discard),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if srv == nil {
		t.Fatalf("expected server")
	}
}

func TestBuildMCPServerRegistersToolsAndResources(t *testing.T) {
	s := newToolTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	if srv := s.buildMCPServer(); srv == nil {
		t.Fatalf("expected mcp server")
	}
}
