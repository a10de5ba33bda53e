package zotmcp

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultAPIBaseURL points the client at the public Zotero Web API.
	DefaultAPIBaseURL = "https://api.zotero.org"
	// DefaultAPIVersion is the Zotero-API-Version header value sent upstream.
	DefaultAPIVersion = "3"
	// DefaultHTTPTimeout bounds each individual network call.
	DefaultHTTPTimeout = 30 * time.Second
	// DefaultUploadHTTPTimeout bounds the one-time binary transfer, which
	// moves real payloads and deserves more room than API calls.
	DefaultUploadHTTPTimeout = 60 * time.Second
	// DefaultRetryMaxAttempts caps total outbound attempts per logical call.
	DefaultRetryMaxAttempts = 3
	// DefaultRetryBaseDelay seeds the exponential backoff between attempts.
	DefaultRetryBaseDelay = 500 * time.Millisecond
	// DefaultRetryMaxDelay ceils the backoff regardless of attempt count or
	// server-supplied hints.
	DefaultRetryMaxDelay = 4 * time.Second
	// DefaultReadCacheTTL controls how long idempotent reads are served from
	// memory.
	DefaultReadCacheTTL = 30 * time.Second
	// DefaultReadCacheMaxEntries bounds the read cache; the oldest-inserted
	// entry is evicted when full.
	DefaultReadCacheMaxEntries = 128
	// DefaultUploadMaxBytes caps attachment payloads accepted for upload.
	DefaultUploadMaxBytes = int64(50 << 20)
	// DefaultBodyCaptureBytes bounds upstream error bodies captured into
	// normalized errors.
	DefaultBodyCaptureBytes = int64(2048)
	// DefaultListen is the streamable-HTTP endpoint when --http is selected.
	DefaultListen = "127.0.0.1:19350"
	// DefaultMCPPath is the HTTP path serving the streamable MCP endpoint.
	DefaultMCPPath = "/mcp"
	// DefaultMetricsListen is the Prometheus scrape endpoint (empty disables).
	DefaultMetricsListen = ""
	// DefaultPprofListen is the pprof debug listener (empty disables).
	DefaultPprofListen = ""
	// DefaultConfigFileName is the config file searched for when --config is
	// omitted.
	DefaultConfigFileName = "config.yaml"
)

// DefaultConfigDir returns the default configuration directory
// ($HOME/.zotmcp, overridable via ZOTMCP_CONFIG_DIR).
func DefaultConfigDir() (string, error) {
	if override := strings.TrimSpace(os.Getenv("ZOTMCP_CONFIG_DIR")); override != "" {
		if filepath.IsAbs(override) {
			return override, nil
		}
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", err
		}
		return abs, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".zotmcp"), nil
}

// ResolveAPIKey returns the configured API key, falling back to the
// environment names the Zotero tool ecosystem already uses.
func ResolveAPIKey(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("ZOTMCP_API_KEY")); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("ZOTERO_API_KEY"))
}

// ResolveUserID returns the configured library user id with the same
// fallback chain as ResolveAPIKey.
func ResolveUserID(flagValue string) string {
	if v := strings.TrimSpace(flagValue); v != "" {
		return v
	}
	if v := strings.TrimSpace(os.Getenv("ZOTMCP_USER_ID")); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv("ZOTERO_USER_ID"))
}
