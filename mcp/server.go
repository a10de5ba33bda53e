package mcp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/pslog"
	"pkt.systems/zotmcp/client"
	"pkt.systems/zotmcp/internal/svcfields"
	"pkt.systems/zotmcp/internal/version"
)

// serverName is the identity announced during the MCP handshake.
const serverName = "zotero-mcp"

// Config controls bridge runtime behavior: the upstream Zotero credentials
// and tuning, plus the transport selection. The zero value runs on stdio.
type Config struct {
	// APIKey authenticates against the Zotero Web API.
	APIKey string
	// UserID selects the user library.
	UserID string
	// BaseURL overrides the Zotero API origin.
	BaseURL string

	// Upstream client tuning, passed through verbatim.
	HTTPTimeout       time.Duration
	UploadHTTPTimeout time.Duration
	MaxAttempts       int
	BaseDelay         time.Duration
	MaxDelay          time.Duration
	DisableReadCache  bool
	CacheTTL          time.Duration
	CacheMaxEntries   int
	UploadMaxBytes    int64
	UserAgent         string

	// HTTP switches from the default stdio transport to streamable HTTP on
	// Listen. The bridge stays a local process either way; there is no TLS
	// or auth layer in front of it.
	HTTP    bool
	Listen  string
	MCPPath string

	// Metrics receives upstream client instrumentation when set.
	Metrics *client.Metrics
}

// ClientConfig maps the bridge configuration onto the upstream client
// configuration. The logger is attached by the caller.
func (c Config) ClientConfig() client.Config {
	return client.Config{
		APIKey:            c.APIKey,
		UserID:            c.UserID,
		BaseURL:           c.BaseURL,
		HTTPTimeout:       c.HTTPTimeout,
		UploadHTTPTimeout: c.UploadHTTPTimeout,
		MaxAttempts:       c.MaxAttempts,
		BaseDelay:         c.BaseDelay,
		MaxDelay:          c.MaxDelay,
		DisableReadCache:  c.DisableReadCache,
		CacheTTL:          c.CacheTTL,
		CacheMaxEntries:   c.CacheMaxEntries,
		UploadMaxBytes:    c.UploadMaxBytes,
		UserAgent:         c.UserAgent,
		Metrics:           c.Metrics,
	}
}

// Server is the MCP bridge service contract.
type Server interface {
	Run(context.Context) error
}

// NewServerRequest wraps constructor inputs.
type NewServerRequest struct {
	Config Config
	Logger pslog.Logger
}

type server struct {
	cfg          Config
	logger       pslog.Logger
	lifecycleLog pslog.Logger
	toolLog      pslog.Logger
	transportLog pslog.Logger
	upstream     *client.Client
	httpServer   *http.Server
	mcpHTTPPath  string
}

// NewServer constructs the Zotero MCP bridge service.
func NewServer(req NewServerRequest) (Server, error) {
	cfg := req.Config
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	logger := req.Logger
	if logger == nil {
		logger = pslog.NewStructured(context.Background(), os.Stderr).With("app", "zotmcp")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		lifecycleLog: svcfields.WithSubsystem(logger, "server.lifecycle.mcp"),
		toolLog:      svcfields.WithSubsystem(logger, "mcp.tools"),
		transportLog: svcfields.WithSubsystem(logger, "mcp.transport"),
		mcpHTTPPath:  cleanHTTPPath(cfg.MCPPath),
	}

	upstreamCfg := cfg.ClientConfig()
	upstreamCfg.Logger = logger
	upstream, err := client.New(upstreamCfg)
	if err != nil {
		return nil, err
	}
	s.upstream = upstream

	if cfg.HTTP {
		s.httpServer = &http.Server{
			Addr:    cfg.Listen,
			Handler: s.buildMux(),
		}
	}

	return s, nil
}

func (s *server) Run(ctx context.Context) error {
	if !s.cfg.HTTP {
		s.lifecycleLog.Info("starting zotero MCP bridge", "transport", "stdio")
		return s.buildMCPServer().Run(ctx, &mcpsdk.StdioTransport{})
	}

	s.lifecycleLog.Info("starting zotero MCP bridge",
		"transport", "http",
		"listen", s.cfg.Listen,
		"mcp_path", s.mcpHTTPPath)

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return nil
	case err := <-errCh:
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *server) buildMux() *http.ServeMux {
	mcpSrv := s.buildMCPServer()
	streamable := mcpsdk.NewStreamableHTTPHandler(func(_ *http.Request) *mcpsdk.Server {
		return mcpSrv
	}, nil)

	mux := http.NewServeMux()
	mux.Handle(s.mcpHTTPPath, streamable)
	return mux
}

func (s *server) buildMCPServer() *mcpsdk.Server {
	mcpSrv := mcpsdk.NewServer(&mcpsdk.Implementation{
		Name:    serverName,
		Version: version.Current(),
	}, &mcpsdk.ServerOptions{
		Instructions:       defaultServerInstructions(s.cfg),
		InitializedHandler: s.handleInitialized,
	})
	s.registerResources(mcpSrv)
	s.registerTools(mcpSrv)
	return mcpSrv
}

func (s *server) handleInitialized(_ context.Context, req *mcpsdk.InitializedRequest) {
	if req == nil || req.Session == nil {
		return
	}
	s.transportLog.Info("mcp.session.initialized", "session_id", req.Session.ID())
}

func (s *server) registerTools(srv *mcpsdk.Server) {
	descriptions := buildToolDescriptions(s.cfg)
	desc := func(name string) string {
		description, ok := descriptions[name]
		if !ok {
			panic(fmt.Sprintf("missing MCP tool description for %q", name))
		}
		return description
	}

	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolSearchItems,
		Description: desc(toolSearchItems),
	}, withToolTelemetry(s, toolSearchItems, withStructuredToolErrors(s.handleSearchItemsTool)))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetItem,
		Description: desc(toolGetItem),
	}, withToolTelemetry(s, toolGetItem, withStructuredToolErrors(s.handleGetItemTool)))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolGetSortValues,
		Description: desc(toolGetSortValues),
	}, withToolTelemetry(s, toolGetSortValues, withStructuredToolErrors(s.handleGetSortValuesTool)))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolListCollections,
		Description: desc(toolListCollections),
	}, withToolTelemetry(s, toolListCollections, withStructuredToolErrors(s.handleListCollectionsTool)))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolCreateItem,
		Description: desc(toolCreateItem),
	}, withToolTelemetry(s, toolCreateItem, withStructuredToolErrors(s.handleCreateItemTool)))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolUploadAttachment,
		Description: desc(toolUploadAttachment),
	}, withToolTelemetry(s, toolUploadAttachment, withStructuredToolErrors(s.handleUploadAttachmentTool)))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolAttachArxivPDF,
		Description: desc(toolAttachArxivPDF),
	}, withToolTelemetry(s, toolAttachArxivPDF, withStructuredToolErrors(s.handleAttachArxivPDFTool)))
	mcpsdk.AddTool(srv, &mcpsdk.Tool{
		Name:        toolAddItemToCollection,
		Description: desc(toolAddItemToCollection),
	}, withToolTelemetry(s, toolAddItemToCollection, withStructuredToolErrors(s.handleAddItemToCollectionTool)))
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.Listen) == "" {
		cfg.Listen = "127.0.0.1:19350"
	}
	if strings.TrimSpace(cfg.MCPPath) == "" {
		cfg.MCPPath = "/mcp"
	}
}

func validateConfig(cfg Config) error {
	if cfg.HTTP && strings.TrimSpace(cfg.Listen) == "" {
		return fmt.Errorf("listen address required")
	}
	return nil
}

func cleanHTTPPath(raw string) string {
	p := strings.TrimSpace(raw)
	if p == "" {
		return "/mcp"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
