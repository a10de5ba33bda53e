// Package zotmcp exposes the Go APIs behind the Zotero MCP bridge: a local,
// agent-facing MCP server that turns a Zotero library into callable tools
// backed by a resilient upstream client with bounded caching, retry/backoff,
// and a multi-step attachment upload protocol.
//
// Copyright (C) 2026 Michel Blomgren <https://pkt.systems>
//
// The binary serves MCP over stdio by default so it can be dropped straight
// into an agent configuration:
//
//	ZOTERO_API_KEY=... ZOTERO_USER_ID=... zotmcp
//
// Programmatic embedding constructs the facade directly:
//
//	svc, err := mcp.NewServer(mcp.NewServerRequest{
//	    Config: mcp.Config{APIKey: key, UserID: uid},
//	    Logger: logger,
//	})
//	if err != nil { log.Fatal(err) }
//	if err := svc.Run(ctx); err != nil { log.Fatal(err) }
//
// The resilient Zotero Web API client lives in the client package and can be
// used on its own; every exported operation accepts a context and returns an
// *client.APIError on failure with a closed taxonomy of error kinds.
//
// This package holds the shared defaults, the configuration directory
// helpers, and the telemetry bundle (OTLP tracing, Prometheus metrics,
// pprof).
package zotmcp
