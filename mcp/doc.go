// Package mcp provides the zotero-mcp bridge server.
//
// The package exposes a standalone MCP runtime that fronts the Zotero Web
// API through the upstream client in pkt.systems/zotmcp/client. It is
// intended for agent workflows that need reference-library access: search
// and exact identifier lookup, item reads with attachment listings, item
// creation, file uploads, arXiv PDF capture, and collection filing.
//
// # What this package does
//
//   - Serves MCP over stdio by default, or streamable HTTP when configured
//   - Registers the eight zotero_* tools with typed inputs and outputs
//   - Converts every failure into a structured {"error": {...}} envelope
//     with a fixed ZOTERO_* code and a retryable flag
//   - Stamps each tool call with a correlation identifier and logs call,
//     success, and failure events with durations
//   - Hosts markdown documentation resources describing the tool surface
//
// The bridge process is stateless: every operation is delegated to the
// upstream Zotero library, and the only local state is the client's
// short-lived read cache, which write operations clear.
//
// # Error envelope
//
// Handlers return plain errors; the withStructuredToolErrors wrapper
// classifies them into a JSON envelope before the SDK serializes the
// failure. Upstream client errors map kind for kind onto ZOTERO_* codes;
// a collection name that resolves to several keys becomes
// ZOTERO_AMBIGUOUS_COLLECTION with the candidate keys in details.
//
// # Constructor and lifecycle
//
// Use NewServer with NewServerRequest, then call Run with a cancellable
// context. Run blocks until the stdio session ends, the context is
// cancelled, or the HTTP listener fails.
//
// Example:
//
//	srv, err := mcp.NewServer(mcp.NewServerRequest{
//		Config: mcp.Config{
//			APIKey: os.Getenv("ZOTERO_API_KEY"),
//			UserID: os.Getenv("ZOTERO_USER_ID"),
//		},
//		Logger: logger,
//	})
//	if err != nil {
//		return err
//	}
//	return srv.Run(ctx)
//
// # Transport scope
//
// The bridge is a local process. The streamable HTTP mode binds loopback by
// default and carries no TLS or auth layer of its own; anything
// network-facing belongs in front of it, not in it.
package mcp
