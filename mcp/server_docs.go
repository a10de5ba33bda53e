package mcp

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/zotmcp/client"
)

const (
	docOverviewURI    = "resource://docs/overview.md"
	docSearchURI      = "resource://docs/search.md"
	docAttachmentsURI = "resource://docs/attachments.md"
	docErrorsURI      = "resource://docs/errors.md"
)

func defaultServerInstructions(cfg Config) string {
	uploadMax := cfg.UploadMaxBytes
	if uploadMax <= 0 {
		uploadMax = client.DefaultUploadMaxBytes
	}
	return strings.TrimSpace(fmt.Sprintf(`
zotero-mcp bridge operating manual:
- Library: Zotero user library of the configured API key. Credentials are ambient server config; no tool takes or returns them.
- Discovery workflow: %s first; a query that is a DOI or arXiv id switches to exact identifier matching. Then %s for full metadata and attachments.
- Pagination: pass start (or its alias offset, never both) and follow next_start until the response omits it.
- Sorting: default %s. Call %s for accepted values; when the upstream rejects a sort the bridge retries once with %s and reports sort_used.
- Filing workflow: %s -> %s or %s -> %s.
- Upload ceiling: %s per file, local path, URL download, or inline base64 alike.
- Failures return {"error": {"code", "message", "details"}}. Codes are ZOTERO_AUTH_ERROR, ZOTERO_NOT_FOUND, ZOTERO_RATE_LIMITED, ZOTERO_VALIDATION_ERROR, ZOTERO_UPSTREAM_ERROR, ZOTERO_UPSTREAM_UNAVAILABLE, ZOTERO_AMBIGUOUS_COLLECTION. Retry only when details.retryable is true and honor details.retry_after_seconds.
- Partial uploads: after a failed upload, details.attachment_key plus details.upload_step locate the orphaned child item; re-running the upload with identical content does not duplicate stored bytes.
- Documentation resources: %s, %s, %s, %s
`, toolSearchItems, toolGetItem, client.DefaultSort, toolGetSortValues, client.FallbackSort,
		toolCreateItem, toolUploadAttachment, toolAttachArxivPDF, toolAddItemToCollection,
		humanize.IBytes(uint64(uploadMax)),
		docOverviewURI, docSearchURI, docAttachmentsURI, docErrorsURI))
}

func (s *server) registerResources(srv *mcpsdk.Server) {
	for _, uri := range s.resourceURIs() {
		srv.AddResource(&mcpsdk.Resource{
			URI:         uri,
			Name:        uri,
			Title:       uri,
			Description: "zotero-mcp operational documentation",
			MIMEType:    "text/markdown",
		}, s.handleDocResource)
	}
}

func (s *server) resourceURIs() []string {
	docs := s.resourceDocs()
	uris := make([]string, 0, len(docs))
	for uri := range docs {
		uris = append(uris, uri)
	}
	sort.Strings(uris)
	return uris
}

func (s *server) resourceDocs() map[string]string {
	uploadMax := s.cfg.UploadMaxBytes
	if uploadMax <= 0 {
		uploadMax = client.DefaultUploadMaxBytes
	}
	return map[string]string{
		docOverviewURI: strings.TrimSpace(fmt.Sprintf(`
# zotero-mcp Overview

The bridge exposes one Zotero user library over eight tools. Reads go
through a short-lived cache; any write clears it, so a read after a write
reflects the write.

Recommended sequence:
1. %s to locate items (full text, DOI, or arXiv id).
2. %s for creators, abstract, identifiers, and the attachment listing.
3. %s / %s and %s when the library needs new entries or files.
4. %s to file items; %s lists the targets.

Item keys and collection keys are the stable handles; titles and names are
display values. When a tool fails, read the error code before retrying (see
%s).
`, toolSearchItems, toolGetItem, toolCreateItem, toolUploadAttachment, toolAttachArxivPDF,
			toolAddItemToCollection, toolListCollections, docErrorsURI)),
		docSearchURI: strings.TrimSpace(fmt.Sprintf(`
# Searching

%s runs a full-text query against the library. Two query forms switch to
exact identifier matching: a DOI (bare, doi: prefixed, or a doi.org URL) and
an arXiv id (bare, arXiv: prefixed, or an arxiv.org URL). In identifier mode
total counts the exact matches and no next_start is returned.

Pagination: limit is 1-100 (default 25); start is the zero-based offset;
offset is an alias accepted for compatibility, never together with a
different start. Follow next_start until it disappears.

Sorting: default %q. %s lists every accepted value. An unknown sort is
passed through for the upstream to judge; when the upstream rejects it the
bridge substitutes %q once and sets sort_used in the response so the caller
knows the order it actually got.

Tags: every listed tag must be present on an item for it to match.
`, toolSearchItems, client.DefaultSort, toolGetSortValues, client.FallbackSort)),
		docAttachmentsURI: strings.TrimSpace(fmt.Sprintf(`
# Attachments

%s stores a file as an imported_file child of an existing item. Exactly one
source per call: file_path (local file), file_url (http/https download), or
file_bytes_base64 (inline; filename required). The ceiling is %s from any
source.

The upload runs Zotero's three-step protocol: create the child item,
authorize the upload against the file's MD5, transfer the bytes, register.
When the upstream already holds identical content the transfer is skipped
and upload_status is "exists" instead of "registered".

A failure after the child item exists leaves an attachment item without
content. The error's details.attachment_key and details.upload_step say how
far the session got; re-running the same upload is safe and will not
duplicate stored bytes.

%s is the one-step variant for arXiv papers: it resolves the id, downloads
the canonical PDF, verifies it is a PDF, and uploads it with a filename
derived from the id.
`, toolUploadAttachment, humanize.IBytes(uint64(uploadMax)), toolAttachArxivPDF)),
		docErrorsURI: strings.TrimSpace(`
# Errors

Every failure carries {"error": {"code", "message", "details"}}.

Codes:
- ZOTERO_AUTH_ERROR: key rejected or missing. Not retryable; fix credentials.
- ZOTERO_NOT_FOUND: item, collection, or attachment does not exist.
- ZOTERO_RATE_LIMITED: upstream throttling. Retryable; details.retry_after_seconds carries the server hint when one was given.
- ZOTERO_VALIDATION_ERROR: the request was malformed, locally or upstream. Fix the arguments; retrying unchanged cannot help.
- ZOTERO_UPSTREAM_ERROR: Zotero-side failure. Retryable.
- ZOTERO_UPSTREAM_UNAVAILABLE: the bridge could not reach Zotero at all. Retryable.
- ZOTERO_AMBIGUOUS_COLLECTION: a collection_name matched several collections; details.matches lists the keys, pick one and pass it as collection_key.

details.retryable is authoritative: the bridge has already retried transient
failures internally, so a non-retryable envelope means another attempt with
the same arguments will fail the same way.

details.request_id echoes Zotero's request identifier when present;
details.correlation_id ties the failure to the bridge's own logs.
`),
	}
}

func (s *server) handleDocResource(_ context.Context, req *mcpsdk.ReadResourceRequest) (*mcpsdk.ReadResourceResult, error) {
	uri := ""
	if req != nil && req.Params != nil {
		uri = strings.TrimSpace(req.Params.URI)
	}
	docs := s.resourceDocs()
	content, ok := docs[uri]
	if !ok {
		return nil, mcpsdk.ResourceNotFoundError(uri)
	}
	return &mcpsdk.ReadResourceResult{
		Contents: []*mcpsdk.ResourceContents{{
			URI:      uri,
			MIMEType: "text/markdown",
			Text:     content,
		}},
	}, nil
}
