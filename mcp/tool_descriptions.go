package mcp

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"pkt.systems/zotmcp/client"
)

const (
	toolSearchItems         = "zotero_search_items"
	toolGetItem             = "zotero_get_item"
	toolGetSortValues       = "zotero_get_sort_values"
	toolListCollections     = "zotero_list_collections"
	toolCreateItem          = "zotero_create_item"
	toolUploadAttachment    = "zotero_upload_attachment"
	toolAttachArxivPDF      = "zotero_attach_arxiv_pdf"
	toolAddItemToCollection = "zotero_add_item_to_collection"
)

var mcpToolNames = []string{
	toolSearchItems,
	toolGetItem,
	toolGetSortValues,
	toolListCollections,
	toolCreateItem,
	toolUploadAttachment,
	toolAttachArxivPDF,
	toolAddItemToCollection,
}

type toolContract struct {
	Top      []string
	Purpose  string
	UseWhen  string
	Requires string
	Effects  string
	Retry    string
	Next     string
}

func formatToolDescription(spec toolContract) string {
	lines := make([]string, 0, len(spec.Top)+6)
	for _, line := range spec.Top {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	lines = append(lines, []string{
		"Purpose: " + spec.Purpose,
		"Use when: " + spec.UseWhen,
		"Requires: " + spec.Requires,
		"Effects: " + spec.Effects,
		"Retry: " + spec.Retry,
	}...)
	if strings.Contains(spec.Next, "\n") {
		lines = append(lines, "Next:\n"+spec.Next)
	} else {
		lines = append(lines, "Next: "+spec.Next)
	}
	return strings.Join(lines, "\n")
}

const (
	errorEnvelopeLine  = "ERRORS: Failures return {\"error\": {\"code\", \"message\", \"details\"}}; details.retryable reports whether retrying the same call can help."
	paginationLine     = "PAGINATION: Re-issue the same call with start=next_start until the response omits next_start."
	uploadPartialLine  = "PARTIAL STATE: On failure after the child item exists, details carries attachment_key and upload_step; re-running the tool does not duplicate stored bytes when content is unchanged."
	writeOnceLine      = "NON-IDEMPOTENT: Each successful call creates a new library item; do not blind-retry after an ambiguous outcome, search for the item first."
	readRetryLine      = "Safe to retry; this is a read operation."
	retryableCodesLine = "Retry only when details.retryable is true (ZOTERO_RATE_LIMITED, ZOTERO_UPSTREAM_ERROR, ZOTERO_UPSTREAM_UNAVAILABLE); honor details.retry_after_seconds when present."
)

func buildToolDescriptions(cfg Config) map[string]string {
	uploadMax := cfg.UploadMaxBytes
	if uploadMax <= 0 {
		uploadMax = client.DefaultUploadMaxBytes
	}
	uploadCeiling := humanize.IBytes(uint64(uploadMax))

	return map[string]string{
		toolSearchItems: formatToolDescription(toolContract{
			Top: []string{
				errorEnvelopeLine,
				paginationLine,
			},
			Purpose:  "Search the Zotero library by full-text query, DOI, or arXiv identifier.",
			UseWhen:  "You need to locate items before reading, citing, or filing them, or you need to check whether a paper is already in the library.",
			Requires: fmt.Sprintf("`query` is required. Optional `limit` (1-100, default 25), `start`, `sort` (default %q), and `tags` (every listed tag must match). A query that is itself a DOI or arXiv id switches to exact identifier matching.", client.DefaultSort),
			Effects:  fmt.Sprintf("Returns normalized `items`, the upstream `total`, `next_start` when more pages exist, and `sort_used` when the requested sort was rejected and %q was substituted.", client.FallbackSort),
			Retry:    readRetryLine,
			Next:     "call `" + toolGetItem + "` with an item_key for full metadata and attachments.",
		}),
		toolGetItem: formatToolDescription(toolContract{
			Top: []string{
				errorEnvelopeLine,
			},
			Purpose:  "Fetch one item with full normalized metadata and its attachment listing.",
			UseWhen:  "You have an item_key from search results and need creators, abstract, identifiers, or the attached files.",
			Requires: "`item_key` is required.",
			Effects:  "Returns the normalized `item` including an `attachments` array (always present, possibly empty).",
			Retry:    readRetryLine,
			Next:     "file the item with `" + toolAddItemToCollection + "` or add a PDF with `" + toolUploadAttachment + "`.",
		}),
		toolGetSortValues: formatToolDescription(toolContract{
			Purpose:  "List the sort keys the search tool understands.",
			UseWhen:  "You want to order search results and need the accepted `sort` values.",
			Requires: "No arguments.",
			Effects:  fmt.Sprintf("Returns the known `values` plus the `default` (%s) and the `fallback` (%s) used when the upstream rejects a sort.", client.DefaultSort, client.FallbackSort),
			Retry:    "Safe to retry; the answer is static.",
			Next:     "pass a listed value as `sort` to `" + toolSearchItems + "`.",
		}),
		toolListCollections: formatToolDescription(toolContract{
			Top: []string{
				errorEnvelopeLine,
				paginationLine,
			},
			Purpose:  "List library collections with their keys, names, and hierarchy.",
			UseWhen:  "You need a collection_key for filing items, or an overview of how the library is organized.",
			Requires: "Optional `limit` (1-100, default 25) and `start`.",
			Effects:  "Returns `collections` with parent keys and item counts, the `total`, and `next_start` when more pages exist.",
			Retry:    readRetryLine,
			Next:     "use a returned collection_key with `" + toolAddItemToCollection + "`.",
		}),
		toolCreateItem: formatToolDescription(toolContract{
			Top: []string{
				errorEnvelopeLine,
				writeOnceLine,
			},
			Purpose:  "Create a new library item from a typed template.",
			UseWhen:  "A paper or reference is missing from the library and you have its metadata.",
			Requires: "`item_type` and `title` are required. Optional `creators` (each needs `creator_type` plus `name` or `first_name`/`last_name`), `date`, `doi`, `url`, `abstract`, `tags`, and `extra`.",
			Effects:  "Fetches the upstream template for `item_type`, merges the fields, posts the item, and returns `item_key`, `version`, and the merged `item`.",
			Retry:    retryableCodesLine + " " + "After an ambiguous failure, search by title or DOI before retrying.",
			Next:     "attach the PDF with `" + toolUploadAttachment + "` or `" + toolAttachArxivPDF + "`, then file it with `" + toolAddItemToCollection + "`.",
		}),
		toolUploadAttachment: formatToolDescription(toolContract{
			Top: []string{
				errorEnvelopeLine,
				uploadPartialLine,
			},
			Purpose:  "Attach a file to an existing item from a local path, a URL, or inline base64 bytes.",
			UseWhen:  "An item needs its PDF or supplementary file stored in the library.",
			Requires: fmt.Sprintf("`item_key` plus exactly one of `file_path`, `file_url`, or `file_bytes_base64` (`filename` is required with bytes). Optional `title` and `content_type`. Files above %s are rejected.", uploadCeiling),
			Effects:  "Creates an imported_file child item, transfers the bytes through Zotero's authorize/upload/register flow, and returns the attachment key, size, and `upload_status` (`registered`, or `exists` when the upstream already holds identical content).",
			Retry:    retryableCodesLine,
			Next:     "verify with `" + toolGetItem + "`; the new attachment appears in its `attachments` array.",
		}),
		toolAttachArxivPDF: formatToolDescription(toolContract{
			Top: []string{
				errorEnvelopeLine,
				uploadPartialLine,
			},
			Purpose:  "Download an arXiv paper's PDF and attach it to an existing item in one step.",
			UseWhen:  "An item refers to an arXiv paper and you want its PDF in the library without downloading it yourself.",
			Requires: fmt.Sprintf("`item_key` and `arxiv_id` (bare id, `arXiv:` form, or an arxiv.org URL) are required. Optional `title` overrides the attachment title. PDFs above %s are rejected.", uploadCeiling),
			Effects:  "Fetches the canonical PDF, verifies it is one, uploads it as an imported_file child, and returns the attachment fields plus the normalized `arxiv_id` and the `pdf_url` used.",
			Retry:    retryableCodesLine,
			Next:     "verify with `" + toolGetItem + "`.",
		}),
		toolAddItemToCollection: formatToolDescription(toolContract{
			Top: []string{
				errorEnvelopeLine,
			},
			Purpose:  "File an existing item into a collection by key or by name.",
			UseWhen:  "An item should appear in a collection and you know the collection's key or its exact name.",
			Requires: "`item_key` plus `collection_key` or `collection_name`. A key wins when both are given. A name that matches several collections fails with ZOTERO_AMBIGUOUS_COLLECTION and lists the candidate keys in details.matches.",
			Effects:  "Adds the collection to the item's membership and returns the resolved `item_key` and `collection_key`.",
			Retry:    "Safe to re-run; membership is a set and adding twice is a no-op.",
			Next:     "list the collection's contents upstream or continue filing further items.",
		}),
	}
}
