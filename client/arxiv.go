package client

import (
	"bytes"
	"context"
	"strings"

	"pkt.systems/zotmcp/internal/correlation"
)

// ArxivPDF is a fetched arXiv document ready for upload.
type ArxivPDF struct {
	// ID is the normalized arXiv identifier.
	ID string
	// URL is the canonical PDF location the bytes came from.
	URL string
	// Bytes is the PDF payload.
	Bytes []byte
}

// FetchArxivPDF resolves an arXiv id or URL to the canonical PDF location
// and downloads it, verifying size and that the response actually is a PDF.
func (c *Client) FetchArxivPDF(ctx context.Context, arxivIDOrURL string) (*ArxivPDF, error) {
	id, err := NormalizeArxivID(arxivIDOrURL)
	if err != nil {
		return nil, err
	}
	pdfURL := ArxivPDFURL(id)
	c.logDebugCtx(ctx, "arxiv.resolved", "arxiv_id", id, "url", pdfURL)
	resp, err := c.fetchURL(ctx, pdfURL)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, c.classifyResponse(resp, correlation.From(ctx))
	}
	if len(resp.body) == 0 {
		return nil, &APIError{
			Kind:          KindUpstreamError,
			Detail:        "Empty arXiv PDF response.",
			CorrelationID: correlation.From(ctx),
		}
	}
	if int64(len(resp.body)) > c.uploadMaxBytes {
		return nil, validationError("arXiv PDF exceeds upload size limit.")
	}
	contentType := resp.header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "pdf") && !bytes.HasPrefix(resp.body, []byte("%PDF")) {
		return nil, &APIError{
			Kind:          KindUpstreamError,
			Detail:        "arXiv response was not a PDF.",
			CorrelationID: correlation.From(ctx),
		}
	}
	return &ArxivPDF{ID: id, URL: pdfURL, Bytes: resp.body}, nil
}

// ArxivAttachRequest attaches the canonical arXiv PDF to an existing item.
type ArxivAttachRequest struct {
	// ItemKey is the parent item receiving the PDF.
	ItemKey string
	// ArxivID accepts a bare id, an arxiv: form, or an abs/pdf URL.
	ArxivID string
	// Title labels the attachment. Defaults to the PDF filename.
	Title string
}

// ArxivAttachResult is the upload outcome plus the resolved identifier.
type ArxivAttachResult struct {
	UploadResult
	ArxivID string
	PDFURL  string
}

// AttachArxivPDF fetches the PDF for an arXiv identifier and uploads it as
// an attachment of the given item.
func (c *Client) AttachArxivPDF(ctx context.Context, req ArxivAttachRequest) (*ArxivAttachResult, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	itemKey := strings.TrimSpace(req.ItemKey)
	if itemKey == "" {
		return nil, validationError("item_key is required and must be a non-empty string.")
	}
	if _, ok := ParseArxivID(req.ArxivID); !ok {
		return nil, validationError("arxiv_id must be a valid arXiv identifier or URL.")
	}
	pdf, err := c.FetchArxivPDF(ctx, req.ArxivID)
	if err != nil {
		return nil, err
	}
	filename := strings.ReplaceAll(pdf.ID, "/", "_") + ".pdf"
	upload, err := c.UploadAttachment(ctx, UploadRequest{
		ItemKey:     itemKey,
		Bytes:       pdf.Bytes,
		Filename:    filename,
		Title:       req.Title,
		ContentType: "application/pdf",
	})
	if err != nil {
		return nil, err
	}
	return &ArxivAttachResult{UploadResult: *upload, ArxivID: pdf.ID, PDFURL: pdf.URL}, nil
}
