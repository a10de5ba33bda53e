package client

import (
	"bytes"
	"context"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"

	"pkt.systems/zotmcp/internal/correlation"
	"pkt.systems/zotmcp/internal/jsonutil"
)

// transportRetry runs fn until it returns a response, the context ends, or
// transport attempts are exhausted. Unlike the API executor it never retries
// on HTTP status; it exists for calls where a delivered request must not be
// repeated, such as one-time upload tokens and external downloads.
func (c *Client) transportRetry(ctx context.Context, stage string, fn func(context.Context) (*apiResponse, error)) (*apiResponse, error) {
	ctx, cid := correlation.Ensure(ctx)
	for attempt := 0; ; attempt++ {
		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		apiErr := &APIError{
			Kind:          KindUpstreamUnavailable,
			Detail:        err.Error(),
			CorrelationID: cid,
			cause:         err,
		}
		if attempt+1 >= c.maxAttempts {
			c.logWarnCtx(ctx, "retry.exhausted", "stage", stage, "attempts", attempt+1, "kind", apiErr.Kind)
			return nil, apiErr
		}
		delay := retryDelay(attempt, 0, c.baseDelay, c.maxDelay)
		c.metrics.observeRetry(apiErr.Kind)
		c.logInfoCtx(ctx, "retry.attempt", "attempt", attempt+1, "delay", delay, "kind", apiErr.Kind, "stage", stage)
		if werr := c.wait(ctx, delay); werr != nil {
			return nil, werr
		}
	}
}

// fetchURL downloads an external resource with the upload timeout per
// attempt. The body read is capped just above the upload ceiling so an
// oversized response can be rejected without buffering all of it.
func (c *Client) fetchURL(ctx context.Context, target string) (*apiResponse, error) {
	return c.transportRetry(ctx, "fetch", func(ctx context.Context) (*apiResponse, error) {
		reqCtx, cancel := c.requestContext(ctx, c.uploadTimeout)
		defer cancel()
		req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", c.userAgent)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		body, err := io.ReadAll(io.LimitReader(resp.Body, c.uploadMaxBytes+1))
		if err != nil {
			return nil, err
		}
		return &apiResponse{status: resp.StatusCode, header: resp.Header.Clone(), body: body}, nil
	})
}

// remoteFile is a downloaded file_url payload with what the server said
// about it.
type remoteFile struct {
	bytes       []byte
	filename    string
	contentType string
}

// downloadFile fetches a caller-supplied URL as an attachment byte source.
// HTTP error statuses surface as a single flat upstream error since foreign
// servers do not share the API's error semantics.
func (c *Client) downloadFile(ctx context.Context, fileURL string) (*remoteFile, error) {
	resp, err := c.fetchURL(ctx, fileURL)
	if err != nil {
		return nil, err
	}
	if resp.status < 200 || resp.status >= 300 {
		return nil, &APIError{
			Kind:          KindUpstreamError,
			Status:        resp.status,
			Detail:        "Download failed.",
			Body:          []byte(jsonutil.CaptureBody(bytes.NewReader(resp.body), defaultBodyCaptureBytes)),
			CorrelationID: correlation.From(ctx),
		}
	}
	if int64(len(resp.body)) > c.uploadMaxBytes {
		return nil, validationError("file_url exceeds upload size limit.")
	}
	filename := filenameFromContentDisposition(resp.header.Get("Content-Disposition"))
	if filename == "" {
		filename = filenameFromURL(fileURL)
	}
	contentType := resp.header.Get("Content-Type")
	if i := strings.Index(contentType, ";"); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	return &remoteFile{bytes: resp.body, filename: filename, contentType: contentType}, nil
}

// filenameFromContentDisposition pulls a filename or filename* parameter out
// of a Content-Disposition header, tolerating the sloppy quoting real
// servers produce.
func filenameFromContentDisposition(value string) string {
	for _, part := range strings.Split(value, ";") {
		part = strings.TrimSpace(part)
		lowered := strings.ToLower(part)
		if !strings.HasPrefix(lowered, "filename*=") && !strings.HasPrefix(lowered, "filename=") {
			continue
		}
		_, name, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		name = strings.TrimSpace(name)
		if strings.HasPrefix(strings.ToLower(name), "utf-8''") {
			name = name[len("utf-8''"):]
		}
		name = strings.Trim(name, `"'`)
		if name != "" {
			return name
		}
	}
	return ""
}

func filenameFromURL(fileURL string) string {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return ""
	}
	p := parsed.Path
	if i := strings.LastIndex(p, "/"); i >= 0 {
		p = p[i+1:]
	}
	return p
}

// inferContentType guesses a media type from the filename extension.
func inferContentType(filename string) string {
	if t := mime.TypeByExtension(filepath.Ext(filename)); t != "" {
		if i := strings.Index(t, ";"); i >= 0 {
			t = strings.TrimSpace(t[:i])
		}
		return t
	}
	return "application/octet-stream"
}
