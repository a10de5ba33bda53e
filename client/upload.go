package client

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/rs/xid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"pkt.systems/zotmcp/internal/correlation"
	"pkt.systems/zotmcp/internal/jsonutil"
)

// UploadStep names a stage of the attachment upload protocol.
type UploadStep string

const (
	StepInit             UploadStep = "INIT"
	StepTemplateFetched  UploadStep = "TEMPLATE_FETCHED"
	StepChildItemCreated UploadStep = "CHILD_ITEM_CREATED"
	StepUploadAuthorized UploadStep = "UPLOAD_AUTHORIZED"
	StepBytesTransferred UploadStep = "BYTES_TRANSFERRED"
	StepRegistered       UploadStep = "REGISTERED"
)

// uploadTransitions lists the legal step successions. Authorization jumps
// straight to REGISTERED when the server already has identical bytes.
var uploadTransitions = map[UploadStep][]UploadStep{
	StepInit:             {StepTemplateFetched},
	StepTemplateFetched:  {StepChildItemCreated},
	StepChildItemCreated: {StepUploadAuthorized, StepRegistered},
	StepUploadAuthorized: {StepBytesTransferred},
	StepBytesTransferred: {StepRegistered},
}

// UploadStatus reports how an upload concluded.
type UploadStatus string

const (
	// UploadRegistered means the payload was transferred and registered.
	UploadRegistered UploadStatus = "registered"
	// UploadExists means the server already had identical bytes and the
	// transfer was skipped.
	UploadExists UploadStatus = "exists"
)

// UploadRequest describes one attachment upload. Exactly one byte source
// must be set: Path, URL, or Bytes.
type UploadRequest struct {
	// ItemKey is the parent item receiving the attachment.
	ItemKey string
	// Path uploads a local file. The stored filename is the file's base
	// name and the stored mtime is the file's modification time.
	Path string
	// URL downloads the payload from a remote location first. Filename and
	// content type are inferred from the response when not given.
	URL string
	// Bytes uploads an in-memory payload. A non-nil empty slice is a valid
	// empty payload.
	Bytes []byte
	// Filename names the stored attachment when the source does not imply
	// one. Empty falls back to "attachment".
	Filename string
	// Title labels the attachment item. Defaults to the filename.
	Title string
	// ContentType overrides the inferred payload type.
	ContentType string
}

// UploadResult reports a finished upload.
type UploadResult struct {
	AttachmentKey string
	ParentItemKey string
	Title         string
	ContentType   string
	Size          int64
	Version       int
	Status        UploadStatus
}

// uploadSpec is a fully resolved payload entering the upload protocol.
type uploadSpec struct {
	parentKey   string
	payload     []byte
	filename    string
	title       string
	contentType string
	mtime       int64
}

// uploadAuthRequest asks the API for a one-time upload destination.
type uploadAuthRequest struct {
	MD5      string `json:"md5"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Mtime    int64  `json:"mtime"`
}

// UploadAttachment resolves the byte source, validates it against the size
// ceiling before any network call, and runs the five-step upload protocol:
// template fetch, child item creation, upload authorization, byte transfer,
// registration. Failures after child creation carry the attachment key so
// the caller can reconcile the partially created state.
func (c *Client) UploadAttachment(ctx context.Context, req UploadRequest) (*UploadResult, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	itemKey := strings.TrimSpace(req.ItemKey)
	if itemKey == "" {
		return nil, validationError("item_key is required and must be a non-empty string.")
	}
	path := strings.TrimSpace(req.Path)
	fileURL := strings.TrimSpace(req.URL)
	sources := 0
	if path != "" {
		sources++
	}
	if fileURL != "" {
		sources++
	}
	if req.Bytes != nil {
		sources++
	}
	if sources != 1 {
		return nil, validationError("Provide exactly one of file_path, file_url, or file_bytes.")
	}

	filename := strings.TrimSpace(req.Filename)
	contentType := strings.TrimSpace(req.ContentType)
	var payload []byte
	mtime := c.clk.Now().Unix()

	switch {
	case path != "":
		info, err := validateUploadFile(path, c.uploadMaxBytes)
		if err != nil {
			return nil, err
		}
		payload, err = os.ReadFile(path)
		if err != nil {
			return nil, validationError("file_path is not readable.")
		}
		filename = filepath.Base(path)
		mtime = info.ModTime().Unix()
	case fileURL != "":
		if err := validateFileURL(fileURL); err != nil {
			return nil, err
		}
		remote, err := c.downloadFile(ctx, fileURL)
		if err != nil {
			return nil, err
		}
		payload = remote.bytes
		if filename == "" {
			filename = remote.filename
		}
		if contentType == "" {
			contentType = remote.contentType
		}
	default:
		if int64(len(req.Bytes)) > c.uploadMaxBytes {
			return nil, validationError("file_bytes exceeds upload size limit.")
		}
		payload = req.Bytes
	}

	if filename == "" {
		filename = "attachment"
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title = filename
	}
	if contentType == "" {
		contentType = inferContentType(filename)
	}

	return c.runUpload(ctx, uploadSpec{
		parentKey:   itemKey,
		payload:     payload,
		filename:    filename,
		title:       title,
		contentType: contentType,
		mtime:       mtime,
	})
}

func validateUploadFile(path string, maxBytes int64) (os.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, validationError("file_path does not exist.")
	}
	if !info.Mode().IsRegular() {
		return nil, validationError("file_path must point to a local file.")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, validationError("file_path is not readable.")
	}
	f.Close()
	if info.Size() > maxBytes {
		return nil, validationError("file_path exceeds upload size limit.")
	}
	return info, nil
}

func validateFileURL(fileURL string) error {
	parsed, err := url.Parse(fileURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return validationError("file_url must be http or https.")
	}
	if parsed.Host == "" {
		return validationError("file_url must include a host.")
	}
	return nil
}

// uploadSession tracks protocol progress for one attachment.
type uploadSession struct {
	id            string
	step          UploadStep
	attachmentKey string
	client        *Client
}

// advance moves the session to the next step, enforcing the protocol order.
// An illegal transition is a programming error, not an input condition.
func (s *uploadSession) advance(ctx context.Context, next UploadStep) {
	if !slices.Contains(uploadTransitions[s.step], next) {
		panic(fmt.Sprintf("zotmcp: illegal upload step transition %s -> %s", s.step, next))
	}
	from := s.step
	s.step = next
	s.client.metrics.observeUploadStep(next)
	s.client.logInfoCtx(ctx, "upload.step", "session", s.id, "from_state", from, "to_state", next)
	trace.SpanFromContext(ctx).AddEvent("upload.step", trace.WithAttributes(
		attribute.String("session", s.id),
		attribute.String("from_state", string(from)),
		attribute.String("to_state", string(next)),
	))
}

// fail stamps partial-progress context onto the error: once the child item
// exists its key rides along so the caller can reconcile state.
func (s *uploadSession) fail(ctx context.Context, err error) error {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return err
	}
	enriched := apiErr.clone()
	enriched.Step = s.step
	if s.attachmentKey != "" {
		enriched.AttachmentKey = s.attachmentKey
		s.client.logWarnCtx(ctx, "upload.partial", "session", s.id, "attachment", s.attachmentKey, "step", s.step, "kind", enriched.Kind)
	}
	return enriched
}

func (c *Client) runUpload(ctx context.Context, spec uploadSpec) (*UploadResult, error) {
	ctx, _ = correlation.Ensure(ctx)
	session := &uploadSession{id: xid.New().String(), step: StepInit, client: c}
	c.logDebugCtx(ctx, "upload.start", "session", session.id, "parent", spec.parentKey, "filename", spec.filename, "size", len(spec.payload))

	template, err := c.ItemTemplate(ctx, "attachment", "imported_file")
	if err != nil {
		return nil, session.fail(ctx, err)
	}
	session.advance(ctx, StepTemplateFetched)

	template["parentItem"] = spec.parentKey
	template["linkMode"] = "imported_file"
	template["title"] = spec.title
	template["filename"] = spec.filename
	template["contentType"] = spec.contentType

	attachmentKey, version, err := c.createItem(ctx, template)
	if err != nil {
		return nil, session.fail(ctx, err)
	}
	session.attachmentKey = attachmentKey
	session.advance(ctx, StepChildItemCreated)

	digest := md5.Sum(spec.payload)
	auth, err := c.authorizeUpload(ctx, attachmentKey, uploadAuthRequest{
		MD5:      hex.EncodeToString(digest[:]),
		Filename: spec.filename,
		Filesize: int64(len(spec.payload)),
		Mtime:    spec.mtime,
	})
	if err != nil {
		return nil, session.fail(ctx, err)
	}

	result := &UploadResult{
		AttachmentKey: attachmentKey,
		ParentItemKey: spec.parentKey,
		Title:         spec.title,
		ContentType:   spec.contentType,
		Size:          int64(len(spec.payload)),
		Version:       version,
	}

	if auth.Exists == 1 {
		session.advance(ctx, StepRegistered)
		result.Status = UploadExists
		return result, nil
	}
	session.advance(ctx, StepUploadAuthorized)

	if err := c.transferBytes(ctx, auth, spec.payload); err != nil {
		return nil, session.fail(ctx, err)
	}
	session.advance(ctx, StepBytesTransferred)

	register := map[string]string{"uploadKey": auth.UploadKey}
	if _, err := c.postJSON(ctx, c.userPath("items", attachmentKey, "file"), register, nil); err != nil {
		return nil, session.fail(ctx, err)
	}
	session.advance(ctx, StepRegistered)
	result.Status = UploadRegistered
	return result, nil
}

// authorizeUpload requests a one-time upload destination for the payload.
func (c *Client) authorizeUpload(ctx context.Context, attachmentKey string, req uploadAuthRequest) (*uploadAuthorization, error) {
	var auth uploadAuthorization
	resp, err := c.postJSON(ctx, c.userPath("items", attachmentKey, "file"), req, &auth)
	if err != nil {
		return nil, err
	}
	if auth.Exists == 1 {
		return &auth, nil
	}
	if auth.URL == "" || auth.Prefix == "" || auth.Suffix == "" || auth.UploadKey == "" {
		return nil, &APIError{
			Kind:          KindUpstreamError,
			Status:        resp.status,
			Detail:        "Upload auth response missing fields.",
			Body:          []byte(jsonutil.CaptureBody(bytes.NewReader(resp.body), defaultBodyCaptureBytes)),
			CorrelationID: correlation.From(ctx),
		}
	}
	return &auth, nil
}

// transferBytes posts the authorized one-time body to the storage URL. The
// upload token is single-use, so HTTP error statuses are never retried here;
// only pure transport failures are, since then the server cannot have
// consumed the token.
func (c *Client) transferBytes(ctx context.Context, auth *uploadAuthorization, payload []byte) error {
	body := make([]byte, 0, len(auth.Prefix)+len(payload)+len(auth.Suffix))
	body = append(body, auth.Prefix...)
	body = append(body, payload...)
	body = append(body, auth.Suffix...)

	resp, err := c.transportRetry(ctx, "transfer", func(ctx context.Context) (*apiResponse, error) {
		reqCtx, cancel := c.requestContext(ctx, c.uploadTimeout)
		defer cancel()
		httpReq, err := http.NewRequestWithContext(reqCtx, http.MethodPost, auth.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("User-Agent", c.userAgent)
		if auth.ContentType != "" {
			httpReq.Header.Set("Content-Type", auth.ContentType)
		}
		httpResp, err := c.httpClient.Do(httpReq)
		if err != nil {
			return nil, err
		}
		defer httpResp.Body.Close()
		captured, err := io.ReadAll(io.LimitReader(httpResp.Body, defaultBodyCaptureBytes))
		if err != nil {
			return nil, err
		}
		return &apiResponse{status: httpResp.StatusCode, header: httpResp.Header.Clone(), body: captured}, nil
	})
	if err != nil {
		return err
	}
	if resp.status < 200 || resp.status >= 300 {
		return &APIError{
			Kind:          classifyStatus(resp.status),
			Status:        resp.status,
			Detail:        "Upload failed.",
			RequestID:     requestIDFromHeader(resp.header),
			Body:          []byte(jsonutil.CaptureBody(bytes.NewReader(resp.body), defaultBodyCaptureBytes)),
			CorrelationID: correlation.From(ctx),
		}
	}
	return nil
}
