package mcp

import (
	"context"
	"encoding/base64"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/zotmcp/client"
)

type uploadAttachmentToolInput struct {
	ItemKey         string `json:"item_key" jsonschema:"Parent item key"`
	FilePath        string `json:"file_path,omitempty" jsonschema:"Local file to attach"`
	FileURL         string `json:"file_url,omitempty" jsonschema:"http(s) URL to download and attach"`
	FileBytesBase64 string `json:"file_bytes_base64,omitempty" jsonschema:"File content as base64"`
	Filename        string `json:"filename,omitempty" jsonschema:"Stored filename; required with file_bytes_base64"`
	Title           string `json:"title,omitempty" jsonschema:"Attachment title (defaults to the filename)"`
	ContentType     string `json:"content_type,omitempty" jsonschema:"MIME type override"`
}

type uploadAttachmentToolOutput struct {
	AttachmentKey string `json:"attachment_key"`
	ParentItemKey string `json:"parent_item_key"`
	Title         string `json:"title"`
	ContentType   string `json:"content_type"`
	Size          int64  `json:"size"`
	Version       int    `json:"version"`
	UploadStatus  string `json:"upload_status"`
}

func (s *server) handleUploadAttachmentTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input uploadAttachmentToolInput) (*mcpsdk.CallToolResult, uploadAttachmentToolOutput, error) {
	if strings.TrimSpace(input.ItemKey) == "" {
		return nil, uploadAttachmentToolOutput{}, toolValidationError("item_key is required and must be a non-empty string.")
	}
	filePath := strings.TrimSpace(input.FilePath)
	fileURL := strings.TrimSpace(input.FileURL)
	fileB64 := strings.TrimSpace(input.FileBytesBase64)
	sources := 0
	for _, src := range []string{filePath, fileURL, fileB64} {
		if src != "" {
			sources++
		}
	}
	if sources != 1 {
		return nil, uploadAttachmentToolOutput{}, toolValidationError("Provide exactly one of file_path, file_url, or file_bytes_base64.")
	}

	req := client.UploadRequest{
		ItemKey:     input.ItemKey,
		Filename:    input.Filename,
		Title:       input.Title,
		ContentType: input.ContentType,
	}
	switch {
	case fileB64 != "":
		decoded, err := base64.StdEncoding.DecodeString(fileB64)
		if err != nil {
			return nil, uploadAttachmentToolOutput{}, toolValidationError("file_bytes_base64 must be valid base64.")
		}
		if int64(len(decoded)) > s.upstream.MaxUploadBytes() {
			return nil, uploadAttachmentToolOutput{}, toolValidationError("file_bytes exceeds upload size limit.")
		}
		if strings.TrimSpace(input.Filename) == "" {
			return nil, uploadAttachmentToolOutput{}, toolValidationError("filename is required when using file_bytes_base64.")
		}
		req.Bytes = decoded
	case filePath != "":
		req.Path = filePath
	default:
		req.URL = fileURL
	}

	result, err := s.upstream.UploadAttachment(ctx, req)
	if err != nil {
		return nil, uploadAttachmentToolOutput{}, err
	}
	return nil, uploadResultOutput(result), nil
}

func uploadResultOutput(result *client.UploadResult) uploadAttachmentToolOutput {
	return uploadAttachmentToolOutput{
		AttachmentKey: result.AttachmentKey,
		ParentItemKey: result.ParentItemKey,
		Title:         result.Title,
		ContentType:   result.ContentType,
		Size:          result.Size,
		Version:       result.Version,
		UploadStatus:  string(result.Status),
	}
}

type attachArxivPDFToolInput struct {
	ItemKey string `json:"item_key" jsonschema:"Parent item key"`
	ArxivID string `json:"arxiv_id" jsonschema:"arXiv identifier, arXiv: form, or arxiv.org URL"`
	Title   string `json:"title,omitempty" jsonschema:"Attachment title override"`
}

type attachArxivPDFToolOutput struct {
	uploadAttachmentToolOutput
	ArxivID string `json:"arxiv_id"`
	PDFURL  string `json:"pdf_url"`
}

func (s *server) handleAttachArxivPDFTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input attachArxivPDFToolInput) (*mcpsdk.CallToolResult, attachArxivPDFToolOutput, error) {
	if strings.TrimSpace(input.ItemKey) == "" {
		return nil, attachArxivPDFToolOutput{}, toolValidationError("item_key is required and must be a non-empty string.")
	}
	if strings.TrimSpace(input.ArxivID) == "" {
		return nil, attachArxivPDFToolOutput{}, toolValidationError("arxiv_id is required and must be a non-empty string.")
	}
	result, err := s.upstream.AttachArxivPDF(ctx, client.ArxivAttachRequest{
		ItemKey: input.ItemKey,
		ArxivID: input.ArxivID,
		Title:   input.Title,
	})
	if err != nil {
		return nil, attachArxivPDFToolOutput{}, err
	}
	return nil, attachArxivPDFToolOutput{
		uploadAttachmentToolOutput: uploadResultOutput(&result.UploadResult),
		ArxivID:                    result.ArxivID,
		PDFURL:                     result.PDFURL,
	}, nil
}
