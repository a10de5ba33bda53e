package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"

	"pkt.systems/pslog"
	"pkt.systems/zotmcp/client"
	"pkt.systems/zotmcp/internal/correlation"
	"pkt.systems/zotmcp/internal/svcfields"
	"pkt.systems/zotmcp/mcp"
)

// newUpstreamClient assembles a Zotero client from the same config chain the
// server uses: flags, environment, and the optional config file.
func newUpstreamClient(baseLogger pslog.Logger) (*client.Client, error) {
	if _, err := loadConfigFile(); err != nil {
		return nil, err
	}
	var cfg mcp.Config
	if err := bindConfig(&cfg); err != nil {
		return nil, err
	}
	logger := baseLogger
	if level, ok := pslog.ParseLevel(strings.TrimSpace(viper.GetString("log-level"))); ok {
		logger = logger.LogLevel(level)
	}
	upstreamCfg := cfg.ClientConfig()
	upstreamCfg.Logger = svcfields.WithSubsystem(logger, "cli.ops")
	return client.New(upstreamCfg)
}

func commandContextWithCorrelation(cmd *cobra.Command) (context.Context, string) {
	return correlation.Ensure(cmd.Context())
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func formatExt(path string) string {
	return strings.ToLower(filepath.Ext(path))
}

func convertYAMLToJSON(path string, data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml %s: %w", path, err)
	}
	return json.Marshal(yamlToJSON(doc))
}

// yamlToJSON rewrites yaml.v2's map[any]any trees into JSON-marshalable
// map[string]any trees.
func yamlToJSON(v any) any {
	switch val := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			key := fmt.Sprint(k)
			out[key] = yamlToJSON(v)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, v := range val {
			out[k] = yamlToJSON(v)
		}
		return out
	case []any:
		slice := make([]any, len(val))
		for i, elem := range val {
			slice[i] = yamlToJSON(elem)
		}
		return slice
	default:
		return val
	}
}

func newSearchCommand(baseLogger pslog.Logger) *cobra.Command {
	var limit int
	var start int
	var sort string
	var tags []string
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the library and print one page of results as JSON",
		Example: `  # Recent journal articles about spin glasses
  zotmcp search "spin glass" --limit 5 --sort date

  # Exact lookup by identifier
  zotmcp search 10.1103/PhysRevLett.35.1792`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newUpstreamClient(baseLogger)
			if err != nil {
				return err
			}
			ctx, _ := commandContextWithCorrelation(cmd)
			res, err := cli.SearchItems(ctx, client.SearchRequest{
				Query: args[0],
				Limit: limit,
				Start: start,
				Sort:  sort,
				Tags:  tags,
			})
			if err != nil {
				return err
			}
			out := map[string]any{
				"items":      res.Items,
				"total":      res.Total,
				"next_start": res.NextStart,
			}
			if res.SortUsed != "" {
				out["sort_used"] = res.SortUsed
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "page size, 1 through 100 (default 25)")
	cmd.Flags().IntVar(&start, "start", 0, "pagination offset of the first result")
	cmd.Flags().StringVar(&sort, "sort", "", "sort order (default relevance)")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "restrict to items carrying this tag (repeatable)")
	return cmd
}

func newGetCommand(baseLogger pslog.Logger) *cobra.Command {
	var children bool
	cmd := &cobra.Command{
		Use:           "get <item-key>",
		Short:         "Fetch a single item as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newUpstreamClient(baseLogger)
			if err != nil {
				return err
			}
			ctx, _ := commandContextWithCorrelation(cmd)
			item, err := cli.GetItem(ctx, args[0])
			if err != nil {
				return err
			}
			out := map[string]any{"item": item}
			if children {
				kids, err := cli.ItemChildren(ctx, args[0])
				if err != nil {
					return err
				}
				out["children"] = kids
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}
	cmd.Flags().BoolVar(&children, "children", false, "include child attachments and notes")
	return cmd
}

func newCollectionsCommand(baseLogger pslog.Logger) *cobra.Command {
	var limit int
	var start int
	cmd := &cobra.Command{
		Use:           "collections",
		Short:         "List library collections as JSON",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cli, err := newUpstreamClient(baseLogger)
			if err != nil {
				return err
			}
			ctx, _ := commandContextWithCorrelation(cmd)
			res, err := cli.Collections(ctx, limit, start)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"collections": res.Collections,
				"total":       res.Total,
				"next_start":  res.NextStart,
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "page size, 1 through 100 (default 25)")
	cmd.Flags().IntVar(&start, "start", 0, "pagination offset of the first collection")
	return cmd
}

type createItemCreator struct {
	CreatorType string `json:"creator_type" yaml:"creator_type"`
	Name        string `json:"name" yaml:"name"`
	FirstName   string `json:"first_name" yaml:"first_name"`
	LastName    string `json:"last_name" yaml:"last_name"`
}

type createItemFile struct {
	ItemType string              `json:"item_type" yaml:"item_type"`
	Title    string              `json:"title" yaml:"title"`
	Creators []createItemCreator `json:"creators" yaml:"creators"`
	Date     string              `json:"date" yaml:"date"`
	DOI      string              `json:"doi" yaml:"doi"`
	URL      string              `json:"url" yaml:"url"`
	Abstract string              `json:"abstract" yaml:"abstract"`
	Tags     []string            `json:"tags" yaml:"tags"`
	Extra    string              `json:"extra" yaml:"extra"`
}

// decodeCreateItemFile parses item metadata from JSON or, when the path
// carries a .yaml/.yml extension, from YAML converted to JSON first.
func decodeCreateItemFile(path string, data []byte) (client.CreateItemRequest, error) {
	payload := data
	switch formatExt(path) {
	case ".yaml", ".yml":
		converted, err := convertYAMLToJSON(path, data)
		if err != nil {
			return client.CreateItemRequest{}, err
		}
		payload = converted
	}
	var doc createItemFile
	if err := json.Unmarshal(payload, &doc); err != nil {
		return client.CreateItemRequest{}, fmt.Errorf("parse item metadata %s: %w", path, err)
	}
	req := client.CreateItemRequest{
		ItemType: doc.ItemType,
		Title:    doc.Title,
		Date:     doc.Date,
		DOI:      doc.DOI,
		URL:      doc.URL,
		Abstract: doc.Abstract,
		Tags:     doc.Tags,
		Extra:    doc.Extra,
	}
	for _, c := range doc.Creators {
		req.Creators = append(req.Creators, client.Creator{
			CreatorType: c.CreatorType,
			Name:        c.Name,
			FirstName:   c.FirstName,
			LastName:    c.LastName,
		})
	}
	return req, nil
}

func newCreateCommand(baseLogger pslog.Logger) *cobra.Command {
	var inputPath string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a library item from a metadata file",
		Example: `  # Item metadata from YAML
  zotmcp create -f item.yaml

  # Item metadata from JSON on stdin
  cat item.json | zotmcp create -f -`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if inputPath == "" {
				return fmt.Errorf("provide item metadata with --file")
			}
			data, err := readInput(inputPath)
			if err != nil {
				return err
			}
			req, err := decodeCreateItemFile(inputPath, data)
			if err != nil {
				return err
			}
			cli, err := newUpstreamClient(baseLogger)
			if err != nil {
				return err
			}
			ctx, _ := commandContextWithCorrelation(cmd)
			res, err := cli.CreateItem(ctx, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"item_key": res.Key,
				"version":  res.Version,
				"item":     res.Item,
			})
		},
	}
	cmd.Flags().StringVarP(&inputPath, "file", "f", "", "item metadata file, .json or .yaml (use - for JSON on stdin)")
	return cmd
}

func uploadSummary(res *client.UploadResult) map[string]any {
	return map[string]any{
		"attachment_key":  res.AttachmentKey,
		"parent_item_key": res.ParentItemKey,
		"title":           res.Title,
		"content_type":    res.ContentType,
		"size":            res.Size,
		"version":         res.Version,
		"upload_status":   string(res.Status),
	}
}

func newAttachCommand(baseLogger pslog.Logger) *cobra.Command {
	var fileURL string
	var arxivID string
	var filename string
	var title string
	var contentType string
	cmd := &cobra.Command{
		Use:   "attach <item-key> [file]",
		Short: "Upload an attachment from a file, a URL, or an arXiv identifier",
		Example: `  # Attach a local PDF
  zotmcp attach ABCD1234 paper.pdf

  # Attach a remote file
  zotmcp attach ABCD1234 --url https://example.org/paper.pdf

  # Attach the canonical arXiv PDF
  zotmcp attach ABCD1234 --arxiv 2101.01234`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemKey := args[0]
			filePath := ""
			if len(args) == 2 {
				filePath = args[1]
			}
			sources := 0
			for _, set := range []bool{filePath != "", fileURL != "", arxivID != ""} {
				if set {
					sources++
				}
			}
			if sources != 1 {
				return fmt.Errorf("provide exactly one of a file path, --url, or --arxiv")
			}
			cli, err := newUpstreamClient(baseLogger)
			if err != nil {
				return err
			}
			ctx, _ := commandContextWithCorrelation(cmd)
			if arxivID != "" {
				res, err := cli.AttachArxivPDF(ctx, client.ArxivAttachRequest{
					ItemKey: itemKey,
					ArxivID: arxivID,
					Title:   title,
				})
				if err != nil {
					return err
				}
				out := uploadSummary(&res.UploadResult)
				out["arxiv_id"] = res.ArxivID
				out["pdf_url"] = res.PDFURL
				return writeJSON(cmd.OutOrStdout(), out)
			}
			res, err := cli.UploadAttachment(ctx, client.UploadRequest{
				ItemKey:     itemKey,
				Path:        filePath,
				URL:         fileURL,
				Filename:    filename,
				Title:       title,
				ContentType: contentType,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), uploadSummary(res))
		},
	}
	cmd.Flags().StringVar(&fileURL, "url", "", "download the payload from this URL")
	cmd.Flags().StringVar(&arxivID, "arxiv", "", "attach the canonical PDF for this arXiv id or URL")
	cmd.Flags().StringVar(&filename, "filename", "", "stored filename (default derived from the source)")
	cmd.Flags().StringVar(&title, "title", "", "attachment title (default the filename)")
	cmd.Flags().StringVar(&contentType, "content-type", "", "payload content type (default inferred)")
	return cmd
}
