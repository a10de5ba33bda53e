package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"pkt.systems/zotmcp/internal/correlation"
	"pkt.systems/zotmcp/internal/jsonutil"
)

// GetItem fetches a single item with its metadata.
func (c *Client) GetItem(ctx context.Context, itemKey string) (*Item, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return nil, validationError("item_key is required and must be a non-empty string.")
	}
	var item Item
	if _, err := c.getJSON(ctx, c.userPath("items", itemKey), nil, true, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ItemChildren lists the child items of an item: attachments and notes.
func (c *Client) ItemChildren(ctx context.Context, itemKey string) ([]Item, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return nil, validationError("item_key is required and must be a non-empty string.")
	}
	var children []Item
	if _, err := c.getJSON(ctx, c.userPath("items", itemKey, "children"), nil, true, &children); err != nil {
		return nil, err
	}
	return children, nil
}

// ItemTemplate fetches the upstream's blank template for an item type.
// linkMode is only meaningful for attachment templates. The template
// endpoint is global and its responses are stable, so this read is cached.
func (c *Client) ItemTemplate(ctx context.Context, itemType, linkMode string) (map[string]any, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	itemType = strings.TrimSpace(itemType)
	if itemType == "" {
		return nil, validationError("item_type is required and must be a non-empty string.")
	}
	params := url.Values{}
	params.Set("itemType", itemType)
	if linkMode != "" {
		params.Set("linkMode", linkMode)
	}
	var raw json.RawMessage
	if _, err := c.getJSON(ctx, "/items/new", params, true, &raw); err != nil {
		return nil, err
	}
	return coerceTemplate(ctx, raw)
}

// coerceTemplate accepts the template either as an object or as a one-element
// array, which some template variants return.
func coerceTemplate(ctx context.Context, raw json.RawMessage) (map[string]any, error) {
	var object map[string]any
	if err := json.Unmarshal(raw, &object); err == nil && object != nil {
		return object, nil
	}
	var list []map[string]any
	if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 && list[0] != nil {
		return list[0], nil
	}
	return nil, &APIError{
		Kind:          KindUpstreamError,
		Detail:        "Unexpected Zotero template response format.",
		CorrelationID: correlation.From(ctx),
	}
}

// CreateItemRequest carries the caller-provided fields merged into the
// upstream item template before creation.
type CreateItemRequest struct {
	// ItemType selects the template, for example journalArticle or report.
	ItemType string
	// Title is required.
	Title string
	// Creators each need a creator type plus either a single name or a
	// first/last pair.
	Creators []Creator
	Date     string
	DOI      string
	URL      string
	Abstract string
	Tags     []string
	// Extra is the free-form extra field, often used for identifier lines.
	Extra string
}

// CreateItemResult reports the created item and the merged data that was
// sent upstream.
type CreateItemResult struct {
	Key     string
	Version int
	Item    map[string]any
}

// CreateItem fetches the type template, merges the request fields into it,
// and posts the result as a new library item.
func (c *Client) CreateItem(ctx context.Context, req CreateItemRequest) (*CreateItemResult, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	itemType := strings.TrimSpace(req.ItemType)
	if itemType == "" {
		return nil, validationError("item_type is required and must be a non-empty string.")
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, validationError("title is required and must be a non-empty string.")
	}
	creators := make([]map[string]string, 0, len(req.Creators))
	for _, creator := range req.Creators {
		creatorType := strings.TrimSpace(creator.CreatorType)
		if creatorType == "" {
			return nil, validationError("creator_type is required for each creator.")
		}
		name := strings.TrimSpace(creator.Name)
		first := strings.TrimSpace(creator.FirstName)
		last := strings.TrimSpace(creator.LastName)
		if name == "" && first == "" && last == "" {
			return nil, validationError("creators entries must include name or first_name/last_name.")
		}
		entry := map[string]string{"creatorType": creatorType}
		if name != "" {
			entry["name"] = name
		} else {
			if first != "" {
				entry["firstName"] = first
			}
			if last != "" {
				entry["lastName"] = last
			}
		}
		creators = append(creators, entry)
	}
	tags := make([]string, 0, len(req.Tags))
	seenTags := make(map[string]struct{}, len(req.Tags))
	for _, tag := range req.Tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			return nil, validationError("tags must be an array of non-empty strings.")
		}
		if _, dup := seenTags[tag]; dup {
			continue
		}
		seenTags[tag] = struct{}{}
		tags = append(tags, tag)
	}

	template, err := c.ItemTemplate(ctx, itemType, "")
	if err != nil {
		return nil, err
	}
	template["title"] = title
	if len(creators) > 0 {
		template["creators"] = creators
	}
	if req.Date != "" {
		template["date"] = req.Date
	}
	if req.DOI != "" {
		template["DOI"] = req.DOI
	}
	if req.URL != "" {
		template["url"] = req.URL
	}
	if req.Abstract != "" {
		template["abstractNote"] = req.Abstract
	}
	if len(tags) > 0 {
		tagEntries := make([]map[string]string, 0, len(tags))
		for _, tag := range tags {
			tagEntries = append(tagEntries, map[string]string{"tag": tag})
		}
		template["tags"] = tagEntries
	}
	if req.Extra != "" {
		template["extra"] = req.Extra
	}

	key, version, err := c.createItem(ctx, template)
	if err != nil {
		return nil, err
	}
	return &CreateItemResult{Key: key, Version: version, Item: template}, nil
}

// createItem posts one item and returns the created key and version from the
// first successful entry.
func (c *Client) createItem(ctx context.Context, item map[string]any) (string, int, error) {
	var created createResponse
	resp, err := c.postJSON(ctx, c.userPath("items"), []any{item}, &created)
	if err != nil {
		return "", 0, err
	}
	for _, entry := range created.Successful {
		if entry.Key != "" {
			return entry.Key, entry.Version, nil
		}
	}
	return "", 0, &APIError{
		Kind:          KindUpstreamError,
		Status:        resp.status,
		Detail:        "Zotero create failed.",
		Body:          []byte(jsonutil.CaptureBody(bytes.NewReader(resp.body), defaultBodyCaptureBytes)),
		CorrelationID: correlation.From(ctx),
	}
}
