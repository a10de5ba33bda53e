package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/zotmcp/client"
)

type getItemToolInput struct {
	ItemKey string `json:"item_key" jsonschema:"Key of the item to fetch"`
}

type getItemToolOutput struct {
	Item normalizedItemDetail `json:"item"`
}

func (s *server) handleGetItemTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input getItemToolInput) (*mcpsdk.CallToolResult, getItemToolOutput, error) {
	item, err := s.upstream.GetItem(ctx, input.ItemKey)
	if err != nil {
		return nil, getItemToolOutput{}, err
	}
	children, err := s.upstream.ItemChildren(ctx, input.ItemKey)
	if err != nil {
		return nil, getItemToolOutput{}, err
	}
	return nil, getItemToolOutput{Item: normalizeItemDetail(*item, children)}, nil
}

type createItemToolCreator struct {
	CreatorType string `json:"creator_type" jsonschema:"Creator role, e.g. author or editor"`
	Name        string `json:"name,omitempty" jsonschema:"Single-field name; wins over first_name/last_name"`
	FirstName   string `json:"first_name,omitempty" jsonschema:"Given name"`
	LastName    string `json:"last_name,omitempty" jsonschema:"Family name"`
}

type createItemToolInput struct {
	ItemType string                  `json:"item_type" jsonschema:"Zotero item type, e.g. journalArticle or preprint"`
	Title    string                  `json:"title" jsonschema:"Item title"`
	Creators []createItemToolCreator `json:"creators,omitempty" jsonschema:"Authors and other contributors"`
	Date     string                  `json:"date,omitempty" jsonschema:"Publication date"`
	DOI      string                  `json:"doi,omitempty" jsonschema:"Digital object identifier"`
	URL      string                  `json:"url,omitempty" jsonschema:"Canonical URL"`
	Abstract string                  `json:"abstract,omitempty" jsonschema:"Abstract text"`
	Tags     []string                `json:"tags,omitempty" jsonschema:"Tags to attach"`
	Extra    string                  `json:"extra,omitempty" jsonschema:"Free-form extra field"`
}

type createItemToolOutput struct {
	ItemKey string         `json:"item_key"`
	Version int            `json:"version"`
	Item    map[string]any `json:"item"`
}

func (s *server) handleCreateItemTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input createItemToolInput) (*mcpsdk.CallToolResult, createItemToolOutput, error) {
	creators := make([]client.Creator, 0, len(input.Creators))
	for _, creator := range input.Creators {
		creators = append(creators, client.Creator{
			CreatorType: creator.CreatorType,
			Name:        creator.Name,
			FirstName:   creator.FirstName,
			LastName:    creator.LastName,
		})
	}
	result, err := s.upstream.CreateItem(ctx, client.CreateItemRequest{
		ItemType: input.ItemType,
		Title:    input.Title,
		Creators: creators,
		Date:     input.Date,
		DOI:      input.DOI,
		URL:      input.URL,
		Abstract: input.Abstract,
		Tags:     input.Tags,
		Extra:    input.Extra,
	})
	if err != nil {
		return nil, createItemToolOutput{}, err
	}
	return nil, createItemToolOutput{
		ItemKey: result.Key,
		Version: result.Version,
		Item:    result.Item,
	}, nil
}
