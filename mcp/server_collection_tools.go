package mcp

import (
	"context"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

type listCollectionsToolInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Page size, 1-100 (default 25)"`
	Start int `json:"start,omitempty" jsonschema:"Offset of the first collection"`
}

type listCollectionsToolOutput struct {
	Collections []normalizedCollection `json:"collections"`
	Total       int                    `json:"total"`
	NextStart   int                    `json:"next_start,omitempty"`
}

func (s *server) handleListCollectionsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input listCollectionsToolInput) (*mcpsdk.CallToolResult, listCollectionsToolOutput, error) {
	result, err := s.upstream.Collections(ctx, input.Limit, input.Start)
	if err != nil {
		return nil, listCollectionsToolOutput{}, err
	}
	return nil, listCollectionsToolOutput{
		Collections: normalizeCollections(result.Collections),
		Total:       result.Total,
		NextStart:   result.NextStart,
	}, nil
}

type addItemToCollectionToolInput struct {
	ItemKey        string `json:"item_key" jsonschema:"Item to file"`
	CollectionKey  string `json:"collection_key,omitempty" jsonschema:"Target collection key; wins over collection_name"`
	CollectionName string `json:"collection_name,omitempty" jsonschema:"Target collection name, matched case-insensitively"`
}

type addItemToCollectionToolOutput struct {
	ItemKey       string `json:"item_key"`
	CollectionKey string `json:"collection_key"`
}

func (s *server) handleAddItemToCollectionTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input addItemToCollectionToolInput) (*mcpsdk.CallToolResult, addItemToCollectionToolOutput, error) {
	itemKey := strings.TrimSpace(input.ItemKey)
	if itemKey == "" {
		return nil, addItemToCollectionToolOutput{}, toolValidationError("item_key is required and must be a non-empty string.")
	}
	key := strings.TrimSpace(input.CollectionKey)
	name := strings.TrimSpace(input.CollectionName)
	if key == "" && name == "" {
		return nil, addItemToCollectionToolOutput{}, toolValidationError("Provide collection_key or collection_name.")
	}

	if key == "" {
		matches, err := s.upstream.FindCollectionsByName(ctx, name)
		if err != nil {
			return nil, addItemToCollectionToolOutput{}, err
		}
		switch len(matches) {
		case 0:
			return nil, addItemToCollectionToolOutput{}, &collectionNotFoundError{Name: name}
		case 1:
			key = matches[0]
		default:
			return nil, addItemToCollectionToolOutput{}, &AmbiguousCollectionError{Name: name, Matches: matches}
		}
	}

	if err := s.upstream.AddItemToCollection(ctx, itemKey, key); err != nil {
		return nil, addItemToCollectionToolOutput{}, err
	}
	return nil, addItemToCollectionToolOutput{ItemKey: itemKey, CollectionKey: key}, nil
}
