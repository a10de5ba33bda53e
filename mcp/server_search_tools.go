package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"pkt.systems/zotmcp/client"
)

type searchItemsToolInput struct {
	Query  string   `json:"query" jsonschema:"Full-text query, or a DOI / arXiv identifier for an exact lookup"`
	Limit  int      `json:"limit,omitempty" jsonschema:"Page size, 1-100 (default 25)"`
	Start  int      `json:"start,omitempty" jsonschema:"Offset of the first result"`
	Offset *int     `json:"offset,omitempty" jsonschema:"Alias for start; provide only one of the two"`
	Sort   string   `json:"sort,omitempty" jsonschema:"Sort key (default relevance); see zotero_get_sort_values"`
	Tags   []string `json:"tags,omitempty" jsonschema:"Only items carrying every listed tag match"`
}

type searchItemsToolOutput struct {
	Items     []normalizedItem `json:"items"`
	Total     int              `json:"total"`
	NextStart int              `json:"next_start,omitempty"`
	SortUsed  string           `json:"sort_used,omitempty"`
}

func (s *server) handleSearchItemsTool(ctx context.Context, _ *mcpsdk.CallToolRequest, input searchItemsToolInput) (*mcpsdk.CallToolResult, searchItemsToolOutput, error) {
	start := input.Start
	if start < 0 {
		return nil, searchItemsToolOutput{}, toolValidationError("start must be greater than or equal to 0.")
	}
	if input.Offset != nil {
		offset := *input.Offset
		if offset < 0 {
			return nil, searchItemsToolOutput{}, toolValidationError("offset must be greater than or equal to 0.")
		}
		if start != 0 && offset != start {
			return nil, searchItemsToolOutput{}, toolValidationError("Provide only one of start or offset.")
		}
		if start == 0 {
			start = offset
		}
	}

	result, err := s.upstream.SearchItems(ctx, client.SearchRequest{
		Query: input.Query,
		Limit: input.Limit,
		Sort:  input.Sort,
		Start: start,
		Tags:  input.Tags,
	})
	if err != nil {
		return nil, searchItemsToolOutput{}, err
	}

	out := searchItemsToolOutput{
		Items:     normalizeItems(result.Items),
		Total:     result.Total,
		NextStart: result.NextStart,
	}
	if result.SortUsed != result.SortRequested {
		out.SortUsed = result.SortUsed
	}
	return nil, out, nil
}

type sortValuesToolInput struct{}

type sortValuesToolOutput struct {
	Values   []string `json:"values"`
	Default  string   `json:"default"`
	Fallback string   `json:"fallback"`
}

func (s *server) handleGetSortValuesTool(_ context.Context, _ *mcpsdk.CallToolRequest, _ sortValuesToolInput) (*mcpsdk.CallToolResult, sortValuesToolOutput, error) {
	return nil, sortValuesToolOutput{
		Values:   client.SortValues(),
		Default:  client.DefaultSort,
		Fallback: client.FallbackSort,
	}, nil
}
