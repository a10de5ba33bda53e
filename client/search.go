package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

const (
	// DefaultSort orders search results by relevance unless the caller asks
	// otherwise.
	DefaultSort = "relevance"
	// FallbackSort substitutes a sort value the upstream rejected.
	FallbackSort = "dateModified"

	searchLimitDefault = 25
	searchLimitMax     = 100
)

// knownSortValues are the sort keys the upstream documents. Requested values
// are canonicalized against this list case-insensitively; unknown values pass
// through untouched and the upstream decides.
var knownSortValues = []string{
	"relevance",
	"dateAdded",
	"dateModified",
	"title",
	"creator",
	"date",
	"publisher",
	"publicationTitle",
	"itemType",
	"numChildren",
	"numTags",
	"language",
}

// SortValues returns the known sort keys in documented order.
func SortValues() []string {
	return append([]string(nil), knownSortValues...)
}

func canonicalSort(value string) string {
	value = strings.TrimSpace(value)
	for _, known := range knownSortValues {
		if strings.EqualFold(known, value) {
			return known
		}
	}
	return value
}

// SearchRequest describes one library search.
type SearchRequest struct {
	// Query is the full-text search term, or a DOI / arXiv identifier for an
	// exact lookup.
	Query string
	// Limit caps the page size, 1 through 100. Zero means 25.
	Limit int
	// Sort orders the results. Empty means relevance.
	Sort string
	// Start is the pagination offset of the first result.
	Start int
	// Tags restricts results to items carrying every listed tag.
	Tags []string
}

// SearchResult is one page of search results.
type SearchResult struct {
	Items []Item
	// Total is the upstream result count for the query, or the matched count
	// in identifier mode.
	Total int
	// NextStart is the offset of the next page; zero means there is none.
	NextStart int
	// SortRequested is the canonicalized sort the caller asked for.
	SortRequested string
	// SortUsed names the sort that actually produced the results. It differs
	// from SortRequested when the upstream rejected the requested sort.
	SortUsed string
}

// SearchItems queries the user library. A query that is itself a DOI or
// arXiv identifier is rewritten to the normalized identifier and the results
// are post-filtered to exact matches, in which case Total counts the matches
// and no continuation offset is reported. A sort value rejected by the
// upstream is substituted exactly once with FallbackSort; the substitution
// does not consume retry attempts.
func (c *Client) SearchItems(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, validationError("query is required and must be a non-empty string.")
	}
	limit := req.Limit
	if limit == 0 {
		limit = searchLimitDefault
	}
	if limit < 1 || limit > searchLimitMax {
		return nil, validationError("limit must be between 1 and %d.", searchLimitMax)
	}
	if req.Start < 0 {
		return nil, validationError("start must be greater than or equal to 0.")
	}
	tags := make([]string, 0, len(req.Tags))
	seen := make(map[string]struct{}, len(req.Tags))
	for _, tag := range req.Tags {
		if tag == "" {
			return nil, validationError("tags must be an array of non-empty strings.")
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	sortRequested := canonicalSort(req.Sort)
	if sortRequested == "" {
		sortRequested = DefaultSort
	}

	searchQuery := query
	exactDOI, byDOI := ExactDOIQuery(query)
	var exactArxiv ArxivID
	byArxiv := false
	if byDOI {
		searchQuery = exactDOI
	} else if exactArxiv, byArxiv = ExactArxivQuery(query); byArxiv {
		searchQuery = exactArxiv.String()
	}

	run := func(sort string) ([]Item, http.Header, error) {
		params := url.Values{}
		params.Set("q", searchQuery)
		params.Set("limit", strconv.Itoa(limit))
		params.Set("sort", sort)
		if req.Start > 0 {
			params.Set("start", strconv.Itoa(req.Start))
		}
		for _, tag := range tags {
			params.Add("tag", tag)
		}
		var items []Item
		resp, err := c.getJSON(ctx, c.userPath("items"), params, true, &items)
		if err != nil {
			return nil, nil, err
		}
		return items, resp.header, nil
	}

	sortUsed := sortRequested
	items, header, err := run(sortUsed)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != KindValidationError || sortUsed == FallbackSort {
			return nil, err
		}
		sortUsed = FallbackSort
		c.logWarnCtx(ctx, "search.sort_fallback", "requested", sortRequested, "fallback", sortUsed, "status", apiErr.Status)
		if items, header, err = run(sortUsed); err != nil {
			return nil, err
		}
	}

	if byDOI || byArxiv {
		items = filterExactMatches(items, exactDOI, exactArxiv, byArxiv)
		return &SearchResult{
			Items:         items,
			Total:         len(items),
			SortRequested: sortRequested,
			SortUsed:      sortUsed,
		}, nil
	}

	result := &SearchResult{Items: items, SortRequested: sortRequested, SortUsed: sortUsed}
	if total, ok := totalResultsFromHeader(header); ok {
		result.Total = total
	} else {
		result.Total = len(items)
	}
	if next, ok := nextStartFromHeader(header); ok {
		result.NextStart = next
	}
	return result, nil
}
