package client

import (
	"context"
	"net/url"
	"slices"
	"strconv"
	"strings"
)

const (
	collectionsLimitDefault = 25
	collectionsLimitMax     = 100

	// collectionsWalkPageSize is the page size used when resolving a
	// collection name across the whole library.
	collectionsWalkPageSize = 100
)

// CollectionsResult is one page of the collection listing.
type CollectionsResult struct {
	Collections []Collection
	// Total is the upstream collection count.
	Total int
	// NextStart is the offset of the next page; zero means there is none.
	NextStart int
}

// Collections lists the library's collections one page at a time.
func (c *Client) Collections(ctx context.Context, limit, start int) (*CollectionsResult, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	if limit == 0 {
		limit = collectionsLimitDefault
	}
	if limit < 1 || limit > collectionsLimitMax {
		return nil, validationError("limit must be between 1 and %d.", collectionsLimitMax)
	}
	if start < 0 {
		return nil, validationError("start must be greater than or equal to 0.")
	}
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if start > 0 {
		params.Set("start", strconv.Itoa(start))
	}
	var collections []Collection
	resp, err := c.getJSON(ctx, c.userPath("collections"), params, true, &collections)
	if err != nil {
		return nil, err
	}
	result := &CollectionsResult{Collections: collections}
	if total, ok := totalResultsFromHeader(resp.header); ok {
		result.Total = total
	} else {
		result.Total = len(collections)
	}
	if next, ok := nextStartFromHeader(resp.header); ok {
		result.NextStart = next
	}
	return result, nil
}

// FindCollectionsByName walks every collection page and returns the sorted
// unique keys of collections whose name matches case-insensitively. The
// caller decides what zero, one, or several matches mean.
func (c *Client) FindCollectionsByName(ctx context.Context, name string) ([]string, error) {
	if err := c.checkCredentials(); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, validationError("collection_name must be a non-empty string.")
	}
	matches := make(map[string]struct{})
	start := 0
	for {
		page, err := c.Collections(ctx, collectionsWalkPageSize, start)
		if err != nil {
			return nil, err
		}
		for _, collection := range page.Collections {
			if collection.Key != "" && strings.EqualFold(collection.Data.Name, name) {
				matches[collection.Key] = struct{}{}
			}
		}
		if page.NextStart <= start {
			break
		}
		start = page.NextStart
	}
	keys := make([]string, 0, len(matches))
	for key := range matches {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	return keys, nil
}

// AddItemToCollection links an existing item into a collection by key.
func (c *Client) AddItemToCollection(ctx context.Context, itemKey, collectionKey string) error {
	if err := c.checkCredentials(); err != nil {
		return err
	}
	itemKey = strings.TrimSpace(itemKey)
	if itemKey == "" {
		return validationError("item_key is required and must be a non-empty string.")
	}
	collectionKey = strings.TrimSpace(collectionKey)
	if collectionKey == "" {
		return validationError("collection_key is required and must be a non-empty string.")
	}
	_, err := c.postJSON(ctx, c.userPath("collections", collectionKey, "items"), []string{itemKey}, nil)
	return err
}
