package mcp

import (
	"pkt.systems/zotmcp/client"
)

// The normalized payload shapes below are the bridge's stable output
// contract: flat snake_case fields, every list field present even when
// empty, upstream spelling quirks (DOI, abstractNote, parentCollection)
// absorbed here.

type normalizedCreator struct {
	CreatorType string `json:"creator_type"`
	Name        string `json:"name,omitempty"`
	FirstName   string `json:"first_name,omitempty"`
	LastName    string `json:"last_name,omitempty"`
}

type normalizedItem struct {
	ItemKey  string              `json:"item_key"`
	ItemType string              `json:"item_type"`
	Title    string              `json:"title"`
	Creators []normalizedCreator `json:"creators"`
	Date     string              `json:"date"`
	DOI      string              `json:"doi"`
	URL      string              `json:"url"`
	Abstract string              `json:"abstract"`
	Tags     []string            `json:"tags"`
	Extra    string              `json:"extra"`
	Version  int                 `json:"version"`
}

// normalizedItemDetail is the single-item shape: the summary fields plus the
// attachment listing, which is always present.
type normalizedItemDetail struct {
	normalizedItem
	Attachments []normalizedAttachment `json:"attachments"`
}

type normalizedAttachment struct {
	AttachmentKey string `json:"attachment_key"`
	Title         string `json:"title"`
	ContentType   string `json:"content_type,omitempty"`
	Size          *int64 `json:"size,omitempty"`
}

type normalizedCollection struct {
	CollectionKey string `json:"collection_key"`
	Name          string `json:"name"`
	ParentKey     string `json:"parent_key"`
	Version       int    `json:"version"`
	NumItems      *int   `json:"num_items,omitempty"`
}

func normalizeCreators(creators []client.Creator) []normalizedCreator {
	out := make([]normalizedCreator, 0, len(creators))
	for _, creator := range creators {
		if creator.CreatorType == "" {
			continue
		}
		entry := normalizedCreator{CreatorType: creator.CreatorType}
		if creator.Name != "" {
			entry.Name = creator.Name
		} else {
			entry.FirstName = creator.FirstName
			entry.LastName = creator.LastName
		}
		out = append(out, entry)
	}
	return out
}

func normalizeTags(tags []client.Tag) []string {
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		if tag.Tag == "" {
			continue
		}
		out = append(out, tag.Tag)
	}
	return out
}

func normalizeItem(item client.Item) normalizedItem {
	return normalizedItem{
		ItemKey:  item.Key,
		ItemType: item.Data.ItemType,
		Title:    item.Data.Title,
		Creators: normalizeCreators(item.Data.Creators),
		Date:     item.Data.Date,
		DOI:      item.Data.DOI,
		URL:      item.Data.URL,
		Abstract: item.Data.AbstractNote,
		Tags:     normalizeTags(item.Data.Tags),
		Extra:    item.Data.Extra,
		Version:  item.Version,
	}
}

func normalizeItems(items []client.Item) []normalizedItem {
	out := make([]normalizedItem, 0, len(items))
	for _, item := range items {
		out = append(out, normalizeItem(item))
	}
	return out
}

// normalizeAttachment reports false for children that are not attachments
// (notes, linked items).
func normalizeAttachment(item client.Item) (normalizedAttachment, bool) {
	if item.Data.ItemType != "attachment" {
		return normalizedAttachment{}, false
	}
	att := normalizedAttachment{
		AttachmentKey: item.Key,
		Title:         item.Data.Title,
		ContentType:   item.Data.ContentType,
	}
	if item.Data.FileSize != nil {
		att.Size = item.Data.FileSize
	} else if item.Data.Size != nil {
		att.Size = item.Data.Size
	}
	return att, true
}

func normalizeAttachments(children []client.Item) []normalizedAttachment {
	out := make([]normalizedAttachment, 0, len(children))
	for _, child := range children {
		if att, ok := normalizeAttachment(child); ok {
			out = append(out, att)
		}
	}
	return out
}

func normalizeItemDetail(item client.Item, children []client.Item) normalizedItemDetail {
	return normalizedItemDetail{
		normalizedItem: normalizeItem(item),
		Attachments:    normalizeAttachments(children),
	}
}

func normalizeCollection(col client.Collection) normalizedCollection {
	out := normalizedCollection{
		CollectionKey: col.Key,
		Name:          col.Data.Name,
		ParentKey:     string(col.Data.ParentCollection),
		Version:       col.Version,
	}
	if col.Meta.NumItems != nil {
		n := *col.Meta.NumItems
		out.NumItems = &n
	}
	return out
}

func normalizeCollections(cols []client.Collection) []normalizedCollection {
	out := make([]normalizedCollection, 0, len(cols))
	for _, col := range cols {
		out = append(out, normalizeCollection(col))
	}
	return out
}
