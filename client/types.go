package client

import (
	"bytes"
	"encoding/json"
)

// Item is one library entry as the Zotero Web API returns it: the interesting
// fields typed, everything else left to the upstream.
type Item struct {
	Key     string   `json:"key"`
	Version int      `json:"version"`
	Data    ItemData `json:"data"`
	Meta    ItemMeta `json:"meta"`
}

// ItemData carries the fields of an item's data envelope the bridge reads or
// writes. Zotero spells DOI in caps.
type ItemData struct {
	Key          string    `json:"key,omitempty"`
	Version      int       `json:"version,omitempty"`
	ItemType     string    `json:"itemType,omitempty"`
	Title        string    `json:"title,omitempty"`
	Creators     []Creator `json:"creators,omitempty"`
	Date         string    `json:"date,omitempty"`
	URL          string    `json:"url,omitempty"`
	DOI          string    `json:"DOI,omitempty"`
	AbstractNote string    `json:"abstractNote,omitempty"`
	ArchiveID    string    `json:"archiveID,omitempty"`
	Extra        string    `json:"extra,omitempty"`
	DateAdded    string    `json:"dateAdded,omitempty"`
	DateModified string    `json:"dateModified,omitempty"`
	Tags         []Tag     `json:"tags,omitempty"`
	Collections  []string  `json:"collections,omitempty"`

	// Attachment-only fields. Size has appeared under two names over time.
	ParentItem  string `json:"parentItem,omitempty"`
	LinkMode    string `json:"linkMode,omitempty"`
	ContentType string `json:"contentType,omitempty"`
	Filename    string `json:"filename,omitempty"`
	MD5         string `json:"md5,omitempty"`
	FileSize    *int64 `json:"fileSize,omitempty"`
	Size        *int64 `json:"size,omitempty"`
}

// ItemMeta is the API's meta envelope.
type ItemMeta struct {
	CreatorSummary string `json:"creatorSummary,omitempty"`
	ParsedDate     string `json:"parsedDate,omitempty"`
	NumChildren    int    `json:"numChildren,omitempty"`
}

// Creator is one author/editor/etc entry. Single-field creators use Name,
// two-field creators use FirstName/LastName.
type Creator struct {
	CreatorType string `json:"creatorType,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
	Name        string `json:"name,omitempty"`
}

// Tag is one item tag.
type Tag struct {
	Tag  string `json:"tag"`
	Type int    `json:"type,omitempty"`
}

// Collection is one library collection.
type Collection struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	Data    CollectionData `json:"data"`
	Meta    CollectionMeta `json:"meta"`
}

// CollectionData carries the collection fields the bridge uses.
type CollectionData struct {
	Key              string           `json:"key,omitempty"`
	Version          int              `json:"version,omitempty"`
	Name             string           `json:"name,omitempty"`
	ParentCollection ParentCollection `json:"parentCollection,omitempty"`
}

// CollectionMeta is the API's meta envelope for collections. NumItems is a
// pointer so an explicit zero survives the round trip.
type CollectionMeta struct {
	NumCollections int  `json:"numCollections,omitempty"`
	NumItems       *int `json:"numItems,omitempty"`
}

// ParentCollection decodes Zotero's parentCollection field, which is the
// JSON literal false for top-level collections and a key string otherwise.
type ParentCollection string

func (p *ParentCollection) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("false")) || bytes.Equal(trimmed, []byte("null")) {
		*p = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(trimmed, &s); err != nil {
		*p = ""
		return nil
	}
	*p = ParentCollection(s)
	return nil
}

func (p ParentCollection) MarshalJSON() ([]byte, error) {
	if p == "" {
		return []byte("false"), nil
	}
	return json.Marshal(string(p))
}

// createResponse is the write-endpoint envelope: per-index maps of created,
// unchanged, and failed entries.
type createResponse struct {
	Successful map[string]Item `json:"successful"`
	Success    map[string]any  `json:"success"`
	Unchanged  map[string]any  `json:"unchanged"`
	Failed     map[string]struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"failed"`
}

// uploadAuthorization is the response to an upload authorization request:
// either an exact-match short-circuit (Exists) or the one-time upload target
// with its framing.
type uploadAuthorization struct {
	Exists      int    `json:"exists"`
	URL         string `json:"url"`
	ContentType string `json:"contentType"`
	Prefix      string `json:"prefix"`
	Suffix      string `json:"suffix"`
	UploadKey   string `json:"uploadKey"`
}
