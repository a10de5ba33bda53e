package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"pkt.systems/zotmcp/client"
)

func TestGetItemFetchesByKey(t *testing.T) {
	var gotPath atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.Write([]byte(`{"key":"ABCD1234","version":11,"data":{"key":"ABCD1234","itemType":"journalArticle","title":"Found","DOI":"10.1234/abc"}}`))
	})
	cli, _ := newTestClient(t, handler, nil)
	item, err := cli.GetItem(context.Background(), "ABCD1234")
	if err != nil {
		t.Fatalf("get item: %v", err)
	}
	if gotPath.Load() != "/users/u1/items/ABCD1234" {
		t.Fatalf("path %v", gotPath.Load())
	}
	if item.Key != "ABCD1234" || item.Version != 11 || item.Data.Title != "Found" || item.Data.DOI != "10.1234/abc" {
		t.Fatalf("item %+v", item)
	}
}

func TestGetItemRequiresKey(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request should reach the server")
	})
	cli, _ := newTestClient(t, handler, nil)
	_, err := cli.GetItem(context.Background(), "  ")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != client.KindValidationError {
		t.Fatalf("expected validation error, got %v", err)
	}
	if !strings.Contains(apiErr.Detail, "item_key is required") {
		t.Fatalf("detail %q", apiErr.Detail)
	}
}

func TestItemChildrenListsAttachments(t *testing.T) {
	var gotPath atomic.Value
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath.Store(r.URL.Path)
		w.Write([]byte(`[
			{"key":"ATT1","version":3,"data":{"key":"ATT1","itemType":"attachment","title":"PDF","contentType":"application/pdf"}},
			{"key":"NOTE1","version":3,"data":{"key":"NOTE1","itemType":"note"}}
		]`))
	})
	cli, _ := newTestClient(t, handler, nil)
	children, err := cli.ItemChildren(context.Background(), "K1")
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if gotPath.Load() != "/users/u1/items/K1/children" {
		t.Fatalf("path %v", gotPath.Load())
	}
	if len(children) != 2 || children[0].Data.ItemType != "attachment" || children[1].Data.ItemType != "note" {
		t.Fatalf("children %+v", children)
	}
}

func TestItemTemplateObjectAndArrayForms(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/items/new" {
			t.Errorf("path %q", r.URL.Path)
		}
		switch r.URL.Query().Get("itemType") {
		case "book":
			w.Write([]byte(`{"itemType":"book","title":"","creators":[]}`))
		case "attachment":
			if r.URL.Query().Get("linkMode") != "imported_file" {
				t.Errorf("linkMode %q", r.URL.Query().Get("linkMode"))
			}
			w.Write([]byte(`[{"itemType":"attachment","linkMode":"imported_file","title":""}]`))
		default:
			t.Errorf("itemType %q", r.URL.Query().Get("itemType"))
		}
	})
	cli, _ := newTestClient(t, handler, nil)

	book, err := cli.ItemTemplate(context.Background(), "book", "")
	if err != nil {
		t.Fatalf("book template: %v", err)
	}
	if book["itemType"] != "book" {
		t.Fatalf("book template %v", book)
	}

	attachment, err := cli.ItemTemplate(context.Background(), "attachment", "imported_file")
	if err != nil {
		t.Fatalf("attachment template: %v", err)
	}
	if attachment["linkMode"] != "imported_file" {
		t.Fatalf("attachment template %v", attachment)
	}
}

func TestItemTemplateRejectsUnexpectedShape(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`42`))
	})
	cli, _ := newTestClient(t, handler, nil)
	_, err := cli.ItemTemplate(context.Background(), "book", "")
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != client.KindUpstreamError {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if apiErr.Detail != "Unexpected Zotero template response format." {
		t.Fatalf("detail %q", apiErr.Detail)
	}
}

func TestCreateItemMergesTemplateAndExtractsKey(t *testing.T) {
	var mu sync.Mutex
	var created []map[string]any
	mux := http.NewServeMux()
	mux.HandleFunc("/items/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"itemType":"journalArticle","title":"","creators":[],"volume":"","tags":[]}`))
	})
	mux.HandleFunc("/users/u1/items", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method %s", r.Method)
		}
		var posted []map[string]any
		if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
			t.Errorf("decode create payload: %v", err)
		}
		mu.Lock()
		created = posted
		mu.Unlock()
		w.Write([]byte(`{"successful":{"0":{"key":"NEW1","version":12}},"unchanged":{},"failed":{}}`))
	})
	cli, _ := newTestClient(t, mux, nil)

	result, err := cli.CreateItem(context.Background(), client.CreateItemRequest{
		ItemType: "journalArticle",
		Title:    "Enriched",
		Creators: []client.Creator{
			{CreatorType: "author", FirstName: "Ada", LastName: "Lovelace"},
			{CreatorType: "author", Name: "Collective"},
		},
		Date:     "2024",
		DOI:      "10.1234/abc",
		URL:      "https://example.com/p",
		Abstract: "About things.",
		Tags:     []string{"a", "a", "b"},
		Extra:    "arXiv: 2101.00001",
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if result.Key != "NEW1" || result.Version != 12 {
		t.Fatalf("result %+v", result)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(created) != 1 {
		t.Fatalf("create payload should hold one item, got %d", len(created))
	}
	payload := created[0]
	if payload["title"] != "Enriched" || payload["DOI"] != "10.1234/abc" || payload["abstractNote"] != "About things." {
		t.Fatalf("merged fields %v", payload)
	}
	if payload["date"] != "2024" || payload["url"] != "https://example.com/p" || payload["extra"] != "arXiv: 2101.00001" {
		t.Fatalf("merged fields %v", payload)
	}
	if _, ok := payload["volume"]; !ok {
		t.Fatalf("template fields must survive the merge: %v", payload)
	}

	creators, ok := payload["creators"].([]any)
	if !ok || len(creators) != 2 {
		t.Fatalf("creators %v", payload["creators"])
	}
	first, _ := creators[0].(map[string]any)
	if first["creatorType"] != "author" || first["firstName"] != "Ada" || first["lastName"] != "Lovelace" {
		t.Fatalf("first creator %v", first)
	}
	second, _ := creators[1].(map[string]any)
	if second["name"] != "Collective" {
		t.Fatalf("second creator %v", second)
	}
	if _, twoField := second["firstName"]; twoField {
		t.Fatalf("single-field creator must not carry firstName: %v", second)
	}

	tags, ok := payload["tags"].([]any)
	if !ok || len(tags) != 2 {
		t.Fatalf("tags %v", payload["tags"])
	}
	firstTag, _ := tags[0].(map[string]any)
	if firstTag["tag"] != "a" {
		t.Fatalf("tags %v", payload["tags"])
	}
}

func TestCreateItemValidation(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("no request should reach the server")
	})
	cli, _ := newTestClient(t, handler, nil)

	cases := []struct {
		name string
		req  client.CreateItemRequest
		want string
	}{
		{"missing item type", client.CreateItemRequest{Title: "T"}, "item_type is required"},
		{"missing title", client.CreateItemRequest{ItemType: "book"}, "title is required"},
		{
			"creator without type",
			client.CreateItemRequest{ItemType: "book", Title: "T", Creators: []client.Creator{{Name: "X"}}},
			"creator_type is required for each creator.",
		},
		{
			"creator without names",
			client.CreateItemRequest{ItemType: "book", Title: "T", Creators: []client.Creator{{CreatorType: "author"}}},
			"creators entries must include name or first_name/last_name.",
		},
		{
			"empty tag",
			client.CreateItemRequest{ItemType: "book", Title: "T", Tags: []string{" "}},
			"tags must be an array of non-empty strings.",
		},
	}
	for _, tc := range cases {
		_, err := cli.CreateItem(context.Background(), tc.req)
		var apiErr *client.APIError
		if !errors.As(err, &apiErr) || apiErr.Kind != client.KindValidationError {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if !strings.Contains(apiErr.Detail, tc.want) {
			t.Fatalf("%s: detail %q", tc.name, apiErr.Detail)
		}
	}
}

func TestCreateItemUpstreamRejection(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/items/new", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"itemType":"book","title":""}`))
	})
	mux.HandleFunc("/users/u1/items", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"successful":{},"unchanged":{},"failed":{"0":{"code":400,"message":"invalid"}}}`))
	})
	cli, _ := newTestClient(t, mux, nil)
	_, err := cli.CreateItem(context.Background(), client.CreateItemRequest{ItemType: "book", Title: "T"})
	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Kind != client.KindUpstreamError {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if apiErr.Detail != "Zotero create failed." {
		t.Fatalf("detail %q", apiErr.Detail)
	}
}
