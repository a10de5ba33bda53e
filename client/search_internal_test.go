package client

import (
	"net/http"
	"testing"
)

func TestCanonicalSort(t *testing.T) {
	cases := []struct{ in, want string }{
		{"relevance", "relevance"},
		{"DATEMODIFIED", "dateModified"},
		{"datemodified", "dateModified"},
		{" Title ", "title"},
		{"publicationtitle", "publicationTitle"},
		{"pageCount", "pageCount"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := canonicalSort(tc.in); got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSortValuesIsACopy(t *testing.T) {
	values := SortValues()
	if len(values) != 12 || values[0] != "relevance" {
		t.Fatalf("unexpected sort values %v", values)
	}
	values[0] = "mutated"
	if SortValues()[0] != "relevance" {
		t.Fatalf("callers must not be able to mutate the sort list")
	}
}

func TestTotalResultsFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Total-Results", "57")
	if total, ok := totalResultsFromHeader(h); !ok || total != 57 {
		t.Fatalf("got %d ok=%v", total, ok)
	}
	h.Set("Total-Results", "many")
	if _, ok := totalResultsFromHeader(h); ok {
		t.Fatalf("unparseable count should report absence")
	}
	if _, ok := totalResultsFromHeader(http.Header{}); ok {
		t.Fatalf("missing header should report absence")
	}
}

func TestNextStartFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set("Link", `<https://api.zotero.org/users/1/items?start=25&limit=25>; rel="next", <https://api.zotero.org/users/1/items?start=975&limit=25>; rel="last"`)
	next, ok := nextStartFromHeader(h)
	if !ok || next != 25 {
		t.Fatalf("got %d ok=%v", next, ok)
	}

	h.Set("Link", `<https://api.zotero.org/users/1/items?limit=25>; rel="first"`)
	if _, ok := nextStartFromHeader(h); ok {
		t.Fatalf("a header without a next link reports none")
	}
	if _, ok := nextStartFromHeader(http.Header{}); ok {
		t.Fatalf("a missing header reports none")
	}
}
