package client

import "testing"

func TestNormalizeDOI(t *testing.T) {
	cases := []struct{ in, want string }{
		{"10.1234/ABC.def", "10.1234/abc.def"},
		{"doi:10.1234/abc", "10.1234/abc"},
		{"DOI:10.1234/abc", "10.1234/abc"},
		{"https://doi.org/10.1234/abc", "10.1234/abc"},
		{"http://dx.doi.org/10.1234/abc", "10.1234/abc"},
		{"  10.1234/abc  ", "10.1234/abc"},
	}
	for _, tc := range cases {
		if got := NormalizeDOI(tc.in); got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestExactDOIQuery(t *testing.T) {
	cases := []struct {
		in    string
		want  string
		match bool
	}{
		{"10.1234/abc-def", "10.1234/abc-def", true},
		{"doi:10.48550/arXiv.2101.00001", "10.48550/arxiv.2101.00001", true},
		{"https://doi.org/10.1234/ABC", "10.1234/abc", true},
		{"some paper about 10.1234/abc", "", false},
		{"10.12/tooshort", "", false},
		{"deep learning", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := ExactDOIQuery(tc.in)
		if ok != tc.match {
			t.Fatalf("%q: match=%v, want %v", tc.in, ok, tc.match)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestParseArxivID(t *testing.T) {
	cases := []struct {
		in      string
		core    string
		version string
		ok      bool
	}{
		{"2101.00001", "2101.00001", "", true},
		{"2101.00001v2", "2101.00001", "v2", true},
		{"arXiv:2101.00001V3", "2101.00001", "v3", true},
		{"math-ph/0101001", "math-ph/0101001", "", true},
		{"https://arxiv.org/abs/2101.00001", "2101.00001", "", true},
		{"http://www.arxiv.org/pdf/2101.00001v1.pdf", "2101.00001", "v1", true},
		{"details at arxiv.org/abs/2101.00001", "2101.00001", "", true},
		{"not an id", "", "", false},
		{"1234.123", "", "", false},
		{"", "", "", false},
	}
	for _, tc := range cases {
		got, ok := ParseArxivID(tc.in)
		if ok != tc.ok {
			t.Fatalf("%q: ok=%v, want %v", tc.in, ok, tc.ok)
		}
		if got.Core != tc.core || got.Version != tc.version {
			t.Fatalf("%q: got %+v, want core=%q version=%q", tc.in, got, tc.core, tc.version)
		}
	}
}

func TestExactArxivQuery(t *testing.T) {
	id, ok := ExactArxivQuery("arXiv:2101.00001v2")
	if !ok || id.Core != "2101.00001" || id.Version != "v2" {
		t.Fatalf("got %+v ok=%v", id, ok)
	}
	id, ok = ExactArxivQuery("https://arxiv.org/pdf/math-ph/0101001v1.pdf")
	if !ok || id.Core != "math-ph/0101001" || id.Version != "v1" {
		t.Fatalf("got %+v ok=%v", id, ok)
	}
	if _, ok := ExactArxivQuery("details at arxiv.org/abs/2101.00001"); ok {
		t.Fatalf("prose around a URL is not an exact query")
	}
	if _, ok := ExactArxivQuery("2101.00001 v2"); ok {
		t.Fatalf("interior whitespace must not parse")
	}
}

func TestNormalizeArxivID(t *testing.T) {
	cases := []struct{ in, want string }{
		{"2101.00001v2", "2101.00001v2"},
		{"arXiv:2101.00001", "2101.00001"},
		{"https://arxiv.org/abs/2101.00001v2", "2101.00001v2"},
		{"https://arxiv.org/pdf/2101.00001v2.pdf", "2101.00001v2"},
		{"https://arxiv.org/pdf/math-ph/0101001", "math-ph/0101001"},
		{"2508.01234", "2508.01234"},
	}
	for _, tc := range cases {
		got, err := NormalizeArxivID(tc.in)
		if err != nil {
			t.Fatalf("%q: %v", tc.in, err)
		}
		if got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}

	if _, err := NormalizeArxivID(""); err == nil {
		t.Fatalf("empty id must error")
	}
	if _, err := NormalizeArxivID("https://arxiv.org/"); err == nil {
		t.Fatalf("bare host must error")
	}
}

func TestArxivPDFURL(t *testing.T) {
	if got := ArxivPDFURL("2101.00001v2"); got != "https://arxiv.org/pdf/2101.00001v2.pdf" {
		t.Fatalf("got %q", got)
	}
	if got := ArxivPDFURL("math-ph/0101001"); got != "https://arxiv.org/pdf/math-ph/0101001.pdf" {
		t.Fatalf("old-style ids keep their slash: %q", got)
	}
}

func TestItemMatchesDOI(t *testing.T) {
	if !itemMatchesDOI(ItemData{DOI: "10.1234/ABC"}, "10.1234/abc") {
		t.Fatalf("DOI field should match case-insensitively")
	}
	if !itemMatchesDOI(ItemData{Extra: "DOI: 10.1234/abc\nsomething else"}, "10.1234/abc") {
		t.Fatalf("doi line in extra should match")
	}
	if !itemMatchesDOI(ItemData{Extra: "doi=https://doi.org/10.1234/abc"}, "10.1234/abc") {
		t.Fatalf("prefixed extra value should match after normalization")
	}
	if itemMatchesDOI(ItemData{DOI: "10.9999/other"}, "10.1234/abc") {
		t.Fatalf("different DOI must not match")
	}
	if itemMatchesDOI(ItemData{}, "10.1234/abc") {
		t.Fatalf("empty item must not match")
	}
}

func TestItemMatchesArxiv(t *testing.T) {
	target := ArxivID{Core: "2101.00001"}
	if !itemMatchesArxiv(ItemData{ArchiveID: "arXiv:2101.00001v3"}, target) {
		t.Fatalf("versionless target should match any version")
	}
	if !itemMatchesArxiv(ItemData{Extra: "arXiv ID: 2101.00001"}, target) {
		t.Fatalf("arxiv line in extra should match")
	}
	versioned := ArxivID{Core: "2101.00001", Version: "v2"}
	if itemMatchesArxiv(ItemData{ArchiveID: "2101.00001v3"}, versioned) {
		t.Fatalf("explicit target version must match exactly")
	}
	if !itemMatchesArxiv(ItemData{ArchiveID: "2101.00001v2"}, versioned) {
		t.Fatalf("matching version should pass")
	}
	if itemMatchesArxiv(ItemData{}, target) {
		t.Fatalf("item without candidates must not match")
	}
}

func TestFilterExactMatches(t *testing.T) {
	items := []Item{
		{Key: "A", Data: ItemData{DOI: "10.1234/abc"}},
		{Key: "B", Data: ItemData{Extra: "doi: 10.1234/abc"}},
		{Key: "C", Data: ItemData{DOI: "10.9999/zzz"}},
	}
	got := filterExactMatches(items, "10.1234/abc", ArxivID{}, false)
	if len(got) != 2 || got[0].Key != "A" || got[1].Key != "B" {
		t.Fatalf("doi filter kept %+v", got)
	}

	arxivItems := []Item{
		{Key: "X", Data: ItemData{ArchiveID: "arXiv:2101.00001"}},
		{Key: "Y", Data: ItemData{Title: "unrelated"}},
	}
	got = filterExactMatches(arxivItems, "", ArxivID{Core: "2101.00001"}, true)
	if len(got) != 1 || got[0].Key != "X" {
		t.Fatalf("arxiv filter kept %+v", got)
	}
}
