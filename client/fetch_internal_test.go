package client

import "testing"

func TestFilenameFromContentDisposition(t *testing.T) {
	cases := []struct{ in, want string }{
		{`attachment; filename="paper.pdf"`, "paper.pdf"},
		{`attachment; filename=paper.pdf`, "paper.pdf"},
		{`attachment; filename*=UTF-8''paper%20final.pdf`, "paper%20final.pdf"},
		{`attachment; Filename="mixed.pdf"`, "mixed.pdf"},
		{`inline`, ""},
		{``, ""},
		{`attachment; filename=""`, ""},
	}
	for _, tc := range cases {
		if got := filenameFromContentDisposition(tc.in); got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestFilenameFromURL(t *testing.T) {
	cases := []struct{ in, want string }{
		{"https://example.com/files/paper.pdf?sig=abc", "paper.pdf"},
		{"https://example.com/files/", ""},
		{"https://example.com", ""},
		{"https://example.com/a/b/c.bin", "c.bin"},
	}
	for _, tc := range cases {
		if got := filenameFromURL(tc.in); got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestInferContentType(t *testing.T) {
	cases := []struct{ in, want string }{
		{"paper.pdf", "application/pdf"},
		{"data.json", "application/json"},
		{"page.html", "text/html"},
		{"blob.qqq", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}
	for _, tc := range cases {
		if got := inferContentType(tc.in); got != tc.want {
			t.Fatalf("%q: got %q, want %q", tc.in, got, tc.want)
		}
	}
}
