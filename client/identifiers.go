package client

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

// doiPrefixes are the accepted DOI notations, matched case-insensitively and
// stripped before validation.
var doiPrefixes = []string{
	"doi:",
	"https://doi.org/",
	"http://doi.org/",
	"https://dx.doi.org/",
	"http://dx.doi.org/",
}

var (
	doiPattern          = regexp.MustCompile(`(?i)^10\.\d{4,9}/[-._;()/:A-Z0-9]+$`)
	arxivURLPattern     = regexp.MustCompile(`(?i)(?:https?://)?(?:www\.)?arxiv\.org/(?:abs|pdf)/(.+)`)
	arxivURLFullPattern = regexp.MustCompile(`(?i)^(?:https?://)?(?:www\.)?arxiv\.org/(?:abs|pdf)/(.+)$`)
	arxivIDPattern      = regexp.MustCompile(`(?i)^([a-z-]+/\d{7}|\d{4}\.\d{4,5})(v\d+)?$`)
	arxivExtraPattern   = regexp.MustCompile(`(?i)(?:^|\s)arxiv(?:\s*id)?\s*[:=]\s*(\S+)`)
	doiExtraPattern     = regexp.MustCompile(`(?i)(?:^|\s)doi\s*[:=]\s*(\S+)`)
)

// NormalizeDOI lowercases a DOI and strips any accepted prefix notation.
func NormalizeDOI(value string) string {
	raw := strings.TrimSpace(value)
	lowered := strings.ToLower(raw)
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			return strings.ToLower(strings.TrimSpace(raw[len(prefix):]))
		}
	}
	return lowered
}

// ExactDOIQuery reports the normalized DOI when the whole query is a single
// DOI, in bare or prefixed form.
func ExactDOIQuery(query string) (string, bool) {
	raw := strings.TrimSpace(query)
	if raw == "" {
		return "", false
	}
	candidate := raw
	lowered := strings.ToLower(raw)
	for _, prefix := range doiPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			candidate = strings.TrimSpace(raw[len(prefix):])
			break
		}
	}
	if candidate == "" || strings.ContainsFunc(candidate, unicode.IsSpace) {
		return "", false
	}
	if !doiPattern.MatchString(candidate) {
		return "", false
	}
	return NormalizeDOI(candidate), true
}

// ArxivID is a parsed arXiv identifier: the lowercased core id plus an
// optional version suffix such as "v2".
type ArxivID struct {
	Core    string
	Version string
}

func (id ArxivID) String() string { return id.Core + id.Version }

func stripArxivScheme(raw string) string {
	const scheme = "arxiv:"
	if len(raw) >= len(scheme) && strings.EqualFold(raw[:len(scheme)], scheme) {
		return strings.TrimSpace(raw[len(scheme):])
	}
	return raw
}

func trimPDFSuffix(raw string) string {
	if strings.HasSuffix(strings.ToLower(raw), ".pdf") {
		return raw[:len(raw)-len(".pdf")]
	}
	return raw
}

// ParseArxivID extracts a canonical arXiv identifier from a bare id, an
// arxiv: form, or an abs/pdf URL appearing anywhere in the value.
func ParseArxivID(value string) (ArxivID, bool) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return ArxivID{}, false
	}
	raw = stripArxivScheme(raw)
	if m := arxivURLPattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	raw = strings.TrimSpace(trimPDFSuffix(raw))
	m := arxivIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return ArxivID{}, false
	}
	return ArxivID{Core: strings.ToLower(m[1]), Version: strings.ToLower(m[2])}, true
}

// ExactArxivQuery reports the parsed identifier when the whole query is a
// single arXiv id or abs/pdf URL. Stricter than ParseArxivID: the URL must
// span the entire query and no interior whitespace is tolerated.
func ExactArxivQuery(query string) (ArxivID, bool) {
	raw := strings.TrimSpace(query)
	if raw == "" {
		return ArxivID{}, false
	}
	raw = stripArxivScheme(raw)
	if m := arxivURLFullPattern.FindStringSubmatch(raw); m != nil {
		raw = m[1]
	}
	if raw == "" || strings.ContainsFunc(raw, unicode.IsSpace) {
		return ArxivID{}, false
	}
	raw = strings.TrimSpace(trimPDFSuffix(raw))
	m := arxivIDPattern.FindStringSubmatch(raw)
	if m == nil {
		return ArxivID{}, false
	}
	return ArxivID{Core: strings.ToLower(m[1]), Version: strings.ToLower(m[2])}, true
}

// NormalizeArxivID leniently reduces an id, arxiv: form, or arXiv URL to the
// bare identifier used to build the PDF URL. Unlike ParseArxivID it does not
// insist on the canonical id shape, so newer identifier schemes still work.
func NormalizeArxivID(value string) (string, error) {
	raw := strings.TrimSpace(value)
	if raw == "" {
		return "", validationError("arxiv_id is required and must be a non-empty string.")
	}
	raw = stripArxivScheme(raw)
	if parsed, err := url.Parse(raw); err == nil && (parsed.Scheme == "http" || parsed.Scheme == "https") {
		p := parsed.Path
		switch {
		case strings.Contains(p, "/abs/"):
			raw = p[strings.Index(p, "/abs/")+len("/abs/"):]
		case strings.Contains(p, "/pdf/"):
			raw = p[strings.Index(p, "/pdf/")+len("/pdf/"):]
		default:
			raw = strings.TrimLeft(p, "/")
		}
	}
	raw = strings.TrimSpace(trimPDFSuffix(strings.TrimSpace(raw)))
	if raw == "" {
		return "", validationError("Unable to parse arXiv identifier.")
	}
	return raw, nil
}

// ArxivPDFURL is the canonical download location for an arXiv identifier.
func ArxivPDFURL(arxivID string) string {
	escaped := (&url.URL{Path: arxivID}).EscapedPath()
	return "https://arxiv.org/pdf/" + escaped + ".pdf"
}

func itemMatchesDOI(data ItemData, normalizedDOI string) bool {
	if data.DOI != "" && NormalizeDOI(data.DOI) == normalizedDOI {
		return true
	}
	for _, m := range doiExtraPattern.FindAllStringSubmatch(data.Extra, -1) {
		if NormalizeDOI(m[1]) == normalizedDOI {
			return true
		}
	}
	return false
}

func itemMatchesArxiv(data ItemData, target ArxivID) bool {
	var candidates []string
	if s := strings.TrimSpace(data.ArchiveID); s != "" {
		candidates = append(candidates, s)
	}
	for _, m := range arxivExtraPattern.FindAllStringSubmatch(data.Extra, -1) {
		candidates = append(candidates, m[1])
	}
	for _, candidate := range candidates {
		parsed, ok := ParseArxivID(candidate)
		if !ok || parsed.Core != target.Core {
			continue
		}
		if target.Version == "" || parsed.Version == target.Version {
			return true
		}
	}
	return false
}

// filterExactMatches keeps only items whose identifier fields match the
// extracted DOI or arXiv id. Items carry identifiers either in the dedicated
// fields or in doi:/arxiv: lines inside extra.
func filterExactMatches(items []Item, doi string, arxiv ArxivID, byArxiv bool) []Item {
	out := make([]Item, 0, len(items))
	for _, item := range items {
		if doi != "" && !itemMatchesDOI(item.Data, doi) {
			continue
		}
		if byArxiv && !itemMatchesArxiv(item.Data, arxiv) {
			continue
		}
		out = append(out, item)
	}
	return out
}
