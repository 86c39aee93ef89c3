// Package arxivid parses and normalizes arXiv identifiers found in URLs and
// free-form text.
package arxivid

import (
	"regexp"
	"sort"
	"strings"
)

// urlExpr matches abs/pdf links in the modern YYMM.NNNNN scheme, with an
// optional version suffix and .pdf extension.
var urlExpr = regexp.MustCompile(`https?://arxiv\.org/(abs|pdf)/([0-9]{4}\.[0-9]{4,6})(v[0-9]+)?(\.pdf)?`)

var idExpr = regexp.MustCompile(`^[0-9]{4}\.[0-9]{4,6}$`)

// Normalize strips a version suffix and surrounding noise from a raw
// identifier. Returns the canonical id and whether the input was valid.
func Normalize(raw string) (string, bool) {
	id := strings.TrimSpace(raw)
	id = strings.TrimPrefix(id, "arXiv:")
	if i := strings.Index(id, "v"); i > 0 {
		if idExpr.MatchString(id[:i]) {
			id = id[:i]
		}
	}
	if !idExpr.MatchString(id) {
		return "", false
	}
	return id, true
}

// FromURL extracts the canonical id from a single arXiv abs/pdf URL.
func FromURL(rawURL string) (string, bool) {
	m := urlExpr.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[2], true
}

// ExtractAll returns the distinct canonical ids referenced by arXiv links in
// text, sorted lexicographically so callers see a stable order.
func ExtractAll(text string) []string {
	// Some sources escape URLs with backslashes; drop them before matching.
	text = strings.ReplaceAll(text, `\`, "")

	seen := map[string]struct{}{}
	for _, m := range urlExpr.FindAllStringSubmatch(text, -1) {
		seen[m[2]] = struct{}{}
	}
	if len(seen) == 0 {
		return nil
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// AbsURL returns the canonical abstract page URL for an id.
func AbsURL(id string) string {
	return "https://arxiv.org/abs/" + id
}
