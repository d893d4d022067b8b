// Package attach selects genuine attachment links from an issue page, names
// them without collisions and downloads them through the tracker session.
package attach

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/dgallion1/issuedoc/internal/extract"
)

// Dir is the attachment subdirectory inside an issue folder.
const Dir = "attachments"

// Qualifies reports whether a holds the download-link signature: exactly one
// attribute, no child elements and visible text. Icon wrappers and styled
// buttons pointing at the same file fail it.
func Qualifies(a extract.Anchor) bool {
	return a.Attrs == 1 && !a.HasChildElements && strings.TrimSpace(a.Text) != ""
}

func key(a extract.Anchor) string {
	return a.Href + "\x00" + strings.Join(strings.Fields(a.Text), " ")
}

// Dedupe keeps qualifying anchors, dropping repeats of the same href and
// normalized text. Document order is preserved.
func Dedupe(anchors []extract.Anchor) []extract.Anchor {
	seen := make(map[string]bool, len(anchors))
	var out []extract.Anchor
	for _, a := range anchors {
		if !Qualifies(a) {
			continue
		}
		k := key(a)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, a)
	}
	return out
}

// ResolveURL returns href as-is when it is already absolute, gives a
// scheme-relative href the scheme of base, and otherwise joins it to base
// with a single slash.
func ResolveURL(base, href string) string {
	if u, err := url.Parse(href); err == nil {
		if u.IsAbs() {
			return href
		}
		if u.Host != "" {
			if b, err := url.Parse(base); err == nil && b.Scheme != "" {
				return b.Scheme + ":" + href
			}
		}
	}
	return strings.TrimSuffix(base, "/") + "/" + strings.TrimPrefix(href, "/")
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// SanitizeFilename replaces every character outside [A-Za-z0-9_.-] with "_".
func SanitizeFilename(s string) string {
	return unsafeFilenameChars.ReplaceAllString(s, "_")
}

// Filename derives a file name from an anchor's display text. The extension
// is whatever follows the last dot; text without a dot yields no extension.
// index (1-based) names files whose text has no usable stem.
func Filename(text string, index int) string {
	text = strings.TrimSpace(text)
	stem, ext := text, ""
	if i := strings.LastIndex(text, "."); i >= 0 {
		stem, ext = text[:i], text[i+1:]
	}
	stem = strings.Trim(strings.TrimSpace(stem), ".")
	if stem == "" {
		stem = fmt.Sprintf("file_%d", index)
	}
	name := stem
	if ext = strings.TrimSpace(ext); ext != "" {
		name += "." + ext
	}
	return SanitizeFilename(name)
}

// Planned is a download with its resolved URL and final file name.
type Planned struct {
	Anchor extract.Anchor
	URL    string
	Name   string
}

// Plan assigns each link a URL and a file name unique within the batch.
// Names are compared case-insensitively so they stay distinct on
// case-insensitive filesystems. Repeated names gain "_2", "_3", ... before
// the extension, in input order.
func Plan(baseURL string, links []extract.Anchor) []Planned {
	used := make(map[string]bool, len(links))
	out := make([]Planned, 0, len(links))
	for i, a := range links {
		name := uniqueName(Filename(a.Text, i+1), used)
		used[strings.ToLower(name)] = true
		out = append(out, Planned{Anchor: a, URL: ResolveURL(baseURL, a.Href), Name: name})
	}
	return out
}

func uniqueName(name string, used map[string]bool) string {
	if !used[strings.ToLower(name)] {
		return name
	}
	stem, ext := name, ""
	if i := strings.LastIndex(name, "."); i > 0 {
		stem, ext = name[:i], name[i:]
	}
	for n := 2; ; n++ {
		candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
		if !used[strings.ToLower(candidate)] {
			return candidate
		}
	}
}
