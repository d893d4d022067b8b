// Package extract turns a fetched issue page into an IssueRecord laid out by
// a FieldMap, and exposes the page's attachment anchors and snapshot.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

const (
	fieldClassPrefix = "bug-"
	customFieldClass = "bug-custom-field"
	categorySelector = "td.bug-category"

	// DownloadFragment marks attachment download hrefs.
	DownloadFragment = "file_download.php"
)

// IssueRecord holds the values extracted from one issue page.
type IssueRecord struct {
	IssueNumber string
	Category    string
	// FolderKey is the per-issue output directory name.
	FolderKey string
	SourceURL string
	// Values maps every scalar field name to its trimmed text.
	Values map[string]string
	// Custom holds one value per custom coordinate, in order.
	Custom []string
}

// ReportKey is the last custom-field value, used to name the report. It is
// empty when the layout has no custom fields.
func (r *IssueRecord) ReportKey() string {
	if len(r.Custom) == 0 {
		return ""
	}
	return r.Custom[len(r.Custom)-1]
}

// Kind classifies an ExtractError.
type Kind int

const (
	MissingField Kind = iota + 1
	CustomFieldCountMismatch
)

func (k Kind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case CustomFieldCountMismatch:
		return "custom_field_count_mismatch"
	default:
		return "unknown"
	}
}

// ExtractError means no report may be built for the issue.
type ExtractError struct {
	Kind  Kind
	Field string
	Want  int
	Got   int
}

func (e *ExtractError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("extract: missing field %q", e.Field)
	case CustomFieldCountMismatch:
		return fmt.Sprintf("extract: expected %d custom fields, found %d", e.Want, e.Got)
	default:
		return "extract: " + e.Kind.String()
	}
}

// Extract populates an IssueRecord from doc. Every field in fm must be
// present on the page.
func Extract(doc *goquery.Document, sourceURL string, fm FieldMap) (*IssueRecord, error) {
	title := doc.Find("title").First()
	if title.Length() == 0 {
		return nil, &ExtractError{Kind: MissingField, Field: "title"}
	}
	issueNumber, _, _ := strings.Cut(title.Text(), ":")
	issueNumber = strings.TrimSpace(issueNumber)

	categoryCell := doc.Find(categorySelector).First()
	if categoryCell.Length() == 0 {
		return nil, &ExtractError{Kind: MissingField, Field: "category"}
	}
	category := strings.TrimSpace(categoryCell.Text())

	// One pass in document order: the last element per exact class wins and
	// custom-field cells are collected positionally.
	last := make(map[string]*goquery.Selection)
	var custom []string
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		class, _ := s.Attr("class")
		last[class] = s
		if class == customFieldClass && goquery.NodeName(s) == "td" {
			custom = append(custom, strings.TrimSpace(s.Text()))
		}
	})

	rec := &IssueRecord{
		IssueNumber: issueNumber,
		Category:    category,
		FolderKey:   FolderKey(category, issueNumber),
		SourceURL:   sourceURL,
		Values:      make(map[string]string, len(fm.fields)),
	}
	for _, f := range fm.fields {
		s, ok := last[fieldClassPrefix+f.Name]
		if !ok {
			return nil, &ExtractError{Kind: MissingField, Field: f.Name}
		}
		rec.Values[f.Name] = strings.TrimSpace(s.Text())
	}

	if len(custom) < len(fm.custom) {
		return nil, &ExtractError{Kind: CustomFieldCountMismatch, Want: len(fm.custom), Got: len(custom)}
	}
	rec.Custom = custom[:len(fm.custom):len(fm.custom)]
	return rec, nil
}

// FolderKey builds the "{category}_({issueNumber})" directory name.
func FolderKey(category, issueNumber string) string {
	return SanitizePathComponent(fmt.Sprintf("%s_(%s)", category, issueNumber))
}

// Anchor is a raw candidate download link.
type Anchor struct {
	Href string
	Text string
	// Attrs is the number of attributes on the element.
	Attrs int
	// HasChildElements reports element children such as an icon image.
	HasChildElements bool
}

// Anchors returns every anchor whose href contains DownloadFragment, in
// document order.
func Anchors(doc *goquery.Document) []Anchor {
	var out []Anchor
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.Contains(href, DownloadFragment) {
			return
		}
		out = append(out, Anchor{
			Href:             href,
			Text:             s.Text(),
			Attrs:            len(s.Nodes[0].Attr),
			HasChildElements: s.Children().Length() > 0,
		})
	})
	return out
}

// Snapshot re-renders the parsed page as normalized HTML.
func Snapshot(doc *goquery.Document) ([]byte, error) {
	var buf bytes.Buffer
	for _, n := range doc.Nodes {
		if err := html.Render(&buf, n); err != nil {
			return nil, fmt.Errorf("render snapshot: %w", err)
		}
	}
	return buf.Bytes(), nil
}

// SnapshotName is the raw page file name inside the issue folder.
func SnapshotName(issueNumber string) string {
	return SanitizePathComponent(issueNumber) + "_report.html"
}
