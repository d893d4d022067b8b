package mantistest

import (
	"fmt"
	"html"
	"sort"
	"strings"
)

// Issue describes a synthetic issue-detail page.
type Issue struct {
	ID    string
	Title string // defaults to "{ID}: {summary} - MantisBT"

	// Fields maps a field name to the text of its bug-{name} cell.
	Fields map[string]string
	// Stale fields are rendered earlier in the page than Fields, the way the
	// tracker repeats some cells in its header.
	Stale map[string]string
	// Custom are the bug-custom-field cells in document order.
	Custom []string
	// Anchors is raw anchor markup appended to the attachments row.
	Anchors []string
}

// DefaultIssue returns an issue with every field of the default layout filled.
func DefaultIssue(id string) Issue {
	custom := make([]string, 12)
	for i := range custom {
		custom[i] = fmt.Sprintf("custom %d", i)
	}
	custom[11] = "TCK-" + id
	return Issue{
		ID: id,
		Fields: map[string]string{
			"id":                 id,
			"project":            "Core Platform",
			"category":           "Network Issues",
			"view-status":        "public",
			"date-submitted":     "2024-03-01 09:15",
			"last-modified":      "2024-03-04 16:40",
			"reporter":           "alice",
			"assigned-to":        "bob",
			"priority":           "high",
			"severity":           "major",
			"reproducibility":    "always",
			"status":             "assigned",
			"resolution":         "open",
			"summary":            "Link flaps under load",
			"description":        "The uplink drops every few minutes.",
			"steps-to-reproduce": "1. Generate traffic\n2. Watch the port",
		},
		Custom: custom,
	}
}

// AttachmentAnchor renders a genuine download link.
func AttachmentAnchor(fileID, text string) string {
	return fmt.Sprintf(`<a href="file_download.php?file_id=%s&amp;type=bug">%s</a>`, fileID, html.EscapeString(text))
}

// IconAnchor renders the icon-wrapping link the tracker places next to each
// attachment.
func IconAnchor(fileID string) string {
	return fmt.Sprintf(`<a href="file_download.php?file_id=%s&amp;type=bug"><img src="images/fileicons/pdf.gif" alt=""></a>`, fileID)
}

// HTML renders the page.
func (iss Issue) HTML() string {
	title := iss.Title
	if title == "" {
		title = fmt.Sprintf("%s: %s - MantisBT", iss.ID, iss.Fields["summary"])
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<!DOCTYPE html><html><head><title>%s</title></head><body>\n", html.EscapeString(title))
	b.WriteString(`<table class="width100"><tr><td class="form-title" colspan="6">View Issue Details</td></tr>` + "\n")
	writeCells(&b, iss.Stale)
	writeCells(&b, iss.Fields)
	for _, v := range iss.Custom {
		fmt.Fprintf(&b, `<tr><th class="bug-custom-field category">Custom</th><td class="bug-custom-field">%s</td></tr>`+"\n", html.EscapeString(v))
	}
	b.WriteString(`<tr><td class="bug-attachments">`)
	for _, a := range iss.Anchors {
		b.WriteString(a)
		b.WriteString("\n")
	}
	b.WriteString("</td></tr>\n</table>\n")
	b.WriteString(`<a href="view_all_bug_page.php" class="btn">Back</a>` + "\n")
	b.WriteString("</body></html>\n")
	return b.String()
}

func writeCells(b *strings.Builder, fields map[string]string) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		names = append(names, k)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(b, `<tr><th class="bug-%s category">%s</th><td class="bug-%s">%s</td></tr>`+"\n",
			name, name, name, html.EscapeString(fields[name]))
	}
}
