package attach

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/dgallion1/issuedoc/internal/extract"
)

func link(href, text string) extract.Anchor {
	return extract.Anchor{Href: href, Text: text, Attrs: 1}
}

func TestDedupe_FiltersStructuralNonAttachments(t *testing.T) {
	in := []extract.Anchor{
		{Href: "file_download.php?file_id=1", Text: "", Attrs: 1, HasChildElements: true},
		{Href: "file_download.php?file_id=1", Text: "report.pdf", Attrs: 2},
		{Href: "file_download.php?file_id=1", Text: "   ", Attrs: 1},
		link("file_download.php?file_id=1", "report.pdf"),
	}
	got := Dedupe(in)
	if len(got) != 1 || got[0].Text != "report.pdf" {
		t.Errorf("expected only the plain anchor, got %+v", got)
	}
}

func TestDedupe_CollapsesIdenticalHrefAndText(t *testing.T) {
	in := []extract.Anchor{
		link("file_download.php?file_id=1", "report.pdf"),
		link("file_download.php?file_id=1", " report.pdf\n"),
		link("file_download.php?file_id=2", "report.pdf"),
		link("file_download.php?file_id=1", "summary.txt"),
	}
	got := Dedupe(in)
	want := []extract.Anchor{in[0], in[2], in[3]}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("expected %+v, got %+v", want, got)
	}
}

func TestDedupe_Idempotent(t *testing.T) {
	in := []extract.Anchor{
		link("a", "x.pdf"), link("a", "x.pdf"), link("b", "x.pdf"),
		{Href: "a", Attrs: 1, HasChildElements: true},
		link("c", "y  z.txt"), link("c", "y z.txt"),
	}
	once := Dedupe(in)
	twice := Dedupe(once)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("expected idempotent dedupe, got %+v then %+v", once, twice)
	}
}

func TestResolveURL(t *testing.T) {
	tests := []struct {
		base, href, want string
	}{
		{"https://t.example.com", "file_download.php?file_id=1", "https://t.example.com/file_download.php?file_id=1"},
		{"https://t.example.com/", "/file_download.php?file_id=1", "https://t.example.com/file_download.php?file_id=1"},
		{"https://t.example.com/mantis/", "file_download.php", "https://t.example.com/mantis/file_download.php"},
		{"https://t.example.com", "https://cdn.example.com/f.bin", "https://cdn.example.com/f.bin"},
		{"https://t.example.com", "http://cdn.example.com/f.bin", "http://cdn.example.com/f.bin"},
		{"https://t.example.com", "httpdocs/file_download.php?file_id=2", "https://t.example.com/httpdocs/file_download.php?file_id=2"},
		{"https://t.example.com", "//cdn.example.com/f.bin", "https://cdn.example.com/f.bin"},
	}
	for _, tt := range tests {
		if got := ResolveURL(tt.base, tt.href); got != tt.want {
			t.Errorf("ResolveURL(%q, %q): expected %q, got %q", tt.base, tt.href, tt.want, got)
		}
	}
}

func TestFilename(t *testing.T) {
	tests := []struct {
		text  string
		index int
		want  string
	}{
		{"report.pdf", 1, "report.pdf"},
		{"  My new:file/name.pdf ", 1, "My_new_file_name.pdf"},
		{"archive.tar.gz", 1, "archive.tar.gz"},
		{"README", 3, "README"},
		{".pdf", 2, "file_2.pdf"},
		{"", 4, "file_4"},
		{"..", 5, "file_5"},
		{"résumé.doc", 1, "r_sum_.doc"},
	}
	for _, tt := range tests {
		if got := Filename(tt.text, tt.index); got != tt.want {
			t.Errorf("Filename(%q, %d): expected %q, got %q", tt.text, tt.index, tt.want, got)
		}
	}
}

func TestSanitizeFilename_TotalAndIdempotent(t *testing.T) {
	inputs := []string{
		"", "plain.txt", "spaces and tabs\t.md", "../../etc/passwd", "日本語.pdf",
		"a\x00b", string([]byte{0xff, 0xfe, 'x'}), `<>:"/\|?*`, "émoji 🎉.png",
	}
	for _, in := range inputs {
		got := SanitizeFilename(in)
		for _, r := range got {
			ok := r == '_' || r == '.' || r == '-' ||
				(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !ok {
				t.Errorf("SanitizeFilename(%q) = %q contains %q", in, got, r)
			}
		}
		if !utf8.ValidString(got) {
			t.Errorf("SanitizeFilename(%q) produced invalid UTF-8", in)
		}
		if again := SanitizeFilename(got); again != got {
			t.Errorf("expected re-sanitizing %q to be a no-op, got %q", got, again)
		}
		if SanitizeFilename(in) != got {
			t.Errorf("expected deterministic output for %q", in)
		}
	}
	if strings.Contains(SanitizeFilename("../x"), "/") {
		t.Error("expected path separators to be replaced")
	}
}

func TestPlan_UniqueNames(t *testing.T) {
	links := []extract.Anchor{
		link("file_download.php?file_id=1", "report.pdf"),
		link("file_download.php?file_id=2", "report.pdf"),
		link("file_download.php?file_id=3", "report pdf"),
		link("file_download.php?file_id=4", "report.pdf"),
		link("file_download.php?file_id=5", "report_2.pdf"),
		link("file_download.php?file_id=6", "notes"),
		link("file_download.php?file_id=7", "notes"),
		link("file_download.php?file_id=8", "Report.PDF"),
		link("file_download.php?file_id=9", "NOTES"),
	}
	plan := Plan("https://t.example.com", links)

	var names []string
	seen := map[string]bool{}
	for _, p := range plan {
		if seen[strings.ToLower(p.Name)] {
			t.Errorf("duplicate name %q", p.Name)
		}
		seen[strings.ToLower(p.Name)] = true
		names = append(names, p.Name)
	}
	want := []string{"report.pdf", "report_2.pdf", "report_pdf", "report_3.pdf", "report_2_2.pdf", "notes", "notes_2", "Report_4.PDF", "NOTES_3"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("expected %v, got %v", want, names)
	}
	if plan[0].URL != "https://t.example.com/file_download.php?file_id=1" {
		t.Errorf("expected resolved url, got %q", plan[0].URL)
	}
}
