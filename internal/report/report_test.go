package report

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dgallion1/issuedoc/internal/attach"
	"github.com/dgallion1/issuedoc/internal/extract"
	"github.com/fumiama/go-docx"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// buildTemplate returns a .docx with one rows x cols table. Cell (7,1) holds
// placeholder text that assembly must overwrite.
func buildTemplate(t *testing.T, rows, cols int) []byte {
	t.Helper()
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().AddText("Issue Report")
	table := doc.AddTable(rows, cols, 0, nil)
	if rows > 7 && cols > 1 {
		table.TableRows[7].TableCells[1].AddParagraph().AddText("placeholder")
	}
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatalf("write template: %v", err)
	}
	return buf.Bytes()
}

func record() *extract.IssueRecord {
	fm := extract.DefaultFieldMap()
	rec := &extract.IssueRecord{
		IssueNumber: "13513",
		Category:    "Network Issues",
		FolderKey:   "Network_Issues_(13513)",
		SourceURL:   "https://tracker.example.com/view.php?id=13513",
		Values:      make(map[string]string),
	}
	for _, f := range fm.Fields() {
		rec.Values[f.Name] = "value of " + f.Name
	}
	rec.Values["id"] = "13513"
	for i := range fm.Custom() {
		rec.Custom = append(rec.Custom, "custom "+string(rune('a'+i)))
	}
	rec.Custom[len(rec.Custom)-1] = "TCK-13513"
	return rec
}

func openReport(t *testing.T, path string) (*docx.Docx, *docx.Table) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("parse report: %v", err)
	}
	for _, item := range doc.Document.Body.Items {
		if table, ok := item.(*docx.Table); ok {
			return doc, table
		}
	}
	t.Fatal("report has no table")
	return nil, nil
}

// linkText renders p like Paragraph.String, reading hyperlink labels from
// their w:t runs.
func linkText(t *testing.T, doc *docx.Docx, p *docx.Paragraph) string {
	t.Helper()
	var b strings.Builder
	for _, child := range p.Children {
		switch c := child.(type) {
		case *docx.Hyperlink:
			target, err := doc.ReferTarget(c.ID)
			if err != nil {
				t.Fatalf("hyperlink %s has no relationship: %v", c.ID, err)
			}
			b.WriteString("[" + runText(&c.Run) + "](" + target + ")")
		case *docx.Run:
			b.WriteString(runText(c))
		}
	}
	return b.String()
}

func runText(r *docx.Run) string {
	var b strings.Builder
	for _, child := range r.Children {
		if txt, ok := child.(*docx.Text); ok {
			b.WriteString(txt.Text)
		}
	}
	return b.String()
}

func cellText(table *docx.Table, row, col int) string {
	cell := table.TableRows[row].TableCells[col]
	var parts []string
	for _, p := range cell.Paragraphs {
		parts = append(parts, p.String())
	}
	return strings.Join(parts, "\n")
}

func TestBuild_FillsMappedCells(t *testing.T) {
	fm := extract.DefaultFieldMap()
	tmpl, err := NewTemplate(buildTemplate(t, 23, 6), fm)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	dir := t.TempDir()
	rec := record()

	path, err := NewAssembler(tmpl, discardLogger()).Build(rec, nil, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if filepath.Base(path) != "Network_Issues-TCK-13513.docx" {
		t.Errorf("expected Network_Issues-TCK-13513.docx, got %s", filepath.Base(path))
	}

	_, table := openReport(t, path)
	for _, f := range fm.Fields() {
		if f.Name == "id" {
			continue
		}
		if got := cellText(table, f.At.Row, f.At.Col); got != rec.Values[f.Name] {
			t.Errorf("cell %s (%d,%d): expected %q, got %q", f.Name, f.At.Row, f.At.Col, rec.Values[f.Name], got)
		}
	}
	for i, c := range fm.Custom() {
		if got := cellText(table, c.Row, c.Col); got != rec.Custom[i] {
			t.Errorf("custom[%d]: expected %q, got %q", i, rec.Custom[i], got)
		}
	}
	if got := cellText(table, 7, 1); strings.Contains(got, "placeholder") {
		t.Errorf("expected placeholder to be overwritten, got %q", got)
	}
}

func TestBuild_IdentifierIsHyperlink(t *testing.T) {
	tmpl, err := NewTemplate(buildTemplate(t, 23, 6), extract.DefaultFieldMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := NewAssembler(tmpl, discardLogger()).Build(record(), nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, table := openReport(t, path)
	p := table.TableRows[1].TableCells[0].Paragraphs[0]
	var link *docx.Hyperlink
	for _, child := range p.Children {
		if h, ok := child.(*docx.Hyperlink); ok {
			link = h
		}
	}
	if link == nil {
		t.Fatal("expected identifier cell to hold a hyperlink")
	}
	if link.Run.InstrText != "" {
		t.Errorf("expected label outside instrText, got %q", link.Run.InstrText)
	}
	if got := runText(&link.Run); got != "13513" {
		t.Errorf("expected visible label %q, got %q", "13513", got)
	}
	want := "[13513](https://tracker.example.com/view.php?id=13513)"
	if got := linkText(t, doc, p); got != want {
		t.Errorf("expected %q, got %q", want, got)
	}
}

func TestBuild_RowHeights(t *testing.T) {
	tmpl, err := NewTemplate(buildTemplate(t, 23, 6), extract.DefaultFieldMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := NewAssembler(tmpl, discardLogger()).Build(record(), nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, table := openReport(t, path)
	for i, row := range table.TableRows {
		var h *docx.WTableRowHeight
		if row.TableRowProperties != nil {
			h = row.TableRowProperties.TableRowHeight
		}
		if i == 8 || i == 9 {
			if h != nil {
				t.Errorf("row %d: expected auto height, got %+v", i, h)
			}
			continue
		}
		if h == nil || h.Rule != "exact" || h.Val != 283 {
			t.Errorf("row %d: expected exact 283, got %+v", i, h)
		}
	}
}

func TestBuild_AttachmentLinks(t *testing.T) {
	tmpl, err := NewTemplate(buildTemplate(t, 23, 6), extract.DefaultFieldMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	files := []attach.Result{
		{Name: "report.pdf", Path: "attachments/report.pdf"},
		{Name: "broken.bin", Err: errors.New("boom")},
		{Name: "log_2.txt", Path: "attachments/log_2.txt"},
	}
	path, err := NewAssembler(tmpl, discardLogger()).Build(record(), files, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, _ := openReport(t, path)
	var links []string
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok {
			if s := linkText(t, doc, p); strings.HasPrefix(s, "[") {
				links = append(links, s)
			}
		}
	}
	want := []string{"[report.pdf](attachments/report.pdf)", "[log_2.txt](attachments/log_2.txt)"}
	if len(links) != len(want) {
		t.Fatalf("expected %v, got %v", want, links)
	}
	for i := range want {
		if links[i] != want[i] {
			t.Errorf("link %d: expected %q, got %q", i, want[i], links[i])
		}
	}
}

func TestBuild_TemplateReusedAcrossIssues(t *testing.T) {
	tmpl, err := NewTemplate(buildTemplate(t, 23, 6), extract.DefaultFieldMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	asm := NewAssembler(tmpl, discardLogger())

	first := record()
	second := record()
	second.Values["summary"] = "second summary"
	second.Custom[len(second.Custom)-1] = "TCK-2"

	if _, err := asm.Build(first, []attach.Result{{Name: "a.txt", Path: "attachments/a.txt"}}, t.TempDir()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	path, err := asm.Build(second, nil, t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	doc, table := openReport(t, path)
	if got := cellText(table, 7, 1); got != "second summary" {
		t.Errorf("expected second summary, got %q", got)
	}
	for _, item := range doc.Document.Body.Items {
		if p, ok := item.(*docx.Paragraph); ok && strings.Contains(linkText(t, doc, p), "a.txt") {
			t.Error("expected no attachment link carried over from the previous issue")
		}
	}
}

func TestNewTemplate_Mismatch(t *testing.T) {
	_, err := NewTemplate(buildTemplate(t, 10, 6), extract.DefaultFieldMap())
	var ae *AssembleError
	if !errors.As(err, &ae) || ae.Kind != TemplateMismatch {
		t.Fatalf("expected TemplateMismatch, got %v", err)
	}

	_, err = NewTemplate(buildTemplate(t, 23, 2), extract.DefaultFieldMap())
	if !errors.As(err, &ae) || ae.Kind != TemplateMismatch {
		t.Fatalf("expected TemplateMismatch for narrow table, got %v", err)
	}
}

func TestNewTemplate_NoTable(t *testing.T) {
	doc := docx.New().WithDefaultTheme()
	doc.AddParagraph().AddText("no grid here")
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	_, err := NewTemplate(buf.Bytes(), extract.DefaultFieldMap())
	var ae *AssembleError
	if !errors.As(err, &ae) || ae.Kind != TemplateMismatch {
		t.Fatalf("expected TemplateMismatch, got %v", err)
	}
}

func TestNewTemplate_MoreThanOneTable(t *testing.T) {
	doc := docx.New().WithDefaultTheme()
	doc.AddTable(23, 6, 0, nil)
	doc.AddParagraph().AddText("appendix")
	doc.AddTable(2, 2, 0, nil)
	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		t.Fatal(err)
	}

	_, err := NewTemplate(buf.Bytes(), extract.DefaultFieldMap())
	var ae *AssembleError
	if !errors.As(err, &ae) || ae.Kind != TemplateMismatch {
		t.Fatalf("expected TemplateMismatch, got %v", err)
	}
	if !strings.Contains(err.Error(), "found 2") {
		t.Errorf("expected table count in error, got %v", err)
	}
}

func TestLoadTemplate_Errors(t *testing.T) {
	_, err := LoadTemplate(filepath.Join(t.TempDir(), "missing.docx"), extract.DefaultFieldMap())
	var ae *AssembleError
	if !errors.As(err, &ae) || ae.Kind != TemplateLoad {
		t.Fatalf("expected TemplateLoad for missing file, got %v", err)
	}

	path := filepath.Join(t.TempDir(), "garbage.docx")
	if err := os.WriteFile(path, []byte("not a zip"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err = LoadTemplate(path, extract.DefaultFieldMap())
	if !errors.As(err, &ae) || ae.Kind != TemplateLoad || ae.Path != path {
		t.Fatalf("expected TemplateLoad with path, got %v", err)
	}
}

func TestBuild_PersistFailure(t *testing.T) {
	tmpl, err := NewTemplate(buildTemplate(t, 23, 6), extract.DefaultFieldMap())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err = NewAssembler(tmpl, discardLogger()).Build(record(), nil, filepath.Join(t.TempDir(), "missing"))
	var ae *AssembleError
	if !errors.As(err, &ae) || ae.Kind != Persist {
		t.Fatalf("expected Persist, got %v", err)
	}
}

func TestFileName(t *testing.T) {
	rec := record()
	if got := FileName(rec); got != "Network_Issues-TCK-13513.docx" {
		t.Errorf("expected Network_Issues-TCK-13513.docx, got %q", got)
	}
	rec.Custom = nil
	if got := FileName(rec); got != "Network_Issues.docx" {
		t.Errorf("expected Network_Issues.docx, got %q", got)
	}
	rec.Category = `A/B: "C"`
	if got := FileName(rec); strings.ContainsAny(got, `/:"`) {
		t.Errorf("expected sanitized name, got %q", got)
	}
}
