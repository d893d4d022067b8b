// Package report fills the issue report template from an IssueRecord and
// writes the result as a .docx next to the issue's attachments.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/issuedoc/internal/attach"
	"github.com/dgallion1/issuedoc/internal/extract"
	"github.com/fumiama/go-docx"
)

const (
	// Body text is 8pt Aptos. Sizes are in half-points.
	fontName = "Aptos"
	fontSize = "16"

	// Rows outside [growFrom, growTo] are pinned to rowHeight twips (0.5cm).
	growFrom  = 8
	growTo    = 9
	rowHeight = 283
)

// Kind classifies an AssembleError.
type Kind int

const (
	TemplateLoad Kind = iota + 1
	TemplateMismatch
	Persist
)

func (k Kind) String() string {
	switch k {
	case TemplateLoad:
		return "template_load"
	case TemplateMismatch:
		return "template_mismatch"
	case Persist:
		return "persist"
	default:
		return "unknown"
	}
}

// AssembleError means no report was written for the issue.
type AssembleError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *AssembleError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("assemble report %s (%s): %v", e.Path, e.Kind, e.Err)
	}
	return fmt.Sprintf("assemble report (%s): %v", e.Kind, e.Err)
}

func (e *AssembleError) Unwrap() error { return e.Err }

// Template is a validated report template. The raw bytes are kept so every
// issue gets its own parsed copy.
type Template struct {
	data []byte
	fm   extract.FieldMap
}

// LoadTemplate reads the template at path and checks that its single table
// has every cell fm addresses.
func LoadTemplate(path string, fm extract.FieldMap) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &AssembleError{Kind: TemplateLoad, Path: path, Err: err}
	}
	t, err := NewTemplate(data, fm)
	if err != nil {
		var ae *AssembleError
		if errors.As(err, &ae) {
			ae.Path = path
		}
		return nil, err
	}
	return t, nil
}

// NewTemplate validates template bytes against fm.
func NewTemplate(data []byte, fm extract.FieldMap) (*Template, error) {
	t := &Template{data: data, fm: fm}
	_, table, err := t.open()
	if err != nil {
		return nil, err
	}
	if err := checkLayout(table, fm); err != nil {
		return nil, &AssembleError{Kind: TemplateMismatch, Err: err}
	}
	return t, nil
}

func (t *Template) open() (*docx.Docx, *docx.Table, error) {
	doc, err := docx.Parse(bytes.NewReader(t.data), int64(len(t.data)))
	if err != nil {
		return nil, nil, &AssembleError{Kind: TemplateLoad, Err: fmt.Errorf("parse docx: %w", err)}
	}
	var tables []*docx.Table
	for _, item := range doc.Document.Body.Items {
		if table, ok := item.(*docx.Table); ok {
			tables = append(tables, table)
		}
	}
	if len(tables) != 1 {
		return nil, nil, &AssembleError{Kind: TemplateMismatch,
			Err: fmt.Errorf("template must contain exactly one table, found %d", len(tables))}
	}
	return doc, tables[0], nil
}

func checkLayout(table *docx.Table, fm extract.FieldMap) error {
	check := func(name string, c extract.Coord) error {
		if c.Row >= len(table.TableRows) {
			return fmt.Errorf("field %s: row %d beyond table with %d rows", name, c.Row, len(table.TableRows))
		}
		if cells := len(table.TableRows[c.Row].TableCells); c.Col >= cells {
			return fmt.Errorf("field %s: column %d beyond row %d with %d cells", name, c.Col, c.Row, cells)
		}
		return nil
	}
	for _, f := range fm.Fields() {
		if err := check(f.Name, f.At); err != nil {
			return err
		}
	}
	for i, c := range fm.Custom() {
		if err := check(fmt.Sprintf("custom[%d]", i), c); err != nil {
			return err
		}
	}
	return nil
}

// FileName is the report name: "{category}-{last custom value}.docx", or
// "{category}.docx" when there are no custom fields.
func FileName(rec *extract.IssueRecord) string {
	name := rec.Category
	if key := rec.ReportKey(); key != "" {
		name += "-" + key
	}
	return extract.SanitizePathComponent(name) + ".docx"
}

// Assembler writes reports from a shared template.
type Assembler struct {
	tmpl *Template
	log  *slog.Logger
}

func NewAssembler(tmpl *Template, log *slog.Logger) *Assembler {
	return &Assembler{tmpl: tmpl, log: log}
}

// Build fills a fresh copy of the template for rec, links each written
// attachment and saves the document in issueDir. It returns the saved path.
func (a *Assembler) Build(rec *extract.IssueRecord, files []attach.Result, issueDir string) (string, error) {
	doc, table, err := a.tmpl.open()
	if err != nil {
		return "", err
	}
	if err := checkLayout(table, a.tmpl.fm); err != nil {
		return "", &AssembleError{Kind: TemplateMismatch, Err: err}
	}

	ident := a.tmpl.fm.Identifier()
	for _, f := range a.tmpl.fm.Fields() {
		p := resetCell(table, f.At)
		if f.Name == ident {
			styleRun(&addLink(p, rec.Values[f.Name], rec.SourceURL).Run)
			continue
		}
		styleRun(p.AddText(rec.Values[f.Name]))
	}
	for i, c := range a.tmpl.fm.Custom() {
		styleRun(resetCell(table, c).AddText(rec.Custom[i]))
	}

	for i, row := range table.TableRows {
		if i >= growFrom && i <= growTo {
			continue
		}
		if row.TableRowProperties == nil {
			row.TableRowProperties = &docx.WTableRowProperties{}
		}
		row.TableRowProperties.TableRowHeight = &docx.WTableRowHeight{Rule: "exact", Val: rowHeight}
	}

	linked := 0
	for _, f := range attach.Written(files) {
		addLink(appendParagraph(doc), f.Name, f.Path)
		linked++
	}

	path := filepath.Join(issueDir, FileName(rec))
	if err := save(doc, path); err != nil {
		return "", &AssembleError{Kind: Persist, Path: path, Err: err}
	}
	a.log.Info("saved report", "path", path, "attachments", linked)
	return path, nil
}

// resetCell clears the cell at c and returns its first paragraph.
func resetCell(table *docx.Table, c extract.Coord) *docx.Paragraph {
	cell := table.TableRows[c.Row].TableCells[c.Col]
	if len(cell.Paragraphs) == 0 {
		return cell.AddParagraph()
	}
	p := cell.Paragraphs[0]
	p.Children = p.Children[:0]
	cell.Paragraphs = cell.Paragraphs[:1]
	return p
}

// addLink appends a hyperlink whose label is an ordinary w:t run. go-docx
// stores the label as w:instrText, which Word treats as field code.
func addLink(p *docx.Paragraph, text, target string) *docx.Hyperlink {
	link := p.AddLink(text, target)
	link.Run.InstrText = ""
	link.Run.Children = append(link.Run.Children, &docx.Text{Text: text, XMLSpace: "preserve"})
	return link
}

func styleRun(r *docx.Run) {
	if r.RunProperties == nil {
		r.RunProperties = &docx.RunProperties{}
	}
	r.Size(fontSize).Font(fontName, fontName, fontName, "")
}

// appendParagraph adds a body paragraph, keeping a trailing section
// properties element last.
func appendParagraph(doc *docx.Docx) *docx.Paragraph {
	p := doc.AddParagraph()
	items := doc.Document.Body.Items
	if n := len(items); n >= 2 {
		if _, ok := items[n-2].(*docx.SectPr); ok {
			items[n-2], items[n-1] = items[n-1], items[n-2]
		}
	}
	return p
}

func save(doc *docx.Docx, path string) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".report-*.docx")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := doc.WriteTo(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("write docx: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}
