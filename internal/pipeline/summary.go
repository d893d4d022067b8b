package pipeline

import (
	"bytes"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// Summary is the outcome of one run.
type Summary struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Jobs       []*Job
}

// Succeeded counts issues that produced a report.
func (s *Summary) Succeeded() int {
	n := 0
	for _, j := range s.Jobs {
		if j.Succeeded() {
			n++
		}
	}
	return n
}

// Failed counts issues without a report.
func (s *Summary) Failed() int { return len(s.Jobs) - s.Succeeded() }

// Markdown renders the run index: one table row per issue with links into
// the output tree.
func (s *Summary) Markdown() []byte {
	var b bytes.Buffer
	b.WriteString("# Issue reports\n\n")
	fmt.Fprintf(&b, "Run started %s, %d issues: %d reported, %d failed.\n\n",
		s.StartedAt.Format(time.RFC3339), len(s.Jobs), s.Succeeded(), s.Failed())

	b.WriteString("| Issue | Status | Folder | Report | PDF | Attachments | Errors |\n")
	b.WriteString("|---|---|---|---|---|---|---|\n")
	for _, j := range s.Jobs {
		attachments := ""
		if j.Progress.LinksFound > 0 {
			attachments = fmt.Sprintf("%d/%d", j.Progress.AttachmentsSaved, j.Progress.LinksFound)
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s | %s | %s | %s |\n",
			cell(j.IssueID),
			j.Status,
			link(j.Folder, j.Folder, ""),
			link(j.Report, j.Folder, j.Report),
			link(j.PDF, j.Folder, j.PDF),
			attachments,
			cell(strings.Join(j.Progress.Errors, "; ")),
		)
	}
	return b.Bytes()
}

// HTML renders the Markdown index as a standalone page.
func (s *Summary) HTML() ([]byte, error) {
	md := goldmark.New(goldmark.WithExtensions(extension.Table))
	var body bytes.Buffer
	if err := md.Convert(s.Markdown(), &body); err != nil {
		return nil, fmt.Errorf("render index: %w", err)
	}

	var b bytes.Buffer
	b.WriteString("<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>Issue reports</title>\n")
	b.WriteString("<style>table{border-collapse:collapse}td,th{border:1px solid #ccc;padding:2px 6px}</style>\n")
	b.WriteString("</head><body>\n")
	b.Write(body.Bytes())
	b.WriteString("</body></html>\n")
	return b.Bytes(), nil
}

// WriteIndex saves index.md and index.html under root.
func (s *Summary) WriteIndex(root string) error {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return fmt.Errorf("create output root: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, "index.md"), s.Markdown(), 0o644); err != nil {
		return fmt.Errorf("write index.md: %w", err)
	}
	page, err := s.HTML()
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(root, "index.html"), page, 0o644); err != nil {
		return fmt.Errorf("write index.html: %w", err)
	}
	return nil
}

func cell(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = html.EscapeString(s)
	return strings.ReplaceAll(s, "|", `\|`)
}

// link renders [text](<folder/file>), or nothing when text is empty.
func link(text, folder, file string) string {
	if text == "" {
		return ""
	}
	target := folder + "/"
	if file != "" {
		target += file
	}
	return fmt.Sprintf("[%s](<%s>)", cell(text), target)
}
