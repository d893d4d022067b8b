// Package convert renders saved reports to PDF with an external office suite
// and checks that the produced file is a readable PDF.
package convert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	pdflib "github.com/ledongthuc/pdf"
)

// Converter turns a document into a sibling fixed-layout file.
type Converter interface {
	Convert(ctx context.Context, docPath string) (string, error)
}

// Kind classifies a ConvertError.
type Kind int

const (
	Run Kind = iota + 1
	Verify
)

func (k Kind) String() string {
	switch k {
	case Run:
		return "run"
	case Verify:
		return "verify"
	default:
		return "unknown"
	}
}

// ConvertError is reported for the issue; the .docx already on disk stays valid.
type ConvertError struct {
	Kind   Kind
	Path   string
	Output string
	Err    error
}

func (e *ConvertError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("convert %s (%s): %v: %s", e.Path, e.Kind, e.Err, e.Output)
	}
	return fmt.Sprintf("convert %s (%s): %v", e.Path, e.Kind, e.Err)
}

func (e *ConvertError) Unwrap() error { return e.Err }

// Command runs a LibreOffice-compatible binary:
//
//	soffice --headless --convert-to pdf --outdir DIR FILE
type Command struct {
	Bin     string
	Timeout time.Duration
	log     *slog.Logger
}

func NewCommand(bin string, timeout time.Duration, log *slog.Logger) *Command {
	return &Command{Bin: bin, Timeout: timeout, log: log}
}

// Convert writes docPath's PDF rendering next to it and returns its path.
func (c *Command) Convert(ctx context.Context, docPath string) (string, error) {
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	outDir := filepath.Dir(docPath)
	cmd := exec.CommandContext(ctx, c.Bin, "--headless", "--convert-to", "pdf", "--outdir", outDir, docPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		if ctxErr := ctx.Err(); errors.Is(ctxErr, context.DeadlineExceeded) {
			err = fmt.Errorf("timed out after %s: %w", c.Timeout, ctxErr)
		}
		return "", &ConvertError{Kind: Run, Path: docPath, Output: strings.TrimSpace(string(out)), Err: err}
	}

	pdfPath := strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".pdf"
	pages, err := PageCount(pdfPath)
	if err != nil {
		return "", &ConvertError{Kind: Verify, Path: pdfPath, Err: err}
	}
	c.log.Info("converted report", "pdf", pdfPath, "pages", pages)
	return pdfPath, nil
}

// PageCount opens a PDF and returns its page count. A file without pages is
// an error.
func PageCount(path string) (n int, err error) {
	defer func() {
		// The PDF reader panics on some malformed inputs.
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	f, reader, err := pdflib.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	n = reader.NumPage()
	if n == 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return n, nil
}
