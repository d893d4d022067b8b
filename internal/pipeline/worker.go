package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/dgallion1/issuedoc/internal/attach"
	"github.com/dgallion1/issuedoc/internal/convert"
	"github.com/dgallion1/issuedoc/internal/extract"
	"github.com/dgallion1/issuedoc/internal/fetch"
)

// IssueFetcher retrieves a validated issue page.
type IssueFetcher interface {
	Fetch(ctx context.Context, id string) (*fetch.Page, error)
}

// Builder writes the report for an extracted issue.
type Builder interface {
	Build(rec *extract.IssueRecord, files []attach.Result, issueDir string) (string, error)
}

// Downloader saves an issue's attachments.
type Downloader interface {
	DownloadAll(ctx context.Context, issueDir string, links []extract.Anchor) []attach.Result
}

// Worker runs every step for one issue.
type Worker struct {
	fetcher    IssueFetcher
	fields     extract.FieldMap
	downloader Downloader
	builder    Builder
	converter  convert.Converter
	outputRoot string
	log        *slog.Logger
}

// NewWorker wires the per-issue steps. converter may be nil to skip PDF
// rendering.
func NewWorker(fetcher IssueFetcher, fields extract.FieldMap, downloader Downloader, builder Builder,
	converter convert.Converter, outputRoot string, log *slog.Logger) *Worker {
	return &Worker{
		fetcher:    fetcher,
		fields:     fields,
		downloader: downloader,
		builder:    builder,
		converter:  converter,
		outputRoot: outputRoot,
		log:        log,
	}
}

// Process fetches, extracts, downloads, assembles and converts one issue.
// A returned error means no report was written. Attachment and conversion
// failures are recorded on the job and leave it partial.
func (w *Worker) Process(ctx context.Context, job *Job) error {
	log := w.log.With("issue", job.IssueID)

	job.SetStatus(StatusFetching, "fetching")
	page, err := w.fetcher.Fetch(ctx, job.IssueID)
	if err != nil {
		return err
	}

	job.SetStatus(StatusExtracting, "extracting")
	rec, err := extract.Extract(page.Doc, page.URL, w.fields)
	if err != nil {
		return err
	}
	job.Folder = rec.FolderKey
	log = log.With("folder", rec.FolderKey)

	issueDir := filepath.Join(w.outputRoot, rec.FolderKey)
	if err := os.MkdirAll(issueDir, 0o755); err != nil {
		return fmt.Errorf("create issue dir: %w", err)
	}

	snapshot, err := extract.Snapshot(page.Doc)
	if err != nil {
		return err
	}
	job.Snapshot = extract.SnapshotName(rec.IssueNumber)
	if err := os.WriteFile(filepath.Join(issueDir, job.Snapshot), snapshot, 0o644); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	job.SnapshotHash = ContentHashHex(snapshot)
	log.Info("saved html snapshot", "file", job.Snapshot, "bytes", len(snapshot))

	job.SetStatus(StatusDownloading, "downloading")
	links := attach.Dedupe(extract.Anchors(page.Doc))
	results := w.downloader.DownloadAll(ctx, issueDir, links)
	saved := len(attach.Written(results))
	job.AddAttachments(len(links), saved, len(results)-saved)
	for _, r := range results {
		if r.Err != nil {
			job.AddError(r.Err.Error())
		}
	}

	job.SetStatus(StatusAssembling, "assembling")
	reportPath, err := w.builder.Build(rec, results, issueDir)
	if err != nil {
		return err
	}
	job.Report = filepath.Base(reportPath)

	if w.converter != nil {
		job.SetStatus(StatusConverting, "converting")
		pdfPath, err := w.converter.Convert(ctx, reportPath)
		if err != nil {
			log.Error("pdf conversion failed, keeping docx", "report", reportPath, "error", err)
			job.AddError(err.Error())
		} else {
			job.PDF = filepath.Base(pdfPath)
		}
	}

	if len(job.Progress.Errors) > 0 {
		job.SetStatus(StatusPartial, "done")
	} else {
		job.SetStatus(StatusCompleted, "done")
	}
	return nil
}
