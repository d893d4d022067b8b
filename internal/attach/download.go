package attach

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dgallion1/issuedoc/internal/extract"
)

// Getter issues authenticated GET requests. Redirects are followed.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
}

// Kind classifies a DownloadError.
type Kind int

const (
	Transport Kind = iota + 1
	Write
)

func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case Write:
		return "write"
	default:
		return "unknown"
	}
}

// DownloadError affects a single attachment; the rest of the batch and the
// report proceed without it.
type DownloadError struct {
	Kind Kind
	Name string
	URL  string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download %s from %s (%s): %v", e.Name, e.URL, e.Kind, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// Result is the outcome for one planned link. Err is a *DownloadError when
// the file was not written.
type Result struct {
	Name string
	URL  string
	// Path is relative to the issue folder, e.g. "attachments/report.pdf".
	Path string
	Size int64
	Err  error
}

// Downloader fetches attachments through an authenticated session.
type Downloader struct {
	sess    Getter
	baseURL string
	log     *slog.Logger
}

func NewDownloader(sess Getter, baseURL string, log *slog.Logger) *Downloader {
	return &Downloader{sess: sess, baseURL: baseURL, log: log}
}

// DownloadAll writes every link under issueDir/attachments. Each link is
// attempted once and independently; the result order matches links.
func (d *Downloader) DownloadAll(ctx context.Context, issueDir string, links []extract.Anchor) []Result {
	if len(links) == 0 {
		d.log.Warn("no attachment links found", "dir", issueDir)
		return nil
	}
	d.log.Info("found attachment links", "count", len(links))

	dir := filepath.Join(issueDir, Dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		results := make([]Result, 0, len(links))
		for _, p := range Plan(d.baseURL, links) {
			derr := &DownloadError{Kind: Write, Name: p.Name, URL: p.URL, Err: err}
			d.log.Error("attachment dir unavailable", "file", p.Name, "error", derr)
			results = append(results, Result{Name: p.Name, URL: p.URL, Err: derr})
		}
		return results
	}

	results := make([]Result, 0, len(links))
	for _, p := range Plan(d.baseURL, links) {
		res := Result{Name: p.Name, URL: p.URL, Path: Dir + "/" + p.Name}
		d.log.Info("downloading attachment", "file", p.Name, "url", p.URL)
		size, err := d.download(ctx, p, filepath.Join(dir, p.Name))
		if err != nil {
			d.log.Error("attachment download failed", "file", p.Name, "url", p.URL, "error", err)
			res.Path = ""
			res.Err = err
		} else {
			res.Size = size
			d.log.Info("saved attachment", "file", p.Name, "bytes", size)
		}
		results = append(results, res)
	}
	return results
}

func (d *Downloader) download(ctx context.Context, p Planned, dest string) (int64, error) {
	resp, err := d.sess.Get(ctx, p.URL)
	if err != nil {
		return 0, &DownloadError{Kind: Transport, Name: p.Name, URL: p.URL, Err: err}
	}
	defer resp.Body.Close()

	// Stream into a temp file so a failed transfer never leaves a partial
	// attachment under its final name.
	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return 0, &DownloadError{Kind: Write, Name: p.Name, URL: p.URL, Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	size, err := io.Copy(tmp, resp.Body)
	if err != nil {
		tmp.Close()
		return 0, &DownloadError{Kind: Transport, Name: p.Name, URL: p.URL, Err: fmt.Errorf("read body: %w", err)}
	}
	if err := tmp.Close(); err != nil {
		return 0, &DownloadError{Kind: Write, Name: p.Name, URL: p.URL, Err: err}
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return 0, &DownloadError{Kind: Write, Name: p.Name, URL: p.URL, Err: err}
	}
	return size, nil
}

// Written returns the successful results.
func Written(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r)
		}
	}
	return out
}
