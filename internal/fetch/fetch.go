package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/issuedoc/internal/detect"
)

// ViewPath is the issue-detail page relative to the tracker base.
const ViewPath = "view.php"

// Getter issues authenticated GET requests against the tracker.
type Getter interface {
	Get(ctx context.Context, rawURL string) (*http.Response, error)
	BaseURL() string
}

// Page is a fetched and parsed issue-detail page.
type Page struct {
	ID   string
	URL  string
	Body []byte
	Doc  *goquery.Document
}

// Kind classifies a FetchError.
type Kind int

const (
	NotAnIssuePage Kind = iota + 1
	Transport
)

func (k Kind) String() string {
	switch k {
	case NotAnIssuePage:
		return "not_an_issue_page"
	case Transport:
		return "transport"
	default:
		return "unknown"
	}
}

// FetchError skips one issue; the run continues.
type FetchError struct {
	Kind Kind
	ID   string
	URL  string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch issue %s (%s): %v", e.ID, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher retrieves issue pages through an authenticated session.
type Fetcher struct {
	sess      Getter
	validator detect.PageValidator
	log       *slog.Logger
}

// NewFetcher creates a Fetcher. A nil validator selects the default
// substring strategy.
func NewFetcher(sess Getter, validator detect.PageValidator, log *slog.Logger) *Fetcher {
	if validator == nil {
		validator = detect.Default("")
	}
	return &Fetcher{sess: sess, validator: validator, log: log}
}

// IssueURL returns the issue-detail address for id.
func IssueURL(base, id string) string {
	return fmt.Sprintf("%s/%s?id=%s", base, ViewPath, url.QueryEscape(id))
}

// Fetch retrieves and validates the page for id.
func (f *Fetcher) Fetch(ctx context.Context, id string) (*Page, error) {
	issueURL := IssueURL(f.sess.BaseURL(), id)

	resp, err := f.sess.Get(ctx, issueURL)
	if err != nil {
		return nil, &FetchError{Kind: Transport, ID: id, URL: issueURL, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{Kind: Transport, ID: id, URL: issueURL, Err: fmt.Errorf("read body: %w", err)}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Kind: NotAnIssuePage, ID: id, URL: issueURL, Err: fmt.Errorf("parse html: %w", err)}
	}
	if got := f.validator.Classify(doc); got != detect.ClassIssue {
		return nil, &FetchError{Kind: NotAnIssuePage, ID: id, URL: issueURL,
			Err: fmt.Errorf("page classified as %s", got)}
	}

	f.log.Info("accessed issue page", "issue", id, "bytes", len(body))
	return &Page{ID: id, URL: issueURL, Body: body, Doc: doc}, nil
}
