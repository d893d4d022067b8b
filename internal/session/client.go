package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dgallion1/issuedoc/internal/detect"
)

// Options configures a Client.
type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Validator overrides the substring strategy used to recognize the
	// handshake responses.
	Validator detect.PageValidator
}

// Client owns the cookie state of one tracker session. It is not safe for
// concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	validator  detect.PageValidator
	httpClient *http.Client
	log        *slog.Logger

	authenticated bool
}

func NewClient(baseURL string, opts Options, log *slog.Logger) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		userAgent: opts.UserAgent,
		validator: opts.Validator,
		httpClient: &http.Client{
			Jar:     jar,
			Timeout: timeout,
		},
		log: log,
	}, nil
}

// BaseURL returns the tracker origin without a trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// Authenticated reports whether the handshake has completed.
func (c *Client) Authenticated() bool { return c.authenticated }

// Authenticate runs the two-step login handshake. The username step must be
// acknowledged with a password prompt echoing the username, and the password
// step must land on the authenticated start page.
func (c *Client) Authenticate(ctx context.Context, usernameURL, passwordURL, username, password string) error {
	c.authenticated = false
	v := c.validator
	if v == nil {
		v = detect.Default(username)
	}

	doc, err := c.postForm(ctx, usernameURL, url.Values{
		"return":   {"index.php"},
		"username": {username},
	})
	if err != nil {
		return &AuthError{Kind: AuthTransport, Step: "username", Err: err}
	}
	if got := v.Classify(doc); got != detect.ClassPasswordPrompt {
		return &AuthError{Kind: AuthUsernameRejected, Step: "username",
			Err: fmt.Errorf("expected password prompt, got %s page", got)}
	}
	c.log.Debug("username accepted", "username", username)

	doc, err = c.postForm(ctx, passwordURL, url.Values{
		"return":   {"login.php"},
		"username": {username},
		"password": {password},
	})
	if err != nil {
		return &AuthError{Kind: AuthTransport, Step: "password", Err: err}
	}
	if got := v.Classify(doc); got != detect.ClassLanding {
		return &AuthError{Kind: AuthLoginFailed, Step: "password",
			Err: fmt.Errorf("expected landing page, got %s page", got)}
	}

	c.authenticated = true
	c.log.Info("login successful", "username", username)
	return nil
}

// Get issues an authenticated GET. Redirects are followed. A non-2xx status
// is returned as *StatusError with the body already closed; otherwise the
// caller owns resp.Body.
func (c *Client) Get(ctx context.Context, rawURL string) (*http.Response, error) {
	if !c.authenticated {
		return nil, ErrNotAuthenticated
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	return c.do(req)
}

// Close drops idle connections and the authenticated state.
func (c *Client) Close() {
	c.authenticated = false
	c.httpClient.CloseIdleConnections()
}

func (c *Client) postForm(ctx context.Context, rawURL string, form url.Values) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", rawURL, err)
	}
	return doc, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		resp.Body.Close()
		return nil, &StatusError{
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}
	return resp, nil
}
