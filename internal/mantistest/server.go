// Package mantistest runs an in-process stand-in for the bug tracker: the two
// login steps, cookie-guarded issue pages and attachment downloads.
package mantistest

import (
	"fmt"
	"html"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const (
	sessionCookie = "MANTIS_STRING_COOKIE"
	pendingCookie = "MANTIS_PENDING_USER"
	sessionToken  = "0123456789abcdef"
)

// Server is a fake tracker. Configure it before Start; the maps must not be
// mutated afterwards.
type Server struct {
	Username string
	Password string

	// Pages maps issue id to the HTML served by view.php.
	Pages map[string]string
	// Files maps file_id to the bytes served by file_download.php.
	Files map[string][]byte
	// FileStatus forces an HTTP status for a file_id.
	FileStatus map[string]int
	// FileRedirect redirects a file_id to another file_id.
	FileRedirect map[string]string

	mu       sync.Mutex
	requests []string

	router chi.Router
}

func New(username, password string) *Server {
	s := &Server{
		Username:     username,
		Password:     password,
		Pages:        make(map[string]string),
		Files:        make(map[string][]byte),
		FileStatus:   make(map[string]int),
		FileRedirect: make(map[string]string),
	}
	s.setupRoutes()
	return s
}

// AddIssue registers the rendered page for iss.
func (s *Server) AddIssue(iss Issue) {
	s.Pages[iss.ID] = iss.HTML()
}

// Start serves the tracker until the test ends.
func (s *Server) Start(t testing.TB) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(s)
	t.Cleanup(ts.Close)
	return ts
}

// Requests returns "METHOD path" for every request received so far.
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.requests))
	copy(out, s.requests)
	return out
}

// UsernameURL and PasswordURL return the handshake endpoints under base.
func UsernameURL(base string) string { return base + "/login_password_page.php" }
func PasswordURL(base string) string { return base + "/login.php" }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) setupRoutes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.recordRequests)

	r.Get("/login_page.php", s.handleLoginPage)
	r.Post("/login_password_page.php", s.handleUsername)
	r.Post("/login.php", s.handlePassword)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)

		r.Get("/my_view_page.php", s.handleLanding)
		r.Get("/view.php", s.handleView)
		r.Get("/file_download.php", s.handleDownload)
	})

	s.router = r
}

func (s *Server) recordRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

// requireSession sends requests without the session cookie back to the
// login page, the way the tracker does.
func requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(sessionCookie)
		if err != nil || c.Value != sessionToken {
			http.Redirect(w, r, "/login_page.php", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	writePage(w, "Login", `<form method="post" action="login_password_page.php"><input name="username"></form>`)
}

func (s *Server) handleUsername(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	username := r.PostFormValue("username")
	if username == "" || username != s.Username {
		writePage(w, "Login", `<p>Your account may be disabled or blocked or the username you entered is incorrect.</p>`)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: pendingCookie, Value: username, Path: "/"})
	writePage(w, "Login", fmt.Sprintf(`<p>Enter password for '%s'</p><form method="post" action="login.php"><input type="password" name="password"></form>`,
		html.EscapeString(username)))
}

func (s *Server) handlePassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pending, err := r.Cookie(pendingCookie)
	if err != nil || pending.Value != r.PostFormValue("username") || r.PostFormValue("password") != s.Password {
		writePage(w, "Login", `<p>Your account may be disabled or blocked or the username/password you entered is incorrect.</p>`)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: sessionToken, Path: "/"})
	s.handleLanding(w, r)
}

func (s *Server) handleLanding(w http.ResponseWriter, r *http.Request) {
	writePage(w, "My View - MantisBT", `<h2>Assigned to Me (Unresolved)</h2>`)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	page, ok := s.Pages[id]
	if !ok {
		writePage(w, "MantisBT", fmt.Sprintf(`<p>Issue %s not found.</p>`, html.EscapeString(id)))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, page)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("file_id")
	if status, ok := s.FileStatus[id]; ok {
		http.Error(w, http.StatusText(status), status)
		return
	}
	if target, ok := s.FileRedirect[id]; ok {
		http.Redirect(w, r, "/file_download.php?type=bug&file_id="+target, http.StatusFound)
		return
	}
	data, ok := s.Files[id]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Write(data)
}

func writePage(w http.ResponseWriter, title, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body>%s</body></html>", html.EscapeString(title), body)
}
