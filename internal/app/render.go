package app

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"path"
	"strings"
	"time"

	"storyworlds/site/internal/rbac"
	"storyworlds/site/internal/richtext"
	"storyworlds/site/internal/search"
	"storyworlds/site/internal/store"
)

//go:embed templates static
var assets embed.FS

// pageData is the root value every template executes against.
type pageData struct {
	SiteName    string
	Title       string
	Description string
	OGImage     string
	Alternate   string
	Path        string
	Theme       string
	Section     string
	Status      int
	Session     *Session
	Nav         []sectionMeta
	Notice      string
	Error       string
	FieldErrors map[string]string
	Content     any
}

type renderer struct {
	pages map[string]*template.Template
}

var templateFuncs = template.FuncMap{
	"date":      formatDate,
	"isoDate":   isoDate,
	"markup":    richtext.Trusted,
	"excerpt":   richtext.Excerpt,
	"minutes":   richtext.ReadingMinutes,
	"phase":     phaseLabel,
	"highlight": search.HighlightHTML,
	"join":      strings.Join,
	"lower":     strings.ToLower,
	"canWrite":  func(s *Session) bool { return s != nil && rbac.Can(rbac.Normalize(s.Role), rbac.ActionWrite) },
	"canManage": func(s *Session) bool { return s != nil && rbac.Can(rbac.Normalize(s.Role), rbac.ActionManage) },
}

// mustRenderer parses each page together with its layout. Public pages live
// in templates/site, admin pages in templates/admin.
func mustRenderer() *renderer {
	r := &renderer{pages: make(map[string]*template.Template)}
	groups := []struct {
		prefix string
		layout []string
		glob   string
	}{
		{prefix: "", layout: []string{"templates/layout.html", "templates/partials.html"}, glob: "templates/site/*.html"},
		{prefix: "admin/", layout: []string{"templates/admin_layout.html"}, glob: "templates/admin/*.html"},
	}
	for _, group := range groups {
		files, err := fs.Glob(assets, group.glob)
		if err != nil {
			panic(fmt.Sprintf("templates: %v", err))
		}
		for _, file := range files {
			patterns := append(append([]string{}, group.layout...), file)
			t := template.Must(template.New(path.Base(file)).Funcs(templateFuncs).ParseFS(assets, patterns...))
			r.pages[group.prefix+strings.TrimSuffix(path.Base(file), ".html")] = t
		}
	}
	return r
}

func (r *renderer) render(w http.ResponseWriter, status int, name string, data pageData) {
	t, ok := r.pages[name]
	if !ok {
		log.Printf("render: unknown template %q", name)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("render %s: %v", name, err)
		http.Error(w, "Server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// renderPage renders a public page, applying any page metadata override
// stored for the request path.
func (s *HTTPServer) renderPage(w http.ResponseWriter, r *http.Request, name string, data pageData) {
	meta, found, err := s.service.PageMeta(r.Context(), r.URL.Path)
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	if found {
		if meta.Title != "" {
			data.Title = meta.Title
		}
		if meta.Description != "" {
			data.Description = meta.Description
		}
		if meta.OGImageURL != "" {
			data.OGImage = meta.OGImageURL
		}
	}
	s.fill(r, &data, http.StatusOK)
	s.views.render(w, http.StatusOK, name, data)
}

// renderError renders the public error page. Server faults are logged and
// shown generically.
func (s *HTTPServer) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status, _, message, _ := mapError(err)
	switch {
	case status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable:
		log.Printf("request %s: %v", requestID(r.Context()), err)
		message = "Something went wrong on our side. Please try again shortly."
	case status == http.StatusNotFound:
		message = "We could not find the page you were looking for."
	}
	data := pageData{Title: http.StatusText(status), Error: message}
	s.fill(r, &data, status)
	s.views.render(w, status, "error", data)
}

func (s *HTTPServer) renderAdmin(w http.ResponseWriter, r *http.Request, status int, name string, session *Session, data pageData) {
	data.Session = session
	data.Nav = s.nav
	s.fill(r, &data, status)
	s.views.render(w, status, "admin/"+name, data)
}

// renderAdminError shows an admin error page; 401 sends the user back to
// the login form.
func (s *HTTPServer) renderAdminError(w http.ResponseWriter, r *http.Request, session *Session, err error) {
	status, _, message, _ := mapError(err)
	if status == http.StatusUnauthorized {
		s.redirectToLogin(w, r)
		return
	}
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		log.Printf("request %s: %v", requestID(r.Context()), err)
		message = "Something went wrong. The error has been logged."
	}
	s.renderAdmin(w, r, status, "error", session, pageData{Title: http.StatusText(status), Error: message})
}

func (s *HTTPServer) fill(r *http.Request, data *pageData, status int) {
	data.SiteName = s.service.SiteName()
	data.Path = r.URL.Path
	data.Status = status
	if data.Theme == "" {
		data.Theme = "light"
	}
}

func formatDate(value any) string {
	switch t := value.(type) {
	case time.Time:
		if t.IsZero() {
			return ""
		}
		return t.Format("2 January 2006")
	case *time.Time:
		if t == nil || t.IsZero() {
			return ""
		}
		return t.Format("2 January 2006")
	default:
		return ""
	}
}

func isoDate(value any) string {
	switch t := value.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339)
	case *time.Time:
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	default:
		return ""
	}
}

var phaseLabels = map[string]string{
	store.PhaseArrival:    "Arrival",
	store.PhaseImmersion:  "Immersion",
	store.PhaseClimax:     "Climax",
	store.PhaseReflection: "Reflection",
}

func phaseLabel(phase string) string {
	if label, ok := phaseLabels[phase]; ok {
		return label
	}
	return phase
}
