package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"storyworlds/site/internal/auth"
	"storyworlds/site/internal/search"
)

const maxJSONBody = 64 << 10

type HTTPServer struct {
	service       *Service
	views         *renderer
	static        http.Handler
	sections      map[string]adminResource
	nav           []sectionMeta
	secureCookies bool
}

func NewHTTPServer(service *Service) *HTTPServer {
	staticFS, err := fs.Sub(assets, "static")
	if err != nil {
		panic(fmt.Sprintf("static assets: %v", err))
	}
	server := &HTTPServer{
		service:       service,
		views:         mustRenderer(),
		static:        http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))),
		secureCookies: service.cfg.SecureCookies,
	}
	server.sections, server.nav = adminSections(service)
	return server
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	readOnly := r.Method == http.MethodGet || r.Method == http.MethodHead

	if readOnly && strings.HasPrefix(path, "/static/") {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		s.static.ServeHTTP(w, r)
		return
	}

	if readOnly && path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if readOnly && path == "/api/ready" {
		// Check database connectivity
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if strings.HasPrefix(path, "/api/") {
		s.handleAPI(w, r)
		return
	}

	if path == "/admin" || strings.HasPrefix(path, "/admin/") {
		s.handleAdmin(w, r)
		return
	}

	if !readOnly {
		s.renderError(w, r, domainError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil))
		return
	}
	s.handlePublic(w, r, splitPath(path))
}

func (s *HTTPServer) handlePublic(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()

	switch {
	case len(parts) == 0:
		home, err := s.service.Home(ctx)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "home", pageData{Section: "home", Content: home})

	case len(parts) == 1 && parts[0] == "experiences":
		page, err := s.service.Experiences(ctx)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "experiences", pageData{Title: "Experiences", Section: "experiences", Content: page})

	case len(parts) == 2 && parts[0] == "experiences":
		page, err := s.service.Experience(ctx, parts[1])
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		data := pageData{
			Title:       page.World.Title,
			Description: page.World.Subtitle,
			OGImage:     page.World.HeroImageURL,
			Section:     "experiences",
			Content:     page,
		}
		if page.Theme != nil {
			data.Theme = page.Theme.Mode
		}
		s.renderPage(w, r, "experience", data)

	case len(parts) == 1 && parts[0] == "explore":
		view, err := s.service.Explore(ctx)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "explore", pageData{Title: "Explore", Section: "explore", Content: view})

	case len(parts) == 1 && parts[0] == "storytellers":
		tellers, err := s.service.Storytellers(ctx)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "storytellers", pageData{Title: "Storytellers", Section: "storytellers", Content: tellers})

	case len(parts) == 2 && parts[0] == "storytellers":
		teller, err := s.service.Storyteller(ctx, parts[1])
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "storyteller", pageData{
			Title:       teller.Name,
			Description: teller.Role,
			OGImage:     teller.PortraitURL,
			Section:     "storytellers",
			Content:     teller,
		})

	case len(parts) == 1 && parts[0] == "journal":
		query := r.URL.Query()
		page, err := s.service.Journal(ctx, query.Get("category"), query.Get("q"))
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "journal", pageData{Title: "Journal", Section: "journal", Content: page})

	case len(parts) == 2 && parts[0] == "journal" && strings.HasSuffix(parts[1], ".md"):
		markdown, err := s.service.ArticleMarkdown(ctx, strings.TrimSuffix(parts[1], ".md"))
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(markdown))

	case len(parts) == 2 && parts[0] == "journal":
		article, err := s.service.Article(ctx, parts[1])
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "article", pageData{
			Title:       article.Title,
			Description: article.Excerpt,
			OGImage:     article.CoverImageURL,
			Section:     "journal",
			Alternate:   "/journal/" + article.Slug + ".md",
			Content:     article,
		})

	case len(parts) == 1 && parts[0] == "press":
		items, err := s.service.Press(ctx)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "press", pageData{Title: "Press", Section: "press", Content: items})

	case len(parts) == 1 && parts[0] == "services":
		services, err := s.service.Services(ctx)
		if err != nil {
			s.renderError(w, r, err)
			return
		}
		s.renderPage(w, r, "services", pageData{Title: "Services", Section: "services", Content: services})

	case len(parts) == 1 && parts[0] == "concierge":
		s.renderPage(w, r, "concierge", pageData{
			Title:   "Concierge",
			Section: "concierge",
			Content: conciergePage{WidgetURL: s.service.ConciergeWidgetURL()},
		})

	default:
		s.renderError(w, r, sql.ErrNoRows)
	}
}

type conciergePage struct {
	WidgetURL string
}

func (s *HTTPServer) handleAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method == http.MethodPost && r.URL.Path == "/api/newsletter" {
		var body struct {
			Email  string `json:"email"`
			Source string `json:"source"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if _, err := s.service.Subscribe(ctx, body.Email, body.Source); err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		// New and existing subscribers get the same answer.
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "message": "Thank you for subscribing."})
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/inquiries" {
		var input InquiryInput
		if err := decodeBody(r, &input); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		inquiry, err := s.service.SubmitInquiry(ctx, input)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{
			"ok":      true,
			"id":      inquiry.ID,
			"message": "Thank you. A member of our concierge team will be in touch shortly.",
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		query := r.URL.Query()
		limit, _ := strconv.Atoi(query.Get("limit"))
		if limit <= 0 || limit > 50 {
			limit = 20
		}
		offset, _ := strconv.Atoi(query.Get("offset"))
		if offset < 0 {
			offset = 0
		}
		response := s.service.Search(ctx, search.Query{
			Text:       strings.TrimSpace(query.Get("q")),
			FilterType: search.ParseResultType(query.Get("type")),
			Category:   strings.TrimSpace(query.Get("category")),
			Limit:      limit,
			Offset:     offset,
		})
		for i := range response.Results {
			response.Results[i].Title = search.StripHighlights(response.Results[i].Title)
			response.Results[i].Snippet = search.StripHighlights(response.Results[i].Snippet)
		}
		writeJSON(w, http.StatusOK, response)
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/storyworlds/pins" {
		view, err := s.service.Explore(ctx)
		if err != nil {
			s.writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

// writeServiceError maps err for a JSON endpoint, logging server faults.
func (s *HTTPServer) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		log.Printf("request %s: %v", requestID(r.Context()), err)
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setDefaultHeaders(writer.Header())
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setDefaultHeaders(header http.Header) {
	header.Set("X-Content-Type-Options", "nosniff")
	header.Set("X-Frame-Options", "SAMEORIGIN")
	header.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody))
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
