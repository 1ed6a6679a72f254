package app

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"storyworlds/site/internal/auth"
	"storyworlds/site/internal/export"
	"storyworlds/site/internal/media"
	"storyworlds/site/internal/store"
)

const sessionCookieName = "storyworlds_session"

func (s *HTTPServer) handleAdmin(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-store")
	parts := splitPath(r.URL.Path)[1:]

	// The login form is the only admin page served without a session.
	if len(parts) == 1 && parts[0] == "login" {
		s.handleAdminLogin(w, r)
		return
	}

	session, ok := s.requireSession(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	get := r.Method == http.MethodGet || r.Method == http.MethodHead

	switch {
	case len(parts) == 0 && get:
		counts, err := s.service.Dashboard(ctx, session)
		if err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		s.renderAdmin(w, r, http.StatusOK, "dashboard", &session, pageData{Title: "Dashboard", Section: "dashboard", Content: counts})

	case len(parts) == 1 && parts[0] == "logout" && r.Method == http.MethodPost:
		if err := s.service.Logout(ctx, session); err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		s.clearSessionCookie(w)
		http.Redirect(w, r, "/admin/login", http.StatusSeeOther)

	case len(parts) == 1 && parts[0] == "media" && r.Method == http.MethodPost:
		s.handleMediaUpload(w, r, session)

	case len(parts) >= 1 && parts[0] == "inquiries":
		s.handleAdminInquiries(w, r, session, parts[1:])

	case len(parts) == 1 && parts[0] == "subscribers" && get:
		subscribers, err := s.service.Subscribers(ctx, session)
		if err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		s.renderAdmin(w, r, http.StatusOK, "subscribers", &session, pageData{Title: "Subscribers", Section: "subscribers", Content: subscribers})

	case len(parts) >= 3 && parts[0] == "journal" && parts[2] == "history" && get:
		s.handleArticleHistory(w, r, session, parts[1], parts[3:])

	case len(parts) == 3 && parts[2] == "export.pdf" && get:
		s.handleExport(w, r, session, parts[0], parts[1])

	case len(parts) == 0:
		s.renderAdminError(w, r, &session, domainError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil))

	default:
		section, ok := s.sections[parts[0]]
		if !ok {
			s.renderAdminError(w, r, &session, notFound())
			return
		}
		s.handleAdminSection(w, r, session, section, parts[1:])
	}
}

func (s *HTTPServer) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		if token := sessionToken(r); token != "" {
			if _, err := s.service.SessionFromToken(r.Context(), token); err == nil {
				http.Redirect(w, r, "/admin", http.StatusSeeOther)
				return
			}
		}
		s.renderAdmin(w, r, http.StatusOK, "login", nil, pageData{
			Title:   "Sign in",
			Content: loginForm{Next: safeNext(r.URL.Query().Get("next"))},
		})

	case http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.renderAdmin(w, r, http.StatusBadRequest, "login", nil, pageData{Title: "Sign in", Error: "The form could not be read.", Content: loginForm{}})
			return
		}
		form := loginForm{Email: strings.TrimSpace(r.PostForm.Get("email")), Next: safeNext(r.PostForm.Get("next"))}
		session, err := s.service.Login(r.Context(), form.Email, r.PostForm.Get("password"))
		if err != nil {
			status, _, message, _ := mapError(err)
			if status != http.StatusUnauthorized {
				s.renderAdminError(w, r, nil, err)
				return
			}
			s.renderAdmin(w, r, status, "login", nil, pageData{Title: "Sign in", Error: message, Content: form})
			return
		}
		s.setSessionCookie(w, session)
		http.Redirect(w, r, form.Next, http.StatusSeeOther)

	default:
		s.renderAdminError(w, r, nil, domainError(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil))
	}
}

type loginForm struct {
	Email string
	Next  string
}

// safeNext keeps post-login redirects inside the admin panel.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/admin") || strings.HasPrefix(next, "/admin/login") {
		return "/admin"
	}
	parsed, err := url.Parse(next)
	if err != nil || parsed.Host != "" || parsed.Scheme != "" {
		return "/admin"
	}
	return next
}

func (s *HTTPServer) requireSession(w http.ResponseWriter, r *http.Request) (Session, bool) {
	token := sessionToken(r)
	if token == "" {
		s.redirectToLogin(w, r)
		return Session{}, false
	}
	session, err := s.service.SessionFromToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredToken) || errors.Is(err, auth.ErrInvalidToken) {
			s.clearSessionCookie(w)
			s.redirectToLogin(w, r)
			return Session{}, false
		}
		s.renderAdminError(w, r, nil, err)
		return Session{}, false
	}
	return session, true
}

func (s *HTTPServer) redirectToLogin(w http.ResponseWriter, r *http.Request) {
	target := "/admin/login"
	if r.Method == http.MethodGet && r.URL.Path != "/admin" && r.URL.Path != "/admin/" {
		target += "?next=" + url.QueryEscape(r.URL.RequestURI())
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func sessionToken(r *http.Request) string {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (s *HTTPServer) setSessionCookie(w http.ResponseWriter, session Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    session.Token,
		Path:     "/admin",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/admin",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.secureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *HTTPServer) handleAdminSection(w http.ResponseWriter, r *http.Request, session Session, section adminResource, rest []string) {
	ctx := r.Context()
	meta := section.meta()
	get := r.Method == http.MethodGet || r.Method == http.MethodHead

	switch {
	case len(rest) == 0 && get:
		rows, err := section.rows(ctx)
		if err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		s.renderAdmin(w, r, http.StatusOK, "list", &session, pageData{
			Title:   meta.Title,
			Section: meta.Name,
			Content: listPage{Meta: meta, Rows: rows},
		})

	case len(rest) == 0 && r.Method == http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.renderAdminError(w, r, &session, domainError(http.StatusBadRequest, "INVALID_FORM", "The form could not be read", nil))
			return
		}
		id, view, err := section.submit(ctx, session, r.PostForm)
		if err != nil {
			status, _, message, details := mapError(err)
			if status != http.StatusUnprocessableEntity && status != http.StatusConflict {
				s.renderAdminError(w, r, &session, err)
				return
			}
			fieldErrs, _ := details.(map[string]string)
			s.renderAdmin(w, r, status, "form", &session, pageData{
				Title:       formTitle(meta, view.ID),
				Section:     meta.Name,
				Error:       message,
				FieldErrors: fieldErrs,
				Content:     formPage{Meta: meta, View: view},
			})
			return
		}
		http.Redirect(w, r, "/admin/"+meta.Name+"/"+url.PathEscape(id)+"?saved=1", http.StatusSeeOther)

	case len(rest) == 1 && get:
		id := rest[0]
		if id == "new" {
			id = ""
		}
		view, err := section.load(ctx, id)
		if err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		data := pageData{
			Title:   formTitle(meta, view.ID),
			Section: meta.Name,
			Content: formPage{Meta: meta, View: view},
		}
		if r.URL.Query().Get("saved") == "1" {
			data.Notice = meta.Singular + " saved."
		}
		s.renderAdmin(w, r, http.StatusOK, "form", &session, data)

	default:
		s.renderAdminError(w, r, &session, notFound())
	}
}

type listPage struct {
	Meta sectionMeta
	Rows []adminRow
}

type formPage struct {
	Meta sectionMeta
	View formView
}

func formTitle(meta sectionMeta, id string) string {
	if id == "" {
		return "New " + strings.ToLower(meta.Singular)
	}
	return "Edit " + strings.ToLower(meta.Singular)
}

func (s *HTTPServer) handleAdminInquiries(w http.ResponseWriter, r *http.Request, session Session, rest []string) {
	ctx := r.Context()

	switch {
	case len(rest) == 0 && (r.Method == http.MethodGet || r.Method == http.MethodHead):
		status := r.URL.Query().Get("status")
		inquiries, err := s.service.Inquiries(ctx, session, status)
		if err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		s.renderAdmin(w, r, http.StatusOK, "inquiries", &session, pageData{
			Title:   "Inquiries",
			Section: "inquiries",
			Content: inquiriesPage{
				Inquiries: inquiries,
				Status:    status,
				Statuses:  []string{store.InquiryStatusNew, store.InquiryStatusContacted, store.InquiryStatusClosed},
			},
		})

	case len(rest) == 2 && rest[1] == "status" && r.Method == http.MethodPost:
		if err := r.ParseForm(); err != nil {
			s.renderAdminError(w, r, &session, domainError(http.StatusBadRequest, "INVALID_FORM", "The form could not be read", nil))
			return
		}
		if err := s.service.SetInquiryStatus(ctx, session, rest[0], r.PostForm.Get("status")); err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		target := "/admin/inquiries"
		if filter := r.PostForm.Get("filter"); filter != "" {
			target += "?status=" + url.QueryEscape(filter)
		}
		http.Redirect(w, r, target, http.StatusSeeOther)

	default:
		s.renderAdminError(w, r, &session, notFound())
	}
}

type inquiriesPage struct {
	Inquiries []store.Inquiry
	Status    string
	Statuses  []string
}

func (s *HTTPServer) handleArticleHistory(w http.ResponseWriter, r *http.Request, session Session, id string, rest []string) {
	ctx := r.Context()

	switch len(rest) {
	case 0:
		history, err := s.service.ArticleHistory(ctx, id)
		if err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		s.renderAdmin(w, r, http.StatusOK, "history", &session, pageData{Title: "History", Section: "journal", Content: history})
	case 1:
		view, err := s.service.ArticleRevision(ctx, id, rest[0])
		if err != nil {
			s.renderAdminError(w, r, &session, err)
			return
		}
		s.renderAdmin(w, r, http.StatusOK, "revision", &session, pageData{Title: "Revision " + view.Revision.ShortHash, Section: "journal", Content: view})
	default:
		s.renderAdminError(w, r, &session, notFound())
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, session Session, section, id string) {
	format := export.FormatPDF
	if r.URL.Query().Get("format") == string(export.FormatHTML) {
		format = export.FormatHTML
	}

	var (
		result *export.Result
		err    error
	)
	switch section {
	case "journal":
		result, err = s.service.ExportArticle(r.Context(), id, format)
	case "storytellers":
		result, err = s.service.ExportStoryteller(r.Context(), id, format)
	default:
		err = notFound()
	}
	if err != nil {
		s.renderAdminError(w, r, &session, err)
		return
	}

	disposition := "attachment"
	if format == export.FormatHTML {
		disposition = "inline"
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", disposition+`; filename="`+result.Filename+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(len(result.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

// handleMediaUpload accepts a multipart "file" field and answers with JSON
// for the rich-text editor and image fields.
func (s *HTTPServer) handleMediaUpload(w http.ResponseWriter, r *http.Request, session Session) {
	r.Body = http.MaxBytesReader(w, r.Body, media.MaxUploadBytes+1<<20)
	file, _, err := r.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "The file is too large", nil)
			return
		}
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", "Expected a file field named \"file\"", nil)
		return
	}
	defer file.Close()

	asset, err := s.service.UploadMedia(r.Context(), session, file)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"url":         asset.URL,
		"key":         asset.Key,
		"contentType": asset.ContentType,
		"size":        asset.Size,
	})
}
