package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/mail"
	"strings"
	"time"

	"storyworlds/site/internal/auth"
	"storyworlds/site/internal/authpw"
	"storyworlds/site/internal/config"
	"storyworlds/site/internal/email"
	"storyworlds/site/internal/export"
	"storyworlds/site/internal/mapview"
	"storyworlds/site/internal/media"
	"storyworlds/site/internal/rbac"
	"storyworlds/site/internal/revisions"
	"storyworlds/site/internal/richtext"
	"storyworlds/site/internal/search"
	"storyworlds/site/internal/store"
	"storyworlds/site/internal/util"
)

type Session struct {
	Token     string
	UserID    string
	UserName  string
	Email     string
	Role      string
	SessionID string
	ExpiresAt time.Time
}

type dataStore interface {
	Ping(context.Context) error

	ListThemes(context.Context, bool) ([]store.Theme, error)
	GetTheme(context.Context, string) (store.Theme, error)
	UpsertTheme(context.Context, store.Theme) (store.Theme, error)

	ListStoryworlds(context.Context, bool) ([]store.Storyworld, error)
	ListMappedStoryworlds(context.Context) ([]store.Storyworld, error)
	GetStoryworldBySlug(context.Context, string, bool) (store.Storyworld, error)
	GetStoryworld(context.Context, string) (store.Storyworld, error)
	UpsertStoryworld(context.Context, store.Storyworld) (store.Storyworld, error)

	ListStorytellers(context.Context, bool) ([]store.Storyteller, error)
	GetStorytellerBySlug(context.Context, string, bool) (store.Storyteller, error)
	GetStoryteller(context.Context, string) (store.Storyteller, error)
	UpsertStoryteller(context.Context, store.Storyteller) (store.Storyteller, error)

	ListJournal(context.Context, store.JournalFilter) ([]store.JournalArticle, error)
	ListJournalCategories(context.Context) ([]string, error)
	GetJournalBySlug(context.Context, string, bool) (store.JournalArticle, error)
	GetJournal(context.Context, string) (store.JournalArticle, error)
	UpsertJournal(context.Context, store.JournalArticle) (store.JournalArticle, error)

	ListPress(context.Context, int) ([]store.PressItem, error)
	GetPress(context.Context, string) (store.PressItem, error)
	UpsertPress(context.Context, store.PressItem) (store.PressItem, error)

	ListServices(context.Context, bool) ([]store.Service, error)
	GetService(context.Context, string) (store.Service, error)
	UpsertService(context.Context, store.Service) (store.Service, error)

	CreateInquiry(context.Context, store.Inquiry) (store.Inquiry, error)
	ListInquiries(context.Context, string) ([]store.Inquiry, error)
	UpdateInquiryStatus(context.Context, string, string) error

	SubscribeNewsletter(context.Context, string, string) (bool, error)
	ListSubscribers(context.Context) ([]store.NewsletterSubscriber, error)

	GetPageMeta(context.Context, string) (store.PageMeta, error)
	ListPageMeta(context.Context) ([]store.PageMeta, error)
	GetPageMetaByID(context.Context, string) (store.PageMeta, error)
	UpsertPageMeta(context.Context, store.PageMeta) (store.PageMeta, error)

	SummaryCounts(context.Context) (store.SummaryCounts, error)

	GetUserByEmail(context.Context, string) (store.User, error)
	GetUserByID(context.Context, string) (store.User, error)
	CreateUser(context.Context, store.User) error
	UpdateUserPassword(context.Context, string, string) error

	sessionStore
}

// sessionStore keeps the server-side half of an admin session, keyed by
// the hash of the session id carried in the cookie.
type sessionStore interface {
	SaveSession(context.Context, string, string, time.Time) error
	LookupSession(context.Context, string) (string, error)
	RevokeSession(context.Context, string) error
}

type authenticator interface {
	SignIn(context.Context, authpw.SignInRequest) (store.User, error)
}

type searchService interface {
	Search(context.Context, search.Query) search.Response
	SyncJournal(store.JournalArticle)
	SyncStoryteller(store.Storyteller)
	SyncStoryworld(store.Storyworld)
}

type mailer interface {
	IsConfigured() bool
	SendNewsletterWelcome(string) error
	SendInquiryNotification(string, email.InquiryData) error
	SendInquiryAcknowledgement(email.InquiryData) error
}

type mediaUploader interface {
	Upload(context.Context, io.Reader) (media.Asset, error)
}

type revisionLog interface {
	Record(string, revisions.Snapshot, string) (revisions.Revision, bool, error)
	History(string, int) ([]revisions.Revision, error)
	Get(string, string) (revisions.Snapshot, revisions.Revision, error)
}

type sheetExporter interface {
	Export(context.Context, export.Sheet, export.Format) (*export.Result, error)
}

// Deps are the optional collaborators of the service. Nil members disable
// the feature they back; Sessions falls back to the content store.
type Deps struct {
	Sessions  sessionStore
	Search    searchService
	Mail      mailer
	Media     mediaUploader
	Revisions revisionLog
	Export    sheetExporter
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	auth      authenticator
	search    searchService
	mailer    mailer
	media     mediaUploader
	revisions revisionLog
	export    sheetExporter
	presets   mapview.Presets
	now       func() time.Time
	spawn     func(func())
}

func New(cfg config.Config, dataStore *store.PostgresStore, deps Deps) *Service {
	return newService(cfg, dataStore, authpw.NewService(dataStore), deps)
}

func newService(cfg config.Config, data dataStore, authn authenticator, deps Deps) *Service {
	sessions := deps.Sessions
	if sessions == nil {
		sessions = data
	}
	return &Service{
		cfg:       cfg,
		store:     data,
		sessions:  sessions,
		auth:      authn,
		search:    deps.Search,
		mailer:    deps.Mail,
		media:     deps.Media,
		revisions: deps.Revisions,
		export:    deps.Export,
		presets:   mapview.NewPresets(cfg.MapTileLightURL, cfg.MapTileDarkURL),
		now:       time.Now,
		spawn:     func(fn func()) { go fn() },
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) SiteName() string {
	return s.cfg.SiteName
}

// Sessions

func (s *Service) Login(ctx context.Context, emailAddress, password string) (Session, error) {
	user, err := s.auth.SignIn(ctx, authpw.SignInRequest{Email: emailAddress, Password: password})
	if err != nil {
		if errors.Is(err, authpw.ErrInvalidCredentials) {
			return Session{}, domainError(http.StatusUnauthorized, "INVALID_CREDENTIALS", "Incorrect email or password", nil)
		}
		return Session{}, err
	}
	return s.issueSession(ctx, user)
}

func (s *Service) issueSession(ctx context.Context, user store.User) (Session, error) {
	ttl := s.cfg.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expiresAt := s.now().Add(ttl)
	sessionID := util.NewSessionID("ses")

	if err := s.sessions.SaveSession(ctx, auth.HashToken(sessionID), user.ID, expiresAt); err != nil {
		return Session{}, fmt.Errorf("save session: %w", err)
	}

	token, err := auth.IssueToken([]byte(s.cfg.SessionSecret), auth.Claims{
		UserID:    user.ID,
		Role:      user.Role,
		SessionID: sessionID,
		Exp:       expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}, nil
}

// SessionFromToken resolves a cookie token. A revoked or unknown session
// reads as auth.ErrInvalidToken; the role comes from the user row so a
// demotion applies to live sessions.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.SessionSecret), token)
	if err != nil {
		return Session{}, err
	}

	userID, err := s.sessions.LookupSession(ctx, auth.HashToken(claims.SessionID))
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("lookup session: %w", err)
	}
	if userID != claims.UserID {
		return Session{}, auth.ErrInvalidToken
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, auth.ErrInvalidToken
	}
	if err != nil {
		return Session{}, fmt.Errorf("load session user: %w", err)
	}

	return Session{
		Token:     token,
		UserID:    user.ID,
		UserName:  user.DisplayName,
		Email:     user.Email,
		Role:      user.Role,
		SessionID: claims.SessionID,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session) error {
	if session.SessionID == "" {
		return nil
	}
	return s.sessions.RevokeSession(ctx, auth.HashToken(session.SessionID))
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

func (s *Service) require(session Session, action rbac.Action) error {
	if !s.Can(session.Role, action) {
		return domainError(http.StatusForbidden, "FORBIDDEN", "You do not have permission to do that", nil)
	}
	return nil
}

// Public pages

type HomePage struct {
	Themes      []store.Theme
	Storyworlds []store.Storyworld
	Journal     []store.JournalArticle
	Press       []store.PressItem
}

const (
	homeStoryworlds = 6
	homeJournal     = 3
	homePress       = 4
)

func (s *Service) Home(ctx context.Context) (HomePage, error) {
	themes, err := s.store.ListThemes(ctx, true)
	if err != nil {
		return HomePage{}, err
	}
	worlds, err := s.store.ListStoryworlds(ctx, true)
	if err != nil {
		return HomePage{}, err
	}
	if len(worlds) > homeStoryworlds {
		worlds = worlds[:homeStoryworlds]
	}
	journal, err := s.store.ListJournal(ctx, store.JournalFilter{PublishedOnly: true, Limit: homeJournal})
	if err != nil {
		return HomePage{}, err
	}
	press, err := s.store.ListPress(ctx, homePress)
	if err != nil {
		return HomePage{}, err
	}
	return HomePage{Themes: themes, Storyworlds: worlds, Journal: journal, Press: press}, nil
}

// ThemeGroup is a published theme with its published storyworlds.
type ThemeGroup struct {
	Theme       store.Theme
	Storyworlds []store.Storyworld
}

type ExperiencesPage struct {
	Groups []ThemeGroup
	// Unthemed holds storyworlds whose theme is missing or unpublished.
	Unthemed []store.Storyworld
	Total    int
}

func (s *Service) Experiences(ctx context.Context) (ExperiencesPage, error) {
	themes, err := s.store.ListThemes(ctx, true)
	if err != nil {
		return ExperiencesPage{}, err
	}
	worlds, err := s.store.ListStoryworlds(ctx, true)
	if err != nil {
		return ExperiencesPage{}, err
	}

	page := ExperiencesPage{Total: len(worlds)}
	index := make(map[string]int, len(themes))
	for i, theme := range themes {
		index[theme.ID] = i
		page.Groups = append(page.Groups, ThemeGroup{Theme: theme})
	}
	for _, world := range worlds {
		if world.ThemeID != nil {
			if i, ok := index[*world.ThemeID]; ok {
				page.Groups[i].Storyworlds = append(page.Groups[i].Storyworlds, world)
				continue
			}
		}
		page.Unthemed = append(page.Unthemed, world)
	}

	groups := page.Groups[:0]
	for _, group := range page.Groups {
		if len(group.Storyworlds) > 0 {
			groups = append(groups, group)
		}
	}
	page.Groups = groups
	return page, nil
}

type ExperiencePage struct {
	World store.Storyworld
	Theme *store.Theme
	Arc   store.StoryArc
	Pin   *mapview.Pin
	Style mapview.Style
}

func (s *Service) Experience(ctx context.Context, slug string) (ExperiencePage, error) {
	world, err := s.store.GetStoryworldBySlug(ctx, slug, true)
	if err != nil {
		return ExperiencePage{}, err
	}
	page := ExperiencePage{World: world, Arc: normalizeArc(world.StoryArc)}
	if world.ThemeID != nil {
		theme, err := s.store.GetTheme(ctx, *world.ThemeID)
		switch {
		case err == nil && theme.Published:
			page.Theme = &theme
		case err != nil && !errors.Is(err, sql.ErrNoRows):
			return ExperiencePage{}, err
		}
	}
	mode := mapview.ModeLight
	if page.Theme != nil {
		mode = page.Theme.Mode
	}
	page.Style = s.presets.For(mode)
	if pins := mapview.Pins([]store.Storyworld{world}); len(pins) == 1 {
		page.Pin = &pins[0]
	}
	return page, nil
}

func (s *Service) Explore(ctx context.Context) (mapview.View, error) {
	worlds, err := s.store.ListMappedStoryworlds(ctx)
	if err != nil {
		return mapview.View{}, err
	}
	return mapview.NewView(worlds, s.presets), nil
}

func (s *Service) Storytellers(ctx context.Context) ([]store.Storyteller, error) {
	return s.store.ListStorytellers(ctx, true)
}

func (s *Service) Storyteller(ctx context.Context, slug string) (store.Storyteller, error) {
	return s.store.GetStorytellerBySlug(ctx, slug, true)
}

type JournalPage struct {
	Articles   []store.JournalArticle
	Categories []string
	Category   string
	Query      string
	Results    []search.Result
}

// Searching reports whether the page lists search hits instead of articles.
func (p JournalPage) Searching() bool {
	return p.Query != ""
}

func (s *Service) Journal(ctx context.Context, category, query string) (JournalPage, error) {
	page := JournalPage{Category: strings.TrimSpace(category), Query: strings.TrimSpace(query)}

	categories, err := s.store.ListJournalCategories(ctx)
	if err != nil {
		return JournalPage{}, err
	}
	page.Categories = categories

	if page.Query != "" {
		response := s.Search(ctx, search.Query{
			Text:       page.Query,
			FilterType: search.ResultJournal,
			Category:   page.Category,
			Limit:      20,
		})
		page.Results = response.Results
		return page, nil
	}

	articles, err := s.store.ListJournal(ctx, store.JournalFilter{PublishedOnly: true, Category: page.Category})
	if err != nil {
		return JournalPage{}, err
	}
	page.Articles = articles
	return page, nil
}

func (s *Service) Article(ctx context.Context, slug string) (store.JournalArticle, error) {
	return s.store.GetJournalBySlug(ctx, slug, true)
}

// ArticleMarkdown renders a published article as a Markdown document.
func (s *Service) ArticleMarkdown(ctx context.Context, slug string) (string, error) {
	article, err := s.Article(ctx, slug)
	if err != nil {
		return "", err
	}
	body, err := richtext.Markdown(article.Content)
	if err != nil {
		return "", fmt.Errorf("convert article: %w", err)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", article.Title)
	if article.Author != "" {
		fmt.Fprintf(&b, "_By %s_\n\n", article.Author)
	}
	if article.Excerpt != "" {
		fmt.Fprintf(&b, "> %s\n\n", article.Excerpt)
	}
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n")
	return b.String(), nil
}

// Press lists every press item; the press page has no published gate.
func (s *Service) Press(ctx context.Context) ([]store.PressItem, error) {
	return s.store.ListPress(ctx, 0)
}

func (s *Service) Services(ctx context.Context) ([]store.Service, error) {
	return s.store.ListServices(ctx, true)
}

func (s *Service) ConciergeWidgetURL() string {
	return s.cfg.ConciergeWidgetURL
}

// PageMeta returns the override for path. A missing override is not an error.
func (s *Service) PageMeta(ctx context.Context, path string) (store.PageMeta, bool, error) {
	meta, err := s.store.GetPageMeta(ctx, path)
	if errors.Is(err, sql.ErrNoRows) {
		return store.PageMeta{}, false, nil
	}
	if err != nil {
		return store.PageMeta{}, false, err
	}
	return meta, true, nil
}

func (s *Service) Search(ctx context.Context, q search.Query) search.Response {
	if s.search == nil || strings.TrimSpace(q.Text) == "" {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(ctx, q)
}

// Newsletter and inquiries

// Subscribe registers an address for the newsletter. Subscribing an address
// that is already registered succeeds and reports created=false; only a new
// row triggers the welcome mail.
func (s *Service) Subscribe(ctx context.Context, address, source string) (bool, error) {
	address = strings.ToLower(strings.TrimSpace(address))
	if !validEmail(address) {
		return false, domainError(http.StatusUnprocessableEntity, "INVALID_EMAIL", "Please enter a valid email address", nil)
	}
	source = strings.TrimSpace(source)
	if source == "" {
		source = "site"
	}

	created, err := s.store.SubscribeNewsletter(ctx, address, source)
	if err != nil {
		return false, err
	}
	if created && s.mailer != nil && s.mailer.IsConfigured() {
		s.spawn(func() {
			if err := s.mailer.SendNewsletterWelcome(address); err != nil {
				log.Printf("email: welcome mail failed: %v", err)
			}
		})
	}
	return created, nil
}

type InquiryInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Interest string `json:"interest"`
	Message  string `json:"message"`
}

const maxInquiryMessage = 5000

func (s *Service) SubmitInquiry(ctx context.Context, input InquiryInput) (store.Inquiry, error) {
	inquiry := store.Inquiry{
		Name:     strings.TrimSpace(input.Name),
		Email:    strings.ToLower(strings.TrimSpace(input.Email)),
		Phone:    strings.TrimSpace(input.Phone),
		Interest: strings.TrimSpace(input.Interest),
		Message:  strings.TrimSpace(input.Message),
		Status:   store.InquiryStatusNew,
	}

	errs := fieldErrors{}
	if inquiry.Name == "" {
		errs["name"] = "Please tell us your name"
	}
	if !validEmail(inquiry.Email) {
		errs["email"] = "Please enter a valid email address"
	}
	if inquiry.Message == "" {
		errs["message"] = "Please tell us what you have in mind"
	} else if len(inquiry.Message) > maxInquiryMessage {
		errs["message"] = fmt.Sprintf("Please keep your message under %d characters", maxInquiryMessage)
	}
	if err := errs.err(); err != nil {
		return store.Inquiry{}, err
	}

	saved, err := s.store.CreateInquiry(ctx, inquiry)
	if err != nil {
		return store.Inquiry{}, err
	}

	if s.mailer != nil && s.mailer.IsConfigured() {
		data := email.InquiryData{
			Name:     saved.Name,
			Email:    saved.Email,
			Phone:    saved.Phone,
			Interest: saved.Interest,
			Message:  saved.Message,
		}
		team := s.cfg.ConciergeNotifyEmail
		s.spawn(func() {
			if team != "" {
				if err := s.mailer.SendInquiryNotification(team, data); err != nil {
					log.Printf("email: inquiry notification failed: %v", err)
				}
			}
			if err := s.mailer.SendInquiryAcknowledgement(data); err != nil {
				log.Printf("email: inquiry acknowledgement failed: %v", err)
			}
		})
	}
	return saved, nil
}

func validEmail(address string) bool {
	if address == "" {
		return false
	}
	parsed, err := mail.ParseAddress(address)
	return err == nil && parsed.Address == address
}

