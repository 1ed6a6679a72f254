package app

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"time"

	"storyworlds/site/internal/authpw"
	"storyworlds/site/internal/config"
	"storyworlds/site/internal/email"
	"storyworlds/site/internal/search"
	"storyworlds/site/internal/store"
)

// Row ids in canonical form; handlers reject anything else before the store.
const (
	testArticleID = "0b6f6a52-4c1e-4a2b-9d59-3f1f2c7d8e01"
	testInquiryID = "7d2c9e11-5a3b-4f6e-8c0d-1e2f3a4b5c6d"
)

type fakeStore struct {
	pingFn                  func(context.Context) error
	listThemesFn            func(context.Context, bool) ([]store.Theme, error)
	getThemeFn              func(context.Context, string) (store.Theme, error)
	upsertThemeFn           func(context.Context, store.Theme) (store.Theme, error)
	listStoryworldsFn       func(context.Context, bool) ([]store.Storyworld, error)
	listMappedStoryworldsFn func(context.Context) ([]store.Storyworld, error)
	getStoryworldBySlugFn   func(context.Context, string, bool) (store.Storyworld, error)
	getStoryworldFn         func(context.Context, string) (store.Storyworld, error)
	upsertStoryworldFn      func(context.Context, store.Storyworld) (store.Storyworld, error)
	listStorytellersFn      func(context.Context, bool) ([]store.Storyteller, error)
	getStorytellerBySlugFn  func(context.Context, string, bool) (store.Storyteller, error)
	getStorytellerFn        func(context.Context, string) (store.Storyteller, error)
	upsertStorytellerFn     func(context.Context, store.Storyteller) (store.Storyteller, error)
	listJournalFn           func(context.Context, store.JournalFilter) ([]store.JournalArticle, error)
	listCategoriesFn        func(context.Context) ([]string, error)
	getJournalBySlugFn      func(context.Context, string, bool) (store.JournalArticle, error)
	getJournalFn            func(context.Context, string) (store.JournalArticle, error)
	upsertJournalFn         func(context.Context, store.JournalArticle) (store.JournalArticle, error)
	listPressFn             func(context.Context, int) ([]store.PressItem, error)
	getPressFn              func(context.Context, string) (store.PressItem, error)
	upsertPressFn           func(context.Context, store.PressItem) (store.PressItem, error)
	listServicesFn          func(context.Context, bool) ([]store.Service, error)
	getServiceFn            func(context.Context, string) (store.Service, error)
	upsertServiceFn         func(context.Context, store.Service) (store.Service, error)
	createInquiryFn         func(context.Context, store.Inquiry) (store.Inquiry, error)
	listInquiriesFn         func(context.Context, string) ([]store.Inquiry, error)
	updateInquiryStatusFn   func(context.Context, string, string) error
	subscribeFn             func(context.Context, string, string) (bool, error)
	listSubscribersFn       func(context.Context) ([]store.NewsletterSubscriber, error)
	getPageMetaFn           func(context.Context, string) (store.PageMeta, error)
	upsertPageMetaFn        func(context.Context, store.PageMeta) (store.PageMeta, error)
	summaryCountsFn         func(context.Context) (store.SummaryCounts, error)
	getUserByIDFn           func(context.Context, string) (store.User, error)

	mu       sync.Mutex
	sessions map[string]string
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) ListThemes(ctx context.Context, publishedOnly bool) ([]store.Theme, error) {
	if f.listThemesFn != nil {
		return f.listThemesFn(ctx, publishedOnly)
	}
	return nil, nil
}
func (f *fakeStore) GetTheme(ctx context.Context, id string) (store.Theme, error) {
	if f.getThemeFn != nil {
		return f.getThemeFn(ctx, id)
	}
	return store.Theme{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertTheme(ctx context.Context, theme store.Theme) (store.Theme, error) {
	if f.upsertThemeFn != nil {
		return f.upsertThemeFn(ctx, theme)
	}
	theme.ID = "theme-1"
	return theme, nil
}

func (f *fakeStore) ListStoryworlds(ctx context.Context, publishedOnly bool) ([]store.Storyworld, error) {
	if f.listStoryworldsFn != nil {
		return f.listStoryworldsFn(ctx, publishedOnly)
	}
	return nil, nil
}
func (f *fakeStore) ListMappedStoryworlds(ctx context.Context) ([]store.Storyworld, error) {
	if f.listMappedStoryworldsFn != nil {
		return f.listMappedStoryworldsFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetStoryworldBySlug(ctx context.Context, slug string, publishedOnly bool) (store.Storyworld, error) {
	if f.getStoryworldBySlugFn != nil {
		return f.getStoryworldBySlugFn(ctx, slug, publishedOnly)
	}
	return store.Storyworld{}, sql.ErrNoRows
}
func (f *fakeStore) GetStoryworld(ctx context.Context, id string) (store.Storyworld, error) {
	if f.getStoryworldFn != nil {
		return f.getStoryworldFn(ctx, id)
	}
	return store.Storyworld{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertStoryworld(ctx context.Context, world store.Storyworld) (store.Storyworld, error) {
	if f.upsertStoryworldFn != nil {
		return f.upsertStoryworldFn(ctx, world)
	}
	world.ID = "world-1"
	return world, nil
}

func (f *fakeStore) ListStorytellers(ctx context.Context, publishedOnly bool) ([]store.Storyteller, error) {
	if f.listStorytellersFn != nil {
		return f.listStorytellersFn(ctx, publishedOnly)
	}
	return nil, nil
}
func (f *fakeStore) GetStorytellerBySlug(ctx context.Context, slug string, publishedOnly bool) (store.Storyteller, error) {
	if f.getStorytellerBySlugFn != nil {
		return f.getStorytellerBySlugFn(ctx, slug, publishedOnly)
	}
	return store.Storyteller{}, sql.ErrNoRows
}
func (f *fakeStore) GetStoryteller(ctx context.Context, id string) (store.Storyteller, error) {
	if f.getStorytellerFn != nil {
		return f.getStorytellerFn(ctx, id)
	}
	return store.Storyteller{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertStoryteller(ctx context.Context, teller store.Storyteller) (store.Storyteller, error) {
	if f.upsertStorytellerFn != nil {
		return f.upsertStorytellerFn(ctx, teller)
	}
	teller.ID = "teller-1"
	return teller, nil
}

func (f *fakeStore) ListJournal(ctx context.Context, filter store.JournalFilter) ([]store.JournalArticle, error) {
	if f.listJournalFn != nil {
		return f.listJournalFn(ctx, filter)
	}
	return nil, nil
}
func (f *fakeStore) ListJournalCategories(ctx context.Context) ([]string, error) {
	if f.listCategoriesFn != nil {
		return f.listCategoriesFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) GetJournalBySlug(ctx context.Context, slug string, publishedOnly bool) (store.JournalArticle, error) {
	if f.getJournalBySlugFn != nil {
		return f.getJournalBySlugFn(ctx, slug, publishedOnly)
	}
	return store.JournalArticle{}, sql.ErrNoRows
}
func (f *fakeStore) GetJournal(ctx context.Context, id string) (store.JournalArticle, error) {
	if f.getJournalFn != nil {
		return f.getJournalFn(ctx, id)
	}
	return store.JournalArticle{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertJournal(ctx context.Context, article store.JournalArticle) (store.JournalArticle, error) {
	if f.upsertJournalFn != nil {
		return f.upsertJournalFn(ctx, article)
	}
	article.ID = "article-1"
	return article, nil
}

func (f *fakeStore) ListPress(ctx context.Context, limit int) ([]store.PressItem, error) {
	if f.listPressFn != nil {
		return f.listPressFn(ctx, limit)
	}
	return nil, nil
}
func (f *fakeStore) GetPress(ctx context.Context, id string) (store.PressItem, error) {
	if f.getPressFn != nil {
		return f.getPressFn(ctx, id)
	}
	return store.PressItem{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertPress(ctx context.Context, item store.PressItem) (store.PressItem, error) {
	if f.upsertPressFn != nil {
		return f.upsertPressFn(ctx, item)
	}
	item.ID = "press-1"
	return item, nil
}

func (f *fakeStore) ListServices(ctx context.Context, publishedOnly bool) ([]store.Service, error) {
	if f.listServicesFn != nil {
		return f.listServicesFn(ctx, publishedOnly)
	}
	return nil, nil
}
func (f *fakeStore) GetService(ctx context.Context, id string) (store.Service, error) {
	if f.getServiceFn != nil {
		return f.getServiceFn(ctx, id)
	}
	return store.Service{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertService(ctx context.Context, svc store.Service) (store.Service, error) {
	if f.upsertServiceFn != nil {
		return f.upsertServiceFn(ctx, svc)
	}
	svc.ID = "service-1"
	return svc, nil
}

func (f *fakeStore) CreateInquiry(ctx context.Context, inquiry store.Inquiry) (store.Inquiry, error) {
	if f.createInquiryFn != nil {
		return f.createInquiryFn(ctx, inquiry)
	}
	inquiry.ID = "inquiry-1"
	return inquiry, nil
}
func (f *fakeStore) ListInquiries(ctx context.Context, status string) ([]store.Inquiry, error) {
	if f.listInquiriesFn != nil {
		return f.listInquiriesFn(ctx, status)
	}
	return nil, nil
}
func (f *fakeStore) UpdateInquiryStatus(ctx context.Context, id, status string) error {
	if f.updateInquiryStatusFn != nil {
		return f.updateInquiryStatusFn(ctx, id, status)
	}
	return nil
}

func (f *fakeStore) SubscribeNewsletter(ctx context.Context, address, source string) (bool, error) {
	if f.subscribeFn != nil {
		return f.subscribeFn(ctx, address, source)
	}
	return true, nil
}
func (f *fakeStore) ListSubscribers(ctx context.Context) ([]store.NewsletterSubscriber, error) {
	if f.listSubscribersFn != nil {
		return f.listSubscribersFn(ctx)
	}
	return nil, nil
}

func (f *fakeStore) GetPageMeta(ctx context.Context, path string) (store.PageMeta, error) {
	if f.getPageMetaFn != nil {
		return f.getPageMetaFn(ctx, path)
	}
	return store.PageMeta{}, sql.ErrNoRows
}
func (f *fakeStore) ListPageMeta(context.Context) ([]store.PageMeta, error) { return nil, nil }
func (f *fakeStore) GetPageMetaByID(context.Context, string) (store.PageMeta, error) {
	return store.PageMeta{}, sql.ErrNoRows
}
func (f *fakeStore) UpsertPageMeta(ctx context.Context, meta store.PageMeta) (store.PageMeta, error) {
	if f.upsertPageMetaFn != nil {
		return f.upsertPageMetaFn(ctx, meta)
	}
	meta.ID = "meta-1"
	return meta, nil
}

func (f *fakeStore) SummaryCounts(ctx context.Context) (store.SummaryCounts, error) {
	if f.summaryCountsFn != nil {
		return f.summaryCountsFn(ctx)
	}
	return store.SummaryCounts{}, nil
}

func (f *fakeStore) GetUserByEmail(context.Context, string) (store.User, error) {
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) GetUserByID(ctx context.Context, id string) (store.User, error) {
	if f.getUserByIDFn != nil {
		return f.getUserByIDFn(ctx, id)
	}
	if user, ok := testUsers[id]; ok {
		return user, nil
	}
	return store.User{}, sql.ErrNoRows
}
func (f *fakeStore) CreateUser(context.Context, store.User) error { return nil }
func (f *fakeStore) UpdateUserPassword(context.Context, string, string) error { return nil }

func (f *fakeStore) SaveSession(_ context.Context, hash, userID string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = make(map[string]string)
	}
	f.sessions[hash] = userID
	return nil
}
func (f *fakeStore) LookupSession(_ context.Context, hash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	userID, ok := f.sessions[hash]
	if !ok {
		return "", sql.ErrNoRows
	}
	return userID, nil
}
func (f *fakeStore) RevokeSession(_ context.Context, hash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.sessions, hash)
	return nil
}

var testUsers = map[string]store.User{
	"user-admin":  {ID: "user-admin", DisplayName: "Ada Admin", Email: "ada@example.com", Role: "admin"},
	"user-editor": {ID: "user-editor", DisplayName: "Eli Editor", Email: "eli@example.com", Role: "editor"},
	"user-viewer": {ID: "user-viewer", DisplayName: "Vic Viewer", Email: "vic@example.com", Role: "viewer"},
}

// fakeAuth accepts "secret" as the password of every test user.
type fakeAuth struct{}

func (fakeAuth) SignIn(_ context.Context, req authpw.SignInRequest) (store.User, error) {
	for _, user := range testUsers {
		if strings.EqualFold(user.Email, strings.TrimSpace(req.Email)) && req.Password == "secret" {
			return user, nil
		}
	}
	return store.User{}, authpw.ErrInvalidCredentials
}

type fakeMailer struct {
	mu           sync.Mutex
	welcomes     []string
	notified     []string
	acknowledged []string
}

func (m *fakeMailer) IsConfigured() bool { return true }
func (m *fakeMailer) SendNewsletterWelcome(to string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.welcomes = append(m.welcomes, to)
	return nil
}
func (m *fakeMailer) SendInquiryNotification(to string, _ email.InquiryData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notified = append(m.notified, to)
	return nil
}
func (m *fakeMailer) SendInquiryAcknowledgement(data email.InquiryData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.acknowledged = append(m.acknowledged, data.Email)
	return nil
}

type fakeSearch struct {
	queries []search.Query
	synced  []string
	results []search.Result
}

func (f *fakeSearch) Search(_ context.Context, q search.Query) search.Response {
	f.queries = append(f.queries, q)
	return search.Response{Results: f.results, Total: len(f.results), Query: q.Text}
}
func (f *fakeSearch) SyncJournal(a store.JournalArticle) { f.synced = append(f.synced, "journal:"+a.ID) }
func (f *fakeSearch) SyncStoryteller(t store.Storyteller) { f.synced = append(f.synced, "storyteller:"+t.ID) }
func (f *fakeSearch) SyncStoryworld(w store.Storyworld) { f.synced = append(f.synced, "storyworld:"+w.ID) }

func testConfig() config.Config {
	return config.Config{
		SiteName:        "Storyworlds",
		BaseURL:         "http://localhost:8080",
		SessionSecret:   "test-secret",
		SessionTTL:      time.Hour,
		MapTileLightURL: "https://tiles.example/light/{z}/{x}/{y}.png",
		MapTileDarkURL:  "https://tiles.example/dark/{z}/{x}/{y}.png",
	}
}

// newTestService runs spawned work inline so tests can assert on it.
func newTestService(fs *fakeStore, deps Deps) *Service {
	svc := newService(testConfig(), fs, fakeAuth{}, deps)
	svc.spawn = func(fn func()) { fn() }
	return svc
}
