package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

const (
	tableThemes       = "themes"
	tableStoryworlds  = "storyworlds"
	tableStorytellers = "storytellers"
	tableJournal      = "journal_articles"
	tablePress        = "press_items"
	tableServices     = "services"
	tableInquiries    = "inquiries"
	tableSubscribers  = "newsletter_subscribers"
	tablePageMeta     = "page_meta"
	tableUsers        = "users"
)

var (
	themeColumns       = []string{"id", "slug", "title", "description", "hero_image_url", "mode", "published", "display_order", "created_at", "updated_at"}
	storyworldColumns  = []string{"id", "slug", "title", "subtitle", "description", "hero_image_url", "theme_id", "region", "latitude", "longitude", "story_arc", "published", "display_order", "created_at", "updated_at"}
	storytellerColumns = []string{"id", "slug", "name", "role", "bio", "portrait_url", "location", "signature_experiences", "published", "display_order", "created_at", "updated_at"}
	journalColumns     = []string{"id", "slug", "title", "excerpt", "content", "category", "cover_image_url", "author", "tags", "published", "display_order", "published_at", "created_at", "updated_at"}
	pressColumns       = []string{"id", "title", "source", "quote", "url", "logo_url", "published", "display_order", "published_at", "created_at", "updated_at"}
	serviceColumns     = []string{"id", "slug", "title", "summary", "description", "icon", "published", "display_order", "created_at", "updated_at"}
	inquiryColumns     = []string{"id", "name", "email", "phone", "interest", "message", "status", "created_at", "updated_at"}
	subscriberColumns  = []string{"id", "email", "source", "created_at"}
	pageMetaColumns    = []string{"id", "path", "title", "description", "og_image_url", "created_at", "updated_at"}
	userColumns        = []string{"id", "display_name", "email", "password_hash", "role", "created_at", "updated_at"}
)

type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: sqlx.NewDb(db, "pgx")}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db.DB
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Select runs a list query built from the Query description.
func (s *PostgresStore) Select(ctx context.Context, dest any, q Query) error {
	query, args, err := q.Build()
	if err != nil {
		return err
	}
	if err := s.db.SelectContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("select %s: %w", q.Table, err)
	}
	return nil
}

// Get runs a single-row query. It returns sql.ErrNoRows unwrapped-compatible when nothing matches.
func (s *PostgresStore) Get(ctx context.Context, dest any, q Query) error {
	query, args, err := q.Take(1).Build()
	if err != nil {
		return err
	}
	if err := s.db.GetContext(ctx, dest, query, args...); err != nil {
		return fmt.Errorf("get %s: %w", q.Table, err)
	}
	return nil
}

func (s *PostgresStore) upsert(ctx context.Context, op, query string, arg any, dest any) error {
	bound, args, err := sqlx.Named(query, arg)
	if err != nil {
		return fmt.Errorf("%s: bind: %w", op, err)
	}
	bound = s.db.Rebind(bound)
	if err := s.db.QueryRowxContext(ctx, bound, args...).StructScan(dest); err != nil {
		return wrapWriteError(op, err)
	}
	return nil
}

func withPublished(q Query, publishedOnly bool) Query {
	if publishedOnly {
		return q.Where(Published())
	}
	return q
}

func ensureID(id string) string {
	if strings.TrimSpace(id) == "" {
		return uuid.NewString()
	}
	return id
}

// Themes

func (s *PostgresStore) ListThemes(ctx context.Context, publishedOnly bool) ([]Theme, error) {
	items := make([]Theme, 0)
	q := withPublished(From(tableThemes, themeColumns...), publishedOnly).OrderBy(Asc("display_order"))
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) GetTheme(ctx context.Context, id string) (Theme, error) {
	var item Theme
	err := s.Get(ctx, &item, From(tableThemes, themeColumns...).Where(Eq("id", id)))
	return item, err
}

const upsertThemeSQL = `
	INSERT INTO themes (id, slug, title, description, hero_image_url, mode, published, display_order)
	VALUES (:id, :slug, :title, :description, :hero_image_url, :mode, :published, :display_order)
	ON CONFLICT (id) DO UPDATE SET
		slug = EXCLUDED.slug,
		title = EXCLUDED.title,
		description = EXCLUDED.description,
		hero_image_url = EXCLUDED.hero_image_url,
		mode = EXCLUDED.mode,
		published = EXCLUDED.published,
		display_order = EXCLUDED.display_order,
		updated_at = NOW()
	RETURNING id, slug, title, description, hero_image_url, mode, published, display_order, created_at, updated_at
`

func (s *PostgresStore) UpsertTheme(ctx context.Context, item Theme) (Theme, error) {
	item.ID = ensureID(item.ID)
	var saved Theme
	err := s.upsert(ctx, "upsert theme", upsertThemeSQL, item, &saved)
	return saved, err
}

// Storyworlds

func (s *PostgresStore) ListStoryworlds(ctx context.Context, publishedOnly bool) ([]Storyworld, error) {
	items := make([]Storyworld, 0)
	q := withPublished(From(tableStoryworlds, storyworldColumns...), publishedOnly).OrderBy(Asc("display_order"))
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

// ListMappedStoryworlds returns published storyworlds carrying both coordinates.
func (s *PostgresStore) ListMappedStoryworlds(ctx context.Context) ([]Storyworld, error) {
	items := make([]Storyworld, 0)
	q := From(tableStoryworlds, storyworldColumns...).
		Where(Published(), NotNull("latitude"), NotNull("longitude")).
		OrderBy(Asc("display_order"))
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) GetStoryworldBySlug(ctx context.Context, slug string, publishedOnly bool) (Storyworld, error) {
	var item Storyworld
	q := withPublished(From(tableStoryworlds, storyworldColumns...).Where(Eq("slug", slug)), publishedOnly)
	err := s.Get(ctx, &item, q)
	return item, err
}

func (s *PostgresStore) GetStoryworld(ctx context.Context, id string) (Storyworld, error) {
	var item Storyworld
	err := s.Get(ctx, &item, From(tableStoryworlds, storyworldColumns...).Where(Eq("id", id)))
	return item, err
}

const upsertStoryworldSQL = `
	INSERT INTO storyworlds (id, slug, title, subtitle, description, hero_image_url, theme_id, region, latitude, longitude, story_arc, published, display_order)
	VALUES (:id, :slug, :title, :subtitle, :description, :hero_image_url, :theme_id, :region, :latitude, :longitude, :story_arc, :published, :display_order)
	ON CONFLICT (id) DO UPDATE SET
		slug = EXCLUDED.slug,
		title = EXCLUDED.title,
		subtitle = EXCLUDED.subtitle,
		description = EXCLUDED.description,
		hero_image_url = EXCLUDED.hero_image_url,
		theme_id = EXCLUDED.theme_id,
		region = EXCLUDED.region,
		latitude = EXCLUDED.latitude,
		longitude = EXCLUDED.longitude,
		story_arc = EXCLUDED.story_arc,
		published = EXCLUDED.published,
		display_order = EXCLUDED.display_order,
		updated_at = NOW()
	RETURNING id, slug, title, subtitle, description, hero_image_url, theme_id, region, latitude, longitude, story_arc, published, display_order, created_at, updated_at
`

func (s *PostgresStore) UpsertStoryworld(ctx context.Context, item Storyworld) (Storyworld, error) {
	item.ID = ensureID(item.ID)
	var saved Storyworld
	err := s.upsert(ctx, "upsert storyworld", upsertStoryworldSQL, item, &saved)
	return saved, err
}

// Storytellers

func (s *PostgresStore) ListStorytellers(ctx context.Context, publishedOnly bool) ([]Storyteller, error) {
	items := make([]Storyteller, 0)
	q := withPublished(From(tableStorytellers, storytellerColumns...), publishedOnly).OrderBy(Asc("display_order"))
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) GetStorytellerBySlug(ctx context.Context, slug string, publishedOnly bool) (Storyteller, error) {
	var item Storyteller
	q := withPublished(From(tableStorytellers, storytellerColumns...).Where(Eq("slug", slug)), publishedOnly)
	err := s.Get(ctx, &item, q)
	return item, err
}

func (s *PostgresStore) GetStoryteller(ctx context.Context, id string) (Storyteller, error) {
	var item Storyteller
	err := s.Get(ctx, &item, From(tableStorytellers, storytellerColumns...).Where(Eq("id", id)))
	return item, err
}

const upsertStorytellerSQL = `
	INSERT INTO storytellers (id, slug, name, role, bio, portrait_url, location, signature_experiences, published, display_order)
	VALUES (:id, :slug, :name, :role, :bio, :portrait_url, :location, :signature_experiences, :published, :display_order)
	ON CONFLICT (id) DO UPDATE SET
		slug = EXCLUDED.slug,
		name = EXCLUDED.name,
		role = EXCLUDED.role,
		bio = EXCLUDED.bio,
		portrait_url = EXCLUDED.portrait_url,
		location = EXCLUDED.location,
		signature_experiences = EXCLUDED.signature_experiences,
		published = EXCLUDED.published,
		display_order = EXCLUDED.display_order,
		updated_at = NOW()
	RETURNING id, slug, name, role, bio, portrait_url, location, signature_experiences, published, display_order, created_at, updated_at
`

func (s *PostgresStore) UpsertStoryteller(ctx context.Context, item Storyteller) (Storyteller, error) {
	item.ID = ensureID(item.ID)
	var saved Storyteller
	err := s.upsert(ctx, "upsert storyteller", upsertStorytellerSQL, item, &saved)
	return saved, err
}

// Journal

type JournalFilter struct {
	PublishedOnly bool
	Category      string
	Limit         int
}

func (s *PostgresStore) ListJournal(ctx context.Context, filter JournalFilter) ([]JournalArticle, error) {
	items := make([]JournalArticle, 0)
	q := withPublished(From(tableJournal, journalColumns...), filter.PublishedOnly)
	if filter.Category != "" {
		q = q.Where(Eq("category", filter.Category))
	}
	q = q.OrderBy(DescNullsLast("published_at")).Take(filter.Limit)
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) ListJournalCategories(ctx context.Context) ([]string, error) {
	categories := make([]string, 0)
	err := s.db.SelectContext(ctx, &categories, `
		SELECT DISTINCT category
		FROM journal_articles
		WHERE published = TRUE AND category <> ''
		ORDER BY category
	`)
	if err != nil {
		return nil, fmt.Errorf("list journal categories: %w", err)
	}
	return categories, nil
}

func (s *PostgresStore) GetJournalBySlug(ctx context.Context, slug string, publishedOnly bool) (JournalArticle, error) {
	var item JournalArticle
	q := withPublished(From(tableJournal, journalColumns...).Where(Eq("slug", slug)), publishedOnly)
	err := s.Get(ctx, &item, q)
	return item, err
}

func (s *PostgresStore) GetJournal(ctx context.Context, id string) (JournalArticle, error) {
	var item JournalArticle
	err := s.Get(ctx, &item, From(tableJournal, journalColumns...).Where(Eq("id", id)))
	return item, err
}

const upsertJournalSQL = `
	INSERT INTO journal_articles (id, slug, title, excerpt, content, category, cover_image_url, author, tags, published, display_order, published_at)
	VALUES (:id, :slug, :title, :excerpt, :content, :category, :cover_image_url, :author, :tags, :published, :display_order, :published_at)
	ON CONFLICT (id) DO UPDATE SET
		slug = EXCLUDED.slug,
		title = EXCLUDED.title,
		excerpt = EXCLUDED.excerpt,
		content = EXCLUDED.content,
		category = EXCLUDED.category,
		cover_image_url = EXCLUDED.cover_image_url,
		author = EXCLUDED.author,
		tags = EXCLUDED.tags,
		published = EXCLUDED.published,
		display_order = EXCLUDED.display_order,
		published_at = EXCLUDED.published_at,
		updated_at = NOW()
	RETURNING id, slug, title, excerpt, content, category, cover_image_url, author, tags, published, display_order, published_at, created_at, updated_at
`

func (s *PostgresStore) UpsertJournal(ctx context.Context, item JournalArticle) (JournalArticle, error) {
	item.ID = ensureID(item.ID)
	var saved JournalArticle
	err := s.upsert(ctx, "upsert journal article", upsertJournalSQL, item, &saved)
	return saved, err
}

// Press

// ListPress returns press coverage newest first. Press carries no published gate on the public page.
func (s *PostgresStore) ListPress(ctx context.Context, limit int) ([]PressItem, error) {
	items := make([]PressItem, 0)
	q := From(tablePress, pressColumns...).OrderBy(DescNullsLast("published_at")).Take(limit)
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) GetPress(ctx context.Context, id string) (PressItem, error) {
	var item PressItem
	err := s.Get(ctx, &item, From(tablePress, pressColumns...).Where(Eq("id", id)))
	return item, err
}

const upsertPressSQL = `
	INSERT INTO press_items (id, title, source, quote, url, logo_url, published, display_order, published_at)
	VALUES (:id, :title, :source, :quote, :url, :logo_url, :published, :display_order, :published_at)
	ON CONFLICT (id) DO UPDATE SET
		title = EXCLUDED.title,
		source = EXCLUDED.source,
		quote = EXCLUDED.quote,
		url = EXCLUDED.url,
		logo_url = EXCLUDED.logo_url,
		published = EXCLUDED.published,
		display_order = EXCLUDED.display_order,
		published_at = EXCLUDED.published_at,
		updated_at = NOW()
	RETURNING id, title, source, quote, url, logo_url, published, display_order, published_at, created_at, updated_at
`

func (s *PostgresStore) UpsertPress(ctx context.Context, item PressItem) (PressItem, error) {
	item.ID = ensureID(item.ID)
	var saved PressItem
	err := s.upsert(ctx, "upsert press item", upsertPressSQL, item, &saved)
	return saved, err
}

// Services

func (s *PostgresStore) ListServices(ctx context.Context, publishedOnly bool) ([]Service, error) {
	items := make([]Service, 0)
	q := withPublished(From(tableServices, serviceColumns...), publishedOnly).OrderBy(Asc("display_order"))
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) GetService(ctx context.Context, id string) (Service, error) {
	var item Service
	err := s.Get(ctx, &item, From(tableServices, serviceColumns...).Where(Eq("id", id)))
	return item, err
}

const upsertServiceSQL = `
	INSERT INTO services (id, slug, title, summary, description, icon, published, display_order)
	VALUES (:id, :slug, :title, :summary, :description, :icon, :published, :display_order)
	ON CONFLICT (id) DO UPDATE SET
		slug = EXCLUDED.slug,
		title = EXCLUDED.title,
		summary = EXCLUDED.summary,
		description = EXCLUDED.description,
		icon = EXCLUDED.icon,
		published = EXCLUDED.published,
		display_order = EXCLUDED.display_order,
		updated_at = NOW()
	RETURNING id, slug, title, summary, description, icon, published, display_order, created_at, updated_at
`

func (s *PostgresStore) UpsertService(ctx context.Context, item Service) (Service, error) {
	item.ID = ensureID(item.ID)
	var saved Service
	err := s.upsert(ctx, "upsert service", upsertServiceSQL, item, &saved)
	return saved, err
}

// Inquiries

func (s *PostgresStore) CreateInquiry(ctx context.Context, item Inquiry) (Inquiry, error) {
	item.ID = ensureID(item.ID)
	if item.Status == "" {
		item.Status = InquiryStatusNew
	}
	var saved Inquiry
	err := s.upsert(ctx, "create inquiry", `
		INSERT INTO inquiries (id, name, email, phone, interest, message, status)
		VALUES (:id, :name, :email, :phone, :interest, :message, :status)
		RETURNING id, name, email, phone, interest, message, status, created_at, updated_at
	`, item, &saved)
	return saved, err
}

func (s *PostgresStore) ListInquiries(ctx context.Context, status string) ([]Inquiry, error) {
	items := make([]Inquiry, 0)
	q := From(tableInquiries, inquiryColumns...)
	if status != "" {
		q = q.Where(Eq("status", status))
	}
	q = q.OrderBy(Order{Column: "created_at", Desc: true})
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) UpdateInquiryStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE inquiries SET status=$2, updated_at=NOW() WHERE id=$1`, id, status)
	if err != nil {
		return fmt.Errorf("update inquiry status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update inquiry status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Newsletter

// SubscribeNewsletter inserts the subscriber unless the email is already
// registered. created reports whether a new row was written; an existing
// subscription is not an error.
func (s *PostgresStore) SubscribeNewsletter(ctx context.Context, email, source string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO newsletter_subscribers (id, email, source)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO NOTHING
	`, uuid.NewString(), email, source)
	if err != nil {
		return false, fmt.Errorf("subscribe newsletter: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("subscribe newsletter: %w", err)
	}
	return affected == 1, nil
}

func (s *PostgresStore) ListSubscribers(ctx context.Context) ([]NewsletterSubscriber, error) {
	items := make([]NewsletterSubscriber, 0)
	q := From(tableSubscribers, subscriberColumns...).OrderBy(Order{Column: "created_at", Desc: true})
	if err := s.Select(ctx, &items, q); err != nil {
		return nil, err
	}
	return items, nil
}

// Page metadata

// GetPageMeta returns the override for path, falling back to the section
// wildcard ("/journal/*" for "/journal/some-slug").
func (s *PostgresStore) GetPageMeta(ctx context.Context, path string) (PageMeta, error) {
	filters := []Filter{Eq("path", path)}
	if section := sectionWildcard(path); section != "" {
		filters = append(filters, Eq("path", section))
	}
	items := make([]PageMeta, 0, 2)
	q := From(tablePageMeta, pageMetaColumns...).Where(Or(filters...)).Take(2)
	if err := s.Select(ctx, &items, q); err != nil {
		return PageMeta{}, err
	}
	if len(items) == 0 {
		return PageMeta{}, sql.ErrNoRows
	}
	for _, item := range items {
		if item.Path == path {
			return item, nil
		}
	}
	return items[0], nil
}

func sectionWildcard(path string) string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return ""
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return ""
	}
	return "/" + parts[0] + "/*"
}

func (s *PostgresStore) ListPageMeta(ctx context.Context) ([]PageMeta, error) {
	items := make([]PageMeta, 0)
	if err := s.Select(ctx, &items, From(tablePageMeta, pageMetaColumns...).OrderBy(Asc("path"))); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *PostgresStore) GetPageMetaByID(ctx context.Context, id string) (PageMeta, error) {
	var item PageMeta
	err := s.Get(ctx, &item, From(tablePageMeta, pageMetaColumns...).Where(Eq("id", id)))
	return item, err
}

func (s *PostgresStore) UpsertPageMeta(ctx context.Context, item PageMeta) (PageMeta, error) {
	item.ID = ensureID(item.ID)
	var saved PageMeta
	err := s.upsert(ctx, "upsert page meta", `
		INSERT INTO page_meta (id, path, title, description, og_image_url)
		VALUES (:id, :path, :title, :description, :og_image_url)
		ON CONFLICT (id) DO UPDATE SET
			path = EXCLUDED.path,
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			og_image_url = EXCLUDED.og_image_url,
			updated_at = NOW()
		RETURNING id, path, title, description, og_image_url, created_at, updated_at
	`, item, &saved)
	return saved, err
}

// Dashboard

func (s *PostgresStore) SummaryCounts(ctx context.Context) (SummaryCounts, error) {
	var counts SummaryCounts
	err := s.db.GetContext(ctx, &counts, `
		SELECT
			(SELECT COUNT(*) FROM themes) AS themes,
			(SELECT COUNT(*) FROM storyworlds) AS storyworlds,
			(SELECT COUNT(*) FROM storytellers) AS storytellers,
			(SELECT COUNT(*) FROM journal_articles) AS journal,
			(SELECT COUNT(*) FROM press_items) AS press,
			(SELECT COUNT(*) FROM inquiries WHERE status = 'new') AS new_inquiries,
			(SELECT COUNT(*) FROM newsletter_subscribers) AS subscribers
	`)
	if err != nil {
		return SummaryCounts{}, fmt.Errorf("summary counts: %w", err)
	}
	return counts, nil
}

// Users

func (s *PostgresStore) GetUserByEmail(ctx context.Context, email string) (User, error) {
	var user User
	err := s.Get(ctx, &user, From(tableUsers, userColumns...).Where(Eq("email", strings.ToLower(strings.TrimSpace(email)))))
	return user, err
}

func (s *PostgresStore) GetUserByID(ctx context.Context, id string) (User, error) {
	var user User
	err := s.Get(ctx, &user, From(tableUsers, userColumns...).Where(Eq("id", id)))
	return user, err
}

func (s *PostgresStore) CreateUser(ctx context.Context, user User) error {
	user.ID = ensureID(user.ID)
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO users (id, display_name, email, password_hash, role)
		VALUES (:id, :display_name, :email, :password_hash, :role)
	`, user)
	if err != nil {
		return wrapWriteError("create user", err)
	}
	return nil
}

func (s *PostgresStore) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET password_hash=$2, updated_at=NOW() WHERE id=$1`, userID, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Admin sessions (used when Redis is not configured)

func (s *PostgresStore) SaveSession(ctx context.Context, tokenHash, userID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO admin_sessions (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET user_id=EXCLUDED.user_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, userID, expiresAt)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupSession(ctx context.Context, tokenHash string) (string, error) {
	var userID string
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id
		FROM admin_sessions
		WHERE token_hash = $1
			AND revoked_at IS NULL
			AND expires_at > NOW()
	`, tokenHash).Scan(&userID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("lookup session: %w", err)
	}
	return userID, nil
}

func (s *PostgresStore) RevokeSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE admin_sessions SET revoked_at=NOW() WHERE token_hash=$1`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke session: %w", err)
	}
	return nil
}
