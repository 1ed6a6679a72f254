package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"storyworlds/site/internal/export"
	"storyworlds/site/internal/mapview"
	"storyworlds/site/internal/media"
	"storyworlds/site/internal/rbac"
	"storyworlds/site/internal/revisions"
	"storyworlds/site/internal/richtext"
	"storyworlds/site/internal/store"
	"storyworlds/site/internal/taglist"
	"storyworlds/site/internal/util"
)

const autoExcerptLength = 200

// validID reports whether id is a canonical row id. Anything else cannot
// name a row and is answered with 404 before the store sees it.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func (s *Service) Dashboard(ctx context.Context, session Session) (store.SummaryCounts, error) {
	if err := s.require(session, rbac.ActionRead); err != nil {
		return store.SummaryCounts{}, err
	}
	return s.store.SummaryCounts(ctx)
}

// Themes

func (s *Service) AdminThemes(ctx context.Context) ([]store.Theme, error) {
	return s.store.ListThemes(ctx, false)
}

func (s *Service) AdminTheme(ctx context.Context, id string) (store.Theme, error) {
	if !validID(id) {
		return store.Theme{}, notFound()
	}
	return s.store.GetTheme(ctx, id)
}

func (s *Service) SaveTheme(ctx context.Context, session Session, theme store.Theme) (store.Theme, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return store.Theme{}, err
	}
	errs := fieldErrors{}
	theme.Title = strings.TrimSpace(theme.Title)
	if theme.Title == "" {
		errs["title"] = "Title is required"
	}
	theme.Slug = resolveSlug(theme.Slug, theme.Title, errs)
	theme.Mode = strings.ToLower(strings.TrimSpace(theme.Mode))
	switch theme.Mode {
	case "":
		theme.Mode = mapview.ModeLight
	case mapview.ModeLight, mapview.ModeDark:
	default:
		errs["mode"] = "Mode must be light or dark"
	}
	if err := errs.err(); err != nil {
		return store.Theme{}, err
	}

	saved, err := s.store.UpsertTheme(ctx, theme)
	if err != nil {
		return store.Theme{}, upsertError("save theme", "slug", err)
	}
	return saved, nil
}

// Storyworlds

func (s *Service) AdminStoryworlds(ctx context.Context) ([]store.Storyworld, error) {
	return s.store.ListStoryworlds(ctx, false)
}

func (s *Service) AdminStoryworld(ctx context.Context, id string) (store.Storyworld, error) {
	if !validID(id) {
		return store.Storyworld{}, notFound()
	}
	return s.store.GetStoryworld(ctx, id)
}

func (s *Service) SaveStoryworld(ctx context.Context, session Session, world store.Storyworld) (store.Storyworld, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return store.Storyworld{}, err
	}
	errs := fieldErrors{}
	world.Title = strings.TrimSpace(world.Title)
	if world.Title == "" {
		errs["title"] = "Title is required"
	}
	world.Slug = resolveSlug(world.Slug, world.Title, errs)
	if world.ThemeID != nil && strings.TrimSpace(*world.ThemeID) == "" {
		world.ThemeID = nil
	}

	switch {
	case (world.Latitude == nil) != (world.Longitude == nil):
		errs["latitude"] = "Provide both latitude and longitude, or neither"
	case world.Latitude != nil && !mapview.ValidLatitude(*world.Latitude):
		errs["latitude"] = "Latitude must be between -90 and 90"
	case world.Longitude != nil && !mapview.ValidLongitude(*world.Longitude):
		errs["longitude"] = "Longitude must be between -180 and 180"
	}

	world.StoryArc = normalizeArc(world.StoryArc)
	if world.Published && !world.StoryArc.Complete() {
		errs["story_arc"] = "Every phase of the story arc needs a heading before publishing"
	}
	if err := errs.err(); err != nil {
		return store.Storyworld{}, err
	}

	saved, err := s.store.UpsertStoryworld(ctx, world)
	if err != nil {
		return store.Storyworld{}, upsertError("save storyworld", "slug", err)
	}
	if s.search != nil {
		s.search.SyncStoryworld(saved)
	}
	return saved, nil
}

// normalizeArc returns the four phases in narrative order, keeping whatever
// heading and body was supplied for each.
func normalizeArc(arc store.StoryArc) store.StoryArc {
	byPhase := make(map[string]store.ArcPhase, len(arc))
	for _, phase := range arc {
		byPhase[strings.ToLower(strings.TrimSpace(phase.Phase))] = phase
	}
	out := make(store.StoryArc, 0, len(store.ArcPhases))
	for _, name := range store.ArcPhases {
		phase := byPhase[name]
		out = append(out, store.ArcPhase{
			Phase:   name,
			Heading: strings.TrimSpace(phase.Heading),
			Body:    strings.TrimSpace(phase.Body),
		})
	}
	return out
}

// Storytellers

func (s *Service) AdminStorytellers(ctx context.Context) ([]store.Storyteller, error) {
	return s.store.ListStorytellers(ctx, false)
}

func (s *Service) AdminStoryteller(ctx context.Context, id string) (store.Storyteller, error) {
	if !validID(id) {
		return store.Storyteller{}, notFound()
	}
	return s.store.GetStoryteller(ctx, id)
}

func (s *Service) SaveStoryteller(ctx context.Context, session Session, teller store.Storyteller) (store.Storyteller, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return store.Storyteller{}, err
	}
	errs := fieldErrors{}
	teller.Name = strings.TrimSpace(teller.Name)
	if teller.Name == "" {
		errs["name"] = "Name is required"
	}
	teller.Slug = resolveSlug(teller.Slug, teller.Name, errs)
	teller.SignatureExperiences = store.StringList(taglist.Normalize(teller.SignatureExperiences))

	bio, err := richtext.Sanitize(teller.Bio)
	if err != nil {
		errs["bio"] = "Biography could not be read"
	}
	teller.Bio = bio
	if err := errs.err(); err != nil {
		return store.Storyteller{}, err
	}

	saved, err := s.store.UpsertStoryteller(ctx, teller)
	if err != nil {
		return store.Storyteller{}, upsertError("save storyteller", "slug", err)
	}
	if s.search != nil {
		s.search.SyncStoryteller(saved)
	}
	return saved, nil
}

// Journal

func (s *Service) AdminJournal(ctx context.Context) ([]store.JournalArticle, error) {
	return s.store.ListJournal(ctx, store.JournalFilter{})
}

func (s *Service) AdminArticle(ctx context.Context, id string) (store.JournalArticle, error) {
	if !validID(id) {
		return store.JournalArticle{}, notFound()
	}
	return s.store.GetJournal(ctx, id)
}

// SaveArticle sanitises the body, normalises tags and records a revision
// of the stored row. Publishing an article without a date stamps it now.
func (s *Service) SaveArticle(ctx context.Context, session Session, article store.JournalArticle) (store.JournalArticle, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return store.JournalArticle{}, err
	}
	errs := fieldErrors{}
	article.Title = strings.TrimSpace(article.Title)
	if article.Title == "" {
		errs["title"] = "Title is required"
	}
	article.Slug = resolveSlug(article.Slug, article.Title, errs)
	article.Category = strings.TrimSpace(article.Category)
	article.Author = strings.TrimSpace(article.Author)
	article.Tags = store.StringList(taglist.Normalize(article.Tags))

	content, err := richtext.Sanitize(article.Content)
	if err != nil {
		errs["content"] = "Content could not be read"
	}
	article.Content = content
	article.Excerpt = strings.TrimSpace(article.Excerpt)
	if article.Excerpt == "" {
		article.Excerpt = richtext.Excerpt(article.Content, autoExcerptLength)
	}
	if article.Published && article.PublishedAt == nil {
		now := s.now().UTC()
		article.PublishedAt = &now
	}
	if err := errs.err(); err != nil {
		return store.JournalArticle{}, err
	}

	saved, err := s.store.UpsertJournal(ctx, article)
	if err != nil {
		return store.JournalArticle{}, upsertError("save article", "slug", err)
	}
	if s.search != nil {
		s.search.SyncJournal(saved)
	}
	if s.revisions != nil {
		if _, _, err := s.revisions.Record(saved.ID, revisions.SnapshotOf(saved), session.UserName); err != nil {
			log.Printf("revisions: record %s failed: %v", saved.ID, err)
		}
	}
	return saved, nil
}

type ArticleHistory struct {
	Article   store.JournalArticle
	Revisions []revisions.Revision
}

const historyLimit = 50

func (s *Service) ArticleHistory(ctx context.Context, id string) (ArticleHistory, error) {
	if !validID(id) {
		return ArticleHistory{}, notFound()
	}
	article, err := s.store.GetJournal(ctx, id)
	if err != nil {
		return ArticleHistory{}, err
	}
	history := ArticleHistory{Article: article, Revisions: []revisions.Revision{}}
	if s.revisions == nil {
		return history, nil
	}
	revs, err := s.revisions.History(id, historyLimit)
	if err != nil {
		return ArticleHistory{}, fmt.Errorf("load history: %w", err)
	}
	history.Revisions = revs
	return history, nil
}

type RevisionView struct {
	Article  store.JournalArticle
	Revision revisions.Revision
	Snapshot revisions.Snapshot
	Changes  []revisions.FieldChange
}

// ArticleRevision loads one revision and what changed between it and the
// current row.
func (s *Service) ArticleRevision(ctx context.Context, id, hash string) (RevisionView, error) {
	if !validID(id) {
		return RevisionView{}, notFound()
	}
	article, err := s.store.GetJournal(ctx, id)
	if err != nil {
		return RevisionView{}, err
	}
	if s.revisions == nil {
		return RevisionView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	snapshot, revision, err := s.revisions.Get(id, hash)
	if errors.Is(err, revisions.ErrNotFound) {
		return RevisionView{}, domainError(http.StatusNotFound, "NOT_FOUND", "Revision not found", nil)
	}
	if err != nil {
		return RevisionView{}, fmt.Errorf("load revision: %w", err)
	}
	return RevisionView{
		Article:  article,
		Revision: revision,
		Snapshot: snapshot,
		Changes:  revisions.Diff(snapshot, revisions.SnapshotOf(article)),
	}, nil
}

// Press

func (s *Service) AdminPress(ctx context.Context) ([]store.PressItem, error) {
	return s.store.ListPress(ctx, 0)
}

func (s *Service) AdminPressItem(ctx context.Context, id string) (store.PressItem, error) {
	if !validID(id) {
		return store.PressItem{}, notFound()
	}
	return s.store.GetPress(ctx, id)
}

func (s *Service) SavePress(ctx context.Context, session Session, item store.PressItem) (store.PressItem, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return store.PressItem{}, err
	}
	errs := fieldErrors{}
	item.Title = strings.TrimSpace(item.Title)
	item.Source = strings.TrimSpace(item.Source)
	item.Quote = strings.TrimSpace(item.Quote)
	if item.Title == "" {
		errs["title"] = "Title is required"
	}
	if item.Source == "" {
		errs["source"] = "Source is required"
	}
	item.URL = strings.TrimSpace(item.URL)
	if item.URL != "" && !httpURL(item.URL) {
		errs["url"] = "Link must start with http:// or https://"
	}
	if err := errs.err(); err != nil {
		return store.PressItem{}, err
	}

	saved, err := s.store.UpsertPress(ctx, item)
	if err != nil {
		return store.PressItem{}, upsertError("save press item", "title", err)
	}
	return saved, nil
}

// Services

func (s *Service) AdminServices(ctx context.Context) ([]store.Service, error) {
	return s.store.ListServices(ctx, false)
}

func (s *Service) AdminService(ctx context.Context, id string) (store.Service, error) {
	if !validID(id) {
		return store.Service{}, notFound()
	}
	return s.store.GetService(ctx, id)
}

func (s *Service) SaveService(ctx context.Context, session Session, item store.Service) (store.Service, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return store.Service{}, err
	}
	errs := fieldErrors{}
	item.Title = strings.TrimSpace(item.Title)
	if item.Title == "" {
		errs["title"] = "Title is required"
	}
	item.Slug = resolveSlug(item.Slug, item.Title, errs)
	item.Icon = strings.TrimSpace(item.Icon)
	if err := errs.err(); err != nil {
		return store.Service{}, err
	}

	saved, err := s.store.UpsertService(ctx, item)
	if err != nil {
		return store.Service{}, upsertError("save service", "slug", err)
	}
	return saved, nil
}

// Page metadata

func (s *Service) AdminPages(ctx context.Context) ([]store.PageMeta, error) {
	return s.store.ListPageMeta(ctx)
}

func (s *Service) AdminPage(ctx context.Context, id string) (store.PageMeta, error) {
	if !validID(id) {
		return store.PageMeta{}, notFound()
	}
	return s.store.GetPageMetaByID(ctx, id)
}

func (s *Service) SavePageMeta(ctx context.Context, session Session, meta store.PageMeta) (store.PageMeta, error) {
	if err := s.require(session, rbac.ActionManage); err != nil {
		return store.PageMeta{}, err
	}
	errs := fieldErrors{}
	meta.Path = normalizeMetaPath(meta.Path)
	if meta.Path == "" {
		errs["path"] = "Path must start with /"
	}
	meta.Title = strings.TrimSpace(meta.Title)
	meta.Description = strings.TrimSpace(meta.Description)
	if err := errs.err(); err != nil {
		return store.PageMeta{}, err
	}

	saved, err := s.store.UpsertPageMeta(ctx, meta)
	if err != nil {
		return store.PageMeta{}, upsertError("save page meta", "path", err)
	}
	return saved, nil
}

// normalizeMetaPath trims a trailing slash; paths must be absolute.
func normalizeMetaPath(path string) string {
	path = strings.TrimSpace(path)
	if !strings.HasPrefix(path, "/") {
		return ""
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}

// Inquiries and subscribers

var inquiryStatuses = map[string]struct{}{
	store.InquiryStatusNew:       {},
	store.InquiryStatusContacted: {},
	store.InquiryStatusClosed:    {},
}

func (s *Service) Inquiries(ctx context.Context, session Session, status string) ([]store.Inquiry, error) {
	if err := s.require(session, rbac.ActionRead); err != nil {
		return nil, err
	}
	status = strings.TrimSpace(status)
	if status != "" {
		if _, ok := inquiryStatuses[status]; !ok {
			status = ""
		}
	}
	return s.store.ListInquiries(ctx, status)
}

func (s *Service) SetInquiryStatus(ctx context.Context, session Session, id, status string) error {
	if err := s.require(session, rbac.ActionManage); err != nil {
		return err
	}
	if _, ok := inquiryStatuses[status]; !ok {
		return domainError(http.StatusUnprocessableEntity, "INVALID_STATUS", "Unknown inquiry status", map[string]string{"status": status})
	}
	if !validID(id) {
		return notFound()
	}
	return s.store.UpdateInquiryStatus(ctx, id, status)
}

func (s *Service) Subscribers(ctx context.Context, session Session) ([]store.NewsletterSubscriber, error) {
	if err := s.require(session, rbac.ActionManage); err != nil {
		return nil, err
	}
	return s.store.ListSubscribers(ctx)
}

// Media and exports

func (s *Service) UploadMedia(ctx context.Context, session Session, r io.Reader) (media.Asset, error) {
	if err := s.require(session, rbac.ActionWrite); err != nil {
		return media.Asset{}, err
	}
	if s.media == nil {
		return media.Asset{}, domainError(http.StatusServiceUnavailable, "MEDIA_UNAVAILABLE", "Media uploads are not configured", nil)
	}
	asset, err := s.media.Upload(ctx, r)
	switch {
	case errors.Is(err, media.ErrEmpty):
		return media.Asset{}, domainError(http.StatusBadRequest, "EMPTY_UPLOAD", "The file is empty", nil)
	case errors.Is(err, media.ErrTooLarge):
		return media.Asset{}, domainError(http.StatusRequestEntityTooLarge, "UPLOAD_TOO_LARGE", "The file is too large", nil)
	case errors.Is(err, media.ErrUnsupportedType):
		return media.Asset{}, domainError(http.StatusUnsupportedMediaType, "UNSUPPORTED_MEDIA", "Only JPEG, PNG, WebP, GIF and AVIF images are accepted", nil)
	case err != nil:
		return media.Asset{}, err
	}
	return asset, nil
}

func (s *Service) ExportArticle(ctx context.Context, id string, format export.Format) (*export.Result, error) {
	if !validID(id) {
		return nil, notFound()
	}
	article, err := s.store.GetJournal(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exportSheet(ctx, export.JournalSheet(article), format)
}

func (s *Service) ExportStoryteller(ctx context.Context, id string, format export.Format) (*export.Result, error) {
	if !validID(id) {
		return nil, notFound()
	}
	teller, err := s.store.GetStoryteller(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.exportSheet(ctx, export.StorytellerSheet(teller), format)
}

func (s *Service) exportSheet(ctx context.Context, sheet export.Sheet, format export.Format) (*export.Result, error) {
	if s.export == nil {
		return nil, domainError(http.StatusServiceUnavailable, "EXPORT_UNAVAILABLE", "Export is not configured", nil)
	}
	result, err := s.export.Export(ctx, sheet, format)
	switch {
	case errors.Is(err, export.ErrUnsupportedFormat):
		return nil, domainError(http.StatusBadRequest, "UNSUPPORTED_FORMAT", "Unsupported export format", nil)
	case errors.Is(err, export.ErrPDFDependencyMissing):
		return nil, domainError(http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF export needs Chrome on the server", nil)
	case err != nil:
		return nil, err
	}
	return result, nil
}

// helpers

func resolveSlug(slug, title string, errs fieldErrors) string {
	slug = strings.ToLower(strings.TrimSpace(slug))
	if slug == "" {
		slug = util.Slugify(title)
	}
	if !util.ValidSlug(slug) {
		errs["slug"] = "Use lowercase letters, numbers and hyphens"
	}
	return slug
}

func httpURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
