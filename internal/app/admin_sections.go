package app

import (
	"context"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storyworlds/site/internal/mapview"
	"storyworlds/site/internal/store"
	"storyworlds/site/internal/taglist"
)

// Field kinds understood by templates/admin/form.html.
const (
	fieldText     = "text"
	fieldTextarea = "textarea"
	fieldRichText = "richtext"
	fieldTags     = "tags"
	fieldImage    = "image"
	fieldURL      = "url"
	fieldNumber   = "number"
	fieldDate     = "date"
	fieldSelect   = "select"
	fieldCheckbox = "checkbox"
	fieldArc      = "arc"
)

const dateLayout = "2006-01-02"

type formField struct {
	Name     string
	Label    string
	Kind     string
	Value    string
	Checked  bool
	Tags     []string
	Options  []formOption
	Arc      store.StoryArc
	Help     string
	Required bool
}

type formOption struct {
	Value    string
	Label    string
	Selected bool
}

type adminLink struct {
	Label string
	URL   string
}

type adminRow struct {
	ID        string
	Cells     []string
	Published bool
	PublicURL string
}

type formView struct {
	ID     string
	Fields []formField
	Links  []adminLink
}

type sectionMeta struct {
	Name     string
	Title    string
	Singular string
	Columns  []string
	// Gated sections show a published column.
	Gated bool
}

// adminResource is one editable table in the admin panel.
type adminResource interface {
	meta() sectionMeta
	rows(context.Context) ([]adminRow, error)
	load(ctx context.Context, id string) (formView, error)
	submit(ctx context.Context, session Session, form url.Values) (string, formView, error)
}

// section adapts typed list/get/save operations to the generic admin pages.
type section[T any] struct {
	sectionMeta
	list   func(context.Context) ([]T, error)
	get    func(context.Context, string) (T, error)
	blank  func() T
	parse  func(url.Values) (T, error)
	save   func(context.Context, Session, T) (T, error)
	fields func(context.Context, T) ([]formField, error)
	row    func(T) adminRow
	id     func(T) string
	links  func(T) []adminLink
}

func (sec *section[T]) meta() sectionMeta {
	return sec.sectionMeta
}

func (sec *section[T]) rows(ctx context.Context) ([]adminRow, error) {
	items, err := sec.list(ctx)
	if err != nil {
		return nil, err
	}
	rows := make([]adminRow, 0, len(items))
	for _, item := range items {
		rows = append(rows, sec.row(item))
	}
	return rows, nil
}

func (sec *section[T]) view(ctx context.Context, item T) (formView, error) {
	fields, err := sec.fields(ctx, item)
	if err != nil {
		return formView{}, err
	}
	view := formView{ID: sec.id(item), Fields: fields}
	if view.ID != "" && sec.links != nil {
		view.Links = sec.links(item)
	}
	return view, nil
}

func (sec *section[T]) load(ctx context.Context, id string) (formView, error) {
	if id == "" {
		return sec.view(ctx, sec.blank())
	}
	if !validID(id) {
		return formView{}, notFound()
	}
	item, err := sec.get(ctx, id)
	if err != nil {
		return formView{}, err
	}
	return sec.view(ctx, item)
}

// submit parses and saves the form. On failure it returns the submitted
// values so the form can be shown again with the error.
func (sec *section[T]) submit(ctx context.Context, session Session, form url.Values) (string, formView, error) {
	item, err := sec.parse(form)
	if id := sec.id(item); id != "" && !validID(id) {
		return "", formView{}, notFound()
	}
	if err == nil {
		var saved T
		saved, err = sec.save(ctx, session, item)
		if err == nil {
			return sec.id(saved), formView{}, nil
		}
	}
	view, viewErr := sec.view(ctx, item)
	if viewErr != nil {
		return "", formView{}, viewErr
	}
	return "", view, err
}

func adminSections(svc *Service) (map[string]adminResource, []sectionMeta) {
	ordered := []adminResource{
		themeSection(svc),
		storyworldSection(svc),
		storytellerSection(svc),
		journalSection(svc),
		pressSection(svc),
		serviceSection(svc),
		pageSection(svc),
	}
	byName := make(map[string]adminResource, len(ordered))
	nav := make([]sectionMeta, 0, len(ordered))
	for _, resource := range ordered {
		meta := resource.meta()
		byName[meta.Name] = resource
		nav = append(nav, meta)
	}
	return byName, nav
}

func themeSection(svc *Service) *section[store.Theme] {
	return &section[store.Theme]{
		sectionMeta: sectionMeta{Name: "themes", Title: "Themes", Singular: "Theme", Columns: []string{"Title", "Slug", "Mode", "Order"}, Gated: true},
		list:        svc.AdminThemes,
		get:         svc.AdminTheme,
		blank:       func() store.Theme { return store.Theme{Mode: mapview.ModeLight} },
		save:        svc.SaveTheme,
		parse: func(form url.Values) (store.Theme, error) {
			errs := fieldErrors{}
			theme := store.Theme{
				ID:           formText(form, "id"),
				Slug:         formText(form, "slug"),
				Title:        formText(form, "title"),
				Description:  formText(form, "description"),
				HeroImageURL: formText(form, "hero_image_url"),
				Mode:         formText(form, "mode"),
				DisplayOrder: formInt(form, "display_order", errs),
				Published:    formBool(form, "published"),
			}
			return theme, errs.err()
		},
		fields: func(_ context.Context, t store.Theme) ([]formField, error) {
			return []formField{
				{Name: "title", Label: "Title", Kind: fieldText, Value: t.Title, Required: true},
				slugField(t.Slug),
				{Name: "description", Label: "Description", Kind: fieldTextarea, Value: t.Description},
				{Name: "hero_image_url", Label: "Hero image", Kind: fieldImage, Value: t.HeroImageURL},
				{Name: "mode", Label: "Mode", Kind: fieldSelect, Options: options(t.Mode, mapview.ModeLight, mapview.ModeDark), Help: "Sets the page palette and map style for its storyworlds"},
				orderField(t.DisplayOrder),
				publishedField(t.Published),
			}, nil
		},
		row: func(t store.Theme) adminRow {
			return adminRow{ID: t.ID, Cells: []string{t.Title, t.Slug, t.Mode, strconv.Itoa(t.DisplayOrder)}, Published: t.Published}
		},
		id: func(t store.Theme) string { return t.ID },
	}
}

func storyworldSection(svc *Service) *section[store.Storyworld] {
	return &section[store.Storyworld]{
		sectionMeta: sectionMeta{Name: "storyworlds", Title: "Storyworlds", Singular: "Storyworld", Columns: []string{"Title", "Region", "Mapped", "Order"}, Gated: true},
		list:        svc.AdminStoryworlds,
		get:         svc.AdminStoryworld,
		blank:       func() store.Storyworld { return store.Storyworld{StoryArc: normalizeArc(nil)} },
		save:        svc.SaveStoryworld,
		parse: func(form url.Values) (store.Storyworld, error) {
			errs := fieldErrors{}
			world := store.Storyworld{
				ID:           formText(form, "id"),
				Slug:         formText(form, "slug"),
				Title:        formText(form, "title"),
				Subtitle:     formText(form, "subtitle"),
				Description:  formText(form, "description"),
				HeroImageURL: formText(form, "hero_image_url"),
				Region:       formText(form, "region"),
				Latitude:     formFloat(form, "latitude", errs),
				Longitude:    formFloat(form, "longitude", errs),
				StoryArc:     formArc(form),
				DisplayOrder: formInt(form, "display_order", errs),
				Published:    formBool(form, "published"),
			}
			if themeID := formText(form, "theme_id"); themeID != "" {
				world.ThemeID = &themeID
			}
			return world, errs.err()
		},
		fields: func(ctx context.Context, w store.Storyworld) ([]formField, error) {
			themes, err := svc.AdminThemes(ctx)
			if err != nil {
				return nil, err
			}
			selected := ""
			if w.ThemeID != nil {
				selected = *w.ThemeID
			}
			themeOptions := []formOption{{Value: "", Label: "No theme", Selected: selected == ""}}
			for _, theme := range themes {
				themeOptions = append(themeOptions, formOption{Value: theme.ID, Label: theme.Title, Selected: theme.ID == selected})
			}
			return []formField{
				{Name: "title", Label: "Title", Kind: fieldText, Value: w.Title, Required: true},
				slugField(w.Slug),
				{Name: "subtitle", Label: "Subtitle", Kind: fieldText, Value: w.Subtitle},
				{Name: "description", Label: "Description", Kind: fieldTextarea, Value: w.Description},
				{Name: "hero_image_url", Label: "Hero image", Kind: fieldImage, Value: w.HeroImageURL},
				{Name: "theme_id", Label: "Theme", Kind: fieldSelect, Options: themeOptions},
				{Name: "region", Label: "Region", Kind: fieldText, Value: w.Region},
				{Name: "latitude", Label: "Latitude", Kind: fieldNumber, Value: floatValue(w.Latitude), Help: "Leave both coordinates blank to keep this storyworld off the map"},
				{Name: "longitude", Label: "Longitude", Kind: fieldNumber, Value: floatValue(w.Longitude)},
				{Name: "story_arc", Label: "Story arc", Kind: fieldArc, Arc: normalizeArc(w.StoryArc)},
				orderField(w.DisplayOrder),
				publishedField(w.Published),
			}, nil
		},
		row: func(w store.Storyworld) adminRow {
			mapped := "No"
			if w.Latitude != nil && w.Longitude != nil {
				mapped = "Yes"
			}
			return adminRow{ID: w.ID, Cells: []string{w.Title, w.Region, mapped, strconv.Itoa(w.DisplayOrder)}, Published: w.Published, PublicURL: "/experiences/" + w.Slug}
		},
		id: func(w store.Storyworld) string { return w.ID },
	}
}

func storytellerSection(svc *Service) *section[store.Storyteller] {
	return &section[store.Storyteller]{
		sectionMeta: sectionMeta{Name: "storytellers", Title: "Storytellers", Singular: "Storyteller", Columns: []string{"Name", "Role", "Location", "Order"}, Gated: true},
		list:        svc.AdminStorytellers,
		get:         svc.AdminStoryteller,
		blank:       func() store.Storyteller { return store.Storyteller{} },
		save:        svc.SaveStoryteller,
		parse: func(form url.Values) (store.Storyteller, error) {
			errs := fieldErrors{}
			teller := store.Storyteller{
				ID:                   formText(form, "id"),
				Slug:                 formText(form, "slug"),
				Name:                 formText(form, "name"),
				Role:                 formText(form, "role"),
				Bio:                  form.Get("bio"),
				PortraitURL:          formText(form, "portrait_url"),
				Location:             formText(form, "location"),
				SignatureExperiences: formTags(form, "signature_experiences"),
				DisplayOrder:         formInt(form, "display_order", errs),
				Published:            formBool(form, "published"),
			}
			return teller, errs.err()
		},
		fields: func(_ context.Context, t store.Storyteller) ([]formField, error) {
			return []formField{
				{Name: "name", Label: "Name", Kind: fieldText, Value: t.Name, Required: true},
				slugField(t.Slug),
				{Name: "role", Label: "Role", Kind: fieldText, Value: t.Role},
				{Name: "location", Label: "Location", Kind: fieldText, Value: t.Location},
				{Name: "portrait_url", Label: "Portrait", Kind: fieldImage, Value: t.PortraitURL},
				{Name: "bio", Label: "Biography", Kind: fieldRichText, Value: t.Bio},
				{Name: "signature_experiences", Label: "Signature experiences", Kind: fieldTags, Tags: t.SignatureExperiences},
				orderField(t.DisplayOrder),
				publishedField(t.Published),
			}, nil
		},
		row: func(t store.Storyteller) adminRow {
			return adminRow{ID: t.ID, Cells: []string{t.Name, t.Role, t.Location, strconv.Itoa(t.DisplayOrder)}, Published: t.Published, PublicURL: "/storytellers/" + t.Slug}
		},
		id: func(t store.Storyteller) string { return t.ID },
		links: func(t store.Storyteller) []adminLink {
			return []adminLink{
				{Label: "Press sheet (PDF)", URL: "/admin/storytellers/" + t.ID + "/export.pdf"},
				{Label: "Press sheet preview", URL: "/admin/storytellers/" + t.ID + "/export.pdf?format=html"},
			}
		},
	}
}

func journalSection(svc *Service) *section[store.JournalArticle] {
	return &section[store.JournalArticle]{
		sectionMeta: sectionMeta{Name: "journal", Title: "Journal", Singular: "Article", Columns: []string{"Title", "Category", "Published on"}, Gated: true},
		list:        svc.AdminJournal,
		get:         svc.AdminArticle,
		blank:       func() store.JournalArticle { return store.JournalArticle{} },
		save:        svc.SaveArticle,
		parse: func(form url.Values) (store.JournalArticle, error) {
			errs := fieldErrors{}
			article := store.JournalArticle{
				ID:            formText(form, "id"),
				Slug:          formText(form, "slug"),
				Title:         formText(form, "title"),
				Excerpt:       formText(form, "excerpt"),
				Content:       form.Get("content"),
				Category:      formText(form, "category"),
				CoverImageURL: formText(form, "cover_image_url"),
				Author:        formText(form, "author"),
				Tags:          formTags(form, "tags"),
				PublishedAt:   formDate(form, "published_at", errs),
				DisplayOrder:  formInt(form, "display_order", errs),
				Published:     formBool(form, "published"),
			}
			return article, errs.err()
		},
		fields: func(_ context.Context, a store.JournalArticle) ([]formField, error) {
			return []formField{
				{Name: "title", Label: "Title", Kind: fieldText, Value: a.Title, Required: true},
				slugField(a.Slug),
				{Name: "category", Label: "Category", Kind: fieldText, Value: a.Category},
				{Name: "author", Label: "Author", Kind: fieldText, Value: a.Author},
				{Name: "cover_image_url", Label: "Cover image", Kind: fieldImage, Value: a.CoverImageURL},
				{Name: "excerpt", Label: "Excerpt", Kind: fieldTextarea, Value: a.Excerpt, Help: "Leave blank to use the opening of the article"},
				{Name: "content", Label: "Content", Kind: fieldRichText, Value: a.Content},
				{Name: "tags", Label: "Tags", Kind: fieldTags, Tags: a.Tags},
				{Name: "published_at", Label: "Publication date", Kind: fieldDate, Value: dateValue(a.PublishedAt), Help: "Set automatically when first published"},
				orderField(a.DisplayOrder),
				publishedField(a.Published),
			}, nil
		},
		row: func(a store.JournalArticle) adminRow {
			return adminRow{ID: a.ID, Cells: []string{a.Title, a.Category, formatDate(a.PublishedAt)}, Published: a.Published, PublicURL: "/journal/" + a.Slug}
		},
		id: func(a store.JournalArticle) string { return a.ID },
		links: func(a store.JournalArticle) []adminLink {
			return []adminLink{
				{Label: "History", URL: "/admin/journal/" + a.ID + "/history"},
				{Label: "Press sheet (PDF)", URL: "/admin/journal/" + a.ID + "/export.pdf"},
				{Label: "Press sheet preview", URL: "/admin/journal/" + a.ID + "/export.pdf?format=html"},
			}
		},
	}
}

func pressSection(svc *Service) *section[store.PressItem] {
	return &section[store.PressItem]{
		sectionMeta: sectionMeta{Name: "press", Title: "Press", Singular: "Press item", Columns: []string{"Title", "Source", "Published on"}},
		list:        svc.AdminPress,
		get:         svc.AdminPressItem,
		blank:       func() store.PressItem { return store.PressItem{} },
		save:        svc.SavePress,
		parse: func(form url.Values) (store.PressItem, error) {
			errs := fieldErrors{}
			item := store.PressItem{
				ID:           formText(form, "id"),
				Title:        formText(form, "title"),
				Source:       formText(form, "source"),
				Quote:        formText(form, "quote"),
				URL:          formText(form, "url"),
				LogoURL:      formText(form, "logo_url"),
				PublishedAt:  formDate(form, "published_at", errs),
				DisplayOrder: formInt(form, "display_order", errs),
				Published:    formBool(form, "published"),
			}
			return item, errs.err()
		},
		fields: func(_ context.Context, p store.PressItem) ([]formField, error) {
			return []formField{
				{Name: "title", Label: "Title", Kind: fieldText, Value: p.Title, Required: true},
				{Name: "source", Label: "Source", Kind: fieldText, Value: p.Source, Required: true},
				{Name: "quote", Label: "Quote", Kind: fieldTextarea, Value: p.Quote},
				{Name: "url", Label: "Link", Kind: fieldURL, Value: p.URL},
				{Name: "logo_url", Label: "Logo", Kind: fieldImage, Value: p.LogoURL},
				{Name: "published_at", Label: "Publication date", Kind: fieldDate, Value: dateValue(p.PublishedAt)},
				orderField(p.DisplayOrder),
				{Name: "published", Label: "Published", Kind: fieldCheckbox, Checked: p.Published, Help: "The press page lists every item regardless of this flag"},
			}, nil
		},
		row: func(p store.PressItem) adminRow {
			return adminRow{ID: p.ID, Cells: []string{p.Title, p.Source, formatDate(p.PublishedAt)}, Published: p.Published}
		},
		id: func(p store.PressItem) string { return p.ID },
	}
}

func serviceSection(svc *Service) *section[store.Service] {
	return &section[store.Service]{
		sectionMeta: sectionMeta{Name: "services", Title: "Services", Singular: "Service", Columns: []string{"Title", "Slug", "Order"}, Gated: true},
		list:        svc.AdminServices,
		get:         svc.AdminService,
		blank:       func() store.Service { return store.Service{} },
		save:        svc.SaveService,
		parse: func(form url.Values) (store.Service, error) {
			errs := fieldErrors{}
			item := store.Service{
				ID:           formText(form, "id"),
				Slug:         formText(form, "slug"),
				Title:        formText(form, "title"),
				Summary:      formText(form, "summary"),
				Description:  formText(form, "description"),
				Icon:         formText(form, "icon"),
				DisplayOrder: formInt(form, "display_order", errs),
				Published:    formBool(form, "published"),
			}
			return item, errs.err()
		},
		fields: func(_ context.Context, s store.Service) ([]formField, error) {
			return []formField{
				{Name: "title", Label: "Title", Kind: fieldText, Value: s.Title, Required: true},
				slugField(s.Slug),
				{Name: "summary", Label: "Summary", Kind: fieldTextarea, Value: s.Summary},
				{Name: "description", Label: "Description", Kind: fieldTextarea, Value: s.Description},
				{Name: "icon", Label: "Icon", Kind: fieldText, Value: s.Icon, Help: "Icon name, for example compass or key"},
				orderField(s.DisplayOrder),
				publishedField(s.Published),
			}, nil
		},
		row: func(s store.Service) adminRow {
			return adminRow{ID: s.ID, Cells: []string{s.Title, s.Slug, strconv.Itoa(s.DisplayOrder)}, Published: s.Published, PublicURL: "/services"}
		},
		id: func(s store.Service) string { return s.ID },
	}
}

func pageSection(svc *Service) *section[store.PageMeta] {
	return &section[store.PageMeta]{
		sectionMeta: sectionMeta{Name: "pages", Title: "Page metadata", Singular: "Page", Columns: []string{"Path", "Title"}},
		list:        svc.AdminPages,
		get:         svc.AdminPage,
		blank:       func() store.PageMeta { return store.PageMeta{} },
		save:        svc.SavePageMeta,
		parse: func(form url.Values) (store.PageMeta, error) {
			return store.PageMeta{
				ID:          formText(form, "id"),
				Path:        formText(form, "path"),
				Title:       formText(form, "title"),
				Description: formText(form, "description"),
				OGImageURL:  formText(form, "og_image_url"),
			}, nil
		},
		fields: func(_ context.Context, p store.PageMeta) ([]formField, error) {
			return []formField{
				{Name: "path", Label: "Path", Kind: fieldText, Value: p.Path, Required: true, Help: "For example /journal, or /journal/* for every article"},
				{Name: "title", Label: "Title", Kind: fieldText, Value: p.Title},
				{Name: "description", Label: "Description", Kind: fieldTextarea, Value: p.Description},
				{Name: "og_image_url", Label: "Share image", Kind: fieldImage, Value: p.OGImageURL},
			}, nil
		},
		row: func(p store.PageMeta) adminRow {
			return adminRow{ID: p.ID, Cells: []string{p.Path, p.Title}}
		},
		id: func(p store.PageMeta) string { return p.ID },
	}
}

func slugField(value string) formField {
	return formField{Name: "slug", Label: "Slug", Kind: fieldText, Value: value, Help: "Leave blank to derive it from the title"}
}

func orderField(value int) formField {
	return formField{Name: "display_order", Label: "Display order", Kind: fieldNumber, Value: strconv.Itoa(value)}
}

func publishedField(value bool) formField {
	return formField{Name: "published", Label: "Published", Kind: fieldCheckbox, Checked: value}
}

func options(selected string, values ...string) []formOption {
	out := make([]formOption, 0, len(values))
	for _, v := range values {
		out = append(out, formOption{Value: v, Label: v, Selected: v == selected})
	}
	return out
}

// Form decoding

func formText(form url.Values, key string) string {
	return strings.TrimSpace(form.Get(key))
}

func formBool(form url.Values, key string) bool {
	switch form.Get(key) {
	case "on", "true", "1":
		return true
	default:
		return false
	}
}

func formInt(form url.Values, key string, errs fieldErrors) int {
	raw := formText(form, key)
	if raw == "" {
		return 0
	}
	// display_order and friends are INTEGER columns.
	n, err := strconv.ParseInt(raw, 10, 32)
	if err != nil {
		errs[key] = "Must be a whole number between -2147483648 and 2147483647"
		return 0
	}
	return int(n)
}

func formFloat(form url.Values, key string, errs fieldErrors) *float64 {
	raw := formText(form, key)
	if raw == "" {
		return nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		errs[key] = "Must be a number"
		return nil
	}
	return &f
}

func formDate(form url.Values, key string, errs fieldErrors) *time.Time {
	raw := formText(form, key)
	if raw == "" {
		return nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		errs[key] = "Use the format YYYY-MM-DD"
		return nil
	}
	return &t
}

// formTags reads the tag control: one value per chip plus the free-text
// input, which may hold comma-separated entries.
func formTags(form url.Values, key string) store.StringList {
	return store.StringList(taglist.Parse(form[key]))
}

func formArc(form url.Values) store.StoryArc {
	arc := make(store.StoryArc, 0, len(store.ArcPhases))
	for _, phase := range store.ArcPhases {
		arc = append(arc, store.ArcPhase{
			Phase:   phase,
			Heading: formText(form, "arc_"+phase+"_heading"),
			Body:    formText(form, "arc_"+phase+"_body"),
		})
	}
	return arc
}

func floatValue(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func dateValue(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}
