package store

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type User struct {
	ID           string    `db:"id"`
	DisplayName  string    `db:"display_name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Theme struct {
	ID           string    `db:"id"`
	Slug         string    `db:"slug"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	HeroImageURL string    `db:"hero_image_url"`
	Mode         string    `db:"mode"`
	Published    bool      `db:"published"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Storyworld struct {
	ID           string    `db:"id"`
	Slug         string    `db:"slug"`
	Title        string    `db:"title"`
	Subtitle     string    `db:"subtitle"`
	Description  string    `db:"description"`
	HeroImageURL string    `db:"hero_image_url"`
	ThemeID      *string   `db:"theme_id"`
	Region       string    `db:"region"`
	Latitude     *float64  `db:"latitude"`
	Longitude    *float64  `db:"longitude"`
	StoryArc     StoryArc  `db:"story_arc"`
	Published    bool      `db:"published"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type Storyteller struct {
	ID                   string     `db:"id"`
	Slug                 string     `db:"slug"`
	Name                 string     `db:"name"`
	Role                 string     `db:"role"`
	Bio                  string     `db:"bio"`
	PortraitURL          string     `db:"portrait_url"`
	Location             string     `db:"location"`
	SignatureExperiences StringList `db:"signature_experiences"`
	Published            bool       `db:"published"`
	DisplayOrder         int        `db:"display_order"`
	CreatedAt            time.Time  `db:"created_at"`
	UpdatedAt            time.Time  `db:"updated_at"`
}

type JournalArticle struct {
	ID            string     `db:"id"`
	Slug          string     `db:"slug"`
	Title         string     `db:"title"`
	Excerpt       string     `db:"excerpt"`
	Content       string     `db:"content"`
	Category      string     `db:"category"`
	CoverImageURL string     `db:"cover_image_url"`
	Author        string     `db:"author"`
	Tags          StringList `db:"tags"`
	Published     bool       `db:"published"`
	DisplayOrder  int        `db:"display_order"`
	PublishedAt   *time.Time `db:"published_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type PressItem struct {
	ID           string     `db:"id"`
	Title        string     `db:"title"`
	Source       string     `db:"source"`
	Quote        string     `db:"quote"`
	URL          string     `db:"url"`
	LogoURL      string     `db:"logo_url"`
	Published    bool       `db:"published"`
	DisplayOrder int        `db:"display_order"`
	PublishedAt  *time.Time `db:"published_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

type Service struct {
	ID           string    `db:"id"`
	Slug         string    `db:"slug"`
	Title        string    `db:"title"`
	Summary      string    `db:"summary"`
	Description  string    `db:"description"`
	Icon         string    `db:"icon"`
	Published    bool      `db:"published"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

const (
	InquiryStatusNew       = "new"
	InquiryStatusContacted = "contacted"
	InquiryStatusClosed    = "closed"
)

type Inquiry struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	Email     string    `db:"email"`
	Phone     string    `db:"phone"`
	Interest  string    `db:"interest"`
	Message   string    `db:"message"`
	Status    string    `db:"status"`
	CreatedAt time.Time `db:"created_at"`
	UpdatedAt time.Time `db:"updated_at"`
}

type NewsletterSubscriber struct {
	ID        string    `db:"id"`
	Email     string    `db:"email"`
	Source    string    `db:"source"`
	CreatedAt time.Time `db:"created_at"`
}

type PageMeta struct {
	ID          string    `db:"id"`
	Path        string    `db:"path"`
	Title       string    `db:"title"`
	Description string    `db:"description"`
	OGImageURL  string    `db:"og_image_url"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

type SummaryCounts struct {
	Themes       int `db:"themes"`
	Storyworlds  int `db:"storyworlds"`
	Storytellers int `db:"storytellers"`
	Journal      int `db:"journal"`
	Press        int `db:"press"`
	NewInquiries int `db:"new_inquiries"`
	Subscribers  int `db:"subscribers"`
}

// StringList is a tag-style list persisted as a JSONB array.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]string(l))
	if err != nil {
		return nil, fmt.Errorf("marshal string list: %w", err)
	}
	return string(encoded), nil
}

func (l *StringList) Scan(src any) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	var items []string
	if err := json.Unmarshal(raw, &items); err != nil {
		return fmt.Errorf("scan string list: %w", err)
	}
	if items == nil {
		items = []string{}
	}
	*l = items
	return nil
}

// Story arc phases, in narrative order.
const (
	PhaseArrival    = "arrival"
	PhaseImmersion  = "immersion"
	PhaseClimax     = "climax"
	PhaseReflection = "reflection"
)

var ArcPhases = []string{PhaseArrival, PhaseImmersion, PhaseClimax, PhaseReflection}

type ArcPhase struct {
	Phase   string `json:"phase"`
	Heading string `json:"heading"`
	Body    string `json:"body"`
}

// StoryArc is stored as a JSONB array of phases.
type StoryArc []ArcPhase

// Complete reports whether every phase carries a heading.
func (a StoryArc) Complete() bool {
	if len(a) != len(ArcPhases) {
		return false
	}
	for i, phase := range a {
		if phase.Phase != ArcPhases[i] || phase.Heading == "" {
			return false
		}
	}
	return true
}

func (a StoryArc) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	encoded, err := json.Marshal([]ArcPhase(a))
	if err != nil {
		return nil, fmt.Errorf("marshal story arc: %w", err)
	}
	return string(encoded), nil
}

func (a *StoryArc) Scan(src any) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if len(raw) == 0 {
		*a = StoryArc{}
		return nil
	}
	var phases []ArcPhase
	if err := json.Unmarshal(raw, &phases); err != nil {
		return fmt.Errorf("scan story arc: %w", err)
	}
	*a = phases
	return nil
}

func jsonBytes(src any) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json source %T", src)
	}
}
