// Package revisions keeps the edit history of journal articles. Each article
// has its own git repository; every admin save that changes the article
// commits a snapshot.
package revisions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"storyworlds/site/internal/store"
	"storyworlds/site/internal/util"
)

const (
	metaFile    = "article.json"
	contentFile = "content.html"
	branch      = "main"
)

// ErrNotFound is returned for an article or revision with no history.
var ErrNotFound = errors.New("revision not found")

// Snapshot is the versioned state of an article. The body is stored
// separately as content.html so diffs of the rich text stay readable.
type Snapshot struct {
	Slug          string     `json:"slug"`
	Title         string     `json:"title"`
	Excerpt       string     `json:"excerpt"`
	Category      string     `json:"category"`
	Author        string     `json:"author"`
	CoverImageURL string     `json:"coverImageUrl"`
	Tags          []string   `json:"tags"`
	Published     bool       `json:"published"`
	PublishedAt   *time.Time `json:"publishedAt,omitempty"`
	Content       string     `json:"-"`
}

// SnapshotOf captures the versioned fields of an article.
func SnapshotOf(a store.JournalArticle) Snapshot {
	tags := []string(a.Tags)
	if tags == nil {
		tags = []string{}
	}
	var publishedAt *time.Time
	if a.PublishedAt != nil {
		t := a.PublishedAt.UTC()
		publishedAt = &t
	}
	return Snapshot{
		Slug:          a.Slug,
		Title:         a.Title,
		Excerpt:       a.Excerpt,
		Category:      a.Category,
		Author:        a.Author,
		CoverImageURL: a.CoverImageURL,
		Tags:          tags,
		Published:     a.Published,
		PublishedAt:   publishedAt,
		Content:       a.Content,
	}
}

// Revision describes one commit in an article's history.
type Revision struct {
	Hash      string    `json:"hash"`
	ShortHash string    `json:"shortHash"`
	Message   string    `json:"message"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"createdAt"`
}

type Service struct {
	baseDir string
	lockMu  sync.Mutex
	locks   map[string]*sync.Mutex
}

func New(baseDir string) *Service {
	return &Service{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}
}

// Record commits snapshot for articleID, creating the repository on first
// use. It reports false when the snapshot matches the latest revision.
func (s *Service) Record(articleID string, snapshot Snapshot, author string) (Revision, bool, error) {
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, created, err := s.openOrInit(articleID)
	if err != nil {
		return Revision{}, false, err
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return Revision{}, false, fmt.Errorf("open worktree: %w", err)
	}
	root := worktree.Filesystem.Root()

	meta, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return Revision{}, false, fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := os.WriteFile(filepath.Join(root, metaFile), append(meta, '\n'), 0o644); err != nil {
		return Revision{}, false, fmt.Errorf("write %s: %w", metaFile, err)
	}
	if err := os.WriteFile(filepath.Join(root, contentFile), []byte(snapshot.Content), 0o644); err != nil {
		return Revision{}, false, fmt.Errorf("write %s: %w", contentFile, err)
	}
	for _, name := range []string{metaFile, contentFile} {
		if _, err := worktree.Add(name); err != nil {
			return Revision{}, false, fmt.Errorf("git add %s: %w", name, err)
		}
	}

	status, err := worktree.Status()
	if err != nil {
		return Revision{}, false, fmt.Errorf("worktree status: %w", err)
	}
	if status.IsClean() {
		head, err := repo.Head()
		if err != nil {
			return Revision{}, false, fmt.Errorf("resolve head: %w", err)
		}
		commitObj, err := repo.CommitObject(head.Hash())
		if err != nil {
			return Revision{}, false, fmt.Errorf("read head commit: %w", err)
		}
		return toRevision(commitObj), false, nil
	}

	message := "Update " + snapshot.Title
	if created {
		message = "Create " + snapshot.Title
	}
	hash, err := worktree.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  author,
			Email: authorEmail(author),
			When:  time.Now(),
		},
	})
	if err != nil {
		return Revision{}, false, fmt.Errorf("commit snapshot: %w", err)
	}
	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return Revision{}, false, fmt.Errorf("read commit object: %w", err)
	}
	return toRevision(commitObj), true, nil
}

// History lists revisions newest first. An article with no repository has
// an empty history.
func (s *Service) History(articleID string, limit int) ([]Revision, error) {
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(articleID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return []Revision{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open repo: %w", err)
	}

	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	if err != nil {
		return nil, fmt.Errorf("resolve branch %s: %w", branch, err)
	}

	iter, err := repo.Log(&git.LogOptions{From: ref.Hash()})
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	defer iter.Close()

	items := make([]Revision, 0)
	err = iter.ForEach(func(commitObj *object.Commit) error {
		items = append(items, toRevision(commitObj))
		if limit > 0 && len(items) >= limit {
			return io.EOF
		}
		return nil
	})
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("iterate log: %w", err)
	}
	return items, nil
}

// Get returns the snapshot stored at hash, which may be abbreviated.
func (s *Service) Get(articleID, hash string) (Snapshot, Revision, error) {
	lock := s.articleLock(articleID)
	lock.Lock()
	defer lock.Unlock()

	repo, err := git.PlainOpen(s.repoPath(articleID))
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return Snapshot{}, Revision{}, ErrNotFound
	}
	if err != nil {
		return Snapshot{}, Revision{}, fmt.Errorf("open repo: %w", err)
	}

	resolved, err := repo.ResolveRevision(plumbing.Revision(hash))
	if err != nil {
		return Snapshot{}, Revision{}, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	commitObj, err := repo.CommitObject(*resolved)
	if err != nil {
		return Snapshot{}, Revision{}, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	snapshot, err := readSnapshot(commitObj)
	if err != nil {
		return Snapshot{}, Revision{}, err
	}
	return snapshot, toRevision(commitObj), nil
}

// FieldChange is one differing field between two snapshots.
type FieldChange struct {
	Field  string `json:"field"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Diff lists the fields that differ between two snapshots, sorted by name.
func Diff(from, to Snapshot) []FieldChange {
	pairs := []FieldChange{
		{Field: "slug", Before: from.Slug, After: to.Slug},
		{Field: "title", Before: from.Title, After: to.Title},
		{Field: "excerpt", Before: from.Excerpt, After: to.Excerpt},
		{Field: "category", Before: from.Category, After: to.Category},
		{Field: "author", Before: from.Author, After: to.Author},
		{Field: "coverImageUrl", Before: from.CoverImageURL, After: to.CoverImageURL},
		{Field: "tags", Before: strings.Join(from.Tags, ", "), After: strings.Join(to.Tags, ", ")},
		{Field: "published", Before: fmt.Sprint(from.Published), After: fmt.Sprint(to.Published)},
		{Field: "publishedAt", Before: formatTime(from.PublishedAt), After: formatTime(to.PublishedAt)},
	}
	result := make([]FieldChange, 0)
	for _, item := range pairs {
		if item.Before != item.After {
			result = append(result, item)
		}
	}
	if from.Content != to.Content {
		result = append(result, FieldChange{Field: "content", Before: "[rich content]", After: "[rich content]"})
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Field < result[j].Field
	})
	return result
}

func (s *Service) openOrInit(articleID string) (*git.Repository, bool, error) {
	path := s.repoPath(articleID)
	repo, err := git.PlainOpen(path)
	if err == nil {
		return repo, false, nil
	}
	if !errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, false, fmt.Errorf("open repo: %w", err)
	}

	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, false, fmt.Errorf("create repo dir: %w", err)
	}
	repo, err = git.PlainInitWithOptions(path, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName(branch)},
	})
	if err != nil {
		return nil, false, fmt.Errorf("init repo: %w", err)
	}
	return repo, true, nil
}

func (s *Service) repoPath(articleID string) string {
	return filepath.Join(s.baseDir, filepath.Base(articleID))
}

func (s *Service) articleLock(articleID string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[articleID]
	if ok {
		return lock
	}
	lock = &sync.Mutex{}
	s.locks[articleID] = lock
	return lock
}

func readSnapshot(commitObj *object.Commit) (Snapshot, error) {
	meta, err := readFile(commitObj, metaFile)
	if err != nil {
		return Snapshot{}, err
	}
	var snapshot Snapshot
	if err := json.Unmarshal([]byte(meta), &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot: %w", err)
	}
	content, err := readFile(commitObj, contentFile)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Content = content
	return snapshot, nil
}

func readFile(commitObj *object.Commit, name string) (string, error) {
	file, err := commitObj.File(name)
	if err != nil {
		return "", fmt.Errorf("load %s from commit: %w", name, err)
	}
	contents, err := file.Contents()
	if err != nil {
		return "", fmt.Errorf("read %s: %w", name, err)
	}
	return contents, nil
}

func toRevision(commitObj *object.Commit) Revision {
	hash := commitObj.Hash.String()
	return Revision{
		Hash:      hash,
		ShortHash: hash[:7],
		Message:   strings.TrimSpace(commitObj.Message),
		Author:    commitObj.Author.Name,
		CreatedAt: commitObj.Author.When,
	}
}

func authorEmail(author string) string {
	local := util.Slugify(author)
	if local == "" {
		local = "editor"
	}
	return strings.ReplaceAll(local, "-", ".") + "@admin.storyworlds.local"
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
