package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

// MemoryStore keeps everything in process memory. It is used for dry runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	posts   map[string]domain.ContentDraft
	slugs   map[string]string
	assets  map[string]domain.StoredAsset
	authors map[string]domain.Author
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		posts:   make(map[string]domain.ContentDraft),
		slugs:   make(map[string]string),
		assets:  make(map[string]domain.StoredAsset),
		authors: make(map[string]domain.Author),
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) FindBySlug(ctx context.Context, slug string) (*domain.ContentDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.slugs[slug]
	if !ok {
		return nil, nil
	}
	post := m.posts[id]
	return &post, nil
}

func (m *MemoryStore) SavePost(ctx context.Context, post *domain.ContentDraft) error {
	if err := validatePost(post); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if owner, ok := m.slugs[post.Slug]; ok && owner != post.ID {
		return fmt.Errorf("%w: %q", ErrSlugTaken, post.Slug)
	}
	if old, ok := m.posts[post.ID]; ok && old.Slug != post.Slug {
		delete(m.slugs, old.Slug)
	}
	m.posts[post.ID] = *post
	m.slugs[post.Slug] = post.ID
	return nil
}

func (m *MemoryStore) SaveAsset(ctx context.Context, asset domain.StoredAsset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assets[asset.ID] = asset
	return nil
}

func (m *MemoryStore) FindAuthorByUsername(ctx context.Context, username string) (domain.Author, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return domain.Author{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Author{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	author, ok := m.authors[name]
	if !ok {
		return domain.Author{}, fmt.Errorf("%w: %q", ErrAuthorNotFound, name)
	}
	return author, nil
}

func (m *MemoryStore) CreateAuthor(ctx context.Context, username string) (domain.Author, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return domain.Author{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Author{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if author, ok := m.authors[name]; ok {
		return author, nil
	}
	author := domain.Author{ID: uuid.NewString(), Username: name}
	m.authors[name] = author
	return author, nil
}

// Posts returns a snapshot of the stored posts.
func (m *MemoryStore) Posts() []domain.ContentDraft {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.ContentDraft, 0, len(m.posts))
	for _, p := range m.posts {
		out = append(out, p)
	}
	return out
}

// Assets returns a snapshot of the registered assets.
func (m *MemoryStore) Assets() []domain.StoredAsset {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.StoredAsset, 0, len(m.assets))
	for _, a := range m.assets {
		out = append(out, a)
	}
	return out
}
