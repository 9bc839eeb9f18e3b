// Package storage persists imported posts, their assets and authors.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

var (
	// ErrAuthorNotFound is returned when no author has the requested username.
	ErrAuthorNotFound = errors.New("author not found")
	// ErrSlugTaken is returned by SavePost when another post already owns the slug.
	ErrSlugTaken = errors.New("slug already taken")
)

// Store is the content store the importer writes to.
type Store interface {
	// FindBySlug returns nil, nil when no post has the slug.
	FindBySlug(ctx context.Context, slug string) (*domain.ContentDraft, error)
	SavePost(ctx context.Context, post *domain.ContentDraft) error
	SaveAsset(ctx context.Context, asset domain.StoredAsset) error
	FindAuthorByUsername(ctx context.Context, username string) (domain.Author, error)
	CreateAuthor(ctx context.Context, username string) (domain.Author, error)
	Close() error
}

// NewStore creates the configured storage backend.
func NewStore(typ, path string) (Store, error) {
	typ = strings.TrimSpace(strings.ToLower(typ))

	switch typ {
	case "", "bbolt", "bolt":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("bbolt storage requires a path")
		}
		return openBolt(path)
	case "sqlite", "sqlite3":
		if strings.TrimSpace(path) == "" {
			return nil, fmt.Errorf("sqlite storage requires a path")
		}
		return openSQLite(path)
	case "memory", "mem":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported storage type %q", typ)
	}
}

func validatePost(post *domain.ContentDraft) error {
	if post == nil {
		return fmt.Errorf("post is nil")
	}
	if strings.TrimSpace(post.ID) == "" {
		return fmt.Errorf("post id is required")
	}
	if strings.TrimSpace(post.Slug) == "" {
		return fmt.Errorf("post %s has no slug", post.ID)
	}
	return nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("username is required")
	}
	return username, nil
}
