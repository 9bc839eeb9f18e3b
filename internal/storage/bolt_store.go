package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

const (
	postBucket   = "posts"
	slugBucket   = "slugs"
	assetBucket  = "assets"
	authorBucket = "authors"
)

var buckets = []string{postBucket, slugBucket, assetBucket, authorBucket}

// boltStore implements Store on BoltDB. Values are JSON; the slugs bucket
// indexes post IDs by slug.
type boltStore struct {
	db *bolt.DB
}

// openBolt initializes a BoltDB-backed Store.
func openBolt(path string) (Store, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bbolt db: %w", err)
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		for _, name := range buckets {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("init buckets: %w", err)
	}

	return &boltStore{db: db}, nil
}

// Close closes the BoltDB store.
func (b *boltStore) Close() error {
	if b == nil || b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *boltStore) FindBySlug(ctx context.Context, slug string) (*domain.ContentDraft, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var post *domain.ContentDraft
	err := b.db.View(func(tx *bolt.Tx) error {
		id := tx.Bucket([]byte(slugBucket)).Get([]byte(slug))
		if id == nil {
			return nil
		}
		raw := tx.Bucket([]byte(postBucket)).Get(id)
		if raw == nil {
			return fmt.Errorf("slug %q points at missing post %s", slug, id)
		}
		post = &domain.ContentDraft{}
		return json.Unmarshal(raw, post)
	})
	if err != nil {
		return nil, fmt.Errorf("find post by slug: %w", err)
	}
	return post, nil
}

// SavePost inserts or updates a post. Claiming a slug owned by another post fails with ErrSlugTaken.
func (b *boltStore) SavePost(ctx context.Context, post *domain.ContentDraft) error {
	if err := validatePost(post); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(post)
	if err != nil {
		return fmt.Errorf("encode post: %w", err)
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		slugs := tx.Bucket([]byte(slugBucket))
		posts := tx.Bucket([]byte(postBucket))

		if owner := slugs.Get([]byte(post.Slug)); owner != nil && string(owner) != post.ID {
			return fmt.Errorf("%w: %q", ErrSlugTaken, post.Slug)
		}

		// release the previous slug when a post is renamed
		if prev := posts.Get([]byte(post.ID)); prev != nil {
			var old domain.ContentDraft
			if err := json.Unmarshal(prev, &old); err == nil && old.Slug != "" && old.Slug != post.Slug {
				if err := slugs.Delete([]byte(old.Slug)); err != nil {
					return err
				}
			}
		}

		if err := posts.Put([]byte(post.ID), value); err != nil {
			return err
		}
		return slugs.Put([]byte(post.Slug), []byte(post.ID))
	})
}

func (b *boltStore) SaveAsset(ctx context.Context, asset domain.StoredAsset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	value, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode asset: %w", err)
	}
	return b.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(assetBucket)).Put([]byte(asset.ID), value)
	})
}

func (b *boltStore) FindAuthorByUsername(ctx context.Context, username string) (domain.Author, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return domain.Author{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Author{}, err
	}

	var author domain.Author
	err = b.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(authorBucket)).Get([]byte(name))
		if raw == nil {
			return fmt.Errorf("%w: %q", ErrAuthorNotFound, name)
		}
		return json.Unmarshal(raw, &author)
	})
	return author, err
}

// CreateAuthor returns the existing author when the username is already registered.
func (b *boltStore) CreateAuthor(ctx context.Context, username string) (domain.Author, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return domain.Author{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Author{}, err
	}

	var author domain.Author
	err = b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(authorBucket))
		if raw := bucket.Get([]byte(name)); raw != nil {
			return json.Unmarshal(raw, &author)
		}
		author = domain.Author{ID: uuid.NewString(), Username: name}
		value, err := json.Marshal(author)
		if err != nil {
			return err
		}
		return bucket.Put([]byte(name), value)
	})
	if err != nil {
		return domain.Author{}, fmt.Errorf("create author: %w", err)
	}
	return author, nil
}
