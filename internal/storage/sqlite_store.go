package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

type postRecord struct {
	ID          string    `gorm:"primaryKey;size:64"`
	Title       string    `gorm:"size:512"`
	Summary     string    `gorm:"type:text"`
	Body        string    `gorm:"type:text"`
	Slug        string    `gorm:"uniqueIndex;size:128;not null"`
	PublishedAt time.Time `gorm:"index"`
	AuthorID    string    `gorm:"index;size:64"`
	Status      int
	SourceLink  string `gorm:"size:2048"`
	CreatedAt   time.Time
}

func (postRecord) TableName() string { return "posts" }

type assetRecord struct {
	ID          string `gorm:"primaryKey;size:64"`
	URL         string `gorm:"size:2048"`
	Path        string `gorm:"size:1024;index"`
	OwnerID     string `gorm:"index;size:64"`
	PublishedAt time.Time
	Type        int
	ContentType string `gorm:"size:255"`
	Size        int64
	SHA256      string `gorm:"size:64"`
}

func (assetRecord) TableName() string { return "assets" }

type authorRecord struct {
	ID       string `gorm:"primaryKey;size:64"`
	Username string `gorm:"uniqueIndex;size:255;not null"`
}

func (authorRecord) TableName() string { return "authors" }

// sqliteStore implements Store on SQLite through gorm.
type sqliteStore struct {
	db *gorm.DB
}

func openSQLite(path string) (Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.AutoMigrate(&postRecord{}, &assetRecord{}, &authorRecord{}); err != nil {
		return nil, fmt.Errorf("migrate sqlite db: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *sqliteStore) FindBySlug(ctx context.Context, slug string) (*domain.ContentDraft, error) {
	var rec postRecord
	err := s.db.WithContext(ctx).Where("slug = ?", slug).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find post by slug: %w", err)
	}
	post := rec.toDomain()
	return &post, nil
}

func (s *sqliteStore) SavePost(ctx context.Context, post *domain.ContentDraft) error {
	if err := validatePost(post); err != nil {
		return err
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner postRecord
		err := tx.Select("id").Where("slug = ?", post.Slug).First(&owner).Error
		switch {
		case err == nil && owner.ID != post.ID:
			return fmt.Errorf("%w: %q", ErrSlugTaken, post.Slug)
		case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
			return fmt.Errorf("check slug: %w", err)
		}

		rec := postFromDomain(post)
		if err := tx.Save(&rec).Error; err != nil {
			return fmt.Errorf("save post: %w", err)
		}
		return nil
	})
}

func (s *sqliteStore) SaveAsset(ctx context.Context, asset domain.StoredAsset) error {
	if asset.ID == "" {
		return fmt.Errorf("asset id is required")
	}
	rec := assetRecord{
		ID:          asset.ID,
		URL:         asset.URL,
		Path:        asset.Path,
		OwnerID:     asset.OwnerID,
		PublishedAt: asset.PublishedAt,
		Type:        int(asset.Type),
		ContentType: asset.ContentType,
		Size:        asset.Size,
		SHA256:      asset.SHA256,
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("save asset: %w", err)
	}
	return nil
}

func (s *sqliteStore) FindAuthorByUsername(ctx context.Context, username string) (domain.Author, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return domain.Author{}, err
	}
	var rec authorRecord
	err = s.db.WithContext(ctx).Where("username = ?", name).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Author{}, fmt.Errorf("%w: %q", ErrAuthorNotFound, name)
	}
	if err != nil {
		return domain.Author{}, fmt.Errorf("find author: %w", err)
	}
	return domain.Author{ID: rec.ID, Username: rec.Username}, nil
}

func (s *sqliteStore) CreateAuthor(ctx context.Context, username string) (domain.Author, error) {
	name, err := normalizeUsername(username)
	if err != nil {
		return domain.Author{}, err
	}
	rec := authorRecord{Username: name}
	err = s.db.WithContext(ctx).
		Where(authorRecord{Username: name}).
		Attrs(authorRecord{ID: uuid.NewString()}).
		FirstOrCreate(&rec).Error
	if err != nil {
		return domain.Author{}, fmt.Errorf("create author: %w", err)
	}
	return domain.Author{ID: rec.ID, Username: rec.Username}, nil
}

func postFromDomain(p *domain.ContentDraft) postRecord {
	return postRecord{
		ID:          p.ID,
		Title:       p.Title,
		Summary:     p.Summary,
		Body:        p.Body,
		Slug:        p.Slug,
		PublishedAt: p.PublishedAt,
		AuthorID:    p.AuthorID,
		Status:      int(p.Status),
		SourceLink:  p.SourceLink,
		CreatedAt:   p.CreatedAt,
	}
}

func (r postRecord) toDomain() domain.ContentDraft {
	return domain.ContentDraft{
		ID:          r.ID,
		Title:       r.Title,
		Summary:     r.Summary,
		Body:        r.Body,
		Slug:        r.Slug,
		PublishedAt: r.PublishedAt,
		AuthorID:    r.AuthorID,
		Status:      domain.Status(r.Status),
		SourceLink:  r.SourceLink,
		CreatedAt:   r.CreatedAt,
	}
}
