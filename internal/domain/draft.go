package domain

import (
	"errors"
	"fmt"
	"time"
)

// Status is the lifecycle state of a ContentDraft.
type Status int

const (
	StatusDraft Status = iota
	StatusPublishing
	StatusPublished
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusDraft:
		return "draft"
	case StatusPublishing:
		return "publishing"
	case StatusPublished:
		return "published"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusPublished || s == StatusFailed
}

var (
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlugAssigned      = errors.New("slug already assigned")
)

// ContentDraft is the mutable working record built from a FeedItem.
type ContentDraft struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Body        string    `json:"body"`
	Slug        string    `json:"slug"`
	PublishedAt time.Time `json:"published_at"`
	AuthorID    string    `json:"author_id"`
	Status      Status    `json:"status"`
	SourceLink  string    `json:"source_link,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Advance moves the draft forward: Draft -> Publishing -> Published|Failed.
func (d *ContentDraft) Advance(next Status) error {
	ok := false
	switch d.Status {
	case StatusDraft:
		ok = next == StatusPublishing || next == StatusFailed
	case StatusPublishing:
		ok = next == StatusPublished || next == StatusFailed
	}
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, d.Status, next)
	}
	d.Status = next
	return nil
}

// AssignSlug sets the slug once; later calls fail.
func (d *ContentDraft) AssignSlug(slug string) error {
	if d.Slug != "" {
		return fmt.Errorf("%w: %q", ErrSlugAssigned, d.Slug)
	}
	d.Slug = slug
	return nil
}

// Partition returns the year/month storage partition for assets of this draft.
func (d *ContentDraft) Partition() string {
	return fmt.Sprintf("%04d/%02d", d.PublishedAt.Year(), int(d.PublishedAt.Month()))
}
