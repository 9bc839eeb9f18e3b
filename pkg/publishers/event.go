package publishers

import (
	"time"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

// EventContentImported is the type of events emitted after a post is persisted.
const EventContentImported = "content.imported"

// Event represents the payload published downstream.
type Event struct {
	Type        string    `json:"type"`
	ContentID   string    `json:"content_id"`
	Slug        string    `json:"slug"`
	Title       string    `json:"title"`
	AuthorID    string    `json:"author_id"`
	SourceLink  string    `json:"source_link,omitempty"`
	PublishedAt time.Time `json:"published_at"`
	Assets      int       `json:"assets"`
	ImportedAt  time.Time `json:"imported_at"`
}

// NewEvent constructs a content.imported event for a persisted draft.
func NewEvent(draft domain.ContentDraft, assets int) Event {
	return Event{
		Type:        EventContentImported,
		ContentID:   draft.ID,
		Slug:        draft.Slug,
		Title:       draft.Title,
		AuthorID:    draft.AuthorID,
		SourceLink:  draft.SourceLink,
		PublishedAt: draft.PublishedAt,
		Assets:      assets,
		ImportedAt:  time.Now().UTC(),
	}
}

// attributes are attached to queue and topic messages for filtering. Empty
// values are left out since SQS and SNS reject them.
func (e Event) attributes() map[string]string {
	out := make(map[string]string, 2)
	if e.Type != "" {
		out["event_type"] = e.Type
	}
	if e.AuthorID != "" {
		out["author_id"] = e.AuthorID
	}
	return out
}
