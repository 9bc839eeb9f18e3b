package domain

import "time"

// Domain contains core models shared by the import pipeline.

// FeedMetadata describes the feed document itself.
type FeedMetadata struct {
	Title  string
	Link   string
	Format string
}

// FeedItem is one entry read from a feed document. It is read-only to the
// rest of the pipeline and lives for a single import iteration.
type FeedItem struct {
	GUID      string
	Title     string
	Content   string
	Summary   string
	Link      string
	Author    string
	Published time.Time
}

// Author identifies the owner of imported content.
type Author struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// AssetKind classifies a discovered or stored asset.
type AssetKind int

const (
	AssetImage AssetKind = iota
	AssetAttachment
)

func (k AssetKind) String() string {
	switch k {
	case AssetImage:
		return "image"
	case AssetAttachment:
		return "attachment"
	default:
		return "unknown"
	}
}

// AssetReference is an asset location found in a markup body.
type AssetReference struct {
	RawURL string
	Kind   AssetKind
}

// StoredAsset is an asset persisted to owned storage.
type StoredAsset struct {
	ID          string    `json:"id"`
	URL         string    `json:"url"`
	Path        string    `json:"path"`
	OwnerID     string    `json:"owner_id"`
	PublishedAt time.Time `json:"published_at"`
	Type        AssetKind `json:"type"`
	ContentType string    `json:"content_type"`
	Size        int64     `json:"size"`
	SHA256      string    `json:"sha256"`
}
