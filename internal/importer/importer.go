// Package importer drives feed items through extraction, asset rehosting,
// conversion, slug allocation and persistence.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-feed-importer/internal/assets"
	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
	"github.com/samvad-hq/samvad-feed-importer/internal/feed"
	"github.com/samvad-hq/samvad-feed-importer/internal/logger"
	"github.com/samvad-hq/samvad-feed-importer/pkg/publishers"
)

// Rehoster stores one asset reference in owned storage.
type Rehoster interface {
	Rehost(ctx context.Context, ref domain.AssetReference, owner assets.Owner, partition string) (domain.StoredAsset, error)
}

// Converter renders the final body. It must not fail.
type Converter interface {
	Convert(html string) string
}

// SlugAllocator picks a free slug for a title.
type SlugAllocator interface {
	Allocate(ctx context.Context, title string) string
}

// PostStore persists finished drafts.
type PostStore interface {
	SavePost(ctx context.Context, post *domain.ContentDraft) error
}

// Notifier announces imported content downstream.
type Notifier interface {
	Publish(ctx context.Context, evt publishers.Event) (int, error)
}

// Deps are the collaborators of an Orchestrator. Notifier and Logger are optional.
type Deps struct {
	Extractor assets.Extractor
	Rehoster  Rehoster
	Converter Converter
	Slugs     SlugAllocator
	Store     PostStore
	Notifier  Notifier
	Logger    logger.Logger
}

// DefaultAttachmentExtensions lists the linked file types rehosted when attachments are enabled.
var DefaultAttachmentExtensions = []string{"pdf", "zip", "doc", "docx", "xls", "xlsx", "ppt", "pptx", "mp3", "mp4", "epub"}

// Options tunes an Orchestrator.
type Options struct {
	ImportAttachments    bool
	AttachmentExtensions []string
	AssetConcurrency     int
	SummaryMaxRunes      int
	NotifyTimeout        time.Duration
}

const (
	defaultAssetConcurrency = 4
	defaultSummaryMaxRunes  = 300
	defaultNotifyTimeout    = 5 * time.Second
)

// Orchestrator imports feeds item by item. Items are processed sequentially;
// the assets of one item are rehosted in parallel.
type Orchestrator struct {
	deps        Deps
	opts        Options
	log         logger.Logger
	attachments map[string]struct{}
	now         func() time.Time
	newID       func() string
}

// New validates deps and applies option defaults.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	switch {
	case deps.Extractor == nil:
		return nil, fmt.Errorf("importer requires an extractor")
	case deps.Rehoster == nil:
		return nil, fmt.Errorf("importer requires a rehoster")
	case deps.Converter == nil:
		return nil, fmt.Errorf("importer requires a converter")
	case deps.Slugs == nil:
		return nil, fmt.Errorf("importer requires a slug allocator")
	case deps.Store == nil:
		return nil, fmt.Errorf("importer requires a store")
	}

	if opts.AssetConcurrency <= 0 {
		opts.AssetConcurrency = defaultAssetConcurrency
	}
	if opts.SummaryMaxRunes <= 0 {
		opts.SummaryMaxRunes = defaultSummaryMaxRunes
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = defaultNotifyTimeout
	}
	if len(opts.AttachmentExtensions) == 0 {
		opts.AttachmentExtensions = DefaultAttachmentExtensions
	}

	exts := make(map[string]struct{}, len(opts.AttachmentExtensions))
	for _, ext := range opts.AttachmentExtensions {
		ext = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
		if ext != "" {
			exts[ext] = struct{}{}
		}
	}

	return &Orchestrator{
		deps:        deps,
		opts:        opts,
		log:         logger.Ensure(deps.Logger),
		attachments: exts,
		now:         time.Now,
		newID:       uuid.NewString,
	}, nil
}

// ImportFeed reads a feed document from r and imports every entry for owner.
// siteBase resolves relative asset references; when empty the feed's own
// link is used. Only a header-level *feed.FeedParseError or the context error
// is returned; per-item failures are reported in the summary.
func (o *Orchestrator) ImportFeed(ctx context.Context, r io.Reader, owner domain.Author, siteBase string) (domain.ImportSummary, error) {
	var summary domain.ImportSummary

	reader, err := feed.Open(r)
	if err != nil {
		o.log.ErrorObj("feed could not be read", "feed", map[string]interface{}{"error": err.Error()})
		return summary, err
	}

	meta := reader.Metadata()
	if strings.TrimSpace(siteBase) == "" {
		siteBase = meta.Link
	}
	o.log.InfoObj("import started", "feed", map[string]interface{}{
		"title":     meta.Title,
		"format":    meta.Format,
		"site_base": siteBase,
		"author":    owner.Username,
	})

	for index := 0; ; index++ {
		if err := ctx.Err(); err != nil {
			o.logDone(summary, err)
			return summary, err
		}

		item, err := reader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			summary.Add(domain.ItemResult{Index: index, Status: domain.StatusFailed, Err: err})
			o.log.WarnObj("feed entry skipped", "item", map[string]interface{}{
				"index": index,
				"error": err.Error(),
			})
			var perr *feed.ItemParseError
			if errors.As(err, &perr) && perr.Truncated {
				break
			}
			continue
		}

		summary.Add(o.importItem(ctx, index, item, owner, siteBase))
		if err := ctx.Err(); err != nil {
			o.logDone(summary, err)
			return summary, err
		}
	}

	o.logDone(summary, nil)
	return summary, nil
}

func (o *Orchestrator) logDone(summary domain.ImportSummary, err error) {
	fields := map[string]interface{}{
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	}
	if err != nil {
		fields["error"] = err.Error()
		o.log.WarnObj("import interrupted", "summary", fields)
		return
	}
	o.log.InfoObj("import finished", "summary", fields)
}
