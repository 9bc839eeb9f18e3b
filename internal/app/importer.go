package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/samvad-hq/samvad-feed-importer/internal/assets"
	"github.com/samvad-hq/samvad-feed-importer/internal/config"
	"github.com/samvad-hq/samvad-feed-importer/internal/convert"
	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
	"github.com/samvad-hq/samvad-feed-importer/internal/importer"
	"github.com/samvad-hq/samvad-feed-importer/internal/logger"
	"github.com/samvad-hq/samvad-feed-importer/internal/slug"
	"github.com/samvad-hq/samvad-feed-importer/internal/storage"
	"github.com/samvad-hq/samvad-feed-importer/pkg/blob"
	"github.com/samvad-hq/samvad-feed-importer/pkg/httpclient"
	"github.com/samvad-hq/samvad-feed-importer/pkg/publishers"
	"github.com/samvad-hq/samvad-feed-importer/pkg/sources"
)

// Importer is the feed importer runtime. It owns the content store, asset
// storage and publishers, and runs every configured source once.
type Importer struct {
	cfg          *config.Config
	sources      []sources.Source
	openers      sources.OpenerRegistry
	orchestrator *importer.Orchestrator
	fanout       *publishers.Fanout
	store        storage.Store
	log          logger.Logger
	authors      map[string]domain.Author
}

// NewImporter builds an importer runtime from config.
func NewImporter(ctx context.Context, cfg *config.Config, log logger.Logger) (*Importer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	log = logger.Ensure(log)
	if ctx == nil {
		ctx = context.Background()
	}

	srcs, err := loadSources(cfg)
	if err != nil {
		return nil, err
	}
	srcIDs := make([]string, 0, len(srcs))
	for _, s := range srcs {
		srcIDs = append(srcIDs, s.ID)
	}
	log.InfoObj("sources loaded", "sources_meta", map[string]any{
		"count": len(srcIDs),
		"ids":   srcIDs,
	})

	store, err := storage.NewStore(cfg.StoreType, cfg.StorePath)
	if err != nil {
		return nil, fmt.Errorf("init storage: %w", err)
	}
	log.InfoObj("storage initialized", "storage_config", map[string]any{
		"type": cfg.StoreType,
		"path": cfg.StorePath,
	})

	imp := &Importer{
		cfg:     cfg,
		sources: srcs,
		openers: sources.DefaultOpenerRegistry(httpclient.NewRestyClientWithOptions(httpclient.Options{
			Timeout:    cfg.FeedFetchTimeout,
			RetryCount: 1,
			UserAgent:  cfg.AssetUserAgent,
		}), cfg.FeedFetchTimeout),
		store:   store,
		log:     log,
		authors: make(map[string]domain.Author),
	}
	if err := imp.wire(ctx); err != nil {
		imp.close()
		return nil, err
	}
	return imp, nil
}

func loadSources(cfg *config.Config) ([]sources.Source, error) {
	if strings.TrimSpace(cfg.SourcesFile) != "" {
		reg, err := sources.LoadRegistry(cfg.SourcesFile)
		if err != nil {
			return nil, fmt.Errorf("load sources registry: %w", err)
		}
		return reg.Enabled(), nil
	}
	src, err := sources.FromLocation(cfg.FeedPath, cfg.SiteURL, cfg.Author)
	if err != nil {
		return nil, fmt.Errorf("feed source: %w", err)
	}
	return []sources.Source{src}, nil
}

func (i *Importer) wire(ctx context.Context) error {
	cfg := i.cfg

	backend, err := blob.NewBackend(ctx, blob.BackendConfig{
		Type:       cfg.AssetBackend,
		Root:       cfg.AssetRoot,
		PublicBase: cfg.AssetPublicURL,
		S3: blob.S3Config{
			Bucket:   cfg.AssetS3Bucket,
			Region:   cfg.AssetS3Region,
			Endpoint: cfg.AssetS3Endpoint,
		},
	})
	if err != nil {
		return fmt.Errorf("init asset backend: %w", err)
	}
	fetcher := httpclient.NewRestyClientWithOptions(httpclient.Options{
		Timeout:      cfg.AssetFetchTimeout,
		RetryCount:   cfg.AssetFetchRetries,
		MaxBodyBytes: cfg.AssetMaxBytes,
	})
	uploader := blob.NewUploader(backend, fetcher, blob.Options{
		MaxBytes:  cfg.AssetMaxBytes,
		UserAgent: cfg.AssetUserAgent,
	})
	log := i.log
	log.InfoObj("asset storage initialized", "asset_config", map[string]any{
		"backend":     backend.Name(),
		"base_path":   cfg.AssetBasePath,
		"public_url":  cfg.AssetPublicURL,
		"concurrency": cfg.AssetConcurrency,
	})

	fanout, err := buildFanout(ctx, cfg, log)
	if err != nil {
		return err
	}
	i.fanout = fanout

	extractor := assets.NewRegexExtractor(func(e *assets.ExtractionError) {
		log.DebugObj("asset reference skipped", "fragment", map[string]any{
			"fragment": e.Fragment,
			"error":    e.Err.Error(),
		})
	})

	orch, err := importer.New(importer.Deps{
		Extractor: extractor,
		Rehoster: assets.NewRehoster(uploader, i.store, assets.Options{
			BasePath:     cfg.AssetBasePath,
			FetchTimeout: cfg.AssetFetchTimeout,
		}),
		Converter: convert.New(convert.Options{Sanitize: cfg.SanitizeHTML}, log),
		Slugs:     slug.NewAllocator(i.store, log),
		Store:     i.store,
		Notifier:  fanout,
		Logger:    log,
	}, importer.Options{
		ImportAttachments:    cfg.ImportAttachments,
		AttachmentExtensions: cfg.AttachmentExts,
		AssetConcurrency:     cfg.AssetConcurrency,
		SummaryMaxRunes:      cfg.SummaryMaxRunes,
		NotifyTimeout:        cfg.NotifyTimeout,
	})
	if err != nil {
		return fmt.Errorf("init importer: %w", err)
	}
	i.orchestrator = orch
	return nil
}

func buildFanout(ctx context.Context, cfg *config.Config, log logger.Logger) (*publishers.Fanout, error) {
	if strings.TrimSpace(cfg.PublishersFile) == "" {
		log.InfoObj("no publishers file configured; notifications disabled", "publishers_file", "")
		return publishers.NewFanout(nil), nil
	}

	reg, err := publishers.LoadRegistry(cfg.PublishersFile)
	if err != nil {
		return nil, fmt.Errorf("load publishers registry: %w", err)
	}
	enabled := reg.Enabled()
	pubs, err := publishers.BuildAll(ctx, publishers.DefaultRegistry(), enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build publishers: %w", err)
	}

	summaries := make([]map[string]string, 0, len(enabled))
	for _, p := range enabled {
		summaries = append(summaries, map[string]string{"id": p.ID, "type": p.Type})
	}
	log.InfoObj("publishers registry loaded", "publishers_meta", map[string]any{
		"count":      len(summaries),
		"publishers": summaries,
	})
	return publishers.NewFanout(pubs), nil
}

// Run imports every source once. Source failures are logged and joined;
// cancellation stops the run and is returned as is.
func (i *Importer) Run(ctx context.Context) error {
	if i == nil || i.orchestrator == nil {
		return fmt.Errorf("importer is not initialized")
	}
	defer i.close()

	start := time.Now()
	var errs []error
	var total domain.ImportSummary
	for _, src := range i.sources {
		summary, err := i.runSource(ctx, src)
		total.Succeeded += summary.Succeeded
		total.Failed += summary.Failed
		if ctxErr := ctx.Err(); ctxErr != nil {
			i.log.WarnObj("import cancelled", "reason", ctxErr.Error())
			return ctxErr
		}
		if err != nil {
			errs = append(errs, err)
			i.log.ErrorObj("source import failed", "source_error", map[string]any{
				"source_id": src.ID,
				"error":     err.Error(),
			})
		}
	}

	i.log.InfoObj("import run completed", "run_meta", map[string]any{
		"sources":    len(i.sources),
		"succeeded":  total.Succeeded,
		"failed":     total.Failed,
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
	return errors.Join(errs...)
}

func (i *Importer) runSource(ctx context.Context, src sources.Source) (domain.ImportSummary, error) {
	if delay := src.RequestDelay(); delay > 0 {
		select {
		case <-ctx.Done():
			return domain.ImportSummary{}, ctx.Err()
		case <-time.After(delay):
		}
	}

	username := src.Author
	if username == "" {
		username = i.cfg.Author
	}
	author, err := i.resolveAuthor(ctx, username)
	if err != nil {
		return domain.ImportSummary{}, fmt.Errorf("source %s: %w", src.ID, err)
	}

	opener, err := i.openers.OpenerFor(src)
	if err != nil {
		return domain.ImportSummary{}, err
	}
	doc, err := opener.Open(ctx, src)
	if err != nil {
		return domain.ImportSummary{}, err
	}
	defer doc.Close()

	siteBase := src.SiteURL
	if siteBase == "" {
		siteBase = i.cfg.SiteURL
	}
	summary, err := i.orchestrator.ImportFeed(ctx, doc, author, siteBase)
	i.log.InfoObj("source imported", "source_result", map[string]any{
		"source_id": src.ID,
		"succeeded": summary.Succeeded,
		"failed":    summary.Failed,
	})
	if err != nil {
		return summary, fmt.Errorf("source %s: %w", src.ID, err)
	}
	return summary, nil
}

// resolveAuthor looks the author up once per run, creating it when allowed.
func (i *Importer) resolveAuthor(ctx context.Context, username string) (domain.Author, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return domain.Author{}, fmt.Errorf("no author configured")
	}
	if a, ok := i.authors[username]; ok {
		return a, nil
	}

	author, err := i.store.FindAuthorByUsername(ctx, username)
	if errors.Is(err, storage.ErrAuthorNotFound) && i.cfg.CreateAuthor {
		author, err = i.store.CreateAuthor(ctx, username)
		if err == nil {
			i.log.InfoObj("author created", "author", author)
		}
	}
	if err != nil {
		return domain.Author{}, fmt.Errorf("resolve author %q: %w", username, err)
	}
	i.authors[username] = author
	return author, nil
}

// close releases the store and publisher clients, logging any errors encountered.
func (i *Importer) close() {
	if i == nil {
		return
	}
	if i.fanout != nil {
		if err := i.fanout.Close(); err != nil {
			i.log.ErrorObj("publishers close failed", "error", err.Error())
		}
	}
	if i.store != nil {
		if err := i.store.Close(); err != nil {
			i.log.ErrorObj("storage close failed", "error", err.Error())
		}
	}
}
