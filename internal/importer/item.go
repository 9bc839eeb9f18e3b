package importer

import (
	"context"
	"fmt"
	"html"
	"net/url"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-feed-importer/internal/assets"
	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
	"github.com/samvad-hq/samvad-feed-importer/pkg/publishers"
)

// importItem runs one entry through the pipeline. It never returns an error;
// failures are recorded on the result.
func (o *Orchestrator) importItem(ctx context.Context, index int, item domain.FeedItem, owner domain.Author, siteBase string) domain.ItemResult {
	now := o.now()
	draft := &domain.ContentDraft{
		ID:          o.newID(),
		Title:       item.Title,
		Summary:     o.summarize(item),
		Body:        item.Content,
		PublishedAt: item.Published,
		AuthorID:    owner.ID,
		Status:      domain.StatusDraft,
		SourceLink:  item.Link,
		CreatedAt:   now.UTC(),
	}
	if draft.PublishedAt.IsZero() {
		draft.PublishedAt = now
	}
	draft.PublishedAt = draft.PublishedAt.UTC()

	res := domain.ItemResult{Index: index, Title: draft.Title, Stage: domain.StageParsed, Status: draft.Status}
	fail := func(stage domain.Stage, err error) domain.ItemResult {
		_ = draft.Advance(domain.StatusFailed)
		res.Status = domain.StatusFailed
		res.Err = &StageError{Stage: stage, Err: err}
		o.log.WarnObj("item import failed", "item", map[string]interface{}{
			"index": index,
			"title": draft.Title,
			"stage": string(stage),
			"error": err.Error(),
		})
		return res
	}

	if err := draft.Advance(domain.StatusPublishing); err != nil {
		return fail(domain.StageParsed, err)
	}
	res.Status = draft.Status

	refs := o.references(draft.Body)
	res.Stage = domain.StageAssetsExtracted

	res.Assets = o.rehostAll(ctx, refs, assets.Owner{AuthorID: owner.ID, SiteBase: siteBase}, draft.Partition())
	draft.Body = o.applyRewrites(draft.Body, res.Assets, index)
	res.Stage = domain.StageAssetsRehosted
	if err := ctx.Err(); err != nil {
		return fail(domain.StageAssetsRehosted, err)
	}

	draft.Body = o.deps.Converter.Convert(draft.Body)
	res.Stage = domain.StageConverted

	slug := o.deps.Slugs.Allocate(ctx, draft.Title)
	if err := draft.AssignSlug(slug); err != nil {
		return fail(domain.StageSlugAssigned, err)
	}
	res.Slug = slug
	res.Stage = domain.StageSlugAssigned
	if err := ctx.Err(); err != nil {
		return fail(domain.StageSlugAssigned, err)
	}

	persisted := *draft
	persisted.Status = domain.StatusPublished
	if err := o.deps.Store.SavePost(ctx, &persisted); err != nil {
		return fail(domain.StagePersisted, &PersistError{Slug: slug, Err: err})
	}
	if err := draft.Advance(domain.StatusPublished); err != nil {
		return fail(domain.StagePersisted, err)
	}
	res.Stage = domain.StagePersisted
	res.Status = draft.Status

	o.log.InfoObj("item imported", "item", map[string]interface{}{
		"index":  index,
		"id":     draft.ID,
		"slug":   slug,
		"assets": len(res.Assets),
	})
	o.notify(ctx, *draft, res.Assets)
	return res
}

// references returns image references and, when enabled, attachment links
// whose extension is allowed.
func (o *Orchestrator) references(body string) []domain.AssetReference {
	refs := o.deps.Extractor.Images(body)
	if !o.opts.ImportAttachments {
		return refs
	}
	for _, ref := range o.deps.Extractor.Attachments(body) {
		if o.attachmentAllowed(ref.RawURL) {
			refs = append(refs, ref)
		}
	}
	return refs
}

func (o *Orchestrator) attachmentAllowed(raw string) bool {
	u, err := url.Parse(html.UnescapeString(strings.TrimSpace(raw)))
	if err != nil {
		return false
	}
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(u.Path)), ".")
	_, ok := o.attachments[ext]
	return ok && ext != ""
}

// rehostAll rehosts each distinct reference once, in first-occurrence order.
// Workers only produce results; the body is rewritten by the caller.
func (o *Orchestrator) rehostAll(ctx context.Context, refs []domain.AssetReference, owner assets.Owner, partition string) []domain.AssetResult {
	distinct := make([]domain.AssetReference, 0, len(refs))
	seen := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		if _, ok := seen[ref.RawURL]; ok {
			continue
		}
		seen[ref.RawURL] = struct{}{}
		distinct = append(distinct, ref)
	}
	if len(distinct) == 0 {
		return nil
	}

	results := make([]domain.AssetResult, len(distinct))
	var g errgroup.Group
	g.SetLimit(o.opts.AssetConcurrency)
	for i, ref := range distinct {
		g.Go(func() error {
			stored, err := o.deps.Rehoster.Rehost(ctx, ref, owner, partition)
			if err != nil {
				results[i] = domain.AssetResult{Ref: ref, Err: err}
				return nil
			}
			results[i] = domain.AssetResult{Ref: ref, Stored: &stored}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (o *Orchestrator) applyRewrites(body string, results []domain.AssetResult, index int) string {
	rewrites := make(map[string]string, len(results))
	for _, r := range results {
		if !r.OK() {
			o.log.WarnObj("asset left in place", "asset", map[string]interface{}{
				"index": index,
				"ref":   r.Ref.RawURL,
				"kind":  r.Ref.Kind.String(),
				"error": fmt.Sprint(r.Err),
			})
			continue
		}
		rewrites[r.Ref.RawURL] = r.Stored.URL
	}

	body, counts := assets.RewriteAll(body, rewrites)
	for _, r := range results {
		if !r.OK() {
			continue
		}
		o.log.DebugObj("asset rehosted", "asset", map[string]interface{}{
			"index":        index,
			"ref":          r.Ref.RawURL,
			"url":          r.Stored.URL,
			"replacements": counts[r.Ref.RawURL],
		})
	}
	return body
}

// summarize returns the plain text of the item summary, or the title when
// the item has none.
func (o *Orchestrator) summarize(item domain.FeedItem) string {
	text := truncateRunes(plainText(item.Summary), o.opts.SummaryMaxRunes)
	if text == "" {
		return item.Title
	}
	return text
}

func plainText(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.Join(strings.Fields(markup), " ")
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

func truncateRunes(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

func (o *Orchestrator) notify(ctx context.Context, draft domain.ContentDraft, results []domain.AssetResult) {
	if o.deps.Notifier == nil {
		return
	}
	rehosted := 0
	for _, r := range results {
		if r.OK() {
			rehosted++
		}
	}

	notifyCtx, cancel := context.WithTimeout(ctx, o.opts.NotifyTimeout)
	defer cancel()
	delivered, err := o.deps.Notifier.Publish(notifyCtx, publishers.NewEvent(draft, rehosted))
	if err != nil {
		o.log.WarnObj("content notification failed", "event", map[string]interface{}{
			"id":        draft.ID,
			"slug":      draft.Slug,
			"delivered": delivered,
			"error":     err.Error(),
		})
	}
}
