package assets

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
)

// Uploader is the storage contract the rehoster writes assets through.
type Uploader interface {
	UploadFromNetwork(ctx context.Context, rawURL, basePath, partition string) (domain.StoredAsset, error)
	UploadInline(ctx context.Context, data []byte, mediaType, basePath, partition string) (domain.StoredAsset, error)
}

// Registry records stored assets in the content store.
type Registry interface {
	SaveAsset(ctx context.Context, asset domain.StoredAsset) error
}

// Owner carries the identity and site context an asset is rehosted for.
type Owner struct {
	AuthorID string
	SiteBase string
}

// Options tunes a Rehoster.
type Options struct {
	BasePath     string
	FetchTimeout time.Duration
}

const defaultFetchTimeout = 30 * time.Second

// Rehoster fetches or decodes one reference and stores it in owned storage.
type Rehoster struct {
	uploader Uploader
	registry Registry
	basePath string
	timeout  time.Duration
	now      func() time.Time
	newID    func() string
}

// NewRehoster wires a rehoster to the storage contract and the asset registry.
// registry may be nil when stored assets need not be recorded.
func NewRehoster(uploader Uploader, registry Registry, opts Options) *Rehoster {
	if opts.FetchTimeout <= 0 {
		opts.FetchTimeout = defaultFetchTimeout
	}
	return &Rehoster{
		uploader: uploader,
		registry: registry,
		basePath: opts.BasePath,
		timeout:  opts.FetchTimeout,
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Rehost stores the asset behind ref under partition (e.g. "2023/05") and
// returns its new location. Every failure is an *AssetError.
func (h *Rehoster) Rehost(ctx context.Context, ref domain.AssetReference, owner Owner, partition string) (domain.StoredAsset, error) {
	if h == nil || h.uploader == nil {
		return domain.StoredAsset{}, &AssetError{Kind: KindStorage, Ref: ref.RawURL, Err: fmt.Errorf("rehoster is not initialized")}
	}

	resolved, err := Resolve(ref.RawURL, owner.SiteBase)
	if err != nil {
		return domain.StoredAsset{}, classify(ref.RawURL, err)
	}

	var stored domain.StoredAsset
	if resolved.Kind == Inline {
		stored, err = h.uploader.UploadInline(ctx, resolved.Data, resolved.MediaType, h.basePath, partition)
	} else {
		fetchCtx, cancel := context.WithTimeout(ctx, h.timeout)
		stored, err = h.uploader.UploadFromNetwork(fetchCtx, resolved.Location, h.basePath, partition)
		cancel()
	}
	if err != nil {
		return domain.StoredAsset{}, classify(ref.RawURL, err)
	}

	if stored.ID == "" {
		stored.ID = h.newID()
	}
	stored.OwnerID = owner.AuthorID
	stored.PublishedAt = h.now().UTC()
	stored.Type = domain.AssetImage
	if ref.Kind == domain.AssetAttachment {
		stored.Type = domain.AssetAttachment
	}

	if h.registry != nil {
		if err := h.registry.SaveAsset(ctx, stored); err != nil {
			return domain.StoredAsset{}, &AssetError{Kind: KindStorage, Ref: ref.RawURL, Err: fmt.Errorf("register asset: %w", err)}
		}
	}
	return stored, nil
}

// RewriteBody replaces every occurrence of raw in body with newURL, ignoring
// case. It returns the new body and the number of replacements.
func RewriteBody(body, raw, newURL string) (string, int) {
	out, counts := RewriteAll(body, map[string]string{raw: newURL})
	return out, counts[raw]
}

// RewriteAll substitutes every reference in rewrites (raw -> new URL) in one
// pass over body, matching case-insensitively. Replaced text is never scanned
// again, so a reference that is a suffix of an earlier replacement stays
// intact. Longer references win where two match at the same position. The
// returned map counts replacements per raw reference.
func RewriteAll(body string, rewrites map[string]string) (string, map[string]int) {
	counts := make(map[string]int, len(rewrites))
	raws := make([]string, 0, len(rewrites))
	for raw := range rewrites {
		if raw != "" {
			raws = append(raws, raw)
		}
	}
	if body == "" || len(raws) == 0 {
		return body, counts
	}
	sort.Slice(raws, func(i, j int) bool {
		if len(raws[i]) != len(raws[j]) {
			return len(raws[i]) > len(raws[j])
		}
		return raws[i] < raws[j]
	})

	alts := make([]string, len(raws))
	for i, raw := range raws {
		alts[i] = regexp.QuoteMeta(raw)
	}
	re := regexp.MustCompile(`(?i)(?:` + strings.Join(alts, "|") + `)`)

	out := re.ReplaceAllStringFunc(body, func(match string) string {
		for _, raw := range raws {
			if strings.EqualFold(raw, match) {
				counts[raw]++
				return rewrites[raw]
			}
		}
		return match
	})
	return out, counts
}
