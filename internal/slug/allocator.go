package slug

import (
	"context"
	"errors"
	"strconv"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
	"github.com/samvad-hq/samvad-feed-importer/internal/logger"
)

// MaxSuffix is the last numeric suffix probed before giving up.
const MaxSuffix = 99

// ErrExhausted is logged when every candidate up to MaxSuffix is taken.
var ErrExhausted = errors.New("slug allocation exhausted")

// Lookup finds existing content by slug; it returns nil, nil when the slug is free.
type Lookup interface {
	FindBySlug(ctx context.Context, slug string) (*domain.ContentDraft, error)
}

// Allocator picks the first free slug among base, base2 ... base99.
type Allocator struct {
	lookup Lookup
	log    logger.Logger
}

// NewAllocator builds an allocator probing lookup.
func NewAllocator(lookup Lookup, log logger.Logger) *Allocator {
	return &Allocator{lookup: lookup, log: logger.Ensure(log)}
}

// Allocate never fails. When all candidates are taken it returns the base slug
// and logs ErrExhausted; the store rejects the duplicate on save.
func (a *Allocator) Allocate(ctx context.Context, title string) string {
	base := Make(title)
	if a.free(ctx, base) {
		return base
	}
	for n := 2; n <= MaxSuffix; n++ {
		if ctx.Err() != nil {
			break
		}
		candidate := base + strconv.Itoa(n)
		if a.free(ctx, candidate) {
			return candidate
		}
	}

	a.log.WarnObj("slug allocation exhausted", "slug", map[string]interface{}{
		"base":  base,
		"error": ErrExhausted.Error(),
	})
	return base
}

func (a *Allocator) free(ctx context.Context, candidate string) bool {
	if a.lookup == nil {
		return true
	}
	existing, err := a.lookup.FindBySlug(ctx, candidate)
	if err != nil {
		a.log.WarnObj("slug lookup failed", "slug", map[string]interface{}{
			"candidate": candidate,
			"error":     err.Error(),
		})
		return false
	}
	return existing == nil
}
