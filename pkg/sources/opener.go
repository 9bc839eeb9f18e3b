package sources

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samvad-hq/samvad-feed-importer/pkg/httpclient"
)

// Opener returns the raw feed document of a source. Callers close it.
type Opener interface {
	Open(ctx context.Context, src Source) (io.ReadCloser, error)
}

// OpenerRegistry resolves the opener for a source type.
type OpenerRegistry interface {
	OpenerFor(src Source) (Opener, error)
}

type openerRegistry struct {
	mu     sync.RWMutex
	byType map[string]Opener
}

// NewOpenerRegistry builds a registry keyed by source type.
func NewOpenerRegistry(openers map[string]Opener) OpenerRegistry {
	reg := &openerRegistry{byType: make(map[string]Opener, len(openers))}
	for typ, o := range openers {
		key := strings.ToLower(strings.TrimSpace(typ))
		if key == "" || o == nil {
			continue
		}
		reg.byType[key] = o
	}
	return reg
}

// OpenerFor selects the opener for src based on its type.
func (r *openerRegistry) OpenerFor(src Source) (Opener, error) {
	if r == nil {
		return nil, fmt.Errorf("opener registry is nil")
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if o, ok := r.byType[strings.ToLower(strings.TrimSpace(src.Type))]; ok {
		return o, nil
	}
	return nil, fmt.Errorf("no opener registered for source %q (type %q)", src.ID, src.Type)
}

// DefaultOpenerRegistry wires the file and http openers.
func DefaultOpenerRegistry(client httpclient.Client, timeout time.Duration) OpenerRegistry {
	if client == nil {
		client = httpclient.NewRestyClient(timeout)
	}
	return NewOpenerRegistry(map[string]Opener{
		TypeFile: FileOpener{},
		TypeHTTP: &HTTPOpener{client: client},
	})
}

// FileOpener reads feeds from the local filesystem.
type FileOpener struct{}

func (FileOpener) Open(ctx context.Context, src Source) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(src.Location, "file://")
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s feed: %w", src.ID, err)
	}
	return f, nil
}

// HTTPOpener downloads feeds with the shared resty client.
type HTTPOpener struct {
	client httpclient.Client
}

// NewHTTPOpener wraps client.
func NewHTTPOpener(client httpclient.Client) *HTTPOpener {
	return &HTTPOpener{client: client}
}

func (h *HTTPOpener) Open(ctx context.Context, src Source) (io.ReadCloser, error) {
	if h == nil || h.client == nil {
		return nil, fmt.Errorf("http opener has no client")
	}
	resp, err := h.client.Get(ctx, src.Location, Headers(src))
	if err != nil {
		return nil, fmt.Errorf("fetch %s feed: %w", src.ID, err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%s feed returned status %d body: %s", src.ID, resp.StatusCode(), responseSnippet(body))
	}
	return io.NopCloser(bytes.NewReader(body)), nil
}

func responseSnippet(body []byte) string {
	const maxLen = 512
	s := strings.TrimSpace(string(body))
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
