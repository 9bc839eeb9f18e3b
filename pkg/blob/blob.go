// Package blob stores rehosted assets under content-addressed keys and
// returns their public locations.
package blob

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
	"github.com/samvad-hq/samvad-feed-importer/pkg/httpclient"
)

var (
	ErrNetwork = errors.New("network error")
	ErrDecode  = errors.New("decode error")
	ErrWrite   = errors.New("write error")
)

// Error is a typed upload failure; errors.Is matches its Kind sentinel.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("blob %s: %v: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() []error { return []error{e.Kind, e.Err} }

// Backend persists bytes under a key and returns the public URL of the object.
type Backend interface {
	Name() string
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// Options tunes an Uploader.
type Options struct {
	MaxBytes  int64
	UserAgent string
}

const defaultMaxBytes = 25 << 20

// Uploader implements the asset storage contract on top of a Backend.
type Uploader struct {
	backend  Backend
	client   httpclient.Client
	maxBytes int64
	headers  map[string]string
}

// NewUploader builds an uploader. client is used for network fetches.
func NewUploader(backend Backend, client httpclient.Client, opts Options) *Uploader {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = defaultMaxBytes
	}
	headers := map[string]string{"Accept": "*/*"}
	if ua := strings.TrimSpace(opts.UserAgent); ua != "" {
		headers["User-Agent"] = ua
	}
	return &Uploader{
		backend:  backend,
		client:   client,
		maxBytes: opts.MaxBytes,
		headers:  headers,
	}
}

// UploadFromNetwork downloads rawURL and stores it under basePath/partition.
func (u *Uploader) UploadFromNetwork(ctx context.Context, rawURL, basePath, partition string) (domain.StoredAsset, error) {
	if u.client == nil {
		return domain.StoredAsset{}, &Error{Op: "fetch", Kind: ErrNetwork, Err: errors.New("no http client configured")}
	}

	resp, err := u.client.Get(ctx, rawURL, u.headers)
	if errors.Is(err, httpclient.ErrBodyTooLarge) {
		return domain.StoredAsset{}, &Error{Op: "fetch", Kind: ErrNetwork, Err: fmt.Errorf("%s exceeds %d bytes: %w", rawURL, u.maxBytes, err)}
	}
	if err != nil {
		return domain.StoredAsset{}, &Error{Op: "fetch", Kind: ErrNetwork, Err: err}
	}
	if resp.StatusCode() != http.StatusOK {
		return domain.StoredAsset{}, &Error{Op: "fetch", Kind: ErrNetwork, Err: fmt.Errorf("%s returned status %d", rawURL, resp.StatusCode())}
	}

	data := resp.Body()
	if len(data) == 0 {
		return domain.StoredAsset{}, &Error{Op: "fetch", Kind: ErrNetwork, Err: fmt.Errorf("%s returned an empty body", rawURL)}
	}
	if int64(len(data)) > u.maxBytes {
		return domain.StoredAsset{}, &Error{Op: "fetch", Kind: ErrNetwork, Err: fmt.Errorf("%s exceeds %d bytes", rawURL, u.maxBytes)}
	}

	return u.store(ctx, data, resp.Header("Content-Type"), NameFromURL(rawURL), basePath, partition)
}

// UploadInline stores an already decoded inline payload.
func (u *Uploader) UploadInline(ctx context.Context, data []byte, mediaType, basePath, partition string) (domain.StoredAsset, error) {
	if len(data) == 0 {
		return domain.StoredAsset{}, &Error{Op: "decode", Kind: ErrDecode, Err: errors.New("empty payload")}
	}
	if int64(len(data)) > u.maxBytes {
		return domain.StoredAsset{}, &Error{Op: "decode", Kind: ErrDecode, Err: fmt.Errorf("payload exceeds %d bytes", u.maxBytes)}
	}
	return u.store(ctx, data, mediaType, "inline", basePath, partition)
}

// UploadFromInlineData decodes a data URI and stores its payload.
func (u *Uploader) UploadFromInlineData(ctx context.Context, dataURI, basePath, partition string) (domain.StoredAsset, error) {
	mediaType, data, err := DecodeDataURI(dataURI)
	if err != nil {
		return domain.StoredAsset{}, &Error{Op: "decode", Kind: ErrDecode, Err: err}
	}
	return u.UploadInline(ctx, data, mediaType, basePath, partition)
}

func (u *Uploader) store(ctx context.Context, data []byte, contentType, name, basePath, partition string) (domain.StoredAsset, error) {
	if u.backend == nil {
		return domain.StoredAsset{}, &Error{Op: "put", Kind: ErrWrite, Err: errors.New("no storage backend configured")}
	}

	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	detected := mimetype.Detect(data)
	contentType = normalizeContentType(contentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = detected.String()
	}

	key := Key(basePath, partition, digest, name, extensionFor(name, detected))
	url, err := u.backend.Put(ctx, key, contentType, data)
	if err != nil {
		return domain.StoredAsset{}, &Error{Op: "put", Kind: ErrWrite, Err: fmt.Errorf("%s backend: %w", u.backend.Name(), err)}
	}

	return domain.StoredAsset{
		URL:         url,
		Path:        key,
		ContentType: contentType,
		Size:        int64(len(data)),
		SHA256:      digest,
	}, nil
}

func normalizeContentType(ct string) string {
	ct, _, _ = strings.Cut(ct, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
