package assets

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/samvad-hq/samvad-feed-importer/internal/domain"
	"github.com/samvad-hq/samvad-feed-importer/pkg/blob"
)

type fakeUploader struct {
	mu        sync.Mutex
	fetched   []string
	inline    []string
	partition string
	fail      map[string]error
	deadline  bool
}

func (f *fakeUploader) UploadFromNetwork(ctx context.Context, rawURL, basePath, partition string) (domain.StoredAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetched = append(f.fetched, rawURL)
	f.partition = partition
	_, f.deadline = ctx.Deadline()
	if err := f.fail[rawURL]; err != nil {
		return domain.StoredAsset{}, err
	}
	name := blob.NameFromURL(rawURL)
	return domain.StoredAsset{URL: "https://owned.example/" + basePath + "/" + partition + "/" + name, Path: basePath + "/" + partition + "/" + name}, nil
}

func (f *fakeUploader) UploadInline(_ context.Context, data []byte, mediaType, basePath, partition string) (domain.StoredAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inline = append(f.inline, mediaType)
	f.partition = partition
	return domain.StoredAsset{URL: "https://owned.example/" + basePath + "/" + partition + "/inline", ContentType: mediaType, Size: int64(len(data))}, nil
}

type fakeRegistry struct {
	saved []domain.StoredAsset
	err   error
}

func (r *fakeRegistry) SaveAsset(_ context.Context, a domain.StoredAsset) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, a)
	return nil
}

func newTestRehoster(up Uploader, reg Registry) *Rehoster {
	h := NewRehoster(up, reg, Options{BasePath: "data", FetchTimeout: time.Second})
	h.now = func() time.Time { return time.Date(2023, 5, 4, 10, 0, 0, 0, time.FixedZone("x", 3600)) }
	h.newID = func() string { return "asset-1" }
	return h
}

func TestRehostNetworkImage(t *testing.T) {
	up := &fakeUploader{}
	reg := &fakeRegistry{}
	h := newTestRehoster(up, reg)

	ref := domain.AssetReference{RawURL: "/img/a.png", Kind: domain.AssetImage}
	stored, err := h.Rehost(context.Background(), ref, Owner{AuthorID: "author-1", SiteBase: "http://site"}, "2023/05")
	if err != nil {
		t.Fatalf("Rehost: %v", err)
	}
	if len(up.fetched) != 1 || up.fetched[0] != "http://site/img/a.png" {
		t.Fatalf("unexpected fetches %v", up.fetched)
	}
	if !up.deadline {
		t.Fatalf("expected network fetch to carry a deadline")
	}
	if up.partition != "2023/05" {
		t.Fatalf("unexpected partition %q", up.partition)
	}
	if stored.URL != "https://owned.example/data/2023/05/a.png" {
		t.Fatalf("unexpected url %q", stored.URL)
	}
	if stored.ID != "asset-1" || stored.OwnerID != "author-1" || stored.Type != domain.AssetImage {
		t.Fatalf("unexpected stamping %+v", stored)
	}
	if stored.PublishedAt.Location() != time.UTC {
		t.Fatalf("expected UTC timestamp, got %v", stored.PublishedAt)
	}
	if len(reg.saved) != 1 || reg.saved[0].URL != stored.URL {
		t.Fatalf("expected asset to be registered, got %+v", reg.saved)
	}
}

func TestRehostInlineAttachment(t *testing.T) {
	up := &fakeUploader{}
	h := newTestRehoster(up, nil)

	ref := domain.AssetReference{RawURL: "data:application/pdf;base64,JVBERi0xLjQK", Kind: domain.AssetAttachment}
	stored, err := h.Rehost(context.Background(), ref, Owner{AuthorID: "a"}, "2020/12")
	if err != nil {
		t.Fatalf("Rehost: %v", err)
	}
	if len(up.fetched) != 0 || len(up.inline) != 1 || up.inline[0] != "application/pdf" {
		t.Fatalf("expected inline upload only, fetched=%v inline=%v", up.fetched, up.inline)
	}
	if stored.Type != domain.AssetAttachment {
		t.Fatalf("expected attachment type, got %v", stored.Type)
	}
}

func TestRehostFailuresAreClassified(t *testing.T) {
	up := &fakeUploader{fail: map[string]error{
		"http://site/down.png": &blob.Error{Op: "fetch", Kind: blob.ErrNetwork, Err: errors.New("503")},
		"http://site/full.png": &blob.Error{Op: "put", Kind: blob.ErrWrite, Err: errors.New("disk full")},
	}}
	h := newTestRehoster(up, nil)
	owner := Owner{SiteBase: "http://site"}

	_, err := h.Rehost(context.Background(), domain.AssetReference{RawURL: "/down.png"}, owner, "2023/05")
	if !IsKind(err, KindFetch) {
		t.Fatalf("expected fetch error, got %v", err)
	}
	var aerr *AssetError
	if !errors.As(err, &aerr) || aerr.Ref != "/down.png" {
		t.Fatalf("expected raw reference on error, got %v", err)
	}

	if _, err := h.Rehost(context.Background(), domain.AssetReference{RawURL: "/full.png"}, owner, "2023/05"); !IsKind(err, KindStorage) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if _, err := h.Rehost(context.Background(), domain.AssetReference{RawURL: "data:image/png;base64,***"}, owner, "2023/05"); !IsKind(err, KindDecode) {
		t.Fatalf("expected decode error, got %v", err)
	}

	reg := &fakeRegistry{err: errors.New("locked")}
	withReg := newTestRehoster(&fakeUploader{}, reg)
	if _, err := withReg.Rehost(context.Background(), domain.AssetReference{RawURL: "/ok.png"}, owner, "2023/05"); !IsKind(err, KindStorage) {
		t.Fatalf("expected registry failure to be a storage error, got %v", err)
	}
}

func TestRewriteBodyRoundTrip(t *testing.T) {
	body := `<p><img src="http://X/a.png"> and <a href="http://x/a.png">again</a></p>`

	out, n := RewriteBody(body, "http://x/a.png", "https://owned/a.png")
	if n != 2 {
		t.Fatalf("expected 2 replacements, got %d", n)
	}
	if strings.Contains(strings.ToLower(out), "http://x/a.png") {
		t.Fatalf("old reference left in %q", out)
	}
	if strings.Count(out, "https://owned/a.png") != 2 {
		t.Fatalf("new reference missing in %q", out)
	}

	untouched, n := RewriteBody(body, "http://x/missing.png", "https://owned/m.png")
	if n != 0 || untouched != body {
		t.Fatalf("expected body unchanged, got %q (%d)", untouched, n)
	}

	// replacement text is literal, not a pattern
	literal, _ := RewriteBody("a.png?x=1", "a.png?x=1", "$1.png")
	if literal != "$1.png" {
		t.Fatalf("unexpected literal replacement %q", literal)
	}
}

func TestRewriteAllDoesNotRescanReplacements(t *testing.T) {
	body := `<img src="http://x/a.png"><img src="a.png"><img src="A.PNG">`
	out, counts := RewriteAll(body, map[string]string{
		"http://x/a.png": "https://cdn/1111-a.png",
		"a.png":          "https://cdn/2222-a.png",
		"":               "ignored",
	})

	want := `<img src="https://cdn/1111-a.png"><img src="https://cdn/2222-a.png"><img src="https://cdn/2222-a.png">`
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
	if counts["http://x/a.png"] != 1 || counts["a.png"] != 2 {
		t.Fatalf("unexpected counts %v", counts)
	}
	if strings.Count(out, "https://cdn/1111-a.png") != 1 {
		t.Fatalf("rewritten URL was touched again in %q", out)
	}

	if same, counts := RewriteAll(body, nil); same != body || len(counts) != 0 {
		t.Fatalf("expected body unchanged, got %q", same)
	}
}
