package blob

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/samvad-hq/samvad-feed-importer/pkg/httpclient"
)

// 1x1 transparent PNG.
var pngBytes, _ = base64.StdEncoding.DecodeString("iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR42mNkYAAAAAYAAjCB0C8AAAAASUVORK5CYII=")

type memBackend struct {
	objects map[string][]byte
	types   map[string]string
	err     error
}

func (m *memBackend) Name() string { return "memory" }
func (m *memBackend) Put(_ context.Context, key, contentType string, data []byte) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	if m.objects == nil {
		m.objects = map[string][]byte{}
		m.types = map[string]string{}
	}
	m.objects[key] = append([]byte(nil), data...)
	m.types[key] = contentType
	return PublicURL("https://cdn.example", key), nil
}

func TestKeyIsDeterministic(t *testing.T) {
	k1 := Key("data", "2023/05", "0123456789abcdef0123", "My Photo.PNG", ".png")
	k2 := Key("/data/", "2023/05/", "0123456789abcdef0123", "My Photo.PNG", ".png")
	if k1 != k2 {
		t.Fatalf("expected identical keys, got %q and %q", k1, k2)
	}
	if k1 != "data/2023/05/0123456789abcdef-my-photo.png" {
		t.Fatalf("unexpected key %q", k1)
	}
	if got := Key("", "", "abc", "", ".gif"); got != "abc.gif" {
		t.Fatalf("unexpected bare key %q", got)
	}
}

func TestNameFromURL(t *testing.T) {
	cases := map[string]string{
		"https://x.example/a/b/photo.jpg?w=100#top": "photo.jpg",
		"https://x.example/":                        "",
		"https://x.example":                         "",
	}
	for in, want := range cases {
		if got := NameFromURL(in); got != want {
			t.Errorf("NameFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDecodeDataURI(t *testing.T) {
	encoded := base64.StdEncoding.EncodeToString(pngBytes)

	mt, data, err := DecodeDataURI("data:image/png;base64," + encoded)
	if err != nil {
		t.Fatalf("DecodeDataURI: %v", err)
	}
	if mt != "image/png" || !bytes.Equal(data, pngBytes) {
		t.Fatalf("unexpected decode result %q (%d bytes)", mt, len(data))
	}

	// wrapped and unpadded payloads are common in exported markup
	wrapped := encoded[:10] + "\n  " + strings.TrimRight(encoded[10:], "=")
	if _, data, err := DecodeDataURI("DATA:image/png;base64," + wrapped); err != nil || !bytes.Equal(data, pngBytes) {
		t.Fatalf("expected tolerant decode, err=%v", err)
	}

	if mt, data, err := DecodeDataURI("data:,hello%20world"); err != nil || mt != "text/plain" || string(data) != "hello world" {
		t.Fatalf("unexpected percent-encoded decode %q %q %v", mt, data, err)
	}

	for _, bad := range []string{"data:image/png;base64", "data:image/png;base64,!!!", "http://x/a.png", "data:image/png;base64,"} {
		if _, _, err := DecodeDataURI(bad); err == nil {
			t.Errorf("expected error for %q", bad)
		}
	}
}

func TestUploadFromNetworkStoresContentAddressedObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img/photo.png" {
			http.NotFound(w, r)
			return
		}
		if r.Header.Get("User-Agent") != "ua-test" {
			t.Errorf("missing user agent, got %q", r.Header.Get("User-Agent"))
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(pngBytes)
	}))
	defer srv.Close()

	backend := &memBackend{}
	up := NewUploader(backend, httpclient.NewRestyClient(2*time.Second), Options{UserAgent: "ua-test"})

	first, err := up.UploadFromNetwork(context.Background(), srv.URL+"/img/photo.png", "data", "2023/05")
	if err != nil {
		t.Fatalf("UploadFromNetwork: %v", err)
	}
	if !strings.HasPrefix(first.Path, "data/2023/05/") || !strings.HasSuffix(first.Path, "-photo.png") {
		t.Fatalf("unexpected key %q", first.Path)
	}
	if first.URL != "https://cdn.example/"+first.Path {
		t.Fatalf("unexpected url %q", first.URL)
	}
	if first.ContentType != "image/png" || first.Size != int64(len(pngBytes)) || len(first.SHA256) != 64 {
		t.Fatalf("unexpected metadata %+v", first)
	}

	second, err := up.UploadFromNetwork(context.Background(), srv.URL+"/img/photo.png", "data", "2023/05")
	if err != nil {
		t.Fatalf("second UploadFromNetwork: %v", err)
	}
	if second.Path != first.Path || len(backend.objects) != 1 {
		t.Fatalf("expected idempotent key, got %q vs %q (%d objects)", first.Path, second.Path, len(backend.objects))
	}
}

func TestUploadFromNetworkFailuresAreTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	up := NewUploader(&memBackend{}, httpclient.NewRestyClient(time.Second), Options{})
	_, err := up.UploadFromNetwork(context.Background(), srv.URL+"/x.png", "", "2023/05")
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected ErrNetwork, got %v", err)
	}

	ok := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(pngBytes)
	}))
	defer ok.Close()

	failing := NewUploader(&memBackend{err: errors.New("disk full")}, httpclient.NewRestyClient(time.Second), Options{})
	_, err = failing.UploadFromNetwork(context.Background(), ok.URL+"/x.png", "", "2023/05")
	if !errors.Is(err, ErrWrite) {
		t.Fatalf("expected ErrWrite, got %v", err)
	}

	small := NewUploader(&memBackend{}, httpclient.NewRestyClient(time.Second), Options{MaxBytes: 4})
	if _, err := small.UploadFromNetwork(context.Background(), ok.URL+"/x.png", "", "2023/05"); !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected size limit to fail as ErrNetwork, got %v", err)
	}
}

func TestUploadFromInlineDataSniffsExtension(t *testing.T) {
	backend := &memBackend{}
	up := NewUploader(backend, nil, Options{})

	uri := "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
	asset, err := up.UploadFromInlineData(context.Background(), uri, "data", "2021/01")
	if err != nil {
		t.Fatalf("UploadFromInlineData: %v", err)
	}
	if !strings.HasSuffix(asset.Path, "-inline.png") {
		t.Fatalf("expected sniffed png extension, got %q", asset.Path)
	}
	if backend.types[asset.Path] != "image/png" {
		t.Fatalf("unexpected content type %q", backend.types[asset.Path])
	}

	if _, err := up.UploadFromInlineData(context.Background(), "data:image/png;base64,@@@", "data", "2021/01"); !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestFileSystemPutWritesUnderRoot(t *testing.T) {
	root := t.TempDir()
	fs, err := NewFileSystem(root, "/")
	if err != nil {
		t.Fatalf("NewFileSystem: %v", err)
	}

	url, err := fs.Put(context.Background(), "data/2023/05/abc-photo.png", "image/png", pngBytes)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "/data/2023/05/abc-photo.png" {
		t.Fatalf("unexpected public url %q", url)
	}
	got, err := os.ReadFile(filepath.Join(root, "data", "2023", "05", "abc-photo.png"))
	if err != nil || !bytes.Equal(got, pngBytes) {
		t.Fatalf("stored file mismatch: err=%v", err)
	}

	if _, err := fs.Put(context.Background(), "../escape.png", "", pngBytes); err == nil {
		t.Fatalf("expected error for key escaping root")
	}
}

type fakeS3Client struct {
	input *s3.PutObjectInput
	err   error
}

func (f *fakeS3Client) PutObject(_ context.Context, params *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &s3.PutObjectOutput{}, nil
}

func TestS3PutUsesBucketAndPublicBase(t *testing.T) {
	client := &fakeS3Client{}
	backend := &S3{bucket: "assets", publicBase: "https://cdn.example/", client: client}

	url, err := backend.Put(context.Background(), "data/2023/05/k.png", "image/png", pngBytes)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if url != "https://cdn.example/data/2023/05/k.png" {
		t.Fatalf("unexpected url %q", url)
	}
	if aws.ToString(client.input.Bucket) != "assets" || aws.ToString(client.input.Key) != "data/2023/05/k.png" {
		t.Fatalf("unexpected input %+v", client.input)
	}
	if aws.ToString(client.input.ContentType) != "image/png" {
		t.Fatalf("unexpected content type %q", aws.ToString(client.input.ContentType))
	}

	client.err = errors.New("denied")
	if _, err := backend.Put(context.Background(), "k", "", pngBytes); err == nil {
		t.Fatalf("expected error from PutObject")
	}
}

func TestDefaultS3Base(t *testing.T) {
	if got := defaultS3Base(S3Config{Bucket: "b", Region: "eu-west-1"}); got != "https://b.s3.eu-west-1.amazonaws.com" {
		t.Fatalf("unexpected base %q", got)
	}
	if got := defaultS3Base(S3Config{Bucket: "b", Endpoint: "http://minio:9000/"}); got != "http://minio:9000/b" {
		t.Fatalf("unexpected endpoint base %q", got)
	}
}

func TestUploadFromNetworkStopsDownloadAtSizeCap(t *testing.T) {
	const total = 64 << 20
	var written atomic.Int64
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		defer close(done)
		w.Header().Set("Content-Type", "image/png")
		chunk := make([]byte, 32<<10)
		for written.Load() < total {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
			w.(http.Flusher).Flush()
		}
	}))
	defer srv.Close()

	client := httpclient.NewRestyClientWithOptions(httpclient.Options{Timeout: 10 * time.Second, MaxBodyBytes: 1024})
	backend := &memBackend{}
	up := NewUploader(backend, client, Options{MaxBytes: 1024})
	_, err := up.UploadFromNetwork(context.Background(), srv.URL+"/huge.png", "data", "2023/05")
	if !errors.Is(err, ErrNetwork) || !errors.Is(err, httpclient.ErrBodyTooLarge) {
		t.Fatalf("expected oversize network error, got %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("server kept streaming after the download was rejected")
	}
	if got := written.Load(); got >= total/4 {
		t.Fatalf("server wrote %d of %d bytes before the download stopped", got, total)
	}
	if len(backend.objects) != 0 {
		t.Fatalf("oversize asset must not be stored")
	}
}
