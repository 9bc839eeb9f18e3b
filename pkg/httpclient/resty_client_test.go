package httpclient

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func TestRestyClientGetForwardsHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "importer-test" {
			t.Errorf("expected user agent header, got %q", got)
		}
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	client := NewRestyClient(2 * time.Second)
	resp, err := client.Get(context.Background(), srv.URL, map[string]string{"User-Agent": "importer-test"})
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.StatusCode())
	}
	if string(resp.Body()) != "png-bytes" {
		t.Fatalf("unexpected body %q", resp.Body())
	}
	if resp.Header("Content-Type") != "image/png" {
		t.Fatalf("unexpected content type %q", resp.Header("Content-Type"))
	}
}

func TestRestyClientGetHonoursContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if _, err := NewRestyClient(5*time.Second).Get(ctx, srv.URL, nil); err == nil {
		t.Fatalf("expected error when context deadline passes")
	}
}

func TestRestyClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("User-Agent"); got != "importer/1.0" {
			t.Errorf("expected default user agent, got %q", got)
		}
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewRestyClientWithOptions(Options{
		Timeout:    2 * time.Second,
		RetryCount: 3,
		RetryWait:  time.Millisecond,
		UserAgent:  "importer/1.0",
	})
	resp, err := client.Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusOK || calls.Load() != 3 {
		t.Fatalf("expected success on third attempt, got status %d after %d calls", resp.StatusCode(), calls.Load())
	}
}

func TestRestyClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	resp, err := NewRestyClientWithOptions(Options{Timeout: time.Second, RetryCount: 3, RetryWait: time.Millisecond}).
		Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if resp.StatusCode() != http.StatusNotFound || calls.Load() != 1 {
		t.Fatalf("expected a single 404, got %d after %d calls", resp.StatusCode(), calls.Load())
	}
}

// streamingServer writes up to total bytes in 32 KiB chunks and records how
// many bytes reached the connection before the client went away.
func streamingServer(t *testing.T, total int64, declareLength bool) (*httptest.Server, *atomic.Int64, <-chan struct{}) {
	t.Helper()
	var written atomic.Int64
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		defer close(done)
		if declareLength {
			w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		}
		w.WriteHeader(http.StatusOK)
		chunk := make([]byte, 32<<10)
		flusher, _ := w.(http.Flusher)
		for written.Load() < total {
			n, err := w.Write(chunk)
			written.Add(int64(n))
			if err != nil {
				return
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &written, done
}

func TestRestyClientStopsReadingPastBodyLimit(t *testing.T) {
	const total = 64 << 20
	srv, written, done := streamingServer(t, total, false)

	client := NewRestyClientWithOptions(Options{Timeout: 10 * time.Second, MaxBodyBytes: 1024})
	_, err := client.Get(context.Background(), srv.URL, nil)
	if !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("server kept streaming after the client gave up")
	}
	if got := written.Load(); got >= total/4 {
		t.Fatalf("server wrote %d of %d bytes before the client stopped", got, total)
	}
}

func TestRestyClientRejectsDeclaredOversizeBody(t *testing.T) {
	srv, _, _ := streamingServer(t, 4096, true)

	client := NewRestyClientWithOptions(Options{Timeout: 2 * time.Second, MaxBodyBytes: 1024})
	if _, err := client.Get(context.Background(), srv.URL, nil); !errors.Is(err, ErrBodyTooLarge) {
		t.Fatalf("expected ErrBodyTooLarge, got %v", err)
	}
}

func TestRestyClientBodyWithinLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("small"))
	}))
	defer srv.Close()

	resp, err := NewRestyClientWithOptions(Options{Timeout: time.Second, MaxBodyBytes: 5}).Get(context.Background(), srv.URL, nil)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(resp.Body()) != "small" || resp.Header("Content-Type") != "text/plain" {
		t.Fatalf("unexpected response %q %q", resp.Body(), resp.Header("Content-Type"))
	}
}
