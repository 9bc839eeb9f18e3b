package publishers

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/samvad-hq/samvad-feed-importer/internal/logger"
	"github.com/samvad-hq/samvad-feed-importer/pkg/httpclient"
)

const (
	headerEventType = "X-Event-Type"
	headerContentID = "X-Content-ID"
	headerTimestamp = "X-Signature-Timestamp"
	headerSignature = "X-Signature-256"
)

// httpPublisher posts events as JSON to a webhook.
type httpPublisher struct {
	id      string
	method  string
	url     string
	headers map[string]string
	secret  []byte
	client  *resty.Client
	log     logger.Logger
	now     func() time.Time
}

func newHTTPPublisher(_ context.Context, cfg PublisherConfig, log logger.Logger) (Publisher, error) {
	if cfg.HTTP == nil {
		return nil, fmt.Errorf("publisher %q missing http configuration", cfg.ID)
	}
	c := *cfg.HTTP
	c.normalize()

	return &httpPublisher{
		id:      cfg.ID,
		method:  c.Method,
		url:     c.URL,
		headers: c.Headers,
		secret:  []byte(c.Secret),
		client: httpclient.NewResty(httpclient.Options{
			Timeout:    time.Duration(c.TimeoutSeconds) * time.Second,
			RetryCount: c.RetryCount,
		}),
		log: logger.Ensure(log),
		now: time.Now,
	}, nil
}

func (h *httpPublisher) ID() string   { return h.id }
func (h *httpPublisher) Type() string { return TypeHTTP }

func (h *httpPublisher) Publish(ctx context.Context, evt Event) error {
	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	req := h.client.R().
		SetContext(ctx).
		SetHeaders(h.headers).
		SetHeader("Content-Type", "application/json").
		SetHeader(headerEventType, evt.Type).
		SetBody(body)
	if evt.ContentID != "" {
		req.SetHeader(headerContentID, evt.ContentID)
	}
	if len(h.secret) > 0 {
		ts := strconv.FormatInt(h.now().Unix(), 10)
		req.SetHeader(headerTimestamp, ts)
		req.SetHeader(headerSignature, "sha256="+sign(h.secret, ts, body))
	}

	resp, err := req.Execute(h.method, h.url)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	if resp.IsError() {
		h.log.WarnObj("http publisher rejected event", "publisher_http_error", map[string]any{
			"publisher_id": h.id,
			"status":       resp.StatusCode(),
			"slug":         evt.Slug,
		})
		return fmt.Errorf("http response status %d: %s", resp.StatusCode(), snippet(resp.Body()))
	}
	return nil
}

// sign returns the hex HMAC-SHA256 of "<timestamp>.<body>".
func sign(secret []byte, ts string, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte{'.'})
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func snippet(body []byte) string {
	const maxLen = 512
	if len(body) > maxLen {
		body = body[:maxLen]
	}
	return strings.TrimSpace(string(body))
}
