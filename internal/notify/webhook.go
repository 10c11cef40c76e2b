package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	webhookTimeout = 10 * time.Second
	userAgent      = "mydumpkit"
)

// webhookPayload is the JSON body: the event fields plus a one-line summary
// for chat integrations that only render "text".
type webhookPayload struct {
	Text string `json:"text"`
	Event
}

type webhookNotifier struct {
	endpoint string
	headers  map[string]string
	client   *http.Client
}

func NewWebhook(endpoint string, headers map[string]string) (Notifier, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("config.url is required")
	}
	u, err := url.Parse(endpoint)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("config.url must be an http(s) URL, got %q", endpoint)
	}

	return &webhookNotifier{
		endpoint: endpoint,
		headers:  maps.Clone(headers),
		client:   &http.Client{Timeout: webhookTimeout},
	}, nil
}

func (w *webhookNotifier) Notify(ctx context.Context, event Event) error {
	body, err := json.Marshal(webhookPayload{Text: summary(event), Event: event})
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if event.RunID != "" {
		req.Header.Set("X-Mydumpkit-Run", event.RunID)
	}
	for k, v := range w.headers {
		req.Header.Set(k, v)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		return fmt.Errorf("post %s: %w", w.endpoint, err)
	}
	defer resp.Body.Close()
	// drain so the connection can be reused
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: %s", w.endpoint, resp.Status)
	}
	return nil
}

// summary renders an event as one human readable line, e.g.
// "mydumpkit: shop dumped (1024 bytes) to /srv/shop-20260218120000.sql".
func summary(event Event) string {
	target := eventTarget(event)
	if event.Status != StatusSuccess {
		if event.Error == "" {
			return fmt.Sprintf("%s: %s failed", userAgent, target)
		}
		return fmt.Sprintf("%s: %s failed: %s", userAgent, target, event.Error)
	}
	s := fmt.Sprintf("%s: %s dumped (%d bytes)", userAgent, target, event.Bytes)
	if event.Dest != "" {
		s += " to " + event.Dest
	}
	return s
}
