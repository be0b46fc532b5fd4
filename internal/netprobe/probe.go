// Package netprobe answers whether the external services are reachable.
package netprobe

import (
	"context"
	"net/http"
	"time"

	appLog "matai/internal/log"
)

// HTTPProbe reports online when a HEAD request to URL gets any HTTP response.
type HTTPProbe struct {
	url    string
	client *http.Client
}

func NewHTTPProbe(url string, timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &HTTPProbe{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

func (p *HTTPProbe) IsOnline(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		appLog.Error("connectivity probe: bad request", err, "url", p.url)
		return false
	}
	resp, err := p.client.Do(req)
	if err != nil {
		appLog.Info("connectivity probe: offline", "url", p.url, "err", err)
		return false
	}
	resp.Body.Close()
	return true
}

// Static is a probe with a fixed answer.
type Static bool

func (s Static) IsOnline(context.Context) bool {
	return bool(s)
}
