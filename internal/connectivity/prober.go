package connectivity

import (
	"context"
	"net/http"
	"time"
)

// HTTPProber decides reachability with a HEAD request against a cheap
// health endpoint (typically the backend's auth health route, so
// "online" means "can reach our backend", not just "has a default
// route").
type HTTPProber struct {
	url    string
	client *http.Client
}

// NewHTTPProber creates a prober for the given URL.
func NewHTTPProber(url string) *HTTPProber {
	return &HTTPProber{
		url:    url,
		client: &http.Client{Timeout: 3 * time.Second},
	}
}

// Online implements Prober. Any completed HTTP exchange counts as
// online — even a 5xx proves the network path works, and the sync
// engine handles application-level failures itself.
func (p *HTTPProber) Online(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}
