package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/core/ports"
	"github.com/tjfontaine/helpdesk-router/internal/pkg/safehttp"
)

const (
	// DefaultTimeout bounds a single delivery.
	DefaultTimeout = 20 * time.Second
	// maxDetailBytes caps how much of an error body is kept in the result detail.
	maxDetailBytes = 200
)

// DetailNotConfigured is the detail reported when no endpoint URL is set.
const DetailNotConfigured = "dispatch endpoint not configured"

// PosterConfig configures an HTTPPoster.
type PosterConfig struct {
	URL                  string
	Timeout              time.Duration
	Headers              map[string]string
	BlockPrivateNetworks bool
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

// HTTPPoster delivers ticket payloads with one JSON POST.
type HTTPPoster struct {
	url     string
	headers map[string]string
	client  *http.Client
}

var _ ports.TicketPoster = (*HTTPPoster)(nil)

// NewHTTPPoster creates a poster. Timeout defaults to DefaultTimeout.
func NewHTTPPoster(cfg PosterConfig) *HTTPPoster {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := cfg.Client
	if client == nil {
		var base http.RoundTripper = http.DefaultTransport
		if cfg.BlockPrivateNetworks {
			base = safehttp.NewTransport()
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(base),
		}
	}

	return &HTTPPoster{
		url:     strings.TrimSpace(cfg.URL),
		headers: cfg.Headers,
		client:  client,
	}
}

// PostTicket sends payload once. The ticket id doubles as Idempotency-Key so
// the receiver can drop duplicates. Failures are reported, never returned.
func (p *HTTPPoster) PostTicket(ctx context.Context, payload *domain.TicketPayload) (bool, string) {
	if p.url == "" {
		return false, DetailNotConfigured
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false, fmt.Sprintf("marshal payload: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Sprintf("create request: %v", err)
	}

	// Protocol headers are set last and always win over configured ones.
	for k, v := range p.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if payload.TicketID != "" {
		req.Header.Set("Idempotency-Key", payload.TicketID)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false, fmt.Sprintf("request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxDetailBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Sprintf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	return true, fmt.Sprintf("status %d", resp.StatusCode)
}
