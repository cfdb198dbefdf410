// Package client provides the outbound HTTP client used to fetch target URLs.
package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"https-json-proxy/internal/metrics"
	"https-json-proxy/internal/model"
)

// maxRedirects matches net/http's default redirect limit.
const maxRedirects = 10

// ErrInsecureRedirect is returned when the upstream redirects to a non-https URL.
var ErrInsecureRedirect = errors.New("redirect to non-https url refused")

// FetchClient issues the single outbound GET for a proxy request.
type FetchClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewFetchClient creates a FetchClient whose connections are never reused
// across requests. It sets no overall client timeout: the deadline is carried
// by the request context.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewFetchClient(logger *slog.Logger, m *metrics.Metrics) *FetchClient {
	transport := &http.Transport{
		Proxy:             http.ProxyFromEnvironment,
		DisableKeepAlives: true,
		ForceAttemptHTTP2: true,
		DialContext: (&net.Dialer{
			Timeout: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	return NewFetchClientForTest(&http.Client{Transport: transport}, logger, m)
}

// NewFetchClientForTest creates a FetchClient around a copy of the given
// http.Client, typically an httptest.Server's client that trusts its TLS
// certificate. The copy gets the same redirect policy as NewFetchClient.
func NewFetchClientForTest(hc *http.Client, logger *slog.Logger, m *metrics.Metrics) *FetchClient {
	cp := *hc
	cp.CheckRedirect = checkRedirect

	return &FetchClient{
		httpClient: &cp,
		logger:     logger.With("component", "fetch_client"),
		metrics:    m,
	}
}

// Get fetches target with a plain GET and no additional headers.
// The caller is responsible for closing the response body.
// The provided context controls the lifetime of the whole exchange,
// including reads of the returned body.
func (c *FetchClient) Get(ctx context.Context, target string) (*model.UpstreamResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}

	c.logger.Debug("upstream request", "host", req.URL.Host, "path", req.URL.Path)

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:bodyclose // body ownership transfers to caller via UpstreamResponse
	duration := time.Since(start).Seconds()

	if c.metrics != nil {
		c.metrics.UpstreamDuration.WithLabelValues(http.MethodGet).Observe(duration)
	}
	if err != nil {
		return nil, err
	}
	if c.metrics != nil {
		c.metrics.UpstreamResponses.WithLabelValues(http.MethodGet, strconv.Itoa(resp.StatusCode)).Inc()
	}

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Reason:     reasonPhrase(resp),
		Body:       resp.Body,
	}, nil
}

// checkRedirect follows https redirects up to maxRedirects and refuses any
// hop that would leave https.
func checkRedirect(req *http.Request, via []*http.Request) error {
	if req.URL.Scheme != "https" {
		return fmt.Errorf("%w: %s", ErrInsecureRedirect, req.URL.Redacted())
	}
	if len(via) >= maxRedirects {
		return fmt.Errorf("stopped after %d redirects", maxRedirects)
	}
	return nil
}

// reasonPhrase extracts the upstream's reason phrase from the status line,
// falling back to the standard text when the status line carries none.
func reasonPhrase(resp *http.Response) string {
	reason := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if reason == "" {
		reason = http.StatusText(resp.StatusCode)
	}
	return reason
}
