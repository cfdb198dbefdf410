// Package service implements target validation and the bounded outbound fetch.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"https-json-proxy/internal/config"
	"https-json-proxy/internal/metrics"
	"https-json-proxy/internal/model"
)

const httpsPrefix = "https://"

// ValidationError reports a target rejected before any network call.
type ValidationError struct {
	reason string
}

func (e *ValidationError) Error() string { return "invalid target: " + e.reason }

var (
	// ErrURLRequired is returned when the target URL is absent or empty.
	ErrURLRequired = &ValidationError{reason: "url query parameter is required"}
	// ErrHTTPSOnly is returned when the target does not begin with "https://".
	ErrHTTPSOnly = &ValidationError{reason: "only https:// URLs are allowed"}

	// ErrTimeout is returned when the fetch deadline fires before the exchange completes.
	ErrTimeout = errors.New("upstream request timed out")
)

// StatusError is returned when the upstream answers with a non-2xx status.
type StatusError struct {
	Code   int
	Reason string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d %s", e.Code, e.Reason)
}

// FetchError wraps transport failures and unusable response bodies.
// Its message is the underlying failure message.
type FetchError struct {
	Err error
}

func (e *FetchError) Error() string { return e.Err.Error() }

func (e *FetchError) Unwrap() error { return e.Err }

// Fetcher performs the outbound GET. *client.FetchClient implements it.
type Fetcher interface {
	Get(ctx context.Context, target string) (*model.UpstreamResponse, error)
}

// FetchService validates targets and fetches their JSON within a deadline.
// It holds no per-request state and is safe for concurrent use.
type FetchService struct {
	fetcher      Fetcher
	timeout      time.Duration
	maxBodyBytes int64
	logger       *slog.Logger
	metrics      *metrics.Metrics
}

// NewFetchService creates a FetchService.
// The metrics parameter is optional; pass nil to disable outcome recording.
func NewFetchService(f Fetcher, cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *FetchService {
	return &FetchService{
		fetcher:      f,
		timeout:      cfg.Fetch.Timeout(),
		maxBodyBytes: cfg.Fetch.MaxBodyBytes,
		logger:       logger.With("component", "fetch_service"),
		metrics:      m,
	}
}

// Timeout returns the fetch deadline applied to every request.
func (s *FetchService) Timeout() time.Duration {
	return s.timeout
}

// Validate checks the target with a literal, case-sensitive prefix test.
// It does not parse the URL.
func Validate(target string) error {
	if target == "" {
		return ErrURLRequired
	}
	if !strings.HasPrefix(target, httpsPrefix) {
		return ErrHTTPSOnly
	}
	return nil
}

// Fetch validates target, GETs it and returns the upstream JSON body unchanged.
//
// Errors are one of: a *ValidationError (no network call made), a *StatusError,
// ErrTimeout, or a *FetchError.
func (s *FetchService) Fetch(ctx context.Context, target string) (json.RawMessage, error) {
	if err := Validate(target); err != nil {
		s.logger.Warn("rejected target", "err", err)
		s.record(metrics.OutcomeInvalid)
		return nil, err
	}

	logger := s.logger.With("target", redact(target))
	logger.Info("fetching data")

	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := s.fetch(fetchCtx, target)

	var se *StatusError
	switch {
	case err == nil:
		logger.Info("data fetched", "bytes", len(body))
		s.record(metrics.OutcomeOK)
		return body, nil
	case errors.As(err, &se):
		logger.Error("fetch failed", "status", se.Code, "reason", se.Reason)
		s.record(metrics.OutcomeUpstreamStatus)
		return nil, se
	case errors.Is(err, context.DeadlineExceeded), errors.Is(fetchCtx.Err(), context.DeadlineExceeded):
		logger.Error("request timed out", "timeout", s.timeout)
		s.record(metrics.OutcomeTimeout)
		return nil, ErrTimeout
	default:
		logger.Error("error fetching data", "err", err)
		s.record(metrics.OutcomeError)
		return nil, &FetchError{Err: err}
	}
}

func (s *FetchService) fetch(ctx context.Context, target string) (json.RawMessage, error) {
	resp, err := s.fetcher.Get(ctx, target)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if !resp.OK() {
		return nil, &StatusError{Code: resp.StatusCode, Reason: resp.Reason}
	}

	data, err := s.readBody(resp.Body)
	if err != nil {
		return nil, err
	}

	var raw json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid json response body: %w", err)
	}
	return raw, nil
}

// readBody reads at most maxBodyBytes; a negative limit disables the cap.
func (s *FetchService) readBody(r io.Reader) ([]byte, error) {
	if s.maxBodyBytes < 0 {
		return io.ReadAll(r)
	}
	data, err := io.ReadAll(io.LimitReader(r, s.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > s.maxBodyBytes {
		return nil, fmt.Errorf("response body exceeds %d bytes", s.maxBodyBytes)
	}
	return data, nil
}

func (s *FetchService) record(outcome string) {
	if s.metrics != nil {
		s.metrics.FetchOutcomes.WithLabelValues(outcome).Inc()
	}
}

// redact strips any password from target before it is logged.
func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return "[unparseable]"
	}
	return u.Redacted()
}
