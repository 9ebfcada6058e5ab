// Package source implements the upstream token feed clients with caching,
// rate limiting and retry.
package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/jpillora/backoff"
	"github.com/solvirx/tokenwatch/core"
)

const (
	maxFetchAttempts = 3
	maxResponseBytes = 8 << 20
)

// fetcher performs HTTP GETs with bounded retry. Backoff starts at 2s,
// doubles per attempt and is capped at 20s, with jitter so concurrent
// sessions do not retry in lockstep.
type fetcher struct {
	client     *http.Client
	log        core.Logger
	newBackoff func() *backoff.Backoff
}

func newFetcher(timeout time.Duration, log core.Logger) *fetcher {
	return &fetcher{
		client:     &http.Client{Timeout: timeout},
		log:        log,
		newBackoff: newRetryBackoff,
	}
}

func newRetryBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Min:    2 * time.Second,
		Max:    20 * time.Second,
		Factor: 2,
		Jitter: true,
	}
}

// fetchWithRetry GETs the URL, retrying transport errors and non-2xx
// responses up to maxFetchAttempts. Exhaustion is reported as
// core.ErrUpstreamUnavailable; the caller decides the fallback.
func (f *fetcher) fetchWithRetry(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	retry := f.newBackoff()

	var lastErr error
	for attempt := 1; attempt <= maxFetchAttempts; attempt++ {
		body, err := f.fetchOnce(ctx, url, headers)
		if err == nil {
			return body, nil
		}

		lastErr = err
		f.log.WithError(err).Warnf("fetch attempt %d/%d failed", attempt, maxFetchAttempts)

		if attempt == maxFetchAttempts {
			break
		}

		select {
		case <-time.After(retry.Duration()):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return nil, fmt.Errorf("%w: %v", core.ErrUpstreamUnavailable, lastErr)
}

func (f *fetcher) fetchOnce(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d: %.150s", resp.StatusCode, string(body))
	}

	return body, nil
}
