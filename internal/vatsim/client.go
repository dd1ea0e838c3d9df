package vatsim

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// Client fetches the VATSIM snapshot with retry and exponential backoff.
// Transient failures (network errors, timeouts, 5xx) are retried up to
// MaxRetries; malformed documents are not retried because the feed will not
// repair itself within one tick.
type Client struct {
	URL        string
	MaxRetries uint64

	http *http.Client
	log  *zap.SugaredLogger
}

// ErrMalformed marks a document that fetched but failed to decode or was
// missing required arrays.
var ErrMalformed = errors.New("malformed vatsim snapshot")

// NewClient builds a client with the given request timeout.
func NewClient(url string, timeout time.Duration, maxRetries uint64, log *zap.SugaredLogger) *Client {
	return &Client{
		URL:        url,
		MaxRetries: maxRetries,
		http:       &http.Client{Timeout: timeout},
		log:        log,
	}
}

// Fetch retrieves and decodes one snapshot. The context bounds the whole
// retry sequence; the per-request timeout bounds each attempt.
func (c *Client) Fetch(ctx context.Context) (*Snapshot, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0 // bounded by MaxRetries and ctx instead

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, c.MaxRetries), ctx)

	attempt := 0
	snap, err := backoff.RetryWithData(func() (*Snapshot, error) {
		attempt++
		s, err := c.fetchOnce(ctx)
		if err != nil {
			if errors.Is(err, ErrMalformed) {
				return nil, backoff.Permanent(err)
			}
			c.log.Warnf("vatsim fetch attempt %d failed: %v", attempt, err)
			return nil, err
		}
		return s, nil
	}, policy)
	if err != nil {
		return nil, fmt.Errorf("fetch vatsim snapshot: %w", err)
	}
	return snap, nil
}

func (c *Client) fetchOnce(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "vatsim_tracker/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
		if resp.StatusCode >= 500 {
			return nil, fmt.Errorf("upstream status %d", resp.StatusCode)
		}
		return nil, backoff.Permanent(fmt.Errorf("upstream status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	before := CoercionFailures()
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if nulled := CoercionFailures() - before; nulled > 0 {
		c.log.Warnw("nulled uncoercible numeric fields", "fields", nulled)
	}

	// A document without the three entity arrays is a failed fetch, not an
	// empty network.
	if snap.Pilots == nil || snap.Controllers == nil || snap.Transceivers == nil {
		return nil, fmt.Errorf("%w: missing pilots, controllers or transceivers", ErrMalformed)
	}

	return &snap, nil
}
