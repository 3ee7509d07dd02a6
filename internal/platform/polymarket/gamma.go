package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/polyarb/internal/domain"
)

// DefaultEventPageSize is the Gamma page size used when none is configured.
const DefaultEventPageSize = 50

const (
	gammaRateKey    = "gamma"
	gammaMaxRetries = 3
	gammaUserAgent  = "polyarb/1.0"
)

// GammaClient reads the event catalog from the Gamma REST API, e.g.
// https://gamma-api.polymarket.com.
type GammaClient struct {
	baseURL string
	http    *http.Client
	limiter domain.RateLimiter
	backoff time.Duration
}

// NewGammaClient returns a client rooted at baseURL.
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		backoff: 500 * time.Millisecond,
	}
}

// SetRateLimiter makes every request wait on a limiter shared across
// processes.
func (g *GammaClient) SetRateLimiter(l domain.RateLimiter) { g.limiter = l }

// GetEvents returns one page of open events.
func (g *GammaClient) GetEvents(ctx context.Context, limit, offset int) ([]APIEvent, error) {
	q := url.Values{
		"closed": {"false"},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	var events []APIEvent
	if err := g.getJSON(ctx, "/events", q, &events); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: events offset %d: %w", offset, err)
	}
	return events, nil
}

// ListOpenEvents pages through open events until a short page or maxEvents
// is reached. maxEvents <= 0 means no cap.
func (g *GammaClient) ListOpenEvents(ctx context.Context, pageSize, maxEvents int) ([]APIEvent, error) {
	if pageSize <= 0 {
		pageSize = DefaultEventPageSize
	}
	var all []APIEvent
	for {
		want := pageSize
		if maxEvents > 0 {
			want = min(want, maxEvents-len(all))
		}
		page, err := g.GetEvents(ctx, want, len(all))
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < want || (maxEvents > 0 && len(all) >= maxEvents) {
			return all, nil
		}
	}
}

// getJSON GETs path and decodes the body into out. Rate-limit and server
// errors are retried with a doubling delay, or the server's Retry-After
// when it sends one.
func (g *GammaClient) getJSON(ctx context.Context, path string, q url.Values, out any) error {
	target := g.baseURL + path + "?" + q.Encode()
	delay := g.backoff
	for attempt := 0; ; attempt++ {
		if g.limiter != nil {
			if err := g.limiter.Wait(ctx, gammaRateKey); err != nil {
				return err
			}
		}
		retryAfter, err := g.fetch(ctx, target, out)
		if err == nil {
			return nil
		}
		if retryAfter < 0 || attempt+1 >= gammaMaxRetries {
			return err
		}
		if retryAfter > 0 {
			delay = retryAfter
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

// fetch performs one request. A negative duration marks the error as final;
// zero or positive means retryable, positive carrying the server's delay.
func (g *GammaClient) fetch(ctx context.Context, target string, out any) (time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return -1, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", gammaUserAgent)

	resp, err := g.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return -1, err
		}
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return -1, fmt.Errorf("decode: %w", err)
		}
		return 0, nil
	}

	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	err = statusError(resp.StatusCode, strings.TrimSpace(string(snippet)))
	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return time.Duration(secs) * time.Second, err
	case resp.StatusCode >= http.StatusInternalServerError:
		return 0, err
	default:
		return -1, err
	}
}

// statusError maps a non-2xx status onto the domain sentinels.
func statusError(code int, body string) error {
	switch code {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, body)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, body)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, body)
	}
	return fmt.Errorf("status %d: %s", code, body)
}
