// Package kodik is a thin client for the Kodik catalog API. It issues one
// request per call with no caching and no retries.
package kodik

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/TETRIX8/anime/internal/metrics"
)

const maxBodyBytes = 5 << 20

var ErrUpstream = errors.New("upstream catalog failure")

// UpstreamError is returned for transport failures and any non-2xx answer.
type UpstreamError struct {
	Endpoint string
	Status   int
	Body     string
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("kodik %s: %v", e.Endpoint, e.Err)
	}
	return fmt.Sprintf("kodik %s: status %d: %s", e.Endpoint, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

type Config struct {
	BaseURL       string
	Token         string
	Timeout       time.Duration
	RatePerSecond float64
	Burst         int
	UserAgent     string
}

type Client struct {
	baseURL   string
	token     string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	log       *logrus.Logger
}

func NewClient(cfg Config, log *logrus.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "animewave/1.0"
	}
	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Client{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		token:     cfg.Token,
		userAgent: cfg.UserAgent,
		http:      &http.Client{Timeout: cfg.Timeout},
		limiter:   rate.NewLimiter(limit, burst),
		log:       log,
	}
}

func (c *Client) List(ctx context.Context, q Query) (*Response, error) {
	return c.do(ctx, "list", q)
}

func (c *Client) Search(ctx context.Context, q Query) (*Response, error) {
	return c.do(ctx, "search", q)
}

func (c *Client) do(ctx context.Context, endpoint string, q Query) (resp *Response, err error) {
	start := time.Now()
	defer func() { metrics.ObserveUpstream(endpoint, start, err) }()

	if err := c.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		// the wait would outlast the caller's deadline
		return nil, fmt.Errorf("kodik %s: rate limit: %w", endpoint, context.DeadlineExceeded)
	}

	reqURL := c.baseURL + "/" + endpoint + "?" + q.Values(c.token).Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.log.WithError(err).WithField("endpoint", endpoint).Warn("kodik request failed")
		return nil, &UpstreamError{Endpoint: endpoint, Err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxBodyBytes))
	if err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Status: res.StatusCode, Err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 512 {
			snippet = snippet[:512]
		}
		c.log.WithFields(logrus.Fields{
			"endpoint": endpoint,
			"status":   res.StatusCode,
		}).Warn("kodik returned non-2xx")
		return nil, &UpstreamError{Endpoint: endpoint, Status: res.StatusCode, Body: snippet}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &UpstreamError{Endpoint: endpoint, Status: res.StatusCode, Err: fmt.Errorf("decode envelope: %w", err)}
	}

	out := &Response{
		Time:     env.Time,
		Total:    env.Total,
		PrevPage: stripToken(env.PrevPage),
		NextPage: stripToken(env.NextPage),
		Results:  make([]Material, 0, len(env.Results)),
	}
	for i, raw := range env.Results {
		var m Material
		if err := json.Unmarshal(raw, &m); err != nil {
			c.log.WithError(err).WithFields(logrus.Fields{
				"endpoint": endpoint,
				"row":      i,
			}).Warn("skipping undecodable kodik row")
			continue
		}
		out.Results = append(out.Results, m)
	}
	return out, nil
}
