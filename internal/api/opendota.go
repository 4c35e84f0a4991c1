package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"strings"
	"time"

	"dota-pipeline/internal/apperrors"
	"dota-pipeline/internal/config"
	"dota-pipeline/internal/constants"
	"dota-pipeline/internal/domain"

	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

type Option func(*Client)

// WithSleep replaces the backoff sleeper. Tests use it to record delays.
func WithSleep(fn SleepFunc) Option {
	return func(c *Client) { c.sleep = fn }
}

// WithLimiter shares one token budget between several clients.
func WithLimiter(l *rate.Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

type Client struct {
	baseURL        string
	apiKey         string
	maxRetries     int
	backoffFactor  float64
	rateLimitSleep time.Duration
	timeout        time.Duration

	client  *fasthttp.Client
	limiter *rate.Limiter
	sleep   SleepFunc
	logger  zerolog.Logger
}

func NewClient(cfg config.OpenDotaConfig, logger zerolog.Logger, opts ...Option) *Client {
	limit := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.RequestsPerMinute))
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.DefaultBaseURL
	}
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = constants.DefaultMaxRetries
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = constants.DefaultBackoffFactor
	}
	if cfg.RateLimitSleep <= 0 {
		cfg.RateLimitSleep = constants.DefaultRateLimitSleep
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.ExternalAPITimeout
	}

	c := &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		maxRetries:     cfg.MaxRetries,
		backoffFactor:  cfg.BackoffFactor,
		rateLimitSleep: cfg.RateLimitSleep,
		timeout:        cfg.Timeout,
		client: &fasthttp.Client{
			MaxConnsPerHost:     100,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 1 * time.Minute,
		},
		limiter: rate.NewLimiter(limit, 1),
		sleep:   sleepContext,
		logger:  logger.With().Str("component", "opendota").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewOpenDotaClient builds the client from the application config.
func NewOpenDotaClient(cfg *config.Config, logger zerolog.Logger) *Client {
	return NewClient(cfg.OpenDota, logger)
}

// ResolveMatchIDs lists the matches of a league, newest first. The explorer
// query is tried first; the public pro match feed is the fallback.
func (c *Client) ResolveMatchIDs(ctx context.Context, leagueID int64) ([]int64, error) {
	query := url.Values{}
	query.Set("sql", fmt.Sprintf("SELECT match_id FROM matches WHERE leagueid=%d ORDER BY start_time DESC", leagueID))

	explorer, err := doRequest[ExplorerResponse](ctx, c, "/explorer", query)
	switch {
	case err == nil:
		ids := make([]int64, 0, len(explorer.Rows))
		for _, row := range explorer.Rows {
			if row.MatchID != nil {
				ids = append(ids, *row.MatchID)
			}
		}
		if len(ids) > 0 {
			return ids, nil
		}
		c.logger.Info().Int64("league_id", leagueID).Msg("explorer returned no matches, falling back to pro match feed")
	case errors.Is(err, apperrors.RemoteAuth), ctx.Err() != nil:
		return nil, err
	default:
		c.logger.Warn().Err(err).Int64("league_id", leagueID).Msg("explorer query failed, falling back to pro match feed")
	}

	feed, err := doRequest[[]ProMatch](ctx, c, "/proMatches", nil)
	if err != nil {
		return nil, fmt.Errorf("resolve league %d: %w", leagueID, err)
	}
	ids := make([]int64, 0)
	for _, m := range feed {
		if m.LeagueID == leagueID {
			ids = append(ids, m.MatchID)
		}
	}
	return ids, nil
}

func (c *Client) FetchMatch(ctx context.Context, matchID int64) (domain.RawDocument, error) {
	return doRequest[domain.RawDocument](ctx, c, fmt.Sprintf("/matches/%d", matchID), nil)
}

func (c *Client) FetchPlayerProfile(ctx context.Context, accountID int64) (domain.RawDocument, error) {
	return doRequest[domain.RawDocument](ctx, c, fmt.Sprintf("/players/%d", accountID), nil)
}

// FetchPlayerRecentMatches returns up to limit professional matches of a player.
func (c *Client) FetchPlayerRecentMatches(ctx context.Context, accountID int64, limit int) ([]RawMatchSummary, error) {
	query := url.Values{}
	query.Set("limit", fmt.Sprint(limit))
	query.Set("is_pro", "1")
	query.Set("significant", "0")
	return doRequest[[]RawMatchSummary](ctx, c, fmt.Sprintf("/players/%d/matches", accountID), query)
}

func (c *Client) FetchHeroes(ctx context.Context) ([]domain.Hero, error) {
	resp, err := doRequest[[]HeroResponse](ctx, c, "/heroes", nil)
	if err != nil {
		return nil, err
	}
	heroes := make([]domain.Hero, 0, len(resp))
	for _, h := range resp {
		heroes = append(heroes, domain.Hero{
			HeroID:        h.ID,
			Name:          h.Name,
			LocalizedName: h.LocalizedName,
			PrimaryAttr:   h.PrimaryAttr,
			AttackType:    h.AttackType,
		})
	}
	return heroes, nil
}

// FetchItems returns the item constants ordered by item id.
func (c *Client) FetchItems(ctx context.Context) ([]domain.Item, error) {
	resp, err := doRequest[map[string]ItemResponse](ctx, c, "/constants/items", nil)
	if err != nil {
		return nil, err
	}
	return itemsFromConstants(resp), nil
}

func doRequest[T any](ctx context.Context, c *Client, path string, query url.Values) (T, error) {
	var result T

	body, err := c.get(ctx, path, query)
	if err != nil {
		return result, err
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return result, fmt.Errorf("decode %s: %w", path, err)
	}
	return result, nil
}

func (c *Client) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	op := "GET " + path
	if c.apiKey != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("api_key", c.apiKey)
	}
	uri := c.baseURL + path
	if len(query) > 0 {
		uri += "?" + query.Encode()
	}

	var (
		lastStatus int
		lastErr    error
	)
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		status, body, err := c.do(ctx, uri)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastStatus, lastErr = 0, err
			wait = c.backoff(attempt)
		case status >= 200 && status < 300:
			return body, nil
		case status == fasthttp.StatusTooManyRequests:
			lastStatus, lastErr = status, errors.New("rate limited")
			wait = c.rateLimitSleep * time.Duration(attempt)
		case status >= 500:
			lastStatus, lastErr = status, errors.New(snippet(body))
			wait = c.backoff(attempt)
		case status == fasthttp.StatusUnauthorized, status == fasthttp.StatusForbidden:
			return nil, apperrors.New(apperrors.KindRemoteAuth, op, status, nil)
		default:
			return nil, apperrors.New(apperrors.KindRemoteRequest, op, status, errors.New(snippet(body)))
		}

		if attempt == c.maxRetries {
			break
		}
		c.logger.Warn().
			Str("path", path).
			Int("attempt", attempt).
			Int("status", lastStatus).
			Dur("wait", wait).
			Msg("retrying request")
		if err := c.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}

	return nil, apperrors.New(apperrors.KindRemoteUnavailable, op, lastStatus, lastErr)
}

type response struct {
	status int
	body   []byte
	err    error
}

// do sends one GET. The call is bounded by the client timeout and the ctx
// deadline, and returns as soon as ctx is done.
func (c *Client) do(ctx context.Context, uri string) (int, []byte, error) {
	var deadline time.Time
	if c.timeout > 0 {
		deadline = time.Now().Add(c.timeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}

	done := make(chan response, 1)
	go func() {
		req := fasthttp.AcquireRequest()
		resp := fasthttp.AcquireResponse()
		defer fasthttp.ReleaseRequest(req)
		defer fasthttp.ReleaseResponse(resp)

		req.SetRequestURI(uri)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set("Accept", "application/json")

		var err error
		if deadline.IsZero() {
			err = c.client.Do(req, resp)
		} else {
			err = c.client.DoDeadline(req, resp, deadline)
		}
		if err != nil {
			done <- response{err: err}
			return
		}
		// resp is released on return
		done <- response{status: resp.StatusCode(), body: append([]byte(nil), resp.Body()...)}
	}()

	select {
	case <-ctx.Done():
		return 0, nil, ctx.Err()
	case r := <-done:
		return r.status, r.body, r.err
	}
}

func (c *Client) backoff(attempt int) time.Duration {
	return time.Duration(math.Pow(c.backoffFactor, float64(attempt)) * float64(time.Second))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func snippet(body []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(body))
	if len(s) > limit {
		s = s[:limit]
	}
	return s
}
