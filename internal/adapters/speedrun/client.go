// Package speedrun reads profiles, personal bests and leaderboards from the
// speedrun.com REST API.
//
// Every request goes through one retry wrapper: statuses in the retryable set
// are retried after a fixed delay, everything else fails fast with a typed
// error (ConnectionError, UpstreamError, HTTPStatusError).
package speedrun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/Avasam/Global-speedrunning-leaderboard/internal/domain/model"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/logger"
	"github.com/Avasam/Global-speedrunning-leaderboard/pkg/metrics"
	"github.com/avast/retry-go/v4"
	"golang.org/x/sync/singleflight"
)

// Client defaults.
const (
	DefaultBaseURL    = "https://www.speedrun.com/api/v1"
	DefaultRetryDelay = 5 * time.Second
	defaultTimeout    = 30 * time.Second
	userAgent         = "global-speedrunning-leaderboard"
	roleBanned        = "banned"
)

// Resource labels for metrics and cache keys.
const (
	resourceUser          = "user"
	resourcePersonalBests = "personal_bests"
	resourceVariables     = "variables"
	resourceLevels        = "levels"
	resourceLeaderboard   = "leaderboard"
)

// DefaultRetryableStatuses are transient statuses worth waiting out.
// 420 is speedrun.com's throttling response.
var DefaultRetryableStatuses = []int{420, 429, 500, 502, 503, 504}

// Client is safe for concurrent use. The underlying HTTP client is shared.
type Client struct {
	baseURL     string
	http        *http.Client
	retryable   map[int]struct{}
	retryDelay  time.Duration
	maxAttempts uint
	cache       Cache
	group       singleflight.Group
	flightMu    sync.Mutex
	flights     map[string]*flight
	log         logger.Logger
}

// New creates a Client with defaults overridden by opts.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:    DefaultBaseURL,
		http:       &http.Client{Timeout: defaultTimeout},
		retryDelay: DefaultRetryDelay,
		cache:      NewLRUCache(DefaultCacheSize, DefaultCacheTTL),
		flights:    make(map[string]*flight),
		log:        logger.Nop(),
	}
	WithRetryableStatuses(DefaultRetryableStatuses)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile resolves a user by name or id.
func (c *Client) Profile(ctx context.Context, nameOrID string) (model.ProfileIdentity, error) {
	var resp userResponse
	if err := c.getJSON(ctx, resourceUser, c.endpoint("users", nameOrID), &resp); err != nil {
		return model.ProfileIdentity{}, err
	}
	d := resp.Data
	name := d.Names.International
	if d.Names.Japanese != "" {
		name += " (" + d.Names.Japanese + ")"
	}
	return model.ProfileIdentity{
		ID:          d.ID,
		DisplayName: name,
		Weblink:     d.Weblink,
		Banned:      d.Role == roleBanned,
	}, nil
}

// PersonalBests lists a user's personal-best runs.
func (c *Client) PersonalBests(ctx context.Context, userID string) ([]model.PersonalBest, error) {
	var resp personalBestsResponse
	if err := c.getJSON(ctx, resourcePersonalBests, c.endpoint("users", userID, "personal-bests"), &resp); err != nil {
		return nil, err
	}
	pbs := make([]model.PersonalBest, 0, len(resp.Data))
	for _, d := range resp.Data {
		pb := model.PersonalBest{
			RunID:      d.Run.ID,
			GameID:     d.Run.Game,
			CategoryID: d.Run.Category,
			LevelID:    d.Run.Level,
			Values:     d.Run.Values,
			Metric:     d.Run.Times.PrimaryT,
		}
		if d.Run.Videos != nil {
			for _, l := range d.Run.Videos.Links {
				pb.VideoLinks = append(pb.VideoLinks, l.URI)
			}
		}
		pbs = append(pbs, pb)
	}
	return pbs, nil
}

// Variables lists a game's variables. Responses are cached.
func (c *Client) Variables(ctx context.Context, gameID string) ([]model.Variable, error) {
	var resp variablesResponse
	if err := c.getCachedJSON(ctx, resourceVariables, gameID, c.endpoint("games", gameID, "variables"), &resp); err != nil {
		return nil, err
	}
	vars := make([]model.Variable, 0, len(resp.Data))
	for _, d := range resp.Data {
		vars = append(vars, model.Variable{ID: d.ID, IsSubcategory: d.IsSubcategory})
	}
	return vars, nil
}

// LevelCount returns how many individual levels a game has. Responses are cached.
func (c *Client) LevelCount(ctx context.Context, gameID string) (int, error) {
	var resp levelsResponse
	if err := c.getCachedJSON(ctx, resourceLevels, gameID, c.endpoint("games", gameID, "levels"), &resp); err != nil {
		return 0, err
	}
	return len(resp.Data), nil
}

// Leaderboard fetches the video-only leaderboard of a category, or of a
// level when levelID is set, filtered by sub-category attributes.
func (c *Client) Leaderboard(ctx context.Context, gameID, categoryID, levelID string, attrs map[string]string) (model.Leaderboard, error) {
	var resp leaderboardResponse
	if err := c.getJSON(ctx, resourceLeaderboard, c.LeaderboardURL(gameID, categoryID, levelID, attrs), &resp); err != nil {
		return model.Leaderboard{}, err
	}

	entries := make([]model.RankedEntry, 0, len(resp.Data.Runs))
	for _, r := range resp.Data.Runs {
		players := make([]string, 0, len(r.Run.Players))
		for _, p := range r.Run.Players {
			if p.ID != "" {
				players = append(players, p.ID)
			}
		}
		entries = append(entries, model.RankedEntry{
			Place:     r.Place,
			Metric:    r.Run.Times.PrimaryT,
			PlayerIDs: players,
		})
	}
	var banned []string
	for _, p := range resp.Data.Players.Data {
		if p.Role == roleBanned {
			banned = append(banned, p.ID)
		}
	}
	return model.NewLeaderboard(entries, banned...), nil
}

// LeaderboardURL builds the leaderboard request URL.
func (c *Client) LeaderboardURL(gameID, categoryID, levelID string, attrs map[string]string) string {
	var path string
	if levelID != "" {
		path = c.endpoint("leaderboards", gameID, "level", levelID, categoryID)
	} else {
		path = c.endpoint("leaderboards", gameID, "category", categoryID)
	}
	q := url.Values{}
	q.Set("video-only", "true")
	q.Set("embed", "players")
	for id, value := range attrs {
		q.Set("var-"+id, value)
	}
	return path + "?" + q.Encode()
}

func (c *Client) endpoint(segments ...string) string {
	u := c.baseURL
	for _, s := range segments {
		u += "/" + url.PathEscape(s)
	}
	return u
}

// getCachedJSON serves game metadata from the cache, collapsing concurrent
// misses for the same key into one request.
func (c *Client) getCachedJSON(ctx context.Context, resource, id, rawURL string, out any) error {
	key := resource + ":" + id
	body, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.log.Warn(ctx, "metadata cache read failed", logger.String("key", key), logger.Error(err))
	}
	metrics.RecordCacheLookup(ok)
	if !ok {
		if body, err = c.fetchShared(ctx, key, resource, rawURL); err != nil {
			return err
		}
	}
	return decode(rawURL, body, out)
}

// flight is a shared metadata fetch. Its context outlives any single caller
// and is cancelled once the last waiter leaves.
type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

// fetchShared joins or starts the fetch for key and waits for it or for ctx,
// whichever ends first. A cancelled caller never fails the others.
func (c *Client) fetchShared(ctx context.Context, key, resource, rawURL string) ([]byte, error) {
	f := c.join(ctx, key)
	defer c.leave(key, f)

	ch := c.group.DoChan(key, func() (any, error) {
		b, err := c.get(f.ctx, resource, rawURL)
		if err != nil {
			return nil, err
		}
		if err := c.cache.Set(f.ctx, key, b); err != nil {
			c.log.Warn(f.ctx, "metadata cache write failed", logger.String("key", key), logger.Error(err))
		}
		return b, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *Client) join(ctx context.Context, key string) *flight {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	f, ok := c.flights[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: fctx, cancel: cancel}
		c.flights[key] = f
	}
	f.waiters++
	return f
}

func (c *Client) leave(key string, f *flight) {
	c.flightMu.Lock()
	defer c.flightMu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	f.cancel()
	if c.flights[key] == f {
		delete(c.flights, key)
	}
	// An abandoned call must not be joined by later callers.
	c.group.Forget(key)
}

func (c *Client) getJSON(ctx context.Context, resource, rawURL string, out any) error {
	body, err := c.get(ctx, resource, rawURL)
	if err != nil {
		return err
	}
	return decode(rawURL, body, out)
}

func decode(rawURL string, body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w from %s: %w", ErrDecode, rawURL, err)
	}
	return nil
}

// get performs a GET through the retry wrapper.
func (c *Client) get(ctx context.Context, resource, rawURL string) ([]byte, error) {
	start := time.Now()
	c.log.Debug(ctx, "fetching", logger.String("url", rawURL))

	body, err := retry.DoWithData(
		func() ([]byte, error) { return c.once(ctx, rawURL) },
		retry.Context(ctx),
		retry.Attempts(c.maxAttempts),
		retry.Delay(c.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			status := "unknown"
			if se, ok := err.(*HTTPStatusError); ok {
				status = strconv.Itoa(se.StatusCode)
			}
			metrics.RecordFetchRetry(status)
			c.log.Warn(ctx, "retrying request",
				logger.String("url", rawURL),
				logger.Int("attempt", int(n)+1),
				logger.Duration("delay", c.retryDelay),
				logger.Error(err))
		}),
	)

	metrics.RecordFetchLatency(resource, time.Since(start).Seconds())
	if err != nil {
		metrics.RecordFetch(resource, "error")
		return nil, err
	}
	metrics.RecordFetch(resource, "ok")
	return body, nil
}

// once performs a single attempt. A retryable status is checked before the
// error envelope, so a 420 or 429 carrying {"status","message"} is retried
// rather than failed fast as an UpstreamError.
func (c *Client) once(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ConnectionError{URL: rawURL, Err: err}
	}

	if _, ok := c.retryable[resp.StatusCode]; ok {
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode, Retryable: true}
	}

	if bytes.HasPrefix(bytes.TrimSpace(body), []byte("{")) {
		var env envelope
		if json.Unmarshal(body, &env) == nil && env.Status != nil {
			return nil, &UpstreamError{URL: rawURL, Status: *env.Status, Message: env.Message}
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &HTTPStatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return body, nil
}
