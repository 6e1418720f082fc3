package tvmaze

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/AxmedStark/PekSeries-Telegram-Bot/internal/domain"
)

const (
	SourceID = "tvmaze"

	embedPrevious = "previousepisode"
	embedNext     = "nextepisode"
)

var (
	showLinkRe = regexp.MustCompile(`(?i)(?:tvmaze\.com/|^/?)shows/(\d+)`)
	showIDRe   = regexp.MustCompile(`(?i)^id:\s*(\d+)$`)
)

// Config holds TVMaze client configuration.
type Config struct {
	BaseURL        string
	Timeout        time.Duration
	CacheSize      int
	CacheTTL       time.Duration
	RequestsPerSec float64
}

// Client is a read-only TVMaze API client. Lookups never fail with an
// error: any upstream problem is logged and reported as absence of data.
type Client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	resolved   *expirable.LRU[string, domain.Show]
	logger     *slog.Logger
}

// New creates a new TVMaze client.
func New(cfg Config, logger *slog.Logger) *Client {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 100
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}

	limit, burst := rate.Inf, 1
	if cfg.RequestsPerSec > 0 {
		limit = rate.Limit(cfg.RequestsPerSec)
		burst = max(1, int(cfg.RequestsPerSec))
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		limiter:  rate.NewLimiter(limit, burst),
		resolved: expirable.NewLRU[string, domain.Show](cfg.CacheSize, nil, cfg.CacheTTL),
		logger:   logger.With("source", SourceID),
	}
}

// ParseShowID extracts a show id from a TVMaze show link
// (https://www.tvmaze.com/shows/82/game-of-thrones, shows/82) or an explicit
// "id:82". Bare numbers are not ids: plenty of show titles are numeric.
func ParseShowID(query string) (int64, bool) {
	query = strings.TrimSpace(query)

	m := showLinkRe.FindStringSubmatch(query)
	if m == nil {
		m = showIDRe.FindStringSubmatch(query)
	}
	if m == nil {
		return 0, false
	}

	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Resolve finds a show by link or by name. Name searches take the best
// ranked result.
func (c *Client) Resolve(ctx context.Context, query string) (domain.Show, bool) {
	key := strings.ToLower(strings.Join(strings.Fields(query), " "))
	if key == "" {
		return domain.Show{}, false
	}

	if show, ok := c.resolved.Get(key); ok {
		c.logger.Debug("resolve cache hit", "query", key, "show_id", show.ID)
		return show, true
	}

	var (
		show domain.Show
		ok   bool
	)
	if id, isLink := ParseShowID(query); isLink {
		show, ok = c.showByID(ctx, id)
	} else {
		show, ok = c.searchFirst(ctx, query)
	}

	if ok {
		c.resolved.Add(key, show)
	}
	return show, ok
}

// LatestEpisode returns the most recently aired episode of a show.
func (c *Client) LatestEpisode(ctx context.Context, showID int64) (domain.Episode, bool) {
	return c.episode(ctx, showID, embedPrevious)
}

// NextEpisode returns the next scheduled episode of a show.
func (c *Client) NextEpisode(ctx context.Context, showID int64) (domain.Episode, bool) {
	return c.episode(ctx, showID, embedNext)
}

func (c *Client) showByID(ctx context.Context, id int64) (domain.Show, bool) {
	var resp showResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/shows/%d", id), nil, &resp); err != nil {
		c.logger.Warn("show lookup failed", "show_id", id, "error", err)
		return domain.Show{}, false
	}
	return domain.Show{ID: resp.ID, Name: resp.Name, URL: resp.URL}, resp.ID != 0
}

func (c *Client) searchFirst(ctx context.Context, query string) (domain.Show, bool) {
	var results []searchResult
	if err := c.getJSON(ctx, "/search/shows", url.Values{"q": {query}}, &results); err != nil {
		c.logger.Warn("show search failed", "query", query, "error", err)
		return domain.Show{}, false
	}
	if len(results) == 0 || results[0].Show.ID == 0 {
		c.logger.Debug("show search returned nothing", "query", query)
		return domain.Show{}, false
	}

	s := results[0].Show
	return domain.Show{ID: s.ID, Name: s.Name, URL: s.URL}, true
}

func (c *Client) episode(ctx context.Context, showID int64, embed string) (domain.Episode, bool) {
	var resp showResponse
	path := fmt.Sprintf("/shows/%d", showID)
	if err := c.getJSON(ctx, path, url.Values{"embed": {embed}}, &resp); err != nil {
		c.logger.Warn("episode lookup failed",
			"show_id", showID,
			"embed", embed,
			"error", err,
		)
		return domain.Episode{}, false
	}

	var ep *episodeResponse
	if resp.Embedded != nil {
		if embed == embedNext {
			ep = resp.Embedded.NextEpisode
		} else {
			ep = resp.Embedded.PreviousEpisode
		}
	}
	if ep == nil {
		c.logger.Debug("no embedded episode", "show_id", showID, "embed", embed)
		return domain.Episode{}, false
	}

	return transform(&resp, ep), true
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "PekSeries/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func transform(show *showResponse, ep *episodeResponse) domain.Episode {
	episode := domain.Episode{
		ID:      ep.ID,
		Title:   ep.Name,
		Airdate: ep.Airdate,
		URL:     ep.URL,
	}
	if ep.Season != nil {
		episode.Season = *ep.Season
	}
	if ep.Number != nil {
		episode.Number = *ep.Number
	}
	if ep.Summary != nil {
		episode.Summary = *ep.Summary
	}

	if show.Image != nil {
		episode.ImageURL = show.Image.Medium
		if episode.ImageURL == "" {
			episode.ImageURL = show.Image.Original
		}
	}
	if premiered, err := time.Parse(time.DateOnly, show.Premiered); err == nil {
		episode.PremiereYear = premiered.Year()
	}

	return episode
}
