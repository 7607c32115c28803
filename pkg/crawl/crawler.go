package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/webfetch/pkg/config"
	"github.com/Sriram-PR/webfetch/pkg/fetch"
	"github.com/Sriram-PR/webfetch/pkg/obs"
	"github.com/Sriram-PR/webfetch/pkg/utils"
)

// Crawler coordinates rate-limited, retried page fetches within one
// session, tracks visited URLs, and optionally honors robots.txt. All
// methods are safe for concurrent use.
type Crawler struct {
	baseURL   *url.URL
	userAgent string
	session   *Session
	limiter   *fetch.RateLimiter
	tracker   *obs.ErrorTracker
	policy    fetch.RetryPolicy
	maxBody   int64

	fetcherMu     sync.Mutex
	fetcher       *fetch.Fetcher
	forClient     *http.Client
	robots        *fetch.RobotsGate
	robotsEnabled bool

	visitedMu sync.Mutex
	visited   map[string]struct{}

	log *logrus.Entry
}

// NewCrawler wires a Crawler from validated configuration. The session
// starts closed; callers open it with Start before fetching.
func NewCrawler(cfg *config.AppConfig, tracker *obs.ErrorTracker, log *logrus.Entry) (*Crawler, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing base URL %q: %v", utils.ErrConfigValidation, cfg.BaseURL, err)
	}

	c := &Crawler{
		baseURL:   base,
		userAgent: cfg.UserAgent,
		session:   NewSession(cfg.HTTPClientSettings, cfg.ConcurrentLimit, log),
		limiter:   fetch.NewRateLimiter(cfg.RequestsPerSecond, cfg.RateLimitTimeout, log),
		tracker:   tracker,
		policy:    fetch.RetryPolicy{MaxRetries: cfg.MaxRetries, BaseDelay: cfg.BaseRetryDelay},
		maxBody:   cfg.MaxPageSizeBytes,
		visited:   make(map[string]struct{}),
		log:       log,
	}
	return c, nil
}

// Session exposes the crawler's session for lifecycle control.
func (c *Crawler) Session() *Session {
	return c.session
}

// EnableRobots turns on robots.txt checking. The gate is built on first
// fetch, backed by the crawler's own fetch path. Disallowed URLs fail
// with ErrRobotsDisallowed.
func (c *Crawler) EnableRobots() {
	c.fetcherMu.Lock()
	defer c.fetcherMu.Unlock()
	c.robotsEnabled = true
}

// FetchPage retrieves one page through the session's shared client. It
// fails fast with ErrSessionNotStarted when the session is closed, and
// with ErrRobotsDisallowed when robots.txt denies the URL.
func (c *Crawler) FetchPage(ctx context.Context, rawURL string) ([]byte, error) {
	f, err := c.fetcherForSession()
	if err != nil {
		return nil, err
	}

	if gate := c.robotsGate(f); gate != nil {
		target, parseErr := url.Parse(rawURL)
		if parseErr == nil && !gate.Allowed(ctx, target, c.userAgent) {
			err := fmt.Errorf("%w: %q", utils.ErrRobotsDisallowed, rawURL)
			if c.tracker != nil {
				c.tracker.RecordErr(utils.KindHTTPError, err, map[string]interface{}{"url": rawURL})
			}
			return nil, err
		}
	}

	return f.FetchPage(ctx, rawURL, c.policy)
}

// fetcherForSession returns a Fetcher bound to the session's current
// client, rebuilding it after a Stop/Start cycle swaps the client out.
func (c *Crawler) fetcherForSession() (*fetch.Fetcher, error) {
	client, err := c.session.Client()
	if err != nil {
		return nil, err
	}

	c.fetcherMu.Lock()
	defer c.fetcherMu.Unlock()
	if c.fetcher == nil || c.forClient != client {
		c.fetcher = fetch.NewFetcher(client, c.session.Gate(), c.limiter, c.tracker, c.userAgent, c.maxBody, c.log)
		c.forClient = client
	}
	return c.fetcher, nil
}

// robotsGate returns the active robots gate, or nil when robots checking
// is disabled.
func (c *Crawler) robotsGate(f *fetch.Fetcher) *fetch.RobotsGate {
	c.fetcherMu.Lock()
	defer c.fetcherMu.Unlock()
	if !c.robotsEnabled {
		return nil
	}
	if c.robots == nil {
		c.robots = fetch.NewRobotsGate(f, c.log)
	}
	return c.robots
}

// MarkVisited records a URL as visited. Returns false if it was already
// marked, so callers can use it as a claim check.
func (c *Crawler) MarkVisited(rawURL string) bool {
	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	if _, seen := c.visited[rawURL]; seen {
		return false
	}
	c.visited[rawURL] = struct{}{}
	return true
}

// Visited reports whether a URL has been marked.
func (c *Crawler) Visited(rawURL string) bool {
	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	_, seen := c.visited[rawURL]
	return seen
}

// VisitedCount returns the number of distinct URLs marked so far.
func (c *Crawler) VisitedCount() int {
	c.visitedMu.Lock()
	defer c.visitedMu.Unlock()
	return len(c.visited)
}

// IsValidURL reports whether a URL falls inside the crawl scope, defined
// as a string-prefix match against the configured base URL.
func (c *Crawler) IsValidURL(rawURL string) bool {
	return strings.HasPrefix(rawURL, c.baseURL.String())
}

// NormalizeURL resolves a possibly-relative reference against the base
// URL and strips the fragment.
func (c *Crawler) NormalizeURL(ref string) (string, error) {
	u, err := c.baseURL.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("%w: resolving %q: %v", utils.ErrParsing, ref, err)
	}
	u.Fragment = ""
	return u.String(), nil
}

// ExtractRelativePath returns the URL's path relative to the base URL
// path, or the full path when the URL is outside the base.
func (c *Crawler) ExtractRelativePath(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	rel := strings.TrimPrefix(u.Path, c.baseURL.Path)
	return strings.TrimPrefix(rel, "/")
}
