package fetch

import (
	"context"
	"net/url"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/temoto/robotstxt"
)

// RobotsGate manages fetching, parsing, caching, and checking robots.txt
// data per host. A fetch failure (or a missing/4xx robots.txt) is cached as
// nil and treated as allow-all, matching crawler convention.
type RobotsGate struct {
	fetcher *Fetcher
	cache   map[string]*robotstxt.RobotsData // hostname -> parsed data (or nil)
	cacheMu sync.Mutex
	log     *logrus.Entry
}

// NewRobotsGate creates a RobotsGate fetching through the given fetcher.
func NewRobotsGate(fetcher *Fetcher, log *logrus.Entry) *RobotsGate {
	return &RobotsGate{
		fetcher: fetcher,
		cache:   make(map[string]*robotstxt.RobotsData),
		log:     log,
	}
}

// Allowed reports whether agent may fetch targetURL per the host's
// robots.txt. Unknown or unfetchable robots data allows everything.
func (rg *RobotsGate) Allowed(ctx context.Context, targetURL *url.URL, agent string) bool {
	data := rg.robotsData(ctx, targetURL)
	if data == nil {
		return true
	}
	return data.TestAgent(targetURL.RequestURI(), agent)
}

// robotsData returns cached robots data for the host, fetching on a miss.
func (rg *RobotsGate) robotsData(ctx context.Context, targetURL *url.URL) *robotstxt.RobotsData {
	host := targetURL.Hostname()

	rg.cacheMu.Lock()
	data, found := rg.cache[host]
	rg.cacheMu.Unlock()
	if found {
		return data // May be nil (cached fetch failure)
	}

	robotsURL := &url.URL{Scheme: targetURL.Scheme, Host: targetURL.Host, Path: "/robots.txt"}
	if robotsURL.Scheme != "http" && robotsURL.Scheme != "https" {
		rg.log.Warnf("Invalid scheme %q, defaulting to https for robots.txt", targetURL.Scheme)
		robotsURL.Scheme = "https"
	}
	robotsLog := rg.log.WithFields(logrus.Fields{"host": host, "robots_url": robotsURL.String()})
	robotsLog.Info("Fetching robots.txt...") // Log only on cache miss

	var parsed *robotstxt.RobotsData
	body, err := rg.fetcher.FetchPage(ctx, robotsURL.String(), RetryPolicy{MaxRetries: 2, BaseDelay: time.Second})
	if err != nil {
		robotsLog.Warnf("robots.txt unavailable, allowing all: %v", err)
	} else if data, parseErr := robotstxt.FromBytes(body); parseErr != nil {
		robotsLog.Warnf("robots.txt parse error, allowing all: %v", parseErr)
	} else {
		parsed = data
	}

	rg.cacheMu.Lock()
	rg.cache[host] = parsed
	rg.cacheMu.Unlock()
	return parsed
}
