// Package crawler implements the website knowledge-ingestion crawl: a
// bounded breadth-first traversal that fetches pages inside one origin,
// extracts their text, and accumulates PageRecords in discovery order.
package crawler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/extract"
	"github.com/sitebot/backend/internal/metrics"
	"github.com/sitebot/backend/internal/storage/models"
	"github.com/sitebot/backend/internal/urlutil"
	"github.com/sitebot/backend/pkg/logger"
)

type Config struct {
	// MaxPages caps how many distinct URLs one crawl visits. Default 20.
	MaxPages int

	// PolitenessDelay is the pause between successive fetches. Default 500ms.
	PolitenessDelay time.Duration

	// RespectRobots consults the site's robots.txt before each fetch.
	RespectRobots bool
}

func (c *Config) defaults() {
	if c.MaxPages <= 0 {
		c.MaxPages = 20
	}
	if c.PolitenessDelay < 0 {
		c.PolitenessDelay = 0
	} else if c.PolitenessDelay == 0 {
		c.PolitenessDelay = 500 * time.Millisecond
	}
}

// Scheduler drives a single-threaded breadth-first crawl. Fetches are
// strictly sequential; concurrency across crawls comes from running
// independent Scheduler invocations.
type Scheduler struct {
	fetcher  *Fetcher
	renderer Renderer
	cfg      Config
}

// NewScheduler builds a Scheduler. renderer may be nil, in which case every
// page (the seed included) is fetched statically.
func NewScheduler(fetcher *Fetcher, renderer Renderer, cfg Config) *Scheduler {
	cfg.defaults()
	return &Scheduler{
		fetcher:  fetcher,
		renderer: renderer,
		cfg:      cfg,
	}
}

// Crawl walks the site rooted at seedURL and returns the extracted
// PageRecords in BFS discovery order. Individual fetch failures and
// too-short pages are skipped silently; cancellation stops the crawl and
// returns whatever was accumulated so far. The error return is reserved
// for a seed URL that cannot even be parsed.
func (s *Scheduler) Crawl(ctx context.Context, seedURL string) ([]models.PageRecord, error) {
	origin, err := urlutil.BaseOf(seedURL)
	if err != nil {
		return nil, err
	}
	root, ok := urlutil.Normalize(seedURL, seedURL)
	if !ok {
		return nil, fmt.Errorf("invalid seed url %q", seedURL)
	}

	var robots *robotsGate
	if s.cfg.RespectRobots {
		robots = s.fetcher.fetchRobots(ctx, origin)
	}

	visited := make(map[string]bool)
	queued := map[string]bool{root: true}
	frontier := []string{root}
	var records []models.PageRecord

	logger.Info("Crawl started",
		zap.String("seed", root),
		zap.String("origin", origin),
		zap.Int("max_pages", s.cfg.MaxPages),
	)

	fetches := 0
	for len(frontier) > 0 && len(visited) < s.cfg.MaxPages {
		select {
		case <-ctx.Done():
			logger.Warn("Crawl cancelled",
				zap.String("seed", root),
				zap.Int("pages", len(records)),
				zap.Error(ctx.Err()),
			)
			return records, nil
		default:
		}

		current := frontier[0]
		frontier = frontier[1:]
		if visited[current] {
			continue
		}
		visited[current] = true

		if u, err := url.Parse(current); err == nil && !robots.allowed(u.Path) {
			logger.Debug("Skipping robots-disallowed URL", zap.String("url", current))
			continue
		}

		if fetches > 0 {
			select {
			case <-time.After(s.cfg.PolitenessDelay):
			case <-ctx.Done():
				return records, nil
			}
		}
		fetches++

		isSeed := len(visited) == 1
		result, err := s.fetchPage(ctx, current, isSeed)
		if err != nil {
			logger.Warn("Page fetch failed, skipping",
				zap.String("url", current),
				zap.Error(err),
			)
			continue
		}

		page, err := extract.FromHTML(result.HTML, result.FinalURL, origin)
		if err != nil {
			logger.Warn("Page parse failed, skipping",
				zap.String("url", current),
				zap.Error(err),
			)
			continue
		}

		if len(page.Content) > extract.MinContentLength {
			records = append(records, models.PageRecord{
				URL:     current,
				Title:   page.Title,
				Content: page.Content,
			})
		} else {
			logger.Debug("Page content too short, dropped", zap.String("url", current))
		}

		for _, link := range page.Links {
			if !visited[link] && !queued[link] {
				queued[link] = true
				frontier = append(frontier, link)
			}
		}
	}

	logger.Info("Crawl finished",
		zap.String("seed", root),
		zap.Int("visited", len(visited)),
		zap.Int("pages", len(records)),
	)

	return records, nil
}

// fetchPage applies the dual-strategy fetch policy: the seed page goes
// through the headless renderer (so links on script-driven pages are
// discoverable), every other page uses the static fetch. A render failure
// degrades the seed to a static fetch rather than failing the crawl.
func (s *Scheduler) fetchPage(ctx context.Context, pageURL string, isSeed bool) (*FetchResult, error) {
	if isSeed && s.renderer != nil {
		result, err := s.renderer.Render(ctx, pageURL)
		if err == nil {
			return result, nil
		}
		logger.Warn("Rendered fetch failed, falling back to static",
			zap.String("url", pageURL),
			zap.Error(err),
		)
		metrics.RenderFallbacks.Inc()
	}
	return s.fetcher.Fetch(ctx, pageURL)
}
