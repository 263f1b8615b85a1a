// Package scan owns the website scan operation: it validates the seed URL,
// keeps one Website record per (owner, url), runs the crawl as a cancellable
// background task under a wall-clock budget, and writes the status
// transitions pending -> scanning -> completed|failed through the store.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sitebot/backend/internal/crawler"
	"github.com/sitebot/backend/internal/metrics"
	"github.com/sitebot/backend/internal/storage"
	"github.com/sitebot/backend/internal/storage/models"
	"github.com/sitebot/backend/internal/urlutil"
	"github.com/sitebot/backend/pkg/logger"
)

// ErrInvalidURL rejects a scan request before any network activity.
var ErrInvalidURL = errors.New("invalid website url")

type Service struct {
	store     storage.Store
	scheduler *crawler.Scheduler
	budget    time.Duration

	mu       sync.Mutex
	inFlight map[string]bool
}

// NewService builds a scan Service. budget bounds one whole crawl; 0 means
// a 5 minute default.
func NewService(store storage.Store, scheduler *crawler.Scheduler, budget time.Duration) *Service {
	if budget <= 0 {
		budget = 5 * time.Minute
	}
	return &Service{
		store:     store,
		scheduler: scheduler,
		budget:    budget,
		inFlight:  make(map[string]bool),
	}
}

// Scan starts (or restarts) a scan of rawURL for ownerID and returns the
// Website record in its current state; the crawl itself runs in the
// background and the client polls for status. Resubmitting a URL reuses the
// existing record. While a scan for the same Website is in flight a second
// request is a no-op returning the current state.
func (s *Service) Scan(ctx context.Context, ownerID, rawURL string) (*models.Website, error) {
	if _, err := urlutil.BaseOf(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	website, err := s.store.GetWebsiteByOwnerAndURL(ctx, ownerID, rawURL)
	if errors.Is(err, storage.ErrNotFound) {
		website = &models.Website{
			ID:           uuid.New().String(),
			OwnerID:      ownerID,
			URL:          rawURL,
			Status:       models.StatusPending,
			PagesScanned: []string{},
			Content:      []models.PageRecord{},
			CreatedAt:    time.Now(),
			UpdatedAt:    time.Now(),
		}
		if err := s.store.CreateWebsite(ctx, website); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.inFlight[website.ID] {
		s.mu.Unlock()
		logger.Debug("Scan already in flight, returning current state",
			zap.String("website_id", website.ID),
		)
		return website, nil
	}
	s.inFlight[website.ID] = true
	s.mu.Unlock()

	website.Status = models.StatusScanning
	if err := s.store.UpdateWebsite(ctx, website); err != nil {
		s.release(website.ID)
		return nil, err
	}

	// The crawl goroutine gets its own copy; the record returned to the
	// caller is a snapshot that is never written again.
	crawl := *website
	crawl.PagesScanned = append([]string(nil), website.PagesScanned...)
	crawl.Content = append([]models.PageRecord(nil), website.Content...)
	go s.run(&crawl)

	return website, nil
}

// run executes one crawl to completion. Never propagates: every failure
// mode, panics included, resolves to status=failed on the Website.
func (s *Service) run(website *models.Website) {
	defer s.release(website.ID)

	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), s.budget)
	defer cancel()

	var records []models.PageRecord
	err := func() (crawlErr error) {
		defer func() {
			if r := recover(); r != nil {
				crawlErr = fmt.Errorf("crawl panicked: %v", r)
			}
		}()
		records, crawlErr = s.scheduler.Crawl(ctx, website.URL)
		return
	}()

	if err != nil {
		logger.Error("Crawl failed",
			zap.String("website_id", website.ID),
			zap.String("url", website.URL),
			zap.Error(err),
		)
	}

	if err != nil || len(records) == 0 {
		website.Status = models.StatusFailed
		website.PagesScanned = []string{}
		website.Content = []models.PageRecord{}
	} else {
		pages := make([]string, 0, len(records))
		for _, r := range records {
			pages = append(pages, r.URL)
		}
		website.Status = models.StatusCompleted
		website.PagesScanned = pages
		website.Content = records
	}

	if updateErr := s.store.UpdateWebsite(context.Background(), website); updateErr != nil {
		logger.Error("Failed to persist scan outcome",
			zap.String("website_id", website.ID),
			zap.Error(updateErr),
		)
		return
	}

	metrics.ScansTotal.WithLabelValues(website.Status).Inc()
	metrics.ScanDuration.Observe(time.Since(start).Seconds())
	metrics.PagesCrawled.Observe(float64(len(records)))

	logger.Info("Scan finished",
		zap.String("website_id", website.ID),
		zap.String("url", website.URL),
		zap.String("status", website.Status),
		zap.Int("pages", len(records)),
		zap.Duration("elapsed", time.Since(start)),
	)
}

func (s *Service) release(websiteID string) {
	s.mu.Lock()
	delete(s.inFlight, websiteID)
	s.mu.Unlock()
}
