package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
	"go.uber.org/zap"

	"github.com/sitebot/backend/pkg/circuitbreaker"
	"github.com/sitebot/backend/pkg/logger"
)

// Renderer fetches a page through a headless browser so that
// JavaScript-driven markup and links are visible to the extractor.
// Implementations must be safe for concurrent use.
type Renderer interface {
	Render(ctx context.Context, pageURL string) (*FetchResult, error)
	Close() error
}

// RodRenderer renders pages in a shared headless Chrome instance. The
// browser is launched lazily on first use and torn down on Close; a
// semaphore bounds how many pages render at once, and a circuit breaker
// stops paying the browser cost when it keeps failing (callers degrade to
// static fetches).
type RodRenderer struct {
	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher

	slots      chan struct{}
	navTimeout time.Duration
	grace      time.Duration
	breaker    *circuitbreaker.CircuitBreaker
	closed     bool
}

func NewRodRenderer(poolSize int, navTimeout, grace time.Duration) *RodRenderer {
	if poolSize <= 0 {
		poolSize = 2
	}
	if navTimeout <= 0 {
		navTimeout = 30 * time.Second
	}
	if grace <= 0 {
		grace = 2 * time.Second
	}

	return &RodRenderer{
		slots:      make(chan struct{}, poolSize),
		navTimeout: navTimeout,
		grace:      grace,
		breaker: circuitbreaker.NewCircuitBreaker("renderer", circuitbreaker.Config{
			FailureThreshold: 3,
			SuccessThreshold: 1,
			Timeout:          2 * time.Minute,
		}),
	}
}

func (r *RodRenderer) Render(ctx context.Context, pageURL string) (*FetchResult, error) {
	select {
	case r.slots <- struct{}{}:
		defer func() { <-r.slots }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	var result *FetchResult
	err := r.breaker.Execute(ctx, func() error {
		var renderErr error
		result, renderErr = r.render(ctx, pageURL)
		return renderErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *RodRenderer) render(ctx context.Context, pageURL string) (*FetchResult, error) {
	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	page, err := stealth.Page(browser)
	if err != nil {
		return nil, fmt.Errorf("failed to create page: %w", err)
	}
	defer page.Close()

	navCtx, cancel := context.WithTimeout(ctx, r.navTimeout)
	defer cancel()
	page = page.Context(navCtx)

	if err := page.Navigate(pageURL); err != nil {
		return nil, fmt.Errorf("failed to navigate to %s: %w", pageURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		logger.Warn("Render wait-load timed out", zap.String("url", pageURL), zap.Error(err))
	}

	// Fixed grace period so client-side rendering can finish after load.
	select {
	case <-time.After(r.grace):
	case <-navCtx.Done():
		return nil, navCtx.Err()
	}

	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, fmt.Errorf("failed to read rendered DOM: %w", err)
	}

	finalURL := pageURL
	if info, err := page.Info(); err == nil && info.URL != "" {
		finalURL = info.URL
	}

	return &FetchResult{
		HTML:     res.Value.Str(),
		FinalURL: finalURL,
	}, nil
}

func (r *RodRenderer) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("renderer is closed")
	}
	if r.browser != nil {
		return r.browser, nil
	}

	lnch := launcher.New().
		Headless(true).
		Set("disable-blink-features", "AutomationControlled")

	controlURL, err := lnch.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		lnch.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	logger.Info("Headless browser launched", zap.String("control_url", controlURL))

	r.lnch = lnch
	r.browser = browser
	return browser, nil
}

func (r *RodRenderer) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	if r.browser != nil {
		r.browser.Close()
		r.browser = nil
	}
	if r.lnch != nil {
		r.lnch.Cleanup()
		r.lnch = nil
	}
	return nil
}
