package crawler

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Some sites refuse obviously non-browser clients, so fetches present a
// desktop Chrome User-Agent.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxBodyBytes caps how much HTML a single page fetch will read.
const maxBodyBytes = 5 << 20

// FetchResult is the common output shape of both fetch strategies.
type FetchResult struct {
	HTML     string
	FinalURL string
}

// Fetcher retrieves a single page over plain HTTP. A failed fetch is final
// for that URL within a crawl run; there are no per-fetch retries.
type Fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		userAgent: defaultUserAgent,
	}
}

func (f *Fetcher) Fetch(ctx context.Context, pageURL string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s returned status %d", pageURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read body of %s: %w", pageURL, err)
	}

	return &FetchResult{
		HTML:     string(body),
		FinalURL: resp.Request.URL.String(),
	}, nil
}
