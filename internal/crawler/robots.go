package crawler

import (
	"context"
	"net/http"

	"github.com/temoto/robotstxt"
	"go.uber.org/zap"

	"github.com/sitebot/backend/pkg/logger"
)

// robotsGate answers whether a path may be crawled. A nil gate allows
// everything, which is also the posture when robots.txt cannot be fetched:
// an unreachable robots file never blocks a scan the site owner requested.
type robotsGate struct {
	group *robotstxt.Group
}

func (g *robotsGate) allowed(path string) bool {
	if g == nil || g.group == nil {
		return true
	}
	if path == "" {
		path = "/"
	}
	return g.group.Test(path)
}

// fetchRobots retrieves and parses origin/robots.txt once per crawl.
func (f *Fetcher) fetchRobots(ctx context.Context, origin string) *robotsGate {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		logger.Debug("robots.txt fetch failed", zap.String("origin", origin), zap.Error(err))
		return nil
	}
	defer resp.Body.Close()

	data, err := robotstxt.FromResponse(resp)
	if err != nil {
		logger.Debug("robots.txt parse failed", zap.String("origin", origin), zap.Error(err))
		return nil
	}

	return &robotsGate{group: data.FindGroup(f.userAgent)}
}
