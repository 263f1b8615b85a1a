// Package extract turns raw page HTML into a flat text blob and the set of
// in-domain links found on the page. Extraction is multi-signal: meta tags,
// headings, paragraphs, list items, container text, accessibility attributes
// and JSON-LD structured data all contribute fragments, with a per-category
// minimum length to keep navigation chrome and other noise out.
package extract

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/sitebot/backend/internal/urlutil"
)

// MinContentLength is the smallest content blob worth keeping; shorter
// pages are treated as noise and dropped by the caller.
const MinContentLength = 50

// minFragments is the threshold below which the whole body text is
// appended as a last-resort fragment.
const minFragments = 5

const jsonLDMaxDepth = 5

var whitespaceRE = regexp.MustCompile(`\s+`)

// Page is the extractor's output for a single fetched document.
type Page struct {
	URL     string
	Title   string
	Content string
	Links   []string
}

// FromHTML parses rawHTML and extracts the page's text content and its
// in-domain outbound links. pageURL is the address the document was fetched
// from (used to resolve relative hrefs); origin bounds link discovery.
func FromHTML(rawHTML, pageURL, origin string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, err
	}

	// Links and JSON-LD are read from the original tree: anchors are never
	// stripped, but the script removal below would take JSON-LD with it.
	links := collectLinks(doc, pageURL, origin)
	jsonLD := collectJSONLD(doc)
	title := extractTitle(doc)

	doc.Find("script, style, noscript, iframe, svg, canvas").Remove()

	var fragments []string
	add := func(text string, minLen int) {
		text = collapse(text)
		if len(text) > minLen {
			fragments = append(fragments, text)
		}
	}

	// Meta signals first: they are the page author's own summary.
	metaDesc := metaContent(doc, `meta[name="description"]`)
	add(metaDesc, 0)
	if ogDesc := metaContent(doc, `meta[property="og:description"]`); collapse(ogDesc) != collapse(metaDesc) {
		add(ogDesc, 0)
	}
	add(metaContent(doc, `meta[property="og:title"]`), 0)
	add(metaContent(doc, `meta[name="keywords"]`), 0)

	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		add(s.Text(), 2)
	})
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		add(s.Text(), 10)
	})
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		add(s.Text(), 10)
	})

	// Only the containers' own text nodes: descendant paragraphs and
	// headings were already captured above.
	doc.Find("div, span, section, article, aside, main").Each(func(_ int, s *goquery.Selection) {
		add(directText(s), 15)
	})

	doc.Find("[alt], [title], [aria-label]").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"alt", "title", "aria-label"} {
			if v, ok := s.Attr(attr); ok {
				add(v, 3)
			}
		}
	})

	for _, v := range jsonLD {
		add(v, 10)
	}

	if len(fragments) < minFragments {
		add(doc.Find("body").Text(), 0)
	}

	content := collapse(strings.Join(dedupe(fragments), " "))

	return &Page{
		URL:     pageURL,
		Title:   title,
		Content: content,
		Links:   links,
	}, nil
}

func extractTitle(doc *goquery.Document) string {
	title := strings.TrimSpace(doc.Find("title").First().Text())
	if title == "" {
		title = strings.TrimSpace(doc.Find("h1").First().Text())
	}
	if title == "" {
		title = "Untitled"
	}
	return collapse(title)
}

func metaContent(doc *goquery.Document, selector string) string {
	content, _ := doc.Find(selector).First().Attr("content")
	return content
}

// directText returns the concatenation of the selection's own text-node
// children, skipping nested elements.
func directText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				b.WriteString(child.Data)
				b.WriteString(" ")
			}
		}
	}
	return b.String()
}

func collectLinks(doc *goquery.Document, pageURL, origin string) []string {
	seen := make(map[string]bool)
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !urlutil.IsInDomain(href, pageURL, origin) {
			return
		}
		normalized, ok := urlutil.Normalize(href, pageURL)
		if !ok || seen[normalized] {
			return
		}
		seen[normalized] = true
		links = append(links, normalized)
	})

	return links
}

// collectJSONLD gathers string leaves from ld+json script blocks, walking
// at most jsonLDMaxDepth levels deep.
func collectJSONLD(doc *goquery.Document) []string {
	var out []string
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		var data interface{}
		if err := json.Unmarshal([]byte(s.Text()), &data); err != nil {
			return
		}
		walkJSONLD(data, 0, &out)
	})
	return out
}

func walkJSONLD(v interface{}, depth int, out *[]string) {
	if depth > jsonLDMaxDepth {
		return
	}
	switch val := v.(type) {
	case string:
		*out = append(*out, val)
	case []interface{}:
		for _, item := range val {
			walkJSONLD(item, depth+1, out)
		}
	case map[string]interface{}:
		for _, item := range val {
			walkJSONLD(item, depth+1, out)
		}
	}
}

func dedupe(fragments []string) []string {
	seen := make(map[string]bool, len(fragments))
	out := fragments[:0]
	for _, f := range fragments {
		if seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}
	return out
}

func collapse(text string) string {
	return strings.TrimSpace(whitespaceRE.ReplaceAllString(text, " "))
}
