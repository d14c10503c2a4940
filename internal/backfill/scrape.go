package backfill

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Fetcher returns the visible text of a web page.
type Fetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

// PageScraper downloads a page and strips it to its text content.
type PageScraper struct {
	UserAgent string
	Client    *http.Client
}

func NewPageScraper(timeout time.Duration) *PageScraper {
	return &PageScraper{
		UserAgent: defaultUserAgent,
		Client:    &http.Client{Timeout: timeout},
	}
}

func (p *PageScraper) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("scrape: build request: %w", err)
	}
	req.Header.Set("User-Agent", p.UserAgent)

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("scrape %s: status %d", pageURL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return "", fmt.Errorf("scrape %s: parse html: %w", pageURL, err)
	}
	doc.Find("script, style, noscript, svg").Remove()

	return strings.Join(strings.Fields(doc.Text()), " "), nil
}

// truncateRunes cuts s to at most n runes.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
