package backfill

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const (
	defaultSearchURL  = "https://html.duckduckgo.com/html/"
	defaultUserAgent  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	defaultMaxResults = 15
)

// blockedURLParts filters aggregator and paywalled sites whose pages never
// carried a usable founding date.
var blockedURLParts = []string{
	"imgres?",
	"youtube.com",
	"google.com",
	"crunchbase.com",
	"pitchbook.com",
	"zoominfo",
	"app.dealroom.co",
	"businesswire",
	"dnb",
	"cmaj",
	"accessnewswire",
	"canadagoose",
	"owler",
	"linkedin",
	"duckduckgo.com",
}

// Searcher returns candidate page URLs for a query.
type Searcher interface {
	Search(ctx context.Context, query string) ([]string, error)
}

// DuckDuckGo queries the HTML endpoint of DuckDuckGo, which needs no key.
type DuckDuckGo struct {
	BaseURL    string
	UserAgent  string
	MaxResults int
	Client     *http.Client
}

func NewDuckDuckGo(timeout time.Duration) *DuckDuckGo {
	return &DuckDuckGo{
		BaseURL:    defaultSearchURL,
		UserAgent:  defaultUserAgent,
		MaxResults: defaultMaxResults,
		Client:     &http.Client{Timeout: timeout},
	}
}

func (d *DuckDuckGo) Search(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(d.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse base url: %w", err)
	}
	qv := u.Query()
	qv.Set("q", query)
	u.RawQuery = qv.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: build request: %w", err)
	}
	req.Header.Set("User-Agent", d.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := d.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("duckduckgo: unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("duckduckgo: parse html: %w", err)
	}

	limit := d.MaxResults
	if limit <= 0 {
		limit = defaultMaxResults
	}

	seen := make(map[string]struct{})
	var out []string
	doc.Find("a.result__a, a.result-link").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		href, ok := s.Attr("href")
		if !ok {
			return true
		}
		link := resolveRedirect(href)
		if !usableURL(link) {
			return true
		}
		if _, dup := seen[link]; dup {
			return true
		}
		seen[link] = struct{}{}
		out = append(out, link)
		return len(out) < limit
	})
	return out, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" && strings.HasPrefix(u.Path, "/l/") {
		return target
	}
	return href
}

func usableURL(link string) bool {
	if !strings.HasPrefix(link, "http") {
		return false
	}
	for _, part := range blockedURLParts {
		if strings.Contains(link, part) {
			return false
		}
	}
	return true
}

// SearchQuery is the query sent for a company.
func SearchQuery(companyName, location string) string {
	return companyName + " " + location + " founded date"
}
