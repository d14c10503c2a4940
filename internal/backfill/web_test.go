package backfill

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDuckDuckGoSearch(t *testing.T) {
	var gotQuery, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		gotUA = r.Header.Get("User-Agent")
		redirect := "//duckduckgo.com/l/?uddg=" + url.QueryEscape("https://acme.example/about") + "&amp;rut=x"
		fmt.Fprintf(w, `<html><body>
			<div class="result"><a class="result__a" href="%s">Acme</a></div>
			<div class="result"><a class="result__a" href="https://www.crunchbase.com/organization/acme">CB</a></div>
			<div class="result"><a class="result__a" href="https://www.linkedin.com/company/acme">LI</a></div>
			<div class="result"><a class="result__a" href="https://news.example/acme">News</a></div>
			<div class="result"><a class="result__a" href="https://news.example/acme">Dup</a></div>
			<div class="result"><a class="result__a" href="/relative">Rel</a></div>
			<a href="https://ignored.example/">not a result</a>
		</body></html>`, redirect)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5 * time.Second)
	d.BaseURL = srv.URL + "/html/"

	urls, err := d.Search(context.Background(), SearchQuery("acme", "Toronto"))
	require.NoError(t, err)

	assert.Equal(t, "acme Toronto founded date", gotQuery)
	assert.Contains(t, gotUA, "Mozilla/5.0")
	assert.Equal(t, []string{"https://acme.example/about", "https://news.example/acme"}, urls)
}

func TestDuckDuckGoLimitsResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for i := 0; i < 30; i++ {
			fmt.Fprintf(w, `<a class="result__a" href="https://site%d.example/">r</a>`, i)
		}
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5 * time.Second)
	d.BaseURL = srv.URL
	urls, err := d.Search(context.Background(), "q")
	require.NoError(t, err)
	assert.Len(t, urls, 15)
}

func TestDuckDuckGoBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(5 * time.Second)
	d.BaseURL = srv.URL
	_, err := d.Search(context.Background(), "q")
	assert.Error(t, err)
}

func TestPageScraperFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `<html><head><style>body{}</style><script>var x = 1;</script></head>
			<body><h1>Acme</h1>
			<p>Founded in   2014
			in Toronto.</p></body></html>`)
	}))
	defer srv.Close()

	p := NewPageScraper(5 * time.Second)
	text, err := p.Fetch(context.Background(), srv.URL+"/about")
	require.NoError(t, err)
	assert.Equal(t, "Acme Founded in 2014 in Toronto.", text)

	_, err = p.Fetch(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "héll", truncateRunes("héllo", 4))
	assert.Equal(t, "hi", truncateRunes("hi", 4))
}

func TestGeminiExtract(t *testing.T) {
	var gotKey, gotPath string
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-goog-api-key")
		gotPath = r.URL.Path
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		io.WriteString(w, `{"candidates":[{"content":{"parts":[{"text":" 2014-03-05\n"}]}}]}`)
	}))
	defer srv.Close()

	g, err := NewGeminiExtractor(GeminiConfig{APIKey: "k1", Model: "test-model", BaseURL: srv.URL})
	require.NoError(t, err)

	got, err := g.Extract(context.Background(), "acme", "Toronto", []string{"page one", "page two"})
	require.NoError(t, err)

	assert.Equal(t, "2014-03-05", got)
	assert.Equal(t, "k1", gotKey)
	assert.Equal(t, "/v1beta/models/test-model:generateContent", gotPath)
	require.Len(t, gotReq.Contents, 1)
	prompt := gotReq.Contents[0].Parts[0].Text
	assert.Contains(t, prompt, "acme in Toronto")
	assert.Contains(t, prompt, "page one\n\npage two")
}

func TestGeminiErrors(t *testing.T) {
	_, err := NewGeminiExtractor(GeminiConfig{})
	assert.Error(t, err, "api key required")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"API key not valid"}}`)
	}))
	defer srv.Close()

	g, err := NewGeminiExtractor(GeminiConfig{APIKey: "bad", BaseURL: srv.URL})
	require.NoError(t, err)
	_, err = g.Extract(context.Background(), "acme", "Toronto", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}

type fakeSearcher struct {
	urls []string
	err  error
}

func (f fakeSearcher) Search(context.Context, string) ([]string, error) { return f.urls, f.err }

type fakeFetcher map[string]string

func (f fakeFetcher) Fetch(_ context.Context, u string) (string, error) {
	text, ok := f[u]
	if !ok {
		return "", errors.New("boom")
	}
	return text, nil
}

type fakeExtractor struct {
	got  []string
	out  string
	err  error
	call int
}

func (f *fakeExtractor) Extract(_ context.Context, _, _ string, texts []string) (string, error) {
	f.call++
	f.got = texts
	return f.out, f.err
}

func TestWebLookup(t *testing.T) {
	pages := fakeFetcher{
		"https://a": strings.Repeat("a", 3000),
		"https://c": "",
		"https://d": "founded 2014",
	}
	ext := &fakeExtractor{out: "2014"}
	w := NewWebLookup(fakeSearcher{urls: []string{"https://a", "https://b", "https://c", "https://d"}}, pages, ext, nil)

	got, err := w.Lookup(context.Background(), "acme", "Toronto")
	require.NoError(t, err)
	assert.Equal(t, "2014", got)
	require.Len(t, ext.got, 2, "failed and empty pages are skipped")
	assert.Len(t, ext.got[0], 2000)
	assert.Equal(t, "founded 2014", ext.got[1])
}

func TestWebLookupMaxPages(t *testing.T) {
	pages := fakeFetcher{}
	var urls []string
	for i := 0; i < 15; i++ {
		u := fmt.Sprintf("https://p%d", i)
		urls = append(urls, u)
		pages[u] = "text"
	}
	ext := &fakeExtractor{out: "2014-01-01"}
	w := NewWebLookup(fakeSearcher{urls: urls}, pages, ext, nil)

	_, err := w.Lookup(context.Background(), "acme", "Toronto")
	require.NoError(t, err)
	assert.Len(t, ext.got, 10)
}

func TestWebLookupNotFoundAndFailure(t *testing.T) {
	ext := &fakeExtractor{out: "2014"}

	_, err := NewWebLookup(fakeSearcher{err: errors.New("blocked")}, fakeFetcher{}, ext, nil).
		Lookup(context.Background(), "acme", "Toronto")
	assert.ErrorIs(t, err, ErrNotFound, "search failure")

	_, err = NewWebLookup(fakeSearcher{urls: []string{"https://x"}}, fakeFetcher{}, ext, nil).
		Lookup(context.Background(), "acme", "Toronto")
	assert.ErrorIs(t, err, ErrNotFound, "nothing scraped")
	assert.Equal(t, 0, ext.call)

	failing := &fakeExtractor{err: errors.New("quota")}
	_, err = NewWebLookup(fakeSearcher{urls: []string{"https://x"}}, fakeFetcher{"https://x": "t"}, failing, nil).
		Lookup(context.Background(), "acme", "Toronto")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
