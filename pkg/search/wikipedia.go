package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

// Page is a Wikipedia article title with its introduction.
type Page struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

// Wikipedia looks up articles through the MediaWiki API.
type Wikipedia struct {
	opts options
}

// NewWikipedia creates a Wikipedia client. The default number of pages is 3.
func NewWikipedia(opts ...Option) *Wikipedia {
	o := defaultOptions()
	o.maxResults = 3
	for _, opt := range opts {
		opt(&o)
	}
	if o.baseURL == "" {
		o.baseURL = fmt.Sprintf("https://%s.wikipedia.org/w/api.php", o.lang)
	}
	return &Wikipedia{opts: o}
}

// Lookup searches for query and returns the introduction of each top hit.
// Hits without an extract are skipped.
func (w *Wikipedia) Lookup(ctx context.Context, query string) ([]Page, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	titles, err := w.search(ctx, query)
	if err != nil {
		return nil, err
	}
	pages := make([]Page, 0, len(titles))
	for _, title := range titles {
		summary, err := w.extract(ctx, title)
		if err != nil {
			return nil, err
		}
		if summary == "" {
			continue
		}
		pages = append(pages, Page{Title: title, Summary: summary})
	}
	return pages, nil
}

func (w *Wikipedia) search(ctx context.Context, query string) ([]string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", fmt.Sprint(w.opts.maxResults))
	params.Set("format", "json")
	params.Set("utf8", "1")

	body, err := get(ctx, w.opts, w.opts.baseURL+"?"+params.Encode(), "application/json")
	if err != nil {
		return nil, fmt.Errorf("wikipedia search: %w", err)
	}
	var root struct {
		Query struct {
			Search []struct {
				Title  string `json:"title"`
				PageID int    `json:"pageid"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return nil, fmt.Errorf("wikipedia search: invalid JSON: %w", err)
	}
	titles := make([]string, 0, len(root.Query.Search))
	for _, s := range root.Query.Search {
		titles = append(titles, s.Title)
	}
	return titles, nil
}

func (w *Wikipedia) extract(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("redirects", "1")
	params.Set("titles", title)
	params.Set("format", "json")

	body, err := get(ctx, w.opts, w.opts.baseURL+"?"+params.Encode(), "application/json")
	if err != nil {
		return "", fmt.Errorf("wikipedia extract %q: %w", title, err)
	}
	var root struct {
		Query struct {
			Pages map[string]struct {
				Title   string `json:"title"`
				Extract string `json:"extract"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := json.Unmarshal(body, &root); err != nil {
		return "", fmt.Errorf("wikipedia extract %q: invalid JSON: %w", title, err)
	}
	for _, p := range root.Query.Pages {
		return strings.TrimSpace(p.Extract), nil
	}
	return "", nil
}
