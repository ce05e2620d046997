package source

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// userAgent is sent with every request; ParlInfo rejects default Go clients.
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// maxDocumentBytes bounds a single download.
const maxDocumentBytes = 64 << 20

// StatusError is returned for any non-200 response.
type StatusError struct {
	URL        string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	return fmt.Sprintf("fetch %s: status %d: %s", e.URL, e.StatusCode, msg)
}

// RateLimited reports whether the server refused the request for pacing
// reasons rather than because the document is missing.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusForbidden || e.StatusCode == http.StatusTooManyRequests
}

// Fetcher downloads transcripts and index pages over HTTP. It makes a
// single attempt per call; retry policy belongs to the caller.
type Fetcher struct {
	httpClient *http.Client
}

func NewFetcher() *Fetcher {
	return &Fetcher{
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Fetch returns the body of rawURL.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Message: string(respBody)}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil {
		return "", fmt.Errorf("read %s: %w", rawURL, err)
	}
	return string(body), nil
}

// FetchIndex downloads and parses one sitting index page.
func (f *Fetcher) FetchIndex(ctx context.Context, pageURL string) (IndexPage, error) {
	body, err := f.Fetch(ctx, pageURL)
	if err != nil {
		return IndexPage{}, err
	}
	return ParseSittingIndex(strings.NewReader(body), pageURL)
}

// Crawl walks index pages backwards through "previous sitting week" links
// from startURL and returns every listing dated on or after since. It stops
// at the first listing older than since, at a page without a previous link,
// or at a page already visited. A final transcript is preferred over a
// proof of the same sitting.
func (f *Fetcher) Crawl(ctx context.Context, startURL string, since time.Time) (map[string]Listing, error) {
	out := make(map[string]Listing)
	visited := make(map[string]bool)

	for next := startURL; next != "" && !visited[next]; {
		visited[next] = true
		page, err := f.FetchIndex(ctx, next)
		if err != nil {
			return out, err
		}
		for _, l := range page.Listings {
			if l.Date.Before(since) {
				return out, nil
			}
			if prev, ok := out[l.Name]; ok && !prev.Proof && l.Proof {
				continue
			}
			out[l.Name] = l
		}
		next = page.Previous
	}
	return out, nil
}
