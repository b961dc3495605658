package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36"

// fetchTimeout bounds a single listing or report fetch.
const fetchTimeout = 15 * time.Second

// StatusError is returned when the source site answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %s", e.Status)
}

// Fetcher performs plain HTTP GETs with browser-like headers. It does not
// interpret the body: bot-block and captcha pages come back as ordinary HTML
// and fail silently at the extraction stage.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

// NewFetcher creates a fetcher with the default timeout.
func NewFetcher() *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: fetchTimeout,
		},
		userAgent: defaultUserAgent,
	}
}

// Fetch retrieves rawURL and returns the body as a string. cookieHeader, if
// non-empty, is sent as the Cookie header.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, cookieHeader string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	f.setHeaders(req, rawURL, cookieHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("fetch rejected", "url", rawURL, "status", resp.StatusCode, "body_len", len(body))
		return "", &StatusError{StatusCode: resp.StatusCode, Status: resp.Status}
	}

	if len(body) < 5000 {
		// Real listing pages are large; a tiny body is usually a captcha
		// or block page. Extraction will come up empty.
		slog.Warn("fetch returned short body", "url", rawURL, "body_len", len(body))
	} else {
		slog.Debug("fetch ok", "url", rawURL, "body_len", len(body))
	}

	return string(body), nil
}

func (f *Fetcher) setHeaders(req *http.Request, rawURL, cookieHeader string) {
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-User", "?1")

	if strings.Contains(rawURL, "idealista.com") {
		// Same-origin navigation: a Referer makes the request look like a
		// click from the site itself.
		req.Header.Set("Referer", "https://www.idealista.com/")
		req.Header.Set("Sec-Fetch-Site", "same-origin")
	} else {
		req.Header.Set("Sec-Fetch-Site", "none")
	}

	if c := strings.TrimSpace(cookieHeader); c != "" {
		req.Header.Set("Cookie", c)
	}
}
