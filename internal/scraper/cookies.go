package scraper

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"
)

// cookieTTL is how long bootstrapped cookies are reused before a fresh
// bootstrap. Session cookies usually live longer; renewing early is cheap.
const cookieTTL = 30 * time.Minute

type cookieEntry struct {
	header     string
	obtainedAt time.Time
}

// CookieJar caches a Cookie header per domain. On a miss it bootstraps by
// issuing a plain GET to the domain root and collecting Set-Cookie pairs.
// Bootstrap failure yields an empty header, never an error: callers proceed
// cookie-less.
type CookieJar struct {
	mu      sync.Mutex
	entries map[string]cookieEntry
	ttl     time.Duration
	client  *http.Client
	now     func() time.Time
}

// NewCookieJar creates a jar with the default TTL.
func NewCookieJar() *CookieJar {
	return &CookieJar{
		entries: make(map[string]cookieEntry),
		ttl:     cookieTTL,
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		now: time.Now,
	}
}

// ForDomain returns a "name=value; name=value" Cookie header for domain,
// bootstrapping if the cached entry is missing or stale.
func (j *CookieJar) ForDomain(ctx context.Context, domain string) string {
	j.mu.Lock()
	entry, ok := j.entries[domain]
	j.mu.Unlock()

	if ok && j.now().Sub(entry.obtainedAt) < j.ttl {
		slog.Debug("cookie jar: cached cookies", "domain", domain)
		return entry.header
	}

	header := j.bootstrap(ctx, domain)
	if header != "" {
		j.mu.Lock()
		j.entries[domain] = cookieEntry{header: header, obtainedAt: j.now()}
		j.mu.Unlock()
	}
	return header
}

// Clear drops the cached cookies for a domain, forcing a fresh bootstrap on
// the next call. Useful when the site starts rejecting the session.
func (j *CookieJar) Clear(domain string) {
	j.mu.Lock()
	delete(j.entries, domain)
	j.mu.Unlock()
}

func (j *CookieJar) bootstrap(ctx context.Context, domain string) string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+domain+"/", nil)
	if err != nil {
		return ""
	}
	req.Header.Set("User-Agent", defaultUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "es-ES,es;q=0.9")

	resp, err := j.client.Do(req)
	if err != nil {
		slog.Warn("cookie jar: bootstrap failed", "domain", domain, "error", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("cookie jar: bootstrap rejected", "domain", domain, "status", resp.StatusCode)
		return ""
	}

	header := joinSetCookies(resp.Header.Values("Set-Cookie"))
	if header == "" {
		slog.Warn("cookie jar: no cookies in bootstrap response", "domain", domain)
		return ""
	}
	slog.Info("cookie jar: bootstrapped", "domain", domain, "cookies", strings.Count(header, ";")+1)
	return header
}

// joinSetCookies keeps the name=value part of each Set-Cookie header and
// drops attributes (Path, Expires, ...).
func joinSetCookies(headers []string) string {
	var pairs []string
	for _, h := range headers {
		pair, _, _ := strings.Cut(h, ";")
		name, value, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(name) == "" {
			continue
		}
		pairs = append(pairs, strings.TrimSpace(name)+"="+value)
	}
	return strings.Join(pairs, "; ")
}
