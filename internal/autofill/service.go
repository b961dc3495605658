// Package autofill orchestrates the listing pipeline: fetch, extract,
// enrich, estimate. It is deliberately error-free at the edge; whatever goes
// wrong inside, the caller gets a structurally complete result whose
// unresolved fields are null.
package autofill

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	"piso-search/internal/cache"
	"piso-search/internal/extractor"
	"piso-search/internal/llm"
	"piso-search/internal/models"
	"piso-search/internal/scraper"
)

// DefaultCacheTTL bounds how long a resolved listing is reused without
// re-fetching.
const DefaultCacheTTL = time.Hour

// rentUplift widens the model's conservative maxRent into an asking-price
// estimate.
const rentUplift = 1.1

// Fetcher retrieves listing HTML. Satisfied by scraper.Fetcher and
// scraper.BrowserFetcher.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL, cookieHeader string) (string, error)
}

// Enricher produces LLM-extracted fields. Satisfied by llm.Client.
type Enricher interface {
	Extract(ctx context.Context, in llm.Input) *llm.Extract
}

// MarketEstimator estimates monthly rent from live market report data.
// Satisfied by rentmarket.Lookup.
type MarketEstimator interface {
	EstimateMonthly(ctx context.Context, city string, sqm float64) (int, bool)
}

// StaticEstimator estimates monthly rent from the bundled province dataset.
// Satisfied by rentmarket.Static.
type StaticEstimator interface {
	Estimate(city string, sqm float64) (int, bool)
}

// ListingSink persists resolved listings. Satisfied by db.DB.
type ListingSink interface {
	UpsertListing(url string, r models.ExtractionResult) error
}

// Options configures a Service. Zero-value fields fall back to defaults;
// nil collaborators disable their stage.
type Options struct {
	CacheTTL time.Duration
	// ForceSource set to "site" skips LLM enrichment entirely.
	ForceSource string
}

// Service is the autofill pipeline.
type Service struct {
	extract  *extractor.Extractor
	fetch    Fetcher
	jar      *scraper.CookieJar
	throttle *scraper.Throttle
	enrich   Enricher
	market   MarketEstimator
	static   StaticEstimator
	sink     ListingSink

	cache *cache.Cache[models.ExtractionResult]
	opts  Options
}

// New wires a service. extract, fetch and throttle are required; jar,
// enrich, market, static and sink may be nil.
func New(extract *extractor.Extractor, fetch Fetcher, jar *scraper.CookieJar, throttle *scraper.Throttle,
	enrich Enricher, market MarketEstimator, static StaticEstimator, sink ListingSink, opts Options) *Service {
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	return &Service{
		extract:  extract,
		fetch:    fetch,
		jar:      jar,
		throttle: throttle,
		enrich:   enrich,
		market:   market,
		static:   static,
		sink:     sink,
		cache:    cache.New[models.ExtractionResult](opts.CacheTTL),
		opts:     opts,
	}
}

// AutofillFromURL resolves a listing URL into structured fields. It never
// returns an error: unsupported hosts, fetch failures and extraction misses
// all degrade to a result with null fields.
func (s *Service) AutofillFromURL(ctx context.Context, rawURL, cookieHeader string) models.ExtractionResult {
	rawURL = strings.TrimSpace(rawURL)

	if !validURL(rawURL) {
		slog.Warn("autofill: invalid URL", "url", rawURL)
		return models.Empty(models.SourceSite)
	}

	if cached, ok := s.cache.Get(rawURL); ok {
		slog.Debug("autofill: cache hit", "url", rawURL)
		return cached
	}

	if !supportedHost(rawURL) {
		slog.Info("autofill: unsupported host, skipping fetch", "url", rawURL)
		return models.Empty(models.SourceSite)
	}

	html, err := s.fetchListing(ctx, rawURL, cookieHeader)
	if err != nil {
		slog.Warn("autofill: fetch failed", "url", rawURL, "error", err)
		return models.Empty(models.SourceSite)
	}

	out := s.resolve(ctx, html)

	s.cache.Set(rawURL, out)
	s.persist(rawURL, out)
	return out
}

// ExtractFromHTML runs extraction alone over caller-supplied HTML. No
// fetching, caching, enrichment or persistence happens; useful for offline
// testing against saved pages. Non-listing-site URLs yield an empty result.
func (s *Service) ExtractFromHTML(rawURL, html string) models.ExtractionResult {
	if !supportedHost(rawURL) {
		return models.Empty(models.SourceSite)
	}
	return s.extract.ExtractListing(html)
}

func (s *Service) fetchListing(ctx context.Context, rawURL, cookieHeader string) (string, error) {
	if err := s.throttle.Wait(ctx); err != nil {
		return "", err
	}

	// Caller-supplied cookies win over the bootstrap jar.
	cookies := strings.TrimSpace(cookieHeader)
	if cookies == "" && s.jar != nil {
		cookies = s.jar.ForDomain(ctx, "www.idealista.com")
	}

	html, err := s.fetch.Fetch(ctx, rawURL, cookies)

	var statusErr *scraper.StatusError
	if errors.As(err, &statusErr) && statusErr.StatusCode == 403 && s.jar != nil && cookieHeader == "" {
		// The session was likely flagged. Bootstrap a fresh one and retry
		// once; the extra throttle wait keeps the retry polite.
		s.jar.Clear("www.idealista.com")
		if werr := s.throttle.Wait(ctx); werr != nil {
			return "", werr
		}
		cookies = s.jar.ForDomain(ctx, "www.idealista.com")
		html, err = s.fetch.Fetch(ctx, rawURL, cookies)
	}
	return html, err
}

// resolve runs extraction and then the enrichment ladder: LLM first, live
// market report second, bundled province dataset last.
func (s *Service) resolve(ctx context.Context, html string) models.ExtractionResult {
	out := s.extract.ExtractListing(html)

	if s.canEnrich(out) {
		if got := s.enrich.Extract(ctx, llm.Input{
			City:          *out.City,
			PurchasePrice: *out.BuyPrice,
			FeatureText:   *out.FeatureText,
		}); got != nil {
			mergeLLM(&out, got)
			return out
		}
	}

	s.estimateFromMarket(ctx, &out)
	return out
}

// canEnrich reports whether the LLM stage may run: never with the site-only
// override, and never with insufficient context.
func (s *Service) canEnrich(out models.ExtractionResult) bool {
	if s.opts.ForceSource == "site" || s.enrich == nil {
		return false
	}
	return out.City != nil &&
		out.BuyPrice != nil && *out.BuyPrice > 0 &&
		out.FeatureText != nil && strings.TrimSpace(*out.FeatureText) != ""
}

// mergeLLM overlays the model's fields and attaches the rent estimate. A
// non-null model value replaces the scraped one; nulls keep the scrape.
func mergeLLM(out *models.ExtractionResult, got *llm.Extract) {
	if got.Sqm != nil {
		out.Sqm = got.Sqm
	}
	if got.Rooms != nil {
		out.Rooms = got.Rooms
	}
	if got.Bathrooms != nil {
		out.Bathrooms = got.Bathrooms
	}

	rent := int(math.Round(got.MaxRent * rentUplift))
	out.EstimatedRent = &rent
	out.MonthlyRent = &rent
	out.Source = models.SourceLLM
}

func (s *Service) estimateFromMarket(ctx context.Context, out *models.ExtractionResult) {
	if out.City == nil || out.Sqm == nil {
		return
	}

	if s.market != nil {
		if rent, ok := s.market.EstimateMonthly(ctx, *out.City, *out.Sqm); ok {
			out.EstimatedRent = &rent
			out.MonthlyRent = &rent
			return
		}
	}
	if s.static != nil {
		if rent, ok := s.static.Estimate(*out.City, *out.Sqm); ok {
			out.EstimatedRent = &rent
			out.MonthlyRent = &rent
		}
	}
}

func (s *Service) persist(rawURL string, r models.ExtractionResult) {
	if s.sink == nil {
		return
	}
	if err := s.sink.UpsertListing(rawURL, r); err != nil {
		slog.Warn("autofill: persist failed", "url", rawURL, "error", err)
	}
}

func validURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func supportedHost(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && strings.Contains(u.Hostname(), "idealista.com")
}
