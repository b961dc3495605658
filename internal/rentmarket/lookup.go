package rentmarket

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"

	"piso-search/internal/extractor"
	"piso-search/internal/scraper"
	"piso-search/internal/territory"
)

const (
	reportDomain  = "www.idealista.com"
	reportBaseURL = "https://www.idealista.com/sala-de-prensa/informes-precio-vivienda/alquiler"

	// Slug conventions are guessed, so a lookup tries a few combinations.
	// Caps keep a miss from burning the whole request budget.
	maxProvinceSlugs = 3
	maxCitySlugs     = 3
)

// PageFetcher retrieves a URL's HTML. Satisfied by scraper.Fetcher.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL, cookieHeader string) (string, error)
}

// Lookup resolves a municipality's €/m² rent from idealista's public price
// report pages, caching successes in the durable store.
type Lookup struct {
	gaz      *territory.Index
	store    *Store
	fetch    PageFetcher
	jar      *scraper.CookieJar
	throttle *scraper.Throttle
}

// NewLookup wires a lookup. jar may be nil; report pages usually render
// without a session.
func NewLookup(gaz *territory.Index, store *Store, fetch PageFetcher, jar *scraper.CookieJar, throttle *scraper.Throttle) *Lookup {
	return &Lookup{gaz: gaz, store: store, fetch: fetch, jar: jar, throttle: throttle}
}

// RentPerSqm returns the €/m² monthly rent for a city. The store is
// consulted first; on a miss the report pages are probed, and the first hit
// is persisted. Returns false when the city is unknown or every slug
// combination fails.
func (l *Lookup) RentPerSqm(ctx context.Context, city string) (float64, bool) {
	info, ok := l.gaz.CityInfo(city)
	if !ok {
		slog.Debug("rent market: unknown city", "city", city)
		return 0, false
	}

	key := Key(info.RegionCode, info.ProvinceCode, territory.Normalize(info.Name))
	if e, ok := l.store.Get(key); ok {
		slog.Debug("rent market: store hit", "key", key, "eur_per_sqm", e.RentPerSqm)
		return e.RentPerSqm, true
	}

	regionName, ok := l.gaz.RegionName(info.RegionCode)
	if !ok {
		return 0, false
	}
	provinceName, ok := l.gaz.ProvinceName(info.ProvinceCode)
	if !ok {
		return 0, false
	}

	communitySlug := CommunitySlug(info.RegionCode, regionName)
	provinceSlugs := cap3(ProvinceSlugCandidates(provinceName), maxProvinceSlugs)
	citySlugs := cap3(CitySlugCandidates(info.Name), maxCitySlugs)

	for _, provinceSlug := range provinceSlugs {
		for _, citySlug := range citySlugs {
			url := reportBaseURL + "/" + communitySlug + "/" + provinceSlug + "/" + citySlug + "/"

			price, ok := l.fetchReport(ctx, url)
			if !ok {
				continue
			}

			l.store.Put(Entry{
				Key:           key,
				RegionCode:    info.RegionCode,
				ProvinceCode:  info.ProvinceCode,
				City:          info.Name,
				CommunitySlug: communitySlug,
				ProvinceSlug:  provinceSlug,
				CitySlug:      citySlug,
				RentPerSqm:    price,
				FetchedAt:     time.Now(),
				SourceURL:     url,
			})
			slog.Info("rent market: resolved", "city", info.Name, "eur_per_sqm", price, "url", url)
			return price, true
		}
	}

	slog.Warn("rent market: no report page found", "city", info.Name,
		"community", communitySlug, "province_slugs", strings.Join(provinceSlugs, ","))
	return 0, false
}

// EstimateMonthly returns a rounded monthly rent for a city and surface.
func (l *Lookup) EstimateMonthly(ctx context.Context, city string, sqm float64) (int, bool) {
	if sqm <= 0 {
		return 0, false
	}
	perSqm, ok := l.RentPerSqm(ctx, city)
	if !ok {
		return 0, false
	}
	return int(math.Round(sqm * perSqm)), true
}

func (l *Lookup) fetchReport(ctx context.Context, url string) (float64, bool) {
	if l.throttle != nil {
		if err := l.throttle.Wait(ctx); err != nil {
			return 0, false
		}
	}

	var cookies string
	if l.jar != nil {
		cookies = l.jar.ForDomain(ctx, reportDomain)
	}

	html, err := l.fetch.Fetch(ctx, url, cookies)
	if err != nil {
		slog.Debug("rent market: report fetch failed", "url", url, "error", err)
		return 0, false
	}
	return extractor.ExtractRentPerSqm(html)
}

func cap3(slugs []string, n int) []string {
	if len(slugs) > n {
		return slugs[:n]
	}
	return slugs
}
