package autofill

import (
	"context"
	"fmt"
	"testing"

	"piso-search/internal/extractor"
	"piso-search/internal/llm"
	"piso-search/internal/models"
	"piso-search/internal/scraper"
	"piso-search/internal/territory"
)

const listingHTML = `<html><head><title>Piso en venta en Calle Mayor, Madrid &#8212; idealista</title></head><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"detail":{"price":150000,"size":80,"rooms":3,"bathrooms":2,"address":{"municipality":"Madrid"}}}}}</script>
<div class="details-property_features"><ul>
<li>80 m² construidos</li>
<li>3 habitaciones</li>
<li>2 baños</li>
</ul></div>
</body></html>`

type fakeFetcher struct {
	html  string
	err   error
	calls int
}

func (f *fakeFetcher) Fetch(_ context.Context, _, _ string) (string, error) {
	f.calls++
	return f.html, f.err
}

type fakeEnricher struct {
	out   *llm.Extract
	calls int
	last  llm.Input
}

func (f *fakeEnricher) Extract(_ context.Context, in llm.Input) *llm.Extract {
	f.calls++
	f.last = in
	return f.out
}

type fakeMarket struct {
	rent int
	ok   bool
}

func (f *fakeMarket) EstimateMonthly(_ context.Context, _ string, _ float64) (int, bool) {
	return f.rent, f.ok
}

type fakeStatic struct {
	rent int
	ok   bool
}

func (f *fakeStatic) Estimate(_ string, _ float64) (int, bool) {
	return f.rent, f.ok
}

func testGaz(t *testing.T) *territory.Index {
	t.Helper()
	gaz, err := territory.Load()
	if err != nil {
		t.Fatalf("territory.Load() failed: %v", err)
	}
	return gaz
}

func newTestService(t *testing.T, fetch Fetcher, enrich Enricher, market MarketEstimator, static StaticEstimator, opts Options) *Service {
	t.Helper()
	return New(extractor.New(testGaz(t)), fetch, nil, scraper.NewThrottle(0), enrich, market, static, nil, opts)
}

func TestAutofillMergesLLM(t *testing.T) {
	fetch := &fakeFetcher{html: listingHTML}
	enrich := &fakeEnricher{out: &llm.Extract{
		Sqm:       nil,                // null keeps the scraped value
		Bathrooms: models.Float64(3), // non-null replaces the scraped value
		MaxRent:   900,
	}}
	svc := newTestService(t, fetch, enrich, nil, nil, Options{})

	got := svc.AutofillFromURL(context.Background(), "https://www.idealista.com/inmueble/12345/", "")

	if got.Sqm == nil || *got.Sqm != 80 {
		t.Errorf("Sqm = %v; null model value must keep the scraped 80", got.Sqm)
	}
	if got.Bathrooms == nil || *got.Bathrooms != 3 {
		t.Errorf("Bathrooms = %v; non-null model value must win, want 3", got.Bathrooms)
	}
	if got.EstimatedRent == nil || *got.EstimatedRent != 990 {
		t.Errorf("EstimatedRent = %v; want 990 (900 with 10%% uplift)", got.EstimatedRent)
	}
	if got.MonthlyRent == nil || *got.MonthlyRent != 990 {
		t.Errorf("MonthlyRent = %v; want mirror of EstimatedRent", got.MonthlyRent)
	}
	if got.Source != models.SourceLLM {
		t.Errorf("Source = %q; want %q", got.Source, models.SourceLLM)
	}
	if enrich.last.City != "Madrid" || enrich.last.PurchasePrice != 150000 {
		t.Errorf("enricher input = %+v; want city Madrid, price 150000", enrich.last)
	}
}

func TestAutofillCacheShortCircuit(t *testing.T) {
	fetch := &fakeFetcher{html: listingHTML}
	svc := newTestService(t, fetch, nil, nil, nil, Options{})

	url := "https://www.idealista.com/inmueble/12345/"
	first := svc.AutofillFromURL(context.Background(), url, "")
	second := svc.AutofillFromURL(context.Background(), url, "")

	if fetch.calls != 1 {
		t.Errorf("fetch calls = %d; second request must be served from cache", fetch.calls)
	}
	if *first.BuyPrice != *second.BuyPrice {
		t.Error("cached result differs from the original")
	}
}

func TestAutofillHostGate(t *testing.T) {
	fetch := &fakeFetcher{html: listingHTML}
	svc := newTestService(t, fetch, nil, nil, nil, Options{})

	got := svc.AutofillFromURL(context.Background(), "https://www.fotocasa.es/vivienda/999/", "")

	if fetch.calls != 0 {
		t.Errorf("fetch calls = %d; unsupported hosts must not be fetched", fetch.calls)
	}
	if got.BuyPrice != nil || got.City != nil {
		t.Errorf("expected an empty result, got %+v", got)
	}
	if got.Source != models.SourceSite {
		t.Errorf("Source = %q; want %q", got.Source, models.SourceSite)
	}
}

func TestAutofillInvalidURL(t *testing.T) {
	fetch := &fakeFetcher{html: listingHTML}
	svc := newTestService(t, fetch, nil, nil, nil, Options{})

	for _, url := range []string{"", "   ", "not a url", "ftp://www.idealista.com/x"} {
		got := svc.AutofillFromURL(context.Background(), url, "")
		if got.BuyPrice != nil {
			t.Errorf("AutofillFromURL(%q) resolved fields on an invalid URL", url)
		}
	}
	if fetch.calls != 0 {
		t.Errorf("fetch calls = %d; invalid URLs must not be fetched", fetch.calls)
	}
}

func TestAutofillFetchFailureDegrades(t *testing.T) {
	fetch := &fakeFetcher{err: fmt.Errorf("connection reset")}
	svc := newTestService(t, fetch, nil, nil, nil, Options{})

	got := svc.AutofillFromURL(context.Background(), "https://www.idealista.com/inmueble/12345/", "")
	if got.BuyPrice != nil || got.City != nil {
		t.Errorf("expected an empty result after fetch failure, got %+v", got)
	}
}

func TestAutofillMarketFallback(t *testing.T) {
	fetch := &fakeFetcher{html: listingHTML}
	enrich := &fakeEnricher{out: nil} // LLM unavailable
	market := &fakeMarket{rent: 1100, ok: true}
	svc := newTestService(t, fetch, enrich, market, nil, Options{})

	got := svc.AutofillFromURL(context.Background(), "https://www.idealista.com/inmueble/12345/", "")

	if got.EstimatedRent == nil || *got.EstimatedRent != 1100 {
		t.Errorf("EstimatedRent = %v; want market fallback 1100", got.EstimatedRent)
	}
	if got.Source != models.SourceSite {
		t.Errorf("Source = %q; market estimates keep the site tag", got.Source)
	}
}

func TestAutofillStaticFallback(t *testing.T) {
	fetch := &fakeFetcher{html: listingHTML}
	market := &fakeMarket{ok: false}
	static := &fakeStatic{rent: 1384, ok: true}
	svc := newTestService(t, fetch, nil, market, static, Options{})

	got := svc.AutofillFromURL(context.Background(), "https://www.idealista.com/inmueble/12345/", "")

	if got.EstimatedRent == nil || *got.EstimatedRent != 1384 {
		t.Errorf("EstimatedRent = %v; want static fallback 1384", got.EstimatedRent)
	}
}

func TestAutofillForceSourceSkipsLLM(t *testing.T) {
	fetch := &fakeFetcher{html: listingHTML}
	enrich := &fakeEnricher{out: &llm.Extract{MaxRent: 900}}
	svc := newTestService(t, fetch, enrich, nil, nil, Options{ForceSource: "site"})

	got := svc.AutofillFromURL(context.Background(), "https://www.idealista.com/inmueble/12345/", "")

	if enrich.calls != 0 {
		t.Errorf("enricher calls = %d; force-source site must skip the LLM", enrich.calls)
	}
	if got.Source != models.SourceSite {
		t.Errorf("Source = %q; want %q", got.Source, models.SourceSite)
	}
}

func TestExtractFromHTML(t *testing.T) {
	enrich := &fakeEnricher{out: &llm.Extract{MaxRent: 800}}
	svc := newTestService(t, &fakeFetcher{}, enrich, nil, nil, Options{})

	got := svc.ExtractFromHTML("https://www.idealista.com/inmueble/12345/", listingHTML)

	if got.City == nil || *got.City != "Madrid" {
		t.Errorf("City = %v; want Madrid", got.City)
	}
	// Extraction-only path: no enrichment, no rent estimate.
	if enrich.calls != 0 {
		t.Errorf("enricher calls = %d; ExtractFromHTML must not enrich", enrich.calls)
	}
	if got.EstimatedRent != nil {
		t.Errorf("EstimatedRent = %v; want nil", got.EstimatedRent)
	}

	empty := svc.ExtractFromHTML("https://www.fotocasa.es/vivienda/1/", listingHTML)
	if empty.BuyPrice != nil || empty.City != nil {
		t.Errorf("unsupported host must yield an empty result, got %+v", empty)
	}
}

func TestAutofillSkipsLLMWithoutContext(t *testing.T) {
	// No feature block in the page, so the LLM has nothing safe to read.
	html := `<html><head><title>Piso en venta en Calle Mayor, Madrid &#8212; idealista</title></head><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"detail":{"price":150000,"size":80,"address":{"municipality":"Madrid"}}}}}</script>
</body></html>`
	fetch := &fakeFetcher{html: html}
	enrich := &fakeEnricher{out: &llm.Extract{MaxRent: 900}}
	svc := newTestService(t, fetch, enrich, nil, nil, Options{})

	svc.AutofillFromURL(context.Background(), "https://www.idealista.com/inmueble/12345/", "")
	if enrich.calls != 0 {
		t.Errorf("enricher calls = %d; missing feature text must skip the LLM", enrich.calls)
	}
}
