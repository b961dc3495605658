package rentmarket

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"piso-search/internal/territory"
)

type fakeFetcher struct {
	pages   map[string]string // URL substring -> body
	fetches []string
}

func (f *fakeFetcher) Fetch(_ context.Context, rawURL, _ string) (string, error) {
	f.fetches = append(f.fetches, rawURL)
	for frag, body := range f.pages {
		if strings.Contains(rawURL, frag) {
			return body, nil
		}
	}
	return "", fmt.Errorf("HTTP 404 Not Found")
}

func testLookup(t *testing.T, fetch *fakeFetcher) (*Lookup, *Store) {
	t.Helper()
	gaz, err := territory.Load()
	if err != nil {
		t.Fatalf("territory.Load() failed: %v", err)
	}
	store, err := OpenStore(filepath.Join(t.TempDir(), "rent.json"), time.Hour)
	if err != nil {
		t.Fatalf("OpenStore failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return NewLookup(gaz, store, fetch, nil, nil), store
}

func TestLookupResolvesAndPersists(t *testing.T) {
	fetch := &fakeFetcher{pages: map[string]string{
		"/comunitat-valenciana/alicante-provincia/denia/": `<p>Precio medio: <strong>12,5 €/m2</strong></p>`,
	}}
	l, store := testLookup(t, fetch)

	got, ok := l.RentPerSqm(context.Background(), "Dénia")
	if !ok || got != 12.5 {
		t.Fatalf("RentPerSqm = %g, %v; want 12.5, true", got, ok)
	}

	// Resolved price lands in the store.
	if _, ok := store.Get(Key(10, 3, "denia")); !ok {
		t.Error("resolved price was not persisted")
	}

	// A second call is served from the store without another fetch.
	fetched := len(fetch.fetches)
	if got, ok := l.RentPerSqm(context.Background(), "Dénia"); !ok || got != 12.5 {
		t.Fatalf("second RentPerSqm = %g, %v; want 12.5, true", got, ok)
	}
	if len(fetch.fetches) != fetched {
		t.Errorf("second lookup fetched %d more pages; want 0", len(fetch.fetches)-fetched)
	}
}

func TestLookupTriesSlugCandidates(t *testing.T) {
	// Only the second province variant resolves.
	fetch := &fakeFetcher{pages: map[string]string{
		"/alacant-provincia/benidorm/": `<strong>11,0 €/m²</strong>`,
	}}
	l, _ := testLookup(t, fetch)

	got, ok := l.RentPerSqm(context.Background(), "Benidorm")
	if !ok || got != 11.0 {
		t.Fatalf("RentPerSqm = %g, %v; want 11, true", got, ok)
	}
	if len(fetch.fetches) < 2 {
		t.Errorf("fetches = %v; expected the first slug to be tried and rejected", fetch.fetches)
	}
}

func TestLookupUnknownCity(t *testing.T) {
	fetch := &fakeFetcher{}
	l, _ := testLookup(t, fetch)

	if _, ok := l.RentPerSqm(context.Background(), "Atlantis"); ok {
		t.Error("RentPerSqm for an unknown city should fail")
	}
	if len(fetch.fetches) != 0 {
		t.Errorf("unknown city should not trigger fetches, got %v", fetch.fetches)
	}
}

func TestEstimateMonthly(t *testing.T) {
	fetch := &fakeFetcher{pages: map[string]string{
		"/denia/": `<strong>12,5 €/m2</strong>`,
	}}
	l, _ := testLookup(t, fetch)

	got, ok := l.EstimateMonthly(context.Background(), "Dénia", 80)
	if !ok || got != 1000 {
		t.Fatalf("EstimateMonthly = %d, %v; want 1000, true", got, ok)
	}

	if _, ok := l.EstimateMonthly(context.Background(), "Dénia", 0); ok {
		t.Error("EstimateMonthly with zero surface should fail")
	}
}
