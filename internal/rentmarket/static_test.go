package rentmarket

import (
	"testing"

	"piso-search/internal/territory"
)

func testStatic(t *testing.T) *Static {
	t.Helper()
	gaz, err := territory.Load()
	if err != nil {
		t.Fatalf("territory.Load() failed: %v", err)
	}
	s, err := NewStatic(gaz)
	if err != nil {
		t.Fatalf("NewStatic failed: %v", err)
	}
	return s
}

func TestStaticEstimate(t *testing.T) {
	s := testStatic(t)

	// Madrid province is 17.3 €/m²; 80 m² rounds to 1384.
	got, ok := s.Estimate("Madrid", 80)
	if !ok || got != 1384 {
		t.Fatalf("Estimate(\"Madrid\", 80) = %d, %v; want 1384, true", got, ok)
	}

	// Dénia falls back to the Alicante province figure.
	got, ok = s.Estimate("Dénia", 100)
	if !ok || got != 1020 {
		t.Fatalf("Estimate(\"Dénia\", 100) = %d, %v; want 1020, true", got, ok)
	}
}

func TestStaticEstimateRejects(t *testing.T) {
	s := testStatic(t)

	if _, ok := s.Estimate("Atlantis", 80); ok {
		t.Error("unknown city should fail")
	}
	if _, ok := s.Estimate("Madrid", 0); ok {
		t.Error("zero surface should fail")
	}
	if _, ok := s.Estimate("Madrid", -10); ok {
		t.Error("negative surface should fail")
	}
}

func TestStaticCoversAllProvinces(t *testing.T) {
	s := testStatic(t)
	if len(s.prices) != 52 {
		t.Errorf("loaded %d province prices; want 52", len(s.prices))
	}
}
