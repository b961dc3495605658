package extractor

import (
	"os"
	"testing"

	"piso-search/internal/territory"
)

func testExtractor(t *testing.T) *Extractor {
	t.Helper()
	gaz, err := territory.Load()
	if err != nil {
		t.Fatalf("territory.Load() failed: %v", err)
	}
	return New(gaz)
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"157.500", 157500, false},
		{"12,50", 12.5, false},
		{"795.000", 795000, false},
		{"1.234,56", 1234.56, false},
		{"266", 266, false},
		{"9,3", 9.3, false},
		{"157 500", 157500, false},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := NormalizeNumber(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeNumber(%q): expected error, got %g", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("NormalizeNumber(%q): unexpected error: %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeNumber(%q) = %g; want %g", tt.in, got, tt.want)
		}
	}
}

func TestExtractListingEmbedded(t *testing.T) {
	e := testExtractor(t)

	html := `<html><head><title>Piso en venta &#8212; idealista</title></head><body>
<script id="__NEXT_DATA__" type="application/json">{"props":{"pageProps":{"detail":{"price":150000,"size":80,"rooms":3,"bathrooms":2,"address":{"municipality":"Madrid"}}}}}</script>
</body></html>`

	got := e.ExtractListing(html)

	if got.BuyPrice == nil || *got.BuyPrice != 150000 {
		t.Errorf("BuyPrice = %v; want 150000", got.BuyPrice)
	}
	if got.Sqm == nil || *got.Sqm != 80 {
		t.Errorf("Sqm = %v; want 80", got.Sqm)
	}
	if got.Rooms == nil || *got.Rooms != 3 {
		t.Errorf("Rooms = %v; want 3", got.Rooms)
	}
	if got.Bathrooms == nil || *got.Bathrooms != 2 {
		t.Errorf("Bathrooms = %v; want 2", got.Bathrooms)
	}
	if got.City == nil || *got.City != "Madrid" {
		t.Errorf("City = %v; want Madrid", got.City)
	}
	if got.RegionCode == nil || *got.RegionCode != 13 {
		t.Errorf("RegionCode = %v; want 13", got.RegionCode)
	}
}

func TestExtractListingRegexFallback(t *testing.T) {
	e := testExtractor(t)

	html := `<html><head><title>Piso en venta en Calle Mayor, Benidorm &#8212; idealista</title></head><body>
<span class="price">295.000 €</span>
<div>90 m² construidos</div>
<div>3 habitaciones</div>
<div>2 baños</div>
</body></html>`

	got := e.ExtractListing(html)

	if got.BuyPrice == nil || *got.BuyPrice != 295000 {
		t.Errorf("BuyPrice = %v; want 295000", got.BuyPrice)
	}
	if got.Sqm == nil || *got.Sqm != 90 {
		t.Errorf("Sqm = %v; want 90", got.Sqm)
	}
	if got.Rooms == nil || *got.Rooms != 3 {
		t.Errorf("Rooms = %v; want 3", got.Rooms)
	}
	if got.Bathrooms == nil || *got.Bathrooms != 2 {
		t.Errorf("Bathrooms = %v; want 2", got.Bathrooms)
	}
	if got.City == nil || *got.City != "Benidorm" {
		t.Errorf("City = %v; want Benidorm", got.City)
	}
	if got.RegionCode == nil || *got.RegionCode != 10 {
		t.Errorf("RegionCode = %v; want 10", got.RegionCode)
	}
}

func TestExtractListingEmptyPage(t *testing.T) {
	e := testExtractor(t)

	got := e.ExtractListing("<html><body>Acceso denegado</body></html>")

	if got.BuyPrice != nil || got.Sqm != nil || got.Rooms != nil || got.Bathrooms != nil {
		t.Errorf("expected all numeric fields nil, got %+v", got)
	}
	if got.City != nil || got.RegionCode != nil {
		t.Errorf("expected no city resolution, got city=%v region=%v", got.City, got.RegionCode)
	}
	if got.Source != "idealista:v1" {
		t.Errorf("Source = %q; want idealista:v1", got.Source)
	}
}

func TestExtractListingDeniaFixture(t *testing.T) {
	e := testExtractor(t)

	data, err := os.ReadFile("testdata/denia.html")
	if err != nil {
		t.Fatalf("reading fixture: %v", err)
	}

	got := e.ExtractListing(string(data))

	if got.BuyPrice == nil || *got.BuyPrice != 795000 {
		t.Errorf("BuyPrice = %v; want 795000", got.BuyPrice)
	}
	if got.Sqm == nil || *got.Sqm != 266 {
		t.Errorf("Sqm = %v; want 266", got.Sqm)
	}
	if got.Rooms == nil || *got.Rooms != 5 {
		t.Errorf("Rooms = %v; want 5", got.Rooms)
	}
	if got.Bathrooms == nil || *got.Bathrooms != 4 {
		t.Errorf("Bathrooms = %v; want 4", got.Bathrooms)
	}
	if got.City == nil || *got.City != "Dénia" {
		t.Errorf("City = %v; want Dénia", got.City)
	}
	if got.RegionCode == nil || *got.RegionCode != 10 {
		t.Errorf("RegionCode = %v; want 10", got.RegionCode)
	}
	if got.FeatureText == nil {
		t.Fatal("FeatureText is nil")
	}
}

func TestExtractFeatureText(t *testing.T) {
	html := `<html><body>
<div class="details-property_features"><ul>
<li>3 habitaciones</li>
<li>Terraza</li>
</ul></div>
<h2>Certificado energético</h2>
<div class="details-property_features"><ul>
<li>Consumo: 120 kWh/m² año</li>
</ul></div>
</body></html>`

	got := extractFeatureText(html)
	if got != "3 habitaciones Terraza" {
		t.Errorf("extractFeatureText() = %q; want %q", got, "3 habitaciones Terraza")
	}
}

func TestExtractFeatureTextAbsent(t *testing.T) {
	if got := extractFeatureText("<html><body><p>nada</p></body></html>"); got != "" {
		t.Errorf("extractFeatureText() = %q; want empty", got)
	}
}

func TestExtractRentPerSqm(t *testing.T) {
	tests := []struct {
		name string
		html string
		want float64
		ok   bool
	}{
		{"m2", `<p>El precio medio es <strong>12,5 €/m2</strong> al mes</p>`, 12.5, true},
		{"m²", `<strong class="price">9,3 €/m²</strong>`, 9.3, true},
		{"sup", `<strong>11,2 € / m<sup>2</sup></strong>`, 11.2, true},
		{"spaced", `<strong> 8,7 € / m2 </strong>`, 8.7, true},
		{"none", `<p>Sin datos de alquiler</p>`, 0, false},
		{"zero", `<strong>0 €/m2</strong>`, 0, false},
	}

	for _, tt := range tests {
		got, ok := ExtractRentPerSqm(tt.html)
		if ok != tt.ok || got != tt.want {
			t.Errorf("%s: ExtractRentPerSqm() = %g, %v; want %g, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
