// Package extractor recovers structured listing data from Idealista HTML.
// Extraction is layered: the embedded __NEXT_DATA__ payload is preferred,
// regex patterns over the raw HTML fill in whatever it misses. Every field
// is best-effort; a field that cannot be recovered stays nil.
package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"piso-search/internal/models"
	"piso-search/internal/territory"
)

// Extractor is stateless apart from the gazetteer it validates cities
// against.
type Extractor struct {
	gaz *territory.Index
}

// New creates an extractor bound to a gazetteer.
func New(gaz *territory.Index) *Extractor {
	return &Extractor{gaz: gaz}
}

// Ordered pattern alternatives per field, most specific first.
var (
	pricePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)<strong[^>]*class="[^"]*price[^"]*"[^>]*>([\d.\s]+)\s*€`),
		regexp.MustCompile(`(?i)data-price="([\d.]+)"`),
		regexp.MustCompile(`([1-9]\d{2,5}(?:\.\d{3})*)\s*€`),
	}
	sqmPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*m[²2]\s*construidos`),
		regexp.MustCompile(`(?is)<span[^>]*>.{0,50}?(\d+).{0,50}?</span>.{0,50}?m[²2]`),
		regexp.MustCompile(`(?i)(\d+)\s*m[²2]`),
	}
	roomPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*habitaciones`),
		regexp.MustCompile(`(?i)(\d+)\s*hab\.?`),
		regexp.MustCompile(`(?is)<span[^>]*>.{0,50}?(\d+).{0,50}?</span>.{0,50}?hab`),
		regexp.MustCompile(`(?i)(\d+)\s*dormitorios`),
	}
	bathPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(\d+)\s*baños`),
		regexp.MustCompile(`(?i)(\d+)\s*baño`),
		regexp.MustCompile(`(?is)<span[^>]*>.{0,50}?(\d+).{0,50}?</span>.{0,50}?baño`),
		regexp.MustCompile(`(?i)(\d+)\s*aseos`),
	}
)

// NormalizeNumber converts Spanish-formatted numerals ("157.500", "12,50")
// to machine numbers: dots are thousands separators, the comma is the
// decimal separator.
func NormalizeNumber(s string) (float64, error) {
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", ".")
	return strconv.ParseFloat(s, 64)
}

func firstMatch(html string, patterns []*regexp.Regexp) *float64 {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(html); m != nil {
			if n, err := NormalizeNumber(m[1]); err == nil {
				return &n
			}
		}
	}
	return nil
}

// ExtractListing pulls the structured fields out of a listing page. The
// returned city, when present, is always a canonical gazetteer name, and the
// region code is always recomputed from that city rather than trusted from
// the page.
func (e *Extractor) ExtractListing(html string) models.ExtractionResult {
	out := models.Empty(models.SourceSite)

	var embeddedCity string
	if next := extractNextData(html); next != nil {
		out.BuyPrice = next.buyPrice
		out.Sqm = next.sqm
		out.Rooms = next.rooms
		out.Bathrooms = next.baths
		embeddedCity = next.city
	}

	if out.BuyPrice == nil {
		out.BuyPrice = firstMatch(html, pricePatterns)
	}
	if out.Sqm == nil {
		out.Sqm = firstMatch(html, sqmPatterns)
	}
	if out.Rooms == nil {
		out.Rooms = firstMatch(html, roomPatterns)
	}
	if out.Bathrooms == nil {
		out.Bathrooms = firstMatch(html, bathPatterns)
	}

	if city := e.resolveCity(html, embeddedCity); city != "" {
		out.City = &city
		if code, ok := e.gaz.RegionCodeForCity(city); ok {
			out.RegionCode = &code
		}
	}

	if text := extractFeatureText(html); text != "" {
		out.FeatureText = &text
	}

	return out
}
