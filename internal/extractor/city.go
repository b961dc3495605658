package extractor

import (
	"html"
	"regexp"
	"strings"

	"piso-search/internal/territory"
)

var (
	reTitle = regexp.MustCompile(`(?i)<title>([^<]+)</title>`)
	// Listing titles end in "..., City &#8212; idealista": the city sits
	// between the last comma and the em dash.
	reTitleCity = regexp.MustCompile(`,\s*([^,]+?)\s*(?:&#8212;|&mdash;|—)`)
	reWord      = regexp.MustCompile(`[a-z0-9]+`)
)

// titleStopwords are listing-boilerplate terms and grammatical particles that
// never identify a municipality.
var titleStopwords = map[string]bool{
	"piso": true, "casa": true, "chalet": true, "venta": true, "alquiler": true,
	"duplex": true, "atico": true, "estudio": true, "apartamento": true,
	"adosado": true, "vivienda": true, "inmueble": true, "finca": true,
	"local": true, "garaje": true, "obra": true, "nueva": true, "idealista": true,
	"comprar": true, "habitacion": true, "habitaciones": true, "dormitorios": true,
	"calle": true, "avenida": true, "plaza": true, "paseo": true, "camino": true,
	"carretera": true, "urbanizacion": true, "barrio": true, "zona": true,
	"con": true, "sin": true, "por": true, "para": true, "del": true,
	"los": true, "las": true, "una": true, "uno": true, "que": true,
	"mas": true, "muy": true, "sus": true, "este": true, "esta": true,
	"entre": true, "junto": true, "cerca": true,
}

// resolveCity turns a raw scraped city hint (or, failing that, the page
// title) into a canonical gazetteer name. Returns "" when nothing resolves;
// the pipeline never guesses.
func (e *Extractor) resolveCity(pageHTML, embeddedCity string) string {
	if name := e.verifyCity(embeddedCity); name != "" {
		return name
	}

	m := reTitle.FindStringSubmatch(pageHTML)
	if m == nil {
		return ""
	}
	title := html.UnescapeString(strings.TrimSpace(m[1]))

	// Stage 1: the comma/em-dash title pattern is unambiguous when present.
	if cm := reTitleCity.FindStringSubmatch(m[1]); cm != nil {
		if name := e.verifyCity(html.UnescapeString(cm[1])); name != "" {
			return name
		}
	}

	// Stage 2: token matching against the gazetteer.
	return e.disambiguateFromTitle(pageHTML, title)
}

// verifyCity checks a raw spelling against the gazetteer and returns the
// canonical name. Bilingual spellings ("Alcoy / Alcoi") are tried variant by
// variant.
func (e *Extractor) verifyCity(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.Contains(raw, "/") {
		for _, variant := range strings.Split(raw, "/") {
			if city, ok := e.gaz.CityInfo(strings.TrimSpace(variant)); ok {
				return city.Name
			}
		}
		return ""
	}
	if city, ok := e.gaz.CityInfo(raw); ok {
		return city.Name
	}
	return ""
}

// disambiguateFromTitle scans the normalized title for gazetteer cities.
// Full-name matches are preferred; bare-token matches are the fallback.
// Among several candidates the one mentioned most often across the whole
// page wins, longer names breaking ties. This can pick a wrong but
// more-frequent nearby town when a listing name-drops its surroundings;
// accepted recall/precision tradeoff.
func (e *Extractor) disambiguateFromTitle(pageHTML, title string) string {
	normTitle := territory.Normalize(title)
	if normTitle == "" {
		return ""
	}

	tokens := make(map[string]bool)
	for _, w := range reWord.FindAllString(normTitle, -1) {
		if len(w) >= 3 && !titleStopwords[w] {
			tokens[w] = true
		}
	}

	type candidate struct {
		name    string // canonical spelling
		matched string // normalized substring that matched
	}
	var candidates []candidate

	// Pass (a): whole city names appearing in the title.
	for _, city := range e.gaz.Cities() {
		cityNorm := territory.Normalize(city.Name)
		if wholeWordMatch(normTitle, cityNorm) {
			candidates = append(candidates, candidate{name: city.Name, matched: cityNorm})
		}
	}

	// Pass (b): single significant tokens, only when no full name matched.
	if len(candidates) == 0 {
		for _, city := range e.gaz.Cities() {
			cityNorm := territory.Normalize(city.Name)
			for _, w := range strings.Fields(cityNorm) {
				if tokens[w] {
					candidates = append(candidates, candidate{name: city.Name, matched: w})
					break
				}
			}
		}
	}

	if len(candidates) == 0 {
		return ""
	}

	normPage := territory.Normalize(pageHTML)
	best := candidates[0]
	bestCount := countWholeWord(normPage, best.matched)
	for _, c := range candidates[1:] {
		count := countWholeWord(normPage, c.matched)
		if count > bestCount || (count == bestCount && len(c.name) > len(best.name)) {
			best, bestCount = c, count
		}
	}
	return best.name
}

func wholeWordPattern(s string) *regexp.Regexp {
	return regexp.MustCompile(`(^|[^a-z0-9])` + regexp.QuoteMeta(s) + `($|[^a-z0-9])`)
}

func wholeWordMatch(text, s string) bool {
	if s == "" {
		return false
	}
	return wholeWordPattern(s).MatchString(text)
}

func countWholeWord(text, s string) int {
	if s == "" {
		return 0
	}
	re := wholeWordPattern(s)
	n, off := 0, 0
	for off <= len(text) {
		loc := re.FindStringSubmatchIndex(text[off:])
		if loc == nil {
			break
		}
		n++
		// Resume just inside the matched word; adjacent occurrences share a
		// boundary character, so a plain FindAll would miss every other one.
		off += loc[3] + 1
	}
	return n
}
