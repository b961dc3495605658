package extractor

// Idealista's public rent reports quote the market price as a bold
// "XX,X €/m²" figure. The markup varies: m2, m², and m<sup>2</sup> all
// appear depending on the page vintage.

import "regexp"

var reportPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)<strong[^>]*>\s*([\d.,]+)\s*€\s*/\s*m2\s*</strong>`),
	regexp.MustCompile(`(?i)<strong[^>]*>\s*([\d.,]+)\s*€\s*/\s*m²\s*</strong>`),
	regexp.MustCompile(`(?i)<strong[^>]*>\s*([\d.,]+)\s*€\s*/\s*m\s*<sup>\s*2\s*</sup>\s*</strong>`),
}

// ExtractRentPerSqm pulls the €/m² monthly rent figure out of a rent-report
// page. Returns 0, false when the page carries no recognizable figure.
func ExtractRentPerSqm(html string) (float64, bool) {
	for _, re := range reportPatterns {
		if m := re.FindStringSubmatch(html); m != nil {
			if n, err := NormalizeNumber(m[1]); err == nil && n > 0 {
				return n, true
			}
		}
	}
	return 0, false
}
