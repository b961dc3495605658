package extractor

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Listings carry their feature lists in div.details-property_features blocks.
// Blocks after the "Certificado energético" heading belong to the energy
// certificate section and must not be included.
var reCertificateCut = regexp.MustCompile(`(?i)Certificado energético`)

// extractFeatureText isolates the property-features blocks and flattens them
// to plain text. Raw HTML never crosses into the LLM prompt, only this
// cleaned text. Returns "" when no feature block is present.
func extractFeatureText(html string) string {
	if loc := reCertificateCut.FindStringIndex(html); loc != nil {
		html = html[:loc[0]]
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	var parts []string
	doc.Find("div.details-property_features").Each(func(_ int, sel *goquery.Selection) {
		if text := collapseSpace(sel.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	return strings.Join(parts, " ")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
