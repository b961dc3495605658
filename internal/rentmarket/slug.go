package rentmarket

// Idealista's report URLs use slugged community/province/city path segments
// whose conventions are inconsistent: articles move to the front
// ("Coruña, A" → "a-coruna"), bilingual names appear under either variant,
// and a handful of communities use bespoke slugs. Rather than maintaining a
// full exception list, lookups try a small set of candidate slugs.

import (
	"regexp"
	"strings"

	"piso-search/internal/territory"
)

// communitySlugOverrides are the community slugs that do not follow from
// slugifying the INE name.
var communitySlugOverrides = map[int]string{
	3:  "asturias",
	4:  "baleares",
	10: "comunitat-valenciana",
	13: "madrid-comunidad",
	14: "murcia-region",
	15: "navarra",
	17: "la-rioja",
}

var (
	reCommaArticle = regexp.MustCompile(`(?i)^(.+),\s*(el|la|los|las|a|l')$`)
	reNonSlug      = regexp.MustCompile(`[^a-z0-9]+`)
	reDashes       = regexp.MustCompile(`-+`)
)

// ReorderCommaArticle rewrites "Castell de Guadalest, el" as
// "el Castell de Guadalest". Names without a trailing article pass through.
func ReorderCommaArticle(name string) string {
	s := strings.TrimSpace(name)
	if m := reCommaArticle.FindStringSubmatch(s); m != nil {
		return strings.TrimSpace(m[2] + " " + m[1])
	}
	return s
}

// Slugify produces a URL-path-safe lowercase form of a name.
func Slugify(name string) string {
	s := strings.ReplaceAll(name, "/", " ")
	for _, apostrophe := range []string{"'", "’", "`", "´"} {
		s = strings.ReplaceAll(s, apostrophe, "")
	}
	s = strings.ReplaceAll(s, "&", " y ")
	s = territory.Normalize(s)
	s = reNonSlug.ReplaceAllString(s, "-")
	s = reDashes.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// CommunitySlug returns the report-URL slug for an autonomous community.
func CommunitySlug(regionCode int, name string) string {
	if forced, ok := communitySlugOverrides[regionCode]; ok {
		return forced
	}
	return Slugify(name)
}

// ProvinceSlugCandidates returns the plausible province path segments for a
// province name, most likely first. Bilingual "A/B" names yield one
// candidate per variant; all carry the "-provincia" suffix the site uses to
// disambiguate provinces from their capitals.
func ProvinceSlugCandidates(name string) []string {
	base := ReorderCommaArticle(name)
	parts := strings.Split(base, "/")

	var out []string
	seen := make(map[string]bool)
	for _, part := range parts {
		slug := Slugify(part)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug+"-provincia")
	}
	return out
}

// CitySlugCandidates returns the plausible city path segments for a
// municipality name.
func CitySlugCandidates(name string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, candidate := range []string{ReorderCommaArticle(name), name} {
		slug := Slugify(candidate)
		if slug == "" || seen[slug] {
			continue
		}
		seen[slug] = true
		out = append(out, slug)
	}
	return out
}
