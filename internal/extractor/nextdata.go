package extractor

import (
	"encoding/json"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Idealista renders listings with Next.js and embeds the page's structured
// data in the __NEXT_DATA__ script block. Key names inside vary between page
// versions, so each field is searched by an ordered alias list.
var reNextData = regexp.MustCompile(`(?is)<script\s+id="__NEXT_DATA__"\s+type="application/json"\s*>(.*?)</script>`)

// searchDepth bounds the recursive key search. The payload is JSON, so no
// cycle guard is needed.
const searchDepth = 4

var (
	priceKeys = []string{"price", "priceAmount", "priceValue", "salePrice", "amount"}
	sqmKeys   = []string{"size", "surface", "constructedArea", "area", "sqm", "builtArea"}
	roomKeys  = []string{"rooms", "bedrooms", "numRooms", "roomCount"}
	bathKeys  = []string{"bathrooms", "bathroomsTotal", "numBathrooms", "bathroomCount"}
	cityKeys  = []string{"municipality", "city", "locality", "town"}
)

// nextDataFields is the partial result of the embedded-data stage.
type nextDataFields struct {
	buyPrice *float64
	sqm      *float64
	rooms    *float64
	baths    *float64
	city     string
}

// extractNextData parses the __NEXT_DATA__ payload and pulls out the known
// fields. Returns nil when the block is absent or malformed; the caller
// falls through to regex extraction.
func extractNextData(html string) *nextDataFields {
	m := reNextData.FindStringSubmatch(html)
	if m == nil {
		return nil
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(m[1]), &payload); err != nil {
		return nil
	}

	props, _ := payload["props"].(map[string]any)
	pageProps, _ := props["pageProps"].(map[string]any)
	if pageProps == nil {
		return nil
	}

	// The listing object has moved around across page versions.
	root := pageProps
	for _, key := range []string{"detail", "propertyDetail", "listing", "initialProps", "data"} {
		if obj, ok := pageProps[key].(map[string]any); ok {
			root = obj
			break
		}
	}

	out := &nextDataFields{
		buyPrice: findNumber(root, priceKeys, searchDepth),
		sqm:      findNumber(root, sqmKeys, searchDepth),
		rooms:    findNumber(root, roomKeys, searchDepth),
		baths:    findNumber(root, bathKeys, searchDepth),
	}

	if city := findString(root, cityKeys, searchDepth); city != "" {
		out.city = city
	} else if addr, ok := root["address"].(map[string]any); ok {
		out.city = findString(addr, []string{"municipality", "city", "locality"}, 2)
	}
	return out
}

// findNumber returns the first numeric value held by one of keys, searching
// the object and then its child objects up to maxDepth levels. Children are
// visited in sorted key order so extraction is deterministic.
func findNumber(obj map[string]any, keys []string, maxDepth int) *float64 {
	if maxDepth <= 0 || obj == nil {
		return nil
	}
	for _, k := range keys {
		switch v := obj[k].(type) {
		case float64:
			n := v
			return &n
		case string:
			if n, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return &n
			}
		}
	}
	for _, k := range sortedKeys(obj) {
		child, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		if n := findNumber(child, keys, maxDepth-1); n != nil {
			return n
		}
	}
	return nil
}

// findString is findNumber for non-empty string values.
func findString(obj map[string]any, keys []string, maxDepth int) string {
	if maxDepth <= 0 || obj == nil {
		return ""
	}
	for _, k := range keys {
		if s, ok := obj[k].(string); ok && strings.TrimSpace(s) != "" {
			return s
		}
	}
	for _, k := range sortedKeys(obj) {
		child, ok := obj[k].(map[string]any)
		if !ok {
			continue
		}
		if s := findString(child, keys, maxDepth-1); s != "" {
			return s
		}
	}
	return ""
}

func sortedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
