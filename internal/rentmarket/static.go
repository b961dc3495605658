package rentmarket

import (
	"embed"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"piso-search/internal/territory"
)

//go:embed data/alquiler_provincias.csv
var staticData embed.FS

// Static estimates rent from a bundled per-province €/m² table. It is the
// fallback when both the LLM and the live report lookup come up empty; the
// numbers are province capitals, so estimates skew high for small towns.
type Static struct {
	gaz    *territory.Index
	prices map[int]float64
}

// NewStatic loads the bundled dataset.
func NewStatic(gaz *territory.Index) (*Static, error) {
	f, err := staticData.Open("data/alquiler_provincias.csv")
	if err != nil {
		return nil, fmt.Errorf("opening static rent data: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading static rent data: %w", err)
	}

	prices := make(map[int]float64, len(rows))
	for i, row := range rows {
		if i == 0 {
			continue // header
		}
		if len(row) != 3 {
			return nil, fmt.Errorf("static rent data row %d: want 3 fields, got %d", i+1, len(row))
		}
		code, err := strconv.Atoi(strings.TrimSpace(row[0]))
		if err != nil {
			return nil, fmt.Errorf("static rent data row %d: bad province code %q", i+1, row[0])
		}
		price, err := strconv.ParseFloat(strings.TrimSpace(row[2]), 64)
		if err != nil {
			return nil, fmt.Errorf("static rent data row %d: bad price %q", i+1, row[2])
		}
		prices[code] = price
	}

	return &Static{gaz: gaz, prices: prices}, nil
}

// Estimate returns a rounded monthly rent for a city and surface using the
// province-level price. Returns false for unknown cities or non-positive
// surfaces.
func (s *Static) Estimate(city string, sqm float64) (int, bool) {
	if sqm <= 0 {
		return 0, false
	}
	info, ok := s.gaz.CityInfo(city)
	if !ok {
		return 0, false
	}
	perSqm, ok := s.prices[info.ProvinceCode]
	if !ok {
		return 0, false
	}

	rent := int(math.Round(sqm * perSqm))
	slog.Debug("rent market: static estimate", "city", info.Name,
		"province", info.ProvinceCode, "eur_per_sqm", perSqm, "rent", rent)
	return rent, true
}
