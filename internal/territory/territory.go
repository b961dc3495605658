// Package territory loads the Spanish administrative reference data
// (autonomous communities, provinces, municipalities) and exposes
// normalized lookups for the extraction pipeline.
package territory

import (
	"embed"
	"encoding/csv"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

//go:embed data/*.csv
var dataFS embed.FS

// City is one municipality row from the reference dataset.
type City struct {
	RegionCode   int
	ProvinceCode int
	Name         string
}

// Province maps a province code to its name and parent region.
type Province struct {
	Code       int
	RegionCode int
	Name       string
}

// Region is a (code, name) pair for API listings.
type Region struct {
	Code int    `json:"code"`
	Name string `json:"name"`
}

// Index holds the loaded reference data. Immutable after Load.
type Index struct {
	regions   map[int]string
	provinces map[int]Province
	cities    []City
	byNorm    map[string]int
	normOrder []string
}

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowercases, strips diacritics and collapses whitespace so that
// raw spellings ("DÉNIA", " denia ") compare equal.
func Normalize(s string) string {
	out, _, err := transform.String(stripDiacritics, s)
	if err != nil {
		out = s
	}
	return strings.Join(strings.Fields(strings.ToLower(out)), " ")
}

// Load builds the index from the embedded reference CSVs.
func Load() (*Index, error) {
	return loadFS(dataFS, "data")
}

// LoadDir builds the index from CSVs in dir, for deployments that ship a
// fuller municipality file than the embedded subset.
func LoadDir(dir string) (*Index, error) {
	return loadFS(os.DirFS(dir), ".")
}

func loadFS(fsys fs.FS, dir string) (*Index, error) {
	idx := &Index{
		regions:   make(map[int]string),
		provinces: make(map[int]Province),
		byNorm:    make(map[string]int),
	}

	if err := idx.loadRegions(fsys, dir+"/comunidades.csv"); err != nil {
		return nil, err
	}
	if err := idx.loadProvinces(fsys, dir+"/provincias.csv"); err != nil {
		return nil, err
	}
	if err := idx.loadCities(fsys, dir+"/ciudades.csv"); err != nil {
		return nil, err
	}
	if len(idx.regions) == 0 || len(idx.cities) == 0 {
		return nil, fmt.Errorf("territory: reference data empty")
	}
	return idx, nil
}

func readCSV(fsys fs.FS, name string, fields int) ([][]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return nil, fmt.Errorf("territory: open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = fields
	r.TrimLeadingSpace = true

	var rows [][]string
	for i := 0; ; i++ {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("territory: parse %s: %w", name, err)
		}
		if i == 0 {
			continue // header
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

func (idx *Index) loadRegions(fsys fs.FS, name string) error {
	rows, err := readCSV(fsys, name, 2)
	if err != nil {
		return err
	}
	for _, row := range rows {
		code, err := strconv.Atoi(row[0])
		if err != nil {
			return fmt.Errorf("territory: bad region code %q: %w", row[0], err)
		}
		idx.regions[code] = strings.TrimSpace(row[1])
	}
	return nil
}

func (idx *Index) loadProvinces(fsys fs.FS, name string) error {
	rows, err := readCSV(fsys, name, 3)
	if err != nil {
		return err
	}
	for _, row := range rows {
		cpro, err1 := strconv.Atoi(row[0])
		codauto, err2 := strconv.Atoi(row[1])
		if err1 != nil || err2 != nil {
			return fmt.Errorf("territory: bad province row %v", row)
		}
		idx.provinces[cpro] = Province{Code: cpro, RegionCode: codauto, Name: strings.TrimSpace(row[2])}
	}
	return nil
}

func (idx *Index) loadCities(fsys fs.FS, name string) error {
	rows, err := readCSV(fsys, name, 3)
	if err != nil {
		return err
	}
	for _, row := range rows {
		codauto, err1 := strconv.Atoi(row[0])
		cpro, err2 := strconv.Atoi(row[1])
		cityName := strings.TrimSpace(row[2])
		if err1 != nil || err2 != nil || cityName == "" {
			return fmt.Errorf("territory: bad city row %v", row)
		}
		norm := Normalize(cityName)
		// First spelling to normalize to a key wins; later duplicates are dropped.
		if _, seen := idx.byNorm[norm]; seen {
			continue
		}
		idx.cities = append(idx.cities, City{RegionCode: codauto, ProvinceCode: cpro, Name: cityName})
		idx.byNorm[norm] = len(idx.cities) - 1
		idx.normOrder = append(idx.normOrder, norm)
	}
	return nil
}

// RegionName returns the autonomous community name for a CODAUTO code.
func (idx *Index) RegionName(code int) (string, bool) {
	name, ok := idx.regions[code]
	return name, ok
}

// ProvinceName returns the province name for a CPRO code.
func (idx *Index) ProvinceName(code int) (string, bool) {
	p, ok := idx.provinces[code]
	return p.Name, ok
}

// ProvinceRegion returns the region a province belongs to.
func (idx *Index) ProvinceRegion(code int) (int, bool) {
	p, ok := idx.provinces[code]
	return p.RegionCode, ok
}

// CityInfo resolves a raw city spelling to its canonical entry. Exact
// normalized match first, then a substring containment scan in load order.
// The containment fallback trades precision for recall on partial spellings.
func (idx *Index) CityInfo(name string) (City, bool) {
	norm := Normalize(name)
	if norm == "" {
		return City{}, false
	}
	if i, ok := idx.byNorm[norm]; ok {
		return idx.cities[i], true
	}
	for _, candidate := range idx.normOrder {
		if strings.Contains(candidate, norm) || strings.Contains(norm, candidate) {
			return idx.cities[idx.byNorm[candidate]], true
		}
	}
	return City{}, false
}

// RegionCodeForCity resolves a city spelling straight to its region code.
func (idx *Index) RegionCodeForCity(name string) (int, bool) {
	city, ok := idx.CityInfo(name)
	if !ok {
		return 0, false
	}
	return city.RegionCode, true
}

// Cities returns every loaded municipality, in load order.
func (idx *Index) Cities() []City {
	out := make([]City, len(idx.cities))
	copy(out, idx.cities)
	return out
}

// Regions returns all autonomous communities ordered by code.
func (idx *Index) Regions() []Region {
	codes := make([]int, 0, len(idx.regions))
	for code := range idx.regions {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	out := make([]Region, 0, len(codes))
	for _, code := range codes {
		out = append(out, Region{Code: code, Name: idx.regions[code]})
	}
	return out
}

// CitiesInRegion returns the municipality names of a region sorted with
// Spanish collation, for frontend dropdowns.
func (idx *Index) CitiesInRegion(code int) []string {
	var names []string
	for _, c := range idx.cities {
		if c.RegionCode == code {
			names = append(names, c.Name)
		}
	}
	collate.New(language.Spanish, collate.IgnoreCase).SortStrings(names)
	return names
}
