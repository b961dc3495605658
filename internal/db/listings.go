package db

import (
	"fmt"
	"time"

	"piso-search/internal/models"
)

// ListingRow is a persisted listing result.
type ListingRow struct {
	URL           string     `db:"url" json:"url"`
	City          *string    `db:"city" json:"city"`
	RegionCode    *int       `db:"region_code" json:"regionCode"`
	BuyPrice      *float64   `db:"buy_price" json:"buyPrice"`
	Sqm           *float64   `db:"sqm" json:"sqm"`
	Rooms         *int       `db:"rooms" json:"rooms"`
	Bathrooms     *int       `db:"bathrooms" json:"bathrooms"`
	EstimatedRent *int       `db:"estimated_rent" json:"estimatedRent"`
	Source        string     `db:"source" json:"source"`
	FeatureText   *string    `db:"feature_text" json:"-"`
	FirstSeenAt   time.Time  `db:"first_seen_at" json:"firstSeenAt"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updatedAt"`
}

// UpsertListing inserts or refreshes the stored result for a URL.
func (db *DB) UpsertListing(url string, r models.ExtractionResult) error {
	row := ListingRow{
		URL:           url,
		City:          r.City,
		RegionCode:    r.RegionCode,
		BuyPrice:      r.BuyPrice,
		Sqm:           r.Sqm,
		EstimatedRent: r.EstimatedRent,
		Source:        string(r.Source),
		FeatureText:   r.FeatureText,
	}
	if r.Rooms != nil {
		row.Rooms = models.Int(int(*r.Rooms))
	}
	if r.Bathrooms != nil {
		row.Bathrooms = models.Int(int(*r.Bathrooms))
	}

	_, err := db.NamedExec(`
		INSERT INTO listings (url, city, region_code, buy_price, sqm, rooms, bathrooms, estimated_rent, source, feature_text, updated_at)
		VALUES (:url, :city, :region_code, :buy_price, :sqm, :rooms, :bathrooms, :estimated_rent, :source, :feature_text, CURRENT_TIMESTAMP)
		ON CONFLICT(url) DO UPDATE SET
			city = excluded.city,
			region_code = excluded.region_code,
			buy_price = excluded.buy_price,
			sqm = excluded.sqm,
			rooms = excluded.rooms,
			bathrooms = excluded.bathrooms,
			estimated_rent = excluded.estimated_rent,
			source = excluded.source,
			feature_text = excluded.feature_text,
			updated_at = CURRENT_TIMESTAMP
	`, row)
	if err != nil {
		return fmt.Errorf("failed to upsert listing: %w", err)
	}
	return nil
}

// ListingFilter narrows ListListings results.
type ListingFilter struct {
	City       string
	RegionCode *int
	Limit      int
}

// ListListings returns stored listings, most recently updated first.
func (db *DB) ListListings(f ListingFilter) ([]ListingRow, error) {
	query := `SELECT * FROM listings WHERE 1=1`
	args := make([]interface{}, 0)

	if f.City != "" {
		query += " AND city = ? COLLATE NOCASE"
		args = append(args, f.City)
	}
	if f.RegionCode != nil {
		query += " AND region_code = ?"
		args = append(args, *f.RegionCode)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(" ORDER BY updated_at DESC LIMIT %d", limit)

	var rows []ListingRow
	if err := db.Select(&rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list listings: %w", err)
	}
	if rows == nil {
		rows = []ListingRow{}
	}
	return rows, nil
}
