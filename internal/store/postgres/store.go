// Package postgres implements the read-only catalog and subscriber queries
// against the directory database. The campaign pipeline never mutates these
// tables; all writes go to the audit trail instead.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/colively/campaign-engine/internal/domain"
)

// Store provides database operations for campaign entities.
type Store struct {
	db *sql.DB
}

// NewStore creates a store on top of an open connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ActiveSubscribers returns all active subscribers with at least one region
// of interest. Order is irrelevant to the orchestrator.
func (s *Store) ActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error) {
	query := `SELECT id, email, COALESCE(first_name, ''), COALESCE(locale, 'en'), regions, status, subscribed_at
		FROM subscribers
		WHERE status = 'active' AND cardinality(regions) > 0`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query active subscribers: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscriber
	for rows.Next() {
		sub := &domain.Subscriber{}
		var regions pq.StringArray
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.FirstName, &sub.Locale, &regions, &sub.Status, &sub.SubscribedAt); err != nil {
			return nil, fmt.Errorf("scan subscriber: %w", err)
		}
		sub.Regions = regions
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

const listingColumns = `id, name, COALESCE(city, ''), COALESCE(region, ''), COALESCE(region_code, ''),
		COALESCE(rating, 0), COALESCE(currency, ''), COALESCE(price_month, 0), amenities,
		COALESCE(logo_url, ''), COALESCE(description, ''), status`

func (s *Store) scanListings(rows *sql.Rows) ([]*domain.Listing, error) {
	var listings []*domain.Listing
	for rows.Next() {
		l := &domain.Listing{}
		var amenities pq.StringArray
		err := rows.Scan(&l.ID, &l.Name, &l.City, &l.Region, &l.RegionCode, &l.Rating,
			&l.Currency, &l.PriceMonth, &amenities, &l.LogoURL, &l.Description, &l.Status)
		if err != nil {
			return nil, fmt.Errorf("scan listing: %w", err)
		}
		l.Amenities = amenities
		listings = append(listings, l)
	}
	return listings, rows.Err()
}

// ListingsByRegionName returns active listings whose region display name
// matches exactly, capped at limit.
func (s *Store) ListingsByRegionName(ctx context.Context, name string, limit int) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE region = $1 AND status = 'active' LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, name, limit)
	if err != nil {
		return nil, fmt.Errorf("query listings by region name: %w", err)
	}
	defer rows.Close()
	return s.scanListings(rows)
}

// ListingsByRegionCode returns active listings matching a region short code,
// capped at limit.
func (s *Store) ListingsByRegionCode(ctx context.Context, code string, limit int) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE region_code = $1 AND status = 'active' LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query listings by region code: %w", err)
	}
	defer rows.Close()
	return s.scanListings(rows)
}

// TopListingsByCountry returns the highest-rated active listings for a
// country code, used by the preview endpoint and onboarding flows.
func (s *Store) TopListingsByCountry(ctx context.Context, code string, limit int) ([]*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings
		WHERE region_code = $1 AND status = 'active' AND rating > 0
		ORDER BY rating DESC LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, code, limit)
	if err != nil {
		return nil, fmt.Errorf("query top listings: %w", err)
	}
	defer rows.Close()
	return s.scanListings(rows)
}

// GetListing retrieves a listing by id. Returns (nil, nil) when not found.
func (s *Store) GetListing(ctx context.Context, id string) (*domain.Listing, error) {
	query := `SELECT ` + listingColumns + ` FROM listings WHERE id = $1`

	l := &domain.Listing{}
	var amenities pq.StringArray
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&l.ID, &l.Name, &l.City, &l.Region, &l.RegionCode, &l.Rating,
		&l.Currency, &l.PriceMonth, &amenities, &l.LogoURL, &l.Description, &l.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get listing: %w", err)
	}
	l.Amenities = amenities
	return l, nil
}

// NearbyPlaces returns a listing's points of interest grouped by category.
// An empty map means the listing simply has no mapped surroundings.
func (s *Store) NearbyPlaces(ctx context.Context, listingID string) (map[domain.PlaceCategory][]domain.NearbyPlace, error) {
	query := `SELECT listing_id, COALESCE(name, ''), category, COALESCE(rating, 0),
			COALESCE(walk_minutes, 0), COALESCE(distance_meters, 0)
		FROM listing_places WHERE listing_id = $1`

	rows, err := s.db.QueryContext(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("query nearby places: %w", err)
	}
	defer rows.Close()

	places := make(map[domain.PlaceCategory][]domain.NearbyPlace)
	for rows.Next() {
		var p domain.NearbyPlace
		if err := rows.Scan(&p.ListingID, &p.Name, &p.Category, &p.Rating, &p.WalkMinutes, &p.DistanceMeters); err != nil {
			return nil, fmt.Errorf("scan nearby place: %w", err)
		}
		places[p.Category] = append(places[p.Category], p)
	}
	return places, rows.Err()
}

// RegionByCode retrieves a region with its community links by short code.
// Returns (nil, nil) when not found.
func (s *Store) RegionByCode(ctx context.Context, code string) (*domain.Region, error) {
	return s.regionBy(ctx, "code", code)
}

// RegionByName retrieves a region with its community links by display name.
// Returns (nil, nil) when not found.
func (s *Store) RegionByName(ctx context.Context, name string) (*domain.Region, error) {
	return s.regionBy(ctx, "name", name)
}

func (s *Store) regionBy(ctx context.Context, column, value string) (*domain.Region, error) {
	query := fmt.Sprintf(`SELECT code, name FROM regions WHERE %s = $1`, column)

	r := &domain.Region{}
	err := s.db.QueryRowContext(ctx, query, value).Scan(&r.Code, &r.Name)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get region by %s: %w", column, err)
	}

	commQuery := `SELECT COALESCE(platform, ''), COALESCE(display_name, ''), COALESCE(join_url, ''), COALESCE(members, 0)
		FROM region_communities WHERE region_code = $1 ORDER BY members DESC`

	rows, err := s.db.QueryContext(ctx, commQuery, r.Code)
	if err != nil {
		return nil, fmt.Errorf("query region communities: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c domain.CommunityLink
		if err := rows.Scan(&c.Platform, &c.DisplayName, &c.JoinURL, &c.Members); err != nil {
			return nil, fmt.Errorf("scan community link: %w", err)
		}
		r.Communities = append(r.Communities, c)
	}
	return r, rows.Err()
}
