// Package recommend assembles the per-subscriber recommendation bundle:
// one resolved listing enriched with ranked nearby places and regional
// community links.
package recommend

import (
	"context"
	"fmt"
	"sort"

	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

const (
	// ratingThreshold is the minimum quality score for a nearby place to
	// be worth recommending.
	ratingThreshold = 4.0
	// perCategoryMax caps picks within one category so a single category
	// can't crowd out the rest.
	perCategoryMax = 2
	// maxPlaces bounds the merged, ranked nearby-places list.
	maxPlaces = 8
	// maxCommunities bounds the community links taken from the region.
	maxCommunities = 4
)

// Display fallbacks for listings with sparse data. The renderer must never
// see an empty required field.
const (
	defaultName        = "A coliving space"
	defaultCity        = "a great location"
	defaultDescription = "A coliving space we think you'll like."
	defaultCurrency    = "EUR"
)

// CatalogSource is the subset of the catalog store the assembler needs.
type CatalogSource interface {
	GetListing(ctx context.Context, id string) (*domain.Listing, error)
	NearbyPlaces(ctx context.Context, listingID string) (map[domain.PlaceCategory][]domain.NearbyPlace, error)
}

// RegionSource resolves region records for community-link enrichment.
// Typically satisfied by the Redis-cached store decorator.
type RegionSource interface {
	RegionByCode(ctx context.Context, code string) (*domain.Region, error)
	RegionByName(ctx context.Context, name string) (*domain.Region, error)
}

// Assembler builds Recommendation payloads.
type Assembler struct {
	catalog CatalogSource
	regions RegionSource
}

// NewAssembler creates an assembler over the given sources.
func NewAssembler(catalog CatalogSource, regions RegionSource) *Assembler {
	return &Assembler{catalog: catalog, regions: regions}
}

// Assemble produces the recommendation for one resolved listing. Any lookup
// error is logged and converted into the (nil, false) failure sentinel: one
// subscriber's data problem must not abort the batch.
func (a *Assembler) Assemble(ctx context.Context, listingID, regionUsed string) (*domain.Recommendation, bool) {
	listing, err := a.catalog.GetListing(ctx, listingID)
	if err != nil {
		logger.Warn("assembler: listing fetch failed", "listing_id", listingID, "error", err)
		return nil, false
	}
	if listing == nil {
		logger.Warn("assembler: listing vanished between lookup and assembly", "listing_id", listingID)
		return nil, false
	}

	rec := &domain.Recommendation{
		Listing:    applyDefaults(*listing, regionUsed),
		RegionUsed: regionUsed,
	}

	byCategory, err := a.catalog.NearbyPlaces(ctx, listingID)
	if err != nil {
		logger.Warn("assembler: nearby places fetch failed", "listing_id", listingID, "error", err)
		byCategory = nil
	}
	rec.Places = pickPlaces(byCategory)

	region := a.resolveRegion(ctx, listing)
	if region != nil {
		links := region.Communities
		if len(links) > maxCommunities {
			links = links[:maxCommunities]
		}
		rec.Communities = links
	}

	return rec, true
}

// resolveRegion tries the listing's short code first, then its display name.
// Absence of a region record is not an error; enrichment is optional.
func (a *Assembler) resolveRegion(ctx context.Context, listing *domain.Listing) *domain.Region {
	if listing.RegionCode != "" {
		region, err := a.regions.RegionByCode(ctx, listing.RegionCode)
		if err != nil {
			logger.Warn("assembler: region lookup by code failed", "code", listing.RegionCode, "error", err)
		} else if region != nil {
			return region
		}
	}
	if listing.Region != "" {
		region, err := a.regions.RegionByName(ctx, listing.Region)
		if err != nil {
			logger.Warn("assembler: region lookup by name failed", "region", listing.Region, "error", err)
		} else if region != nil {
			return region
		}
	}
	return nil
}

// pickPlaces takes at most two qualifying places per category in priority
// order, then ranks the merged set by rating and truncates to maxPlaces.
func pickPlaces(byCategory map[domain.PlaceCategory][]domain.NearbyPlace) []domain.RecommendedPlace {
	var merged []domain.RecommendedPlace
	for _, category := range domain.PlaceCategoryPriority {
		taken := 0
		for _, p := range byCategory[category] {
			if p.Name == "" || p.Rating < ratingThreshold {
				continue
			}
			merged = append(merged, domain.RecommendedPlace{
				Name:     p.Name,
				Category: p.Category,
				Rating:   p.Rating,
				Distance: FormatDistance(p),
			})
			taken++
			if taken == perCategoryMax {
				break
			}
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].Rating > merged[j].Rating
	})
	if len(merged) > maxPlaces {
		merged = merged[:maxPlaces]
	}
	return merged
}

// FormatDistance collapses a place's distance fields into one human-readable
// string. Walking time wins when present; raw meters are promoted to
// kilometers with one decimal at 1000 m.
func FormatDistance(p domain.NearbyPlace) string {
	if p.WalkMinutes > 0 {
		return fmt.Sprintf("%d min walk", p.WalkMinutes)
	}
	if p.DistanceMeters >= 1000 {
		return fmt.Sprintf("%.1f km", float64(p.DistanceMeters)/1000)
	}
	if p.DistanceMeters > 0 {
		return fmt.Sprintf("%d m", p.DistanceMeters)
	}
	return ""
}

func applyDefaults(l domain.Listing, regionUsed string) domain.Listing {
	if l.Name == "" {
		l.Name = defaultName
	}
	if l.City == "" {
		l.City = defaultCity
	}
	if l.Region == "" {
		l.Region = regionUsed
	}
	if l.Description == "" {
		l.Description = defaultDescription
	}
	if l.Currency == "" {
		l.Currency = defaultCurrency
	}
	return l
}
