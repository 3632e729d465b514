package domain

// ListingStatus enumerates the lifecycle states of a catalog listing.
// Only active listings are eligible for selection.
type ListingStatus string

const (
	ListingActive   ListingStatus = "active"
	ListingInactive ListingStatus = "inactive"
)

// Listing is a coliving space in the catalog, eligible for recommendation
// when active. Region naming in the store is inconsistent (display names,
// short codes, mixed casing), which is why the catalog lookup runs a
// cascade of query strategies.
type Listing struct {
	ID          string        `json:"id" db:"id"`
	Name        string        `json:"name" db:"name"`
	City        string        `json:"city" db:"city"`
	Region      string        `json:"region" db:"region"`
	RegionCode  string        `json:"region_code" db:"region_code"`
	Rating      float64       `json:"rating" db:"rating"`
	Currency    string        `json:"currency" db:"currency"`
	PriceMonth  int           `json:"price_month" db:"price_month"`
	Amenities   []string      `json:"amenities" db:"amenities"`
	LogoURL     string        `json:"logo_url" db:"logo_url"`
	Description string        `json:"description" db:"description"`
	Status      ListingStatus `json:"status" db:"status"`
}

// PlaceCategory enumerates the fixed set of nearby-place categories.
type PlaceCategory string

const (
	PlaceRestaurant  PlaceCategory = "restaurant"
	PlaceCafe        PlaceCategory = "cafe"
	PlaceCoworking   PlaceCategory = "coworking"
	PlaceGym         PlaceCategory = "gym"
	PlaceBeach       PlaceCategory = "beach"
	PlaceSupermarket PlaceCategory = "supermarket"
	PlaceTransport   PlaceCategory = "transport"
)

// PlaceCategoryPriority is the order in which the assembler considers
// categories when picking nearby places.
var PlaceCategoryPriority = []PlaceCategory{
	PlaceRestaurant,
	PlaceCafe,
	PlaceCoworking,
	PlaceGym,
	PlaceBeach,
	PlaceSupermarket,
	PlaceTransport,
}

// NearbyPlace is a point of interest near one listing. Exactly one of
// WalkMinutes / DistanceMeters is expected to be populated; neither is
// required.
type NearbyPlace struct {
	ListingID      string        `json:"listing_id" db:"listing_id"`
	Name           string        `json:"name" db:"name"`
	Category       PlaceCategory `json:"category" db:"category"`
	Rating         float64       `json:"rating" db:"rating"`
	WalkMinutes    int           `json:"walk_minutes" db:"walk_minutes"`
	DistanceMeters int           `json:"distance_meters" db:"distance_meters"`
}

// CommunityLink is a join link for a regional community (Whatsapp group,
// Slack, forum...). Enrichment only; absence is never an error.
type CommunityLink struct {
	Platform    string `json:"platform" db:"platform"`
	DisplayName string `json:"display_name" db:"display_name"`
	JoinURL     string `json:"join_url" db:"join_url"`
	Members     int    `json:"members" db:"members"`
}

// Region is a country/territory record with its community links.
type Region struct {
	Code        string          `json:"code" db:"code"`
	Name        string          `json:"name" db:"name"`
	Communities []CommunityLink `json:"communities" db:"communities"`
}
