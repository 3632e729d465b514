package domain

import "time"

// RunStatus enumerates the terminal states of one campaign run.
type RunStatus string

const (
	RunCompletedSuccess       RunStatus = "completed_success"
	RunCompletedWithErrors    RunStatus = "completed_with_errors"
	RunCompletedNoSubscribers RunStatus = "completed_no_subscribers"
	RunFailed                 RunStatus = "failed"
)

// CampaignRun summarizes one orchestrator execution. Written once at
// finalization, immutable thereafter.
type CampaignRun struct {
	ID                   string    `json:"id"`
	Campaign             string    `json:"campaign"`
	SubscribersProcessed int       `json:"subscribers_processed"`
	EmailsSent           int       `json:"emails_sent"`
	EmailsFailed         int       `json:"emails_failed"`
	Status               RunStatus `json:"status"`
	CreatedAt            time.Time `json:"created_at"`
}

// DeliveryOutcome is one append-only record per subscriber per send attempt.
type DeliveryOutcome struct {
	RunID      string    `json:"run_id"`
	Email      string    `json:"email"`
	Success    bool      `json:"success"`
	MessageID  string    `json:"message_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	RegionUsed string    `json:"region_used,omitempty"`
	ListingID  string    `json:"listing_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RecommendedPlace is a nearby place normalized for rendering: the distance
// has already been collapsed into a single human-readable string.
type RecommendedPlace struct {
	Name     string        `json:"name"`
	Category PlaceCategory `json:"category"`
	Rating   float64       `json:"rating"`
	Distance string        `json:"distance"`
}

// Recommendation is the ephemeral per-subscriber bundle handed to the
// renderer: one listing plus ranked nearby places and community links.
// Never persisted; lives only for one render-and-send.
type Recommendation struct {
	Listing     Listing            `json:"listing"`
	Places      []RecommendedPlace `json:"places"`
	Communities []CommunityLink    `json:"communities"`
	RegionUsed  string             `json:"region_used"`
}
