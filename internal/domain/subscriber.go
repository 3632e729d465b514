package domain

import "time"

// SubscriberStatus enumerates subscriber lifecycle states. The campaign
// pipeline only ever reads subscribers; status transitions happen upstream.
type SubscriberStatus string

const (
	SubscriberActive       SubscriberStatus = "active"
	SubscriberUnsubscribed SubscriberStatus = "unsubscribed"
	SubscriberBounced      SubscriberStatus = "bounced"
)

// Subscriber is a recipient of the weekly recommendation email.
// Read-only to the campaign pipeline.
type Subscriber struct {
	ID          string           `json:"id" db:"id"`
	Email       string           `json:"email" db:"email"`
	FirstName   string           `json:"first_name" db:"first_name"`
	Locale      string           `json:"locale" db:"locale"`
	Regions     []string         `json:"regions" db:"regions"`
	Status      SubscriberStatus `json:"status" db:"status"`
	SubscribedAt time.Time       `json:"subscribed_at" db:"subscribed_at"`
}

// Eligible reports whether the subscriber qualifies for a campaign run:
// active with at least one region of interest.
func (s *Subscriber) Eligible() bool {
	return s.Status == SubscriberActive && len(s.Regions) > 0
}
