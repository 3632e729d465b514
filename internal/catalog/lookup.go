// Package catalog resolves a listing for a subscriber's region preferences.
//
// Region keys in the directory are free text: some subscribers store display
// names ("Spain"), some store short codes ("es"), and listings themselves are
// indexed inconsistently. The lookup therefore runs an ordered cascade of
// query strategies and stops at the first one that yields candidates.
package catalog

import (
	"context"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/pkg/logger"
)

const (
	// candidateCap bounds every strategy query.
	candidateCap = 20
	// topPickMin is the minimum head size for quality-biased sampling:
	// pick from the top half of scored candidates, or the top 5,
	// whichever is larger.
	topPickMin = 5
)

// ListingSource is the subset of the catalog store the lookup needs.
type ListingSource interface {
	ListingsByRegionName(ctx context.Context, name string, limit int) ([]*domain.Listing, error)
	ListingsByRegionCode(ctx context.Context, code string, limit int) ([]*domain.Listing, error)
}

// Result is a successful lookup: the chosen listing and the region key that
// actually produced it (may differ in casing from the subscriber preference).
type Result struct {
	ListingID  string
	RegionUsed string
}

// Lookup picks a listing for a set of preferred region keys.
type Lookup struct {
	source ListingSource
	rng    *rand.Rand
}

// NewLookup creates a lookup. A nil rng gets a time-seeded one; tests pass
// a fixed seed for determinism.
func NewLookup(source ListingSource, rng *rand.Rand) *Lookup {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Lookup{source: source, rng: rng}
}

// strategy is one step of the fallback cascade.
type strategy struct {
	name string
	// kind + query identify the store round-trip so redundant case
	// variants can be skipped.
	kind  string
	query string
}

func cascade(key string) []strategy {
	return []strategy{
		{name: "name_exact", kind: "name", query: key},
		{name: "code_upper", kind: "code", query: strings.ToUpper(key)},
		{name: "name_lower", kind: "name", query: strings.ToLower(key)},
		{name: "name_upper", kind: "name", query: strings.ToUpper(key)},
		{name: "name_title", kind: "name", query: strings.Title(strings.ToLower(key))},
	}
}

// SelectListing picks one region key uniformly at random, resolves candidates
// through the cascade, and applies quality-biased selection. Store errors are
// logged and reported to the caller as not-found; they must never abort a run.
func (l *Lookup) SelectListing(ctx context.Context, regions []string) (Result, bool) {
	if len(regions) == 0 {
		return Result{}, false
	}
	key := regions[l.rng.Intn(len(regions))]

	tried := make(map[string]bool)
	for _, s := range cascade(key) {
		dedupe := s.kind + ":" + s.query
		if tried[dedupe] {
			continue
		}
		tried[dedupe] = true

		var candidates []*domain.Listing
		var err error
		switch s.kind {
		case "code":
			candidates, err = l.source.ListingsByRegionCode(ctx, s.query, candidateCap)
		default:
			candidates, err = l.source.ListingsByRegionName(ctx, s.query, candidateCap)
		}
		if err != nil {
			logger.Warn("catalog lookup strategy failed", "strategy", s.name, "region", key, "error", err)
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		picked := l.pick(candidates)
		logger.Debug("catalog lookup resolved", "strategy", s.name, "region", key,
			"candidates", len(candidates), "listing_id", picked.ID)
		return Result{ListingID: picked.ID, RegionUsed: key}, true
	}

	return Result{}, false
}

// pick applies the two-tier selection policy: bias toward quality when
// scores exist, but guarantee a pick whenever any candidate exists at all.
func (l *Lookup) pick(candidates []*domain.Listing) *domain.Listing {
	scored := make([]*domain.Listing, 0, len(candidates))
	for _, c := range candidates {
		if c.Rating > 0 {
			scored = append(scored, c)
		}
	}

	if len(scored) == 0 {
		return candidates[l.rng.Intn(len(candidates))]
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Rating > scored[j].Rating
	})

	head := (len(scored) + 1) / 2
	if head < topPickMin {
		head = topPickMin
	}
	if head > len(scored) {
		head = len(scored)
	}
	return scored[l.rng.Intn(head)]
}
