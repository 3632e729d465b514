package campaign

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRunLaterThisWeek(t *testing.T) {
	// Friday 2026-02-27 09:00 UTC -> Monday 2026-03-02 10:00 UTC
	now := time.Date(2026, 2, 27, 9, 0, 0, 0, time.UTC)
	next := NextRun(now, time.Monday, 10)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), next)
}

func TestNextRunSameDayBeforeHour(t *testing.T) {
	now := time.Date(2026, 3, 2, 8, 30, 0, 0, time.UTC) // Monday
	next := NextRun(now, time.Monday, 10)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), next)
}

func TestNextRunSameDayAfterHourRollsAWeek(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 1, 0, time.UTC) // Monday, just past
	next := NextRun(now, time.Monday, 10)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), next)
}

func TestNextRunExactlyAtFireTimeRollsAWeek(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	next := NextRun(now, time.Monday, 10)
	assert.Equal(t, time.Date(2026, 3, 9, 10, 0, 0, 0, time.UTC), next)
}

func TestNextRunNonUTCInput(t *testing.T) {
	loc := time.FixedZone("CET", 3600)
	now := time.Date(2026, 3, 2, 9, 30, 0, 0, loc) // 08:30 UTC Monday
	next := NextRun(now, time.Monday, 10)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), next)
}
