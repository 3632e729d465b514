package campaign

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/colively/campaign-engine/internal/audit"
	"github.com/colively/campaign-engine/internal/catalog"
	"github.com/colively/campaign-engine/internal/config"
	"github.com/colively/campaign-engine/internal/delivery"
	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/render"
)

type fakeSubscribers struct {
	subs []*domain.Subscriber
	err  error
}

func (f *fakeSubscribers) ActiveSubscribers(context.Context) ([]*domain.Subscriber, error) {
	return f.subs, f.err
}

type fakeSelector struct {
	// failFor holds subscriber region keys that resolve to nothing
	failFor map[string]bool
}

func (f *fakeSelector) SelectListing(_ context.Context, regions []string) (catalog.Result, bool) {
	if len(regions) == 0 || f.failFor[regions[0]] {
		return catalog.Result{}, false
	}
	return catalog.Result{ListingID: "lst-" + regions[0], RegionUsed: regions[0]}, true
}

type fakeAssembler struct {
	failFor map[string]bool
}

func (f *fakeAssembler) Assemble(_ context.Context, listingID, regionUsed string) (*domain.Recommendation, bool) {
	if f.failFor[listingID] {
		return nil, false
	}
	return &domain.Recommendation{
		Listing:    domain.Listing{ID: listingID, Name: "House " + listingID, City: "Valencia", Region: regionUsed},
		RegionUsed: regionUsed,
	}, true
}

type fakeSender struct {
	sent    []delivery.Message
	failFor map[string]bool
}

func (f *fakeSender) Send(_ context.Context, msg delivery.Message) delivery.SendResult {
	f.sent = append(f.sent, msg)
	if f.failFor[msg.To] {
		return delivery.SendResult{Success: false, Reason: "smtp 550"}
	}
	return delivery.SendResult{Success: true, MessageID: "msg-" + msg.To}
}

type harness struct {
	subs     *fakeSubscribers
	selector *fakeSelector
	asm      *fakeAssembler
	sender   *fakeSender
	rec      *audit.Memory
	orch     *Orchestrator
	slept    []time.Duration
}

func newHarness(subs ...*domain.Subscriber) *harness {
	h := &harness{
		subs:     &fakeSubscribers{subs: subs},
		selector: &fakeSelector{failFor: map[string]bool{}},
		asm:      &fakeAssembler{failFor: map[string]bool{}},
		sender:   &fakeSender{failFor: map[string]bool{}},
		rec:      audit.NewMemory(),
	}
	cfg := config.CampaignConfig{
		Name: "weekly_coliving", BatchSize: 25, BatchPauseSeconds: 3, SiteBaseURL: "https://colively.com",
	}
	h.orch = NewOrchestrator(h.subs, h.selector, h.asm, render.NewRenderer(cfg.SiteBaseURL), h.sender, h.rec, cfg)
	h.orch.sleep = func(_ context.Context, d time.Duration) { h.slept = append(h.slept, d) }
	return h
}

func activeSub(i int, region string) *domain.Subscriber {
	return &domain.Subscriber{
		ID:      fmt.Sprintf("sub-%d", i),
		Email:   fmt.Sprintf("user%d@example.com", i),
		Regions: []string{region},
		Status:  domain.SubscriberActive,
	}
}

func TestRunAllSucceed(t *testing.T) {
	h := newHarness(activeSub(1, "Spain"), activeSub(2, "Portugal"))
	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunCompletedSuccess, run.Status)
	assert.Equal(t, 2, run.SubscribersProcessed)
	assert.Equal(t, 2, run.EmailsSent)
	assert.Equal(t, 0, run.EmailsFailed)
	require.Len(t, h.rec.Runs, 1)
	assert.Len(t, h.rec.Sent, 2)
}

func TestRunOneFailureDoesNotAbortOthers(t *testing.T) {
	subs := make([]*domain.Subscriber, 0, 25)
	for i := 0; i < 25; i++ {
		subs = append(subs, activeSub(i, "Spain"))
	}
	h := newHarness(subs...)
	h.sender.failFor["user7@example.com"] = true

	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunCompletedWithErrors, run.Status)
	assert.Equal(t, 24, run.EmailsSent)
	assert.Equal(t, 1, run.EmailsFailed)
	assert.Len(t, h.sender.sent, 25)
	assert.Len(t, h.rec.Failed, 1)
}

func TestRunAssemblerFailureInBatchStillSendsRest(t *testing.T) {
	subs := make([]*domain.Subscriber, 0, 25)
	for i := 0; i < 24; i++ {
		subs = append(subs, activeSub(i, "Spain"))
	}
	subs = append(subs, activeSub(24, "Mars"))
	h := newHarness(subs...)
	h.asm.failFor["lst-Mars"] = true

	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunCompletedWithErrors, run.Status)
	assert.Equal(t, 24, run.EmailsSent)
	assert.Equal(t, 1, run.EmailsFailed)
	assert.Len(t, h.sender.sent, 24)
	assert.Len(t, h.rec.FailuresForStage(audit.StageAssembly), 1)
}

func TestRunPanicBecomesRunFailure(t *testing.T) {
	h := newHarness(activeSub(1, "Spain"))
	h.orch.renderer = nil // nil renderer panics inside process

	var run domain.CampaignRun
	assert.NotPanics(t, func() { run = h.orch.Run(context.Background()) })
	assert.Equal(t, domain.RunFailed, run.Status)
	require.Len(t, h.rec.RunFails, 1)
	assert.Contains(t, h.rec.RunFails[0], "panic")
}

func TestRunSelectionFailureRecordsStage(t *testing.T) {
	h := newHarness(activeSub(1, "Atlantis"), activeSub(2, "Spain"))
	h.selector.failFor["Atlantis"] = true

	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunCompletedWithErrors, run.Status)
	fails := h.rec.FailuresForStage(audit.StageSelection)
	require.Len(t, fails, 1)
	assert.Equal(t, "sub-1", fails[0].SubscriberID)
	assert.Len(t, h.sender.sent, 1, "unaffected subscriber still gets mail")
}

func TestRunAssemblyFailureRecordsStage(t *testing.T) {
	h := newHarness(activeSub(1, "Spain"))
	h.asm.failFor["lst-Spain"] = true

	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunCompletedWithErrors, run.Status)
	assert.Len(t, h.rec.FailuresForStage(audit.StageAssembly), 1)
	assert.Empty(t, h.sender.sent)
}

func TestRunNoEligibleSubscribers(t *testing.T) {
	h := newHarness(
		&domain.Subscriber{ID: "u1", Email: "u1@x.com", Status: domain.SubscriberUnsubscribed, Regions: []string{"Spain"}},
		&domain.Subscriber{ID: "u2", Email: "u2@x.com", Status: domain.SubscriberActive}, // no regions
	)
	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunCompletedNoSubscribers, run.Status)
	assert.Empty(t, h.sender.sent)
	require.Len(t, h.rec.Runs, 1)
}

func TestRunEnumerationFailure(t *testing.T) {
	h := newHarness()
	h.subs.err = fmt.Errorf("connection refused")

	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunFailed, run.Status)
	require.Len(t, h.rec.RunFails, 1)
	assert.Contains(t, h.rec.RunFails[0], "connection refused")
	assert.Empty(t, h.rec.Runs, "a failed run writes a failure record, not a summary")
}

func TestRunPacesBetweenBatchesOnly(t *testing.T) {
	subs := make([]*domain.Subscriber, 0, 60)
	for i := 0; i < 60; i++ {
		subs = append(subs, activeSub(i, "Spain"))
	}
	h := newHarness(subs...)
	run := h.orch.Run(context.Background())

	assert.Equal(t, 60, run.EmailsSent)
	// 60 subscribers in batches of 25 is 3 batches and 2 pauses
	require.Len(t, h.slept, 2)
	assert.Equal(t, 3*time.Second, h.slept[0])
}

func TestRunBudgetFailsRemainingSubscribers(t *testing.T) {
	subs := make([]*domain.Subscriber, 0, 50)
	for i := 0; i < 50; i++ {
		subs = append(subs, activeSub(i, "Spain"))
	}
	h := newHarness(subs...)
	h.orch.cfg.RunBudgetMinutes = 10

	// advance the clock past the budget after the first batch completes
	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	calls := 0
	h.orch.now = func() time.Time {
		calls++
		if calls > 1 && len(h.sender.sent) >= 25 {
			return base.Add(11 * time.Minute)
		}
		return base
	}

	run := h.orch.Run(context.Background())

	assert.Equal(t, domain.RunCompletedWithErrors, run.Status)
	assert.Equal(t, 25, run.EmailsSent)
	assert.Equal(t, 25, run.EmailsFailed)
	fails := h.rec.FailuresForStage(audit.StageDelivery)
	require.Len(t, fails, 25)
	assert.Equal(t, "run timed out", fails[0].Reason)
}

func TestRunManualLimitAndNoPacing(t *testing.T) {
	subs := make([]*domain.Subscriber, 0, 40)
	for i := 0; i < 40; i++ {
		subs = append(subs, activeSub(i, "Spain"))
	}
	h := newHarness(subs...)

	run := h.orch.RunManual(context.Background(), ManualOptions{Limit: 5})

	assert.Equal(t, 5, run.SubscribersProcessed)
	assert.Equal(t, 5, run.EmailsSent)
	assert.Empty(t, h.slept)
}

func TestRunManualTestModeRedirects(t *testing.T) {
	h := newHarness(activeSub(1, "Spain"), activeSub(2, "Portugal"))

	run := h.orch.RunManual(context.Background(), ManualOptions{TestMode: true, TestEmail: "qa@colively.com"})

	assert.Equal(t, 2, run.EmailsSent)
	require.Len(t, h.sender.sent, 2)
	for _, msg := range h.sender.sent {
		assert.Equal(t, "qa@colively.com", msg.To)
	}
	// reference ids still derive from the real subscriber address
	assert.NotEqual(t, h.sender.sent[0].ReferenceID, h.sender.sent[1].ReferenceID)
}

func TestRunMessageCarriesTagsAndReference(t *testing.T) {
	h := newHarness(activeSub(1, "Spain"))
	h.orch.Run(context.Background())

	require.Len(t, h.sender.sent, 1)
	msg := h.sender.sent[0]
	assert.Equal(t, "weekly_coliving", msg.Tags["campaign"])
	assert.Equal(t, "Spain", msg.Tags["region_used"])
	assert.Equal(t, "lst-Spain", msg.Tags["listing_id"])
	assert.Equal(t, delivery.ReferenceID("weekly_coliving", "user1@example.com"), msg.ReferenceID)
	assert.NotEmpty(t, msg.Subject)
	assert.Contains(t, msg.HTML, "House lst-Spain")
}
