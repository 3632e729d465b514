// Package campaign runs the weekly send: enumerate subscribers, pick a
// listing per subscriber, assemble and render the recommendation, deliver
// it, and write the audit trail. One subscriber failing never aborts the
// run; the run's terminal status reflects the aggregate outcome.
package campaign

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/colively/campaign-engine/internal/audit"
	"github.com/colively/campaign-engine/internal/catalog"
	"github.com/colively/campaign-engine/internal/config"
	"github.com/colively/campaign-engine/internal/delivery"
	"github.com/colively/campaign-engine/internal/domain"
	"github.com/colively/campaign-engine/internal/pkg/logger"
	"github.com/colively/campaign-engine/internal/render"
)

// SubscriberSource enumerates the recipients of a run.
type SubscriberSource interface {
	ActiveSubscribers(ctx context.Context) ([]*domain.Subscriber, error)
}

// Selector resolves a listing for a subscriber's region preferences.
type Selector interface {
	SelectListing(ctx context.Context, regions []string) (catalog.Result, bool)
}

// Assembler builds the renderable recommendation for a chosen listing.
type Assembler interface {
	Assemble(ctx context.Context, listingID, regionUsed string) (*domain.Recommendation, bool)
}

// Sender delivers one rendered message.
type Sender interface {
	Send(ctx context.Context, msg delivery.Message) delivery.SendResult
}

// ManualOptions control an operator-triggered run.
type ManualOptions struct {
	// TestMode redirects every message to TestEmail instead of the
	// subscriber's real address.
	TestMode  bool
	TestEmail string
	// Limit caps how many subscribers are processed; zero means all.
	Limit int
}

// Orchestrator drives one campaign run end to end.
type Orchestrator struct {
	subscribers SubscriberSource
	selector    Selector
	assembler   Assembler
	renderer    *render.Renderer
	sender      Sender
	recorder    audit.Recorder
	cfg         config.CampaignConfig

	// injectable for tests
	sleep func(ctx context.Context, d time.Duration)
	now   func() time.Time
}

// NewOrchestrator wires a run pipeline from its collaborators.
func NewOrchestrator(
	subscribers SubscriberSource,
	selector Selector,
	assembler Assembler,
	renderer *render.Renderer,
	sender Sender,
	recorder audit.Recorder,
	cfg config.CampaignConfig,
) *Orchestrator {
	return &Orchestrator{
		subscribers: subscribers,
		selector:    selector,
		assembler:   assembler,
		renderer:    renderer,
		sender:      sender,
		recorder:    recorder,
		cfg:         cfg,
		sleep:       sleepCtx,
		now:         time.Now,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Run executes the scheduled weekly campaign: all eligible subscribers, in
// batches, with pacing between batches and a wall-clock budget for the
// whole run.
func (o *Orchestrator) Run(ctx context.Context) (run domain.CampaignRun) {
	runID := uuid.NewString()
	start := o.now()
	defer o.recoverRun(ctx, runID, start, &run)
	logger.Info("campaign run starting", "run_id", runID, "campaign", o.cfg.Name)

	subs, err := o.subscribers.ActiveSubscribers(ctx)
	if err != nil {
		logger.Error("subscriber enumeration failed", "run_id", runID, "error", err)
		o.recorder.RunFailed(ctx, runID, err.Error())
		return o.finalize(ctx, runID, start, 0, 0, 0, domain.RunFailed, false)
	}

	eligible := make([]*domain.Subscriber, 0, len(subs))
	for _, s := range subs {
		if s.Eligible() {
			eligible = append(eligible, s)
		}
	}
	if len(eligible) == 0 {
		logger.Info("campaign run has no eligible subscribers", "run_id", runID)
		return o.finalize(ctx, runID, start, 0, 0, 0, domain.RunCompletedNoSubscribers, true)
	}

	var deadline time.Time
	if budget := o.cfg.RunBudget(); budget > 0 {
		deadline = start.Add(budget)
	}

	var sent, failed int
	batchSize := o.cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 25
	}

	for offset := 0; offset < len(eligible); offset += batchSize {
		end := offset + batchSize
		if end > len(eligible) {
			end = len(eligible)
		}

		if o.overBudget(deadline) || ctx.Err() != nil {
			remaining := eligible[offset:]
			logger.Warn("campaign run out of budget", "run_id", runID, "remaining", len(remaining))
			for _, sub := range remaining {
				o.recorder.SubscriberFailed(ctx, runID, sub.ID, audit.StageDelivery, "run timed out")
				failed++
			}
			break
		}

		for _, sub := range eligible[offset:end] {
			if o.process(ctx, runID, sub, "") {
				sent++
			} else {
				failed++
			}
		}

		if end < len(eligible) {
			o.sleep(ctx, o.cfg.BatchPause())
		}
	}

	status := runStatus(sent, failed)
	return o.finalize(ctx, runID, start, len(eligible), sent, failed, status, true)
}

// RunManual executes an operator-triggered run: no batching, no pacing, no
// budget, with optional recipient redirection and a subscriber cap.
func (o *Orchestrator) RunManual(ctx context.Context, opts ManualOptions) (run domain.CampaignRun) {
	runID := uuid.NewString()
	start := o.now()
	defer o.recoverRun(ctx, runID, start, &run)
	logger.Info("manual campaign run starting", "run_id", runID,
		"test_mode", opts.TestMode, "limit", opts.Limit)

	subs, err := o.subscribers.ActiveSubscribers(ctx)
	if err != nil {
		o.recorder.RunFailed(ctx, runID, err.Error())
		return o.finalize(ctx, runID, start, 0, 0, 0, domain.RunFailed, false)
	}

	eligible := make([]*domain.Subscriber, 0, len(subs))
	for _, s := range subs {
		if s.Eligible() {
			eligible = append(eligible, s)
		}
	}
	if opts.Limit > 0 && len(eligible) > opts.Limit {
		eligible = eligible[:opts.Limit]
	}
	if len(eligible) == 0 {
		return o.finalize(ctx, runID, start, 0, 0, 0, domain.RunCompletedNoSubscribers, true)
	}

	redirect := ""
	if opts.TestMode {
		redirect = opts.TestEmail
	}

	var sent, failed int
	for _, sub := range eligible {
		if o.process(ctx, runID, sub, redirect) {
			sent++
		} else {
			failed++
		}
	}

	return o.finalize(ctx, runID, start, len(eligible), sent, failed, runStatus(sent, failed), true)
}

// process handles one subscriber end to end. Every failure path records an
// audit entry and returns false; nothing propagates upward.
func (o *Orchestrator) process(ctx context.Context, runID string, sub *domain.Subscriber, redirect string) bool {
	result, ok := o.selector.SelectListing(ctx, sub.Regions)
	if !ok {
		logger.Info("no listing for subscriber regions", "run_id", runID, "subscriber", sub.ID)
		o.recorder.SubscriberFailed(ctx, runID, sub.ID, audit.StageSelection, "no listing found for preferred regions")
		return false
	}

	rec, ok := o.assembler.Assemble(ctx, result.ListingID, result.RegionUsed)
	if !ok {
		o.recorder.SubscriberFailed(ctx, runID, sub.ID, audit.StageAssembly, "recommendation assembly failed")
		return false
	}

	to := sub.Email
	if redirect != "" {
		to = redirect
	}

	msg := delivery.Message{
		To:          to,
		Subject:     render.Subject("", sub, rec),
		HTML:        o.renderer.HTML(sub, rec),
		Text:        o.renderer.Text(sub, rec),
		ReferenceID: delivery.ReferenceID(o.cfg.Name, sub.Email),
		Tags: map[string]string{
			"campaign":    o.cfg.Name,
			"region_used": rec.RegionUsed,
			"listing_id":  rec.Listing.ID,
		},
	}

	res := o.sender.Send(ctx, msg)
	outcome := domain.DeliveryOutcome{
		RunID:      runID,
		Email:      sub.Email,
		Success:    res.Success,
		MessageID:  res.MessageID,
		Reason:     res.Reason,
		RegionUsed: rec.RegionUsed,
		ListingID:  rec.Listing.ID,
		CreatedAt:  o.now(),
	}
	if !res.Success {
		logger.Warn("delivery failed", "run_id", runID, "subscriber", sub.ID, "reason", res.Reason)
		o.recorder.EmailFailed(ctx, outcome)
		return false
	}
	o.recorder.EmailSent(ctx, outcome)
	return true
}

// recoverRun is the outermost boundary: anything escaping the per-subscriber
// scope is recorded as a run-level failure and must not crash the host.
func (o *Orchestrator) recoverRun(ctx context.Context, runID string, start time.Time, run *domain.CampaignRun) {
	r := recover()
	if r == nil {
		return
	}
	logger.Error("campaign run panicked", "run_id", runID, "panic", fmt.Sprintf("%v", r))
	o.recorder.RunFailed(ctx, runID, fmt.Sprintf("panic: %v", r))
	*run = domain.CampaignRun{
		ID:        runID,
		Campaign:  o.cfg.Name,
		Status:    domain.RunFailed,
		CreatedAt: start,
	}
}

func (o *Orchestrator) overBudget(deadline time.Time) bool {
	return !deadline.IsZero() && o.now().After(deadline)
}

func (o *Orchestrator) finalize(ctx context.Context, runID string, start time.Time, processed, sent, failed int, status domain.RunStatus, record bool) domain.CampaignRun {
	run := domain.CampaignRun{
		ID:                   runID,
		Campaign:             o.cfg.Name,
		SubscribersProcessed: processed,
		EmailsSent:           sent,
		EmailsFailed:         failed,
		Status:               status,
		CreatedAt:            start,
	}
	if record {
		o.recorder.RunCompleted(ctx, run)
	}
	logger.Info("campaign run finished", "run_id", runID, "status", string(status),
		"processed", processed, "sent", sent, "failed", failed,
		"duration", o.now().Sub(start).String())
	return run
}

func runStatus(sent, failed int) domain.RunStatus {
	if failed > 0 {
		return domain.RunCompletedWithErrors
	}
	if sent == 0 {
		return domain.RunCompletedNoSubscribers
	}
	return domain.RunCompletedSuccess
}
