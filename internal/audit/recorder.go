// Package audit persists the append-only trail of campaign outcomes: run
// summaries, run-level failures, per-subscriber processing failures, and
// per-email results.
//
// Recording is fire-and-forget by contract. A broken audit store must never
// break a campaign, so implementations swallow and log their own failures
// instead of returning them.
package audit

import (
	"context"
	"sync"

	"github.com/colively/campaign-engine/internal/domain"
)

// Processing stages recorded on per-subscriber failures.
const (
	StageSelection = "coliving_selection"
	StageAssembly  = "assembly"
	StageDelivery  = "delivery"
)

// Recorder is the capability interface the orchestrator records through.
type Recorder interface {
	RunCompleted(ctx context.Context, run domain.CampaignRun)
	RunFailed(ctx context.Context, runID, reason string)
	SubscriberFailed(ctx context.Context, runID, subscriberID, stage, reason string)
	EmailSent(ctx context.Context, outcome domain.DeliveryOutcome)
	EmailFailed(ctx context.Context, outcome domain.DeliveryOutcome)
}

// SubscriberFailure is one per-subscriber processing failure record.
type SubscriberFailure struct {
	RunID        string `json:"run_id"`
	SubscriberID string `json:"subscriber_id"`
	Stage        string `json:"stage"`
	Reason       string `json:"reason"`
}

// Memory is an in-memory Recorder used by unit tests and the stub
// environment. Safe for concurrent use.
type Memory struct {
	mu       sync.Mutex
	Runs     []domain.CampaignRun
	RunFails []string
	SubFails []SubscriberFailure
	Sent     []domain.DeliveryOutcome
	Failed   []domain.DeliveryOutcome
}

// NewMemory creates an empty in-memory recorder.
func NewMemory() *Memory {
	return &Memory{}
}

func (m *Memory) RunCompleted(_ context.Context, run domain.CampaignRun) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Runs = append(m.Runs, run)
}

func (m *Memory) RunFailed(_ context.Context, runID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunFails = append(m.RunFails, reason)
}

func (m *Memory) SubscriberFailed(_ context.Context, runID, subscriberID, stage, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SubFails = append(m.SubFails, SubscriberFailure{
		RunID: runID, SubscriberID: subscriberID, Stage: stage, Reason: reason,
	})
}

func (m *Memory) EmailSent(_ context.Context, outcome domain.DeliveryOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, outcome)
}

func (m *Memory) EmailFailed(_ context.Context, outcome domain.DeliveryOutcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Failed = append(m.Failed, outcome)
}

// FailuresForStage returns the subscriber failures recorded for one stage.
func (m *Memory) FailuresForStage(stage string) []SubscriberFailure {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SubscriberFailure
	for _, f := range m.SubFails {
		if f.Stage == stage {
			out = append(out, f)
		}
	}
	return out
}
