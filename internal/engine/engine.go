package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/canopyops/canopy-core/internal/batch"
	"github.com/canopyops/canopy-core/internal/infrastructure/mqtt"
	"github.com/canopyops/canopy-core/internal/rule"
	"github.com/canopyops/canopy-core/internal/schedule"
	"github.com/canopyops/canopy-core/internal/workflow"
)

// ScheduleRunner drives schedule polling and manual schedule runs.
type ScheduleRunner interface {
	CheckSchedules(ctx context.Context) (*schedule.CheckResult, error)
	ExecuteSchedule(ctx context.Context, id string) (map[string]any, error)
}

// RuleExecutor runs a single rule.
type RuleExecutor interface {
	Execute(ctx context.Context, ruleID string) (*rule.Execution, error)
}

// WorkflowRunner runs a single workflow.
type WorkflowRunner interface {
	Execute(ctx context.Context, workflowID string, data map[string]any) (*workflow.Execution, error)
}

// BatchRunner runs a single batch.
type BatchRunner interface {
	ExecuteBatch(ctx context.Context, batchID string) (*batch.ExecResult, error)
}

// AnomalyScanner derives anomalies over recent history.
type AnomalyScanner interface {
	ScanHistory(ctx context.Context, since time.Time) (int, error)
}

// MilestoneGenerator derives milestones over recent history.
type MilestoneGenerator interface {
	Generate(ctx context.Context, since time.Time) (int, error)
}

// AnomalyJanitor deletes old resolved anomalies.
type AnomalyJanitor interface {
	DeleteResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NotificationJanitor deletes old acknowledged notifications.
type NotificationJanitor interface {
	DeleteAcknowledgedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// HistoryJanitor prunes analysis history per plant.
type HistoryJanitor interface {
	DistinctPlantIDs(ctx context.Context) ([]string, error)
	PruneKeepNewest(ctx context.Context, plantID string, keep int) (int64, error)
}

// Publisher pushes engine events onto the message bus.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Policy holds the timing and retention knobs of the engine.
type Policy struct {
	// CleanupInterval is the minimum gap between cleanup passes.
	CleanupInterval time.Duration

	// AnomalyLookback bounds the history window scanned for anomalies.
	AnomalyLookback time.Duration

	// MilestoneLookback bounds the history window scanned for milestones.
	MilestoneLookback time.Duration

	// AnomalyRetention is how long resolved anomalies are kept.
	AnomalyRetention time.Duration

	// NotificationRetention is how long acknowledged notifications are kept.
	NotificationRetention time.Duration

	// HistoryKeepPerPlant is the number of history rows kept per plant.
	HistoryKeepPerPlant int
}

// DefaultPolicy returns the standard engine policy.
func DefaultPolicy() Policy {
	return Policy{
		CleanupInterval:       6 * time.Hour,
		AnomalyLookback:       24 * time.Hour,
		MilestoneLookback:     12 * time.Hour,
		AnomalyRetention:      90 * 24 * time.Hour,
		NotificationRetention: 30 * 24 * time.Hour,
		HistoryKeepPerPlant:   200,
	}
}

// Deps bundles the engine's collaborators. Publisher is optional.
type Deps struct {
	Scheduler     ScheduleRunner
	Rules         RuleExecutor
	Workflows     WorkflowRunner
	Batches       BatchRunner
	Anomalies     AnomalyScanner
	Milestones    MilestoneGenerator
	AnomalyStore  AnomalyJanitor
	Notifications NotificationJanitor
	History       HistoryJanitor
	Publisher     Publisher
	Logger        Logger
}

// Engine is the top-level automation facade.
//
// RunTick performs one full pass: schedule polling, anomaly and
// milestone derivation over recent history, and retention cleanup on
// its own lower-frequency clock. Each phase is isolated so one failing
// pass never blocks the others. Every entry point is also invocable
// on its own.
type Engine struct {
	deps   Deps
	policy Policy
	logger Logger

	mu          sync.Mutex
	lastCleanup time.Time

	// now is replaced in tests.
	now func() time.Time
}

// New creates an engine.
func New(deps Deps, policy Policy) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	if policy.CleanupInterval <= 0 {
		policy.CleanupInterval = DefaultPolicy().CleanupInterval
	}
	if policy.AnomalyLookback <= 0 {
		policy.AnomalyLookback = DefaultPolicy().AnomalyLookback
	}
	if policy.MilestoneLookback <= 0 {
		policy.MilestoneLookback = DefaultPolicy().MilestoneLookback
	}
	if policy.AnomalyRetention <= 0 {
		policy.AnomalyRetention = DefaultPolicy().AnomalyRetention
	}
	if policy.NotificationRetention <= 0 {
		policy.NotificationRetention = DefaultPolicy().NotificationRetention
	}
	if policy.HistoryKeepPerPlant <= 0 {
		policy.HistoryKeepPerPlant = DefaultPolicy().HistoryKeepPerPlant
	}
	return &Engine{
		deps:   deps,
		policy: policy,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// TickResult summarises one full engine pass.
type TickResult struct {
	SchedulesChecked  int      `json:"schedulesChecked"`
	SchedulesExecuted int      `json:"schedulesExecuted"`
	AnomaliesCreated  int      `json:"anomaliesCreated"`
	MilestonesCreated int      `json:"milestonesCreated"`
	CleanupRan        bool     `json:"cleanupRan"`
	Errors            []string `json:"errors,omitempty"`
}

// RunTick performs one full engine pass. Phase failures are collected
// in the result rather than aborting the tick.
func (e *Engine) RunTick(ctx context.Context) *TickResult {
	now := e.now()
	result := &TickResult{}

	if check, err := e.deps.Scheduler.CheckSchedules(ctx); err != nil {
		e.logger.Error("schedule check failed", "error", err)
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.SchedulesChecked = check.Checked
		result.SchedulesExecuted = check.Executed
	}

	if created, err := e.deps.Anomalies.ScanHistory(ctx, now.Add(-e.policy.AnomalyLookback)); err != nil {
		e.logger.Error("anomaly scan failed", "error", err)
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.AnomaliesCreated = created
	}

	if created, err := e.deps.Milestones.Generate(ctx, now.Add(-e.policy.MilestoneLookback)); err != nil {
		e.logger.Error("milestone generation failed", "error", err)
		result.Errors = append(result.Errors, err.Error())
	} else {
		result.MilestonesCreated = created
	}

	if e.cleanupDue(now) {
		result.CleanupRan = true
		if _, err := e.CleanupOldData(ctx); err != nil {
			e.logger.Error("cleanup failed", "error", err)
			result.Errors = append(result.Errors, err.Error())
		}
	}

	e.publishTick(result)

	e.logger.Info("tick complete",
		"schedules_checked", result.SchedulesChecked,
		"schedules_executed", result.SchedulesExecuted,
		"anomalies_created", result.AnomaliesCreated,
		"milestones_created", result.MilestonesCreated,
		"cleanup_ran", result.CleanupRan,
		"errors", len(result.Errors),
	)
	return result
}

// cleanupDue reports whether enough time has passed since the last
// cleanup, and marks the pass as taken when it has.
func (e *Engine) cleanupDue(now time.Time) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.lastCleanup.IsZero() && now.Sub(e.lastCleanup) < e.policy.CleanupInterval {
		return false
	}
	e.lastCleanup = now
	return true
}

func (e *Engine) publishTick(result *TickResult) {
	if e.deps.Publisher == nil {
		return
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return
	}
	topic := mqtt.Topics{}.EngineEvent("tick")
	if err := e.deps.Publisher.Publish(topic, payload, 0, false); err != nil {
		e.logger.Debug("publishing tick event", "error", err)
	}
}

// CheckSchedules runs one scheduler pass.
func (e *Engine) CheckSchedules(ctx context.Context) (*schedule.CheckResult, error) {
	return e.deps.Scheduler.CheckSchedules(ctx)
}

// CheckForAnomalies scans recent history for anomalies and returns
// the number created.
func (e *Engine) CheckForAnomalies(ctx context.Context) (int, error) {
	return e.deps.Anomalies.ScanHistory(ctx, e.now().Add(-e.policy.AnomalyLookback))
}

// GenerateMilestones scans recent history for milestones and returns
// the number created.
func (e *Engine) GenerateMilestones(ctx context.Context) (int, error) {
	return e.deps.Milestones.Generate(ctx, e.now().Add(-e.policy.MilestoneLookback))
}

// ExecuteRule runs one rule by id.
func (e *Engine) ExecuteRule(ctx context.Context, ruleID string) (*rule.Execution, error) {
	return e.deps.Rules.Execute(ctx, ruleID)
}

// ExecuteSchedule runs one schedule by id.
func (e *Engine) ExecuteSchedule(ctx context.Context, scheduleID string) (map[string]any, error) {
	return e.deps.Scheduler.ExecuteSchedule(ctx, scheduleID)
}

// ExecuteWorkflow runs one workflow by id against a data context.
func (e *Engine) ExecuteWorkflow(ctx context.Context, workflowID string, data map[string]any) (*workflow.Execution, error) {
	return e.deps.Workflows.Execute(ctx, workflowID, data)
}

// ExecuteBatch runs one batch by id.
func (e *Engine) ExecuteBatch(ctx context.Context, batchID string) (*batch.ExecResult, error) {
	return e.deps.Batches.ExecuteBatch(ctx, batchID)
}
