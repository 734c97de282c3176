package schedule

import (
	"context"
	"time"

	"github.com/canopyops/canopy-core/internal/plant"
	"github.com/canopyops/canopy-core/internal/rule"
)

// RuleSource lists the enabled rules owned by a schedule.
type RuleSource interface {
	ListEnabledBySchedule(ctx context.Context, scheduleID string) ([]rule.Rule, error)
}

// RuleExecutor runs a single rule. Satisfied by rule.Executor.
type RuleExecutor interface {
	Execute(ctx context.Context, ruleID string) (*rule.Execution, error)
}

// HistorySink appends analysis history records.
type HistorySink interface {
	Create(ctx context.Context, rec *plant.HistoryRecord) error
}

// AnomalyDetector derives anomalies from a fresh analysis payload.
type AnomalyDetector interface {
	DetectFromAnalysis(ctx context.Context, plantID string, data map[string]any) error
}

// MetricsWriter records plant metrics in the time series store.
type MetricsWriter interface {
	WritePlantMetric(plantID, metric string, value float64)
}

// Logger defines the logging interface used by the Scheduler.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Scheduler polls due schedules and analysis schedulers and executes
// them.
//
// Each due item is claimed with a conditional update before any work
// happens, so overlapping passes cannot execute the same item twice.
// Per-item failures are recorded in the pass result and never stop
// the remaining due items.
type Scheduler struct {
	schedules  Repository
	schedulers SchedulerRepository
	rules      RuleSource
	executor   RuleExecutor
	analyzer   plant.Analyzer
	history    HistorySink
	detector   AnomalyDetector
	metrics    MetricsWriter
	logger     Logger

	// now is replaced in tests.
	now func() time.Time
}

// Options carries the optional collaborators of a Scheduler.
type Options struct {
	Detector AnomalyDetector
	Metrics  MetricsWriter
	Logger   Logger
}

// NewScheduler creates a scheduler. analyzer may be nil; scheduled
// analyses then record echo-only history rows.
func NewScheduler(schedules Repository, schedulers SchedulerRepository, rules RuleSource, executor RuleExecutor, analyzer plant.Analyzer, history HistorySink, opts Options) *Scheduler {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Scheduler{
		schedules:  schedules,
		schedulers: schedulers,
		rules:      rules,
		executor:   executor,
		analyzer:   analyzer,
		history:    history,
		detector:   opts.Detector,
		metrics:    opts.Metrics,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// CheckSchedules runs one scheduler pass: due analysis schedulers
// first, then due rule schedules.
func (s *Scheduler) CheckSchedules(ctx context.Context) (*CheckResult, error) {
	now := s.now()
	result := &CheckResult{Results: []map[string]any{}}

	dueSchedulers, err := s.schedulers.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}
	result.Checked += len(dueSchedulers)

	for _, sched := range dueSchedulers {
		itemResult, advanced := s.runScheduler(ctx, sched, now)
		if itemResult != nil {
			result.Results = append(result.Results, itemResult)
		}
		if advanced {
			result.Executed++
		}
	}

	dueSchedules, err := s.schedules.ListDue(ctx, now)
	if err != nil {
		return nil, err
	}
	result.Checked += len(dueSchedules)

	for _, sch := range dueSchedules {
		itemResult, advanced := s.runSchedule(ctx, sch, now)
		if itemResult != nil {
			result.Results = append(result.Results, itemResult)
		}
		if advanced {
			result.Executed++
		}
	}

	s.logger.Debug("scheduler pass complete",
		"checked", result.Checked,
		"executed", result.Executed,
	)
	return result, nil
}

// ExecuteSchedule runs one schedule by id outside the polling pass,
// for manual triggers. The same claim guard applies, so a manual run
// racing a tick executes at most once.
func (s *Scheduler) ExecuteSchedule(ctx context.Context, id string) (map[string]any, error) {
	sch, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sch.Enabled {
		return nil, ErrDisabled
	}

	result, advanced := s.runSchedule(ctx, *sch, s.now())
	if !advanced && result == nil {
		return nil, ErrNotClaimed
	}
	return result, nil
}

// runScheduler claims and executes one due analysis scheduler.
func (s *Scheduler) runScheduler(ctx context.Context, sched AnalysisScheduler, now time.Time) (map[string]any, bool) {
	next := NextRun(sched.Frequency, now, sched.TimeOfDay)

	claimed, err := s.schedulers.Claim(ctx, sched.ID, sched.NextRun, now, next)
	if err != nil {
		s.logger.Warn("claiming analysis scheduler", "scheduler_id", sched.ID, "error", err)
		return map[string]any{"schedulerId": sched.ID, "success": false, "error": err.Error()}, false
	}
	if !claimed {
		s.logger.Debug("analysis scheduler claimed elsewhere", "scheduler_id", sched.ID)
		return nil, false
	}

	data, err := s.triggerAnalysis(ctx, sched)
	if err != nil {
		s.logger.Warn("scheduled analysis failed",
			"scheduler_id", sched.ID,
			"plant_id", sched.PlantID,
			"error", err,
		)
		return map[string]any{"schedulerId": sched.ID, "success": false, "error": err.Error()}, true
	}

	s.recordHistory(ctx, sched, data, now)

	if s.detector != nil {
		if err := s.detector.DetectFromAnalysis(ctx, sched.PlantID, data); err != nil {
			s.logger.Warn("anomaly derivation failed", "plant_id", sched.PlantID, "error", err)
		}
	}
	if s.metrics != nil {
		if score, ok := plant.HealthScore(data); ok {
			s.metrics.WritePlantMetric(sched.PlantID, "health_score", score)
		}
	}

	return map[string]any{
		"schedulerId":  sched.ID,
		"plantId":      sched.PlantID,
		"analysisType": sched.AnalysisType,
		"success":      true,
	}, true
}

func (s *Scheduler) triggerAnalysis(ctx context.Context, sched AnalysisScheduler) (map[string]any, error) {
	if s.analyzer == nil {
		return map[string]any{
			"triggered":    true,
			"analysisType": sched.AnalysisType,
		}, nil
	}
	return s.analyzer.TriggerAnalysis(ctx, sched.PlantID, plant.AnalysisType(sched.AnalysisType), nil)
}

func (s *Scheduler) recordHistory(ctx context.Context, sched AnalysisScheduler, data map[string]any, now time.Time) {
	rec := &plant.HistoryRecord{
		PlantID:      sched.PlantID,
		AnalysisType: "automated_" + sched.AnalysisType,
		Data:         data,
		Metadata: map[string]any{
			"schedulerId": sched.ID,
			"executedAt":  now.Format(time.RFC3339),
			"type":        "scheduled",
		},
	}
	if err := s.history.Create(ctx, rec); err != nil {
		s.logger.Warn("recording analysis history", "scheduler_id", sched.ID, "error", err)
	}
}

// runSchedule claims one due schedule and executes its enabled rules.
// Each rule execution is wrapped so one failing rule cannot abort the
// schedule's bookkeeping or the remaining rules.
func (s *Scheduler) runSchedule(ctx context.Context, sch Schedule, now time.Time) (map[string]any, bool) {
	next := NextRun(sch.Interval, now, "")

	claimed, err := s.schedules.Claim(ctx, sch.ID, sch.NextRun, now, next)
	if err != nil {
		s.logger.Warn("claiming schedule", "schedule_id", sch.ID, "error", err)
		return map[string]any{"scheduleId": sch.ID, "success": false, "error": err.Error()}, false
	}
	if !claimed {
		s.logger.Debug("schedule claimed elsewhere", "schedule_id", sch.ID)
		return nil, false
	}

	rules, err := s.rules.ListEnabledBySchedule(ctx, sch.ID)
	if err != nil {
		s.logger.Warn("listing schedule rules", "schedule_id", sch.ID, "error", err)
		return map[string]any{"scheduleId": sch.ID, "success": false, "error": err.Error()}, true
	}

	ruleResults := make([]map[string]any, 0, len(rules))
	for _, r := range rules {
		execution, execErr := s.executor.Execute(ctx, r.ID)
		if execErr != nil {
			s.logger.Warn("scheduled rule failed",
				"schedule_id", sch.ID,
				"rule_id", r.ID,
				"error", execErr,
			)
			ruleResults = append(ruleResults, map[string]any{
				"ruleId":  r.ID,
				"success": false,
				"error":   execErr.Error(),
			})
			continue
		}
		ruleResults = append(ruleResults, map[string]any{
			"ruleId":  r.ID,
			"success": true,
			"results": execution.Results,
		})
	}

	return map[string]any{
		"scheduleId": sch.ID,
		"success":    true,
		"rules":      ruleResults,
	}, true
}
