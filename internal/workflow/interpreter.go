package workflow

import (
	"context"
	"time"

	"github.com/canopyops/canopy-core/internal/action"
)

// ActionRunner dispatches leaf actions. Satisfied by action.Dispatcher.
type ActionRunner interface {
	Execute(ctx context.Context, actionType action.Type, plantID string, cfg map[string]any) (map[string]any, error)
}

// Logger defines the logging interface used by the Interpreter.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Interpreter executes workflow step trees.
//
// Steps run strictly sequentially and the interpreter never halts
// early: unknown kinds and failing actions produce warning results and
// the remaining steps still run. The only errors Execute returns are
// load failures, the disabled check, and context cancellation during
// a wait step.
type Interpreter struct {
	repo    Repository
	actions ActionRunner
	logger  Logger

	// sleep is replaced in tests to avoid real delays.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewInterpreter creates a workflow interpreter.
func NewInterpreter(repo Repository, actions ActionRunner, logger Logger) *Interpreter {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Interpreter{
		repo:    repo,
		actions: actions,
		logger:  logger,
		sleep:   sleepCtx,
	}
}

// Execute runs one workflow by id against a shared data context. data
// may be nil. The execution record is persisted as an audit row; a
// failure to persist it is logged but does not fail the execution.
func (i *Interpreter) Execute(ctx context.Context, workflowID string, data map[string]any) (*Execution, error) {
	wf, err := i.repo.GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if !wf.Enabled {
		return nil, ErrDisabled
	}
	if data == nil {
		data = map[string]any{}
	}

	execution := &Execution{
		WorkflowID: wf.ID,
		ExecutedAt: time.Now().UTC(),
		Results:    []map[string]any{},
	}

	for _, step := range wf.Steps {
		result, stepErr := i.runStep(ctx, step, data)
		if stepErr != nil {
			return nil, stepErr
		}
		execution.Results = append(execution.Results, result)
		execution.StepsExecuted++
	}
	execution.Success = true

	if err := i.repo.RecordExecution(ctx, execution); err != nil {
		i.logger.Warn("recording workflow execution", "workflow_id", wf.ID, "error", err)
	}

	i.logger.Debug("workflow executed",
		"workflow_id", wf.ID,
		"steps", execution.StepsExecuted,
	)
	return execution, nil
}

// runStep evaluates a single step. It only returns an error on context
// cancellation; every other outcome is encoded in the result map.
func (i *Interpreter) runStep(ctx context.Context, step Step, data map[string]any) (map[string]any, error) {
	switch step.Kind {
	case StepAnalyze, StepCapture, StepNotify:
		return i.runAction(ctx, step, data), nil

	case StepWait:
		millis := step.Duration
		if millis <= 0 {
			millis = DefaultWaitMillis
		}
		d := time.Duration(millis) * time.Millisecond
		if err := i.sleep(ctx, d); err != nil {
			return nil, err
		}
		return map[string]any{"waited": millis}, nil

	case StepLoop:
		count := step.Count
		if count <= 0 {
			count = 1
		}
		iterations := make([]map[string]any, 0, count)
		for n := 0; n < count; n++ {
			result, err := i.runSteps(ctx, step.Do, data)
			if err != nil {
				return nil, err
			}
			iterations = append(iterations, result)
		}
		return map[string]any{"iterations": count, "results": iterations}, nil

	case StepIf:
		if evalCondition(step.Condition, data) {
			return i.runSteps(ctx, step.Then, data)
		}
		if len(step.Else) > 0 {
			return i.runSteps(ctx, step.Else, data)
		}
		return map[string]any{"skipped": true}, nil

	default:
		i.logger.Warn("unknown workflow step type", "step_type", step.Kind)
		return map[string]any{"warning": "unknown step type: " + step.Kind}, nil
	}
}

// runSteps evaluates a nested body. A single-step body yields that
// step's result directly; a multi-step body yields an aggregate.
func (i *Interpreter) runSteps(ctx context.Context, steps StepList, data map[string]any) (map[string]any, error) {
	if len(steps) == 0 {
		return map[string]any{"skipped": true}, nil
	}
	if len(steps) == 1 {
		return i.runStep(ctx, steps[0], data)
	}

	results := make([]map[string]any, 0, len(steps))
	for _, step := range steps {
		result, err := i.runStep(ctx, step, data)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	return map[string]any{"results": results}, nil
}

func (i *Interpreter) runAction(ctx context.Context, step Step, data map[string]any) map[string]any {
	cfg := make(map[string]any, len(step.Config)+1)
	for k, v := range step.Config {
		cfg[k] = v
	}
	if _, ok := cfg["data"]; !ok && len(data) > 0 {
		cfg["data"] = data
	}

	plantID, _ := data["plantId"].(string)

	result, err := i.actions.Execute(ctx, action.Type(step.Kind), plantID, cfg)
	if err != nil {
		i.logger.Warn("workflow action failed",
			"step_type", step.Kind,
			"error", err,
		)
		return map[string]any{"warning": err.Error(), "step": step.Kind}
	}
	return result
}

// evalCondition evaluates an if step's predicate against the data
// context. A nil condition or unknown kind is false.
func evalCondition(cond *Condition, data map[string]any) bool {
	if cond == nil {
		return false
	}
	switch cond.Kind {
	case CondValue:
		return cond.Value
	case CondEquals:
		return looseEquals(data[cond.Key], cond.Expected)
	case CondGreaterThan:
		v, ok := asFloat(data[cond.Key])
		return ok && v > cond.Threshold
	default:
		return false
	}
}

// looseEquals compares with numeric coercion, since JSON round-trips
// mix int and float64 for the same logical value.
func looseEquals(a, b any) bool {
	if af, ok := asFloat(a); ok {
		if bf, ok := asFloat(b); ok {
			return af == bf
		}
		return false
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
