package rule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/canopyops/canopy-core/internal/action"
)

// ActionRunner dispatches a single action. Satisfied by action.Dispatcher.
type ActionRunner interface {
	Execute(ctx context.Context, actionType action.Type, plantID string, cfg map[string]any) (map[string]any, error)
}

// Logger defines the logging interface used by the Executor.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Executor runs rules.
//
// A missing or disabled rule is a caller-visible error. Once a rule is
// loaded, its actions run strictly in order and each action's outcome
// is isolated: a failing action is recorded in the results and the
// next action still runs. Unknown action types are skipped with a
// warning and produce no result entry.
type Executor struct {
	repo    Repository
	actions ActionRunner
	logger  Logger
}

// NewExecutor creates a rule executor.
func NewExecutor(repo Repository, actions ActionRunner, logger Logger) *Executor {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Executor{
		repo:    repo,
		actions: actions,
		logger:  logger,
	}
}

// Execute runs one rule by id and returns its execution record. The
// record is also persisted as an audit row; a failure to persist it is
// logged but does not fail the execution.
func (e *Executor) Execute(ctx context.Context, ruleID string) (*Execution, error) {
	rule, err := e.repo.GetByID(ctx, ruleID)
	if err != nil {
		return nil, fmt.Errorf("loading rule %s: %w", ruleID, err)
	}
	if !rule.Enabled {
		return nil, fmt.Errorf("rule %s: %w", ruleID, ErrDisabled)
	}

	execution := &Execution{
		RuleID:     rule.ID,
		ExecutedAt: time.Now().UTC(),
		Results:    []ActionResult{},
		Success:    true,
	}

	for _, desc := range rule.Actions {
		result, actionErr := e.actions.Execute(ctx, desc.Type, rule.PlantID, desc.Config)
		if actionErr != nil {
			if errors.Is(actionErr, action.ErrUnknownType) {
				e.logger.Warn("skipping unknown action type",
					"rule_id", rule.ID,
					"action_type", string(desc.Type),
				)
				continue
			}
			e.logger.Warn("action failed",
				"rule_id", rule.ID,
				"action_type", string(desc.Type),
				"error", actionErr,
			)
			execution.Results = append(execution.Results, ActionResult{
				Action: desc.Type,
				Error:  actionErr.Error(),
			})
			continue
		}

		execution.Results = append(execution.Results, ActionResult{
			Action: desc.Type,
			Result: result,
		})
	}

	if err := e.repo.RecordExecution(ctx, execution); err != nil {
		e.logger.Warn("recording rule execution", "rule_id", rule.ID, "error", err)
	}

	e.logger.Debug("rule executed",
		"rule_id", rule.ID,
		"actions", len(rule.Actions),
		"results", len(execution.Results),
	)
	return execution, nil
}
