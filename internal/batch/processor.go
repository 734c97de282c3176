package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/canopyops/canopy-core/internal/plant"
)

// HistorySink appends analysis history records.
type HistorySink interface {
	Create(ctx context.Context, rec *plant.HistoryRecord) error
}

// MetricsWriter records plant metrics in the time series store.
type MetricsWriter interface {
	WritePlantMetric(plantID, metric string, value float64)
}

// Logger defines the logging interface used by the Processor.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Processor executes analysis batches.
//
// Items run strictly in order with per-item isolation: a failing
// analysis is counted and logged in the results, and the next plant
// still runs. Only a store failure or cancellation aborts the loop,
// flipping the batch to failed; failed batches are valid input for a
// retry.
type Processor struct {
	repo     Repository
	analyzer plant.Analyzer
	history  HistorySink
	metrics  MetricsWriter
	logger   Logger
}

// Options carries the optional collaborators of a Processor.
type Options struct {
	History HistorySink
	Metrics MetricsWriter
	Logger  Logger
}

// NewProcessor creates a batch processor. analyzer may be nil, in
// which case every item fails with an explicit error in its result.
func NewProcessor(repo Repository, analyzer plant.Analyzer, opts Options) *Processor {
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Processor{
		repo:     repo,
		analyzer: analyzer,
		history:  opts.History,
		metrics:  opts.Metrics,
		logger:   logger,
	}
}

// ExecuteBatch runs one batch by id.
//
// Preconditions: the batch must be pending or failed; anything else
// is an explicit error with no mutation.
func (p *Processor) ExecuteBatch(ctx context.Context, batchID string) (*ExecResult, error) {
	b, err := p.repo.GetByID(ctx, batchID)
	if err != nil {
		return nil, fmt.Errorf("loading batch %s: %w", batchID, err)
	}
	if b.Status != StatusPending && b.Status != StatusFailed {
		return nil, fmt.Errorf("%w: cannot execute batch with status %s", ErrInvalidStatus, b.Status)
	}

	startedAt := time.Now().UTC()
	if err := p.repo.SetRunning(ctx, b.ID, startedAt); err != nil {
		return nil, fmt.Errorf("starting batch %s: %w", b.ID, err)
	}

	result := &ExecResult{
		BatchID:    b.ID,
		ExecutedAt: startedAt,
		TotalCount: b.TotalCount,
		Results:    []map[string]any{},
	}

	if err := p.runItems(ctx, b, result); err != nil {
		// Loop-level failure: flip to failed and re-raise.
		now := time.Now().UTC()
		if finishErr := p.repo.Finish(ctx, b.ID, StatusFailed, now, result.Results); finishErr != nil {
			p.logger.Warn("marking batch failed", "batch_id", b.ID, "error", finishErr)
		}
		return nil, fmt.Errorf("executing batch %s: %w", b.ID, err)
	}

	now := time.Now().UTC()
	if err := p.repo.Finish(ctx, b.ID, StatusCompleted, now, result.Results); err != nil {
		return nil, fmt.Errorf("completing batch %s: %w", b.ID, err)
	}
	result.Success = true

	p.logger.Info("batch completed",
		"batch_id", b.ID,
		"total", result.TotalCount,
		"completed", result.CompletedCount,
		"failed", result.FailedCount,
	)
	return result, nil
}

func (p *Processor) runItems(ctx context.Context, b *AnalysisBatch, result *ExecResult) error {
	for _, plantID := range b.PlantIDs {
		if err := ctx.Err(); err != nil {
			return err
		}

		data, err := p.analyzePlant(ctx, plantID, b.Type)
		if err != nil {
			p.logger.Warn("batch item failed",
				"batch_id", b.ID,
				"plant_id", plantID,
				"error", err,
			)
			if incErr := p.repo.IncrementFailed(ctx, b.ID); incErr != nil {
				return incErr
			}
			result.FailedCount++
			result.Results = append(result.Results, map[string]any{
				"plantId": plantID,
				"success": false,
				"error":   err.Error(),
			})
			continue
		}

		p.recordItem(ctx, b, plantID, data)

		if incErr := p.repo.IncrementCompleted(ctx, b.ID); incErr != nil {
			return incErr
		}
		result.CompletedCount++
		result.Results = append(result.Results, map[string]any{
			"plantId": plantID,
			"success": true,
			"result":  data,
		})
	}
	return nil
}

func (p *Processor) analyzePlant(ctx context.Context, plantID, analysisType string) (map[string]any, error) {
	if p.analyzer == nil {
		return nil, plant.ErrAnalysisFailed
	}
	return p.analyzer.TriggerAnalysis(ctx, plantID, plant.AnalysisType(analysisType), nil)
}

// recordItem appends a history row and a metrics point for one
// successful item, best effort.
func (p *Processor) recordItem(ctx context.Context, b *AnalysisBatch, plantID string, data map[string]any) {
	if p.history != nil {
		rec := &plant.HistoryRecord{
			PlantID:      plantID,
			AnalysisType: b.Type,
			Data:         data,
			Metadata: map[string]any{
				"batchId": b.ID,
				"type":    "batch",
			},
		}
		if err := p.history.Create(ctx, rec); err != nil {
			p.logger.Warn("recording batch history", "batch_id", b.ID, "plant_id", plantID, "error", err)
		}
	}
	if p.metrics != nil {
		if score, ok := plant.HealthScore(data); ok {
			p.metrics.WritePlantMetric(plantID, "health_score", score)
		}
	}
}
