package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/canopyops/canopy-core/internal/plant"
)

// HistorySource reads recent analysis history.
type HistorySource interface {
	ListSince(ctx context.Context, since time.Time) ([]plant.HistoryRecord, error)
}

// Logger defines the logging interface used by the detector and
// milestone generator.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Detector derives anomaly detections from analysis payloads.
//
// Two independent rules run per payload: a health score below 60
// opens a health_score anomaly (critical under 40, high otherwise),
// and amber trichomes on a harvest-ready plant open a
// trichome_maturity anomaly. Creation is gated by the one-unresolved-
// anomaly-per-metric invariant, so repeated inputs are idempotent.
type Detector struct {
	anomalies AnomalyRepository
	history   HistorySource
	logger    Logger
}

// NewDetector creates an anomaly detector.
func NewDetector(anomalies AnomalyRepository, history HistorySource, logger Logger) *Detector {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Detector{
		anomalies: anomalies,
		history:   history,
		logger:    logger,
	}
}

// DetectFromAnalysis applies the anomaly rules to one fresh payload.
func (d *Detector) DetectFromAnalysis(ctx context.Context, plantID string, data map[string]any) error {
	_, err := d.detect(ctx, plantID, data)
	return err
}

// ScanHistory applies the anomaly rules to every history row newer
// than since and returns the number of anomalies created.
func (d *Detector) ScanHistory(ctx context.Context, since time.Time) (int, error) {
	records, err := d.history.ListSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("listing history: %w", err)
	}

	created := 0
	for _, rec := range records {
		n, detectErr := d.detect(ctx, rec.PlantID, rec.Data)
		if detectErr != nil {
			d.logger.Warn("anomaly scan failed for record",
				"record_id", rec.ID,
				"plant_id", rec.PlantID,
				"error", detectErr,
			)
			continue
		}
		created += n
	}

	d.logger.Debug("anomaly scan complete", "records", len(records), "created", created)
	return created, nil
}

func (d *Detector) detect(ctx context.Context, plantID string, data map[string]any) (int, error) {
	created := 0

	if score, ok := plant.HealthScore(data); ok && score < 60 {
		severity := SeverityHigh
		if score < 40 {
			severity = SeverityCritical
		}
		n, err := d.create(ctx, &AnomalyDetection{
			PlantID:      plantID,
			Metric:       MetricHealthScore,
			Severity:     severity,
			Threshold:    60,
			CurrentValue: score,
		})
		if err != nil {
			return created, err
		}
		created += n
	}

	if plant.TrichomeStage(data) == "amber" && plant.HarvestReady(data) {
		n, err := d.create(ctx, &AnomalyDetection{
			PlantID:      plantID,
			Metric:       MetricTrichomeMaturity,
			Severity:     SeverityMedium,
			Threshold:    70,
			CurrentValue: plant.AmberPercentage(data),
		})
		if err != nil {
			return created, err
		}
		created += n
	}

	return created, nil
}

// create inserts the anomaly unless an unresolved one already exists
// for the same plant and metric.
func (d *Detector) create(ctx context.Context, a *AnomalyDetection) (int, error) {
	exists, err := d.anomalies.HasUnresolved(ctx, a.PlantID, a.Metric)
	if err != nil {
		return 0, err
	}
	if exists {
		return 0, nil
	}

	if err := d.anomalies.Create(ctx, a); err != nil {
		return 0, err
	}

	d.logger.Info("anomaly detected",
		"plant_id", a.PlantID,
		"metric", a.Metric,
		"severity", a.Severity,
		"value", a.CurrentValue,
	)
	return 1, nil
}
