package insight

import (
	"context"
	"fmt"
	"time"

	"github.com/canopyops/canopy-core/internal/plant"
)

// MilestoneGenerator derives lifecycle milestones from analysis history.
//
// Three independent rules run per history row: harvest readiness
// (24h dedup window), flowering start (emitted once per plant, ever),
// and nutrient deficiency (6h window). A single row can emit several
// milestones.
type MilestoneGenerator struct {
	milestones MilestoneRepository
	history    HistorySource
	logger     Logger
}

// NewMilestoneGenerator creates a milestone generator.
func NewMilestoneGenerator(milestones MilestoneRepository, history HistorySource, logger Logger) *MilestoneGenerator {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MilestoneGenerator{
		milestones: milestones,
		history:    history,
		logger:     logger,
	}
}

// Generate scans history rows newer than since and returns the number
// of milestones created. Rows are processed oldest first so dedup
// windows line up with record time, not scan time.
func (g *MilestoneGenerator) Generate(ctx context.Context, since time.Time) (int, error) {
	records, err := g.history.ListSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("listing history: %w", err)
	}

	created := 0
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		n, genErr := g.generateForRecord(ctx, rec)
		if genErr != nil {
			g.logger.Warn("milestone scan failed for record",
				"record_id", rec.ID,
				"plant_id", rec.PlantID,
				"error", genErr,
			)
			continue
		}
		created += n
	}

	g.logger.Debug("milestone scan complete", "records", len(records), "created", created)
	return created, nil
}

func (g *MilestoneGenerator) generateForRecord(ctx context.Context, rec plant.HistoryRecord) (int, error) {
	created := 0

	if plant.HarvestReady(rec.Data) {
		n, err := g.create(ctx, rec.PlantID, MilestoneHarvestReady, rec.CreatedAt, HarvestReadyWindow)
		if err != nil {
			return created, err
		}
		created += n
	}

	if plant.GrowthStage(rec.Data) == "flowering" {
		n, err := g.create(ctx, rec.PlantID, MilestoneFloweringStart, rec.CreatedAt, 0)
		if err != nil {
			return created, err
		}
		created += n
	}

	if deficiencyDetected(rec.Data) {
		n, err := g.create(ctx, rec.PlantID, MilestoneDeficiency, rec.CreatedAt, DeficiencyWindow)
		if err != nil {
			return created, err
		}
		created += n
	}

	return created, nil
}

// create inserts a milestone unless a prior one of the same type falls
// inside the dedup window. A zero window means once per plant, ever.
func (g *MilestoneGenerator) create(ctx context.Context, plantID, milestoneType string, detectedAt time.Time, window time.Duration) (int, error) {
	last, err := g.milestones.LastDetected(ctx, plantID, milestoneType)
	if err != nil {
		return 0, err
	}
	if last != nil {
		if window == 0 {
			return 0, nil
		}
		if detectedAt.Sub(*last) < window {
			return 0, nil
		}
	}

	m := &Milestone{
		PlantID:    plantID,
		Type:       milestoneType,
		DetectedAt: detectedAt,
	}
	if err := g.milestones.Create(ctx, m); err != nil {
		return 0, err
	}

	g.logger.Info("milestone recorded",
		"plant_id", plantID,
		"type", milestoneType,
		"detected_at", detectedAt.Format(time.RFC3339),
	)
	return 1, nil
}

func deficiencyDetected(data map[string]any) bool {
	if plant.Severity(data) == "critical" {
		return true
	}
	score, ok := plant.HealthScore(data)
	return ok && score < 50
}
