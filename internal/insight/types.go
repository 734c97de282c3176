package insight

import "time"

// Anomaly metrics.
const (
	MetricHealthScore      = "health_score"
	MetricTrichomeMaturity = "trichome_maturity"
)

// Anomaly severities.
const (
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Milestone types.
const (
	MilestoneHarvestReady   = "harvest_ready"
	MilestoneFloweringStart = "flowering_start"
	MilestoneDeficiency     = "deficiency_detected"
)

// Dedup windows per milestone type. flowering_start has no window: it
// is emitted at most once per plant, ever.
const (
	HarvestReadyWindow = 24 * time.Hour
	DeficiencyWindow   = 6 * time.Hour
)

// AnomalyDetection flags a metric that crossed its threshold.
//
// At most one unresolved anomaly exists per (plant, metric) pair;
// creation is gated by an existence check against that invariant.
type AnomalyDetection struct {
	ID           string     `json:"id"`
	PlantID      string     `json:"plantId"`
	Metric       string     `json:"metric"`
	Severity     string     `json:"severity"`
	Threshold    float64    `json:"threshold"`
	CurrentValue float64    `json:"currentValue"`
	Resolved     bool       `json:"resolved"`
	CreatedAt    time.Time  `json:"createdAt"`
	ResolvedAt   *time.Time `json:"resolvedAt,omitempty"`
}

// Milestone marks a notable point in a plant's lifecycle, derived
// from analysis history.
type Milestone struct {
	ID         string    `json:"id"`
	PlantID    string    `json:"plantId"`
	Type       string    `json:"type"`
	DetectedAt time.Time `json:"detectedAt"`
}
