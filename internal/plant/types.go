package plant

import "time"

// AnalysisType identifies which kind of AI analysis to run on a plant.
type AnalysisType string

const (
	AnalysisPhoto    AnalysisType = "photo"
	AnalysisTrichome AnalysisType = "trichome"
	AnalysisHealth   AnalysisType = "health"
)

// AllAnalysisTypes returns all valid analysis types.
func AllAnalysisTypes() []AnalysisType {
	return []AnalysisType{AnalysisPhoto, AnalysisTrichome, AnalysisHealth}
}

// Valid reports whether the analysis type is one of the known kinds.
func (t AnalysisType) Valid() bool {
	switch t {
	case AnalysisPhoto, AnalysisTrichome, AnalysisHealth:
		return true
	default:
		return false
	}
}

// HistoryRecord is one append-only row of analysis output.
//
// The engine writes a record after every analysis call (scheduled,
// batched, or manual) and reads recent records back when deriving
// anomalies and milestones.
type HistoryRecord struct {
	ID           string         `json:"id"`
	PlantID      string         `json:"plant_id"`
	AnalysisType string         `json:"analysis_type"`
	Data         map[string]any `json:"data"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}
