package plant

import "encoding/json"

// Payload accessors for analysis result maps.
//
// Analysis providers return loosely structured JSON; these helpers pull
// the fields the engine cares about without forcing a schema on the
// whole payload.

// HealthScore extracts a health score from an analysis payload.
// It checks the top-level "healthScore" field first, then the nested
// "analysis.healthScore" location used by some providers.
func HealthScore(data map[string]any) (float64, bool) {
	if v, ok := numeric(data["healthScore"]); ok {
		return v, true
	}
	if sub, ok := data["analysis"].(map[string]any); ok {
		if v, ok := numeric(sub["healthScore"]); ok {
			return v, true
		}
	}
	return 0, false
}

// TrichomeStage returns the overall maturity stage from a trichome
// analysis payload ("clear", "cloudy", "amber"), or "" if absent.
func TrichomeStage(data map[string]any) string {
	maturity, ok := nested(data, "trichomeAnalysis", "overallMaturity")
	if !ok {
		return ""
	}
	stage, _ := maturity["stage"].(string)
	return stage
}

// AmberPercentage returns the amber trichome percentage, defaulting to 0.
func AmberPercentage(data map[string]any) float64 {
	maturity, ok := nested(data, "trichomeAnalysis", "overallMaturity")
	if !ok {
		return 0
	}
	v, _ := numeric(maturity["amberPercentage"])
	return v
}

// HarvestReady reports whether the trichome analysis flagged the plant
// as ready for harvest.
func HarvestReady(data map[string]any) bool {
	readiness, ok := nested(data, "trichomeAnalysis", "harvestReadiness")
	if !ok {
		return false
	}
	ready, _ := readiness["ready"].(bool)
	return ready
}

// GrowthStage returns the top-level "stage" field, or "" if absent.
func GrowthStage(data map[string]any) string {
	stage, _ := data["stage"].(string)
	return stage
}

// Severity returns the top-level "severity" field, or "" if absent.
func Severity(data map[string]any) string {
	severity, _ := data["severity"].(string)
	return severity
}

// nested walks a chain of map keys, returning the final map.
func nested(data map[string]any, keys ...string) (map[string]any, bool) {
	current := data
	for _, key := range keys {
		next, ok := current[key].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	return current, true
}

// numeric coerces JSON number representations to float64.
func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}
