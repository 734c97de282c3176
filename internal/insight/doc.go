// Package insight derives anomalies and milestones from analysis
// history.
//
// The detector watches for metrics crossing thresholds and opens
// deduplicated anomaly records; the milestone generator marks
// lifecycle events like flowering start and harvest readiness.
package insight
