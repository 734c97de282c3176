package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePlantMetric writes a single plant measurement to InfluxDB.
//
// This is the primary method for recording analysis telemetry.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - plantID: Unique identifier for the plant (e.g., "plant-veg-03")
//   - metric: The metric name (e.g., "health_score", "amber_percentage")
//   - value: The numeric value to record
//
// Example:
//
//	client.WritePlantMetric("plant-veg-03", "health_score", 72.5)
func (c *Client) WritePlantMetric(plantID string, metric string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"plant_health",
		map[string]string{
			"plant_id": plantID,
			"metric":   metric,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteAnalysisMetrics writes all numeric telemetry extracted from one
// analysis result in a single tagged batch.
//
// Parameters:
//   - plantID: Plant identifier
//   - analysisType: The analysis that produced the values (photo, trichome, health)
//   - fields: Metric name to numeric value
func (c *Client) WriteAnalysisMetrics(plantID string, analysisType string, fields map[string]float64) {
	if !c.IsConnected() || len(fields) == 0 {
		return
	}

	values := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		values[k] = v
	}

	point := write.NewPoint(
		"plant_analysis",
		map[string]string{
			"plant_id":      plantID,
			"analysis_type": analysisType,
		},
		values,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}
