// Package influxdb provides InfluxDB connectivity for Canopy Core.
//
// It wraps the official influxdb-client-go v2 library with Canopy-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series storage for plant telemetry:
//   - Health scores derived from analysis results
//   - Trichome maturity percentages
//   - Batch and scheduler throughput metrics
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WritePlantMetric("plant-veg-03", "health_score", 72.5)
//
// Writes are non-blocking and batched; failures surface through the
// SetOnError callback rather than a return value.
package influxdb
