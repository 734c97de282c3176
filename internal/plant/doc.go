// Package plant holds the engine's read model for plant analysis data.
//
// It provides:
//   - AnalysisHistory records: the append-only log every analysis call
//     writes to and the anomaly/milestone passes read from
//   - Payload accessors for the loosely structured provider results
//     (health scores, trichome maturity, growth stage)
//   - The Analyzer interface to the external inference provider, with
//     an HTTP implementation
//
// The inference provider is a black box: Canopy sends a plant ID, an
// analysis type, and an opaque config map, and stores whatever JSON
// payload comes back.
package plant
