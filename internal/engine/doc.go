// Package engine wires the automation components into a single
// facade driven by a periodic tick.
//
// A tick polls due schedules, derives anomalies and milestones over
// recent analysis history, and runs retention cleanup on a separate
// lower-frequency clock. Each entry point is also invocable on its
// own, for manual triggers.
package engine
