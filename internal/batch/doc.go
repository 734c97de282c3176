// Package batch implements multi-plant analysis batches.
//
// A batch carries an ordered plant list and one analysis type. The
// processor walks the list sequentially, counts successes and
// failures through atomic store increments, and records the terminal
// status with a full per-item results log.
package batch
