// Package rule implements rules and their executor.
//
// A rule is an ordered list of action descriptors run as a unit,
// optionally owned by a schedule. The executor loads a rule, runs its
// actions strictly in order with per-action isolation, and records an
// execution audit row.
package rule
