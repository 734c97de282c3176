// Package schedule implements the polling scheduler.
//
// Two kinds of schedulable records exist: schedules, which own an
// ordered set of rules, and analysis schedulers, which drive one
// recurring analysis for a plant. Both advance through the same
// symbolic frequency table. Due items are claimed with a conditional
// update before execution so overlapping passes never double-run an
// item.
package schedule
