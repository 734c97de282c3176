// Package workflow implements stored workflows and their interpreter.
//
// A workflow is a tree of typed steps: leaf actions (analyze, capture,
// notify), timed waits, bounded loops, and conditionals evaluated
// against a shared data context. The interpreter walks the tree
// sequentially and never halts early; unknown step kinds degrade to
// warning results.
package workflow
