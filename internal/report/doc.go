// Package report persists one batch's outcome as the JSON run record
// described by the orchestrator's output contract, and appends derived
// rows to the CSV rollups external analysis tooling consumes (runs.csv,
// perfile.csv). Field names and derived columns are grounded on the
// original post-processing scripts' exact schema.
package report
