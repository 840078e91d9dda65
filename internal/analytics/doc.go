// Package analytics is the metrics aggregation engine of the platform.
//
// Every function in this package is a pure aggregate over an injected
// Snapshot: nothing here performs I/O, holds package-level state or mutates
// its input, so any metric may be recomputed or evaluated concurrently with
// the others. Ratios define their zero-denominator outcome explicitly (0, or
// nil for averages that have no samples) and grouped outputs are always
// returned in a fixed order so that two runs over the same snapshot encode to
// identical JSON.
package analytics
