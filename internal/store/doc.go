// Package store defines the persistence interfaces consumed by the
// pipeline and the HTTP layer: jobs, runs, artifact page cache, version
// counters, tree node records, and dashboard aggregates. Implementations
// live in internal/platform/postgres.
package store
