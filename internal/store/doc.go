// Package store is the SQLite audit log of merge runs.
//
// A run records which batches were merged, with which settings, and what
// came out: the result and timeline digests, the per-client audit records
// and the alerts. The raw batches are kept too, so every run can be merged
// again and its digests compared.
//
// # Identity and ordering
//
//   - Batches are keyed by the digest of their canonical JSON.
//   - Runs get a UUIDv7 id but are deduplicated by run digest, the digest of
//     their inputs. Writing the same run twice returns the first run's id.
//   - Ordering uses the runs.seq logical clock, never timestamps. Every list
//     query has an explicit ORDER BY.
//
// # Database configuration
//
//   - WAL mode
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - foreign_keys=ON
//   - a single open connection, so there is one writer
package store
