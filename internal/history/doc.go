// Package history keeps a SQLite journal of transfers, install passes, and
// image refreshes so `pharos history` can show what happened and when.
//
// The journal is advisory. Callers log and continue when a write fails; the
// ledger stays the source of truth for installed fingerprints.
package history
