// Package ledger persists the fingerprint ledger: the record of every package
// downloaded so far, partitioned into ports and bottles.
//
// The on-disk document is {"ports": [...], "bottles": [...]}. Each successful
// download re-reads the whole document, replaces any record with the same
// case-insensitive name in the target partition, and atomically rewrites the
// file. A missing or unparsable ledger reads as empty. The name to fingerprint
// Index derived from the ledger drives update detection in the catalog.
package ledger
