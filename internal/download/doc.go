// Package download owns the package request queue and the single worker that
// drains it.
//
// The worker streams each archive into the staging directory, fingerprints
// the staged bytes, and records them in the ledger. Whenever it finds the
// queue empty after handling a request it runs one install pass over
// everything staged. The empty check is a snapshot: a request that arrives
// during the check may be handled before or after that pass, which is safe
// because each archive install is idempotent.
//
// Manager is the process-wide owner. It starts a worker on the first Submit
// and never runs two at once.
package download
