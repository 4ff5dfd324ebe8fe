// Package notifications posts short ntfy messages when an install pass
// finishes or a transfer fails. Without a configured topic every call is a
// no-op.
package notifications
