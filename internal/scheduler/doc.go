// Package scheduler runs the Job Pipeline's periodic maintenance work:
// blacklist rematerialization, expired-rule and stale-log cleanup, daily
// stats aggregation, enqueuing due source syncs and pending domain
// verifications, and promoting delayed queue jobs back onto their main
// lists. Every task is gated by a distributed lock so that running
// multiple worker replicas never double-executes a tick.
package scheduler
