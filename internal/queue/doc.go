// Package queue implements the reliable-queue protocol atop the Fast
// Lookup Store's lists described in spec.md §4.E: enqueue, brpoplpush
// consume with a processing list, exponential backoff to a delayed sorted
// set, a dead-letter list, and stuck-job recovery on worker startup.
package queue
