// Package task implements the two-tier retry and recovery engine for
// generation tasks.
//
// The foreground tier runs inside the submitting request with a short
// budget of bounded, backed-off retries. Work it cannot finish is deferred
// to the background tier, a scheduler that ticks over the database queue
// with a longer budget and a concurrency cap. A reaper recovers tasks
// abandoned in processing and exposes the operator actions for re-driving
// them. Billing settles exactly once per task regardless of which tier
// finished the work or how many attempts it took.
package task
