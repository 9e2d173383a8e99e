// Package scheduler defers publish actions without blocking command handling.
//
// Two trigger kinds exist:
//   - one-shot timers (AddOnce), used by /schedule_in
//   - daily cron entries (AddDaily), used by /schedule_daily
//
// Fired jobs are executed by a small worker pool; each run is recorded in a
// bounded history ring for /status visibility. Jobs are in-memory only and do
// not survive a restart.
package scheduler
