// Package bot is the monitoring session: it owns one tracker.Tracker, the
// per-signal sources, the notifier and the store, and runs one check per
// signal every check_interval.
//
// A check counts the source, feeds the count to the tracker and, when the
// tracker decides to alert, sends a notifier.Message. Source errors are
// logged and the cycle is skipped with state untouched. Delivery errors are
// logged and state advances anyway.
//
// Scheduling uses robfig/cron with SkipIfStillRunning, one entry per signal,
// so a slow Reddit response never overlaps the next poll of the same signal.
package bot
