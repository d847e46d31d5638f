// Package tracker decides when a monitored count deserves an alert.
//
// Each Signal (modqueue, modmail) remembers the last count it alerted on.
// Evaluate is a pure function of (last alerted, observed):
//
//   - observed > 0 and different from last alerted: alert, next = observed
//   - observed == 0 while last alerted != 0: cleared (log only), next = 0
//   - anything else: no change
//
// Tracker.Observe wraps Evaluate, delivery and the state update in one
// per-signal critical section. State advances even when delivery fails so a
// flaky webhook cannot cause an alert storm.
//
// The QUIET/ALERTED label of each signal is kept in a looplab/fsm machine
// next to the count; the count is authoritative.
package tracker
