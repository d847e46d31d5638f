// Package store keeps signal state and the alert event log.
//
// Memory is the default: counts and a bounded event history live only for
// the process lifetime. SQLite (modernc.org/sqlite, no cgo) persists both so
// a restarted bot does not re-alert on an unchanged queue.
package store
