package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/seancallaway/modbot/internal/config"
)

// MaxHistory is the number of events kept by the memory store and returned
// by default from Events.
const MaxHistory = 200

// Event kinds.
const (
	KindAlert   = "alert"
	KindCleared = "cleared"
	KindError   = "error"
)

// Event is one notable check outcome.
type Event struct {
	ID        string    `json:"id"`
	Signal    string    `json:"signal"`
	Kind      string    `json:"kind"`
	Count     int       `json:"count"`
	Message   string    `json:"message"`
	Delivered bool      `json:"delivered"`
	Error     string    `json:"error,omitempty"`
	At        time.Time `json:"at"`
}

// Store persists last alerted counts and events.
type Store interface {
	LoadCounts(ctx context.Context) (map[string]int, error)
	SaveCount(ctx context.Context, signal string, count int, at time.Time) error
	AppendEvent(ctx context.Context, e Event) error
	// Events returns up to limit events, newest first. limit <= 0 means MaxHistory.
	Events(ctx context.Context, limit int) ([]Event, error)
	Close() error
}

// Open returns the store selected by cfg.
func Open(cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "", "none", "memory":
		return NewMemory(), nil
	case "sqlite":
		return OpenSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
