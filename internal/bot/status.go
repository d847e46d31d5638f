package bot

import (
	"time"

	"github.com/seancallaway/modbot/internal/tracker"
)

// SignalStatus combines a signal's tracker state with its check counters.
type SignalStatus struct {
	tracker.State
	LastCount        int    `json:"last_count"`
	Checks           uint64 `json:"checks"`
	Failures         uint64 `json:"failures"`
	Alerts           uint64 `json:"alerts"`
	DeliveryFailures uint64 `json:"delivery_failures"`
	LastError        string `json:"last_error,omitempty"`
}

// Signals returns the status of every signal, sorted by name.
func (b *Bot) Signals() []SignalStatus {
	states := b.tracker.Snapshot()
	out := make([]SignalStatus, 0, len(states))
	for _, s := range states {
		out = append(out, b.status(s))
	}
	return out
}

// Signal returns the status of one signal.
func (b *Bot) Signal(name string) (SignalStatus, bool) {
	s, ok := b.tracker.Get(name)
	if !ok {
		return SignalStatus{}, false
	}
	return b.status(s), true
}

func (b *Bot) status(s tracker.State) SignalStatus {
	st := b.stats[s.Name]
	out := SignalStatus{
		State:            s,
		LastCount:        int(st.lastCount.Load()),
		Checks:           st.checks.Load(),
		Failures:         st.failures.Load(),
		Alerts:           st.alerts.Load(),
		DeliveryFailures: st.deliveryFailures.Load(),
	}
	if msg := st.lastError.Load(); msg != nil {
		out.LastError = *msg
	}
	return out
}

// Healthy reports whether every signal has been checked successfully within
// two intervals. A signal that has never completed a check is unhealthy.
func (b *Bot) Healthy(now time.Time) bool {
	limit := 2 * b.Interval()
	for _, s := range b.Signals() {
		if s.CheckedAt.IsZero() || now.Sub(s.CheckedAt) > limit {
			return false
		}
	}
	return true
}
