package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrUnknownSignal is returned for a name the Tracker was not built with.
	ErrUnknownSignal = errors.New("tracker: unknown signal")

	// ErrNegativeCount is returned when an observation or restored count is below zero.
	ErrNegativeCount = errors.New("tracker: negative count")
)

// DeliverFunc sends an alert message and returns the id it was sent under.
// It is called with the signal locked, so it must not call back into the
// Tracker for the same signal.
type DeliverFunc func(ctx context.Context, d Decision) (id string, err error)

// CommitFunc is called after a decision that changed the stored count has
// been applied, still under the signal's lock, so successive commits of one
// signal are seen in the order they were applied.
type CommitFunc func(ctx context.Context, d Decision)

// Outcome is a committed Decision together with its delivery result.
type Outcome struct {
	Decision
	// Attempted is true when DeliverFunc was called.
	Attempted bool
	// MessageID is the id returned by DeliverFunc.
	MessageID string
	// DeliveryErr is the error returned by DeliverFunc, if any. The state
	// has already advanced when it is non-nil.
	DeliveryErr error
}

// Tracker owns the Signal set of one bot session.
//
// Signals are independent: Observe on two different signals never contends.
// All exported methods are safe for concurrent use.
type Tracker struct {
	signals map[string]*Signal
	now     func() time.Time // injectable for deterministic tests
	commit  CommitFunc
}

// New returns a Tracker with one QUIET signal per definition.
func New(defs ...Definition) *Tracker {
	t := &Tracker{
		signals: make(map[string]*Signal, len(defs)),
		now:     time.Now,
	}
	for _, d := range defs {
		t.signals[d.Name] = newSignal(d)
	}
	return t
}

// OnCommit registers fn to run for every state-changing commit made by
// Observe. It must be called before the Tracker is shared.
func (t *Tracker) OnCommit(fn CommitFunc) { t.commit = fn }

// Names returns the tracked signal names in sorted order.
func (t *Tracker) Names() []string {
	out := make([]string, 0, len(t.signals))
	for name := range t.signals {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Observe evaluates observed against the named signal, calls deliver when the
// decision is an alert, and commits the next state. The whole sequence runs
// under the signal's lock.
//
// A delivery error is logged and returned in the Outcome; it never prevents
// the state from advancing.
func (t *Tracker) Observe(ctx context.Context, name string, observed int, deliver DeliverFunc) (Outcome, error) {
	s, ok := t.signals[name]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
	if observed < 0 {
		return Outcome{}, fmt.Errorf("%w: %s=%d", ErrNegativeCount, name, observed)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	out := Outcome{Decision: Evaluate(s.def, s.lastAlerted, observed)}

	switch out.Kind {
	case KindAlert:
		log.Info().Str("signal", name).Int("count", observed).Int("previous", out.Previous).
			Msg("tracker: alerting")
		if deliver != nil {
			out.Attempted = true
			out.MessageID, out.DeliveryErr = deliver(ctx, out.Decision)
			if out.DeliveryErr != nil {
				log.Error().Err(out.DeliveryErr).Str("signal", name).Int("count", observed).
					Msg("tracker: alert delivery failed, advancing state anyway")
			}
		}
	case KindCleared:
		log.Info().Str("signal", name).Int("previous", out.Previous).Msg(out.Message)
	}

	s.apply(ctx, out.Decision, t.now())
	if t.commit != nil && out.Changed() {
		t.commit(ctx, out.Decision)
	}
	return out, nil
}

// Restore seeds a signal's last alerted count, typically from persisted
// state at startup. It does not alert.
func (t *Tracker) Restore(ctx context.Context, name string, lastAlerted int) error {
	s, ok := t.signals[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSignal, name)
	}
	if lastAlerted < 0 {
		return fmt.Errorf("%w: %s=%d", ErrNegativeCount, name, lastAlerted)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastAlerted = lastAlerted
	s.syncState(ctx)
	return nil
}

// Get returns a copy of the named signal's state.
func (t *Tracker) Get(name string) (State, bool) {
	s, ok := t.signals[name]
	if !ok {
		return State{}, false
	}
	return s.snapshot(), true
}

// Snapshot returns copies of every signal's state, sorted by name.
func (t *Tracker) Snapshot() []State {
	names := t.Names()
	out := make([]State, 0, len(names))
	for _, name := range names {
		out = append(out, t.signals[name].snapshot())
	}
	return out
}
