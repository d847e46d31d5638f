package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
)

// Signal states.
const (
	StateQuiet   = "quiet"
	StateAlerted = "alerted"
)

const (
	eventFire  = "fire"
	eventClear = "clear"
)

// Signal is the mutable de-duplication state of one monitored count.
type Signal struct {
	def Definition

	mu          sync.Mutex
	lastAlerted int
	checkedAt   time.Time
	alertedAt   time.Time
	machine     *fsm.FSM
}

func newSignal(def Definition) *Signal {
	return &Signal{
		def: def,
		machine: fsm.NewFSM(
			StateQuiet,
			fsm.Events{
				{Name: eventFire, Src: []string{StateQuiet}, Dst: StateAlerted},
				{Name: eventClear, Src: []string{StateAlerted}, Dst: StateQuiet},
			},
			fsm.Callbacks{},
		),
	}
}

// State is a read-only copy of a Signal.
type State struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	LastAlerted int       `json:"last_alerted"`
	CheckedAt   time.Time `json:"checked_at,omitempty"`
	AlertedAt   time.Time `json:"alerted_at,omitempty"`
}

func (s *Signal) snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Name:        s.def.Name,
		State:       s.machine.Current(),
		LastAlerted: s.lastAlerted,
		CheckedAt:   s.checkedAt,
		AlertedAt:   s.alertedAt,
	}
}

// apply commits a decision. Callers must hold s.mu.
func (s *Signal) apply(ctx context.Context, d Decision, now time.Time) {
	s.lastAlerted = d.Next
	s.checkedAt = now
	if d.Kind == KindAlert {
		s.alertedAt = now
	}
	s.syncState(ctx)
}

// syncState moves the state machine to match lastAlerted. Callers must hold s.mu.
func (s *Signal) syncState(ctx context.Context) {
	want, event := StateAlerted, eventFire
	if s.lastAlerted == 0 {
		want, event = StateQuiet, eventClear
	}
	if s.machine.Current() == want {
		return
	}
	if err := s.machine.Event(ctx, event); err != nil {
		var noop fsm.NoTransitionError
		if !errors.As(err, &noop) {
			log.Warn().Err(err).Str("signal", s.def.Name).Str("want", want).
				Msg("tracker: state machine out of sync, forcing state")
			s.machine.SetState(want)
		}
	}
}
