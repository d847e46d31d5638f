package tracker

import "fmt"

// Kind classifies the outcome of one evaluation.
type Kind string

const (
	KindNone    Kind = "none"
	KindAlert   Kind = "alert"
	KindCleared Kind = "cleared"
)

// Definition names a signal and holds the wording used in its messages.
type Definition struct {
	// Name is the stable identifier ("modqueue", "modmail").
	Name string

	// AlertFormat is a fmt template taking the observed count.
	AlertFormat string

	// ClearedMessage is logged when the count returns to zero.
	ClearedMessage string
}

// Built-in signal definitions.
var (
	Modqueue = Definition{
		Name:           "modqueue",
		AlertFormat:    "The modqueue has %d item(s) in it.",
		ClearedMessage: "Modqueue emptied.",
	}
	Modmail = Definition{
		Name:           "modmail",
		AlertFormat:    "Modmail has %d unread message(s).",
		ClearedMessage: "Modmail cleared.",
	}
)

// Decision is the result of evaluating one observation against a signal's
// last alerted count.
type Decision struct {
	Signal   string
	Kind     Kind
	Message  string
	Observed int
	Previous int
	Next     int
}

// ShouldAlert reports whether the decision calls for an outward notification.
// Cleared decisions are informational and never sent.
func (d Decision) ShouldAlert() bool { return d.Kind == KindAlert }

// Changed reports whether applying the decision alters the stored count.
func (d Decision) Changed() bool { return d.Next != d.Previous }

// Evaluate applies the alert policy to an observation. It has no side
// effects: the same inputs always produce the same Decision.
//
// A negative observation is not a valid count and yields KindNone with the
// state left as is.
func Evaluate(def Definition, lastAlerted, observed int) Decision {
	d := Decision{
		Signal:   def.Name,
		Kind:     KindNone,
		Observed: observed,
		Previous: lastAlerted,
		Next:     lastAlerted,
	}
	switch {
	case observed > 0 && observed != lastAlerted:
		d.Kind = KindAlert
		d.Message = fmt.Sprintf(def.AlertFormat, observed)
		d.Next = observed
	case observed == 0 && lastAlerted != 0:
		d.Kind = KindCleared
		d.Message = def.ClearedMessage
		d.Next = 0
	}
	return d
}
