package bot

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/seancallaway/modbot/internal/config"
	"github.com/seancallaway/modbot/internal/logging"
	"github.com/seancallaway/modbot/internal/notifier"
	"github.com/seancallaway/modbot/internal/reddit"
	"github.com/seancallaway/modbot/internal/store"
	"github.com/seancallaway/modbot/internal/tracker"
)

// Source produces the current count for one signal.
type Source interface {
	Count(ctx context.Context) (int, error)
}

// definitions maps signal names to their tracker wording.
var definitions = map[string]tracker.Definition{
	tracker.Modqueue.Name: tracker.Modqueue,
	tracker.Modmail.Name:  tracker.Modmail,
}

// Deps are the collaborators of a Bot. New builds them from config;
// tests supply fakes through NewWithDeps.
type Deps struct {
	Sources  map[string]Source
	Notifier notifier.Notifier
	Store    store.Store
}

// Bot is one monitoring session for one subreddit.
type Bot struct {
	tracker *tracker.Tracker
	sources map[string]Source
	store   store.Store
	stats   map[string]*stats

	mu    sync.RWMutex
	cfg   *config.Config
	notif notifier.Notifier

	now   func() time.Time
	newID func() string
}

// New validates cfg, authenticates to Reddit, verifies the subreddit is
// accessible and opens the store. Every failure is a *config.Error; no
// network call is made unless cfg is valid.
func New(ctx context.Context, cfg *config.Config) (*Bot, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	client, err := reddit.New(ctx, cfg.Reddit, cfg.Subreddit)
	if err != nil {
		return nil, config.Wrap("could not authenticate to Reddit with the provided credentials", err)
	}
	if err := client.CheckAccess(ctx); err != nil {
		return nil, config.Wrap(fmt.Sprintf("could not access r/%s using the provided credentials", cfg.Subreddit), err)
	}

	sources := make(map[string]Source, 2)
	if cfg.Signals.Modqueue.Enabled {
		sources[tracker.Modqueue.Name] = client.Modqueue()
	}
	if cfg.Signals.Modmail.Enabled {
		sources[tracker.Modmail.Name] = client.Modmail(cfg.Signals.Modmail.CountKey)
	}

	n, err := notifier.New(cfg.Webhook)
	if err != nil {
		return nil, config.Wrap("webhook", err)
	}
	st, err := store.Open(cfg.Storage)
	if err != nil {
		return nil, config.Wrap("storage", err)
	}

	b, err := NewWithDeps(ctx, cfg, Deps{Sources: sources, Notifier: n, Store: st})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	return b, nil
}

// NewWithDeps builds a Bot from ready-made collaborators and restores any
// persisted signal state from deps.Store.
func NewWithDeps(ctx context.Context, cfg *config.Config, deps Deps) (*Bot, error) {
	if len(deps.Sources) == 0 {
		return nil, &config.Error{Problems: []string{"no signals enabled"}}
	}
	if deps.Notifier == nil {
		deps.Notifier = notifier.Log{}
	}
	if deps.Store == nil {
		deps.Store = store.NewMemory()
	}

	defs := make([]tracker.Definition, 0, len(deps.Sources))
	st := make(map[string]*stats, len(deps.Sources))
	for name := range deps.Sources {
		def, ok := definitions[name]
		if !ok {
			return nil, fmt.Errorf("bot: %w: %q", tracker.ErrUnknownSignal, name)
		}
		defs = append(defs, def)
		st[name] = &stats{}
	}

	b := &Bot{
		tracker: tracker.New(defs...),
		sources: deps.Sources,
		store:   deps.Store,
		stats:   st,
		cfg:     cfg,
		notif:   deps.Notifier,
		now:     time.Now,
		newID:   uuid.NewString,
	}

	b.tracker.OnCommit(b.persist)

	counts, err := deps.Store.LoadCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("bot: restore state: %w", err)
	}
	for name, count := range counts {
		if _, ok := deps.Sources[name]; !ok {
			continue
		}
		if err := b.tracker.Restore(ctx, name, count); err != nil {
			log.Warn().Err(err).Str("signal", name).Msg("bot: ignoring persisted state")
			continue
		}
		if count > 0 {
			log.Info().Str("signal", name).Int("last_alerted", count).Msg("bot: restored signal state")
		}
	}
	return b, nil
}

// Result describes one completed check.
type Result struct {
	Signal  string
	Count   int
	Skipped bool  // the source failed and state was left untouched
	Err     error // the source error when Skipped
	Outcome tracker.Outcome
}

// Check polls one signal once. Source failures are logged and reported in
// Result; the returned error is non-nil only for an unknown signal name.
func (b *Bot) Check(ctx context.Context, name string) (Result, error) {
	src, ok := b.sources[name]
	if !ok {
		return Result{}, fmt.Errorf("bot: %w: %q", tracker.ErrUnknownSignal, name)
	}
	st := b.stats[name]
	st.checks.Add(1)

	res := Result{Signal: name}
	count, err := src.Count(ctx)
	if err == nil {
		res.Count = count
		res.Outcome, err = b.tracker.Observe(ctx, name, count, b.deliverer())
	}
	if err != nil {
		st.failures.Add(1)
		st.setError(err)
		log.Error().Err(err).Str("signal", name).Msg("bot: check failed, skipping cycle")
		b.record(ctx, store.Event{Signal: name, Kind: store.KindError, Error: err.Error()})
		res.Skipped, res.Err = true, err
		return res, nil
	}

	st.lastCount.Store(int64(count))
	st.setError(nil)

	out := res.Outcome
	switch out.Kind {
	case tracker.KindAlert:
		st.alerts.Add(1)
		ev := store.Event{
			ID:        out.MessageID,
			Signal:    name,
			Kind:      store.KindAlert,
			Count:     out.Observed,
			Message:   out.Message,
			Delivered: out.Attempted && out.DeliveryErr == nil,
		}
		if out.DeliveryErr != nil {
			st.deliveryFailures.Add(1)
			ev.Error = out.DeliveryErr.Error()
		}
		b.record(ctx, ev)
	case tracker.KindCleared:
		b.record(ctx, store.Event{Signal: name, Kind: store.KindCleared, Message: out.Message})
	default:
		log.Debug().Str("signal", name).Int("count", count).Msg("bot: no change")
	}

	return res, nil
}

// CheckAll polls every signal once, in name order.
func (b *Bot) CheckAll(ctx context.Context) []Result {
	names := b.tracker.Names()
	out := make([]Result, 0, len(names))
	for _, name := range names {
		res, _ := b.Check(ctx, name)
		out = append(out, res)
	}
	return out
}

// deliverer returns the tracker callback that sends one alert.
func (b *Bot) deliverer() tracker.DeliverFunc {
	return func(ctx context.Context, d tracker.Decision) (string, error) {
		b.mu.RLock()
		n := b.notif
		b.mu.RUnlock()

		msg := notifier.Message{
			ID:     b.newID(),
			Signal: d.Signal,
			Count:  d.Observed,
			Text:   d.Message,
			SentAt: b.now(),
		}
		return msg.ID, n.Send(ctx, msg)
	}
}

// persist saves a committed count. It runs under the signal's lock so saves
// reach the store in commit order.
func (b *Bot) persist(ctx context.Context, d tracker.Decision) {
	if err := b.store.SaveCount(ctx, d.Signal, d.Next, b.now()); err != nil {
		log.Warn().Err(err).Str("signal", d.Signal).Msg("bot: persist state failed")
	}
}

// record stamps and stores an event; store errors are logged only.
func (b *Bot) record(ctx context.Context, e store.Event) {
	if e.ID == "" {
		e.ID = b.newID()
	}
	if e.At.IsZero() {
		e.At = b.now()
	}
	if err := b.store.AppendEvent(ctx, e); err != nil {
		log.Warn().Err(err).Str("signal", e.Signal).Str("kind", e.Kind).Msg("bot: record event failed")
	}
}

// Reload applies the live-reloadable parts of cfg (log level, webhook
// target) and logs any change that needs a restart. The global logger is
// never rebuilt here; only its level changes.
func (b *Bot) Reload(cfg *config.Config) {
	b.mu.Lock()
	defer b.mu.Unlock()

	live, restart := config.Changes(b.cfg, cfg)
	for _, section := range live {
		switch section {
		case "log.level":
			if err := logging.SetLevel(cfg.Log.Level); err != nil {
				log.Error().Err(err).Msg("bot: apply log level failed")
				continue
			}
			b.cfg.Log.Level = cfg.Log.Level
			log.Info().Str("level", cfg.Log.Level).Msg("bot: log level updated")
		case "webhook":
			n, err := notifier.New(cfg.Webhook)
			if err != nil {
				log.Error().Err(err).Msg("bot: apply webhook config failed, keeping previous notifier")
				continue
			}
			b.notif = n
			b.cfg.Webhook = cfg.Webhook
			log.Info().Str("type", cfg.Webhook.Type).Msg("bot: webhook target updated")
		}
	}
	if len(restart) > 0 {
		log.Warn().Strs("sections", restart).Msg("bot: config changes need a restart to take effect")
	}
}

// Subreddit returns the monitored community.
func (b *Bot) Subreddit() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.Subreddit
}

// Interval returns the polling interval.
func (b *Bot) Interval() time.Duration {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.cfg.CheckInterval
}

// Events returns recent events, newest first.
func (b *Bot) Events(ctx context.Context, limit int) ([]store.Event, error) {
	return b.store.Events(ctx, limit)
}

// Close releases the store.
func (b *Bot) Close() error {
	return b.store.Close()
}

// stats are per-signal counters exposed through the status API.
type stats struct {
	checks           atomic.Uint64
	failures         atomic.Uint64
	alerts           atomic.Uint64
	deliveryFailures atomic.Uint64
	lastCount        atomic.Int64
	lastError        atomic.Pointer[string]
}

func (s *stats) setError(err error) {
	if err == nil {
		s.lastError.Store(nil)
		return
	}
	msg := err.Error()
	s.lastError.Store(&msg)
}
