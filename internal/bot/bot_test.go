package bot

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seancallaway/modbot/internal/config"
	"github.com/seancallaway/modbot/internal/notifier"
	"github.com/seancallaway/modbot/internal/reddit"
	"github.com/seancallaway/modbot/internal/store"
	"github.com/seancallaway/modbot/internal/tracker"
)

var baseTime = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

// fakeSource returns queued counts or errors, repeating the last entry.
type fakeSource struct {
	mu    sync.Mutex
	steps []any // int or error
	calls int
}

func (f *fakeSource) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	if i >= len(f.steps) {
		i = len(f.steps) - 1
	}
	f.calls++
	switch v := f.steps[i].(type) {
	case int:
		return v, nil
	case error:
		return 0, v
	}
	panic(fmt.Sprintf("bad step %T", f.steps[i]))
}

func (f *fakeSource) push(steps ...any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps = append(f.steps[:0], steps...)
	f.calls = 0
}

// fakeNotifier records messages and fails when err is set.
type fakeNotifier struct {
	mu   sync.Mutex
	sent []notifier.Message
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, m notifier.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, m)
	return f.err
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func testConfig() *config.Config {
	return &config.Config{
		Subreddit:     "lfg",
		CheckInterval: time.Minute,
		Webhook:       config.WebhookConfig{Type: "log", URLValue: "http://unused"},
		Log:           config.LogConfig{Level: "info", Format: "json"},
	}
}

func newTestBot(t *testing.T, st store.Store, sources map[string]Source, n notifier.Notifier) *Bot {
	t.Helper()
	b, err := NewWithDeps(context.Background(), testConfig(), Deps{Sources: sources, Notifier: n, Store: st})
	require.NoError(t, err)
	b.now = func() time.Time { return baseTime }
	ids := 0
	b.newID = func() string { ids++; return fmt.Sprintf("id-%d", ids) }
	return b
}

func TestCheck_AlertsOncePerCount(t *testing.T) {
	ctx := context.Background()
	q := &fakeSource{}
	n := &fakeNotifier{}
	b := newTestBot(t, nil, map[string]Source{"modqueue": q}, n)

	for _, count := range []int{0, 3, 3, 3, 8, 8, 0, 0, 2} {
		q.push(count)
		res, err := b.Check(ctx, "modqueue")
		require.NoError(t, err)
		require.False(t, res.Skipped)
	}

	require.Len(t, n.sent, 3)
	assert.Equal(t, "The modqueue has 3 item(s) in it.", n.sent[0].Text)
	assert.Equal(t, "The modqueue has 8 item(s) in it.", n.sent[1].Text)
	assert.Equal(t, 2, n.sent[2].Count)

	st, ok := b.Signal("modqueue")
	require.True(t, ok)
	assert.Equal(t, 2, st.LastAlerted)
	assert.Equal(t, uint64(9), st.Checks)
	assert.Equal(t, uint64(3), st.Alerts)
}

func TestCheck_DeliveryFailureAdvancesState(t *testing.T) {
	ctx := context.Background()
	q := &fakeSource{steps: []any{5}}
	n := &fakeNotifier{err: &notifier.DeliveryError{Target: "discord", Status: 502, Err: errors.New("bad gateway")}}
	b := newTestBot(t, nil, map[string]Source{"modqueue": q}, n)

	res, err := b.Check(ctx, "modqueue")
	require.NoError(t, err)
	assert.Error(t, res.Outcome.DeliveryErr)

	st, _ := b.Signal("modqueue")
	assert.Equal(t, 5, st.LastAlerted)
	assert.Equal(t, uint64(1), st.DeliveryFailures)

	// The failed count is not retried on the next cycle.
	_, _ = b.Check(ctx, "modqueue")
	assert.Equal(t, 1, n.count())

	events, err := b.Events(ctx, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, store.KindAlert, events[0].Kind)
	assert.False(t, events[0].Delivered)
	assert.Contains(t, events[0].Error, "bad gateway")
	assert.Equal(t, n.sent[0].ID, events[0].ID)
}

func TestCheck_MalformedSourceSkipsCycle(t *testing.T) {
	ctx := context.Background()
	mm := &fakeSource{steps: []any{4}}
	n := &fakeNotifier{}
	b := newTestBot(t, nil, map[string]Source{"modmail": mm}, n)

	_, _ = b.Check(ctx, "modmail")
	require.Equal(t, 1, n.count())

	mm.push(&reddit.DataError{Op: "modmail", Err: fmt.Errorf("%w \"new\"", reddit.ErrMissingField)})
	res, err := b.Check(ctx, "modmail")
	require.NoError(t, err, "source errors are not raised to the caller")
	assert.True(t, res.Skipped)
	assert.ErrorIs(t, res.Err, reddit.ErrMissingField)

	st, _ := b.Signal("modmail")
	assert.Equal(t, 4, st.LastAlerted, "state must be unchanged")
	assert.Equal(t, uint64(1), st.Failures)
	assert.Contains(t, st.LastError, "missing field")
	assert.Equal(t, 1, n.count(), "no alert on a failed cycle")

	// Recovery with the same count does not re-alert.
	mm.push(4)
	_, _ = b.Check(ctx, "modmail")
	assert.Equal(t, 1, n.count())
	st, _ = b.Signal("modmail")
	assert.Empty(t, st.LastError)
}

func TestCheck_ClearIsNotSent(t *testing.T) {
	ctx := context.Background()
	q := &fakeSource{steps: []any{2}}
	n := &fakeNotifier{}
	b := newTestBot(t, nil, map[string]Source{"modqueue": q}, n)

	_, _ = b.Check(ctx, "modqueue")
	q.push(0)
	res, _ := b.Check(ctx, "modqueue")

	assert.Equal(t, tracker.KindCleared, res.Outcome.Kind)
	assert.Equal(t, 1, n.count())

	events, _ := b.Events(ctx, 1)
	require.Len(t, events, 1)
	assert.Equal(t, store.KindCleared, events[0].Kind)
}

func TestCheck_PersistsAndRestores(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemory()
	q := &fakeSource{steps: []any{6}}
	n := &fakeNotifier{}

	b := newTestBot(t, st, map[string]Source{"modqueue": q}, n)
	_, _ = b.Check(ctx, "modqueue")
	require.Equal(t, 1, n.count())

	counts, _ := st.LoadCounts(ctx)
	assert.Equal(t, 6, counts["modqueue"])

	// A new session over the same store does not re-alert the same count.
	n2 := &fakeNotifier{}
	b2 := newTestBot(t, st, map[string]Source{"modqueue": q}, n2)
	s, _ := b2.Signal("modqueue")
	assert.Equal(t, tracker.StateAlerted, s.State.State)

	_, _ = b2.Check(ctx, "modqueue")
	assert.Zero(t, n2.count())
}

func TestCheck_UnknownSignal(t *testing.T) {
	b := newTestBot(t, nil, map[string]Source{"modqueue": &fakeSource{steps: []any{0}}}, nil)
	_, err := b.Check(context.Background(), "modmail")
	assert.ErrorIs(t, err, tracker.ErrUnknownSignal)
}

func TestNewWithDeps_Validation(t *testing.T) {
	_, err := NewWithDeps(context.Background(), testConfig(), Deps{})
	var cerr *config.Error
	assert.ErrorAs(t, err, &cerr)

	_, err = NewWithDeps(context.Background(), testConfig(), Deps{Sources: map[string]Source{"inbox": &fakeSource{}}})
	assert.ErrorIs(t, err, tracker.ErrUnknownSignal)
}

func TestNew_InvalidConfigFailsBeforeNetwork(t *testing.T) {
	_, err := New(context.Background(), &config.Config{})
	var cerr *config.Error
	require.ErrorAs(t, err, &cerr)
	assert.GreaterOrEqual(t, len(cerr.Problems), 6)
}

func TestCheckAll_SignalsIndependent(t *testing.T) {
	n := &fakeNotifier{}
	b := newTestBot(t, nil, map[string]Source{
		"modqueue": &fakeSource{steps: []any{1}},
		"modmail":  &fakeSource{steps: []any{errors.New("boom")}},
	}, n)

	results := b.CheckAll(context.Background())
	require.Len(t, results, 2)
	assert.Equal(t, "modmail", results[0].Signal)
	assert.True(t, results[0].Skipped)
	assert.Equal(t, "modqueue", results[1].Signal)
	assert.False(t, results[1].Skipped)
	assert.Equal(t, 1, n.count())
}

func TestReload_SwapsWebhook(t *testing.T) {
	var (
		mu  sync.Mutex
		got []map[string]any
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		mu.Lock()
		got = append(got, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	q := &fakeSource{steps: []any{3}}
	b := newTestBot(t, nil, map[string]Source{"modqueue": q}, notifier.Log{})

	cfg := testConfig()
	cfg.Webhook = config.WebhookConfig{Type: "slack", URLValue: srv.URL, Timeout: time.Second}
	cfg.CheckInterval = 2 * time.Minute
	b.Reload(cfg)

	assert.Equal(t, time.Minute, b.Interval(), "interval needs a restart")

	_, _ = b.Check(context.Background(), "modqueue")
	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "The modqueue has 3 item(s) in it.", got[0]["text"])
}

func TestHealthy(t *testing.T) {
	b := newTestBot(t, nil, map[string]Source{"modqueue": &fakeSource{steps: []any{0}}}, nil)
	assert.False(t, b.Healthy(time.Now()), "never checked")

	_, _ = b.Check(context.Background(), "modqueue")
	now := time.Now()
	assert.True(t, b.Healthy(now.Add(time.Minute)))
	assert.False(t, b.Healthy(now.Add(3*time.Minute)))
}

func TestRun_ChecksImmediatelyAndStops(t *testing.T) {
	n := &fakeNotifier{}
	b := newTestBot(t, nil, map[string]Source{"modqueue": &fakeSource{steps: []any{4}}}, n)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		b.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return n.count() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// cyclingSource returns counts[i % len(counts)] on its i-th call.
type cyclingSource struct {
	counts []int
	n      atomic.Int64
}

func (c *cyclingSource) Count(context.Context) (int, error) {
	i := c.n.Add(1) - 1
	return c.counts[int(i)%len(c.counts)], nil
}

// slowStore delays non-zero saves so that unordered writers would overtake them.
type slowStore struct {
	*store.Memory
}

func (s slowStore) SaveCount(ctx context.Context, signal string, count int, at time.Time) error {
	if count > 0 {
		time.Sleep(time.Millisecond)
	}
	return s.Memory.SaveCount(ctx, signal, count, at)
}

func TestCheck_ConcurrentChecksPersistInCommitOrder(t *testing.T) {
	ctx := context.Background()
	st := slowStore{Memory: store.NewMemory()}
	src := &cyclingSource{counts: []int{5, 0}}
	b, err := NewWithDeps(ctx, testConfig(), Deps{Sources: map[string]Source{"modqueue": src}, Store: st})
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = b.Check(ctx, "modqueue")
		}()
	}
	wg.Wait()

	sig, _ := b.Signal("modqueue")
	counts, err := st.LoadCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, sig.LastAlerted, counts["modqueue"], "persisted count must match in-memory state")
}

func TestReload_LogLevelConcurrentWithChecks(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	src := &cyclingSource{counts: []int{1, 2, 0}}
	b := newTestBot(t, nil, map[string]Source{"modqueue": src}, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			_, _ = b.Check(ctx, "modqueue")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 20; i++ {
			cfg := testConfig()
			if i%2 == 0 {
				cfg.Log.Level = "debug"
			}
			b.Reload(cfg)
		}
	}()
	wg.Wait()

	assert.Contains(t, []zerolog.Level{zerolog.DebugLevel, zerolog.InfoLevel}, zerolog.GlobalLevel())
}

func TestReload_FormatChangeNeedsRestart(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	b := newTestBot(t, nil, map[string]Source{"modqueue": &fakeSource{steps: []any{0}}}, nil)
	cfg := testConfig()
	cfg.Log = config.LogConfig{Level: "warn", Format: "console"}
	b.Reload(cfg)

	assert.Equal(t, zerolog.WarnLevel, zerolog.GlobalLevel())
	b.mu.RLock()
	defer b.mu.RUnlock()
	assert.Equal(t, "json", b.cfg.Log.Format, "format is applied only on restart")
	assert.Equal(t, "warn", b.cfg.Log.Level)
}
