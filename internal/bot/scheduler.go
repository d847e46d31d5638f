package bot

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// cronLogger adapts zerolog to cron.Logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}

// Run checks every signal once immediately, then on every check interval
// until ctx is cancelled. A check still running when its next tick arrives
// causes that tick to be skipped.
func (b *Bot) Run(ctx context.Context) {
	interval := b.Interval()

	c := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithChain(
			cron.Recover(cronLogger{}),
			cron.SkipIfStillRunning(cronLogger{}),
		),
	)
	for _, name := range b.tracker.Names() {
		c.Schedule(cron.Every(interval), cron.FuncJob(func() {
			_, _ = b.Check(ctx, name)
		}))
	}

	log.Info().Str("subreddit", b.Subreddit()).Dur("interval", interval).
		Strs("signals", b.tracker.Names()).Msg("bot: polling started")

	b.CheckAll(ctx)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	log.Info().Msg("bot: polling stopped")
}
