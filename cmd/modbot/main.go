package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/seancallaway/modbot/internal/api"
	"github.com/seancallaway/modbot/internal/bot"
	"github.com/seancallaway/modbot/internal/config"
	"github.com/seancallaway/modbot/internal/logging"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	envPath := flag.String("env", ".env", "optional dotenv file with secrets")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatal().Err(err).Str("path", *envPath).Msg("failed to load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalConfig(err, "failed to load config")
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, os.Stdout); err != nil {
		log.Error().Err(err).Msg("invalid log config")
		os.Exit(1)
	}

	log.Info().
		Str("config", *configPath).
		Str("subreddit", cfg.Subreddit).
		Dur("check_interval", cfg.CheckInterval).
		Str("webhook", cfg.Webhook.Type).
		Str("storage", cfg.Storage.Driver).
		Msg("modbot starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	b, err := bot.New(ctx, cfg)
	if err != nil {
		fatalConfig(err, "failed to start bot")
	}
	defer func() {
		if err := b.Close(); err != nil {
			log.Warn().Err(err).Msg("close store")
		}
	}()

	// The watcher keeps its own copy; Reload updates the bot's.
	applied := *cfg
	go func() {
		if err := config.Watch(ctx, *configPath, &applied, b.Reload); err != nil {
			log.Error().Err(err).Msg("config watcher stopped")
		}
	}()

	var srv *http.Server
	if cfg.HTTP.Addr != "" {
		srv = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.New(b),
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      30 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Msg("status API listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("status API stopped")
			}
		}()
	}

	b.Run(ctx)

	if srv != nil {
		shutdownCtx, stop := context.WithTimeout(context.Background(), 5*time.Second)
		defer stop()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("status API shutdown")
		}
	}
	log.Info().Msg("modbot shut down")
}

// fatalConfig logs each configuration problem on its own line and exits.
func fatalConfig(err error, msg string) {
	var cerr *config.Error
	if errors.As(err, &cerr) {
		for _, p := range cerr.Problems {
			log.Error().Str("problem", p).Msg("configuration error")
		}
	}
	log.Error().Err(err).Msg(msg)
	os.Exit(1)
}
