package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// debounce is how long Watch waits after the last event on the file before
// reloading it. Editors commonly produce several events per save.
var debounce = 250 * time.Millisecond

// Watch reloads path whenever it changes and calls onChange with the new
// Config when it differs from the last one applied, starting from current.
// It runs until ctx is cancelled.
//
// The parent directory is watched rather than the file, so saves that
// replace the file (rename over it, remove and recreate) keep being seen.
// A file that fails to load is logged and skipped; the previous config stays
// in effect and the next save is picked up as usual.
func Watch(ctx context.Context, path string, current *Config, onChange func(*Config)) error {
	path = filepath.Clean(path)
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: watch: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("config: watch dir: %w", err)
	}
	log.Info().Str("path", path).Dur("debounce", debounce).Msg("config: watching for changes")

	var reload <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
				// The replacement arrives as a Create.
				log.Debug().Str("op", event.Op.String()).Msg("config: file replaced")
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				reload = time.After(debounce)
			}

		case <-reload:
			reload = nil
			next, err := Load(path)
			if err != nil {
				log.Error().Err(err).Str("path", path).Msg("config: reload failed, keeping previous config")
				continue
			}
			live, restart := Changes(current, next)
			if len(live)+len(restart) == 0 {
				log.Debug().Str("path", path).Msg("config: file saved without changes")
				continue
			}
			log.Info().Str("path", path).Strs("live", live).Strs("restart", restart).Msg("config: reloaded")
			onChange(next)
			current = next

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Error().Err(err).Msg("config: watcher error")
		}
	}
}
