// Package config loads and watches the modbot configuration file (config.yaml).
//
// Top-level types:
//   - Config: reddit credentials, subreddit, check_interval, webhook,
//     signals, storage, http, log
//   - RedditConfig: client_id, client_secret(_env), username, password(_env),
//     user_agent; ClientSecret() and Password() resolve from the environment
//     when the *_env form is used
//   - WebhookConfig: type (discord|slack|teams|http|log), url(_env),
//     rate_per_sec, timeout
//   - SignalsConfig: per-signal enable flags and the modmail count key
//
// Load(path) reads the YAML file, applies defaults (300s interval, discord
// webhook at 1 msg/s, no storage, info logging), then validates every
// required field and returns one *Error listing all problems at once.
//
// Watch(ctx, path, onChange) uses fsnotify to reload the file on write and
// calls onChange with the newly parsed Config. Changes tells the caller which
// sections changed so it can decide what is safe to apply live.
package config
