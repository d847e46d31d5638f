package config

import "sort"

// Sections that can be applied to a running bot without a restart.
var liveSections = map[string]bool{
	"log.level": true,
	"webhook":   true,
}

// Changes compares two configs and returns the names of the sections that
// differ, split into those that can be applied live and those that need a
// restart. The log section is reported as log.level and log.format.
// Secrets are compared but never returned.
func Changes(oldCfg, newCfg *Config) (live, restart []string) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := map[string]bool{
		"reddit":         oldCfg.Reddit != newCfg.Reddit || oldCfg.Reddit.ClientSecret() != newCfg.Reddit.ClientSecret() || oldCfg.Reddit.Password() != newCfg.Reddit.Password(),
		"subreddit":      oldCfg.Subreddit != newCfg.Subreddit,
		"check_interval": oldCfg.CheckInterval != newCfg.CheckInterval,
		"webhook":        oldCfg.Webhook != newCfg.Webhook || oldCfg.Webhook.URL() != newCfg.Webhook.URL(),
		"signals":        oldCfg.Signals != newCfg.Signals,
		"storage":        oldCfg.Storage != newCfg.Storage,
		"http":           oldCfg.HTTP != newCfg.HTTP,
		"log.level":      oldCfg.Log.Level != newCfg.Log.Level,
		"log.format":     oldCfg.Log.Format != newCfg.Log.Format,
	}
	for name, diff := range changed {
		if !diff {
			continue
		}
		if liveSections[name] {
			live = append(live, name)
		} else {
			restart = append(restart, name)
		}
	}
	sort.Strings(live)
	sort.Strings(restart)
	return live, restart
}
