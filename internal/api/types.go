package api

import "github.com/seancallaway/modbot/internal/store"

// HealthResponse is the JSON body for GET /api/v1/health.
type HealthResponse struct {
	Status      string `json:"status"` // "ok" or "stale"
	Subreddit   string `json:"subreddit"`
	IntervalSec int64  `json:"interval_sec"`
	Signals     int    `json:"signals"`
}

// CheckResponse is the JSON body for POST /api/v1/signals/{name}/check.
type CheckResponse struct {
	Signal    string `json:"signal"`
	Count     int    `json:"count"`
	Skipped   bool   `json:"skipped"`
	Error     string `json:"error,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Message   string `json:"message,omitempty"`
	Delivered bool   `json:"delivered"`
}

// EventsResponse is the JSON body for GET /api/v1/events.
type EventsResponse struct {
	Events []store.Event `json:"events"`
}

type errorResponse struct {
	Error string `json:"error"`
}
