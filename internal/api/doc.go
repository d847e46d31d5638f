// Package api implements the optional HTTP status surface of modbot.
//
// New(backend) returns an http.Handler that serves:
//
//	GET  /api/v1/health                subreddit, interval, healthy flag
//	GET  /api/v1/signals               every signal's state and counters
//	GET  /api/v1/signals/{name}        one signal; 404 if not monitored
//	POST /api/v1/signals/{name}/check  poll one signal now
//	GET  /api/v1/events?limit=N        recent alert/cleared/error events
//	GET  /metrics                      Prometheus text exposition
//
// JSON endpoints respond with Content-Type: application/json. Routing is
// done with chi; method mismatches get chi's 405.
package api
