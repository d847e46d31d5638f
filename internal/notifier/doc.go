// Package notifier delivers alert messages to a chat webhook. Discord, Slack,
// Teams and generic JSON targets are supported, plus a log-only notifier
// that always succeeds. Each send is a single POST with no retry; failures
// come back as *DeliveryError for the caller to log.
package notifier
