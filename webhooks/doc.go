// Package webhooks receives GitHub webhook deliveries and turns bursts of
// them into a single follow-up action.
//
// Deliveries are verified with the configured webhook secret, parsed with
// go-github, filtered (bot senders are dropped) and handed to a trailing-edge
// Debouncer keyed by action.
package webhooks
