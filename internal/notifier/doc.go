// Package notifier formats and delivers "item entered column" messages.
//
// A notification is rendered once per sink (Slack mrkdwn for the incoming
// webhook, plain text for Telegram) and delivered sequentially. Each sink has
// its own token-bucket limiter and every send is bounded by a timeout.
//
// Delivery is best-effort: a failed send is logged at warn, recorded to the
// optional journal, and returned as a DeliveryError. It is never retried.
//
// # History
//
// For operator visibility the service keeps a small in-memory history of
// recent deliveries.
package notifier
