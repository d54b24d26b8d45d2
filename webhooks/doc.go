// Package webhooks contains the inbound delivery pipeline: signature
// verification, dedup claims, payload parsing, and acknowledgment.
//
// Delivery processing is driven by a claim lifecycle:
// pending/retry_ready -> processing -> processed|dead.
// This makes retries and crash recovery explicit and prevents transient
// failures from being deduped as permanently processed.
//
// Once a claim is recorded the provider always receives a success
// acknowledgment. SMS gateways resend on non-2xx responses, and a resend
// of a message the relay already owns would either be deduped or, worse,
// double-forwarded by a buggy dedup layer. Failed handlers are logged and
// scheduled for internal retry instead.
package webhooks
