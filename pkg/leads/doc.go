// Package leads captures contact-form submissions and notifies the owner.
//
// Capturer persists a lead and returns its id; SQLiteStore is the durable
// implementation (modernc.org/sqlite, no cgo). Notifier announces a captured
// lead; ResendNotifier delivers an e-mail through the Resend HTTP API and
// reports sent=false without error when it is not configured.
package leads
