// Package batch applies selected operations (rename, move, delete, tag,
// metadata override, provider resync) to catalog items inside one catalog
// transaction, compensating filesystem side effects on failure.
package batch
