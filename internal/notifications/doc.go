// Package notifications delivers push notifications about engine runs via ntfy.
package notifications
