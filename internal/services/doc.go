// Package services provides the shared error taxonomy and context helpers
// used across the mutation engine. Errors are classified with sentinel
// markers (validation, not found, filesystem, compensation) so callers can
// distinguish "nothing mutated" failures from mid-batch aborts.
package services
