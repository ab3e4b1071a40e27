// Package logging wires log/slog with a console handler for interactive use
// and a JSON handler for machine consumption, plus the attr helpers and
// context plumbing the engine components share.
package logging
