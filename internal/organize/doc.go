// Package organize files matched media into the configured library layout
// with conflict resolution, dry-run planning, and rollback on failure.
package organize
