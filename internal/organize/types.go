package organize

import (
	"fmt"
	"strings"

	"curator/internal/catalog"
)

// MatchedItem pairs a discovered file with the best-guess attributes the
// external scanner and matcher produced. The caller owns the value; on
// success the processor rewrites SourcePath in place to the final library
// location.
type MatchedItem struct {
	SourcePath string
	Title      string
	MediaType  catalog.MediaType
	Year       int
	Season     int
	Episode    int
}

// ConflictResolution selects what happens when a rendered destination
// already exists and differs from the source.
type ConflictResolution string

const (
	ConflictSkip      ConflictResolution = "skip"
	ConflictOverwrite ConflictResolution = "overwrite"
	ConflictRename    ConflictResolution = "rename"
)

// ParseConflictResolution converts a string into a known ConflictResolution.
func ParseConflictResolution(value string) (ConflictResolution, bool) {
	normalized := ConflictResolution(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case ConflictSkip, ConflictOverwrite, ConflictRename:
		return normalized, true
	default:
		return "", false
	}
}

// Options controls one post-processing invocation.
type Options struct {
	ConflictResolution ConflictResolution
	DryRun             bool
	CopyMode           bool
	CleanupEmptyDirs   bool
}

// DefaultOptions returns the documented defaults: rename on conflict, real
// run, move semantics, empty-directory cleanup enabled.
func DefaultOptions() Options {
	return Options{
		ConflictResolution: ConflictRename,
		CleanupEmptyDirs:   true,
	}
}

// Action describes what the processor did (or planned) for one item.
type Action string

const (
	ActionPlannedMove Action = "planned-move"
	ActionMoved       Action = "moved"
	ActionCopied      Action = "copied"
)

// Processed records a successful (or dry-run planned) outcome.
type Processed struct {
	Action     Action
	SourcePath string
	TargetPath string
}

// Skipped records an item left untouched by the conflict policy.
type Skipped struct {
	SourcePath string
	Reason     string
}

// Failed records the item whose step raised the aborting error.
type Failed struct {
	SourcePath string
	Err        error
}

// Summary aggregates per-item outcomes in input order.
type Summary struct {
	Processed []Processed
	Skipped   []Skipped
	Failed    []Failed
}

// Total returns the number of outcomes recorded so far.
func (s *Summary) Total() int {
	return len(s.Processed) + len(s.Skipped) + len(s.Failed)
}

// AbortError carries the partial summary out of an aborted invocation after
// rollback has run.
type AbortError struct {
	Summary *Summary
	Err     error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("post-processing aborted after %d outcomes: %v", e.Summary.Total(), e.Err)
}

func (e *AbortError) Unwrap() error {
	return e.Err
}
