package batch

import "fmt"

// Config selects the operations one batch run applies to every item. All
// operations are optional; absent optional fields mean "leave unchanged".
type Config struct {
	Rename           bool
	MoveLibraryID    *int64
	DeleteFiles      bool
	TagsToAdd        []string
	OverrideGenres   *string
	OverrideRating   *float64
	ResyncProviders  bool
	CleanupEmptyDirs bool
}

// DefaultConfig returns a config with no operations selected and
// empty-directory cleanup enabled.
func DefaultConfig() Config {
	return Config{CleanupEmptyDirs: true}
}

// Summary reports what one batch run accomplished. Errors holds
// human-readable failure descriptions in occurrence order.
type Summary struct {
	Total           int
	Processed       int
	Renamed         int
	Moved           int
	Deleted         int
	TagsApplied     int
	MetadataUpdated int
	Resynced        int
	Errors          []string
}

// ProgressFunc receives a progress report after every item. Panics raised by
// the callback are logged and swallowed; they never abort the batch.
type ProgressFunc func(done, total int, message string)

// Error carries the partial summary out of an aborted batch after the catalog
// transaction was rolled back and filesystem compensation replayed.
type Error struct {
	Summary *Summary
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("batch aborted after %d of %d items: %v", e.Summary.Processed, e.Summary.Total, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
