package catalog

import (
	"strings"
	"time"
)

// MediaType distinguishes movie items from episodic items.
type MediaType string

const (
	MediaTypeMovie   MediaType = "movie"
	MediaTypeEpisode MediaType = "episode"
)

// ParseMediaType converts a string into a known MediaType.
func ParseMediaType(value string) (MediaType, bool) {
	normalized := MediaType(strings.ToLower(strings.TrimSpace(value)))
	switch normalized {
	case MediaTypeMovie, MediaTypeEpisode:
		return normalized, true
	default:
		return "", false
	}
}

// IsMovie reports whether the media type names a movie.
func (m MediaType) IsMovie() bool {
	return m == MediaTypeMovie
}

// Library represents one library root on disk.
type Library struct {
	ID        int64
	Name      string
	Path      string
	MediaType MediaType
}

// Item represents one media title persisted in the catalog, independent of
// its current filesystem location.
type Item struct {
	ID             int64
	LibraryID      int64
	Title          string
	Year           int
	MediaType      MediaType
	Genres         string
	Rating         *float64
	Overview       string
	RuntimeMinutes int
	AiredDate      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// File represents one on-disk file attached to an item.
type File struct {
	ID      int64
	ItemID  int64
	Path    string
	Season  int
	Episode int
}

// Tag is a user-defined label attachable to items.
type Tag struct {
	ID   int64
	Name string
}

// HistoryEvent is one append-only record of actions applied to an item.
type HistoryEvent struct {
	ID        int64
	ItemID    int64
	EventID   string
	Actions   []string
	CreatedAt time.Time
}

// DatabaseHealth captures diagnostic information about the catalog database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TableExists      bool
	IntegrityCheck   bool
	TotalItems       int
	Error            string
}
