package provider

import (
	"context"

	"curator/internal/catalog"
)

// MatchResult carries refreshed metadata for one catalog item. Every field is
// optional; a nil field means the provider had nothing to say and the stored
// value must be kept.
type MatchResult struct {
	Title          *string
	Year           *int
	Genres         *string
	Rating         *float64
	Overview       *string
	RuntimeMinutes *int
	AiredDate      *string
}

// Empty reports whether the result carries no fields at all.
func (r *MatchResult) Empty() bool {
	return r == nil || (r.Title == nil && r.Year == nil && r.Genres == nil &&
		r.Rating == nil && r.Overview == nil && r.RuntimeMinutes == nil && r.AiredDate == nil)
}

// Service defines the metadata lookup used by the resync operation.
type Service interface {
	// SearchAndMatch queries the provider for the item's title and year and
	// returns the best match, or (nil, nil) when nothing matched.
	SearchAndMatch(ctx context.Context, item *catalog.Item) (*MatchResult, error)
}
