// Package catalog persists the media catalog in SQLite: libraries, items,
// their files, tags, and the append-only history trail. Mutations flow
// through a single unit-of-work transaction (Store.Begin) so the batch
// engine can pair catalog writes with manually compensated filesystem
// side effects.
package catalog
