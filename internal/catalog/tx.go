package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Tx is the unit-of-work all engine mutations run in. It wraps one SQLite
// transaction; Commit or Rollback must be called exactly once.
type Tx struct {
	tx   *sql.Tx
	ctx  context.Context
	done bool
}

// Commit finalizes the transaction.
func (t *Tx) Commit() error {
	if t.done {
		return errors.New("catalog tx already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit catalog tx: %w", err)
	}
	return nil
}

// Rollback aborts the transaction. Safe to call after Commit; it becomes a
// no-op so callers can defer it.
func (t *Tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil {
		return fmt.Errorf("rollback catalog tx: %w", err)
	}
	return nil
}

// GetItem fetches an item inside the transaction. Missing rows return (nil, nil).
func (t *Tx) GetItem(id int64) (*Item, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// CreateItem inserts a new item row and returns it with its identifier and
// timestamps populated.
func (t *Tx) CreateItem(item *Item) (*Item, error) {
	if item == nil {
		return nil, errors.New("item is nil")
	}
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)
	mediaType := item.MediaType
	if mediaType == "" {
		mediaType = MediaTypeMovie
	}
	res, err := t.tx.ExecContext(
		t.ctx,
		`INSERT INTO items (library_id, title, year, media_type, genres, rating, overview, runtime_minutes, aired_date, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.LibraryID,
		item.Title,
		nullableInt(item.Year),
		string(mediaType),
		nullableString(item.Genres),
		nullableFloat(item.Rating),
		nullableString(item.Overview),
		nullableInt(item.RuntimeMinutes),
		nullableString(item.AiredDate),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return t.GetItem(id)
}

// UpdateItem persists changes to an existing item and stamps updated_at.
func (t *Tx) UpdateItem(item *Item) error {
	if item == nil {
		return errors.New("item is nil")
	}
	item.UpdatedAt = time.Now().UTC()
	_, err := t.tx.ExecContext(
		t.ctx,
		`UPDATE items
         SET library_id = ?, title = ?, year = ?, media_type = ?, genres = ?,
             rating = ?, overview = ?, runtime_minutes = ?, aired_date = ?, updated_at = ?
         WHERE id = ?`,
		item.LibraryID,
		item.Title,
		nullableInt(item.Year),
		string(item.MediaType),
		nullableString(item.Genres),
		nullableFloat(item.Rating),
		nullableString(item.Overview),
		nullableInt(item.RuntimeMinutes),
		nullableString(item.AiredDate),
		item.UpdatedAt.Format(time.RFC3339Nano),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// DeleteItem removes an item row. Attached files and tag associations cascade.
func (t *Tx) DeleteItem(id int64) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM items WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}

// GetLibrary fetches a library row. Missing rows return (nil, nil).
func (t *Tx) GetLibrary(id int64) (*Library, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT id, name, path, media_type FROM libraries WHERE id = ?`, id)
	lib, err := scanLibrary(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get library: %w", err)
	}
	return lib, nil
}

// CreateLibrary inserts a library row and returns it with its identifier set.
func (t *Tx) CreateLibrary(lib *Library) (*Library, error) {
	if lib == nil {
		return nil, errors.New("library is nil")
	}
	mediaType := lib.MediaType
	if mediaType == "" {
		mediaType = MediaTypeMovie
	}
	res, err := t.tx.ExecContext(
		t.ctx,
		`INSERT INTO libraries (name, path, media_type) VALUES (?, ?, ?)`,
		lib.Name, lib.Path, string(mediaType),
	)
	if err != nil {
		return nil, fmt.Errorf("insert library: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return t.GetLibrary(id)
}

// FilesForItem returns the item's files inside the transaction, ordered by path.
func (t *Tx) FilesForItem(itemID int64) ([]*File, error) {
	rows, err := t.tx.QueryContext(t.ctx, `SELECT `+fileColumns+` FROM files WHERE item_id = ? ORDER BY path`, itemID)
	if err != nil {
		return nil, fmt.Errorf("files for item: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

// CreateFile attaches a file row to an item.
func (t *Tx) CreateFile(file *File) (*File, error) {
	if file == nil {
		return nil, errors.New("file is nil")
	}
	res, err := t.tx.ExecContext(
		t.ctx,
		`INSERT INTO files (item_id, path, season, episode) VALUES (?, ?, ?, ?)`,
		file.ItemID, file.Path, nullableInt(file.Season), nullableInt(file.Episode),
	)
	if err != nil {
		return nil, fmt.Errorf("insert file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	file.ID = id
	return file, nil
}

// UpdateFilePath rewrites the stored path for one file row.
func (t *Tx) UpdateFilePath(fileID int64, path string) error {
	if _, err := t.tx.ExecContext(t.ctx, `UPDATE files SET path = ? WHERE id = ?`, path, fileID); err != nil {
		return fmt.Errorf("update file path: %w", err)
	}
	return nil
}

// DeleteFile removes one file row.
func (t *Tx) DeleteFile(fileID int64) error {
	if _, err := t.tx.ExecContext(t.ctx, `DELETE FROM files WHERE id = ?`, fileID); err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	return nil
}

// TagByName fetches a tag by exact name. Missing rows return (nil, nil).
func (t *Tx) TagByName(name string) (*Tag, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT id, name FROM tags WHERE name = ?`, name)
	var tag Tag
	err := row.Scan(&tag.ID, &tag.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tag by name: %w", err)
	}
	return &tag, nil
}

// CreateTag inserts a new tag.
func (t *Tx) CreateTag(name string) (*Tag, error) {
	res, err := t.tx.ExecContext(t.ctx, `INSERT INTO tags (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return &Tag{ID: id, Name: name}, nil
}

// HasTag reports whether an item already carries the tag.
func (t *Tx) HasTag(itemID, tagID int64) (bool, error) {
	row := t.tx.QueryRowContext(t.ctx, `SELECT COUNT(1) FROM item_tags WHERE item_id = ? AND tag_id = ?`, itemID, tagID)
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check tag association: %w", err)
	}
	return count > 0, nil
}

// AssociateTag links a tag to an item.
func (t *Tx) AssociateTag(itemID, tagID int64) error {
	if _, err := t.tx.ExecContext(t.ctx, `INSERT INTO item_tags (item_id, tag_id) VALUES (?, ?)`, itemID, tagID); err != nil {
		return fmt.Errorf("associate tag: %w", err)
	}
	return nil
}

// TagsForItem returns the names of tags attached to an item, sorted.
func (t *Tx) TagsForItem(itemID int64) ([]string, error) {
	rows, err := t.tx.QueryContext(t.ctx,
		`SELECT tags.name FROM tags JOIN item_tags ON item_tags.tag_id = tags.id WHERE item_tags.item_id = ? ORDER BY tags.name`, itemID)
	if err != nil {
		return nil, fmt.Errorf("tags for item: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// AppendHistory writes one append-only history event for an item.
func (t *Tx) AppendHistory(itemID int64, eventID string, actions []string) error {
	encoded, err := encodeActions(actions)
	if err != nil {
		return fmt.Errorf("encode history actions: %w", err)
	}
	_, err = t.tx.ExecContext(
		t.ctx,
		`INSERT INTO history (item_id, event_id, actions_json, created_at) VALUES (?, ?, ?, ?)`,
		itemID, eventID, encoded, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

func encodeActions(actions []string) (string, error) {
	if actions == nil {
		actions = []string{}
	}
	data, err := json.Marshal(actions)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeActions(raw string) []string {
	if raw == "" {
		return nil
	}
	var actions []string
	if err := json.Unmarshal([]byte(raw), &actions); err != nil {
		return nil
	}
	return actions
}
