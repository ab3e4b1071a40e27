package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"curator/internal/config"
)

// Store manages catalog persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the catalog database and verifies the schema.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "catalog.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the catalog database file.
func (s *Store) Path() string {
	return s.path
}

// Begin opens the unit-of-work transaction the mutation engine operates in.
// The returned Tx is owned exclusively by the in-flight call and is not
// reentrant.
func (s *Store) Begin(ctx context.Context) (*Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin catalog tx: %w", err)
	}
	return &Tx{tx: tx, ctx: ctx}, nil
}

// GetItem fetches a catalog item outside any transaction. Missing rows
// return (nil, nil).
func (s *Store) GetItem(ctx context.Context, id int64) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// ListItems returns all catalog items ordered by creation time.
func (s *Store) ListItems(ctx context.Context) ([]*Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []*Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// FilesForItem returns the files attached to an item ordered by path.
func (s *Store) FilesForItem(ctx context.Context, itemID int64) ([]*File, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE item_id = ? ORDER BY path`, itemID)
	if err != nil {
		return nil, fmt.Errorf("files for item: %w", err)
	}
	defer rows.Close()
	return collectFiles(rows)
}

// ListLibraries returns all configured libraries ordered by name.
func (s *Store) ListLibraries(ctx context.Context) ([]*Library, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, path, media_type FROM libraries ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list libraries: %w", err)
	}
	defer rows.Close()

	var libraries []*Library
	for rows.Next() {
		lib, err := scanLibrary(rows)
		if err != nil {
			return nil, err
		}
		libraries = append(libraries, lib)
	}
	return libraries, rows.Err()
}

// HistoryForItem returns the history trail for an item, oldest first.
func (s *Store) HistoryForItem(ctx context.Context, itemID int64) ([]*HistoryEvent, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, item_id, event_id, actions_json, created_at FROM history WHERE item_id = ? ORDER BY id`, itemID)
	if err != nil {
		return nil, fmt.Errorf("history for item: %w", err)
	}
	defer rows.Close()

	var events []*HistoryEvent
	for rows.Next() {
		event, err := scanHistory(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// CheckHealth returns diagnostic information about the catalog database.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}

	if s.path == "" {
		return health, errors.New("catalog database path is unknown")
	}

	info, err := os.Stat(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			health.DatabaseExists = false
			return health, nil
		}
		return health, fmt.Errorf("stat catalog database: %w", err)
	}
	if info.IsDir() {
		return health, fmt.Errorf("catalog database path %q is a directory", s.path)
	}
	health.DatabaseExists = true

	if s.db == nil {
		return health, errors.New("catalog database connection unavailable")
	}

	connCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := s.db.PingContext(connCtx); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("ping catalog database: %w", err)
	}
	health.DatabaseReadable = true

	var tableName string
	row := s.db.QueryRowContext(connCtx, "SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'items'")
	if err := row.Scan(&tableName); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			health.TableExists = false
		} else {
			health.Error = err.Error()
			return health, fmt.Errorf("query table info: %w", err)
		}
	} else {
		health.TableExists = true
	}

	if health.TableExists {
		row = s.db.QueryRowContext(connCtx, "SELECT COUNT(*) FROM items")
		if err := row.Scan(&health.TotalItems); err != nil {
			health.Error = err.Error()
			return health, fmt.Errorf("count items: %w", err)
		}
	}

	row = s.db.QueryRowContext(connCtx, "PRAGMA integrity_check")
	var integrityResult string
	if err := row.Scan(&integrityResult); err != nil {
		health.Error = err.Error()
		return health, fmt.Errorf("integrity check: %w", err)
	}
	health.IntegrityCheck = strings.EqualFold(integrityResult, "ok")

	return health, nil
}

const itemColumns = "id, library_id, title, year, media_type, genres, rating, overview, runtime_minutes, aired_date, created_at, updated_at"

const fileColumns = "id, item_id, path, season, episode"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		id         int64
		libraryID  int64
		title      string
		year       sql.NullInt64
		mediaType  string
		genres     sql.NullString
		rating     sql.NullFloat64
		overview   sql.NullString
		runtime    sql.NullInt64
		airedDate  sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &libraryID, &title, &year, &mediaType, &genres, &rating, &overview, &runtime, &airedDate, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	item := &Item{
		ID:             id,
		LibraryID:      libraryID,
		Title:          title,
		Year:           int(year.Int64),
		MediaType:      MediaType(mediaType),
		Genres:         genres.String,
		Overview:       overview.String,
		RuntimeMinutes: int(runtime.Int64),
		AiredDate:      airedDate.String,
	}
	if rating.Valid {
		value := rating.Float64
		item.Rating = &value
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		item.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		item.UpdatedAt = updated
	}
	return item, nil
}

func scanFile(scanner interface{ Scan(dest ...any) error }) (*File, error) {
	var (
		id      int64
		itemID  int64
		path    string
		season  sql.NullInt64
		episode sql.NullInt64
	)
	if err := scanner.Scan(&id, &itemID, &path, &season, &episode); err != nil {
		return nil, err
	}
	return &File{
		ID:      id,
		ItemID:  itemID,
		Path:    path,
		Season:  int(season.Int64),
		Episode: int(episode.Int64),
	}, nil
}

func scanLibrary(scanner interface{ Scan(dest ...any) error }) (*Library, error) {
	var (
		id        int64
		name      string
		path      string
		mediaType string
	)
	if err := scanner.Scan(&id, &name, &path, &mediaType); err != nil {
		return nil, err
	}
	return &Library{ID: id, Name: name, Path: path, MediaType: MediaType(mediaType)}, nil
}

func scanHistory(scanner interface{ Scan(dest ...any) error }) (*HistoryEvent, error) {
	var (
		id         int64
		itemID     int64
		eventID    string
		actionsRaw string
		createdRaw string
	)
	if err := scanner.Scan(&id, &itemID, &eventID, &actionsRaw, &createdRaw); err != nil {
		return nil, err
	}
	event := &HistoryEvent{ID: id, ItemID: itemID, EventID: eventID}
	event.Actions = decodeActions(actionsRaw)
	if created, err := parseTimeString(createdRaw); err == nil {
		event.CreatedAt = created
	}
	return event, nil
}

func collectFiles(rows *sql.Rows) ([]*File, error) {
	var files []*File
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		files = append(files, file)
	}
	return files, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableInt(value int) any {
	if value == 0 {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02 15:04:05", value)
}
