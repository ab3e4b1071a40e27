package batch_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"curator/internal/batch"
	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/logging"
	"curator/internal/provider"
	"curator/internal/testsupport"
)

type fixture struct {
	cfg     *config.Config
	store   *catalog.Store
	library *catalog.Library
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	library, err := tx.CreateLibrary(&catalog.Library{
		Name:      "Movies",
		Path:      filepath.Join(cfg.Paths.LibraryDir, cfg.Library.MoviesDir),
		MediaType: catalog.MediaTypeMovie,
	})
	if err != nil {
		t.Fatalf("create library: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return &fixture{cfg: cfg, store: store, library: library}
}

// seedItem creates an item with one attached file on disk under the fixture's
// library root.
func (f *fixture) seedItem(t *testing.T, title string, year int, fileName string) *catalog.Item {
	t.Helper()

	path := filepath.Join(f.library.Path, fileName)
	testsupport.WriteFile(t, path, title)

	tx, err := f.store.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback()

	item, err := tx.CreateItem(&catalog.Item{
		LibraryID: f.library.ID,
		Title:     title,
		Year:      year,
		MediaType: catalog.MediaTypeMovie,
	})
	if err != nil {
		t.Fatalf("create item: %v", err)
	}
	if _, err := tx.CreateFile(&catalog.File{ItemID: item.ID, Path: path}); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return item
}

func (f *fixture) service(t *testing.T, metadata provider.Service) *batch.Service {
	t.Helper()
	return batch.NewService(f.cfg, f.store, metadata, logging.NewNop())
}

func TestPerformRenameMovesFileAndUpdatesCatalog(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	cfg := batch.DefaultConfig()
	cfg.Rename = true

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if summary.Renamed != 1 || summary.Processed != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	want := filepath.Join(f.library.Path, "Example Movie (2021)", "Example Movie (2021).mkv")
	files, err := f.store.FilesForItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("FilesForItem: %v", err)
	}
	if len(files) != 1 || files[0].Path != want {
		t.Fatalf("stored path = %+v, want %q", files, want)
	}
	if got := testsupport.ReadFile(t, want); got != "Example Movie" {
		t.Fatalf("moved content = %q", got)
	}

	history, err := f.store.HistoryForItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("HistoryForItem: %v", err)
	}
	if len(history) != 1 || len(history[0].Actions) == 0 {
		t.Fatalf("history = %+v", history)
	}
	if history[0].EventID == "" {
		t.Fatal("history event id missing")
	}
}

func TestPerformMoveToOtherLibrary(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	tx, err := f.store.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	archive, err := tx.CreateLibrary(&catalog.Library{
		Name:      "Archive",
		Path:      filepath.Join(testsupport.BaseDir(f.cfg), "archive"),
		MediaType: catalog.MediaTypeMovie,
	})
	if err != nil {
		t.Fatalf("create library: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	cfg := batch.DefaultConfig()
	cfg.MoveLibraryID = &archive.ID

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if summary.Moved != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	moved, err := f.store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if moved.LibraryID != archive.ID {
		t.Fatalf("library id = %d, want %d", moved.LibraryID, archive.ID)
	}
	want := filepath.Join(archive.Path, "Example Movie (2021)", "Example Movie (2021).mkv")
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("moved file missing: %v", err)
	}
}

func TestPerformMoveMissingLibraryFailsUpFront(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	missing := int64(9999)
	cfg := batch.DefaultConfig()
	cfg.MoveLibraryID = &missing

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err == nil {
		t.Fatal("expected error for missing library")
	}
	if summary.Processed != 0 {
		t.Fatalf("items processed before validation: %+v", summary)
	}
	files, _ := f.store.FilesForItem(context.Background(), item.ID)
	if len(files) != 1 {
		t.Fatalf("files mutated: %+v", files)
	}
	if _, statErr := os.Stat(files[0].Path); statErr != nil {
		t.Fatalf("file touched before validation: %v", statErr)
	}
}

func TestPerformTagDeduplication(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	cfg := batch.DefaultConfig()
	cfg.TagsToAdd = []string{"favorite", "favorite", "4k"}

	svc := f.service(t, nil)
	summary, err := svc.Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if summary.TagsApplied != 2 {
		t.Fatalf("TagsApplied = %d, want 2", summary.TagsApplied)
	}

	// A second run applies nothing new.
	summary, err = svc.Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("second Perform: %v", err)
	}
	if summary.TagsApplied != 0 {
		t.Fatalf("repeat TagsApplied = %d, want 0", summary.TagsApplied)
	}
}

func TestPerformMetadataOverrides(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	genres := "Drama"
	rating := 8.5
	cfg := batch.DefaultConfig()
	cfg.OverrideGenres = &genres
	cfg.OverrideRating = &rating

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if summary.MetadataUpdated != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	updated, err := f.store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if updated.Genres != "Drama" || updated.Rating == nil || *updated.Rating != 8.5 {
		t.Fatalf("item = %+v", updated)
	}

	// A rating of zero or less clears the stored value.
	clear := 0.0
	cfg = batch.DefaultConfig()
	cfg.OverrideRating = &clear
	if _, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil); err != nil {
		t.Fatalf("clear Perform: %v", err)
	}
	updated, _ = f.store.GetItem(context.Background(), item.ID)
	if updated.Rating != nil {
		t.Fatalf("rating not cleared: %v", *updated.Rating)
	}
}

func TestPerformDeleteRemovesFileAndRow(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")
	path := filepath.Join(f.library.Path, "Example.Movie.2021.mkv")

	cfg := batch.DefaultConfig()
	cfg.DeleteFiles = true

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if summary.Deleted != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("file still present: %v", err)
	}
	gone, err := f.store.GetItem(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if gone != nil {
		t.Fatalf("row still present: %+v", gone)
	}

	entries, err := os.ReadDir(f.library.Path)
	if err != nil {
		t.Fatalf("read library dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".curator-trash-") {
			t.Fatalf("backup survived commit: %s", entry.Name())
		}
	}
}

func TestPerformDeleteRollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	first := f.seedItem(t, "First Movie", 2020, "First.Movie.2020.mkv")
	second := f.seedItem(t, "Second Movie", 2021, "Second.Movie.2021.mkv")
	firstPath := filepath.Join(f.library.Path, "First.Movie.2020.mkv")
	secondPath := filepath.Join(f.library.Path, "Second.Movie.2021.mkv")

	// Sabotage item 2's delete by removing its file out from under the run.
	if err := os.Remove(secondPath); err != nil {
		t.Fatalf("remove: %v", err)
	}

	cfg := batch.DefaultConfig()
	cfg.DeleteFiles = true

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{first.ID, second.ID}, cfg, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var batchErr *batch.Error
	if !errors.As(err, &batchErr) {
		t.Fatalf("error type = %T", err)
	}
	if batchErr.Summary != summary {
		t.Fatal("error does not carry the returned summary")
	}
	if summary.Deleted != 0 {
		t.Fatalf("Deleted = %d, want 0 after rollback", summary.Deleted)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("Errors = %v", summary.Errors)
	}

	// Item 1 restored on disk and in the catalog.
	if got := testsupport.ReadFile(t, firstPath); got != "First Movie" {
		t.Fatalf("first file content = %q", got)
	}
	restored, err := f.store.GetItem(context.Background(), first.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if restored == nil {
		t.Fatal("first item row not restored")
	}
}

func TestPerformResyncAppliesDifferingFields(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	overview := "refreshed overview"
	runtime := 117
	stub := stubProvider{result: &provider.MatchResult{
		Overview:       &overview,
		RuntimeMinutes: &runtime,
	}}

	cfg := batch.DefaultConfig()
	cfg.ResyncProviders = true

	summary, err := f.service(t, stub).Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if summary.Resynced != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	updated, _ := f.store.GetItem(context.Background(), item.ID)
	if updated.Overview != overview || updated.RuntimeMinutes != runtime {
		t.Fatalf("item = %+v", updated)
	}
	if updated.Title != "Example Movie" {
		t.Fatalf("absent provider field overwrote title: %q", updated.Title)
	}
}

func TestPerformResyncWithoutProviderFails(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	cfg := batch.DefaultConfig()
	cfg.ResyncProviders = true

	if _, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil); err == nil {
		t.Fatal("expected configuration error")
	}
}

func TestPerformProgressCallbackPanicsAreSwallowed(t *testing.T) {
	f := newFixture(t)
	first := f.seedItem(t, "First Movie", 2020, "First.Movie.2020.mkv")
	second := f.seedItem(t, "Second Movie", 2021, "Second.Movie.2021.mkv")

	cfg := batch.DefaultConfig()
	cfg.TagsToAdd = []string{"keep"}

	var reports []int
	progress := func(done, total int, message string) {
		reports = append(reports, done)
		panic("listener bug")
	}

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{first.ID, second.ID}, cfg, progress)
	if err != nil {
		t.Fatalf("Perform: %v", err)
	}
	if summary.Processed != 2 {
		t.Fatalf("summary = %+v", summary)
	}
	if len(reports) != 2 || reports[0] != 1 || reports[1] != 2 {
		t.Fatalf("progress reports = %v", reports)
	}
}

func TestPerformMissingItemAborts(t *testing.T) {
	f := newFixture(t)
	item := f.seedItem(t, "Example Movie", 2021, "Example.Movie.2021.mkv")

	cfg := batch.DefaultConfig()
	cfg.TagsToAdd = []string{"keep"}

	summary, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID, 12345}, cfg, nil)
	if err == nil {
		t.Fatal("expected error for missing item")
	}
	if summary.Processed != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	// The first item's tag association was rolled back with the transaction.
	repeat, err := f.service(t, nil).Perform(context.Background(), []int64{item.ID}, cfg, nil)
	if err != nil {
		t.Fatalf("repeat Perform: %v", err)
	}
	if repeat.TagsApplied != 1 {
		t.Fatalf("tag association survived rollback: %+v", repeat)
	}
}

type stubProvider struct {
	result *provider.MatchResult
	err    error
}

func (s stubProvider) SearchAndMatch(ctx context.Context, item *catalog.Item) (*provider.MatchResult, error) {
	return s.result, s.err
}
