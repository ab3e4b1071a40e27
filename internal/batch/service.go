package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/fileutil"
	"curator/internal/logging"
	"curator/internal/provider"
	"curator/internal/renamer"
	"curator/internal/services"
)

const backupPrefix = ".curator-trash-"

// compensation is one undoable filesystem side effect. Records are appended
// forward and replayed in reverse when the batch aborts.
type compensation struct {
	kind     string // "move" or "backup"
	source   string
	target   string
	stopRoot string
}

// Service applies batch operations to catalog items inside one catalog
// transaction, keeping filesystem side effects undoable until commit.
type Service struct {
	cfg      *config.Config
	store    *catalog.Store
	provider provider.Service
	renderer *renamer.Renderer
	logger   *slog.Logger

	moveFile func(src, dst string) error
}

// NewService creates a batch service. The provider may be nil when resync is
// never requested.
func NewService(cfg *config.Config, store *catalog.Store, metadata provider.Service, logger *slog.Logger) *Service {
	return NewServiceWithDependencies(cfg, store, metadata, logger, fileutil.MoveFile)
}

// NewServiceWithDependencies creates a batch service with an explicit move
// function. Tests use this to inject failures at chosen points.
func NewServiceWithDependencies(
	cfg *config.Config,
	store *catalog.Store,
	metadata provider.Service,
	logger *slog.Logger,
	moveFile func(src, dst string) error,
) *Service {
	if moveFile == nil {
		moveFile = fileutil.MoveFile
	}
	return &Service{
		cfg:      cfg,
		store:    store,
		provider: metadata,
		renderer: renamer.New(cfg.Library.MovieTemplate, cfg.Library.EpisodeTemplate),
		logger:   logging.WithComponent(logger, "batch"),
		moveFile: moveFile,
	}
}

// Perform runs the selected operations over every item in order inside one
// catalog transaction. Any failure rolls the transaction back, replays the
// filesystem compensation log in reverse, and returns a *Error carrying the
// partial summary together with the original cause.
func (s *Service) Perform(ctx context.Context, itemIDs []int64, batch Config, onProgress ProgressFunc) (*Summary, error) {
	summary := &Summary{Total: len(itemIDs)}

	if err := s.validate(batch); err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, &Error{Summary: summary, Err: err}
	}

	tx, err := s.store.Begin(ctx)
	if err != nil {
		summary.Errors = append(summary.Errors, err.Error())
		return summary, &Error{Summary: summary, Err: err}
	}
	defer tx.Rollback()

	run := &runState{
		tx:       tx,
		batch:    batch,
		summary:  summary,
		tagCache: make(map[string]*catalog.Tag),
	}

	if batch.MoveLibraryID != nil {
		lib, err := tx.GetLibrary(*batch.MoveLibraryID)
		if err != nil {
			return s.abort(run, err)
		}
		if lib == nil {
			return s.abort(run, services.Wrap(services.ErrValidation, "batch", "move",
				fmt.Sprintf("target library %d does not exist", *batch.MoveLibraryID), nil))
		}
		run.targetLibrary = lib
	}

	for i, itemID := range itemIDs {
		if err := ctx.Err(); err != nil {
			return s.abort(run, err)
		}
		message, err := s.processItem(ctx, run, itemID)
		if err != nil {
			return s.abort(run, err)
		}
		summary.Processed++
		s.reportProgress(onProgress, i+1, summary.Total, message)
	}

	if err := tx.Commit(); err != nil {
		return s.abort(run, err)
	}

	s.finalize(run)
	return summary, nil
}

// runState bundles the per-call transaction, compensation log, and caches.
type runState struct {
	tx            *catalog.Tx
	batch         Config
	summary       *Summary
	targetLibrary *catalog.Library
	tagCache      map[string]*catalog.Tag
	log           []compensation
}

func (s *Service) validate(batch Config) error {
	if batch.ResyncProviders && s.provider == nil {
		return services.Wrap(services.ErrConfiguration, "batch", "resync", "no metadata provider configured", nil)
	}
	return nil
}

// processItem applies every selected operation to one item and returns the
// progress message for it.
func (s *Service) processItem(ctx context.Context, run *runState, itemID int64) (string, error) {
	ctx = services.WithItemID(ctx, itemID)

	item, err := run.tx.GetItem(itemID)
	if err != nil {
		return "", err
	}
	if item == nil {
		return "", services.Wrap(services.ErrNotFound, "batch", "load",
			fmt.Sprintf("item %d does not exist", itemID), nil)
	}

	var actions []string

	if run.batch.Rename || run.targetLibrary != nil {
		moved, err := s.relocateFiles(run, item)
		if err != nil {
			return "", err
		}
		actions = append(actions, moved...)
	}

	deleted := false
	if run.batch.DeleteFiles {
		removed, err := s.deleteItem(run, item)
		if err != nil {
			return "", err
		}
		actions = append(actions, removed...)
		deleted = true
	}

	if !deleted {
		if len(run.batch.TagsToAdd) > 0 {
			tagged, err := s.applyTags(run, item)
			if err != nil {
				return "", err
			}
			actions = append(actions, tagged...)
		}

		if run.batch.OverrideGenres != nil || run.batch.OverrideRating != nil {
			actions = append(actions, s.applyOverrides(run, item)...)
		}

		if run.batch.ResyncProviders {
			refreshed, err := s.resync(ctx, run, item)
			if err != nil {
				return "", err
			}
			actions = append(actions, refreshed...)
		}

		if len(actions) > 0 {
			if err := run.tx.UpdateItem(item); err != nil {
				return "", err
			}
		}
	}

	if len(actions) > 0 {
		if err := run.tx.AppendHistory(item.ID, uuid.NewString(), actions); err != nil {
			return "", err
		}
	}

	return fmt.Sprintf("%s: %d actions", item.Title, len(actions)), nil
}

// relocateFiles moves every attached file to its freshly rendered target,
// resolving occupied targets by suffixing, and rewrites the stored paths.
func (s *Service) relocateFiles(run *runState, item *catalog.Item) ([]string, error) {
	current, err := run.tx.GetLibrary(item.LibraryID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, services.Wrap(services.ErrNotFound, "batch", "rename",
			fmt.Sprintf("library %d for item %d does not exist", item.LibraryID, item.ID), nil)
	}
	library := current
	if run.targetLibrary != nil {
		library = run.targetLibrary
	}
	sourceRoot := current.Path

	files, err := run.tx.FilesForItem(item.ID)
	if err != nil {
		return nil, err
	}

	var actions []string
	movedAny := false
	for _, file := range files {
		target := filepath.Join(library.Path, s.renderer.Render(renamer.Media{
			Title:   item.Title,
			Year:    item.Year,
			Season:  file.Season,
			Episode: file.Episode,
			Movie:   item.MediaType.IsMovie(),
		}, filepath.Ext(file.Path)))

		if target == file.Path {
			continue
		}
		if _, statErr := os.Stat(target); statErr == nil {
			unique, uniqueErr := renamer.SuggestUnique(target)
			if uniqueErr != nil {
				return nil, services.Wrap(services.ErrFileSystem, "batch", "rename", "resolve unique target", uniqueErr)
			}
			target = unique
		} else if !errors.Is(statErr, os.ErrNotExist) {
			return nil, services.Wrap(services.ErrFileSystem, "batch", "rename", "stat target", statErr)
		}

		if err := s.moveFile(file.Path, target); err != nil {
			return nil, services.Wrap(services.ErrFileSystem, "batch", "rename", "move file", err)
		}
		run.log = append(run.log, compensation{
			kind:     "move",
			source:   file.Path,
			target:   target,
			stopRoot: sourceRoot,
		})
		if err := run.tx.UpdateFilePath(file.ID, target); err != nil {
			return nil, err
		}
		actions = append(actions, fmt.Sprintf("moved %s to %s", file.Path, target))
		movedAny = true
	}

	if run.targetLibrary != nil && item.LibraryID != run.targetLibrary.ID {
		item.LibraryID = run.targetLibrary.ID
		actions = append(actions, fmt.Sprintf("moved to library %s", run.targetLibrary.Name))
		run.summary.Moved++
	} else if movedAny {
		run.summary.Renamed++
	}
	return actions, nil
}

// deleteItem renames every attached file to a hidden backup name and removes
// the catalog row. Real unlinking waits until the batch commits.
func (s *Service) deleteItem(run *runState, item *catalog.Item) ([]string, error) {
	files, err := run.tx.FilesForItem(item.ID)
	if err != nil {
		return nil, err
	}

	var actions []string
	for _, file := range files {
		backup := filepath.Join(filepath.Dir(file.Path), backupPrefix+uuid.NewString())
		if err := os.Rename(file.Path, backup); err != nil {
			return nil, services.Wrap(services.ErrFileSystem, "batch", "delete", "back up file", err)
		}
		run.log = append(run.log, compensation{kind: "backup", source: file.Path, target: backup})
		actions = append(actions, fmt.Sprintf("deleted %s", file.Path))
	}

	if err := run.tx.DeleteItem(item.ID); err != nil {
		return nil, err
	}
	run.summary.Deleted++
	return actions, nil
}

// applyTags ensures every requested tag exists and is associated with the
// item. Lookups are cached per call and repeat associations are not counted.
func (s *Service) applyTags(run *runState, item *catalog.Item) ([]string, error) {
	var actions []string
	seen := make(map[string]bool)
	for _, name := range run.batch.TagsToAdd {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		tag, ok := run.tagCache[name]
		if !ok {
			existing, err := run.tx.TagByName(name)
			if err != nil {
				return nil, err
			}
			if existing == nil {
				created, err := run.tx.CreateTag(name)
				if err != nil {
					return nil, err
				}
				existing = created
			}
			tag = existing
			run.tagCache[name] = tag
		}

		has, err := run.tx.HasTag(item.ID, tag.ID)
		if err != nil {
			return nil, err
		}
		if has {
			continue
		}
		if err := run.tx.AssociateTag(item.ID, tag.ID); err != nil {
			return nil, err
		}
		run.summary.TagsApplied++
		actions = append(actions, fmt.Sprintf("tagged %s", name))
	}
	return actions, nil
}

// applyOverrides overwrites genre and rating fields. A rating of zero or less
// clears the stored rating.
func (s *Service) applyOverrides(run *runState, item *catalog.Item) []string {
	var actions []string
	if run.batch.OverrideGenres != nil {
		item.Genres = *run.batch.OverrideGenres
		actions = append(actions, fmt.Sprintf("set genres to %s", item.Genres))
	}
	if run.batch.OverrideRating != nil {
		if *run.batch.OverrideRating <= 0 {
			item.Rating = nil
			actions = append(actions, "cleared rating")
		} else {
			rating := *run.batch.OverrideRating
			item.Rating = &rating
			actions = append(actions, fmt.Sprintf("set rating to %.1f", rating))
		}
	}
	if len(actions) > 0 {
		run.summary.MetadataUpdated++
	}
	return actions
}

// resync refreshes the item's metadata from the provider, applying only the
// fields the provider returned that differ from the stored values.
func (s *Service) resync(ctx context.Context, run *runState, item *catalog.Item) ([]string, error) {
	result, err := s.provider.SearchAndMatch(ctx, item)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "batch", "resync", "provider lookup", err)
	}
	if result.Empty() {
		return nil, nil
	}

	changed := false
	if result.Title != nil && *result.Title != item.Title {
		item.Title = *result.Title
		changed = true
	}
	if result.Year != nil && *result.Year != item.Year {
		item.Year = *result.Year
		changed = true
	}
	if result.Genres != nil && *result.Genres != item.Genres {
		item.Genres = *result.Genres
		changed = true
	}
	if result.Rating != nil && (item.Rating == nil || *item.Rating != *result.Rating) {
		rating := *result.Rating
		item.Rating = &rating
		changed = true
	}
	if result.Overview != nil && *result.Overview != item.Overview {
		item.Overview = *result.Overview
		changed = true
	}
	if result.RuntimeMinutes != nil && *result.RuntimeMinutes != item.RuntimeMinutes {
		item.RuntimeMinutes = *result.RuntimeMinutes
		changed = true
	}
	if result.AiredDate != nil && *result.AiredDate != item.AiredDate {
		item.AiredDate = *result.AiredDate
		changed = true
	}
	if !changed {
		return nil, nil
	}
	run.summary.Resynced++
	return []string{"resynced metadata from provider"}, nil
}

// abort rolls the transaction back, replays the compensation log in reverse,
// and wraps the cause together with the partial summary. Compensation
// failures are logged and never mask the original error.
func (s *Service) abort(run *runState, cause error) (*Summary, error) {
	run.summary.Errors = append(run.summary.Errors, cause.Error())

	// Nothing was committed, so the mutation counters no longer describe
	// durable state once rollback runs.
	run.summary.Renamed = 0
	run.summary.Moved = 0
	run.summary.Deleted = 0
	run.summary.TagsApplied = 0
	run.summary.MetadataUpdated = 0
	run.summary.Resynced = 0
	s.logger.Error("aborting batch",
		logging.Int("compensations", len(run.log)),
		logging.Error(cause))

	if err := run.tx.Rollback(); err != nil {
		s.logger.Error("catalog rollback failed", logging.Error(err))
	}

	for i := len(run.log) - 1; i >= 0; i-- {
		record := run.log[i]
		var err error
		switch record.kind {
		case "move":
			err = s.moveFile(record.target, record.source)
		case "backup":
			err = os.Rename(record.target, record.source)
		}
		if err != nil {
			wrapped := services.Wrap(services.ErrCompensation, "batch", "rollback",
				fmt.Sprintf("restore %s", record.source), err)
			s.logger.Error("compensation step failed", logging.Error(wrapped))
			continue
		}
		s.logger.Info("compensated side effect",
			logging.String("kind", record.kind),
			logging.String("restored", record.source))
	}

	return run.summary, &Error{Summary: run.summary, Err: cause}
}

// finalize runs only after commit: backups become permanent deletions and
// emptied source directories are cleaned up.
func (s *Service) finalize(run *runState) {
	for _, record := range run.log {
		switch record.kind {
		case "backup":
			if err := os.Remove(record.target); err != nil {
				s.logger.Warn("remove backup failed",
					logging.String("backup", record.target),
					logging.Error(err))
			}
		case "move":
			if run.batch.CleanupEmptyDirs {
				stop := record.stopRoot
				if stop == "" {
					stop = filepath.Dir(filepath.Dir(record.source))
				}
				fileutil.RemoveEmptyDirs(filepath.Dir(record.source), stop)
			}
		}
	}
}

// reportProgress invokes the callback, logging and swallowing any panic it
// raises.
func (s *Service) reportProgress(onProgress ProgressFunc, done, total int, message string) {
	if onProgress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("progress callback panicked", logging.Any("panic", r))
		}
	}()
	onProgress(done, total, message)
}
