package organize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"curator/internal/config"
	"curator/internal/fileutil"
	"curator/internal/logging"
	"curator/internal/renamer"
	"curator/internal/services"
)

// moveRecord remembers one completed move so an aborted run can be undone.
type moveRecord struct {
	item   *MatchedItem
	source string
	target string
}

// Processor files matched media into the configured library layout. Each run
// is all-or-nothing: when any item fails, moves already performed are replayed
// in reverse before the error is returned.
type Processor struct {
	cfg      *config.Config
	renderer *renamer.Renderer
	logger   *slog.Logger

	moveFile func(src, dst string) error
	copyFile func(src, dst string) error
}

// NewProcessor creates a processor using the filesystem operations from
// fileutil and the naming templates from the configuration.
func NewProcessor(cfg *config.Config, logger *slog.Logger) *Processor {
	return NewProcessorWithDependencies(cfg, logger, fileutil.MoveFile, fileutil.CopyFileVerified)
}

// NewProcessorWithDependencies creates a processor with explicit move and copy
// functions. Tests use this to inject failures at chosen points.
func NewProcessorWithDependencies(
	cfg *config.Config,
	logger *slog.Logger,
	moveFile func(src, dst string) error,
	copyFile func(src, dst string) error,
) *Processor {
	if moveFile == nil {
		moveFile = fileutil.MoveFile
	}
	if copyFile == nil {
		copyFile = fileutil.CopyFileVerified
	}
	return &Processor{
		cfg:      cfg,
		renderer: renamer.New(cfg.Library.MovieTemplate, cfg.Library.EpisodeTemplate),
		logger:   logging.WithComponent(logger, "organize"),
		moveFile: moveFile,
		copyFile: copyFile,
	}
}

// Process files every item into the library in input order. On success each
// item's SourcePath is rewritten to its final location. The first failing item
// aborts the run: completed moves are rolled back in reverse order and the
// returned *AbortError carries the partial summary. Dry runs plan targets
// without touching the filesystem.
func (p *Processor) Process(ctx context.Context, items []*MatchedItem, opts Options) (*Summary, error) {
	if opts.ConflictResolution == "" {
		opts.ConflictResolution = ConflictRename
	}

	summary := &Summary{}
	var completed []moveRecord

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return p.abort(summary, completed, item, err)
		}

		target, skipReason, err := p.plan(item, opts)
		if err != nil {
			return p.abort(summary, completed, item, err)
		}
		if skipReason != "" {
			summary.Skipped = append(summary.Skipped, Skipped{SourcePath: item.SourcePath, Reason: skipReason})
			p.logger.Info("skipped item",
				logging.String("source", item.SourcePath),
				logging.String("reason", skipReason))
			continue
		}

		if opts.DryRun {
			summary.Processed = append(summary.Processed, Processed{
				Action:     ActionPlannedMove,
				SourcePath: item.SourcePath,
				TargetPath: target,
			})
			p.logger.Info("planned move",
				logging.String("source", item.SourcePath),
				logging.String("target", target))
			continue
		}

		action, err := p.act(item.SourcePath, target, opts)
		if err != nil {
			return p.abort(summary, completed, item, err)
		}
		if action == ActionMoved {
			completed = append(completed, moveRecord{item: item, source: item.SourcePath, target: target})
		}

		summary.Processed = append(summary.Processed, Processed{
			Action:     action,
			SourcePath: item.SourcePath,
			TargetPath: target,
		})
		p.logger.Info("processed item",
			logging.String("action", string(action)),
			logging.String("source", item.SourcePath),
			logging.String("target", target))
		item.SourcePath = target
	}

	if !opts.DryRun && opts.CleanupEmptyDirs {
		p.cleanupSourceDirs(completed)
	}
	return summary, nil
}

// plan validates the item and resolves its destination. A non-empty skip
// reason means the conflict policy elected to leave the item alone.
func (p *Processor) plan(item *MatchedItem, opts Options) (target, skipReason string, err error) {
	if strings.TrimSpace(item.SourcePath) == "" {
		return "", "", services.Wrap(services.ErrValidation, "organize", "plan", "item has no source path", nil)
	}
	if strings.TrimSpace(item.Title) == "" {
		return "", "", services.Wrap(services.ErrValidation, "organize", "plan",
			fmt.Sprintf("item %s has no title", item.SourcePath), nil)
	}
	if _, statErr := os.Stat(item.SourcePath); statErr != nil {
		return "", "", services.Wrap(services.ErrFileSystem, "organize", "plan", "stat source", statErr)
	}

	target = filepath.Join(p.libraryRoot(item), p.renderer.Render(renamer.Media{
		Title:   item.Title,
		Year:    item.Year,
		Season:  item.Season,
		Episode: item.Episode,
		Movie:   item.MediaType.IsMovie(),
	}, filepath.Ext(item.SourcePath)))

	if target == item.SourcePath {
		return target, "", nil
	}
	if _, statErr := os.Stat(target); statErr != nil {
		if errors.Is(statErr, os.ErrNotExist) {
			return target, "", nil
		}
		return "", "", services.Wrap(services.ErrFileSystem, "organize", "plan", "stat target", statErr)
	}

	switch opts.ConflictResolution {
	case ConflictSkip:
		return "", fmt.Sprintf("target already exists: %s", target), nil
	case ConflictOverwrite:
		return target, "", nil
	default:
		unique, uniqueErr := renamer.SuggestUnique(target)
		if uniqueErr != nil {
			return "", "", services.Wrap(services.ErrFileSystem, "organize", "plan", "resolve unique target", uniqueErr)
		}
		return unique, "", nil
	}
}

// act performs the filesystem mutation for one item. Copies keep the source
// and are not undone on abort.
func (p *Processor) act(source, target string, opts Options) (Action, error) {
	if opts.ConflictResolution == ConflictOverwrite && target != source {
		if err := os.Remove(target); err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", services.Wrap(services.ErrFileSystem, "organize", "overwrite", "remove existing target", err)
		}
	}

	if opts.CopyMode {
		if err := p.copyFile(source, target); err != nil {
			return "", services.Wrap(services.ErrFileSystem, "organize", "copy", "copy into library", err)
		}
		return ActionCopied, nil
	}

	if err := p.moveFile(source, target); err != nil {
		return "", services.Wrap(services.ErrFileSystem, "organize", "move", "move into library", err)
	}
	return ActionMoved, nil
}

// abort rolls back completed moves in reverse order, records the failing item,
// and wraps the cause together with the partial summary.
func (p *Processor) abort(summary *Summary, completed []moveRecord, item *MatchedItem, cause error) (*Summary, error) {
	summary.Failed = append(summary.Failed, Failed{SourcePath: item.SourcePath, Err: cause})
	p.logger.Error("aborting run",
		logging.String("source", item.SourcePath),
		logging.Int("moves_to_undo", len(completed)),
		logging.Error(cause))

	for i := len(completed) - 1; i >= 0; i-- {
		record := completed[i]
		if err := p.moveFile(record.target, record.source); err != nil {
			wrapped := services.Wrap(services.ErrCompensation, "organize", "rollback",
				fmt.Sprintf("restore %s", record.source), err)
			p.logger.Error("rollback move failed", logging.Error(wrapped))
			continue
		}
		record.item.SourcePath = record.source
		p.logger.Info("rolled back move",
			logging.String("source", record.source),
			logging.String("target", record.target))
	}

	return summary, &AbortError{Summary: summary, Err: cause}
}

// cleanupSourceDirs removes directories left empty by the moves. The staging
// root itself is never removed, and for sources elsewhere only the immediate
// parent is considered.
func (p *Processor) cleanupSourceDirs(completed []moveRecord) {
	staging := filepath.Clean(p.cfg.Paths.StagingDir)
	for _, record := range completed {
		dir := filepath.Dir(record.source)
		stop := filepath.Dir(dir)
		if staging != "." && isWithin(staging, dir) {
			stop = staging
		}
		fileutil.RemoveEmptyDirs(dir, stop)
	}
}

func isWithin(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}

func (p *Processor) libraryRoot(item *MatchedItem) string {
	sub := p.cfg.Library.MoviesDir
	if !item.MediaType.IsMovie() {
		sub = p.cfg.Library.TVDir
	}
	return filepath.Join(p.cfg.Paths.LibraryDir, sub)
}
