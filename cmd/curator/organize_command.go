package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"curator/internal/catalog"
	"curator/internal/config"
	"curator/internal/fileutil"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/organize"
	"curator/internal/services"
)

// manifestEntry is one matched file in the JSON manifest the external
// scanner/matcher hands to the organize command.
type manifestEntry struct {
	SourcePath string `json:"source_path"`
	Title      string `json:"title"`
	MediaType  string `json:"media_type"`
	Year       int    `json:"year"`
	Season     int    `json:"season"`
	Episode    int    `json:"episode"`
}

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var copyMode bool
	var onConflict string
	var keepEmptyDirs bool

	cmd := &cobra.Command{
		Use:   "organize <manifest.json>",
		Short: "File matched media into the library",
		Long: `Organize reads a JSON manifest of matched files produced by an external
scanner and files each entry into the configured library layout.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := loadManifest(args[0])
			if err != nil {
				return err
			}

			resolution, ok := organize.ParseConflictResolution(onConflict)
			if !ok {
				return fmt.Errorf("invalid --on-conflict value %q (skip, overwrite, rename)", onConflict)
			}

			opts := organize.DefaultOptions()
			opts.ConflictResolution = resolution
			opts.DryRun = dryRun
			opts.CopyMode = copyMode
			opts.CleanupEmptyDirs = !keepEmptyDirs

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			if copyMode && !dryRun {
				if err := checkCopySpace(cfg, items); err != nil {
					return err
				}
			}

			runCtx := services.WithOperation(cmd.Context(), "organize")
			runCtx = services.WithRequestID(runCtx, uuid.NewString())
			logger = logging.WithContext(runCtx, logger)

			processor := organize.NewProcessor(cfg, logger)
			notifier := notifications.NewService(cfg)

			run := func() error {
				summary, err := processor.Process(runCtx, items, opts)
				if summary != nil {
					printOrganizeSummary(cmd, summary, dryRun)
				}
				if err != nil {
					_ = notifier.NotifyError(runCtx, err, "organize")
					return err
				}
				if !dryRun {
					_ = notifier.NotifyOrganizeCompleted(runCtx, len(summary.Processed), len(summary.Skipped))
				}
				return nil
			}

			if dryRun {
				return run()
			}
			return ctx.withLock(run)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Plan destinations without touching the filesystem")
	cmd.Flags().BoolVar(&copyMode, "copy", false, "Copy files into the library instead of moving them")
	cmd.Flags().StringVar(&onConflict, "on-conflict", "rename", "Conflict policy: skip, overwrite, or rename")
	cmd.Flags().BoolVar(&keepEmptyDirs, "keep-empty-dirs", false, "Leave emptied source directories in place")

	return cmd
}

// checkCopySpace verifies the library volume can hold every source before a
// copy run starts. Unreadable sources are left for the processor to report.
func checkCopySpace(cfg *config.Config, items []*organize.MatchedItem) error {
	var needed uint64
	for _, item := range items {
		info, err := os.Stat(item.SourcePath)
		if err != nil {
			continue
		}
		needed += uint64(info.Size())
	}

	free, err := fileutil.FreeSpace(cfg.Paths.LibraryDir)
	if err != nil {
		return fmt.Errorf("check library free space: %w", err)
	}
	if needed > free {
		return fmt.Errorf("library volume has %s free but copying needs %s", formatBytes(free), formatBytes(needed))
	}
	return nil
}

func loadManifest(path string) ([]*organize.MatchedItem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var entries []manifestEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest %s contains no entries", path)
	}

	items := make([]*organize.MatchedItem, 0, len(entries))
	for i, entry := range entries {
		mediaType, ok := catalog.ParseMediaType(entry.MediaType)
		if !ok {
			return nil, fmt.Errorf("manifest entry %d: invalid media type %q", i, entry.MediaType)
		}
		items = append(items, &organize.MatchedItem{
			SourcePath: entry.SourcePath,
			Title:      entry.Title,
			MediaType:  mediaType,
			Year:       entry.Year,
			Season:     entry.Season,
			Episode:    entry.Episode,
		})
	}
	return items, nil
}

func printOrganizeSummary(cmd *cobra.Command, summary *organize.Summary, dryRun bool) {
	out := cmd.OutOrStdout()

	var rows [][]string
	for _, outcome := range summary.Processed {
		rows = append(rows, []string{string(outcome.Action), outcome.SourcePath, outcome.TargetPath})
	}
	for _, outcome := range summary.Skipped {
		rows = append(rows, []string{"skipped", outcome.SourcePath, outcome.Reason})
	}
	for _, outcome := range summary.Failed {
		rows = append(rows, []string{"failed", outcome.SourcePath, outcome.Err.Error()})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Outcome", "Source", "Detail"}, rows, nil))
	}

	verb := "processed"
	if dryRun {
		verb = "planned"
	}
	fmt.Fprintf(out, "%s %s, %s, %s\n",
		verb,
		formatCount(len(summary.Processed), "item"),
		formatCount(len(summary.Skipped), "skip"),
		formatCount(len(summary.Failed), "failure"))
}
