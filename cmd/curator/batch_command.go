package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"curator/internal/batch"
	"curator/internal/logging"
	"curator/internal/notifications"
	"curator/internal/provider"
	"curator/internal/services"
)

func newBatchCommand(ctx *commandContext) *cobra.Command {
	var rename bool
	var moveTo int64
	var deleteFiles bool
	var tags []string
	var genres string
	var rating float64
	var resync bool
	var keepEmptyDirs bool

	cmd := &cobra.Command{
		Use:   "batch <item-id>...",
		Short: "Apply batch operations to catalog items",
		Long: `Batch applies the selected operations to every listed catalog item inside
one catalog transaction. Any failure rolls back both the transaction and the
filesystem changes already made.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			itemIDs, err := parseItemIDs(args)
			if err != nil {
				return err
			}

			batchCfg := batch.DefaultConfig()
			batchCfg.Rename = rename
			batchCfg.DeleteFiles = deleteFiles
			batchCfg.TagsToAdd = tags
			batchCfg.ResyncProviders = resync
			batchCfg.CleanupEmptyDirs = !keepEmptyDirs
			if cmd.Flags().Changed("move-to") {
				batchCfg.MoveLibraryID = &moveTo
			}
			if cmd.Flags().Changed("genres") {
				batchCfg.OverrideGenres = &genres
			}
			if cmd.Flags().Changed("rating") {
				batchCfg.OverrideRating = &rating
			}

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}

			var metadata provider.Service
			if resync {
				client, err := provider.NewClient(cfg.Provider)
				if err != nil {
					return fmt.Errorf("configure metadata provider: %w", err)
				}
				metadata = client
			}

			notifier := notifications.NewService(cfg)

			runCtx := services.WithOperation(cmd.Context(), "batch")
			runCtx = services.WithRequestID(runCtx, uuid.NewString())
			logger = logging.WithContext(runCtx, logger)

			return ctx.withLock(func() error {
				store, err := ctx.openStore()
				if err != nil {
					return err
				}
				defer store.Close()

				service := batch.NewService(cfg, store, metadata, logger)

				out := cmd.OutOrStdout()
				var progress batch.ProgressFunc
				if isTerminal(out) {
					progress = func(done, total int, message string) {
						fmt.Fprintf(out, "[%d/%d] %s\n", done, total, message)
					}
				}

				start := time.Now()
				summary, err := service.Perform(runCtx, itemIDs, batchCfg, progress)
				if summary != nil {
					printBatchSummary(cmd, summary)
				}
				if err != nil {
					_ = notifier.NotifyError(runCtx, err, "batch")
					return err
				}
				_ = notifier.NotifyBatchCompleted(runCtx, summary.Processed, summary.Total, time.Since(start))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&rename, "rename", false, "Re-render and move every attached file to its canonical path")
	cmd.Flags().Int64Var(&moveTo, "move-to", 0, "Move items to the library with this id")
	cmd.Flags().BoolVar(&deleteFiles, "delete", false, "Delete items and their files")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "Tag to add (repeatable)")
	cmd.Flags().StringVar(&genres, "genres", "", "Override the stored genres")
	cmd.Flags().Float64Var(&rating, "rating", 0, "Override the stored rating (0 or less clears it)")
	cmd.Flags().BoolVar(&resync, "resync", false, "Refresh metadata from the configured provider")
	cmd.Flags().BoolVar(&keepEmptyDirs, "keep-empty-dirs", false, "Leave emptied source directories in place")

	return cmd
}

func parseItemIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, arg := range args {
		id, err := strconv.ParseInt(strings.TrimSpace(arg), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid item id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func printBatchSummary(cmd *cobra.Command, summary *batch.Summary) {
	out := cmd.OutOrStdout()

	rows := [][]string{
		{"Total", strconv.Itoa(summary.Total)},
		{"Processed", strconv.Itoa(summary.Processed)},
		{"Renamed", strconv.Itoa(summary.Renamed)},
		{"Moved", strconv.Itoa(summary.Moved)},
		{"Deleted", strconv.Itoa(summary.Deleted)},
		{"Tags applied", strconv.Itoa(summary.TagsApplied)},
		{"Metadata updated", strconv.Itoa(summary.MetadataUpdated)},
		{"Resynced", strconv.Itoa(summary.Resynced)},
	}
	fmt.Fprintln(out, renderTable([]string{"Counter", "Value"}, rows, []columnAlignment{alignLeft, alignRight}))

	for _, message := range summary.Errors {
		fmt.Fprintf(out, "error: %s\n", message)
	}
}
