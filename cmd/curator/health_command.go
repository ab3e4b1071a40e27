package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"curator/internal/fileutil"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check catalog and library health",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			health, err := store.CheckHealth(cmd.Context())
			out := cmd.OutOrStdout()

			rows := [][]string{
				{"Catalog path", health.DBPath},
				{"Database exists", yesNo(health.DatabaseExists)},
				{"Database readable", yesNo(health.DatabaseReadable)},
				{"Items table", yesNo(health.TableExists)},
				{"Integrity check", yesNo(health.IntegrityCheck)},
				{"Total items", fmt.Sprintf("%d", health.TotalItems)},
			}
			if free, freeErr := fileutil.FreeSpace(cfg.Paths.LibraryDir); freeErr == nil {
				rows = append(rows, []string{"Library free space", formatBytes(free)})
			}
			fmt.Fprintln(out, renderTable([]string{"Check", "Result"}, rows, nil))

			if err != nil {
				return fmt.Errorf("catalog health: %w", err)
			}
			return nil
		},
	}
}

func formatBytes(value uint64) string {
	const unit = 1024
	if value < unit {
		return fmt.Sprintf("%d B", value)
	}
	div, exp := uint64(unit), 0
	for n := value / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(value)/float64(div), "KMGTPE"[exp])
}
