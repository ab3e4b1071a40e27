package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"curator/internal/catalog"
)

func newItemsCommand(ctx *commandContext) *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:   "items",
		Short: "Inspect catalog items",
	}

	itemsCmd.AddCommand(newItemsListCommand(ctx))
	itemsCmd.AddCommand(newItemsShowCommand(ctx))

	return itemsCmd
}

func newItemsListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all catalog items",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			items, err := store.ListItems(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "catalog is empty")
				return nil
			}

			rows := make([][]string, 0, len(items))
			for _, item := range items {
				year := ""
				if item.Year > 0 {
					year = strconv.Itoa(item.Year)
				}
				rating := ""
				if item.Rating != nil {
					rating = fmt.Sprintf("%.1f", *item.Rating)
				}
				rows = append(rows, []string{
					strconv.FormatInt(item.ID, 10),
					item.Title,
					year,
					string(item.MediaType),
					rating,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"ID", "Title", "Year", "Type", "Rating"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight},
			))
			return nil
		},
	}
}

func newItemsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one item with its files, tags, and history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid item id %q", args[0])
			}

			store, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			item, err := store.GetItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			if item == nil {
				return fmt.Errorf("item %d not found", id)
			}

			out := cmd.OutOrStdout()
			printItemDetails(out, item)

			files, err := store.FilesForItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			if len(files) > 0 {
				rows := make([][]string, 0, len(files))
				for _, file := range files {
					episode := ""
					if file.Season > 0 || file.Episode > 0 {
						episode = fmt.Sprintf("S%02dE%02d", file.Season, file.Episode)
					}
					rows = append(rows, []string{strconv.FormatInt(file.ID, 10), file.Path, episode})
				}
				fmt.Fprintln(out, renderTable([]string{"File", "Path", "Episode"}, rows, nil))
			}

			history, err := store.HistoryForItem(cmd.Context(), id)
			if err != nil {
				return err
			}
			for _, event := range history {
				fmt.Fprintf(out, "%s %s\n",
					event.CreatedAt.Format("2006-01-02 15:04:05"),
					strings.Join(event.Actions, "; "))
			}
			return nil
		},
	}
}

func printItemDetails(out io.Writer, item *catalog.Item) {
	fmt.Fprintf(out, "Title:   %s\n", item.Title)
	if item.Year > 0 {
		fmt.Fprintf(out, "Year:    %d\n", item.Year)
	}
	fmt.Fprintf(out, "Type:    %s\n", item.MediaType)
	if item.Genres != "" {
		fmt.Fprintf(out, "Genres:  %s\n", item.Genres)
	}
	if item.Rating != nil {
		fmt.Fprintf(out, "Rating:  %.1f\n", *item.Rating)
	}
	if item.Overview != "" {
		fmt.Fprintf(out, "About:   %s\n", item.Overview)
	}
}
