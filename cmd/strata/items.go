package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"mercator-hq/strata/pkg/cli"
	"mercator-hq/strata/pkg/record"
	"mercator-hq/strata/pkg/store"
)

var itemsFlags struct {
	query  string
	kind   string
	limit  int
	offset int
	output string
}

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "Search archived records",
	Long: `Search the stubs left in the active store for archived records.

Examples:
  # Stubs mentioning a client
  strata items --query "Happy Hills"

  # Archived worksheets as JSON
  strata items --type Worksheet --output json

  # Show one stub with its summary
  strata items show 3f0a9c52-8d7e-4a51-b0f2-6c1d2e9a7b44`,
	RunE: runItems,
}

var itemsShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Show an archived record stub",
	Args:  cobra.ExactArgs(1),
	RunE:  runItemsShow,
}

func init() {
	rootCmd.AddCommand(itemsCmd)
	itemsCmd.AddCommand(itemsShowCmd)

	itemsCmd.Flags().StringVarP(&itemsFlags.query, "query", "q", "", "words the stub must contain")
	itemsCmd.Flags().StringVar(&itemsFlags.kind, "type", "", "only stubs of this type (AnalysisRequest, Batch, Worksheet, ...)")
	itemsCmd.Flags().IntVar(&itemsFlags.limit, "limit", 50, "maximum number of stubs")
	itemsCmd.Flags().IntVar(&itemsFlags.offset, "offset", 0, "number of stubs to skip")
	itemsCmd.PersistentFlags().StringVarP(&itemsFlags.output, "output", "o", "text", "output format: text, json, csv")
}

// itemTable renders archive stubs as rows.
type itemTable []*record.ArchiveItem

func (t itemTable) Header() []string {
	return []string{"ID", "ITEM_ID", "TYPE", "TITLE", "CREATED", "ARCHIVED", "ARCHIVE_PATH"}
}

func (t itemTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, item := range t {
		rows = append(rows, []string{
			item.ID,
			item.ItemID,
			string(item.ItemType),
			item.Title,
			item.ItemCreated.Format(dateFormat),
			item.Created.Format(dateFormat),
			item.ArchivePath,
		})
	}
	return rows
}

func runItems(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(itemsFlags.output)
	if err != nil {
		return err
	}
	kind := record.Kind(itemsFlags.kind)
	if kind != "" && !kind.IsValid() {
		return fmt.Errorf("unknown type %q", itemsFlags.kind)
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return cli.NewCommandError("items", err)
	}
	defer a.Close()

	var items []*record.ArchiveItem
	err = a.store.View(ctx, func(r store.Reader) error {
		var err error
		items, err = r.SearchArchive(ctx, store.ArchiveQuery{
			Text:     itemsFlags.query,
			ItemType: kind,
			Limit:    itemsFlags.limit,
			Offset:   itemsFlags.offset,
		})
		return err
	})
	if err != nil {
		return cli.NewCommandError("items", err)
	}
	if items == nil {
		items = []*record.ArchiveItem{}
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), itemTable(items))
}

func runItemsShow(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(itemsFlags.output)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return cli.NewCommandError("items show", err)
	}
	defer a.Close()

	var item *record.ArchiveItem
	err = a.store.View(ctx, func(r store.Reader) error {
		var err error
		item, err = r.ArchiveItem(ctx, args[0])
		return err
	})
	if errors.Is(err, store.ErrNotFound) {
		return cli.NewCommandError("items show", fmt.Errorf("no archived record with id %q", args[0]))
	}
	if err != nil {
		return cli.NewCommandError("items show", err)
	}

	if format == cli.FormatText {
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s %s)\n", item.Title, item.ItemType, item.ItemID)
		fmt.Fprintf(out, "UID:          %s\n", item.ItemUID)
		fmt.Fprintf(out, "Path:         %s\n", item.ItemPath)
		fmt.Fprintf(out, "Created:      %s\n", item.ItemCreated.Format(dateFormat))
		fmt.Fprintf(out, "Modified:     %s\n", item.ItemModified.Format(dateFormat))
		fmt.Fprintf(out, "Archived:     %s\n", item.Created.Format(dateFormat))
		fmt.Fprintf(out, "Archive path: %s\n", item.ArchivePath)
		return nil
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), itemTable{item})
}
