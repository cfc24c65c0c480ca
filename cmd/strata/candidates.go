package main

import (
	"github.com/spf13/cobra"

	"mercator-hq/strata/pkg/cli"
	"mercator-hq/strata/pkg/record"
)

var candidatesFlags struct {
	limit  int
	output string
}

var candidatesCmd = &cobra.Command{
	Use:   "candidates",
	Short: "List the records the next archive pass would archive",
	Long: `List the archivable records outside the retention period: samples, then
batches, then worksheets, oldest first within each kind.

Examples:
  # First 20 candidates
  strata candidates --limit 20

  # Every candidate as CSV
  strata candidates --output csv > candidates.csv`,
	RunE: runCandidates,
}

func init() {
	rootCmd.AddCommand(candidatesCmd)

	candidatesCmd.Flags().IntVar(&candidatesFlags.limit, "limit", 0, "maximum number of candidates (0 lists all)")
	candidatesCmd.Flags().StringVarP(&candidatesFlags.output, "output", "o", "text", "output format: text, json, csv")
}

// candidateTable renders records as candidate rows.
type candidateTable []*record.Record

func (t candidateTable) Header() []string {
	return []string{"UID", "ID", "KIND", "STATE", "CREATED", "MODIFIED"}
}

func (t candidateTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for _, rec := range t {
		rows = append(rows, []string{
			rec.UID,
			rec.ID,
			string(rec.Kind),
			rec.State,
			rec.Created.Format(dateFormat),
			rec.LastModified().Format(dateFormat),
		})
	}
	return rows
}

const dateFormat = "2006-01-02"

func runCandidates(cmd *cobra.Command, args []string) error {
	format, err := cli.ParseOutputFormat(candidatesFlags.output)
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
		return cli.NewCommandError("candidates", err)
	}
	defer a.Close()

	recs, err := a.engine.Candidates(ctx, candidatesFlags.limit)
	if err != nil {
		return cli.NewCommandError("candidates", err)
	}
	if recs == nil {
		recs = []*record.Record{}
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), candidateTable(recs))
}
