package cmd

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/crosspoll/harmonizer/internal/cmd/notify"
	"github.com/crosspoll/harmonizer/pkg/errors"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

var (
	ingestPeriod string
	exportOut    string
)

// storeCmd groups table-store management commands.
var storeCmd = &cobra.Command{
	Use:     "store",
	Short:   "Manage the SQLite table store",
	GroupID: "management",
}

// storeInitCmd creates the store database and schema.
var storeInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the store database",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		notify.NewFromCommand(cmd).Success("Store initialized at %s", st.Path())
		return nil
	},
}

// storeIngestCmd bulk-loads a CSV/TSV file as one period's table.
var storeIngestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Ingest a CSV/TSV file as a period's table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		t, err := st.IngestCSV(cmd.Context(), args[0], tables.Period(ingestPeriod))
		if err != nil {
			return err
		}
		notify.NewFromCommand(cmd).Success("Ingested %s: %d rows, %d columns",
			ingestPeriod, t.Len(), len(t.Columns()))
		return nil
	},
}

// storeLsCmd lists stored tables with their stage and size.
var storeLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List stored tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		datasets, err := st.Datasets(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := emit(datasets); done {
			return err
		}
		fmt.Printf("%-12s %-14s %8s %8s  %s\n", "PERIOD", "STAGE", "COLUMNS", "ROWS", "UPDATED")
		for _, d := range datasets {
			fmt.Printf("%-12s %-14s %8d %8d  %s\n",
				d.Period, d.Stage, d.Columns, d.Rows, d.UpdatedAt)
		}
		return nil
	},
}

// storeExportCmd writes one period's table as CSV.
var storeExportCmd = &cobra.Command{
	Use:   "export <period>",
	Short: "Export a period's table as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		t, err := st.LoadTable(cmd.Context(), tables.Period(args[0]))
		if err != nil {
			return err
		}

		out := os.Stdout
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return errors.WrapIO("create", exportOut, err)
			}
			defer func() { _ = f.Close() }()
			out = f
		}

		w := csv.NewWriter(out)
		if err := w.Write(t.Columns()); err != nil {
			return errors.WrapIO("write", exportOut, err)
		}
		for _, row := range t.Rows() {
			record := make([]string, len(t.Columns()))
			for i, col := range t.Columns() {
				record[i] = row.Value(col)
			}
			if err := w.Write(record); err != nil {
				return errors.WrapIO("write", exportOut, err)
			}
		}
		w.Flush()
		return errors.WrapIO("write", exportOut, w.Error())
	},
}

// storeHistoryCmd lists recorded pipeline runs.
var storeHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded pipeline runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		runs, err := st.History(cmd.Context())
		if err != nil {
			return err
		}
		if done, err := emit(runs); done {
			return err
		}
		for _, r := range runs {
			line := fmt.Sprintf("%s  %s  %s", r.ID, r.StartedAt, r.Status)
			if r.Detail != "" {
				line += "  (" + r.Detail + ")"
			}
			fmt.Println(line)
		}
		return nil
	},
}

func init() {
	storeIngestCmd.Flags().StringVar(&ingestPeriod, "period", "", "period label, e.g. 2021")
	_ = storeIngestCmd.MarkFlagRequired("period")

	storeExportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default stdout)")

	storeCmd.AddCommand(storeInitCmd, storeIngestCmd, storeLsCmd,
		storeExportCmd, storeHistoryCmd)
	rootCmd.AddCommand(storeCmd)
}
