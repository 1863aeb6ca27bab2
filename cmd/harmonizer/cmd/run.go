package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspoll/harmonizer/internal/cmd/notify"
	"github.com/crosspoll/harmonizer/internal/store"
	"github.com/crosspoll/harmonizer/pkg/constants"
)

// runCmd executes the full pipeline over every stored period table.
var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run the full harmonization pipeline",
	GroupID: "pipeline",
	Long: `Run every pipeline stage in order: rating-field harmonization, the
demographic and question mapping passes (collect, resolve, apply),
wide-to-long explosion with theme labeling, long-to-wide flattening, and
type inference. Input tables come from the store; the flattened output
tables are written back under the "flattened" stage.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		n := notify.NewFromCommand(cmd)

		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := st.LoadRegistry(ctx)
		if err != nil {
			return err
		}
		if reg.Len() == 0 {
			return fmt.Errorf("store is empty; ingest tables first with 'harmonizer store ingest'")
		}

		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		result, err := h.Run(ctx)
		if err != nil {
			return err
		}

		record := store.Run{
			ID:         result.RunID.String(),
			StartedAt:  result.StartedAt.Format(constants.TimeFormatISO8601),
			FinishedAt: result.FinishedAt.Format(constants.TimeFormatISO8601),
			Status:     "succeeded",
		}
		if len(result.Findings) > 0 {
			record.Detail = fmt.Sprintf("%d findings", len(result.Findings))
		}
		if err := st.RecordRun(ctx, record); err != nil {
			return err
		}
		if err := st.SaveRegistry(ctx, reg, "flattened"); err != nil {
			return err
		}

		n.Stage("harmonize", map[string]int{"renamed": result.HarmonizeReport.Total()})
		for kind, report := range result.ApplyReports {
			n.Stage("apply "+string(kind), map[string]int{
				"renamed":   len(report.Renamed),
				"merged":    len(report.Merged),
				"conflicts": len(report.Conflicts),
				"unmapped":  len(report.Unmapped),
			})
		}
		for _, f := range result.Findings {
			n.Warning("%v", f)
		}
		n.Success("Run %s complete: %d periods flattened, %d findings",
			result.RunID, len(result.Flattened), len(result.Findings))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
