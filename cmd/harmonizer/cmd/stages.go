package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/crosspoll/harmonizer/internal/cmd/notify"
	"github.com/crosspoll/harmonizer/pkg/mapping"
	"github.com/crosspoll/harmonizer/pkg/tables"
)

var (
	kindFlag    string
	mappingOut  string
	mappingFile string
)

// parseKind validates the --kind flag value.
func parseKind(s string) (mapping.Kind, error) {
	for _, kind := range mapping.Kinds() {
		if string(kind) == s {
			return kind, nil
		}
	}
	return "", fmt.Errorf("unknown key kind %q (want demographic or question)", s)
}

// emit writes v as JSON or YAML when -o asks for it and returns true.
func emit(v any) (bool, error) {
	switch globalFlags.Output {
	case "json":
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return true, err
		}
		fmt.Println(string(data))
		return true, nil
	case "yaml":
		data, err := yaml.Marshal(v)
		if err != nil {
			return true, err
		}
		fmt.Print(string(data))
		return true, nil
	}
	return false, nil
}

// harmonizeCmd normalizes rating field names in every stored table.
var harmonizeCmd = &cobra.Command{
	Use:     "harmonize",
	Short:   "Normalize rating field names per table",
	GroupID: "pipeline",
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
		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		report, err := h.Harmonize(ctx)
		if err != nil {
			return err
		}
		if err := st.SaveRegistry(ctx, reg, "harmonized"); err != nil {
			return err
		}

		if done, err := emit(report.Renamed); done {
			return err
		}
		for _, period := range sortedPeriods(report.Renamed) {
			for from, to := range report.Renamed[period] {
				fmt.Printf("%s: %s -> %s\n", period, from, to)
			}
		}
		n.Success("Harmonized %d rating fields", report.Total())
		return nil
	},
}

// collectCmd prints the distinct raw keys of a kind across all tables.
var collectCmd = &cobra.Command{
	Use:     "collect",
	Short:   "List distinct raw keys of a kind across all periods",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, err := parseKind(kindFlag)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := st.LoadRegistry(cmd.Context())
		if err != nil {
			return err
		}
		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		keys := h.CollectKeys(kind)
		if done, err := emit(keys); done {
			return err
		}
		for _, key := range keys {
			fmt.Println(key)
		}
		return nil
	},
}

// resolveCmd queries the oracles and selects one canonical mapping.
var resolveCmd = &cobra.Command{
	Use:     "resolve",
	Short:   "Select a canonical mapping for a key kind",
	GroupID: "pipeline",
	Long: `Collect the distinct raw keys of the given kind, fan the set out to
every configured oracle, and select one canonical mapping: unanimous
agreement wins outright, then the primary oracle among disagreeing
proposals that cover the key, then a strict majority. Keys that remain
tied stay unresolved; a mapping with unresolved keys is reported and
cannot be applied until resolved.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		kind, err := parseKind(kindFlag)
		if err != nil {
			return err
		}
		n := notify.NewFromCommand(cmd)

		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := st.LoadRegistry(cmd.Context())
		if err != nil {
			return err
		}
		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		canonical, err := h.Resolve(cmd.Context(), kind)
		if err != nil {
			return err
		}

		if mappingOut != "" {
			if err := canonical.SaveFile(mappingOut); err != nil {
				return err
			}
			n.Success("Mapping written to %s", mappingOut)
		}

		if done, err := emit(canonical.Document()); done {
			return err
		}
		for _, raw := range canonical.RawKeys() {
			res, _ := canonical.Resolution(raw)
			fmt.Printf("%s -> %s (%s)\n", raw, res.Canonical, res.Reason)
		}
		for _, raw := range canonical.Unresolved() {
			n.Warning("Unresolved: %s", raw)
		}
		return nil
	},
}

// applyCmd rewrites every stored table with a saved canonical mapping.
var applyCmd = &cobra.Command{
	Use:     "apply",
	Short:   "Apply a saved canonical mapping to every table",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		n := notify.NewFromCommand(cmd)

		canonical, err := mapping.LoadFile(mappingFile)
		if err != nil {
			return err
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := st.LoadRegistry(ctx)
		if err != nil {
			return err
		}
		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		report, err := h.Apply(canonical)
		if err != nil {
			return err
		}
		if err := st.SaveRegistry(ctx, reg, "mapped-"+string(canonical.Kind())); err != nil {
			return err
		}

		n.Stage("apply "+string(canonical.Kind()), map[string]int{
			"renamed":   len(report.Renamed),
			"merged":    len(report.Merged),
			"conflicts": len(report.Conflicts),
			"unmapped":  len(report.Unmapped),
		})
		for _, c := range report.Conflicts {
			n.Warning("%v", c)
		}
		for _, col := range report.Unmapped {
			n.Warning("Unmapped column: %s", col)
		}
		return nil
	},
}

// explodeCmd converts every table to labeled long rows and reports the
// per-period row counts. The long form is transient pipeline state; use
// flatten to persist the wide output.
var explodeCmd = &cobra.Command{
	Use:     "explode",
	Short:   "Explode tables to labeled long rows",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := st.LoadRegistry(cmd.Context())
		if err != nil {
			return err
		}
		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		sets, err := h.Explode()
		if err != nil {
			return err
		}

		counts := make(map[tables.Period]int, len(sets))
		for _, set := range sets {
			counts[set.Period] = len(set.Rows)
		}
		if done, err := emit(counts); done {
			return err
		}
		for _, period := range sortedPeriods(counts) {
			fmt.Printf("%s: %d long rows\n", period, counts[period])
		}
		return nil
	},
}

// flattenCmd runs explode, theme labeling, and flatten, persisting the
// wide per-period output tables.
var flattenCmd = &cobra.Command{
	Use:     "flatten",
	Short:   "Flatten labeled long rows to wide per-period tables",
	GroupID: "pipeline",
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
		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		sets, err := h.Explode()
		if err != nil {
			return err
		}
		flattened, err := h.Flatten(sets)
		if err != nil {
			return err
		}
		if err := st.SaveRegistry(ctx, reg, "flattened"); err != nil {
			return err
		}

		for _, period := range sortedPeriods(flattened) {
			t := flattened[period]
			n.Notify(notify.LevelInfo, "%s: %d rows, %d columns",
				period, t.Len(), len(t.Columns()))
		}
		n.Success("Flattened %d periods", len(flattened))
		return nil
	},
}

// inferCmd assigns semantic column types to every stored table.
var inferCmd = &cobra.Command{
	Use:     "infer",
	Short:   "Infer semantic column types per table",
	GroupID: "pipeline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		n := notify.NewFromCommand(cmd)

		st, err := openStore()
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		reg, err := st.LoadRegistry(cmd.Context())
		if err != nil {
			return err
		}
		h, _, err := newHarmonizer(reg)
		if err != nil {
			return err
		}

		results := h.InferTypes()
		if done, err := emit(results); done {
			return err
		}
		for _, period := range sortedPeriods(results) {
			r := results[period]
			fmt.Printf("%s:\n", period)
			for _, col := range r.Columns() {
				colType, _ := r.Type(col)
				fmt.Printf("  %-30s %s\n", col, colType)
			}
			for _, f := range r.Findings {
				n.Warning("%v", f)
			}
		}
		return nil
	},
}

// sortedPeriods returns a map's period keys in ascending order.
func sortedPeriods[V any](m map[tables.Period]V) []tables.Period {
	periods := make([]tables.Period, 0, len(m))
	for p := range m {
		periods = append(periods, p)
	}
	sort.Slice(periods, func(i, j int) bool { return periods[i] < periods[j] })
	return periods
}

func init() {
	collectCmd.Flags().StringVar(&kindFlag, "kind", "", "key kind: demographic or question")
	_ = collectCmd.MarkFlagRequired("kind")

	resolveCmd.Flags().StringVar(&kindFlag, "kind", "", "key kind: demographic or question")
	_ = resolveCmd.MarkFlagRequired("kind")
	resolveCmd.Flags().StringVar(&mappingOut, "out", "", "write the selected mapping to this YAML file")

	applyCmd.Flags().StringVar(&mappingFile, "mapping", "", "mapping YAML written by resolve")
	_ = applyCmd.MarkFlagRequired("mapping")

	rootCmd.AddCommand(harmonizeCmd, collectCmd, resolveCmd, applyCmd,
		explodeCmd, flattenCmd, inferCmd)
}
