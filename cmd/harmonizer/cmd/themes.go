package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/crosspoll/harmonizer/pkg/themes"
)

// themesCmd groups theme table inspection commands.
var themesCmd = &cobra.Command{
	Use:     "themes",
	Short:   "Inspect the macro-theme table",
	GroupID: "management",
}

// themesLsCmd lists every question-to-theme assignment.
var themesLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List question-to-theme assignments",
	RunE: func(_ *cobra.Command, _ []string) error {
		table, err := loadThemes()
		if err != nil {
			return err
		}

		assignments := make(map[string]themes.Theme, table.Len())
		for _, q := range table.Questions() {
			assignments[q] = table.Lookup(q)
		}
		if done, err := emit(assignments); done {
			return err
		}
		for _, q := range table.Questions() {
			fmt.Printf("%-30s %s\n", q, table.Lookup(q))
		}
		return nil
	},
}

// themesLookupCmd resolves one question key to its theme.
var themesLookupCmd = &cobra.Command{
	Use:   "lookup <question>",
	Short: "Look up the theme for a question key",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		table, err := loadThemes()
		if err != nil {
			return err
		}
		fmt.Println(table.Lookup(args[0]))
		return nil
	},
}

func init() {
	themesCmd.AddCommand(themesLsCmd, themesLookupCmd)
	rootCmd.AddCommand(themesCmd)
}
