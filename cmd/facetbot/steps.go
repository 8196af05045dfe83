package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/facetbot/catalog/query"
	"github.com/m3rciful/facetbot/catalog/steps"
)

var stepsCmd = &cobra.Command{
	Use:   "steps",
	Short: "Validate the step registry and print the flow",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		reg, _, err := loadWizard(cfg)
		if err != nil {
			return err
		}
		if err := query.DefaultSchema().Validate(reg); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for pos := 1; pos <= reg.Count(); pos++ {
			st, err := reg.Get(pos)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d. %-10s %s\n", st.Position, st.Key, describe(st))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(stepsCmd)
}

func describe(st steps.Step) string {
	switch {
	case st.Leaf:
		return "leaf, where " + st.Where.String()
	case st.MultiSelect && st.Range.Width > 0:
		return fmt.Sprintf("multi, range width %g, where %s", st.Range.Width, st.Where)
	case st.MultiSelect:
		return "multi, where " + st.Where.String()
	default:
		return "single, where " + st.Where.String()
	}
}
