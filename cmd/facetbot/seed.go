package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/m3rciful/facetbot/catalog/seed"
	"github.com/m3rciful/facetbot/core/bootstrap"
)

var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load a catalog fixture into the database",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "configs/seed.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		fixture, err := seed.Load(path)
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		res, err := bootstrap.Run(cmd.Context(), bootstrap.Options{
			Config:  cfg,
			Seeders: []bootstrap.Seeder{seed.Seeder{Fixture: fixture}},
		})
		if err != nil {
			return err
		}
		defer res.DB.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d products from %s\n", len(fixture.Products), path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
