package main

import (
	"github.com/spf13/cobra"

	coredatabase "github.com/m3rciful/facetbot/core/database"
	"github.com/m3rciful/facetbot/core/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending migrations, or roll back with --down",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(cmd, false)
		if err != nil {
			return err
		}
		if err := logger.InitLogger(cfg); err != nil {
			return err
		}
		defer func() { _ = logger.Shutdown() }()

		down, _ := cmd.Flags().GetInt("down")
		if down > 0 {
			return coredatabase.RollbackMigrations(cfg.Database, down)
		}
		return coredatabase.RunMigrations(cfg.Database)
	},
}

func init() {
	migrateCmd.Flags().Int("down", 0, "Roll back this many migrations instead of applying")
	rootCmd.AddCommand(migrateCmd)
}
