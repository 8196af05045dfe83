// Command facetbot runs the catalog wizard bot and its maintenance tasks.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	corecmd "github.com/m3rciful/facetbot/core/cmd"
	coreconfig "github.com/m3rciful/facetbot/core/config"
)

const defaultConfigPath = "configs/config.yaml"

var rootCmd = &cobra.Command{
	Use:           "facetbot",
	Short:         "Telegram bot that narrows a product catalog step by step",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config.yaml (default $CONFIG_PATH or "+defaultConfigPath+")")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func configPath(cmd *cobra.Command) string {
	flag, _ := cmd.Flags().GetString("config")
	return corecmd.ResolveConfigPath(flag, defaultConfigPath)
}

// loadConfig reads the config. Only the bot itself needs a token.
func loadConfig(cmd *cobra.Command, requireToken bool) (*coreconfig.Config, error) {
	path := configPath(cmd)
	if requireToken {
		return coreconfig.Load(path)
	}
	return coreconfig.LoadLenient(path)
}
