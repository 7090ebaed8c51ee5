package cmd

import (
	"fmt"
	"os"

	"github.com/rustyeddy/tradegate/config"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tradegate",
	Short: "An AI-assisted trading decision gate",
	Long: `Tradegate classifies market regimes, checks portfolio risk and decides
whether an AI trade recommendation may execute.

It provides tools for:
  - Running the decision loop and its HTTP API
  - Classifying a price file offline
  - Querying and exporting the trade journal
  - Generating and validating configuration files`,
	SilenceUsage: true,
}

var (
	cfgFile string
	envFile string
)

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (YAML or JSON); defaults apply when empty")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config")
}

// loadConfig reads the config file, or the defaults when none is given.
// Environment overrides apply in both cases.
func loadConfig() (*config.Config, error) {
	if err := config.LoadDotEnv(envFile); err != nil {
		return nil, err
	}
	if cfgFile != "" {
		return config.LoadFromFile(cfgFile)
	}
	cfg := config.Default()
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
