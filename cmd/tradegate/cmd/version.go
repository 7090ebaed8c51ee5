package cmd

import (
	"fmt"

	"github.com/rustyeddy/tradegate/advisor"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the tradegate CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "tradegate version %s\n", version)
		fmt.Fprintf(cmd.OutOrStdout(), "model version %s\n", advisor.ModelVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
