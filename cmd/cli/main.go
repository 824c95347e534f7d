package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warrantyeye/internal/cli/commands"
)

var rootCmd = &cobra.Command{
	Use:   "warrantyeye",
	Short: "WarrantyEye CLI - warranty operations alert console",
	Long: `WarrantyEye CLI is the command-line console for the warranty operations
alert engine. It lists and manages alerts, tunes evaluation settings, and
triggers evaluation passes.`,
}

func init() {
	rootCmd.AddCommand(commands.NewLoginCommand())
	rootCmd.AddCommand(commands.NewAlertCommand())
	rootCmd.AddCommand(commands.NewSettingsCommand())
	rootCmd.AddCommand(commands.NewEvaluateCommand())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
