package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/warrantyeye/internal/api/client"
	"github.com/warrantyeye/internal/settings"
)

func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Evaluation settings commands",
	}

	cmd.AddCommand(newSettingsGetCommand())
	cmd.AddCommand(newSettingsSetCommand())

	return cmd
}

func newSettingsGetCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get",
		Short: "Show the current evaluation configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			cfg, err := c.GetSettings()
			if err != nil {
				return fmt.Errorf("failed to get settings: %v", err)
			}

			data, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal settings: %v", err)
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newSettingsSetCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "set",
		Short: "Replace the evaluation configuration from a JSON file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("failed to read file: %v", err)
			}

			var cfg settings.Config
			if err := json.Unmarshal(data, &cfg); err != nil {
				return fmt.Errorf("failed to parse config: %v", err)
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %v", err)
			}

			c := client.NewClient()
			if err := c.UpdateSettings(cfg); err != nil {
				return fmt.Errorf("failed to update settings: %v", err)
			}

			fmt.Println("Settings updated")
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the JSON config file")
	cmd.MarkFlagRequired("file")
	return cmd
}
