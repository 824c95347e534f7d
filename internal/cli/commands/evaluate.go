package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/warrantyeye/internal/api/client"
)

func NewEvaluateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "evaluate",
		Short: "Trigger an evaluation pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			result, err := c.Evaluate()
			if err != nil {
				return fmt.Errorf("evaluation failed: %v", err)
			}

			fmt.Printf("Findings: %d (created %d, updated %d, unchanged %d), rule errors: %d\n",
				result["findings"], result["created"], result["updated"],
				result["unchanged"], result["rule_errors"])
			return nil
		},
	}
}

func NewLoginCommand() *cobra.Command {
	var (
		username string
		password string
	)

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and print an API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()
			token, err := c.Login(username, password)
			if err != nil {
				return fmt.Errorf("login failed: %v", err)
			}

			fmt.Printf("export WARRANTYEYE_TOKEN=%s\n", token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "Username")
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password")
	cmd.MarkFlagRequired("username")
	cmd.MarkFlagRequired("password")
	return cmd
}
