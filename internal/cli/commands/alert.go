package commands

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/warrantyeye/internal/api/client"
)

func NewAlertCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alert",
		Short:   "Alert management commands",
		Aliases: []string{"alerts", "a"},
	}

	cmd.AddCommand(newAlertListCommand())
	cmd.AddCommand(newAlertAcknowledgeCommand())
	cmd.AddCommand(newAlertResolveCommand())

	return cmd
}

func newAlertListCommand() *cobra.Command {
	var (
		status    string
		alertType string
		severity  string
	)

	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List alerts",
		Aliases: []string{"ls"},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.NewClient()

			alerts, err := c.ListAlerts(status, alertType, severity)
			if err != nil {
				return fmt.Errorf("failed to list alerts: %v", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tTYPE\tSEVERITY\tTITLE\tMETRIC\tSTATUS\tCREATED")

			for _, alert := range alerts {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
					alert.ID,
					alert.Type,
					alert.Severity,
					alert.Title,
					alert.MetricValue,
					alert.Status,
					alert.CreatedAt.Format(time.RFC3339),
				)
			}

			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "Filter by status (OPEN/ACKNOWLEDGED/RESOLVED)")
	cmd.Flags().StringVar(&alertType, "type", "", "Filter by alert type")
	cmd.Flags().StringVar(&severity, "severity", "", "Filter by severity (LOW/MEDIUM/HIGH)")

	return cmd
}

func newAlertAcknowledgeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "acknowledge [alert_id]",
		Short:   "Acknowledge an alert",
		Aliases: []string{"ack"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid alert ID: %v", err)
			}

			c := client.NewClient()
			alert, err := c.AcknowledgeAlert(uint(id))
			if err != nil {
				return fmt.Errorf("failed to acknowledge alert: %v", err)
			}

			fmt.Printf("Alert %d is now %s\n", alert.ID, alert.Status)
			return nil
		},
	}

	return cmd
}

func newAlertResolveCommand() *cobra.Command {
	var note string

	cmd := &cobra.Command{
		Use:   "resolve [alert_id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid alert ID: %v", err)
			}

			c := client.NewClient()
			alert, err := c.ResolveAlert(uint(id), note)
			if err != nil {
				return fmt.Errorf("failed to resolve alert: %v", err)
			}

			fmt.Printf("Alert %d is now %s\n", alert.ID, alert.Status)
			return nil
		},
	}

	cmd.Flags().StringVar(&note, "note", "", "Resolution note")
	return cmd
}
