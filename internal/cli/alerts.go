package cli

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/printfleet/fleetclient"
)

// NewAlertsCommand creates the alerts command group.
func NewAlertsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alerts",
		Short: "Work fleet alerts",
	}
	cmd.AddCommand(newAlertsListCommand(rootOpts))
	cmd.AddCommand(newAlertsAckCommand(rootOpts))
	cmd.AddCommand(newAlertsResolveCommand(rootOpts))
	return cmd
}

func newAlertsListCommand(rootOpts *RootOptions) *cobra.Command {
	var status, severity string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := requireSession(cmd, client); err != nil {
				return err
			}

			list, err := client.Alerts(cmd.Context(), fleetclient.AlertFilters{
				Status:   status,
				Severity: severity,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSEVERITY\tSTATUS\tPRINTER\tTITLE")
			for _, a := range list.Results {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
					a.ID, a.Severity, a.Status, a.PrinterName, a.Title)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d alert(s), %d unread\n", list.Count, list.UnreadCount())
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (new|acknowledged|resolved)")
	cmd.Flags().StringVar(&severity, "severity", "", "filter by severity")
	return cmd
}

func newAlertsAckCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "ack <alert-id>...",
		Short: "Acknowledge one or more alerts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := requireSession(cmd, client); err != nil {
				return err
			}

			ids := make([]int, 0, len(args))
			for _, arg := range args {
				id, err := strconv.Atoi(arg)
				if err != nil {
					return fmt.Errorf("invalid alert id %q", arg)
				}
				ids = append(ids, id)
			}

			if len(ids) == 1 {
				if _, err := client.AcknowledgeAlert(cmd.Context(), ids[0]); err != nil {
					return err
				}
			} else if err := client.BulkAcknowledgeAlerts(cmd.Context(), ids); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %d alert(s)\n", len(ids))
			return nil
		},
	}
}

func newAlertsResolveCommand(rootOpts *RootOptions) *cobra.Command {
	var notes string

	cmd := &cobra.Command{
		Use:   "resolve <alert-id>",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := requireSession(cmd, client); err != nil {
				return err
			}

			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid alert id %q", args[0])
			}
			if _, err := client.ResolveAlert(cmd.Context(), id, notes); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Resolved alert %d\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&notes, "notes", "", "resolution notes")
	return cmd
}
