package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/printfleet/fleetclient"
)

// NewPrintersCommand creates the printers command group.
func NewPrintersCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "printers",
		Short: "Inspect the printer fleet",
	}
	cmd.AddCommand(newPrintersListCommand(rootOpts))
	cmd.AddCommand(newPrintersStatsCommand(rootOpts))
	return cmd
}

func newPrintersListCommand(rootOpts *RootOptions) *cobra.Command {
	var status, printerType, search string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List printers",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := requireSession(cmd, client); err != nil {
				return err
			}

			list, err := client.Printers(cmd.Context(), fleetclient.PrinterFilters{
				Status:      status,
				PrinterType: printerType,
				Search:      search,
			})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tMODEL\tIP\tSTATUS\tONLINE")
			for _, p := range list.Results {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%v\n",
					p.ID, p.Name, p.Model, p.IPAddress, p.Status, p.IsOnline)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d printer(s)\n", list.Count)
			return nil
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status (active|offline|maintenance)")
	cmd.Flags().StringVar(&printerType, "type", "", "filter by printer type")
	cmd.Flags().StringVar(&search, "search", "", "free-text search")
	return cmd
}

func newPrintersStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show fleet-wide printer statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()
			if err := requireSession(cmd, client); err != nil {
				return err
			}

			stats, err := client.PrinterStatistics(cmd.Context())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "TOTAL\t%d\n", stats.TotalPrinters)
			fmt.Fprintf(w, "ACTIVE\t%d\n", stats.ActivePrinters)
			fmt.Fprintf(w, "OFFLINE\t%d\n", stats.OfflinePrinters)
			fmt.Fprintf(w, "MAINTENANCE\t%d\n", stats.MaintenancePrinters)
			return w.Flush()
		},
	}
}
