package cli

import (
	"bufio"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/printfleet/fleetclient"
)

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and persist a session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()

			in := bufio.NewReader(cmd.InOrStdin())
			if username == "" {
				fmt.Fprint(cmd.OutOrStdout(), "Username: ")
				line, err := in.ReadString('\n')
				if err != nil {
					return fmt.Errorf("read username: %w", err)
				}
				username = strings.TrimSpace(line)
			}
			fmt.Fprint(cmd.OutOrStdout(), "Password: ")
			line, err := in.ReadString('\n')
			if err != nil {
				return fmt.Errorf("read password: %w", err)
			}
			password := strings.TrimRight(line, "\r\n")

			user, err := client.Login(cmd.Context(), fleetclient.Credentials{
				Username: username,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s (%s)\n", user.Username, user.Role)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and clear the stored token",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Boot(cmd.Context()); err != nil {
				return err
			}
			if err := client.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := newClient(rootOpts)
			if err != nil {
				return err
			}
			defer client.Close()

			if err := client.Boot(cmd.Context()); err != nil {
				return err
			}
			user := client.CurrentUser()
			if user == nil {
				return fmt.Errorf("not signed in; run fleetctl login")
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "USERNAME\t%s\n", user.Username)
			fmt.Fprintf(w, "EMAIL\t%s\n", user.Email)
			fmt.Fprintf(w, "ROLE\t%s\n", user.Role)
			if user.Department != "" {
				fmt.Fprintf(w, "DEPARTMENT\t%s\n", user.Department)
			}
			return w.Flush()
		},
	}
}

func requireSession(cmd *cobra.Command, client *fleetclient.Client) error {
	if err := client.Boot(cmd.Context()); err != nil {
		return err
	}
	if !client.IsAuthenticated() {
		return fmt.Errorf("not signed in; run fleetctl login")
	}
	return nil
}
