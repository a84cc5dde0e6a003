// Command fleetctl manages a printer fleet from the terminal.
package main

import (
	"fmt"
	"os"

	"github.com/printfleet/fleetclient/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
