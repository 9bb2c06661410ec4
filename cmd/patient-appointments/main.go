// The patient-appointments command runs the triage and scheduling engine,
// either as an HTTP service (serve) or as an interactive terminal chat
// (chat).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set via ldflags at release time.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:           "patient-appointments",
		Short:         "Clinical triage and appointment scheduling engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newChatCmd(), newVersionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("patient-appointments %s\n", Version)
		},
	}
}
