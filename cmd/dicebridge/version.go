package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the protocol version announced in availability responses and
// heartbeats. Overridable at build time with -ldflags.
var Version = "1.0.0"

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the dicebridge version",
		Run: func(*cobra.Command, []string) {
			fmt.Println("dicebridge", Version)
		},
	}
}
