package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dicebridge/internal/agent"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Probe for a live responder",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := newRuntime(false)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.agent.Start(cmd.Context()); err != nil {
				return err
			}

			avail, err := rt.agent.Probe(cmd.Context())
			if err != nil {
				return err
			}
			printAvailability(avail)
			return nil
		},
	}
}

func printAvailability(avail agent.Availability) {
	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"available": avail.Available,
			"version":   avail.Version,
		})
		return
	}
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Available", "Version"})
	version := avail.Version
	if version == "" {
		version = "-"
	}
	t.AppendRow(table.Row{fmt.Sprintf("%v", avail.Available), version})
	t.Render()
}
