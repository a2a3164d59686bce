package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"dicebridge/internal/agent"
	"dicebridge/internal/protocol"
)

func rollCmd() *cobra.Command {
	var (
		dice      []string
		subject   string
		bonus     int
		advantage string
		hidden    bool
		noWait    bool
	)
	cmd := &cobra.Command{
		Use:   "roll",
		Short: "Trigger a roll on a sibling instance",
		Long: `Publishes a roll trigger and waits for the result. Dice are given as
style[:type[:count]], e.g. --die classic:d20 --die classic:d6:2.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reqs, err := parseDiceArgs(dice)
			if err != nil {
				return err
			}

			rt, err := newRuntime(false)
			if err != nil {
				return err
			}
			defer rt.close()

			if err := rt.agent.Start(cmd.Context()); err != nil {
				return err
			}

			req := agent.TriggerRequest{
				Subject:   subject,
				Dice:      reqs,
				Bonus:     bonus,
				Advantage: advantage,
				Hidden:    hidden,
			}
			if noWait {
				rollID, err := rt.agent.TriggerRollNoWait(cmd.Context(), req)
				if err != nil {
					return err
				}
				fmt.Println("triggered:", rollID)
				return nil
			}

			res, err := rt.agent.TriggerRoll(cmd.Context(), req)
			if err != nil {
				return err
			}
			printResult(res)
			return nil
		},
	}
	cmd.Flags().StringArrayVar(&dice, "die", nil, "die to roll as style[:type[:count]] (repeatable)")
	cmd.Flags().StringVar(&subject, "subject", "", "subject the roll belongs to")
	cmd.Flags().IntVar(&bonus, "bonus", 0, "flat bonus added to the total")
	cmd.Flags().StringVar(&advantage, "advantage", "", "advantage or disadvantage")
	cmd.Flags().BoolVar(&hidden, "hidden", false, "hide the roll from other observers")
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "trigger without awaiting the result")
	_ = cmd.MarkFlagRequired("die")
	return cmd
}

// parseDiceArgs turns style[:type[:count]] specs into wire die requests.
func parseDiceArgs(args []string) ([]protocol.DieRequest, error) {
	var reqs []protocol.DieRequest
	for _, arg := range args {
		parts := strings.Split(arg, ":")
		if len(parts) > 3 || parts[0] == "" {
			return nil, fmt.Errorf("invalid die spec %q, want style[:type[:count]]", arg)
		}
		req := protocol.DieRequest{Style: parts[0]}
		if len(parts) > 1 {
			req.Type = parts[1]
		}
		if len(parts) > 2 {
			n, err := strconv.Atoi(parts[2])
			if err != nil {
				return nil, fmt.Errorf("invalid count in die spec %q: %w", arg, err)
			}
			req.Count = n
		}
		reqs = append(reqs, req)
	}
	return reqs, nil
}

func printResult(res agent.Result) {
	if viper.GetBool("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{
			"roll_id": res.RollID,
			"subject": res.Subject,
			"results": res.Results,
			"total":   res.Total,
		})
		return
	}

	keys := make([]string, 0, len(res.Results))
	for k := range res.Results {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Die", "Result"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, res.Results[k]})
	}
	t.AppendFooter(table.Row{"Total", res.Total})
	t.Render()
}
