package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

var (
	payloadJSON string
	dryRun      bool
)

var runCmd = &cobra.Command{
	Use:   "run <flow-name>",
	Short: "Execute a flow with a webhook payload",
	Long: "Runs the flow the way the webhook server would: the payload is passed through the flow's " +
		"trigger and the flow runs once per produced item.",
	Args: cobra.ExactArgs(1),
	RunE: runFlow,
}

func init() {
	runCmd.Flags().StringVar(&payloadJSON, "payload", "{}", "webhook body delivered to the flow's trigger")
	runCmd.Flags().BoolVar(&dryRun, "dry-run", false, "resolve step inputs without calling any action")
	rootCmd.AddCommand(runCmd)
}

func runFlow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	flow, err := a.flow(args[0])
	if err != nil {
		return err
	}

	items, err := triggerItems(cmd, a, flow, []byte(payloadJSON))
	if err != nil {
		return err
	}

	results := make([]*types.FlowResult, 0, len(items))
	for _, item := range items {
		var res *types.FlowResult
		if dryRun {
			res, err = a.engine.DryRun(flow, item)
		} else {
			res, err = a.engine.Run(cmd.Context(), flow, item)
		}
		if err != nil {
			return err
		}
		results = append(results, res)
	}

	if len(results) == 1 {
		return writeJSON(cmd.OutOrStdout(), results[0])
	}
	return writeJSON(cmd.OutOrStdout(), results)
}

// triggerItems feeds the payload through the flow's trigger. Flows without
// a trigger run once with the payload as-is.
func triggerItems(cmd *cobra.Command, a *app, flow *types.FlowDef, payload []byte) ([]any, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("parsing payload JSON: invalid JSON")
	}
	if flow.Trigger == nil {
		return []any{json.RawMessage(payload)}, nil
	}

	t, ok := a.registry.Trigger(flow.Trigger.Piece, flow.Trigger.Name)
	if !ok {
		return nil, fmt.Errorf("trigger %q not found on piece %q", flow.Trigger.Name, flow.Trigger.Piece)
	}
	return t.Run(cmd.Context(), a.registry.Connection(flow.Trigger.Piece), plugin.Payload{Body: payload})
}
