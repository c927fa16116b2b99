package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"paypiece/internal/server"
)

var describeCmd = &cobra.Command{
	Use:   "describe <flow-name>",
	Short: "Show details of a flow, including webhook setup instructions",
	Args:  cobra.ExactArgs(1),
	RunE:  describeFlow,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func describeFlow(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	flow, err := a.flow(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return writeJSON(out, flow)
	}

	fmt.Fprintf(out, "Name:        %s\n", flow.Name)
	fmt.Fprintf(out, "Version:     %s\n", flow.Version)
	fmt.Fprintf(out, "Description: %s\n", flow.Description)

	if flow.Trigger != nil {
		url := server.WebhookURL(a.cfg.PublicURL, flow)
		fmt.Fprintf(out, "Trigger:     %s/%s\n", flow.Trigger.Piece, flow.Trigger.Name)
		fmt.Fprintf(out, "Webhook URL: %s\n", url)

		if t, ok := a.registry.Trigger(flow.Trigger.Piece, flow.Trigger.Name); ok {
			if instructions := t.Def().Instructions; instructions != "" {
				fmt.Fprintln(out, "\nSetup:")
				fmt.Fprintln(out, strings.ReplaceAll(instructions, "{{webhookUrl}}", url))
			}
		}
	}

	fmt.Fprintln(out, "\nSteps:")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "  #\tNAME\tPIECE\tACTION\tON_ERROR")
	for i, step := range flow.Steps {
		onError := step.OnError
		if onError == "" {
			onError = "abort"
		}
		fmt.Fprintf(w, "  %d\t%s\t%s\t%s\t%s\n", i+1, step.Name, step.Piece, step.Action, onError)
	}
	return w.Flush()
}
