package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"paypiece/internal/loader"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available flows",
	Args:  cobra.NoArgs,
	RunE:  listFlows,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

type flowSummary struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Description string `json:"description"`
	Trigger     string `json:"trigger,omitempty"`
	WebhookPath string `json:"webhook_path,omitempty"`
	Steps       int    `json:"steps"`
}

func listFlows(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	flows, err := a.flows()
	if err != nil {
		return err
	}

	summaries := make([]flowSummary, 0, len(flows))
	for _, name := range loader.Names(flows) {
		f := flows[name]
		s := flowSummary{
			Name:        f.Name,
			Version:     f.Version,
			Description: f.Description,
			Steps:       len(f.Steps),
		}
		if f.Trigger != nil {
			s.Trigger = f.Trigger.Piece + "/" + f.Trigger.Name
			s.WebhookPath = f.WebhookPath()
		}
		summaries = append(summaries, s)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return writeJSON(out, summaries)
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tDESCRIPTION\tSTEPS\tTRIGGER\tPATH")
	for _, s := range summaries {
		trigger, path := "-", "-"
		if s.Trigger != "" {
			trigger, path = s.Trigger, s.WebhookPath
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", s.Name, s.Version, s.Description, s.Steps, trigger, path)
	}
	return w.Flush()
}
