package cmd

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"paypiece/internal/plugin"
)

var piecesCmd = &cobra.Command{
	Use:   "pieces",
	Short: "List registered pieces with their auth fields, actions and triggers",
	Args:  cobra.NoArgs,
	RunE:  listPieces,
}

func init() {
	rootCmd.AddCommand(piecesCmd)
}

type pieceInfo struct {
	Name     string              `json:"name"`
	Meta     plugin.Meta         `json:"meta"`
	Auth     plugin.AuthDef      `json:"auth"`
	Actions  []plugin.ActionDef  `json:"actions"`
	Triggers []plugin.TriggerDef `json:"triggers"`
}

func listPieces(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}

	infos := make([]pieceInfo, 0)
	for _, name := range a.registry.List() {
		c, _ := a.registry.Get(name)
		info := pieceInfo{
			Name:     name,
			Meta:     c.Meta(),
			Auth:     c.Auth(),
			Actions:  c.Actions(),
			Triggers: make([]plugin.TriggerDef, 0),
		}
		for _, t := range c.Triggers() {
			info.Triggers = append(info.Triggers, t.Def())
		}
		infos = append(infos, info)
	}

	out := cmd.OutOrStdout()
	if outputFormat == "json" {
		return writeJSON(out, infos)
	}

	for i, info := range infos {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "%s (%s)\n", info.Meta.DisplayName, info.Name)

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		if len(info.Auth.Fields) > 0 {
			fmt.Fprintln(w, "  AUTH FIELD\tTYPE\tREQUIRED\tDEFAULT")
			for _, f := range info.Auth.Fields {
				fmt.Fprintf(w, "  %s\t%s\t%v\t%s\n", f.Name, f.Type, f.Required, f.Default)
			}
		}
		fmt.Fprintln(w, "  ACTION\tINPUTS")
		for _, act := range info.Actions {
			fmt.Fprintf(w, "  %s\t%s\n", act.Name, inputNames(act))
		}
		for _, t := range info.Triggers {
			fmt.Fprintf(w, "  TRIGGER %s\t%s\n", t.Name, t.Strategy)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func inputNames(act plugin.ActionDef) string {
	names := make([]string, 0, len(act.Input))
	for name, f := range act.Input {
		if f.Required {
			name += "*"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return fmt.Sprint(names)
}
