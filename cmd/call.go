package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

var callInput string

var callCmd = &cobra.Command{
	Use:   "call <piece> <action>",
	Short: "Execute a single piece action and print the raw response",
	Args:  cobra.ExactArgs(2),
	RunE:  callAction,
}

func init() {
	callCmd.Flags().StringVar(&callInput, "input", "{}", "JSON object of action inputs")
	rootCmd.AddCommand(callCmd)
}

func callAction(cmd *cobra.Command, args []string) error {
	var input map[string]any
	if err := json.Unmarshal([]byte(callInput), &input); err != nil {
		return fmt.Errorf("parsing input JSON: %w", err)
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	res, err := a.engine.Execute(cmd.Context(), args[0], args[1], input)
	if err != nil {
		return err
	}
	return printOutput(cmd.OutOrStdout(), res.Output)
}

// printOutput writes upstream bodies byte for byte.
func printOutput(w io.Writer, v any) error {
	switch out := v.(type) {
	case json.RawMessage:
		_, err := fmt.Fprintln(w, string(out))
		return err
	case string:
		_, err := fmt.Fprintln(w, out)
		return err
	}
	return writeJSON(w, v)
}
