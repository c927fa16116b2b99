package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"paypiece/internal/loader"
	"paypiece/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long:  "Mounts one POST route per triggered flow and relays each delivery into the flow. Stops gracefully on SIGINT or SIGTERM.",
	Args:  cobra.NoArgs,
	RunE:  serveWebhook,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default from $PAYPIECE_HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func serveWebhook(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.log.Sync()

	flows, err := a.flows()
	if err != nil {
		return err
	}

	addr := a.cfg.HTTPAddr
	if servePort != 0 {
		addr = fmt.Sprintf(":%d", servePort)
	}

	srv := server.NewWebhookServer(a.engine, flows, a.log)
	srv.PublicURL = a.cfg.PublicURL

	for _, name := range loader.Names(flows) {
		if f := flows[name]; f.Trigger != nil {
			a.log.Infow("route", "method", "POST", "path", f.WebhookPath(), "flow", f.Name)
		}
	}
	return srv.ListenAndServe(cmd.Context(), addr)
}
