package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"paypiece/internal/config"
	"paypiece/internal/engine"
	"paypiece/internal/loader"
	"paypiece/internal/logger"
	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

var (
	flowsDir     string
	outputFormat string
	envFile      string
)

var rootCmd = &cobra.Command{
	Use:           "paypiece",
	Short:         "paypiece: OnlinePay payment flows from the command line",
	Long:          "Runs YAML flows built from the OnlinePay piece: webhook relay, checkout and customer actions.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flowsDir, "flows-dir", "", "directory containing flow YAML files (default $PAYPIECE_FLOWS_DIR or ./flows)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "table", "output format: table or json")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with OnlinePay credentials")
}

// Execute runs the CLI. SIGINT and SIGTERM cancel the command context.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// app is the wiring shared by every command.
type app struct {
	cfg      config.Config
	log      *zap.SugaredLogger
	registry *plugin.Registry
	engine   *engine.Engine
}

func newApp() (*app, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if flowsDir != "" {
		cfg.FlowsDir = flowsDir
	}

	log := logger.New(logger.Config{Env: cfg.Env, Level: cfg.LogLevel, File: cfg.LogFile})
	registry, err := defaultRegistry(cfg, log)
	if err != nil {
		return nil, err
	}

	return &app{
		cfg:      cfg,
		log:      log,
		registry: registry,
		engine:   engine.NewEngine(registry, log),
	}, nil
}

func (a *app) flows() (map[string]*types.FlowDef, error) {
	flows, err := loader.LoadFlows(a.cfg.FlowsDir)
	if err != nil {
		return nil, fmt.Errorf("loading flows: %w", err)
	}
	return flows, nil
}

func (a *app) flow(name string) (*types.FlowDef, error) {
	flows, err := a.flows()
	if err != nil {
		return nil, err
	}
	flow, ok := flows[name]
	if !ok {
		return nil, fmt.Errorf("flow %q not found in %s", name, a.cfg.FlowsDir)
	}
	return flow, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
