package cmd

import (
	"go.uber.org/zap"

	"paypiece/internal/config"
	"paypiece/internal/onlinepay"
	"paypiece/internal/plugin"
	"paypiece/internal/plugin/builtin"
)

func defaultRegistry(cfg config.Config, log *zap.SugaredLogger) (*plugin.Registry, error) {
	r := plugin.NewRegistry()
	pieces := []plugin.Connector{
		onlinepay.NewPiece(log, onlinepay.WithTimeout(cfg.HTTPTimeout)),
		builtin.NewLogPiece(log),
	}
	for _, p := range pieces {
		if err := r.Register(p); err != nil {
			return nil, err
		}
	}
	for piece, conn := range cfg.Connections {
		if err := r.Connect(piece, conn); err != nil {
			return nil, err
		}
	}
	return r, nil
}
