package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Sugared = *zap.SugaredLogger

// Config selects the encoder, level and optional log file.
type Config struct {
	Env   string // "prod" selects JSON output
	Level string // debug, info, warn, error
	File  string // rotated log file; empty logs to stderr only
}

// New builds the process logger. An unparsable level falls back to info.
func New(cfg Config) Sugared {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if cfg.Level != "" {
		if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
			level = zap.NewAtomicLevelAt(zapcore.InfoLevel)
		}
	}

	var encoder zapcore.Encoder
	if cfg.Env == "prod" {
		ec := zap.NewProductionEncoderConfig()
		ec.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(ec)
	} else {
		ec := zap.NewDevelopmentEncoderConfig()
		ec.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(ec)
	}

	sink := zapcore.Lock(os.Stderr)
	if cfg.File != "" {
		sink = zapcore.NewMultiWriteSyncer(sink, zapcore.AddSync(&lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
		}))
	}

	return zap.New(zapcore.NewCore(encoder, sink, level), zap.AddCaller()).Sugar()
}

// Nop returns a logger that discards everything.
func Nop() Sugared { return zap.NewNop().Sugar() }
