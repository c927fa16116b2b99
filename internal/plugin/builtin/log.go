package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

// LogPiece writes messages to the process log for debugging flows.
type LogPiece struct {
	log *zap.SugaredLogger
}

func NewLogPiece(log *zap.SugaredLogger) *LogPiece {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &LogPiece{log: log}
}

func (l *LogPiece) Name() string { return "log" }

func (l *LogPiece) Meta() plugin.Meta {
	return plugin.Meta{DisplayName: "Log", Description: "Write flow data to the log"}
}

func (l *LogPiece) Auth() plugin.AuthDef { return plugin.AuthDef{} }

func (l *LogPiece) Triggers() []plugin.Trigger { return nil }

func (l *LogPiece) ValidateAuth(plugin.Connection) error { return nil }

func (l *LogPiece) Actions() []plugin.ActionDef {
	return []plugin.ActionDef{
		{
			Name:        "print",
			DisplayName: "Print",
			Description: "Write a message to the log",
			Input: map[string]types.FieldDef{
				"message": {Type: "string", Description: "Message to log", Required: true},
				"data":    {Type: "any", Description: "Structured value logged alongside the message", Required: false},
			},
			Output: map[string]types.FieldDef{
				"message": {Type: "string", Description: "The logged message"},
			},
		},
	}
}

func (l *LogPiece) Execute(_ context.Context, _ plugin.Connection, action string, input map[string]any) (*types.StepResult, error) {
	if action != "print" {
		return nil, fmt.Errorf("log piece: unknown action %q", action)
	}

	message := text(input["message"])
	if data, ok := input["data"]; ok {
		l.log.Infow(message, "data", data)
	} else {
		l.log.Info(message)
	}

	return &types.StepResult{
		Status: "success",
		Output: map[string]any{
			"message": message,
		},
	}, nil
}

// text renders structured values as JSON so a whole trigger or step
// output can be logged as-is.
func text(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case map[string]any, []any, json.RawMessage:
		if data, err := json.Marshal(val); err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}
