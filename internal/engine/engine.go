package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"paypiece/internal/metrics"
	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

// Engine executes flow definitions.
type Engine struct {
	Registry *plugin.Registry
	Log      *zap.SugaredLogger
}

// NewEngine creates a new flow execution engine.
func NewEngine(registry *plugin.Registry, log *zap.SugaredLogger) *Engine {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Engine{Registry: registry, Log: log}
}

// Run executes a flow for one trigger item.
func (e *Engine) Run(ctx context.Context, flow *types.FlowDef, trigger any) (*types.FlowResult, error) {
	if err := ValidateFlow(flow, e.Registry); err != nil {
		return nil, err
	}

	result := &types.FlowResult{
		Flow:      flow.Name,
		Status:    "success",
		StartedAt: time.Now().UTC(),
		Trigger:   trigger,
		Steps:     make([]types.StepResult, 0, len(flow.Steps)),
	}

	sctx := NewStepContext(trigger)
	log := e.Log.With("flow", flow.Name)

	for _, step := range flow.Steps {
		sr := e.executeStep(ctx, step, sctx)
		result.Steps = append(result.Steps, sr)
		sctx.AddStepResult(step.Name, &sr)

		if sr.Status == "failed" || sr.Status == "error" {
			log.Warnw("step failed", "step", step.Name, "err", sr.Error)

			onError := step.OnError
			if onError == "" {
				onError = "abort"
			}

			switch onError {
			case "abort":
				result.Status = "failed"
				result.Error = fmt.Sprintf("step %q failed: %s", step.Name, sr.Error)
				result.CompletedAt = time.Now().UTC()
				return result, nil
			case "continue":
				result.Status = "partial"
			case "skip":
				// Just skip, don't affect overall status.
			}
		}
	}

	result.CompletedAt = time.Now().UTC()
	log.Infow("flow finished", "status", result.Status, "steps", len(result.Steps))
	return result, nil
}

// DryRun validates and resolves step inputs without executing any action.
func (e *Engine) DryRun(flow *types.FlowDef, trigger any) (*types.FlowResult, error) {
	if err := ValidateFlow(flow, e.Registry); err != nil {
		return nil, err
	}

	result := &types.FlowResult{
		Flow:      flow.Name,
		Status:    "dry_run",
		StartedAt: time.Now().UTC(),
		Trigger:   trigger,
		Steps:     make([]types.StepResult, 0, len(flow.Steps)),
	}

	sctx := NewStepContext(trigger)

	for _, step := range flow.Steps {
		resolvedInput, err := sctx.ResolveMap(step.Input)

		sr := types.StepResult{
			Name:   step.Name,
			Piece:  step.Piece,
			Action: step.Action,
			Status: "dry_run",
		}

		if err != nil {
			sr.Status = "resolve_error"
			sr.Error = err.Error()
		} else {
			sr.Output = resolvedInput // Show what would be sent.
		}

		result.Steps = append(result.Steps, sr)
		// For dry-run, add a synthetic step result so later steps can reference it.
		sctx.AddStepResult(step.Name, &types.StepResult{
			Status: "dry_run",
			Output: map[string]any{"_dry_run": true},
		})
	}

	result.CompletedAt = time.Now().UTC()
	return result, nil
}

// Execute runs a single piece action with the registry's connection for
// that piece. Credentials and required inputs are checked before the
// piece is called.
func (e *Engine) Execute(ctx context.Context, piece, action string, input map[string]any) (*types.StepResult, error) {
	start := time.Now()
	outcome := "error"
	defer func() {
		metrics.ObserveAction(piece, action, outcome, time.Since(start))
	}()

	c, ok := e.Registry.Get(piece)
	if !ok {
		return nil, fmt.Errorf("piece %q not found", piece)
	}
	def, ok := plugin.FindAction(c, action)
	if !ok {
		return nil, fmt.Errorf("piece %q does not support action %q", piece, action)
	}

	conn := e.Registry.Connection(piece)
	if err := c.ValidateAuth(conn); err != nil {
		outcome = "invalid"
		return nil, err
	}
	if err := ValidateActionInput(def, input); err != nil {
		outcome = "invalid"
		return nil, err
	}

	res, err := c.Execute(ctx, conn, action, input)
	if err != nil {
		return nil, err
	}
	outcome = res.Status

	e.Log.Debugw("action executed", "piece", piece, "action", action, "status", res.Status, "duration", time.Since(start))
	return res, nil
}

func (e *Engine) executeStep(ctx context.Context, step types.StepDef, sctx *StepContext) (sr types.StepResult) {
	sr = types.StepResult{
		Name:   step.Name,
		Piece:  step.Piece,
		Action: step.Action,
	}

	start := time.Now()
	defer func() {
		sr.DurationMs = time.Since(start).Milliseconds()
	}()

	resolvedInput, err := sctx.ResolveMap(step.Input)
	if err != nil {
		sr.Status = "error"
		sr.Error = fmt.Sprintf("resolving input: %v", err)
		return sr
	}

	stepResult, err := e.Execute(ctx, step.Piece, step.Action, resolvedInput)
	if err != nil {
		sr.Status = "error"
		sr.Error = err.Error()
		return sr
	}

	sr.Status = stepResult.Status
	sr.Output = stepResult.Output
	sr.Error = stepResult.Error
	return sr
}
