package engine

import (
	"fmt"
	"sort"
	"strings"

	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

// ValidationError collects multiple validation issues.
type ValidationError struct {
	Errors []string
}

func (ve *ValidationError) Error() string {
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(ve.Errors, "\n  - "))
}

func (ve *ValidationError) Add(msg string) {
	ve.Errors = append(ve.Errors, msg)
}

func (ve *ValidationError) HasErrors() bool {
	return len(ve.Errors) > 0
}

// ValidateFlow validates a flow definition against the registry and internal consistency.
func ValidateFlow(flow *types.FlowDef, registry *plugin.Registry) error {
	ve := &ValidationError{}

	if flow.Name == "" {
		ve.Add("flow 'name' is required")
	}
	if len(flow.Steps) == 0 {
		ve.Add("flow must have at least one step")
	}

	if t := flow.Trigger; t != nil {
		if t.Piece == "" || t.Name == "" {
			ve.Add("trigger requires 'piece' and 'name'")
		} else if _, ok := registry.Trigger(t.Piece, t.Name); !ok {
			ve.Add(fmt.Sprintf("trigger %q not found on piece %q", t.Name, t.Piece))
		}
		if t.Path != "" && !strings.HasPrefix(t.Path, "/") {
			ve.Add(fmt.Sprintf("trigger path %q must start with '/'", t.Path))
		}
	}

	stepNames := make(map[string]int)
	for i, step := range flow.Steps {
		if step.Name == "" {
			ve.Add(fmt.Sprintf("step %d: 'name' is required", i+1))
			continue
		}
		if prev, exists := stepNames[step.Name]; exists {
			ve.Add(fmt.Sprintf("step %d: duplicate step name %q (first at step %d)", i+1, step.Name, prev+1))
		}
		stepNames[step.Name] = i

		if step.Piece == "" {
			ve.Add(fmt.Sprintf("step %q: 'piece' is required", step.Name))
		} else if c, ok := registry.Get(step.Piece); !ok {
			ve.Add(fmt.Sprintf("step %q: piece %q not found in registry", step.Name, step.Piece))
		} else if step.Action == "" {
			ve.Add(fmt.Sprintf("step %q: 'action' is required", step.Name))
		} else if _, ok := plugin.FindAction(c, step.Action); !ok {
			ve.Add(fmt.Sprintf("step %q: piece %q does not support action %q", step.Name, step.Piece, step.Action))
		}

		switch step.OnError {
		case "", "abort", "continue", "skip":
			// valid
		default:
			ve.Add(fmt.Sprintf("step %q: invalid on_error value %q (must be abort, continue, or skip)", step.Name, step.OnError))
		}

		// Validate step references point to previous steps.
		if step.Input != nil {
			validateStepRefs(step.Input, stepNames, step.Name, i, ve)
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

// ValidateActionInput checks that every required action input is present
// and not an empty string.
func ValidateActionInput(def plugin.ActionDef, input map[string]any) error {
	ve := &ValidationError{}

	names := make([]string, 0, len(def.Input))
	for name := range def.Input {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !def.Input[name].Required {
			continue
		}
		v, ok := input[name]
		if s, isString := v.(string); !ok || v == nil || (isString && s == "") {
			ve.Add(fmt.Sprintf("required input field %q is missing", name))
		}
	}

	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateStepRefs(input map[string]any, stepNames map[string]int, currentStep string, currentIndex int, ve *ValidationError) {
	for _, v := range input {
		switch val := v.(type) {
		case string:
			checkStringRefs(val, stepNames, currentStep, currentIndex, ve)
		case map[string]any:
			validateStepRefs(val, stepNames, currentStep, currentIndex, ve)
		case []any:
			for _, item := range val {
				if s, ok := item.(string); ok {
					checkStringRefs(s, stepNames, currentStep, currentIndex, ve)
				}
			}
		}
	}
}

func checkStringRefs(s string, stepNames map[string]int, currentStep string, currentIndex int, ve *ValidationError) {
	matches := exprRegex.FindAllStringSubmatch(s, -1)
	for _, match := range matches {
		expr := strings.TrimSpace(match[1])
		path := strings.SplitN(expr, "|", 2)[0]
		path = strings.TrimSpace(path)

		if !strings.HasPrefix(path, "steps.") {
			continue
		}

		// Extract step name from "steps.step-name.output.field"
		rest := strings.TrimPrefix(path, "steps.")
		parts := strings.SplitN(rest, ".", 2)
		refName := parts[0]

		idx, exists := stepNames[refName]
		if !exists {
			ve.Add(fmt.Sprintf("step %q: references unknown step %q", currentStep, refName))
		} else if idx >= currentIndex {
			ve.Add(fmt.Sprintf("step %q: references step %q which has not executed yet", currentStep, refName))
		}
	}
}
