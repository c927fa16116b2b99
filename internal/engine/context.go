package engine

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
	"unicode"

	"github.com/jmespath/go-jmespath"

	"paypiece/internal/types"
)

var exprRegex = regexp.MustCompile(`\$\{\{\s*(.+?)\s*\}\}`)

// StepContext holds the state available during flow execution for variable resolution.
type StepContext struct {
	Trigger any
	Steps   map[string]*types.StepResult
	Env     map[string]string
}

// NewStepContext creates a StepContext for one trigger item.
func NewStepContext(trigger any) *StepContext {
	env := make(map[string]string)
	for _, e := range os.Environ() {
		if k, v, ok := strings.Cut(e, "="); ok {
			env[k] = v
		}
	}
	return &StepContext{
		Trigger: decodeRaw(trigger),
		Steps:   make(map[string]*types.StepResult),
		Env:     env,
	}
}

// AddStepResult records the result of a step for later reference.
func (sc *StepContext) AddStepResult(name string, result *types.StepResult) {
	sc.Steps[name] = result
}

// ResolveMap recursively resolves all expressions in a map.
func (sc *StepContext) ResolveMap(m map[string]any) (map[string]any, error) {
	result := make(map[string]any, len(m))
	for k, v := range m {
		resolved, err := sc.resolveValue(v)
		if err != nil {
			return nil, fmt.Errorf("resolving %q: %w", k, err)
		}
		result[k] = resolved
	}
	return result, nil
}

func (sc *StepContext) resolveValue(v any) (any, error) {
	switch val := v.(type) {
	case string:
		return sc.resolveString(val)
	case map[string]any:
		return sc.ResolveMap(val)
	case []any:
		resolved := make([]any, len(val))
		for i, item := range val {
			r, err := sc.resolveValue(item)
			if err != nil {
				return nil, err
			}
			resolved[i] = r
		}
		return resolved, nil
	default:
		return v, nil
	}
}

// resolveString replaces all ${{ ... }} expressions in a string.
func (sc *StepContext) resolveString(s string) (any, error) {
	// If the entire string is a single expression, return the raw value (preserving type).
	if match := exprRegex.FindStringSubmatch(s); match != nil && match[0] == s {
		return sc.evaluateExpr(match[1])
	}

	var evalErr error
	result := exprRegex.ReplaceAllStringFunc(s, func(match string) string {
		sub := exprRegex.FindStringSubmatch(match)
		val, err := sc.evaluateExpr(sub[1])
		if err != nil {
			evalErr = err
			return match
		}
		return stringify(val)
	})
	return result, evalErr
}

// evaluateExpr evaluates a single expression like "trigger.merchant_reference | upper".
func (sc *StepContext) evaluateExpr(expr string) (any, error) {
	parts := strings.SplitN(expr, "|", 2)
	path := strings.TrimSpace(parts[0])

	val, err := sc.resolvePath(path)
	if err != nil {
		return nil, err
	}

	if len(parts) == 2 {
		pipeFn := strings.TrimSpace(parts[1])
		val, err = applyPipe(val, pipeFn)
		if err != nil {
			return nil, err
		}
	}

	return val, nil
}

// resolvePath resolves a path like "trigger.data.id" or "steps.create-checkout.output.id".
// Everything after the root (and step name) is a JMESPath expression.
func (sc *StepContext) resolvePath(path string) (any, error) {
	root, rest, _ := strings.Cut(path, ".")

	switch root {
	case "trigger":
		if rest == "" {
			return sc.Trigger, nil
		}
		val, err := search(rest, sc.Trigger)
		if err != nil {
			return nil, err
		}
		if val == nil {
			// Missing trigger fields resolve to empty string (supports optional fields).
			return "", nil
		}
		return val, nil

	case "steps":
		stepName, field, ok := strings.Cut(rest, ".")
		if !ok || stepName == "" {
			return nil, fmt.Errorf("incomplete step reference: %q", path)
		}
		sr, exists := sc.Steps[stepName]
		if !exists {
			return nil, fmt.Errorf("step %q not found", stepName)
		}
		if field == "status" {
			return sr.Status, nil
		}
		outField, found := strings.CutPrefix(field, "output")
		if !found || (outField != "" && outField[0] != '.') {
			return nil, fmt.Errorf("invalid step reference: %q", path)
		}
		if sr.Output == nil {
			return nil, fmt.Errorf("step %q has no output", stepName)
		}
		output := decodeRaw(sr.Output)
		if outField == "" {
			return output, nil
		}
		val, err := search(outField[1:], output)
		if err != nil {
			return nil, err
		}
		if val == nil {
			return nil, fmt.Errorf("step %q output has no %q", stepName, outField[1:])
		}
		return val, nil

	case "env":
		if rest == "" {
			return nil, fmt.Errorf("incomplete env reference: %q", path)
		}
		return sc.Env[rest], nil

	default:
		return nil, fmt.Errorf("unknown variable root %q in %q", root, path)
	}
}

func search(expr string, doc any) (any, error) {
	val, err := jmespath.Search(expr, doc)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", expr, err)
	}
	return val, nil
}

// decodeRaw turns raw JSON (as produced by piece actions and webhook
// triggers) into plain values so expressions can index into it.
// Numbers are kept as json.Number.
func decodeRaw(v any) any {
	var data []byte
	switch raw := v.(type) {
	case json.RawMessage:
		data = raw
	case []byte:
		data = raw
	default:
		return v
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return string(data)
	}
	return out
}

func stringify(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any, []any:
		data, err := json.Marshal(val)
		if err == nil {
			return string(data)
		}
	}
	return fmt.Sprintf("%v", v)
}

func applyPipe(val any, fn string) (any, error) {
	s := stringify(val)
	switch fn {
	case "slugify":
		return slugify(s), nil
	case "upper":
		return strings.ToUpper(s), nil
	case "lower":
		return strings.ToLower(s), nil
	case "trim":
		return strings.TrimSpace(s), nil
	default:
		return nil, fmt.Errorf("unknown pipe function %q", fn)
	}
}

func slugify(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else if r == ' ' || r == '-' || r == '_' {
			b.WriteRune('-')
		}
	}
	// Collapse multiple dashes.
	result := b.String()
	for strings.Contains(result, "--") {
		result = strings.ReplaceAll(result, "--", "-")
	}
	return strings.Trim(result, "-")
}
