package loader

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"paypiece/internal/types"
)

// LoadFlow reads and parses a single YAML flow file.
func LoadFlow(path string) (*types.FlowDef, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flow file %s: %w", path, err)
	}

	flow, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("flow file %s: %w", path, err)
	}
	return flow, nil
}

// Parse decodes one flow document. Unknown keys are rejected so a
// misspelt field fails loudly instead of being ignored.
func Parse(data []byte) (*types.FlowDef, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var flow types.FlowDef
	if err := dec.Decode(&flow); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty flow document")
		}
		return nil, fmt.Errorf("parsing: %w", err)
	}

	if flow.Name == "" {
		return nil, errors.New("missing required field 'name'")
	}
	if len(flow.Steps) == 0 {
		return nil, errors.New("must have at least one step")
	}

	return &flow, nil
}

// LoadFlows reads all YAML flow files from a directory, recursively.
// Flow names and webhook paths must be unique across the directory.
func LoadFlows(dir string) (map[string]*types.FlowDef, error) {
	flows := make(map[string]*types.FlowDef)
	paths := make(map[string]string)

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		flow, err := LoadFlow(path)
		if err != nil {
			return err
		}

		if _, exists := flows[flow.Name]; exists {
			return fmt.Errorf("duplicate flow name %q in %s", flow.Name, path)
		}
		if hook := flow.WebhookPath(); hook != "" {
			if other, taken := paths[hook]; taken {
				return fmt.Errorf("flow %q in %s: webhook path %s already used by flow %q", flow.Name, path, hook, other)
			}
			paths[hook] = flow.Name
		}
		flows[flow.Name] = flow
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading flows from %s: %w", dir, err)
	}

	return flows, nil
}

// Names returns the flow names in sorted order.
func Names(flows map[string]*types.FlowDef) []string {
	names := make([]string, 0, len(flows))
	for name := range flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
