package types

import "time"

// FlowDef represents a parsed YAML flow definition.
type FlowDef struct {
	Name        string            `yaml:"name" json:"name"`
	Version     string            `yaml:"version" json:"version"`
	Description string            `yaml:"description" json:"description"`
	Trigger     *TriggerRef       `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	Steps       []StepDef         `yaml:"steps" json:"steps"`
	Metadata    map[string]string `yaml:"metadata,omitempty" json:"metadata,omitempty"`
}

// TriggerRef points a flow at a piece trigger. Path is the webhook route
// the server mounts for the flow.
type TriggerRef struct {
	Piece string `yaml:"piece" json:"piece"`
	Name  string `yaml:"name" json:"name"`
	Path  string `yaml:"path,omitempty" json:"path,omitempty"`
}

// WebhookPath returns the route a webhook delivery for flow should be posted to.
func (f *FlowDef) WebhookPath() string {
	if f.Trigger == nil {
		return ""
	}
	if f.Trigger.Path != "" {
		return f.Trigger.Path
	}
	return "/webhooks/" + f.Name
}

// FieldDef describes a single property of an auth schema or action input.
type FieldDef struct {
	Type        string   `yaml:"type" json:"type"`
	DisplayName string   `yaml:"display_name,omitempty" json:"display_name,omitempty"`
	Description string   `yaml:"description" json:"description"`
	Required    bool     `yaml:"required" json:"required"`
	Secret      bool     `yaml:"secret,omitempty" json:"secret,omitempty"`
	Default     string   `yaml:"default,omitempty" json:"default,omitempty"`
	Options     []Option `yaml:"options,omitempty" json:"options,omitempty"`
}

// Option is one entry of a static dropdown.
type Option struct {
	Label string `yaml:"label" json:"label"`
	Value string `yaml:"value" json:"value"`
}

// StepDef represents a single step in a flow.
type StepDef struct {
	Name    string         `yaml:"name" json:"name"`
	Piece   string         `yaml:"piece" json:"piece"`
	Action  string         `yaml:"action" json:"action"`
	Input   map[string]any `yaml:"input" json:"input"`
	OnError string         `yaml:"on_error" json:"on_error"`
}

// StepResult holds the result of executing a single step. Output is whatever
// the action produced; piece actions that proxy an upstream API return the
// raw response body as a json.RawMessage.
type StepResult struct {
	Name       string `json:"name"`
	Piece      string `json:"piece"`
	Action     string `json:"action"`
	Status     string `json:"status"`
	Output     any    `json:"output,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms"`
}

// FlowResult holds the result of an entire flow execution.
type FlowResult struct {
	Flow        string       `json:"flow"`
	Status      string       `json:"status"`
	StartedAt   time.Time    `json:"started_at"`
	CompletedAt time.Time    `json:"completed_at"`
	Trigger     any          `json:"trigger,omitempty"`
	Steps       []StepResult `json:"steps"`
	Error       string       `json:"error,omitempty"`
}
