package plugin

import (
	"context"
	"net/http"

	"paypiece/internal/types"
)

// Connector defines the interface that all pieces must implement.
type Connector interface {
	// Name returns the piece identifier (e.g., "onlinepay", "log").
	Name() string

	// Meta returns display metadata for the piece.
	Meta() Meta

	// Auth returns the credential schema. A piece without credentials
	// returns an empty AuthDef.
	Auth() AuthDef

	// Actions returns available actions with their input/output schemas.
	Actions() []ActionDef

	// Triggers returns the flow entry points the piece provides.
	Triggers() []Trigger

	// ValidateAuth checks that a connection carries every required credential.
	// It must not perform any network calls.
	ValidateAuth(conn Connection) error

	// Execute runs a specific action with the given connection and input.
	Execute(ctx context.Context, conn Connection, action string, input map[string]any) (*types.StepResult, error)
}

// Trigger is a flow entry point activated by an external event.
type Trigger interface {
	Name() string
	Def() TriggerDef

	// OnEnable is called when a flow using the trigger is published.
	OnEnable(ctx context.Context, conn Connection) error

	// OnDisable is called when the flow is unpublished.
	OnDisable(ctx context.Context, conn Connection) error

	// Run turns one inbound delivery into the items the flow runs with.
	Run(ctx context.Context, conn Connection, payload Payload) ([]any, error)
}

// Connection is the resolved set of credentials for one piece,
// keyed by auth field name.
type Connection map[string]string

// Payload is an inbound webhook delivery as received by the host.
type Payload struct {
	Body    []byte
	Headers http.Header
	Query   map[string][]string
}

// Meta describes a piece for listings.
type Meta struct {
	DisplayName             string   `json:"display_name"`
	Description             string   `json:"description"`
	LogoURL                 string   `json:"logo_url,omitempty"`
	Authors                 []string `json:"authors,omitempty"`
	MinimumSupportedRelease string   `json:"minimum_supported_release,omitempty"`
}

// AuthDef describes the credential fields a piece needs.
type AuthDef struct {
	Description string       `json:"description,omitempty"`
	Fields      []NamedField `json:"fields,omitempty"`
}

// NamedField keeps schema order stable for display.
type NamedField struct {
	Name string `json:"name"`
	types.FieldDef
}

// ActionDef describes an action a piece supports.
type ActionDef struct {
	Name        string                    `json:"name"`
	DisplayName string                    `json:"display_name"`
	Description string                    `json:"description"`
	Input       map[string]types.FieldDef `json:"input,omitempty"`
	Output      map[string]types.FieldDef `json:"output,omitempty"`
}

// TriggerStrategy says how a trigger receives events.
type TriggerStrategy string

const (
	StrategyWebhook TriggerStrategy = "WEBHOOK"
	StrategyPolling TriggerStrategy = "POLLING"
)

// TriggerDef describes a trigger for listings and flow validation.
type TriggerDef struct {
	Name         string          `json:"name"`
	DisplayName  string          `json:"display_name"`
	Description  string          `json:"description"`
	Strategy     TriggerStrategy `json:"strategy"`
	Instructions string          `json:"instructions,omitempty"`
	SampleData   map[string]any  `json:"sample_data,omitempty"`
}

// FindAction returns the named action definition of c.
func FindAction(c Connector, name string) (ActionDef, bool) {
	for _, a := range c.Actions() {
		if a.Name == name {
			return a, true
		}
	}
	return ActionDef{}, false
}

// FindTrigger returns the named trigger of c.
func FindTrigger(c Connector, name string) (Trigger, bool) {
	for _, t := range c.Triggers() {
		if t.Name() == name {
			return t, true
		}
	}
	return nil, false
}
