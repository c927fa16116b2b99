package onlinepay

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

// Action names.
const (
	ActionGetCheckout    = "get_checkout"
	ActionCreateCheckout = "create_checkout"
	ActionGetCustomer    = "get_customer"
	ActionCreateCustomer = "create_customer"
)

// Piece exposes the OnlinePay API as flow actions and a webhook trigger.
type Piece struct {
	log     *zap.SugaredLogger
	opts    []Option
	webhook *WebhookTrigger
}

// NewPiece returns the OnlinePay piece. opts are applied to the client
// built for every action invocation.
func NewPiece(log *zap.SugaredLogger, opts ...Option) *Piece {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Piece{
		log:     log,
		opts:    append([]Option{WithLogger(log)}, opts...),
		webhook: NewWebhookTrigger(log),
	}
}

func (p *Piece) Name() string { return "onlinepay" }

func (p *Piece) Meta() plugin.Meta {
	return plugin.Meta{
		DisplayName:             "OnlinePay",
		Description:             "Checkouts and customers on the OnlinePay payment platform",
		LogoURL:                 "https://cdn.activepieces.com/pieces/onlinepay.png",
		Authors:                 []string{"mrvautin"},
		MinimumSupportedRelease: "0.36.1",
	}
}

func (p *Piece) Auth() plugin.AuthDef { return authDef() }

func (p *Piece) Triggers() []plugin.Trigger { return []plugin.Trigger{p.webhook} }

func (p *Piece) ValidateAuth(conn plugin.Connection) error {
	return CredentialsFromConnection(conn).Validate()
}

func (p *Piece) Actions() []plugin.ActionDef {
	str := func(display string, required bool) types.FieldDef {
		return types.FieldDef{Type: "string", DisplayName: display, Required: required}
	}
	body := map[string]types.FieldDef{
		"body": {Type: "object", Description: "Response body returned by OnlinePay"},
	}

	return []plugin.ActionDef{
		{
			Name:        ActionGetCheckout,
			DisplayName: "Get Checkout by ID",
			Description: "Fetches a Checkout by its ID",
			Input:       map[string]types.FieldDef{"id": str("Checkout ID", true)},
			Output:      body,
		},
		{
			Name:        ActionCreateCheckout,
			DisplayName: "Create a new Checkout",
			Description: "Creates a new OnlinePay Checkout",
			Input: map[string]types.FieldDef{
				"merchant_reference": str("Merchant Reference", true),
				"amount":             {Type: "number", DisplayName: "Amount", Required: true},
				"customer":           str("Customer ID", true),
			},
			Output: body,
		},
		{
			Name:        ActionGetCustomer,
			DisplayName: "Get Customer by ID",
			Description: "Fetches a Customer by its ID",
			Input:       map[string]types.FieldDef{"id": str("Customer ID", true)},
			Output:      body,
		},
		{
			Name:        ActionCreateCustomer,
			DisplayName: "Create new customer",
			Description: "Creates a new OnlinePay customer",
			Input: map[string]types.FieldDef{
				"email_address":      str("Email address", true),
				"phone_number":       str("Phone number", true),
				"billing_first_name": str("Billing First Name", true),
				"billing_last_name":  str("Billing Last Name", true),
				"address_1":          str("Billing Address 1", true),
				"address_2":          str("Billing Address 2", false),
				"city":               str("Billing City", true),
				"postal_code":        str("Billing Postal Code", true),
				"country_code":       str("Country code", true),
			},
			Output: body,
		},
	}
}

func (p *Piece) Execute(ctx context.Context, conn plugin.Connection, action string, input map[string]any) (*types.StepResult, error) {
	client, err := NewClient(CredentialsFromConnection(conn), p.opts...)
	if err != nil {
		return nil, err
	}

	var body []byte
	switch action {
	case ActionGetCheckout:
		body, err = client.GetCheckout(ctx, stringInput(input, "id"))

	case ActionCreateCheckout:
		amount, aerr := amountInput(input, "amount")
		if aerr != nil {
			return nil, aerr
		}
		body, err = client.CreateCheckout(ctx, CheckoutRequest{
			MerchantReference: stringInput(input, "merchant_reference"),
			Amount:            amount,
			Customer:          stringInput(input, "customer"),
		})

	case ActionGetCustomer:
		body, err = client.GetCustomer(ctx, stringInput(input, "id"))

	case ActionCreateCustomer:
		body, err = client.CreateCustomer(ctx, CustomerRequest{
			EmailAddress: stringInput(input, "email_address"),
			PhoneNumber:  stringInput(input, "phone_number"),
			Billing: Billing{
				FirstName:   stringInput(input, "billing_first_name"),
				LastName:    stringInput(input, "billing_last_name"),
				Address1:    stringInput(input, "address_1"),
				Address2:    stringInput(input, "address_2"),
				City:        stringInput(input, "city"),
				PostalCode:  stringInput(input, "postal_code"),
				CountryCode: stringInput(input, "country_code"),
			},
		})

	default:
		return nil, fmt.Errorf("onlinepay: unknown action %q", action)
	}
	if err != nil {
		return nil, err
	}

	return &types.StepResult{
		Status: "success",
		Output: RawOutput(body),
	}, nil
}

// RawOutput wraps an upstream body so it serialises unchanged: valid JSON
// stays a json.RawMessage, anything else becomes a string.
func RawOutput(body []byte) any {
	if json.Valid(body) {
		return json.RawMessage(body)
	}
	return string(body)
}

func stringInput(input map[string]any, key string) string {
	v, ok := input[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func amountInput(input map[string]any, key string) (decimal.Decimal, error) {
	v, ok := input[key]
	if !ok || v == nil {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalidInput, key)
	}

	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case json.Number:
		return parseAmount(key, n.String())
	case string:
		return parseAmount(key, n)
	default:
		return decimal.Zero, fmt.Errorf("%w: %s must be a number, got %T", ErrInvalidInput, key, v)
	}
}

func parseAmount(key, s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("%w: %s is required", ErrInvalidInput, key)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s must be a number: %v", ErrInvalidInput, key, err)
	}
	return d, nil
}
