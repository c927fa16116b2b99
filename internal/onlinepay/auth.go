package onlinepay

import (
	"encoding/base64"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"paypiece/internal/plugin"
	"paypiece/internal/types"
)

// Environment base URLs offered by the connection dropdown.
const (
	ProductionURL = "https://au.gsc.verifone.cloud"
	CSTURL        = "https://cst2.test-gsc.vfims.com"
)

// DefaultCurrency is used when the connection carries no currency code.
const DefaultCurrency = "AUD"

// Connection field names.
const (
	FieldUserID          = "userId"
	FieldAPIKey          = "apiKey"
	FieldOrgID           = "orgId"
	FieldPaymentContract = "paymentContract"
	FieldThreeDSecure    = "threeDSecure"
	FieldCurrencyCode    = "currencyCode"
	FieldEnvironment     = "environment"
)

var (
	ErrInvalidCredentials = errors.New("onlinepay: invalid credentials")
	ErrInvalidInput       = errors.New("onlinepay: invalid input")
)

// Credentials are the static values every request is made with.
type Credentials struct {
	UserID                 string `conn:"userId" validate:"required"`
	APIKey                 string `conn:"apiKey" validate:"required"`
	OrgID                  string `conn:"orgId" validate:"required"`
	PaymentContractID      string `conn:"paymentContract" validate:"required"`
	ThreeDSecureContractID string `conn:"threeDSecure" validate:"required"`
	CurrencyCode           string `conn:"currencyCode" validate:"omitempty,len=3"`
	Environment            string `conn:"environment" validate:"required,url"`
}

// CredentialsFromConnection reads credentials out of a host connection.
// A missing currency code falls back to DefaultCurrency and environment
// aliases are expanded.
func CredentialsFromConnection(conn plugin.Connection) Credentials {
	creds := Credentials{
		UserID:                 conn[FieldUserID],
		APIKey:                 conn[FieldAPIKey],
		OrgID:                  conn[FieldOrgID],
		PaymentContractID:      conn[FieldPaymentContract],
		ThreeDSecureContractID: conn[FieldThreeDSecure],
		CurrencyCode:           conn[FieldCurrencyCode],
		Environment:            ResolveEnvironment(conn[FieldEnvironment]),
	}
	if creds.CurrencyCode == "" {
		creds.CurrencyCode = DefaultCurrency
	}
	return creds
}

// Validate reports every missing or malformed credential at once.
func (c Credentials) Validate() error {
	if err := validate.Struct(c); err != nil {
		return describe(ErrInvalidCredentials, err)
	}
	return nil
}

// BasicAuth returns the Authorization header value for the credentials.
func (c Credentials) BasicAuth() string {
	token := base64.StdEncoding.EncodeToString([]byte(c.UserID + ":" + c.APIKey))
	return "Basic " + token
}

func (c Credentials) currency() string {
	if c.CurrencyCode != "" {
		return c.CurrencyCode
	}
	return DefaultCurrency
}

// ResolveEnvironment maps the short names "production" and "cst" to their
// base URLs. Anything else is taken as a base URL.
func ResolveEnvironment(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "production", "prod":
		return ProductionURL
	case "cst", "test":
		return CSTURL
	}
	return strings.TrimRight(strings.TrimSpace(env), "/")
}

func authDef() plugin.AuthDef {
	text := func(name, display, desc string) plugin.NamedField {
		return plugin.NamedField{Name: name, FieldDef: types.FieldDef{
			Type: "string", DisplayName: display, Description: desc, Required: true,
		}}
	}

	apiKey := text(FieldAPIKey, "API key", "API key obtained from OnlinePay Dashboard")
	apiKey.Secret = true

	currency := text(FieldCurrencyCode, "Currency code", "3 character currency code. E.g. AUD, USD, NZD, EUR")
	currency.Default = DefaultCurrency

	env := text(FieldEnvironment, "OnlinePay Environment", "Which OnlinePay environment to connect to")
	env.Type = "dropdown"
	env.Options = []types.Option{
		{Label: "Production", Value: ProductionURL},
		{Label: "CST", Value: CSTURL},
	}

	return plugin.AuthDef{
		Description: "Enter custom authentication details",
		Fields: []plugin.NamedField{
			text(FieldUserID, "User ID", "User ID obtained from OnlinePay Dashboard"),
			apiKey,
			text(FieldOrgID, "Organisation ID", "Organisation ID obtained from OnlinePay Dashboard"),
			text(FieldPaymentContract, "Payment Contract ID", "Payment Contract ID obtained from OnlinePay Dashboard"),
			text(FieldThreeDSecure, "3D Secure Contract ID", "3D Secure Contract ID obtained from OnlinePay Dashboard"),
			currency,
			env,
		},
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		if name := f.Tag.Get("conn"); name != "" {
			return name
		}
		if name, _, _ := strings.Cut(f.Tag.Get("json"), ","); name != "" && name != "-" {
			return name
		}
		return f.Name
	})
	return v
}

func describe(sentinel, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", sentinel, err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "len":
			msgs = append(msgs, fmt.Sprintf("%s must be %s characters", fe.Field(), fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is not a valid %s", fe.Field(), fe.Tag()))
		}
	}
	return fmt.Errorf("%w: %s", sentinel, strings.Join(msgs, "; "))
}
