package onlinepay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"
)

// Fixed checkout policy values.
const (
	InteractionTypeHPP          = "HPP"
	ShopperInteractionEcommerce = "ECOMMERCE"
	SCAComplianceNone           = "NONE"
	SCAComplianceWallet         = "WALLET"
	ThreeDSTransactionModeP     = "P"
)

const checkoutPath = "/oidc/checkout-service/v2/checkout"

// CheckoutRequest holds the user supplied fields of a new checkout.
type CheckoutRequest struct {
	MerchantReference string          `json:"merchant_reference" validate:"required"`
	Amount            decimal.Decimal `json:"amount" validate:"-"`
	Customer          string          `json:"customer" validate:"required"`
}

type checkoutBody struct {
	EntityID          string         `json:"entity_id"`
	Amount            json.Number    `json:"amount"`
	CurrencyCode      string         `json:"currency_code"`
	MerchantReference string         `json:"merchant_reference"`
	InteractionType   string         `json:"interaction_type"`
	Customer          string         `json:"customer"`
	Configurations    configurations `json:"configurations"`
}

type configurations struct {
	Card      cardConfig   `json:"card"`
	ApplePay  walletConfig `json:"apple_pay"`
	GooglePay walletConfig `json:"google_pay"`
}

type walletConfig struct {
	Card cardConfig `json:"card"`
}

type cardConfig struct {
	ThreeDSecure       *threeDSecure `json:"threed_secure,omitempty"`
	SCAComplianceLevel string        `json:"sca_compliance_level,omitempty"`
	ShopperInteraction string        `json:"shopper_interaction"`
	PaymentContractID  string        `json:"payment_contract_id"`
}

type threeDSecure struct {
	ContractID      string `json:"threeds_contract_id"`
	Enabled         bool   `json:"enabled,omitempty"`
	TransactionMode string `json:"transaction_mode,omitempty"`
}

// cardConfig fills the contract ids shared by every payment method.
// A nil tds leaves 3-D Secure out of the block.
func (c Credentials) cardConfig(sca string, tds *threeDSecure) cardConfig {
	if tds != nil {
		tds.ContractID = c.ThreeDSecureContractID
	}
	return cardConfig{
		ThreeDSecure:       tds,
		SCAComplianceLevel: sca,
		ShopperInteraction: ShopperInteractionEcommerce,
		PaymentContractID:  c.PaymentContractID,
	}
}

func buildConfigurations(c Credentials) configurations {
	return configurations{
		Card:      c.cardConfig("", &threeDSecure{Enabled: true}),
		ApplePay:  walletConfig{Card: c.cardConfig(SCAComplianceNone, nil)},
		GooglePay: walletConfig{Card: c.cardConfig(SCAComplianceWallet, &threeDSecure{TransactionMode: ThreeDSTransactionModeP})},
	}
}

func newCheckoutBody(c Credentials, req CheckoutRequest) checkoutBody {
	return checkoutBody{
		EntityID:          c.OrgID,
		Amount:            json.Number(req.Amount.String()),
		CurrencyCode:      c.currency(),
		MerchantReference: req.MerchantReference,
		InteractionType:   InteractionTypeHPP,
		Customer:          req.Customer,
		Configurations:    buildConfigurations(c),
	}
}

// GetCheckout fetches a checkout by id and returns the response body as-is.
func (c *Client) GetCheckout(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return c.do(ctx, http.MethodGet, checkoutPath+"/"+id, nil)
}

// CreateCheckout creates a hosted payment page checkout.
func (c *Client) CreateCheckout(ctx context.Context, req CheckoutRequest) ([]byte, error) {
	if err := validate.Struct(req); err != nil {
		return nil, describe(ErrInvalidInput, err)
	}
	return c.do(ctx, http.MethodPost, checkoutPath, newCheckoutBody(c.creds, req))
}
