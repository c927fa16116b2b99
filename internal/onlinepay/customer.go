package onlinepay

import (
	"context"
	"fmt"
	"net/http"
)

const customerPath = "/oidc/customer-service/v2/customer"

// CustomerRequest holds the fields of a new customer.
type CustomerRequest struct {
	EmailAddress string  `json:"email_address" validate:"required"`
	PhoneNumber  string  `json:"phone_number" validate:"required"`
	Billing      Billing `json:"billing"`
}

// Billing is the customer's billing name and address. Address2 is left
// out of the request entirely when empty.
type Billing struct {
	FirstName   string `json:"first_name" validate:"required"`
	LastName    string `json:"last_name" validate:"required"`
	Address1    string `json:"address_1" validate:"required"`
	Address2    string `json:"address_2,omitempty"`
	City        string `json:"city" validate:"required"`
	PostalCode  string `json:"postal_code" validate:"required"`
	CountryCode string `json:"country_code" validate:"required"`
}

type customerBody struct {
	EntityID     string  `json:"entity_id"`
	Billing      Billing `json:"billing"`
	EmailAddress string  `json:"email_address"`
	PhoneNumber  string  `json:"phone_number"`
}

// GetCustomer fetches a customer by id and returns the response body as-is.
func (c *Client) GetCustomer(ctx context.Context, id string) ([]byte, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidInput)
	}
	return c.do(ctx, http.MethodGet, customerPath+"/"+id, nil)
}

// CreateCustomer registers a customer under the connection's organisation.
func (c *Client) CreateCustomer(ctx context.Context, req CustomerRequest) ([]byte, error) {
	if err := validate.Struct(req); err != nil {
		return nil, describe(ErrInvalidInput, err)
	}
	return c.do(ctx, http.MethodPost, customerPath, customerBody{
		EntityID:     c.creds.OrgID,
		Billing:      req.Billing,
		EmailAddress: req.EmailAddress,
		PhoneNumber:  req.PhoneNumber,
	})
}
