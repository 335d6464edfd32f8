package banking

import "fmt"

type listResponse[T any] struct {
	Count int `json:"count"`
	Data  []T `json:"data"`
}

// LiquidationAddress is an on-chain deposit address that the provider
// liquidates into the customer's external bank account.
type LiquidationAddress struct {
	ID                     string `json:"id"`
	State                  string `json:"state"`
	Chain                  string `json:"chain"`
	Currency               string `json:"currency"`
	Address                string `json:"address"`
	ExternalAccountID      string `json:"external_account_id"`
	DestinationCurrency    string `json:"destination_currency"`
	DestinationPaymentRail string `json:"destination_payment_rail"`
}

// LiquidationAddressCreateInput requests a new liquidation address.
type LiquidationAddressCreateInput struct {
	Chain                  string `json:"chain"`
	Currency               string `json:"currency"`
	ExternalAccountID      string `json:"external_account_id"`
	DestinationCurrency    string `json:"destination_currency"`
	DestinationPaymentRail string `json:"destination_payment_rail"`
}

// VirtualAccount is a fiat deposit account that on-ramps into crypto.
type VirtualAccount struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	DepositInstruction struct {
		BankName          string `json:"bank_name"`
		BankAccountNumber string `json:"bank_account_number"`
		BankRoutingNumber string `json:"bank_routing_number"`
		Currency          string `json:"currency"`
	} `json:"source_deposit_instructions"`
}

// ExternalAccount is a linked bank account.
type ExternalAccount struct {
	ID            string `json:"id"`
	AccountOwner  string `json:"account_owner_name"`
	BankName      string `json:"bank_name"`
	Active        bool   `json:"active"`
	Currency      string `json:"currency"`
	Last4         string `json:"last_4"`
	AccountType   string `json:"account_type"`
	RoutingNumber string `json:"routing_number"`
}

// APIError is a non-2xx provider response.
type APIError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("banking api: %s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}
