// Package banking is the HTTP client for the crypto-banking provider that
// issues liquidation addresses and virtual accounts for sellers.
package banking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Client talks to the banking provider's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" || apiKey == "" {
		panic("banking base url and api key are required")
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("banking api: encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("banking api: %s %s: %w", method, path, err)
	}
	req.Header.Set("Api-Key", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if method == http.MethodPost {
		// Write calls carry a fresh idempotency key so provider-side retries
		// never duplicate resources.
		req.Header.Set("Idempotency-Key", uuid.NewString())
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("banking api: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Method: method, Path: path, Status: resp.StatusCode, Body: string(payload)}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("banking api: decode %s %s: %w", method, path, err)
	}
	return nil
}

// ListLiquidationAddresses returns every liquidation address issued to a
// customer.
func (c *Client) ListLiquidationAddresses(ctx context.Context, customerID string) ([]LiquidationAddress, error) {
	var out listResponse[LiquidationAddress]
	path := fmt.Sprintf("/customers/%s/liquidation_addresses", customerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// FindOrCreateLiquidationAddress returns the active liquidation address
// matching the external account, currency and rail, creating one when the
// customer has none.
func (c *Client) FindOrCreateLiquidationAddress(ctx context.Context, customerID string, in LiquidationAddressCreateInput) (*LiquidationAddress, error) {
	existing, err := c.ListLiquidationAddresses(ctx, customerID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		la := &existing[i]
		if la.State == "active" &&
			la.ExternalAccountID == in.ExternalAccountID &&
			la.DestinationCurrency == in.DestinationCurrency &&
			la.DestinationPaymentRail == in.DestinationPaymentRail {
			return la, nil
		}
	}
	var created LiquidationAddress
	path := fmt.Sprintf("/customers/%s/liquidation_addresses", customerID)
	if err := c.do(ctx, http.MethodPost, path, in, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// ListVirtualAccounts returns the customer's virtual deposit accounts.
func (c *Client) ListVirtualAccounts(ctx context.Context, customerID string) ([]VirtualAccount, error) {
	var out listResponse[VirtualAccount]
	path := fmt.Sprintf("/customers/%s/virtual_accounts", customerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// ListExternalAccounts returns the bank accounts linked to a customer.
func (c *Client) ListExternalAccounts(ctx context.Context, customerID string) ([]ExternalAccount, error) {
	var out listResponse[ExternalAccount]
	path := fmt.Sprintf("/customers/%s/external_accounts", customerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}
