package banking

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateLiquidationAddress(t *testing.T) {
	input := LiquidationAddressCreateInput{
		Chain:                  "polygon",
		Currency:               "usdc",
		ExternalAccountID:      "ea_1",
		DestinationCurrency:    "usd",
		DestinationPaymentRail: "ach",
	}

	t.Run("reuses an active matching address", func(t *testing.T) {
		var posted bool
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "key_1", r.Header.Get("Api-Key"))
			assert.Equal(t, "/customers/cust_1/liquidation_addresses", r.URL.Path)
			if r.Method == http.MethodPost {
				posted = true
			}
			json.NewEncoder(w).Encode(listResponse[LiquidationAddress]{
				Count: 2,
				Data: []LiquidationAddress{
					{ID: "la_stale", State: "deactivated", ExternalAccountID: "ea_1", DestinationCurrency: "usd", DestinationPaymentRail: "ach"},
					{ID: "la_1", State: "active", Chain: "polygon", Address: "0xabc", ExternalAccountID: "ea_1", DestinationCurrency: "usd", DestinationPaymentRail: "ach"},
				},
			})
		}))
		defer server.Close()

		client := NewClient(server.URL, "key_1")
		address, err := client.FindOrCreateLiquidationAddress(context.Background(), "cust_1", input)

		require.NoError(t, err)
		assert.Equal(t, "la_1", address.ID)
		assert.Equal(t, "0xabc", address.Address)
		assert.False(t, posted)
	})

	t.Run("creates one when nothing matches", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				json.NewEncoder(w).Encode(listResponse[LiquidationAddress]{})
			case http.MethodPost:
				assert.NotEmpty(t, r.Header.Get("Idempotency-Key"))
				var got LiquidationAddressCreateInput
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				assert.Equal(t, input, got)
				json.NewEncoder(w).Encode(LiquidationAddress{
					ID: "la_new", State: "active", Chain: got.Chain, Address: "0xdef",
					ExternalAccountID: got.ExternalAccountID,
				})
			}
		}))
		defer server.Close()

		client := NewClient(server.URL, "key_1")
		address, err := client.FindOrCreateLiquidationAddress(context.Background(), "cust_1", input)

		require.NoError(t, err)
		assert.Equal(t, "la_new", address.ID)
		assert.Equal(t, "0xdef", address.Address)
	})

	t.Run("provider errors carry the status and body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte(`{"message":"upstream down"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "key_1")
		_, err := client.FindOrCreateLiquidationAddress(context.Background(), "cust_1", input)

		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusBadGateway, apiErr.Status)
		assert.Contains(t, apiErr.Body, "upstream down")
	})
}
