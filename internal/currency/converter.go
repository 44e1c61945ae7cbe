// Package currency wraps the external exchange-rate and country-directory
// APIs the application consumes. Conversion failures are propagated to the
// caller, never retried here.
package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Converter converts an amount between two currency codes.
type Converter interface {
	Convert(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error)
}

// Client calls the exchangerate-api.com v4 latest-rates endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Rates map[string]float64 `json:"rates"`
}

// Convert fetches the latest rates for the source currency and applies the
// target rate. Identical currency codes short-circuit without a network call.
func (c *Client) Convert(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)
	if from == to {
		return amount, nil
	}

	url := fmt.Sprintf("%s/latest/%s", c.baseURL, from)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build rate request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to fetch exchange rates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("exchange rate API returned status %d", resp.StatusCode)
	}

	var rates ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&rates); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode exchange rates: %w", err)
	}

	rate, ok := rates.Rates[to]
	if !ok {
		return decimal.Zero, fmt.Errorf("cannot convert from %s to %s: rate not available", from, to)
	}

	return amount.Mul(decimal.NewFromFloat(rate)), nil
}
