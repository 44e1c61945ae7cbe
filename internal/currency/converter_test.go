package currency

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertAppliesRate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/latest/EUR", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"base":"EUR","rates":{"USD":1.25,"GBP":0.85}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	got, err := client.Convert(context.Background(), "EUR", "USD", decimal.NewFromInt(100))

	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(125).Equal(got), "got %s", got)
}

func TestConvertSameCurrencySkipsNetwork(t *testing.T) {
	client := NewClient("http://127.0.0.1:0") // unreachable on purpose
	amount := decimal.NewFromFloat(42.5)

	got, err := client.Convert(context.Background(), "usd", "USD", amount)

	require.NoError(t, err)
	assert.True(t, amount.Equal(got))
}

func TestConvertUnknownTargetCurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"base":"USD","rates":{"EUR":0.9}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Convert(context.Background(), "USD", "XXX", decimal.NewFromInt(10))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot convert from USD to XXX")
}

func TestConvertUpstreamFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Convert(context.Background(), "USD", "EUR", decimal.NewFromInt(10))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestCountriesList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "fields=name,currencies", r.URL.RawQuery)
		_, _ = w.Write([]byte(`[
			{"name":{"common":"United States"},"currencies":{"USD":{"name":"United States dollar","symbol":"$"}}},
			{"name":{"common":"France"},"currencies":{"EUR":{"name":"Euro","symbol":"€"}}}
		]`))
	}))
	defer server.Close()

	client := NewCountriesClient(server.URL)
	countries, err := client.List(context.Background())

	require.NoError(t, err)
	require.Len(t, countries, 2)
	assert.Equal(t, "France", countries[0].Name)
	assert.Equal(t, []string{"EUR"}, countries[0].Currencies)
	assert.Equal(t, "United States", countries[1].Name)
}
