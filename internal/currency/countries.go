package currency

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"
)

// Country pairs a country name with the currency codes it uses.
type Country struct {
	Name       string   `json:"name"`
	Currencies []string `json:"currencies"`
}

// CountryLister lists countries with their currency codes.
type CountryLister interface {
	List(ctx context.Context) ([]Country, error)
}

// CountriesClient lists countries and their currencies from restcountries.com,
// backing the signup form's country/currency picker.
type CountriesClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewCountriesClient(baseURL string) *CountriesClient {
	return &CountriesClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

type countryRecord struct {
	Name struct {
		Common string `json:"common"`
	} `json:"name"`
	Currencies map[string]struct {
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
	} `json:"currencies"`
}

func (c *CountriesClient) List(ctx context.Context) ([]Country, error) {
	url := c.baseURL + "/v3.1/all?fields=name,currencies"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build countries request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch countries: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("countries API returned status %d", resp.StatusCode)
	}

	var records []countryRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return nil, fmt.Errorf("failed to decode countries: %w", err)
	}

	countries := make([]Country, 0, len(records))
	for _, rec := range records {
		codes := make([]string, 0, len(rec.Currencies))
		for code := range rec.Currencies {
			codes = append(codes, code)
		}
		sort.Strings(codes)
		countries = append(countries, Country{Name: rec.Name.Common, Currencies: codes})
	}

	sort.Slice(countries, func(i, j int) bool { return countries[i].Name < countries[j].Name })
	return countries, nil
}
