package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/example/storefront-commerce/internal/domain"
)

const defaultBaseURL = "https://api.fxratesapi.com"

// Client — клиент сервиса курсов (fxratesapi): курсы целевых валют к базовой.
// Ответ без флага success или без запрошенного курса — отказ.
type Client struct {
	BaseURL string
	APIKey  string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		HTTP:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) Rates(ctx context.Context, base string, codes []string) (map[string]float64, error) {
	if c.APIKey == "" {
		return nil, errors.New("exchange rate api key not configured")
	}
	u := fmt.Sprintf("%s/latest?api_key=%s&base=%s&currencies=%s",
		c.BaseURL, url.QueryEscape(c.APIKey), url.QueryEscape(base), url.QueryEscape(strings.Join(codes, ",")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange rate request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("exchange rate api status %d", resp.StatusCode)
	}
	var body struct {
		Success bool               `json:"success"`
		Rates   map[string]float64 `json:"rates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode exchange rate response: %w", err)
	}
	if !body.Success {
		return nil, errors.New("exchange rate api reported failure")
	}
	return body.Rates, nil
}

var _ domain.RateSource = (*Client)(nil)
