package geoip

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/example/storefront-commerce/internal/domain"
)

const defaultBaseURL = "https://api.ipdata.co"

// Client — клиент сервиса геолокации (ipdata.co): код страны клиента
// по ключу API. Любой не-2xx статус или нечитаемое тело — отказ определения.
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

func (c *Client) CountryCode(ctx context.Context) (string, error) {
	if c.APIKey == "" {
		return "", errors.New("location api key not configured")
	}
	u := fmt.Sprintf("%s/?api-key=%s&fields=country_code,country_name,currency",
		c.BaseURL, url.QueryEscape(c.APIKey))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("location request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("location api status %d", resp.StatusCode)
	}
	var body struct {
		CountryCode string `json:"country_code"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode location response: %w", err)
	}
	if body.CountryCode == "" {
		return "", errors.New("location response missing country_code")
	}
	return body.CountryCode, nil
}

var _ domain.LocationSource = (*Client)(nil)
