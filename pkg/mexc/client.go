// Package mexc is a minimal client for MEXC's perpetual contract market data API.
package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://contract.mexc.com"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Symbol converts an instrument like "BTC/USDT" to the contract symbol "BTC_USDT".
func Symbol(instrument string) string {
	return strings.ReplaceAll(strings.ToUpper(instrument), "/", "_")
}

// GetTicker fetches the swap ticker for a contract symbol such as "BTC_USDT".
func (c *Client) GetTicker(ctx context.Context, symbol string) (*Ticker, error) {
	endpoint := c.baseURL + "/api/v1/contract/ticker?symbol=" + url.QueryEscape(symbol)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("mexc error: status %d: %s", resp.StatusCode, body)
	}

	var out TickerResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success || out.Data == nil {
		return nil, fmt.Errorf("mexc error: code=%d msg=%s", out.Code, out.Message)
	}

	return out.Data, nil
}

// GetLastPrice returns the last traded price of a contract.
func (c *Client) GetLastPrice(ctx context.Context, symbol string) (float64, error) {
	t, err := c.GetTicker(ctx, symbol)
	if err != nil {
		return 0, err
	}
	if !t.LastPrice.IsPositive() {
		return 0, fmt.Errorf("mexc ticker %s has no last price", symbol)
	}
	f, _ := t.LastPrice.Float64()
	return f, nil
}
