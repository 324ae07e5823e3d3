// Package quanto is a minimal client for the Quanto.Trade v3 market data API.
package quanto

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

const DefaultBaseURL = "https://api.quanto.trade"

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

// MarketCode maps an instrument like "BTC/USDT" to the linear perpetual "BTC-USD-SWAP-LIN".
// Only the base asset is used; Quanto quotes every linear swap in USD.
func MarketCode(instrument string) string {
	base, _, _ := strings.Cut(strings.ToUpper(strings.TrimSpace(instrument)), "/")
	return base + "-USD-SWAP-LIN"
}

// GetDepth fetches the order book for marketCode down to level.
func (c *Client) GetDepth(ctx context.Context, marketCode string, level int) (*Depth, error) {
	q := url.Values{}
	q.Set("marketCode", marketCode)
	q.Set("level", fmt.Sprint(level))
	endpoint := c.baseURL + "/v3/depth?" + q.Encode()

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
		return nil, fmt.Errorf("quanto error: status %d: %s", resp.StatusCode, body)
	}

	var out DepthResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if !out.Success || out.Data == nil {
		return nil, fmt.Errorf("quanto error: %s", out.Message)
	}

	return out.Data, nil
}

// GetMidPrice returns the midpoint of the best bid and best ask.
func (c *Client) GetMidPrice(ctx context.Context, marketCode string) (float64, error) {
	d, err := c.GetDepth(ctx, marketCode, 1)
	if err != nil {
		return 0, err
	}
	mid, err := d.Mid()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", marketCode, err)
	}
	f, _ := mid.Float64()
	return f, nil
}
