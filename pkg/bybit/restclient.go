package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const DefaultBaseURL = "https://api.bybit.com"

type RESTClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewRESTClient(baseURL string, timeout time.Duration) *RESTClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &RESTClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *RESTClient) HTTPClient() *http.Client {
	return c.httpClient
}

// Symbol converts an instrument like "BTC/USDT" to Bybit's "BTCUSDT".
func Symbol(instrument string) string {
	return strings.ReplaceAll(strings.ToUpper(instrument), "/", "")
}

// GetTicker fetches the ticker for one symbol in the given category ("linear", "spot", "inverse").
func (c *RESTClient) GetTicker(ctx context.Context, category, symbol string) (*Ticker, error) {
	q := url.Values{}
	q.Set("category", category)
	q.Set("symbol", symbol)
	endpoint := c.baseURL + "/v5/market/tickers?" + q.Encode()

	// Construct the GET request with context for timeout/cancel support
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
		return nil, fmt.Errorf("bybit error: status %d: %s", resp.StatusCode, body)
	}

	var rawResp BybitResponse
	if err := json.NewDecoder(resp.Body).Decode(&rawResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if rawResp.RetCode != 0 {
		return nil, fmt.Errorf("bybit error: retCode=%d retMsg=%s", rawResp.RetCode, rawResp.RetMsg)
	}

	var result TickersResponse
	if err := json.Unmarshal(rawResp.Result, &result); err != nil {
		return nil, fmt.Errorf("decode result: %w", err)
	}
	if len(result.List) == 0 {
		return nil, fmt.Errorf("no ticker for %s/%s", category, symbol)
	}

	return &result.List[0], nil
}

// GetLastPrice returns the last traded price of symbol.
func (c *RESTClient) GetLastPrice(ctx context.Context, category, symbol string) (float64, error) {
	t, err := c.GetTicker(ctx, category, symbol)
	if err != nil {
		return 0, err
	}
	price, err := decimal.NewFromString(t.LastPrice)
	if err != nil {
		return 0, fmt.Errorf("parse lastPrice %q: %w", t.LastPrice, err)
	}
	f, _ := price.Float64()
	return f, nil
}
