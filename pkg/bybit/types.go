package bybit

import "encoding/json"

// BybitResponse represents a generic response from Bybit's V5 REST API.
// This structure covers the standard response envelope used across all endpoints.
type BybitResponse struct {
	RetCode    int                    `json:"retCode"`    // 0 means success; non-zero indicates an error code
	RetMsg     string                 `json:"retMsg"`     // Human-readable message describing the result or error
	Result     json.RawMessage        `json:"result"`     // Main response payload (varies per endpoint)
	RetExtInfo map[string]interface{} `json:"retExtInfo"` // Optional extra info (e.g. rate limits, error hints)
	Time       int64                  `json:"time"`       // Server timestamp (in milliseconds since epoch)
}

type TickersResponse struct {
	Category string   `json:"category"` // e.g., "linear", "spot"
	List     []Ticker `json:"list"`
}

// Ticker is one entry of /v5/market/tickers. Bybit sends all numbers as strings.
type Ticker struct {
	Symbol     string `json:"symbol"`
	LastPrice  string `json:"lastPrice"`
	Bid1Price  string `json:"bid1Price"`
	Ask1Price  string `json:"ask1Price"`
	MarkPrice  string `json:"markPrice"`
	IndexPrice string `json:"indexPrice"`
}
