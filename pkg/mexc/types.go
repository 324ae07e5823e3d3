package mexc

import "github.com/shopspring/decimal"

// TickerResponse is the envelope of /api/v1/contract/ticker.
type TickerResponse struct {
	Success bool    `json:"success"`
	Code    int     `json:"code"`
	Message string  `json:"message"`
	Data    *Ticker `json:"data"`
}

type Ticker struct {
	Symbol     string          `json:"symbol"`
	LastPrice  decimal.Decimal `json:"lastPrice"`
	Bid1       decimal.Decimal `json:"bid1"`
	Ask1       decimal.Decimal `json:"ask1"`
	FairPrice  decimal.Decimal `json:"fairPrice"`
	IndexPrice decimal.Decimal `json:"indexPrice"`
	Timestamp  int64           `json:"timestamp"` // milliseconds since epoch
}
