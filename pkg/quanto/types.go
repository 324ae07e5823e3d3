package quanto

import (
	"errors"

	"github.com/shopspring/decimal"
)

var ErrEmptyBook = errors.New("order book has no bids or asks")

type DepthResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    *Depth `json:"data"`
}

// Depth levels are [price, quantity] pairs; Quanto sends them as numbers or strings,
// both of which decimal.Decimal accepts.
type Depth struct {
	MarketCode string              `json:"marketCode"`
	Bids       [][]decimal.Decimal `json:"bids"`
	Asks       [][]decimal.Decimal `json:"asks"`
	LastUpdate int64               `json:"lastUpdatedAt"`
}

// Mid returns (bestBid + bestAsk) / 2.
func (d *Depth) Mid() (decimal.Decimal, error) {
	if len(d.Bids) == 0 || len(d.Asks) == 0 || len(d.Bids[0]) == 0 || len(d.Asks[0]) == 0 {
		return decimal.Zero, ErrEmptyBook
	}
	bid, ask := d.Bids[0][0], d.Asks[0][0]
	return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
}
