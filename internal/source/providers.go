package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"

	"spreadwatch/pkg/bybit"
	"spreadwatch/pkg/mexc"
	"spreadwatch/pkg/quanto"
)

// mexcPrice reads the last price of the USDT-margined perpetual.
func mexcPrice(s Settings) PriceFunc {
	c := mexc.NewClient(s.BaseURL, s.Timeout)
	return func(ctx context.Context, instrument string) (float64, error) {
		return c.GetLastPrice(ctx, mexc.Symbol(instrument))
	}
}

// quantoPrice reads the best bid/ask midpoint of the linear swap.
func quantoPrice(s Settings) PriceFunc {
	c := quanto.NewClient(s.BaseURL, s.Timeout)
	return func(ctx context.Context, instrument string) (float64, error) {
		return c.GetMidPrice(ctx, quanto.MarketCode(instrument))
	}
}

func bybitPrice(s Settings) PriceFunc {
	c := bybit.NewRESTClient(s.BaseURL, s.Timeout)
	category := s.Category
	if category == "" {
		category = "linear"
	}
	return func(ctx context.Context, instrument string) (float64, error) {
		return c.GetLastPrice(ctx, category, bybit.Symbol(instrument))
	}
}

func binancePrice(s Settings) PriceFunc {
	cli := binance.NewClient(s.APIKey, s.APISecret)
	if s.BaseURL != "" {
		cli.BaseURL = strings.TrimSuffix(s.BaseURL, "/")
	}
	return func(ctx context.Context, instrument string) (float64, error) {
		symbol := strings.ReplaceAll(strings.ToUpper(instrument), "/", "")
		prices, err := cli.NewListPricesService().Symbol(symbol).Do(ctx)
		if err != nil {
			return 0, err
		}
		if len(prices) == 0 {
			return 0, fmt.Errorf("symbol %s not found", symbol)
		}
		price, err := decimal.NewFromString(prices[0].Price)
		if err != nil {
			return 0, fmt.Errorf("parse price %q: %w", prices[0].Price, err)
		}
		f, _ := price.Float64()
		return f, nil
	}
}
