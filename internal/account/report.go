package account

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"backpack-volume/internal/exchange"
)

const defaultFillPage = 1000

// FillSource 提供账户成交历史。
type FillSource interface {
	Fills(ctx context.Context, symbol string, limit, offset int) ([]exchange.TradeHistoryPoint, error)
}

// VolumeSummary 汇总账户成交额与手续费（以 USDC 计）。
type VolumeSummary struct {
	Fills  int     `json:"fills"`
	Volume float64 `json:"volume"`
	Fees   float64 `json:"fees"`
}

// Summarize 计算成交额与手续费。手续费币种为 USDC 时直接计入，否则按成交价折算。
func Summarize(fills []exchange.TradeHistoryPoint) VolumeSummary {
	volume := decimal.Zero
	fees := decimal.Zero
	for _, f := range fills {
		price := decimal.NewFromFloat(f.Price)
		volume = volume.Add(price.Mul(decimal.NewFromFloat(f.Quantity)))

		fee := decimal.NewFromFloat(f.Fee)
		if f.FeeSymbol != exchange.QuoteSymbolUSDC {
			fee = fee.Mul(price)
		}
		fees = fees.Add(fee)
	}
	return VolumeSummary{
		Fills:  len(fills),
		Volume: volume.Round(2).InexactFloat64(),
		Fees:   fees.Round(4).InexactFloat64(),
	}
}

// CollectFills 分页拉取全部成交历史。
func CollectFills(ctx context.Context, src FillSource, symbol string, pageSize int) ([]exchange.TradeHistoryPoint, error) {
	if pageSize <= 0 {
		pageSize = defaultFillPage
	}

	var all []exchange.TradeHistoryPoint
	for offset := 0; ; offset += pageSize {
		page, err := src.Fills(ctx, symbol, pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("account: 拉取成交历史失败: %w", err)
		}
		all = append(all, page...)
		if len(page) < pageSize {
			return all, nil
		}
	}
}
