package oracle

import (
	"fmt"

	"backpack-volume/internal/exchange"
)

// 初始报价来源。
const (
	SeedConfigured = "configured"
	SeedReference  = "reference"
	SeedHistory    = "history"
)

// InitialPrices 依次采用配置值、参考盘口、最近成交中位数确定初始买卖价。
func InitialPrices(bid, ask float64, snapshot exchange.MarketSnapshot) (float64, float64, string, error) {
	if bid > 0 && ask > 0 {
		return Round2(bid), Round2(ask), SeedConfigured, nil
	}

	if ref := snapshot.Reference; ref != nil && ref.BestBid > 0 && ref.BestAsk > 0 {
		return Round2(ref.BestBid), Round2(ref.BestAsk), SeedReference, nil
	}

	medianBid, bidErr := MedianBid(snapshot.Trades)
	medianAsk, askErr := MedianAsk(snapshot.Trades)
	switch {
	case bidErr == nil && askErr == nil:
		return medianBid, medianAsk, SeedHistory, nil
	case bidErr == nil:
		return medianBid, medianBid, SeedHistory, nil
	case askErr == nil:
		return medianAsk, medianAsk, SeedHistory, nil
	default:
		return 0, 0, "", fmt.Errorf("oracle: 无法确定 %s 初始报价: %w", snapshot.Symbol, ErrInsufficientData)
	}
}
