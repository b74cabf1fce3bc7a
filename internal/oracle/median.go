package oracle

import (
	"errors"
	"sort"

	"backpack-volume/internal/exchange"
)

// ErrInsufficientData 表示过滤后的成交样本为空。
var ErrInsufficientData = errors.New("oracle: insufficient trade data")

// MedianBid 计算主动买入成交（isBuyerMaker=false）的价格中位数。
func MedianBid(points []exchange.TradeHistoryPoint) (float64, error) {
	return medianWhere(points, func(p exchange.TradeHistoryPoint) bool { return !p.IsBuyerMaker })
}

// MedianAsk 计算主动卖出成交（isBuyerMaker=true）的价格中位数。
func MedianAsk(points []exchange.TradeHistoryPoint) (float64, error) {
	return medianWhere(points, func(p exchange.TradeHistoryPoint) bool { return p.IsBuyerMaker })
}

// Median 返回价格中位数，偶数个样本取中间两值的均值，结果保留两位小数。
func Median(prices []float64) (float64, error) {
	n := len(prices)
	if n == 0 {
		return 0, ErrInsufficientData
	}

	sorted := append([]float64(nil), prices...)
	sort.Float64s(sorted)

	if n%2 == 1 {
		return Round2(sorted[n/2]), nil
	}
	return Round2((sorted[n/2-1] + sorted[n/2]) / 2), nil
}

func medianWhere(points []exchange.TradeHistoryPoint, keep func(exchange.TradeHistoryPoint) bool) (float64, error) {
	prices := make([]float64, 0, len(points))
	for _, p := range points {
		if keep(p) {
			prices = append(prices, p.Price)
		}
	}
	return Median(prices)
}
