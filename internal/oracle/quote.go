// Package oracle 决定下一次报价：共享的偏移步进报价，或成交历史中位数。
package oracle

import (
	"sync"

	"github.com/shopspring/decimal"
)

// DefaultHardMultiplier 为强调整时的步长倍数。
const DefaultHardMultiplier = 20

// Round2 将价格四舍五入到两位小数。
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}

// QuoteSnapshot 为某一时刻的共享报价。
type QuoteSnapshot struct {
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`
	Bias float64 `json:"bias"`
}

// SharedQuote 为所有账户共用的买卖价，每次读写都在同一把锁内完成。
type SharedQuote struct {
	mu   sync.Mutex
	bid  float64
	ask  float64
	bias float64
	hard float64
}

// NewSharedQuote 创建共享报价。hardMultiplier 小于 1 时使用默认值。
func NewSharedQuote(bid, ask, bias, hardMultiplier float64) *SharedQuote {
	if hardMultiplier < 1 {
		hardMultiplier = DefaultHardMultiplier
	}
	return &SharedQuote{
		bid:  Round2(bid),
		ask:  Round2(ask),
		bias: bias,
		hard: hardMultiplier,
	}
}

// Seed 在车队启动前设置初始价格。
func (q *SharedQuote) Seed(bid, ask float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.bid = Round2(bid)
	q.ask = Round2(ask)
}

// Bid 返回当前买价。
func (q *SharedQuote) Bid() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.bid
}

// Ask 返回当前卖价。
func (q *SharedQuote) Ask() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.ask
}

// Snapshot 一次性读取买卖价与步长。
func (q *SharedQuote) Snapshot() QuoteSnapshot {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QuoteSnapshot{Bid: q.bid, Ask: q.ask, Bias: q.bias}
}

// RiseBid 上调买价并返回新值。
func (q *SharedQuote) RiseBid(hard bool) float64 {
	return q.adjust(&q.bid, 1, hard)
}

// DecreaseBid 下调买价并返回新值。
func (q *SharedQuote) DecreaseBid(hard bool) float64 {
	return q.adjust(&q.bid, -1, hard)
}

// RiseAsk 上调卖价并返回新值。
func (q *SharedQuote) RiseAsk(hard bool) float64 {
	return q.adjust(&q.ask, 1, hard)
}

// DecreaseAsk 下调卖价并返回新值。
func (q *SharedQuote) DecreaseAsk(hard bool) float64 {
	return q.adjust(&q.ask, -1, hard)
}

func (q *SharedQuote) adjust(target *float64, sign float64, hard bool) float64 {
	q.mu.Lock()
	defer q.mu.Unlock()

	step := q.bias
	if hard {
		step *= q.hard
	}
	*target = Round2(*target + sign*step)
	return *target
}
