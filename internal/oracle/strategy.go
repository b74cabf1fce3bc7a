package oracle

import (
	"context"

	"backpack-volume/internal/exchange"
)

// Strategy 为报价策略，实现必须可被多个账户并发调用。
type Strategy interface {
	Name() string
	BidPrice(ctx context.Context) (float64, error)
	AskPrice(ctx context.Context) (float64, error)
	// BidExpired 在买单未成交时调用，返回调整后的买价或偏移量。
	BidExpired() float64
	// AskExpired 在卖单未成交时调用，返回调整后的卖价或偏移量。
	AskExpired() float64
	// Filled 在任一腿成交后调用。
	Filled()
}

// TradeSource 提供最近成交样本。
type TradeSource interface {
	Recent(ctx context.Context) ([]exchange.TradeHistoryPoint, error)
}

// BiasStrategy 直接使用共享报价，未成交时向市场方向步进一格。
type BiasStrategy struct {
	quote  *SharedQuote
	biased bool
}

// NewBiasStrategy 创建步进策略。biased 为真时成交后使用强调整。
func NewBiasStrategy(quote *SharedQuote, biased bool) *BiasStrategy {
	return &BiasStrategy{quote: quote, biased: biased}
}

func (s *BiasStrategy) Name() string { return "bias" }

func (s *BiasStrategy) BidPrice(context.Context) (float64, error) { return s.quote.Bid(), nil }

func (s *BiasStrategy) AskPrice(context.Context) (float64, error) { return s.quote.Ask(), nil }

func (s *BiasStrategy) BidExpired() float64 { return s.quote.RiseBid(false) }

func (s *BiasStrategy) AskExpired() float64 { return s.quote.DecreaseAsk(false) }

// Filled 成交后抬高卖价、压低买价。
func (s *BiasStrategy) Filled() {
	s.quote.RiseAsk(s.biased)
	s.quote.DecreaseBid(s.biased)
}

// MedianStrategy 以成交中位数为锚，叠加共享的偏移量。
type MedianStrategy struct {
	source TradeSource
	offset *SharedQuote
}

// NewMedianStrategy 创建中位数策略，偏移步长为 bias。
func NewMedianStrategy(source TradeSource, bias float64) *MedianStrategy {
	return &MedianStrategy{
		source: source,
		offset: NewSharedQuote(0, 0, bias, 1),
	}
}

func (s *MedianStrategy) Name() string { return "median" }

func (s *MedianStrategy) BidPrice(ctx context.Context) (float64, error) {
	points, err := s.source.Recent(ctx)
	if err != nil {
		return 0, err
	}
	median, err := MedianBid(points)
	if err != nil {
		return 0, err
	}
	return Round2(median + s.offset.Bid()), nil
}

func (s *MedianStrategy) AskPrice(ctx context.Context) (float64, error) {
	points, err := s.source.Recent(ctx)
	if err != nil {
		return 0, err
	}
	median, err := MedianAsk(points)
	if err != nil {
		return 0, err
	}
	return Round2(median + s.offset.Ask()), nil
}

func (s *MedianStrategy) BidExpired() float64 { return s.offset.RiseBid(false) }

func (s *MedianStrategy) AskExpired() float64 { return s.offset.DecreaseAsk(false) }

// Filled 成交后清零偏移，重新锚定到市场。
func (s *MedianStrategy) Filled() { s.offset.Seed(0, 0) }

// Offsets 返回当前偏移量。
func (s *MedianStrategy) Offsets() QuoteSnapshot { return s.offset.Snapshot() }

type tradeLister interface {
	Trades(ctx context.Context, symbol string, limit int) ([]exchange.TradeHistoryPoint, error)
}

// RESTSource 每次从 REST 接口拉取最近成交。
type RESTSource struct {
	client tradeLister
	symbol string
	limit  int
}

// NewRESTSource 创建 REST 成交源。
func NewRESTSource(client tradeLister, symbol string, limit int) *RESTSource {
	return &RESTSource{client: client, symbol: symbol, limit: limit}
}

func (s *RESTSource) Recent(ctx context.Context) ([]exchange.TradeHistoryPoint, error) {
	return s.client.Trades(ctx, s.symbol, s.limit)
}

type recentTrades interface {
	Recent() []exchange.TradeHistoryPoint
}

// StreamSource 读取成交推送窗口。
type StreamSource struct {
	stream recentTrades
}

// NewStreamSource 包装成交流。
func NewStreamSource(stream recentTrades) *StreamSource {
	return &StreamSource{stream: stream}
}

func (s *StreamSource) Recent(context.Context) ([]exchange.TradeHistoryPoint, error) {
	return s.stream.Recent(), nil
}

var (
	_ Strategy    = (*BiasStrategy)(nil)
	_ Strategy    = (*MedianStrategy)(nil)
	_ TradeSource = (*RESTSource)(nil)
	_ TradeSource = (*StreamSource)(nil)
)
