package oracle

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backpack-volume/internal/exchange"
)

type staticSource struct {
	points []exchange.TradeHistoryPoint
	err    error
}

func (s staticSource) Recent(context.Context) ([]exchange.TradeHistoryPoint, error) {
	return s.points, s.err
}

type fakeLister struct {
	symbol string
	limit  int
}

func (f *fakeLister) Trades(_ context.Context, symbol string, limit int) ([]exchange.TradeHistoryPoint, error) {
	f.symbol, f.limit = symbol, limit
	return points([]float64{5}, false), nil
}

func TestBiasStrategy_Adjustments(t *testing.T) {
	q := NewSharedQuote(100, 101, 0.12, 20)
	s := NewBiasStrategy(q, false)
	ctx := context.Background()

	assert.Equal(t, 100.12, s.BidExpired())
	bid, err := s.BidPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100.12, bid)

	assert.Equal(t, 100.88, s.AskExpired())

	s.Filled()
	assert.Equal(t, QuoteSnapshot{Bid: 100.0, Ask: 101.0, Bias: 0.12}, q.Snapshot())
}

func TestBiasStrategy_BiasedFillUsesHardStep(t *testing.T) {
	q := NewSharedQuote(100, 101, 0.1, 20)
	NewBiasStrategy(q, true).Filled()
	assert.Equal(t, 98.0, q.Bid())
	assert.Equal(t, 103.0, q.Ask())
}

func TestMedianStrategy_OffsetsFollowFeedback(t *testing.T) {
	sample := append(points([]float64{10, 12, 14}, false), points([]float64{20, 22}, true)...)
	s := NewMedianStrategy(staticSource{points: sample}, 0.5)
	ctx := context.Background()

	bid, err := s.BidPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 12.0, bid)

	s.BidExpired()
	s.BidExpired()
	bid, err = s.BidPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 13.0, bid)

	s.AskExpired()
	ask, err := s.AskPrice(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20.5, ask)

	s.Filled()
	assert.Equal(t, QuoteSnapshot{Bias: 0.5}, s.Offsets())
}

func TestMedianStrategy_Errors(t *testing.T) {
	ctx := context.Background()

	_, err := NewMedianStrategy(staticSource{}, 0.1).BidPrice(ctx)
	assert.ErrorIs(t, err, ErrInsufficientData)

	boom := errors.New("boom")
	_, err = NewMedianStrategy(staticSource{err: boom}, 0.1).AskPrice(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestSources(t *testing.T) {
	lister := &fakeLister{}
	got, err := NewRESTSource(lister, "SOL_USDC", 100).Recent(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, "SOL_USDC", lister.symbol)
	assert.Equal(t, 100, lister.limit)

	stream := exchange.NewTradeStream("ws://unused", "SOL_USDC", 2, nil)
	got, err = NewStreamSource(stream).Recent(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestInitialPrices(t *testing.T) {
	snap := exchange.MarketSnapshot{
		Symbol: "SOL_USDC",
		Trades: append(points([]float64{10, 12, 14}, false), points([]float64{11}, true)...),
	}

	bid, ask, src, err := InitialPrices(99.999, 100.5, snap)
	require.NoError(t, err)
	assert.Equal(t, SeedConfigured, src)
	assert.Equal(t, 100.0, bid)
	assert.Equal(t, 100.5, ask)

	withRef := snap
	withRef.Reference = &exchange.TopOfBook{BestBid: 149.9, BestAsk: 150.1}
	bid, ask, src, err = InitialPrices(0, 0, withRef)
	require.NoError(t, err)
	assert.Equal(t, SeedReference, src)
	assert.Equal(t, []float64{149.9, 150.1}, []float64{bid, ask})

	bid, ask, src, err = InitialPrices(0, 0, snap)
	require.NoError(t, err)
	assert.Equal(t, SeedHistory, src)
	assert.Equal(t, []float64{12, 11}, []float64{bid, ask})

	oneSided := exchange.MarketSnapshot{Trades: points([]float64{7}, true)}
	bid, ask, _, err = InitialPrices(0, 0, oneSided)
	require.NoError(t, err)
	assert.Equal(t, []float64{7, 7}, []float64{bid, ask})

	_, _, _, err = InitialPrices(0, 0, exchange.MarketSnapshot{})
	assert.ErrorIs(t, err, ErrInsufficientData)
}
