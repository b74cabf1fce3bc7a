package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backpack-volume/internal/exchange"
)

func points(prices []float64, buyerMaker bool) []exchange.TradeHistoryPoint {
	out := make([]exchange.TradeHistoryPoint, 0, len(prices))
	for _, p := range prices {
		out = append(out, exchange.TradeHistoryPoint{Price: p, IsBuyerMaker: buyerMaker})
	}
	return out
}

func TestMedian_OddAndEven(t *testing.T) {
	m, err := Median([]float64{14, 10, 12})
	require.NoError(t, err)
	assert.Equal(t, 12.0, m)

	m, err = Median([]float64{16, 10, 14, 12})
	require.NoError(t, err)
	assert.Equal(t, 13.0, m)

	m, err = Median([]float64{1.111, 1.116})
	require.NoError(t, err)
	assert.Equal(t, 1.11, m)
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Median(in)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestMedianBidAsk_FilterBySide(t *testing.T) {
	sample := append(points([]float64{10, 12, 14}, false), points([]float64{20, 22, 24, 26}, true)...)

	bid, err := MedianBid(sample)
	require.NoError(t, err)
	assert.Equal(t, 12.0, bid)

	ask, err := MedianAsk(sample)
	require.NoError(t, err)
	assert.Equal(t, 23.0, ask)
}

func TestMedian_InsufficientData(t *testing.T) {
	_, err := Median(nil)
	assert.ErrorIs(t, err, ErrInsufficientData)

	_, err = MedianAsk(points([]float64{1, 2}, false))
	assert.ErrorIs(t, err, ErrInsufficientData)
}
