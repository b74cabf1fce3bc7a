package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backpack-volume/internal/config"
)

type fakeBook struct {
	book  ccxt.OrderBook
	errs  []error
	calls int
}

func (f *fakeBook) FetchOrderBook(symbol string, options ...ccxt.FetchOrderBookOptions) (ccxt.OrderBook, error) {
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return ccxt.OrderBook{}, err
	}
	return f.book, nil
}

func referenceConfig() config.ReferenceConfig {
	return config.ReferenceConfig{
		Enabled: true,
		Symbol:  "SOL/USDC",
		Depth:   5,
		Retry:   config.RetryConfig{MaxAttempts: 3, MinDelay: time.Millisecond, MaxDelay: time.Millisecond},
	}
}

func TestReferenceClient_FetchTopOfBook(t *testing.T) {
	book := &fakeBook{book: ccxt.OrderBook{
		Bids: [][]float64{{149.9, 10}, {149.8, 3}},
		Asks: [][]float64{{150.1, 4}},
	}}
	loads := 0
	client := newReferenceClient(referenceConfig(), book, func() error { loads++; return nil }, nil)

	top, err := client.FetchTopOfBook(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 149.9, top.BestBid)
	assert.Equal(t, 150.1, top.BestAsk)

	_, err = client.FetchTopOfBook(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loads)
}

func TestReferenceClient_EmptyBook(t *testing.T) {
	client := newReferenceClient(referenceConfig(), &fakeBook{}, nil, nil)
	_, err := client.FetchTopOfBook(context.Background())
	assert.Error(t, err)
}

func TestReferenceClient_NonRetryableStopsEarly(t *testing.T) {
	book := &fakeBook{errs: []error{errors.New("bad symbol")}}
	client := newReferenceClient(referenceConfig(), book, nil, nil)

	_, err := client.FetchTopOfBook(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, book.calls)
}

func TestReferenceClient_RetriesNetworkErrors(t *testing.T) {
	book := &fakeBook{
		errs: []error{ErrNetwork},
		book: ccxt.OrderBook{Bids: [][]float64{{1, 1}}, Asks: [][]float64{{2, 1}}},
	}
	client := newReferenceClient(referenceConfig(), book, nil, nil)

	top, err := client.FetchTopOfBook(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, book.calls)
	assert.Equal(t, 2.0, top.BestAsk)
}
