package exchange

import (
	"context"
	"crypto/ed25519"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"backpack-volume/internal/config"
	"backpack-volume/internal/signer"
)

func testSigner(t *testing.T) *signer.Signer {
	t.Helper()
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(2 * i)
	}
	s, err := signer.New("test-api-key", base64.StdEncoding.EncodeToString(seed), 5000)
	require.NoError(t, err)
	return s
}

func testExchangeConfig(url string) config.ExchangeConfig {
	return config.ExchangeConfig{
		BaseURL: url,
		Window:  5000,
		Timeout: 5 * time.Second,
		Retry: config.RetryConfig{
			MaxAttempts: 3,
			MinDelay:    time.Millisecond,
			MaxDelay:    2 * time.Millisecond,
		},
	}
}

func TestClientPlaceOrder_SignsParamsMatchingBody(t *testing.T) {
	s := testSigner(t)

	var (
		gotHeaders http.Header
		gotBody    map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/order", r.URL.Path)
		gotHeaders = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &gotBody))
		_, _ = w.Write([]byte(`{"status":"Filled","orderType":"Limit","side":"Bid","quantity":"1","symbol":"SOL_USDC"}`))
	}))
	defer srv.Close()

	client, err := NewClient(testExchangeConfig(srv.URL), s, "", nil)
	require.NoError(t, err)

	req := NewLimitOrder(SideAsk, "SOL_USDC", 1.5, 100.1, TimeInForceIOC)
	req.SelfTradePrevention = SelfTradePreventionAllow

	body, err := client.PlaceOrder(context.Background(), req)
	require.NoError(t, err)
	assert.Contains(t, string(body), `"Filled"`)

	assert.Equal(t, "test-api-key", gotHeaders.Get("X-API-Key"))
	assert.Equal(t, "5000", gotHeaders.Get("X-Window"))
	assert.Equal(t, "application/json; charset=utf-8", gotHeaders.Get("Content-Type"))

	ts, err := strconv.ParseInt(gotHeaders.Get("X-Timestamp"), 10, 64)
	require.NoError(t, err)
	expected := s.Sign(signer.Payload("orderExecute", req.Params(), ts, 5000))
	assert.Equal(t, expected, gotHeaders.Get("X-Signature"))

	assert.Equal(t, "Limit", gotBody["orderType"])
	assert.Equal(t, "100.10", gotBody["price"])
	assert.Equal(t, "1.5", gotBody["quantity"])
	assert.Equal(t, "Ask", gotBody["side"])
	assert.Equal(t, "Allow", gotBody["selfTradePrevention"])
	assert.NotContains(t, gotBody, "postOnly")
}

func TestClientPlaceOrder_ReturnsErrorBodies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`"Insufficient funds"`))
	}))
	defer srv.Close()

	client, err := NewClient(testExchangeConfig(srv.URL), testSigner(t), "", nil)
	require.NoError(t, err)

	body, err := client.PlaceOrder(context.Background(), NewLimitOrder(SideBid, "SOL_USDC", 1, 1, TimeInForceIOC))
	require.NoError(t, err)
	assert.Equal(t, `"Insufficient funds"`, string(body))
}

func TestClientPlaceOrder_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	client, err := NewClient(testExchangeConfig(url), testSigner(t), "", nil)
	require.NoError(t, err)

	_, err = client.PlaceOrder(context.Background(), NewLimitOrder(SideBid, "SOL_USDC", 1, 1, TimeInForceIOC))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestClientPlaceOrder_RequiresSigner(t *testing.T) {
	client, err := NewClient(testExchangeConfig("http://127.0.0.1"), nil, "", nil)
	require.NoError(t, err)

	_, err = client.PlaceOrder(context.Background(), OrderRequest{})
	assert.ErrorIs(t, err, ErrNoSigner)
}

func TestClientTrades_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/trades", r.URL.Path)
		assert.Equal(t, "SOL_USDC", r.URL.Query().Get("symbol"))
		assert.Equal(t, "50", r.URL.Query().Get("limit"))
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`[
			{"id":1,"price":"100.5","quantity":"2","quoteQuantity":"201","timestamp":1700000000000,"isBuyerMaker":false},
			{"id":2,"price":"99.5","quantity":"1","quoteQuantity":"99.5","timestamp":1700000001000,"isBuyerMaker":true}
		]`))
	}))
	defer srv.Close()

	client, err := NewClient(testExchangeConfig(srv.URL), nil, "", nil)
	require.NoError(t, err)

	trades, err := client.Trades(context.Background(), "SOL_USDC", 50)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	assert.Equal(t, 100.5, trades[0].Price)
	assert.Equal(t, 2.0, trades[0].Quantity)
	assert.False(t, trades[0].IsBuyerMaker)
	assert.Equal(t, SideBid, trades[0].Side)
	assert.True(t, trades[1].IsBuyerMaker)
	assert.Equal(t, SideAsk, trades[1].Side)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), trades[0].Timestamp)
}

func TestClientTrades_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client, err := NewClient(testExchangeConfig(srv.URL), nil, "", nil)
	require.NoError(t, err)

	_, err = client.Trades(context.Background(), "SOL_USDC", 10)
	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadRequest, statusErr.Status)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClientFills_SignedQuery(t *testing.T) {
	s := testSigner(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wapi/v1/history/fills", r.URL.Path)
		q := r.URL.Query()
		params := map[string]string{"symbol": q.Get("symbol"), "limit": q.Get("limit"), "offset": q.Get("offset")}
		ts, err := strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		require.NoError(t, err)
		assert.Equal(t, s.Sign(signer.Payload("fillHistoryQueryAll", params, ts, 5000)), r.Header.Get("X-Signature"))

		_, _ = w.Write([]byte(`[
			{"fee":"0.01","feeSymbol":"USDC","isMaker":false,"price":"100","quantity":"1","side":"Bid","symbol":"SOL_USDC","timestamp":"2024-05-01T12:00:00.123"},
			{"fee":"0.001","feeSymbol":"SOL","isMaker":true,"price":"101","quantity":"2","side":"Ask","symbol":"SOL_USDC","timestamp":"2024-05-01T12:00:01"}
		]`))
	}))
	defer srv.Close()

	client, err := NewClient(testExchangeConfig(srv.URL), s, "", nil)
	require.NoError(t, err)

	fills, err := client.Fills(context.Background(), "SOL_USDC", 100, 200)
	require.NoError(t, err)
	require.Len(t, fills, 2)
	assert.Equal(t, "USDC", fills[0].FeeSymbol)
	assert.Equal(t, 0.01, fills[0].Fee)
	assert.Equal(t, SideBid, fills[0].Side)
	assert.False(t, fills[0].IsBuyerMaker)
	assert.False(t, fills[1].IsBuyerMaker)
	assert.Equal(t, 2024, fills[0].Timestamp.Year())
}

func TestClientMarkets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"symbol":"SOL_USDC","baseSymbol":"SOL","quoteSymbol":"USDC",
			"filters":{"price":{"tickSize":"0.01"},"quantity":{"stepSize":"0.01","minQuantity":"0.01"}}}]`))
	}))
	defer srv.Close()

	client, err := NewClient(testExchangeConfig(srv.URL), nil, "", nil)
	require.NoError(t, err)

	markets, err := client.Markets(context.Background())
	require.NoError(t, err)
	require.Len(t, markets, 1)
	assert.Equal(t, "SOL_USDC", markets[0].Symbol)
	assert.Equal(t, "SOL", markets[0].BaseSymbol)
	assert.Equal(t, 0.01, markets[0].TickSize)
	assert.Equal(t, 0.01, markets[0].MinQuantity)
}

func TestNewClient_RejectsBadProxy(t *testing.T) {
	_, err := NewClient(testExchangeConfig("http://127.0.0.1"), nil, "http://[::1", nil)
	assert.Error(t, err)
}

func TestOrderRequest_ParamsIncludeOptionalFields(t *testing.T) {
	req := NewLimitOrder(SideBid, "SOL_USDC", 0.1, 150, TimeInForceGTC)
	params := req.Params()
	assert.NotContains(t, params, "postOnly")
	assert.NotContains(t, params, "selfTradePrevention")
	assert.Equal(t, "150.00", params["price"])
	assert.Equal(t, "0.1", params["quantity"])

	req.PostOnly = true
	req.SelfTradePrevention = SelfTradePreventionAllow
	params = req.Params()
	assert.Equal(t, "true", params["postOnly"])
	assert.Equal(t, "Allow", params["selfTradePrevention"])
	assert.True(t, req.Body().PostOnly)
}
