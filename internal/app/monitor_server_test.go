package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"backpack-volume/internal/account"
	"backpack-volume/internal/monitor"
	"backpack-volume/internal/oracle"
)

type MockEventStore struct {
	mock.Mock
}

func (m *MockEventStore) ListEvents(ctx context.Context, eventType monitor.EventType, limit int) ([]monitor.Event, error) {
	args := m.Called(ctx, eventType, limit)
	return args.Get(0).([]monitor.Event), args.Error(1)
}

func (m *MockEventStore) AccountStats(ctx context.Context) ([]monitor.AccountStats, error) {
	args := m.Called(ctx)
	return args.Get(0).([]monitor.AccountStats), args.Error(1)
}

type staticState struct {
	quote    quoteState
	accounts []account.Snapshot
}

func (s staticState) QuoteState() quoteState               { return s.quote }
func (s staticState) AccountSnapshots() []account.Snapshot { return s.accounts }

func serve(api *monitorAPI, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	api.routes().ServeHTTP(w, req)
	return w
}

func TestMonitorAPI_EventsClampsLimitAndNormalisesType(t *testing.T) {
	store := new(MockEventStore)
	events := []monitor.Event{{Type: monitor.EventOrder, Timestamp: time.Unix(0, 0).UTC(), Payload: map[string]interface{}{"account": "acc-01"}}}
	store.On("ListEvents", mock.Anything, monitor.EventOrder, 1000).Return(events, nil)

	api := newMonitorAPI(store, staticState{}, nil)
	w := serve(api, httptest.NewRequest(http.MethodGet, "/events?type=ORDER&limit=5000", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	var got []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "order", got[0]["type"])
	store.AssertExpectations(t)
}

func TestMonitorAPI_EventsDefaultLimit(t *testing.T) {
	store := new(MockEventStore)
	store.On("ListEvents", mock.Anything, monitor.EventType(""), 200).Return([]monitor.Event{}, nil)

	api := newMonitorAPI(store, staticState{}, nil)
	w := serve(api, httptest.NewRequest(http.MethodGet, "/events?limit=abc", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	store.AssertExpectations(t)
}

func TestMonitorAPI_QuoteAndAccounts(t *testing.T) {
	store := new(MockEventStore)
	store.On("AccountStats", mock.Anything).Return([]monitor.AccountStats{{Account: "acc-01", Orders: 2, Filled: 1, FilledVolume: 100}}, nil)

	state := staticState{
		quote:    quoteState{Strategy: "bias", Source: oracle.SeedConfigured, Quote: oracle.QuoteSnapshot{Bid: 100, Ask: 101, Bias: 0.12}},
		accounts: []account.Snapshot{{ID: "acc-01", Volume: 100, Cycles: 1}},
	}
	api := newMonitorAPI(store, state, nil)

	w := serve(api, httptest.NewRequest(http.MethodGet, "/quote", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var q quoteState
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &q))
	assert.Equal(t, state.quote, q)

	w = serve(api, httptest.NewRequest(http.MethodGet, "/accounts", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Accounts []account.Snapshot    `json:"accounts"`
		Orders   []monitor.AccountStats `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, state.accounts, body.Accounts)
	assert.Equal(t, 100.0, body.Orders[0].FilledVolume)
}

func TestMonitorAPI_ErrorCarriesRequestID(t *testing.T) {
	store := new(MockEventStore)
	store.On("AccountStats", mock.Anything).Return([]monitor.AccountStats(nil), errors.New("db closed"))

	api := newMonitorAPI(store, staticState{}, nil)
	req := httptest.NewRequest(http.MethodGet, "/accounts", nil)
	req.Header.Set(requestIDHeader, "req-123")
	w := serve(api, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "req-123", w.Header().Get(requestIDHeader))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "req-123", body["request_id"])
}

func TestMonitorAPI_Health(t *testing.T) {
	api := newMonitorAPI(new(MockEventStore), staticState{}, nil)
	w := serve(api, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
