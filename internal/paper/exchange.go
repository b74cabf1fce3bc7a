package paper

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"backpack-volume/internal/exchange"
)

const (
	defaultStartPrice = 150
	historySeed       = 20
	historyCapacity   = 500
)

type orderResponse struct {
	ID                    string `json:"id"`
	Symbol                string `json:"symbol"`
	Side                  string `json:"side"`
	OrderType             string `json:"orderType"`
	TimeInForce           string `json:"timeInForce"`
	Status                string `json:"status"`
	Price                 string `json:"price"`
	Quantity              string `json:"quantity"`
	ExecutedQuantity      string `json:"executedQuantity"`
	ExecutedQuoteQuantity string `json:"executedQuoteQuantity"`
	CreatedAt             int64  `json:"createdAt"`
}

// Exchange 为随机游走的模拟撮合，用于无密钥的试运行。
// 买单价格不低于中间价、卖单价格不高于中间价时立即成交。
type Exchange struct {
	mu         sync.Mutex
	price      float64
	volatility float64
	rng        *rand.Rand
	now        func() time.Time
	logger     *zap.Logger

	trades     []exchange.TradeHistoryPoint
	fills      int
	fillVolume float64
}

// NewExchange 创建模拟撮合。volatility 为每次下单前价格随机游走的相对步长。
func NewExchange(startPrice, volatility float64, seed int64, logger *zap.Logger) *Exchange {
	if startPrice <= 0 {
		startPrice = defaultStartPrice
	}
	if volatility < 0 {
		volatility = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	e := &Exchange{
		price:      startPrice,
		volatility: volatility,
		rng:        rand.New(rand.NewSource(seed)),
		now:        time.Now,
		logger:     logger,
	}
	e.seedHistory()
	return e
}

// Price 返回当前中间价。
func (e *Exchange) Price() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.price
}

// Stats 返回成交笔数与成交额。
func (e *Exchange) Stats() (fills int, volume float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.fills, e.fillVolume
}

// PlaceOrder 撮合一笔限价单并返回 Backpack 形态的响应体。
func (e *Exchange) PlaceOrder(ctx context.Context, req exchange.OrderRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	mid := e.advance()

	resp := orderResponse{
		ID:                    uuid.NewString(),
		Symbol:                req.Symbol,
		Side:                  string(req.Side),
		OrderType:             req.OrderType,
		TimeInForce:           req.TimeInForce,
		Price:                 req.PriceString(),
		Quantity:              req.QuantityString(),
		ExecutedQuantity:      "0",
		ExecutedQuoteQuantity: "0",
		CreatedAt:             e.now().UnixMilli(),
	}

	if crosses(req, mid) {
		quote := decimal.NewFromFloat(req.Price).Mul(decimal.NewFromFloat(req.Quantity)).Round(4)
		resp.Status = "Filled"
		resp.ExecutedQuantity = resp.Quantity
		resp.ExecutedQuoteQuantity = quote.String()

		e.fills++
		e.fillVolume += quote.InexactFloat64()
		e.record(exchange.TradeHistoryPoint{
			Price:        req.Price,
			Quantity:     req.Quantity,
			IsBuyerMaker: req.Side == exchange.SideAsk,
			Side:         req.Side,
			Timestamp:    e.now().UTC(),
		})
	} else if req.TimeInForce == exchange.TimeInForceGTC {
		resp.Status = "New"
	} else {
		resp.Status = "Expired"
	}

	e.logger.Debug("模拟撮合",
		zap.String("side", string(req.Side)),
		zap.Float64("price", req.Price),
		zap.Float64("mid", mid),
		zap.String("status", resp.Status),
	)

	body, err := json.Marshal(resp)
	if err != nil {
		return nil, fmt.Errorf("paper: 序列化响应失败: %w", err)
	}
	return body, nil
}

// Trades 返回最近的模拟成交，与 REST 接口一致按时间倒序。
func (e *Exchange) Trades(ctx context.Context, symbol string, limit int) ([]exchange.TradeHistoryPoint, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	n := len(e.trades)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]exchange.TradeHistoryPoint, 0, n)
	for i := len(e.trades) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, e.trades[i])
	}
	return out, nil
}

func crosses(req exchange.OrderRequest, mid float64) bool {
	switch req.Side {
	case exchange.SideBid:
		return req.Price >= mid
	case exchange.SideAsk:
		return req.Price <= mid
	default:
		return false
	}
}

func (e *Exchange) advance() float64 {
	if e.volatility > 0 {
		step := e.rng.NormFloat64() * e.volatility
		e.price = decimal.NewFromFloat(e.price * (1 + step)).Round(2).InexactFloat64()
		if e.price <= 0 {
			e.price = 0.01
		}
	}
	return e.price
}

func (e *Exchange) seedHistory() {
	start := e.now().Add(-time.Duration(historySeed) * time.Second)
	for i := 0; i < historySeed; i++ {
		maker := i%2 == 1
		side := exchange.SideBid
		if maker {
			side = exchange.SideAsk
		}
		e.record(exchange.TradeHistoryPoint{
			Price:        e.advance(),
			Quantity:     1,
			IsBuyerMaker: maker,
			Side:         side,
			Timestamp:    start.Add(time.Duration(i) * time.Second).UTC(),
		})
	}
}

func (e *Exchange) record(p exchange.TradeHistoryPoint) {
	e.trades = append(e.trades, p)
	if len(e.trades) > historyCapacity {
		e.trades = append([]exchange.TradeHistoryPoint(nil), e.trades[len(e.trades)-historyCapacity:]...)
	}
}
