package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type streamEnvelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

type streamTrade struct {
	Event        string          `json:"e"`
	Symbol       string          `json:"s"`
	Price        decimal.Decimal `json:"p"`
	Quantity     decimal.Decimal `json:"q"`
	IsBuyerMaker bool            `json:"m"`
	TradeTime    int64           `json:"T"`
}

// TradeStream 订阅公开成交推送，并保留最近 capacity 条成交。
type TradeStream struct {
	url      string
	symbol   string
	capacity int
	logger   *zap.Logger
	dialer   *websocket.Dialer

	reconnectDelay time.Duration

	mu     sync.RWMutex
	window []TradeHistoryPoint
	next   int
	filled bool
}

// NewTradeStream 创建成交流。
func NewTradeStream(wsURL, symbol string, capacity int, logger *zap.Logger) *TradeStream {
	if logger == nil {
		logger = zap.NewNop()
	}
	if capacity <= 0 {
		capacity = 100
	}
	return &TradeStream{
		url:            wsURL,
		symbol:         symbol,
		capacity:       capacity,
		logger:         logger,
		dialer:         websocket.DefaultDialer,
		reconnectDelay: 5 * time.Second,
		window:         make([]TradeHistoryPoint, capacity),
	}
}

// Run 保持连接直到 ctx 结束，断线后按固定间隔重连。
func (s *TradeStream) Run(ctx context.Context) error {
	for {
		if err := s.session(ctx); err != nil && ctx.Err() == nil {
			s.logger.Warn("成交流断开，等待重连",
				zap.String("symbol", s.symbol),
				zap.Duration("wait", s.reconnectDelay),
				zap.Error(err),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnectDelay):
		}
	}
}

func (s *TradeStream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("exchange: 连接成交流失败: %w", err)
	}
	defer conn.Close()

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	subscribe := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": []string{"trade." + s.symbol},
	}
	if err := conn.WriteJSON(subscribe); err != nil {
		return fmt.Errorf("exchange: 订阅成交流失败: %w", err)
	}

	s.logger.Info("已连接成交流", zap.String("symbol", s.symbol))

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		if err := s.handleMessage(message); err != nil {
			s.logger.Debug("忽略无法解析的推送", zap.Error(err))
		}
	}
}

func (s *TradeStream) handleMessage(raw []byte) error {
	var env streamEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return err
	}
	if len(env.Data) == 0 {
		return nil
	}

	var trade streamTrade
	if err := json.Unmarshal(env.Data, &trade); err != nil {
		return err
	}
	if trade.Event != "trade" {
		return nil
	}

	side := SideBid
	if trade.IsBuyerMaker {
		side = SideAsk
	}
	s.push(TradeHistoryPoint{
		Price:        trade.Price.InexactFloat64(),
		Quantity:     trade.Quantity.InexactFloat64(),
		IsBuyerMaker: trade.IsBuyerMaker,
		Side:         side,
		Timestamp:    time.UnixMicro(trade.TradeTime).UTC(),
	})
	return nil
}

func (s *TradeStream) push(p TradeHistoryPoint) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.window[s.next] = p
	s.next = (s.next + 1) % s.capacity
	if s.next == 0 {
		s.filled = true
	}
}

// Recent 返回窗口内成交，按到达顺序排列。
func (s *TradeStream) Recent() []TradeHistoryPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.filled {
		return append([]TradeHistoryPoint(nil), s.window[:s.next]...)
	}

	out := make([]TradeHistoryPoint, 0, s.capacity)
	out = append(out, s.window[s.next:]...)
	out = append(out, s.window[:s.next]...)
	return out
}
