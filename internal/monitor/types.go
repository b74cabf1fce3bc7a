package monitor

import (
	"time"

	"backpack-volume/internal/exchange"
	"backpack-volume/internal/execution"
	"backpack-volume/internal/fleet"
	"backpack-volume/internal/oracle"
	"backpack-volume/internal/quote"
)

// EventType 表示监控事件类型。
type EventType string

const (
	EventOrder  EventType = "order"
	EventCycle  EventType = "cycle"
	EventCircle EventType = "circle"
	EventQuote  EventType = "quote"
	EventError  EventType = "error"
)

// Event 封装通用监控事件。
type Event struct {
	Type      EventType   `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Payload   interface{} `json:"payload"`
}

// OrderPayload 记录单笔下单结果。
type OrderPayload struct {
	Account  string           `json:"account"`
	Side     exchange.Side    `json:"side"`
	Symbol   string           `json:"symbol"`
	Price    float64          `json:"price"`
	Quantity float64          `json:"quantity"`
	Result   execution.Result `json:"result"`
}

// CyclePayload 记录账户一次买卖周期。
type CyclePayload struct {
	Circle string            `json:"circle"`
	Report quote.CycleReport `json:"report"`
	Error  string            `json:"error,omitempty"`
}

// CirclePayload 记录一轮汇总，不含逐账户明细。
type CirclePayload struct {
	ID        string        `json:"id"`
	Index     int           `json:"index"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Volume    float64       `json:"volume"`
	Elapsed   time.Duration `json:"elapsed"`
}

// QuotePayload 记录共享报价快照。
type QuotePayload struct {
	Strategy string               `json:"strategy"`
	Source   string               `json:"source,omitempty"`
	Quote    oracle.QuoteSnapshot `json:"quote"`
}

// ErrorPayload 记录异常。
type ErrorPayload struct {
	Message string                 `json:"message"`
	Error   string                 `json:"error"`
	Context map[string]interface{} `json:"context,omitempty"`
}

// AccountStats 为按账户聚合的下单统计。
type AccountStats struct {
	Account      string  `json:"account"`
	Orders       int     `json:"orders"`
	Filled       int     `json:"filled"`
	Expired      int     `json:"expired"`
	Failed       int     `json:"failed"`
	FilledVolume float64 `json:"filled_volume"`
}

func circlePayload(r fleet.CircleReport) CirclePayload {
	return CirclePayload{
		ID:        r.ID,
		Index:     r.Index,
		Succeeded: r.Succeeded,
		Failed:    r.Failed,
		Skipped:   r.Skipped,
		Volume:    r.Volume,
		Elapsed:   r.FinishedAt.Sub(r.StartedAt),
	}
}
