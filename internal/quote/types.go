package quote

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"backpack-volume/internal/config"
	"backpack-volume/internal/exchange"
	"backpack-volume/internal/execution"
)

// State 为状态机所处阶段。
type State string

const (
	StateIdle    State = "idle"
	StateBuying  State = "buying"
	StateSelling State = "selling"
)

// Outcome 为单个周期的最终结果。
type Outcome string

const (
	OutcomeCompleted         Outcome = "completed"
	OutcomeInsufficientFunds Outcome = "insufficient_funds"
	OutcomeOverloaded        Outcome = "overloaded"
	OutcomeUnexpected        Outcome = "unexpected"
	OutcomeMaxAttempts       Outcome = "max_attempts"
	OutcomeQuantityFloor     Outcome = "quantity_floor"
	OutcomeError             Outcome = "error"
	OutcomeCancelled         Outcome = "cancelled"
)

var (
	// ErrMaxAttempts 表示单腿重试次数耗尽。
	ErrMaxAttempts = errors.New("quote: 超过最大尝试次数")
	// ErrQuantityFloor 表示缩量后低于下限。
	ErrQuantityFloor = errors.New("quote: 下单数量低于下限")
)

// ResultError 表示交易所返回了终止周期的结果。
type ResultError struct {
	Side   exchange.Side
	Result execution.Result
}

func (e *ResultError) Error() string {
	return fmt.Sprintf("quote: %s 腿终止: %s", e.Side, e.Result)
}

// Settings 为状态机的下单与节奏参数。
type Settings struct {
	Symbol              string
	MinQuantity         float64
	MaxQuantity         float64
	MinQuantityFloor    float64
	TimeInForce         string
	SelfTradePrevention string
	PostOnly            bool

	MaxAttempts      int
	RetryDelay       time.Duration
	MinOrderDelay    time.Duration
	MaxOrderDelay    time.Duration
	ShrinkOnOverload bool
	ShrinkStep       float64
}

// SettingsFromConfig 从配置组装参数。
func SettingsFromConfig(trading config.TradingConfig, cycle config.CycleConfig) Settings {
	return Settings{
		Symbol:              trading.Symbol,
		MinQuantity:         trading.MinQuantity,
		MaxQuantity:         trading.MaxQuantity,
		MinQuantityFloor:    trading.MinQuantityFloor,
		TimeInForce:         strings.ToUpper(trading.TimeInForce),
		SelfTradePrevention: trading.SelfTradePrevention,
		PostOnly:            trading.PostOnly,
		MaxAttempts:         cycle.MaxAttempts,
		RetryDelay:          cycle.RetryDelay,
		MinOrderDelay:       cycle.MinOrderDelay,
		MaxOrderDelay:       cycle.MaxOrderDelay,
		ShrinkOnOverload:    cycle.ShrinkOnOverload,
		ShrinkStep:          cycle.ShrinkStep,
	}
}

// Leg 记录一条腿的执行情况。
type Leg struct {
	Side     exchange.Side    `json:"side"`
	Attempts int              `json:"attempts"`
	Price    float64          `json:"price"`
	Quantity float64          `json:"quantity"`
	Result   execution.Result `json:"result"`
}

// CycleReport 汇总一次买卖周期。
type CycleReport struct {
	Account    string    `json:"account"`
	Quantity   float64   `json:"quantity"`
	Buy        Leg       `json:"buy"`
	Sell       Leg       `json:"sell"`
	Volume     float64   `json:"volume"`
	Outcome    Outcome   `json:"outcome"`
	Err        error     `json:"-"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Succeeded 表示卖腿已成交或挂单。
func (r CycleReport) Succeeded() bool { return r.Outcome == OutcomeCompleted }

// outcomeOf 将终止错误映射为周期结果。
func outcomeOf(err error) Outcome {
	if err == nil {
		return OutcomeCompleted
	}

	var resErr *ResultError
	switch {
	case errors.As(err, &resErr):
		switch resErr.Result.Kind {
		case execution.KindInsufficientFunds:
			return OutcomeInsufficientFunds
		case execution.KindOverloaded:
			return OutcomeOverloaded
		default:
			return OutcomeUnexpected
		}
	case errors.Is(err, ErrMaxAttempts):
		return OutcomeMaxAttempts
	case errors.Is(err, ErrQuantityFloor):
		return OutcomeQuantityFloor
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCancelled
	default:
		return OutcomeError
	}
}
