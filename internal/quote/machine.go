package quote

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"backpack-volume/internal/account"
	"backpack-volume/internal/exchange"
	"backpack-volume/internal/execution"
	"backpack-volume/internal/oracle"
)

const defaultMaxAttempts = 20

// Sleeper 在 ctx 结束时提前返回。
type Sleeper func(ctx context.Context, d time.Duration) error

// Machine 驱动单个账户的买卖周期：Idle → Buying → Selling → Idle。
// 一个 Machine 同一时刻只运行一个周期。
type Machine struct {
	account   *account.Account
	submitter execution.Submitter
	strategy  oracle.Strategy
	settings  Settings
	logger    *zap.Logger
	sleep     Sleeper

	rngMu sync.Mutex
	rng   *rand.Rand

	stateMu sync.RWMutex
	state   State
}

// Option 配置 Machine。
type Option func(*Machine)

// WithSleeper 替换等待实现，测试中用于跳过真实延时。
func WithSleeper(s Sleeper) Option {
	return func(m *Machine) { m.sleep = s }
}

// WithRand 指定随机源。
func WithRand(rng *rand.Rand) Option {
	return func(m *Machine) { m.rng = rng }
}

// NewMachine 创建状态机。
func NewMachine(acc *account.Account, submitter execution.Submitter, strategy oracle.Strategy, settings Settings, logger *zap.Logger, opts ...Option) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxAttempts <= 0 {
		settings.MaxAttempts = defaultMaxAttempts
	}
	if settings.MaxOrderDelay < settings.MinOrderDelay {
		settings.MaxOrderDelay = settings.MinOrderDelay
	}

	m := &Machine{
		account:   acc,
		submitter: submitter,
		strategy:  strategy,
		settings:  settings,
		logger:    logger.With(zap.String("account", acc.ID)),
		sleep:     sleepContext,
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Account 返回所属账户。
func (m *Machine) Account() *account.Account { return m.account }

// State 返回当前阶段。
func (m *Machine) State() State {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.state
}

func (m *Machine) setState(s State) {
	m.stateMu.Lock()
	m.state = s
	m.stateMu.Unlock()
}

// RunCycle 执行一次完整的买卖周期。数量在周期开始时抽取一次。
func (m *Machine) RunCycle(ctx context.Context) CycleReport {
	report := CycleReport{
		Account:   m.account.ID,
		StartedAt: time.Now().UTC(),
	}
	defer m.setState(StateIdle)

	m.rngMu.Lock()
	quantity := account.RandomQuantity(m.rng, m.settings.MinQuantity, m.settings.MaxQuantity)
	m.rngMu.Unlock()
	report.Quantity = quantity

	err := m.cycle(ctx, quantity, &report)
	report.Err = err
	report.Outcome = outcomeOf(err)
	report.FinishedAt = time.Now().UTC()

	if err != nil {
		m.logger.Warn("买卖周期终止",
			zap.String("outcome", string(report.Outcome)),
			zap.Int("buy_attempts", report.Buy.Attempts),
			zap.Int("sell_attempts", report.Sell.Attempts),
			zap.Error(err),
		)
		return report
	}

	cycles := m.account.CompleteCycle()
	m.logger.Info("买卖周期完成",
		zap.Float64("quantity", quantity),
		zap.Float64("volume", report.Volume),
		zap.Float64("account_volume", m.account.Volume()),
		zap.Int("cycles", cycles),
	)
	return report
}

func (m *Machine) cycle(ctx context.Context, quantity float64, report *CycleReport) error {
	m.setState(StateBuying)
	report.Buy = Leg{Side: exchange.SideBid, Quantity: quantity}
	buy, err := m.runLeg(ctx, &report.Buy)
	if err != nil {
		return err
	}

	if buy.Kind == execution.KindFilled {
		report.Volume += m.settle(buy.FillPrice, report.Buy.Quantity)
		if err := m.sleep(ctx, m.orderDelay()); err != nil {
			return err
		}
	}

	m.setState(StateSelling)
	report.Sell = Leg{Side: exchange.SideAsk, Quantity: quantity}
	sell, err := m.runLeg(ctx, &report.Sell)
	if err != nil {
		return err
	}

	if sell.Kind == execution.KindFilled {
		report.Volume += m.settle(sell.FillPrice, report.Sell.Quantity)
	}
	return nil
}

// runLeg 在最多 MaxAttempts 次尝试内让一条腿成交或挂单。
func (m *Machine) runLeg(ctx context.Context, leg *Leg) (execution.Result, error) {
	for attempt := 1; attempt <= m.settings.MaxAttempts; attempt++ {
		leg.Attempts = attempt

		price, err := m.price(ctx, leg.Side)
		if err != nil {
			if !errors.Is(err, oracle.ErrInsufficientData) {
				return execution.Result{}, fmt.Errorf("quote: 获取 %s 报价失败: %w", leg.Side, err)
			}
			m.logger.Warn("成交样本不足，稍后重试", zap.String("side", string(leg.Side)), zap.Int("attempt", attempt))
			if attempt == m.settings.MaxAttempts {
				break
			}
			if err := m.sleep(ctx, m.settings.RetryDelay); err != nil {
				return execution.Result{}, err
			}
			continue
		}

		leg.Price = price
		result, err := m.submitter.Submit(ctx, m.order(leg.Side, leg.Quantity, price))
		if err != nil {
			return execution.Result{}, err
		}
		leg.Result = result

		switch result.Kind {
		case execution.KindFilled, execution.KindCreated:
			return result, nil

		case execution.KindExpired:
			next := m.expired(leg.Side)
			m.logger.Info("未成交，调整报价后重试",
				zap.String("side", string(leg.Side)),
				zap.Float64("price", price),
				zap.Float64("next", next),
				zap.Int("attempt", attempt),
			)

		case execution.KindOverloaded:
			if leg.Side != exchange.SideAsk || !m.settings.ShrinkOnOverload {
				return result, &ResultError{Side: leg.Side, Result: result}
			}
			shrunk := decimal.NewFromFloat(leg.Quantity).Sub(decimal.NewFromFloat(m.settings.ShrinkStep)).Round(2).InexactFloat64()
			if shrunk <= 0 || shrunk < m.settings.MinQuantityFloor {
				return result, fmt.Errorf("%w: %.2f", ErrQuantityFloor, shrunk)
			}
			m.logger.Warn("卖单过载，缩减数量后重试",
				zap.Float64("quantity", leg.Quantity),
				zap.Float64("next", shrunk),
			)
			leg.Quantity = shrunk

		default:
			return result, &ResultError{Side: leg.Side, Result: result}
		}

		if attempt == m.settings.MaxAttempts {
			break
		}
		if err := m.sleep(ctx, m.settings.RetryDelay); err != nil {
			return execution.Result{}, err
		}
	}

	return leg.Result, fmt.Errorf("%w: %s 腿 %d 次", ErrMaxAttempts, leg.Side, m.settings.MaxAttempts)
}

func (m *Machine) price(ctx context.Context, side exchange.Side) (float64, error) {
	if side == exchange.SideBid {
		return m.strategy.BidPrice(ctx)
	}
	return m.strategy.AskPrice(ctx)
}

func (m *Machine) expired(side exchange.Side) float64 {
	if side == exchange.SideBid {
		return m.strategy.BidExpired()
	}
	return m.strategy.AskExpired()
}

// settle 记录成交额并通知策略，返回本次成交额。
func (m *Machine) settle(price, quantity float64) float64 {
	notional := decimal.NewFromFloat(price).Mul(decimal.NewFromFloat(quantity)).Round(2).InexactFloat64()
	m.account.AddVolume(notional)
	m.strategy.Filled()
	return notional
}

func (m *Machine) order(side exchange.Side, quantity, price float64) exchange.OrderRequest {
	req := exchange.NewLimitOrder(side, m.settings.Symbol, quantity, price, m.settings.TimeInForce)
	req.PostOnly = m.settings.PostOnly
	if side == exchange.SideAsk {
		req.SelfTradePrevention = m.settings.SelfTradePrevention
	}
	return req
}

func (m *Machine) orderDelay() time.Duration {
	lo, hi := m.settings.MinOrderDelay, m.settings.MaxOrderDelay
	if hi <= lo {
		return lo
	}
	m.rngMu.Lock()
	defer m.rngMu.Unlock()
	return lo + time.Duration(m.rng.Int63n(int64(hi-lo)+1))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
