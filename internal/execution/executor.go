package execution

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"backpack-volume/internal/exchange"
)

type orderClient interface {
	PlaceOrder(ctx context.Context, req exchange.OrderRequest) ([]byte, error)
}

// ResultRecorder 接收每一次下单结果，通常由监控服务实现。
type ResultRecorder interface {
	RecordOrder(ctx context.Context, account string, req exchange.OrderRequest, result Result) error
}

// Executor 以单个账户身份提交订单并对响应分类。
type Executor struct {
	client   orderClient
	account  string
	recorder ResultRecorder
	logger   *zap.Logger
}

// Option 配置 Executor。
type Option func(*Executor)

// WithRecorder 为执行器挂载结果记录器。
func WithRecorder(r ResultRecorder) Option {
	return func(e *Executor) { e.recorder = r }
}

// NewExecutor 创建执行器。
func NewExecutor(client orderClient, account string, logger *zap.Logger, opts ...Option) *Executor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Executor{
		client:  client,
		account: account,
		logger:  logger.With(zap.String("account", account)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Account 返回执行器绑定的账户标识。
func (e *Executor) Account() string { return e.account }

// Submit 下单并分类结果。传输失败与签名失败以 error 返回，不进入结果变体。
func (e *Executor) Submit(ctx context.Context, req exchange.OrderRequest) (Result, error) {
	if e.client == nil {
		return Result{}, fmt.Errorf("execution: 未配置下单客户端")
	}

	body, err := e.client.PlaceOrder(ctx, req)
	if err != nil {
		e.logger.Error("下单请求失败",
			zap.String("side", string(req.Side)),
			zap.Float64("price", req.Price),
			zap.Float64("quantity", req.Quantity),
			zap.Error(err),
		)
		return Result{}, fmt.Errorf("execution: 提交 %s 订单失败: %w", req.Side, err)
	}

	result := Classify(body, req.Price)
	e.log(req, result)

	if e.recorder != nil {
		if err := e.recorder.RecordOrder(ctx, e.account, req, result); err != nil {
			e.logger.Warn("记录下单结果失败", zap.Error(err))
		}
	}

	return result, nil
}

func (e *Executor) log(req exchange.OrderRequest, result Result) {
	fields := []zap.Field{
		zap.String("side", string(req.Side)),
		zap.String("symbol", req.Symbol),
		zap.Float64("price", req.Price),
		zap.Float64("quantity", req.Quantity),
		zap.String("result", result.String()),
	}

	switch result.Kind {
	case KindFilled:
		e.logger.Info("订单已成交", append(fields, zap.Float64("fill_price", result.FillPrice))...)
	case KindCreated:
		e.logger.Info("订单已挂单", fields...)
	case KindExpired:
		e.logger.Warn("订单未成交已过期", fields...)
	case KindInsufficientFunds:
		e.logger.Error("余额不足", fields...)
	case KindOverloaded:
		e.logger.Error("交易所过载或响应残缺", append(fields, zap.String("raw", result.Raw))...)
	default:
		e.logger.Error("无法识别的下单响应", append(fields, zap.String("raw", result.Raw))...)
	}
}
