package exchange

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	ccxt "github.com/ccxt/ccxt/go/v4"
	"go.uber.org/zap"

	"backpack-volume/internal/config"
)

// bookFetcher 为参考交易所所需的最小接口。
type bookFetcher interface {
	FetchOrderBook(symbol string, options ...ccxt.FetchOrderBookOptions) (ccxt.OrderBook, error)
}

// TopOfBook 为参考交易所的最优买卖价。
type TopOfBook struct {
	Symbol  string
	BestBid float64
	BestAsk float64
}

// ReferenceClient 从其他交易所读取盘口，用于初始化共享报价。
type ReferenceClient struct {
	cfg      config.ReferenceConfig
	logger   *zap.Logger
	exchange bookFetcher
	load     func() error
	retry    retrier

	marketsMu     sync.Mutex
	marketsLoaded bool
}

// NewReferenceClient 按名称构造 ccxt 参考交易所客户端。
func NewReferenceClient(cfg config.ReferenceConfig, logger *zap.Logger) (*ReferenceClient, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	userConfig := map[string]interface{}{
		"enableRateLimit": true,
	}

	switch strings.ToLower(cfg.Name) {
	case "", "binance":
		ex := ccxt.NewBinance(userConfig)
		return newReferenceClient(cfg, ex, func() error {
			_, err := ex.LoadMarkets()
			return err
		}, logger), nil
	case "binanceusdm":
		ex := ccxt.NewBinanceusdm(userConfig)
		return newReferenceClient(cfg, ex, func() error {
			_, err := ex.LoadMarkets()
			return err
		}, logger), nil
	default:
		return nil, fmt.Errorf("exchange: 不支持的参考交易所 %s", cfg.Name)
	}
}

func newReferenceClient(cfg config.ReferenceConfig, ex bookFetcher, load func() error, logger *zap.Logger) *ReferenceClient {
	if load == nil {
		load = func() error { return nil }
	}
	return &ReferenceClient{
		cfg:      cfg,
		logger:   logger,
		exchange: ex,
		load:     load,
		retry:    retrier{cfg: cfg.Retry, logger: logger, classify: classifyReferenceError},
	}
}

// FetchTopOfBook 获取参考盘口的最优买卖价。
func (c *ReferenceClient) FetchTopOfBook(ctx context.Context) (TopOfBook, error) {
	depth := c.cfg.Depth
	if depth <= 0 {
		depth = 5
	}

	var raw ccxt.OrderBook
	err := c.retry.call(ctx, "fetch_order_book", func() error {
		if err := c.ensureMarketsLoaded(); err != nil {
			return err
		}

		book, err := c.exchange.FetchOrderBook(
			c.cfg.Symbol,
			ccxt.WithFetchOrderBookLimit(depth),
		)
		if err != nil {
			return err
		}

		raw = book
		return nil
	})
	if err != nil {
		return TopOfBook{}, err
	}

	top := TopOfBook{Symbol: c.cfg.Symbol}
	if len(raw.Bids) > 0 && len(raw.Bids[0]) >= 2 {
		top.BestBid = raw.Bids[0][0]
	}
	if len(raw.Asks) > 0 && len(raw.Asks[0]) >= 2 {
		top.BestAsk = raw.Asks[0][0]
	}
	if top.BestBid <= 0 || top.BestAsk <= 0 {
		return TopOfBook{}, fmt.Errorf("exchange: 参考盘口为空 (%s)", c.cfg.Symbol)
	}

	return top, nil
}

func (c *ReferenceClient) ensureMarketsLoaded() error {
	c.marketsMu.Lock()
	defer c.marketsMu.Unlock()

	if c.marketsLoaded {
		return nil
	}

	if err := c.load(); err != nil {
		return err
	}

	c.marketsLoaded = true
	c.logger.Info("已完成参考市场元数据加载", zap.String("symbol", c.cfg.Symbol))
	return nil
}

func classifyReferenceError(err error) (error, bool) {
	if err == nil {
		return nil, false
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) && ccxtErr.Type == ccxt.OnMaintenanceErrType {
		message := strings.TrimSpace(ccxtErr.Message)
		if message == "" {
			message = "exchange under maintenance"
		}
		return fmt.Errorf("%w: %s", ErrMaintenance, message), false
	}

	return err, IsRetryable(err)
}
