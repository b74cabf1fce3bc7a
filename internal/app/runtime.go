package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"backpack-volume/internal/account"
	"backpack-volume/internal/config"
	"backpack-volume/internal/exchange"
	"backpack-volume/internal/execution"
	"backpack-volume/internal/fleet"
	"backpack-volume/internal/monitor"
	"backpack-volume/internal/oracle"
	"backpack-volume/internal/paper"
	"backpack-volume/internal/quote"
	"backpack-volume/internal/signer"
)

// tradeLister 为公开成交查询能力，实盘由 REST 客户端提供，模拟时由 paper 提供。
type tradeLister interface {
	Trades(ctx context.Context, symbol string, limit int) ([]exchange.TradeHistoryPoint, error)
}

type orderPlacer interface {
	PlaceOrder(ctx context.Context, req exchange.OrderRequest) ([]byte, error)
}

// runtime 持有一次运行所需的全部组件。
type runtime struct {
	strategy oracle.Strategy
	shared   *oracle.SharedQuote
	median   *oracle.MedianStrategy
	source   string

	accounts []*account.Account
	fleet    *fleet.Orchestrator
	stream   *exchange.TradeStream
}

func newRuntime(ctx context.Context, cfg *config.Config, monitorSvc *monitor.Service, logger *zap.Logger) (*runtime, error) {
	accounts, err := loadAccounts(cfg, logger)
	if err != nil {
		return nil, err
	}

	var (
		lister  tradeLister
		paperEx *paper.Exchange
	)
	if cfg.Execution.Simulation {
		paperEx = paper.NewExchange(cfg.Execution.SimStartPrice, cfg.Execution.SimVolatility, time.Now().UnixNano(), logger)
		lister = paperEx
		logger.Info("执行器处于模拟模式", zap.Float64("start_price", paperEx.Price()))
	} else {
		public, err := exchange.NewClient(cfg.Exchange, nil, "", logger)
		if err != nil {
			return nil, fmt.Errorf("初始化行情客户端失败: %w", err)
		}
		lister = public
	}

	rt := &runtime{accounts: accounts}
	if err := rt.buildStrategy(ctx, cfg, lister, logger); err != nil {
		return nil, err
	}
	monitorSvc.RecordQuote(ctx, rt.strategy.Name(), rt.source, rt.QuoteState().Quote)

	settings := quote.SettingsFromConfig(cfg.Trading, cfg.Cycle)
	units := make([]fleet.Unit, 0, len(accounts))
	for _, acc := range accounts {
		var client orderPlacer
		if paperEx != nil {
			client = paperEx
		} else {
			s, err := signer.New(acc.Credential.PublicKey, acc.Credential.PrivateKey, cfg.Exchange.Window)
			if err != nil {
				monitorSvc.RecordError(ctx, "账户私钥无效", err, map[string]interface{}{"account": acc.ID})
				units = append(units, fleet.Unit{ID: acc.ID, Err: err})
				continue
			}
			rest, err := exchange.NewClient(cfg.Exchange, s, acc.Proxy, logger)
			if err != nil {
				units = append(units, fleet.Unit{ID: acc.ID, Err: err})
				continue
			}
			client = rest
		}

		executor := execution.NewExecutor(client, acc.ID, logger, execution.WithRecorder(monitorSvc))
		machine := quote.NewMachine(acc, executor, rt.strategy, settings, logger)
		units = append(units, fleet.Unit{ID: acc.ID, Runner: machine})
	}

	rt.fleet = fleet.New(units, cfg.Fleet, logger, fleet.WithRecorder(monitorSvc))
	return rt, nil
}

func (rt *runtime) buildStrategy(ctx context.Context, cfg *config.Config, lister tradeLister, logger *zap.Logger) error {
	switch strings.ToLower(cfg.Quote.Strategy) {
	case "median":
		var source oracle.TradeSource
		if strings.EqualFold(cfg.Quote.Source, "stream") && !cfg.Execution.Simulation {
			rt.stream = exchange.NewTradeStream(cfg.Exchange.WSURL, cfg.Trading.Symbol, cfg.Quote.HistoryLimit, logger)
			source = oracle.NewStreamSource(rt.stream)
		} else {
			source = oracle.NewRESTSource(lister, cfg.Trading.Symbol, cfg.Quote.HistoryLimit)
		}
		rt.median = oracle.NewMedianStrategy(source, cfg.Quote.Bias)
		rt.strategy = rt.median
		rt.source = cfg.Quote.Source
		return nil

	default:
		var reference *exchange.ReferenceClient
		if cfg.Reference.Enabled && !cfg.Execution.Simulation {
			ref, err := exchange.NewReferenceClient(cfg.Reference, logger)
			if err != nil {
				logger.Warn("参考交易所不可用，跳过", zap.Error(err))
			} else {
				reference = ref
			}
		}

		bid, ask := cfg.Quote.InitialBid, cfg.Quote.InitialAsk
		var snapshot exchange.MarketSnapshot
		if bid <= 0 || ask <= 0 {
			svc := exchange.NewMarketDataService(lister, reference, logger)
			snap, err := svc.GetSnapshot(ctx, cfg.Trading.Symbol, cfg.Quote.HistoryLimit)
			if err != nil {
				return fmt.Errorf("获取初始行情失败: %w", err)
			}
			snapshot = snap
		}

		bid, ask, source, err := oracle.InitialPrices(bid, ask, snapshot)
		if err != nil {
			return err
		}
		rt.shared = oracle.NewSharedQuote(bid, ask, cfg.Quote.Bias, cfg.Quote.HardMultiplier)
		rt.strategy = oracle.NewBiasStrategy(rt.shared, cfg.Quote.Biased)
		rt.source = source

		logger.Info("初始报价已确定",
			zap.String("source", source),
			zap.Float64("bid", bid),
			zap.Float64("ask", ask),
			zap.Float64("bias", cfg.Quote.Bias),
		)
		return nil
	}
}

// loadAccounts 读取账户文件；模拟模式下文件缺失时使用一个占位账户。
func loadAccounts(cfg *config.Config, logger *zap.Logger) ([]*account.Account, error) {
	accounts, err := account.Load(cfg.Accounts)
	if err == nil {
		logger.Info("账户已加载", zap.Int("accounts", len(accounts)))
		return accounts, nil
	}
	if !cfg.Execution.Simulation {
		return nil, fmt.Errorf("加载账户失败: %w", err)
	}

	if errors.Is(err, account.ErrCountMismatch) {
		return nil, fmt.Errorf("加载账户失败: %w", err)
	}
	logger.Warn("模拟模式未找到账户文件，使用占位账户", zap.Error(err))
	return []*account.Account{account.New("paper-01", account.Credential{PublicKey: "paper"}, "")}, nil
}

// quoteState 为报价的只读视图。
type quoteState struct {
	Strategy string               `json:"strategy"`
	Source   string               `json:"source,omitempty"`
	Offsets  bool                 `json:"offsets"`
	Quote    oracle.QuoteSnapshot `json:"quote"`
}

// QuoteState 返回当前共享报价；中位数策略返回偏移量。
func (rt *runtime) QuoteState() quoteState {
	state := quoteState{Strategy: rt.strategy.Name(), Source: rt.source}
	switch {
	case rt.shared != nil:
		state.Quote = rt.shared.Snapshot()
	case rt.median != nil:
		state.Quote = rt.median.Offsets()
		state.Offsets = true
	}
	return state
}

// AccountSnapshots 返回所有账户状态。
func (rt *runtime) AccountSnapshots() []account.Snapshot {
	out := make([]account.Snapshot, 0, len(rt.accounts))
	for _, acc := range rt.accounts {
		out = append(out, acc.Snapshot())
	}
	return out
}
