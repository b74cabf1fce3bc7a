package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"backpack-volume/internal/config"
	"backpack-volume/internal/monitor"
	"backpack-volume/internal/store"
)

// 运行模式。
const (
	ModeRun     = "run"
	ModeMarkets = "markets"
	ModeVolume  = "volume"
)

// App 聚合核心依赖并驱动系统生命周期。
type App struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *store.Store
	out    io.Writer
}

// New 创建 App 实例。out 用于 markets/volume 模式的输出。
func New(cfg *config.Config, logger *zap.Logger, store *store.Store, out io.Writer) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if out == nil {
		out = io.Discard
	}
	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		out:    out,
	}
}

// Execute 按模式分派。
func (a *App) Execute(ctx context.Context, mode string) error {
	switch mode {
	case "", ModeRun:
		return a.Run(ctx)
	case ModeMarkets:
		return a.Markets(ctx)
	case ModeVolume:
		return a.Volume(ctx)
	default:
		return fmt.Errorf("未知运行模式 %q", mode)
	}
}

// Run 初始化报价与账户，按轮次运行刷量直到完成或收到退出信号。
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("刷量系统已初始化",
		zap.String("environment", a.cfg.App.Environment),
		zap.String("symbol", a.cfg.Trading.Symbol),
		zap.String("strategy", a.cfg.Quote.Strategy),
		zap.Bool("simulation", a.cfg.Execution.Simulation),
	)

	monitorSvc, err := monitor.NewService(a.store, a.logger)
	if err != nil {
		return fmt.Errorf("初始化监控服务失败: %w", err)
	}

	rt, err := newRuntime(ctx, a.cfg, monitorSvc, a.logger)
	if err != nil {
		monitorSvc.RecordError(ctx, "初始化运行时失败", err, nil)
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	if rt.stream != nil {
		go func() {
			if err := rt.stream.Run(runCtx); err != nil {
				a.logger.Warn("成交流退出", zap.Error(err))
			}
		}()
	}

	if a.cfg.Monitor.Enabled {
		api := newMonitorAPI(monitorSvc, rt, a.logger)
		if err := startMonitorServer(runCtx, api, a.cfg.Monitor.Port, a.logger); err != nil {
			return err
		}
	}

	reports, err := rt.fleet.Run(runCtx)
	if err != nil {
		monitorSvc.RecordError(ctx, "刷量运行失败", err, nil)
		return err
	}

	var total float64
	for _, acc := range rt.accounts {
		snap := acc.Snapshot()
		total += snap.Volume
		a.logger.Info("账户累计成交额",
			zap.String("account", snap.ID),
			zap.Int("cycles", snap.Cycles),
			zap.Float64("volume", snap.Volume),
		)
	}
	a.logger.Info("刷量结束", zap.Int("circles", len(reports)), zap.Float64("volume", total))

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("系统异常退出: %w", err)
	}
	return nil
}
