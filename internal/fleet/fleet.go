package fleet

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"backpack-volume/internal/config"
	"backpack-volume/internal/quote"
)

// CycleRunner 执行单个账户的一次买卖周期。
type CycleRunner interface {
	RunCycle(ctx context.Context) quote.CycleReport
}

// Unit 为参与轮次的账户。Err 非空表示账户初始化失败（如私钥无效），整个运行期间跳过。
type Unit struct {
	ID     string
	Runner CycleRunner
	Err    error
}

// Recorder 接收周期与轮次结果。
type Recorder interface {
	RecordCycle(ctx context.Context, circleID string, report quote.CycleReport) error
	RecordCircle(ctx context.Context, report CircleReport) error
}

// CircleReport 汇总一轮内所有账户的结果。
type CircleReport struct {
	ID         string              `json:"id"`
	Index      int                 `json:"index"`
	Cycles     []quote.CycleReport `json:"cycles"`
	Succeeded  int                 `json:"succeeded"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
	Volume     float64             `json:"volume"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
}

// Orchestrator 按轮次并发驱动所有账户。
type Orchestrator struct {
	units    []Unit
	cfg      config.FleetConfig
	recorder Recorder
	logger   *zap.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	newID    func() string
}

// Option 配置 Orchestrator。
type Option func(*Orchestrator)

// WithRecorder 挂载结果记录器。
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// WithSleeper 替换轮次间等待实现。
func WithSleeper(s func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = s }
}

// New 创建编排器。
func New(units []Unit, cfg config.FleetConfig, logger *zap.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		units:  units,
		cfg:    cfg,
		logger: logger,
		sleep:  sleepContext,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	for _, u := range units {
		if u.Err != nil || u.Runner == nil {
			o.logger.Error("账户初始化失败，本次运行跳过", zap.String("account", u.ID), zap.Error(u.Err))
		}
	}
	return o
}

// Active 返回可运行的账户数。
func (o *Orchestrator) Active() int {
	n := 0
	for _, u := range o.units {
		if u.Err == nil && u.Runner != nil {
			n++
		}
	}
	return n
}

// Run 执行配置的轮数；circles 为 0 时持续运行直到 ctx 结束。
func (o *Orchestrator) Run(ctx context.Context) ([]CircleReport, error) {
	if o.Active() == 0 {
		return nil, errors.New("fleet: 没有可运行的账户")
	}

	var reports []CircleReport
	for index := 1; o.cfg.Circles <= 0 || index <= o.cfg.Circles; index++ {
		if err := ctx.Err(); err != nil {
			return reports, nil
		}

		reports = append(reports, o.RunCircle(ctx, index))

		if o.cfg.Circles > 0 && index == o.cfg.Circles {
			break
		}
		o.logger.Info("等待下一轮", zap.Int("next", index+1), zap.Duration("delay", o.cfg.CircleDelay))
		if err := o.sleep(ctx, o.cfg.CircleDelay); err != nil {
			return reports, nil
		}
	}
	return reports, nil
}

// RunCircle 为每个账户并发启动一个周期，并等待全部结束。
// 单个账户失败不会取消其他账户。
func (o *Orchestrator) RunCircle(ctx context.Context, index int) CircleReport {
	report := CircleReport{
		ID:        o.newID(),
		Index:     index,
		StartedAt: time.Now().UTC(),
	}
	logger := o.logger.With(zap.String("circle", report.ID), zap.Int("index", index))
	logger.Info("开始新一轮", zap.Int("accounts", o.Active()))

	var (
		mu     sync.Mutex
		cycles = make([]quote.CycleReport, 0, len(o.units))
	)

	var g errgroup.Group
	if o.cfg.Concurrency > 0 {
		g.SetLimit(o.cfg.Concurrency)
	}

	for _, unit := range o.units {
		if unit.Err != nil || unit.Runner == nil {
			report.Skipped++
			continue
		}
		g.Go(func() error {
			cycle := unit.Runner.RunCycle(ctx)
			if o.recorder != nil {
				if err := o.recorder.RecordCycle(ctx, report.ID, cycle); err != nil {
					logger.Warn("记录周期结果失败", zap.String("account", unit.ID), zap.Error(err))
				}
			}
			mu.Lock()
			cycles = append(cycles, cycle)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	report.Cycles = cycles
	for _, c := range cycles {
		report.Volume += c.Volume
		if c.Succeeded() {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}
	report.FinishedAt = time.Now().UTC()

	logger.Info("本轮结束",
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Float64("volume", report.Volume),
		zap.Duration("elapsed", report.FinishedAt.Sub(report.StartedAt)),
	)

	if o.recorder != nil {
		if err := o.recorder.RecordCircle(ctx, report); err != nil {
			logger.Warn("记录轮次结果失败", zap.Error(err))
		}
	}
	return report
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
