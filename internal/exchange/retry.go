package exchange

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"backpack-volume/internal/config"
)

// classifier 归一化错误并给出是否可重试。
type classifier func(err error) (error, bool)

type retrier struct {
	cfg      config.RetryConfig
	logger   *zap.Logger
	classify classifier
}

func defaultClassify(err error) (error, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err, false
	}
	return err, IsRetryable(err)
}

func (r retrier) call(ctx context.Context, operation string, fn func() error) error {
	classify := r.classify
	if classify == nil {
		classify = defaultClassify
	}

	attempt := 0
	delay := r.cfg.MinDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	maxDelay := r.cfg.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	maxAttempts := r.cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	for {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		attempt++
		start := time.Now()
		err := fn()
		duration := time.Since(start)
		if err == nil {
			if attempt > 1 {
				r.logger.Info("交易所调用重试后成功",
					zap.String("operation", operation),
					zap.Int("attempts", attempt),
					zap.Duration("latency", duration),
				)
			}
			return nil
		}

		normalizedErr, retry := classify(err)

		if errors.Is(normalizedErr, ErrMaintenance) {
			r.logger.Warn("交易所维护中",
				zap.String("operation", operation),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		if !retry || attempt >= maxAttempts {
			r.logger.Error("交易所调用失败",
				zap.String("operation", operation),
				zap.Int("attempts", attempt),
				zap.Duration("latency", duration),
				zap.Error(normalizedErr),
			)
			return normalizedErr
		}

		wait := delay
		if wait > maxDelay {
			wait = maxDelay
		}

		r.logger.Warn("交易所调用失败，等待重试",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(normalizedErr),
		)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
}
