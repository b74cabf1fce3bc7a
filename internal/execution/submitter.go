package execution

import (
	"context"

	"backpack-volume/internal/exchange"
)

// Submitter 抽象下单能力，实盘与模拟执行均实现该接口。
type Submitter interface {
	Submit(ctx context.Context, req exchange.OrderRequest) (Result, error)
}

var _ Submitter = (*Executor)(nil)
