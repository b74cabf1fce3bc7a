package exchange

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// tradeLister 为获取公开成交的最小接口。
type tradeLister interface {
	Trades(ctx context.Context, symbol string, limit int) ([]TradeHistoryPoint, error)
}

// MarketSnapshot 聚合初始化报价所需的行情数据。
type MarketSnapshot struct {
	Symbol      string
	Trades      []TradeHistoryPoint
	Reference   *TopOfBook
	RetrievedAt time.Time
}

// MarketDataService 并发拉取本所成交与参考盘口。
type MarketDataService struct {
	trades    tradeLister
	reference *ReferenceClient
	logger    *zap.Logger
}

// NewMarketDataService 创建市场数据服务，reference 可为空。
func NewMarketDataService(trades tradeLister, reference *ReferenceClient, logger *zap.Logger) *MarketDataService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MarketDataService{
		trades:    trades,
		reference: reference,
		logger:    logger,
	}
}

// GetSnapshot 获取最近成交，并在启用时获取参考盘口。参考盘口失败不影响整体结果。
func (s *MarketDataService) GetSnapshot(ctx context.Context, symbol string, limit int) (MarketSnapshot, error) {
	var (
		trades    []TradeHistoryPoint
		reference *TopOfBook
	)

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		data, err := s.trades.Trades(groupCtx, symbol, limit)
		if err != nil {
			return err
		}
		trades = data
		return nil
	})

	if s.reference != nil {
		group.Go(func() error {
			top, err := s.reference.FetchTopOfBook(groupCtx)
			if err != nil {
				s.logger.Warn("获取参考盘口失败，忽略", zap.Error(err))
				return nil
			}
			reference = &top
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return MarketSnapshot{}, err
	}

	snapshot := MarketSnapshot{
		Symbol:      symbol,
		Trades:      trades,
		Reference:   reference,
		RetrievedAt: time.Now().UTC(),
	}

	s.logger.Debug("市场数据快照获取完成",
		zap.String("symbol", snapshot.Symbol),
		zap.Time("retrieved_at", snapshot.RetrievedAt),
		zap.Int("trade_count", len(snapshot.Trades)),
		zap.Bool("has_reference", snapshot.Reference != nil),
	)

	return snapshot, nil
}
