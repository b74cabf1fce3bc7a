package monitor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"backpack-volume/internal/exchange"
	"backpack-volume/internal/execution"
	"backpack-volume/internal/fleet"
	"backpack-volume/internal/oracle"
	"backpack-volume/internal/quote"
	"backpack-volume/internal/store"
)

// Service 负责持久化监控事件与下单流水。
type Service struct {
	db     *sql.DB
	logger *zap.Logger
}

var (
	_ execution.ResultRecorder = (*Service)(nil)
	_ fleet.Recorder           = (*Service)(nil)
)

// NewService 初始化监控服务，创建所需表结构。
func NewService(store *store.Store, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("monitor: store 不能为空")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Service{
		db:     store.DB(),
		logger: logger,
	}

	if err := s.initSchema(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *Service) initSchema() error {
	stmt := `
CREATE TABLE IF NOT EXISTS monitor_events (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	event_type TEXT NOT NULL,
	payload TEXT NOT NULL,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_monitor_events_type ON monitor_events(event_type);
CREATE TABLE IF NOT EXISTS order_results (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account TEXT NOT NULL,
	side TEXT NOT NULL,
	symbol TEXT NOT NULL,
	price REAL NOT NULL,
	quantity REAL NOT NULL,
	kind TEXT NOT NULL,
	fill_price REAL NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_order_results_account ON order_results(account);
`
	if _, err := s.db.Exec(stmt); err != nil {
		return fmt.Errorf("monitor: 初始化表失败: %w", err)
	}
	return nil
}

// Record 写入单个事件。
func (s *Service) Record(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("monitor: 序列化事件失败: %w", err)
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO monitor_events (event_type, payload, created_at) VALUES (?, ?, ?)`,
		string(event.Type), string(payload), event.Timestamp.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入事件失败: %w", err)
	}

	return nil
}

// RecordOrder 记录下单结果，同时写入流水表用于聚合。
func (s *Service) RecordOrder(ctx context.Context, account string, req exchange.OrderRequest, result execution.Result) error {
	now := time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO order_results (account, side, symbol, price, quantity, kind, fill_price, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		account, string(req.Side), req.Symbol, req.Price, req.Quantity, string(result.Kind), result.FillPrice, now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("monitor: 写入下单流水失败: %w", err)
	}

	return s.Record(ctx, Event{
		Type:      EventOrder,
		Timestamp: now,
		Payload: OrderPayload{
			Account:  account,
			Side:     req.Side,
			Symbol:   req.Symbol,
			Price:    req.Price,
			Quantity: req.Quantity,
			Result:   result,
		},
	})
}

// RecordCycle 记录账户周期结果。
func (s *Service) RecordCycle(ctx context.Context, circleID string, report quote.CycleReport) error {
	payload := CyclePayload{Circle: circleID, Report: report}
	if report.Err != nil {
		payload.Error = report.Err.Error()
	}
	return s.Record(ctx, Event{Type: EventCycle, Timestamp: report.FinishedAt, Payload: payload})
}

// RecordCircle 记录轮次汇总。
func (s *Service) RecordCircle(ctx context.Context, report fleet.CircleReport) error {
	return s.Record(ctx, Event{Type: EventCircle, Timestamp: report.FinishedAt, Payload: circlePayload(report)})
}

// RecordQuote 记录报价快照。
func (s *Service) RecordQuote(ctx context.Context, strategy, source string, snapshot oracle.QuoteSnapshot) {
	if err := s.Record(ctx, Event{
		Type:    EventQuote,
		Payload: QuotePayload{Strategy: strategy, Source: source, Quote: snapshot},
	}); err != nil {
		s.logger.Warn("记录报价事件失败", zap.Error(err))
	}
}

// RecordError 记录异常。
func (s *Service) RecordError(ctx context.Context, msg string, err error, ctxMap map[string]interface{}) {
	payload := ErrorPayload{
		Message: msg,
		Context: ctxMap,
	}
	if err != nil {
		payload.Error = err.Error()
	}
	if recErr := s.Record(ctx, Event{
		Type:      EventError,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}); recErr != nil {
		s.logger.Warn("记录异常事件失败", zap.Error(recErr))
	}
}

// ListEvents 按类型检索最近事件。
func (s *Service) ListEvents(ctx context.Context, eventType EventType, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT event_type, payload, created_at FROM monitor_events`
	args := make([]interface{}, 0, 2)
	if eventType != "" {
		query += ` WHERE event_type = ?`
		args = append(args, string(eventType))
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询事件失败: %w", err)
	}
	defer rows.Close()

	events := make([]Event, 0, limit)
	for rows.Next() {
		var (
			typ     string
			payload string
			created string
		)
		if scanErr := rows.Scan(&typ, &payload, &created); scanErr != nil {
			return nil, fmt.Errorf("monitor: 解析事件失败: %w", scanErr)
		}

		ts, parseErr := time.Parse(time.RFC3339Nano, created)
		if parseErr != nil {
			ts = time.Now().UTC()
		}

		events = append(events, Event{
			Type:      EventType(typ),
			Timestamp: ts,
			Payload:   json.RawMessage(payload),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取事件失败: %w", err)
	}

	return events, nil
}

// AccountStats 汇总每个账户的下单结果与成交额。
func (s *Service) AccountStats(ctx context.Context) ([]AccountStats, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT account,
	COUNT(*),
	SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END),
	SUM(CASE WHEN kind = ? THEN 1 ELSE 0 END),
	SUM(CASE WHEN kind IN (?, ?, ?) THEN 1 ELSE 0 END),
	COALESCE(SUM(CASE WHEN kind = ? THEN fill_price * quantity ELSE 0 END), 0)
FROM order_results
GROUP BY account
ORDER BY account`,
		string(execution.KindFilled),
		string(execution.KindExpired),
		string(execution.KindInsufficientFunds), string(execution.KindOverloaded), string(execution.KindUnexpected),
		string(execution.KindFilled),
	)
	if err != nil {
		return nil, fmt.Errorf("monitor: 查询账户统计失败: %w", err)
	}
	defer rows.Close()

	var stats []AccountStats
	for rows.Next() {
		var st AccountStats
		if err := rows.Scan(&st.Account, &st.Orders, &st.Filled, &st.Expired, &st.Failed, &st.FilledVolume); err != nil {
			return nil, fmt.Errorf("monitor: 解析账户统计失败: %w", err)
		}
		stats = append(stats, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("monitor: 读取账户统计失败: %w", err)
	}
	return stats, nil
}
