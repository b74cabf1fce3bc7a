package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"backpack-volume/internal/config"
	"backpack-volume/internal/signer"
)

const (
	pathOrder   = "/api/v1/order"
	pathMarkets = "/api/v1/markets"
	pathTrades  = "/api/v1/trades"
	pathFills   = "/wapi/v1/history/fills"

	maxBodyBytes = 1 << 20
)

// Client 负责单个账户与 Backpack REST 接口的交互，所有请求经由账户自己的代理。
type Client struct {
	baseURL string
	http    *http.Client
	signer  *signer.Signer
	retry   retrier
	logger  *zap.Logger
}

// NewClient 创建客户端。signer 为空时只能访问公开接口；proxy 为空时直连。
func NewClient(cfg config.ExchangeConfig, s *signer.Signer, proxy string, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		return nil, fmt.Errorf("exchange: base_url 不能为空")
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("exchange: 解析代理地址失败: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Client{
		baseURL: base,
		http:    &http.Client{Timeout: timeout, Transport: transport},
		signer:  s,
		retry:   retrier{cfg: cfg.Retry, logger: logger},
		logger:  logger,
	}, nil
}

// PlaceOrder 签名并提交下单请求，原样返回响应体。
// 下单不做传输层重试，非 2xx 响应体同样交由调用方分类。
func (c *Client) PlaceOrder(ctx context.Context, req OrderRequest) ([]byte, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}

	payload, err := json.Marshal(req.Body())
	if err != nil {
		return nil, fmt.Errorf("exchange: 序列化订单失败: %w", err)
	}

	headers := c.signer.Headers(req.Params(), InstructionOrderExecute)
	body, _, err := c.do(ctx, http.MethodPost, pathOrder, nil, payload, headers)
	return body, err
}

// Markets 列出可交易标的。
func (c *Client) Markets(ctx context.Context) ([]Market, error) {
	var wire []marketWire
	if err := c.getJSON(ctx, "markets", pathMarkets, nil, nil, &wire); err != nil {
		return nil, err
	}

	markets := make([]Market, 0, len(wire))
	for _, w := range wire {
		markets = append(markets, w.toMarket())
	}
	return markets, nil
}

// Trades 获取标的最近的公开成交。
func (c *Client) Trades(ctx context.Context, symbol string, limit int) ([]TradeHistoryPoint, error) {
	query := url.Values{}
	query.Set("symbol", symbol)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var wire []tradeWire
	if err := c.getJSON(ctx, "trades", pathTrades, query, nil, &wire); err != nil {
		return nil, err
	}

	points := make([]TradeHistoryPoint, 0, len(wire))
	for _, w := range wire {
		points = append(points, w.toPoint())
	}
	return points, nil
}

// Fills 获取账户成交历史（需签名）。
func (c *Client) Fills(ctx context.Context, symbol string, limit, offset int) ([]TradeHistoryPoint, error) {
	if c.signer == nil {
		return nil, ErrNoSigner
	}

	params := map[string]string{}
	if symbol != "" {
		params["symbol"] = symbol
	}
	if limit > 0 {
		params["limit"] = strconv.Itoa(limit)
	}
	if offset > 0 {
		params["offset"] = strconv.Itoa(offset)
	}

	query := url.Values{}
	for k, v := range params {
		query.Set(k, v)
	}

	var wire []fillWire
	sign := func() signer.Headers { return c.signer.Headers(params, InstructionFillHistory) }
	if err := c.getJSON(ctx, "fills", pathFills, query, sign, &wire); err != nil {
		return nil, err
	}

	points := make([]TradeHistoryPoint, 0, len(wire))
	for _, w := range wire {
		points = append(points, w.toPoint())
	}
	return points, nil
}

// getJSON 执行带重试的只读请求；签名在每次尝试时重新生成以刷新时间戳。
func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, sign func() signer.Headers, out interface{}) error {
	return c.retry.call(ctx, operation, func() error {
		var headers signer.Headers
		if sign != nil {
			headers = sign()
		}

		body, status, err := c.do(ctx, http.MethodGet, path, query, nil, headers)
		if err != nil {
			return err
		}
		if status < 200 || status >= 300 {
			return &StatusError{Status: status, Body: truncate(string(body), 256)}
		}

		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("exchange: 解析 %s 响应失败: %w", operation, err)
		}
		return nil
	})
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload []byte, headers signer.Headers) ([]byte, int, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("exchange: 构造请求失败: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if payload != nil && req.Header.Get(signer.HeaderContentType) == "" {
		req.Header.Set(signer.HeaderContentType, "application/json; charset=utf-8")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, 0, ctxErr
		}
		return nil, 0, fmt.Errorf("%w: %s %s: %v", ErrNetwork, method, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("%w: 读取响应失败: %v", ErrNetwork, err)
	}

	c.logger.Debug("交易所请求完成",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
	)

	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
