package exchange

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side 为 Backpack 的买卖方向取值。
type Side string

const (
	SideBid Side = "Bid"
	SideAsk Side = "Ask"
)

// 固定枚举取值，与交易所保持一致。
const (
	OrderTypeLimit = "Limit"

	TimeInForceGTC = "GTC"
	TimeInForceIOC = "IOC"
	TimeInForceFOK = "FOK"

	SelfTradePreventionAllow = "Allow"

	InstructionOrderExecute = "orderExecute"
	InstructionFillHistory  = "fillHistoryQueryAll"

	// QuoteSymbolUSDC 为手续费按原值计入的计价币种。
	QuoteSymbolUSDC = "USDC"
)

// Market 描述可交易标的。
type Market struct {
	Symbol      string
	BaseSymbol  string
	QuoteSymbol string
	TickSize    float64
	StepSize    float64
	MinQuantity float64
}

// TradeHistoryPoint 为一条公开成交或账户成交记录。
type TradeHistoryPoint struct {
	Price        float64
	Quantity     float64
	IsBuyerMaker bool
	Side         Side
	Fee          float64
	FeeSymbol    string
	Timestamp    time.Time
}

// OrderRequest 为单次下单请求，签名后不再修改。
type OrderRequest struct {
	OrderType           string
	Side                Side
	Symbol              string
	Quantity            float64
	Price               float64
	TimeInForce         string
	SelfTradePrevention string
	PostOnly            bool
}

// NewLimitOrder 构造限价单请求。
func NewLimitOrder(side Side, symbol string, quantity, price float64, timeInForce string) OrderRequest {
	return OrderRequest{
		OrderType:   OrderTypeLimit,
		Side:        side,
		Symbol:      symbol,
		Quantity:    quantity,
		Price:       price,
		TimeInForce: timeInForce,
	}
}

// PriceString 返回两位小数的价格字符串。
func (r OrderRequest) PriceString() string {
	return decimal.NewFromFloat(r.Price).StringFixed(2)
}

// QuantityString 返回去除多余零的数量字符串。
func (r OrderRequest) QuantityString() string {
	return decimal.NewFromFloat(r.Quantity).Round(2).String()
}

// Params 返回参与签名的字段，取值与请求体完全一致。
func (r OrderRequest) Params() map[string]string {
	params := map[string]string{
		"orderType":   r.OrderType,
		"price":       r.PriceString(),
		"quantity":    r.QuantityString(),
		"side":        string(r.Side),
		"symbol":      r.Symbol,
		"timeInForce": r.TimeInForce,
	}
	if r.SelfTradePrevention != "" {
		params["selfTradePrevention"] = r.SelfTradePrevention
	}
	if r.PostOnly {
		params["postOnly"] = "true"
	}
	return params
}

// Body 返回请求体结构。
func (r OrderRequest) Body() OrderBody {
	return OrderBody{
		OrderType:           r.OrderType,
		Price:               r.PriceString(),
		Quantity:            r.QuantityString(),
		SelfTradePrevention: r.SelfTradePrevention,
		Side:                string(r.Side),
		Symbol:              r.Symbol,
		TimeInForce:         r.TimeInForce,
		PostOnly:            r.PostOnly,
	}
}

// OrderBody 为 POST /api/v1/order 的 JSON 结构。
type OrderBody struct {
	OrderType           string `json:"orderType"`
	Price               string `json:"price"`
	Quantity            string `json:"quantity"`
	SelfTradePrevention string `json:"selfTradePrevention,omitempty"`
	Side                string `json:"side"`
	Symbol              string `json:"symbol"`
	TimeInForce         string `json:"timeInForce"`
	PostOnly            bool   `json:"postOnly,omitempty"`
}

type marketWire struct {
	Symbol      string `json:"symbol"`
	BaseSymbol  string `json:"baseSymbol"`
	QuoteSymbol string `json:"quoteSymbol"`
	Filters     struct {
		Price struct {
			TickSize decimal.Decimal `json:"tickSize"`
		} `json:"price"`
		Quantity struct {
			StepSize    decimal.Decimal `json:"stepSize"`
			MinQuantity decimal.Decimal `json:"minQuantity"`
		} `json:"quantity"`
	} `json:"filters"`
}

func (w marketWire) toMarket() Market {
	return Market{
		Symbol:      w.Symbol,
		BaseSymbol:  w.BaseSymbol,
		QuoteSymbol: w.QuoteSymbol,
		TickSize:    w.Filters.Price.TickSize.InexactFloat64(),
		StepSize:    w.Filters.Quantity.StepSize.InexactFloat64(),
		MinQuantity: w.Filters.Quantity.MinQuantity.InexactFloat64(),
	}
}

type tradeWire struct {
	Price        decimal.Decimal `json:"price"`
	Quantity     decimal.Decimal `json:"quantity"`
	IsBuyerMaker bool            `json:"isBuyerMaker"`
	Timestamp    int64           `json:"timestamp"`
}

func (w tradeWire) toPoint() TradeHistoryPoint {
	side := SideBid
	if w.IsBuyerMaker {
		side = SideAsk
	}
	return TradeHistoryPoint{
		Price:        w.Price.InexactFloat64(),
		Quantity:     w.Quantity.InexactFloat64(),
		IsBuyerMaker: w.IsBuyerMaker,
		Side:         side,
		Timestamp:    time.UnixMilli(w.Timestamp).UTC(),
	}
}

type fillWire struct {
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Fee       decimal.Decimal `json:"fee"`
	FeeSymbol string          `json:"feeSymbol"`
	IsMaker   bool            `json:"isMaker"`
	Side      string          `json:"side"`
	Symbol    string          `json:"symbol"`
	Timestamp string          `json:"timestamp"`
}

func (w fillWire) toPoint() TradeHistoryPoint {
	ts, err := time.Parse("2006-01-02T15:04:05", w.Timestamp)
	if err != nil {
		ts = time.Time{}
	}
	side := Side(w.Side)
	// 账户成交没有 isBuyerMaker，按主被动方向推导。
	buyerMaker := (side == SideBid) == w.IsMaker
	return TradeHistoryPoint{
		Price:        w.Price.InexactFloat64(),
		Quantity:     w.Quantity.InexactFloat64(),
		IsBuyerMaker: buyerMaker,
		Side:         side,
		Fee:          w.Fee.InexactFloat64(),
		FeeSymbol:    w.FeeSymbol,
		Timestamp:    ts.UTC(),
	}
}
