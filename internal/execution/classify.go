package execution

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

const minObjectFields = 3

type orderResponse struct {
	Status                string          `json:"status"`
	Price                 decimal.Decimal `json:"price"`
	ExecutedQuantity      decimal.Decimal `json:"executedQuantity"`
	ExecutedQuoteQuantity decimal.Decimal `json:"executedQuoteQuantity"`
}

// Classify 将下单响应体归入结果变体。requestPrice 在响应缺少成交价时作为兜底。
//
// 纯字符串（JSON 字符串或非 JSON 文本）单独判断；其余形态只有在字段数不少于 3 的对象时
// 才检查 status，否则视为接口过载。
func Classify(body []byte, requestPrice float64) Result {
	raw := strings.TrimSpace(string(body))

	var decoded interface{}
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		return classifyText(raw)
	}

	switch v := decoded.(type) {
	case string:
		return classifyText(v)
	case map[string]interface{}:
		if len(v) < minObjectFields {
			return Overloaded(raw)
		}
		return classifyObject([]byte(raw), requestPrice)
	default:
		return Overloaded(raw)
	}
}

func classifyText(text string) Result {
	text = strings.TrimSpace(text)
	switch {
	case len(text) < 2:
		return Overloaded(text)
	case text == InsufficientFundsMessage:
		return InsufficientFunds()
	default:
		return Unexpected(text)
	}
}

func classifyObject(raw []byte, requestPrice float64) Result {
	var resp orderResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return Unexpected(string(raw))
	}

	switch resp.Status {
	case "Filled":
		return Filled(fillPrice(resp, requestPrice))
	case "Expired", "Cancelled":
		return Expired(resp.Status)
	case "New":
		return Created()
	default:
		return Unexpected(string(raw))
	}
}

func fillPrice(resp orderResponse, requestPrice float64) float64 {
	if resp.ExecutedQuantity.IsPositive() && resp.ExecutedQuoteQuantity.IsPositive() {
		return resp.ExecutedQuoteQuantity.Div(resp.ExecutedQuantity).Round(2).InexactFloat64()
	}
	if resp.Price.IsPositive() {
		return resp.Price.Round(2).InexactFloat64()
	}
	return requestPrice
}
