package execution

import "fmt"

// ResultKind 为下单结果的分类。
type ResultKind string

const (
	KindFilled            ResultKind = "filled"
	KindExpired           ResultKind = "expired"
	KindCreated           ResultKind = "created"
	KindInsufficientFunds ResultKind = "insufficient_funds"
	KindOverloaded        ResultKind = "overloaded"
	KindUnexpected        ResultKind = "unexpected"
)

// InsufficientFundsMessage 为交易所余额不足时返回的纯文本。
const InsufficientFundsMessage = "Insufficient funds"

// Result 为封闭的下单结果变体，仅由响应体推导。
type Result struct {
	Kind      ResultKind `json:"kind"`
	FillPrice float64    `json:"fill_price,omitempty"`
	Status    string     `json:"status,omitempty"`
	Raw       string     `json:"raw,omitempty"`
}

// Filled 构造成交结果。
func Filled(price float64) Result { return Result{Kind: KindFilled, FillPrice: price, Status: "Filled"} }

// Expired 构造过期/撤销结果。
func Expired(status string) Result { return Result{Kind: KindExpired, Status: status} }

// Created 构造挂单已受理结果。
func Created() Result { return Result{Kind: KindCreated, Status: "New"} }

// InsufficientFunds 构造余额不足结果。
func InsufficientFunds() Result {
	return Result{Kind: KindInsufficientFunds, Raw: InsufficientFundsMessage}
}

// Overloaded 构造接口过载/响应残缺结果。
func Overloaded(raw string) Result { return Result{Kind: KindOverloaded, Raw: raw} }

// Unexpected 构造无法识别的结果。
func Unexpected(raw string) Result { return Result{Kind: KindUnexpected, Raw: raw} }

// Recoverable 表示可通过调价重试。
func (r Result) Recoverable() bool { return r.Kind == KindExpired }

// Accepted 表示订单已成交或已挂单。
func (r Result) Accepted() bool { return r.Kind == KindFilled || r.Kind == KindCreated }

func (r Result) String() string {
	switch r.Kind {
	case KindFilled:
		return fmt.Sprintf("Filled(%.2f)", r.FillPrice)
	case KindExpired:
		return "Expired(" + r.Status + ")"
	case KindCreated:
		return "Created(New)"
	case KindInsufficientFunds:
		return "InsufficientFunds"
	case KindOverloaded:
		return "Overloaded"
	default:
		return "Unexpected(" + r.Raw + ")"
	}
}
