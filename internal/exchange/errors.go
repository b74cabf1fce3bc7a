package exchange

import (
	"errors"
	"fmt"
	"net"
	"net/http"

	ccxt "github.com/ccxt/ccxt/go/v4"
)

var (
	// ErrNetwork 表示请求未得到交易所应答（连接、代理、超时）。
	ErrNetwork = errors.New("exchange: network error")
	// ErrMaintenance 表示参考交易所处于维护状态，需要上层跳过。
	ErrMaintenance = errors.New("exchange on maintenance")
	// ErrNoSigner 表示调用了需要签名的接口但客户端未配置密钥。
	ErrNoSigner = errors.New("exchange: signer required")
)

// StatusError 为只读接口返回的非 2xx 响应。
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("exchange: http %d: %s", e.Status, e.Body)
}

// IsRetryable 判断只读接口错误是否可重试。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrNetwork) {
		return true
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Status == http.StatusTooManyRequests || statusErr.Status >= http.StatusInternalServerError
	}

	var ccxtErr *ccxt.Error
	if errors.As(err, &ccxtErr) {
		switch ccxtErr.Type {
		case ccxt.NetworkErrorErrType,
			ccxt.RequestTimeoutErrType,
			ccxt.ExchangeNotAvailableErrType,
			ccxt.RateLimitExceededErrType,
			ccxt.DDoSProtectionErrType,
			ccxt.BadResponseErrType,
			ccxt.NullResponseErrType:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}
