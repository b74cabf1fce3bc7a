package account

import (
	"fmt"
	"sync"

	"github.com/shopspring/decimal"
)

// Credential 为账户的 API 公钥与 base64 私钥，加载后不可变。
type Credential struct {
	PublicKey  string
	PrivateKey string
}

// Account 表示一个参与刷量的交易账户。
// 成交额只由该账户自己的状态机累加，监控端通过锁读取。
type Account struct {
	ID         string
	Credential Credential
	Proxy      string

	mu     sync.RWMutex
	volume decimal.Decimal
	cycles int
}

// New 创建账户。
func New(id string, cred Credential, proxy string) *Account {
	return &Account{ID: id, Credential: cred, Proxy: proxy}
}

// Label 返回便于日志展示的账户标识。
func (a *Account) Label() string {
	key := a.Credential.PublicKey
	if len(key) > 8 {
		key = key[:8]
	}
	return fmt.Sprintf("%s(%s)", a.ID, key)
}

// AddVolume 累加成交额并返回累计值。
func (a *Account) AddVolume(quote float64) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.volume = a.volume.Add(decimal.NewFromFloat(quote))
	return a.volume.InexactFloat64()
}

// CompleteCycle 记录一次完整的买卖周期。
func (a *Account) CompleteCycle() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.cycles++
	return a.cycles
}

// Volume 返回累计成交额。
func (a *Account) Volume() float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.volume.InexactFloat64()
}

// Snapshot 为账户状态的只读视图。
type Snapshot struct {
	ID        string  `json:"id"`
	PublicKey string  `json:"public_key"`
	Proxied   bool    `json:"proxied"`
	Volume    float64 `json:"volume"`
	Cycles    int     `json:"cycles"`
}

// Snapshot 返回当前状态。
func (a *Account) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Snapshot{
		ID:        a.ID,
		PublicKey: a.Credential.PublicKey,
		Proxied:   a.Proxy != "",
		Volume:    a.volume.InexactFloat64(),
		Cycles:    a.cycles,
	}
}
