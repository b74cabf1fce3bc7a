package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了系统运行所需的全部配置项。
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Exchange  ExchangeConfig  `mapstructure:"exchange"`
	Reference ReferenceConfig `mapstructure:"reference"`
	Accounts  AccountsConfig  `mapstructure:"accounts"`
	Trading   TradingConfig   `mapstructure:"trading"`
	Quote     QuoteConfig     `mapstructure:"quote"`
	Cycle     CycleConfig     `mapstructure:"cycle"`
	Fleet     FleetConfig     `mapstructure:"fleet"`
	Execution ExecutionConfig `mapstructure:"execution"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// ExchangeConfig 描述 Backpack 接入参数。
type ExchangeConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	WSURL   string        `mapstructure:"ws_url"`
	Window  int64         `mapstructure:"window"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// ReferenceConfig 描述用于初始报价的参考交易所。
type ReferenceConfig struct {
	Enabled bool        `mapstructure:"enabled"`
	Name    string      `mapstructure:"name"`
	Symbol  string      `mapstructure:"symbol"`
	Depth   int64       `mapstructure:"depth"`
	Retry   RetryConfig `mapstructure:"retry"`
}

// RetryConfig 统一控制只读接口的重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// AccountsConfig 指向账户密钥与代理文件。
type AccountsConfig struct {
	PublicKeysPath  string `mapstructure:"public_keys_path"`
	PrivateKeysPath string `mapstructure:"private_keys_path"`
	ProxiesPath     string `mapstructure:"proxies_path"`
	RequireProxies  bool   `mapstructure:"require_proxies"`
}

// TradingConfig 描述下单标的与数量。
type TradingConfig struct {
	Symbol              string  `mapstructure:"symbol"`
	MinQuantity         float64 `mapstructure:"min_quantity"`
	MaxQuantity         float64 `mapstructure:"max_quantity"`
	MinQuantityFloor    float64 `mapstructure:"min_quantity_floor"`
	TimeInForce         string  `mapstructure:"time_in_force"`
	SelfTradePrevention string  `mapstructure:"self_trade_prevention"`
	PostOnly            bool    `mapstructure:"post_only"`
}

// QuoteConfig 控制报价策略。
type QuoteConfig struct {
	Strategy       string  `mapstructure:"strategy"`
	Source         string  `mapstructure:"source"`
	InitialBid     float64 `mapstructure:"initial_bid"`
	InitialAsk     float64 `mapstructure:"initial_ask"`
	Bias           float64 `mapstructure:"bias"`
	HardMultiplier float64 `mapstructure:"hard_multiplier"`
	Biased         bool    `mapstructure:"biased"`
	HistoryLimit   int     `mapstructure:"history_limit"`
}

// CycleConfig 控制单个账户买卖循环的节奏。
type CycleConfig struct {
	MaxAttempts      int           `mapstructure:"max_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	MinOrderDelay    time.Duration `mapstructure:"min_order_delay"`
	MaxOrderDelay    time.Duration `mapstructure:"max_order_delay"`
	ShrinkOnOverload bool          `mapstructure:"shrink_on_overload"`
	ShrinkStep       float64       `mapstructure:"shrink_step"`
}

// FleetConfig 控制多账户轮次。
type FleetConfig struct {
	Circles     int           `mapstructure:"circles"`
	CircleDelay time.Duration `mapstructure:"circle_delay"`
	Concurrency int           `mapstructure:"concurrency"`
}

// ExecutionConfig 控制下单行为。
type ExecutionConfig struct {
	Simulation    bool    `mapstructure:"simulation"`
	SimStartPrice float64 `mapstructure:"sim_start_price"`
	SimVolatility float64 `mapstructure:"sim_volatility"`
}

// DatabaseConfig 管理数据库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
}

// MonitorConfig 控制监控接口。
type MonitorConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

var (
	validTimeInForce = map[string]struct{}{"GTC": {}, "IOC": {}, "FOK": {}}
	validStrategies  = map[string]struct{}{"bias": {}, "median": {}}
	validSources     = map[string]struct{}{"rest": {}, "stream": {}}
)

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}
	if c.Exchange.BaseURL == "" {
		err = multierr.Append(err, errors.New("exchange.base_url 不能为空"))
	}
	if c.Exchange.Window <= 0 || c.Exchange.Window > 60000 {
		err = multierr.Append(err, errors.New("exchange.window 必须位于(0,60000]"))
	}
	if c.Exchange.Timeout <= 0 {
		err = multierr.Append(err, errors.New("exchange.timeout 必须大于0"))
	}
	err = multierr.Append(err, c.Exchange.Retry.validate("exchange.retry"))
	if c.Reference.Enabled {
		if c.Reference.Symbol == "" {
			err = multierr.Append(err, errors.New("reference.symbol 不能为空"))
		}
		err = multierr.Append(err, c.Reference.Retry.validate("reference.retry"))
	}
	if !c.Execution.Simulation {
		if c.Accounts.PublicKeysPath == "" || c.Accounts.PrivateKeysPath == "" {
			err = multierr.Append(err, errors.New("accounts.public_keys_path 与 private_keys_path 不能为空"))
		}
		if c.Accounts.RequireProxies && c.Accounts.ProxiesPath == "" {
			err = multierr.Append(err, errors.New("accounts.require_proxies=true 时 proxies_path 不能为空"))
		}
	}
	if c.Trading.Symbol == "" {
		err = multierr.Append(err, errors.New("trading.symbol 不能为空"))
	}
	if c.Trading.MinQuantity <= 0 || c.Trading.MaxQuantity <= 0 {
		err = multierr.Append(err, errors.New("trading.min_quantity/max_quantity 必须大于0"))
	}
	if c.Trading.MinQuantity > c.Trading.MaxQuantity {
		err = multierr.Append(err, errors.New("trading.min_quantity 不能大于 max_quantity"))
	}
	if c.Trading.MinQuantityFloor <= 0 {
		err = multierr.Append(err, errors.New("trading.min_quantity_floor 必须大于0"))
	}
	if _, ok := validTimeInForce[strings.ToUpper(c.Trading.TimeInForce)]; !ok {
		err = multierr.Append(err, fmt.Errorf("trading.time_in_force 取值非法: %s", c.Trading.TimeInForce))
	}
	if _, ok := validStrategies[strings.ToLower(c.Quote.Strategy)]; !ok {
		err = multierr.Append(err, fmt.Errorf("quote.strategy 取值非法: %s", c.Quote.Strategy))
	}
	if _, ok := validSources[strings.ToLower(c.Quote.Source)]; !ok {
		err = multierr.Append(err, fmt.Errorf("quote.source 取值非法: %s", c.Quote.Source))
	}
	if c.Quote.Bias <= 0 {
		err = multierr.Append(err, errors.New("quote.bias 必须大于0"))
	}
	if c.Quote.HardMultiplier < 1 {
		err = multierr.Append(err, errors.New("quote.hard_multiplier 不能小于1"))
	}
	if c.Quote.InitialBid < 0 || c.Quote.InitialAsk < 0 {
		err = multierr.Append(err, errors.New("quote.initial_bid/initial_ask 不能为负"))
	}
	if c.Quote.HistoryLimit <= 0 || c.Quote.HistoryLimit > 1000 {
		err = multierr.Append(err, errors.New("quote.history_limit 必须位于(0,1000]"))
	}
	if c.Cycle.MaxAttempts <= 0 {
		err = multierr.Append(err, errors.New("cycle.max_attempts 必须大于0"))
	}
	if c.Cycle.RetryDelay < 0 {
		err = multierr.Append(err, errors.New("cycle.retry_delay 不能为负"))
	}
	if c.Cycle.MinOrderDelay < 0 || c.Cycle.MinOrderDelay > c.Cycle.MaxOrderDelay {
		err = multierr.Append(err, errors.New("cycle.min_order_delay 必须位于[0,max_order_delay]"))
	}
	if c.Cycle.ShrinkOnOverload && c.Cycle.ShrinkStep <= 0 {
		err = multierr.Append(err, errors.New("cycle.shrink_step 必须大于0"))
	}
	if c.Fleet.Circles < 0 {
		err = multierr.Append(err, errors.New("fleet.circles 不能为负"))
	}
	if c.Fleet.CircleDelay < 0 {
		err = multierr.Append(err, errors.New("fleet.circle_delay 不能为负"))
	}
	if c.Fleet.Concurrency < 0 {
		err = multierr.Append(err, errors.New("fleet.concurrency 不能为负"))
	}
	if c.Execution.Simulation && c.Execution.SimVolatility < 0 {
		err = multierr.Append(err, errors.New("execution.sim_volatility 不能为负"))
	}
	if c.Database.Path == "" && !c.Database.InMemory {
		err = multierr.Append(err, errors.New("database.path 不能为空"))
	}
	if c.Database.MaxOpenConns <= 0 {
		err = multierr.Append(err, errors.New("database.max_open_conns 必须大于0"))
	}
	if c.Database.MaxIdleConns < 0 {
		err = multierr.Append(err, errors.New("database.max_idle_conns 不能为负"))
	}
	if c.Monitor.Enabled && (c.Monitor.Port <= 0 || c.Monitor.Port > 65535) {
		err = multierr.Append(err, errors.New("monitor.port 必须位于(0,65535]"))
	}
	if c.Logging.Level == "" {
		err = multierr.Append(err, errors.New("logging.level 不能为空"))
	}
	if c.Logging.Encoding == "" {
		err = multierr.Append(err, errors.New("logging.encoding 不能为空"))
	}
	if len(c.Logging.OutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.output_paths 至少包含一个输出目标"))
	}
	if len(c.Logging.ErrorOutputPaths) == 0 {
		err = multierr.Append(err, errors.New("logging.error_output_paths 至少包含一个输出目标"))
	}

	if err != nil {
		return fmt.Errorf("配置校验失败: %w", err)
	}

	return nil
}

func (r RetryConfig) validate(prefix string) error {
	var err error
	if r.MaxAttempts <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.max_attempts 必须大于0", prefix))
	}
	if r.MinDelay <= 0 || r.MaxDelay <= 0 {
		err = multierr.Append(err, fmt.Errorf("%s.delay 必须为正", prefix))
	}
	if r.MinDelay > r.MaxDelay {
		err = multierr.Append(err, fmt.Errorf("%s.min_delay 不能大于 max_delay", prefix))
	}
	return err
}
