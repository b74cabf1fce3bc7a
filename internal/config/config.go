package config

import (
	"errors"
	"fmt"
	"strings"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	defaultConfigPath = "configs/config.yaml"
	envPrefix         = "volume"
)

// Load 读取配置文件并结合环境变量返回 Config。
func Load(path string) (*Config, error) {
	v := viper.New()

	if path == "" {
		path = defaultConfigPath
	}

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix(envPrefix)
	replacer := strings.NewReplacer(".", "_")
	v.SetEnvKeyReplacer(replacer)
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil, fmt.Errorf("未找到配置文件 %q: %w", path, err)
		}
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	return decode(v)
}

// Default 返回仅包含默认值的配置，便于测试与模拟运行。
func Default() (*Config, error) {
	v := viper.New()
	setDefaults(v)
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.environment", "development")

	v.SetDefault("exchange.base_url", "https://api.backpack.exchange")
	v.SetDefault("exchange.ws_url", "wss://ws.backpack.exchange")
	v.SetDefault("exchange.window", 5000)
	v.SetDefault("exchange.timeout", "15s")
	v.SetDefault("exchange.retry.max_attempts", 5)
	v.SetDefault("exchange.retry.min_delay", "500ms")
	v.SetDefault("exchange.retry.max_delay", "5s")

	v.SetDefault("reference.enabled", false)
	v.SetDefault("reference.name", "binance")
	v.SetDefault("reference.symbol", "SOL/USDC")
	v.SetDefault("reference.depth", 5)
	v.SetDefault("reference.retry.max_attempts", 3)
	v.SetDefault("reference.retry.min_delay", "500ms")
	v.SetDefault("reference.retry.max_delay", "5s")

	v.SetDefault("accounts.public_keys_path", "data/public_keys.txt")
	v.SetDefault("accounts.private_keys_path", "data/private_keys.txt")
	v.SetDefault("accounts.proxies_path", "data/proxies.txt")
	v.SetDefault("accounts.require_proxies", true)

	v.SetDefault("trading.symbol", "SOL_USDC")
	v.SetDefault("trading.min_quantity", 0.1)
	v.SetDefault("trading.max_quantity", 0.2)
	v.SetDefault("trading.min_quantity_floor", 0.01)
	v.SetDefault("trading.time_in_force", "IOC")
	v.SetDefault("trading.self_trade_prevention", "Allow")
	v.SetDefault("trading.post_only", false)

	v.SetDefault("quote.strategy", "bias")
	v.SetDefault("quote.source", "rest")
	v.SetDefault("quote.initial_bid", 0)
	v.SetDefault("quote.initial_ask", 0)
	v.SetDefault("quote.bias", 0.12)
	v.SetDefault("quote.hard_multiplier", 20)
	v.SetDefault("quote.biased", false)
	v.SetDefault("quote.history_limit", 100)

	v.SetDefault("cycle.max_attempts", 20)
	v.SetDefault("cycle.retry_delay", "3s")
	v.SetDefault("cycle.min_order_delay", "5s")
	v.SetDefault("cycle.max_order_delay", "10s")
	v.SetDefault("cycle.shrink_on_overload", false)
	v.SetDefault("cycle.shrink_step", 0.01)

	v.SetDefault("fleet.circles", 0)
	v.SetDefault("fleet.circle_delay", "45s")
	v.SetDefault("fleet.concurrency", 0)

	v.SetDefault("execution.simulation", false)
	v.SetDefault("execution.sim_start_price", 150.0)
	v.SetDefault("execution.sim_volatility", 0.001)

	v.SetDefault("database.path", "data/volume.db")
	v.SetDefault("database.max_open_conns", 1)
	v.SetDefault("database.max_idle_conns", 1)
	v.SetDefault("database.conn_max_lifetime", "0s")
	v.SetDefault("database.in_memory", true)

	v.SetDefault("monitor.enabled", false)
	v.SetDefault("monitor.port", 8088)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.output_paths", []string{"stdout"})
	v.SetDefault("logging.error_output_paths", []string{"stderr"})
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
