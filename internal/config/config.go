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
	envPrefix         = "moex"
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

	v.SetDefault("market_data.driver", "moex")
	v.SetDefault("market_data.instrument", "SBER")
	v.SetDefault("market_data.period", "60m")
	v.SetDefault("market_data.buffer", 64)
	v.SetDefault("market_data.moex.base_url", "https://iss.moex.com")
	v.SetDefault("market_data.moex.timeout", "10s")
	v.SetDefault("market_data.moex.retry.max_attempts", 5)
	v.SetDefault("market_data.moex.retry.min_delay", "500ms")
	v.SetDefault("market_data.moex.retry.max_delay", "5s")
	v.SetDefault("market_data.ccxt.exchange", "binanceusdm")
	v.SetDefault("market_data.ccxt.use_sandbox", false)

	v.SetDefault("trading.quantity", 3)
	v.SetDefault("trading.balance", 50000)
	v.SetDefault("trading.halt_on_refusal", false)
	v.SetDefault("trading.close_on_exit", true)

	v.SetDefault("strategy.name", "threshold")
	v.SetDefault("strategy.threshold", 250)
	v.SetDefault("strategy.fast_period", 5)
	v.SetDefault("strategy.slow_period", 20)

	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4.1")
	v.SetDefault("openai.timeout", "15s")

	v.SetDefault("admin.enabled", false)
	v.SetDefault("admin.base_url", "http://localhost:8000")
	v.SetDefault("admin.timeout", "5s")
	v.SetDefault("admin.strategy_name", "Test")
	v.SetDefault("admin.strategy_description", "Some test strategy")

	v.SetDefault("database.path", "data/moex_trader.db")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "1h")
	v.SetDefault("database.in_memory", false)
	v.SetDefault("database.record_events", true)

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
