package config

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"
)

// Config 聚合了交易核心运行所需的全部配置项。
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	MarketData MarketDataConfig `mapstructure:"market_data"`
	Trading    TradingConfig    `mapstructure:"trading"`
	Strategy   StrategyConfig   `mapstructure:"strategy"`
	OpenAI     OpenAIConfig     `mapstructure:"openai"`
	Admin      AdminConfig      `mapstructure:"admin"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AppConfig 控制应用级参数。
type AppConfig struct {
	Environment string `mapstructure:"environment"`
}

// MarketDataConfig 描述行情来源与轮询参数。
type MarketDataConfig struct {
	Driver     string        `mapstructure:"driver"`
	Instrument string        `mapstructure:"instrument"`
	Period     time.Duration `mapstructure:"period"`
	Buffer     int           `mapstructure:"buffer"`
	Moex       MoexConfig    `mapstructure:"moex"`
	CCXT       CCXTConfig    `mapstructure:"ccxt"`
}

// MoexConfig 描述 MOEX ISS 行情接口连接信息。
type MoexConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Retry   RetryConfig   `mapstructure:"retry"`
}

// CCXTConfig 描述备选的 ccxt 行情来源。
type CCXTConfig struct {
	Exchange   string `mapstructure:"exchange"`
	APIKey     string `mapstructure:"api_key"`
	APISecret  string `mapstructure:"api_secret"`
	APIPass    string `mapstructure:"api_password"`
	UseSandbox bool   `mapstructure:"use_sandbox"`
}

// RetryConfig 统一控制重试机制。
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	MinDelay    time.Duration `mapstructure:"min_delay"`
	MaxDelay    time.Duration `mapstructure:"max_delay"`
}

// TradingConfig 控制下单与资金参数。
type TradingConfig struct {
	Quantity      float64 `mapstructure:"quantity"`
	Balance       float64 `mapstructure:"balance"`
	HaltOnRefusal bool    `mapstructure:"halt_on_refusal"`
	CloseOnExit   bool    `mapstructure:"close_on_exit"`
}

// StrategyConfig 选择信号策略及其参数。
type StrategyConfig struct {
	Name       string  `mapstructure:"name"`
	Threshold  float64 `mapstructure:"threshold"`
	FastPeriod int     `mapstructure:"fast_period"`
	SlowPeriod int     `mapstructure:"slow_period"`
}

// OpenAIConfig 描述大模型策略的调用参数。
type OpenAIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AdminConfig 描述管理端上报接口。
type AdminConfig struct {
	Enabled             bool          `mapstructure:"enabled"`
	BaseURL             string        `mapstructure:"base_url"`
	Timeout             time.Duration `mapstructure:"timeout"`
	StrategyName        string        `mapstructure:"strategy_name"`
	StrategyDescription string        `mapstructure:"strategy_description"`
}

// DatabaseConfig 管理本地事件库连接。
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	InMemory        bool          `mapstructure:"in_memory"`
	RecordEvents    bool          `mapstructure:"record_events"`
}

// LoggingConfig 控制日志输出。
type LoggingConfig struct {
	Level            string   `mapstructure:"level"`
	Encoding         string   `mapstructure:"encoding"`
	Development      bool     `mapstructure:"development"`
	OutputPaths      []string `mapstructure:"output_paths"`
	ErrorOutputPaths []string `mapstructure:"error_output_paths"`
}

// Validate 对配置进行基本校验。
func (c *Config) Validate() error {
	var err error

	if c.App.Environment == "" {
		err = multierr.Append(err, errors.New("app.environment 不能为空"))
	}

	switch c.MarketData.Driver {
	case "moex", "ccxt":
	default:
		err = multierr.Append(err, fmt.Errorf("market_data.driver 不支持 %q", c.MarketData.Driver))
	}
	if c.MarketData.Instrument == "" {
		err = multierr.Append(err, errors.New("market_data.instrument 不能为空"))
	}
	if c.MarketData.Period <= 0 {
		err = multierr.Append(err, errors.New("market_data.period 必须大于0"))
	}
	if c.MarketData.Buffer <= 0 {
		err = multierr.Append(err, errors.New("market_data.buffer 必须大于0"))
	}
	if c.MarketData.Driver == "moex" {
		if c.MarketData.Moex.BaseURL == "" {
			err = multierr.Append(err, errors.New("market_data.moex.base_url 不能为空"))
		}
		if c.MarketData.Moex.Timeout <= 0 {
			err = multierr.Append(err, errors.New("market_data.moex.timeout 必须大于0"))
		}
		if c.MarketData.Moex.Retry.MaxAttempts <= 0 {
			err = multierr.Append(err, errors.New("market_data.moex.retry.max_attempts 必须大于0"))
		}
		if c.MarketData.Moex.Retry.MinDelay <= 0 || c.MarketData.Moex.Retry.MaxDelay <= 0 {
			err = multierr.Append(err, errors.New("market_data.moex.retry.delay 必须为正"))
		}
		if c.MarketData.Moex.Retry.MinDelay > c.MarketData.Moex.Retry.MaxDelay {
			err = multierr.Append(err, errors.New("market_data.moex.retry.min_delay 不能大于 max_delay"))
		}
	}
	if c.MarketData.Driver == "ccxt" {
		switch c.MarketData.CCXT.Exchange {
		case "binanceusdm":
		case "":
			err = multierr.Append(err, errors.New("market_data.ccxt.exchange 不能为空"))
		default:
			err = multierr.Append(err, fmt.Errorf("market_data.ccxt.exchange 不支持 %q", c.MarketData.CCXT.Exchange))
		}
	}

	if c.Trading.Quantity < 0 {
		err = multierr.Append(err, errors.New("trading.quantity 不能为负"))
	}
	if c.Trading.Balance <= 0 {
		err = multierr.Append(err, errors.New("trading.balance 必须大于0"))
	}

	switch c.Strategy.Name {
	case "threshold":
		if c.Strategy.Threshold <= 0 {
			err = multierr.Append(err, errors.New("strategy.threshold 必须大于0"))
		}
	case "sma_cross":
		if c.Strategy.FastPeriod <= 0 || c.Strategy.SlowPeriod <= 0 {
			err = multierr.Append(err, errors.New("strategy.fast_period 与 slow_period 必须大于0"))
		}
		if c.Strategy.FastPeriod >= c.Strategy.SlowPeriod {
			err = multierr.Append(err, errors.New("strategy.fast_period 必须小于 slow_period"))
		}
	case "llm":
		if c.OpenAI.APIKey == "" {
			err = multierr.Append(err, errors.New("openai.api_key 不能为空"))
		}
		if c.OpenAI.Model == "" {
			err = multierr.Append(err, errors.New("openai.model 不能为空"))
		}
		if c.OpenAI.Timeout <= 0 {
			err = multierr.Append(err, errors.New("openai.timeout 必须大于0"))
		}
	default:
		err = multierr.Append(err, fmt.Errorf("strategy.name 不支持 %q", c.Strategy.Name))
	}

	if c.Admin.Enabled {
		if c.Admin.BaseURL == "" {
			err = multierr.Append(err, errors.New("admin.base_url 不能为空"))
		}
		if c.Admin.Timeout <= 0 {
			err = multierr.Append(err, errors.New("admin.timeout 必须大于0"))
		}
		if c.Admin.StrategyName == "" {
			err = multierr.Append(err, errors.New("admin.strategy_name 不能为空"))
		}
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
	if c.Database.ConnMaxLifetime < 0 {
		err = multierr.Append(err, errors.New("database.conn_max_lifetime 不能为负"))
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
