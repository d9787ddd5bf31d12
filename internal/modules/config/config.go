package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v2"
)

const (
	configFilePathENV = "CONFIG_FILE"
	configDirENV      = "CONFIG_DIR"
)

// Config ...
type Config struct {
	Telegram struct {
		Token   string  `yaml:"token"`
		ChatIDs []int64 `yaml:"chat_ids"`
	} `yaml:"telegram"`

	Exchange struct {
		Account        string        `yaml:"account"`
		BaseURL        string        `yaml:"base_url"`
		WSURL          string        `yaml:"ws_url"`
		APIKey         string        `yaml:"api_key"`
		APISecret      string        `yaml:"api_secret"`
		QuoteCurrency  string        `yaml:"quote_currency"`
		HTTPTimeout    time.Duration `yaml:"http_timeout"`
		RequestsPerMin int           `yaml:"requests_per_min"`
	} `yaml:"exchange"`

	Sweep SweepConfig `yaml:"sweep"`

	Advisor struct {
		Enabled        bool          `yaml:"enabled"`
		BaseURL        string        `yaml:"base_url"`
		APIKey         string        `yaml:"api_key"`
		Model          string        `yaml:"model"`
		RequestsPerMin int           `yaml:"requests_per_min"`
		TokensPerMin   int           `yaml:"tokens_per_min"`
		MaxTokens      int           `yaml:"max_tokens"`
		Timeout        time.Duration `yaml:"timeout"`
		ApplyHint      bool          `yaml:"apply_hint"`
	} `yaml:"advisor"`

	Storage struct {
		Driver string `yaml:"driver"` // sqlite | postgres | memory
		DSN    string `yaml:"dsn"`
		Path   string `yaml:"path"`
	} `yaml:"storage"`

	Service struct {
		Host      string `yaml:"host"`
		AdminPort int    `yaml:"admin_port"`
	} `yaml:"service"`

	Tracing struct {
		Enabled bool   `yaml:"enabled"`
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
	} `yaml:"tracing"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// SweepConfig — параметры движка ликвидации.
type SweepConfig struct {
	Interval     time.Duration `yaml:"interval"`
	MinSellUSD   float64       `yaml:"min_sell_usd"`
	Allow        []string      `yaml:"allow"`
	Deny         []string      `yaml:"deny"`
	OrderType    string        `yaml:"order_type"` // market | limit
	PollInterval time.Duration `yaml:"poll_interval"`
	PollAttempts int           `yaml:"poll_attempts"`
	MaxInFlight  int           `yaml:"max_in_flight"`
	// ClampToMin — поднимать объём до minQuantity, если свободного остатка хватает
	ClampToMin            bool          `yaml:"clamp_to_min"`
	SuccessPolicy         string        `yaml:"success_policy"` // any | all
	MarketRefreshCooldown time.Duration `yaml:"market_refresh_cooldown"`
	RunOnStart            bool          `yaml:"run_on_start"`
}

// Default — значения по умолчанию до чтения файла.
func Default() Config {
	var c Config
	c.Exchange.Account = "default"
	c.Exchange.QuoteCurrency = "usdt"
	c.Exchange.HTTPTimeout = 30 * time.Second
	c.Exchange.RequestsPerMin = 120

	c.Sweep = SweepConfig{
		Interval:              time.Hour,
		MinSellUSD:            1.0,
		OrderType:             "market",
		PollInterval:          10 * time.Second,
		PollAttempts:          30,
		MaxInFlight:           3,
		SuccessPolicy:         "any",
		MarketRefreshCooldown: time.Minute,
	}

	c.Advisor.Model = "gpt-4o-mini"
	c.Advisor.RequestsPerMin = 10
	c.Advisor.TokensPerMin = 20000
	c.Advisor.MaxTokens = 300
	c.Advisor.Timeout = 20 * time.Second

	c.Storage.Driver = "sqlite"
	c.Storage.Path = "data/journal.db"

	c.Service.AdminPort = 8080
	c.Tracing.Host = "localhost"
	c.Tracing.Port = 6831
	c.Log.Level = "info"
	return c
}

func NewConfig() (*Config, error) {
	// .env не обязателен
	_ = godotenv.Load()

	dir := getenvDefault(configDirENV, "configs")
	name := getenvDefault(configFilePathENV, "values_local.yaml")

	raw, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return Parse(raw, EnvViper())
}

// Parse декодирует YAML поверх дефолтов и накладывает окружение из env.
// env == nil — только файл.
func Parse(raw []byte, env *viper.Viper) (*Config, error) {
	cfg := Default()
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, fmt.Errorf("decode config file: %w", err)
		}
	}

	if env != nil {
		if err := applyEnv(&cfg, env); err != nil {
			return nil, err
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// EnvViper — любой ключ файла переопределяется переменной окружения:
// sweep.max_in_flight <- SWEEP_MAX_IN_FLIGHT, exchange.api_key <- EXCHANGE_API_KEY.
func EnvViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// DATABASE_DSN — старое имя из .env
	_ = v.BindEnv("storage.dsn", "STORAGE_DSN", "DATABASE_DSN")
	return v
}

func applyEnv(cfg *Config, v *viper.Viper) error {
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	num := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	dur := func(key string, dst *time.Duration) {
		if v.IsSet(key) {
			*dst = v.GetDuration(key)
		}
	}
	flag := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	list := func(key string, dst *[]string) {
		if v.IsSet(key) {
			*dst = strings.Split(v.GetString(key), ",")
		}
	}

	str("telegram.token", &cfg.Telegram.Token)
	if v.IsSet("telegram.chat_ids") {
		ids, err := parseIDs(v.GetString("telegram.chat_ids"))
		if err != nil {
			return fmt.Errorf("TELEGRAM_CHAT_IDS: %w", err)
		}
		cfg.Telegram.ChatIDs = ids
	}

	str("exchange.account", &cfg.Exchange.Account)
	str("exchange.base_url", &cfg.Exchange.BaseURL)
	str("exchange.ws_url", &cfg.Exchange.WSURL)
	str("exchange.api_key", &cfg.Exchange.APIKey)
	str("exchange.api_secret", &cfg.Exchange.APISecret)
	str("exchange.quote_currency", &cfg.Exchange.QuoteCurrency)
	dur("exchange.http_timeout", &cfg.Exchange.HTTPTimeout)
	num("exchange.requests_per_min", &cfg.Exchange.RequestsPerMin)

	dur("sweep.interval", &cfg.Sweep.Interval)
	if v.IsSet("sweep.min_sell_usd") {
		cfg.Sweep.MinSellUSD = v.GetFloat64("sweep.min_sell_usd")
	}
	list("sweep.allow", &cfg.Sweep.Allow)
	list("sweep.deny", &cfg.Sweep.Deny)
	str("sweep.order_type", &cfg.Sweep.OrderType)
	dur("sweep.poll_interval", &cfg.Sweep.PollInterval)
	num("sweep.poll_attempts", &cfg.Sweep.PollAttempts)
	num("sweep.max_in_flight", &cfg.Sweep.MaxInFlight)
	flag("sweep.clamp_to_min", &cfg.Sweep.ClampToMin)
	str("sweep.success_policy", &cfg.Sweep.SuccessPolicy)
	dur("sweep.market_refresh_cooldown", &cfg.Sweep.MarketRefreshCooldown)
	flag("sweep.run_on_start", &cfg.Sweep.RunOnStart)

	flag("advisor.enabled", &cfg.Advisor.Enabled)
	str("advisor.base_url", &cfg.Advisor.BaseURL)
	str("advisor.api_key", &cfg.Advisor.APIKey)
	str("advisor.model", &cfg.Advisor.Model)
	num("advisor.requests_per_min", &cfg.Advisor.RequestsPerMin)
	num("advisor.tokens_per_min", &cfg.Advisor.TokensPerMin)
	num("advisor.max_tokens", &cfg.Advisor.MaxTokens)
	dur("advisor.timeout", &cfg.Advisor.Timeout)
	flag("advisor.apply_hint", &cfg.Advisor.ApplyHint)

	str("storage.driver", &cfg.Storage.Driver)
	str("storage.dsn", &cfg.Storage.DSN)
	str("storage.path", &cfg.Storage.Path)

	str("service.host", &cfg.Service.Host)
	num("service.admin_port", &cfg.Service.AdminPort)

	flag("tracing.enabled", &cfg.Tracing.Enabled)
	str("tracing.host", &cfg.Tracing.Host)
	num("tracing.port", &cfg.Tracing.Port)

	str("log.level", &cfg.Log.Level)
	return nil
}

func parseIDs(s string) ([]int64, error) {
	var out []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

func (c *Config) normalize() {
	c.Exchange.BaseURL = strings.TrimRight(strings.TrimSpace(c.Exchange.BaseURL), "/")
	c.Exchange.QuoteCurrency = strings.ToLower(strings.TrimSpace(c.Exchange.QuoteCurrency))
	c.Sweep.OrderType = strings.ToLower(strings.TrimSpace(c.Sweep.OrderType))
	c.Sweep.SuccessPolicy = strings.ToLower(strings.TrimSpace(c.Sweep.SuccessPolicy))
	c.Storage.Driver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	c.Sweep.Allow = lowerAll(c.Sweep.Allow)
	c.Sweep.Deny = lowerAll(c.Sweep.Deny)
	if c.Exchange.Account == "" {
		c.Exchange.Account = "default"
	}
}

// Validate проверяет то, что нельзя молча заменить дефолтом.
func (c *Config) Validate() error {
	switch c.Sweep.OrderType {
	case "market", "limit":
	default:
		return fmt.Errorf("sweep.order_type must be market|limit, got %q", c.Sweep.OrderType)
	}
	switch c.Sweep.SuccessPolicy {
	case "any", "all":
	default:
		return fmt.Errorf("sweep.success_policy must be any|all, got %q", c.Sweep.SuccessPolicy)
	}
	switch c.Storage.Driver {
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("storage.driver must be sqlite|postgres|memory, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver == "postgres" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn is required for postgres")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url is required")
	}
	if c.Exchange.QuoteCurrency == "" {
		return fmt.Errorf("exchange.quote_currency is required")
	}
	if c.Sweep.PollAttempts <= 0 || c.Sweep.PollInterval <= 0 {
		return fmt.Errorf("sweep.poll_attempts and sweep.poll_interval must be > 0")
	}
	if c.Sweep.MaxInFlight < 0 || c.Sweep.MinSellUSD < 0 || c.Exchange.RequestsPerMin < 0 {
		return fmt.Errorf("negative limits are not allowed")
	}
	if c.Sweep.Interval < 0 {
		return fmt.Errorf("sweep.interval must be >= 0")
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getenvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
