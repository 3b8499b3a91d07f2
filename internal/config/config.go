// Package config loads the scanner configuration from YAML, with secrets
// taken from the environment (optionally a .env file).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	KindBinance = "binance"
	KindBittrex = "bittrex"

	DefaultAPIKeyEnv = "CoinMarketCapKey"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
	Sandbox       SandboxConfig       `yaml:"sandbox"`
	Storage       StorageConfig       `yaml:"storage"`
	Icons         IconsConfig         `yaml:"icons"`
	HTTP          HTTPConfig          `yaml:"http"`
	Cache         CacheConfig         `yaml:"cache"`
	Exchanges     []ExchangeConfig    `yaml:"exchanges" validate:"min=1,dive"`
	CoinMarketCap CoinMarketCapConfig `yaml:"coinmarketcap"`
	RSI           RSIConfig           `yaml:"rsi"`
	Candles       CandlesConfig       `yaml:"candles"`
	Stream        StreamConfig        `yaml:"stream"`
}

type ServerConfig struct {
	Port int `yaml:"port" validate:"gt=0,lte=65535"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding" validate:"omitempty,oneof=json console"`
}

type SandboxConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FixturesDir string `yaml:"fixtures_dir" validate:"required_if=Enabled true"`
}

type StorageConfig struct {
	Path string `yaml:"path" validate:"required"`
}

type IconsConfig struct {
	Dir         string `yaml:"dir"`
	FetchRemote bool   `yaml:"fetch_remote"`
}

type HTTPConfig struct {
	Timeout      time.Duration `yaml:"timeout" validate:"gt=0"`
	MaxRetries   int           `yaml:"max_retries" validate:"gte=0"`
	RetryBackoff time.Duration `yaml:"retry_backoff" validate:"gte=0"`
}

type CacheConfig struct {
	DefaultTTL    time.Duration            `yaml:"default_ttl" validate:"gt=0"`
	TTL           map[string]time.Duration `yaml:"ttl"`
	SweepInterval time.Duration            `yaml:"sweep_interval" validate:"gte=0"`
}

type ExchangeConfig struct {
	Name          string   `yaml:"name" validate:"required"`
	Kind          string   `yaml:"kind" validate:"required,oneof=binance bittrex"`
	BaseURL       string   `yaml:"base_url" validate:"omitempty,url"`
	TradeURL      string   `yaml:"trade_url" validate:"omitempty,url"`
	StreamURL     string   `yaml:"stream_url" validate:"omitempty,url"`
	ExcludeQuotes []string `yaml:"exclude_quotes"`
}

type CoinMarketCapConfig struct {
	BaseURL     string `yaml:"base_url" validate:"omitempty,url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	APIKey      string `yaml:"-"`
	ExcludedIDs []int  `yaml:"excluded_ids"`
	BatchSize   int    `yaml:"batch_size" validate:"gte=0"`
}

type RSIConfig struct {
	Period   int    `yaml:"period" validate:"gt=0"`
	Interval string `yaml:"interval" validate:"required"`
	Range    string `yaml:"range" validate:"required"`
}

type CandlesConfig struct {
	MaxPoints int `yaml:"max_points" validate:"gt=0"`
}

type StreamConfig struct {
	Enabled bool `yaml:"enabled"`
}

// DefaultBinanceExcludedQuotes are fiat and regional quotes the scanner
// has never listed.
func DefaultBinanceExcludedQuotes() []string {
	return []string{"NGN", "RUB", "TRY", "EUR", "ZAR", "BKRW", "IDRT"}
}

// Default returns a configuration that serves Binance and Bittrex live.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: 8080},
		Logging: LoggingConfig{Level: "info", Encoding: "json"},
		Sandbox: SandboxConfig{FixturesDir: "fixtures"},
		Storage: StorageConfig{Path: "scanner.db"},
		Icons:   IconsConfig{Dir: "icons"},
		HTTP: HTTPConfig{
			Timeout:      10 * time.Second,
			MaxRetries:   2,
			RetryBackoff: 200 * time.Millisecond,
		},
		Cache: CacheConfig{
			DefaultTTL:    5 * time.Minute,
			SweepInterval: time.Minute,
		},
		CoinMarketCap: CoinMarketCapConfig{
			APIKeyEnv:   DefaultAPIKeyEnv,
			ExcludedIDs: []int{6999},
			BatchSize:   500,
		},
		RSI:     RSIConfig{Period: 14, Interval: "24h", Range: "1M"},
		Candles: CandlesConfig{MaxPoints: 500},
	}
}

// Load reads path over the defaults. A .env file next to the process, if
// present, is loaded first so the API key can live there.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	cfg := Default()
	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	cfg.applyDefaults()
	if cfg.CoinMarketCap.APIKeyEnv != "" {
		cfg.CoinMarketCap.APIKey = os.Getenv(cfg.CoinMarketCap.APIKeyEnv)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Exchanges {
		e := &c.Exchanges[i]
		if e.Kind == KindBinance && e.ExcludeQuotes == nil {
			e.ExcludeQuotes = DefaultBinanceExcludedQuotes()
		}
	}
	if c.CoinMarketCap.APIKeyEnv == "" {
		c.CoinMarketCap.APIKeyEnv = DefaultAPIKeyEnv
	}
}

func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	seen := make(map[string]bool, len(c.Exchanges))
	for _, e := range c.Exchanges {
		if seen[e.Name] {
			return fmt.Errorf("%w: exchange %q configured twice", ErrInvalidConfig, e.Name)
		}
		seen[e.Name] = true
	}
	return nil
}

// Exchange returns the named exchange section.
func (c *Config) Exchange(name string) (ExchangeConfig, bool) {
	for _, e := range c.Exchanges {
		if e.Name == name {
			return e, true
		}
	}
	return ExchangeConfig{}, false
}
