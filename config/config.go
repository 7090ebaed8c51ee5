// Package config loads the tradegate service configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rustyeddy/tradegate/advisor"
	"github.com/rustyeddy/tradegate/engine"
	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/intent"
	"github.com/rustyeddy/tradegate/market"
	"github.com/rustyeddy/tradegate/notify"
	"github.com/rustyeddy/tradegate/pkg/logger"
	"github.com/rustyeddy/tradegate/provider"
	"github.com/rustyeddy/tradegate/regime"
	"github.com/rustyeddy/tradegate/risk"
	"gopkg.in/yaml.v3"
)

// Config is the complete service configuration.
type Config struct {
	Log       logger.Config          `json:"log" yaml:"log"`
	Engine    engine.Options         `json:"engine" yaml:"engine"`
	Schedule  engine.ScheduleOptions `json:"schedule" yaml:"schedule"`
	Trading   gate.Settings          `json:"trading" yaml:"trading"`
	Regime    regime.Policy          `json:"regime" yaml:"regime"`
	Risk      risk.Policy            `json:"risk" yaml:"risk"`
	Journal   JournalConfig          `json:"journal" yaml:"journal"`
	Cooldown  CooldownConfig         `json:"cooldown" yaml:"cooldown"`
	Providers ProvidersConfig        `json:"providers" yaml:"providers"`
	Advisor   AdvisorConfig          `json:"advisor" yaml:"advisor"`
	Intents   IntentsConfig          `json:"intents" yaml:"intents"`
	Notify    NotifyConfig           `json:"notify" yaml:"notify"`
	HTTP      HTTPConfig             `json:"http" yaml:"http"`
}

// JournalConfig selects the trade store.
type JournalConfig struct {
	Type   string `json:"type" yaml:"type" default:"sqlite" validate:"oneof=sqlite postgres memory"`
	DBPath string `json:"db_path,omitempty" yaml:"db_path,omitempty" default:"./tradegate.db"`
	DSN    string `json:"-" yaml:"-"`
}

// CooldownConfig selects where cooldown expiries live.
type CooldownConfig struct {
	Backend   string `json:"backend" yaml:"backend" default:"memory" validate:"oneof=memory redis"`
	RedisAddr string `json:"redis_addr,omitempty" yaml:"redis_addr,omitempty" default:"localhost:6379"`
	RedisDB   int    `json:"redis_db,omitempty" yaml:"redis_db,omitempty"`
	Prefix    string `json:"prefix,omitempty" yaml:"prefix,omitempty" default:"tradegate:cooldown:"`
}

// ProvidersConfig selects the price source: the live APIs or CSV files.
type ProvidersConfig struct {
	Source     string                     `json:"source" yaml:"source" default:"api" validate:"oneof=api csv"`
	CSVDir     string                     `json:"csv_dir,omitempty" yaml:"csv_dir,omitempty" default:"./data"`
	Binance    provider.BinanceOptions    `json:"binance" yaml:"binance"`
	TwelveData provider.TwelveDataOptions `json:"twelvedata" yaml:"twelvedata"`
}

type AdvisorConfig struct {
	Kind   string                  `json:"kind" yaml:"kind" default:"noop" validate:"oneof=noop openai ema"`
	OpenAI advisor.OpenAIOptions   `json:"openai" yaml:"openai"`
	EMA    advisor.EMACrossOptions `json:"ema" yaml:"ema"`
}

type IntentsConfig struct {
	Kind  string              `json:"kind" yaml:"kind" default:"log" validate:"oneof=log kafka"`
	Kafka intent.KafkaOptions `json:"kafka" yaml:"kafka"`
}

type NotifyConfig struct {
	Telegram notify.TelegramOptions `json:"telegram" yaml:"telegram"`
}

type HTTPConfig struct {
	Addr    string `json:"addr" yaml:"addr" default:":8080"`
	Enabled bool   `json:"enabled" yaml:"enabled" default:"true"`
}

var validate = validator.New()

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		panic(fmt.Sprintf("config defaults: %v", err))
	}
	if len(cfg.Schedule.Assets) == 0 {
		for _, a := range market.AssetList() {
			cfg.Schedule.Assets = append(cfg.Schedule.Assets, a.Symbol)
		}
	}
	return cfg
}

// LoadFromFile reads a YAML (or JSON) file over the defaults, applies
// environment overrides and validates the result.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := Default()

	// Try YAML first, fall back to JSON
	if err := yaml.Unmarshal(data, cfg); err != nil {
		cfg = Default()
		if jerr := json.Unmarshal(data, cfg); jerr != nil {
			return nil, fmt.Errorf("parse config (tried YAML and JSON): %w", err)
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads .env files into the process environment. Missing files
// are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv copies secrets and deployment overrides from the environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
		c.Advisor.OpenAI.APIKey = v
	}
	if v, ok := lookup("TWELVE_DATA_API_KEY"); ok && v != "" {
		c.Providers.TwelveData.APIKey = v
	}
	if v, ok := lookup("TRADEGATE_DSN"); ok && v != "" {
		c.Journal.DSN = v
	}
	if v, ok := lookup("REDIS_ADDR"); ok && v != "" {
		c.Cooldown.RedisAddr = v
	}
	if v, ok := lookup("KAFKA_BROKERS"); ok && v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Intents.Kafka.Brokers = brokers
	}
	if v, ok := lookup("TRADEGATE_MODE"); ok && v != "" {
		c.Trading.Mode = gate.Mode(strings.ToUpper(v))
	}
	if v, ok := lookup("TELEGRAM_BOT_TOKEN"); ok && v != "" {
		c.Notify.Telegram.Token = v
	}
	if v, ok := lookup("TELEGRAM_CHAT_ID"); ok && v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Notify.Telegram.ChatID = id
		}
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := c.Trading.Validate(); err != nil {
		return err
	}
	if err := c.Regime.Validate(); err != nil {
		return err
	}
	if err := c.Risk.Validate(); err != nil {
		return err
	}
	if c.Engine.StartingNAV <= 0 {
		return fmt.Errorf("engine.starting_nav must be positive")
	}
	if len(c.Schedule.Assets) == 0 {
		return fmt.Errorf("schedule.assets must not be empty")
	}
	for _, a := range c.Schedule.Assets {
		if _, err := market.LookupAsset(a); err != nil {
			return fmt.Errorf("schedule.assets: %w", err)
		}
	}
	if c.Journal.Type == "sqlite" && c.Journal.DBPath == "" {
		return fmt.Errorf("journal db_path required for sqlite type")
	}
	if c.Journal.Type == "postgres" && c.Journal.DSN == "" {
		return fmt.Errorf("journal postgres requires TRADEGATE_DSN")
	}
	if c.Cooldown.Backend == "redis" && c.Cooldown.RedisAddr == "" {
		return fmt.Errorf("cooldown redis_addr required for redis backend")
	}
	if c.Providers.Source == "csv" && c.Providers.CSVDir == "" {
		return fmt.Errorf("providers csv_dir required for csv source")
	}
	if c.Advisor.Kind == "openai" && c.Advisor.OpenAI.APIKey == "" {
		return fmt.Errorf("advisor openai requires OPENAI_API_KEY")
	}
	if c.Advisor.Kind == "ema" {
		if err := c.Advisor.EMA.Validate(); err != nil {
			return fmt.Errorf("advisor: %w", err)
		}
	}
	if c.Intents.Kind == "kafka" && len(c.Intents.Kafka.Brokers) == 0 {
		return fmt.Errorf("intents kafka requires brokers (KAFKA_BROKERS)")
	}
	return nil
}

// SaveToFile writes YAML for .yaml/.yml paths and JSON otherwise.
func (c *Config) SaveToFile(path string) error {
	var data []byte
	var err error

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}
	return nil
}
