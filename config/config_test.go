package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rustyeddy/tradegate/gate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.NotNil(t, cfg)
	assert.Equal(t, gate.Manual, cfg.Trading.Mode)
	assert.Equal(t, 0.02, cfg.Trading.MaxRiskPerTrade)
	assert.Equal(t, 5*time.Minute, cfg.Trading.CooldownPeriod)
	assert.Equal(t, 0.00001, cfg.Risk.MaxDrawdownThreshold)
	assert.Equal(t, 20, cfg.Regime.MinSamples)
	assert.Equal(t, 10000.0, cfg.Engine.StartingNAV)
	assert.Equal(t, []string{"AAPL", "BTCUSDT", "ETHUSDT", "EURUSD"}, cfg.Schedule.Assets)
	assert.Equal(t, "sqlite", cfg.Journal.Type)
	assert.Equal(t, "noop", cfg.Advisor.Kind)
	assert.Equal(t, 9, cfg.Advisor.EMA.FastPeriod)
	assert.Equal(t, 21, cfg.Advisor.EMA.SlowPeriod)
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		errMsg  string
	}{
		{
			name:    "valid config",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "unknown mode",
			mutate:  func(c *Config) { c.Trading.Mode = "YOLO" },
			wantErr: true,
			errMsg:  "unknown mode",
		},
		{
			name:    "positive decline threshold",
			mutate:  func(c *Config) { c.Trading.DeclineThreshold = 0.05 },
			wantErr: true,
			errMsg:  "decline_threshold must be negative",
		},
		{
			name:    "regime windows too large",
			mutate:  func(c *Config) { c.Regime.MinSamples = 10 },
			wantErr: true,
			errMsg:  "must cover two trend windows",
		},
		{
			name:    "negative drawdown threshold",
			mutate:  func(c *Config) { c.Risk.MaxDrawdownThreshold = -1 },
			wantErr: true,
			errMsg:  "max_drawdown_threshold must not be negative",
		},
		{
			name:    "ema advisor with defaults",
			mutate:  func(c *Config) { c.Advisor.Kind = "ema" },
			wantErr: false,
		},
		{
			name: "ema advisor with inverted periods",
			mutate: func(c *Config) {
				c.Advisor.Kind = "ema"
				c.Advisor.EMA.FastPeriod = 30
			},
			wantErr: true,
			errMsg:  "must be below slow_period",
		},
		{
			name:    "unknown journal type",
			mutate:  func(c *Config) { c.Journal.Type = "csv" },
			wantErr: true,
			errMsg:  "oneof",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Journal.Type = "postgres" },
			wantErr: true,
			errMsg:  "TRADEGATE_DSN",
		},
		{
			name:    "unknown asset",
			mutate:  func(c *Config) { c.Schedule.Assets = []string{"DOGEUSDT"} },
			wantErr: true,
			errMsg:  "unknown asset",
		},
		{
			name:    "no assets",
			mutate:  func(c *Config) { c.Schedule.Assets = nil },
			wantErr: true,
			errMsg:  "schedule.assets must not be empty",
		},
		{
			name:    "openai without key",
			mutate:  func(c *Config) { c.Advisor.Kind = "openai" },
			wantErr: true,
			errMsg:  "OPENAI_API_KEY",
		},
		{
			name:    "kafka without brokers",
			mutate:  func(c *Config) { c.Intents.Kind = "kafka" },
			wantErr: true,
			errMsg:  "brokers",
		},
		{
			name:    "zero starting nav",
			mutate:  func(c *Config) { c.Engine.StartingNAV = 0 },
			wantErr: true,
			errMsg:  "starting_nav must be positive",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFromFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradegate.yaml")

	content := `
trading:
  mode: AUTOPILOT
  cooldown_period: 10m
  confidence_threshold: 80
risk:
  max_drawdown_threshold: 10
schedule:
  assets: [BTCUSDT, ETHUSDT]
  eval_interval: 1m
journal:
  type: memory
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, gate.Autopilot, cfg.Trading.Mode)
	assert.Equal(t, 10*time.Minute, cfg.Trading.CooldownPeriod)
	assert.Equal(t, 80.0, cfg.Trading.ConfidenceThreshold)
	assert.Equal(t, 10.0, cfg.Risk.MaxDrawdownThreshold)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Schedule.Assets)
	assert.Equal(t, time.Minute, cfg.Schedule.EvalInterval)
	assert.Equal(t, "memory", cfg.Journal.Type)

	// untouched fields keep their defaults
	assert.Equal(t, 0.02, cfg.Trading.MaxRiskPerTrade)
	assert.Equal(t, 14, cfg.Risk.ATRPeriod)
}

func TestLoadFromFileJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tradegate.json")

	content := `{"trading": {"mode": "PAPER"}, "journal": {"type": "memory"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, gate.Paper, cfg.Trading.Mode)
}

func TestLoadFromFileErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadFromFile(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("trading: [unclosed"), 0o644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("trading:\n  mode: SIDEWAYS\n"), 0o644))
	_, err = LoadFromFile(invalid)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")

	for name, body := range map[string]string{
		"nan_confidence.yaml": "trading:\n  mode: AUTOPILOT\n  confidence_threshold: .nan\n",
		"nan_drawdown.yaml":   "risk:\n  max_drawdown_threshold: .nan\n",
		"inf_regime.yaml":     "regime:\n  crash_return: -.inf\n",
	} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		_, err = LoadFromFile(path)
		require.Error(t, err, name)
		assert.Contains(t, err.Error(), "must be finite", name)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"OPENAI_API_KEY":      "sk-test",
		"TWELVE_DATA_API_KEY": "td-test",
		"TRADEGATE_DSN":       "postgres://localhost/tradegate",
		"REDIS_ADDR":          "redis:6379",
		"KAFKA_BROKERS":       "k1:9092, k2:9092,",
		"TRADEGATE_MODE":      "hybrid",
		"TELEGRAM_BOT_TOKEN":  "123:abc",
		"TELEGRAM_CHAT_ID":    "-1001",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	cfg.ApplyEnv(lookup)

	assert.Equal(t, "sk-test", cfg.Advisor.OpenAI.APIKey)
	assert.Equal(t, "td-test", cfg.Providers.TwelveData.APIKey)
	assert.Equal(t, "postgres://localhost/tradegate", cfg.Journal.DSN)
	assert.Equal(t, "redis:6379", cfg.Cooldown.RedisAddr)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Intents.Kafka.Brokers)
	assert.Equal(t, gate.Hybrid, cfg.Trading.Mode)
	assert.Equal(t, "123:abc", cfg.Notify.Telegram.Token)
	assert.Equal(t, int64(-1001), cfg.Notify.Telegram.ChatID)

	cfg.Advisor.Kind = "openai"
	cfg.Intents.Kind = "kafka"
	cfg.Journal.Type = "postgres"
	assert.NoError(t, cfg.Validate())
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRADEGATE_TEST_DOTENV=loaded\n"), 0o644))
	t.Cleanup(func() { _ = os.Unsetenv("TRADEGATE_TEST_DOTENV") })

	require.NoError(t, LoadDotEnv(path, filepath.Join(dir, "missing.env")))
	assert.Equal(t, "loaded", os.Getenv("TRADEGATE_TEST_DOTENV"))
}

func TestSaveToFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.Trading.Mode = gate.Assisted
	cfg.Journal.Type = "memory"

	for _, name := range []string{"out.yaml", "out.json"} {
		path := filepath.Join(dir, name)
		require.NoError(t, cfg.SaveToFile(path), name)

		loaded, err := LoadFromFile(path)
		require.NoError(t, err, name)
		assert.Equal(t, gate.Assisted, loaded.Trading.Mode, name)
		assert.Equal(t, "memory", loaded.Journal.Type, name)
		assert.Equal(t, cfg.Trading.CooldownPeriod, loaded.Trading.CooldownPeriod, name)
	}
}
