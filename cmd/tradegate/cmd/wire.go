package cmd

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/rustyeddy/tradegate/advisor"
	"github.com/rustyeddy/tradegate/config"
	"github.com/rustyeddy/tradegate/cooldown"
	"github.com/rustyeddy/tradegate/engine"
	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/intent"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/metrics"
	"github.com/rustyeddy/tradegate/notify"
	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/rustyeddy/tradegate/provider"
	"github.com/rustyeddy/tradegate/regime"
)

// app is a fully wired engine plus whatever must be closed on exit.
type app struct {
	engine  *engine.Engine
	closers []func() error
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func openJournal(ctx context.Context, cfg *config.Config) (journal.Store, error) {
	st, err := journal.Open(ctx, cfg.Journal.Type, cfg.Journal.DBPath, cfg.Journal.DSN)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return st, nil
}

func newCooldowns(ctx context.Context, cfg *config.Config, clk clock.Clock) (cooldown.Registry, func() error, error) {
	if cfg.Cooldown.Backend != "redis" {
		return cooldown.NewMemory(clk), func() error { return nil }, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.Cooldown.RedisAddr, DB: cfg.Cooldown.RedisDB})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis ping %s: %w", cfg.Cooldown.RedisAddr, err)
	}
	reg := cooldown.NewRedis(client, clk, cooldown.WithPrefix(cfg.Cooldown.Prefix))
	return reg, client.Close, nil
}

func newPriceSource(cfg *config.Config) provider.PriceSource {
	if cfg.Providers.Source == "csv" {
		return provider.NewCSVSource(cfg.Providers.CSVDir)
	}
	return &provider.Router{
		Crypto: provider.NewBinance(cfg.Providers.Binance),
		Other:  provider.NewTwelveData(cfg.Providers.TwelveData),
	}
}

func newAdvisor(cfg *config.Config, clk clock.Clock, log zerolog.Logger) (advisor.Advisor, error) {
	switch cfg.Advisor.Kind {
	case "openai":
		return advisor.NewOpenAI(cfg.Advisor.OpenAI, clk, log), nil
	case "ema":
		return advisor.NewEMACross(cfg.Advisor.EMA, clk)
	}
	return advisor.Noop{Clock: clk}, nil
}

func newPublisher(cfg *config.Config, log zerolog.Logger) (intent.Publisher, error) {
	if cfg.Intents.Kind == "kafka" {
		return intent.NewKafka(cfg.Intents.Kafka)
	}
	return intent.NewLog(log), nil
}

func newNotifier(cfg *config.Config, log zerolog.Logger) (notify.Notifier, error) {
	ns := notify.Multi{notify.NewLog(log)}
	if cfg.Notify.Telegram.Token != "" {
		tg, err := notify.NewTelegram(cfg.Notify.Telegram)
		if err != nil {
			return nil, err
		}
		ns = append(ns, tg)
	}
	return ns, nil
}

// buildApp wires every collaborator named by cfg into an engine and
// restores its NAV from the journal.
func buildApp(ctx context.Context, cfg *config.Config, clk clock.Clock, log zerolog.Logger) (*app, error) {
	a := &app{}
	fail := func(err error) (*app, error) {
		_ = a.Close()
		return nil, err
	}

	store, err := openJournal(ctx, cfg)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, store.Close)

	cooldowns, closeCooldowns, err := newCooldowns(ctx, cfg, clk)
	if err != nil {
		return fail(err)
	}
	a.closers = append(a.closers, closeCooldowns)

	pub, err := newPublisher(cfg, log)
	if err != nil {
		return fail(fmt.Errorf("intent publisher: %w", err))
	}
	a.closers = append(a.closers, pub.Close)

	notifier, err := newNotifier(cfg, log)
	if err != nil {
		return fail(fmt.Errorf("notifier: %w", err))
	}

	adv, err := newAdvisor(cfg, clk, log)
	if err != nil {
		return fail(fmt.Errorf("advisor: %w", err))
	}

	settings, err := gate.NewSettingsStore(cfg.Trading)
	if err != nil {
		return fail(err)
	}

	e, err := engine.New(engine.Deps{
		Classifier: regime.NewClassifier(cfg.Regime, clk),
		RiskPolicy: cfg.Risk,
		Gate:       gate.New(settings, cooldowns),
		Prices:     newPriceSource(cfg),
		Advisor:    adv,
		Store:      store,
		Publisher:  pub,
		Notifier:   notifier,
		Metrics:    metrics.New("tradegate"),
		Clock:      clk,
		Logger:     log,
	}, cfg.Engine)
	if err != nil {
		return fail(err)
	}
	if err := e.Restore(ctx); err != nil {
		return fail(fmt.Errorf("restore nav: %w", err))
	}
	a.engine = e
	return a, nil
}
