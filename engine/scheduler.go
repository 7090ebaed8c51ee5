package engine

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type ScheduleOptions struct {
	Assets        []string      `json:"assets" yaml:"assets"`
	PriceInterval time.Duration `json:"price_interval" yaml:"price_interval" default:"5s"`
	EvalInterval  time.Duration `json:"eval_interval" yaml:"eval_interval" default:"2m"`
}

// Scheduler drives price refreshes and evaluations for each asset on its
// own tickers. Assets run concurrently; the engine's asset locks keep
// executions for one asset serial.
type Scheduler struct {
	e      *Engine
	opts   ScheduleOptions
	logger zerolog.Logger
}

func NewScheduler(e *Engine, opts ScheduleOptions) *Scheduler {
	if opts.PriceInterval <= 0 {
		opts.PriceInterval = 5 * time.Second
	}
	if opts.EvalInterval <= 0 {
		opts.EvalInterval = 2 * time.Minute
	}
	return &Scheduler{
		e:      e,
		opts:   opts,
		logger: e.logger.With().Str("component", "scheduler").Logger(),
	}
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for _, asset := range s.opts.Assets {
		asset := asset
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.loop(ctx, s.opts.PriceInterval, func() { s.refresh(ctx, asset) })
		}()
		go func() {
			defer wg.Done()
			s.loop(ctx, s.opts.EvalInterval, func() { s.evaluate(ctx, asset) })
		}()
	}
	s.logger.Info().Strs("assets", s.opts.Assets).
		Dur("price_interval", s.opts.PriceInterval).
		Dur("eval_interval", s.opts.EvalInterval).
		Msg("scheduler started")

	<-ctx.Done()
	wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
	return nil
}

// loop runs fn now and then on every tick.
func (s *Scheduler) loop(ctx context.Context, every time.Duration, fn func()) {
	t := time.NewTicker(every)
	defer t.Stop()

	fn()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			fn()
		}
	}
}

func (s *Scheduler) refresh(ctx context.Context, asset string) {
	if _, err := s.e.RefreshPrice(ctx, asset); err != nil && ctx.Err() == nil {
		s.logger.Warn().Err(err).Str("asset", asset).Msg("price refresh failed")
	}
}

func (s *Scheduler) evaluate(ctx context.Context, asset string) {
	res, err := s.e.Evaluate(ctx, asset)
	if err != nil {
		if ctx.Err() == nil {
			s.logger.Error().Err(err).Str("asset", asset).Msg("evaluation failed")
		}
		return
	}
	s.logger.Debug().
		Str("asset", asset).
		Str("regime", string(res.Regime.Regime)).
		Bool("executed", res.Executed).
		Str("reason", res.Reason).
		Msg("evaluated")
}
