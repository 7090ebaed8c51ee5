package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rustyeddy/tradegate/api"
	"github.com/rustyeddy/tradegate/engine"
	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/rustyeddy/tradegate/pkg/logger"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the decision loop and HTTP API",
	Long: `Run refreshes prices and evaluates every configured asset on a schedule.
Executed trades are journaled, published as intents and notified.

Example:
  tradegate run -c tradegate.yaml`,
	RunE: runRun,
}

var runNoHTTP bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().BoolVar(&runNoHTTP, "no-http", false, "do not start the HTTP API")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := buildApp(ctx, cfg, clock.Real{}, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error().Err(err).Msg("shutdown")
		}
	}()

	log.Info().
		Str("mode", string(cfg.Trading.Mode)).
		Strs("assets", cfg.Schedule.Assets).
		Float64("nav", a.engine.NAV()).
		Msg("tradegate starting")

	errc := make(chan error, 1)
	var srv *api.Server
	if cfg.HTTP.Enabled && !runNoHTTP {
		srv = api.New(a.engine, log, api.WithAddr(cfg.HTTP.Addr))
		go func() {
			if err := srv.Start(); err != nil {
				errc <- err
			}
		}()
	}

	done := make(chan error, 1)
	go func() { done <- engine.NewScheduler(a.engine, cfg.Schedule).Run(ctx) }()

	select {
	case <-ctx.Done():
	case err = <-errc:
		log.Error().Err(err).Msg("stopping")
		stop()
	}
	// scheduler returns once ctx is cancelled
	if serr := <-done; serr != nil && err == nil {
		err = serr
	}

	if srv != nil {
		if serr := srv.Stop(context.Background()); serr != nil {
			log.Error().Err(serr).Msg("http shutdown")
		}
	}
	log.Info().Msg("tradegate stopped")
	return err
}
