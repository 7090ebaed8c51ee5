package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rustyeddy/tradegate/cooldown"
	"github.com/rustyeddy/tradegate/engine"
	"github.com/rustyeddy/tradegate/gate"
	"github.com/rustyeddy/tradegate/journal"
	"github.com/rustyeddy/tradegate/metrics"
	"github.com/rustyeddy/tradegate/pkg/logger"
	"github.com/rustyeddy/tradegate/regime"
	"github.com/rustyeddy/tradegate/replay"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <asset> <prices.csv>",
	Short: "Replay a price file through the decision loop",
	Long: `Replay feeds a recorded price file through the engine on a simulated
clock. Rows may carry scripted events (ADVISE, MODE, CLEAR_COOLDOWN, MANUAL,
EVAL); trades are kept in memory and can be exported.

CSV format:
  time,price,volume,event,arg1,arg2,arg3

Example:
  tradegate replay BTCUSDT data/btc_scenario.csv --eval-every 4 --mode AUTOPILOT`,
	Args: cobra.ExactArgs(2),
	RunE: runReplay,
}

var (
	replayEvalEvery int
	replayMode      string
	replayExport    string
	replayJSON      bool
)

func init() {
	rootCmd.AddCommand(replayCmd)

	replayCmd.Flags().IntVar(&replayEvalEvery, "eval-every", 1, "evaluate every N rows (0 for EVAL events only)")
	replayCmd.Flags().StringVar(&replayMode, "mode", "", "starting trading mode (default from config)")
	replayCmd.Flags().StringVarP(&replayExport, "export", "o", "", "write replayed trades to this CSV file")
	replayCmd.Flags().BoolVar(&replayJSON, "json", false, "print the report as JSON")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if replayMode != "" {
		m, err := gate.ParseMode(replayMode)
		if err != nil {
			return err
		}
		cfg.Trading.Mode = m
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}

	f, err := os.Open(args[1])
	if err != nil {
		return err
	}
	defer f.Close()

	s := replay.NewSession(time.Time{})
	settings, err := gate.NewSettingsStore(cfg.Trading)
	if err != nil {
		return err
	}
	store := journal.NewMemory()
	e, err := engine.New(engine.Deps{
		Classifier: regime.NewClassifier(cfg.Regime, s.Clock),
		RiskPolicy: cfg.Risk,
		Gate:       gate.New(settings, cooldown.NewMemory(s.Clock)),
		Prices:     s.Feed,
		Advisor:    s.Advisor,
		Store:      store,
		Metrics:    metrics.New("replay"),
		Clock:      s.Clock,
		Logger:     log,
	}, cfg.Engine)
	if err != nil {
		return err
	}

	rep, err := s.Run(cmd.Context(), e, f, replay.Options{Asset: args[0], EvalEvery: replayEvalEvery})
	if err != nil {
		return fmt.Errorf("replay: %w", err)
	}

	if replayExport != "" {
		out, err := os.Create(replayExport)
		if err != nil {
			return err
		}
		if err := journal.WriteCSV(out, rep.Trades); err != nil {
			out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	if replayJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}

	fmt.Fprintf(w, "Replayed %d rows, %d evaluations, %d trades\n", rep.Rows, rep.Evaluations, rep.Executed)
	fmt.Fprintf(w, "  NAV: %.2f -> %.2f\n", cfg.Engine.StartingNAV, rep.FinalNAV)
	if rep.Errors > 0 {
		fmt.Fprintf(w, "  Errors: %d\n", rep.Errors)
	}
	reasons := make([]string, 0, len(rep.Reasons))
	for r := range rep.Reasons {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(w, "  %4d  %s\n", rep.Reasons[r], r)
	}
	if replayExport != "" {
		fmt.Fprintf(w, "Trades written to %s\n", replayExport)
	}
	return nil
}
