package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/rustyeddy/tradegate/pkg/clock"
	"github.com/rustyeddy/tradegate/provider"
	"github.com/rustyeddy/tradegate/regime"
	"github.com/spf13/cobra"
)

var regimeCmd = &cobra.Command{
	Use:   "regime <prices.csv>",
	Short: "Classify the market regime of a price file",
	Long: `Classify the regime of a CSV price file (time,price[,volume]) using the
configured regime policy. The last --window rows are used, as the live
loop would.

Example:
  tradegate regime data/BTCUSDT.csv --window 50`,
	Args: cobra.ExactArgs(1),
	RunE: runRegime,
}

var (
	regimeWindow int
	regimeJSON   bool
)

func init() {
	rootCmd.AddCommand(regimeCmd)

	regimeCmd.Flags().IntVarP(&regimeWindow, "window", "w", 50, "number of most recent samples to classify (0 for all)")
	regimeCmd.Flags().BoolVar(&regimeJSON, "json", false, "print the snapshot as JSON")
}

func runRegime(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	samples, err := provider.ReadSamplesFile(args[0])
	if err != nil {
		return err
	}
	if regimeWindow > 0 && len(samples) > regimeWindow {
		samples = samples[len(samples)-regimeWindow:]
	}

	snap := regime.NewClassifier(cfg.Regime, clock.Real{}).Classify(samples)

	out := cmd.OutOrStdout()
	if regimeJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(snap)
	}

	fmt.Fprintf(out, "Regime: %s (confidence %.0f%%)\n", snap.Regime, snap.Confidence)
	if !snap.Sufficient {
		fmt.Fprintf(out, "  insufficient data: %d samples, need %d\n", snap.Samples, cfg.Regime.MinSamples)
		return nil
	}
	fmt.Fprintf(out, "  Momentum:   %+.4f\n", snap.Momentum)
	fmt.Fprintf(out, "  Volatility: %.4f\n", snap.Volatility)
	fmt.Fprintf(out, "  Trend:      %+.4f\n", snap.Trend)
	fmt.Fprintf(out, "  Trading:    %s\n", allowed(snap.AllowTrading))
	return nil
}

func allowed(ok bool) string {
	if ok {
		return "allowed"
	}
	return "halted"
}
