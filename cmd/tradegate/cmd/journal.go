package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rustyeddy/tradegate/journal"
	"github.com/spf13/cobra"
)

var journalCmd = &cobra.Command{
	Use:   "journal",
	Short: "Query trade journal data",
	Long: `Query, export and summarize the trade journal.

Subcommands:
  list    - List trades matching filters
  show    - Show one trade by ID
  export  - Export trades to CSV
  summary - Summarize one day of trades

Examples:
  tradegate journal list --asset BTCUSDT --limit 20
  tradegate journal show 01HZX3J8Q4ABCDEFGH12345678
  tradegate journal export -o trades.csv
  tradegate journal summary 2025-02-14`,
}

var journalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List trades matching filters",
	Args:  cobra.NoArgs,
	RunE:  runJournalList,
}

var journalShowCmd = &cobra.Command{
	Use:   "show <trade-id>",
	Short: "Show details of a specific trade",
	Args:  cobra.ExactArgs(1),
	RunE:  runJournalShow,
}

var journalExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export trades to CSV",
	Args:  cobra.NoArgs,
	RunE:  runJournalExport,
}

var journalSummaryCmd = &cobra.Command{
	Use:   "summary [YYYY-MM-DD]",
	Short: "Summarize one day of trades (default today)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournalSummary,
}

var (
	journalFilter journalFilterFlags
	journalOrg    bool
	exportOutput  string
)

type journalFilterFlags struct {
	asset, action, mode, regime, source, search string
	from, to                                    string
	limit                                       int
}

func init() {
	rootCmd.AddCommand(journalCmd)
	journalCmd.AddCommand(journalListCmd)
	journalCmd.AddCommand(journalShowCmd)
	journalCmd.AddCommand(journalExportCmd)
	journalCmd.AddCommand(journalSummaryCmd)

	for _, c := range []*cobra.Command{journalListCmd, journalExportCmd} {
		f := c.Flags()
		f.StringVar(&journalFilter.asset, "asset", "", "asset symbol")
		f.StringVar(&journalFilter.action, "action", "", "action substring (BUY, AUTO, ...)")
		f.StringVar(&journalFilter.mode, "mode", "", "trading mode")
		f.StringVar(&journalFilter.regime, "regime", "", "market regime")
		f.StringVar(&journalFilter.source, "source", "", "AI or MANUAL")
		f.StringVar(&journalFilter.search, "search", "", "search asset, reasoning and notes")
		f.StringVar(&journalFilter.from, "from", "", "first day (YYYY-MM-DD)")
		f.StringVar(&journalFilter.to, "to", "", "last day (YYYY-MM-DD)")
		f.IntVarP(&journalFilter.limit, "limit", "n", 0, "most recent N trades")
	}
	journalListCmd.Flags().BoolVar(&journalOrg, "org", false, "print Org-mode blocks")
	journalExportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "output file (default trade_history_<date>.csv)")
}

func (f journalFilterFlags) filter() (journal.Filter, error) {
	out := journal.Filter{
		Asset:  strings.ToUpper(f.asset),
		Action: f.action,
		Mode:   strings.ToUpper(f.mode),
		Regime: strings.ToUpper(f.regime),
		Source: strings.ToUpper(f.source),
		Search: f.search,
		Limit:  f.limit,
	}
	if f.from != "" {
		d, err := time.Parse("2006-01-02", f.from)
		if err != nil {
			return out, fmt.Errorf("invalid --from: %w", err)
		}
		out.From, _ = journal.DayBounds(d, time.UTC)
	}
	if f.to != "" {
		d, err := time.Parse("2006-01-02", f.to)
		if err != nil {
			return out, fmt.Errorf("invalid --to: %w", err)
		}
		_, out.To = journal.DayBounds(d, time.UTC)
	}
	return out, nil
}

// withJournal opens the configured journal for the duration of fn.
func withJournal(cmd *cobra.Command, fn func(context.Context, journal.Store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	st, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(ctx, st)
}

func runJournalList(cmd *cobra.Command, args []string) error {
	f, err := journalFilter.filter()
	if err != nil {
		return err
	}
	return withJournal(cmd, func(ctx context.Context, st journal.Store) error {
		trades, err := st.List(ctx, f)
		if err != nil {
			return fmt.Errorf("list trades: %w", err)
		}
		out := cmd.OutOrStdout()
		if len(trades) == 0 {
			fmt.Fprintln(out, "No trades found.")
			return nil
		}
		if journalOrg {
			fmt.Fprintln(out, journal.FormatTradesOrg(trades))
			return nil
		}
		return printTrades(out, trades)
	})
}

func printTrades(w io.Writer, trades []journal.Trade) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tASSET\tACTION\tQTY\tPRICE\tNAV\tP&L\tREGIME\tMODE\tID")
	for _, t := range trades {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.6g\t%.5g\t%.2f\t%.2f\t%s\t%s\t%s\n",
			t.Timestamp.UTC().Format("2006-01-02 15:04:05"), t.Asset, t.Action, t.Quantity, t.Price,
			t.NavAfter, t.PnL(), t.Regime, t.Mode, t.ID)
	}
	return tw.Flush()
}

func runJournalShow(cmd *cobra.Command, args []string) error {
	return withJournal(cmd, func(ctx context.Context, st journal.Store) error {
		t, err := st.Get(ctx, args[0])
		if err != nil {
			return fmt.Errorf("get trade: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), journal.FormatTradeOrg(t))
		return nil
	})
}

func runJournalExport(cmd *cobra.Command, args []string) error {
	f, err := journalFilter.filter()
	if err != nil {
		return err
	}
	return withJournal(cmd, func(ctx context.Context, st journal.Store) error {
		trades, err := st.List(ctx, f)
		if err != nil {
			return fmt.Errorf("list trades: %w", err)
		}
		path := exportOutput
		if path == "" {
			path = journal.ExportFilename(time.Now())
		}
		file, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := journal.WriteCSV(file, trades); err != nil {
			file.Close()
			return fmt.Errorf("write csv: %w", err)
		}
		if err := file.Close(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Exported %d trades to %s\n", len(trades), path)
		return nil
	})
}

func runJournalSummary(cmd *cobra.Command, args []string) error {
	day := time.Now().UTC()
	if len(args) == 1 {
		d, err := time.Parse("2006-01-02", args[0])
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}
		day = d
	}
	return withJournal(cmd, func(ctx context.Context, st journal.Store) error {
		s, err := journal.DailySummary(ctx, st, day, time.UTC)
		if err != nil {
			return fmt.Errorf("summary: %w", err)
		}
		text, err := journal.FormatSummaryOrg(s)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), text)
		return nil
	})
}
