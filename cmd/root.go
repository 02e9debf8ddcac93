package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/filipviz/juicy-reimburser/internal/chain"
	"github.com/filipviz/juicy-reimburser/internal/config"
	"github.com/filipviz/juicy-reimburser/internal/juicebox"
	"github.com/filipviz/juicy-reimburser/internal/ledger"
	"github.com/filipviz/juicy-reimburser/internal/logging"
	"github.com/filipviz/juicy-reimburser/internal/manual"
	"github.com/filipviz/juicy-reimburser/internal/output"
	"github.com/filipviz/juicy-reimburser/internal/reimburse"
	"github.com/filipviz/juicy-reimburser/internal/safe"
	"github.com/filipviz/juicy-reimburser/internal/subgraph"
	"github.com/filipviz/juicy-reimburser/internal/telemetry"
	"github.com/filipviz/juicy-reimburser/internal/ui"
	"github.com/filipviz/juicy-reimburser/internal/units"
)

var opts options

var rootCmd = &cobra.Command{
	Use:   "juicy-reimburser",
	Short: "Build gas reimbursement payouts for Safe executions and Juicebox distributions",
	Long: `juicy-reimburser adds up the gas spent by everyone who executed a Safe
transaction or called distributePayoutsOf / distributeReservedTokensOf on a
Juicebox project, plus any recipients entered by hand, and writes:

	1. a Safe transaction builder bundle paying each address back (--builder)
	2. a CSV of "address, ether" lines (--csv)
	3. optionally a markdown report of every reimbursed transaction (--report)

Without --source every input is asked for interactively.

Settings are read from the environment or a .env file:
	RPC_URL (required), SAFE_API_URL, SUBGRAPH_URL, CHAIN_ID, LOOKUP_WORKERS,
	JUICEBOX_MAX_PAGES, COST_MODE, LOG_LEVEL, OTEL_EXPORTER_OTLP_ENDPOINT`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd, &opts)
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.StringSliceVarP(&opts.sources, "source", "s", nil, "sources to reimburse: safe, juicebox, manual. Prompts when omitted.")
	flags.StringVar(&opts.safe, "safe", "dao.jbx.eth", "Safe ENS name or address")
	flags.Uint64VarP(&opts.projectID, "project", "p", 1, "Juicebox project ID")
	flags.StringVar(&opts.start, "start", "", "only include transactions after this date (YYYY-MM-DD or RFC 3339)")
	flags.StringVar(&opts.end, "end", "", "only include transactions before this date (YYYY-MM-DD or RFC 3339)")
	flags.StringVarP(&opts.builder, "builder", "b", "builder.json", "transaction builder bundle path. Empty to skip.")
	flags.StringVarP(&opts.csv, "csv", "c", "refunds.csv", "CSV path. Empty to skip.")
	flags.StringVarP(&opts.report, "report", "r", "", "markdown report path. Empty to skip.")
	flags.StringVar(&opts.bundleName, "bundle-name", "JuiceboxDAO Gas Reimbursements", "name in the bundle metadata")
	flags.IntVarP(&opts.workers, "workers", "w", 0, "concurrent transaction lookups, 0 is unbounded (default LOOKUP_WORKERS)")
	flags.IntVar(&opts.maxPages, "juicebox-page-limit", 0, "subgraph pages of 1000 events per kind, 0 is unbounded (default JUICEBOX_MAX_PAGES)")
	flags.BoolVar(&opts.dedupe, "dedupe-juicebox", false, "count a transaction once even if it emitted both distribution events")
	flags.StringVar(&opts.costMode, "cost-mode", "", "Juicebox cost: \"limit\" (gas * gasPrice) or \"receipt\" (gasUsed * effectiveGasPrice) (default COST_MODE)")
	flags.DurationVar(&opts.timeout, "timeout", 0, "abort the whole run after this long, 0 for no limit")
}

// Execute runs the root command and exits non-zero on failure.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, o *options) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logging.Init(cfg.LogLevel, nil)

	flags := cmd.Flags()
	if !flags.Changed("workers") {
		o.workers = cfg.LookupWorkers
	}
	if !flags.Changed("juicebox-page-limit") {
		o.maxPages = cfg.JuiceboxMaxPages
	}
	if !flags.Changed("cost-mode") {
		o.costMode = cfg.CostMode
	}
	if o.workers < 0 || o.maxPages < 0 {
		return fmt.Errorf("--workers and --juicebox-page-limit must not be negative")
	}
	costMode, err := juicebox.ParseCostMode(o.costMode)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	shutdown, err := telemetry.InitTracer(ctx, "juicy-reimburser", cfg.OtelEndpoint)
	if err != nil {
		slog.Warn("tracing disabled", "err", err)
	}
	defer func() {
		if err := shutdown(context.Background()); err != nil {
			slog.Warn("tracer shutdown", "err", err)
		}
	}()

	u := ui.NewTerminalUI()
	req, window, err := o.resolve(u, flags.Changed, time.Local)
	if err != nil {
		return err
	}

	task := u.Task("Connecting to RPC...")
	client, err := chain.Dial(ctx, cfg.RPCURL)
	if err != nil {
		task.Fail("Could not connect to RPC.")
		return err
	}
	defer client.Close()
	task.Succeed("Connected to RPC")

	runner := &reimburse.Runner{
		UI:       u,
		Resolver: client,
		Manual:   manual.NewCollector(u, client),
		Safe:     safe.NewFetcher(safe.NewClient(cfg.SafeAPIURL, nil), window),
		Juicebox: juicebox.NewFetcher(subgraph.NewClient(cfg.SubgraphURL, nil), client, juicebox.Options{
			Window:   window,
			Workers:  o.workers,
			MaxPages: o.maxPages,
			Dedupe:   o.dedupe,
			CostMode: costMode,
			OnPhase: func(kind subgraph.EventKind, n int) {
				u.Info("Found %d %s events", n, kind.Label())
			},
		}),
	}
	l, err := runner.Run(ctx, req)
	if err != nil {
		return err
	}

	summarize(u, l)
	bundle := output.NewBundle(cfg.ChainID, time.Now(), output.Meta{
		Name:        o.bundleName,
		Description: output.Description(req.Sources(), window),
	}, l.Entries())
	files := output.Files{Builder: o.builder, CSV: o.csv, Report: o.report}
	return output.WriteAll(files.Artifacts(bundle, window, l), func(a output.Artifact, err error) {
		if err != nil {
			u.Error("Failed to write %s to %s.", a.Name, a.Path)
			return
		}
		u.Success("✓ Wrote %s to %s", a.Name, a.Path)
	})
}

func summarize(u ui.UI, l *ledger.Ledger) {
	if l.Len() == 0 {
		u.Warn("Nothing to reimburse.")
		return
	}
	rows := make([][]string, 0, l.Len())
	for _, e := range l.Entries() {
		rows = append(rows, []string{
			common.HexToAddress(e.Address).Hex(),
			units.FormatEther(e.Amount),
			fmt.Sprint(len(l.Contributions(e.Address))),
		})
	}
	u.Section("Refunds")
	u.Table([]string{"Address", "ETH", "Transactions"}, rows)
	u.Info("Total: %s ETH to %d addresses", units.FormatEther(l.Total()), l.Len())
}
