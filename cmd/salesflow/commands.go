package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/salesflow/salesflow/internal/model"
	"github.com/salesflow/salesflow/pkg/config"
	"github.com/salesflow/salesflow/pkg/history"
	"github.com/salesflow/salesflow/pkg/ingest"
	"github.com/salesflow/salesflow/pkg/logging"
	"github.com/salesflow/salesflow/pkg/query"
	"github.com/salesflow/salesflow/pkg/report"
	"github.com/salesflow/salesflow/pkg/schema"
	"github.com/salesflow/salesflow/pkg/telemetry"
	"github.com/salesflow/salesflow/pkg/tui"
	"github.com/salesflow/salesflow/pkg/util"
	"github.com/salesflow/salesflow/pkg/watch"
)

// Additional CLI flags
var (
	// Inspect flags
	inspectRows int
	inspectJSON bool

	// Rejects flags
	rejectsJSON bool

	// Query flags
	queryFile    string
	queryTimeout time.Duration

	// Watch flags
	watchDebounce time.Duration

	// History flags
	historyLimit int
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Inspect a sales file without producing artifacts",
	Long: `Read a sales file and report its header, schema verdict, and row
count, with a preview of the first rows. Nothing is written.

Examples:
  salesflow inspect sales.csv
  salesflow inspect sales.csv --rows 25
  salesflow inspect sales.xlsx --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

var rejectsCmd = &cobra.Command{
	Use:   "rejects <file.jsonl>",
	Short: "Summarize a rejected-rows artifact",
	Long: `Summarize the per-reason rejection counts of a rejected_rows JSONL
artifact from an earlier run, without re-running the pipeline.

Examples:
  salesflow rejects reports/rejected_rows_20240101_120000.jsonl
  salesflow rejects reports/rejected_rows_20240101_120000.jsonl --json`,
	Args: cobra.ExactArgs(1),
	RunE: runRejects,
}

var queryCmd = &cobra.Command{
	Use:   "query <sql>",
	Short: "Run SQL over Parquet exports",
	Long: `Execute one SQL statement against the clean-data Parquet exports of
past runs. Exports are registered as the view "sales"; by default
every export in the configured output directory is queried together.

Examples:
  salesflow query "SELECT category, SUM(line_revenue) FROM sales GROUP BY 1 ORDER BY 2 DESC"
  salesflow query -f reports/sales_clean_20240101_120000.parquet "SELECT COUNT(*) FROM sales"
  salesflow query "SELECT date, SUM(line_revenue) FROM sales GROUP BY 1 ORDER BY 1"`,
	Args: cobra.ExactArgs(1),
	RunE: runQuery,
}

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Process sales files as they land in a directory",
	Long: `Watch a drop directory and run the pipeline on every new sales file.
Files are fingerprinted by content; already-processed files are
skipped even when renamed or re-delivered. Each processed file
produces a full report bundle with a fresh run id.

Examples:
  salesflow watch ./incoming
  salesflow watch ./incoming --debounce 2s
  salesflow watch ./incoming -v`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recently processed files",
	Long: `List the most recent entries of the processed-file ledger, newest
first.

Examples:
  salesflow history
  salesflow history -n 50`,
	RunE: runHistory,
}

func init() {
	// Inspect command flags
	inspectCmd.Flags().IntVar(&inspectRows, "rows", 10, "Number of preview rows to print")
	inspectCmd.Flags().BoolVar(&inspectJSON, "json", false, "Output as JSON")

	// Rejects command flags
	rejectsCmd.Flags().BoolVar(&rejectsJSON, "json", false, "Output as JSON")

	// Query command flags
	queryCmd.Flags().StringVarP(&queryFile, "file", "f", "", "Parquet export or glob to query (default: every export in the output dir)")
	queryCmd.Flags().DurationVar(&queryTimeout, "timeout", 30*time.Second, "Statement timeout")

	// Watch command flags
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 0, "Quiet period before a changed file is processed (default: 500ms)")

	// History command flags
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum entries to list")

	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(rejectsCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(historyCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	path := args[0]

	stat, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot read %s: %w", path, err)
	}

	cfg := cfgManager.Get()

	src, err := ingest.Open(path, ingestConfig(paramsFromConfig(cfg)))
	if err != nil {
		return err
	}
	defer src.Close()

	header, err := src.Header()
	if err != nil {
		return fmt.Errorf("reading header: %w", err)
	}

	_, schemaErr := schema.Check(header, cfg.Input.Columns)

	var bar *progressbar.ProgressBar
	if stdoutIsTerminal() && !quietFlag && !inspectJSON {
		bar = tui.ShowProgress(-1, "  scanning")
	}

	var preview [][]string
	total := 0
	for {
		cells, _, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("reading row: %w", err)
		}
		total++
		if len(preview) < inspectRows {
			preview = append(preview, cells)
		}
		if bar != nil {
			bar.Add(1)
		}
	}
	if bar != nil {
		bar.Finish()
	}

	format := strings.TrimPrefix(util.BaseFormat(path), ".")

	if inspectJSON {
		var missing []string
		var missErr *schema.MissingColumnsError
		if errors.As(schemaErr, &missErr) {
			missing = missErr.Missing
		}
		out := struct {
			File     string   `json:"file"`
			Size     int64    `json:"size_bytes"`
			Format   string   `json:"format"`
			Columns  []string `json:"columns"`
			DataRows int      `json:"data_rows"`
			SchemaOK bool     `json:"schema_ok"`
			Missing  []string `json:"missing_columns,omitempty"`
		}{path, stat.Size(), format, header, total, schemaErr == nil, missing}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Printf("File:    %s\n", path)
	fmt.Printf("Size:    %s\n", humanSize(stat.Size()))
	fmt.Printf("Format:  %s\n", format)
	fmt.Printf("Columns: %s\n", strings.Join(header, ", "))
	fmt.Printf("Rows:    %d\n", total)
	if schemaErr != nil {
		fmt.Printf("Schema:  %s\n", schemaErr)
	} else {
		fmt.Printf("Schema:  ok\n")
	}

	if len(preview) > 0 {
		fmt.Println()
		fmt.Print(tui.RenderTable(header, preview))
		if total > len(preview) {
			fmt.Printf("(%d more rows)\n", total-len(preview))
		}
	}

	return nil
}

func runRejects(cmd *cobra.Command, args []string) error {
	path := args[0]

	recs, err := report.ReadRejects(path)
	if err != nil {
		return err
	}

	counts := make(map[string]int)
	for _, rec := range recs {
		for _, reason := range rec.Reasons {
			counts[reason]++
		}
	}

	if rejectsJSON {
		out := struct {
			File    string         `json:"file"`
			Rows    int            `json:"rows"`
			Reasons map[string]int `json:"reasons"`
		}{path, len(recs), counts}

		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	if len(recs) == 0 {
		fmt.Println("No rejected rows.")
		return nil
	}

	type reasonCount struct {
		code  string
		count int
	}
	list := make([]reasonCount, 0, len(counts))
	for code, n := range counts {
		list = append(list, reasonCount{code, n})
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].count != list[j].count {
			return list[i].count > list[j].count
		}
		return list[i].code < list[j].code
	})

	rows := make([][]string, 0, len(list))
	for _, rc := range list {
		rows = append(rows, []string{
			rc.code,
			strconv.Itoa(rc.count),
			model.Reason(rc.code).Description(),
		})
	}

	fmt.Printf("%d rejected rows in %s\n\n", len(recs), filepath.Base(path))
	fmt.Print(tui.RenderTable([]string{"reason", "count", "description"}, rows))
	return nil
}

func runQuery(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.Get()

	pattern := queryFile
	if pattern == "" {
		pattern = filepath.Join(cfg.Report.OutputDir, "sales_clean_*.parquet")
	}

	engine, err := query.NewEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	ctx, cancel := context.WithTimeout(cmd.Context(), queryTimeout)
	defer cancel()

	if strings.ContainsAny(pattern, "*?[") {
		err = engine.RegisterGlob(ctx, pattern)
	} else {
		err = engine.RegisterRun(ctx, pattern)
	}
	if err != nil {
		return err
	}

	res, err := engine.Query(ctx, args[0])
	if err != nil {
		return err
	}

	rows, err := res.ToRows()
	if err != nil {
		return err
	}

	if len(rows) == 0 {
		fmt.Println("(no rows)")
	} else {
		fmt.Print(tui.RenderTable(res.Columns(), rows))
	}
	fmt.Printf("\n%d rows in %s\n", res.RowCount(), res.Duration().Round(time.Millisecond))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	cfg := cfgManager.Get()

	ledger, err := history.New(ledgerConfig(cfg))
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ledger.Close()

	shutdown, err := telemetry.Init(cmd.Context(), telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer shutdown(context.Background())

	// Watch is interactive; show per-file info events unless quieted.
	console := logging.NewConsole(logging.Options{
		Verbose: true,
		Quiet:   quietFlag || cfg.Logging.Quiet,
		NoColor: noColorFlag,
	})

	debounce := cfg.Watch.Debounce()
	if watchDebounce > 0 {
		debounce = watchDebounce
	}

	w, err := watch.New(watch.Options{
		Dir:      dir,
		Patterns: cfg.Watch.Patterns,
		Debounce: debounce,
		Ledger:   ledger,
		Process: func(ctx context.Context, path string) (history.Entry, error) {
			p := paramsFromConfig(cfg)
			p.input = path
			run, _, err := executeRun(ctx, cfg, p)
			if err != nil {
				return history.Entry{}, err
			}
			return history.Entry{
				RunID:    run.ID,
				Accepted: run.Quality.Accepted,
				Rejected: run.Quality.Rejected,
			}, nil
		},
		Logger: console,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Watching %s (patterns: %s)\n", dir, strings.Join(cfg.Watch.Patterns, ", "))
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nStopping watch...")
		cancel()
	}()

	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg := cfgManager.Get()

	ledger, err := history.New(ledgerConfig(cfg))
	if err != nil {
		return fmt.Errorf("opening ledger: %w", err)
	}
	defer ledger.Close()

	entries, err := ledger.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		fmt.Println("No processed files recorded.")
		backend := cfg.Watch.Ledger.Backend
		if backend == "" || backend == "memory" {
			fmt.Println("The memory ledger resets per process; configure the redis backend to keep history across runs.")
		}
		return nil
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		sig := e.Signature
		if len(sig) > 12 {
			sig = sig[:12]
		}
		rows = append(rows, []string{
			e.ProcessedAt.Format("2006-01-02 15:04:05"),
			e.RunID,
			filepath.Base(e.Path),
			strconv.Itoa(e.Accepted),
			strconv.Itoa(e.Rejected),
			sig,
		})
	}
	fmt.Print(tui.RenderTable(
		[]string{"processed", "run_id", "file", "accepted", "rejected", "sha256"},
		rows,
	))
	return nil
}

func ledgerConfig(cfg *config.Config) history.Config {
	return history.Config{
		Backend: cfg.Watch.Ledger.Backend,
		Redis: history.RedisConfig{
			Address:  cfg.Watch.Ledger.Redis.Address,
			Password: cfg.Watch.Ledger.Redis.Password,
			Database: cfg.Watch.Ledger.Redis.Database,
			Prefix:   cfg.Watch.Ledger.Redis.Prefix,
			TTL:      cfg.Watch.Ledger.Redis.TTL,
		},
	}
}

// humanSize formats a byte size in human-readable form.
func humanSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
