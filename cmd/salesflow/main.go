// SalesFlow - sales data validation and reporting pipeline.
// Validates tabular sales data, computes revenue metrics, and emits a
// versioned bundle of report artifacts.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/salesflow/salesflow/pkg/config"
	"github.com/salesflow/salesflow/pkg/ingest"
	"github.com/salesflow/salesflow/pkg/logging"
	"github.com/salesflow/salesflow/pkg/pipeline"
	"github.com/salesflow/salesflow/pkg/publish"
	"github.com/salesflow/salesflow/pkg/report"
	"github.com/salesflow/salesflow/pkg/schema"
	"github.com/salesflow/salesflow/pkg/telemetry"
	"github.com/salesflow/salesflow/pkg/tui"
)

// Populated via -ldflags at release time.
var (
	version = "0.1.0"
	commit  = "dev"
	date    = "unknown"
)

// Global flags
var (
	cfgFile     string
	verboseFlag bool
	quietFlag   bool
	noColorFlag bool
)

// Run command flags
var (
	runInput      string
	runOutputDir  string
	runIDFlag     string
	runDateLayout string
	runFormat     string
	runDelimiter  string
	runSheet      string
	runNoCharts   bool
	runNoParquet  bool
	runPublish    bool
)

var cfgManager = config.NewManager()

func main() {
	if err := rootCmd.Execute(); err != nil {
		tui.PrintError(err.Error())
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "salesflow",
	Short: "SalesFlow - Validate sales data and generate reports",
	Long: `SalesFlow validates tabular sales data (CSV, Excel), computes revenue
metrics, and writes a bundle of report artifacts: an Excel workbook,
a text summary, charts, a Parquet export, and a run manifest.

Run without arguments to launch the interactive wizard.`,
	Version:       fmt.Sprintf("%s (%s)", version, commit),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfgManager.Load(cfgFile); err != nil {
			return err
		}
		if noColorFlag || !stdoutIsTerminal() {
			tui.SetNoColor(true)
		}
		return nil
	},
	RunE: runWizard,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a sales file and write the report bundle",
	Long: `Run the pipeline over one sales file: validate the schema, clean the
rows, compute metrics, and write every artifact into the output
directory.

Examples:
  salesflow run -i sales.csv
  salesflow run -i sales.csv -o reports --no-charts
  salesflow run -i sales.xlsx --sheet January
  salesflow run -i sales.csv --run-id 20240101_120000
  salesflow run -i sales.csv --publish`,
	RunE: runRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("salesflow %s\n", version)
		fmt.Printf("  commit: %s\n", commit)
		fmt.Printf("  built:  %s\n", date)
	},
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: ./salesflow.yaml, ~/.config/salesflow/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verboseFlag, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&quietFlag, "quiet", false, "Only print errors")
	rootCmd.PersistentFlags().BoolVar(&noColorFlag, "no-color", false, "Disable colored output")

	// Run command flags
	runCmd.Flags().StringVarP(&runInput, "input", "i", "", "Input sales file (required)")
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "Report output directory")
	runCmd.Flags().StringVar(&runIDFlag, "run-id", "", "Run id override (default: derived from the clock)")
	runCmd.Flags().StringVar(&runDateLayout, "date-layout", "", "Go layout for the date column (default: 2006-01-02)")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "", "Input format (csv, xlsx) - auto-detected if not specified")
	runCmd.Flags().StringVar(&runDelimiter, "delimiter", "", "CSV field delimiter")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "Excel worksheet name (default: first sheet)")
	runCmd.Flags().BoolVar(&runNoCharts, "no-charts", false, "Skip the PNG chart artifacts")
	runCmd.Flags().BoolVar(&runNoParquet, "no-parquet", false, "Skip the Parquet export")
	runCmd.Flags().BoolVar(&runPublish, "publish", false, "Upload the bundle to the configured S3 bucket")

	runCmd.MarkFlagRequired("input")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// runParams are the fully resolved inputs of one pipeline run, after
// flag > env > file > default precedence has been applied.
type runParams struct {
	input      string
	outputDir  string
	runID      string
	dateLayout string
	format     string
	delimiter  string
	sheet      string
	columns    schema.Mapping
	charts     bool
	parquet    bool
	publish    bool

	// progress enables the terminal spinner while rows are consumed.
	// Interactive runs only; watch mode logs instead.
	progress bool
}

// paramsFromConfig resolves run parameters from configuration alone.
func paramsFromConfig(cfg *config.Config) runParams {
	return runParams{
		outputDir:  cfg.Report.OutputDir,
		dateLayout: cfg.Input.DateLayout,
		format:     cfg.Input.Format,
		delimiter:  cfg.Input.Delimiter,
		sheet:      cfg.Input.Sheet,
		columns:    cfg.Input.Columns,
		charts:     cfg.Report.ChartsEnabled(),
		parquet:    cfg.Report.ParquetEnabled(),
		publish:    cfg.S3.Enabled,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(runInput); os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", runInput)
	}

	cfg := cfgManager.Get()

	p := paramsFromConfig(cfg)
	p.input = runInput
	if runOutputDir != "" {
		p.outputDir = runOutputDir
	}
	if runIDFlag != "" {
		p.runID = runIDFlag
	}
	if runDateLayout != "" {
		p.dateLayout = runDateLayout
	}
	if runFormat != "" {
		p.format = runFormat
	}
	if runDelimiter != "" {
		p.delimiter = runDelimiter
	}
	if runSheet != "" {
		p.sheet = runSheet
	}
	if runNoCharts {
		p.charts = false
	}
	if runNoParquet {
		p.parquet = false
	}
	if runPublish {
		p.publish = true
	}
	p.progress = stdoutIsTerminal() && !quietFlag && !cfg.Logging.Quiet

	ctx := cmd.Context()
	shutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer shutdown(context.Background())

	return runAndSummarize(ctx, cfg, p)
}

// runWizard launches the interactive wizard when salesflow is invoked
// with no subcommand.
func runWizard(cmd *cobra.Command, args []string) error {
	if cmd.CalledAs() != "salesflow" && cmd.CalledAs() != "" {
		return nil
	}

	// Not a terminal, show help instead
	if !stdoutIsTerminal() {
		return cmd.Help()
	}

	result, err := tui.RunWizard(version)
	if err != nil {
		return err
	}
	if result == nil {
		// User cancelled
		return nil
	}

	cfg := cfgManager.Get()

	p := paramsFromConfig(cfg)
	p.input = result.InputFile
	p.outputDir = result.OutputDir
	p.charts = result.Charts
	p.columns = schema.Mapping{
		Date:     result.Date,
		Product:  result.Product,
		Category: result.Category,
		Quantity: result.Quantity,
		Price:    result.Price,
	}
	p.progress = !quietFlag && !cfg.Logging.Quiet

	if result.SaveDefaults {
		cfgManager.Apply(func(c *config.Config) {
			c.Report.OutputDir = result.OutputDir
			charts := result.Charts
			c.Report.Charts = &charts
			c.Input.Columns = p.columns
		})
		if path, err := cfgManager.Save(); err != nil {
			tui.PrintError("saving defaults: " + err.Error())
		} else {
			fmt.Println("  Defaults saved to " + path)
		}
	}

	ctx := cmd.Context()
	shutdown, err := telemetry.Init(ctx, telemetryConfig(cfg))
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	defer shutdown(context.Background())

	fmt.Println("\nStarting run...")
	return runAndSummarize(ctx, cfg, p)
}

// runAndSummarize executes one run and prints the console summary.
func runAndSummarize(ctx context.Context, cfg *config.Config, p runParams) error {
	start := time.Now()

	run, manifest, err := executeRun(ctx, cfg, p)
	if err != nil {
		return err
	}

	if quietFlag || cfg.Logging.Quiet {
		return nil
	}

	paths := report.NewPaths(p.outputDir, run.ID)
	artifacts := make([]string, 0, len(manifest.Artifacts)+2)
	for _, a := range manifest.Artifacts {
		artifacts = append(artifacts, a.Name)
	}
	artifacts = append(artifacts,
		filepath.Base(paths.Manifest()),
		filepath.Base(paths.Log()),
	)

	tui.PrintRunSummary(&tui.RunSummary{
		RunID:         run.ID,
		TotalRows:     run.Quality.TotalRows,
		Accepted:      run.Quality.Accepted,
		Rejected:      run.Quality.Rejected,
		RejectionRate: run.Quality.RejectionRate,
		TotalRevenue:  report.Money(run.Metrics.TotalRevenue),
		AverageTicket: report.MoneyOr(run.Metrics.AverageTicket),
		BestProduct:   report.GroupOr(run.Metrics.BestProduct),
		BestCategory:  report.GroupOr(run.Metrics.BestCategory),
		BestDay:       report.GroupOr(run.Metrics.BestDay),
		Duration:      time.Since(start),
		OutputDir:     p.outputDir,
		Artifacts:     artifacts,
	})
	return nil
}

// executeRun performs one complete pipeline run: ingest, validate,
// clean, compute, write artifacts, optionally publish. The run log is
// part of the artifact set, so the output directory exists before
// anything else happens.
func executeRun(ctx context.Context, cfg *config.Config, p runParams) (*pipeline.Run, *report.Manifest, error) {
	if p.publish && cfg.S3.Bucket == "" {
		return nil, nil, fmt.Errorf("publishing requested but s3.bucket is not configured")
	}

	runID := p.runID
	if runID == "" {
		runID = pipeline.NewRunID(time.Now().UTC())
	}

	ctx, span := otel.Tracer("salesflow/cli").Start(ctx, "salesflow.run")
	span.SetAttributes(attribute.String("run.id", runID))
	defer span.End()

	paths := report.NewPaths(p.outputDir, runID)
	if err := paths.EnsureDir(); err != nil {
		return nil, nil, fmt.Errorf("creating output directory: %w", err)
	}

	logger, closeLog, err := logging.New(paths.Log(), consoleOpts(cfg))
	if err != nil {
		return nil, nil, err
	}
	defer closeLog()
	logger = logger.With().Str("run_id", runID).Logger()

	src, err := ingest.Open(p.input, ingestConfig(p))
	if err != nil {
		logger.Error().Err(err).Str("file", p.input).Msg("opening input failed")
		return nil, nil, err
	}
	defer src.Close()

	if stat, statErr := os.Stat(p.input); statErr == nil {
		logger.Debug().Str("file", p.input).Int64("size_bytes", stat.Size()).Msg("input opened")
	}

	var rows ingest.Reader = src
	if p.progress {
		bar := tui.ShowProgress(-1, "  processing rows")
		defer bar.Finish()
		rows = &progressReader{Reader: src, bar: bar}
	}

	coordinator := pipeline.New(pipeline.Options{
		RunID:      runID,
		DateLayout: p.dateLayout,
		Columns:    p.columns,
	})

	run, err := coordinator.Execute(ctx, rows)
	if err != nil {
		logger.Error().Err(err).Msg("run failed")
		return nil, nil, err
	}

	logger.Info().
		Int("total", run.Quality.TotalRows).
		Int("accepted", run.Quality.Accepted).
		Int("rejected", run.Quality.Rejected).
		Float64("rejection_rate", run.Quality.RejectionRate).
		Msg("cleaning complete")
	for _, rc := range run.Quality.Breakdown() {
		logger.Debug().Str("reason", string(rc.Reason)).Int("count", rc.Count).Msg("rejection reason")
	}
	logger.Info().
		Str("total_revenue", report.Money(run.Metrics.TotalRevenue)).
		Str("average_ticket", report.MoneyOr(run.Metrics.AverageTicket)).
		Int64("total_units", run.Metrics.TotalUnits).
		Msg("metrics computed")

	source, err := report.DescribeSource(p.input)
	if err != nil {
		return nil, nil, err
	}

	writer := report.NewWriter(p.outputDir, runID, report.Options{
		Charts:      p.charts,
		Parquet:     p.parquet,
		Source:      source,
		ToolVersion: version,
		Logger:      logger,
	})

	manifest, err := writer.Write(ctx, run)
	if err != nil {
		logger.Error().Err(err).Msg("writing artifacts failed")
		return nil, nil, err
	}

	if p.publish {
		pub, err := publish.New(ctx, publishConfig(cfg.S3), logger)
		if err != nil {
			return nil, nil, fmt.Errorf("creating publisher: %w", err)
		}
		if _, err := pub.PublishRun(ctx, writer.Paths(), manifest); err != nil {
			logger.Error().Err(err).Msg("publishing failed, local artifacts remain")
			return nil, nil, err
		}
	}

	return run, manifest, nil
}

func ingestConfig(p runParams) ingest.Config {
	cfg := ingest.Config{
		Format: ingest.ParseFormat(p.format),
		Sheet:  p.sheet,
	}
	for _, r := range p.delimiter {
		cfg.Delimiter = r
		break
	}
	return cfg
}

func consoleOpts(cfg *config.Config) logging.Options {
	return logging.Options{
		Verbose: verboseFlag || cfg.Logging.Verbose,
		Quiet:   quietFlag || cfg.Logging.Quiet,
		NoColor: noColorFlag,
	}
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRatio:    cfg.Telemetry.SampleRatio,
		Timeout:        cfg.Telemetry.Timeout,
		ServiceName:    "salesflow",
		ServiceVersion: version,
	}
}

func publishConfig(s3 config.S3Config) publish.Config {
	cfg := publish.DefaultConfig(s3.Bucket)
	if s3.Prefix != "" {
		cfg.Prefix = s3.Prefix
	}
	cfg.Region = s3.Region
	cfg.Endpoint = s3.Endpoint
	cfg.UsePathStyle = s3.PathStyle
	cfg.AccessKeyID = s3.AccessKey
	cfg.SecretAccessKey = s3.SecretKey
	return cfg
}

// progressReader ticks the spinner as the pipeline consumes rows.
type progressReader struct {
	ingest.Reader
	bar *progressbar.ProgressBar
}

func (r *progressReader) Next() ([]string, int, error) {
	cells, line, err := r.Reader.Next()
	if err == nil {
		r.bar.Add(1)
	}
	return cells, line, err
}

func stdoutIsTerminal() bool {
	info, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return info.Mode()&os.ModeCharDevice != 0
}
