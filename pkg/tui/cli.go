// Package tui renders the interactive wizard and console output.
// Simple streaming prompts and summaries, no alternate-screen TUI.
package tui

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#FFB000")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	failure = lipgloss.Color("#FF3333")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(failure).Bold(true)
	codeStyle    = lipgloss.NewStyle().Background(lipgloss.Color("#1a1a1a")).Foreground(white).Padding(0, 1)
)

var noColor bool

// SetNoColor disables ANSI styling for all subsequent output.
func SetNoColor(v bool) { noColor = v }

func render(style lipgloss.Style, s string) string {
	if noColor {
		return s
	}
	return style.Render(s)
}

// WizardResult holds the run configuration collected interactively.
type WizardResult struct {
	InputFile string
	OutputDir string
	Charts    bool

	// SaveDefaults asks the CLI to persist these choices to the user
	// config file.
	SaveDefaults bool

	// Column headers for the five required fields.
	Date     string
	Product  string
	Category string
	Quantity string
	Price    string
}

// RunWizard walks the user through configuring a run.
// Returns (nil, nil) when the user cancels at the confirmation step.
func RunWizard(version string) (*WizardResult, error) {
	reader := bufio.NewReader(os.Stdin)

	printHeader(version)

	// Step 1: input file
	fmt.Println()
	fmt.Println(render(accentStyle, "▸ SELECT SALES FILE"))
	fmt.Println(render(mutedStyle, "  Drag & drop a file, or type the path:"))
	fmt.Println()

	inputPath, err := promptPath(reader, "  Input: ")
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(inputPath)
	if err != nil {
		fmt.Println(render(errorStyle, "  ✗ File not found: "+inputPath))
		return nil, err
	}

	format := detectFormat(inputPath)
	fmt.Println()
	fmt.Println(render(mutedStyle, "  ─────────────────────────────────────"))
	fmt.Printf("  %s %s\n", render(mutedStyle, "Format:"), render(titleStyle, format))
	fmt.Printf("  %s %s\n", render(mutedStyle, "Size:"), render(titleStyle, formatBytes(info.Size())))
	fmt.Println(render(mutedStyle, "  ─────────────────────────────────────"))

	// Step 2: output directory
	fmt.Println()
	outputDir, _ := promptWithDefault(reader, "  Output dir", "reports")
	fmt.Printf("  %s %s\n", render(mutedStyle, "Reports:"), render(codeStyle, outputDir))

	// Step 3: column mapping
	fmt.Println()
	fmt.Println(render(accentStyle, "▸ COLUMN MAPPING"))
	fmt.Println(render(mutedStyle, "  Press Enter to accept defaults, or type the header name:"))
	fmt.Println()

	date, _ := promptWithDefault(reader, "  date", "date")
	product, _ := promptWithDefault(reader, "  product", "product")
	category, _ := promptWithDefault(reader, "  category", "category")
	quantity, _ := promptWithDefault(reader, "  quantity", "quantity")
	price, _ := promptWithDefault(reader, "  price", "price")

	// Step 4: options
	fmt.Println()
	charts, _ := promptConfirm(reader, "  Generate charts? [Y/n]: ", true)
	saveDefaults, _ := promptConfirm(reader, "  Save these settings as defaults? [y/N]: ", false)

	// Confirm
	fmt.Println()
	fmt.Println(render(mutedStyle, "  ─────────────────────────────────────"))
	fmt.Printf("  %s\n", render(titleStyle, "Ready to process"))
	fmt.Printf("  %s → %s/\n", filepath.Base(inputPath), outputDir)
	fmt.Println(render(mutedStyle, "  ─────────────────────────────────────"))
	fmt.Println()

	confirm, _ := promptConfirm(reader, "  Start run? [Y/n]: ", true)
	if !confirm {
		fmt.Println(render(mutedStyle, "  Cancelled."))
		return nil, nil
	}

	return &WizardResult{
		InputFile:    inputPath,
		OutputDir:    outputDir,
		Charts:       charts,
		SaveDefaults: saveDefaults,
		Date:         date,
		Product:      product,
		Category:     category,
		Quantity:     quantity,
		Price:        price,
	}, nil
}

func printHeader(version string) {
	fmt.Println()
	fmt.Println(render(titleStyle, "  SALESFLOW") + render(mutedStyle, " "+version))
	fmt.Println(render(mutedStyle, "  Sales data validation and reporting"))
	fmt.Println()
}

func promptPath(reader *bufio.Reader, prompt string) (string, error) {
	fmt.Print(prompt)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}

	path := strings.TrimSpace(input)
	// Handle drag & drop (removes quotes)
	path = strings.Trim(path, "\"'")
	// Expand ~ to home dir
	if strings.HasPrefix(path, "~") {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[1:])
	}

	return path, nil
}

func promptWithDefault(reader *bufio.Reader, field, defaultVal string) (string, error) {
	fmt.Printf("  %s %s: ", render(mutedStyle, field), render(mutedStyle, "["+defaultVal+"]"))
	input, err := reader.ReadString('\n')
	if err != nil {
		return defaultVal, err
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return defaultVal, nil
	}
	return input, nil
}

func promptConfirm(reader *bufio.Reader, prompt string, def bool) (bool, error) {
	fmt.Print(prompt)
	input, err := reader.ReadString('\n')
	if err != nil {
		return def, err
	}

	input = strings.ToLower(strings.TrimSpace(input))
	if input == "" {
		return def, nil
	}
	return input == "y" || input == "yes", nil
}

func detectFormat(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if strings.HasSuffix(path, ".gz") {
		ext = strings.ToLower(filepath.Ext(strings.TrimSuffix(path, ".gz")))
	}
	switch ext {
	case ".csv":
		return "CSV"
	case ".tsv":
		return "TSV"
	case ".txt":
		return "Text"
	case ".xlsx":
		return "XLSX"
	default:
		return "Unknown"
	}
}

func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}

// RunSummary holds the figures printed after a completed run.
// Money fields arrive pre-formatted; undefined metrics are "n/a".
type RunSummary struct {
	RunID         string
	TotalRows     int
	Accepted      int
	Rejected      int
	RejectionRate float64
	TotalRevenue  string
	AverageTicket string
	BestProduct   string
	BestCategory  string
	BestDay       string
	Duration      time.Duration
	OutputDir     string
	Artifacts     []string
}

// PrintRunSummary prints results after a run completes.
func PrintRunSummary(s *RunSummary) {
	fmt.Println()
	fmt.Println(render(successStyle, "  ✓ RUN COMPLETE") + render(mutedStyle, "  "+s.RunID))
	fmt.Println()
	fmt.Printf("  %s %s accepted, %s rejected %s\n",
		render(mutedStyle, "Rows:"),
		render(titleStyle, formatNumber(int64(s.Accepted))),
		render(titleStyle, formatNumber(int64(s.Rejected))),
		render(mutedStyle, fmt.Sprintf("(%.1f%% rejection)", s.RejectionRate*100)))
	fmt.Printf("  %s %s %s\n",
		render(mutedStyle, "Revenue:"),
		render(titleStyle, s.TotalRevenue),
		render(mutedStyle, "(avg ticket "+s.AverageTicket+")"))
	fmt.Printf("  %s product %s · category %s · day %s\n",
		render(mutedStyle, "Best:"),
		render(titleStyle, s.BestProduct),
		render(titleStyle, s.BestCategory),
		render(titleStyle, s.BestDay))

	if s.Duration > 0 {
		rows := float64(s.TotalRows) / s.Duration.Seconds()
		fmt.Printf("  %s %s %s\n",
			render(mutedStyle, "Time:"),
			render(titleStyle, formatDuration(s.Duration)),
			render(mutedStyle, fmt.Sprintf("(%s rows/sec)", formatNumber(int64(rows)))))
	}

	if len(s.Artifacts) > 0 {
		fmt.Println()
		fmt.Println(render(mutedStyle, "  Artifacts in ") + render(codeStyle, s.OutputDir))
		for _, a := range s.Artifacts {
			fmt.Printf("    %s %s\n", render(successStyle, "•"), a)
		}
	}
	fmt.Println()
}

// PrintError prints a failure message in the standard style.
func PrintError(msg string) {
	fmt.Println(render(errorStyle, "  ✗ "+msg))
}

// RenderTable renders a plain column-aligned table with a styled
// header row. Rows shorter than the header are padded with blanks.
func RenderTable(headers []string, rows [][]string) string {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	var b strings.Builder
	for i, h := range headers {
		b.WriteString(render(titleStyle, pad(h, widths[i])))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteByte('\n')
	for i := range headers {
		b.WriteString(render(mutedStyle, strings.Repeat("─", widths[i])))
		if i < len(headers)-1 {
			b.WriteString("  ")
		}
	}
	b.WriteByte('\n')
	for _, row := range rows {
		for i := range headers {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			b.WriteString(pad(cell, widths[i]))
			if i < len(headers)-1 {
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// formatDuration formats a duration in a human-readable way.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}

// ShowProgress creates a progress bar for file scans. A negative
// total renders an indeterminate spinner.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}
