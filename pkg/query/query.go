// Package query runs ad-hoc SQL over the Parquet exports of past
// runs using an in-memory DuckDB.
package query

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// ViewName is the view every registered export is queried through.
const ViewName = "sales"

// Engine executes SQL against registered Parquet exports.
type Engine struct {
	db *sql.DB
}

// NewEngine opens an in-memory DuckDB.
func NewEngine() (*Engine, error) {
	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("initializing duckdb: %w", err)
	}

	e := &Engine{db: db}
	e.db.Exec(fmt.Sprintf("SET threads=%d", runtime.NumCPU()))
	return e, nil
}

// Close closes the engine.
func (e *Engine) Close() error {
	return e.db.Close()
}

// RegisterRun exposes one run's clean-data export as the sales view.
func (e *Engine) RegisterRun(ctx context.Context, parquetPath string) error {
	return e.register(ctx, parquetPath)
}

// RegisterGlob exposes many exports as one sales view, e.g.
// "reports/sales_clean_*.parquet" to query across runs.
func (e *Engine) RegisterGlob(ctx context.Context, pattern string) error {
	return e.register(ctx, pattern)
}

func (e *Engine) register(ctx context.Context, path string) error {
	stmt := fmt.Sprintf("CREATE OR REPLACE VIEW %s AS SELECT * FROM read_parquet('%s')",
		ViewName, strings.ReplaceAll(path, "'", "''"))
	if _, err := e.db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("registering %s: %w", path, err)
	}
	return nil
}

// Query executes one SQL statement and returns a streaming result.
func (e *Engine) Query(ctx context.Context, query string, args ...interface{}) (*Result, error) {
	start := time.Now()

	rows, err := e.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	cols, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("reading columns: %w", err)
	}

	return &Result{
		rows:     rows,
		columns:  cols,
		duration: time.Since(start),
	}, nil
}

// Describe returns the schema of the sales view.
func (e *Engine) Describe(ctx context.Context) ([]ColumnInfo, error) {
	rows, err := e.db.QueryContext(ctx, "DESCRIBE "+ViewName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var isNull, key, defaultVal, extra sql.NullString
		if err := rows.Scan(&col.Name, &col.Type, &isNull, &key, &defaultVal, &extra); err != nil {
			return nil, err
		}
		col.Nullable = isNull.String == "YES"
		columns = append(columns, col)
	}
	return columns, rows.Err()
}

// ColumnInfo describes a column of the sales view.
type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
}

// Result streams query rows.
type Result struct {
	rows     *sql.Rows
	columns  []string
	duration time.Duration
	rowCount int64
}

// Columns returns column names.
func (r *Result) Columns() []string {
	return r.columns
}

// Duration returns how long the statement took to start returning.
func (r *Result) Duration() time.Duration {
	return r.duration
}

// Next advances to the next row.
func (r *Result) Next() bool {
	if r.rows.Next() {
		r.rowCount++
		return true
	}
	return false
}

// Scan scans the current row.
func (r *Result) Scan(dest ...interface{}) error {
	return r.rows.Scan(dest...)
}

// RowCount returns rows scanned so far.
func (r *Result) RowCount() int64 {
	return r.rowCount
}

// Close closes the result set.
func (r *Result) Close() error {
	return r.rows.Close()
}

// ToRows drains the result into display strings for the console
// table. NULL renders as an empty cell.
func (r *Result) ToRows() ([][]string, error) {
	defer r.Close()

	values := make([]interface{}, len(r.columns))
	ptrs := make([]interface{}, len(r.columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	var out [][]string
	for r.Next() {
		if err := r.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(r.columns))
		for i := range values {
			row[i] = formatValue(values[i])
		}
		out = append(out, row)
	}
	if err := r.rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func formatValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case time.Time:
		if x.Hour() == 0 && x.Minute() == 0 && x.Second() == 0 && x.Nanosecond() == 0 {
			return x.Format("2006-01-02")
		}
		return x.Format("2006-01-02 15:04:05")
	default:
		return fmt.Sprint(x)
	}
}
