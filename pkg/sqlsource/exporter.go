// Package sqlsource streams the result of a SQL query into an excelstream.Writer.
package sqlsource

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/locvowork/sheetstream/pkg/excelstream"
)

// Rows is the part of *sql.Rows the exporter reads.
type Rows interface {
	Columns() ([]string, error)
	Next() bool
	Scan(dest ...interface{}) error
	Err() error
	Close() error
}

// Querier runs a query and returns its rows.
type Querier interface {
	Query(ctx context.Context, query string, args ...interface{}) (Rows, error)
}

// DB is satisfied by *sql.DB, *sql.Conn and *sql.Tx.
type DB interface {
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

type dbQuerier struct {
	db DB
}

// FromDB adapts a database handle into a Querier.
func FromDB(db DB) Querier {
	return dbQuerier{db: db}
}

func (q dbQuerier) Query(ctx context.Context, query string, args ...interface{}) (Rows, error) {
	return q.db.QueryContext(ctx, query, args...)
}

// Option configures an export.
type Option func(*config)

type config struct {
	includeHeaders bool
	dateFormat     string
	numberFormat   string
	columnFormats  map[string]string
	logger         zerolog.Logger
}

func defaultConfig() *config {
	return &config{
		includeHeaders: true,
		dateFormat:     excelstream.DefaultDateFormat,
		columnFormats:  map[string]string{},
		logger:         zerolog.Nop(),
	}
}

// WithHeaders enables or disables the title row of column names.
func WithHeaders(include bool) Option {
	return func(c *config) { c.includeHeaders = include }
}

// WithDateFormat sets the display format of time columns.
func WithDateFormat(format string) Option {
	return func(c *config) { c.dateFormat = format }
}

// WithNumberFormat sets the display format of numeric columns, e.g. "#,##0.00".
func WithNumberFormat(format string) Option {
	return func(c *config) { c.numberFormat = format }
}

// WithColumnFormat overrides the display format of one column by name.
func WithColumnFormat(column, format string) Option {
	return func(c *config) { c.columnFormats[column] = format }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// Export runs query and appends one row per record to w, preceded by a title
// row of column names. It returns the number of records appended. The writer
// must already be started; building it is left to the caller.
func Export(ctx context.Context, q Querier, query string, args []interface{}, w *excelstream.Writer, opts ...Option) (int, error) {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("executing query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return 0, fmt.Errorf("getting columns: %w", err)
	}

	if cfg.includeHeaders {
		titles := make([]interface{}, len(columns))
		for i, c := range columns {
			titles[i] = c
		}
		if err := w.AppendTitles(excelstream.NewTitleRow(titles...)); err != nil {
			return 0, fmt.Errorf("appending titles: %w", err)
		}
	}

	count := 0
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		for i := range values {
			values[i] = nil
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return count, fmt.Errorf("scanning row %d: %w", count, err)
		}

		cells := make([]interface{}, len(values))
		for i, v := range values {
			cells[i] = formatValue(v)
		}
		row := excelstream.NewRow(cells...)
		applyFormats(row, columns, cfg)

		if err := w.Append(row); err != nil {
			return count, fmt.Errorf("appending row %d: %w", count, err)
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("iterating rows: %w", err)
	}

	cfg.logger.Info().Int("rows", count).Int("columns", len(columns)).Msg("query exported")
	return count, nil
}

// formatValue turns a scanned database value into a cell value.
func formatValue(value interface{}) interface{} {
	switch v := value.(type) {
	case nil:
		return ""
	case []byte:
		// text columns come back as bytes from the postgres driver
		return string(v)
	case time.Time:
		return v
	default:
		return v
	}
}

func applyFormats(row *excelstream.Row, columns []string, cfg *config) {
	for i, c := range row.Cells {
		if f, ok := cfg.columnFormats[columns[i]]; ok {
			row.WithFormat(i, f)
			continue
		}
		switch c.Type {
		case excelstream.ContentDate:
			if cfg.dateFormat != "" {
				row.WithFormat(i, cfg.dateFormat)
			}
		case excelstream.ContentNumber:
			if cfg.numberFormat != "" {
				row.WithFormat(i, cfg.numberFormat)
			}
		}
	}
}
