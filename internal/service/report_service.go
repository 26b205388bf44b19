package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/locvowork/sheetstream/internal/config"
	"github.com/locvowork/sheetstream/internal/logger"
	"github.com/locvowork/sheetstream/pkg/sqlsource"
)

// ErrReportNotFound is returned for an unknown report name.
var ErrReportNotFound = errors.New("report not found")

// ReportService exports named SQL reports as chunked archives.
type ReportService struct {
	db       sqlsource.Querier
	reports  map[string]config.Report
	settings ExportSettings
}

func NewReportService(db sqlsource.Querier, reports map[string]config.Report, settings ExportSettings) *ReportService {
	return &ReportService{db: db, reports: reports, settings: settings}
}

// Names lists the configured reports.
func (s *ReportService) Names() []string {
	names := make([]string, 0, len(s.reports))
	for n := range s.reports {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Export runs the named report with args and packs the result into a zip.
func (s *ReportService) Export(ctx context.Context, name string, args ...interface{}) (*ExportResult, error) {
	report, ok := s.reports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrReportNotFound, name)
	}
	ctx = logger.WithLogger(ctx, map[string]interface{}{"report": name})

	w := s.settings.newWriter(report.SheetName, report.Capacity)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	opts := []sqlsource.Option{sqlsource.WithLogger(logger.FromContext(ctx))}
	for col, format := range report.Formats {
		opts = append(opts, sqlsource.WithColumnFormat(col, format))
	}
	query, args, err := reportQuery(report, args)
	if err != nil {
		w.Cancel()
		return nil, fmt.Errorf("building report %s: %w", name, err)
	}
	rows, err := sqlsource.Export(ctx, s.db, query, args, w, opts...)
	if err != nil {
		w.Cancel()
		return nil, fmt.Errorf("exporting report %s: %w", name, err)
	}

	zipPath, err := w.BuildAsZip(name)
	if err != nil {
		w.Cancel()
		return nil, err
	}
	logger.InfoLog(ctx, "report %s exported: %d rows", name, rows)
	return &ExportResult{Path: zipPath, Rows: rows, release: w.Cancel}, nil
}

// reportQuery returns the configured query, or builds one from the table
// definition with args bound to the filters in order.
func reportQuery(report config.Report, args []interface{}) (string, []interface{}, error) {
	if report.Query != "" {
		return report.Query, args, nil
	}
	b := sqlsource.NewSelect(report.Columns...).From(report.Table).OrderBy(report.OrderBy...).Limit(report.Limit)
	for _, f := range report.Filters {
		n := strings.Count(f, "?")
		if n > len(args) {
			return "", nil, fmt.Errorf("filter %q needs %d more argument(s)", f, n-len(args))
		}
		b.Where(f, args[:n]...)
		args = args[n:]
	}
	if len(args) > 0 {
		return "", nil, fmt.Errorf("%d unused argument(s)", len(args))
	}
	return b.Build()
}
