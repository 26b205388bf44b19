package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/locvowork/sheetstream/internal/logger"
	"github.com/locvowork/sheetstream/pkg/excelstream"
	"github.com/locvowork/sheetstream/pkg/sheetreader"
)

// ErrEmptyInput is returned when a split finds no rows to write.
var ErrEmptyInput = errors.New("input has no rows")

// SplitRequest describes one conversion of a spreadsheet or CSV file into a
// zip of chunked xlsx files.
type SplitRequest struct {
	Input string
	// Name is the archive base name; entries are "Name (i).xlsx".
	Name      string
	Capacity  int
	TitleRows int
	AllSheets bool
	Sheets    []string
	Charset   string
	// KeepText disables number detection on text input.
	KeepText bool
}

// SplitService re-chunks any supported input.
type SplitService struct {
	settings ExportSettings
}

func NewSplitService(settings ExportSettings) *SplitService {
	return &SplitService{settings: settings}
}

// Split reads req.Input and writes every row into capacity sized chunks. The
// first TitleRows rows of the first sheet become the title rows; the same
// rows on later sheets are dropped.
func (s *SplitService) Split(ctx context.Context, req SplitRequest) (*ExportResult, error) {
	name := req.Name
	if name == "" {
		name = "split"
	}
	ctx = logger.WithLogger(ctx, map[string]interface{}{"export": name})

	w := s.settings.newWriter("", req.Capacity)
	if err := w.Start(ctx); err != nil {
		return nil, err
	}

	reader := sheetreader.Of[[]string]().
		Charset(req.Charset).
		Logger(logger.FromContext(ctx))
	switch {
	case req.AllSheets:
		reader.AllSheets()
	case len(req.Sheets) > 0:
		reader.SheetNames(req.Sheets...)
	}

	var (
		titles    []*excelstream.Row
		titlesSet bool
		firstSeen = -1
		rows      int
		skipped   int
		writeErr  error
	)
	reader.Exceptionally(func(err error, rc sheetreader.RowContext) bool {
		skipped++
		logger.WarnLog(ctx, "skipping row %d of sheet %s: %v", rc.RowIndex, rc.SheetName, err)
		return false
	})

	flushTitles := func() error {
		titlesSet = true
		if len(titles) == 0 {
			return nil
		}
		return w.AppendTitles(titles...)
	}

	readErr := reader.ReadFileThen(req.Input, sheetreader.WhileContext(func(cells []string, rc sheetreader.RowContext) bool {
		if firstSeen < 0 {
			firstSeen = rc.SheetIndex
		}
		if rc.RowIndex < req.TitleRows {
			if rc.SheetIndex != firstSeen || titlesSet {
				return true
			}
			titles = append(titles, excelstream.NewTitleRow(toValues(cells, true)...))
			if len(titles) == req.TitleRows {
				writeErr = flushTitles()
			}
			return writeErr == nil
		}
		if !titlesSet {
			if writeErr = flushTitles(); writeErr != nil {
				return false
			}
		}
		writeErr = w.Append(excelstream.NewRow(toValues(cells, req.KeepText)...))
		rows++
		return writeErr == nil
	}))

	if err := errors.Join(readErr, writeErr); err != nil {
		w.Cancel()
		return nil, fmt.Errorf("splitting %s: %w", req.Input, err)
	}
	if !titlesSet {
		if err := flushTitles(); err != nil {
			w.Cancel()
			return nil, err
		}
	}
	if rows == 0 && len(titles) == 0 {
		w.Cancel()
		return nil, ErrEmptyInput
	}

	zipPath, err := w.BuildAsZip(name)
	if err != nil {
		w.Cancel()
		return nil, err
	}
	logger.InfoLog(ctx, "split %s into %s: %d rows, %d skipped", req.Input, zipPath, rows, skipped)
	return &ExportResult{Path: zipPath, Rows: rows, Skipped: skipped, release: w.Cancel}, nil
}

// toValues turns decoded text back into cell values. Numbers become numeric
// cells unless keepText is set.
func toValues(cells []string, keepText bool) []interface{} {
	out := make([]interface{}, len(cells))
	for i, c := range cells {
		out[i] = c
		if keepText || c == "" {
			continue
		}
		if n, err := strconv.ParseInt(c, 10, 64); err == nil && !leadingZero(c) {
			out[i] = n
		} else if f, err := strconv.ParseFloat(c, 64); err == nil && !leadingZero(c) && !math.IsInf(f, 0) && !math.IsNaN(f) {
			out[i] = f
		}
	}
	return out
}

// leadingZero keeps identifiers such as "007" as text.
func leadingZero(s string) bool {
	s = strings.TrimPrefix(s, "-")
	return len(s) > 1 && s[0] == '0' && s[1] != '.'
}
