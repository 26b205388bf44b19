package excelstream

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheetName = "Sheet1"
	maxColumnWidth   = 100

	// widthSampleRows is how many rows a sheet holds back to size its
	// columns before streaming starts.
	widthSampleRows = 100
)

// ExcelizeDocument is the default Document. Each sheet is written through an
// excelize StreamWriter, which spills to a temp file past excelize's chunk
// size, so memory stays bounded by the styles and a sample of rows per sheet.
type ExcelizeDocument struct {
	f       *excelize.File
	sheets  []*excelizeSheet
	styles  map[*CellStyle]int
	freeze  int
	renamed bool
}

// NewExcelizeDocument is a DocumentFactory. excelize only writes the zip-based
// format, so KindXLS yields ErrUnsupportedKind.
func NewExcelizeDocument(kind Kind) (Document, error) {
	if kind != KindXLSX {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedKind, kind)
	}
	return &ExcelizeDocument{
		f:      excelize.NewFile(),
		styles: make(map[*CellStyle]int),
	}, nil
}

func (d *ExcelizeDocument) Kind() Kind {
	return KindXLSX
}

func (d *ExcelizeDocument) NewSheet(name string) (Sheet, error) {
	if !d.renamed {
		// reuse the sheet every new workbook starts with
		if err := d.f.SetSheetName(defaultSheetName, name); err != nil {
			return nil, fmt.Errorf("renaming default sheet: %w", err)
		}
		d.renamed = true
	} else if _, err := d.f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("creating sheet %s: %w", name, err)
	}
	sw, err := d.f.NewStreamWriter(name)
	if err != nil {
		return nil, fmt.Errorf("opening stream for %s: %w", name, err)
	}
	s := &excelizeSheet{doc: d, name: name, sw: sw, sample: make(map[int]int)}
	d.sheets = append(d.sheets, s)
	return s, nil
}

// FreezeRows applies to every sheet that has not started streaming yet.
func (d *ExcelizeDocument) FreezeRows(n int) error {
	if n < 0 {
		n = 0
	}
	d.freeze = n
	return nil
}

// SaveAs finishes any open sheet with its sampled widths and writes the workbook.
func (d *ExcelizeDocument) SaveAs(path string) error {
	if err := d.finishAll(); err != nil {
		return err
	}
	if err := d.f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

// WriteTo finishes any open sheet and writes the workbook to w.
func (d *ExcelizeDocument) WriteTo(w io.Writer) (int64, error) {
	if err := d.finishAll(); err != nil {
		return 0, err
	}
	return d.f.WriteTo(w)
}

func (d *ExcelizeDocument) finishAll() error {
	for _, s := range d.sheets {
		if !s.done {
			if err := s.Finish(s.sample); err != nil {
				return err
			}
		}
	}
	return nil
}

func (d *ExcelizeDocument) Close() error {
	d.styles = nil
	d.sheets = nil
	return d.f.Close()
}

// styleID registers style once per document.
func (d *ExcelizeDocument) styleID(style *CellStyle) (int, error) {
	if id, ok := d.styles[style]; ok {
		return id, nil
	}
	id, err := d.f.NewStyle(toExcelizeStyle(style))
	if err != nil {
		return 0, err
	}
	d.styles[style] = id
	return id, nil
}

type pendingRow struct {
	index int
	cells []interface{}
}

// excelizeSheet holds rows back until widthSampleRows are seen or the sheet
// is finished, because a StreamWriter takes column widths and panes only
// before its first row.
type excelizeSheet struct {
	doc     *ExcelizeDocument
	name    string
	sw      *excelize.StreamWriter
	pending []pendingRow
	sample  map[int]int
	started bool
	done    bool
}

func (s *excelizeSheet) Name() string {
	return s.name
}

func (s *excelizeSheet) AppendRow(r *Row) error {
	if s.done {
		return fmt.Errorf("sheet %s is finished", s.name)
	}
	cells, err := s.cells(r)
	if err != nil {
		return err
	}
	if s.started {
		return s.setRow(r.Index, cells)
	}

	s.pending = append(s.pending, pendingRow{index: r.Index, cells: cells})
	for col, w := range r.ColWidths {
		if w > s.sample[col] {
			s.sample[col] = w
		}
	}
	if len(s.pending) >= widthSampleRows {
		return s.start(s.sample)
	}
	return nil
}

func (s *excelizeSheet) cells(r *Row) ([]interface{}, error) {
	width := 0
	for _, c := range r.Cells {
		if c.Col+1 > width {
			width = c.Col + 1
		}
	}
	values := make([]interface{}, width)
	for _, c := range r.Cells {
		cell := excelize.Cell{}
		switch v := c.Value.(type) {
		case Formula:
			cell.Formula = strings.TrimPrefix(string(v), "=")
		case *time.Time:
			if v != nil {
				cell.Value = *v
			}
		default:
			cell.Value = v
		}
		if c.Style != nil {
			id, err := s.doc.styleID(c.Style)
			if err != nil {
				return nil, fmt.Errorf("creating style: %w", err)
			}
			cell.StyleID = id
		}
		if cell.Value == nil && cell.Formula == "" && cell.StyleID == 0 {
			continue
		}
		values[c.Col] = cell
	}
	return values, nil
}

func (s *excelizeSheet) setRow(index int, cells []interface{}) error {
	ref, err := excelize.CoordinatesToCellName(1, index+1)
	if err != nil {
		return err
	}
	if err := s.sw.SetRow(ref, cells); err != nil {
		return fmt.Errorf("writing row %s: %w", ref, err)
	}
	return nil
}

// start applies widths and panes, then writes the held-back rows.
func (s *excelizeSheet) start(widths map[int]int) error {
	cols := make([]int, 0, len(widths))
	for col := range widths {
		cols = append(cols, col)
	}
	sort.Ints(cols)
	for _, col := range cols {
		if err := s.sw.SetColWidth(col+1, col+1, columnWidth(widths[col])); err != nil {
			return fmt.Errorf("setting column width: %w", err)
		}
	}

	if n := s.doc.freeze; n > 0 {
		topLeft, err := excelize.CoordinatesToCellName(1, n+1)
		if err != nil {
			return err
		}
		if err := s.sw.SetPanes(&excelize.Panes{
			Freeze:      true,
			YSplit:      n,
			TopLeftCell: topLeft,
			ActivePane:  "bottomLeft",
		}); err != nil {
			return fmt.Errorf("setting freeze panes on %s: %w", s.name, err)
		}
	}

	s.started = true
	for _, p := range s.pending {
		if err := s.setRow(p.index, p.cells); err != nil {
			return err
		}
	}
	s.pending = nil
	return nil
}

// Finish sizes the columns from widths when the sheet is still held back,
// otherwise the sampled widths stay, and then flushes the stream.
func (s *excelizeSheet) Finish(widths map[int]int) error {
	if s.done {
		return nil
	}
	if !s.started {
		if err := s.start(widths); err != nil {
			return err
		}
	}
	s.done = true
	if err := s.sw.Flush(); err != nil {
		return fmt.Errorf("flushing sheet %s: %w", s.name, err)
	}
	return nil
}

func columnWidth(w int) float64 {
	adjusted := float64(w) * 1.2 // padding
	if adjusted < 8 {
		adjusted = 8
	}
	if adjusted > maxColumnWidth {
		adjusted = maxColumnWidth
	}
	return adjusted
}

// toExcelizeStyle converts a CellStyle to excelize's representation.
func toExcelizeStyle(style *CellStyle) *excelize.Style {
	es := &excelize.Style{
		Font: &excelize.Font{
			Bold:   style.FontBold,
			Italic: style.FontItalic,
			Size:   style.FontSize,
			Family: style.FontName,
		},
		Alignment: &excelize.Alignment{
			Horizontal: style.Alignment,
			Vertical:   normalizeVertical(style.VerticalAlign),
			WrapText:   style.WrapText,
		},
	}

	if style.FontColor != "" {
		es.Font.Color = strings.TrimPrefix(style.FontColor, "#")
	}

	if style.FillColor != "" {
		pattern := style.FillPattern
		if pattern == 0 {
			pattern = 1
		}
		es.Fill = excelize.Fill{
			Type:    "pattern",
			Pattern: pattern,
			Color:   []string{strings.TrimPrefix(style.FillColor, "#")},
		}
	}

	if style.BorderStyle != "" {
		borderColor := "000000"
		if style.BorderColor != "" {
			borderColor = strings.TrimPrefix(style.BorderColor, "#")
		}
		weight := 1
		if style.BorderStyle == "medium" {
			weight = 2
		} else if style.BorderStyle == "thick" {
			weight = 5
		}
		es.Border = []excelize.Border{
			{Type: "left", Color: borderColor, Style: weight},
			{Type: "top", Color: borderColor, Style: weight},
			{Type: "bottom", Color: borderColor, Style: weight},
			{Type: "right", Color: borderColor, Style: weight},
		}
	}

	if style.NumberFormat != "" {
		format := style.NumberFormat
		es.CustomNumFmt = &format
	}
	return es
}

// excelize expects "center" where the style sheet says "middle".
func normalizeVertical(v string) string {
	if v == "middle" {
		return "center"
	}
	return v
}
