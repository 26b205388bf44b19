package excelstream

import (
	"fmt"
	"time"
	"unicode/utf8"
)

// ContentType classifies the value held by a Cell.
type ContentType int

const (
	ContentText ContentType = iota
	ContentNumber
	ContentDate
	ContentFormula
)

func (t ContentType) String() string {
	switch t {
	case ContentNumber:
		return "number"
	case ContentDate:
		return "date"
	case ContentFormula:
		return "formula"
	default:
		return "text"
	}
}

// Formula marks a value as a spreadsheet formula, e.g. Formula("SUM(A1:A3)").
type Formula string

// DefaultDateFormat is applied to date cells that carry no explicit format.
const DefaultDateFormat = "yyyy-mm-dd"

// Cell is one value of a Row.
type Cell struct {
	Col    int
	Row    int // set by the builder when the row is appended
	Value  interface{}
	Type   ContentType
	Format string
	Style  *CellStyle // nil until resolved
	Header bool
}

// Row is an ordered list of cells plus the width observed for each column.
// Index is assigned when the row is appended to a sheet, not when it is created.
type Row struct {
	Cells        []*Cell
	Index        int
	FromTemplate bool
	ColWidths    map[int]int
}

// NewRow builds a body row, detecting each cell's content type.
func NewRow(values ...interface{}) *Row {
	return newRow(false, values)
}

// NewTitleRow builds a row whose cells are headers.
func NewTitleRow(values ...interface{}) *Row {
	return newRow(true, values)
}

func newRow(header bool, values []interface{}) *Row {
	r := &Row{
		Cells:     make([]*Cell, 0, len(values)),
		ColWidths: make(map[int]int, len(values)),
	}
	for i, v := range values {
		c := &Cell{Col: i, Value: v, Type: detectType(v), Header: header}
		if c.Type == ContentDate {
			c.Format = DefaultDateFormat
		}
		r.Cells = append(r.Cells, c)
		r.ColWidths[i] = displayWidth(c)
	}
	return r
}

// WithFormat sets the display format of the cell in column col.
func (r *Row) WithFormat(col int, format string) *Row {
	for _, c := range r.Cells {
		if c.Col == col {
			c.Format = format
			if c.Type == ContentDate {
				r.ColWidths[col] = displayWidth(c)
			}
		}
	}
	return r
}

// Template marks the row as pre-styled so style resolution is skipped.
func (r *Row) Template() *Row {
	r.FromTemplate = true
	return r
}

// clone copies the row and its cells. Title rows are cloned before every
// re-emission so the cached originals stay untouched.
func (r *Row) clone() *Row {
	out := &Row{
		Cells:        make([]*Cell, len(r.Cells)),
		Index:        r.Index,
		FromTemplate: r.FromTemplate,
		ColWidths:    make(map[int]int, len(r.ColWidths)),
	}
	for i, c := range r.Cells {
		cc := *c
		out.Cells[i] = &cc
	}
	for k, v := range r.ColWidths {
		out.ColWidths[k] = v
	}
	return out
}

func detectType(v interface{}) ContentType {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return ContentNumber
	case time.Time, *time.Time:
		return ContentDate
	case Formula:
		return ContentFormula
	default:
		return ContentText
	}
}

// displayWidth estimates the rendered width of a cell in characters.
func displayWidth(c *Cell) int {
	switch v := c.Value.(type) {
	case nil:
		return 0
	case string:
		return utf8.RuneCountInString(v)
	case time.Time, *time.Time:
		if c.Format != "" {
			return utf8.RuneCountInString(c.Format)
		}
		return len(DefaultDateFormat)
	default:
		return utf8.RuneCountInString(fmt.Sprintf("%v", v))
	}
}
