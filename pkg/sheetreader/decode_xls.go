package sheetreader

import (
	"fmt"
	"strconv"

	"github.com/shakinm/xlsReader/xls"
	"github.com/shakinm/xlsReader/xls/structure"
)

// decodeXLS reads a legacy binary workbook. The library parses a sheet at a
// time; rows are then pushed to the sink one by one.
func decodeXLS(path string, sel selection, _ decodeOptions, sink rowSink) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed workbook: %v", r)
		}
	}()

	wb, err := xls.OpenFile(path)
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}

	for index := 0; index < wb.GetNumberSheets(); index++ {
		sheet, err := wb.GetSheet(index)
		if err != nil {
			return fmt.Errorf("opening sheet %d: %w", index, err)
		}
		if sheet == nil {
			continue
		}
		name := sheet.GetName()
		if !sel.want(name, index) {
			continue
		}
		sink.startSheet(name, index)
		for i, row := range sheet.GetRows() {
			if err := sink.row(i, xlsCells(row.GetCols()), nil); err != nil {
				return err
			}
		}
	}
	return nil
}

// xlsCells renders cells as text; numeric cells carry no string form.
func xlsCells(cols []structure.CellData) []string {
	out := make([]string, len(cols))
	for i, col := range cols {
		if col == nil {
			continue
		}
		val := col.GetString()
		if val == "" {
			if f := col.GetFloat64(); f != 0 {
				val = strconv.FormatFloat(f, 'f', -1, 64)
			} else if n := col.GetInt64(); n != 0 {
				val = strconv.FormatInt(n, 10)
			}
		}
		out[i] = val
	}
	return out
}
