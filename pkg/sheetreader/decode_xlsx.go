package sheetreader

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// decodeXLSX streams the selected worksheets row by row. The shared string
// table and any worksheet spilled to disk belong to the opened file and are
// released by the deferred Close on every path.
func decodeXLSX(path string, sel selection, opts decodeOptions, sink rowSink) error {
	f, err := excelize.OpenFile(path, excelize.Options{UnzipXMLSizeLimit: opts.xmlSizeLimit})
	if err != nil {
		return fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	for index, name := range f.GetSheetList() {
		if !sel.want(name, index) {
			continue
		}
		sink.startSheet(name, index)
		if err := streamSheet(f, name, sink); err != nil {
			return err
		}
	}
	return nil
}

func streamSheet(f *excelize.File, name string, sink rowSink) error {
	rows, err := f.Rows(name)
	if err != nil {
		return fmt.Errorf("opening sheet %s: %w", name, err)
	}
	defer rows.Close()

	for i := 0; rows.Next(); i++ {
		cols, cellErr := rows.Columns()
		if err := sink.row(i, cols, cellErr); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return fmt.Errorf("iterating sheet %s: %w", name, err)
	}
	return nil
}
