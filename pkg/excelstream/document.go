package excelstream

// Kind is the container format of a produced document.
type Kind int

const (
	// KindXLSX is the zip-based workbook format.
	KindXLSX Kind = iota
	// KindXLS is the legacy binary workbook format.
	KindXLS
)

// RowLimit returns the maximum number of rows a single sheet can hold.
func (k Kind) RowLimit() int {
	if k == KindXLS {
		return 65536
	}
	return 1048576
}

// Ext returns the file extension, including the dot.
func (k Kind) Ext() string {
	if k == KindXLS {
		return ".xls"
	}
	return ".xlsx"
}

func (k Kind) String() string {
	if k == KindXLS {
		return "xls"
	}
	return "xlsx"
}

// Document is a workbook under construction. It is owned by one goroutine at
// a time: the builder while rows are appended, then the export task.
type Document interface {
	Kind() Kind
	// NewSheet appends a sheet and returns it.
	NewSheet(name string) (Sheet, error)
	// FreezeRows freezes the first n rows of the sheets that follow. A sheet
	// may ignore it once its rows have started streaming.
	FreezeRows(n int) error
	SaveAs(path string) error
	Close() error
}

// Sheet is a single worksheet of a Document.
type Sheet interface {
	Name() string
	// AppendRow writes r at r.Index (0-based).
	AppendRow(r *Row) error
	// Finish applies the observed content width per column and completes
	// the sheet. No rows may be appended afterwards.
	Finish(widths map[int]int) error
}

// DocumentFactory creates an empty document of the given kind.
type DocumentFactory func(kind Kind) (Document, error)
