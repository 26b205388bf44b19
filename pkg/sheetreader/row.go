package sheetreader

// RowContext identifies the row being processed.
type RowContext struct {
	SheetName  string
	SheetIndex int
	RowIndex   int // 0-based within the sheet
}

// RowView is a decoded row before it is mapped. Cells keep their column
// position: Cells[i] is column i (0-based), missing cells are "".
type RowView struct {
	RowContext
	Cells []string
}

// Get returns the value of column col, or "" when the row is shorter.
func (v RowView) Get(col int) string {
	if col < 0 || col >= len(v.Cells) {
		return ""
	}
	return v.Cells[col]
}

// Empty reports whether every cell is blank.
func (v RowView) Empty() bool {
	for _, c := range v.Cells {
		if c != "" {
			return false
		}
	}
	return true
}
