package excelstream

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewRowDetectsTypes(t *testing.T) {
	when := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	r := NewRow("text", 42, 3.14, when, Formula("A1+B1"), nil)

	want := []ContentType{ContentText, ContentNumber, ContentNumber, ContentDate, ContentFormula, ContentText}
	for i, c := range r.Cells {
		assert.Equal(t, i, c.Col)
		assert.Equal(t, want[i], c.Type, "cell %d", i)
		assert.False(t, c.Header)
		assert.Nil(t, c.Style)
	}
	assert.Equal(t, DefaultDateFormat, r.Cells[3].Format)

	assert.Equal(t, 4, r.ColWidths[0])
	assert.Equal(t, 2, r.ColWidths[1])
	assert.Equal(t, 4, r.ColWidths[2])
	assert.Equal(t, len(DefaultDateFormat), r.ColWidths[3])
	assert.Equal(t, 0, r.ColWidths[5])
}

func TestNewRowCountsRunes(t *testing.T) {
	r := NewRow("日本語")
	assert.Equal(t, 3, r.ColWidths[0])
}

func TestRowWithFormat(t *testing.T) {
	r := NewRow(time.Now(), 1).WithFormat(0, "dd/mm/yyyy hh:mm").WithFormat(1, "0.00")
	assert.Equal(t, "dd/mm/yyyy hh:mm", r.Cells[0].Format)
	assert.Equal(t, 16, r.ColWidths[0])
	assert.Equal(t, "0.00", r.Cells[1].Format)
}

func TestTitleRowAndTemplate(t *testing.T) {
	r := NewTitleRow("ID", "Name")
	assert.True(t, r.Cells[0].Header)
	assert.True(t, r.Cells[1].Header)
	assert.False(t, r.FromTemplate)
	assert.True(t, NewRow("x").Template().FromTemplate)
}

func TestRowCloneIsIndependent(t *testing.T) {
	r := NewTitleRow("ID")
	c := r.clone()
	c.Index = 7
	c.Cells[0].Row = 7
	c.ColWidths[0] = 99

	assert.Equal(t, 0, r.Index)
	assert.Equal(t, 0, r.Cells[0].Row)
	assert.Equal(t, 2, r.ColWidths[0])
}

func TestContentTypeString(t *testing.T) {
	assert.Equal(t, "text", ContentText.String())
	assert.Equal(t, "number", ContentNumber.String())
	assert.Equal(t, "date", ContentDate.String())
	assert.Equal(t, "formula", ContentFormula.String())
}
