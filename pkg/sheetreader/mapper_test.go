package sheetreader_test

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locvowork/sheetstream/pkg/sheetreader"
)

type positional struct {
	ID     uint
	Active bool
	Note   *string
	hidden string
	Score  *float64
}

type tagged struct {
	When  time.Time `excel:"index:2,format:Jan 2, 2006"`
	Count int64     `excel:"index:0"`
	Skip  string    `excel:"-"`
}

func view(cells ...string) sheetreader.RowView {
	return sheetreader.RowView{Cells: cells}
}

func TestDefaultMapperPositional(t *testing.T) {
	m, err := sheetreader.DefaultMapper[positional]()
	require.NoError(t, err)

	got, err := m(view("42", "TRUE", "hello", "1,234.5"))
	require.NoError(t, err)
	assert.Equal(t, uint(42), got.ID)
	assert.True(t, got.Active)
	require.NotNil(t, got.Note)
	assert.Equal(t, "hello", *got.Note)
	require.NotNil(t, got.Score)
	assert.InDelta(t, 1234.5, *got.Score, 1e-9)
}

func TestDefaultMapperLeavesBlankCellsZero(t *testing.T) {
	m, err := sheetreader.DefaultMapper[positional]()
	require.NoError(t, err)

	got, err := m(view("7"))
	require.NoError(t, err)
	assert.Equal(t, uint(7), got.ID)
	assert.Nil(t, got.Note)
	assert.Nil(t, got.Score)
}

func TestDefaultMapperTagWithCommaInFormat(t *testing.T) {
	m, err := sheetreader.DefaultMapper[tagged]()
	require.NoError(t, err)

	got, err := m(view("12.0", "ignored", "Mar 4, 2021"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), got.Count)
	assert.Equal(t, time.Date(2021, 3, 4, 0, 0, 0, 0, time.UTC), got.When)
	assert.Empty(t, got.Skip)
}

func TestDefaultMapperReportsColumn(t *testing.T) {
	m, err := sheetreader.DefaultMapper[tagged]()
	require.NoError(t, err)

	_, err = m(view("abc"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column 0 (Count)")
}

func TestDefaultMapperRejectsScalars(t *testing.T) {
	_, err := sheetreader.DefaultMapper[int]()
	assert.Error(t, err)
}

func TestDefaultMapperRejectsBadIndex(t *testing.T) {
	type broken struct {
		A string `excel:"index:x"`
	}
	_, err := sheetreader.DefaultMapper[broken]()
	assert.Error(t, err)
}

func TestDefaultMapperSliceCopiesCells(t *testing.T) {
	m, err := sheetreader.DefaultMapper[[]string]()
	require.NoError(t, err)

	cells := []string{"a", "b"}
	got, err := m(view(cells...))
	require.NoError(t, err)
	cells[0] = "changed"
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestSniff(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want sheetreader.Format
	}{
		{"zip", []byte("PK\x03\x04rest"), sheetreader.FormatXLSX},
		{"ole2", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0x00}, sheetreader.FormatXLS},
		{"text", []byte("a,b,c\n"), sheetreader.FormatCSV},
		{"short", []byte("P"), sheetreader.FormatCSV},
		{"empty", nil, sheetreader.FormatCSV},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sheetreader.Sniff(bytes.NewReader(tt.data))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
