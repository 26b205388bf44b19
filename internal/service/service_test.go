package service

import (
	"archive/zip"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/locvowork/sheetstream/internal/config"
	"github.com/locvowork/sheetstream/pkg/dataflow"
	"github.com/locvowork/sheetstream/pkg/sqlsource"
)

func testSettings(t *testing.T) ExportSettings {
	t.Helper()
	return ExportSettings{TempDir: t.TempDir()}
}

// openEntry opens one archive entry as a workbook.
func openEntry(t *testing.T, zipPath, entry string) *excelize.File {
	t.Helper()
	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		require.NoError(t, err)
		defer rc.Close()
		x, err := excelize.OpenReader(rc)
		require.NoError(t, err)
		t.Cleanup(func() { x.Close() })
		return x
	}
	t.Fatalf("entry %q not found in %s", entry, zipPath)
	return nil
}

func entryNames(t *testing.T, zipPath string) []string {
	t.Helper()
	zr, err := zip.OpenReader(zipPath)
	require.NoError(t, err)
	defer zr.Close()
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return names
}

func TestSplitCSVIntoChunks(t *testing.T) {
	input := filepath.Join(t.TempDir(), "people.csv")
	var b strings.Builder
	b.WriteString("name,age\n")
	for i := 0; i < 7; i++ {
		b.WriteString("person,")
		b.WriteString(string(rune('0' + i)))
		b.WriteString("\n")
	}
	require.NoError(t, os.WriteFile(input, []byte(b.String()), 0o600))

	svc := NewSplitService(testSettings(t))
	res, err := svc.Split(context.Background(), SplitRequest{Input: input, Name: "people", Capacity: 3, TitleRows: 1})
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, 7, res.Rows)
	// the title row counts toward each chunk's capacity
	assert.Equal(t, []string{"people (1).xlsx", "people (2).xlsx", "people (3).xlsx", "people (4).xlsx"}, entryNames(t, res.Path))

	f := openEntry(t, res.Path, "people (4).xlsx")
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"name", "age"}, rows[0])
	assert.Equal(t, "6", rows[1][1])

	res.Release()
	_, err = os.Stat(res.Path)
	assert.True(t, os.IsNotExist(err))
}

func TestSplitEmptyInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "empty.csv")
	require.NoError(t, os.WriteFile(input, nil, 0o600))

	dir := t.TempDir()
	svc := NewSplitService(ExportSettings{TempDir: dir})
	_, err := svc.Split(context.Background(), SplitRequest{Input: input})
	assert.ErrorIs(t, err, ErrEmptyInput)

	left, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestSplitUnreadableInput(t *testing.T) {
	input := filepath.Join(t.TempDir(), "broken.xlsx")
	require.NoError(t, os.WriteFile(input, []byte("PK\x03\x04garbage"), 0o600))

	svc := NewSplitService(testSettings(t))
	_, err := svc.Split(context.Background(), SplitRequest{Input: input})
	assert.Error(t, err)
}

func TestToValues(t *testing.T) {
	got := toValues([]string{"12", "1.5", "007", "abc", "", "NaN", "-3"}, false)
	assert.Equal(t, []interface{}{int64(12), 1.5, "007", "abc", "", "NaN", int64(-3)}, got)

	kept := toValues([]string{"12"}, true)
	assert.Equal(t, []interface{}{"12"}, kept)
}

type fakeRows struct {
	cols []string
	data [][]interface{}
	pos  int
}

func (r *fakeRows) Columns() ([]string, error) { return r.cols, nil }
func (r *fakeRows) Next() bool                 { r.pos++; return r.pos <= len(r.data) }
func (r *fakeRows) Err() error                 { return nil }
func (r *fakeRows) Close() error               { return nil }
func (r *fakeRows) Scan(dest ...interface{}) error {
	for i, v := range r.data[r.pos-1] {
		*(dest[i].(*interface{})) = v
	}
	return nil
}

type fakeDB struct {
	rows  *fakeRows
	err   error
	query string
	args  []interface{}
}

func (d *fakeDB) Query(_ context.Context, query string, args ...interface{}) (sqlsource.Rows, error) {
	d.query, d.args = query, args
	if d.err != nil {
		return nil, d.err
	}
	return d.rows, nil
}

func TestReportServiceExport(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{
		cols: []string{"name", "salary"},
		data: [][]interface{}{{"ann", 10.0}, {"bob", 20.0}, {"cid", 30.0}},
	}}
	reports := map[string]config.Report{
		"staff": {Name: "staff", SheetName: "Staff", Query: "SELECT 1", Capacity: 3},
	}

	pool := dataflow.NewPool(context.Background(), dataflow.WithWorkers(2))
	defer pool.Close()
	settings := testSettings(t)
	settings.Pool = pool

	svc := NewReportService(db, reports, settings)
	assert.Equal(t, []string{"staff"}, svc.Names())

	res, err := svc.Export(context.Background(), "staff")
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, 3, res.Rows)
	assert.Equal(t, []string{"staff (1).xlsx", "staff (2).xlsx"}, entryNames(t, res.Path))

	f := openEntry(t, res.Path, "staff (2).xlsx")
	assert.Equal(t, []string{"Staff"}, f.GetSheetList())
}

func TestReportServiceErrors(t *testing.T) {
	boom := errors.New("db down")
	svc := NewReportService(&fakeDB{err: boom}, map[string]config.Report{"r": {Name: "r", Query: "q"}}, testSettings(t))

	_, err := svc.Export(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrReportNotFound)

	_, err = svc.Export(context.Background(), "r")
	assert.ErrorIs(t, err, boom)
}

func TestReportServiceTableReport(t *testing.T) {
	db := &fakeDB{rows: &fakeRows{cols: []string{"id"}, data: [][]interface{}{{int64(1)}}}}
	reports := map[string]config.Report{
		"active": {
			Name:    "active",
			Table:   "staff",
			Columns: []string{"id"},
			Filters: []string{"dept = ?", "hired BETWEEN ? AND ?"},
			OrderBy: []string{"id"},
		},
	}
	svc := NewReportService(db, reports, testSettings(t))

	res, err := svc.Export(context.Background(), "active", "d001", "2020-01-01", "2021-01-01")
	require.NoError(t, err)
	defer res.Release()

	assert.Equal(t, "SELECT id FROM staff WHERE dept = $1 AND hired BETWEEN $2 AND $3 ORDER BY id", db.query)
	assert.Equal(t, []interface{}{"d001", "2020-01-01", "2021-01-01"}, db.args)

	_, err = svc.Export(context.Background(), "active", "d001")
	assert.ErrorContains(t, err, "needs 2 more argument")
	_, err = svc.Export(context.Background(), "active", "a", "b", "c", "d")
	assert.ErrorContains(t, err, "1 unused argument")
}

func TestSampleServiceGenerate(t *testing.T) {
	svc := NewSampleService(testSettings(t), 42)
	res, err := svc.Generate(context.Background(), PresetSmall, 50)
	require.NoError(t, err)
	defer res.Release()

	assert.Greater(t, res.Rows, 0)
	names := entryNames(t, res.Path)
	assert.Len(t, names, (res.Rows+48)/49)

	f := openEntry(t, res.Path, names[0])
	rows, err := f.GetRows("Products")
	require.NoError(t, err)
	assert.Equal(t, "Brand", rows[0][0])
}

func TestSampleServiceUnknownPreset(t *testing.T) {
	_, err := NewSampleService(testSettings(t), 1).Generate(context.Background(), "huge", 0)
	assert.Error(t, err)
}
