package sqlsource_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/locvowork/sheetstream/pkg/excelstream"
	"github.com/locvowork/sheetstream/pkg/sqlsource"
)

type fakeRows struct {
	columns []string
	data    [][]interface{}
	pos     int
	scanErr error
	iterErr error
	closed  bool
}

func (r *fakeRows) Columns() ([]string, error) { return r.columns, nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...interface{}) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	for i, v := range r.data[r.pos-1] {
		*(dest[i].(*interface{})) = v
	}
	return nil
}

func (r *fakeRows) Err() error { return r.iterErr }

func (r *fakeRows) Close() error {
	r.closed = true
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
	args  []interface{}
}

func (q *fakeQuerier) Query(_ context.Context, query string, args ...interface{}) (sqlsource.Rows, error) {
	q.query, q.args = query, args
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func startWriter(t *testing.T) *excelstream.Writer {
	t.Helper()
	w := excelstream.NewWriter(excelstream.WithTempDir(t.TempDir()), excelstream.WithSheetName("Report"))
	require.NoError(t, w.Start(context.Background()))
	return w
}

func reopen(t *testing.T, doc excelstream.Document) *excelize.File {
	t.Helper()
	var buf bytes.Buffer
	_, err := doc.(*excelstream.ExcelizeDocument).WriteTo(&buf)
	require.NoError(t, err)
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestExportWritesTitlesAndRows(t *testing.T) {
	joined := time.Date(2023, 4, 5, 0, 0, 0, 0, time.UTC)
	q := &fakeQuerier{rows: &fakeRows{
		columns: []string{"name", "salary", "joined", "note"},
		data: [][]interface{}{
			{[]byte("ann"), int64(1200), joined, nil},
			{"bob", 980.5, joined, []byte("part time")},
		},
	}}

	w := startWriter(t)
	n, err := sqlsource.Export(context.Background(), q, "SELECT * FROM staff WHERE dept = $1", []interface{}{"ops"}, w,
		sqlsource.WithDateFormat("dd/mm/yyyy"),
		sqlsource.WithColumnFormat("salary", "#,##0"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []interface{}{"ops"}, q.args)
	assert.True(t, q.rows.closed)

	doc, err := w.Build()
	require.NoError(t, err)
	defer doc.Close()

	f := reopen(t, doc)
	rows, err := f.GetRows("Report")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"name", "salary", "joined", "note"}, rows[0])
	assert.Equal(t, "ann", rows[1][0])
	assert.Equal(t, "1,200", rows[1][1])
	assert.Equal(t, "05/04/2023", rows[1][2])
	assert.Equal(t, "part time", rows[2][3])
}

func TestExportWithoutHeaders(t *testing.T) {
	q := &fakeQuerier{rows: &fakeRows{
		columns: []string{"id"},
		data:    [][]interface{}{{int64(1)}, {int64(2)}},
	}}

	w := startWriter(t)
	_, err := sqlsource.Export(context.Background(), q, "SELECT id FROM t", nil, w, sqlsource.WithHeaders(false))
	require.NoError(t, err)

	doc, err := w.Build()
	require.NoError(t, err)
	defer doc.Close()

	rows, err := reopen(t, doc).GetRows("Report")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"1"}, {"2"}}, rows)
}

func TestExportQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	w := startWriter(t)
	defer w.Cancel()

	_, err := sqlsource.Export(context.Background(), &fakeQuerier{err: boom}, "SELECT 1", nil, w)
	assert.ErrorIs(t, err, boom)
}

func TestExportScanAndIterationErrors(t *testing.T) {
	boom := errors.New("bad value")

	w := startWriter(t)
	defer w.Cancel()
	q := &fakeQuerier{rows: &fakeRows{columns: []string{"a"}, data: [][]interface{}{{1}}, scanErr: boom}}
	_, err := sqlsource.Export(context.Background(), q, "q", nil, w)
	assert.ErrorIs(t, err, boom)

	w2 := startWriter(t)
	defer w2.Cancel()
	q2 := &fakeQuerier{rows: &fakeRows{columns: []string{"a"}, iterErr: boom}}
	_, err = sqlsource.Export(context.Background(), q2, "q", nil, w2)
	assert.ErrorIs(t, err, boom)
}

func TestExportStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := startWriter(t)
	defer w.Cancel()
	q := &fakeQuerier{rows: &fakeRows{columns: []string{"a"}, data: [][]interface{}{{1}, {2}}}}
	n, err := sqlsource.Export(ctx, q, "q", nil, w)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
}
