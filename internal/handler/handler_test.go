package handler

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/locvowork/sheetstream/internal/config"
	"github.com/locvowork/sheetstream/internal/service"
	"github.com/locvowork/sheetstream/pkg/sqlsource"
)

func uploadRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if content != nil {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/convert", &body)
	req.Header.Set(echo.HeaderContentType, mw.FormDataContentType())
	return req
}

func newConvertHandler(t *testing.T) *ConvertHandler {
	dir := t.TempDir()
	return NewConvertHandler(service.NewSplitService(service.ExportSettings{TempDir: dir}), dir)
}

func TestConvertHandlerReturnsZip(t *testing.T) {
	h := newConvertHandler(t)
	e := echo.New()

	csv := []byte("id,name\n1,a\n2,b\n3,c\n")
	req := uploadRequest(t, "people.csv", csv, map[string]string{"capacity": "3", "title_rows": "1"})
	rec := httptest.NewRecorder()

	require.NoError(t, h.ConvertHandler(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentDisposition), "people.zip")
	assert.Equal(t, "3", rec.Header().Get("X-Row-Count"))
	assert.NotEmpty(t, rec.Header().Get("X-Job-Id"))

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"people (1).xlsx", "people (2).xlsx"}, names)
}

func TestConvertHandlerValidation(t *testing.T) {
	h := newConvertHandler(t)
	e := echo.New()

	tests := []struct {
		name    string
		content []byte
		fields  map[string]string
		status  int
	}{
		{"missing file", nil, nil, http.StatusBadRequest},
		{"bad capacity", []byte("a\n"), map[string]string{"capacity": "many"}, http.StatusBadRequest},
		{"negative capacity", []byte("a\n"), map[string]string{"capacity": "-1"}, http.StatusBadRequest},
		{"corrupt workbook", []byte("PK\x03\x04junk"), nil, http.StatusUnprocessableEntity},
		{"empty input", []byte{}, nil, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := uploadRequest(t, "in.csv", tt.content, tt.fields)
			require.NoError(t, h.ConvertHandler(e.NewContext(req, rec)))
			assert.Equal(t, tt.status, rec.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["message"])
		})
	}
}

type stubDB struct{}

func (stubDB) Query(context.Context, string, ...interface{}) (sqlsource.Rows, error) {
	return nil, assert.AnError
}

func TestReportHandler(t *testing.T) {
	svc := service.NewReportService(stubDB{}, map[string]config.Report{
		"staff": {Name: "staff", Query: "SELECT 1"},
	}, service.ExportSettings{TempDir: t.TempDir()})
	h := NewReportHandler(svc)
	e := echo.New()

	rec := httptest.NewRecorder()
	require.NoError(t, h.ListHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/reports", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "staff")

	rec = httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/reports/nope", nil), rec)
	c.SetParamNames("name")
	c.SetParamValues("nope")
	require.NoError(t, h.ExportHandler(c))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	c = e.NewContext(httptest.NewRequest(http.MethodGet, "/reports/staff?arg=1", nil), rec)
	c.SetParamNames("name")
	c.SetParamValues("staff")
	require.NoError(t, h.ExportHandler(c))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, HealthHandler(e.NewContext(httptest.NewRequest(http.MethodGet, "/healthz", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}
