package handler

import (
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/locvowork/sheetstream/internal/logger"
	"github.com/locvowork/sheetstream/internal/service"
	"github.com/locvowork/sheetstream/pkg/sheetreader"
)

type ConvertHandler struct {
	split   *service.SplitService
	tempDir string
}

func NewConvertHandler(split *service.SplitService, tempDir string) *ConvertHandler {
	return &ConvertHandler{split: split, tempDir: tempDir}
}

// ConvertHandler splits an uploaded spreadsheet or CSV file into chunks of
// `capacity` rows and answers with the zip.
//
// Form fields: file (required), capacity, title_rows, all_sheets, sheet
// (repeatable), charset, keep_text.
func (h *ConvertHandler) ConvertHandler(c echo.Context) error {
	jobID := uuid.NewString()
	ctx := logger.WithLogger(c.Request().Context(), map[string]interface{}{"job_id": jobID})
	c.SetRequest(c.Request().WithContext(ctx))

	fh, err := c.FormFile("file")
	if err != nil {
		return ResponseError(c, http.StatusBadRequest, "Missing upload field 'file'", err)
	}
	req := service.SplitRequest{Charset: c.FormValue("charset")}
	if req.Capacity, err = formInt(c, "capacity"); err != nil {
		return ResponseError(c, http.StatusBadRequest, "Invalid capacity", err)
	}
	if req.TitleRows, err = formInt(c, "title_rows"); err != nil {
		return ResponseError(c, http.StatusBadRequest, "Invalid title_rows", err)
	}
	req.AllSheets, _ = strconv.ParseBool(c.FormValue("all_sheets"))
	req.KeepText, _ = strconv.ParseBool(c.FormValue("keep_text"))
	if form, err := c.MultipartForm(); err == nil {
		req.Sheets = form.Value["sheet"]
	}

	src, err := fh.Open()
	if err != nil {
		return ResponseError(c, http.StatusBadRequest, "Failed to open upload", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(h.tempDir, "upload-"+jobID+"-*")
	if err != nil {
		return ResponseError(c, http.StatusInternalServerError, "Failed to store upload", err)
	}
	defer os.Remove(tmp.Name())
	_, err = io.Copy(tmp, src)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return ResponseError(c, http.StatusInternalServerError, "Failed to store upload", err)
	}

	req.Input = tmp.Name()
	req.Name = strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename))
	res, err := h.split.Split(ctx, req)
	switch {
	case errors.Is(err, sheetreader.ErrReadFailure), errors.Is(err, service.ErrEmptyInput):
		return ResponseError(c, http.StatusUnprocessableEntity, "Failed to read upload", err)
	case err != nil:
		return ResponseError(c, http.StatusInternalServerError, "Failed to convert upload", err)
	}
	defer res.Release()

	c.Response().Header().Set("X-Job-Id", jobID)
	c.Response().Header().Set("X-Row-Count", strconv.Itoa(res.Rows))
	c.Response().Header().Set("X-Skipped-Rows", strconv.Itoa(res.Skipped))
	return c.Attachment(res.Path, req.Name+".zip")
}

func formInt(c echo.Context, name string) (int, error) {
	v := c.FormValue(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New(name + " must not be negative")
	}
	return n, nil
}
