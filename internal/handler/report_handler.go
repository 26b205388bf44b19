package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/locvowork/sheetstream/internal/logger"
	"github.com/locvowork/sheetstream/internal/service"
)

type ReportHandler struct {
	svc *service.ReportService
}

func NewReportHandler(svc *service.ReportService) *ReportHandler {
	return &ReportHandler{svc: svc}
}

// ListHandler returns the configured report names.
func (h *ReportHandler) ListHandler(c echo.Context) error {
	return ResponseSuccess(c, http.StatusOK, "Reports listed successfully", h.svc.Names())
}

// ExportHandler runs a report. Query parameters `arg` fill the query
// placeholders in order.
func (h *ReportHandler) ExportHandler(c echo.Context) error {
	name := c.Param("name")
	jobID := uuid.NewString()
	ctx := logger.WithLogger(c.Request().Context(), map[string]interface{}{"job_id": jobID})

	var args []interface{}
	for _, a := range c.QueryParams()["arg"] {
		args = append(args, a)
	}

	res, err := h.svc.Export(ctx, name, args...)
	if errors.Is(err, service.ErrReportNotFound) {
		return ResponseError(c, http.StatusNotFound, "Report not found", err)
	}
	if err != nil {
		return ResponseError(c, http.StatusInternalServerError, "Failed to export report", err)
	}
	defer res.Release()

	c.Response().Header().Set("X-Job-Id", jobID)
	c.Response().Header().Set("X-Row-Count", strconv.Itoa(res.Rows))
	return c.Attachment(res.Path, name+".zip")
}

// HealthHandler reports liveness.
func HealthHandler(c echo.Context) error {
	return ResponseSuccess(c, http.StatusOK, "ok", nil)
}
