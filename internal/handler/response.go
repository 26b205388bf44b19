package handler

import (
	"github.com/labstack/echo/v4"

	"github.com/locvowork/sheetstream/internal/logger"
)

type response struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ResponseSuccess writes a JSON success envelope.
func ResponseSuccess(c echo.Context, status int, message string, data interface{}) error {
	return c.JSON(status, response{Message: message, Data: data})
}

// ResponseError logs err and writes a JSON error envelope.
func ResponseError(c echo.Context, status int, message string, err error) error {
	body := response{Message: message}
	if err != nil {
		body.Error = err.Error()
		logger.ErrorErr(c.Request().Context(), err, message)
	}
	return c.JSON(status, body)
}
