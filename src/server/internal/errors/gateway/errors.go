package gateway

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/everyinstrument/everyinstrument-be/src/server/api_error"
	"github.com/everyinstrument/everyinstrument-be/src/server/internal/errors/api"
	seperrors "github.com/everyinstrument/everyinstrument-be/src/server/internal/separation/errors"
)

var httpStatusCodeMap = map[api.ErrorCode]int{
	api.DefaultErrorCode:                    http.StatusInternalServerError,
	seperrors.UnsupportedConfigurationCode:  http.StatusBadRequest,
	seperrors.BadRequestDataCode:            http.StatusBadRequest,
	seperrors.PreprocessingFailedCode:       http.StatusUnprocessableEntity,
	seperrors.SeparationFailedCode:          http.StatusBadGateway,
	seperrors.PostprocessingFailedCode:      http.StatusInternalServerError,
	seperrors.ExportFailedCode:              http.StatusInternalServerError,
	seperrors.RunNotFoundCode:               http.StatusNotFound,
}

func ErrorResponse(c echo.Context, err *api.Error) error {
	statusCode, ok := httpStatusCodeMap[err.ErrorCode]
	if !ok {
		msg := fmt.Sprintf("Error code %s has no HTTP status code mapping", err.ErrorCode)
		panic(msg)
	}

	return c.JSON(statusCode, api_error.JSONAPIError{
		Code:         string(err.ErrorCode),
		Msg:          err.UserMessage,
		ErrorDetails: err.Error(),
	})
}
