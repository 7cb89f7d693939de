package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

type (
	attendanceApi struct {
		svc       attendance.ServiceInterface
		validate  *validator.Validate
		conf      *core.Config
		uploadMax string
	}

	recordResponse struct {
		SNo int `json:"s_no"`
		attendance.RecordRow
	}

	messageResponse struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
)

func registerAttendanceAPI(app *echo.Echo, api attendanceApi) {
	app.POST("/upload", api.upload, middleware.BodyLimit(api.uploadMax))
	app.DELETE("/delete_record/:id", api.deleteRecord)
	app.POST("/clear_all_data", api.clearAll)

	g := app.Group("/api")
	g.GET("/attendance", api.query)
	g.GET("/stats", api.stats)
	g.GET("/filtered_stats", api.filteredStats)
	g.GET("/courses", api.courses)

	eg := app.Group("/export")
	eg.GET("/excel", api.exportExcel)
	eg.GET("/pdf", api.exportPDF)
}

// Handlers

func (api *attendanceApi) query(ctx echo.Context) error {
	var params FilterParams
	if err := params.Bind(ctx, api.validate); err != nil {
		return err
	}

	rows, err := api.svc.Query(ctx.Request().Context(), params.Filter)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}

	resp := make([]recordResponse, 0, len(rows))
	for i, row := range rows {
		row.Percentage = row.Rounded()
		resp = append(resp, recordResponse{SNo: i + 1, RecordRow: row})
	}
	return ctx.JSON(http.StatusOK, resp)
}

func (api *attendanceApi) stats(ctx echo.Context) error {
	stats, err := api.svc.OverallStats(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "computing stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) filteredStats(ctx echo.Context) error {
	var params FilterParams
	if err := params.Bind(ctx, api.validate); err != nil {
		return err
	}

	stats, err := api.svc.Stats(ctx.Request().Context(), params.Filter)
	if err != nil {
		return errors.Wrap(err, "computing filtered stats")
	}
	return ctx.JSON(http.StatusOK, stats)
}

func (api *attendanceApi) courses(ctx echo.Context) error {
	courses, err := api.svc.Courses(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying courses")
	}
	return ctx.JSON(http.StatusOK, courses)
}

func (api *attendanceApi) deleteRecord(ctx echo.Context) error {
	id, err := strconv.ParseInt(ctx.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return core.NewValidationError(errors.New("invalid record id"))
	}

	if err = api.svc.DeleteRecord(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting record")
	}
	return ctx.JSON(http.StatusOK, messageResponse{Success: true, Message: "Record deleted successfully"})
}

func (api *attendanceApi) clearAll(ctx echo.Context) error {
	if err := api.svc.ClearAll(ctx.Request().Context()); err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, messageResponse{Success: true, Message: "All data cleared successfully"})
}
