package echoapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/report"
)

type renderFunc func(rows []attendance.RecordRow, meta report.Meta) ([]byte, error)

func (api *attendanceApi) exportExcel(ctx echo.Context) error {
	return api.export(ctx, report.Excel, report.ExtXLSX, report.MIMEXLSX)
}

func (api *attendanceApi) exportPDF(ctx echo.Context) error {
	return api.export(ctx, report.PDF, report.ExtPDF, report.MIMEPDF)
}

func (api *attendanceApi) export(ctx echo.Context, render renderFunc, ext, mime string) error {
	var params FilterParams
	if err := params.Bind(ctx, api.validate); err != nil {
		return err
	}

	rows, err := api.svc.Query(ctx.Request().Context(), params.Filter)
	if err != nil {
		return errors.Wrap(err, "querying records")
	}

	description := strings.TrimSpace(ctx.QueryParam(filtersParam))
	if description == "" {
		description = report.DescribeFilter(params.Filter)
	}
	now := time.Now()
	data, err := render(rows, report.Meta{
		Title:       api.conf.Report.Title,
		Description: description,
		GeneratedAt: now,
	})
	if err != nil {
		return errors.Wrapf(err, "rendering %s report", ext)
	}

	filename := report.Filename(api.conf.Report.Name, ext, now)
	ctx.Response().Header().Set(echo.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	return ctx.Blob(http.StatusOK, mime, data)
}
