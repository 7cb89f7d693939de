package echoapi

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

var (
	courseParam    = "course"
	thresholdParam = "threshold"
	searchParam    = "search"
	excludeParam   = "exclude_courses"
	filtersParam   = "filters"
)

// FilterParams binds an attendance.Filter from the query string.
// exclude_courses is a comma separated list and may be repeated.
type FilterParams struct {
	Filter attendance.Filter
}

func (fp *FilterParams) Bind(ctx echo.Context, validate *validator.Validate) error {
	data := ctx.QueryParams()

	fp.Filter = attendance.NewFilter()
	fp.Filter.Course = data.Get(courseParam)
	fp.Filter.Search = data.Get(searchParam)

	if val := strings.TrimSpace(data.Get(thresholdParam)); val != "" {
		threshold, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return core.NewValidationError(err, core.FieldError{Field: thresholdParam, Error: "threshold must be a number"})
		}
		fp.Filter.Threshold = threshold
	}

	for _, val := range data[excludeParam] {
		for _, code := range strings.Split(val, ",") {
			if code = strings.TrimSpace(code); code != "" {
				fp.Filter.ExcludeCourses = append(fp.Filter.ExcludeCourses, code)
			}
		}
	}

	return fp.Filter.Validate(validate)
}
