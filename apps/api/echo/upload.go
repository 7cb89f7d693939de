package echoapi

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
)

const filesField = "files"

var errNoFiles = errors.New("no files selected")

type uploadResponse struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Files   []attendance.FileResult `json:"files"`
}

func (api *attendanceApi) upload(ctx echo.Context) error {
	form, err := ctx.MultipartForm()
	if err != nil {
		return core.NewValidationError(errNoFiles)
	}
	defer func() { _ = form.RemoveAll() }()

	headers := form.File[filesField]
	if len(headers) == 0 {
		return core.NewValidationError(errNoFiles)
	}
	if limit := api.conf.Upload.MaxFiles; limit > 0 && len(headers) > limit {
		return core.NewValidationError(fmt.Errorf("maximum %d files allowed at once", limit))
	}

	results := make([]attendance.FileResult, len(headers))
	uploads := make([]attendance.Upload, 0, len(headers))
	positions := make([]int, 0, len(headers))
	for i, fh := range headers {
		name := filepath.Base(fh.Filename)
		if reason := api.checkFile(name, fh); reason != "" {
			results[i] = attendance.FileResult{Filename: name, Error: reason}
			continue
		}

		f, err := fh.Open()
		if err != nil {
			return errors.Wrapf(err, "opening %q", name)
		}
		defer func(f multipart.File) { _ = f.Close() }(f)

		uploads = append(uploads, attendance.Upload{Filename: name, Content: f})
		positions = append(positions, i)
	}

	for i, fr := range api.svc.Ingest(ctx.Request().Context(), uploads...) {
		results[positions[i]] = fr
	}

	var succeeded int
	for _, fr := range results {
		if fr.Success {
			succeeded++
		}
	}
	failed := len(results) - succeeded

	if succeeded == 0 {
		return ctx.JSON(http.StatusUnprocessableEntity, uploadResponse{
			Message: "No files were processed successfully.",
			Files:   results,
		})
	}

	msg := fmt.Sprintf("Successfully processed %d file(s).", succeeded)
	if failed > 0 {
		msg += fmt.Sprintf(" %d file(s) had errors.", failed)
	}
	return ctx.JSON(http.StatusOK, uploadResponse{Success: true, Message: msg, Files: results})
}

// checkFile returns why the file is rejected before parsing, or "" if it is accepted.
func (api *attendanceApi) checkFile(name string, fh *multipart.FileHeader) string {
	ext := strings.ToLower(filepath.Ext(name))
	allowed := false
	for _, e := range api.conf.Upload.AllowedExtensions {
		if strings.ToLower(e) == ext {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Sprintf("unsupported file format %q", ext)
	}
	if limit := api.conf.Upload.MaxFileSize; limit > 0 && fh.Size > limit {
		return fmt.Sprintf("file is larger than %d bytes", limit)
	}
	return ""
}
