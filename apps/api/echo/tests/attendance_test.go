package tests

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/attendance"
	"github.com/trezcool/mahudhurio/core/report"
	"github.com/trezcool/mahudhurio/tests"
)

// recordsJSON is the expected /api/attendance payload for rows.
func recordsJSON(t *testing.T, rows []attendance.RecordRow) []byte {
	data := make([]map[string]interface{}, 0, len(rows))
	for i, row := range rows {
		data = append(data, map[string]interface{}{
			"s_no":                  i + 1,
			"id":                    row.ID,
			"registration_no":       row.RegistrationNo,
			"student_name":          row.StudentName,
			"course_code":           row.CourseCode,
			"course_name":           row.CourseName,
			"attended_periods":      row.Attended,
			"conducted_periods":     row.Conducted,
			"attendance_percentage": math.Round(row.Percentage*10) / 10,
		})
	}
	return marchallObj(t, data)
}

func TestHome(t *testing.T) {
	app, _ := setup(t)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Mahudhurio API!", rec.Body.String())

	req, rec = newRequest(http.MethodGet, "/health")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte(`{"status":"ok"}`)}, rec)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestHealth(t *testing.T) {
	tests := []httpTest{
		{name: "db up", wantCode: http.StatusOK, wantData: []byte(`{"status":"ok"}`)},
		{name: "db down", wantCode: http.StatusServiceUnavailable, wantData: []byte(`{"error":"database unavailable"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var db pinger
			if tt.wantCode != http.StatusOK {
				db.err = errors.New("connection refused")
			}
			app, _ := setupWithDB(t, db)

			req, rec := newRequest(http.MethodGet, "/health")
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_query(t *testing.T) {
	app, svc := setup(t)
	seed(t, svc)

	rowsFor := func(filter attendance.Filter) []byte {
		rows, err := svc.Query(ctxBg, filter)
		require.NoError(t, err)
		return recordsJSON(t, rows)
	}

	tests := []httpTest{
		{
			name:     "default threshold",
			path:     "/api/attendance",
			wantCode: http.StatusOK,
			wantData: rowsFor(attendance.NewFilter()),
		},
		{
			name:     "no threshold",
			path:     "/api/attendance?threshold=100",
			wantCode: http.StatusOK,
			wantData: rowsFor(attendance.Filter{Threshold: 100}),
		},
		{
			name:     "course",
			path:     "/api/attendance?course=cs-102&threshold=65",
			wantCode: http.StatusOK,
			wantData: rowsFor(attendance.Filter{Course: "CS-102", Threshold: 65}),
		},
		{
			name:     "excludes",
			path:     "/api/attendance?threshold=100&exclude_courses=CS-102,,%20",
			wantCode: http.StatusOK,
			wantData: rowsFor(attendance.Filter{Threshold: 100, ExcludeCourses: []string{"CS-102"}}),
		},
		{
			name:     "search",
			path:     "/api/attendance?threshold=100&search=ALI",
			wantCode: http.StatusOK,
			wantData: rowsFor(attendance.Filter{Threshold: 100, Search: "ali"}),
		},
		{
			name:     "nothing matches",
			path:     "/api/attendance?threshold=0",
			wantCode: http.StatusOK,
			wantData: []byte("[]"),
		},
		{
			name:     "threshold not a number",
			path:     "/api/attendance?threshold=lol",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"threshold":"threshold must be a number"}`),
		},
		{
			name:     "threshold out of range",
			path:     "/api/attendance?threshold=150",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"threshold":"threshold must be a percentage between 0 and 100"}`),
		},
		{
			name:     "invalid course",
			path:     "/api/attendance?course=no%20such%20course",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"course":"course must be a valid course code"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	// the Alice/Bob scenario: Alice has exactly 75% in CS-101
	req, rec := newRequest(http.MethodGet, "/api/attendance?course=CS-101&threshold=75")
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var got []struct {
		SNo   int    `json:"s_no"`
		RegNo string `json:"registration_no"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].SNo)
	assert.Equal(t, "REG002", got[0].RegNo)
}

func Test_attendanceApi_stats(t *testing.T) {
	app, svc := setup(t)
	seed(t, svc)

	tests := []httpTest{
		{
			name:     "overall",
			path:     "/api/stats",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.Stats{
				TotalStudents:        3,
				TotalCourses:         2,
				TotalRecords:         5,
				LowAttendanceCount:   3,
				CriticalAttendance:   2,
				TotalCoursesInSystem: 2,
			}),
		},
		{
			name:     "filtered",
			path:     "/api/filtered_stats",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.Stats{
				TotalStudents:        2,
				TotalCourses:         2,
				TotalRecords:         3,
				LowAttendanceCount:   3,
				CriticalAttendance:   2,
				TotalCoursesInSystem: 2,
			}),
		},
		{
			name:     "single student",
			path:     "/api/filtered_stats?threshold=100&course=CS-101&search=carol",
			wantCode: http.StatusOK,
			wantData: marchallObj(t, attendance.Stats{
				TotalStudents:        1,
				TotalCourses:         1,
				TotalRecords:         1,
				TotalCoursesInSystem: 2,
				IsSingleStudent:      true,
				StudentDetails:       &attendance.StudentDetails{Name: "Carol", RegistrationNo: "REG003", CourseInfo: "CS-101"},
				CourseDetails:        &attendance.Course{Code: "CS-101", Name: "Data Structures"},
			}),
		},
		{
			name:     "invalid filter",
			path:     "/api/filtered_stats?threshold=-1",
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"threshold":"threshold must be a percentage between 0 and 100"}`),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodGet, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_attendanceApi_courses(t *testing.T) {
	app, svc := setup(t)

	req, rec := newRequest(http.MethodGet, "/api/courses")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: []byte("[]")}, rec)

	seed(t, svc)
	req, rec = newRequest(http.MethodGet, "/api/courses")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusOK,
		wantData: []byte(`[{"code":"CS-101","name":"Data Structures"},{"code":"CS-102","name":"Algorithms"}]`),
	}, rec)
}

type uploadResult struct {
	Success bool                    `json:"success"`
	Message string                  `json:"message"`
	Files   []attendance.FileResult `json:"files"`
}

func Test_attendanceApi_upload(t *testing.T) {
	sheet := testutil.Sheet(courses, students)

	t.Run("partial success", func(t *testing.T) {
		app, svc := setup(t)

		req, rec := newUploadRequest(t,
			uploadFile{"week1.xlsx", testutil.XLSX(t, sheet)},
			uploadFile{"notes.txt", []byte("hello")},
			uploadFile{"broken.csv", []byte("a,b\n1,2\n")},
		)
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res uploadResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.True(t, res.Success)
		assert.Equal(t, "Successfully processed 1 file(s). 2 file(s) had errors.", res.Message)
		require.Len(t, res.Files, 3)

		assert.Equal(t, "week1.xlsx", res.Files[0].Filename)
		assert.True(t, res.Files[0].Success)
		assert.Equal(t, 5, res.Files[0].RecordsCreated)

		assert.Equal(t, "notes.txt", res.Files[1].Filename)
		assert.False(t, res.Files[1].Success)
		assert.Equal(t, `unsupported file format ".txt"`, res.Files[1].Error)

		assert.Equal(t, "broken.csv", res.Files[2].Filename)
		assert.False(t, res.Files[2].Success)
		assert.NotEmpty(t, res.Files[2].Error)

		totals, err := svc.Totals(ctxBg)
		require.NoError(t, err)
		assert.Equal(t, attendance.Totals{Students: 3, Courses: 2, Records: 5}, totals)
	})

	t.Run("nothing processed", func(t *testing.T) {
		app, _ := setup(t)

		req, rec := newUploadRequest(t, uploadFile{"broken.xlsx", []byte("garbage")})
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var res uploadResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.False(t, res.Success)
		assert.Equal(t, "No files were processed successfully.", res.Message)
		require.Len(t, res.Files, 1)
		assert.NotEmpty(t, res.Files[0].Error)
	})

	t.Run("file too large", func(t *testing.T) {
		conf := core.NewTestConfig()
		conf.Upload.MaxFileSize = 16
		app, _ := setup(t, conf)

		req, rec := newUploadRequest(t, uploadFile{"week1.csv", testutil.CSV(t, sheet)})
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

		var res uploadResult
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		require.Len(t, res.Files, 1)
		assert.Equal(t, "file is larger than 16 bytes", res.Files[0].Error)
	})

	t.Run("no files", func(t *testing.T) {
		app, _ := setup(t)

		req, rec := newUploadRequest(t)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "no files selected"}),
		}, rec)

		req, rec = newRequest(http.MethodPost, "/upload", []byte(`{}`))
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("too many files", func(t *testing.T) {
		conf := core.NewTestConfig()
		conf.Upload.MaxFiles = 2
		app, _ := setup(t, conf)

		csv := testutil.CSV(t, sheet)
		req, rec := newUploadRequest(t,
			uploadFile{"a.csv", csv}, uploadFile{"b.csv", csv}, uploadFile{"c.csv", csv},
		)
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "maximum 2 files allowed at once"}),
		}, rec)
	})
}

func Test_attendanceApi_deleteRecord(t *testing.T) {
	app, svc := setup(t)
	seed(t, svc)

	rows, err := svc.Query(ctxBg, attendance.Filter{Threshold: 100})
	require.NoError(t, err)
	id := rows[0].ID

	tests := []httpTest{
		{
			name:     "invalid id",
			path:     "/delete_record/lol",
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Error: "invalid record id"}),
		},
		{
			name:     "success",
			path:     fmt.Sprintf("/delete_record/%d", id),
			wantCode: http.StatusOK,
			wantData: []byte(`{"success":true,"message":"Record deleted successfully"}`),
		},
		{
			name:     "already deleted",
			path:     fmt.Sprintf("/delete_record/%d", id),
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "record not found"}),
		},
		{
			name:     "unknown id",
			path:     "/delete_record/99999",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Error: "record not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodDelete, tt.path)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	totals, err := svc.Totals(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, 4, totals.Records)
}

func Test_attendanceApi_clearAll(t *testing.T) {
	app, svc := setup(t)

	want := []byte(`{"success":true,"message":"All data cleared successfully"}`)

	// empty store
	req, rec := newRequest(http.MethodPost, "/clear_all_data")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: want}, rec)

	seed(t, svc)
	req, rec = newRequest(http.MethodPost, "/clear_all_data")
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: want}, rec)

	totals, err := svc.Totals(ctxBg)
	require.NoError(t, err)
	assert.Equal(t, attendance.Totals{}, totals)
}

func Test_attendanceApi_export(t *testing.T) {
	app, svc := setup(t)
	seed(t, svc)

	t.Run("excel", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/export/excel?threshold=100&exclude_courses=CS-102")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, report.MIMEXLSX, rec.Header().Get("Content-Type"))
		disposition := rec.Header().Get("Content-Disposition")
		assert.True(t, strings.HasPrefix(disposition, `attachment; filename="attendance_report_`), disposition)
		assert.True(t, strings.HasSuffix(disposition, `.xlsx"`), disposition)

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		rows, err := f.GetRows(report.SheetName)
		require.NoError(t, err)
		assert.Equal(t, "Excluded courses: CS-102", rows[1][0])
		assert.Equal(t, report.Columns, rows[3])

		data := rows[4:]
		require.Len(t, data, 3)
		for i, regNo := range []string{"REG001", "REG002", "REG003"} {
			assert.Equal(t, regNo, data[i][1])
			assert.Equal(t, "CS-101", data[i][3])
		}
	})

	t.Run("pdf", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/export/pdf?filters=Low%20attendance")
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		assert.Equal(t, report.MIMEPDF, rec.Header().Get("Content-Type"))
		assert.True(t, strings.HasSuffix(rec.Header().Get("Content-Disposition"), `.pdf"`))
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("empty", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/export/pdf?threshold=0")
		app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, bytes.HasPrefix(rec.Body.Bytes(), []byte("%PDF-")))
	})

	t.Run("invalid filter", func(t *testing.T) {
		req, rec := newRequest(http.MethodGet, "/export/excel?threshold=lol")
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"threshold":"threshold must be a number"}`),
		}, rec)
	})
}
