package attendance

import (
	"io"
	"math"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core"
)

// Threshold bands
const (
	DefaultThreshold  = 75.0
	LowThreshold      = 75.0
	CriticalThreshold = 65.0
	NoThreshold       = 100.0 // a threshold of 100 disables threshold filtering
)

type (
	Student struct {
		ID             int64       `json:"id"`
		RegistrationNo string      `json:"registration_no"`
		Name           string      `json:"name"`
		AdmissionNo    null.String `json:"admission_no"`
		CreatedAt      time.Time   `json:"created_at"`
		UpdatedAt      time.Time   `json:"updated_at"`
	}

	Course struct {
		ID        int64     `json:"-"`
		Code      string    `json:"code"`
		Name      string    `json:"name"`
		CreatedAt time.Time `json:"-"`
	}

	Record struct {
		ID         int64
		StudentID  int64
		CourseID   int64
		Attended   int
		Conducted  int
		Percentage float64
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// RecordRow is an attendance record joined with its student and course.
	RecordRow struct {
		ID             int64   `json:"id" db:"id"`
		RegistrationNo string  `json:"registration_no" db:"registration_no"`
		StudentName    string  `json:"student_name" db:"student_name"`
		CourseCode     string  `json:"course_code" db:"course_code"`
		CourseName     string  `json:"course_name" db:"course_name"`
		Attended       int     `json:"attended_periods" db:"attended_periods"`
		Conducted      int     `json:"conducted_periods" db:"conducted_periods"`
		Percentage     float64 `json:"attendance_percentage" db:"attendance_percentage"`
	}

	// Filter selects attendance rows. The zero value of Threshold filters everything out:
	// use NewFilter for defaults.
	Filter struct {
		Course         string   `json:"course" validate:"omitempty,max=32,coursecode"`
		Threshold      float64  `json:"threshold" validate:"threshold"`
		Search         string   `json:"search" validate:"max=100"`
		ExcludeCourses []string `json:"exclude_courses" validate:"max=200,dive,coursecode"`
	}

	Totals struct {
		Students int `json:"students"`
		Courses  int `json:"courses"`
		Records  int `json:"records"`
	}

	StudentDetails struct {
		Name           string `json:"name"`
		RegistrationNo string `json:"registration_no"`
		CourseInfo     string `json:"course_info"`
	}

	Stats struct {
		TotalStudents        int             `json:"total_students"`
		TotalCourses         int             `json:"total_courses"`
		TotalRecords         int             `json:"total_records"`
		LowAttendanceCount   int             `json:"low_attendance_count"`
		CriticalAttendance   int             `json:"critical_attendance_count"`
		TotalCoursesInSystem int             `json:"total_courses_in_system"`
		IsSingleStudent      bool            `json:"is_single_student"`
		StudentDetails       *StudentDetails `json:"student_details"`
		CourseDetails        *Course         `json:"course_details"`
	}

	// Upload is one spreadsheet submitted for ingestion.
	Upload struct {
		Filename string
		Content  io.Reader
	}

	// FileResult is the outcome of ingesting one file.
	FileResult struct {
		Filename        string `json:"filename"`
		Success         bool   `json:"success"`
		Error           string `json:"error,omitempty"`
		Courses         int    `json:"courses"`
		Students        int    `json:"students"`
		CoursesCreated  int    `json:"courses_created"`
		StudentsCreated int    `json:"students_created"`
		RecordsCreated  int    `json:"records_created"`
		RecordsUpdated  int    `json:"records_updated"`
		RowsSkipped     int    `json:"rows_skipped"`

		Err error `json:"-"`
	}
)

// NewFilter returns a Filter with the default threshold.
func NewFilter() Filter {
	return Filter{Threshold: DefaultThreshold}
}

// Normalized returns a cleaned copy of the filter.
// Excluded courses are dropped when a single course is selected.
func (f Filter) Normalized() Filter {
	nf := Filter{
		Course:    core.CleanCode(f.Course),
		Threshold: f.Threshold,
		Search:    core.CleanString(f.Search),
	}
	if nf.Course != "" {
		return nf
	}

	seen := make(map[string]bool, len(f.ExcludeCourses))
	for _, code := range f.ExcludeCourses {
		code = core.CleanCode(code)
		if code == "" || seen[code] {
			continue
		}
		seen[code] = true
		nf.ExcludeCourses = append(nf.ExcludeCourses, code)
	}
	return nf
}

// HasThreshold reports whether the threshold restricts the rows.
func (f Filter) HasThreshold() bool {
	return f.Threshold < NoThreshold
}

// Match reports whether row is selected by the (normalized) filter.
func (f Filter) Match(row RecordRow) bool {
	if f.Course != "" {
		if row.CourseCode != f.Course {
			return false
		}
	} else {
		for _, code := range f.ExcludeCourses {
			if row.CourseCode == code {
				return false
			}
		}
	}
	if f.HasThreshold() && !(row.Percentage < f.Threshold) {
		return false
	}
	if f.Search != "" {
		s := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(row.StudentName), s) &&
			!strings.Contains(strings.ToLower(row.RegistrationNo), s) {
			return false
		}
	}
	return true
}

// Rounded returns the percentage rounded to one decimal, for display.
func (row RecordRow) Rounded() float64 {
	return math.Round(row.Percentage*10) / 10
}

// Less orders rows by student name, course code, then registration number.
func (row RecordRow) Less(other RecordRow) bool {
	if row.StudentName != other.StudentName {
		return row.StudentName < other.StudentName
	}
	if row.CourseCode != other.CourseCode {
		return row.CourseCode < other.CourseCode
	}
	return row.RegistrationNo < other.RegistrationNo
}
