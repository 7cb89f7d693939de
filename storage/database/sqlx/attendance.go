package sqlxrepos

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type (
	attendanceRepository struct {
		db  *sqlx.DB // nil when bound to a transaction
		ext sqlx.ExtContext
	}

	dbCourse struct {
		ID        int64     `db:"id"`
		Code      string    `db:"course_code"`
		Name      string    `db:"course_name"`
		CreatedAt time.Time `db:"created_at"`
		Created   bool      `db:"created"`
	}

	dbStudent struct {
		ID             int64       `db:"id"`
		RegistrationNo string      `db:"registration_no"`
		Name           string      `db:"name"`
		AdmissionNo    null.String `db:"admission_no"`
		CreatedAt      time.Time   `db:"created_at"`
		UpdatedAt      time.Time   `db:"updated_at"`
		Created        bool        `db:"created"`
	}

	dbRecord struct {
		ID         int64     `db:"id"`
		StudentID  int64     `db:"student_id"`
		CourseID   int64     `db:"course_id"`
		Attended   int       `db:"attended_periods"`
		Conducted  int       `db:"conducted_periods"`
		Percentage float64   `db:"attendance_percentage"`
		CreatedAt  time.Time `db:"created_at"`
		UpdatedAt  time.Time `db:"updated_at"`
		Created    bool      `db:"created"`
	}
)

func (c dbCourse) toCourse() attendance.Course {
	return attendance.Course{ID: c.ID, Code: c.Code, Name: c.Name, CreatedAt: c.CreatedAt}
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *sqlx.DB) attendance.Repository {
	return &attendanceRepository{db: db, ext: db}
}

func (repo *attendanceRepository) Atomic(ctx context.Context, fn func(repo attendance.Repository) error) error {
	if repo.db == nil { // already in a transaction
		return fn(repo)
	}

	tx, err := repo.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(&attendanceRepository{ext: tx}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rolling back transaction (%v)", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

// (xmax = 0) is only true for freshly inserted rows.
const (
	upsertCourseQuery = `
		INSERT INTO courses (course_code, course_name)
		VALUES ($1, $2)
		ON CONFLICT (course_code) DO UPDATE SET course_code = EXCLUDED.course_code
		RETURNING id, course_code, course_name, created_at, (xmax = 0) AS created`

	upsertStudentQuery = `
		INSERT INTO students (registration_no, name, admission_no)
		VALUES ($1, $2, $3)
		ON CONFLICT (registration_no) DO UPDATE SET
			name         = COALESCE(NULLIF(EXCLUDED.name, ''), students.name),
			admission_no = COALESCE(EXCLUDED.admission_no, students.admission_no),
			updated_at   = now()
		RETURNING id, registration_no, name, admission_no, created_at, updated_at, (xmax = 0) AS created`

	upsertRecordQuery = `
		INSERT INTO attendance_records (student_id, course_id, attended_periods, conducted_periods, attendance_percentage)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (student_id, course_id) DO UPDATE SET
			attended_periods      = EXCLUDED.attended_periods,
			conducted_periods     = EXCLUDED.conducted_periods,
			attendance_percentage = EXCLUDED.attendance_percentage,
			updated_at            = now()
		RETURNING id, student_id, course_id, attended_periods, conducted_periods, attendance_percentage,
			created_at, updated_at, (xmax = 0) AS created`
)

func (repo *attendanceRepository) UpsertCourse(ctx context.Context, code, name string) (attendance.Course, bool, error) {
	var c dbCourse
	if err := sqlx.GetContext(ctx, repo.ext, &c, upsertCourseQuery, code, name); err != nil {
		return attendance.Course{}, false, errors.Wrap(err, "upserting course")
	}
	return c.toCourse(), c.Created, nil
}

func (repo *attendanceRepository) UpsertStudent(ctx context.Context, regNo, name, admissionNo string) (attendance.Student, bool, error) {
	var s dbStudent
	admNo := null.NewString(admissionNo, admissionNo != "")
	if err := sqlx.GetContext(ctx, repo.ext, &s, upsertStudentQuery, regNo, name, admNo); err != nil {
		return attendance.Student{}, false, errors.Wrap(err, "upserting student")
	}
	return attendance.Student{
		ID:             s.ID,
		RegistrationNo: s.RegistrationNo,
		Name:           s.Name,
		AdmissionNo:    s.AdmissionNo,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}, s.Created, nil
}

func (repo *attendanceRepository) UpsertRecord(ctx context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	var r dbRecord
	err := sqlx.GetContext(
		ctx, repo.ext, &r, upsertRecordQuery,
		rec.StudentID, rec.CourseID, rec.Attended, rec.Conducted, rec.Percentage,
	)
	if err != nil {
		return attendance.Record{}, false, errors.Wrap(err, "upserting attendance record")
	}
	return attendance.Record{
		ID:         r.ID,
		StudentID:  r.StudentID,
		CourseID:   r.CourseID,
		Attended:   r.Attended,
		Conducted:  r.Conducted,
		Percentage: r.Percentage,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}, r.Created, nil
}

// recordsQuery builds the filtered rows query. Rows are ordered with the "C" collation
// so that the order does not depend on the database locale.
func recordsQuery(filter attendance.Filter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Course != "" {
		where = append(where, "c.course_code = "+arg(filter.Course))
	} else if len(filter.ExcludeCourses) > 0 {
		where = append(where, "NOT (c.course_code = ANY("+arg(pq.Array(filter.ExcludeCourses))+"))")
	}
	if filter.HasThreshold() {
		where = append(where, "r.attendance_percentage < "+arg(filter.Threshold))
	}
	if filter.Search != "" {
		p := arg("%" + escapeLike(strings.ToLower(filter.Search)) + "%")
		where = append(where, "(lower(s.name) LIKE "+p+" OR lower(s.registration_no) LIKE "+p+")")
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT r.id, s.registration_no, s.name AS student_name, c.course_code, c.course_name,
			r.attended_periods, r.conducted_periods, r.attendance_percentage
		FROM attendance_records r
			JOIN students s ON s.id = r.student_id
			JOIN courses c ON c.id = r.course_id`)
	if len(where) > 0 {
		sb.WriteString("\n\t\tWHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}
	sb.WriteString(`
		ORDER BY s.name COLLATE "C", c.course_code COLLATE "C", s.registration_no COLLATE "C"`)
	return sb.String(), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, filter attendance.Filter) ([]attendance.RecordRow, error) {
	query, args := recordsQuery(filter)
	rows := []attendance.RecordRow{}
	if err := sqlx.SelectContext(ctx, repo.ext, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting attendance records")
	}
	return rows, nil
}

func (repo *attendanceRepository) QueryCourses(ctx context.Context) ([]attendance.Course, error) {
	var dbCourses []dbCourse
	q := `SELECT id, course_code, course_name, created_at FROM courses ORDER BY course_code COLLATE "C"`
	if err := sqlx.SelectContext(ctx, repo.ext, &dbCourses, q); err != nil {
		return nil, errors.Wrap(err, "selecting courses")
	}
	courses := make([]attendance.Course, 0, len(dbCourses))
	for _, c := range dbCourses {
		courses = append(courses, c.toCourse())
	}
	return courses, nil
}

func (repo *attendanceRepository) GetCourse(ctx context.Context, code string) (attendance.Course, error) {
	var c dbCourse
	q := `SELECT id, course_code, course_name, created_at FROM courses WHERE course_code = $1`
	if err := sqlx.GetContext(ctx, repo.ext, &c, q, code); err != nil {
		if errors.Cause(err) == sql.ErrNoRows {
			return attendance.Course{}, attendance.ErrCourseNotFound
		}
		return attendance.Course{}, errors.Wrap(err, "selecting course")
	}
	return c.toCourse(), nil
}

func (repo *attendanceRepository) CountAll(ctx context.Context) (attendance.Totals, error) {
	var counts struct {
		Students int `db:"students"`
		Courses  int `db:"courses"`
		Records  int `db:"records"`
	}
	q := `
		SELECT (SELECT count(*) FROM students)           AS students,
		       (SELECT count(*) FROM courses)            AS courses,
		       (SELECT count(*) FROM attendance_records) AS records`
	if err := sqlx.GetContext(ctx, repo.ext, &counts, q); err != nil {
		return attendance.Totals{}, errors.Wrap(err, "counting rows")
	}
	return attendance.Totals{Students: counts.Students, Courses: counts.Courses, Records: counts.Records}, nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, id int64) error {
	res, err := repo.ext.ExecContext(ctx, `DELETE FROM attendance_records WHERE id = $1`, id)
	if err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "deleting attendance record")
	}
	if n == 0 {
		return attendance.ErrRecordNotFound
	}
	return nil
}

func (repo *attendanceRepository) DeleteRecordsBelow(ctx context.Context, minConducted int) (int, error) {
	res, err := repo.ext.ExecContext(ctx, `DELETE FROM attendance_records WHERE conducted_periods < $1`, minConducted)
	if err != nil {
		return 0, errors.Wrap(err, "deleting attendance records")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting attendance records")
	}
	return int(n), nil
}

func (repo *attendanceRepository) DeleteAll(ctx context.Context) error {
	for _, table := range []string{"attendance_records", "students", "courses"} {
		if _, err := repo.ext.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return errors.Wrapf(err, "clearing %s", table)
		}
	}
	return nil
}
