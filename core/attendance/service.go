package attendance

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/sheet"
)

var (
	// errors
	ErrRecordNotFound = errors.New("record not found")
	ErrCourseNotFound = errors.New("course not found")
)

type (
	Repository interface {
		// Atomic runs fn in a single transaction. The Repository given to fn is bound to that transaction:
		// every change made through it is committed if fn returns nil, and rolled back otherwise.
		Atomic(ctx context.Context, fn func(repo Repository) error) error

		// UpsertCourse creates the course if its code is unknown. The name of an existing course is kept.
		UpsertCourse(ctx context.Context, code, name string) (course Course, created bool, err error)
		// UpsertStudent creates the student or updates its name. The admission number is only
		// updated when admissionNo is not empty, and the name only when name is not empty.
		UpsertStudent(ctx context.Context, regNo, name, admissionNo string) (student Student, created bool, err error)
		// UpsertRecord creates the (student, course) record or overwrites its period counts and percentage.
		UpsertRecord(ctx context.Context, rec Record) (record Record, created bool, err error)

		// QueryRecords returns the rows matching the (normalized) filter,
		// ordered by student name, course code, then registration number.
		QueryRecords(ctx context.Context, filter Filter) ([]RecordRow, error)
		QueryCourses(ctx context.Context) ([]Course, error)
		GetCourse(ctx context.Context, code string) (Course, error)
		CountAll(ctx context.Context) (Totals, error)

		DeleteRecord(ctx context.Context, id int64) error
		// DeleteRecordsBelow deletes records with fewer than minConducted conducted periods.
		DeleteRecordsBelow(ctx context.Context, minConducted int) (int, error)
		// DeleteAll deletes all records, students and courses.
		DeleteAll(ctx context.Context) error
	}

	ServiceInterface interface {
		Ingest(ctx context.Context, uploads ...Upload) []FileResult
		IngestResult(ctx context.Context, filename string, res sheet.Result) FileResult
		Query(ctx context.Context, filter Filter) ([]RecordRow, error)
		Stats(ctx context.Context, filter Filter) (Stats, error)
		OverallStats(ctx context.Context) (Stats, error)
		Courses(ctx context.Context) ([]Course, error)
		Totals(ctx context.Context) (Totals, error)
		DeleteRecord(ctx context.Context, id int64) error
		ClearAll(ctx context.Context) error
		Cleanup(ctx context.Context, minConducted int) (int, error)
	}

	Service struct {
		repo   Repository
		logger core.Logger
		conf   *core.Config
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(repo Repository, logger core.Logger, conf *core.Config) *Service {
	return &Service{repo: repo, logger: logger, conf: conf}
}

// Ingest parses and stores each upload in order. Each file is committed in its own transaction,
// so a failing file leaves no partial state and does not stop the others.
func (svc *Service) Ingest(ctx context.Context, uploads ...Upload) []FileResult {
	batch := uuid.NewString()
	svc.logger.Info(fmt.Sprintf("ingesting %d file(s)", len(uploads)), map[string]interface{}{"batch": batch})

	results := make([]FileResult, 0, len(uploads))
	for _, up := range uploads {
		fr := svc.ingestOne(ctx, up)
		if fr.Success {
			svc.logger.Info(fmt.Sprintf("ingested %q", fr.Filename), map[string]interface{}{
				"batch":           batch,
				"records_created": fr.RecordsCreated,
				"records_updated": fr.RecordsUpdated,
				"rows_skipped":    fr.RowsSkipped,
			})
		} else {
			svc.logger.Warn(fmt.Sprintf("could not ingest %q", fr.Filename), fr.Err, map[string]interface{}{"batch": batch})
		}
		results = append(results, fr)
	}
	return results
}

func (svc *Service) ingestOne(ctx context.Context, up Upload) FileResult {
	fail := func(err error) FileResult {
		return FileResult{Filename: up.Filename, Error: err.Error(), Err: err}
	}

	grid, err := sheet.ReadGrid(up.Filename, up.Content)
	if err != nil {
		return fail(err)
	}
	res, err := sheet.Parse(grid, sheet.Options{HeaderScanRows: svc.conf.Ingest.HeaderScanRows})
	if err != nil {
		return fail(err)
	}
	return svc.IngestResult(ctx, up.Filename, res)
}

// IngestResult stores a parsed sheet in a single transaction.
// Rows are applied top to bottom: the last duplicate (student, course) pair wins.
func (svc *Service) IngestResult(ctx context.Context, filename string, res sheet.Result) FileResult {
	minConducted := svc.conf.Ingest.MinConductedPeriods

	var fr FileResult
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		fr = FileResult{Filename: filename, Courses: len(res.Courses), Students: res.Students()}

		courses := make(map[string]Course, len(res.Courses))
		for _, ch := range res.Courses {
			c, created, err := repo.UpsertCourse(ctx, ch.Code, ch.Name)
			if err != nil {
				return errors.Wrapf(err, "upserting course %q", ch.Code)
			}
			if created {
				fr.CoursesCreated++
			}
			courses[c.Code] = c
		}

		students := make(map[string]Student)
		for _, e := range res.Entries {
			if minConducted > 0 && e.Conducted < minConducted {
				fr.RowsSkipped++
				continue
			}

			course, ok := courses[e.CourseCode]
			if !ok {
				return errors.Errorf("row %d: unknown course %q", e.Row+1, e.CourseCode)
			}

			st, seen := students[e.RegistrationNo]
			if !seen || studentChanged(st, e) {
				var created bool
				var err error
				st, created, err = repo.UpsertStudent(ctx, e.RegistrationNo, e.StudentName, e.AdmissionNo)
				if err != nil {
					return errors.Wrapf(err, "upserting student %q", e.RegistrationNo)
				}
				if created {
					fr.StudentsCreated++
				}
				students[e.RegistrationNo] = st
			}

			_, created, err := repo.UpsertRecord(ctx, Record{
				StudentID:  st.ID,
				CourseID:   course.ID,
				Attended:   e.Attended,
				Conducted:  e.Conducted,
				Percentage: core.Percentage(e.Attended, e.Conducted),
			})
			if err != nil {
				return errors.Wrapf(err, "upserting record (%s, %s)", e.RegistrationNo, e.CourseCode)
			}
			if created {
				fr.RecordsCreated++
			} else {
				fr.RecordsUpdated++
			}
		}
		return nil
	})
	if err != nil {
		ingErr := core.NewIngestionError(err)
		return FileResult{Filename: filename, Error: ingErr.Error(), Err: ingErr}
	}

	fr.Success = true
	return fr
}

func studentChanged(st Student, e sheet.Entry) bool {
	if e.StudentName != "" && e.StudentName != st.Name {
		return true
	}
	return e.AdmissionNo != "" && e.AdmissionNo != st.AdmissionNo.String
}

func (svc *Service) Query(ctx context.Context, filter Filter) ([]RecordRow, error) {
	rows, err := svc.repo.QueryRecords(ctx, filter.Normalized())
	if err != nil {
		return nil, errors.Wrap(err, "querying records")
	}
	return rows, nil
}

// Stats computes aggregate counts over the very rows Query returns for the same filter.
func (svc *Service) Stats(ctx context.Context, filter Filter) (Stats, error) {
	filter = filter.Normalized()

	rows, err := svc.Query(ctx, filter)
	if err != nil {
		return Stats{}, err
	}
	stats := ComputeStats(rows)

	totals, err := svc.repo.CountAll(ctx)
	if err != nil {
		return Stats{}, errors.Wrap(err, "counting courses")
	}
	stats.TotalCoursesInSystem = totals.Courses

	if filter.Course != "" {
		course, err := svc.repo.GetCourse(ctx, filter.Course)
		switch {
		case err == nil:
			stats.CourseDetails = &course
		case errors.Cause(err) != ErrCourseNotFound:
			return Stats{}, errors.Wrap(err, "getting course")
		}
	}

	if filter.Search != "" && stats.TotalStudents == 1 {
		stats.IsSingleStudent = true
		info := filter.Course
		if info == "" {
			info = fmt.Sprintf("%d course", stats.TotalCourses)
			if stats.TotalCourses != 1 {
				info += "s"
			}
		}
		stats.StudentDetails = &StudentDetails{
			Name:           rows[0].StudentName,
			RegistrationNo: rows[0].RegistrationNo,
			CourseInfo:     info,
		}
	}
	return stats, nil
}

// OverallStats computes the statistics of all stored records.
func (svc *Service) OverallStats(ctx context.Context) (Stats, error) {
	return svc.Stats(ctx, Filter{Threshold: NoThreshold})
}

// ComputeStats counts distinct students and courses, and low/critical records in rows.
func ComputeStats(rows []RecordRow) Stats {
	students := make(map[string]struct{})
	courses := make(map[string]struct{})
	stats := Stats{TotalRecords: len(rows)}
	for _, row := range rows {
		students[row.RegistrationNo] = struct{}{}
		courses[row.CourseCode] = struct{}{}
		if row.Percentage < LowThreshold {
			stats.LowAttendanceCount++
		}
		if row.Percentage < CriticalThreshold {
			stats.CriticalAttendance++
		}
	}
	stats.TotalStudents = len(students)
	stats.TotalCourses = len(courses)
	return stats
}

func (svc *Service) Courses(ctx context.Context) ([]Course, error) {
	courses, err := svc.repo.QueryCourses(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "querying courses")
	}
	return courses, nil
}

func (svc *Service) Totals(ctx context.Context) (Totals, error) {
	totals, err := svc.repo.CountAll(ctx)
	if err != nil {
		return Totals{}, errors.Wrap(err, "counting rows")
	}
	return totals, nil
}

func (svc *Service) DeleteRecord(ctx context.Context, id int64) error {
	return svc.repo.Atomic(ctx, func(repo Repository) error {
		return repo.DeleteRecord(ctx, id)
	})
}

// ClearAll deletes every record, student and course.
func (svc *Service) ClearAll(ctx context.Context) error {
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		return repo.DeleteAll(ctx)
	})
	if err != nil {
		return errors.Wrap(err, "clearing data")
	}
	svc.logger.Info("all attendance data cleared")
	return nil
}

// Cleanup deletes the records with fewer than minConducted conducted periods and returns how many were deleted.
func (svc *Service) Cleanup(ctx context.Context, minConducted int) (int, error) {
	if minConducted < 0 {
		err := errors.New("must be a positive number")
		return 0, core.NewValidationError(err, core.FieldError{Field: "min", Error: err.Error()})
	}

	var n int
	err := svc.repo.Atomic(ctx, func(repo Repository) error {
		var err error
		n, err = repo.DeleteRecordsBelow(ctx, minConducted)
		return err
	})
	if err != nil {
		return 0, errors.Wrap(err, "deleting records")
	}
	svc.logger.Info(fmt.Sprintf("deleted %d record(s) with less than %d conducted periods", n, minConducted))
	return n, nil
}
