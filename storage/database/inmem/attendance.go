package inmemdb

import (
	"context"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type attendanceRepository struct {
	db   *DB
	inTx bool // the write lock is held by Atomic
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) rlock() func() {
	if repo.inTx {
		return func() {}
	}
	repo.db.mutex.RLock()
	return repo.db.mutex.RUnlock
}

func (repo *attendanceRepository) lock() func() {
	if repo.inTx {
		return func() {}
	}
	repo.db.mutex.Lock()
	return repo.db.mutex.Unlock
}

func (repo *attendanceRepository) Atomic(ctx context.Context, fn func(repo attendance.Repository) error) error {
	if repo.inTx {
		return fn(repo)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	snapshot := repo.db.t.copy()
	if err := fn(&attendanceRepository{db: repo.db, inTx: true}); err != nil {
		repo.db.t = snapshot // rollback
		return err
	}
	return nil
}

func (repo *attendanceRepository) UpsertCourse(_ context.Context, code, name string) (attendance.Course, bool, error) {
	defer repo.lock()()

	for _, c := range repo.db.t.courses {
		if c.Code == code {
			return c, false, nil
		}
	}
	c := attendance.Course{
		ID:        repo.db.t.nextID(),
		Code:      code,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	repo.db.t.courses[c.ID] = c
	return c, true, nil
}

func (repo *attendanceRepository) UpsertStudent(_ context.Context, regNo, name, admissionNo string) (attendance.Student, bool, error) {
	defer repo.lock()()

	now := time.Now().UTC()
	for id, s := range repo.db.t.students {
		if s.RegistrationNo != regNo {
			continue
		}
		if name != "" {
			s.Name = name
		}
		if admissionNo != "" {
			s.AdmissionNo = null.StringFrom(admissionNo)
		}
		s.UpdatedAt = now
		repo.db.t.students[id] = s
		return s, false, nil
	}

	s := attendance.Student{
		ID:             repo.db.t.nextID(),
		RegistrationNo: regNo,
		Name:           name,
		AdmissionNo:    null.NewString(admissionNo, admissionNo != ""),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	repo.db.t.students[s.ID] = s
	return s, true, nil
}

func (repo *attendanceRepository) UpsertRecord(_ context.Context, rec attendance.Record) (attendance.Record, bool, error) {
	defer repo.lock()()

	now := time.Now().UTC()
	for id, r := range repo.db.t.records {
		if r.StudentID != rec.StudentID || r.CourseID != rec.CourseID {
			continue
		}
		r.Attended = rec.Attended
		r.Conducted = rec.Conducted
		r.Percentage = rec.Percentage
		r.UpdatedAt = now
		repo.db.t.records[id] = r
		return r, false, nil
	}

	rec.ID = repo.db.t.nextID()
	rec.CreatedAt = now
	rec.UpdatedAt = now
	repo.db.t.records[rec.ID] = rec
	return rec, true, nil
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, filter attendance.Filter) ([]attendance.RecordRow, error) {
	defer repo.rlock()()

	rows := make([]attendance.RecordRow, 0)
	for _, r := range repo.db.t.records {
		s := repo.db.t.students[r.StudentID]
		c := repo.db.t.courses[r.CourseID]
		row := attendance.RecordRow{
			ID:             r.ID,
			RegistrationNo: s.RegistrationNo,
			StudentName:    s.Name,
			CourseCode:     c.Code,
			CourseName:     c.Name,
			Attended:       r.Attended,
			Conducted:      r.Conducted,
			Percentage:     r.Percentage,
		}
		if filter.Match(row) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Less(rows[j]) })
	return rows, nil
}

func (repo *attendanceRepository) QueryCourses(_ context.Context) ([]attendance.Course, error) {
	defer repo.rlock()()

	courses := make([]attendance.Course, 0, len(repo.db.t.courses))
	for _, c := range repo.db.t.courses {
		courses = append(courses, c)
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return courses, nil
}

func (repo *attendanceRepository) GetCourse(_ context.Context, code string) (attendance.Course, error) {
	defer repo.rlock()()

	for _, c := range repo.db.t.courses {
		if c.Code == code {
			return c, nil
		}
	}
	return attendance.Course{}, attendance.ErrCourseNotFound
}

func (repo *attendanceRepository) CountAll(_ context.Context) (attendance.Totals, error) {
	defer repo.rlock()()

	return attendance.Totals{
		Students: len(repo.db.t.students),
		Courses:  len(repo.db.t.courses),
		Records:  len(repo.db.t.records),
	}, nil
}

func (repo *attendanceRepository) DeleteRecord(_ context.Context, id int64) error {
	defer repo.lock()()

	if _, ok := repo.db.t.records[id]; !ok {
		return attendance.ErrRecordNotFound
	}
	delete(repo.db.t.records, id)
	return nil
}

func (repo *attendanceRepository) DeleteRecordsBelow(_ context.Context, minConducted int) (int, error) {
	defer repo.lock()()

	var n int
	for id, r := range repo.db.t.records {
		if r.Conducted < minConducted {
			delete(repo.db.t.records, id)
			n++
		}
	}
	return n, nil
}

func (repo *attendanceRepository) DeleteAll(_ context.Context) error {
	defer repo.lock()()

	pk := repo.db.t.pkCount
	repo.db.t = newTables()
	repo.db.t.pkCount = pk // ids are never reused
	return nil
}
