// Package inmemdb is an in-memory store, used by tests and local runs without PostgreSQL.
package inmemdb

import (
	"sync"

	"github.com/trezcool/mahudhurio/core/attendance"
)

type (
	DB struct {
		mutex sync.RWMutex
		t     tables
	}

	tables struct {
		students map[int64]attendance.Student
		courses  map[int64]attendance.Course
		records  map[int64]attendance.Record
		pkCount  int64
	}
)

func Open() (*DB, error) {
	return &DB{t: newTables()}, nil
}

func newTables() tables {
	return tables{
		students: make(map[int64]attendance.Student),
		courses:  make(map[int64]attendance.Course),
		records:  make(map[int64]attendance.Record),
	}
}

func (t tables) copy() tables {
	cp := tables{
		students: make(map[int64]attendance.Student, len(t.students)),
		courses:  make(map[int64]attendance.Course, len(t.courses)),
		records:  make(map[int64]attendance.Record, len(t.records)),
		pkCount:  t.pkCount,
	}
	for id, s := range t.students {
		cp.students[id] = s
	}
	for id, c := range t.courses {
		cp.courses[id] = c
	}
	for id, r := range t.records {
		cp.records[id] = r
	}
	return cp
}

func (t *tables) nextID() int64 {
	t.pkCount++
	return t.pkCount
}
