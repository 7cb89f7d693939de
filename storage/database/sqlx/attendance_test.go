package sqlxrepos

import (
	"strings"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/mahudhurio/core/attendance"
)

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\%\_off\\`, escapeLike(`50%_off\`))
	assert.Equal(t, "alice", escapeLike("alice"))
}

func TestRecordsQuery(t *testing.T) {
	tests := []struct {
		name      string
		filter    attendance.Filter
		wantWhere string
		wantArgs  []interface{}
	}{
		{
			name:   "no filter",
			filter: attendance.Filter{Threshold: attendance.NoThreshold},
		},
		{
			name:      "threshold",
			filter:    attendance.NewFilter(),
			wantWhere: "WHERE r.attendance_percentage < $1",
			wantArgs:  []interface{}{75.0},
		},
		{
			name:      "course wins over excludes",
			filter:    attendance.Filter{Course: "CS-101", Threshold: attendance.NoThreshold, ExcludeCourses: []string{"CS-102"}},
			wantWhere: "WHERE c.course_code = $1",
			wantArgs:  []interface{}{"CS-101"},
		},
		{
			name:      "everything",
			filter:    attendance.Filter{Threshold: 65, Search: "Al_i", ExcludeCourses: []string{"CS-102", "MA-201"}},
			wantWhere: "WHERE NOT (c.course_code = ANY($1)) AND r.attendance_percentage < $2 AND (lower(s.name) LIKE $3 OR lower(s.registration_no) LIKE $3)",
			wantArgs:  []interface{}{pq.Array([]string{"CS-102", "MA-201"}), 65.0, `%al\_i%`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			query, args := recordsQuery(tt.filter)
			if tt.wantWhere == "" {
				assert.NotContains(t, query, "WHERE")
			} else {
				assert.Contains(t, query, tt.wantWhere)
			}
			assert.Equal(t, tt.wantArgs, args)
			assert.True(t, strings.HasSuffix(query, `s.registration_no COLLATE "C"`))
		})
	}
}
