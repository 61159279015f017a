package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/user"
)

func Test_attendanceApi_mark(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	teacher := env.CreateTeacher(t, "Tina", "tina@shule.test", "EMP-001")
	teacherToken := getToken(t, srv, user.User{ID: teacher.UserID, Email: teacher.Email, Role: user.RoleTeacher})
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", &s.Section.ID, nil)
	stray := env.CreateStudent(t, "Ray", "ray@shule.test", "ADM-003", nil, nil)
	samToken := getToken(t, srv, user.User{ID: sam.UserID, Email: sam.Email, Role: user.RoleStudent})
	day := core.NewDate(2024, 10, 1)

	t.Run("students only", func(t *testing.T) {
		code, res := do(t, srv, http.MethodPost, "/api/attendance", samToken, attendance.MarkAttendance{}, nil)
		assert.Equal(t, http.StatusForbidden, code)
		assert.Equal(t, "permission denied", res.Message)
	})

	t.Run("invalid entries", func(t *testing.T) {
		code, res := do(t, srv, http.MethodPost, "/api/attendance", teacherToken, attendance.MarkAttendance{
			SectionID: s.Section.ID,
			Date:      day,
			Entries: []attendance.Entry{
				{StudentID: sam.ID, Status: attendance.StatusPresent},
				{StudentID: sam.ID, Status: attendance.StatusAbsent},
				{StudentID: stray.ID, Status: attendance.StatusPresent},
				{StudentID: 999, Status: attendance.StatusPresent},
			},
		}, nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, map[string]string{
			"entries[1].student_id": "student is listed more than once",
			"entries[2].student_id": "student does not belong to this section",
			"entries[3].student_id": "student not found",
		}, res.Errors)
	})

	t.Run("invalid status", func(t *testing.T) {
		code, _ := do(t, srv, http.MethodPost, "/api/attendance", teacherToken, attendance.MarkAttendance{
			SectionID: s.Section.ID,
			Date:      day,
			Entries:   []attendance.Entry{{StudentID: sam.ID, Status: "Sleeping"}},
		}, nil)
		assert.Equal(t, http.StatusUnprocessableEntity, code)
	})

	mark := func(t *testing.T, samStatus string) []attendance.Attendance {
		var records []attendance.Attendance
		code, _ := do(t, srv, http.MethodPost, "/api/attendance", teacherToken, attendance.MarkAttendance{
			SectionID: s.Section.ID,
			Date:      day,
			Entries: []attendance.Entry{
				{StudentID: sam.ID, Status: samStatus},
				{StudentID: zoe.ID, Status: attendance.StatusPresent},
			},
		}, &records)
		require.Equal(t, http.StatusCreated, code)
		return records
	}

	records := mark(t, attendance.StatusAbsent)
	require.Len(t, records, 2)
	records = mark(t, attendance.StatusLate)
	require.Len(t, records, 2, "marking again replaces the day's records")

	var samRecords []attendance.Attendance
	code, res := do(t, srv, http.MethodGet, "/api/attendance?startDate=2024-10-01&endDate=2024-10-01", samToken, nil, &samRecords)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, samRecords, 1, "students only see their own records")
	assert.Equal(t, attendance.StatusLate, samRecords[0].Status)
	assert.Equal(t, teacher.UserID, *samRecords[0].MarkedBy)
	assert.Equal(t, 1, res.Pagination.Total)

	t.Run("other students records", func(t *testing.T) {
		var zoeRecord int64
		for _, r := range records {
			if r.StudentID == zoe.ID {
				zoeRecord = r.ID
			}
		}
		code, _ := do(t, srv, http.MethodGet, "/api/attendance/"+itoa(zoeRecord), samToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("invalid period", func(t *testing.T) {
		code, res := do(t, srv, http.MethodGet, "/api/attendance?startDate=2024-10-05&endDate=2024-10-01", teacherToken, nil, nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, map[string]string{"endDate": "end date must not be before start date"}, res.Errors)
	})

	t.Run("empty update", func(t *testing.T) {
		code, res := do(t, srv, http.MethodPut, "/api/attendance/"+itoa(samRecords[0].ID), teacherToken, attendance.UpdateAttendance{}, nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "no fields to update", res.Message)
	})

	t.Run("delete is admin only", func(t *testing.T) {
		code, _ := do(t, srv, http.MethodDelete, "/api/attendance/"+itoa(samRecords[0].ID), teacherToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})
}

func Test_attendanceApi_summary(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	admin := env.CreateAdmin(t, "admin@shule.test")
	adminToken := getToken(t, srv, admin)
	parent := env.CreateParent(t, "Pat", "pat@shule.test")
	parentToken := getToken(t, srv, user.User{ID: parent.UserID, Email: parent.Email, Role: user.RoleParent})
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, &parent.ID)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", &s.Section.ID, nil)

	statuses := []string{attendance.StatusPresent, attendance.StatusLate, attendance.StatusAbsent, attendance.StatusExcused}
	for i, status := range statuses {
		code, _ := do(t, srv, http.MethodPost, "/api/attendance", adminToken, attendance.MarkAttendance{
			SectionID: s.Section.ID,
			Date:      core.NewDate(2024, 10, i+1),
			Entries:   []attendance.Entry{{StudentID: sam.ID, Status: status}},
		}, nil)
		require.Equal(t, http.StatusCreated, code)
	}

	var sum attendance.Summary
	path := "/api/attendance/students/" + itoa(sam.ID) + "/summary?startDate=2024-10-01&endDate=2024-10-31"
	code, _ := do(t, srv, http.MethodGet, path, parentToken, nil, &sum)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, attendance.Summary{
		StudentID:      sam.ID,
		StartDate:      core.NewDate(2024, 10, 1),
		EndDate:        core.NewDate(2024, 10, 31),
		TotalDays:      4,
		Present:        1,
		Absent:         1,
		Late:           1,
		Excused:        1,
		AttendanceRate: 50,
	}, sum)

	code, _ = do(t, srv, http.MethodGet, "/api/attendance/students/"+itoa(zoe.ID)+"/summary", parentToken, nil, nil)
	assert.Equal(t, http.StatusForbidden, code)

	t.Run("parents must name a child", func(t *testing.T) {
		code, _ := do(t, srv, http.MethodGet, "/api/attendance", parentToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, code)

		var records []attendance.Attendance
		code, _ = do(t, srv, http.MethodGet, "/api/attendance?studentId="+itoa(sam.ID), parentToken, nil, &records)
		require.Equal(t, http.StatusOK, code)
		assert.Len(t, records, 4)
	})
}
