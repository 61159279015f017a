package attendance_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_MarkAttendance(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.AttendanceSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	teacher := env.CreateTeacher(t, "Tina", "tina@shule.test", "EMP-001")
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	day := core.NewDate(2024, 10, 1)

	_, err := svc.MarkAttendance(ctx, attendance.MarkAttendance{
		SectionID: 999,
		Date:      day,
		Entries:   []attendance.Entry{{StudentID: sam.ID, Status: attendance.StatusPresent}},
	}, teacher.UserID)
	assert.True(t, core.IsNotFound(err))

	records, err := svc.MarkAttendance(ctx, attendance.MarkAttendance{
		SectionID: s.Section.ID,
		Date:      day,
		Entries:   []attendance.Entry{{StudentID: sam.ID, Status: attendance.StatusAbsent, Remarks: "sick"}},
	}, teacher.UserID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "sick", records[0].Remarks)

	t.Run("update", func(t *testing.T) {
		_, err := svc.Update(ctx, records[0].ID, attendance.UpdateAttendance{}, teacher.UserID)
		assert.Equal(t, attendance.ErrNoFieldsToUpdate, err)

		status := attendance.StatusExcused
		updated, err := svc.Update(ctx, records[0].ID, attendance.UpdateAttendance{Status: &status}, teacher.UserID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusExcused, updated.Status)
		assert.Equal(t, "sick", updated.Remarks)
	})

	t.Run("delete", func(t *testing.T) {
		require.NoError(t, svc.Delete(ctx, records[0].ID))
		_, err := svc.Get(ctx, records[0].ID)
		assert.Equal(t, attendance.ErrNotFound, errors.Cause(err))
	})
}

func TestService_GetStudentSummary(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.AttendanceSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)

	for i, status := range []string{attendance.StatusPresent, attendance.StatusPresent, attendance.StatusAbsent} {
		_, err := svc.MarkAttendance(ctx, attendance.MarkAttendance{
			SectionID: s.Section.ID,
			Date:      core.NewDate(2024, 10, i+1),
			Entries:   []attendance.Entry{{StudentID: sam.ID, Status: status}},
		}, 0)
		require.NoError(t, err)
	}

	t.Run("rate is rounded", func(t *testing.T) {
		sum, err := svc.GetStudentSummary(ctx, sam.ID, core.NewDate(2024, 10, 1), core.NewDate(2024, 10, 3))
		require.NoError(t, err)
		assert.Equal(t, 3, sum.TotalDays)
		assert.Equal(t, 66.67, sum.AttendanceRate)
	})

	t.Run("period bounds are inclusive", func(t *testing.T) {
		sum, err := svc.GetStudentSummary(ctx, sam.ID, core.NewDate(2024, 10, 2), core.NewDate(2024, 10, 2))
		require.NoError(t, err)
		assert.Equal(t, 1, sum.Present)
		assert.Equal(t, 100.0, sum.AttendanceRate)
	})

	t.Run("defaults to the last 30 days", func(t *testing.T) {
		sum, err := svc.GetStudentSummary(ctx, sam.ID, core.Date{}, core.Date{})
		require.NoError(t, err)
		today := core.DateOf(time.Now())
		assert.Equal(t, today, sum.EndDate)
		assert.Equal(t, core.DateOf(today.AddDate(0, 0, -30)), sum.StartDate)
		assert.Zero(t, sum.TotalDays)
		assert.Zero(t, sum.AttendanceRate)
	})

	t.Run("invalid period", func(t *testing.T) {
		_, err := svc.GetStudentSummary(ctx, sam.ID, core.NewDate(2024, 10, 3), core.NewDate(2024, 10, 1))
		assert.Equal(t, attendance.ErrInvalidPeriod, errors.Cause(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		_, err := svc.GetStudentSummary(ctx, 999, core.Date{}, core.Date{})
		assert.True(t, core.IsNotFound(err))
	})
}
