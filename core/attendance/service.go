package attendance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/people"
)

var (
	ErrNotFound         = core.NewNotFoundError("attendance record")
	ErrNoFieldsToUpdate = core.NewValidationError(errors.New("no fields to update"))
	ErrInvalidPeriod    = core.NewFieldError("endDate", "end date must not be before start date")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// UpsertAttendance inserts or updates every record, keyed by (student, date), in one transaction.
		UpsertAttendance(ctx context.Context, records []Attendance) error
		GetAttendanceByID(ctx context.Context, id int64) (Attendance, error)
		QueryAttendance(ctx context.Context, filter QueryFilter) ([]Attendance, int, error)
		UpdateAttendance(ctx context.Context, a Attendance) (Attendance, error)
		DeleteAttendance(ctx context.Context, id int64) error
		// CountStudentAttendance counts the student's records per status between `start` and `end` (inclusive).
		CountStudentAttendance(ctx context.Context, studentID int64, start, end core.Date) (map[string]int, error)
	}

	Service struct {
		repo        Repository
		academicSvc *academic.Service
		peopleSvc   *people.Service
	}
)

func NewService(repo Repository, academicSvc *academic.Service, peopleSvc *people.Service) *Service {
	return &Service{repo: repo, academicSvc: academicSvc, peopleSvc: peopleSvc}
}

// MarkAttendance records the attendance of the section's students for the day, replacing any previous marking.
// `ma` must have been validated.
func (svc *Service) MarkAttendance(ctx context.Context, ma MarkAttendance, actorID int64) ([]Attendance, error) {
	if _, err := svc.academicSvc.GetSection(ctx, ma.SectionID); err != nil {
		return nil, err
	}

	now := nowFunc().UTC()
	seen := make(map[int64]struct{}, len(ma.Entries))
	records := make([]Attendance, 0, len(ma.Entries))
	var fldErrs []core.FieldError

	for i, entry := range ma.Entries {
		field := fmt.Sprintf("entries[%d].student_id", i)
		if _, dup := seen[entry.StudentID]; dup {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "student is listed more than once"})
			continue
		}
		seen[entry.StudentID] = struct{}{}

		st, err := svc.peopleSvc.GetStudent(ctx, entry.StudentID)
		if err != nil {
			if errors.Cause(err) == people.ErrStudentNotFound {
				fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "student not found"})
				continue
			}
			return nil, errors.Wrap(err, "finding student")
		}
		if st.SectionID == nil || *st.SectionID != ma.SectionID {
			fldErrs = append(fldErrs, core.FieldError{Field: field, Error: "student does not belong to this section"})
			continue
		}

		actor := actorID
		records = append(records, Attendance{
			StudentID: entry.StudentID,
			SectionID: ma.SectionID,
			Date:      ma.Date,
			Status:    entry.Status,
			Remarks:   entry.Remarks,
			MarkedBy:  &actor,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	if len(fldErrs) > 0 {
		return nil, core.NewValidationError(errors.New("invalid attendance entries"), fldErrs...)
	}

	if err := svc.repo.UpsertAttendance(ctx, records); err != nil {
		return nil, errors.Wrap(err, "saving attendance")
	}

	filter := QueryFilter{SectionID: ma.SectionID, StartDate: ma.Date, EndDate: ma.Date}
	filter.Clean()
	marked, err := core.QueryAll(filter.PageQuery, func(pq core.PageQuery) ([]Attendance, int, error) {
		filter.PageQuery = pq
		return svc.repo.QueryAttendance(ctx, filter)
	})
	return marked, errors.Wrap(err, "querying attendance")
}

func (svc *Service) Get(ctx context.Context, id int64) (Attendance, error) {
	return svc.repo.GetAttendanceByID(ctx, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Attendance, core.Pagination, error) {
	filter.Clean()
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.EndDate.Before(filter.StartDate) {
		return nil, core.Pagination{}, ErrInvalidPeriod
	}
	records, total, err := svc.repo.QueryAttendance(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying attendance")
	}
	return records, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) Update(ctx context.Context, id int64, ua UpdateAttendance, actorID int64) (Attendance, error) {
	if ua.IsEmpty() {
		return Attendance{}, ErrNoFieldsToUpdate
	}
	a, err := svc.repo.GetAttendanceByID(ctx, id)
	if err != nil {
		return Attendance{}, err
	}
	if ua.Status != nil {
		a.Status = *ua.Status
	}
	if ua.Remarks != nil {
		a.Remarks = *ua.Remarks
	}
	a.MarkedBy = &actorID
	a.UpdatedAt = nowFunc().UTC()

	a, err = svc.repo.UpdateAttendance(ctx, a)
	return a, errors.Wrap(err, "updating attendance")
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteAttendance(ctx, id)
}

// GetStudentSummary counts the student's attendance per status between `start` and `end`.
// A zero `end` means today; a zero `start` means 30 days before `end`.
func (svc *Service) GetStudentSummary(ctx context.Context, studentID int64, start, end core.Date) (Summary, error) {
	if _, err := svc.peopleSvc.GetStudent(ctx, studentID); err != nil {
		return Summary{}, err
	}
	if end.IsZero() {
		end = core.DateOf(nowFunc())
	}
	if start.IsZero() {
		start = core.DateOf(end.AddDate(0, 0, -30))
	}
	if end.Before(start) {
		return Summary{}, ErrInvalidPeriod
	}

	counts, err := svc.repo.CountStudentAttendance(ctx, studentID, start, end)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting attendance")
	}

	sum := Summary{
		StudentID: studentID,
		StartDate: start,
		EndDate:   end,
		Present:   counts[StatusPresent],
		Absent:    counts[StatusAbsent],
		Late:      counts[StatusLate],
		Excused:   counts[StatusExcused],
	}
	sum.TotalDays = sum.Present + sum.Absent + sum.Late + sum.Excused
	if sum.TotalDays > 0 {
		rate := float64(sum.Present+sum.Late) / float64(sum.TotalDays) * 100
		sum.AttendanceRate = math.Round(rate*100) / 100
	}
	return sum, nil
}
