package inmemdb

import (
	"context"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

var attendanceOrderings = orderings[attendance.Attendance]{
	"date":       func(a, b attendance.Attendance) int { return compareDates(a.Date, b.Date) },
	"status":     func(a, b attendance.Attendance) int { return compareStrings(a.Status, b.Status) },
	"created_at": func(a, b attendance.Attendance) int { return a.CreatedAt.Compare(b.CreatedAt) },
}

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *DB) *attendanceRepository {
	return &attendanceRepository{db: db}
}

func (db *DB) attendanceRecord(a attendance.Attendance) attendance.Attendance {
	if st, ok := db.students[a.StudentID]; ok {
		a.StudentName = db.person(st.UserID).FullName()
		a.AdmissionNumber = st.AdmissionNumber
	}
	if sec, ok := db.sections[a.SectionID]; ok {
		a.SectionName = sec.Name
	}
	return a
}

func (repo *attendanceRepository) UpsertAttendance(_ context.Context, records []attendance.Attendance) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, a := range records {
		_, studentOK := repo.db.students[a.StudentID]
		_, sectionOK := repo.db.sections[a.SectionID]
		if !studentOK || !sectionOK {
			return errReferenced
		}
	}

	for _, a := range records {
		var existing *attendance.Attendance
		for _, o := range repo.db.attendance {
			if o.StudentID == a.StudentID && o.Date.Equal(a.Date) {
				existing = o
				break
			}
		}
		if existing != nil {
			existing.SectionID, existing.Status, existing.Remarks = a.SectionID, a.Status, a.Remarks
			existing.MarkedBy, existing.UpdatedAt = a.MarkedBy, a.UpdatedAt
			continue
		}
		a := a
		a.ID = repo.db.nextID()
		repo.db.attendance[a.ID] = &a
	}
	return nil
}

func (repo *attendanceRepository) GetAttendanceByID(_ context.Context, id int64) (attendance.Attendance, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if a, ok := repo.db.attendance[id]; ok {
		return repo.db.attendanceRecord(*a), nil
	}
	return attendance.Attendance{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryAttendance(_ context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	records := rows(repo.db.attendance)
	for i := range records {
		records[i] = repo.db.attendanceRecord(records[i])
	}
	records = where(records, func(a attendance.Attendance) bool {
		return (filter.Search == "" || matches(filter.Search, a.StudentName, a.AdmissionNumber)) &&
			(filter.StudentID == 0 || a.StudentID == filter.StudentID) &&
			(filter.SectionID == 0 || a.SectionID == filter.SectionID) &&
			(filter.Status == "" || a.Status == filter.Status) &&
			inPeriod(a.Date, filter.StartDate, filter.EndDate)
	})
	records, total := paginate(records, filter.PageQuery, attendanceOrderings, "date", false)
	return records, total, nil
}

func (repo *attendanceRepository) UpdateAttendance(_ context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.attendance[a.ID]
	if !ok {
		return attendance.Attendance{}, attendance.ErrNotFound
	}
	orig.Status, orig.Remarks, orig.MarkedBy, orig.UpdatedAt = a.Status, a.Remarks, a.MarkedBy, a.UpdatedAt
	return repo.db.attendanceRecord(*orig), nil
}

func (repo *attendanceRepository) DeleteAttendance(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.attendance[id]; !ok {
		return attendance.ErrNotFound
	}
	delete(repo.db.attendance, id)
	return nil
}

func (repo *attendanceRepository) CountStudentAttendance(_ context.Context, studentID int64, start, end core.Date) (map[string]int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	counts := make(map[string]int)
	for _, a := range repo.db.attendance {
		if a.StudentID == studentID && inPeriod(a.Date, start, end) {
			counts[a.Status]++
		}
	}
	return counts, nil
}
