package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/attendance"
)

const attendanceTable = "attendance"

var (
	attendanceColumns = []string{
		"a.id", "a.student_id", "a.section_id", "a.attendance_date", "a.status", "a.remarks", "a.marked_by",
		"a.created_at", "a.updated_at", "st.admission_number", "sec.name AS section_name",
		"CONCAT(u.first_name, ' ', u.last_name) AS student_name",
	}
	attendanceOrdering = map[string]string{
		"date":       "a.attendance_date",
		"status":     "a.status",
		"created_at": "a.created_at",
	}
)

type attendanceRepository struct {
	store
}

var _ attendance.Repository = (*attendanceRepository)(nil) // interface compliance check

func NewAttendanceRepository(db *sqlx.DB) *attendanceRepository {
	return &attendanceRepository{store: newStore(db)}
}

func (repo *attendanceRepository) selectAttendance() sq.SelectBuilder {
	return repo.sb.Select(attendanceColumns...).
		From(attendanceTable + " a").
		Join(studentsTable + " st ON st.id = a.student_id").
		Join(usersTable + " u ON u.id = st.user_id").
		Join(sectionsTable + " sec ON sec.id = a.section_id")
}

// upsertSuffix makes the INSERT overwrite the existing record of the student for the day.
func (repo *attendanceRepository) upsertSuffix() string {
	if repo.isPostgres() {
		return "ON CONFLICT (student_id, attendance_date) DO UPDATE SET " +
			"section_id = EXCLUDED.section_id, status = EXCLUDED.status, remarks = EXCLUDED.remarks, " +
			"marked_by = EXCLUDED.marked_by, updated_at = EXCLUDED.updated_at"
	}
	return "ON DUPLICATE KEY UPDATE " +
		"section_id = VALUES(section_id), status = VALUES(status), remarks = VALUES(remarks), " +
		"marked_by = VALUES(marked_by), updated_at = VALUES(updated_at)"
}

func (repo *attendanceRepository) UpsertAttendance(ctx context.Context, records []attendance.Attendance) error {
	if len(records) == 0 {
		return nil
	}
	return repo.withTx(ctx, func(tx *sqlx.Tx) error {
		q := repo.sb.Insert(attendanceTable).
			Columns("student_id", "section_id", "attendance_date", "status", "remarks", "marked_by", "created_at", "updated_at")
		for _, a := range records {
			q = q.Values(a.StudentID, a.SectionID, a.Date, a.Status, a.Remarks, a.MarkedBy, a.CreatedAt, a.UpdatedAt)
		}
		_, err := repo.exec(ctx, tx, q.Suffix(repo.upsertSuffix()))
		return trapConstraint(err, errReferenced, "upserting attendance")
	})
}

func (repo *attendanceRepository) GetAttendanceByID(ctx context.Context, id int64) (attendance.Attendance, error) {
	var a attendance.Attendance
	if err := repo.get(ctx, repo.db, &a, repo.selectAttendance().Where(sq.Eq{"a.id": id})); err != nil {
		return attendance.Attendance{}, trapNoRows(err, attendance.ErrNotFound, "finding attendance record")
	}
	return a, nil
}

func (repo *attendanceRepository) QueryAttendance(ctx context.Context, filter attendance.QueryFilter) ([]attendance.Attendance, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "u.first_name", "u.last_name", "st.admission_number"))
	}
	if filter.StudentID > 0 {
		where = append(where, sq.Eq{"a.student_id": filter.StudentID})
	}
	if filter.SectionID > 0 {
		where = append(where, sq.Eq{"a.section_id": filter.SectionID})
	}
	if !filter.StartDate.IsZero() {
		where = append(where, sq.GtOrEq{"a.attendance_date": filter.StartDate})
	}
	if !filter.EndDate.IsZero() {
		where = append(where, sq.LtOrEq{"a.attendance_date": filter.EndDate})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"a.status": filter.Status})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").
		From(attendanceTable+" a").
		Join(studentsTable+" st ON st.id = a.student_id").
		Join(usersTable+" u ON u.id = st.user_id").
		Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting attendance")
	}

	records := make([]attendance.Attendance, 0)
	ord := filter.Ordering(attendanceOrdering, core.DBOrdering{Field: "a.attendance_date"})
	if err = repo.sel(ctx, repo.db, &records, page(repo.selectAttendance().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying attendance")
	}
	return records, total, nil
}

func (repo *attendanceRepository) UpdateAttendance(ctx context.Context, a attendance.Attendance) (attendance.Attendance, error) {
	err := repo.updateByID(ctx, repo.db, attendanceTable, a.ID, map[string]interface{}{
		"status":     a.Status,
		"remarks":    a.Remarks,
		"marked_by":  a.MarkedBy,
		"updated_at": a.UpdatedAt,
	}, attendance.ErrNotFound, errReferenced)
	if err != nil {
		return attendance.Attendance{}, err
	}
	return repo.GetAttendanceByID(ctx, a.ID)
}

func (repo *attendanceRepository) DeleteAttendance(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, attendanceTable, id, attendance.ErrNotFound)
}

func (repo *attendanceRepository) CountStudentAttendance(ctx context.Context, studentID int64, start, end core.Date) (map[string]int, error) {
	var rows []struct {
		Status string `db:"status"`
		N      int    `db:"n"`
	}
	err := repo.sel(ctx, repo.db, &rows, repo.sb.Select("status", "COUNT(*) AS n").
		From(attendanceTable).
		Where(sq.Eq{"student_id": studentID}).
		Where(sq.GtOrEq{"attendance_date": start}).
		Where(sq.LtOrEq{"attendance_date": end}).
		GroupBy("status"))
	if err != nil {
		return nil, errors.Wrap(err, "counting student attendance")
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.N
	}
	return counts, nil
}
