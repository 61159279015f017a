package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
)

const (
	examTypesTable    = "exam_types"
	examinationsTable = "examinations"
	resultsTable      = "exam_results"
)

var (
	examTypeColumns    = []string{"id", "name", "description", "weight", "created_at", "updated_at"}
	examinationColumns = []string{
		"e.id", "e.title", "e.exam_type_id", "e.subject_id", "e.grade_id", "e.section_id", "e.academic_year_id",
		"e.term_id", "e.exam_date", "e.duration_minutes", "e.total_marks", "e.passing_marks", "e.description",
		"e.created_by", "e.created_at", "e.updated_at", "et.name AS exam_type_name", "sub.name AS subject_name",
		"g.name AS grade_name", "sec.name AS section_name",
	}
	resultColumns = []string{
		"r.id", "r.examination_id", "r.student_id", "r.marks_obtained", "r.grade", "r.remarks", "r.entered_by",
		"r.created_at", "r.updated_at", "CONCAT(u.first_name, ' ', u.last_name) AS student_name",
		"st.admission_number", "e.title AS exam_title", "e.exam_date", "sub.name AS subject_name",
		"et.name AS exam_type_name", "e.total_marks", "e.passing_marks",
	}

	examTypeOrdering = map[string]string{
		"name":       "name",
		"weight":     "weight",
		"created_at": "created_at",
	}
	examinationOrdering = map[string]string{
		"title":       "e.title",
		"exam_date":   "e.exam_date",
		"total_marks": "e.total_marks",
		"created_at":  "e.created_at",
	}
)

type examRepository struct {
	store
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *sqlx.DB) *examRepository {
	return &examRepository{store: newStore(db)}
}

// Exam Types

func (repo *examRepository) ExamTypeNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, examTypesTable, sq.Eq{"name": name}, excludeID)
}

func (repo *examRepository) CreateExamType(ctx context.Context, et exam.ExamType) (exam.ExamType, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(examTypesTable).
		Columns("name", "description", "weight", "created_at", "updated_at").
		Values(et.Name, et.Description, et.Weight, et.CreatedAt, et.UpdatedAt))
	if err != nil {
		return exam.ExamType{}, trapConstraint(err, exam.ErrExamTypeNameExists, "inserting exam type")
	}
	return repo.GetExamTypeByID(ctx, id)
}

func (repo *examRepository) GetExamTypeByID(ctx context.Context, id int64) (exam.ExamType, error) {
	var et exam.ExamType
	err := repo.get(ctx, repo.db, &et, repo.sb.Select(examTypeColumns...).From(examTypesTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return exam.ExamType{}, trapNoRows(err, exam.ErrExamTypeNotFound, "finding exam type")
	}
	return et, nil
}

func (repo *examRepository) QueryExamTypes(ctx context.Context, filter exam.ExamTypeFilter) ([]exam.ExamType, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "name", "description"))
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(examTypesTable).Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting exam types")
	}

	types := make([]exam.ExamType, 0)
	ord := filter.Ordering(examTypeOrdering, core.DBOrdering{Field: "name", Ascending: true})
	q := page(repo.sb.Select(examTypeColumns...).From(examTypesTable).Where(where), filter.PageQuery, ord)
	if err = repo.sel(ctx, repo.db, &types, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying exam types")
	}
	return types, total, nil
}

func (repo *examRepository) UpdateExamType(ctx context.Context, et exam.ExamType) (exam.ExamType, error) {
	err := repo.updateByID(ctx, repo.db, examTypesTable, et.ID, map[string]interface{}{
		"name":        et.Name,
		"description": et.Description,
		"weight":      et.Weight,
		"updated_at":  et.UpdatedAt,
	}, exam.ErrExamTypeNotFound, exam.ErrExamTypeNameExists)
	if err != nil {
		return exam.ExamType{}, err
	}
	return repo.GetExamTypeByID(ctx, et.ID)
}

func (repo *examRepository) DeleteExamType(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, examTypesTable, id, exam.ErrExamTypeNotFound)
}

func (repo *examRepository) CountExamTypeExaminations(ctx context.Context, examTypeID int64) (int, error) {
	return repo.countWhere(ctx, examinationsTable, sq.Eq{"exam_type_id": examTypeID})
}

// Examinations

func (repo *examRepository) selectExaminations() sq.SelectBuilder {
	return repo.sb.Select(examinationColumns...).
		From(examinationsTable + " e").
		Join(examTypesTable + " et ON et.id = e.exam_type_id").
		Join(subjectsTable + " sub ON sub.id = e.subject_id").
		Join(gradesTable + " g ON g.id = e.grade_id").
		Join(sectionsTable + " sec ON sec.id = e.section_id")
}

func (repo *examRepository) CreateExamination(ctx context.Context, e exam.Examination) (exam.Examination, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(examinationsTable).
		Columns("title", "exam_type_id", "subject_id", "grade_id", "section_id", "academic_year_id", "term_id",
			"exam_date", "duration_minutes", "total_marks", "passing_marks", "description", "created_by",
			"created_at", "updated_at").
		Values(e.Title, e.ExamTypeID, e.SubjectID, e.GradeID, e.SectionID, e.AcademicYearID, e.TermID,
			e.ExamDate, e.DurationMinutes, e.TotalMarks, e.PassingMarks, e.Description, e.CreatedBy,
			e.CreatedAt, e.UpdatedAt))
	if err != nil {
		return exam.Examination{}, trapConstraint(err, errReferenced, "inserting examination")
	}
	return repo.GetExaminationByID(ctx, id)
}

func (repo *examRepository) GetExaminationByID(ctx context.Context, id int64) (exam.Examination, error) {
	var e exam.Examination
	if err := repo.get(ctx, repo.db, &e, repo.selectExaminations().Where(sq.Eq{"e.id": id})); err != nil {
		return exam.Examination{}, trapNoRows(err, exam.ErrExaminationNotFound, "finding examination")
	}
	return e, nil
}

func (repo *examRepository) QueryExaminations(ctx context.Context, filter exam.ExaminationFilter) ([]exam.Examination, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "e.title", "e.description"))
	}
	for col, id := range map[string]int64{
		"e.exam_type_id":     filter.ExamTypeID,
		"e.subject_id":       filter.SubjectID,
		"e.grade_id":         filter.GradeID,
		"e.section_id":       filter.SectionID,
		"e.academic_year_id": filter.AcademicYearID,
		"e.term_id":          filter.TermID,
	} {
		if id > 0 {
			where = append(where, sq.Eq{col: id})
		}
	}
	if !filter.StartDate.IsZero() {
		where = append(where, sq.GtOrEq{"e.exam_date": filter.StartDate})
	}
	if !filter.EndDate.IsZero() {
		where = append(where, sq.LtOrEq{"e.exam_date": filter.EndDate})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(examinationsTable+" e").Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting examinations")
	}

	exams := make([]exam.Examination, 0)
	ord := filter.Ordering(examinationOrdering, core.DBOrdering{Field: "e.exam_date"})
	if err = repo.sel(ctx, repo.db, &exams, page(repo.selectExaminations().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying examinations")
	}
	return exams, total, nil
}

func (repo *examRepository) UpdateExamination(ctx context.Context, e exam.Examination) (exam.Examination, error) {
	err := repo.updateByID(ctx, repo.db, examinationsTable, e.ID, map[string]interface{}{
		"title":            e.Title,
		"exam_type_id":     e.ExamTypeID,
		"subject_id":       e.SubjectID,
		"grade_id":         e.GradeID,
		"section_id":       e.SectionID,
		"academic_year_id": e.AcademicYearID,
		"term_id":          e.TermID,
		"exam_date":        e.ExamDate,
		"duration_minutes": e.DurationMinutes,
		"total_marks":      e.TotalMarks,
		"passing_marks":    e.PassingMarks,
		"description":      e.Description,
		"updated_at":       e.UpdatedAt,
	}, exam.ErrExaminationNotFound, errReferenced)
	if err != nil {
		return exam.Examination{}, err
	}
	return repo.GetExaminationByID(ctx, e.ID)
}

func (repo *examRepository) DeleteExamination(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, examinationsTable, id, exam.ErrExaminationNotFound)
}

func (repo *examRepository) CountExaminationResults(ctx context.Context, examinationID int64) (int, error) {
	return repo.countWhere(ctx, resultsTable, sq.Eq{"examination_id": examinationID})
}

func (repo *examRepository) MaxExaminationMarks(ctx context.Context, examinationID int64) (float64, error) {
	var max float64
	err := repo.get(ctx, repo.db, &max, repo.sb.Select("COALESCE(MAX(marks_obtained), 0)").
		From(resultsTable).
		Where(sq.Eq{"examination_id": examinationID}))
	return max, errors.Wrap(err, "finding highest marks")
}

// Results

func (repo *examRepository) selectResults() sq.SelectBuilder {
	return repo.sb.Select(resultColumns...).
		From(resultsTable + " r").
		Join(examinationsTable + " e ON e.id = r.examination_id").
		Join(examTypesTable + " et ON et.id = e.exam_type_id").
		Join(subjectsTable + " sub ON sub.id = e.subject_id").
		Join(studentsTable + " st ON st.id = r.student_id").
		Join(usersTable + " u ON u.id = st.user_id")
}

func (repo *examRepository) ResultExists(ctx context.Context, examinationID, studentID int64) (bool, error) {
	return repo.existsWhere(ctx, resultsTable, sq.Eq{"examination_id": examinationID, "student_id": studentID}, 0)
}

func (repo *examRepository) CreateResult(ctx context.Context, r exam.Result) (exam.Result, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(resultsTable).
		Columns("examination_id", "student_id", "marks_obtained", "grade", "remarks", "entered_by",
			"created_at", "updated_at").
		Values(r.ExaminationID, r.StudentID, r.MarksObtained, r.Grade, r.Remarks, r.EnteredBy,
			r.CreatedAt, r.UpdatedAt))
	if err != nil {
		return exam.Result{}, trapConstraint(err, exam.ErrResultExists, "inserting exam result")
	}
	return repo.GetResultByID(ctx, id)
}

func (repo *examRepository) GetResultByID(ctx context.Context, id int64) (exam.Result, error) {
	var r exam.Result
	if err := repo.get(ctx, repo.db, &r, repo.selectResults().Where(sq.Eq{"r.id": id})); err != nil {
		return exam.Result{}, trapNoRows(err, exam.ErrResultNotFound, "finding exam result")
	}
	return r, nil
}

func (repo *examRepository) QueryResults(ctx context.Context, filter exam.ResultFilter) ([]exam.Result, error) {
	q := repo.selectResults()
	if filter.ExaminationID > 0 {
		q = q.Where(sq.Eq{"r.examination_id": filter.ExaminationID})
	}
	if filter.StudentID > 0 {
		q = q.Where(sq.Eq{"r.student_id": filter.StudentID})
	}
	if filter.AcademicYearID > 0 {
		q = q.Where(sq.Eq{"e.academic_year_id": filter.AcademicYearID})
	}
	if filter.TermID > 0 {
		q = q.Where(sq.Eq{"e.term_id": filter.TermID})
	}

	results := make([]exam.Result, 0)
	err := repo.sel(ctx, repo.db, &results, q.OrderBy("e.exam_date DESC", "u.first_name ASC", "u.last_name ASC"))
	return results, errors.Wrap(err, "querying exam results")
}

func (repo *examRepository) UpdateResult(ctx context.Context, r exam.Result) (exam.Result, error) {
	err := repo.updateByID(ctx, repo.db, resultsTable, r.ID, map[string]interface{}{
		"marks_obtained": r.MarksObtained,
		"grade":          r.Grade,
		"remarks":        r.Remarks,
		"entered_by":     r.EnteredBy,
		"updated_at":     r.UpdatedAt,
	}, exam.ErrResultNotFound, exam.ErrResultExists)
	if err != nil {
		return exam.Result{}, err
	}
	return repo.GetResultByID(ctx, r.ID)
}

func (repo *examRepository) DeleteResult(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, resultsTable, id, exam.ErrResultNotFound)
}

func (repo *examRepository) ResultStats(ctx context.Context, examinationID int64, passingMarks float64) (exam.Stats, error) {
	var row struct {
		Total   int     `db:"total"`
		Average float64 `db:"average"`
		Highest float64 `db:"highest"`
		Lowest  float64 `db:"lowest"`
		Passed  int     `db:"passed"`
	}
	err := repo.get(ctx, repo.db, &row, repo.sb.Select(
		"COUNT(*) AS total",
		"COALESCE(AVG(marks_obtained), 0) AS average",
		"COALESCE(MAX(marks_obtained), 0) AS highest",
		"COALESCE(MIN(marks_obtained), 0) AS lowest").
		Column(sq.Expr("COALESCE(SUM(CASE WHEN marks_obtained >= ? THEN 1 ELSE 0 END), 0) AS passed", passingMarks)).
		From(resultsTable).
		Where(sq.Eq{"examination_id": examinationID}))
	if err != nil {
		return exam.Stats{}, errors.Wrap(err, "aggregating exam results")
	}

	return exam.Stats{
		ExaminationID: examinationID,
		TotalStudents: row.Total,
		AverageMarks:  row.Average,
		HighestMarks:  row.Highest,
		LowestMarks:   row.Lowest,
		Passed:        row.Passed,
		Failed:        row.Total - row.Passed,
	}, nil
}
