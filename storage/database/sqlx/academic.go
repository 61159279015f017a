package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
)

const (
	gradesTable        = "grades"
	sectionsTable      = "sections"
	subjectsTable      = "subjects"
	gradeSubjectsTable = "grade_subjects"
	yearsTable         = "academic_years"
	termsTable         = "terms"
)

var (
	gradeColumns   = []string{"id", "name", "level", "description", "created_at", "updated_at"}
	subjectColumns = []string{"id", "name", "code", "description", "created_at", "updated_at"}
	yearColumns    = []string{"id", "name", "start_date", "end_date", "is_current", "created_at", "updated_at"}
	sectionColumns = []string{
		"s.id", "s.grade_id", "s.academic_year_id", "s.name", "s.capacity", "s.class_teacher_id", "s.room",
		"s.created_at", "s.updated_at", "g.name AS grade_name", "y.name AS academic_year_name",
		"(SELECT COUNT(*) FROM students st WHERE st.section_id = s.id) AS student_count",
	}
	termColumns = []string{
		"t.id", "t.academic_year_id", "t.name", "t.start_date", "t.end_date", "t.is_current",
		"t.created_at", "t.updated_at", "y.name AS academic_year_name",
	}

	gradeOrdering = map[string]string{
		"name":       "name",
		"level":      "level",
		"created_at": "created_at",
	}
	sectionOrdering = map[string]string{
		"name":       "s.name",
		"capacity":   "s.capacity",
		"grade_name": "g.name",
		"created_at": "s.created_at",
	}
	subjectOrdering = map[string]string{
		"name":       "name",
		"code":       "code",
		"created_at": "created_at",
	}
	yearOrdering = map[string]string{
		"name":       "name",
		"start_date": "start_date",
		"created_at": "created_at",
	}
	termOrdering = map[string]string{
		"name":       "t.name",
		"start_date": "t.start_date",
		"created_at": "t.created_at",
	}
)

type academicRepository struct {
	store
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *sqlx.DB) *academicRepository {
	return &academicRepository{store: newStore(db)}
}

// Grades

func (repo *academicRepository) GradeNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, gradesTable, sq.Eq{"name": name}, excludeID)
}

func (repo *academicRepository) GradeLevelExists(ctx context.Context, level int, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, gradesTable, sq.Eq{"level": level}, excludeID)
}

func (repo *academicRepository) CreateGrade(ctx context.Context, g academic.Grade) (academic.Grade, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(gradesTable).
		Columns("name", "level", "description", "created_at", "updated_at").
		Values(g.Name, g.Level, g.Description, g.CreatedAt, g.UpdatedAt))
	if err != nil {
		return academic.Grade{}, trapConstraint(err, academic.ErrGradeNameExists, "inserting grade")
	}
	return repo.GetGradeByID(ctx, id)
}

func (repo *academicRepository) GetGradeByID(ctx context.Context, id int64) (academic.Grade, error) {
	var g academic.Grade
	err := repo.get(ctx, repo.db, &g, repo.sb.Select(gradeColumns...).From(gradesTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return academic.Grade{}, trapNoRows(err, academic.ErrGradeNotFound, "finding grade")
	}
	return g, nil
}

func (repo *academicRepository) QueryGrades(ctx context.Context, filter academic.GradeFilter) ([]academic.Grade, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "name", "description"))
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(gradesTable).Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting grades")
	}

	grades := make([]academic.Grade, 0)
	ord := filter.Ordering(gradeOrdering, core.DBOrdering{Field: "level", Ascending: true})
	q := page(repo.sb.Select(gradeColumns...).From(gradesTable).Where(where), filter.PageQuery, ord)
	if err = repo.sel(ctx, repo.db, &grades, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying grades")
	}
	return grades, total, nil
}

func (repo *academicRepository) UpdateGrade(
	ctx context.Context,
	id int64,
	ug academic.UpdateGrade,
	updatedAt time.Time,
) (academic.Grade, error) {
	values := newChanges(updatedAt)
	setIf(values, "name", ug.Name)
	setIf(values, "level", ug.Level)
	setIf(values, "description", ug.Description)
	if err := repo.updateByID(ctx, repo.db, gradesTable, id, values,
		academic.ErrGradeNotFound, academic.ErrGradeNameExists); err != nil {
		return academic.Grade{}, err
	}
	return repo.GetGradeByID(ctx, id)
}

func (repo *academicRepository) DeleteGrade(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, gradesTable, id, academic.ErrGradeNotFound)
}

func (repo *academicRepository) CountGradeSections(ctx context.Context, gradeID int64) (int, error) {
	return repo.countWhere(ctx, sectionsTable, sq.Eq{"grade_id": gradeID})
}

// Sections

func (repo *academicRepository) selectSections() sq.SelectBuilder {
	return repo.sb.Select(sectionColumns...).
		From(sectionsTable + " s").
		Join(gradesTable + " g ON g.id = s.grade_id").
		Join(yearsTable + " y ON y.id = s.academic_year_id")
}

func (repo *academicRepository) SectionNameExists(ctx context.Context, gradeID, yearID int64, name string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, sectionsTable, sq.Eq{"grade_id": gradeID, "academic_year_id": yearID, "name": name}, excludeID)
}

func (repo *academicRepository) TeacherExists(ctx context.Context, teacherID int64) (bool, error) {
	return repo.existsWhere(ctx, teachersTable, sq.Eq{"id": teacherID}, 0)
}

func (repo *academicRepository) CreateSection(ctx context.Context, s academic.Section) (academic.Section, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(sectionsTable).
		Columns("grade_id", "academic_year_id", "name", "capacity", "class_teacher_id", "room", "created_at", "updated_at").
		Values(s.GradeID, s.AcademicYearID, s.Name, s.Capacity, s.ClassTeacherID, s.Room, s.CreatedAt, s.UpdatedAt))
	if err != nil {
		return academic.Section{}, trapConstraint(err, academic.ErrSectionNameExists, "inserting section")
	}
	return repo.GetSectionByID(ctx, id)
}

func (repo *academicRepository) GetSectionByID(ctx context.Context, id int64) (academic.Section, error) {
	var s academic.Section
	if err := repo.get(ctx, repo.db, &s, repo.selectSections().Where(sq.Eq{"s.id": id})); err != nil {
		return academic.Section{}, trapNoRows(err, academic.ErrSectionNotFound, "finding section")
	}
	return s, nil
}

func (repo *academicRepository) QuerySections(ctx context.Context, filter academic.SectionFilter) ([]academic.Section, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "s.name", "s.room"))
	}
	if filter.GradeID > 0 {
		where = append(where, sq.Eq{"s.grade_id": filter.GradeID})
	}
	if filter.AcademicYearID > 0 {
		where = append(where, sq.Eq{"s.academic_year_id": filter.AcademicYearID})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(sectionsTable+" s").Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting sections")
	}

	sections := make([]academic.Section, 0)
	ord := filter.Ordering(sectionOrdering, core.DBOrdering{Field: "s.name", Ascending: true})
	if err = repo.sel(ctx, repo.db, &sections, page(repo.selectSections().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying sections")
	}
	return sections, total, nil
}

func (repo *academicRepository) UpdateSection(
	ctx context.Context,
	id int64,
	us academic.UpdateSection,
	updatedAt time.Time,
) (academic.Section, error) {
	values := newChanges(updatedAt)
	setIf(values, "name", us.Name)
	setIf(values, "capacity", us.Capacity)
	setIf(values, "class_teacher_id", us.ClassTeacherID)
	setIf(values, "room", us.Room)
	if err := repo.updateByID(ctx, repo.db, sectionsTable, id, values,
		academic.ErrSectionNotFound, academic.ErrSectionNameExists); err != nil {
		return academic.Section{}, err
	}
	return repo.GetSectionByID(ctx, id)
}

func (repo *academicRepository) DeleteSection(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, sectionsTable, id, academic.ErrSectionNotFound)
}

func (repo *academicRepository) CountSectionStudents(ctx context.Context, sectionID int64) (int, error) {
	return repo.countWhere(ctx, studentsTable, sq.Eq{"section_id": sectionID})
}

// Subjects

func (repo *academicRepository) SubjectCodeExists(ctx context.Context, code string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, subjectsTable, sq.Eq{"code": code}, excludeID)
}

func (repo *academicRepository) CreateSubject(ctx context.Context, s academic.Subject) (academic.Subject, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(subjectsTable).
		Columns("name", "code", "description", "created_at", "updated_at").
		Values(s.Name, s.Code, s.Description, s.CreatedAt, s.UpdatedAt))
	if err != nil {
		return academic.Subject{}, trapConstraint(err, academic.ErrSubjectCodeExists, "inserting subject")
	}
	return repo.GetSubjectByID(ctx, id)
}

func (repo *academicRepository) GetSubjectByID(ctx context.Context, id int64) (academic.Subject, error) {
	var s academic.Subject
	err := repo.get(ctx, repo.db, &s, repo.sb.Select(subjectColumns...).From(subjectsTable).Where(sq.Eq{"id": id}))
	if err != nil {
		return academic.Subject{}, trapNoRows(err, academic.ErrSubjectNotFound, "finding subject")
	}
	return s, nil
}

func (repo *academicRepository) QuerySubjects(ctx context.Context, filter academic.SubjectFilter) ([]academic.Subject, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "name", "code"))
	}
	if filter.GradeID > 0 {
		where = append(where, sq.Expr(
			"id IN (SELECT subject_id FROM "+gradeSubjectsTable+" WHERE grade_id = ?)", filter.GradeID))
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(subjectsTable).Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting subjects")
	}

	subjects := make([]academic.Subject, 0)
	ord := filter.Ordering(subjectOrdering, core.DBOrdering{Field: "name", Ascending: true})
	q := page(repo.sb.Select(subjectColumns...).From(subjectsTable).Where(where), filter.PageQuery, ord)
	if err = repo.sel(ctx, repo.db, &subjects, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying subjects")
	}
	return subjects, total, nil
}

func (repo *academicRepository) UpdateSubject(
	ctx context.Context,
	id int64,
	us academic.UpdateSubject,
	updatedAt time.Time,
) (academic.Subject, error) {
	values := newChanges(updatedAt)
	setIf(values, "name", us.Name)
	setIf(values, "code", us.Code)
	setIf(values, "description", us.Description)
	if err := repo.updateByID(ctx, repo.db, subjectsTable, id, values,
		academic.ErrSubjectNotFound, academic.ErrSubjectCodeExists); err != nil {
		return academic.Subject{}, err
	}
	return repo.GetSubjectByID(ctx, id)
}

func (repo *academicRepository) DeleteSubject(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, subjectsTable, id, academic.ErrSubjectNotFound)
}

func (repo *academicRepository) CountSubjectGrades(ctx context.Context, subjectID int64) (int, error) {
	return repo.countWhere(ctx, gradeSubjectsTable, sq.Eq{"subject_id": subjectID})
}

func (repo *academicRepository) CreateGradeSubject(ctx context.Context, gs academic.GradeSubject) (academic.GradeSubject, error) {
	_, err := repo.exec(ctx, repo.db, repo.sb.Insert(gradeSubjectsTable).
		Columns("grade_id", "subject_id", "is_compulsory", "created_at").
		Values(gs.GradeID, gs.SubjectID, gs.IsCompulsory, gs.CreatedAt))
	if err != nil {
		return academic.GradeSubject{}, trapConstraint(err, academic.ErrSubjectAlreadyInGrade, "inserting grade subject")
	}

	var created academic.GradeSubject
	err = repo.get(ctx, repo.db, &created, repo.selectGradeSubjects().
		Where(sq.Eq{"gs.grade_id": gs.GradeID, "gs.subject_id": gs.SubjectID}))
	return created, errors.Wrap(err, "finding grade subject")
}

func (repo *academicRepository) selectGradeSubjects() sq.SelectBuilder {
	return repo.sb.Select(
		"gs.grade_id", "gs.subject_id", "gs.is_compulsory", "gs.created_at",
		"sub.name AS subject_name", "sub.code AS subject_code").
		From(gradeSubjectsTable + " gs").
		Join(subjectsTable + " sub ON sub.id = gs.subject_id")
}

func (repo *academicRepository) DeleteGradeSubject(ctx context.Context, gradeID, subjectID int64) error {
	res, err := repo.exec(ctx, repo.db, repo.sb.Delete(gradeSubjectsTable).
		Where(sq.Eq{"grade_id": gradeID, "subject_id": subjectID}))
	if err != nil {
		return errors.Wrap(err, "deleting grade subject")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return academic.ErrGradeSubjectNotFound
	}
	return nil
}

func (repo *academicRepository) QueryGradeSubjects(ctx context.Context, gradeID int64) ([]academic.GradeSubject, error) {
	subjects := make([]academic.GradeSubject, 0)
	err := repo.sel(ctx, repo.db, &subjects, repo.selectGradeSubjects().
		Where(sq.Eq{"gs.grade_id": gradeID}).
		OrderBy("sub.name ASC"))
	return subjects, errors.Wrap(err, "querying grade subjects")
}

// Academic Years

func (repo *academicRepository) AcademicYearNameExists(ctx context.Context, name string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, yearsTable, sq.Eq{"name": name}, excludeID)
}

func (repo *academicRepository) CreateAcademicYear(ctx context.Context, y academic.AcademicYear) (academic.AcademicYear, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(yearsTable).
		Columns("name", "start_date", "end_date", "is_current", "created_at", "updated_at").
		Values(y.Name, y.StartDate, y.EndDate, y.IsCurrent, y.CreatedAt, y.UpdatedAt))
	if err != nil {
		return academic.AcademicYear{}, trapConstraint(err, academic.ErrAcademicYearExists, "inserting academic year")
	}
	return repo.GetAcademicYearByID(ctx, id)
}

func (repo *academicRepository) getAcademicYear(ctx context.Context, pred interface{}, notFound error) (academic.AcademicYear, error) {
	var y academic.AcademicYear
	if err := repo.get(ctx, repo.db, &y, repo.sb.Select(yearColumns...).From(yearsTable).Where(pred)); err != nil {
		return academic.AcademicYear{}, trapNoRows(err, notFound, "finding academic year")
	}
	return y, nil
}

func (repo *academicRepository) GetAcademicYearByID(ctx context.Context, id int64) (academic.AcademicYear, error) {
	return repo.getAcademicYear(ctx, sq.Eq{"id": id}, academic.ErrAcademicYearNotFound)
}

func (repo *academicRepository) GetCurrentAcademicYear(ctx context.Context) (academic.AcademicYear, error) {
	return repo.getAcademicYear(ctx, sq.Eq{"is_current": true}, academic.ErrNoCurrentYear)
}

func (repo *academicRepository) QueryAcademicYears(ctx context.Context, filter academic.AcademicYearFilter) ([]academic.AcademicYear, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "name"))
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(yearsTable).Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting academic years")
	}

	years := make([]academic.AcademicYear, 0)
	ord := filter.Ordering(yearOrdering, core.DBOrdering{Field: "start_date"})
	q := page(repo.sb.Select(yearColumns...).From(yearsTable).Where(where), filter.PageQuery, ord)
	if err = repo.sel(ctx, repo.db, &years, q); err != nil {
		return nil, 0, errors.Wrap(err, "querying academic years")
	}
	return years, total, nil
}

func (repo *academicRepository) UpdateAcademicYear(
	ctx context.Context,
	id int64,
	uy academic.UpdateAcademicYear,
	updatedAt time.Time,
) (academic.AcademicYear, error) {
	values := newChanges(updatedAt)
	setIf(values, "name", uy.Name)
	setIf(values, "start_date", uy.StartDate)
	setIf(values, "end_date", uy.EndDate)
	if err := repo.updateByID(ctx, repo.db, yearsTable, id, values,
		academic.ErrAcademicYearNotFound, academic.ErrAcademicYearExists); err != nil {
		return academic.AcademicYear{}, err
	}
	return repo.GetAcademicYearByID(ctx, id)
}

// setCurrent flags the row `id` of `table` as the only current one, in a single statement.
func (repo *academicRepository) setCurrent(ctx context.Context, table string, id int64) error {
	_, err := repo.exec(ctx, repo.db, repo.sb.Update(table).
		Set("is_current", sq.Expr("(id = ?)", id)).
		Set("updated_at", sq.Expr("CURRENT_TIMESTAMP")))
	return err
}

func (repo *academicRepository) SetCurrentAcademicYear(ctx context.Context, id int64) error {
	return repo.setCurrent(ctx, yearsTable, id)
}

func (repo *academicRepository) DeleteAcademicYear(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, yearsTable, id, academic.ErrAcademicYearNotFound)
}

func (repo *academicRepository) CountAcademicYearTerms(ctx context.Context, yearID int64) (int, error) {
	return repo.countWhere(ctx, termsTable, sq.Eq{"academic_year_id": yearID})
}

// Terms

func (repo *academicRepository) selectTerms() sq.SelectBuilder {
	return repo.sb.Select(termColumns...).
		From(termsTable + " t").
		Join(yearsTable + " y ON y.id = t.academic_year_id")
}

func (repo *academicRepository) TermNameExists(ctx context.Context, yearID int64, name string, excludeID int64) (bool, error) {
	return repo.existsWhere(ctx, termsTable, sq.Eq{"academic_year_id": yearID, "name": name}, excludeID)
}

func (repo *academicRepository) CreateTerm(ctx context.Context, t academic.Term) (academic.Term, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(termsTable).
		Columns("academic_year_id", "name", "start_date", "end_date", "is_current", "created_at", "updated_at").
		Values(t.AcademicYearID, t.Name, t.StartDate, t.EndDate, t.IsCurrent, t.CreatedAt, t.UpdatedAt))
	if err != nil {
		return academic.Term{}, trapConstraint(err, academic.ErrTermNameExists, "inserting term")
	}
	return repo.GetTermByID(ctx, id)
}

func (repo *academicRepository) getTerm(ctx context.Context, pred interface{}, notFound error) (academic.Term, error) {
	var t academic.Term
	if err := repo.get(ctx, repo.db, &t, repo.selectTerms().Where(pred)); err != nil {
		return academic.Term{}, trapNoRows(err, notFound, "finding term")
	}
	return t, nil
}

func (repo *academicRepository) GetTermByID(ctx context.Context, id int64) (academic.Term, error) {
	return repo.getTerm(ctx, sq.Eq{"t.id": id}, academic.ErrTermNotFound)
}

func (repo *academicRepository) GetCurrentTerm(ctx context.Context) (academic.Term, error) {
	return repo.getTerm(ctx, sq.Eq{"t.is_current": true}, academic.ErrNoCurrentTerm)
}

func (repo *academicRepository) QueryTerms(ctx context.Context, filter academic.TermFilter) ([]academic.Term, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "t.name"))
	}
	if filter.AcademicYearID > 0 {
		where = append(where, sq.Eq{"t.academic_year_id": filter.AcademicYearID})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(termsTable+" t").Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting terms")
	}

	terms := make([]academic.Term, 0)
	ord := filter.Ordering(termOrdering, core.DBOrdering{Field: "t.start_date", Ascending: true})
	if err = repo.sel(ctx, repo.db, &terms, page(repo.selectTerms().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying terms")
	}
	return terms, total, nil
}

func (repo *academicRepository) UpdateTerm(
	ctx context.Context,
	id int64,
	ut academic.UpdateTerm,
	updatedAt time.Time,
) (academic.Term, error) {
	values := newChanges(updatedAt)
	setIf(values, "name", ut.Name)
	setIf(values, "start_date", ut.StartDate)
	setIf(values, "end_date", ut.EndDate)
	if err := repo.updateByID(ctx, repo.db, termsTable, id, values,
		academic.ErrTermNotFound, academic.ErrTermNameExists); err != nil {
		return academic.Term{}, err
	}
	return repo.GetTermByID(ctx, id)
}

func (repo *academicRepository) SetCurrentTerm(ctx context.Context, id int64) error {
	return repo.setCurrent(ctx, termsTable, id)
}

func (repo *academicRepository) DeleteTerm(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, termsTable, id, academic.ErrTermNotFound)
}

func (repo *academicRepository) CountTermExaminations(ctx context.Context, termID int64) (int, error) {
	return repo.countWhere(ctx, examinationsTable, sq.Eq{"term_id": termID})
}
