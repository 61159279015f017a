package academic

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	ErrGradeNotFound        = core.NewNotFoundError("grade")
	ErrSectionNotFound      = core.NewNotFoundError("section")
	ErrSubjectNotFound      = core.NewNotFoundError("subject")
	ErrAcademicYearNotFound = core.NewNotFoundError("academic year")
	ErrTermNotFound         = core.NewNotFoundError("term")
	ErrTeacherNotFound      = core.NewNotFoundError("teacher")
	ErrGradeSubjectNotFound = core.NewNotFoundError("grade subject")
	ErrNoCurrentYear        = core.NewNotFoundError("current academic year")
	ErrNoCurrentTerm        = core.NewNotFoundError("current term")

	ErrGradeNameExists       = core.NewConflictError("a grade with this name already exists")
	ErrGradeLevelExists      = core.NewConflictError("a grade with this level already exists")
	ErrSectionNameExists     = core.NewConflictError("a section with this name already exists for this grade and academic year")
	ErrSubjectCodeExists     = core.NewConflictError("a subject with this code already exists")
	ErrAcademicYearExists    = core.NewConflictError("an academic year with this name already exists")
	ErrTermNameExists        = core.NewConflictError("a term with this name already exists for this academic year")
	ErrSubjectAlreadyInGrade = core.NewConflictError("subject is already assigned to this grade")

	ErrGradeHasSections     = core.NewConflictError("cannot delete grade with existing sections")
	ErrSectionHasStudents   = core.NewConflictError("cannot delete section with enrolled students")
	ErrSubjectHasGrades     = core.NewConflictError("cannot delete subject assigned to grades")
	ErrAcademicYearHasTerms = core.NewConflictError("cannot delete academic year with existing terms")
	ErrTermHasExaminations  = core.NewConflictError("cannot delete term with existing examinations")

	ErrNoFieldsToUpdate = core.NewValidationError(errors.New("no fields to update"))

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// grades
		GradeNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
		GradeLevelExists(ctx context.Context, level int, excludeID int64) (bool, error)
		CreateGrade(ctx context.Context, g Grade) (Grade, error)
		GetGradeByID(ctx context.Context, id int64) (Grade, error)
		QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, int, error)
		// UpdateGrade writes only the non-nil fields of `ug`.
		UpdateGrade(ctx context.Context, id int64, ug UpdateGrade, updatedAt time.Time) (Grade, error)
		DeleteGrade(ctx context.Context, id int64) error
		CountGradeSections(ctx context.Context, gradeID int64) (int, error)

		// sections
		SectionNameExists(ctx context.Context, gradeID, yearID int64, name string, excludeID int64) (bool, error)
		TeacherExists(ctx context.Context, teacherID int64) (bool, error)
		CreateSection(ctx context.Context, s Section) (Section, error)
		GetSectionByID(ctx context.Context, id int64) (Section, error)
		QuerySections(ctx context.Context, filter SectionFilter) ([]Section, int, error)
		UpdateSection(ctx context.Context, id int64, us UpdateSection, updatedAt time.Time) (Section, error)
		DeleteSection(ctx context.Context, id int64) error
		CountSectionStudents(ctx context.Context, sectionID int64) (int, error)

		// subjects
		SubjectCodeExists(ctx context.Context, code string, excludeID int64) (bool, error)
		CreateSubject(ctx context.Context, s Subject) (Subject, error)
		GetSubjectByID(ctx context.Context, id int64) (Subject, error)
		QuerySubjects(ctx context.Context, filter SubjectFilter) ([]Subject, int, error)
		UpdateSubject(ctx context.Context, id int64, us UpdateSubject, updatedAt time.Time) (Subject, error)
		DeleteSubject(ctx context.Context, id int64) error
		CountSubjectGrades(ctx context.Context, subjectID int64) (int, error)
		CreateGradeSubject(ctx context.Context, gs GradeSubject) (GradeSubject, error)
		DeleteGradeSubject(ctx context.Context, gradeID, subjectID int64) error
		QueryGradeSubjects(ctx context.Context, gradeID int64) ([]GradeSubject, error)

		// academic years
		AcademicYearNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
		CreateAcademicYear(ctx context.Context, y AcademicYear) (AcademicYear, error)
		GetAcademicYearByID(ctx context.Context, id int64) (AcademicYear, error)
		GetCurrentAcademicYear(ctx context.Context) (AcademicYear, error)
		QueryAcademicYears(ctx context.Context, filter AcademicYearFilter) ([]AcademicYear, int, error)
		UpdateAcademicYear(ctx context.Context, id int64, uy UpdateAcademicYear, updatedAt time.Time) (AcademicYear, error)
		// SetCurrentAcademicYear flags `id` as the only current year in one statement.
		SetCurrentAcademicYear(ctx context.Context, id int64) error
		DeleteAcademicYear(ctx context.Context, id int64) error
		CountAcademicYearTerms(ctx context.Context, yearID int64) (int, error)

		// terms
		TermNameExists(ctx context.Context, yearID int64, name string, excludeID int64) (bool, error)
		CreateTerm(ctx context.Context, t Term) (Term, error)
		GetTermByID(ctx context.Context, id int64) (Term, error)
		GetCurrentTerm(ctx context.Context) (Term, error)
		QueryTerms(ctx context.Context, filter TermFilter) ([]Term, int, error)
		UpdateTerm(ctx context.Context, id int64, ut UpdateTerm, updatedAt time.Time) (Term, error)
		// SetCurrentTerm flags `id` as the only current term in one statement.
		SetCurrentTerm(ctx context.Context, id int64) error
		DeleteTerm(ctx context.Context, id int64) error
		CountTermExaminations(ctx context.Context, termID int64) (int, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func now() time.Time { return nowFunc().UTC() }

// checkUnique runs `exists` and returns `conflict` when it reports true.
func checkUnique(exists func() (bool, error), conflict error, msg string) error {
	ok, err := exists()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if ok {
		return conflict
	}
	return nil
}

// checkNoDependents runs `count` and returns `conflict` when dependents exist.
func checkNoDependents(count func() (int, error), conflict error, msg string) error {
	n, err := count()
	if err != nil {
		return errors.Wrap(err, msg)
	}
	if n > 0 {
		return conflict
	}
	return nil
}

// Grades

func (svc *Service) CreateGrade(ctx context.Context, ng NewGrade) (Grade, error) {
	if err := svc.checkGradeUniqueness(ctx, ng.Name, ng.Level, 0); err != nil {
		return Grade{}, err
	}
	t := now()
	g, err := svc.repo.CreateGrade(ctx, Grade{
		Name:        ng.Name,
		Level:       ng.Level,
		Description: ng.Description,
		CreatedAt:   t,
		UpdatedAt:   t,
	})
	return g, errors.Wrap(err, "creating grade")
}

func (svc *Service) checkGradeUniqueness(ctx context.Context, name string, level int, excludeID int64) error {
	if err := checkUnique(func() (bool, error) { return svc.repo.GradeNameExists(ctx, name, excludeID) },
		ErrGradeNameExists, "checking grade name"); err != nil {
		return err
	}
	return checkUnique(func() (bool, error) { return svc.repo.GradeLevelExists(ctx, level, excludeID) },
		ErrGradeLevelExists, "checking grade level")
}

func (svc *Service) GetGrade(ctx context.Context, id int64) (Grade, error) {
	return svc.repo.GetGradeByID(ctx, id)
}

func (svc *Service) QueryGrades(ctx context.Context, filter GradeFilter) ([]Grade, core.Pagination, error) {
	filter.Clean()
	grades, total, err := svc.repo.QueryGrades(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying grades")
	}
	return grades, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateGrade(ctx context.Context, id int64, ug UpdateGrade) (Grade, error) {
	if ug.IsEmpty() {
		return Grade{}, ErrNoFieldsToUpdate
	}
	g, err := svc.repo.GetGradeByID(ctx, id)
	if err != nil {
		return Grade{}, err
	}

	if ug.Name != nil && *ug.Name != g.Name {
		if err := checkUnique(func() (bool, error) { return svc.repo.GradeNameExists(ctx, *ug.Name, id) },
			ErrGradeNameExists, "checking grade name"); err != nil {
			return Grade{}, err
		}
	}
	if ug.Level != nil && *ug.Level != g.Level {
		if err := checkUnique(func() (bool, error) { return svc.repo.GradeLevelExists(ctx, *ug.Level, id) },
			ErrGradeLevelExists, "checking grade level"); err != nil {
			return Grade{}, err
		}
	}

	g, err = svc.repo.UpdateGrade(ctx, id, ug, now())
	return g, errors.Wrap(err, "updating grade")
}

func (svc *Service) DeleteGrade(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetGradeByID(ctx, id); err != nil {
		return err
	}
	if err := checkNoDependents(func() (int, error) { return svc.repo.CountGradeSections(ctx, id) },
		ErrGradeHasSections, "counting grade sections"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteGrade(ctx, id), "deleting grade")
}

// Sections

func (svc *Service) CreateSection(ctx context.Context, ns NewSection) (Section, error) {
	if _, err := svc.repo.GetGradeByID(ctx, ns.GradeID); err != nil {
		return Section{}, err
	}
	if _, err := svc.repo.GetAcademicYearByID(ctx, ns.AcademicYearID); err != nil {
		return Section{}, err
	}
	if err := svc.checkTeacher(ctx, ns.ClassTeacherID); err != nil {
		return Section{}, err
	}
	if err := checkUnique(
		func() (bool, error) { return svc.repo.SectionNameExists(ctx, ns.GradeID, ns.AcademicYearID, ns.Name, 0) },
		ErrSectionNameExists, "checking section name"); err != nil {
		return Section{}, err
	}

	capacity := ns.Capacity
	if capacity == 0 {
		capacity = DefaultSectionCapacity
	}
	t := now()
	s, err := svc.repo.CreateSection(ctx, Section{
		GradeID:        ns.GradeID,
		AcademicYearID: ns.AcademicYearID,
		Name:           ns.Name,
		Capacity:       capacity,
		ClassTeacherID: ns.ClassTeacherID,
		Room:           ns.Room,
		CreatedAt:      t,
		UpdatedAt:      t,
	})
	return s, errors.Wrap(err, "creating section")
}

func (svc *Service) checkTeacher(ctx context.Context, teacherID *int64) error {
	if teacherID == nil {
		return nil
	}
	exists, err := svc.repo.TeacherExists(ctx, *teacherID)
	if err != nil {
		return errors.Wrap(err, "checking teacher")
	}
	if !exists {
		return ErrTeacherNotFound
	}
	return nil
}

func (svc *Service) GetSection(ctx context.Context, id int64) (Section, error) {
	return svc.repo.GetSectionByID(ctx, id)
}

func (svc *Service) QuerySections(ctx context.Context, filter SectionFilter) ([]Section, core.Pagination, error) {
	filter.Clean()
	sections, total, err := svc.repo.QuerySections(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying sections")
	}
	return sections, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateSection(ctx context.Context, id int64, us UpdateSection) (Section, error) {
	if us.IsEmpty() {
		return Section{}, ErrNoFieldsToUpdate
	}
	s, err := svc.repo.GetSectionByID(ctx, id)
	if err != nil {
		return Section{}, err
	}

	if us.Name != nil && *us.Name != s.Name {
		if err := checkUnique(
			func() (bool, error) { return svc.repo.SectionNameExists(ctx, s.GradeID, s.AcademicYearID, *us.Name, id) },
			ErrSectionNameExists, "checking section name"); err != nil {
			return Section{}, err
		}
	}
	if us.ClassTeacherID != nil {
		if err := svc.checkTeacher(ctx, us.ClassTeacherID); err != nil {
			return Section{}, err
		}
	}

	s, err = svc.repo.UpdateSection(ctx, id, us, now())
	return s, errors.Wrap(err, "updating section")
}

func (svc *Service) DeleteSection(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetSectionByID(ctx, id); err != nil {
		return err
	}
	if err := checkNoDependents(func() (int, error) { return svc.repo.CountSectionStudents(ctx, id) },
		ErrSectionHasStudents, "counting section students"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteSection(ctx, id), "deleting section")
}

// Subjects

func (svc *Service) CreateSubject(ctx context.Context, ns NewSubject) (Subject, error) {
	if err := checkUnique(func() (bool, error) { return svc.repo.SubjectCodeExists(ctx, ns.Code, 0) },
		ErrSubjectCodeExists, "checking subject code"); err != nil {
		return Subject{}, err
	}
	t := now()
	s, err := svc.repo.CreateSubject(ctx, Subject{
		Name:        ns.Name,
		Code:        ns.Code,
		Description: ns.Description,
		CreatedAt:   t,
		UpdatedAt:   t,
	})
	return s, errors.Wrap(err, "creating subject")
}

func (svc *Service) GetSubject(ctx context.Context, id int64) (Subject, error) {
	return svc.repo.GetSubjectByID(ctx, id)
}

func (svc *Service) QuerySubjects(ctx context.Context, filter SubjectFilter) ([]Subject, core.Pagination, error) {
	filter.Clean()
	subjects, total, err := svc.repo.QuerySubjects(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying subjects")
	}
	return subjects, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateSubject(ctx context.Context, id int64, us UpdateSubject) (Subject, error) {
	if us.IsEmpty() {
		return Subject{}, ErrNoFieldsToUpdate
	}
	s, err := svc.repo.GetSubjectByID(ctx, id)
	if err != nil {
		return Subject{}, err
	}

	if us.Code != nil && *us.Code != s.Code {
		if err := checkUnique(func() (bool, error) { return svc.repo.SubjectCodeExists(ctx, *us.Code, id) },
			ErrSubjectCodeExists, "checking subject code"); err != nil {
			return Subject{}, err
		}
	}

	s, err = svc.repo.UpdateSubject(ctx, id, us, now())
	return s, errors.Wrap(err, "updating subject")
}

func (svc *Service) DeleteSubject(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetSubjectByID(ctx, id); err != nil {
		return err
	}
	if err := checkNoDependents(func() (int, error) { return svc.repo.CountSubjectGrades(ctx, id) },
		ErrSubjectHasGrades, "counting subject grades"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteSubject(ctx, id), "deleting subject")
}

// AssignSubjectToGrade links a subject to a grade. Assigning it twice is a conflict.
func (svc *Service) AssignSubjectToGrade(ctx context.Context, gradeID int64, as AssignSubject) (GradeSubject, error) {
	if _, err := svc.repo.GetGradeByID(ctx, gradeID); err != nil {
		return GradeSubject{}, err
	}
	if _, err := svc.repo.GetSubjectByID(ctx, as.SubjectID); err != nil {
		return GradeSubject{}, err
	}
	compulsory := true
	if as.IsCompulsory != nil {
		compulsory = *as.IsCompulsory
	}
	gs, err := svc.repo.CreateGradeSubject(ctx, GradeSubject{
		GradeID:      gradeID,
		SubjectID:    as.SubjectID,
		IsCompulsory: compulsory,
		CreatedAt:    now(),
	})
	if err != nil {
		if core.IsConflict(err) {
			return GradeSubject{}, ErrSubjectAlreadyInGrade
		}
		return GradeSubject{}, errors.Wrap(err, "assigning subject")
	}
	return gs, nil
}

func (svc *Service) RemoveSubjectFromGrade(ctx context.Context, gradeID, subjectID int64) error {
	return svc.repo.DeleteGradeSubject(ctx, gradeID, subjectID)
}

func (svc *Service) GetGradeSubjects(ctx context.Context, gradeID int64) ([]GradeSubject, error) {
	if _, err := svc.repo.GetGradeByID(ctx, gradeID); err != nil {
		return nil, err
	}
	subjects, err := svc.repo.QueryGradeSubjects(ctx, gradeID)
	return subjects, errors.Wrap(err, "querying grade subjects")
}

// Academic Years

func (svc *Service) CreateAcademicYear(ctx context.Context, ny NewAcademicYear) (AcademicYear, error) {
	if err := checkUnique(func() (bool, error) { return svc.repo.AcademicYearNameExists(ctx, ny.Name, 0) },
		ErrAcademicYearExists, "checking academic year name"); err != nil {
		return AcademicYear{}, err
	}
	t := now()
	y, err := svc.repo.CreateAcademicYear(ctx, AcademicYear{
		Name:      ny.Name,
		StartDate: ny.StartDate,
		EndDate:   ny.EndDate,
		CreatedAt: t,
		UpdatedAt: t,
	})
	return y, errors.Wrap(err, "creating academic year")
}

func (svc *Service) GetAcademicYear(ctx context.Context, id int64) (AcademicYear, error) {
	return svc.repo.GetAcademicYearByID(ctx, id)
}

func (svc *Service) GetCurrentAcademicYear(ctx context.Context) (AcademicYear, error) {
	return svc.repo.GetCurrentAcademicYear(ctx)
}

func (svc *Service) QueryAcademicYears(ctx context.Context, filter AcademicYearFilter) ([]AcademicYear, core.Pagination, error) {
	filter.Clean()
	years, total, err := svc.repo.QueryAcademicYears(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying academic years")
	}
	return years, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateAcademicYear(ctx context.Context, id int64, uy UpdateAcademicYear) (AcademicYear, error) {
	if uy.IsEmpty() {
		return AcademicYear{}, ErrNoFieldsToUpdate
	}
	y, err := svc.repo.GetAcademicYearByID(ctx, id)
	if err != nil {
		return AcademicYear{}, err
	}

	if uy.Name != nil && *uy.Name != y.Name {
		if err := checkUnique(func() (bool, error) { return svc.repo.AcademicYearNameExists(ctx, *uy.Name, id) },
			ErrAcademicYearExists, "checking academic year name"); err != nil {
			return AcademicYear{}, err
		}
	}
	if uy.StartDate != nil {
		y.StartDate = *uy.StartDate
	}
	if uy.EndDate != nil {
		y.EndDate = *uy.EndDate
	}
	if err := checkPeriod(y.StartDate, y.EndDate); err != nil {
		return AcademicYear{}, err
	}

	y, err = svc.repo.UpdateAcademicYear(ctx, id, uy, now())
	return y, errors.Wrap(err, "updating academic year")
}

// SetCurrentAcademicYear makes `id` the only current academic year.
func (svc *Service) SetCurrentAcademicYear(ctx context.Context, id int64) (AcademicYear, error) {
	if _, err := svc.repo.GetAcademicYearByID(ctx, id); err != nil {
		return AcademicYear{}, err
	}
	if err := svc.repo.SetCurrentAcademicYear(ctx, id); err != nil {
		return AcademicYear{}, errors.Wrap(err, "setting current academic year")
	}
	return svc.repo.GetAcademicYearByID(ctx, id)
}

func (svc *Service) DeleteAcademicYear(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetAcademicYearByID(ctx, id); err != nil {
		return err
	}
	if err := checkNoDependents(func() (int, error) { return svc.repo.CountAcademicYearTerms(ctx, id) },
		ErrAcademicYearHasTerms, "counting academic year terms"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteAcademicYear(ctx, id), "deleting academic year")
}

// Terms

func (svc *Service) CreateTerm(ctx context.Context, nt NewTerm) (Term, error) {
	if _, err := svc.repo.GetAcademicYearByID(ctx, nt.AcademicYearID); err != nil {
		return Term{}, err
	}
	if err := checkUnique(
		func() (bool, error) { return svc.repo.TermNameExists(ctx, nt.AcademicYearID, nt.Name, 0) },
		ErrTermNameExists, "checking term name"); err != nil {
		return Term{}, err
	}
	t := now()
	term, err := svc.repo.CreateTerm(ctx, Term{
		AcademicYearID: nt.AcademicYearID,
		Name:           nt.Name,
		StartDate:      nt.StartDate,
		EndDate:        nt.EndDate,
		CreatedAt:      t,
		UpdatedAt:      t,
	})
	return term, errors.Wrap(err, "creating term")
}

func (svc *Service) GetTerm(ctx context.Context, id int64) (Term, error) {
	return svc.repo.GetTermByID(ctx, id)
}

func (svc *Service) GetCurrentTerm(ctx context.Context) (Term, error) {
	return svc.repo.GetCurrentTerm(ctx)
}

func (svc *Service) QueryTerms(ctx context.Context, filter TermFilter) ([]Term, core.Pagination, error) {
	filter.Clean()
	terms, total, err := svc.repo.QueryTerms(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying terms")
	}
	return terms, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateTerm(ctx context.Context, id int64, ut UpdateTerm) (Term, error) {
	if ut.IsEmpty() {
		return Term{}, ErrNoFieldsToUpdate
	}
	term, err := svc.repo.GetTermByID(ctx, id)
	if err != nil {
		return Term{}, err
	}

	if ut.Name != nil && *ut.Name != term.Name {
		if err := checkUnique(
			func() (bool, error) { return svc.repo.TermNameExists(ctx, term.AcademicYearID, *ut.Name, id) },
			ErrTermNameExists, "checking term name"); err != nil {
			return Term{}, err
		}
	}
	if ut.StartDate != nil {
		term.StartDate = *ut.StartDate
	}
	if ut.EndDate != nil {
		term.EndDate = *ut.EndDate
	}
	if err := checkPeriod(term.StartDate, term.EndDate); err != nil {
		return Term{}, err
	}

	term, err = svc.repo.UpdateTerm(ctx, id, ut, now())
	return term, errors.Wrap(err, "updating term")
}

// SetCurrentTerm makes `id` the only current term.
func (svc *Service) SetCurrentTerm(ctx context.Context, id int64) (Term, error) {
	if _, err := svc.repo.GetTermByID(ctx, id); err != nil {
		return Term{}, err
	}
	if err := svc.repo.SetCurrentTerm(ctx, id); err != nil {
		return Term{}, errors.Wrap(err, "setting current term")
	}
	return svc.repo.GetTermByID(ctx, id)
}

func (svc *Service) DeleteTerm(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetTermByID(ctx, id); err != nil {
		return err
	}
	if err := checkNoDependents(func() (int, error) { return svc.repo.CountTermExaminations(ctx, id) },
		ErrTermHasExaminations, "counting term examinations"); err != nil {
		return err
	}
	return errors.Wrap(svc.repo.DeleteTerm(ctx, id), "deleting term")
}
