package inmemdb

import (
	"context"
	"time"

	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/attendance"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/people"
)

var (
	gradeOrderings = orderings[academic.Grade]{
		"name":       func(a, b academic.Grade) int { return compareStrings(a.Name, b.Name) },
		"level":      func(a, b academic.Grade) int { return a.Level - b.Level },
		"created_at": func(a, b academic.Grade) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	sectionOrderings = orderings[academic.Section]{
		"name":       func(a, b academic.Section) int { return compareStrings(a.Name, b.Name) },
		"capacity":   func(a, b academic.Section) int { return a.Capacity - b.Capacity },
		"grade_name": func(a, b academic.Section) int { return compareStrings(a.GradeName, b.GradeName) },
		"created_at": func(a, b academic.Section) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	subjectOrderings = orderings[academic.Subject]{
		"name":       func(a, b academic.Subject) int { return compareStrings(a.Name, b.Name) },
		"code":       func(a, b academic.Subject) int { return compareStrings(a.Code, b.Code) },
		"created_at": func(a, b academic.Subject) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	yearOrderings = orderings[academic.AcademicYear]{
		"name":       func(a, b academic.AcademicYear) int { return compareStrings(a.Name, b.Name) },
		"start_date": func(a, b academic.AcademicYear) int { return compareDates(a.StartDate, b.StartDate) },
		"created_at": func(a, b academic.AcademicYear) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	termOrderings = orderings[academic.Term]{
		"name":       func(a, b academic.Term) int { return compareStrings(a.Name, b.Name) },
		"start_date": func(a, b academic.Term) int { return compareDates(a.StartDate, b.StartDate) },
		"created_at": func(a, b academic.Term) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
)

type academicRepository struct {
	db *DB
}

var _ academic.Repository = (*academicRepository)(nil) // interface compliance check

func NewAcademicRepository(db *DB) *academicRepository {
	return &academicRepository{db: db}
}

// Grades

func (repo *academicRepository) GradeNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return exists(repo.db.grades, excludeID, func(g academic.Grade) bool { return g.Name == name }), nil
}

func (repo *academicRepository) GradeLevelExists(_ context.Context, level int, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return exists(repo.db.grades, excludeID, func(g academic.Grade) bool { return g.Level == level }), nil
}

func (db *DB) checkGrade(g academic.Grade) error {
	switch {
	case exists(db.grades, g.ID, func(o academic.Grade) bool { return o.Name == g.Name }):
		return academic.ErrGradeNameExists
	case exists(db.grades, g.ID, func(o academic.Grade) bool { return o.Level == g.Level }):
		return academic.ErrGradeLevelExists
	}
	return nil
}

func (repo *academicRepository) CreateGrade(_ context.Context, g academic.Grade) (academic.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.checkGrade(g); err != nil {
		return academic.Grade{}, err
	}
	g.ID = repo.db.nextID()
	repo.db.grades[g.ID] = &g
	return g, nil
}

func (repo *academicRepository) GetGradeByID(_ context.Context, id int64) (academic.Grade, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if g, ok := repo.db.grades[id]; ok {
		return *g, nil
	}
	return academic.Grade{}, academic.ErrGradeNotFound
}

func (repo *academicRepository) QueryGrades(_ context.Context, filter academic.GradeFilter) ([]academic.Grade, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	grades := where(rows(repo.db.grades), func(g academic.Grade) bool {
		return filter.Search == "" || matches(filter.Search, g.Name, g.Description)
	})
	grades, total := paginate(grades, filter.PageQuery, gradeOrderings, "level", true)
	return grades, total, nil
}

func (repo *academicRepository) UpdateGrade(
	_ context.Context,
	id int64,
	ug academic.UpdateGrade,
	updatedAt time.Time,
) (academic.Grade, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.grades[id]
	if !ok {
		return academic.Grade{}, academic.ErrGradeNotFound
	}
	g := *orig
	assign(&g.Name, ug.Name)
	assign(&g.Level, ug.Level)
	assign(&g.Description, ug.Description)
	g.UpdatedAt = updatedAt
	if err := repo.db.checkGrade(g); err != nil {
		return academic.Grade{}, err
	}
	repo.db.grades[id] = &g
	return g, nil
}

func (repo *academicRepository) DeleteGrade(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.grades[id]; !ok {
		return academic.ErrGradeNotFound
	}
	if repo.db.gradeReferenced(id) {
		return errReferenced
	}
	delete(repo.db.grades, id)
	return nil
}

func (db *DB) gradeReferenced(id int64) bool {
	for _, gs := range db.gradeSubjects {
		if gs.GradeID == id {
			return true
		}
	}
	return count(db.sections, func(s academic.Section) bool { return s.GradeID == id }) > 0 ||
		count(db.examinations, func(e exam.Examination) bool { return e.GradeID == id }) > 0 ||
		count(db.feeStructures, func(fs payment.FeeStructure) bool { return fs.GradeID == id }) > 0
}

func (repo *academicRepository) CountGradeSections(_ context.Context, gradeID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.sections, func(s academic.Section) bool { return s.GradeID == gradeID }), nil
}

// Sections

// section fills the read-only attributes of `s`.
func (db *DB) section(s academic.Section) academic.Section {
	if g, ok := db.grades[s.GradeID]; ok {
		s.GradeName = g.Name
	}
	if y, ok := db.years[s.AcademicYearID]; ok {
		s.AcademicYearName = y.Name
	}
	s.StudentCount = count(db.students, func(st people.Student) bool { return eqPtr(st.SectionID, s.ID) })
	return s
}

func (db *DB) sectionNameExists(gradeID, yearID int64, name string, excludeID int64) bool {
	return exists(db.sections, excludeID, func(s academic.Section) bool {
		return s.GradeID == gradeID && s.AcademicYearID == yearID && s.Name == name
	})
}

func (repo *academicRepository) SectionNameExists(_ context.Context, gradeID, yearID int64, name string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.sectionNameExists(gradeID, yearID, name, excludeID), nil
}

func (repo *academicRepository) TeacherExists(_ context.Context, teacherID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	_, ok := repo.db.teachers[teacherID]
	return ok, nil
}

func (db *DB) checkSectionRefs(s academic.Section) error {
	_, gradeOK := db.grades[s.GradeID]
	_, yearOK := db.years[s.AcademicYearID]
	teacherOK := true
	if s.ClassTeacherID != nil {
		_, teacherOK = db.teachers[*s.ClassTeacherID]
	}
	if !gradeOK || !yearOK || !teacherOK {
		return errReferenced
	}
	return nil
}

func (repo *academicRepository) CreateSection(_ context.Context, s academic.Section) (academic.Section, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.sectionNameExists(s.GradeID, s.AcademicYearID, s.Name, 0) {
		return academic.Section{}, academic.ErrSectionNameExists
	}
	if err := repo.db.checkSectionRefs(s); err != nil {
		return academic.Section{}, err
	}
	s.ID = repo.db.nextID()
	repo.db.sections[s.ID] = &s
	return repo.db.section(s), nil
}

func (repo *academicRepository) GetSectionByID(_ context.Context, id int64) (academic.Section, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.sections[id]; ok {
		return repo.db.section(*s), nil
	}
	return academic.Section{}, academic.ErrSectionNotFound
}

func (repo *academicRepository) QuerySections(_ context.Context, filter academic.SectionFilter) ([]academic.Section, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	sections := where(rows(repo.db.sections), func(s academic.Section) bool {
		return (filter.Search == "" || matches(filter.Search, s.Name, s.Room)) &&
			(filter.GradeID == 0 || s.GradeID == filter.GradeID) &&
			(filter.AcademicYearID == 0 || s.AcademicYearID == filter.AcademicYearID)
	})
	for i := range sections {
		sections[i] = repo.db.section(sections[i])
	}
	sections, total := paginate(sections, filter.PageQuery, sectionOrderings, "name", true)
	return sections, total, nil
}

func (repo *academicRepository) UpdateSection(
	_ context.Context,
	id int64,
	us academic.UpdateSection,
	updatedAt time.Time,
) (academic.Section, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.sections[id]
	if !ok {
		return academic.Section{}, academic.ErrSectionNotFound
	}
	s := *orig
	assign(&s.Name, us.Name)
	assign(&s.Capacity, us.Capacity)
	assign(&s.Room, us.Room)
	if us.ClassTeacherID != nil {
		s.ClassTeacherID = us.ClassTeacherID
	}
	s.UpdatedAt = updatedAt
	if repo.db.sectionNameExists(s.GradeID, s.AcademicYearID, s.Name, id) {
		return academic.Section{}, academic.ErrSectionNameExists
	}
	if err := repo.db.checkSectionRefs(s); err != nil {
		return academic.Section{}, err
	}
	repo.db.sections[id] = &s
	return repo.db.section(s), nil
}

func (repo *academicRepository) DeleteSection(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.sections[id]; !ok {
		return academic.ErrSectionNotFound
	}
	if count(repo.db.students, func(st people.Student) bool { return eqPtr(st.SectionID, id) }) > 0 ||
		count(repo.db.attendance, func(a attendance.Attendance) bool { return a.SectionID == id }) > 0 ||
		count(repo.db.examinations, func(e exam.Examination) bool { return e.SectionID == id }) > 0 {
		return errReferenced
	}
	delete(repo.db.sections, id)
	return nil
}

func (repo *academicRepository) CountSectionStudents(_ context.Context, sectionID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.students, func(st people.Student) bool { return eqPtr(st.SectionID, sectionID) }), nil
}

// Subjects

func (repo *academicRepository) SubjectCodeExists(_ context.Context, code string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return exists(repo.db.subjects, excludeID, func(s academic.Subject) bool { return s.Code == code }), nil
}

func (repo *academicRepository) CreateSubject(_ context.Context, s academic.Subject) (academic.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if exists(repo.db.subjects, 0, func(o academic.Subject) bool { return o.Code == s.Code }) {
		return academic.Subject{}, academic.ErrSubjectCodeExists
	}
	s.ID = repo.db.nextID()
	repo.db.subjects[s.ID] = &s
	return s, nil
}

func (repo *academicRepository) GetSubjectByID(_ context.Context, id int64) (academic.Subject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.subjects[id]; ok {
		return *s, nil
	}
	return academic.Subject{}, academic.ErrSubjectNotFound
}

func (db *DB) gradeHasSubject(gradeID, subjectID int64) bool {
	for _, gs := range db.gradeSubjects {
		if gs.GradeID == gradeID && gs.SubjectID == subjectID {
			return true
		}
	}
	return false
}

func (repo *academicRepository) QuerySubjects(_ context.Context, filter academic.SubjectFilter) ([]academic.Subject, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := where(rows(repo.db.subjects), func(s academic.Subject) bool {
		return (filter.Search == "" || matches(filter.Search, s.Name, s.Code)) &&
			(filter.GradeID == 0 || repo.db.gradeHasSubject(filter.GradeID, s.ID))
	})
	subjects, total := paginate(subjects, filter.PageQuery, subjectOrderings, "name", true)
	return subjects, total, nil
}

func (repo *academicRepository) UpdateSubject(
	_ context.Context,
	id int64,
	us academic.UpdateSubject,
	updatedAt time.Time,
) (academic.Subject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.subjects[id]
	if !ok {
		return academic.Subject{}, academic.ErrSubjectNotFound
	}
	s := *orig
	assign(&s.Name, us.Name)
	assign(&s.Code, us.Code)
	assign(&s.Description, us.Description)
	s.UpdatedAt = updatedAt
	if exists(repo.db.subjects, id, func(o academic.Subject) bool { return o.Code == s.Code }) {
		return academic.Subject{}, academic.ErrSubjectCodeExists
	}
	repo.db.subjects[id] = &s
	return s, nil
}

func (repo *academicRepository) DeleteSubject(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.subjects[id]; !ok {
		return academic.ErrSubjectNotFound
	}
	if repo.db.countSubjectGrades(id) > 0 ||
		count(repo.db.examinations, func(e exam.Examination) bool { return e.SubjectID == id }) > 0 {
		return errReferenced
	}
	delete(repo.db.subjects, id)
	return nil
}

func (db *DB) countSubjectGrades(subjectID int64) int {
	n := 0
	for _, gs := range db.gradeSubjects {
		if gs.SubjectID == subjectID {
			n++
		}
	}
	return n
}

func (repo *academicRepository) CountSubjectGrades(_ context.Context, subjectID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.countSubjectGrades(subjectID), nil
}

func (db *DB) gradeSubject(gs academic.GradeSubject) academic.GradeSubject {
	if s, ok := db.subjects[gs.SubjectID]; ok {
		gs.SubjectName, gs.SubjectCode = s.Name, s.Code
	}
	return gs
}

func (repo *academicRepository) CreateGradeSubject(_ context.Context, gs academic.GradeSubject) (academic.GradeSubject, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.gradeHasSubject(gs.GradeID, gs.SubjectID) {
		return academic.GradeSubject{}, academic.ErrSubjectAlreadyInGrade
	}
	_, gradeOK := repo.db.grades[gs.GradeID]
	_, subjectOK := repo.db.subjects[gs.SubjectID]
	if !gradeOK || !subjectOK {
		return academic.GradeSubject{}, errReferenced
	}
	repo.db.gradeSubjects = append(repo.db.gradeSubjects, gs)
	return repo.db.gradeSubject(gs), nil
}

func (repo *academicRepository) DeleteGradeSubject(_ context.Context, gradeID, subjectID int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for i, gs := range repo.db.gradeSubjects {
		if gs.GradeID == gradeID && gs.SubjectID == subjectID {
			repo.db.gradeSubjects = append(repo.db.gradeSubjects[:i], repo.db.gradeSubjects[i+1:]...)
			return nil
		}
	}
	return academic.ErrGradeSubjectNotFound
}

func (repo *academicRepository) QueryGradeSubjects(_ context.Context, gradeID int64) ([]academic.GradeSubject, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	subjects := make([]academic.GradeSubject, 0)
	for _, gs := range repo.db.gradeSubjects {
		if gs.GradeID == gradeID {
			subjects = append(subjects, repo.db.gradeSubject(gs))
		}
	}
	subjects, _ = paginate(subjects, pageAll, orderings[academic.GradeSubject]{
		"subject_name": func(a, b academic.GradeSubject) int { return compareStrings(a.SubjectName, b.SubjectName) },
	}, "subject_name", true)
	return subjects, nil
}

// Academic Years

func (repo *academicRepository) AcademicYearNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return exists(repo.db.years, excludeID, func(y academic.AcademicYear) bool { return y.Name == name }), nil
}

func (repo *academicRepository) CreateAcademicYear(_ context.Context, y academic.AcademicYear) (academic.AcademicYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if exists(repo.db.years, 0, func(o academic.AcademicYear) bool { return o.Name == y.Name }) {
		return academic.AcademicYear{}, academic.ErrAcademicYearExists
	}
	y.ID = repo.db.nextID()
	repo.db.years[y.ID] = &y
	return y, nil
}

func (repo *academicRepository) GetAcademicYearByID(_ context.Context, id int64) (academic.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if y, ok := repo.db.years[id]; ok {
		return *y, nil
	}
	return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
}

func (repo *academicRepository) GetCurrentAcademicYear(_ context.Context) (academic.AcademicYear, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, y := range repo.db.years {
		if y.IsCurrent {
			return *y, nil
		}
	}
	return academic.AcademicYear{}, academic.ErrNoCurrentYear
}

func (repo *academicRepository) QueryAcademicYears(_ context.Context, filter academic.AcademicYearFilter) ([]academic.AcademicYear, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	years := where(rows(repo.db.years), func(y academic.AcademicYear) bool {
		return filter.Search == "" || matches(filter.Search, y.Name)
	})
	years, total := paginate(years, filter.PageQuery, yearOrderings, "start_date", false)
	return years, total, nil
}

func (repo *academicRepository) UpdateAcademicYear(
	_ context.Context,
	id int64,
	uy academic.UpdateAcademicYear,
	updatedAt time.Time,
) (academic.AcademicYear, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.years[id]
	if !ok {
		return academic.AcademicYear{}, academic.ErrAcademicYearNotFound
	}
	y := *orig
	assign(&y.Name, uy.Name)
	assign(&y.StartDate, uy.StartDate)
	assign(&y.EndDate, uy.EndDate)
	y.UpdatedAt = updatedAt
	if exists(repo.db.years, id, func(o academic.AcademicYear) bool { return o.Name == y.Name }) {
		return academic.AcademicYear{}, academic.ErrAcademicYearExists
	}
	repo.db.years[id] = &y
	return y, nil
}

func (repo *academicRepository) SetCurrentAcademicYear(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, y := range repo.db.years {
		y.IsCurrent = y.ID == id
	}
	return nil
}

func (repo *academicRepository) DeleteAcademicYear(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.years[id]; !ok {
		return academic.ErrAcademicYearNotFound
	}
	if count(repo.db.terms, func(t academic.Term) bool { return t.AcademicYearID == id }) > 0 ||
		count(repo.db.sections, func(s academic.Section) bool { return s.AcademicYearID == id }) > 0 ||
		count(repo.db.examinations, func(e exam.Examination) bool { return e.AcademicYearID == id }) > 0 ||
		count(repo.db.feeStructures, func(fs payment.FeeStructure) bool { return fs.AcademicYearID == id }) > 0 {
		return errReferenced
	}
	delete(repo.db.years, id)
	return nil
}

func (repo *academicRepository) CountAcademicYearTerms(_ context.Context, yearID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.terms, func(t academic.Term) bool { return t.AcademicYearID == yearID }), nil
}

// Terms

func (db *DB) term(t academic.Term) academic.Term {
	if y, ok := db.years[t.AcademicYearID]; ok {
		t.AcademicYearName = y.Name
	}
	return t
}

func (db *DB) termNameExists(yearID int64, name string, excludeID int64) bool {
	return exists(db.terms, excludeID, func(t academic.Term) bool { return t.AcademicYearID == yearID && t.Name == name })
}

func (repo *academicRepository) TermNameExists(_ context.Context, yearID int64, name string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.termNameExists(yearID, name, excludeID), nil
}

func (repo *academicRepository) CreateTerm(_ context.Context, t academic.Term) (academic.Term, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.termNameExists(t.AcademicYearID, t.Name, 0) {
		return academic.Term{}, academic.ErrTermNameExists
	}
	if _, ok := repo.db.years[t.AcademicYearID]; !ok {
		return academic.Term{}, errReferenced
	}
	t.ID = repo.db.nextID()
	repo.db.terms[t.ID] = &t
	return repo.db.term(t), nil
}

func (repo *academicRepository) GetTermByID(_ context.Context, id int64) (academic.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if t, ok := repo.db.terms[id]; ok {
		return repo.db.term(*t), nil
	}
	return academic.Term{}, academic.ErrTermNotFound
}

func (repo *academicRepository) GetCurrentTerm(_ context.Context) (academic.Term, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, t := range repo.db.terms {
		if t.IsCurrent {
			return repo.db.term(*t), nil
		}
	}
	return academic.Term{}, academic.ErrNoCurrentTerm
}

func (repo *academicRepository) QueryTerms(_ context.Context, filter academic.TermFilter) ([]academic.Term, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	terms := where(rows(repo.db.terms), func(t academic.Term) bool {
		return (filter.Search == "" || matches(filter.Search, t.Name)) &&
			(filter.AcademicYearID == 0 || t.AcademicYearID == filter.AcademicYearID)
	})
	for i := range terms {
		terms[i] = repo.db.term(terms[i])
	}
	terms, total := paginate(terms, filter.PageQuery, termOrderings, "start_date", true)
	return terms, total, nil
}

func (repo *academicRepository) UpdateTerm(
	_ context.Context,
	id int64,
	ut academic.UpdateTerm,
	updatedAt time.Time,
) (academic.Term, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.terms[id]
	if !ok {
		return academic.Term{}, academic.ErrTermNotFound
	}
	t := *orig
	assign(&t.Name, ut.Name)
	assign(&t.StartDate, ut.StartDate)
	assign(&t.EndDate, ut.EndDate)
	t.UpdatedAt = updatedAt
	if repo.db.termNameExists(t.AcademicYearID, t.Name, id) {
		return academic.Term{}, academic.ErrTermNameExists
	}
	repo.db.terms[id] = &t
	return repo.db.term(t), nil
}

func (repo *academicRepository) SetCurrentTerm(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, t := range repo.db.terms {
		t.IsCurrent = t.ID == id
	}
	return nil
}

func (repo *academicRepository) DeleteTerm(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.terms[id]; !ok {
		return academic.ErrTermNotFound
	}
	if count(repo.db.examinations, func(e exam.Examination) bool { return e.TermID == id }) > 0 ||
		count(repo.db.feeStructures, func(fs payment.FeeStructure) bool { return fs.TermID == id }) > 0 {
		return errReferenced
	}
	delete(repo.db.terms, id)
	return nil
}

func (repo *academicRepository) CountTermExaminations(_ context.Context, termID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.examinations, func(e exam.Examination) bool { return e.TermID == termID }), nil
}
