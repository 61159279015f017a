package inmemdb

import (
	"cmp"
	"context"

	"github.com/trezcool/shule/core/exam"
)

var (
	examTypeOrderings = orderings[exam.ExamType]{
		"name":       func(a, b exam.ExamType) int { return compareStrings(a.Name, b.Name) },
		"weight":     func(a, b exam.ExamType) int { return cmp.Compare(a.Weight, b.Weight) },
		"created_at": func(a, b exam.ExamType) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	examinationOrderings = orderings[exam.Examination]{
		"title":       func(a, b exam.Examination) int { return compareStrings(a.Title, b.Title) },
		"exam_date":   func(a, b exam.Examination) int { return compareDates(a.ExamDate, b.ExamDate) },
		"total_marks": func(a, b exam.Examination) int { return cmp.Compare(a.TotalMarks, b.TotalMarks) },
		"created_at":  func(a, b exam.Examination) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
)

type examRepository struct {
	db *DB
}

var _ exam.Repository = (*examRepository)(nil) // interface compliance check

func NewExamRepository(db *DB) *examRepository {
	return &examRepository{db: db}
}

// Exam Types

func (db *DB) examTypeNameExists(name string, excludeID int64) bool {
	return exists(db.examTypes, excludeID, func(et exam.ExamType) bool { return et.Name == name })
}

func (repo *examRepository) ExamTypeNameExists(_ context.Context, name string, excludeID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.examTypeNameExists(name, excludeID), nil
}

func (repo *examRepository) CreateExamType(_ context.Context, et exam.ExamType) (exam.ExamType, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.examTypeNameExists(et.Name, 0) {
		return exam.ExamType{}, exam.ErrExamTypeNameExists
	}
	et.ID = repo.db.nextID()
	repo.db.examTypes[et.ID] = &et
	return et, nil
}

func (repo *examRepository) GetExamTypeByID(_ context.Context, id int64) (exam.ExamType, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if et, ok := repo.db.examTypes[id]; ok {
		return *et, nil
	}
	return exam.ExamType{}, exam.ErrExamTypeNotFound
}

func (repo *examRepository) QueryExamTypes(_ context.Context, filter exam.ExamTypeFilter) ([]exam.ExamType, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	types := where(rows(repo.db.examTypes), func(et exam.ExamType) bool {
		return filter.Search == "" || matches(filter.Search, et.Name, et.Description)
	})
	types, total := paginate(types, filter.PageQuery, examTypeOrderings, "name", true)
	return types, total, nil
}

func (repo *examRepository) UpdateExamType(_ context.Context, et exam.ExamType) (exam.ExamType, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.examTypes[et.ID]
	if !ok {
		return exam.ExamType{}, exam.ErrExamTypeNotFound
	}
	if repo.db.examTypeNameExists(et.Name, et.ID) {
		return exam.ExamType{}, exam.ErrExamTypeNameExists
	}
	et.CreatedAt = orig.CreatedAt
	repo.db.examTypes[et.ID] = &et
	return et, nil
}

func (repo *examRepository) DeleteExamType(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.examTypes[id]; !ok {
		return exam.ErrExamTypeNotFound
	}
	if count(repo.db.examinations, func(e exam.Examination) bool { return e.ExamTypeID == id }) > 0 {
		return errReferenced
	}
	delete(repo.db.examTypes, id)
	return nil
}

func (repo *examRepository) CountExamTypeExaminations(_ context.Context, examTypeID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.examinations, func(e exam.Examination) bool { return e.ExamTypeID == examTypeID }), nil
}

// Examinations

func (db *DB) examination(e exam.Examination) exam.Examination {
	if et, ok := db.examTypes[e.ExamTypeID]; ok {
		e.ExamTypeName = et.Name
	}
	if s, ok := db.subjects[e.SubjectID]; ok {
		e.SubjectName = s.Name
	}
	if g, ok := db.grades[e.GradeID]; ok {
		e.GradeName = g.Name
	}
	if sec, ok := db.sections[e.SectionID]; ok {
		e.SectionName = sec.Name
	}
	return e
}

func (db *DB) checkExaminationRefs(e exam.Examination) error {
	_, typeOK := db.examTypes[e.ExamTypeID]
	_, subjectOK := db.subjects[e.SubjectID]
	_, gradeOK := db.grades[e.GradeID]
	_, sectionOK := db.sections[e.SectionID]
	_, yearOK := db.years[e.AcademicYearID]
	_, termOK := db.terms[e.TermID]
	if !typeOK || !subjectOK || !gradeOK || !sectionOK || !yearOK || !termOK {
		return errReferenced
	}
	return nil
}

func (repo *examRepository) CreateExamination(_ context.Context, e exam.Examination) (exam.Examination, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if err := repo.db.checkExaminationRefs(e); err != nil {
		return exam.Examination{}, err
	}
	e.ID = repo.db.nextID()
	repo.db.examinations[e.ID] = &e
	return repo.db.examination(e), nil
}

func (repo *examRepository) GetExaminationByID(_ context.Context, id int64) (exam.Examination, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if e, ok := repo.db.examinations[id]; ok {
		return repo.db.examination(*e), nil
	}
	return exam.Examination{}, exam.ErrExaminationNotFound
}

func (repo *examRepository) QueryExaminations(_ context.Context, filter exam.ExaminationFilter) ([]exam.Examination, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	exams := where(rows(repo.db.examinations), func(e exam.Examination) bool {
		return (filter.Search == "" || matches(filter.Search, e.Title, e.Description)) &&
			(filter.ExamTypeID == 0 || e.ExamTypeID == filter.ExamTypeID) &&
			(filter.SubjectID == 0 || e.SubjectID == filter.SubjectID) &&
			(filter.GradeID == 0 || e.GradeID == filter.GradeID) &&
			(filter.SectionID == 0 || e.SectionID == filter.SectionID) &&
			(filter.AcademicYearID == 0 || e.AcademicYearID == filter.AcademicYearID) &&
			(filter.TermID == 0 || e.TermID == filter.TermID) &&
			inPeriod(e.ExamDate, filter.StartDate, filter.EndDate)
	})
	for i := range exams {
		exams[i] = repo.db.examination(exams[i])
	}
	exams, total := paginate(exams, filter.PageQuery, examinationOrderings, "exam_date", false)
	return exams, total, nil
}

func (repo *examRepository) UpdateExamination(_ context.Context, e exam.Examination) (exam.Examination, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.examinations[e.ID]
	if !ok {
		return exam.Examination{}, exam.ErrExaminationNotFound
	}
	if err := repo.db.checkExaminationRefs(e); err != nil {
		return exam.Examination{}, err
	}
	e.CreatedBy, e.CreatedAt = orig.CreatedBy, orig.CreatedAt
	repo.db.examinations[e.ID] = &e
	return repo.db.examination(e), nil
}

func (repo *examRepository) DeleteExamination(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.examinations[id]; !ok {
		return exam.ErrExaminationNotFound
	}
	if count(repo.db.results, func(r exam.Result) bool { return r.ExaminationID == id }) > 0 {
		return errReferenced
	}
	delete(repo.db.examinations, id)
	return nil
}

func (repo *examRepository) CountExaminationResults(_ context.Context, examinationID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.results, func(r exam.Result) bool { return r.ExaminationID == examinationID }), nil
}

func (repo *examRepository) MaxExaminationMarks(_ context.Context, examinationID int64) (float64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var max float64
	for _, r := range repo.db.results {
		if r.ExaminationID == examinationID && r.MarksObtained > max {
			max = r.MarksObtained
		}
	}
	return max, nil
}

// Results

func (db *DB) result(r exam.Result) exam.Result {
	if st, ok := db.students[r.StudentID]; ok {
		r.StudentName = db.person(st.UserID).FullName()
		r.AdmissionNumber = st.AdmissionNumber
	}
	if e, ok := db.examinations[r.ExaminationID]; ok {
		e := db.examination(*e)
		r.ExamTitle, r.ExamDate, r.SubjectName, r.ExamTypeName = e.Title, e.ExamDate, e.SubjectName, e.ExamTypeName
		r.TotalMarks, r.PassingMarks = e.TotalMarks, e.PassingMarks
	}
	return r
}

func (db *DB) resultExists(examinationID, studentID, excludeID int64) bool {
	return exists(db.results, excludeID, func(r exam.Result) bool {
		return r.ExaminationID == examinationID && r.StudentID == studentID
	})
}

func (repo *examRepository) ResultExists(_ context.Context, examinationID, studentID int64) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.resultExists(examinationID, studentID, 0), nil
}

func (repo *examRepository) CreateResult(_ context.Context, r exam.Result) (exam.Result, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.resultExists(r.ExaminationID, r.StudentID, 0) {
		return exam.Result{}, exam.ErrResultExists
	}
	_, examOK := repo.db.examinations[r.ExaminationID]
	_, studentOK := repo.db.students[r.StudentID]
	if !examOK || !studentOK {
		return exam.Result{}, errReferenced
	}
	r.ID = repo.db.nextID()
	repo.db.results[r.ID] = &r
	return repo.db.result(r), nil
}

func (repo *examRepository) GetResultByID(_ context.Context, id int64) (exam.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if r, ok := repo.db.results[id]; ok {
		return repo.db.result(*r), nil
	}
	return exam.Result{}, exam.ErrResultNotFound
}

func (repo *examRepository) QueryResults(_ context.Context, filter exam.ResultFilter) ([]exam.Result, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	results := where(rows(repo.db.results), func(r exam.Result) bool {
		if filter.ExaminationID > 0 && r.ExaminationID != filter.ExaminationID {
			return false
		}
		if filter.StudentID > 0 && r.StudentID != filter.StudentID {
			return false
		}
		e, ok := repo.db.examinations[r.ExaminationID]
		return ok && (filter.AcademicYearID == 0 || e.AcademicYearID == filter.AcademicYearID) &&
			(filter.TermID == 0 || e.TermID == filter.TermID)
	})
	for i := range results {
		results[i] = repo.db.result(results[i])
	}
	results, _ = paginate(results, pageAll, orderings[exam.Result]{
		"exam_date": func(a, b exam.Result) int {
			if c := compareDates(b.ExamDate, a.ExamDate); c != 0 {
				return c
			}
			return compareStrings(a.StudentName, b.StudentName)
		},
	}, "exam_date", true)
	return results, nil
}

func (repo *examRepository) UpdateResult(_ context.Context, r exam.Result) (exam.Result, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.results[r.ID]
	if !ok {
		return exam.Result{}, exam.ErrResultNotFound
	}
	orig.MarksObtained, orig.Grade, orig.Remarks = r.MarksObtained, r.Grade, r.Remarks
	orig.EnteredBy, orig.UpdatedAt = r.EnteredBy, r.UpdatedAt
	return repo.db.result(*orig), nil
}

func (repo *examRepository) DeleteResult(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.results[id]; !ok {
		return exam.ErrResultNotFound
	}
	delete(repo.db.results, id)
	return nil
}

func (repo *examRepository) ResultStats(_ context.Context, examinationID int64, passingMarks float64) (exam.Stats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	stats := exam.Stats{ExaminationID: examinationID}
	var sum float64
	for _, r := range repo.db.results {
		if r.ExaminationID != examinationID {
			continue
		}
		if stats.TotalStudents == 0 || r.MarksObtained > stats.HighestMarks {
			stats.HighestMarks = r.MarksObtained
		}
		if stats.TotalStudents == 0 || r.MarksObtained < stats.LowestMarks {
			stats.LowestMarks = r.MarksObtained
		}
		stats.TotalStudents++
		sum += r.MarksObtained
		if r.MarksObtained >= passingMarks {
			stats.Passed++
		}
	}
	if stats.TotalStudents > 0 {
		stats.AverageMarks = sum / float64(stats.TotalStudents)
	}
	stats.Failed = stats.TotalStudents - stats.Passed
	return stats, nil
}
