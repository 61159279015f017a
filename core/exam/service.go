package exam

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/people"
)

var (
	ErrExamTypeNotFound    = core.NewNotFoundError("exam type")
	ErrExaminationNotFound = core.NewNotFoundError("examination")
	ErrResultNotFound      = core.NewNotFoundError("exam result")

	ErrExamTypeNameExists = core.NewConflictError("an exam type with this name already exists")
	ErrResultExists       = core.NewConflictError("a result for this student already exists for this examination")

	ErrExamTypeHasExaminations = core.NewConflictError("cannot delete exam type with examinations")
	ErrExaminationHasResults   = core.NewConflictError("cannot delete examination with results")

	ErrSectionNotInGrade = core.NewFieldError("section_id", "section does not belong to the grade")
	ErrTermNotInYear     = core.NewFieldError("term_id", "term does not belong to the academic year")
	ErrTotalBelowResults = core.NewFieldError("total_marks", "total marks cannot be lower than recorded marks")
	ErrNoFieldsToUpdate  = core.NewValidationError(errors.New("no fields to update"))

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// exam types
		ExamTypeNameExists(ctx context.Context, name string, excludeID int64) (bool, error)
		CreateExamType(ctx context.Context, et ExamType) (ExamType, error)
		GetExamTypeByID(ctx context.Context, id int64) (ExamType, error)
		QueryExamTypes(ctx context.Context, filter ExamTypeFilter) ([]ExamType, int, error)
		UpdateExamType(ctx context.Context, et ExamType) (ExamType, error)
		DeleteExamType(ctx context.Context, id int64) error
		CountExamTypeExaminations(ctx context.Context, examTypeID int64) (int, error)

		// examinations
		CreateExamination(ctx context.Context, e Examination) (Examination, error)
		GetExaminationByID(ctx context.Context, id int64) (Examination, error)
		QueryExaminations(ctx context.Context, filter ExaminationFilter) ([]Examination, int, error)
		UpdateExamination(ctx context.Context, e Examination) (Examination, error)
		DeleteExamination(ctx context.Context, id int64) error
		CountExaminationResults(ctx context.Context, examinationID int64) (int, error)
		// MaxExaminationMarks returns the highest marks recorded for the examination, 0 without results.
		MaxExaminationMarks(ctx context.Context, examinationID int64) (float64, error)

		// results
		ResultExists(ctx context.Context, examinationID, studentID int64) (bool, error)
		CreateResult(ctx context.Context, r Result) (Result, error)
		GetResultByID(ctx context.Context, id int64) (Result, error)
		// QueryResults returns denormalized result rows, ordered by exam date then student name.
		QueryResults(ctx context.Context, filter ResultFilter) ([]Result, error)
		UpdateResult(ctx context.Context, r Result) (Result, error)
		DeleteResult(ctx context.Context, id int64) error
		// ResultStats aggregates the examination's results; `Passed` counts marks >= `passingMarks`.
		ResultStats(ctx context.Context, examinationID int64, passingMarks float64) (Stats, error)
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

func now() time.Time { return nowFunc().UTC() }

// Exam Types

func (svc *Service) CreateExamType(ctx context.Context, nt NewExamType) (ExamType, error) {
	if err := svc.checkExamTypeName(ctx, nt.Name, 0); err != nil {
		return ExamType{}, err
	}
	t := now()
	et, err := svc.repo.CreateExamType(ctx, ExamType{
		Name:        nt.Name,
		Description: nt.Description,
		Weight:      nt.Weight,
		CreatedAt:   t,
		UpdatedAt:   t,
	})
	return et, errors.Wrap(err, "creating exam type")
}

func (svc *Service) checkExamTypeName(ctx context.Context, name string, excludeID int64) error {
	exists, err := svc.repo.ExamTypeNameExists(ctx, name, excludeID)
	if err != nil {
		return errors.Wrap(err, "checking exam type name")
	}
	if exists {
		return ErrExamTypeNameExists
	}
	return nil
}

func (svc *Service) GetExamType(ctx context.Context, id int64) (ExamType, error) {
	return svc.repo.GetExamTypeByID(ctx, id)
}

func (svc *Service) QueryExamTypes(ctx context.Context, filter ExamTypeFilter) ([]ExamType, core.Pagination, error) {
	filter.Clean()
	types, total, err := svc.repo.QueryExamTypes(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying exam types")
	}
	return types, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateExamType(ctx context.Context, id int64, ut UpdateExamType) (ExamType, error) {
	if ut.IsEmpty() {
		return ExamType{}, ErrNoFieldsToUpdate
	}
	et, err := svc.repo.GetExamTypeByID(ctx, id)
	if err != nil {
		return ExamType{}, err
	}
	if ut.Name != nil && *ut.Name != et.Name {
		if err := svc.checkExamTypeName(ctx, *ut.Name, id); err != nil {
			return ExamType{}, err
		}
		et.Name = *ut.Name
	}
	if ut.Description != nil {
		et.Description = *ut.Description
	}
	if ut.Weight != nil {
		et.Weight = *ut.Weight
	}
	et.UpdatedAt = now()

	et, err = svc.repo.UpdateExamType(ctx, et)
	return et, errors.Wrap(err, "updating exam type")
}

func (svc *Service) DeleteExamType(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetExamTypeByID(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.CountExamTypeExaminations(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting exam type examinations")
	}
	if n > 0 {
		return ErrExamTypeHasExaminations
	}
	return errors.Wrap(svc.repo.DeleteExamType(ctx, id), "deleting exam type")
}

// Examinations

// checkExaminationRefs checks that every referenced row exists and that the section and term
// are consistent with the grade and academic year.
func (svc *Service) checkExaminationRefs(ctx context.Context, e Examination) error {
	if _, err := svc.repo.GetExamTypeByID(ctx, e.ExamTypeID); err != nil {
		return err
	}
	if _, err := svc.academicSvc.GetSubject(ctx, e.SubjectID); err != nil {
		return err
	}
	if _, err := svc.academicSvc.GetGrade(ctx, e.GradeID); err != nil {
		return err
	}
	sec, err := svc.academicSvc.GetSection(ctx, e.SectionID)
	if err != nil {
		return err
	}
	if sec.GradeID != e.GradeID {
		return ErrSectionNotInGrade
	}
	if _, err := svc.academicSvc.GetAcademicYear(ctx, e.AcademicYearID); err != nil {
		return err
	}
	term, err := svc.academicSvc.GetTerm(ctx, e.TermID)
	if err != nil {
		return err
	}
	if term.AcademicYearID != e.AcademicYearID {
		return ErrTermNotInYear
	}
	return nil
}

// CreateExamination creates the examination on behalf of `actorID`. `ne` must have been validated.
func (svc *Service) CreateExamination(ctx context.Context, ne NewExamination, actorID int64) (Examination, error) {
	t := now()
	e := Examination{
		Title:           ne.Title,
		ExamTypeID:      ne.ExamTypeID,
		SubjectID:       ne.SubjectID,
		GradeID:         ne.GradeID,
		SectionID:       ne.SectionID,
		AcademicYearID:  ne.AcademicYearID,
		TermID:          ne.TermID,
		ExamDate:        ne.ExamDate,
		DurationMinutes: ne.DurationMinutes,
		TotalMarks:      ne.TotalMarks,
		PassingMarks:    ne.PassingMarks,
		Description:     ne.Description,
		CreatedBy:       &actorID,
		CreatedAt:       t,
		UpdatedAt:       t,
	}
	if err := svc.checkExaminationRefs(ctx, e); err != nil {
		return Examination{}, err
	}
	e, err := svc.repo.CreateExamination(ctx, e)
	return e, errors.Wrap(err, "creating examination")
}

func (svc *Service) GetExamination(ctx context.Context, id int64) (Examination, error) {
	return svc.repo.GetExaminationByID(ctx, id)
}

func (svc *Service) QueryExaminations(ctx context.Context, filter ExaminationFilter) ([]Examination, core.Pagination, error) {
	filter.Clean()
	exams, total, err := svc.repo.QueryExaminations(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying examinations")
	}
	return exams, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateExamination(ctx context.Context, id int64, ue UpdateExamination) (Examination, error) {
	if ue.IsEmpty() {
		return Examination{}, ErrNoFieldsToUpdate
	}
	e, err := svc.repo.GetExaminationByID(ctx, id)
	if err != nil {
		return Examination{}, err
	}

	refsChanged := false
	if ue.ExamTypeID != nil && *ue.ExamTypeID != e.ExamTypeID {
		e.ExamTypeID, refsChanged = *ue.ExamTypeID, true
	}
	if ue.SubjectID != nil && *ue.SubjectID != e.SubjectID {
		e.SubjectID, refsChanged = *ue.SubjectID, true
	}
	if ue.SectionID != nil && *ue.SectionID != e.SectionID {
		e.SectionID, refsChanged = *ue.SectionID, true
	}
	if ue.TermID != nil && *ue.TermID != e.TermID {
		e.TermID, refsChanged = *ue.TermID, true
	}
	if refsChanged {
		if err := svc.checkExaminationRefs(ctx, e); err != nil {
			return Examination{}, err
		}
	}

	if ue.TotalMarks != nil {
		e.TotalMarks = *ue.TotalMarks
	}
	if ue.PassingMarks != nil {
		e.PassingMarks = *ue.PassingMarks
	}
	if err := checkMarks(e.TotalMarks, e.PassingMarks); err != nil {
		return Examination{}, err
	}
	if ue.TotalMarks != nil {
		highest, err := svc.repo.MaxExaminationMarks(ctx, id)
		if err != nil {
			return Examination{}, errors.Wrap(err, "finding highest marks")
		}
		if highest > e.TotalMarks {
			return Examination{}, ErrTotalBelowResults
		}
	}

	if ue.Title != nil {
		e.Title = *ue.Title
	}
	if ue.ExamDate != nil {
		e.ExamDate = *ue.ExamDate
	}
	if ue.DurationMinutes != nil {
		e.DurationMinutes = *ue.DurationMinutes
	}
	if ue.Description != nil {
		e.Description = *ue.Description
	}
	e.UpdatedAt = now()

	e, err = svc.repo.UpdateExamination(ctx, e)
	return e, errors.Wrap(err, "updating examination")
}

func (svc *Service) DeleteExamination(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetExaminationByID(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.CountExaminationResults(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting examination results")
	}
	if n > 0 {
		return ErrExaminationHasResults
	}
	return errors.Wrap(svc.repo.DeleteExamination(ctx, id), "deleting examination")
}

// Results

// AddResult records the marks of a student on behalf of `actorID`. `nr` must have been validated.
func (svc *Service) AddResult(ctx context.Context, nr NewResult, actorID int64) (Result, error) {
	e, err := svc.repo.GetExaminationByID(ctx, nr.ExaminationID)
	if err != nil {
		return Result{}, err
	}
	if _, err := svc.peopleSvc.GetStudent(ctx, nr.StudentID); err != nil {
		return Result{}, err
	}
	if err := checkMarksObtained(nr.MarksObtained, e.TotalMarks); err != nil {
		return Result{}, err
	}

	exists, err := svc.repo.ResultExists(ctx, nr.ExaminationID, nr.StudentID)
	if err != nil {
		return Result{}, errors.Wrap(err, "checking exam result")
	}
	if exists {
		return Result{}, ErrResultExists
	}

	t := now()
	r, err := svc.repo.CreateResult(ctx, Result{
		ExaminationID: nr.ExaminationID,
		StudentID:     nr.StudentID,
		MarksObtained: nr.MarksObtained,
		Grade:         LetterGrade(nr.MarksObtained, e.TotalMarks),
		Remarks:       nr.Remarks,
		EnteredBy:     &actorID,
		CreatedAt:     t,
		UpdatedAt:     t,
	})
	return r, errors.Wrap(err, "creating exam result")
}

func (svc *Service) GetResult(ctx context.Context, id int64) (Result, error) {
	return svc.repo.GetResultByID(ctx, id)
}

func (svc *Service) UpdateResult(ctx context.Context, id int64, ur UpdateResult, actorID int64) (Result, error) {
	if ur.IsEmpty() {
		return Result{}, ErrNoFieldsToUpdate
	}
	r, err := svc.repo.GetResultByID(ctx, id)
	if err != nil {
		return Result{}, err
	}
	if ur.MarksObtained != nil {
		e, err := svc.repo.GetExaminationByID(ctx, r.ExaminationID)
		if err != nil {
			return Result{}, errors.Wrap(err, "finding examination")
		}
		if err := checkMarksObtained(*ur.MarksObtained, e.TotalMarks); err != nil {
			return Result{}, err
		}
		r.MarksObtained = *ur.MarksObtained
		r.Grade = LetterGrade(r.MarksObtained, e.TotalMarks)
	}
	if ur.Remarks != nil {
		r.Remarks = *ur.Remarks
	}
	r.EnteredBy = &actorID
	r.UpdatedAt = now()

	r, err = svc.repo.UpdateResult(ctx, r)
	return r, errors.Wrap(err, "updating exam result")
}

func (svc *Service) DeleteResult(ctx context.Context, id int64) error {
	return svc.repo.DeleteResult(ctx, id)
}

// GetExaminationResults lists every result of the examination.
func (svc *Service) GetExaminationResults(ctx context.Context, examinationID int64) ([]Result, error) {
	if _, err := svc.repo.GetExaminationByID(ctx, examinationID); err != nil {
		return nil, err
	}
	results, err := svc.repo.QueryResults(ctx, ResultFilter{ExaminationID: examinationID})
	return results, errors.Wrap(err, "querying exam results")
}

// GetStudentResults lists the student's results, optionally narrowed to a year and/or a term.
func (svc *Service) GetStudentResults(ctx context.Context, filter ResultFilter) ([]Result, error) {
	if _, err := svc.peopleSvc.GetStudent(ctx, filter.StudentID); err != nil {
		return nil, err
	}
	filter.ExaminationID = 0
	results, err := svc.repo.QueryResults(ctx, filter)
	return results, errors.Wrap(err, "querying student results")
}

func (svc *Service) GetExaminationStats(ctx context.Context, examinationID int64) (Stats, error) {
	e, err := svc.repo.GetExaminationByID(ctx, examinationID)
	if err != nil {
		return Stats{}, err
	}
	stats, err := svc.repo.ResultStats(ctx, examinationID, e.PassingMarks)
	if err != nil {
		return Stats{}, errors.Wrap(err, "aggregating exam results")
	}
	stats.ExaminationID = examinationID
	stats.AverageMarks = round2(stats.AverageMarks)
	if stats.TotalStudents > 0 {
		stats.PassRate = round2(float64(stats.Passed) / float64(stats.TotalStudents) * 100)
	}
	return stats, nil
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
