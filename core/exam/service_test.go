package exam_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	testutil "github.com/trezcool/shule/tests"
)

func TestLetterGrade(t *testing.T) {
	tests := []struct {
		marks, total float64
		want         string
	}{
		{marks: 100, total: 100, want: "A"},
		{marks: 80, total: 100, want: "A"},
		{marks: 79.99, total: 100, want: "B"},
		{marks: 36, total: 50, want: "B"},
		{marks: 60, total: 100, want: "C"},
		{marks: 25, total: 50, want: "D"},
		{marks: 40, total: 100, want: "E"},
		{marks: 39.5, total: 100, want: "F"},
		{marks: 0, total: 100, want: "F"},
		{marks: 10, total: 0, want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, exam.LetterGrade(tt.marks, tt.total), "%v/%v", tt.marks, tt.total)
	}
}

func TestNewExamination_Validate(t *testing.T) {
	env := testutil.NewEnv(t)
	ne := exam.NewExamination{
		Title:          "  Algebra  ",
		ExamTypeID:     1,
		SubjectID:      1,
		GradeID:        1,
		SectionID:      1,
		AcademicYearID: 1,
		TermID:         1,
		ExamDate:       core.NewDate(2024, 10, 15),
		TotalMarks:     50,
		PassingMarks:   50,
	}
	require.NoError(t, ne.Validate(env.Validate))
	assert.Equal(t, "Algebra", ne.Title)

	ne.PassingMarks = 50.5
	err := ne.Validate(env.Validate)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "passing_marks", vErr.Fields[0].Field)
}

func TestService_examinations(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.ExamSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	et := env.CreateExamType(t, "Midterm")

	t.Run("exam type names are unique", func(t *testing.T) {
		_, err := svc.CreateExamType(ctx, exam.NewExamType{Name: "Midterm"})
		assert.Equal(t, exam.ErrExamTypeNameExists, errors.Cause(err))
	})

	base := exam.NewExamination{
		Title:          "Algebra",
		ExamTypeID:     et.ID,
		SubjectID:      s.Subject.ID,
		GradeID:        s.Grade.ID,
		SectionID:      s.Section.ID,
		AcademicYearID: s.Year.ID,
		TermID:         s.Term.ID,
		ExamDate:       core.NewDate(2024, 10, 15),
		TotalMarks:     100,
		PassingMarks:   40,
	}

	other := env.CreateGrade(t, "Grade 11", 11)
	otherSection := env.CreateSection(t, other.ID, s.Year.ID, "B")
	otherYear := env.CreateAcademicYear(t, "2025-2026", core.NewDate(2025, 9, 1), core.NewDate(2026, 6, 30))

	tests := []struct {
		name    string
		modify  func(ne *exam.NewExamination)
		wantErr error
	}{
		{name: "section of another grade", modify: func(ne *exam.NewExamination) { ne.SectionID = otherSection.ID }, wantErr: exam.ErrSectionNotInGrade},
		{name: "term of another year", modify: func(ne *exam.NewExamination) { ne.AcademicYearID = otherYear.ID }, wantErr: exam.ErrTermNotInYear},
		{name: "unknown exam type", modify: func(ne *exam.NewExamination) { ne.ExamTypeID = 999 }, wantErr: exam.ErrExamTypeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ne := base
			tt.modify(&ne)
			_, err := svc.CreateExamination(ctx, ne, 0)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	e, err := svc.CreateExamination(ctx, base, 0)
	require.NoError(t, err)

	t.Run("stats without results", func(t *testing.T) {
		stats, err := svc.GetExaminationStats(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, exam.Stats{ExaminationID: e.ID}, stats)
	})

	t.Run("update", func(t *testing.T) {
		_, err := svc.UpdateExamination(ctx, e.ID, exam.UpdateExamination{})
		assert.Equal(t, exam.ErrNoFieldsToUpdate, err)

		passing := 120.0
		_, err = svc.UpdateExamination(ctx, e.ID, exam.UpdateExamination{PassingMarks: &passing})
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)

		_, err = svc.UpdateExamination(ctx, e.ID, exam.UpdateExamination{SectionID: &otherSection.ID})
		assert.Equal(t, exam.ErrSectionNotInGrade, errors.Cause(err))

		title := "Algebra I"
		updated, err := svc.UpdateExamination(ctx, e.ID, exam.UpdateExamination{Title: &title})
		require.NoError(t, err)
		assert.Equal(t, "Algebra I", updated.Title)
	})

	t.Run("delete", func(t *testing.T) {
		assert.Equal(t, exam.ErrExamTypeHasExaminations, errors.Cause(svc.DeleteExamType(ctx, et.ID)))
		require.NoError(t, svc.DeleteExamination(ctx, e.ID))
		assert.NoError(t, svc.DeleteExamType(ctx, et.ID))
	})
}

func TestService_results(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.ExamSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	teacher := env.CreateTeacher(t, "Tina", "tina@shule.test", "EMP-001")
	et := env.CreateExamType(t, "Final")
	e := env.CreateExamination(t, s, et.ID, "Algebra Final", 100, 40, teacher.UserID)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)

	_, err := svc.AddResult(ctx, exam.NewResult{ExaminationID: e.ID, StudentID: sam.ID, MarksObtained: -1}, teacher.UserID)
	var vErr *core.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "marks obtained cannot be negative", vErr.Error())

	_, err = svc.AddResult(ctx, exam.NewResult{ExaminationID: e.ID, StudentID: 999, MarksObtained: 50}, teacher.UserID)
	assert.True(t, core.IsNotFound(err))

	r, err := svc.AddResult(ctx, exam.NewResult{ExaminationID: e.ID, StudentID: sam.ID, MarksObtained: 65}, teacher.UserID)
	require.NoError(t, err)
	assert.Equal(t, "C", r.Grade)
	assert.Equal(t, teacher.UserID, *r.EnteredBy)

	t.Run("update keeps the grade in sync", func(t *testing.T) {
		marks := 101.0
		_, err := svc.UpdateResult(ctx, r.ID, exam.UpdateResult{MarksObtained: &marks}, teacher.UserID)
		assert.Error(t, err)

		remarks := "well done"
		updated, err := svc.UpdateResult(ctx, r.ID, exam.UpdateResult{Remarks: &remarks}, teacher.UserID)
		require.NoError(t, err)
		assert.Equal(t, "C", updated.Grade)
		assert.Equal(t, "well done", updated.Remarks)
	})

	t.Run("student results by term", func(t *testing.T) {
		results, err := svc.GetStudentResults(ctx, exam.ResultFilter{StudentID: sam.ID, TermID: s.Term.ID})
		require.NoError(t, err)
		require.Len(t, results, 1)

		results, err = svc.GetStudentResults(ctx, exam.ResultFilter{StudentID: sam.ID, TermID: s.Term.ID + 1})
		require.NoError(t, err)
		assert.Empty(t, results)
	})

	t.Run("stats", func(t *testing.T) {
		stats, err := svc.GetExaminationStats(ctx, e.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, stats.Passed)
		assert.Equal(t, 100.0, stats.PassRate)
	})

	require.NoError(t, svc.DeleteResult(ctx, r.ID))
	_, err = svc.GetResult(ctx, r.ID)
	assert.Equal(t, exam.ErrResultNotFound, errors.Cause(err))
}
