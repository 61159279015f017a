package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/exam"
	"github.com/trezcool/shule/core/user"
)

func Test_examApi_examinations(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	teacher := env.CreateTeacher(t, "Tina", "tina@shule.test", "EMP-001")
	teacherToken := getToken(t, srv, user.User{ID: teacher.UserID, Email: teacher.Email, Role: user.RoleTeacher})
	et := env.CreateExamType(t, "Midterm")

	ne := exam.NewExamination{
		Title:          "Algebra Midterm",
		ExamTypeID:     et.ID,
		SubjectID:      s.Subject.ID,
		GradeID:        s.Grade.ID,
		SectionID:      s.Section.ID,
		AcademicYearID: s.Year.ID,
		TermID:         s.Term.ID,
		ExamDate:       core.NewDate(2024, 10, 15),
		TotalMarks:     50,
		PassingMarks:   60,
	}

	t.Run("passing above total", func(t *testing.T) {
		code, res := do(t, srv, http.MethodPost, "/api/exams/examinations", teacherToken, ne, nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, map[string]string{"passing_marks": "passing marks cannot exceed total marks"}, res.Errors)
	})

	t.Run("exam type writes are admin only", func(t *testing.T) {
		code, _ := do(t, srv, http.MethodPost, "/api/exams/types", teacherToken, exam.NewExamType{Name: "Final"}, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	ne.PassingMarks = 20
	var e exam.Examination
	code, _ := do(t, srv, http.MethodPost, "/api/exams/examinations", teacherToken, ne, &e)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Midterm", e.ExamTypeName)
	assert.Equal(t, teacher.UserID, *e.CreatedBy)

	var exams []exam.Examination
	code, res := do(t, srv, http.MethodGet, "/api/exams/examinations?termId="+itoa(s.Term.ID), teacherToken, nil, &exams)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, exams, 1)
	assert.Equal(t, 1, res.Pagination.Total)

	code, res = do(t, srv, http.MethodDelete, "/api/exams/types/"+itoa(et.ID), adminToken(t, srv, env), nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "cannot delete exam type with examinations", res.Message)
}

func Test_examApi_results(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	teacher := env.CreateTeacher(t, "Tina", "tina@shule.test", "EMP-001")
	teacherToken := getToken(t, srv, user.User{ID: teacher.UserID, Email: teacher.Email, Role: user.RoleTeacher})
	et := env.CreateExamType(t, "Midterm")
	e := env.CreateExamination(t, s, et.ID, "Algebra Midterm", 50, 20, teacher.UserID)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", &s.Section.ID, nil)
	samToken := getToken(t, srv, user.User{ID: sam.UserID, Email: sam.Email, Role: user.RoleStudent})

	t.Run("marks above total", func(t *testing.T) {
		code, res := do(t, srv, http.MethodPost, "/api/exams/results", teacherToken,
			exam.NewResult{ExaminationID: e.ID, StudentID: sam.ID, MarksObtained: 51}, nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, map[string]string{"marks_obtained": "marks obtained cannot exceed total marks"}, res.Errors)
	})

	t.Run("students cannot add results", func(t *testing.T) {
		code, _ := do(t, srv, http.MethodPost, "/api/exams/results", samToken,
			exam.NewResult{ExaminationID: e.ID, StudentID: sam.ID, MarksObtained: 50}, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	var samResult exam.Result
	code, _ := do(t, srv, http.MethodPost, "/api/exams/results", teacherToken,
		exam.NewResult{ExaminationID: e.ID, StudentID: sam.ID, MarksObtained: 42}, &samResult)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "A", samResult.Grade)

	code, res := do(t, srv, http.MethodPost, "/api/exams/results", teacherToken,
		exam.NewResult{ExaminationID: e.ID, StudentID: sam.ID, MarksObtained: 10}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "a result for this student already exists for this examination", res.Message)

	var zoeResult exam.Result
	code, _ = do(t, srv, http.MethodPost, "/api/exams/results", teacherToken,
		exam.NewResult{ExaminationID: e.ID, StudentID: zoe.ID, MarksObtained: 12}, &zoeResult)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "F", zoeResult.Grade)

	t.Run("update regrades", func(t *testing.T) {
		marks := 36.0
		var r exam.Result
		code, _ := do(t, srv, http.MethodPut, "/api/exams/results/"+itoa(samResult.ID), teacherToken, exam.UpdateResult{MarksObtained: &marks}, &r)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "B", r.Grade)
	})

	t.Run("total below recorded marks", func(t *testing.T) {
		total := 30.0
		code, res := do(t, srv, http.MethodPut, "/api/exams/examinations/"+itoa(e.ID), teacherToken, exam.UpdateExamination{TotalMarks: &total}, nil)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "total marks cannot be lower than recorded marks", res.Message)
	})

	t.Run("stats", func(t *testing.T) {
		var stats exam.Stats
		code, _ := do(t, srv, http.MethodGet, "/api/exams/examinations/"+itoa(e.ID)+"/stats", teacherToken, nil, &stats)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, exam.Stats{
			ExaminationID: e.ID,
			TotalStudents: 2,
			AverageMarks:  24,
			HighestMarks:  36,
			LowestMarks:   12,
			Passed:        1,
			Failed:        1,
			PassRate:      50,
		}, stats)
	})

	t.Run("student results are scoped", func(t *testing.T) {
		var results []exam.Result
		code, _ := do(t, srv, http.MethodGet, "/api/exams/results/students/"+itoa(sam.ID)+"?termId="+itoa(s.Term.ID), samToken, nil, &results)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, results, 1)
		assert.Equal(t, "Algebra Midterm", results[0].ExamTitle)

		code, _ = do(t, srv, http.MethodGet, "/api/exams/results/"+itoa(zoeResult.ID), samToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, code)
		code, _ = do(t, srv, http.MethodGet, "/api/exams/examinations/"+itoa(e.ID)+"/results", samToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("examination with results cannot be deleted", func(t *testing.T) {
		code, res := do(t, srv, http.MethodDelete, "/api/exams/examinations/"+itoa(e.ID), adminToken(t, srv, env), nil, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "cannot delete examination with results", res.Message)
	})
}
