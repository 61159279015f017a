package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/user"
)

func Test_academicApi_grades(t *testing.T) {
	srv, env := setup(t)
	adminToken := getToken(t, srv, env.CreateAdmin(t, "admin@shule.test"))
	teacherToken := getToken(t, srv, env.CreateUser(t, "Tina", "Teach", "tina@shule.test", user.RoleTeacher))
	s := env.CreateSchool(t)

	tests := []httpTest{
		{
			name: "auth required", path: "/api/academic/grades",
			wantCode: http.StatusUnauthorized, wantData: errResponse(t, http.StatusUnauthorized, "missing or malformed jwt"),
		},
		{
			name: "any role reads", path: "/api/academic/grades/" + itoa(s.Grade.ID), token: teacherToken,
			wantCode: http.StatusOK, wantData: okResponse(t, "Grade retrieved successfully", s.Grade),
		},
		{
			name: "writes are admin only", method: http.MethodPost, path: "/api/academic/grades", token: teacherToken,
			body:     marchallObj(t, academic.NewGrade{Name: "Grade 11", Level: 11}),
			wantCode: http.StatusForbidden, wantData: errResponse(t, http.StatusForbidden, "permission denied"),
		},
		{
			name: "duplicate name", method: http.MethodPost, path: "/api/academic/grades", token: adminToken,
			body:     marchallObj(t, academic.NewGrade{Name: "Grade 10", Level: 12}),
			wantCode: http.StatusConflict, wantData: errResponse(t, http.StatusConflict, "a grade with this name already exists"),
		},
		{
			name: "duplicate level", method: http.MethodPost, path: "/api/academic/grades", token: adminToken,
			body:     marchallObj(t, academic.NewGrade{Name: "Form 4", Level: 10}),
			wantCode: http.StatusConflict, wantData: errResponse(t, http.StatusConflict, "a grade with this level already exists"),
		},
		{
			name: "empty update", method: http.MethodPut, path: "/api/academic/grades/" + itoa(s.Grade.ID), token: adminToken,
			body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: errResponse(t, http.StatusBadRequest, "no fields to update"),
		},
		{
			name: "delete with sections", method: http.MethodDelete, path: "/api/academic/grades/" + itoa(s.Grade.ID), token: adminToken,
			wantCode: http.StatusConflict, wantData: errResponse(t, http.StatusConflict, "cannot delete grade with existing sections"),
		},
		{
			name: "unknown grade", path: "/api/academic/grades/999", token: adminToken,
			wantCode: http.StatusNotFound, wantData: errResponse(t, http.StatusNotFound, "grade not found"),
		},
	}
	runHTTPTests(t, srv, tests)

	t.Run("create then list", func(t *testing.T) {
		var g academic.Grade
		code, _ := do(t, srv, http.MethodPost, "/api/academic/grades", adminToken,
			academic.NewGrade{Name: "  Grade 11 ", Level: 11}, &g)
		require.Equal(t, http.StatusCreated, code)
		assert.Equal(t, "Grade 11", g.Name)

		var grades []academic.Grade
		code, res := do(t, srv, http.MethodGet, "/api/academic/grades?sortBy=level&sortOrder=desc", adminToken, nil, &grades)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, grades, 2)
		assert.Equal(t, []int{11, 10}, []int{grades[0].Level, grades[1].Level})
		assert.Equal(t, &core.Pagination{Page: 1, Limit: 10, Total: 2, TotalPages: 1}, res.Pagination)
	})
}

func Test_academicApi_gradeSubjects(t *testing.T) {
	srv, env := setup(t)
	adminToken := getToken(t, srv, env.CreateAdmin(t, "admin@shule.test"))
	s := env.CreateSchool(t)
	path := "/api/academic/grades/" + itoa(s.Grade.ID) + "/subjects"

	code, _ := do(t, srv, http.MethodPost, path, adminToken, academic.AssignSubject{SubjectID: s.Subject.ID}, nil)
	require.Equal(t, http.StatusCreated, code)

	code, res := do(t, srv, http.MethodPost, path, adminToken, academic.AssignSubject{SubjectID: s.Subject.ID}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "subject is already assigned to this grade", res.Message)

	var subjects []academic.GradeSubject
	code, _ = do(t, srv, http.MethodGet, path, adminToken, nil, &subjects)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, subjects, 1)
	assert.Equal(t, "MATH101", subjects[0].SubjectCode)
	assert.True(t, subjects[0].IsCompulsory)

	code, res = do(t, srv, http.MethodDelete, "/api/academic/subjects/"+itoa(s.Subject.ID), adminToken, nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "cannot delete subject assigned to grades", res.Message)

	code, _ = do(t, srv, http.MethodDelete, path+"/"+itoa(s.Subject.ID), adminToken, nil, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, srv, http.MethodGet, path, adminToken, nil, &subjects)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, subjects)
}

func Test_academicApi_currentTerm(t *testing.T) {
	srv, env := setup(t)
	adminToken := getToken(t, srv, env.CreateAdmin(t, "admin@shule.test"))
	s := env.CreateSchool(t)
	term2 := env.CreateTerm(t, s.Year.ID, "Term 2", core.NewDate(2025, 1, 6), core.NewDate(2025, 3, 28))

	var current academic.Term
	code, _ := do(t, srv, http.MethodGet, "/api/academic/terms/current", adminToken, nil, &current)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, s.Term.ID, current.ID)

	for i := 0; i < 2; i++ {
		code, _ = do(t, srv, http.MethodPut, "/api/academic/terms/"+itoa(term2.ID)+"/set-current", adminToken, nil, &current)
		require.Equal(t, http.StatusOK, code)
		assert.True(t, current.IsCurrent)
	}

	var terms []academic.Term
	code, _ = do(t, srv, http.MethodGet, "/api/academic/terms?academicYearId="+itoa(s.Year.ID), adminToken, nil, &terms)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, terms, 2)
	var currents []int64
	for _, term := range terms {
		if term.IsCurrent {
			currents = append(currents, term.ID)
		}
	}
	assert.Equal(t, []int64{term2.ID}, currents)

	code, res := do(t, srv, http.MethodDelete, "/api/academic/academic-years/"+itoa(s.Year.ID), adminToken, nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "cannot delete academic year with existing terms", res.Message)
}

func Test_academicApi_sections(t *testing.T) {
	srv, env := setup(t)
	adminToken := getToken(t, srv, env.CreateAdmin(t, "admin@shule.test"))
	s := env.CreateSchool(t)

	code, res := do(t, srv, http.MethodPost, "/api/academic/sections", adminToken, academic.NewSection{
		GradeID: s.Grade.ID, AcademicYearID: s.Year.ID, Name: "A",
	}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "a section with this name already exists for this grade and academic year", res.Message)

	code, res = do(t, srv, http.MethodPost, "/api/academic/sections", adminToken, academic.NewSection{
		GradeID: 999, AcademicYearID: s.Year.ID, Name: "B",
	}, nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "grade not found", res.Message)

	var sec academic.Section
	code, _ = do(t, srv, http.MethodPost, "/api/academic/sections", adminToken, academic.NewSection{
		GradeID: s.Grade.ID, AcademicYearID: s.Year.ID, Name: "B",
	}, &sec)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, academic.DefaultSectionCapacity, sec.Capacity)

	var sections []academic.Section
	code, _ = do(t, srv, http.MethodGet, "/api/academic/sections?gradeId="+itoa(s.Grade.ID), adminToken, nil, &sections)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, sections, 2)

	env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &sec.ID, nil)
	code, res = do(t, srv, http.MethodDelete, "/api/academic/sections/"+itoa(sec.ID), adminToken, nil, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "cannot delete section with enrolled students", res.Message)
}
