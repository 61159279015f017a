package echoapi

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func Test_peopleApi_studentAccess(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	adminToken := getToken(t, srv, env.CreateAdmin(t, "admin@shule.test"))
	teacher := env.CreateTeacher(t, "Tina", "tina@shule.test", "EMP-001")
	parent := env.CreateParent(t, "Pat", "pat@shule.test")
	otherParent := env.CreateParent(t, "Oli", "oli@shule.test")
	child := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, &parent.ID)
	other := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", &s.Section.ID, nil)

	childToken := getToken(t, srv, user.User{ID: child.UserID, Email: child.Email, Role: user.RoleStudent})
	parentToken := getToken(t, srv, user.User{ID: parent.UserID, Email: parent.Email, Role: user.RoleParent})
	otherParentToken := getToken(t, srv, user.User{ID: otherParent.UserID, Email: otherParent.Email, Role: user.RoleParent})
	teacherToken := getToken(t, srv, user.User{ID: teacher.UserID, Email: teacher.Email, Role: user.RoleTeacher})
	forbidden := errResponse(t, http.StatusForbidden, "permission denied")
	childPath := "/api/students/" + itoa(child.ID)

	tests := []httpTest{
		{name: "admin reads any student", path: childPath, token: adminToken, wantCode: http.StatusOK},
		{name: "teacher reads any student", path: childPath, token: teacherToken, wantCode: http.StatusOK},
		{name: "student reads themselves", path: childPath, token: childToken, wantCode: http.StatusOK},
		{name: "student cannot read others", path: "/api/students/" + itoa(other.ID), token: childToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "parent reads their child", path: childPath, token: parentToken, wantCode: http.StatusOK},
		{name: "parent cannot read other children", path: childPath, token: otherParentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "students list is staff only", path: "/api/students", token: parentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "parent cannot read another parent", path: "/api/parents/" + itoa(otherParent.ID), token: parentToken, wantCode: http.StatusForbidden, wantData: forbidden},
		{name: "parents cannot list teachers", path: "/api/teachers", token: parentToken, wantCode: http.StatusForbidden, wantData: forbidden},
	}
	runHTTPTests(t, srv, tests)

	t.Run("student profile", func(t *testing.T) {
		var st people.Student
		code, _ := do(t, srv, http.MethodGet, "/api/students/me", childToken, nil, &st)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, child.ID, st.ID)
		assert.Equal(t, "A", st.SectionName)
	})

	t.Run("parent children", func(t *testing.T) {
		var children []people.Student
		code, _ := do(t, srv, http.MethodGet, "/api/parents/"+itoa(parent.ID)+"/children", parentToken, nil, &children)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, children, 1)
		assert.Equal(t, child.ID, children[0].ID)
	})

	t.Run("filter by parent", func(t *testing.T) {
		var students []people.Student
		code, res := do(t, srv, http.MethodGet, "/api/students?parentId="+itoa(parent.ID), teacherToken, nil, &students)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, students, 1)
		assert.Equal(t, 1, res.Pagination.Total)
	})
}

func Test_peopleApi_students(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	adminToken := getToken(t, srv, env.CreateAdmin(t, "admin@shule.test"))
	parent := env.CreateParent(t, "Pat", "pat@shule.test")

	ns := people.NewStudent{
		NewUser: user.NewUser{
			FirstName: "Sam", LastName: "Student", Email: "sam@shule.test",
			Password: testutil.Password, PasswordConfirm: testutil.Password,
		},
		AdmissionNumber: "ADM-001",
		SectionID:       &s.Section.ID,
		ParentID:        &parent.ID,
	}
	var st people.Student
	code, _ := do(t, srv, http.MethodPost, "/api/students", adminToken, ns, &st)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "ADM-001", st.AdmissionNumber)

	usr, err := env.UserSvc.GetByID(context.Background(), st.UserID)
	require.NoError(t, err)
	assert.Equal(t, user.RoleStudent, usr.Role)

	t.Run("duplicate email", func(t *testing.T) {
		dup := ns
		dup.AdmissionNumber = "ADM-002"
		code, res := do(t, srv, http.MethodPost, "/api/students", adminToken, dup, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "a user with this email already exists", res.Message)
	})

	t.Run("duplicate admission number", func(t *testing.T) {
		dup := ns
		dup.Email = "sam2@shule.test"
		code, res := do(t, srv, http.MethodPost, "/api/students", adminToken, dup, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "a student with this admission number already exists", res.Message)
	})

	t.Run("unknown section", func(t *testing.T) {
		bad := ns
		bad.Email = "sam3@shule.test"
		bad.AdmissionNumber = "ADM-003"
		bad.SectionID = new(int64)
		*bad.SectionID = 999
		code, res := do(t, srv, http.MethodPost, "/api/students", adminToken, bad, nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, "section not found", res.Message)
	})

	t.Run("parent with children cannot be deleted", func(t *testing.T) {
		code, res := do(t, srv, http.MethodDelete, "/api/parents/"+itoa(parent.ID), adminToken, nil, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "cannot delete parent with linked students", res.Message)
	})

	t.Run("delete removes the user", func(t *testing.T) {
		code, _ := do(t, srv, http.MethodDelete, "/api/students/"+itoa(st.ID), adminToken, nil, nil)
		require.Equal(t, http.StatusOK, code)
		_, err := env.UserSvc.GetByID(context.Background(), st.UserID)
		assert.ErrorIs(t, err, user.ErrNotFound)
	})
}
