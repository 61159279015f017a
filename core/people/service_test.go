package people_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/people"
	"github.com/trezcool/shule/core/user"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_IsParentOf(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PeopleSvc
	ctx := context.Background()
	pat := env.CreateParent(t, "Pat", "pat@shule.test")
	kim := env.CreateParent(t, "Kim", "kim@shule.test")
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", nil, &pat.ID)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", nil, nil)

	tests := []struct {
		name      string
		userID    int64
		studentID int64
		want      bool
	}{
		{name: "own child", userID: pat.UserID, studentID: sam.ID, want: true},
		{name: "another parent's child", userID: kim.UserID, studentID: sam.ID},
		{name: "student without parent", userID: pat.UserID, studentID: zoe.ID},
		{name: "unknown student", userID: pat.UserID, studentID: 999},
		{name: "not a parent", userID: sam.UserID, studentID: sam.ID},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.IsParentOf(ctx, tt.userID, tt.studentID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	children, err := svc.GetParentChildren(ctx, pat.ID)
	require.NoError(t, err)
	require.Len(t, children, 1)
	assert.Equal(t, sam.ID, children[0].ID)

	p, err := svc.GetParent(ctx, pat.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ChildrenCount)
}

func TestService_students(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PeopleSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", nil, nil)

	t.Run("grade follows the section", func(t *testing.T) {
		st, err := svc.GetStudent(ctx, sam.ID)
		require.NoError(t, err)
		require.NotNil(t, st.GradeID)
		assert.Equal(t, s.Grade.ID, *st.GradeID)
		assert.Equal(t, "Grade 10", st.GradeName)
		assert.False(t, st.AdmissionDate.IsZero())
	})

	t.Run("update", func(t *testing.T) {
		_, err := svc.UpdateStudent(ctx, zoe.ID, people.UpdateStudent{})
		assert.Equal(t, people.ErrNoFieldsToUpdate, err)

		adm := "ADM-001"
		_, err = svc.UpdateStudent(ctx, zoe.ID, people.UpdateStudent{AdmissionNumber: &adm})
		assert.Equal(t, people.ErrAdmissionNumberExists, errors.Cause(err))

		email := "sam@shule.test"
		_, err = svc.UpdateStudent(ctx, zoe.ID, people.UpdateStudent{UpdatePerson: people.UpdatePerson{Email: &email}})
		assert.Equal(t, user.ErrEmailExists, errors.Cause(err))

		unknown := int64(999)
		_, err = svc.UpdateStudent(ctx, zoe.ID, people.UpdateStudent{SectionID: &unknown})
		assert.Equal(t, academic.ErrSectionNotFound, errors.Cause(err))

		gender := people.GenderFemale
		updated, err := svc.UpdateStudent(ctx, zoe.ID, people.UpdateStudent{SectionID: &s.Section.ID, Gender: &gender})
		require.NoError(t, err)
		assert.Equal(t, "A", updated.SectionName)
		assert.Equal(t, people.GenderFemale, updated.Gender)
	})

	t.Run("filter by section", func(t *testing.T) {
		students, pag, err := svc.QueryStudents(ctx, people.StudentFilter{SectionID: s.Section.ID})
		require.NoError(t, err)
		assert.Len(t, students, 2)
		assert.Equal(t, 2, pag.Total)
	})
}

func TestService_DeleteTeacher(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PeopleSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	tina := env.CreateTeacher(t, "Tina", "tina@shule.test", "EMP-001")

	_, err := env.AcademicSvc.UpdateSection(ctx, s.Section.ID, academic.UpdateSection{ClassTeacherID: &tina.ID})
	require.NoError(t, err)
	assert.Equal(t, people.ErrTeacherHasSections, errors.Cause(svc.DeleteTeacher(ctx, tina.ID)))

	other := env.CreateTeacher(t, "Olu", "olu@shule.test", "EMP-002")
	require.NoError(t, svc.DeleteTeacher(ctx, other.ID))
	_, err = env.UserSvc.GetByEmail(ctx, "olu@shule.test")
	assert.Equal(t, user.ErrNotFound, errors.Cause(err))

	emp := "EMP-001"
	_, err = svc.CreateTeacher(ctx, people.NewTeacher{
		NewUser: user.NewUser{
			FirstName:       "Tom",
			LastName:        "Teacher",
			Email:           "tom@shule.test",
			Role:            user.RoleTeacher,
			Password:        testutil.Password,
			PasswordConfirm: testutil.Password,
		},
		EmployeeNumber: emp,
	})
	assert.Equal(t, people.ErrEmployeeNumberExists, errors.Cause(err))
}

func TestService_GetParentChildren(t *testing.T) {
	if testing.Short() {
		t.Skip("creates more than a page of students")
	}
	env := testutil.NewEnv(t)
	ctx := context.Background()
	pat := env.CreateParent(t, "Pat", "pat@shule.test")
	env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-000", nil, nil)

	n := core.MaxPageLimit + 1
	for i := 1; i <= n; i++ {
		env.CreateStudent(t, fmt.Sprintf("Kid%03d", i), fmt.Sprintf("kid%03d@shule.test", i), fmt.Sprintf("ADM-%03d", i), nil, &pat.ID)
	}

	children, err := env.PeopleSvc.GetParentChildren(ctx, pat.ID)
	require.NoError(t, err)
	assert.Len(t, children, n)

	p, err := env.PeopleSvc.GetParent(ctx, pat.ID)
	require.NoError(t, err)
	assert.Equal(t, n, p.ChildrenCount)

	_, err = env.PeopleSvc.GetParentChildren(ctx, 999)
	assert.Equal(t, people.ErrParentNotFound, errors.Cause(err))
}
