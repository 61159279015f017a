package academic_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	inmemdb "github.com/trezcool/shule/storage/database/inmem"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_grades(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.AcademicSvc
	ctx := context.Background()
	g := env.CreateGrade(t, "Grade 1", 1)
	env.CreateGrade(t, "Grade 2", 2)

	tests := []struct {
		name    string
		ng      academic.NewGrade
		wantErr error
	}{
		{name: "duplicate name", ng: academic.NewGrade{Name: "Grade 1", Level: 3}, wantErr: academic.ErrGradeNameExists},
		{name: "duplicate level", ng: academic.NewGrade{Name: "Form 1", Level: 1}, wantErr: academic.ErrGradeLevelExists},
		{name: "ok", ng: academic.NewGrade{Name: "Grade 3", Level: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateGrade(ctx, tt.ng)
			assert.Equal(t, tt.wantErr, errors.Cause(err))
		})
	}

	t.Run("conflicts are 409", func(t *testing.T) {
		var cErr *core.ConflictError
		require.ErrorAs(t, academic.ErrGradeNameExists, &cErr)
	})

	t.Run("update", func(t *testing.T) {
		_, err := svc.UpdateGrade(ctx, g.ID, academic.UpdateGrade{})
		assert.Equal(t, academic.ErrNoFieldsToUpdate, err)

		level := 2
		_, err = svc.UpdateGrade(ctx, g.ID, academic.UpdateGrade{Level: &level})
		assert.Equal(t, academic.ErrGradeLevelExists, errors.Cause(err))

		// unchanged values are not checked against themselves
		name := "Grade 1"
		desc := "first year"
		updated, err := svc.UpdateGrade(ctx, g.ID, academic.UpdateGrade{Name: &name, Description: &desc})
		require.NoError(t, err)
		assert.Equal(t, "first year", updated.Description)
	})

	t.Run("reads are stable", func(t *testing.T) {
		first, err := svc.GetGrade(ctx, g.ID)
		require.NoError(t, err)
		second, err := svc.GetGrade(ctx, g.ID)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("delete without sections", func(t *testing.T) {
		empty := env.CreateGrade(t, "Grade 9", 9)
		require.NoError(t, svc.DeleteGrade(ctx, empty.ID))
		_, err := svc.GetGrade(ctx, empty.ID)
		assert.Equal(t, academic.ErrGradeNotFound, errors.Cause(err))
	})

	t.Run("unknown grade", func(t *testing.T) {
		_, err := svc.GetGrade(ctx, 999)
		assert.Equal(t, academic.ErrGradeNotFound, errors.Cause(err))
		assert.Equal(t, academic.ErrGradeNotFound, errors.Cause(svc.DeleteGrade(ctx, 999)))
	})
}

func TestService_deleteGuards(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.AcademicSvc
	ctx := context.Background()
	s := env.CreateSchool(t)

	_, err := svc.AssignSubjectToGrade(ctx, s.Grade.ID, academic.AssignSubject{SubjectID: s.Subject.ID})
	require.NoError(t, err)

	assert.Equal(t, academic.ErrGradeHasSections, errors.Cause(svc.DeleteGrade(ctx, s.Grade.ID)))
	assert.Equal(t, academic.ErrSubjectHasGrades, errors.Cause(svc.DeleteSubject(ctx, s.Subject.ID)))
	assert.Equal(t, academic.ErrAcademicYearHasTerms, errors.Cause(svc.DeleteAcademicYear(ctx, s.Year.ID)))

	env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	assert.Equal(t, academic.ErrSectionHasStudents, errors.Cause(svc.DeleteSection(ctx, s.Section.ID)))

	require.NoError(t, svc.RemoveSubjectFromGrade(ctx, s.Grade.ID, s.Subject.ID))
	assert.NoError(t, svc.DeleteSubject(ctx, s.Subject.ID))
}

func TestService_currentYearAndTerm(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.AcademicSvc
	ctx := context.Background()

	_, err := svc.GetCurrentAcademicYear(ctx)
	assert.Equal(t, academic.ErrNoCurrentYear, errors.Cause(err))
	_, err = svc.GetCurrentTerm(ctx)
	assert.Equal(t, academic.ErrNoCurrentTerm, errors.Cause(err))

	y1 := env.CreateAcademicYear(t, "2023-2024", core.NewDate(2023, 9, 1), core.NewDate(2024, 6, 30))
	y2 := env.CreateAcademicYear(t, "2024-2025", core.NewDate(2024, 9, 1), core.NewDate(2025, 6, 30))
	t1 := env.CreateTerm(t, y1.ID, "Term 1", core.NewDate(2023, 9, 1), core.NewDate(2023, 12, 20))
	t2 := env.CreateTerm(t, y2.ID, "Term 1", core.NewDate(2024, 9, 1), core.NewDate(2024, 12, 20))

	for _, id := range []int64{y1.ID, y2.ID, y2.ID} {
		y, err := svc.SetCurrentAcademicYear(ctx, id)
		require.NoError(t, err)
		assert.True(t, y.IsCurrent)
	}
	current, err := svc.GetCurrentAcademicYear(ctx)
	require.NoError(t, err)
	assert.Equal(t, y2.ID, current.ID)

	prev, err := svc.GetAcademicYear(ctx, y1.ID)
	require.NoError(t, err)
	assert.False(t, prev.IsCurrent)

	for _, id := range []int64{t1.ID, t2.ID} {
		_, err := svc.SetCurrentTerm(ctx, id)
		require.NoError(t, err)
	}
	term, err := svc.GetCurrentTerm(ctx)
	require.NoError(t, err)
	assert.Equal(t, t2.ID, term.ID)

	_, err = svc.SetCurrentTerm(ctx, 999)
	assert.Equal(t, academic.ErrTermNotFound, errors.Cause(err))
}

func TestService_terms(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.AcademicSvc
	ctx := context.Background()
	y := env.CreateAcademicYear(t, "2024-2025", core.NewDate(2024, 9, 1), core.NewDate(2025, 6, 30))
	env.CreateTerm(t, y.ID, "Term 1", core.NewDate(2024, 9, 1), core.NewDate(2024, 12, 20))

	_, err := svc.CreateTerm(ctx, academic.NewTerm{
		AcademicYearID: y.ID, Name: "Term 1", StartDate: core.NewDate(2025, 1, 6), EndDate: core.NewDate(2025, 3, 28),
	})
	assert.Equal(t, academic.ErrTermNameExists, errors.Cause(err))

	_, err = svc.CreateTerm(ctx, academic.NewTerm{
		AcademicYearID: 999, Name: "Term 2", StartDate: core.NewDate(2025, 1, 6), EndDate: core.NewDate(2025, 3, 28),
	})
	assert.Equal(t, academic.ErrAcademicYearNotFound, errors.Cause(err))

	t.Run("period validation", func(t *testing.T) {
		nt := academic.NewTerm{
			AcademicYearID: y.ID, Name: "Term 2", StartDate: core.NewDate(2025, 3, 28), EndDate: core.NewDate(2025, 1, 6),
		}
		err := nt.Validate(env.Validate)
		var vErr *core.ValidationError
		require.ErrorAs(t, err, &vErr)
		assert.Equal(t, "end date must be after start date", vErr.Error())
	})
}

func TestNewSubject_Validate(t *testing.T) {
	env := testutil.NewEnv(t)

	ns := academic.NewSubject{Name: "  Physics ", Code: " phy101 "}
	require.NoError(t, ns.Validate(env.Validate))
	assert.Equal(t, "Physics", ns.Name)
	assert.Equal(t, "PHY101", ns.Code)

	bad := academic.NewSubject{Name: "Physics", Code: "PHY 101!"}
	assert.Error(t, bad.Validate(env.Validate))
}

// interleavingRepo runs `between` once, right after the service has read the row it updates.
type interleavingRepo struct {
	academic.Repository
	between func()
}

func (r *interleavingRepo) interleave() {
	if fn := r.between; fn != nil {
		r.between = nil
		fn()
	}
}

func (r *interleavingRepo) GetGradeByID(ctx context.Context, id int64) (academic.Grade, error) {
	g, err := r.Repository.GetGradeByID(ctx, id)
	r.interleave()
	return g, err
}

func (r *interleavingRepo) GetSubjectByID(ctx context.Context, id int64) (academic.Subject, error) {
	s, err := r.Repository.GetSubjectByID(ctx, id)
	r.interleave()
	return s, err
}

func (r *interleavingRepo) GetTermByID(ctx context.Context, id int64) (academic.Term, error) {
	t, err := r.Repository.GetTermByID(ctx, id)
	r.interleave()
	return t, err
}

func TestService_updatesKeepConcurrentChanges(t *testing.T) {
	ctx := context.Background()
	repo := &interleavingRepo{Repository: inmemdb.NewAcademicRepository(inmemdb.Open())}
	svc := academic.NewService(repo)

	g, err := svc.CreateGrade(ctx, academic.NewGrade{Name: "Grade 1", Level: 1})
	require.NoError(t, err)
	sub, err := svc.CreateSubject(ctx, academic.NewSubject{Name: "Physics", Code: "PHY101"})
	require.NoError(t, err)
	y, err := svc.CreateAcademicYear(ctx, academic.NewAcademicYear{
		Name: "2024-2025", StartDate: core.NewDate(2024, 9, 1), EndDate: core.NewDate(2025, 6, 30),
	})
	require.NoError(t, err)
	term, err := svc.CreateTerm(ctx, academic.NewTerm{
		AcademicYearID: y.ID, Name: "Term 1", StartDate: core.NewDate(2024, 9, 1), EndDate: core.NewDate(2024, 12, 20),
	})
	require.NoError(t, err)

	str := func(s string) *string { return &s }
	tests := []struct {
		name   string
		other  func() error
		update func() error
		check  func(t *testing.T)
	}{
		{
			name: "grade",
			other: func() error {
				_, err := svc.UpdateGrade(ctx, g.ID, academic.UpdateGrade{Name: str("Grade One")})
				return err
			},
			update: func() error {
				_, err := svc.UpdateGrade(ctx, g.ID, academic.UpdateGrade{Description: str("first year")})
				return err
			},
			check: func(t *testing.T) {
				got, err := svc.GetGrade(ctx, g.ID)
				require.NoError(t, err)
				assert.Equal(t, "Grade One", got.Name)
				assert.Equal(t, "first year", got.Description)
			},
		},
		{
			name: "subject",
			other: func() error {
				_, err := svc.UpdateSubject(ctx, sub.ID, academic.UpdateSubject{Code: str("PHY102")})
				return err
			},
			update: func() error {
				_, err := svc.UpdateSubject(ctx, sub.ID, academic.UpdateSubject{Name: str("Applied Physics")})
				return err
			},
			check: func(t *testing.T) {
				got, err := svc.GetSubject(ctx, sub.ID)
				require.NoError(t, err)
				assert.Equal(t, "PHY102", got.Code)
				assert.Equal(t, "Applied Physics", got.Name)
			},
		},
		{
			name: "term",
			other: func() error {
				end := core.NewDate(2024, 12, 13)
				_, err := svc.UpdateTerm(ctx, term.ID, academic.UpdateTerm{EndDate: &end})
				return err
			},
			update: func() error {
				_, err := svc.UpdateTerm(ctx, term.ID, academic.UpdateTerm{Name: str("First Term")})
				return err
			},
			check: func(t *testing.T) {
				got, err := svc.GetTerm(ctx, term.ID)
				require.NoError(t, err)
				assert.Equal(t, "First Term", got.Name)
				assert.Equal(t, core.NewDate(2024, 12, 13), got.EndDate)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo.between = func() { require.NoError(t, tt.other()) }
			require.NoError(t, tt.update())
			tt.check(t)
		})
	}
}
