package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	testutil "github.com/trezcool/shule/tests"
)

func TestAcademicRepository_updates(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	svc := env.AcademicSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	str := func(s string) *string { return &s }

	t.Run("only provided columns are written", func(t *testing.T) {
		room := "B12"
		_, err := svc.UpdateSection(ctx, s.Section.ID, academic.UpdateSection{Room: &room})
		require.NoError(t, err)
		capacity := 35
		updated, err := svc.UpdateSection(ctx, s.Section.ID, academic.UpdateSection{Capacity: &capacity})
		require.NoError(t, err)
		assert.Equal(t, "B12", updated.Room)
		assert.Equal(t, 35, updated.Capacity)
		assert.Equal(t, "A", updated.Name)

		end := core.NewDate(2024, 12, 13)
		term, err := svc.UpdateTerm(ctx, s.Term.ID, academic.UpdateTerm{EndDate: &end})
		require.NoError(t, err)
		assert.Equal(t, end, term.EndDate)
		assert.Equal(t, s.Term.StartDate, term.StartDate)
		assert.Equal(t, "Term 1", term.Name)
		assert.True(t, term.IsCurrent)
	})

	t.Run("unique violations", func(t *testing.T) {
		env.CreateGrade(t, "Grade 11", 11)
		_, err := svc.UpdateGrade(ctx, s.Grade.ID, academic.UpdateGrade{Name: str("Grade 11")})
		assert.Equal(t, academic.ErrGradeNameExists, errors.Cause(err))

		updated, err := svc.UpdateGrade(ctx, s.Grade.ID, academic.UpdateGrade{Description: str("senior")})
		require.NoError(t, err)
		assert.Equal(t, "Grade 10", updated.Name)
		assert.Equal(t, 10, updated.Level)
		assert.Equal(t, "senior", updated.Description)
	})
}
