package sqlxrepos_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
	testutil "github.com/trezcool/shule/tests"
)

func TestPaymentRepository_reports(t *testing.T) {
	env := testutil.NewSQLEnv(t)
	svc := env.PaymentSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	ann := env.CreateStudent(t, "Ann", "ann@shule.test", "ADM-002", &s.Section.ID, nil)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-003", &s.Section.ID, nil)
	env.CreateStudent(t, "Max", "max@shule.test", "ADM-004", nil, nil)
	tuition := env.CreateFeeStructure(t, s, payment.FeeTuition, 1000, core.NewDate(2024, 10, 31), 0)
	library := env.CreateFeeStructure(t, s, payment.FeeLibrary, 1, core.NewDate(2024, 11, 30), 0)

	pay := func(studentID, feeID int64, amounts ...float64) []payment.Payment {
		payments := make([]payment.Payment, 0, len(amounts))
		for _, amount := range amounts {
			p, err := svc.CreatePayment(ctx, payment.NewPayment{
				StudentID:      studentID,
				FeeStructureID: feeID,
				Amount:         amount,
				PaymentMethod:  payment.MethodCash,
			}, 0)
			require.NoError(t, err)
			payments = append(payments, p)
		}
		return payments
	}
	samTuition := pay(sam.ID, tuition.ID, 400)
	annTuition := pay(ann.ID, tuition.ID, 600, 400)
	annLibrary := pay(ann.ID, library.ID, 0.7, 0.2, 0.1)

	t.Run("outstanding", func(t *testing.T) {
		rows, err := svc.GetOutstandingPayments(ctx, payment.OutstandingFilter{})
		require.NoError(t, err)

		type balance struct {
			studentID, feeID  int64
			paid, outstanding float64
		}
		want := []balance{
			{studentID: sam.ID, feeID: tuition.ID, paid: 400, outstanding: 600},
			{studentID: zoe.ID, feeID: tuition.ID, paid: 0, outstanding: 1000},
			{studentID: sam.ID, feeID: library.ID, paid: 0, outstanding: 1},
			{studentID: zoe.ID, feeID: library.ID, paid: 0, outstanding: 1},
		}
		got := make([]balance, 0, len(rows))
		for _, r := range rows {
			got = append(got, balance{r.StudentID, r.FeeStructureID, r.PaidAmount, r.OutstandingAmount})
			assert.Equal(t, "Grade 10", r.GradeName)
			assert.Equal(t, "Term 1", r.TermName)
			assert.Equal(t, r.TotalAmount, r.PaidAmount+r.OutstandingAmount)
		}
		assert.Equal(t, want, got)
	})

	t.Run("outstanding filters", func(t *testing.T) {
		tests := []struct {
			name   string
			filter payment.OutstandingFilter
			want   int
		}{
			{name: "student", filter: payment.OutstandingFilter{StudentID: sam.ID}, want: 2},
			{name: "settled student", filter: payment.OutstandingFilter{StudentID: ann.ID}, want: 0},
			{name: "grade", filter: payment.OutstandingFilter{GradeID: s.Grade.ID}, want: 4},
			{name: "term", filter: payment.OutstandingFilter{TermID: s.Term.ID}, want: 4},
			{name: "other year", filter: payment.OutstandingFilter{AcademicYearID: s.Year.ID + 1}, want: 0},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rows, err := svc.GetOutstandingPayments(ctx, tt.filter)
				require.NoError(t, err)
				assert.Len(t, rows, tt.want)
			})
		}
	})

	t.Run("refresh statuses", func(t *testing.T) {
		n, err := svc.RefreshStatuses(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 1, n)

		want := map[int64]string{samTuition[0].ID: payment.StatusOverdue}
		for _, p := range append(annTuition, annLibrary...) {
			want[p.ID] = payment.StatusPartial
		}
		for id, status := range want {
			p, err := svc.GetPayment(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, status, p.Status, "payment %d", id)
		}

		n, err = svc.RefreshStatuses(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("stats", func(t *testing.T) {
		today := core.DateOf(samTuition[0].CreatedAt)
		stats, err := svc.GetPaymentStats(ctx, today, today)
		require.NoError(t, err)
		assert.Equal(t, 6, stats.TotalPayments)
		assert.Equal(t, 1401.0, stats.TotalCollected)
	})
}
