package payment_test

import (
	"context"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
	emailsvc "github.com/trezcool/shule/services/email"
	testutil "github.com/trezcool/shule/tests"
)

func TestService_CreatePayment(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PaymentSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	admin := env.CreateAdmin(t, "admin@shule.test")
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	tuition := env.CreateFeeStructure(t, s, payment.FeeTuition, 1000, core.NewDate(2024, 10, 31), admin.ID)

	np := func(amount float64) payment.NewPayment {
		return payment.NewPayment{
			StudentID:      sam.ID,
			FeeStructureID: tuition.ID,
			Amount:         amount,
			PaymentDate:    core.NewDate(2024, 10, 5),
			PaymentMethod:  payment.MethodCash,
		}
	}

	tests := []struct {
		name       string
		amount     float64
		wantStatus string
		wantErr    error
	}{
		{name: "overpayment", amount: 1000.01, wantErr: payment.ErrAmountExceedsFee},
		{name: "partial", amount: 250.125, wantStatus: payment.StatusPartial},
		{name: "full", amount: 1000, wantStatus: payment.StatusPaid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := svc.CreatePayment(ctx, np(tt.amount), admin.ID)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, p.Status)
			assert.Equal(t, admin.ID, *p.ReceivedBy)
			assert.Regexp(t, `^RCP-20\d{6}-[0-9A-F]{8}$`, p.ReceiptNumber)
		})
	}

	t.Run("amounts are rounded to cents", func(t *testing.T) {
		payments, err := svc.GetStudentPayments(ctx, sam.ID)
		require.NoError(t, err)
		require.Len(t, payments, 2)
		var partial payment.Payment
		for _, p := range payments {
			if p.Status == payment.StatusPartial {
				partial = p
			}
		}
		assert.Equal(t, 250.13, partial.Amount)
	})

	t.Run("receipt email", func(t *testing.T) {
		msg, ok := emailsvc.LastSentMessage()
		require.True(t, ok)
		assert.Equal(t, "payment_receipt", msg.TemplateName)
		assert.Equal(t, "sam@shule.test", msg.To[0].Address)
		assert.Contains(t, msg.TextContent, "1000.00")

		require.Len(t, msg.Attachments, 1)
		at := msg.Attachments[0]
		assert.Regexp(t, `^receipt-RCP-\d{8}-[0-9A-F]{8}\.txt$`, at.Filename)
		assert.Equal(t, "text/plain; charset=utf-8", at.ContentType)
		text, err := base64.StdEncoding.DecodeString(at.Content.String())
		require.NoError(t, err)
		assert.Contains(t, string(text), "Amount:         1000.00\n")
		assert.Contains(t, string(text), "Status:         Paid\n")
	})

	t.Run("receipt lookup ignores case", func(t *testing.T) {
		payments, err := svc.GetStudentPayments(ctx, sam.ID)
		require.NoError(t, err)
		p, err := svc.GetPaymentByReceipt(ctx, " "+strings.ToLower(payments[0].ReceiptNumber)+" ")
		require.NoError(t, err)
		assert.Equal(t, payments[0].ID, p.ID)

		_, err = svc.GetPaymentByReceipt(ctx, "RCP-00000000-DEADBEEF")
		assert.Equal(t, payment.ErrNotFound, errors.Cause(err))
	})

	t.Run("fee of another grade", func(t *testing.T) {
		other := env.CreateGrade(t, "Grade 11", 11)
		section := env.CreateSection(t, other.ID, s.Year.ID, "B")
		zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", &section.ID, nil)
		req := np(100)
		req.StudentID = zoe.ID
		_, err := svc.CreatePayment(ctx, req, admin.ID)
		assert.Equal(t, payment.ErrFeeNotForStudent, errors.Cause(err))
	})

	t.Run("unknown student", func(t *testing.T) {
		req := np(100)
		req.StudentID = 999
		_, err := svc.CreatePayment(ctx, req, admin.ID)
		var nfErr *core.NotFoundError
		assert.ErrorAs(t, err, &nfErr)
	})
}

func TestService_feeStructures(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PaymentSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	fees := env.CreateFeeStructure(t, s, payment.FeeLibrary, 200, core.NewDate(2024, 10, 31), 0)

	t.Run("term of another year", func(t *testing.T) {
		other := env.CreateAcademicYear(t, "2025-2026", core.NewDate(2025, 9, 1), core.NewDate(2026, 6, 30))
		_, err := svc.CreateFeeStructure(ctx, payment.NewFeeStructure{
			GradeID:        s.Grade.ID,
			AcademicYearID: other.ID,
			TermID:         s.Term.ID,
			FeeType:        payment.FeeTransport,
			Amount:         300,
		}, 0)
		assert.Equal(t, payment.ErrTermNotInYear, errors.Cause(err))
	})

	_, err := svc.CreatePayment(ctx, payment.NewPayment{
		StudentID:      sam.ID,
		FeeStructureID: fees.ID,
		Amount:         150,
		PaymentMethod:  payment.MethodBankTransfer,
	}, 0)
	require.NoError(t, err)

	t.Run("amount cannot drop below a payment", func(t *testing.T) {
		amount := 100.0
		_, err := svc.UpdateFeeStructure(ctx, fees.ID, payment.UpdateFeeStructure{Amount: &amount})
		assert.Equal(t, payment.ErrAmountBelowPaid, errors.Cause(err))

		amount = 150
		updated, err := svc.UpdateFeeStructure(ctx, fees.ID, payment.UpdateFeeStructure{Amount: &amount})
		require.NoError(t, err)
		assert.Equal(t, 150.0, updated.Amount)
	})

	t.Run("empty update", func(t *testing.T) {
		_, err := svc.UpdateFeeStructure(ctx, fees.ID, payment.UpdateFeeStructure{})
		assert.Equal(t, payment.ErrNoFieldsToUpdate, err)
	})

	t.Run("settled fees are not outstanding", func(t *testing.T) {
		rows, err := svc.GetOutstandingPayments(ctx, payment.OutstandingFilter{StudentID: sam.ID})
		require.NoError(t, err)
		assert.Empty(t, rows)
	})

	assert.Equal(t, payment.ErrFeeStructureHasPayments, errors.Cause(svc.DeleteFeeStructure(ctx, fees.ID)))
}

func TestService_RefreshStatuses(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PaymentSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", &s.Section.ID, nil)
	ann := env.CreateStudent(t, "Ann", "ann@shule.test", "ADM-003", &s.Section.ID, nil)
	pastDue := env.CreateFeeStructure(t, s, payment.FeeTuition, 1000, core.NewDate(2024, 10, 31), 0)
	notDue := env.CreateFeeStructure(t, s, payment.FeeExamination, 100, core.NewDate(2999, 1, 1), 0)

	pay := func(studentID, feeID int64, amount float64) payment.Payment {
		p, err := svc.CreatePayment(ctx, payment.NewPayment{
			StudentID:      studentID,
			FeeStructureID: feeID,
			Amount:         amount,
			PaymentMethod:  payment.MethodCash,
		}, 0)
		require.NoError(t, err)
		return p
	}
	partial := pay(sam.ID, pastDue.ID, 400)
	paid := pay(zoe.ID, pastDue.ID, 1000)
	early := pay(zoe.ID, notDue.ID, 50)
	firstInstalment := pay(ann.ID, pastDue.ID, 600)
	lastInstalment := pay(ann.ID, pastDue.ID, 400)

	n, err := svc.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	for id, want := range map[int64]string{
		partial.ID:         payment.StatusOverdue,
		paid.ID:            payment.StatusPaid,
		early.ID:           payment.StatusPartial,
		firstInstalment.ID: payment.StatusPartial,
		lastInstalment.ID:  payment.StatusPartial,
	} {
		p, err := svc.GetPayment(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, want, p.Status)
	}

	rows, err := svc.GetOutstandingPayments(ctx, payment.OutstandingFilter{StudentID: ann.ID})
	require.NoError(t, err)
	assert.Empty(t, rows, "a fee settled in instalments is neither outstanding nor overdue")

	n, err = svc.RefreshStatuses(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "overdue payments are not counted twice")
}

func TestService_GetOutstandingPayments(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PaymentSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)

	tests := []struct {
		name     string
		feeType  string
		payments []float64
		want     float64
		wantPaid float64
	}{
		{name: "settled in instalments that do not add up exactly", feeType: payment.FeeLibrary, payments: []float64{0.7, 0.2, 0.1}},
		{name: "settled at once", feeType: payment.FeeSports, payments: []float64{1}},
		{name: "partly paid", feeType: payment.FeeLaboratory, payments: []float64{0.1, 0.2}, want: 0.7, wantPaid: 0.3},
		{name: "unpaid", feeType: payment.FeeTransport, want: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees := env.CreateFeeStructure(t, s, tt.feeType, 1, core.NewDate(2024, 10, 31), 0)
			for _, amount := range tt.payments {
				_, err := svc.CreatePayment(ctx, payment.NewPayment{
					StudentID:      sam.ID,
					FeeStructureID: fees.ID,
					Amount:         amount,
					PaymentMethod:  payment.MethodCash,
				}, 0)
				require.NoError(t, err)
			}

			rows, err := svc.GetOutstandingPayments(ctx, payment.OutstandingFilter{StudentID: sam.ID})
			require.NoError(t, err)
			var row *payment.Outstanding
			for i := range rows {
				if rows[i].FeeStructureID == fees.ID {
					row = &rows[i]
				}
			}
			if tt.want == 0 {
				assert.Nil(t, row)
				return
			}
			require.NotNil(t, row)
			assert.Equal(t, tt.want, row.OutstandingAmount)
			assert.Equal(t, tt.wantPaid, row.PaidAmount)
		})
	}

	t.Run("settled fees are never marked overdue", func(t *testing.T) {
		_, err := svc.RefreshStatuses(ctx)
		require.NoError(t, err)
		payments, err := svc.GetStudentPayments(ctx, sam.ID)
		require.NoError(t, err)
		overdue := 0
		for _, p := range payments {
			if p.Status == payment.StatusOverdue {
				overdue++
			}
		}
		assert.Equal(t, 2, overdue, "only the partly paid fee's payments")
	})
}

func TestService_GetStudentPayments(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PaymentSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	fees := env.CreateFeeStructure(t, s, payment.FeeTuition, 1000, core.NewDate(2024, 10, 31), 0)

	first := core.NewDate(2024, 9, 1)
	instalments := core.MaxPageLimit + 5
	for i := 0; i < instalments; i++ {
		_, err := svc.CreatePayment(ctx, payment.NewPayment{
			StudentID:      sam.ID,
			FeeStructureID: fees.ID,
			Amount:         5,
			PaymentDate:    core.DateOf(first.AddDate(0, 0, i)),
			PaymentMethod:  payment.MethodMobileMoney,
		}, 0)
		require.NoError(t, err)
	}

	payments, err := svc.GetStudentPayments(ctx, sam.ID)
	require.NoError(t, err)
	require.Len(t, payments, instalments)
	assert.Equal(t, core.DateOf(first.AddDate(0, 0, instalments-1)), payments[0].PaymentDate)
	assert.Equal(t, first, payments[instalments-1].PaymentDate)
}

func TestService_GetPaymentStats(t *testing.T) {
	env := testutil.NewEnv(t)
	svc := env.PaymentSvc
	ctx := context.Background()
	s := env.CreateSchool(t)
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, nil)
	fees := env.CreateFeeStructure(t, s, payment.FeeTuition, 1000, core.NewDate(2024, 10, 31), 0)

	for _, p := range []struct {
		amount float64
		day    core.Date
	}{
		{amount: 100.1, day: core.NewDate(2024, 9, 30)},
		{amount: 200.2, day: core.NewDate(2024, 10, 1)},
		{amount: 300.3, day: core.NewDate(2024, 10, 31)},
	} {
		_, err := svc.CreatePayment(ctx, payment.NewPayment{
			StudentID:      sam.ID,
			FeeStructureID: fees.ID,
			Amount:         p.amount,
			PaymentDate:    p.day,
			PaymentMethod:  payment.MethodCheque,
		}, 0)
		require.NoError(t, err)
	}

	stats, err := svc.GetPaymentStats(ctx, core.Date{}, core.NewDate(2024, 10, 31))
	require.NoError(t, err)
	assert.Equal(t, core.NewDate(2024, 10, 1), stats.StartDate)
	assert.Equal(t, 2, stats.TotalPayments)
	assert.Equal(t, 500.5, stats.TotalCollected)

	_, err = svc.GetPaymentStats(ctx, core.NewDate(2024, 11, 1), core.NewDate(2024, 10, 1))
	assert.Equal(t, payment.ErrInvalidPeriod, errors.Cause(err))
}
