package echoapi

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
	"github.com/trezcool/shule/core/user"
)

func Test_paymentApi_feeStructures(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	token := adminToken(t, srv, env)

	nf := payment.NewFeeStructure{
		GradeID:        s.Grade.ID,
		AcademicYearID: s.Year.ID,
		TermID:         s.Term.ID,
		FeeType:        payment.FeeTuition,
		Amount:         1000,
		DueDate:        core.NewDate(2024, 10, 31),
	}
	var fs payment.FeeStructure
	code, _ := do(t, srv, http.MethodPost, "/api/payments/fee-structures", token, nf, &fs)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "Grade 10", fs.GradeName)
	assert.Equal(t, "Term 1", fs.TermName)

	code, res := do(t, srv, http.MethodPost, "/api/payments/fee-structures", token, nf, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "a fee structure of this type already exists for this grade, academic year and term", res.Message)

	nf.FeeType = "Parking"
	code, _ = do(t, srv, http.MethodPost, "/api/payments/fee-structures", token, nf, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	var structures []payment.FeeStructure
	code, _ = do(t, srv, http.MethodGet, "/api/payments/fee-structures?feeType=Tuition&gradeId="+itoa(s.Grade.ID), token, nil, &structures)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, structures, 1)
}

func Test_paymentApi_payments(t *testing.T) {
	srv, env := setup(t)
	s := env.CreateSchool(t)
	token := adminToken(t, srv, env)
	parent := env.CreateParent(t, "Pat", "pat@shule.test")
	parentToken := getToken(t, srv, user.User{ID: parent.UserID, Email: parent.Email, Role: user.RoleParent})
	sam := env.CreateStudent(t, "Sam", "sam@shule.test", "ADM-001", &s.Section.ID, &parent.ID)
	zoe := env.CreateStudent(t, "Zoe", "zoe@shule.test", "ADM-002", &s.Section.ID, nil)
	tuition := env.CreateFeeStructure(t, s, payment.FeeTuition, 1000, core.NewDate(2024, 10, 31), 0)
	day := core.NewDate(2024, 10, 5)

	pay := func(studentID int64, amount float64) (int, Response, payment.Payment) {
		var p payment.Payment
		code, res := do(t, srv, http.MethodPost, "/api/payments", token, payment.NewPayment{
			StudentID:      studentID,
			FeeStructureID: tuition.ID,
			Amount:         amount,
			PaymentDate:    day,
			PaymentMethod:  payment.MethodMobileMoney,
		}, &p)
		return code, res, p
	}

	code, res, _ := pay(sam.ID, 1000.01)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, map[string]string{"amount": "payment amount cannot exceed the fee amount"}, res.Errors)

	code, _, partial := pay(sam.ID, 600)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, payment.StatusPartial, partial.Status)
	assert.Regexp(t, `^RCP-\d{8}-[0-9A-F]{8}$`, partial.ReceiptNumber)

	code, _, paid := pay(zoe.ID, 1000)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, payment.StatusPaid, paid.Status)

	t.Run("writes are admin only", func(t *testing.T) {
		code, _ := do(t, srv, http.MethodPost, "/api/payments", parentToken, payment.NewPayment{}, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("outstanding", func(t *testing.T) {
		var rows []payment.Outstanding
		code, _ := do(t, srv, http.MethodGet, "/api/payments/outstanding?studentId="+itoa(sam.ID), parentToken, nil, &rows)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, rows, 1)
		assert.Equal(t, 1000.0, rows[0].TotalAmount)
		assert.Equal(t, 600.0, rows[0].PaidAmount)
		assert.Equal(t, 400.0, rows[0].OutstandingAmount)

		code, _ = do(t, srv, http.MethodGet, "/api/payments/outstanding?studentId="+itoa(zoe.ID), parentToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("receipt", func(t *testing.T) {
		var p payment.Payment
		code, _ := do(t, srv, http.MethodGet, "/api/payments/receipt/"+partial.ReceiptNumber, parentToken, nil, &p)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, partial.ID, p.ID)

		code, _ = do(t, srv, http.MethodGet, "/api/payments/receipt/"+paid.ReceiptNumber, parentToken, nil, nil)
		assert.Equal(t, http.StatusForbidden, code)
	})

	t.Run("stats", func(t *testing.T) {
		var stats payment.Stats
		code, _ := do(t, srv, http.MethodGet, "/api/payments/stats?startDate=2024-10-01&endDate=2024-10-31", token, nil, &stats)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, 1600.0, stats.TotalCollected)
		assert.Equal(t, 2, stats.TotalPayments)
	})

	t.Run("refresh statuses", func(t *testing.T) {
		var data map[string]int64
		code, _ := do(t, srv, http.MethodPost, "/api/payments/refresh-statuses", token, nil, &data)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]int64{"updated": 1}, data)

		var payments []payment.Payment
		code, _ = do(t, srv, http.MethodGet, "/api/payments/students/"+itoa(sam.ID), parentToken, nil, &payments)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, payments, 1)
		assert.Equal(t, payment.StatusOverdue, payments[0].Status)
	})

	t.Run("fee structure with payments cannot be deleted", func(t *testing.T) {
		code, res := do(t, srv, http.MethodDelete, "/api/payments/fee-structures/"+itoa(tuition.ID), token, nil, nil)
		assert.Equal(t, http.StatusConflict, code)
		assert.Equal(t, "cannot delete fee structure with recorded payments", res.Message)
	})
}
