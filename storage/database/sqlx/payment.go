package sqlxrepos

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
)

const (
	feeStructuresTable = "fee_structures"
	paymentsTable      = "payments"
)

var (
	feeStructureColumns = []string{
		"f.id", "f.grade_id", "f.academic_year_id", "f.term_id", "f.fee_type", "f.amount", "f.due_date",
		"f.description", "f.created_by", "f.created_at", "f.updated_at", "g.name AS grade_name",
		"y.name AS academic_year_name", "t.name AS term_name",
	}
	paymentColumns = []string{
		"p.id", "p.student_id", "p.fee_structure_id", "p.amount", "p.payment_date", "p.payment_method",
		"p.transaction_reference", "p.receipt_number", "p.status", "p.remarks", "p.received_by", "p.created_at",
		"p.updated_at", "CONCAT(u.first_name, ' ', u.last_name) AS student_name", "st.admission_number",
		"f.fee_type", "f.amount AS fee_amount",
	}

	feeStructureOrdering = map[string]string{
		"fee_type":   "f.fee_type",
		"amount":     "f.amount",
		"due_date":   "f.due_date",
		"created_at": "f.created_at",
	}
	paymentOrdering = map[string]string{
		"amount":       "p.amount",
		"payment_date": "p.payment_date",
		"status":       "p.status",
		"created_at":   "p.created_at",
	}
)

type paymentRepository struct {
	store
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *sqlx.DB) *paymentRepository {
	return &paymentRepository{store: newStore(db)}
}

// Fee Structures

func (repo *paymentRepository) selectFeeStructures() sq.SelectBuilder {
	return repo.sb.Select(feeStructureColumns...).
		From(feeStructuresTable + " f").
		Join(gradesTable + " g ON g.id = f.grade_id").
		Join(yearsTable + " y ON y.id = f.academic_year_id").
		Join(termsTable + " t ON t.id = f.term_id")
}

func (repo *paymentRepository) FeeStructureExists(
	ctx context.Context,
	gradeID, academicYearID, termID int64,
	feeType string,
	excludeID int64,
) (bool, error) {
	return repo.existsWhere(ctx, feeStructuresTable, sq.Eq{
		"grade_id":         gradeID,
		"academic_year_id": academicYearID,
		"term_id":          termID,
		"fee_type":         feeType,
	}, excludeID)
}

func (repo *paymentRepository) CreateFeeStructure(ctx context.Context, fs payment.FeeStructure) (payment.FeeStructure, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(feeStructuresTable).
		Columns("grade_id", "academic_year_id", "term_id", "fee_type", "amount", "due_date", "description",
			"created_by", "created_at", "updated_at").
		Values(fs.GradeID, fs.AcademicYearID, fs.TermID, fs.FeeType, fs.Amount, fs.DueDate, fs.Description,
			fs.CreatedBy, fs.CreatedAt, fs.UpdatedAt))
	if err != nil {
		return payment.FeeStructure{}, trapConstraint(err, payment.ErrFeeStructureExists, "inserting fee structure")
	}
	return repo.GetFeeStructureByID(ctx, id)
}

func (repo *paymentRepository) GetFeeStructureByID(ctx context.Context, id int64) (payment.FeeStructure, error) {
	var fs payment.FeeStructure
	if err := repo.get(ctx, repo.db, &fs, repo.selectFeeStructures().Where(sq.Eq{"f.id": id})); err != nil {
		return payment.FeeStructure{}, trapNoRows(err, payment.ErrFeeStructureNotFound, "finding fee structure")
	}
	return fs, nil
}

func (repo *paymentRepository) QueryFeeStructures(ctx context.Context, filter payment.FeeStructureFilter) ([]payment.FeeStructure, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search, "f.fee_type", "f.description"))
	}
	if filter.GradeID > 0 {
		where = append(where, sq.Eq{"f.grade_id": filter.GradeID})
	}
	if filter.AcademicYearID > 0 {
		where = append(where, sq.Eq{"f.academic_year_id": filter.AcademicYearID})
	}
	if filter.TermID > 0 {
		where = append(where, sq.Eq{"f.term_id": filter.TermID})
	}
	if filter.FeeType != "" {
		where = append(where, sq.Eq{"f.fee_type": filter.FeeType})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").From(feeStructuresTable+" f").Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting fee structures")
	}

	structures := make([]payment.FeeStructure, 0)
	ord := filter.Ordering(feeStructureOrdering, core.DBOrdering{Field: "f.created_at"})
	if err = repo.sel(ctx, repo.db, &structures, page(repo.selectFeeStructures().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying fee structures")
	}
	return structures, total, nil
}

func (repo *paymentRepository) UpdateFeeStructure(ctx context.Context, fs payment.FeeStructure) (payment.FeeStructure, error) {
	err := repo.updateByID(ctx, repo.db, feeStructuresTable, fs.ID, map[string]interface{}{
		"fee_type":    fs.FeeType,
		"amount":      fs.Amount,
		"due_date":    fs.DueDate,
		"description": fs.Description,
		"updated_at":  fs.UpdatedAt,
	}, payment.ErrFeeStructureNotFound, payment.ErrFeeStructureExists)
	if err != nil {
		return payment.FeeStructure{}, err
	}
	return repo.GetFeeStructureByID(ctx, fs.ID)
}

func (repo *paymentRepository) DeleteFeeStructure(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, feeStructuresTable, id, payment.ErrFeeStructureNotFound)
}

func (repo *paymentRepository) CountFeeStructurePayments(ctx context.Context, feeStructureID int64) (int, error) {
	return repo.countWhere(ctx, paymentsTable, sq.Eq{"fee_structure_id": feeStructureID})
}

func (repo *paymentRepository) MaxFeeStructurePayment(ctx context.Context, feeStructureID int64) (float64, error) {
	var max float64
	err := repo.get(ctx, repo.db, &max, repo.sb.Select("COALESCE(MAX(amount), 0)").
		From(paymentsTable).
		Where(sq.Eq{"fee_structure_id": feeStructureID}))
	return max, errors.Wrap(err, "finding largest payment")
}

// Payments

func (repo *paymentRepository) selectPayments() sq.SelectBuilder {
	return repo.sb.Select(paymentColumns...).
		From(paymentsTable + " p").
		Join(studentsTable + " st ON st.id = p.student_id").
		Join(usersTable + " u ON u.id = st.user_id").
		Join(feeStructuresTable + " f ON f.id = p.fee_structure_id")
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	id, err := repo.insert(ctx, repo.db, repo.sb.Insert(paymentsTable).
		Columns("student_id", "fee_structure_id", "amount", "payment_date", "payment_method",
			"transaction_reference", "receipt_number", "status", "remarks", "received_by", "created_at", "updated_at").
		Values(p.StudentID, p.FeeStructureID, p.Amount, p.PaymentDate, p.PaymentMethod,
			p.TransactionReference, p.ReceiptNumber, p.Status, p.Remarks, p.ReceivedBy, p.CreatedAt, p.UpdatedAt))
	if err != nil {
		return payment.Payment{}, trapConstraint(err, errReferenced, "inserting payment")
	}
	return repo.GetPaymentByID(ctx, id)
}

func (repo *paymentRepository) getPayment(ctx context.Context, pred interface{}) (payment.Payment, error) {
	var p payment.Payment
	if err := repo.get(ctx, repo.db, &p, repo.selectPayments().Where(pred)); err != nil {
		return payment.Payment{}, trapNoRows(err, payment.ErrNotFound, "finding payment")
	}
	return p, nil
}

func (repo *paymentRepository) GetPaymentByID(ctx context.Context, id int64) (payment.Payment, error) {
	return repo.getPayment(ctx, sq.Eq{"p.id": id})
}

func (repo *paymentRepository) GetPaymentByReceipt(ctx context.Context, receiptNumber string) (payment.Payment, error) {
	return repo.getPayment(ctx, sq.Eq{"p.receipt_number": receiptNumber})
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, filter payment.QueryFilter) ([]payment.Payment, int, error) {
	where := sq.And{}
	if filter.Search != "" {
		where = append(where, search(filter.Search,
			"p.receipt_number", "p.transaction_reference", "u.first_name", "u.last_name", "st.admission_number"))
	}
	if filter.StudentID > 0 {
		where = append(where, sq.Eq{"p.student_id": filter.StudentID})
	}
	if filter.FeeStructureID > 0 {
		where = append(where, sq.Eq{"p.fee_structure_id": filter.FeeStructureID})
	}
	if filter.Status != "" {
		where = append(where, sq.Eq{"p.status": filter.Status})
	}
	if !filter.StartDate.IsZero() {
		where = append(where, sq.GtOrEq{"p.payment_date": filter.StartDate})
	}
	if !filter.EndDate.IsZero() {
		where = append(where, sq.LtOrEq{"p.payment_date": filter.EndDate})
	}

	total, err := repo.count(ctx, repo.sb.Select("COUNT(*)").
		From(paymentsTable+" p").
		Join(studentsTable+" st ON st.id = p.student_id").
		Join(usersTable+" u ON u.id = st.user_id").
		Where(where))
	if err != nil {
		return nil, 0, errors.Wrap(err, "counting payments")
	}

	payments := make([]payment.Payment, 0)
	ord := filter.Ordering(paymentOrdering, core.DBOrdering{Field: "p.created_at"})
	if err = repo.sel(ctx, repo.db, &payments, page(repo.selectPayments().Where(where), filter.PageQuery, ord)); err != nil {
		return nil, 0, errors.Wrap(err, "querying payments")
	}
	return payments, total, nil
}

func (repo *paymentRepository) UpdatePayment(ctx context.Context, p payment.Payment) (payment.Payment, error) {
	err := repo.updateByID(ctx, repo.db, paymentsTable, p.ID, map[string]interface{}{
		"payment_method":        p.PaymentMethod,
		"transaction_reference": p.TransactionReference,
		"remarks":               p.Remarks,
		"status":                p.Status,
		"updated_at":            p.UpdatedAt,
	}, payment.ErrNotFound, errReferenced)
	if err != nil {
		return payment.Payment{}, err
	}
	return repo.GetPaymentByID(ctx, p.ID)
}

func (repo *paymentRepository) DeletePayment(ctx context.Context, id int64) error {
	return repo.deleteByID(ctx, repo.db, paymentsTable, id, payment.ErrNotFound)
}

// Reports

func (repo *paymentRepository) QueryOutstanding(ctx context.Context, filter payment.OutstandingFilter) ([]payment.Outstanding, error) {
	q := repo.sb.Select(
		"st.id AS student_id",
		"CONCAT(u.first_name, ' ', u.last_name) AS student_name",
		"st.admission_number",
		"f.id AS fee_structure_id",
		"f.fee_type",
		"g.name AS grade_name",
		"t.name AS term_name",
		"f.due_date",
		"f.amount AS total_amount",
		"COALESCE(SUM(p.amount), 0) AS paid_amount",
		"f.amount - COALESCE(SUM(p.amount), 0) AS outstanding_amount").
		From(studentsTable + " st").
		Join(usersTable + " u ON u.id = st.user_id").
		Join(sectionsTable + " sec ON sec.id = st.section_id").
		Join(feeStructuresTable + " f ON f.grade_id = sec.grade_id").
		Join(gradesTable + " g ON g.id = f.grade_id").
		Join(termsTable + " t ON t.id = f.term_id").
		LeftJoin(paymentsTable + " p ON p.student_id = st.id AND p.fee_structure_id = f.id").
		GroupBy("st.id", "u.first_name", "u.last_name", "st.admission_number", "f.id", "f.fee_type",
			"g.name", "t.name", "f.due_date", "f.amount").
		Having("f.amount - COALESCE(SUM(p.amount), 0) > 0").
		OrderBy("f.due_date ASC", "u.last_name ASC", "u.first_name ASC")

	if filter.GradeID > 0 {
		q = q.Where(sq.Eq{"f.grade_id": filter.GradeID})
	}
	if filter.StudentID > 0 {
		q = q.Where(sq.Eq{"st.id": filter.StudentID})
	}
	if filter.AcademicYearID > 0 {
		q = q.Where(sq.Eq{"f.academic_year_id": filter.AcademicYearID})
	}
	if filter.TermID > 0 {
		q = q.Where(sq.Eq{"f.term_id": filter.TermID})
	}

	rows := make([]payment.Outstanding, 0)
	err := repo.sel(ctx, repo.db, &rows, q)
	return rows, errors.Wrap(err, "querying outstanding payments")
}

func (repo *paymentRepository) PaymentStats(ctx context.Context, start, end core.Date) ([]payment.StatusStats, error) {
	stats := make([]payment.StatusStats, 0)
	err := repo.sel(ctx, repo.db, &stats, repo.sb.Select("status", "COUNT(*) AS count", "COALESCE(SUM(amount), 0) AS amount").
		From(paymentsTable).
		Where(sq.GtOrEq{"payment_date": start}).
		Where(sq.LtOrEq{"payment_date": end}).
		GroupBy("status").
		OrderBy("status ASC"))
	return stats, errors.Wrap(err, "aggregating payments")
}

// unsettledFeesQuery selects the (student, fee structure) pairs paid less than the fee amount.
const unsettledFeesQuery = "SELECT p.student_id, p.fee_structure_id FROM " + paymentsTable + " p" +
	" JOIN " + feeStructuresTable + " f ON f.id = p.fee_structure_id" +
	" GROUP BY p.student_id, p.fee_structure_id, f.amount" +
	" HAVING SUM(p.amount) < f.amount"

func (repo *paymentRepository) MarkOverdue(ctx context.Context, today core.Date, now time.Time) (int64, error) {
	res, err := repo.exec(ctx, repo.db, repo.sb.Update(paymentsTable).
		Set("status", payment.StatusOverdue).
		Set("updated_at", now).
		Where(sq.Eq{"status": []string{payment.StatusPending, payment.StatusPartial}}).
		Where(sq.Expr("fee_structure_id IN (SELECT id FROM "+feeStructuresTable+
			" WHERE due_date IS NOT NULL AND due_date < ?)", today)).
		// MySQL rejects a subquery on the updated table unless it is materialized.
		Where(sq.Expr("(student_id, fee_structure_id) IN (SELECT student_id, fee_structure_id FROM ("+
			unsettledFeesQuery+") unsettled)")))
	if err != nil {
		return 0, errors.Wrap(err, "updating overdue payments")
	}
	return res.RowsAffected()
}
