package payment

import (
	"context"
	"fmt"
	"math"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/academic"
	"github.com/trezcool/shule/core/people"
)

var (
	ErrFeeStructureNotFound = core.NewNotFoundError("fee structure")
	ErrNotFound             = core.NewNotFoundError("payment")

	ErrFeeStructureExists      = core.NewConflictError("a fee structure of this type already exists for this grade, academic year and term")
	ErrFeeStructureHasPayments = core.NewConflictError("cannot delete fee structure with recorded payments")

	ErrAmountExceedsFee = core.NewFieldError("amount", "payment amount cannot exceed the fee amount")
	ErrTermNotInYear    = core.NewFieldError("term_id", "term does not belong to the academic year")
	ErrFeeNotForStudent = core.NewFieldError("fee_structure_id", "fee structure does not apply to the student's grade")
	ErrAmountBelowPaid  = core.NewFieldError("amount", "fee amount cannot be lower than a recorded payment")
	ErrInvalidPeriod    = core.NewFieldError("endDate", "end date must not be before start date")
	ErrNoFieldsToUpdate = core.NewValidationError(errors.New("no fields to update"))

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// fee structures
		FeeStructureExists(ctx context.Context, gradeID, academicYearID, termID int64, feeType string, excludeID int64) (bool, error)
		CreateFeeStructure(ctx context.Context, fs FeeStructure) (FeeStructure, error)
		GetFeeStructureByID(ctx context.Context, id int64) (FeeStructure, error)
		QueryFeeStructures(ctx context.Context, filter FeeStructureFilter) ([]FeeStructure, int, error)
		UpdateFeeStructure(ctx context.Context, fs FeeStructure) (FeeStructure, error)
		DeleteFeeStructure(ctx context.Context, id int64) error
		CountFeeStructurePayments(ctx context.Context, feeStructureID int64) (int, error)
		// MaxFeeStructurePayment returns the largest payment made against the fee structure, 0 without payments.
		MaxFeeStructurePayment(ctx context.Context, feeStructureID int64) (float64, error)

		// payments
		CreatePayment(ctx context.Context, p Payment) (Payment, error)
		GetPaymentByID(ctx context.Context, id int64) (Payment, error)
		GetPaymentByReceipt(ctx context.Context, receiptNumber string) (Payment, error)
		// QueryPayments: QueryFilter.Search does a case-insensitive match on the receipt number,
		// transaction reference, student names or admission number.
		QueryPayments(ctx context.Context, filter QueryFilter) ([]Payment, int, error)
		UpdatePayment(ctx context.Context, p Payment) (Payment, error)
		DeletePayment(ctx context.Context, id int64) error

		// QueryOutstanding pairs every student with the fee structures of their grade and returns the
		// pairs whose payments sum below the fee amount.
		QueryOutstanding(ctx context.Context, filter OutstandingFilter) ([]Outstanding, error)
		// PaymentStats counts and sums the payments made between `start` and `end` (inclusive), per status.
		PaymentStats(ctx context.Context, start, end core.Date) ([]StatusStats, error)
		// MarkOverdue sets the Overdue status on the Pending or Partial payments whose fee structure
		// is due before `today`, and returns the number of updated payments.
		MarkOverdue(ctx context.Context, today core.Date, now time.Time) (int64, error)
	}

	Service struct {
		repo        Repository
		academicSvc *academic.Service
		peopleSvc   *people.Service
		mailSvc     core.EmailService
		conf        *core.Config
	}
)

func NewService(
	repo Repository,
	academicSvc *academic.Service,
	peopleSvc *people.Service,
	mailSvc core.EmailService,
	conf *core.Config,
) *Service {
	return &Service{repo: repo, academicSvc: academicSvc, peopleSvc: peopleSvc, mailSvc: mailSvc, conf: conf}
}

func now() time.Time { return nowFunc().UTC() }

// Fee Structures

func (svc *Service) checkFeeStructureScope(ctx context.Context, gradeID, yearID, termID int64) error {
	if _, err := svc.academicSvc.GetGrade(ctx, gradeID); err != nil {
		return err
	}
	if _, err := svc.academicSvc.GetAcademicYear(ctx, yearID); err != nil {
		return err
	}
	term, err := svc.academicSvc.GetTerm(ctx, termID)
	if err != nil {
		return err
	}
	if term.AcademicYearID != yearID {
		return ErrTermNotInYear
	}
	return nil
}

func (svc *Service) checkFeeStructureUnique(ctx context.Context, fs FeeStructure) error {
	exists, err := svc.repo.FeeStructureExists(ctx, fs.GradeID, fs.AcademicYearID, fs.TermID, fs.FeeType, fs.ID)
	if err != nil {
		return errors.Wrap(err, "checking fee structure")
	}
	if exists {
		return ErrFeeStructureExists
	}
	return nil
}

// CreateFeeStructure creates the fee structure on behalf of `actorID`. `nf` must have been validated.
func (svc *Service) CreateFeeStructure(ctx context.Context, nf NewFeeStructure, actorID int64) (FeeStructure, error) {
	if err := svc.checkFeeStructureScope(ctx, nf.GradeID, nf.AcademicYearID, nf.TermID); err != nil {
		return FeeStructure{}, err
	}
	t := now()
	fs := FeeStructure{
		GradeID:        nf.GradeID,
		AcademicYearID: nf.AcademicYearID,
		TermID:         nf.TermID,
		FeeType:        nf.FeeType,
		Amount:         RoundAmount(nf.Amount),
		DueDate:        nf.DueDate,
		Description:    nf.Description,
		CreatedBy:      &actorID,
		CreatedAt:      t,
		UpdatedAt:      t,
	}
	if err := svc.checkFeeStructureUnique(ctx, fs); err != nil {
		return FeeStructure{}, err
	}
	fs, err := svc.repo.CreateFeeStructure(ctx, fs)
	return fs, errors.Wrap(err, "creating fee structure")
}

func (svc *Service) GetFeeStructure(ctx context.Context, id int64) (FeeStructure, error) {
	return svc.repo.GetFeeStructureByID(ctx, id)
}

func (svc *Service) QueryFeeStructures(ctx context.Context, filter FeeStructureFilter) ([]FeeStructure, core.Pagination, error) {
	filter.Clean()
	fees, total, err := svc.repo.QueryFeeStructures(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying fee structures")
	}
	return fees, core.NewPagination(filter.PageQuery, total), nil
}

func (svc *Service) UpdateFeeStructure(ctx context.Context, id int64, uf UpdateFeeStructure) (FeeStructure, error) {
	if uf.IsEmpty() {
		return FeeStructure{}, ErrNoFieldsToUpdate
	}
	fs, err := svc.repo.GetFeeStructureByID(ctx, id)
	if err != nil {
		return FeeStructure{}, err
	}

	if uf.FeeType != nil && *uf.FeeType != fs.FeeType {
		fs.FeeType = *uf.FeeType
		if err := svc.checkFeeStructureUnique(ctx, fs); err != nil {
			return FeeStructure{}, err
		}
	}
	if uf.Amount != nil {
		amount := RoundAmount(*uf.Amount)
		if amount < fs.Amount {
			highest, err := svc.repo.MaxFeeStructurePayment(ctx, id)
			if err != nil {
				return FeeStructure{}, errors.Wrap(err, "finding largest payment")
			}
			if highest > amount {
				return FeeStructure{}, ErrAmountBelowPaid
			}
		}
		fs.Amount = amount
	}
	if uf.DueDate != nil {
		fs.DueDate = *uf.DueDate
	}
	if uf.Description != nil {
		fs.Description = *uf.Description
	}
	fs.UpdatedAt = now()

	fs, err = svc.repo.UpdateFeeStructure(ctx, fs)
	return fs, errors.Wrap(err, "updating fee structure")
}

func (svc *Service) DeleteFeeStructure(ctx context.Context, id int64) error {
	if _, err := svc.repo.GetFeeStructureByID(ctx, id); err != nil {
		return err
	}
	n, err := svc.repo.CountFeeStructurePayments(ctx, id)
	if err != nil {
		return errors.Wrap(err, "counting fee structure payments")
	}
	if n > 0 {
		return ErrFeeStructureHasPayments
	}
	return errors.Wrap(svc.repo.DeleteFeeStructure(ctx, id), "deleting fee structure")
}

// Payments

// CreatePayment records a payment received by `actorID` and emails the receipt to the student.
// `np` must have been validated.
func (svc *Service) CreatePayment(ctx context.Context, np NewPayment, actorID int64) (Payment, error) {
	st, err := svc.peopleSvc.GetStudent(ctx, np.StudentID)
	if err != nil {
		return Payment{}, err
	}
	fs, err := svc.repo.GetFeeStructureByID(ctx, np.FeeStructureID)
	if err != nil {
		return Payment{}, err
	}
	if st.GradeID != nil && *st.GradeID != fs.GradeID {
		return Payment{}, ErrFeeNotForStudent
	}

	amount := RoundAmount(np.Amount)
	if amount > fs.Amount {
		return Payment{}, ErrAmountExceedsFee
	}
	status := StatusPartial
	if amount == fs.Amount {
		status = StatusPaid
	}

	t := now()
	paymentDate := np.PaymentDate
	if paymentDate.IsZero() {
		paymentDate = core.DateOf(t)
	}

	p, err := svc.repo.CreatePayment(ctx, Payment{
		StudentID:            np.StudentID,
		FeeStructureID:       np.FeeStructureID,
		Amount:               amount,
		PaymentDate:          paymentDate,
		PaymentMethod:        np.PaymentMethod,
		TransactionReference: np.TransactionReference,
		ReceiptNumber:        svc.newReceiptNumber(t),
		Status:               status,
		Remarks:              np.Remarks,
		ReceivedBy:           &actorID,
		CreatedAt:            t,
		UpdatedAt:            t,
	})
	if err != nil {
		return Payment{}, errors.Wrap(err, "creating payment")
	}

	if st.Email != "" {
		svc.sendReceiptMail(st, fs, p)
	}
	return p, nil
}

// newReceiptNumber returns `<prefix>-YYYYMMDD-XXXXXXXX`, the suffix being random hex.
func (svc *Service) newReceiptNumber(t time.Time) string {
	prefix := svc.conf.Payments.ReceiptPrefix
	if prefix == "" {
		prefix = "RCP"
	}
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, t.Format("20060102"), suffix)
}

func (svc *Service) sendReceiptMail(st people.Student, fs FeeStructure, p Payment) {
	receipt := Receipt{
		StudentName:   st.FullName(),
		Amount:        fmt.Sprintf("%.2f", p.Amount),
		FeeType:       fs.FeeType,
		PaymentDate:   p.PaymentDate.String(),
		ReceiptNumber: p.ReceiptNumber,
		PaymentMethod: p.PaymentMethod,
		Status:        p.Status,
	}
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: st.FullName(), Address: st.Email}},
		Subject:      "Payment Receipt " + p.ReceiptNumber,
		TemplateName: "payment_receipt",
		TemplateData: receipt,
	}
	// reading a strings.Reader cannot fail
	_ = msg.Attach(strings.NewReader(receipt.Text()), "receipt-"+p.ReceiptNumber+".txt", "text/plain; charset=utf-8")
	svc.mailSvc.SendMessages(msg)
}

func (svc *Service) GetPayment(ctx context.Context, id int64) (Payment, error) {
	return svc.repo.GetPaymentByID(ctx, id)
}

func (svc *Service) GetPaymentByReceipt(ctx context.Context, receiptNumber string) (Payment, error) {
	return svc.repo.GetPaymentByReceipt(ctx, strings.ToUpper(core.CleanString(receiptNumber)))
}

func (svc *Service) QueryPayments(ctx context.Context, filter QueryFilter) ([]Payment, core.Pagination, error) {
	filter.Clean()
	if !filter.StartDate.IsZero() && !filter.EndDate.IsZero() && filter.EndDate.Before(filter.StartDate) {
		return nil, core.Pagination{}, ErrInvalidPeriod
	}
	payments, total, err := svc.repo.QueryPayments(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying payments")
	}
	return payments, core.NewPagination(filter.PageQuery, total), nil
}

// GetStudentPayments lists every payment made by the student, latest first.
func (svc *Service) GetStudentPayments(ctx context.Context, studentID int64) ([]Payment, error) {
	if _, err := svc.peopleSvc.GetStudent(ctx, studentID); err != nil {
		return nil, err
	}
	filter := QueryFilter{
		PageQuery: core.PageQuery{SortBy: "payment_date", SortOrder: "desc"},
		StudentID: studentID,
	}
	filter.Clean()
	payments, err := core.QueryAll(filter.PageQuery, func(pq core.PageQuery) ([]Payment, int, error) {
		filter.PageQuery = pq
		return svc.repo.QueryPayments(ctx, filter)
	})
	return payments, errors.Wrap(err, "querying student payments")
}

func (svc *Service) UpdatePayment(ctx context.Context, id int64, up UpdatePayment) (Payment, error) {
	if up.IsEmpty() {
		return Payment{}, ErrNoFieldsToUpdate
	}
	p, err := svc.repo.GetPaymentByID(ctx, id)
	if err != nil {
		return Payment{}, err
	}
	if up.PaymentMethod != nil {
		p.PaymentMethod = *up.PaymentMethod
	}
	if up.TransactionReference != nil {
		p.TransactionReference = *up.TransactionReference
	}
	if up.Remarks != nil {
		p.Remarks = *up.Remarks
	}
	p.UpdatedAt = now()

	p, err = svc.repo.UpdatePayment(ctx, p)
	return p, errors.Wrap(err, "updating payment")
}

func (svc *Service) DeletePayment(ctx context.Context, id int64) error {
	return svc.repo.DeletePayment(ctx, id)
}

// GetOutstandingPayments lists the unpaid balances per student and fee structure.
func (svc *Service) GetOutstandingPayments(ctx context.Context, filter OutstandingFilter) ([]Outstanding, error) {
	rows, err := svc.repo.QueryOutstanding(ctx, filter)
	return rows, errors.Wrap(err, "querying outstanding payments")
}

// GetPaymentStats summarizes the payments made between `start` and `end`.
// A zero `end` means today; a zero `start` means the first day of `end`'s month.
func (svc *Service) GetPaymentStats(ctx context.Context, start, end core.Date) (Stats, error) {
	if end.IsZero() {
		end = core.DateOf(now())
	}
	if start.IsZero() {
		start = core.NewDate(end.Year(), end.Month(), 1)
	}
	if end.Before(start) {
		return Stats{}, ErrInvalidPeriod
	}

	byStatus, err := svc.repo.PaymentStats(ctx, start, end)
	if err != nil {
		return Stats{}, errors.Wrap(err, "aggregating payments")
	}
	stats := Stats{StartDate: start, EndDate: end, ByStatus: byStatus}
	for _, s := range byStatus {
		stats.TotalPayments += s.Count
		stats.TotalCollected += s.Amount
	}
	stats.TotalCollected = RoundAmount(stats.TotalCollected)
	return stats, nil
}

// RefreshStatuses marks the Pending and Partial payments of past-due fee structures as Overdue
// when the student's cumulative payments for that fee are still below its amount.
func (svc *Service) RefreshStatuses(ctx context.Context) (int64, error) {
	t := now()
	n, err := svc.repo.MarkOverdue(ctx, core.DateOf(t), t)
	return n, errors.Wrap(err, "marking overdue payments")
}

// RoundAmount rounds a money amount to cents.
func RoundAmount(f float64) float64 {
	return math.Round(f*100) / 100
}
