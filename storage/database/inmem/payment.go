package inmemdb

import (
	"cmp"
	"context"
	"time"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/payment"
)

var (
	feeStructureOrderings = orderings[payment.FeeStructure]{
		"fee_type":   func(a, b payment.FeeStructure) int { return compareStrings(a.FeeType, b.FeeType) },
		"amount":     func(a, b payment.FeeStructure) int { return cmp.Compare(a.Amount, b.Amount) },
		"due_date":   func(a, b payment.FeeStructure) int { return compareDates(a.DueDate, b.DueDate) },
		"created_at": func(a, b payment.FeeStructure) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
	paymentOrderings = orderings[payment.Payment]{
		"amount":       func(a, b payment.Payment) int { return cmp.Compare(a.Amount, b.Amount) },
		"payment_date": func(a, b payment.Payment) int { return compareDates(a.PaymentDate, b.PaymentDate) },
		"status":       func(a, b payment.Payment) int { return compareStrings(a.Status, b.Status) },
		"created_at":   func(a, b payment.Payment) int { return a.CreatedAt.Compare(b.CreatedAt) },
	}
)

type paymentRepository struct {
	db *DB
}

var _ payment.Repository = (*paymentRepository)(nil) // interface compliance check

func NewPaymentRepository(db *DB) *paymentRepository {
	return &paymentRepository{db: db}
}

// Fee Structures

func (db *DB) feeStructure(fs payment.FeeStructure) payment.FeeStructure {
	if g, ok := db.grades[fs.GradeID]; ok {
		fs.GradeName = g.Name
	}
	if y, ok := db.years[fs.AcademicYearID]; ok {
		fs.AcademicYearName = y.Name
	}
	if t, ok := db.terms[fs.TermID]; ok {
		fs.TermName = t.Name
	}
	return fs
}

func (db *DB) feeStructureExists(gradeID, yearID, termID int64, feeType string, excludeID int64) bool {
	return exists(db.feeStructures, excludeID, func(fs payment.FeeStructure) bool {
		return fs.GradeID == gradeID && fs.AcademicYearID == yearID && fs.TermID == termID && fs.FeeType == feeType
	})
}

func (repo *paymentRepository) FeeStructureExists(
	_ context.Context,
	gradeID, academicYearID, termID int64,
	feeType string,
	excludeID int64,
) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.feeStructureExists(gradeID, academicYearID, termID, feeType, excludeID), nil
}

func (repo *paymentRepository) CreateFeeStructure(_ context.Context, fs payment.FeeStructure) (payment.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if repo.db.feeStructureExists(fs.GradeID, fs.AcademicYearID, fs.TermID, fs.FeeType, 0) {
		return payment.FeeStructure{}, payment.ErrFeeStructureExists
	}
	_, gradeOK := repo.db.grades[fs.GradeID]
	_, yearOK := repo.db.years[fs.AcademicYearID]
	_, termOK := repo.db.terms[fs.TermID]
	if !gradeOK || !yearOK || !termOK {
		return payment.FeeStructure{}, errReferenced
	}
	fs.ID = repo.db.nextID()
	repo.db.feeStructures[fs.ID] = &fs
	return repo.db.feeStructure(fs), nil
}

func (repo *paymentRepository) GetFeeStructureByID(_ context.Context, id int64) (payment.FeeStructure, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if fs, ok := repo.db.feeStructures[id]; ok {
		return repo.db.feeStructure(*fs), nil
	}
	return payment.FeeStructure{}, payment.ErrFeeStructureNotFound
}

func (repo *paymentRepository) QueryFeeStructures(_ context.Context, filter payment.FeeStructureFilter) ([]payment.FeeStructure, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	structures := where(rows(repo.db.feeStructures), func(fs payment.FeeStructure) bool {
		return (filter.Search == "" || matches(filter.Search, fs.FeeType, fs.Description)) &&
			(filter.GradeID == 0 || fs.GradeID == filter.GradeID) &&
			(filter.AcademicYearID == 0 || fs.AcademicYearID == filter.AcademicYearID) &&
			(filter.TermID == 0 || fs.TermID == filter.TermID) &&
			(filter.FeeType == "" || fs.FeeType == filter.FeeType)
	})
	for i := range structures {
		structures[i] = repo.db.feeStructure(structures[i])
	}
	structures, total := paginate(structures, filter.PageQuery, feeStructureOrderings, "created_at", false)
	return structures, total, nil
}

func (repo *paymentRepository) UpdateFeeStructure(_ context.Context, fs payment.FeeStructure) (payment.FeeStructure, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.feeStructures[fs.ID]
	if !ok {
		return payment.FeeStructure{}, payment.ErrFeeStructureNotFound
	}
	if repo.db.feeStructureExists(orig.GradeID, orig.AcademicYearID, orig.TermID, fs.FeeType, fs.ID) {
		return payment.FeeStructure{}, payment.ErrFeeStructureExists
	}
	orig.FeeType, orig.Amount, orig.DueDate = fs.FeeType, fs.Amount, fs.DueDate
	orig.Description, orig.UpdatedAt = fs.Description, fs.UpdatedAt
	return repo.db.feeStructure(*orig), nil
}

func (repo *paymentRepository) DeleteFeeStructure(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.feeStructures[id]; !ok {
		return payment.ErrFeeStructureNotFound
	}
	if count(repo.db.payments, func(p payment.Payment) bool { return p.FeeStructureID == id }) > 0 {
		return errReferenced
	}
	delete(repo.db.feeStructures, id)
	return nil
}

func (repo *paymentRepository) CountFeeStructurePayments(_ context.Context, feeStructureID int64) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return count(repo.db.payments, func(p payment.Payment) bool { return p.FeeStructureID == feeStructureID }), nil
}

func (repo *paymentRepository) MaxFeeStructurePayment(_ context.Context, feeStructureID int64) (float64, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var max float64
	for _, p := range repo.db.payments {
		if p.FeeStructureID == feeStructureID && p.Amount > max {
			max = p.Amount
		}
	}
	return max, nil
}

// Payments

func (db *DB) payment(p payment.Payment) payment.Payment {
	if st, ok := db.students[p.StudentID]; ok {
		p.StudentName = db.person(st.UserID).FullName()
		p.AdmissionNumber = st.AdmissionNumber
	}
	if fs, ok := db.feeStructures[p.FeeStructureID]; ok {
		p.FeeType, p.FeeAmount = fs.FeeType, fs.Amount
	}
	return p
}

func (repo *paymentRepository) CreatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	_, studentOK := repo.db.students[p.StudentID]
	_, feeOK := repo.db.feeStructures[p.FeeStructureID]
	if !studentOK || !feeOK {
		return payment.Payment{}, errReferenced
	}
	if p.Status == "" {
		p.Status = payment.StatusPending
	}
	p.ID = repo.db.nextID()
	repo.db.payments[p.ID] = &p
	return repo.db.payment(p), nil
}

func (repo *paymentRepository) GetPaymentByID(_ context.Context, id int64) (payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if p, ok := repo.db.payments[id]; ok {
		return repo.db.payment(*p), nil
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) GetPaymentByReceipt(_ context.Context, receiptNumber string) (payment.Payment, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, p := range repo.db.payments {
		if p.ReceiptNumber == receiptNumber {
			return repo.db.payment(*p), nil
		}
	}
	return payment.Payment{}, payment.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, filter payment.QueryFilter) ([]payment.Payment, int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	payments := rows(repo.db.payments)
	for i := range payments {
		payments[i] = repo.db.payment(payments[i])
	}
	payments = where(payments, func(p payment.Payment) bool {
		return (filter.Search == "" ||
			matches(filter.Search, p.ReceiptNumber, p.TransactionReference, p.StudentName, p.AdmissionNumber)) &&
			(filter.StudentID == 0 || p.StudentID == filter.StudentID) &&
			(filter.FeeStructureID == 0 || p.FeeStructureID == filter.FeeStructureID) &&
			(filter.Status == "" || p.Status == filter.Status) &&
			inPeriod(p.PaymentDate, filter.StartDate, filter.EndDate)
	})
	payments, total := paginate(payments, filter.PageQuery, paymentOrderings, "created_at", false)
	return payments, total, nil
}

func (repo *paymentRepository) UpdatePayment(_ context.Context, p payment.Payment) (payment.Payment, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	orig, ok := repo.db.payments[p.ID]
	if !ok {
		return payment.Payment{}, payment.ErrNotFound
	}
	orig.PaymentMethod, orig.TransactionReference, orig.Remarks = p.PaymentMethod, p.TransactionReference, p.Remarks
	orig.Status, orig.UpdatedAt = p.Status, p.UpdatedAt
	return repo.db.payment(*orig), nil
}

func (repo *paymentRepository) DeletePayment(_ context.Context, id int64) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.payments[id]; !ok {
		return payment.ErrNotFound
	}
	delete(repo.db.payments, id)
	return nil
}

// Reports

func (repo *paymentRepository) QueryOutstanding(_ context.Context, filter payment.OutstandingFilter) ([]payment.Outstanding, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	paid := repo.db.paidByFee()

	outstanding := make([]payment.Outstanding, 0)
	for _, st := range rows(repo.db.students) {
		st = repo.db.student(st)
		if st.GradeID == nil || (filter.StudentID > 0 && st.ID != filter.StudentID) {
			continue
		}
		for _, fs := range rows(repo.db.feeStructures) {
			if fs.GradeID != *st.GradeID ||
				(filter.GradeID > 0 && fs.GradeID != filter.GradeID) ||
				(filter.AcademicYearID > 0 && fs.AcademicYearID != filter.AcademicYearID) ||
				(filter.TermID > 0 && fs.TermID != filter.TermID) {
				continue
			}
			fs = repo.db.feeStructure(fs)
			amountPaid := paid[feeKey{st.ID, fs.ID}]
			balance := payment.RoundAmount(fs.Amount - amountPaid)
			if balance <= 0 {
				continue
			}
			outstanding = append(outstanding, payment.Outstanding{
				StudentID:         st.ID,
				StudentName:       st.FullName(),
				AdmissionNumber:   st.AdmissionNumber,
				FeeStructureID:    fs.ID,
				FeeType:           fs.FeeType,
				GradeName:         fs.GradeName,
				TermName:          fs.TermName,
				DueDate:           fs.DueDate,
				TotalAmount:       fs.Amount,
				PaidAmount:        amountPaid,
				OutstandingAmount: balance,
			})
		}
	}

	outstanding, _ = paginate(outstanding, pageAll, orderings[payment.Outstanding]{
		"due_date": func(a, b payment.Outstanding) int {
			if c := compareDates(a.DueDate, b.DueDate); c != 0 {
				return c
			}
			return compareStrings(a.StudentName, b.StudentName)
		},
	}, "due_date", true)
	return outstanding, nil
}

func (repo *paymentRepository) PaymentStats(_ context.Context, start, end core.Date) ([]payment.StatusStats, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	byStatus := make(map[string]*payment.StatusStats)
	for _, p := range repo.db.payments {
		if !inPeriod(p.PaymentDate, start, end) {
			continue
		}
		s, ok := byStatus[p.Status]
		if !ok {
			s = &payment.StatusStats{Status: p.Status}
			byStatus[p.Status] = s
		}
		s.Count++
		s.Amount += p.Amount
	}

	stats := make([]payment.StatusStats, 0, len(byStatus))
	for _, s := range byStatus {
		stats = append(stats, *s)
	}
	stats, _ = paginate(stats, pageAll, orderings[payment.StatusStats]{
		"status": func(a, b payment.StatusStats) int { return compareStrings(a.Status, b.Status) },
	}, "status", true)
	return stats, nil
}

func (repo *paymentRepository) MarkOverdue(_ context.Context, today core.Date, now time.Time) (int64, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	paid := repo.db.paidByFee()
	var n int64
	for _, p := range repo.db.payments {
		if p.Status != payment.StatusPending && p.Status != payment.StatusPartial {
			continue
		}
		fs, ok := repo.db.feeStructures[p.FeeStructureID]
		if !ok || fs.DueDate.IsZero() || !fs.DueDate.Before(today) {
			continue
		}
		if paid[feeKey{p.StudentID, p.FeeStructureID}] >= fs.Amount {
			continue
		}
		p.Status, p.UpdatedAt = payment.StatusOverdue, now
		n++
	}
	return n, nil
}

type feeKey struct{ studentID, feeStructureID int64 }

// paidByFee sums the payments of every (student, fee structure) pair, rounded to cents.
// The caller holds the lock.
func (db *DB) paidByFee() map[feeKey]float64 {
	paid := make(map[feeKey]float64)
	for _, p := range db.payments {
		paid[feeKey{p.StudentID, p.FeeStructureID}] += p.Amount
	}
	for k, v := range paid {
		paid[k] = payment.RoundAmount(v)
	}
	return paid
}
