package payment

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Fee types
const (
	FeeTuition     = "Tuition"
	FeeTransport   = "Transport"
	FeeLibrary     = "Library"
	FeeLaboratory  = "Laboratory"
	FeeSports      = "Sports"
	FeeExamination = "Examination"
	FeeOther       = "Other"
)

// Payment methods
const (
	MethodCash         = "Cash"
	MethodBankTransfer = "Bank Transfer"
	MethodCard         = "Card"
	MethodMobileMoney  = "Mobile Money"
	MethodCheque       = "Cheque"
)

// Statuses
const (
	StatusPaid    = "Paid"
	StatusPartial = "Partial"
	StatusPending = "Pending"
	StatusOverdue = "Overdue"
)

var (
	AllFeeTypes = []string{FeeTuition, FeeTransport, FeeLibrary, FeeLaboratory, FeeSports, FeeExamination, FeeOther}
	AllMethods  = []string{MethodCash, MethodBankTransfer, MethodCard, MethodMobileMoney, MethodCheque}
	AllStatuses = []string{StatusPaid, StatusPartial, StatusPending, StatusOverdue}
)

type (
	FeeStructure struct {
		ID             int64     `json:"id" db:"id"`
		GradeID        int64     `json:"grade_id" db:"grade_id"`
		AcademicYearID int64     `json:"academic_year_id" db:"academic_year_id"`
		TermID         int64     `json:"term_id" db:"term_id"`
		FeeType        string    `json:"fee_type" db:"fee_type"`
		Amount         float64   `json:"amount" db:"amount"`
		DueDate        core.Date `json:"due_date" db:"due_date"`
		Description    string    `json:"description" db:"description"`
		CreatedBy      *int64    `json:"created_by" db:"created_by"`
		CreatedAt      time.Time `json:"created_at" db:"created_at"`
		UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		GradeName        string `json:"grade_name" db:"grade_name"`
		AcademicYearName string `json:"academic_year_name" db:"academic_year_name"`
		TermName         string `json:"term_name" db:"term_name"`
	}

	Payment struct {
		ID                   int64     `json:"id" db:"id"`
		StudentID            int64     `json:"student_id" db:"student_id"`
		FeeStructureID       int64     `json:"fee_structure_id" db:"fee_structure_id"`
		Amount               float64   `json:"amount" db:"amount"`
		PaymentDate          core.Date `json:"payment_date" db:"payment_date"`
		PaymentMethod        string    `json:"payment_method" db:"payment_method"`
		TransactionReference string    `json:"transaction_reference" db:"transaction_reference"`
		ReceiptNumber        string    `json:"receipt_number" db:"receipt_number"`
		Status               string    `json:"status" db:"status"`
		Remarks              string    `json:"remarks" db:"remarks"`
		ReceivedBy           *int64    `json:"received_by" db:"received_by"`
		CreatedAt            time.Time `json:"created_at" db:"created_at"`
		UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		StudentName     string  `json:"student_name" db:"student_name"`
		AdmissionNumber string  `json:"admission_number" db:"admission_number"`
		FeeType         string  `json:"fee_type" db:"fee_type"`
		FeeAmount       float64 `json:"fee_amount" db:"fee_amount"`
	}

	// Outstanding is the unpaid balance of a student for one fee structure.
	Outstanding struct {
		StudentID         int64     `json:"student_id" db:"student_id"`
		StudentName       string    `json:"student_name" db:"student_name"`
		AdmissionNumber   string    `json:"admission_number" db:"admission_number"`
		FeeStructureID    int64     `json:"fee_structure_id" db:"fee_structure_id"`
		FeeType           string    `json:"fee_type" db:"fee_type"`
		GradeName         string    `json:"grade_name" db:"grade_name"`
		TermName          string    `json:"term_name" db:"term_name"`
		DueDate           core.Date `json:"due_date" db:"due_date"`
		TotalAmount       float64   `json:"total_amount" db:"total_amount"`
		PaidAmount        float64   `json:"paid_amount" db:"paid_amount"`
		OutstandingAmount float64   `json:"outstanding_amount" db:"outstanding_amount"`
	}

	StatusStats struct {
		Status string  `json:"status" db:"status"`
		Count  int     `json:"count" db:"count"`
		Amount float64 `json:"amount" db:"amount"`
	}

	// Stats summarizes the payments received over a period.
	Stats struct {
		StartDate      core.Date     `json:"start_date"`
		EndDate        core.Date     `json:"end_date"`
		TotalCollected float64       `json:"total_collected"`
		TotalPayments  int           `json:"total_payments"`
		ByStatus       []StatusStats `json:"by_status"`
	}

	// Receipt is the data rendered into the payment receipt email.
	Receipt struct {
		StudentName   string
		Amount        string
		FeeType       string
		PaymentDate   string
		ReceiptNumber string
		PaymentMethod string
		Status        string
	}
)

// Text renders the receipt as the plain text file attached to the receipt email.
func (r Receipt) Text() string {
	var b strings.Builder
	for _, line := range [][2]string{
		{"Receipt number", r.ReceiptNumber},
		{"Student", r.StudentName},
		{"Fee type", r.FeeType},
		{"Amount", r.Amount},
		{"Payment date", r.PaymentDate},
		{"Payment method", r.PaymentMethod},
		{"Status", r.Status},
	} {
		_, _ = fmt.Fprintf(&b, "%-16s%s\n", line[0]+":", line[1])
	}
	return b.String()
}

// Fee Structures

type NewFeeStructure struct {
	GradeID        int64     `json:"grade_id" validate:"required"`
	AcademicYearID int64     `json:"academic_year_id" validate:"required"`
	TermID         int64     `json:"term_id" validate:"required"`
	FeeType        string    `json:"fee_type" validate:"required,feetype"`
	Amount         float64   `json:"amount" validate:"required,gt=0"`
	DueDate        core.Date `json:"due_date"`
	Description    string    `json:"description" validate:"max=255"`
}

func (nf *NewFeeStructure) Validate(validate *validator.Validate) error {
	nf.Description = core.CleanString(nf.Description)
	return validate.Struct(nf)
}

type UpdateFeeStructure struct {
	FeeType     *string    `json:"fee_type" validate:"omitempty,feetype"`
	Amount      *float64   `json:"amount" validate:"omitempty,gt=0"`
	DueDate     *core.Date `json:"due_date"`
	Description *string    `json:"description" validate:"omitempty,max=255"`
}

func (uf *UpdateFeeStructure) IsEmpty() bool {
	return uf.FeeType == nil && uf.Amount == nil && uf.DueDate == nil && uf.Description == nil
}

func (uf *UpdateFeeStructure) Validate(validate *validator.Validate) error {
	if uf.Description != nil {
		*uf.Description = core.CleanString(*uf.Description)
	}
	return validate.Struct(uf)
}

// Payments

type NewPayment struct {
	StudentID            int64     `json:"student_id" validate:"required"`
	FeeStructureID       int64     `json:"fee_structure_id" validate:"required"`
	Amount               float64   `json:"amount" validate:"required,gt=0"`
	PaymentDate          core.Date `json:"payment_date"`
	PaymentMethod        string    `json:"payment_method" validate:"required,paymethod"`
	TransactionReference string    `json:"transaction_reference" validate:"max=100"`
	Remarks              string    `json:"remarks" validate:"max=255"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.TransactionReference = core.CleanString(np.TransactionReference)
	np.Remarks = core.CleanString(np.Remarks)
	return validate.Struct(np)
}

type UpdatePayment struct {
	PaymentMethod        *string `json:"payment_method" validate:"omitempty,paymethod"`
	TransactionReference *string `json:"transaction_reference" validate:"omitempty,max=100"`
	Remarks              *string `json:"remarks" validate:"omitempty,max=255"`
}

func (up *UpdatePayment) IsEmpty() bool {
	return up.PaymentMethod == nil && up.TransactionReference == nil && up.Remarks == nil
}

func (up *UpdatePayment) Validate(validate *validator.Validate) error {
	if up.TransactionReference != nil {
		*up.TransactionReference = core.CleanString(*up.TransactionReference)
	}
	if up.Remarks != nil {
		*up.Remarks = core.CleanString(*up.Remarks)
	}
	return validate.Struct(up)
}

// Filters

type (
	FeeStructureFilter struct {
		core.PageQuery
		GradeID        int64
		AcademicYearID int64
		TermID         int64
		FeeType        string
	}

	QueryFilter struct {
		core.PageQuery
		StudentID      int64
		FeeStructureID int64
		Status         string
		StartDate      core.Date
		EndDate        core.Date
	}

	OutstandingFilter struct {
		GradeID        int64
		StudentID      int64
		AcademicYearID int64
		TermID         int64
	}
)
