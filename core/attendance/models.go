package attendance

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

// Statuses
const (
	StatusPresent = "Present"
	StatusAbsent  = "Absent"
	StatusLate    = "Late"
	StatusExcused = "Excused"
)

var AllStatuses = []string{StatusPresent, StatusAbsent, StatusLate, StatusExcused}

type Attendance struct {
	ID        int64     `json:"id" db:"id"`
	StudentID int64     `json:"student_id" db:"student_id"`
	SectionID int64     `json:"section_id" db:"section_id"`
	Date      core.Date `json:"date" db:"attendance_date"`
	Status    string    `json:"status" db:"status"`
	Remarks   string    `json:"remarks" db:"remarks"`
	MarkedBy  *int64    `json:"marked_by" db:"marked_by"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// read-only
	StudentName     string `json:"student_name" db:"student_name"`
	AdmissionNumber string `json:"admission_number" db:"admission_number"`
	SectionName     string `json:"section_name" db:"section_name"`
}

type Entry struct {
	StudentID int64  `json:"student_id" validate:"required"`
	Status    string `json:"status" validate:"required,attstatus"`
	Remarks   string `json:"remarks" validate:"max=255"`
}

// MarkAttendance records the attendance of a section's students for one day.
type MarkAttendance struct {
	SectionID int64     `json:"section_id" validate:"required"`
	Date      core.Date `json:"date" validate:"required"`
	Entries   []Entry   `json:"entries" validate:"required,min=1,dive"`
}

func (ma *MarkAttendance) Validate(validate *validator.Validate) error {
	for i := range ma.Entries {
		ma.Entries[i].Remarks = core.CleanString(ma.Entries[i].Remarks)
	}
	return validate.Struct(ma)
}

type UpdateAttendance struct {
	Status  *string `json:"status" validate:"omitempty,attstatus"`
	Remarks *string `json:"remarks" validate:"omitempty,max=255"`
}

func (ua *UpdateAttendance) IsEmpty() bool { return ua.Status == nil && ua.Remarks == nil }

func (ua *UpdateAttendance) Validate(validate *validator.Validate) error {
	if ua.Remarks != nil {
		*ua.Remarks = core.CleanString(*ua.Remarks)
	}
	return validate.Struct(ua)
}

type QueryFilter struct {
	core.PageQuery
	StudentID int64
	SectionID int64
	StartDate core.Date
	EndDate   core.Date
	Status    string
}

// Summary counts a student's attendance per status over a period.
type Summary struct {
	StudentID      int64     `json:"student_id"`
	StartDate      core.Date `json:"start_date"`
	EndDate        core.Date `json:"end_date"`
	TotalDays      int       `json:"total_days"`
	Present        int       `json:"present"`
	Absent         int       `json:"absent"`
	Late           int       `json:"late"`
	Excused        int       `json:"excused"`
	AttendanceRate float64   `json:"attendance_rate"` // % of days present or late
}
