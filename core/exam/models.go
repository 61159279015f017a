package exam

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

type (
	ExamType struct {
		ID          int64     `json:"id" db:"id"`
		Name        string    `json:"name" db:"name"`
		Description string    `json:"description" db:"description"`
		Weight      float64   `json:"weight" db:"weight"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	}

	Examination struct {
		ID              int64     `json:"id" db:"id"`
		Title           string    `json:"title" db:"title"`
		ExamTypeID      int64     `json:"exam_type_id" db:"exam_type_id"`
		SubjectID       int64     `json:"subject_id" db:"subject_id"`
		GradeID         int64     `json:"grade_id" db:"grade_id"`
		SectionID       int64     `json:"section_id" db:"section_id"`
		AcademicYearID  int64     `json:"academic_year_id" db:"academic_year_id"`
		TermID          int64     `json:"term_id" db:"term_id"`
		ExamDate        core.Date `json:"exam_date" db:"exam_date"`
		DurationMinutes int       `json:"duration_minutes" db:"duration_minutes"`
		TotalMarks      float64   `json:"total_marks" db:"total_marks"`
		PassingMarks    float64   `json:"passing_marks" db:"passing_marks"`
		Description     string    `json:"description" db:"description"`
		CreatedBy       *int64    `json:"created_by" db:"created_by"`
		CreatedAt       time.Time `json:"created_at" db:"created_at"`
		UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		ExamTypeName string `json:"exam_type_name" db:"exam_type_name"`
		SubjectName  string `json:"subject_name" db:"subject_name"`
		GradeName    string `json:"grade_name" db:"grade_name"`
		SectionName  string `json:"section_name" db:"section_name"`
	}

	Result struct {
		ID            int64     `json:"id" db:"id"`
		ExaminationID int64     `json:"examination_id" db:"examination_id"`
		StudentID     int64     `json:"student_id" db:"student_id"`
		MarksObtained float64   `json:"marks_obtained" db:"marks_obtained"`
		Grade         string    `json:"grade" db:"grade"`
		Remarks       string    `json:"remarks" db:"remarks"`
		EnteredBy     *int64    `json:"entered_by" db:"entered_by"`
		CreatedAt     time.Time `json:"created_at" db:"created_at"`
		UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		StudentName     string    `json:"student_name" db:"student_name"`
		AdmissionNumber string    `json:"admission_number" db:"admission_number"`
		ExamTitle       string    `json:"exam_title" db:"exam_title"`
		ExamDate        core.Date `json:"exam_date" db:"exam_date"`
		SubjectName     string    `json:"subject_name" db:"subject_name"`
		ExamTypeName    string    `json:"exam_type_name" db:"exam_type_name"`
		TotalMarks      float64   `json:"total_marks" db:"total_marks"`
		PassingMarks    float64   `json:"passing_marks" db:"passing_marks"`
	}

	// Stats aggregates the results of one examination.
	Stats struct {
		ExaminationID int64   `json:"examination_id"`
		TotalStudents int     `json:"total_students"`
		AverageMarks  float64 `json:"average_marks"`
		HighestMarks  float64 `json:"highest_marks"`
		LowestMarks   float64 `json:"lowest_marks"`
		Passed        int     `json:"passed"`
		Failed        int     `json:"failed"`
		PassRate      float64 `json:"pass_rate"`
	}
)

// LetterGrade maps a percentage of the total marks onto a letter grade.
func LetterGrade(marks, total float64) string {
	if total <= 0 {
		return ""
	}
	pct := marks / total * 100
	switch {
	case pct >= 80:
		return "A"
	case pct >= 70:
		return "B"
	case pct >= 60:
		return "C"
	case pct >= 50:
		return "D"
	case pct >= 40:
		return "E"
	default:
		return "F"
	}
}

// Exam Types

type NewExamType struct {
	Name        string  `json:"name" validate:"required,max=50"`
	Description string  `json:"description" validate:"max=255"`
	Weight      float64 `json:"weight" validate:"min=0,max=100"`
}

func (nt *NewExamType) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	nt.Description = core.CleanString(nt.Description)
	return validate.Struct(nt)
}

type UpdateExamType struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=50"`
	Description *string  `json:"description" validate:"omitempty,max=255"`
	Weight      *float64 `json:"weight" validate:"omitempty,min=0,max=100"`
}

func (ut *UpdateExamType) IsEmpty() bool {
	return ut.Name == nil && ut.Description == nil && ut.Weight == nil
}

func (ut *UpdateExamType) Validate(validate *validator.Validate) error {
	cleanPtr(ut.Name)
	cleanPtr(ut.Description)
	return validate.Struct(ut)
}

// Examinations

type NewExamination struct {
	Title           string    `json:"title" validate:"required,max=150"`
	ExamTypeID      int64     `json:"exam_type_id" validate:"required"`
	SubjectID       int64     `json:"subject_id" validate:"required"`
	GradeID         int64     `json:"grade_id" validate:"required"`
	SectionID       int64     `json:"section_id" validate:"required"`
	AcademicYearID  int64     `json:"academic_year_id" validate:"required"`
	TermID          int64     `json:"term_id" validate:"required"`
	ExamDate        core.Date `json:"exam_date" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"min=0,max=1440"`
	TotalMarks      float64   `json:"total_marks" validate:"required,gt=0"`
	PassingMarks    float64   `json:"passing_marks" validate:"min=0"`
	Description     string    `json:"description" validate:"max=255"`
}

func (ne *NewExamination) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Description = core.CleanString(ne.Description)
	if err := validate.Struct(ne); err != nil {
		return err
	}
	return checkMarks(ne.TotalMarks, ne.PassingMarks)
}

type UpdateExamination struct {
	Title           *string    `json:"title" validate:"omitempty,min=1,max=150"`
	ExamTypeID      *int64     `json:"exam_type_id" validate:"omitempty,min=1"`
	SubjectID       *int64     `json:"subject_id" validate:"omitempty,min=1"`
	SectionID       *int64     `json:"section_id" validate:"omitempty,min=1"`
	TermID          *int64     `json:"term_id" validate:"omitempty,min=1"`
	ExamDate        *core.Date `json:"exam_date"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,min=0,max=1440"`
	TotalMarks      *float64   `json:"total_marks" validate:"omitempty,gt=0"`
	PassingMarks    *float64   `json:"passing_marks" validate:"omitempty,min=0"`
	Description     *string    `json:"description" validate:"omitempty,max=255"`
}

func (ue *UpdateExamination) IsEmpty() bool {
	return ue.Title == nil && ue.ExamTypeID == nil && ue.SubjectID == nil && ue.SectionID == nil &&
		ue.TermID == nil && ue.ExamDate == nil && ue.DurationMinutes == nil && ue.TotalMarks == nil &&
		ue.PassingMarks == nil && ue.Description == nil
}

func (ue *UpdateExamination) Validate(validate *validator.Validate) error {
	cleanPtr(ue.Title)
	cleanPtr(ue.Description)
	return validate.Struct(ue)
}

// Results

type NewResult struct {
	ExaminationID int64   `json:"examination_id" validate:"required"`
	StudentID     int64   `json:"student_id" validate:"required"`
	MarksObtained float64 `json:"marks_obtained"`
	Remarks       string  `json:"remarks" validate:"max=255"`
}

func (nr *NewResult) Validate(validate *validator.Validate) error {
	nr.Remarks = core.CleanString(nr.Remarks)
	return validate.Struct(nr)
}

type UpdateResult struct {
	MarksObtained *float64 `json:"marks_obtained"`
	Remarks       *string  `json:"remarks" validate:"omitempty,max=255"`
}

func (ur *UpdateResult) IsEmpty() bool { return ur.MarksObtained == nil && ur.Remarks == nil }

func (ur *UpdateResult) Validate(validate *validator.Validate) error {
	cleanPtr(ur.Remarks)
	return validate.Struct(ur)
}

// Filters

type (
	ExamTypeFilter struct {
		core.PageQuery
	}

	ExaminationFilter struct {
		core.PageQuery
		ExamTypeID     int64
		SubjectID      int64
		GradeID        int64
		SectionID      int64
		AcademicYearID int64
		TermID         int64
		StartDate      core.Date
		EndDate        core.Date
	}

	// ResultFilter narrows a student's results down to a year and/or a term.
	ResultFilter struct {
		ExaminationID  int64
		StudentID      int64
		AcademicYearID int64
		TermID         int64
	}
)

func cleanPtr(s *string) {
	if s != nil {
		*s = core.CleanString(*s)
	}
}

func checkMarks(total, passing float64) error {
	if passing > total {
		return core.NewFieldError("passing_marks", "passing marks cannot exceed total marks")
	}
	return nil
}

func checkMarksObtained(marks, total float64) error {
	if marks < 0 {
		return core.NewFieldError("marks_obtained", "marks obtained cannot be negative")
	}
	if marks > total {
		return core.NewFieldError("marks_obtained", "marks obtained cannot exceed total marks")
	}
	return nil
}
