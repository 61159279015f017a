package academic

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
)

const DefaultSectionCapacity = 40

type (
	Grade struct {
		ID          int64     `json:"id" db:"id"`
		Name        string    `json:"name" db:"name"`
		Level       int       `json:"level" db:"level"`
		Description string    `json:"description" db:"description"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	}

	Section struct {
		ID             int64     `json:"id" db:"id"`
		GradeID        int64     `json:"grade_id" db:"grade_id"`
		AcademicYearID int64     `json:"academic_year_id" db:"academic_year_id"`
		Name           string    `json:"name" db:"name"`
		Capacity       int       `json:"capacity" db:"capacity"`
		ClassTeacherID *int64    `json:"class_teacher_id" db:"class_teacher_id"`
		Room           string    `json:"room" db:"room"`
		CreatedAt      time.Time `json:"created_at" db:"created_at"`
		UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		GradeName        string `json:"grade_name" db:"grade_name"`
		AcademicYearName string `json:"academic_year_name" db:"academic_year_name"`
		StudentCount     int    `json:"student_count" db:"student_count"`
	}

	Subject struct {
		ID          int64     `json:"id" db:"id"`
		Name        string    `json:"name" db:"name"`
		Code        string    `json:"code" db:"code"`
		Description string    `json:"description" db:"description"`
		CreatedAt   time.Time `json:"created_at" db:"created_at"`
		UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
	}

	GradeSubject struct {
		GradeID      int64     `json:"grade_id" db:"grade_id"`
		SubjectID    int64     `json:"subject_id" db:"subject_id"`
		IsCompulsory bool      `json:"is_compulsory" db:"is_compulsory"`
		CreatedAt    time.Time `json:"created_at" db:"created_at"`

		// read-only
		SubjectName string `json:"subject_name" db:"subject_name"`
		SubjectCode string `json:"subject_code" db:"subject_code"`
	}

	AcademicYear struct {
		ID        int64     `json:"id" db:"id"`
		Name      string    `json:"name" db:"name"`
		StartDate core.Date `json:"start_date" db:"start_date"`
		EndDate   core.Date `json:"end_date" db:"end_date"`
		IsCurrent bool      `json:"is_current" db:"is_current"`
		CreatedAt time.Time `json:"created_at" db:"created_at"`
		UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
	}

	Term struct {
		ID             int64     `json:"id" db:"id"`
		AcademicYearID int64     `json:"academic_year_id" db:"academic_year_id"`
		Name           string    `json:"name" db:"name"`
		StartDate      core.Date `json:"start_date" db:"start_date"`
		EndDate        core.Date `json:"end_date" db:"end_date"`
		IsCurrent      bool      `json:"is_current" db:"is_current"`
		CreatedAt      time.Time `json:"created_at" db:"created_at"`
		UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		AcademicYearName string `json:"academic_year_name" db:"academic_year_name"`
	}
)

// Grades

type NewGrade struct {
	Name        string `json:"name" validate:"required,max=50"`
	Level       int    `json:"level" validate:"min=0,max=100"`
	Description string `json:"description" validate:"max=255"`
}

func (ng *NewGrade) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	return validate.Struct(ng)
}

type UpdateGrade struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=50"`
	Level       *int    `json:"level" validate:"omitempty,min=0,max=100"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

func (ug *UpdateGrade) IsEmpty() bool {
	return ug.Name == nil && ug.Level == nil && ug.Description == nil
}

func (ug *UpdateGrade) Validate(validate *validator.Validate) error {
	cleanPtr(ug.Name)
	cleanPtr(ug.Description)
	return validate.Struct(ug)
}

// Sections

type NewSection struct {
	GradeID        int64  `json:"grade_id" validate:"required"`
	AcademicYearID int64  `json:"academic_year_id" validate:"required"`
	Name           string `json:"name" validate:"required,max=50"`
	Capacity       int    `json:"capacity" validate:"omitempty,min=1,max=1000"`
	ClassTeacherID *int64 `json:"class_teacher_id"`
	Room           string `json:"room" validate:"max=50"`
}

func (ns *NewSection) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Room = core.CleanString(ns.Room)
	return validate.Struct(ns)
}

type UpdateSection struct {
	Name           *string `json:"name" validate:"omitempty,min=1,max=50"`
	Capacity       *int    `json:"capacity" validate:"omitempty,min=1,max=1000"`
	ClassTeacherID *int64  `json:"class_teacher_id"`
	Room           *string `json:"room" validate:"omitempty,max=50"`
}

func (us *UpdateSection) IsEmpty() bool {
	return us.Name == nil && us.Capacity == nil && us.ClassTeacherID == nil && us.Room == nil
}

func (us *UpdateSection) Validate(validate *validator.Validate) error {
	cleanPtr(us.Name)
	cleanPtr(us.Room)
	return validate.Struct(us)
}

// Subjects

type NewSubject struct {
	Name        string `json:"name" validate:"required,max=100"`
	Code        string `json:"code" validate:"required,max=20,alphanum_"`
	Description string `json:"description" validate:"max=255"`
}

func (ns *NewSubject) Validate(validate *validator.Validate) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Code = normalizeCode(ns.Code)
	ns.Description = core.CleanString(ns.Description)
	return validate.Struct(ns)
}

type UpdateSubject struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=100"`
	Code        *string `json:"code" validate:"omitempty,min=1,max=20,alphanum_"`
	Description *string `json:"description" validate:"omitempty,max=255"`
}

func (us *UpdateSubject) IsEmpty() bool {
	return us.Name == nil && us.Code == nil && us.Description == nil
}

func (us *UpdateSubject) Validate(validate *validator.Validate) error {
	cleanPtr(us.Name)
	cleanPtr(us.Description)
	if us.Code != nil {
		*us.Code = normalizeCode(*us.Code)
	}
	return validate.Struct(us)
}

type AssignSubject struct {
	SubjectID    int64 `json:"subject_id" validate:"required"`
	IsCompulsory *bool `json:"is_compulsory"`
}

func (as *AssignSubject) Validate(validate *validator.Validate) error { return validate.Struct(as) }

// Academic Years

type NewAcademicYear struct {
	Name      string    `json:"name" validate:"required,max=20"`
	StartDate core.Date `json:"start_date" validate:"required"`
	EndDate   core.Date `json:"end_date" validate:"required"`
}

func (ny *NewAcademicYear) Validate(validate *validator.Validate) error {
	ny.Name = core.CleanString(ny.Name)
	if err := validate.Struct(ny); err != nil {
		return err
	}
	return checkPeriod(ny.StartDate, ny.EndDate)
}

type UpdateAcademicYear struct {
	Name      *string    `json:"name" validate:"omitempty,min=1,max=20"`
	StartDate *core.Date `json:"start_date"`
	EndDate   *core.Date `json:"end_date"`
}

func (uy *UpdateAcademicYear) IsEmpty() bool {
	return uy.Name == nil && uy.StartDate == nil && uy.EndDate == nil
}

func (uy *UpdateAcademicYear) Validate(validate *validator.Validate) error {
	cleanPtr(uy.Name)
	return validate.Struct(uy)
}

// Terms

type NewTerm struct {
	AcademicYearID int64     `json:"academic_year_id" validate:"required"`
	Name           string    `json:"name" validate:"required,max=50"`
	StartDate      core.Date `json:"start_date" validate:"required"`
	EndDate        core.Date `json:"end_date" validate:"required"`
}

func (nt *NewTerm) Validate(validate *validator.Validate) error {
	nt.Name = core.CleanString(nt.Name)
	if err := validate.Struct(nt); err != nil {
		return err
	}
	return checkPeriod(nt.StartDate, nt.EndDate)
}

type UpdateTerm struct {
	Name      *string    `json:"name" validate:"omitempty,min=1,max=50"`
	StartDate *core.Date `json:"start_date"`
	EndDate   *core.Date `json:"end_date"`
}

func (ut *UpdateTerm) IsEmpty() bool {
	return ut.Name == nil && ut.StartDate == nil && ut.EndDate == nil
}

func (ut *UpdateTerm) Validate(validate *validator.Validate) error {
	cleanPtr(ut.Name)
	return validate.Struct(ut)
}

// Filters

type (
	GradeFilter struct {
		core.PageQuery
	}

	SectionFilter struct {
		core.PageQuery
		GradeID        int64
		AcademicYearID int64
	}

	SubjectFilter struct {
		core.PageQuery
		GradeID int64
	}

	AcademicYearFilter struct {
		core.PageQuery
	}

	TermFilter struct {
		core.PageQuery
		AcademicYearID int64
	}
)

func cleanPtr(s *string) {
	if s != nil {
		*s = core.CleanString(*s)
	}
}

func normalizeCode(code string) string {
	return strings.ToUpper(core.CleanString(code))
}

func checkPeriod(start, end core.Date) error {
	if !end.After(start) {
		return core.NewFieldError("end_date", "end date must be after start date")
	}
	return nil
}
