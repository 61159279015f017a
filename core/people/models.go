package people

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Genders
const (
	GenderMale   = "Male"
	GenderFemale = "Female"
	GenderOther  = "Other"
)

var AllGenders = []string{GenderMale, GenderFemale, GenderOther}

// Person holds the User attributes shown on every profile.
type Person struct {
	UserID    int64  `json:"user_id" db:"user_id"`
	FirstName string `json:"first_name" db:"first_name"`
	LastName  string `json:"last_name" db:"last_name"`
	Email     string `json:"email" db:"email"`
	IsActive  bool   `json:"is_active" db:"is_active"`
}

func (p Person) FullName() string { return p.FirstName + " " + p.LastName }

// PersonOf returns the profile view of `usr`.
func PersonOf(usr user.User) Person {
	return Person{
		UserID:    usr.ID,
		FirstName: usr.FirstName,
		LastName:  usr.LastName,
		Email:     usr.Email,
		IsActive:  usr.IsActive,
	}
}

type (
	Student struct {
		ID int64 `json:"id" db:"id"`
		Person
		AdmissionNumber string    `json:"admission_number" db:"admission_number"`
		Gender          string    `json:"gender" db:"gender"`
		DateOfBirth     core.Date `json:"date_of_birth" db:"date_of_birth"`
		SectionID       *int64    `json:"section_id" db:"section_id"`
		ParentID        *int64    `json:"parent_id" db:"parent_id"`
		Address         string    `json:"address" db:"address"`
		Phone           string    `json:"phone" db:"phone"`
		AdmissionDate   core.Date `json:"admission_date" db:"admission_date"`
		CreatedAt       time.Time `json:"created_at" db:"created_at"`
		UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		SectionName string `json:"section_name" db:"section_name"`
		GradeID     *int64 `json:"grade_id" db:"grade_id"`
		GradeName   string `json:"grade_name" db:"grade_name"`
	}

	Teacher struct {
		ID int64 `json:"id" db:"id"`
		Person
		EmployeeNumber string    `json:"employee_number" db:"employee_number"`
		Phone          string    `json:"phone" db:"phone"`
		Qualification  string    `json:"qualification" db:"qualification"`
		Specialization string    `json:"specialization" db:"specialization"`
		HireDate       core.Date `json:"hire_date" db:"hire_date"`
		CreatedAt      time.Time `json:"created_at" db:"created_at"`
		UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
	}

	Parent struct {
		ID int64 `json:"id" db:"id"`
		Person
		Phone      string    `json:"phone" db:"phone"`
		Occupation string    `json:"occupation" db:"occupation"`
		Address    string    `json:"address" db:"address"`
		CreatedAt  time.Time `json:"created_at" db:"created_at"`
		UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`

		// read-only
		ChildrenCount int `json:"children_count" db:"children_count"`
	}
)

// Students

// NewStudent creates the student's User (role student) along with the profile.
type NewStudent struct {
	user.NewUser
	AdmissionNumber string    `json:"admission_number" validate:"required,max=30"`
	Gender          string    `json:"gender" validate:"omitempty,gender"`
	DateOfBirth     core.Date `json:"date_of_birth"`
	SectionID       *int64    `json:"section_id"`
	ParentID        *int64    `json:"parent_id"`
	Address         string    `json:"address" validate:"max=255"`
	Phone           string    `json:"phone" validate:"max=30"`
	AdmissionDate   core.Date `json:"admission_date"`
}

func (ns *NewStudent) Validate(validate *validator.Validate) error {
	ns.Role = user.RoleStudent
	ns.NewUser.Clean()
	ns.AdmissionNumber = core.CleanString(ns.AdmissionNumber)
	ns.Address = core.CleanString(ns.Address)
	ns.Phone = core.CleanString(ns.Phone)
	return validate.Struct(ns)
}

type UpdatePerson struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	IsActive  *bool   `json:"is_active"`
}

func (up *UpdatePerson) isEmpty() bool {
	return up.FirstName == nil && up.LastName == nil && up.Email == nil && up.IsActive == nil
}

func (up *UpdatePerson) clean() {
	cleanPtr(up.FirstName)
	cleanPtr(up.LastName)
	if up.Email != nil {
		*up.Email = core.CleanString(*up.Email, true /* lower */)
	}
}

func (up *UpdatePerson) apply(p *Person) {
	if up.FirstName != nil {
		p.FirstName = *up.FirstName
	}
	if up.LastName != nil {
		p.LastName = *up.LastName
	}
	if up.Email != nil {
		p.Email = *up.Email
	}
	if up.IsActive != nil {
		p.IsActive = *up.IsActive
	}
}

type UpdateStudent struct {
	UpdatePerson
	AdmissionNumber *string    `json:"admission_number" validate:"omitempty,min=1,max=30"`
	Gender          *string    `json:"gender" validate:"omitempty,gender"`
	DateOfBirth     *core.Date `json:"date_of_birth"`
	SectionID       *int64     `json:"section_id"`
	ParentID        *int64     `json:"parent_id"`
	Address         *string    `json:"address" validate:"omitempty,max=255"`
	Phone           *string    `json:"phone" validate:"omitempty,max=30"`
	AdmissionDate   *core.Date `json:"admission_date"`
}

func (us *UpdateStudent) IsEmpty() bool {
	return us.UpdatePerson.isEmpty() && us.AdmissionNumber == nil && us.Gender == nil && us.DateOfBirth == nil &&
		us.SectionID == nil && us.ParentID == nil && us.Address == nil && us.Phone == nil && us.AdmissionDate == nil
}

func (us *UpdateStudent) Validate(validate *validator.Validate) error {
	us.UpdatePerson.clean()
	cleanPtr(us.AdmissionNumber)
	cleanPtr(us.Address)
	cleanPtr(us.Phone)
	return validate.Struct(us)
}

// Teachers

// NewTeacher creates the teacher's User (role teacher) along with the profile.
type NewTeacher struct {
	user.NewUser
	EmployeeNumber string    `json:"employee_number" validate:"required,max=30"`
	Phone          string    `json:"phone" validate:"max=30"`
	Qualification  string    `json:"qualification" validate:"max=100"`
	Specialization string    `json:"specialization" validate:"max=100"`
	HireDate       core.Date `json:"hire_date"`
}

func (nt *NewTeacher) Validate(validate *validator.Validate) error {
	nt.Role = user.RoleTeacher
	nt.NewUser.Clean()
	nt.EmployeeNumber = core.CleanString(nt.EmployeeNumber)
	nt.Phone = core.CleanString(nt.Phone)
	nt.Qualification = core.CleanString(nt.Qualification)
	nt.Specialization = core.CleanString(nt.Specialization)
	return validate.Struct(nt)
}

type UpdateTeacher struct {
	UpdatePerson
	EmployeeNumber *string    `json:"employee_number" validate:"omitempty,min=1,max=30"`
	Phone          *string    `json:"phone" validate:"omitempty,max=30"`
	Qualification  *string    `json:"qualification" validate:"omitempty,max=100"`
	Specialization *string    `json:"specialization" validate:"omitempty,max=100"`
	HireDate       *core.Date `json:"hire_date"`
}

func (ut *UpdateTeacher) IsEmpty() bool {
	return ut.UpdatePerson.isEmpty() && ut.EmployeeNumber == nil && ut.Phone == nil &&
		ut.Qualification == nil && ut.Specialization == nil && ut.HireDate == nil
}

func (ut *UpdateTeacher) Validate(validate *validator.Validate) error {
	ut.UpdatePerson.clean()
	cleanPtr(ut.EmployeeNumber)
	cleanPtr(ut.Phone)
	cleanPtr(ut.Qualification)
	cleanPtr(ut.Specialization)
	return validate.Struct(ut)
}

// Parents

// NewParent creates the parent's User (role parent) along with the profile.
type NewParent struct {
	user.NewUser
	Phone      string `json:"phone" validate:"max=30"`
	Occupation string `json:"occupation" validate:"max=100"`
	Address    string `json:"address" validate:"max=255"`
}

func (np *NewParent) Validate(validate *validator.Validate) error {
	np.Role = user.RoleParent
	np.NewUser.Clean()
	np.Phone = core.CleanString(np.Phone)
	np.Occupation = core.CleanString(np.Occupation)
	np.Address = core.CleanString(np.Address)
	return validate.Struct(np)
}

type UpdateParent struct {
	UpdatePerson
	Phone      *string `json:"phone" validate:"omitempty,max=30"`
	Occupation *string `json:"occupation" validate:"omitempty,max=100"`
	Address    *string `json:"address" validate:"omitempty,max=255"`
}

func (up *UpdateParent) IsEmpty() bool {
	return up.UpdatePerson.isEmpty() && up.Phone == nil && up.Occupation == nil && up.Address == nil
}

func (up *UpdateParent) Validate(validate *validator.Validate) error {
	up.UpdatePerson.clean()
	cleanPtr(up.Phone)
	cleanPtr(up.Occupation)
	cleanPtr(up.Address)
	return validate.Struct(up)
}

// Filters

type (
	StudentFilter struct {
		core.PageQuery
		SectionID int64
		GradeID   int64
		ParentID  int64
		IsActive  *bool
	}

	TeacherFilter struct {
		core.PageQuery
		IsActive *bool
	}

	ParentFilter struct {
		core.PageQuery
	}
)

func cleanPtr(s *string) {
	if s != nil {
		*s = core.CleanString(*s)
	}
}
