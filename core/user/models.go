package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/shule/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleStudent = "student"
	RoleParent  = "parent"
)

var (
	AllRoles = []string{RoleAdmin, RoleTeacher, RoleStudent, RoleParent}

	Roles = []Role{
		{Name: "Admin", Value: RoleAdmin},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Student", Value: RoleStudent},
		{Name: "Parent", Value: RoleParent},
	}
)

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type User struct {
	ID           int64      `json:"id" db:"id"`
	FirstName    string     `json:"first_name" db:"first_name"`
	LastName     string     `json:"last_name" db:"last_name"`
	Email        string     `json:"email" db:"email"`
	Role         string     `json:"role" db:"role"`
	IsActive     bool       `json:"is_active" db:"is_active"`
	PasswordHash []byte     `json:"-" db:"password_hash"`
	LastLogin    *time.Time `json:"last_login" db:"last_login"` // UTC
	CreatedAt    time.Time  `json:"created_at" db:"created_at"` // UTC
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }

// HasAnyRole reports whether the user's role is one of `roles`. No roles means any role.
func (u User) HasAnyRole(roles ...string) bool {
	if len(roles) == 0 {
		return true
	}
	for _, role := range roles {
		if u.Role == role {
			return true
		}
	}
	return false
}

// NewUser contains information needed to create a new User.
type NewUser struct {
	FirstName       string `json:"first_name" validate:"required,max=100"`
	LastName        string `json:"last_name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email,max=255"`
	Role            string `json:"role" validate:"required,role"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
}

func (nu *NewUser) Clean() {
	nu.FirstName = core.CleanString(nu.FirstName)
	nu.LastName = core.CleanString(nu.LastName)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Role = core.CleanString(nu.Role, true /* lower */)
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Clean()
	return validate.Struct(nu)
}

// UpdateUser defines what information may be provided to modify an existing User.
type UpdateUser struct {
	FirstName *string `json:"first_name" validate:"omitempty,min=1,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,min=1,max=100"`
	Email     *string `json:"email" validate:"omitempty,email,max=255"`
	IsActive  *bool   `json:"is_active"`
}

func (uu *UpdateUser) IsEmpty() bool {
	return uu.FirstName == nil && uu.LastName == nil && uu.Email == nil && uu.IsActive == nil
}

func (uu *UpdateUser) Validate(validate *validator.Validate) error {
	if uu.FirstName != nil {
		*uu.FirstName = core.CleanString(*uu.FirstName)
	}
	if uu.LastName != nil {
		*uu.LastName = core.CleanString(*uu.LastName)
	}
	if uu.Email != nil {
		*uu.Email = core.CleanString(*uu.Email, true /* lower */)
	}
	return validate.Struct(uu)
}

type ChangePassword struct {
	OldPassword     string `json:"old_password" validate:"required"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`

	usr User // password policy checks against the user's attributes
}

func (cp *ChangePassword) Validate(validate *validator.Validate, usr User) error {
	cp.usr = usr
	return validate.Struct(cp)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type QueryFilter struct {
	core.PageQuery
	Role     string
	IsActive *bool
}

func (qf *QueryFilter) Clean() {
	qf.PageQuery.Clean()
	qf.Role = core.CleanString(qf.Role, true /* lower */)
}
