package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var (
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = core.NewConflictError("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountDeactivated = errors.New("account deactivated")
	ErrNoFieldsToUpdate   = core.NewValidationError(errors.New("no fields to update"))
	ErrWrongPassword      = core.NewFieldError("old_password", "incorrect password")
	ErrInvalidResetLink   = core.NewValidationError(errors.New("the password reset link is invalid or has expired"))
)

type (
	Repository interface {
		// EmailExists reports whether another user (not `excludeID`) already uses `email`.
		EmailExists(ctx context.Context, email string, excludeID int64) (bool, error)
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int64) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields and returns the page with the total count.
		// QueryFilter.Search does a case-insensitive match on one of first name, last name or email.
		QueryUsers(ctx context.Context, filter QueryFilter) ([]User, int, error)
		UpdateUser(ctx context.Context, usr User) (User, error)
		DeleteUser(ctx context.Context, id int64) error
	}

	Service struct {
		repo    Repository
		mailSvc core.EmailService
		conf    *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, conf: conf}
}

// Authenticate finds the active user matching the credentials and stamps their last login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return svc.SetLastLogin(ctx, usr)
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := nowFunc().UTC().Truncate(time.Second)
	usr.LastLogin = &now
	usr, err := svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

// CheckEmail fails with ErrEmailExists if a user other than `excludeID` uses `email`.
func (svc *Service) CheckEmail(ctx context.Context, email string, excludeID int64) error {
	exists, err := svc.repo.EmailExists(ctx, email, excludeID)
	if err != nil {
		return errors.Wrap(err, "checking email uniqueness")
	}
	if exists {
		return ErrEmailExists
	}
	return nil
}

// Build checks the email uniqueness and returns the unsaved User described by `nu`.
// `nu` must have been validated.
func (svc *Service) Build(ctx context.Context, nu NewUser) (User, error) {
	if err := svc.CheckEmail(ctx, nu.Email, 0); err != nil {
		return User{}, err
	}

	now := nowFunc().UTC()
	usr := User{
		FirstName: nu.FirstName,
		LastName:  nu.LastName,
		Email:     nu.Email,
		Role:      nu.Role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	return usr, nil
}

func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	usr, err := svc.Build(ctx, nu)
	if err != nil {
		return User{}, err
	}
	usr, err = svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]User, core.Pagination, error) {
	filter.Clean()
	users, total, err := svc.repo.QueryUsers(ctx, filter)
	if err != nil {
		return nil, core.Pagination{}, errors.Wrap(err, "querying users")
	}
	return users, core.NewPagination(filter.PageQuery, total), nil
}

// Update applies the provided fields of `uu` (already validated) to the user `id`.
func (svc *Service) Update(ctx context.Context, id int64, uu UpdateUser) (User, error) {
	if uu.IsEmpty() {
		return User{}, ErrNoFieldsToUpdate
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}

	if uu.Email != nil && *uu.Email != usr.Email {
		if err := svc.CheckEmail(ctx, *uu.Email, usr.ID); err != nil {
			return User{}, err
		}
		usr.Email = *uu.Email
	}
	if uu.FirstName != nil {
		usr.FirstName = *uu.FirstName
	}
	if uu.LastName != nil {
		usr.LastName = *uu.LastName
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	usr.UpdatedAt = nowFunc().UTC()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "updating user")
}

func (svc *Service) Delete(ctx context.Context, id int64) error {
	return svc.repo.DeleteUser(ctx, id)
}

// ChangePassword sets a new password for `usr` after checking their current one. `cp` must have been validated.
func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := usr.CheckPassword(cp.OldPassword); err != nil {
		return ErrWrongPassword
	}
	return svc.setPassword(ctx, usr, cp.Password)
}

// SetPassword sets `pwd` as the user's password without any check (admin CLI).
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	return svc.setPassword(ctx, usr, pwd)
}

func (svc *Service) setPassword(ctx context.Context, usr User, pwd string) error {
	if err := usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err := svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

// RequestPasswordReset emails a password reset link to the active user owning `email`.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return nil
	}
	svc.sendPasswordResetMail(usr)
	return nil
}

func (svc *Service) sendPasswordResetMail(usr User) {
	msg := &core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.FirstName,
			"UID":   EncodeUID(usr),
			"Token": makeToken(usr, svc.conf.SecretKey),
		},
	}
	svc.mailSvc.SendMessages(msg)
}

// ResetPassword sets a new password after checking the reset token sent by RequestPasswordReset.
func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return ErrInvalidResetLink
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return ErrInvalidResetLink
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := verifyToken(usr, rp.Token, svc.conf.SecretKey, svc.conf.Server.PasswordResetTimeoutDelta); err != nil {
		return ErrInvalidResetLink
	}
	return svc.setPassword(ctx, usr, rp.Password)
}
