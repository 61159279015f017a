package echoapi

import (
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const passwordResetRequested = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

type authApi struct {
	auth     *authenticator
	svc      *user.Service
	validate *validator.Validate
}

func registerAuthAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	loginLimiter echo.MiddlewareFunc,
	auth *authenticator,
	svc *user.Service,
	validate *validator.Validate,
) {
	api := authApi{
		auth:     auth,
		svc:      svc,
		validate: validate,
	}

	ag := g.Group("/auth")

	// un-authed endpoints
	ag.POST("/login", api.login, loginLimiter)
	ag.POST("/password-reset", api.resetPassword, loginLimiter)
	ag.POST("/password-reset-confirm", api.confirmPasswordReset, loginLimiter)

	// authed endpoints
	jg := ag.Group("", jwt)
	jg.GET("/me", api.me)
	jg.POST("/refresh", api.refreshToken)
	jg.POST("/change-password", api.changePassword)
	jg.POST("/register", api.register, adminOnly)
	jg.GET("/roles", api.queryRoles)

	ug := ag.Group("/users", jwt, adminOnly)
	ug.GET("", api.query)
	ug.GET("/:id", api.retrieve)
	ug.PUT("/:id", api.update)
	ug.DELETE("/:id", api.destroy)
}

// Handlers

func (api *authApi) login(ctx echo.Context) error {
	var data LoginRequest
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	usr, err := api.svc.Authenticate(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		switch errors.Cause(err) {
		case user.ErrInvalidCredentials:
			return errInvalidCredentials
		case user.ErrAccountDeactivated:
			return errAccountDeactivated
		}
		return errors.Wrap(err, "authenticating")
	}
	token, err := api.auth.token(usr)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}
	return ok(ctx, "Login successful", LoginResponse{Token: token, User: usr})
}

func (api *authApi) me(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}
	if !usr.IsActive {
		return errAccountDeactivated
	}
	return ok(ctx, "Token is valid", usr)
}

func (api *authApi) refreshToken(ctx echo.Context) error {
	token, err := api.auth.refresh(ctx)
	if err != nil {
		return errors.Wrap(err, "refreshing token")
	}
	return ok(ctx, "Token refreshed", TokenResponse{Token: token})
}

func (api *authApi) changePassword(ctx echo.Context) error {
	usr, err := getContextUser(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	var data user.ChangePassword
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate, usr); err != nil {
		return err
	}
	if err := api.svc.ChangePassword(ctx.Request().Context(), usr, data); err != nil {
		return errors.Wrap(err, "changing password")
	}
	return ok(ctx, "Password changed successfully", nil)
}

func (api *authApi) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	if err := api.svc.RequestPasswordReset(ctx.Request().Context(), data.Email); err != nil && !core.IsNotFound(err) {
		// do not return errors to attackers
		ctx.Logger().Errorf("%+v", errors.Wrap(err, "requesting password reset"))
	}
	return ok(ctx, passwordResetRequested, nil)
}

func (api *authApi) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	if err := api.svc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ok(ctx, "Password has been reset with the new password.", nil)
}

func (api *authApi) register(ctx echo.Context) error {
	var data user.NewUser
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating user")
	}
	return created(ctx, "User registered successfully", usr)
}

func (api *authApi) queryRoles(ctx echo.Context) error {
	return list(ctx, "Roles retrieved successfully", user.Roles)
}

func (api *authApi) query(ctx echo.Context) error {
	pq, err := bindPageQuery(ctx)
	if err != nil {
		return err
	}
	filter := user.QueryFilter{PageQuery: pq, Role: ctx.QueryParam("role")}
	if filter.IsActive, err = optionalBool(ctx, "isActive"); err != nil {
		return err
	}

	users, p, err := api.svc.Query(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	return page(ctx, "Users retrieved successfully", users, p)
}

func (api *authApi) retrieve(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	usr, err := api.svc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ok(ctx, "User retrieved successfully", usr)
}

func (api *authApi) update(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err := bindBody(ctx, &data); err != nil {
		return err
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	usr, err := api.svc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ok(ctx, "User updated successfully", usr)
}

func (api *authApi) destroy(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}

	// Say No to Suicide! ctxUser cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}
	if claims.UserID == id {
		return errHttpForbidden
	}

	if err := api.svc.Delete(ctx.Request().Context(), id); err != nil {
		return errors.Wrap(err, "deleting user")
	}
	return deleted(ctx, "User deleted successfully")
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required,email"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Token string    `json:"token"`
		User  user.User `json:"user"`
	}

	TokenResponse struct {
		Token string `json:"token"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
