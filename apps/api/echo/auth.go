package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const (
	contextClaimsKey = "userClaims"
	contextUserKey   = "user"
	tokenAudience    = "shule-api"
)

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	jwt.RegisteredClaims
	OrigIssuedAt int64  `json:"oriat,omitempty"`
	UserID       int64  `json:"uid"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

type authenticator struct {
	conf    *core.Config
	usrSvc  *user.Service
	key     []byte
	method  jwt.SigningMethod
	nowFunc func() time.Time
}

func newAuthenticator(conf *core.Config, usrSvc *user.Service) *authenticator {
	return &authenticator{
		conf:    conf,
		usrSvc:  usrSvc,
		key:     []byte(conf.SecretKey),
		method:  jwt.SigningMethodHS256,
		nowFunc: time.Now,
	}
}

func (a *authenticator) claims(usr user.User, origIat ...int64) *Claims {
	now := a.nowFunc()

	oriat := now.Unix()
	if len(origIat) > 0 {
		oriat = origIat[0]
	}

	return &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.conf.AppName,
			Subject:   strconv.FormatInt(usr.ID, 10),
			Audience:  jwt.ClaimStrings{tokenAudience},
			ExpiresAt: jwt.NewNumericDate(now.Add(a.conf.Server.JWTExpirationDelta)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		OrigIssuedAt: oriat,
		UserID:       usr.ID,
		Email:        usr.Email,
		Role:         usr.Role,
	}
}

// generateToken generates a signed JWT token string representing the user Claims.
func (a *authenticator) generateToken(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(a.method, claims)
	ss, err := token.SignedString(a.key)
	return ss, errors.Wrap(err, "signing token")
}

func (a *authenticator) token(usr user.User, origIat ...int64) (string, error) {
	return a.generateToken(a.claims(usr, origIat...))
}

func (a *authenticator) parse(tokenStr string) (*Claims, error) {
	claims := new(Claims)
	_, err := jwt.ParseWithClaims(
		tokenStr,
		claims,
		func(*jwt.Token) (interface{}, error) { return a.key, nil },
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(a.nowFunc),
	)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// middleware authenticates requests carrying a valid `Authorization: Bearer <jwt>` header.
func (a *authenticator) middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			auth := ctx.Request().Header.Get(echo.HeaderAuthorization)
			scheme, tokenStr, found := strings.Cut(auth, " ")
			if !found || !strings.EqualFold(scheme, "Bearer") || tokenStr == "" {
				return errMissingToken
			}
			claims, err := a.parse(tokenStr)
			if err != nil {
				return &echo.HTTPError{Code: errInvalidToken.Code, Message: errInvalidToken.Message, Internal: err}
			}
			ctx.Set(contextClaimsKey, *claims)
			return next(ctx)
		}
	}
}

// refresh issues a new token for the context user, as long as the refresh window opened by their
// original login has not expired.
func (a *authenticator) refresh(ctx echo.Context) (string, error) {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return "", err
	}
	usr, err := getContextUser(ctx, a.usrSvc)
	if err != nil {
		return "", errors.Wrap(err, "getting context user")
	}

	// check if user is still active
	if !usr.IsActive {
		return "", errAccountDeactivated
	}

	// check if refresh has not expired
	expTime := time.Unix(claims.OrigIssuedAt, 0).Add(a.conf.Server.JWTRefreshExpirationDelta)
	if a.nowFunc().After(expTime) {
		return "", errRefreshExpired
	}
	return a.token(usr, claims.OrigIssuedAt)
}

func getContextClaims(ctx echo.Context) (Claims, error) {
	if claims, ok := ctx.Get(contextClaimsKey).(Claims); ok {
		return claims, nil
	}
	return Claims{}, errUnauthorized
}

// getContextUser loads (once per request) the user the token was issued to.
func getContextUser(ctx echo.Context, svc *user.Service) (user.User, error) {
	if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
		return usr, nil
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return user.User{}, err
	}
	usr, err := svc.GetByID(ctx.Request().Context(), claims.UserID)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, errInvalidToken
		}
		return user.User{}, errors.Wrap(err, "finding user by ID")
	}
	ctx.Set(contextUserKey, usr)
	return usr, nil
}

// requireRoles lets through the users having one of `roles`.
func requireRoles(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			if (user.User{Role: claims.Role}).HasAnyRole(roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

var (
	adminOnly      = requireRoles(user.RoleAdmin)
	staffOnly      = requireRoles(user.RoleAdmin, user.RoleTeacher)
	studentOnly    = requireRoles(user.RoleStudent)
	teacherOnly    = requireRoles(user.RoleTeacher)
	parentOnly     = requireRoles(user.RoleParent)
	noParents      = requireRoles(user.RoleAdmin, user.RoleTeacher, user.RoleStudent)
	adminOrParents = requireRoles(user.RoleAdmin, user.RoleParent)
)
