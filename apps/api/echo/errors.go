package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	errMissingToken       = echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed jwt")
	errInvalidToken       = echo.NewHTTPError(http.StatusUnauthorized, "invalid or expired jwt")
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errInvalidCredentials = echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	errAccountDeactivated = echo.NewHTTPError(http.StatusForbidden, "account deactivated")
	errRefreshExpired     = echo.NewHTTPError(http.StatusForbidden, "refresh has expired")
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errInvalidID          = echo.NewHTTPError(http.StatusBadRequest, "invalid id")
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		res := Response{}
		var code int

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
			code = origErr.Code
			res.Message = fmt.Sprint(origErr.Message)
		case *echo.BindingError:
			code = http.StatusBadRequest
			res.Message = fmt.Sprint(origErr.Message)
			res.Errors = map[string]string{origErr.Field: fmt.Sprint(origErr.Message)}
		case validator.ValidationErrors:
			res.Errors = make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				res.Errors[vErr.Field()] = vErr.Translate(translator)
			}
			code = http.StatusUnprocessableEntity
			res.Message = "validation failed"
		case *core.ValidationError:
			if len(origErr.Fields) > 0 {
				res.Errors = make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					res.Errors[fErr.Field] = fErr.Error
				}
			}
			code = http.StatusBadRequest
			res.Message = origErr.Error()
		case *core.NotFoundError:
			code = http.StatusNotFound
			res.Message = origErr.Error()
		case *core.ConflictError:
			code = http.StatusConflict
			res.Message = origErr.Error()
		default: // any other error is a server error
			code = http.StatusInternalServerError
			msg := http.StatusText(http.StatusInternalServerError)
			res.Message = msg

			args := []interface{}{errors.Wrap(err, msg)}
			if usr, ok := ctx.Get(contextUserKey).(user.User); ok {
				args = append(args, usr)
			} else if claims, cErr := getContextClaims(ctx); cErr == nil {
				args = append(args, user.User{ID: claims.UserID, Email: claims.Email, Role: claims.Role})
			}
			logger.Error(msg, args...)

			if ctx.Echo().Debug {
				res.Message = err.Error()
			}

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}
		res.Error = http.StatusText(code)

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, res)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}
