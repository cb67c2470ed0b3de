package echoapi

import (
	"fmt"
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/enrollment"
	"github.com/trezcool/ratiba/core/gate"
	"github.com/trezcool/ratiba/core/otp"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
)

var (
	errUnauthorized         = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errVerificationRequired = echo.NewHTTPError(http.StatusForbidden, "verification code required")
	errHttpForbidden        = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errProfileUnavailable   = echo.NewHTTPError(http.StatusServiceUnavailable, "your profile could not be loaded")
)

const (
	msgInvalidCredentials = "invalid login credentials"
	msgOtpIssue           = "the verification code could not be sent, please try again"
	msgSwapRolledBack     = "the classes could not be swapped, no class was changed"
	msgSwapInconsistent   = "the classes could not be swapped and the change could not be undone, " +
		"the timetable needs to be checked by an administrator"
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, translator ut.Translator, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		code, message := errorResponse(err, translator)

		switch {
		case code >= http.StatusInternalServerError:
			var extras []interface{}
			if p, ok := user.PrincipalFromContext(ctx.Request().Context()); ok {
				extras = append(extras, p)
			}
			logger.Error(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err), append(extras, err)...)

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		case code == http.StatusServiceUnavailable || code == http.StatusConflict:
			logger.Warn(fmt.Sprintf("%s %s: %v", ctx.Request().Method, ctx.Path(), err), err)
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// errorResponse maps err to an HTTP status and a JSON-able message.
func errorResponse(err error, translator ut.Translator) (int, interface{}) {
	if errors.Is(err, otp.ErrTooSoon) {
		return http.StatusTooManyRequests, otp.ErrTooSoon.Error()
	}

	var (
		credErr         *gate.CredentialError
		gateMismatch    *gate.OtpMismatchError
		enrollMismatch  *enrollment.OtpMismatchError
		gateIssue       *gate.OtpIssueError
		enrollIssue     *enrollment.OtpIssueError
		provisionErr    *gate.ProfileProvisionError
		swapPartial     *schedule.SwapPartialFailure
		swapUnrecovered *schedule.SwapCompensationFailure
	)
	switch {
	case errors.As(err, &credErr) && errors.Is(credErr.Err, user.ErrAccountDeactivated):
		return http.StatusForbidden, user.ErrAccountDeactivated.Error()
	case errors.As(err, &credErr) && errors.Is(credErr.Err, user.ErrInvalidCredentials):
		return http.StatusBadRequest, msgInvalidCredentials
	case errors.As(err, &gateMismatch), errors.As(err, &enrollMismatch):
		return http.StatusBadRequest, gate.ErrCodeMismatch.Error()
	case errors.As(err, &gateIssue), errors.As(err, &enrollIssue):
		return http.StatusServiceUnavailable, msgOtpIssue
	case errors.As(err, &provisionErr):
		return errProfileUnavailable.Code, errProfileUnavailable.Message
	case errors.As(err, &swapUnrecovered):
		return http.StatusInternalServerError, msgSwapInconsistent
	case errors.As(err, &swapPartial):
		return http.StatusConflict, msgSwapRolledBack
	}

	switch {
	case errors.Is(err, gate.ErrEmptyCode), errors.Is(err, enrollment.ErrEmptyCode):
		return http.StatusBadRequest, gate.ErrEmptyCode.Error()
	case errors.Is(err, gate.ErrInvalidTransition), errors.Is(err, enrollment.ErrNoPendingCode),
		errors.Is(err, enrollment.ErrCancelled):
		return http.StatusConflict, errors.Cause(err).Error()
	case errors.Is(err, schedule.ErrInvalidSwap), errors.Is(err, settings.ErrInvalidTheme),
		errors.Is(err, profile.ErrInvalidRole):
		return http.StatusBadRequest, errors.Cause(err).Error()
	case errors.Is(err, schedule.ErrNotFound), errors.Is(err, profile.ErrNotFound), errors.Is(err, user.ErrNotFound):
		return http.StatusNotFound, errors.Cause(err).Error()
	}

	switch origErr := errors.Cause(err).(type) {
	case *echo.HTTPError:
		if origErr == middleware.ErrJWTMissing {
			return http.StatusUnauthorized, origErr.Message
		}
		if origErr.Internal != nil {
			if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
				origErr = herr
			}
		}
		return origErr.Code, origErr.Message
	case validator.ValidationErrors:
		fldErrs := make(map[string]string, len(origErr))
		for _, vErr := range origErr {
			fldErrs[vErr.Field()] = vErr.Translate(translator)
		}
		return http.StatusBadRequest, fldErrs
	case *core.ValidationError:
		if origErr.Fields != nil {
			fldErrs := make(map[string]string, len(origErr.Fields))
			for _, fErr := range origErr.Fields {
				fldErrs[fErr.Field] = fErr.Error
			}
			return http.StatusBadRequest, fldErrs
		}
		return http.StatusBadRequest, origErr.Error()
	default: // any other error is a server error
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}
