package echoapi

import (
	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/gate"
	"github.com/trezcool/ratiba/core/landing"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/user"
)

const ctxTokenKey = "userToken"

// jwtMiddleware validates the bearer session token issued at sign-in.
func jwtMiddleware(tokens *user.TokenIssuer) echo.MiddlewareFunc {
	return middleware.JWTWithConfig(middleware.JWTConfig{
		SigningKey:    tokens.SigningKey(),
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    ctxTokenKey,
		Claims:        new(user.Claims),
	})
}

func getContextClaims(ctx echo.Context) (user.Claims, error) {
	if token, ok := ctx.Get(ctxTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*user.Claims); ok {
			return *claims, nil
		}
	}
	return user.Claims{}, errUnauthorized
}

// principalMiddleware attaches the token's Principal to the request context,
// where the credential store looks for the current session.
func principalMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}
			req := ctx.Request()
			ctx.SetRequest(req.WithContext(user.WithPrincipal(req.Context(), claims.Principal())))
			return next(ctx)
		}
	}
}

// clearedMiddleware lets through devices whose gate is cleared for the token's principal.
// A device the server does not know yet (first request, evicted session) is mounted first.
func clearedMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			sess, err := getDeviceSession(ctx)
			if err != nil {
				return err
			}
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			sess.mu.Lock()
			g := sess.gate
			if p := g.Principal(); p == nil || p.UserID != claims.Subject {
				_, err = sess.mount(ctx.Request().Context())
				var issueErr *gate.OtpIssueError
				if err != nil && !errors.As(err, &issueErr) { // the client can ask for a resend
					sess.mu.Unlock()
					return errors.Wrap(err, "mounting device session")
				}
			}
			state := g.State()
			sess.mu.Unlock()

			switch state {
			case gate.StateCleared:
				return next(ctx)
			case gate.StateUnauthenticated:
				return errUnauthorized
			default:
				return errVerificationRequired
			}
		}
	}
}

// getContextProfile returns the profile resolved by the device's gate.
// Only valid behind clearedMiddleware.
func getContextProfile(ctx echo.Context) (profile.Profile, error) {
	sess, err := getDeviceSession(ctx)
	if err != nil {
		return profile.Profile{}, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if prof := sess.gate.Profile(); prof != nil {
		return *prof, nil
	}
	return profile.Profile{}, errProfileUnavailable
}

// pageMiddleware restricts a route to the roles allowed on the matching screen.
func pageMiddleware(page string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			prof, err := getContextProfile(ctx)
			if err != nil {
				return err
			}
			if !landing.Allowed(page, prof.Role) {
				return errHttpForbidden
			}
			return next(ctx)
		}
	}
}
