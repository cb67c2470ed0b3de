package echoapi

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	gocache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/enrollment"
	"github.com/trezcool/ratiba/core/gate"
)

var errDeviceNotFoundInCtx = errors.New("device session not found in echo.Context")

const (
	deviceCookieName = "device_id"
	ctxDeviceKey     = "device"
)

// deviceSession is the server side of one browser: its auth gate and its pending 2FA enrollment.
// mu serialises the gate operations of the device; the enrollment controller synchronises itself.
type deviceSession struct {
	id string

	mu     sync.Mutex
	gate   *gate.Gate
	enroll *enrollment.Controller
}

// mount runs EventMount on the gate and drops the pending enrollment when the device
// changed hands. The caller holds mu.
func (s *deviceSession) mount(ctx context.Context) (gate.State, error) {
	var prevID string
	if p := s.gate.Principal(); p != nil {
		prevID = p.UserID
	}
	state, err := s.gate.Step(ctx, gate.EventMount)
	if p := s.gate.Principal(); p == nil || p.UserID != prevID {
		s.enroll.Cancel()
	}
	return state, err
}

// sessionRegistry keeps device sessions in memory until they sit idle for the configured TTL.
// The verification flag lives in the shared cache, so an evicted device that passed the
// second factor is cleared again on its next mount.
type sessionRegistry struct {
	deps  ServerDeps
	mu    sync.Mutex
	store *gocache.Cache
}

func newSessionRegistry(deps ServerDeps) *sessionRegistry {
	ttl := deps.Conf.Session.IdleTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &sessionRegistry{deps: deps, store: gocache.New(ttl, ttl/2)}
}

func (r *sessionRegistry) newSession(deviceID string) *deviceSession {
	gateDeps := gate.Deps{
		Credentials: r.deps.UserSvc,
		Profiles:    r.deps.ProfileSvc,
		Settings:    r.deps.SettingsSvc,
		OTP:         r.deps.OTPSvc,
		Logger:      r.deps.Logger,
	}
	flag := gate.NewVerificationFlag(r.deps.Cache, deviceID, r.deps.Conf.Session.IdleTTL)
	return &deviceSession{
		id:     deviceID,
		gate:   gate.New(gateDeps, flag),
		enroll: enrollment.NewController(r.deps.SettingsSvc, r.deps.OTPSvc, r.deps.Logger),
	}
}

// get returns the session of deviceID, creating it when missing, and resets its idle timer.
func (r *sessionRegistry) get(deviceID string) *deviceSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	sess, ok := r.store.Get(deviceID)
	if !ok {
		sess = r.newSession(deviceID)
	}
	r.store.SetDefault(deviceID, sess)
	return sess.(*deviceSession)
}

func (r *sessionRegistry) drop(deviceID string) {
	r.store.Delete(deviceID)
}

// deviceMiddleware identifies the device by its cookie, issuing one on first contact,
// and attaches the device session to the echo.Context.
func deviceMiddleware(sessions *sessionRegistry, conf *core.Config) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			var deviceID string
			if cookie, err := ctx.Cookie(deviceCookieName); err == nil {
				if _, err = uuid.Parse(cookie.Value); err == nil {
					deviceID = cookie.Value
				}
			}
			if deviceID == "" {
				deviceID = uuid.New().String()
				ctx.SetCookie(&http.Cookie{
					Name:     deviceCookieName,
					Value:    deviceID,
					Path:     "/",
					HttpOnly: true,
					Secure:   !conf.Debug,
					SameSite: http.SameSiteLaxMode,
				})
			}
			ctx.Set(ctxDeviceKey, sessions.get(deviceID))
			return next(ctx)
		}
	}
}

func getDeviceSession(ctx echo.Context) (*deviceSession, error) {
	if sess, ok := ctx.Get(ctxDeviceKey).(*deviceSession); ok {
		return sess, nil
	}
	return nil, errDeviceNotFoundInCtx
}
