// Package otp issues and verifies one-time codes delivered by email.
package otp

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"encoding/json"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	potp "github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/metrics"
)

var (
	// errors
	ErrNoRecipient = errors.New("no recipient email")
	ErrTooSoon     = errors.New("a code was sent recently, please wait before requesting another one")

	nowFunc = time.Now // mockable
)

// Service issues a code to an email address and later checks a submitted code against it.
type Service interface {
	Send(ctx context.Context, email string) error
	// Verify reports whether code matches the last code sent to email and has not expired.
	// A matching code is consumed.
	Verify(ctx context.Context, email, code string) (bool, error)
}

type Options struct {
	TTL            time.Duration
	Digits         int
	MaxAttempts    int
	ResendCooldown time.Duration
}

// OptionsFromConfig reads the OTP section of conf.
func OptionsFromConfig(conf *core.Config) Options {
	return Options{
		TTL:            conf.OTP.TTL,
		Digits:         conf.OTP.Digits,
		MaxAttempts:    conf.OTP.MaxAttempts,
		ResendCooldown: conf.OTP.ResendCooldown,
	}
}

// challenge is the stored state of an issued code. Each issuance draws a fresh secret,
// so a new code invalidates the previous one.
type challenge struct {
	Secret   string    `json:"secret"`
	IssuedAt time.Time `json:"issued_at"`
	Attempts int       `json:"attempts"`
}

type mailService struct {
	cache   core.Cache
	mailSvc core.EmailService
	logger  core.Logger
	opts    Options
}

var _ Service = (*mailService)(nil)

// NewMailService returns a Service storing challenges in cache and delivering codes with mailSvc.
func NewMailService(cache core.Cache, mailSvc core.EmailService, logger core.Logger, opts Options) Service {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.Digits != 8 {
		opts.Digits = 6
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	return &mailService{cache: cache, mailSvc: mailSvc, logger: logger, opts: opts}
}

func challengeKey(email string) string { return "otp:challenge:" + email }
func cooldownKey(email string) string  { return "otp:cooldown:" + email }

func (svc *mailService) validateOpts() hotp.ValidateOpts {
	return hotp.ValidateOpts{Digits: potp.Digits(svc.opts.Digits), Algorithm: potp.AlgorithmSHA1}
}

func newSecret() (string, error) {
	b := make([]byte, 20)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(b), nil
}

func (svc *mailService) Send(ctx context.Context, email string) (err error) {
	defer func() { metrics.ObserveOTPSent(err) }()

	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return ErrNoRecipient
	}

	if svc.opts.ResendCooldown > 0 {
		_, found, err := svc.cache.Get(ctx, cooldownKey(email))
		if err != nil {
			return errors.Wrap(err, "reading resend cooldown")
		}
		if found {
			return ErrTooSoon
		}
	}

	secret, err := newSecret()
	if err != nil {
		return errors.Wrap(err, "generating secret")
	}
	code, err := hotp.GenerateCodeCustom(secret, 0, svc.validateOpts())
	if err != nil {
		return errors.Wrap(err, "generating code")
	}

	data, err := json.Marshal(challenge{Secret: secret, IssuedAt: nowFunc().UTC()})
	if err != nil {
		return errors.Wrap(err, "encoding challenge")
	}
	if err = svc.cache.Set(ctx, challengeKey(email), data, svc.opts.TTL); err != nil {
		return errors.Wrap(err, "storing challenge")
	}

	msg := &core.EmailMessage{
		To:           []mail.Address{{Address: email}},
		Subject:      "Your verification code",
		TemplateName: "otp_code",
		TemplateData: map[string]interface{}{
			"Code":             code,
			"ExpiresInMinutes": int(svc.opts.TTL.Minutes()),
		},
	}
	if err = svc.mailSvc.SendMessage(ctx, msg); err != nil {
		_ = svc.cache.Delete(ctx, challengeKey(email))
		return errors.Wrap(err, "sending code")
	}

	if svc.opts.ResendCooldown > 0 {
		if err := svc.cache.Set(ctx, cooldownKey(email), []byte{1}, svc.opts.ResendCooldown); err != nil {
			svc.logger.Warn(fmt.Sprintf("setting otp resend cooldown: %v", err), err)
		}
	}
	return nil
}

func (svc *mailService) Verify(ctx context.Context, email, code string) (ok bool, err error) {
	defer func() { metrics.ObserveOTPVerified(ok, err) }()

	email = core.CleanString(email, true /* lower */)
	key := challengeKey(email)

	data, found, err := svc.cache.Get(ctx, key)
	if err != nil {
		return false, errors.Wrap(err, "reading challenge")
	}
	if !found {
		return false, nil // expired or never issued
	}
	var ch challenge
	if err = json.Unmarshal(data, &ch); err != nil {
		return false, errors.Wrap(err, "decoding challenge")
	}

	ok, err = hotp.ValidateCustom(core.CleanString(code), 0, ch.Secret, svc.validateOpts())
	if err != nil && err != potp.ErrValidateInputInvalidLength {
		return false, errors.Wrap(err, "validating code")
	}
	if ok {
		if err = svc.cache.Delete(ctx, key); err != nil {
			return false, errors.Wrap(err, "consuming challenge")
		}
		return true, nil
	}

	ch.Attempts++
	if ch.Attempts >= svc.opts.MaxAttempts {
		return false, errors.Wrap(svc.cache.Delete(ctx, key), "dropping challenge")
	}
	remaining := svc.opts.TTL - nowFunc().UTC().Sub(ch.IssuedAt)
	if remaining <= 0 {
		return false, errors.Wrap(svc.cache.Delete(ctx, key), "dropping challenge")
	}
	if data, err = json.Marshal(ch); err == nil {
		err = svc.cache.Set(ctx, key, data, remaining)
	}
	return false, errors.Wrap(err, "counting attempt")
}
