package settings

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound     = errors.New("settings not found")
	ErrInvalidTheme = errors.New("invalid theme")
)

var nowFunc = time.Now // mockable

// Theme is the UI colour scheme preference.
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) Valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// Settings are the per-profile preferences. A profile without a stored row has Defaults.
type Settings struct {
	ProfileID        string    `json:"profile_id"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	Theme            Theme     `json:"theme"`
	UpdatedAt        time.Time `json:"updated_at"` // UTC
}

// Defaults returns the settings of a profile that never saved any.
func Defaults(profileID string) Settings {
	return Settings{ProfileID: profileID, Theme: ThemeSystem}
}

// Update holds the fields to change; nil fields are left untouched.
type Update struct {
	TwoFactorEnabled *bool
	Theme            *Theme
}

// Apply returns s with the set fields of upd.
func (upd Update) Apply(s Settings) Settings {
	if upd.TwoFactorEnabled != nil {
		s.TwoFactorEnabled = *upd.TwoFactorEnabled
	}
	if upd.Theme != nil {
		s.Theme = *upd.Theme
	}
	return s
}

type (
	Repository interface {
		GetByProfile(ctx context.Context, profileID string) (Settings, error)
		// Upsert applies upd over the stored row, or over Defaults when there is none.
		Upsert(ctx context.Context, profileID string, upd Update, updatedAt time.Time) (Settings, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Get returns the settings of profileID, Defaults when none were stored.
func (svc *Service) Get(ctx context.Context, profileID string) (Settings, error) {
	s, err := svc.repo.GetByProfile(ctx, profileID)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Defaults(profileID), nil
		}
		return Settings{}, errors.Wrap(err, "finding settings by profile")
	}
	return s, nil
}

// TwoFactorEnabled reports whether profileID requires a second factor. A missing row means false.
func (svc *Service) TwoFactorEnabled(ctx context.Context, profileID string) (bool, error) {
	s, err := svc.Get(ctx, profileID)
	if err != nil {
		return false, err
	}
	return s.TwoFactorEnabled, nil
}

// SetTwoFactor persists the two-factor requirement of profileID.
func (svc *Service) SetTwoFactor(ctx context.Context, profileID string, enabled bool) (Settings, error) {
	s, err := svc.repo.Upsert(ctx, profileID, Update{TwoFactorEnabled: &enabled}, nowFunc().UTC())
	return s, errors.Wrap(err, "saving two-factor setting")
}

// SetTheme persists the UI theme of profileID.
func (svc *Service) SetTheme(ctx context.Context, profileID string, theme Theme) (Settings, error) {
	if !theme.Valid() {
		return Settings{}, ErrInvalidTheme
	}
	s, err := svc.repo.Upsert(ctx, profileID, Update{Theme: &theme}, nowFunc().UTC())
	return s, errors.Wrap(err, "saving theme")
}
