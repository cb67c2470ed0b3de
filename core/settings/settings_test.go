package settings_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core/settings"
	dummydb "github.com/trezcool/ratiba/storage/database/dummy"
)

func TestService_Get(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(dummydb.NewSettingsRepository(dummydb.Open()))

	s, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, settings.Defaults("p-1"), s)

	enabled, err := svc.TwoFactorEnabled(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, enabled, "no stored row means no second factor")
}

func TestService_SetTwoFactor(t *testing.T) {
	ctx := context.Background()
	svc := settings.NewService(dummydb.NewSettingsRepository(dummydb.Open()))

	_, err := svc.SetTheme(ctx, "p-1", settings.ThemeDark)
	require.NoError(t, err)

	s, err := svc.SetTwoFactor(ctx, "p-1", true)
	require.NoError(t, err)
	assert.True(t, s.TwoFactorEnabled)
	assert.Equal(t, settings.ThemeDark, s.Theme, "other fields are kept")
	assert.False(t, s.UpdatedAt.IsZero())

	enabled, err := svc.TwoFactorEnabled(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, enabled)

	_, err = svc.SetTwoFactor(ctx, "p-1", false)
	require.NoError(t, err)
	enabled, err = svc.TwoFactorEnabled(ctx, "p-1")
	require.NoError(t, err)
	assert.False(t, enabled)
}

func TestService_SetTheme(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		theme   settings.Theme
		wantErr error
	}{
		{theme: settings.ThemeLight},
		{theme: settings.ThemeDark},
		{theme: settings.ThemeSystem},
		{theme: "neon", wantErr: settings.ErrInvalidTheme},
	}
	for _, tt := range tests {
		t.Run(string(tt.theme), func(t *testing.T) {
			svc := settings.NewService(dummydb.NewSettingsRepository(dummydb.Open()))

			s, err := svc.SetTheme(ctx, "p-1", tt.theme)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.theme, s.Theme)
			assert.False(t, s.TwoFactorEnabled)
		})
	}
}
