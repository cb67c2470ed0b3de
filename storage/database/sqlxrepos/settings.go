package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/ratiba/core/settings"
)

type (
	settingsRepository struct {
		db *sqlx.DB
	}

	settingsRow struct {
		ProfileID        string    `db:"profile_id"`
		TwoFactorEnabled bool      `db:"two_factor_enabled"`
		Theme            string    `db:"theme"`
		UpdatedAt        time.Time `db:"updated_at"`
	}
)

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *sqlx.DB) settings.Repository {
	return &settingsRepository{db: db}
}

func (r settingsRow) settings() settings.Settings {
	return settings.Settings{
		ProfileID:        r.ProfileID,
		TwoFactorEnabled: r.TwoFactorEnabled,
		Theme:            settings.Theme(r.Theme),
		UpdatedAt:        r.UpdatedAt.UTC(),
	}
}

const settingsColumns = `profile_id, two_factor_enabled, theme, updated_at`

func (repo *settingsRepository) GetByProfile(ctx context.Context, profileID string) (settings.Settings, error) {
	if !isUUID(profileID) {
		return settings.Settings{}, settings.ErrNotFound
	}
	var row settingsRow
	q := `SELECT ` + settingsColumns + ` FROM settings WHERE profile_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, profileID); err != nil {
		return settings.Settings{}, trapNoRowsErr(err, settings.ErrNotFound, "finding settings by profile")
	}
	return row.settings(), nil
}

// Upsert only overwrites the columns set in upd; COALESCE keeps the stored value of the others.
func (repo *settingsRepository) Upsert(
	ctx context.Context,
	profileID string,
	upd settings.Update,
	updatedAt time.Time,
) (settings.Settings, error) {
	def := upd.Apply(settings.Defaults(profileID))

	twoFactor := null.BoolFromPtr(upd.TwoFactorEnabled)
	var theme null.String
	if upd.Theme != nil {
		theme = null.StringFrom(string(*upd.Theme))
	}

	var row settingsRow
	q := `INSERT INTO settings (` + settingsColumns + `) VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_id) DO UPDATE SET
			two_factor_enabled = COALESCE($5::boolean, settings.two_factor_enabled),
			theme = COALESCE($6::text, settings.theme),
			updated_at = EXCLUDED.updated_at
		RETURNING ` + settingsColumns
	err := repo.db.GetContext(ctx, &row, q,
		profileID, def.TwoFactorEnabled, string(def.Theme), updatedAt.UTC(), twoFactor, theme)
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "upserting settings")
	}
	return row.settings(), nil
}
