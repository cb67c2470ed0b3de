package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/ratiba/core/profile"
)

type (
	profileRepository struct {
		db *sqlx.DB
	}

	profileRow struct {
		ID        string    `db:"id"`
		UserID    string    `db:"user_id"`
		FirstName string    `db:"first_name"`
		LastName  string    `db:"last_name"`
		Role      string    `db:"role"`
		CreatedAt time.Time `db:"created_at"`
		UpdatedAt time.Time `db:"updated_at"`
	}
)

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *sqlx.DB) profile.Repository {
	return &profileRepository{db: db}
}

func toProfileRow(prof profile.Profile) profileRow {
	return profileRow{
		ID:        prof.ID,
		UserID:    prof.UserID,
		FirstName: prof.FirstName,
		LastName:  prof.LastName,
		Role:      prof.Role.String(),
		CreatedAt: prof.CreatedAt.UTC(),
		UpdatedAt: prof.UpdatedAt.UTC(),
	}
}

func (r profileRow) profile() profile.Profile {
	return profile.Profile{
		ID:        r.ID,
		UserID:    r.UserID,
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Role:      profile.ParseRole(r.Role),
		CreatedAt: r.CreatedAt.UTC(),
		UpdatedAt: r.UpdatedAt.UTC(),
	}
}

const profileColumns = `id, user_id, first_name, last_name, role, created_at, updated_at`

func (repo *profileRepository) GetByUser(ctx context.Context, userID string) (profile.Profile, error) {
	if !isUUID(userID) {
		return profile.Profile{}, profile.ErrNotFound
	}
	var row profileRow
	q := `SELECT ` + profileColumns + ` FROM profile WHERE user_id = $1`
	if err := repo.db.GetContext(ctx, &row, q, userID); err != nil {
		return profile.Profile{}, trapNoRowsErr(err, profile.ErrNotFound, "finding profile by user")
	}
	return row.profile(), nil
}

// GetOrCreate relies on the unique user_id: a concurrent insert for the same user is a no-op.
func (repo *profileRepository) GetOrCreate(ctx context.Context, prof profile.Profile) (profile.Profile, error) {
	q := `INSERT INTO profile (` + profileColumns + `)
		VALUES (:id, :user_id, :first_name, :last_name, :role, :created_at, :updated_at)
		ON CONFLICT (user_id) DO NOTHING`
	if _, err := repo.db.NamedExecContext(ctx, q, toProfileRow(prof)); err != nil {
		return profile.Profile{}, errors.Wrap(err, "inserting profile")
	}
	return repo.GetByUser(ctx, prof.UserID)
}

func (repo *profileRepository) Update(ctx context.Context, prof profile.Profile) (profile.Profile, error) {
	q := `UPDATE profile SET
			first_name = :first_name, last_name = :last_name, role = :role, updated_at = :updated_at
		WHERE id = :id`
	res, err := repo.db.NamedExecContext(ctx, q, toProfileRow(prof))
	if err != nil {
		return profile.Profile{}, errors.Wrap(err, "updating profile")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return profile.Profile{}, profile.ErrNotFound
	}
	return prof, nil
}
