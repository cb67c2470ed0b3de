package dummydb

import (
	"context"
	"time"

	"github.com/trezcool/ratiba/core/settings"
)

type settingsRepository struct {
	db *settingsTable
}

var _ settings.Repository = (*settingsRepository)(nil) // interface compliance check

func NewSettingsRepository(db *DB) settings.Repository {
	return &settingsRepository{db: db.settings}
}

func (repo *settingsRepository) GetByProfile(_ context.Context, profileID string) (settings.Settings, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if s, ok := repo.db.table[profileID]; ok {
		return *s, nil
	}
	return settings.Settings{}, settings.ErrNotFound
}

func (repo *settingsRepository) Upsert(
	_ context.Context,
	profileID string,
	upd settings.Update,
	updatedAt time.Time,
) (settings.Settings, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	s := settings.Defaults(profileID)
	if existing, ok := repo.db.table[profileID]; ok {
		s = *existing
	}
	s = upd.Apply(s)
	s.UpdatedAt = updatedAt
	repo.db.table[profileID] = &s
	return s, nil
}
