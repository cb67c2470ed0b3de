package dummydb

import (
	"context"

	"github.com/trezcool/ratiba/core/profile"
)

type profileRepository struct {
	db *profileTable
}

var _ profile.Repository = (*profileRepository)(nil) // interface compliance check

func NewProfileRepository(db *DB) profile.Repository {
	return &profileRepository{db: db.profile}
}

func (repo *profileRepository) GetByUser(_ context.Context, userID string) (profile.Profile, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if prof, ok := repo.db.table[userID]; ok {
		return *prof, nil
	}
	return profile.Profile{}, profile.ErrNotFound
}

func (repo *profileRepository) GetOrCreate(_ context.Context, prof profile.Profile) (profile.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if existing, ok := repo.db.table[prof.UserID]; ok {
		return *existing, nil
	}
	repo.db.table[prof.UserID] = &prof
	return prof, nil
}

func (repo *profileRepository) Update(_ context.Context, prof profile.Profile) (profile.Profile, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	existing, ok := repo.db.table[prof.UserID]
	if !ok || existing.ID != prof.ID {
		return profile.Profile{}, profile.ErrNotFound
	}
	repo.db.table[prof.UserID] = &prof
	return prof, nil
}

// Count returns the number of stored profiles.
func (repo *profileRepository) Count() int {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return len(repo.db.table)
}
