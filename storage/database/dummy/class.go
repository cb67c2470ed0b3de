package dummydb

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/ratiba/core/schedule"
)

// classRepository only offers single-record writes, so swaps go through compensation.
type classRepository struct {
	db *classTable
}

var _ schedule.Store = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) schedule.Store {
	return &classRepository{db: db.class}
}

func (repo *classRepository) Get(_ context.Context, id string) (schedule.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return *c, nil
	}
	return schedule.Class{}, schedule.ErrNotFound
}

func (repo *classRepository) UpdateSlot(_ context.Context, id string, slot schedule.Slot) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	c, ok := repo.db.table[id]
	if !ok {
		return schedule.ErrNotFound
	}
	c.Slot = slot
	c.UpdatedAt = time.Now().UTC()
	return nil
}

func (repo *classRepository) Create(_ context.Context, c schedule.Class) (schedule.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	c.UpdatedAt = time.Now().UTC()
	repo.db.table[c.ID] = &c
	return c, nil
}

func (repo *classRepository) CreateClassroom(_ context.Context, name string) (string, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if id, ok := repo.db.classrooms[name]; ok {
		return id, nil
	}
	id := uuid.New().String()
	repo.db.classrooms[name] = id
	return id, nil
}

// List returns the stored classes, in no particular order.
func (repo *classRepository) List() []schedule.Class {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]schedule.Class, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		classes = append(classes, *c)
	}
	return classes
}
