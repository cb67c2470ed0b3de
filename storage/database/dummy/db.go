package dummydb

import (
	"sync"

	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
)

type (
	// DB is an in-memory database for tests and local runs.
	DB struct {
		user     *userTable
		profile  *profileTable
		settings *settingsTable
		class    *classTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	profileTable struct {
		sync.RWMutex
		table map[string]*profile.Profile // by user ID
	}

	settingsTable struct {
		sync.RWMutex
		table map[string]*settings.Settings // by profile ID
	}

	classTable struct {
		sync.RWMutex
		table      map[string]*schedule.Class
		classrooms map[string]string // name: ID
	}
)

func Open() *DB {
	return &DB{
		user:     &userTable{table: make(map[string]*user.User)},
		profile:  &profileTable{table: make(map[string]*profile.Profile)},
		settings: &settingsTable{table: make(map[string]*settings.Settings)},
		class:    &classTable{table: make(map[string]*schedule.Class), classrooms: make(map[string]string)},
	}
}
