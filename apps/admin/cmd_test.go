package main

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/assets"
	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
	logsvc "github.com/trezcool/ratiba/services/logger"
	dummydb "github.com/trezcool/ratiba/storage/database/dummy"
	testutil "github.com/trezcool/ratiba/tests"
)

const pwd = "Kx9#mPq2!z"

type fixture struct {
	cli      *commandLine
	out      *bytes.Buffer
	usrRepo  user.Repository
	profRepo profile.Repository
	setRepo  settings.Repository
	classes  schedule.Store
}

func setup(t *testing.T) fixture {
	t.Helper()
	conf := core.NewTestConfig()
	logger := logsvc.NewNopLogger()

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	user.LoadCommonPasswords(assets.FS, assets.CommonPasswordsFile, logger)

	// set up DB & repos
	db := dummydb.Open()
	f := fixture{
		out:      new(bytes.Buffer),
		usrRepo:  dummydb.NewUserRepository(db),
		profRepo: dummydb.NewProfileRepository(db),
		setRepo:  dummydb.NewSettingsRepository(db),
		classes:  dummydb.NewClassRepository(db),
	}

	// start CLI
	profSvc := profile.NewService(f.profRepo)
	f.cli = &commandLine{
		usrSvc:   user.NewService(f.usrRepo, profSvc, user.NewTokenIssuer(conf), testutil.NewEmailMock(conf), logger),
		profSvc:  profSvc,
		setSvc:   settings.NewService(f.setRepo),
		classes:  f.classes,
		validate: validate,
		out:      f.out,
	}
	return f
}

func mockPassword(t *testing.T, pwd string) {
	t.Helper()
	orig := readPasswordFunc
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

type cliTest struct {
	name       string
	args       []string // without program name
	pwd        string
	wantErr    error
	wantErrStr string
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		require.Error(t, err)
		assert.Contains(t, err.Error(), tt.wantErrStr)
	default:
		assert.NoError(t, err)
	}
}

func Test_commandLine_migrate(t *testing.T) {
	f := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErrStr: "requires at least 1 arg(s)"},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(context.Background(), tt.args))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	existing := testutil.CreateUser(t, f.usrRepo, "taken@test.cd", "Old#Pass9word", false)

	tests := []cliTest{
		{name: "unknown command", args: []string{"lol"}, wantErrStr: "unknown command"},
		{name: "no email", args: []string{"adduser"}, pwd: pwd, wantErrStr: "required flag(s) \"email\" not set"},
		{name: "no password", args: []string{"adduser", "-e", "ada@test.cd"}, wantErr: errNoPassword},
		{name: "invalid role", args: []string{"adduser", "-e", "ada@test.cd", "-r", "janitor"}, pwd: pwd, wantErr: profile.ErrInvalidRole},
		{name: "weak password", args: []string{"adduser", "-e", "ada@test.cd"}, pwd: "password", wantErrStr: "password"},
		{name: "new admin", args: []string{"adduser", "-e", "ADA@test.cd", "-r", "admin"}, pwd: pwd},
		{name: "existing user", args: []string{"adduser", "--email", "taken@test.cd", "--role", "instructor"}, pwd: pwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			tt.check(t, f.cli.run(ctx, tt.args))
		})
	}

	t.Run("saved", func(t *testing.T) {
		ada, err := f.usrRepo.GetUserByEmail(ctx, "ada@test.cd")
		require.NoError(t, err)
		assert.True(t, ada.IsActive)
		assert.NoError(t, ada.CheckPassword(pwd))
		prof, err := f.profRepo.GetByUser(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, profile.RoleAdmin, prof.Role)

		taken, err := f.usrRepo.GetUserByID(ctx, existing.ID)
		require.NoError(t, err)
		assert.True(t, taken.IsActive)
		assert.NoError(t, taken.CheckPassword(pwd))
		prof, err = f.profRepo.GetByUser(ctx, existing.ID)
		require.NoError(t, err)
		assert.Equal(t, profile.RoleInstructor, prof.Role)
	})

	t.Run("inactive", func(t *testing.T) {
		mockPassword(t, pwd)
		require.NoError(t, f.cli.run(ctx, []string{"adduser", "-e", "bob@test.cd", "--inactive"}))
		bob, err := f.usrRepo.GetUserByEmail(ctx, "bob@test.cd")
		require.NoError(t, err)
		assert.False(t, bob.IsActive)
		prof, err := f.profRepo.GetByUser(ctx, bob.ID)
		require.NoError(t, err)
		assert.Equal(t, profile.DefaultRole, prof.Role)
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.usrRepo, "awe@test.cd", "Old#Pass9word", true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, pwd: pwd, wantErrStr: "required flag(s) \"email\" not set"},
		{name: "no password", args: []string{"resetpassword", "-e", "awe@test.cd"}, wantErr: errNoPassword},
		{name: "user not found", args: []string{"resetpassword", "-e", "lol@test.cd"}, pwd: pwd, wantErr: user.ErrNotFound},
		{name: "reset", args: []string{"resetpassword", "-e", "AWE@test.cd"}, pwd: pwd},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockPassword(t, tt.pwd)
			tt.check(t, f.cli.run(ctx, tt.args))
		})
	}

	refreshed, err := f.usrRepo.GetUserByID(ctx, usr.ID)
	require.NoError(t, err)
	assert.NoError(t, refreshed.CheckPassword(pwd))
}

func Test_commandLine_setRole(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, f.usrRepo, "awe@test.cd", pwd, true)

	tests := []cliTest{
		{name: "no role", args: []string{"setrole", "-e", "awe@test.cd"}, wantErrStr: "required flag(s) \"role\" not set"},
		{name: "invalid role", args: []string{"setrole", "-e", "awe@test.cd", "-r", "nope"}, wantErr: profile.ErrInvalidRole},
		{name: "user not found", args: []string{"setrole", "-e", "lol@test.cd", "-r", "admin"}, wantErr: user.ErrNotFound},
		{name: "instructor", args: []string{"setrole", "-e", "awe@test.cd", "-r", "Instructor"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, f.cli.run(ctx, tt.args))
		})
	}

	prof, err := f.profRepo.GetByUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.RoleInstructor, prof.Role)
	assert.Contains(t, f.out.String(), "awe@test.cd is now instructor")
}

func Test_commandLine_seed(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	require.NoError(t, f.cli.run(ctx, []string{"seed", "testdata/seed.yaml"}))
	assert.Contains(t, f.out.String(), "seeded 2 classrooms, 2 users and 2 classes")

	grace, err := f.usrRepo.GetUserByEmail(ctx, "grace@test.cd")
	require.NoError(t, err)
	graceProf, err := f.profRepo.GetByUser(ctx, grace.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.RoleAdmin, graceProf.Role)
	assert.Equal(t, "Grace", graceProf.FirstName)
	s, err := f.setRepo.GetByProfile(ctx, graceProf.ID)
	require.NoError(t, err)
	assert.True(t, s.TwoFactorEnabled)

	alan, err := f.usrRepo.GetUserByEmail(ctx, "alan@test.cd")
	require.NoError(t, err)
	alanProf, err := f.profRepo.GetByUser(ctx, alan.ID)
	require.NoError(t, err)
	assert.Equal(t, profile.RoleInstructor, alanProf.Role)

	lister, ok := f.classes.(interface{ List() []schedule.Class })
	require.True(t, ok)
	classes := lister.List()
	require.Len(t, classes, 2)
	for _, c := range classes {
		assert.NotEmpty(t, c.Slot.ClassroomID)
		assert.True(t, c.Slot.EndTime.After(c.Slot.StartTime))
		assert.Equal(t, c.Slot.DayOfWeek, int(c.Slot.StartTime.Weekday()))
		if c.Title == "Algebra" {
			assert.Equal(t, alanProf.ID, c.InstructorID)
			assert.Equal(t, 8, c.Slot.StartTime.Hour())
			assert.Equal(t, 30, c.Slot.EndTime.Minute())
		}
	}

	t.Run("bad class", func(t *testing.T) {
		err := f.cli.seed(ctx, seedData{Classes: []seedClass{{Title: "X", DayOfWeek: 2, Start: "10:00", End: "09:00"}}})
		assert.EqualError(t, err, `seeding class "X": end must be after start`)

		err = f.cli.seed(ctx, seedData{Classes: []seedClass{{Title: "Y", Classroom: "Z9", DayOfWeek: 2, Start: "08:00", End: "09:00"}}})
		assert.EqualError(t, err, `seeding class "Y": unknown classroom "Z9"`)
	})

	t.Run("missing file", func(t *testing.T) {
		assert.Error(t, f.cli.run(ctx, []string{"seed", "testdata/nope.yaml"}))
	})
}
