package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/schedule"
	"github.com/trezcool/ratiba/core/settings"
	"github.com/trezcool/ratiba/core/user"
	"github.com/trezcool/ratiba/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword      // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errNoPassword = errors.New("no password entered")
)

type commandLine struct {
	db       *sqlx.DB
	usrSvc   *user.Service
	profSvc  *profile.Service
	setSvc   *settings.Service
	classes  schedule.Store
	validate *validator.Validate
	out      io.Writer
}

func (cli *commandLine) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "admin",
		Short:         "Ratiba administration commands",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(cli.out)
	root.AddCommand(
		cli.addUserCmd(),
		cli.resetPasswordCmd(),
		cli.setRoleCmd(),
		cli.migrateCmd(),
		cli.seedCmd(),
	)
	return root
}

// run executes the command line args, without the program name.
func (cli *commandLine) run(ctx context.Context, args []string) error {
	root := cli.rootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Fprint(cli.out, "Enter password: ")
	pwd, err := readPasswordFunc(int(os.Stdin.Fd()))
	fmt.Fprintln(cli.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		return "", errNoPassword
	}
	return string(pwd), nil
}

// checkPassword applies the password policy and returns the cleaned email.
func (cli *commandLine) checkPassword(email, pwd string) (string, error) {
	sp := user.SetUserPassword{Email: email, Password: pwd}
	if err := sp.Validate(cli.validate); err != nil {
		return "", err
	}
	return sp.Email, nil
}

func parseRoleFlag(name string) (profile.Role, error) {
	role := profile.ParseRole(name)
	if !role.Valid() {
		return role, errors.Wrapf(profile.ErrInvalidRole, "%q", name)
	}
	return role, nil
}
