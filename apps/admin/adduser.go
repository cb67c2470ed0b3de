package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/trezcool/ratiba/core/profile"
	"github.com/trezcool/ratiba/core/user"
)

func (cli *commandLine) addUserCmd() *cobra.Command {
	var (
		email    string
		roleName string
		inactive bool
	)
	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create or update an account with the given role; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := parseRoleFlag(roleName)
			if err != nil {
				return err
			}
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			usr, err := cli.addUser(cmd.Context(), email, pwd, role, !inactive)
			if err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "user %s saved as %s\n", usr.Email, role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email of the account")
	cmd.Flags().StringVarP(&roleName, "role", "r", profile.DefaultRole.String(), "admin, instructor or student")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the account deactivated")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

// addUser updates or creates a user.User and gives its profile role.
func (cli *commandLine) addUser(ctx context.Context, email, pwd string, role profile.Role, active bool) (user.User, error) {
	email, err := cli.checkPassword(email, pwd)
	if err != nil {
		return user.User{}, err
	}

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	switch {
	case err == nil:
		if usr, err = cli.usrSvc.SetPassword(ctx, email, pwd); err != nil {
			return user.User{}, err
		}
	case errors.Cause(err) == user.ErrNotFound:
		if usr, err = cli.usrSvc.Create(ctx, email, pwd); err != nil {
			return user.User{}, err
		}
	default:
		return user.User{}, err
	}

	if usr.IsActive != active {
		if usr, err = cli.usrSvc.SetActive(ctx, usr.ID, active); err != nil {
			return user.User{}, err
		}
	}
	if _, err = cli.profSvc.SetRole(ctx, usr.ID, role); err != nil {
		return user.User{}, err
	}
	return usr, nil
}
