package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func (cli *commandLine) resetPasswordCmd() *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "resetpassword",
		Short: "Reset the password of an account; the password is prompted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pwd, err := cli.promptPassword()
			if err != nil {
				return err
			}
			if err = cli.resetPassword(cmd.Context(), email, pwd); err != nil {
				return err
			}
			fmt.Fprintln(cli.out, "password updated")
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email of the account")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (cli *commandLine) resetPassword(ctx context.Context, email, pwd string) error {
	email, err := cli.checkPassword(email, pwd)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, email, pwd)
	return err
}
