package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (cli *commandLine) setRoleCmd() *cobra.Command {
	var email, roleName string
	cmd := &cobra.Command{
		Use:   "setrole",
		Short: "Change the role of an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			role, err := parseRoleFlag(roleName)
			if err != nil {
				return err
			}
			usr, err := cli.usrSvc.GetByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}
			if _, err = cli.profSvc.SetRole(cmd.Context(), usr.ID, role); err != nil {
				return err
			}
			fmt.Fprintf(cli.out, "%s is now %s\n", usr.Email, role)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "email of the account")
	cmd.Flags().StringVarP(&roleName, "role", "r", "", "admin, instructor or student")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("role")
	return cmd
}
