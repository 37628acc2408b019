package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/classhub/lms/core"
	"github.com/classhub/lms/core/user"
)

func (cli *commandLine) newAddUserCommand() *cobra.Command {
	var uname, name, email, role string

	cmd := &cobra.Command{
		Use:   "adduser",
		Short: "Create a user, or update it when the username is taken. The password is prompted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			pwd, err := promptPassword(cmd, "Enter password:")
			if err != nil {
				return err
			}
			usr, created, err := cli.addUser(cmd.Context(), uname, name, email, role, pwd)
			if err != nil {
				return err
			}
			verb := "updated"
			if created {
				verb = "created"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s) %s\n", usr.Role, usr.Username, usr.ID, verb)
			return nil
		},
	}
	cmd.Flags().StringVar(&uname, "username", "", "Username")
	cmd.Flags().StringVar(&name, "name", "", "Full name")
	cmd.Flags().StringVar(&email, "email", "", "Email address")
	cmd.Flags().StringVar(&role, "role", user.RoleAdmin, "Role: admin, prof or student")
	_ = cmd.MarkFlagRequired("username")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(ctx context.Context, uname, name, email, role, pwd string) (user.User, bool, error) {
	uname = core.CleanString(uname, true /* lower */)

	usr, err := cli.usrSvc.GetByUsername(ctx, uname)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return user.User{}, false, err
		}
		nu := user.NewUser{
			Name:            name,
			Username:        uname,
			Email:           email,
			Password:        pwd,
			PasswordConfirm: pwd,
			Role:            role,
		}
		if err := nu.Validate(cli.validate); err != nil {
			return user.User{}, false, cli.validationError(err)
		}
		usr, err = cli.usrSvc.Create(ctx, nu)
		return usr, err == nil, err
	}

	active := true
	uu := user.UpdateUser{
		Name:            name,
		Email:           email,
		IsActive:        &active,
		Password:        pwd,
		PasswordConfirm: pwd,
	}
	if err := uu.Validate(usr, cli.validate); err != nil {
		return user.User{}, false, cli.validationError(err)
	}
	if usr, err = cli.usrSvc.Update(ctx, usr.ID, uu); err != nil {
		return user.User{}, false, err
	}
	if role = core.CleanString(role, true /* lower */); role != usr.Role {
		usr, err = cli.usrSvc.UpdateRole(ctx, usr.ID, role)
	}
	return usr, false, err
}
