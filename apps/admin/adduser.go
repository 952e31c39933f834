package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

// addUser creates a user, or activates an existing one and grants it roles and a new password.
func (cli *commandLine) addUser(name, email, pwd, confirm string, roles []user.Role) error {
	ctx := context.Background()

	nu := user.NewUser{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: confirm,
		Roles:           roles,
	}
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		if err = nu.Validate(cli.validate); err != nil {
			return err
		}
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	}

	active := true
	uu := user.UpdateUser{Name: name, IsActive: &active, Password: pwd, PasswordConfirm: confirm}
	if err = uu.Validate(usr, cli.validate); err != nil {
		return err
	}
	if usr, err = cli.usrSvc.Update(ctx, usr, uu); err != nil {
		return err
	}
	for _, role := range roles {
		if usr, err = cli.usrSvc.AddRole(ctx, usr, role); err != nil {
			return err
		}
	}
	return nil
}
