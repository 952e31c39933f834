package main

import (
	"context"

	"github.com/theepangnani/emai-dev-03-sub000/core/user"
)

func (cli *commandLine) resetPassword(email, pwd, confirm string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	uu := user.UpdateUser{Password: pwd, PasswordConfirm: confirm}
	if err = uu.Validate(usr, cli.validate); err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(ctx, usr, uu)
	return err
}
