package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// addUser creates the user, or sets the password of and reactivates the user owning the email.
func (cli *commandLine) addUser(nu user.NewUser) error {
	ctx := context.Background()

	usr, err := cli.usrSvc.GetByEmail(ctx, nu.Email)
	switch {
	case err == nil:
		if err := cli.usrSvc.SetPassword(ctx, usr.Email, nu.Password); err != nil {
			return err
		}
		_, err = cli.usrSvc.Update(ctx, usr.ID, user.UpdateUser{IsActive: core.BoolPtr(true)})
		return err
	case errors.Cause(err) != user.ErrNotFound:
		return err
	}

	if err := nu.Validate(cli.validate); err != nil {
		return err
	}
	_, err = cli.usrSvc.Create(ctx, nu)
	return err
}
