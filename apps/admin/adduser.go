package main

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/user"
)

// addUser updates or creates an active user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)
	now := time.Now().UTC()

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}})
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username:           uname,
			Email:              email,
			Roles:              user.StudentRoles,
			EmailNotifications: true,
			StudyReminders:     true,
			GroupNotifications: true,
			Theme:              user.ThemeLight,
			CreatedAt:          now,
		}
	}
	if isAdmin {
		usr.Roles = user.AllRoles
	}
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(pwd); err != nil {
		return err
	}
	_, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr)
	return err
}
