package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/campusmate/core/user"
)

// canvasSync re-imports the saved feed of `uname`, or of every user if empty.
func (cli *commandLine) canvasSync(uname string) error {
	ctx := context.Background()
	if uname == "" {
		synced, failed, err := cli.canvasSvc.SyncAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cli.stdout(), "canvas sync: %d synced, %d failed\n", synced, failed)
		return nil
	}

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname}})
	if err != nil {
		return err
	}
	res, err := cli.canvasSvc.Import(ctx, usr, "")
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "canvas sync: %d courses (%d new), %d events imported, %d skipped\n",
		res.CoursesFound, res.CoursesCreated, res.EventsImported, res.EventsSkipped)
	return nil
}

func (cli *commandLine) sendReminders() error {
	sent, err := cli.notifSvc.SendStudyReminders(context.Background(), time.Now().UTC())
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.stdout(), "study reminders: %d sent\n", sent)
	return nil
}
