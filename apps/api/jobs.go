package main

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/canvas"
	"github.com/trezcool/campusmate/core/notification"
)

const jobTimeout = 30 * time.Minute

// cronLogger reports the scheduler's own events through the app logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(fmt.Sprintf("%s %v", msg, keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("%s: %v %v", msg, err, keysAndValues), err)
}

// newScheduler registers the periodic Canvas re-sync and the study session reminders.
func newScheduler(
	conf *core.Config,
	logger core.Logger,
	canvasSvc *canvas.Service,
	notifSvc *notification.Service,
) (*cron.Cron, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(conf, "conf"),
		vala.IsNotNil(logger, "logger"),
		vala.IsNotNil(canvasSvc, "canvasSvc"),
		vala.IsNotNil(notifSvc, "notifSvc"),
	).Check(); err != nil {
		return nil, err
	}

	cl := cronLogger{logger}
	c := cron.New(
		cron.WithLocation(conf.Canvas.Location()),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if conf.Canvas.SyncSchedule != "" {
		if _, err := c.AddFunc(conf.Canvas.SyncSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			synced, failed, err := canvasSvc.SyncAll(ctx)
			if err != nil {
				logger.Error(fmt.Sprintf("canvas sync: %v", err), err)
				return
			}
			logger.Info(fmt.Sprintf("canvas sync: %d synced, %d failed", synced, failed))
		}); err != nil {
			return nil, errors.Wrapf(err, "scheduling canvas sync %q", conf.Canvas.SyncSchedule)
		}
	}

	if conf.Canvas.ReminderSchedule != "" {
		if _, err := c.AddFunc(conf.Canvas.ReminderSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
			defer cancel()

			sent, err := notifSvc.SendStudyReminders(ctx, time.Now().UTC())
			if err != nil {
				logger.Error(fmt.Sprintf("study reminders: %v", err), err)
				return
			}
			logger.Info(fmt.Sprintf("study reminders: %d sent", sent))
		}); err != nil {
			return nil, errors.Wrapf(err, "scheduling study reminders %q", conf.Canvas.ReminderSchedule)
		}
	}
	return c, nil
}
