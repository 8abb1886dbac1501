package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/canvas"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/event"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/user"
	appfs "github.com/trezcool/campusmate/fs"
	emailsvc "github.com/trezcool/campusmate/services/email"
	logsvc "github.com/trezcool/campusmate/services/logger"
	"github.com/trezcool/campusmate/services/realtime"
	"github.com/trezcool/campusmate/storage/database"
	sqlxrepos "github.com/trezcool/campusmate/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(false)

	// set up DB
	dbx, err := database.OpenSqlx(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	if err = dbx.Ping(); err != nil {
		logger.Fatal(fmt.Sprintf("pinging database: %v", err), err)
	}

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	core.ParseEmailTemplates(appfs.FS, conf, logger)

	// admin commands have no live websocket connections to push to
	hub, err := realtime.NewHub(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up realtime hub: %v", err), err)
	}

	usrRepo := sqlxrepos.NewUserRepository(dbx)
	usrSvc := user.NewService(usrRepo, mailSvc, conf)
	classSvc := class.NewService(sqlxrepos.NewClassRepository(dbx))
	eventSvc := event.NewService(sqlxrepos.NewEventRepository(dbx), classSvc, conf.Canvas.Location())
	rewardSvc := reward.NewService(sqlxrepos.NewRewardRepository(dbx))
	canvasSvc, err := canvas.NewService(
		canvas.NewHTTPFetcher(conf.Canvas.FetchTimeout), usrSvc, classSvc, eventSvc, rewardSvc, logger,
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up canvas service: %v", err), err)
	}
	notifSvc, err := notification.NewService(
		sqlxrepos.NewNotificationRepository(dbx), usrSvc, eventSvc, mailSvc, hub, logger,
	)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up notification service: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		db:        dbx.DB,
		usrRepo:   usrRepo,
		canvasSvc: canvasSvc,
		notifSvc:  notifSvc,
	}
	err = cli.run(os.Args)
	_ = dbx.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("\nerror: %s\n", err), err)
		}
		os.Exit(1)
	}
}
