package main

import (
	"context"
	"expvar"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"

	echoapi "github.com/trezcool/campusmate/apps/api/echo"
	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/canvas"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/event"
	"github.com/trezcool/campusmate/core/message"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/resource"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/studygroup"
	"github.com/trezcool/campusmate/core/user"
	appfs "github.com/trezcool/campusmate/fs"
	emailsvc "github.com/trezcool/campusmate/services/email"
	logsvc "github.com/trezcool/campusmate/services/logger"
	"github.com/trezcool/campusmate/services/realtime"
	"github.com/trezcool/campusmate/storage/database"
	sqlxrepos "github.com/trezcool/campusmate/storage/database/sqlx"
)

func main() {
	// =========================================================================
	// Set up Dependencies

	conf := core.NewConfig()

	// set up loggers
	logger := newLogger("API : ", conf)
	dbLogger := newLogger("DB : ", conf)
	cronLogger := newLogger("CRON : ", conf)

	// set up DB
	db, err := database.Setup(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	defer func() {
		if err = db.Close(); err != nil {
			dbLogger.Fatal("Failed to close", err)
		}
	}()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	hub, err := realtime.NewHub(conf, logger)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up realtime hub: %v", err), err)
	}
	defer hub.Close()

	store, err := resource.NewDiskStore(conf.Uploads.Dir, conf.Uploads.MaxSize)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up uploads store: %v", err), err)
	}

	deps, err := newServerDeps(conf, logger, db, mailSvc, hub, store)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up services: %v", err), err)
	}

	// =========================================================================
	// Initialize App

	logger.Info(fmt.Sprintf("Application initializing : version %q", conf.Build))
	defer logger.Info("Application stopped")

	core.InitValidators(deps.Validate, deps.Translator)
	user.InitValidators(deps.Validate, deps.Translator)

	core.ParseEmailTemplates(appfs.FS, conf, logger)

	user.LoadCommonPasswords(appfs.FS, logger)

	// =========================================================================
	// Start Background Jobs

	scheduler, err := newScheduler(conf, cronLogger, deps.CanvasSvc, deps.NotificationSvc)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up jobs: %v", err), err)
	}
	scheduler.Start()
	defer func() {
		<-scheduler.Stop().Done()
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	// Expose important info under /debug/vars.
	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	server, err := echoapi.NewServer(deps)
	if err != nil {
		logger.Fatal(fmt.Sprintf("setting up server: %v", err), err)
	}

	go func() {
		server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-server.Errors():
		logger.Fatal(fmt.Sprintf("server error: %v", err), err)

	case sig := <-server.ShutdownSignal():
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		// asking listener to shutdown and shed load
		if err = server.Shutdown(ctx); err != nil {
			logger.Error(fmt.Sprintf("could not stop server gracefully: %v", err), err)

			if err = server.Close(); err != nil {
				logger.Fatal(fmt.Sprintf("could not force stop server: %v", err), err)
			}
		}
	}
}

func newLogger(prefix string, conf *core.Config) *logsvc.RollbarLogger {
	logger := logsvc.NewRollbarLogger(
		log.New(os.Stdout, prefix, log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

// newServerDeps wires the services on the postgres repositories.
func newServerDeps(
	conf *core.Config,
	logger core.Logger,
	db *sqlx.DB,
	mailSvc core.EmailService,
	hub *realtime.Hub,
	store resource.FileStore,
) (echoapi.ServerDeps, error) {
	deps := echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validator.New(),
		Translator: core.NewTranslator(),
		Hub:        hub,
	}

	deps.UserSvc = user.NewService(sqlxrepos.NewUserRepository(db), mailSvc, conf)
	deps.ClassSvc = class.NewService(sqlxrepos.NewClassRepository(db))
	deps.EventSvc = event.NewService(sqlxrepos.NewEventRepository(db), deps.ClassSvc, conf.Canvas.Location())
	deps.RewardSvc = reward.NewService(sqlxrepos.NewRewardRepository(db))

	var err error
	deps.CanvasSvc, err = canvas.NewService(
		canvas.NewHTTPFetcher(conf.Canvas.FetchTimeout), deps.UserSvc, deps.ClassSvc, deps.EventSvc, deps.RewardSvc, logger,
	)
	if err != nil {
		return deps, err
	}
	deps.NotificationSvc, err = notification.NewService(
		sqlxrepos.NewNotificationRepository(db), deps.UserSvc, deps.EventSvc, mailSvc, hub, logger,
	)
	if err != nil {
		return deps, err
	}
	deps.MessageSvc = message.NewService(sqlxrepos.NewMessageRepository(db), deps.UserSvc, deps.NotificationSvc, hub)
	deps.ResourceSvc = resource.NewService(
		sqlxrepos.NewResourceRepository(db), store, deps.ClassSvc, deps.NotificationSvc, deps.RewardSvc,
	)
	deps.StudyGroupSvc = studygroup.NewService(
		sqlxrepos.NewStudyGroupRepository(db), deps.ClassSvc, deps.NotificationSvc, deps.RewardSvc, deps.EventSvc.Location(),
	)
	return deps, nil
}
