// Package testutil wires the services on the in-memory database for tests.
package testutil

import (
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

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
	inmemdb "github.com/trezcool/campusmate/storage/database/inmem"
)

// CanvasFeed is a Canvas calendar with two courses (CSE-110 and MAT-265).
var CanvasFeed = strings.Join([]string{
	"BEGIN:VCALENDAR",
	"VERSION:2.0",
	"PRODID:-//Instructure//Canvas//EN",
	"BEGIN:VEVENT",
	"UID:event-assignment-1",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240315T235900Z",
	"SUMMARY:Homework 3 [CSE-110]",
	"DESCRIPTION:Submit on time",
	"END:VEVENT",
	"BEGIN:VEVENT",
	"UID:event-assignment-2",
	"DTSTAMP:20240101T000000Z",
	"DTSTART:20240322T235900Z",
	"SUMMARY:Quiz 2 [MAT-265]",
	"END:VEVENT",
	"END:VCALENDAR",
	"",
}, "\r\n")

// NewLogger returns a logger that discards everything.
func NewLogger() core.Logger {
	conf := core.NewTestConfig()
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

// NewValidator returns a validator with every custom tag registered.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	return validate, translator
}

// Publisher records published events.
type Publisher struct {
	mu     sync.Mutex
	events map[int][]core.RealtimeEvent
}

var _ core.Publisher = (*Publisher)(nil)

func NewPublisher() *Publisher {
	return &Publisher{events: make(map[int][]core.RealtimeEvent)}
}

func (p *Publisher) Publish(userID int, evt core.RealtimeEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events[userID] = append(p.events[userID], evt)
}

// Events returns the events published to `userID`, optionally only those of type `typ`.
func (p *Publisher) Events(userID int, typ ...string) []core.RealtimeEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	res := make([]core.RealtimeEvent, 0)
	for _, evt := range p.events[userID] {
		if len(typ) == 0 || evt.Type == typ[0] {
			res = append(res, evt)
		}
	}
	return res
}

func (p *Publisher) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = make(map[int][]core.RealtimeEvent)
}

// FeedFetcher serves canned calendar feeds by URL.
type FeedFetcher struct {
	mu    sync.Mutex
	feeds map[string]string
	calls int
}

var _ canvas.Fetcher = (*FeedFetcher)(nil)

func NewFeedFetcher() *FeedFetcher {
	return &FeedFetcher{feeds: make(map[string]string)}
}

func (f *FeedFetcher) Set(url, feed string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feeds[url] = feed
}

func (f *FeedFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FeedFetcher) Fetch(ctx context.Context, url string) (io.Reader, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	feed, ok := f.feeds[url]
	if !ok {
		return nil, errors.Errorf("canvas feed returned 404")
	}
	return strings.NewReader(feed), nil
}

// Env holds every service, wired on a fresh in-memory database.
type Env struct {
	Conf      *core.Config
	Logger    core.Logger
	DB        *inmemdb.DB
	Publisher *Publisher
	Fetcher   *FeedFetcher
	Store     *resource.DiskStore

	UserRepo      user.Repository
	Users         *user.Service
	Classes       *class.Service
	Events        *event.Service
	Rewards       *reward.Service
	Canvas        *canvas.Service
	Notifications *notification.Service
	Messages      *message.Service
	Resources     *resource.Service
	Groups        *studygroup.Service
}

func NewEnv(t *testing.T) *Env {
	t.Helper()
	env := &Env{
		Conf:      core.NewTestConfig(),
		Logger:    NewLogger(),
		Publisher: NewPublisher(),
		Fetcher:   NewFeedFetcher(),
	}
	env.Conf.Uploads.Dir = t.TempDir()
	core.ParseEmailTemplates(appfs.FS, env.Conf, env.Logger)
	user.LoadCommonPasswords(appfs.FS, env.Logger)

	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open(): %v", err)
	}
	env.DB = db
	if env.Store, err = resource.NewDiskStore(env.Conf.Uploads.Dir, env.Conf.Uploads.MaxSize); err != nil {
		t.Fatalf("resource.NewDiskStore(): %v", err)
	}

	mailSvc := emailsvc.NewConsoleServiceMock(env.Conf, env.Logger)
	env.UserRepo = inmemdb.NewUserRepository(db)
	env.Users = user.NewService(env.UserRepo, mailSvc, env.Conf)
	env.Classes = class.NewService(inmemdb.NewClassRepository(db))
	env.Events = event.NewService(inmemdb.NewEventRepository(db), env.Classes, env.Conf.Canvas.Location())
	env.Rewards = reward.NewService(inmemdb.NewRewardRepository(db))

	if env.Canvas, err = canvas.NewService(env.Fetcher, env.Users, env.Classes, env.Events, env.Rewards, env.Logger); err != nil {
		t.Fatalf("canvas.NewService(): %v", err)
	}
	env.Notifications, err = notification.NewService(
		inmemdb.NewNotificationRepository(db), env.Users, env.Events, mailSvc, env.Publisher, env.Logger,
	)
	if err != nil {
		t.Fatalf("notification.NewService(): %v", err)
	}
	env.Messages = message.NewService(inmemdb.NewMessageRepository(db), env.Users, env.Notifications, env.Publisher)
	env.Resources = resource.NewService(inmemdb.NewResourceRepository(db), env.Store, env.Classes, env.Notifications, env.Rewards)
	env.Groups = studygroup.NewService(inmemdb.NewStudyGroupRepository(db), env.Classes, env.Notifications, env.Rewards, env.Events.Location())

	emailsvc.Outbox.Clear()
	return env
}

// CreateUser stores an active student. Email defaults to <uname>@example.com.
func (env *Env) CreateUser(t *testing.T, uname string, opts ...func(*user.User)) user.User {
	t.Helper()
	usr := CreateUser(t, env.UserRepo, uname, uname+"@example.com", "", user.StudentRoles, true)
	if len(opts) == 0 {
		return usr
	}
	for _, opt := range opts {
		opt(&usr)
	}
	usr, err := env.UserRepo.UpdateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser(): %v", err)
	}
	return usr
}

// CreateClass creates a class enrolling `creator` then every user of `members`.
func (env *Env) CreateClass(t *testing.T, name string, creator user.User, members ...user.User) class.Class {
	t.Helper()
	ctx := context.Background()
	cls, err := env.Classes.Create(ctx, creator, class.NewClass{Name: name})
	if err != nil {
		t.Fatalf("CreateClass(): %v", err)
	}
	for _, m := range members {
		if err = env.Classes.Enroll(ctx, m, cls); err != nil {
			t.Fatalf("CreateClass(): %v", err)
		}
	}
	return cls
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email, pwd string,
	roles []string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:           uname,
		Email:              email,
		Roles:              roles,
		IsActive:           isActive,
		EmailNotifications: true,
		StudyReminders:     true,
		GroupNotifications: true,
		Theme:              user.ThemeLight,
		CreatedAt:          tstamp,
		UpdatedAt:          tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}
