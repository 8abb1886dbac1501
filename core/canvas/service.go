package canvas

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/event"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/user"
)

var (
	asyncImportTimeout = 2 * time.Minute

	// errors
	ErrInvalidURLFormat = core.NewValidationError(errors.New("Invalid URL format"))
	ErrNotCanvasURL     = core.NewValidationError(errors.New("Not a valid Canvas URL"))
	ErrNoURL            = core.NewValidationError(errors.New("No Canvas URL configured"))
	ErrNoCourses        = core.NewValidationError(errors.New("No valid courses found in calendar"))
	ErrFetchFailed      = core.NewValidationError(errors.New("Failed to fetch Canvas calendar"))
)

type (
	// ImportResult sums up what an import changed.
	ImportResult struct {
		CoursesFound   int `json:"courses_found"`
		CoursesCreated int `json:"courses_created"`
		EventsImported int `json:"events_imported"`
		EventsSkipped  int `json:"events_skipped"`
	}

	Service struct {
		fetcher   Fetcher
		userSvc   *user.Service
		classSvc  *class.Service
		eventSvc  *event.Service
		rewardSvc *reward.Service
		logger    core.Logger
	}
)

func NewService(
	fetcher Fetcher,
	userSvc *user.Service,
	classSvc *class.Service,
	eventSvc *event.Service,
	rewardSvc *reward.Service,
	logger core.Logger,
) (*Service, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(fetcher, "fetcher"),
		vala.IsNotNil(userSvc, "userSvc"),
		vala.IsNotNil(classSvc, "classSvc"),
		vala.IsNotNil(eventSvc, "eventSvc"),
		vala.IsNotNil(rewardSvc, "rewardSvc"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		return nil, err
	}
	return &Service{
		fetcher:   fetcher,
		userSvc:   userSvc,
		classSvc:  classSvc,
		eventSvc:  eventSvc,
		rewardSvc: rewardSvc,
		logger:    logger,
	}, nil
}

// ValidateURL checks that `u` is an http(s) URL of a Canvas instance.
func ValidateURL(u string) error {
	lu := strings.ToLower(u)
	if !(strings.HasPrefix(lu, "http://") || strings.HasPrefix(lu, "https://")) {
		return ErrInvalidURLFormat
	}
	if !strings.Contains(lu, "canvas") {
		return ErrNotCanvasURL
	}
	return nil
}

// SaveURL validates and saves the Canvas feed of `usr`, then imports its courses in the background.
func (svc *Service) SaveURL(ctx context.Context, usr user.User, url string) (user.User, error) {
	url = core.CleanString(url)
	if url == "" {
		return user.User{}, ErrNoURL
	}
	if err := ValidateURL(url); err != nil {
		return user.User{}, err
	}
	usr, err := svc.userSvc.SetCanvasURL(ctx, usr, url)
	if err != nil {
		return user.User{}, errors.Wrap(err, "saving canvas url")
	}
	svc.ImportAsync(usr)
	return usr, nil
}

// Import fetches the Canvas feed at `url` (the saved one if empty, saving `url` otherwise),
// then imports its courses and events for `usr`. Points are awarded only when new events were imported.
func (svc *Service) Import(ctx context.Context, usr user.User, url string) (ImportResult, error) {
	url = core.CleanString(url)
	if url != "" {
		if err := ValidateURL(url); err != nil {
			return ImportResult{}, err
		}
		if url != usr.CanvasICalURL {
			var err error
			if usr, err = svc.userSvc.SetCanvasURL(ctx, usr, url); err != nil {
				return ImportResult{}, errors.Wrap(err, "saving canvas url")
			}
		}
	} else {
		url = usr.CanvasICalURL
	}
	if url == "" {
		return ImportResult{}, ErrNoURL
	}

	res, err := svc.importFeed(ctx, usr, url)
	if err != nil {
		return ImportResult{}, err
	}
	if res.EventsImported == 0 {
		return res, nil
	}
	if _, err = svc.rewardSvc.Award(ctx, usr.ID, reward.ReasonCanvasImported); err != nil {
		return ImportResult{}, errors.Wrap(err, "awarding points")
	}
	return res, nil
}

// ImportAsync imports the saved Canvas feed of `usr` in the background. Failures are logged.
func (svc *Service) ImportAsync(usr user.User) {
	if !usr.HasCanvasURL() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), asyncImportTimeout)
		defer cancel()
		if _, err := svc.Import(ctx, usr, ""); err != nil {
			svc.logger.Warn(fmt.Sprintf("canvas import failed: %v", err), err, usr)
		}
	}()
}

// SyncAll re-imports the saved feed of every user that has one.
// Per user failures are logged and counted, not returned.
func (svc *Service) SyncAll(ctx context.Context) (synced, failed int, err error) {
	users, err := svc.userSvc.WithCanvasURL(ctx)
	if err != nil {
		return 0, 0, errors.Wrap(err, "querying users")
	}
	for _, usr := range users {
		if ctx.Err() != nil {
			return synced, failed, ctx.Err()
		}
		if _, err := svc.importFeed(ctx, usr, usr.CanvasICalURL); err != nil {
			failed++
			svc.logger.Warn(fmt.Sprintf("canvas sync failed: %v", err), err, usr)
			continue
		}
		synced++
	}
	return synced, failed, nil
}

func (svc *Service) importFeed(ctx context.Context, usr user.User, url string) (ImportResult, error) {
	r, err := svc.fetcher.Fetch(ctx, url)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("fetching canvas feed: %v", err), err, usr)
		return ImportResult{}, ErrFetchFailed
	}
	events, err := Parse(r, svc.eventSvc.Location())
	if err != nil {
		return ImportResult{}, core.NewValidationError(errors.Wrap(err, "parsing canvas feed"))
	}

	var res ImportResult
	classes, created, err := svc.ImportCourses(ctx, usr, events)
	if err != nil {
		return ImportResult{}, err
	}
	res.CoursesFound = len(classes)
	res.CoursesCreated = created

	res.EventsImported, res.EventsSkipped, err = svc.ImportEvents(ctx, usr, events, classes)
	if err != nil {
		return ImportResult{}, err
	}
	return res, nil
}

// ImportCourses enrolls `usr` in the class of every course found in `events`, creating missing classes.
// Returns the classes by course code and the number of created classes.
func (svc *Service) ImportCourses(ctx context.Context, usr user.User, events []FeedEvent) (map[string]class.Class, int, error) {
	codes := make([]string, 0)
	seen := make(map[string]bool)
	for _, evt := range events {
		if evt.CourseCode != "" && !seen[evt.CourseCode] {
			seen[evt.CourseCode] = true
			codes = append(codes, evt.CourseCode)
		}
	}
	if len(codes) == 0 {
		return nil, 0, ErrNoCourses
	}
	sort.Strings(codes)

	var created int
	classes := make(map[string]class.Class, len(codes))
	for _, code := range codes {
		cls, isNew, err := svc.classSvc.FindOrCreateByName(ctx, usr, code)
		if err != nil {
			return nil, 0, errors.Wrap(err, "finding or creating class")
		}
		if isNew {
			created++
		}
		if err = svc.classSvc.Enroll(ctx, usr, cls); err != nil {
			return nil, 0, errors.Wrap(err, "enrolling user")
		}
		classes[code] = cls
	}
	return classes, created, nil
}

// ImportEvents stores the `events` of `usr` that do not exist yet (same title and date),
// linked to their course class when known. Returns the imported and skipped counts.
func (svc *Service) ImportEvents(ctx context.Context, usr user.User, events []FeedEvent, classes map[string]class.Class) (imported, skipped int, err error) {
	for _, fe := range events {
		exists, err := svc.eventSvc.Exists(ctx, usr.ID, fe.Title, fe.Date)
		if err != nil {
			return imported, skipped, errors.Wrap(err, "checking event")
		}
		if exists {
			skipped++
			continue
		}

		evt := event.Event{
			Title:       fe.Title,
			Description: fe.Description,
			Date:        fe.Date,
			Type:        event.TypeAssignment,
			UserID:      usr.ID,
		}
		if cls, ok := classes[fe.CourseCode]; ok {
			evt.ClassID = null.IntFrom(cls.ID)
		}
		if _, err = svc.eventSvc.Create(ctx, evt); err != nil {
			return imported, skipped, errors.Wrap(err, "creating event")
		}
		imported++
	}
	return imported, skipped, nil
}
