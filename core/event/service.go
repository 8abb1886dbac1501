package event

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/user"
)

var (
	nowFunc = time.Now // mockable

	studyDaysBefore   = []int{5, 3, 1}
	studyHour         = 14
	smartScheduleSpan = 30 * 24 * time.Hour
	studyLocation     = "Study Location TBD"

	// errors
	ErrNotFound              = core.NewNotFoundError("event not found")
	ErrNoAssignments         = core.NewNotFoundError("No assignments found in selected date range")
	ErrNoClasses             = core.NewValidationError(errors.New("No classes found. Please add classes first."))
	ErrNoUpcomingAssignments = core.NewValidationError(errors.New("No upcoming assignments found"))

	errInvalidClass = errors.New("Invalid class selected")
)

type (
	Repository interface {
		CreateEvent(ctx context.Context, evt Event) (Event, error)
		GetEvent(ctx context.Context, id int) (Event, error)
		// QueryEvents returns events matching every set filter field, ordered by date.
		QueryEvents(ctx context.Context, filter QueryFilter) ([]Event, error)
		EventExists(ctx context.Context, userID int, title string, date time.Time) (bool, error)
		UpdateEvent(ctx context.Context, evt Event) (Event, error)
		// DeleteEvents deletes events matching every set filter field. Returns the number of deleted events.
		DeleteEvents(ctx context.Context, filter QueryFilter) (int, error)
		DeleteEvent(ctx context.Context, id int) error
	}

	Service struct {
		repo     Repository
		classSvc *class.Service
		loc      *time.Location
	}
)

func NewService(repo Repository, classSvc *class.Service, loc *time.Location) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{repo: repo, classSvc: classSvc, loc: loc}
}

func (svc *Service) Location() *time.Location { return svc.loc }

func (svc *Service) Add(ctx context.Context, usr user.User, ne NewEvent) (Event, error) {
	date, err := parseDateTime(ne.Date, svc.loc)
	if err != nil {
		return Event{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date format"})
	}
	evtType := ne.Type
	if evtType == "" {
		evtType = TypeAssignment
	}
	evt := Event{
		Title:       ne.Title,
		Description: ne.Description,
		Date:        date,
		Location:    ne.Location,
		Type:        evtType,
		Status:      StatusPending,
		UserID:      usr.ID,
		CreatedAt:   nowFunc().UTC(),
	}
	if ne.ClassID != nil {
		if _, err = svc.classSvc.Get(ctx, usr, *ne.ClassID); err != nil {
			return Event{}, err
		}
		evt.ClassID = null.IntFrom(*ne.ClassID)
	}
	return svc.repo.CreateEvent(ctx, evt)
}

// Create stores `evt` as is. Used by importers that already resolved the event fields.
func (svc *Service) Create(ctx context.Context, evt Event) (Event, error) {
	if evt.Status == "" {
		evt.Status = StatusPending
	}
	if evt.CreatedAt.IsZero() {
		evt.CreatedAt = nowFunc().UTC()
	}
	return svc.repo.CreateEvent(ctx, evt)
}

// Exists reports whether `userID` already has an event titled `title` at `date`.
func (svc *Service) Exists(ctx context.Context, userID int, title string, date time.Time) (bool, error) {
	return svc.repo.EventExists(ctx, userID, title, date)
}

// Query returns events across users. Used by background jobs.
func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	return svc.repo.QueryEvents(ctx, filter)
}

func (svc *Service) get(ctx context.Context, usr user.User, id int) (Event, error) {
	evt, err := svc.repo.GetEvent(ctx, id)
	if err != nil {
		return Event{}, err
	}
	if evt.UserID != usr.ID {
		return Event{}, ErrNotFound
	}
	return evt, nil
}

func (svc *Service) UpdateStatus(ctx context.Context, usr user.User, id int, us UpdateStatus) (Event, error) {
	evt, err := svc.get(ctx, usr, id)
	if err != nil {
		return Event{}, err
	}
	evt.Status = us.Status
	return svc.repo.UpdateEvent(ctx, evt)
}

func (svc *Service) Delete(ctx context.Context, usr user.User, id int) error {
	if _, err := svc.get(ctx, usr, id); err != nil {
		return err
	}
	return svc.repo.DeleteEvent(ctx, id)
}

// Feed returns the calendar of `usr`, leaving out events of archived classes.
func (svc *Service) Feed(ctx context.Context, usr user.User) ([]FeedItem, error) {
	classes, err := svc.classSvc.ByID(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "querying user classes")
	}
	events, err := svc.repo.QueryEvents(ctx, QueryFilter{UserID: usr.ID})
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}

	items := make([]FeedItem, 0, len(events))
	for _, evt := range events {
		color := ColorNoClass
		var course string
		if evt.ClassID.Valid {
			cls, ok := classes[evt.ClassID.Int]
			if ok && cls.Archived {
				continue
			}
			if ok {
				color = cls.Color
				course = cls.Name
			}
		}
		if evt.Type == TypeStudySession {
			color = ColorStudySession
		}
		items = append(items, FeedItem{
			ID:              evt.ID,
			Title:           evt.Title,
			Start:           evt.Date,
			End:             evt.Date.Add(time.Hour),
			Description:     evt.Description,
			Location:        evt.Location,
			Type:            evt.Type,
			Status:          evt.Status,
			BackgroundColor: color,
			ClassName:       evt.Type,
			Course:          course,
		})
	}
	return items, nil
}

// GenerateSchedule replaces the study sessions of a class within [start, end] with sessions
// 5, 3 and 1 days before each assignment of that range, at 14:00.
func (svc *Service) GenerateSchedule(ctx context.Context, usr user.User, req ScheduleRequest) ([]Event, error) {
	cls, err := svc.classSvc.Get(ctx, usr, req.ClassID)
	if err != nil {
		if core.IsNotFound(err) || core.IsPermissionDenied(err) {
			return nil, core.NewValidationError(errInvalidClass, core.FieldError{Field: "class_id", Error: errInvalidClass.Error()})
		}
		return nil, err
	}

	start, err := time.ParseInLocation(dateLayout, req.StartDate, svc.loc)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "start_date", Error: "invalid date format, expected YYYY-MM-DD"})
	}
	end, err := time.ParseInLocation(dateLayout, req.EndDate, svc.loc)
	if err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "end_date", Error: "invalid date format, expected YYYY-MM-DD"})
	}
	end = end.AddDate(0, 0, 1).Add(-time.Second) // 23:59:59
	if end.Before(start) {
		return nil, core.NewValidationError(nil, core.FieldError{Field: "end_date", Error: "end date must not be before start date"})
	}

	classID := null.IntFrom(cls.ID)
	assignments, err := svc.repo.QueryEvents(ctx, QueryFilter{
		UserID:  usr.ID,
		ClassID: classID,
		Types:   []string{TypeAssignment},
		From:    start,
		To:      end,
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	if len(assignments) == 0 {
		return nil, ErrNoAssignments
	}

	if _, err = svc.repo.DeleteEvents(ctx, QueryFilter{
		UserID:  usr.ID,
		ClassID: classID,
		Types:   []string{TypeStudySession},
		From:    start,
		To:      end,
	}); err != nil {
		return nil, errors.Wrap(err, "deleting study sessions")
	}

	now := nowFunc()
	sessions := make([]Event, 0, len(assignments)*len(studyDaysBefore))
	for _, a := range assignments {
		due := a.Date.In(svc.loc)
		for _, days := range studyDaysBefore {
			d := due.AddDate(0, 0, -days)
			date := time.Date(d.Year(), d.Month(), d.Day(), studyHour, 0, 0, 0, svc.loc)
			if !date.After(now) || date.Before(start) || date.After(end) {
				continue
			}
			sess, err := svc.repo.CreateEvent(ctx, Event{
				Title:       "Study Session for " + a.Title,
				Description: fmt.Sprintf("Study session %d days before %s", days, a.Title),
				Date:        date,
				Location:    studyLocation,
				Type:        TypeStudySession,
				Status:      StatusPending,
				UserID:      usr.ID,
				ClassID:     classID,
				CreatedAt:   now.UTC(),
			})
			if err != nil {
				return nil, errors.Wrap(err, "creating study session")
			}
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// GenerateSmartSchedule replaces every future study session of `usr` with sessions
// 5, 3 and 1 days before each assignment due within the next 30 days.
func (svc *Service) GenerateSmartSchedule(ctx context.Context, usr user.User) ([]Event, error) {
	classes, err := svc.classSvc.ByID(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "querying user classes")
	}
	if len(classes) == 0 {
		return nil, ErrNoClasses
	}

	now := nowFunc()
	assignments, err := svc.repo.QueryEvents(ctx, QueryFilter{
		UserID: usr.ID,
		Types:  []string{TypeAssignment},
		From:   now,
		To:     now.Add(smartScheduleSpan),
	})
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	if len(assignments) == 0 {
		return nil, ErrNoUpcomingAssignments
	}

	if _, err = svc.repo.DeleteEvents(ctx, QueryFilter{
		UserID: usr.ID,
		Types:  []string{TypeStudySession},
		From:   now,
	}); err != nil {
		return nil, errors.Wrap(err, "deleting study sessions")
	}

	sessions := make([]Event, 0, len(assignments)*len(studyDaysBefore))
	for _, a := range assignments {
		for _, days := range studyDaysBefore {
			date := a.Date.AddDate(0, 0, -days)
			if !date.After(now) {
				continue
			}
			sess, err := svc.repo.CreateEvent(ctx, Event{
				Title:       "Study for " + a.Title,
				Description: fmt.Sprintf("Study session %d days before %s", days, a.Title),
				Date:        date,
				Location:    studyLocation,
				Type:        TypeStudySession,
				Status:      StatusPending,
				UserID:      usr.ID,
				ClassID:     a.ClassID,
				CreatedAt:   now.UTC(),
			})
			if err != nil {
				return nil, errors.Wrap(err, "creating study session")
			}
			sessions = append(sessions, sess)
		}
	}
	return sessions, nil
}

// StudentSchedule returns the IDs of the events `studentID` has in `classID`.
// `viewer` must be enrolled in the class.
func (svc *Service) StudentSchedule(ctx context.Context, viewer user.User, studentID, classID int) ([]int, error) {
	if err := svc.classSvc.CheckEnrolled(ctx, viewer.ID, classID); err != nil {
		return nil, err
	}
	events, err := svc.repo.QueryEvents(ctx, QueryFilter{UserID: studentID, ClassID: null.IntFrom(classID)})
	if err != nil {
		return nil, errors.Wrap(err, "querying events")
	}
	ids := make([]int, 0, len(events))
	for _, evt := range events {
		ids = append(ids, evt.ID)
	}
	return ids, nil
}
