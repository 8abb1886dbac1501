package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/event"
	"github.com/trezcool/campusmate/core/user"
)

var (
	reminderWindow = 24 * time.Hour

	// errors
	ErrUnknownType = errors.New("unknown notification type")
)

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification) (Notification, error)
		// QueryUnread returns the unread notifications of `userID`, newest first.
		QueryUnread(ctx context.Context, userID int) ([]Notification, error)
		// MarkRead marks the notifications among `ids` that belong to `userID` as read.
		// Returns the number of updated notifications.
		MarkRead(ctx context.Context, userID int, ids ...int) (int, error)
	}

	Service struct {
		repo      Repository
		userSvc   *user.Service
		eventSvc  *event.Service
		mailSvc   core.EmailService
		publisher core.Publisher
		logger    core.Logger
	}
)

func NewService(
	repo Repository,
	userSvc *user.Service,
	eventSvc *event.Service,
	mailSvc core.EmailService,
	publisher core.Publisher,
	logger core.Logger,
) (*Service, error) {
	if err := vala.BeginValidation().Validate(
		vala.IsNotNil(repo, "repo"),
		vala.IsNotNil(userSvc, "userSvc"),
		vala.IsNotNil(eventSvc, "eventSvc"),
		vala.IsNotNil(mailSvc, "mailSvc"),
		vala.IsNotNil(publisher, "publisher"),
		vala.IsNotNil(logger, "logger"),
	).Check(); err != nil {
		return nil, err
	}
	return &Service{
		repo:      repo,
		userSvc:   userSvc,
		eventSvc:  eventSvc,
		mailSvc:   mailSvc,
		publisher: publisher,
		logger:    logger,
	}, nil
}

// Notify stores a notification for `userID`, pushes it to their live connections
// and emails it if their preferences allow it.
func (svc *Service) Notify(ctx context.Context, userID int, msg, typ string) (Notification, error) {
	usr, err := svc.userSvc.GetByID(ctx, userID)
	if err != nil {
		return Notification{}, err
	}
	return svc.notify(ctx, usr, msg, typ)
}

// NotifyMany notifies every user in `userIDs`. Unknown users are skipped.
func (svc *Service) NotifyMany(ctx context.Context, userIDs []int, msg, typ string) (int, error) {
	if !isValidType(typ) {
		return 0, ErrUnknownType
	}
	users, err := svc.userSvc.QueryByID(ctx, userIDs...)
	if err != nil {
		return 0, errors.Wrap(err, "querying users")
	}
	var sent int
	for _, usr := range users {
		if _, err = svc.notify(ctx, usr, msg, typ); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}

func (svc *Service) notify(ctx context.Context, usr user.User, msg, typ string) (Notification, error) {
	if typ == "" {
		typ = TypeGeneral
	}
	if !isValidType(typ) {
		return Notification{}, ErrUnknownType
	}
	n, err := svc.repo.CreateNotification(ctx, Notification{
		UserID:    usr.ID,
		Message:   truncate(msg),
		Type:      typ,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Notification{}, errors.Wrap(err, "creating notification")
	}

	svc.publisher.Publish(usr.ID, core.RealtimeEvent{Type: core.EventNotification, Payload: n})
	if usr.IsActive && usr.WantsEmail(typ) {
		svc.mailSvc.SendMessages(&core.EmailMessage{
			To:           []mail.Address{{Name: usr.Username, Address: usr.Email}},
			Subject:      "New notification",
			TemplateName: "notification",
			TemplateData: map[string]interface{}{
				"Username": usr.Username,
				"Message":  n.Message,
				"Type":     n.Type,
			},
		})
	}
	return n, nil
}

func (svc *Service) Unread(ctx context.Context, usr user.User) ([]Notification, error) {
	return svc.repo.QueryUnread(ctx, usr.ID)
}

func (svc *Service) MarkRead(ctx context.Context, usr user.User, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return svc.repo.MarkRead(ctx, usr.ID, ids...)
}

// SendStudyReminders notifies the owners of study sessions starting within the next 24h.
// Returns the number of reminders sent.
func (svc *Service) SendStudyReminders(ctx context.Context, now time.Time) (int, error) {
	sessions, err := svc.eventSvc.Query(ctx, event.QueryFilter{
		Types: []string{event.TypeStudySession},
		From:  now,
		To:    now.Add(reminderWindow),
	})
	if err != nil {
		return 0, errors.Wrap(err, "querying study sessions")
	}

	owners := make(map[int]user.User)
	var sent int
	for _, sess := range sessions {
		if sess.Status == event.StatusDone {
			continue
		}
		usr, ok := owners[sess.UserID]
		if !ok {
			if usr, err = svc.userSvc.GetByID(ctx, sess.UserID); err != nil {
				if errors.Cause(err) == user.ErrNotFound {
					continue
				}
				return sent, errors.Wrap(err, "finding session owner")
			}
			owners[sess.UserID] = usr
		}
		if !usr.IsActive || !usr.StudyReminders {
			continue
		}

		msg := fmt.Sprintf("Reminder: %s on %s", sess.Title, sess.Date.In(svc.eventSvc.Location()).Format("Mon Jan 2 at 15:04"))
		if _, err = svc.notify(ctx, usr, msg, TypeReminder); err != nil {
			return sent, err
		}
		sent++
	}
	return sent, nil
}
