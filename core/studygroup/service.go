package studygroup

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/user"
)

var (
	nowFunc = time.Now // mockable

	// errors
	ErrNotFound         = core.NewNotFoundError("Group not found")
	ErrMeetingNotFound  = core.NewNotFoundError("Meeting not found")
	ErrNotMember        = core.NewPermissionError("Not a member")
	ErrAlreadyMember    = core.NewValidationError(errors.New("Already a member"))
	ErrGroupFull        = core.NewValidationError(errors.New("Group is full"))
	ErrLeaveNotMember   = core.NewValidationError(errors.New("Not a member"))
	ErrCreatorLeave     = core.NewValidationError(errors.New("Creator cannot leave group"))
	ErrAlreadyAttending = core.NewValidationError(errors.New("Already attending"))
)

type (
	Repository interface {
		CreateGroup(ctx context.Context, g Group) (Group, error)
		// GetGroup returns the group `id` with its members.
		GetGroup(ctx context.Context, id int) (Group, error)
		// QueryGroups returns the groups of `classID` with their members, oldest first.
		QueryGroups(ctx context.Context, classID int) ([]Group, error)
		AddMember(ctx context.Context, groupID, userID int) error
		RemoveMember(ctx context.Context, groupID, userID int) error
		CreateMeeting(ctx context.Context, m Meeting) (Meeting, error)
		// GetMeeting returns the meeting `id` with its attendees.
		GetMeeting(ctx context.Context, id int) (Meeting, error)
		// QueryMeetings returns the meetings of `groupID` with their attendees, ordered by date.
		QueryMeetings(ctx context.Context, groupID int) ([]Meeting, error)
		// AddAttendee returns false if `userID` already attends `meetingID`.
		AddAttendee(ctx context.Context, meetingID, userID int) (bool, error)
	}

	Service struct {
		repo      Repository
		classSvc  *class.Service
		notifSvc  *notification.Service
		rewardSvc *reward.Service
		loc       *time.Location
	}
)

func NewService(
	repo Repository,
	classSvc *class.Service,
	notifSvc *notification.Service,
	rewardSvc *reward.Service,
	loc *time.Location,
) *Service {
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		repo:      repo,
		classSvc:  classSvc,
		notifSvc:  notifSvc,
		rewardSvc: rewardSvc,
		loc:       loc,
	}
}

func (svc *Service) ListForClass(ctx context.Context, usr user.User, classID int) ([]Group, error) {
	if _, err := svc.classSvc.Get(ctx, usr, classID); err != nil {
		return nil, err
	}
	return svc.repo.QueryGroups(ctx, classID)
}

func (svc *Service) Create(ctx context.Context, usr user.User, classID int, ng NewGroup) (Group, error) {
	cls, err := svc.classSvc.Get(ctx, usr, classID)
	if err != nil {
		return Group{}, err
	}
	maxMembers := ng.MaxMembers
	if maxMembers == 0 {
		maxMembers = DefaultMaxMembers
	}
	g, err := svc.repo.CreateGroup(ctx, Group{
		Name:        ng.Name,
		ClassID:     cls.ID,
		CreatedBy:   usr.ID,
		CreatedAt:   nowFunc().UTC(),
		MaxMembers:  maxMembers,
		MeetingLink: ng.MeetingLink,
		Description: ng.Description,
	})
	if err != nil {
		return Group{}, errors.Wrap(err, "creating study group")
	}
	if err = svc.repo.AddMember(ctx, g.ID, usr.ID); err != nil {
		return Group{}, errors.Wrap(err, "adding creator")
	}
	g.Members = []Member{{ID: usr.ID, Username: usr.Username}}

	if _, err = svc.rewardSvc.Award(ctx, usr.ID, reward.ReasonGroupCreated); err != nil {
		return Group{}, errors.Wrap(err, "awarding points")
	}
	return g, nil
}

// getGroup returns the group `id` if `usr` is enrolled in its class.
func (svc *Service) getGroup(ctx context.Context, usr user.User, id int) (Group, error) {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return Group{}, err
	}
	if err = svc.classSvc.CheckEnrolled(ctx, usr.ID, g.ClassID); err != nil {
		return Group{}, err
	}
	return g, nil
}

func (svc *Service) Join(ctx context.Context, usr user.User, id int) (Group, error) {
	g, err := svc.getGroup(ctx, usr, id)
	if err != nil {
		return Group{}, err
	}
	if g.IsMember(usr.ID) {
		return Group{}, ErrAlreadyMember
	}
	if g.IsFull() {
		return Group{}, ErrGroupFull
	}
	if err = svc.repo.AddMember(ctx, g.ID, usr.ID); err != nil {
		return Group{}, errors.Wrap(err, "adding member")
	}
	g.Members = append(g.Members, Member{ID: usr.ID, Username: usr.Username})

	if _, err = svc.rewardSvc.Award(ctx, usr.ID, reward.ReasonGroupJoined); err != nil {
		return Group{}, errors.Wrap(err, "awarding points")
	}
	return g, nil
}

func (svc *Service) Leave(ctx context.Context, usr user.User, id int) error {
	g, err := svc.repo.GetGroup(ctx, id)
	if err != nil {
		return err
	}
	if !g.IsMember(usr.ID) {
		return ErrLeaveNotMember
	}
	if g.CreatedBy == usr.ID {
		return ErrCreatorLeave
	}
	if err = svc.repo.RemoveMember(ctx, g.ID, usr.ID); err != nil {
		return errors.Wrap(err, "removing member")
	}
	return nil
}

// ScheduleMeeting plans a meeting of group `groupID` and notifies the other members.
func (svc *Service) ScheduleMeeting(ctx context.Context, usr user.User, groupID int, nm NewMeeting) (Meeting, error) {
	g, err := svc.repo.GetGroup(ctx, groupID)
	if err != nil {
		return Meeting{}, err
	}
	if !g.IsMember(usr.ID) {
		return Meeting{}, ErrNotMember
	}
	date, err := parseDateTime(nm.Date, svc.loc)
	if err != nil {
		return Meeting{}, core.NewValidationError(err, core.FieldError{Field: "date", Error: "invalid date format"})
	}
	if !date.After(nowFunc()) {
		return Meeting{}, core.NewValidationError(nil, core.FieldError{Field: "date", Error: "meeting date must be in the future"})
	}
	link := nm.MeetingLink
	if link == "" {
		link = g.MeetingLink
	}

	m, err := svc.repo.CreateMeeting(ctx, Meeting{
		GroupID:     g.ID,
		Date:        date,
		Duration:    nm.Duration,
		Location:    nm.Location,
		MeetingLink: link,
		Notes:       nm.Notes,
	})
	if err != nil {
		return Meeting{}, errors.Wrap(err, "creating meeting")
	}
	m.Attendees = make([]int, 0)

	ids := make([]int, 0, len(g.Members))
	for _, member := range g.Members {
		if member.ID != usr.ID {
			ids = append(ids, member.ID)
		}
	}
	if len(ids) > 0 {
		msg := fmt.Sprintf("%s scheduled a %s meeting on %s", usr.Username, g.Name, date.In(svc.loc).Format("Mon Jan 2 at 15:04"))
		if _, err = svc.notifSvc.NotifyMany(ctx, ids, msg, notification.TypeStudyGroup); err != nil {
			return Meeting{}, errors.Wrap(err, "notifying members")
		}
	}
	return m, nil
}

// Attend registers `usr` as attending meeting `meetingID`.
func (svc *Service) Attend(ctx context.Context, usr user.User, meetingID int) (Meeting, error) {
	m, err := svc.repo.GetMeeting(ctx, meetingID)
	if err != nil {
		return Meeting{}, err
	}
	g, err := svc.repo.GetGroup(ctx, m.GroupID)
	if err != nil {
		return Meeting{}, err
	}
	if !g.IsMember(usr.ID) {
		return Meeting{}, ErrNotMember
	}
	added, err := svc.repo.AddAttendee(ctx, m.ID, usr.ID)
	if err != nil {
		return Meeting{}, errors.Wrap(err, "adding attendee")
	}
	if !added {
		return Meeting{}, ErrAlreadyAttending
	}
	m.Attendees = append(m.Attendees, usr.ID)

	if _, err = svc.rewardSvc.Award(ctx, usr.ID, reward.ReasonMeetingAttended); err != nil {
		return Meeting{}, errors.Wrap(err, "awarding points")
	}
	return m, nil
}

func (svc *Service) Meetings(ctx context.Context, usr user.User, groupID int) ([]Meeting, error) {
	g, err := svc.getGroup(ctx, usr, groupID)
	if err != nil {
		return nil, err
	}
	return svc.repo.QueryMeetings(ctx, g.ID)
}
