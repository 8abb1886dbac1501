package studygroup

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core"
)

const DefaultMaxMembers = 5

var (
	dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04"}

	errInvalidDate = errors.New("invalid date")
)

type (
	Member struct {
		ID       int    `json:"id"`
		Username string `json:"username"`
	}

	Group struct {
		ID          int       `json:"id"`
		Name        string    `json:"name"`
		ClassID     int       `json:"class_id"`
		CreatedBy   int       `json:"created_by"`
		CreatedAt   time.Time `json:"created_at"`
		MaxMembers  int       `json:"max_members"`
		MeetingLink string    `json:"meeting_link"`
		Description string    `json:"description"`
		Members     []Member  `json:"members"`
	}

	Meeting struct {
		ID          int       `json:"id"`
		GroupID     int       `json:"group_id"`
		Date        time.Time `json:"date"`
		Duration    int       `json:"duration"` // minutes
		Location    string    `json:"location"`
		MeetingLink string    `json:"meeting_link"`
		Notes       string    `json:"notes"`
		Attendees   []int     `json:"attendees"`
	}

	NewGroup struct {
		Name        string `json:"name" validate:"required,max=100"`
		Description string `json:"description"`
		MaxMembers  int    `json:"max_members" validate:"omitempty,min=2,max=50"`
		MeetingLink string `json:"meeting_link" validate:"omitempty,url,max=500"`
	}

	NewMeeting struct {
		Date        string `json:"date" validate:"required"`
		Duration    int    `json:"duration" validate:"omitempty,min=1,max=1440"`
		Location    string `json:"location" validate:"max=200"`
		MeetingLink string `json:"meeting_link" validate:"omitempty,url,max=500"`
		Notes       string `json:"notes"`
	}
)

func (g Group) IsMember(userID int) bool {
	for _, m := range g.Members {
		if m.ID == userID {
			return true
		}
	}
	return false
}

func (g Group) IsFull() bool {
	return len(g.Members) >= g.MaxMembers
}

func (ng *NewGroup) Validate(validate *validator.Validate) error {
	ng.Name = core.CleanString(ng.Name)
	ng.Description = core.CleanString(ng.Description)
	ng.MeetingLink = core.CleanString(ng.MeetingLink)
	return validate.Struct(ng)
}

func (nm *NewMeeting) Validate(validate *validator.Validate) error {
	nm.Date = core.CleanString(nm.Date)
	nm.Location = core.CleanString(nm.Location)
	nm.MeetingLink = core.CleanString(nm.MeetingLink)
	nm.Notes = core.CleanString(nm.Notes)
	return validate.Struct(nm)
}

func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errInvalidDate
}
