package event

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
)

// Event types
const (
	TypeAssignment   = "assignment"
	TypeStudySession = "study_session"
	TypeExam         = "exam"
	TypeOther        = "other"
)

// Event statuses
const (
	StatusPending = "pending"
	StatusDone    = "done"
)

// Feed colors
const (
	ColorNoClass      = "#808080"
	ColorStudySession = "#4CAF50"
)

var (
	Types = []string{TypeAssignment, TypeStudySession, TypeExam, TypeOther}

	dateLayout      = "2006-01-02"
	dateTimeLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02T15:04", dateLayout}

	errInvalidDate = errors.New("invalid date")
)

type (
	Event struct {
		ID          int       `json:"id"`
		Title       string    `json:"title"`
		Description string    `json:"description"`
		Date        time.Time `json:"date"`
		Location    string    `json:"location"`
		Type        string    `json:"type"`
		Status      string    `json:"status"`
		UserID      int       `json:"user_id"`
		ClassID     null.Int  `json:"class_id"`
		CreatedAt   time.Time `json:"created_at"`
	}

	// FeedItem is an Event as displayed by calendar widgets.
	FeedItem struct {
		ID              int       `json:"id"`
		Title           string    `json:"title"`
		Start           time.Time `json:"start"`
		End             time.Time `json:"end"`
		Description     string    `json:"description"`
		Location        string    `json:"location"`
		Type            string    `json:"type"`
		Status          string    `json:"status"`
		BackgroundColor string    `json:"backgroundColor"`
		ClassName       string    `json:"className"` // event type, used as the calendar CSS class
		Course          string    `json:"course"`
	}

	QueryFilter struct {
		UserID  int
		ClassID null.Int
		Types   []string
		From    time.Time // inclusive
		To      time.Time // inclusive
	}

	NewEvent struct {
		Title       string `json:"title" validate:"required,max=200"`
		Date        string `json:"date" validate:"required"`
		Description string `json:"description"`
		Location    string `json:"location" validate:"max=200"`
		Type        string `json:"type" validate:"omitempty,oneof=assignment study_session exam other"`
		ClassID     *int   `json:"class_id"`
	}

	UpdateStatus struct {
		Status string `json:"status" validate:"required,oneof=pending done"`
	}

	ScheduleRequest struct {
		ClassID   int    `json:"class_id" validate:"required"`
		StartDate string `json:"start_date" validate:"required"`
		EndDate   string `json:"end_date" validate:"required"`
	}
)

func (f *QueryFilter) Match(evt Event) bool {
	if f.UserID != 0 && evt.UserID != f.UserID {
		return false
	}
	if f.ClassID.Valid && (!evt.ClassID.Valid || evt.ClassID.Int != f.ClassID.Int) {
		return false
	}
	if len(f.Types) > 0 {
		var ok bool
		for _, t := range f.Types {
			if evt.Type == t {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.From.IsZero() && evt.Date.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && evt.Date.After(f.To) {
		return false
	}
	return true
}

func (ne *NewEvent) Validate(validate *validator.Validate) error {
	ne.Title = core.CleanString(ne.Title)
	ne.Date = core.CleanString(ne.Date)
	ne.Description = core.CleanString(ne.Description)
	ne.Location = core.CleanString(ne.Location)
	ne.Type = core.CleanString(ne.Type, true /* lower */)
	return validate.Struct(ne)
}

func (us *UpdateStatus) Validate(validate *validator.Validate) error {
	us.Status = core.CleanString(us.Status, true /* lower */)
	return validate.Struct(us)
}

func (sr *ScheduleRequest) Validate(validate *validator.Validate) error {
	sr.StartDate = core.CleanString(sr.StartDate)
	sr.EndDate = core.CleanString(sr.EndDate)
	return validate.Struct(sr)
}

// parseDateTime parses an ISO 8601 date or date-time; values without offset are read in `loc`.
func parseDateTime(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range dateTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errInvalidDate
}
