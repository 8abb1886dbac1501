package user

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/campusmate/core"
)

// Roles
const (
	RoleAdmin   = "admin:"
	RoleStudent = "student:"
)

// Themes
const (
	ThemeLight = "light"
	ThemeDark  = "dark"
)

var (
	AdminRoles   = []string{RoleAdmin}
	StudentRoles = []string{RoleStudent}
	AllRoles     = []string{RoleAdmin, RoleStudent}
)

type User struct {
	ID                 int       `json:"id"`
	Username           string    `json:"username"`
	Email              string    `json:"email"`
	IsActive           bool      `json:"is_active"`
	Roles              []string  `json:"roles"`
	PasswordHash       []byte    `json:"-"`
	CanvasICalURL      string    `json:"canvas_ical_url"`
	EmailNotifications bool      `json:"email_notifications"`
	StudyReminders     bool      `json:"study_reminders"`
	GroupNotifications bool      `json:"group_notifications"`
	Theme              string    `json:"theme"`
	CreatedAt          time.Time `json:"created_at"` // UTC
	UpdatedAt          time.Time `json:"updated_at"` // UTC
	LastLogin          time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) RoleStartsWith(prefix string) bool {
	for _, role := range u.Roles {
		if strings.HasPrefix(role, prefix) {
			return true
		}
	}
	return false
}

func (u *User) IsAdmin() bool {
	return u.RoleStartsWith(RoleAdmin)
}

func (u *User) IsStudent() bool {
	return u.RoleStartsWith(RoleStudent)
}

func (u *User) HasCanvasURL() bool {
	return u.CanvasICalURL != ""
}

// WantsEmail reports whether the user accepts email notifications of the given kind.
// An empty kind only checks the global switch.
func (u *User) WantsEmail(kind string) bool {
	if !u.EmailNotifications {
		return false
	}
	switch kind {
	case "study_group":
		return u.GroupNotifications
	case "reminder":
		return u.StudyReminders
	}
	return true
}

// NewUser contains information needed to sign up a new User.
type NewUser struct {
	Username        string   `json:"username" validate:"required,min=3,alphanum_"`
	Email           string   `json:"email" validate:"required,email"`
	Password        string   `json:"password" validate:"required"`
	PasswordConfirm string   `json:"password_confirm" validate:"required,eqfield=Password"`
	CanvasICalURL   string   `json:"canvas_ical_url" validate:"omitempty,canvasurl"`
	Roles           []string `json:"-" validate:"omitempty,allroles"`
}

func (nu *NewUser) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	nu.Username = core.CleanString(nu.Username, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.CanvasICalURL = core.CleanString(nu.CanvasICalURL)

	if err := validate.Struct(nu); err != nil {
		return err
	}
	return svc.CheckUniqueness(ctx, nu.Username, nu.Email)
}

// UpdateProfile defines what a User may change on their own account.
// nil fields are left untouched; an empty CanvasICalURL clears the saved feed.
type UpdateProfile struct {
	CanvasICalURL      *string `json:"canvas_ical_url" validate:"omitempty,canvasurl"`
	EmailNotifications *bool   `json:"email_notifications"`
	StudyReminders     *bool   `json:"study_reminders"`
	GroupNotifications *bool   `json:"group_notifications"`
	Theme              *string `json:"theme" validate:"omitempty,oneof=light dark"`
}

func (up *UpdateProfile) Validate(validate *validator.Validate) error {
	if up.CanvasICalURL != nil {
		url := core.CleanString(*up.CanvasICalURL)
		up.CanvasICalURL = &url
	}
	if up.Theme != nil {
		theme := core.CleanString(*up.Theme, true /* lower */)
		up.Theme = &theme
	}
	return validate.Struct(up)
}

// CanvasURLChanged reports whether applying `up` to `usr` sets a new, non-empty Canvas feed URL.
func (up *UpdateProfile) CanvasURLChanged(usr User) bool {
	return up.CanvasICalURL != nil && *up.CanvasICalURL != "" && *up.CanvasICalURL != usr.CanvasICalURL
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

type GetFilter struct {
	ID              int
	Username        string
	Email           string
	UsernameOrEmail []string // [username, email]
}

type QueryFilter struct {
	Search      string    `query:"search"`
	Roles       []string  `query:"role" validate:"omitempty,allroles"`
	IsActive    *bool     `query:"is_active"`
	CreatedFrom time.Time `query:"created_from"`
	CreatedTo   time.Time `query:"created_to"`
	HasCanvas   bool      `query:"-"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.IsActive == nil && qf.CreatedFrom.IsZero() &&
		qf.CreatedTo.IsZero() && !qf.HasCanvas
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
}

// Match reports whether `usr` passes every set filter field.
func (qf *QueryFilter) Match(usr User) bool {
	if qf.Search != "" {
		s := strings.ToLower(qf.Search)
		if !(strings.Contains(usr.Username, s) || strings.Contains(strings.ToLower(usr.Email), s)) {
			return false
		}
	}
	if len(qf.Roles) > 0 {
		var ok bool
		for _, role := range qf.Roles {
			if usr.RoleStartsWith(role) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if qf.IsActive != nil && usr.IsActive != *qf.IsActive {
		return false
	}
	if !qf.CreatedFrom.IsZero() && usr.CreatedAt.Before(qf.CreatedFrom) {
		return false
	}
	if !qf.CreatedTo.IsZero() && usr.CreatedAt.After(qf.CreatedTo) {
		return false
	}
	if qf.HasCanvas && !usr.HasCanvasURL() {
		return false
	}
	return true
}
