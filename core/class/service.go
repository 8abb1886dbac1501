package class

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/user"
)

var (
	// errors
	ErrNotFound    = core.NewNotFoundError("class not found")
	ErrNotEnrolled = core.NewPermissionError("you are not enrolled in this class")
)

type (
	Repository interface {
		CreateClass(ctx context.Context, cls Class) (Class, error)
		GetClass(ctx context.Context, id int) (Class, error)
		GetClassByName(ctx context.Context, name string) (Class, error)
		// QueryUserClasses returns the classes `userID` is enrolled in, ordered by name.
		// `archived` restricts the result to archived or active classes when set.
		QueryUserClasses(ctx context.Context, userID int, archived *bool) ([]Class, error)
		UpdateClass(ctx context.Context, cls Class) (Class, error)
		// Enroll adds `userID` to `classID`; enrolling twice is a no-op.
		Enroll(ctx context.Context, userID, classID int) error
		IsEnrolled(ctx context.Context, userID, classID int) (bool, error)
		// QueryMembers returns the users enrolled in `classID`, ordered by username.
		QueryMembers(ctx context.Context, classID int) ([]user.User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, usr user.User, nc NewClass) (Class, error) {
	color := nc.Color
	if color == "" {
		color = DefaultColor
	}
	cls, err := svc.repo.CreateClass(ctx, Class{
		Name:      nc.Name,
		Color:     color,
		CreatedBy: null.IntFrom(usr.ID),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Class{}, errors.Wrap(err, "creating class")
	}
	if err = svc.repo.Enroll(ctx, usr.ID, cls.ID); err != nil {
		return Class{}, errors.Wrap(err, "enrolling creator")
	}
	return cls, nil
}

func (svc *Service) ListForUser(ctx context.Context, usr user.User) (UserClasses, error) {
	classes, err := svc.repo.QueryUserClasses(ctx, usr.ID, nil)
	if err != nil {
		return UserClasses{}, errors.Wrap(err, "querying user classes")
	}
	uc := UserClasses{Active: make([]Class, 0), Archived: make([]Class, 0)}
	for _, cls := range classes {
		if cls.Archived {
			uc.Archived = append(uc.Archived, cls)
		} else {
			uc.Active = append(uc.Active, cls)
		}
	}
	return uc, nil
}

// ActiveForUser returns the non archived classes of `usr`.
func (svc *Service) ActiveForUser(ctx context.Context, usr user.User) ([]Class, error) {
	archived := false
	return svc.repo.QueryUserClasses(ctx, usr.ID, &archived)
}

// Get returns the class `id` if `usr` is enrolled in it.
func (svc *Service) Get(ctx context.Context, usr user.User, id int) (Class, error) {
	cls, err := svc.repo.GetClass(ctx, id)
	if err != nil {
		return Class{}, err
	}
	if err = svc.CheckEnrolled(ctx, usr.ID, id); err != nil {
		return Class{}, err
	}
	return cls, nil
}

// CheckEnrolled returns ErrNotEnrolled unless `userID` is enrolled in `classID`.
func (svc *Service) CheckEnrolled(ctx context.Context, userID, classID int) error {
	ok, err := svc.repo.IsEnrolled(ctx, userID, classID)
	if err != nil {
		return errors.Wrap(err, "checking enrollment")
	}
	if !ok {
		return ErrNotEnrolled
	}
	return nil
}

func (svc *Service) Archive(ctx context.Context, usr user.User, id int) (Class, error) {
	cls, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Class{}, err
	}
	cls.Archived = true
	cls.ArchivedAt = null.TimeFrom(time.Now().UTC())
	return svc.repo.UpdateClass(ctx, cls)
}

func (svc *Service) Restore(ctx context.Context, usr user.User, id int) (Class, error) {
	cls, err := svc.Get(ctx, usr, id)
	if err != nil {
		return Class{}, err
	}
	cls.Archived = false
	cls.ArchivedAt = null.Time{}
	return svc.repo.UpdateClass(ctx, cls)
}

// Classmates returns, for each active class of `usr`, the other enrolled students.
func (svc *Service) Classmates(ctx context.Context, usr user.User) ([]Classmates, error) {
	classes, err := svc.ActiveForUser(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "querying user classes")
	}
	res := make([]Classmates, 0, len(classes))
	for _, cls := range classes {
		members, err := svc.repo.QueryMembers(ctx, cls.ID)
		if err != nil {
			return nil, errors.Wrap(err, "querying class members")
		}
		cm := Classmates{Class: cls, Students: make([]Peer, 0, len(members))}
		for _, m := range members {
			if m.ID != usr.ID {
				cm.Students = append(cm.Students, Peer{ID: m.ID, Username: m.Username, Email: m.Email})
			}
		}
		res = append(res, cm)
	}
	return res, nil
}

// StudyBuddies flattens Classmates into one entry per (classmate, class).
func (svc *Service) StudyBuddies(ctx context.Context, usr user.User) ([]Buddy, error) {
	cms, err := svc.Classmates(ctx, usr)
	if err != nil {
		return nil, err
	}
	buddies := make([]Buddy, 0)
	for _, cm := range cms {
		for _, s := range cm.Students {
			buddies = append(buddies, Buddy{ID: s.ID, Username: s.Username, ClassName: cm.Class.Name})
		}
	}
	return buddies, nil
}

// Members returns the users enrolled in `classID`.
func (svc *Service) Members(ctx context.Context, classID int) ([]user.User, error) {
	return svc.repo.QueryMembers(ctx, classID)
}

// FindOrCreateByName returns the class called `name`, creating it with a random color when missing.
// The boolean reports whether the class was created.
func (svc *Service) FindOrCreateByName(ctx context.Context, usr user.User, name string) (Class, bool, error) {
	cls, err := svc.repo.GetClassByName(ctx, name)
	if err == nil {
		return cls, false, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return Class{}, false, errors.Wrap(err, "finding class by name")
	}
	cls, err = svc.repo.CreateClass(ctx, Class{
		Name:      name,
		Color:     RandomColor(),
		CreatedBy: null.IntFrom(usr.ID),
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Class{}, false, errors.Wrap(err, "creating class")
	}
	return cls, true, nil
}

func (svc *Service) Enroll(ctx context.Context, usr user.User, cls Class) error {
	return svc.repo.Enroll(ctx, usr.ID, cls.ID)
}

func (svc *Service) IsEnrolled(ctx context.Context, usr user.User, classID int) (bool, error) {
	return svc.repo.IsEnrolled(ctx, usr.ID, classID)
}

// ByID returns user classes indexed by ID.
func (svc *Service) ByID(ctx context.Context, usr user.User) (map[int]Class, error) {
	classes, err := svc.repo.QueryUserClasses(ctx, usr.ID, nil)
	if err != nil {
		return nil, errors.Wrap(err, "querying user classes")
	}
	m := make(map[int]Class, len(classes))
	for _, cls := range classes {
		m[cls.ID] = cls
	}
	return m, nil
}
