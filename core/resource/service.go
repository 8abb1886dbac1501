package resource

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/campusmate/core"
	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/notification"
	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/user"
)

var (
	nowFunc = time.Now // mockable

	storedNameLayout = "20060102_150405"

	// errors
	ErrNotFound       = core.NewNotFoundError("resource not found")
	ErrNoFile         = core.NewNotFoundError("No file available for download")
	ErrNotOwner       = core.NewPermissionError("only the owner can delete this resource")
	ErrFileNotAllowed = core.NewValidationError(errors.New("File type not allowed"))
	ErrNoFileSelected = core.NewValidationError(errors.New("No file selected"))
	ErrFileTooLarge   = core.NewValidationError(errors.New("File too large"))
	ErrAlreadyLiked   = core.NewValidationError(errors.New("You already liked this resource"))
)

type (
	Repository interface {
		CreateResource(ctx context.Context, res Resource) (Resource, error)
		GetResource(ctx context.Context, id int) (Resource, error)
		// QueryResources returns the resources of filter.ClassIDs matching the other set filter
		// fields, sorted according to filter.Sort (newest first by default).
		QueryResources(ctx context.Context, filter QueryFilter) ([]Resource, error)
		IncrementDownloads(ctx context.Context, id int) error
		// AddLike records that `userID` likes resource `id` and increments its like count.
		// Returns false if the user already liked it.
		AddLike(ctx context.Context, id, userID int) (bool, error)
		DeleteResource(ctx context.Context, id int) error
	}

	Service struct {
		repo      Repository
		store     FileStore
		classSvc  *class.Service
		notifSvc  *notification.Service
		rewardSvc *reward.Service
	}
)

func NewService(
	repo Repository,
	store FileStore,
	classSvc *class.Service,
	notifSvc *notification.Service,
	rewardSvc *reward.Service,
) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		classSvc:  classSvc,
		notifSvc:  notifSvc,
		rewardSvc: rewardSvc,
	}
}

// Upload stores `file` and shares it with the classmates of `usr` in nu.ClassID.
func (svc *Service) Upload(ctx context.Context, usr user.User, nu NewUpload, file io.Reader) (Resource, error) {
	cls, err := svc.classSvc.Get(ctx, usr, nu.ClassID)
	if err != nil {
		return Resource{}, err
	}
	if nu.Filename == "" {
		return Resource{}, ErrNoFileSelected
	}
	if !IsAllowedFile(nu.Filename) {
		return Resource{}, ErrFileNotAllowed
	}
	secureName := SecureFilename(nu.Filename)
	if secureName == "" || !IsAllowedFile(secureName) {
		return Resource{}, ErrFileNotAllowed
	}

	now := nowFunc()
	storedName := now.Format(storedNameLayout) + "_" + secureName
	path, err := svc.store.Save(storedName, file)
	if err != nil {
		if errors.Cause(err) == ErrFileTooLarge {
			return Resource{}, ErrFileTooLarge
		}
		return Resource{}, errors.Wrap(err, "saving uploaded file")
	}

	res, err := svc.repo.CreateResource(ctx, Resource{
		Title:       nu.Title,
		Description: nu.Description,
		Filename:    secureName,
		StoragePath: path,
		Type:        Extension(secureName),
		ClassID:     cls.ID,
		UserID:      null.IntFrom(usr.ID),
		CreatedAt:   now.UTC(),
	})
	if err != nil {
		_ = svc.store.Remove(path)
		return Resource{}, errors.Wrap(err, "creating resource")
	}
	if err = svc.shared(ctx, usr, cls, res); err != nil {
		return Resource{}, err
	}
	return res, nil
}

// ShareLink shares an external resource with the classmates of `usr` in nl.ClassID.
func (svc *Service) ShareLink(ctx context.Context, usr user.User, nl NewLink) (Resource, error) {
	cls, err := svc.classSvc.Get(ctx, usr, nl.ClassID)
	if err != nil {
		return Resource{}, err
	}
	typ := nl.Type
	if typ == "" {
		typ = TypeLink
	}
	res, err := svc.repo.CreateResource(ctx, Resource{
		Title:       nl.Title,
		Description: nl.Notes,
		URL:         nl.URL,
		Type:        typ,
		ClassID:     cls.ID,
		UserID:      null.IntFrom(usr.ID),
		CreatedAt:   nowFunc().UTC(),
	})
	if err != nil {
		return Resource{}, errors.Wrap(err, "creating resource")
	}
	if err = svc.shared(ctx, usr, cls, res); err != nil {
		return Resource{}, err
	}
	return res, nil
}

// shared notifies the classmates of `usr` and rewards them for sharing `res`.
func (svc *Service) shared(ctx context.Context, usr user.User, cls class.Class, res Resource) error {
	members, err := svc.classSvc.Members(ctx, cls.ID)
	if err != nil {
		return errors.Wrap(err, "querying class members")
	}
	ids := make([]int, 0, len(members))
	for _, m := range members {
		if m.ID != usr.ID {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) > 0 {
		msg := fmt.Sprintf("%s shared \"%s\" in %s", usr.Username, res.Title, cls.Name)
		if _, err = svc.notifSvc.NotifyMany(ctx, ids, msg, notification.TypeResource); err != nil {
			return errors.Wrap(err, "notifying classmates")
		}
	}
	if _, err = svc.rewardSvc.Award(ctx, usr.ID, reward.ReasonResourceShared); err != nil {
		return errors.Wrap(err, "awarding points")
	}
	return nil
}

// List returns the resources of the active classes of `usr`.
func (svc *Service) List(ctx context.Context, usr user.User, filter QueryFilter) ([]Resource, error) {
	classes, err := svc.classSvc.ActiveForUser(ctx, usr)
	if err != nil {
		return nil, errors.Wrap(err, "querying user classes")
	}
	filter.ClassIDs = make([]int, 0, len(classes))
	for _, cls := range classes {
		if filter.ClassID == 0 || filter.ClassID == cls.ID {
			filter.ClassIDs = append(filter.ClassIDs, cls.ID)
		}
	}
	if len(filter.ClassIDs) == 0 {
		return make([]Resource, 0), nil
	}
	return svc.repo.QueryResources(ctx, filter)
}

func (svc *Service) ForClass(ctx context.Context, usr user.User, classID int) ([]Resource, error) {
	if _, err := svc.classSvc.Get(ctx, usr, classID); err != nil {
		return nil, err
	}
	return svc.repo.QueryResources(ctx, QueryFilter{ClassIDs: []int{classID}})
}

// get returns the resource `id` if `usr` is enrolled in its class.
func (svc *Service) get(ctx context.Context, usr user.User, id int) (Resource, error) {
	res, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return Resource{}, err
	}
	if err = svc.classSvc.CheckEnrolled(ctx, usr.ID, res.ClassID); err != nil {
		return Resource{}, err
	}
	return res, nil
}

// Download opens the stored file of resource `id` and counts the download.
// The caller must close the returned file.
func (svc *Service) Download(ctx context.Context, usr user.User, id int) (Resource, *os.File, error) {
	res, err := svc.get(ctx, usr, id)
	if err != nil {
		return Resource{}, nil, err
	}
	if res.StoragePath == "" {
		return Resource{}, nil, ErrNoFile
	}
	f, err := svc.store.Open(res.StoragePath)
	if err != nil {
		if errors.Cause(err) == ErrFileNotFound {
			return Resource{}, nil, ErrNoFile
		}
		return Resource{}, nil, errors.Wrap(err, "opening stored file")
	}
	if err = svc.repo.IncrementDownloads(ctx, res.ID); err != nil {
		_ = f.Close()
		return Resource{}, nil, errors.Wrap(err, "counting download")
	}
	res.Downloads++
	return res, f, nil
}

// Like records that `usr` likes resource `id`; the owner earns points.
func (svc *Service) Like(ctx context.Context, usr user.User, id int) (Resource, error) {
	res, err := svc.get(ctx, usr, id)
	if err != nil {
		return Resource{}, err
	}
	added, err := svc.repo.AddLike(ctx, res.ID, usr.ID)
	if err != nil {
		return Resource{}, errors.Wrap(err, "adding like")
	}
	if !added {
		return Resource{}, ErrAlreadyLiked
	}
	res.Likes++

	if res.UserID.Valid && res.UserID.Int != usr.ID {
		if _, err = svc.rewardSvc.Award(ctx, res.UserID.Int, reward.ReasonResourceLiked); err != nil {
			return Resource{}, errors.Wrap(err, "awarding points")
		}
	}
	return res, nil
}

func (svc *Service) Delete(ctx context.Context, usr user.User, id int) error {
	res, err := svc.repo.GetResource(ctx, id)
	if err != nil {
		return err
	}
	if !res.UserID.Valid || res.UserID.Int != usr.ID {
		return ErrNotOwner
	}
	if err = svc.repo.DeleteResource(ctx, res.ID); err != nil {
		return errors.Wrap(err, "deleting resource")
	}
	if res.StoragePath != "" {
		if err = svc.store.Remove(res.StoragePath); err != nil {
			return errors.Wrap(err, "removing stored file")
		}
	}
	return nil
}
