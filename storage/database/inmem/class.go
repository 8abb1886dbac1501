package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campusmate/core/class"
	"github.com/trezcool/campusmate/core/user"
)

type classRepository struct {
	db *DB
}

var _ class.Repository = (*classRepository)(nil) // interface compliance check

func NewClassRepository(db *DB) *classRepository {
	return &classRepository{db: db}
}

func (repo *classRepository) CreateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	cls.ID = repo.db.nextPK("classes")
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) GetClass(ctx context.Context, id int) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if cls, ok := repo.db.classes[id]; ok {
		return *cls, nil
	}
	return class.Class{}, class.ErrNotFound
}

func (repo *classRepository) GetClassByName(ctx context.Context, name string) (class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var found *class.Class
	for _, cls := range repo.db.classes {
		if cls.Name == name && (found == nil || cls.ID < found.ID) {
			found = cls
		}
	}
	if found == nil {
		return class.Class{}, class.ErrNotFound
	}
	return *found, nil
}

func (repo *classRepository) QueryUserClasses(ctx context.Context, userID int, archived *bool) ([]class.Class, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classes := make([]class.Class, 0)
	for k := range repo.db.enrollments {
		if k[0] != userID {
			continue
		}
		cls, ok := repo.db.classes[k[1]]
		if !ok || (archived != nil && cls.Archived != *archived) {
			continue
		}
		classes = append(classes, *cls)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].Name == classes[j].Name {
			return classes[i].ID < classes[j].ID
		}
		return classes[i].Name < classes[j].Name
	})
	return classes, nil
}

func (repo *classRepository) UpdateClass(ctx context.Context, cls class.Class) (class.Class, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[cls.ID]; !ok {
		return class.Class{}, class.ErrNotFound
	}
	repo.db.classes[cls.ID] = &cls
	return cls, nil
}

func (repo *classRepository) Enroll(ctx context.Context, userID, classID int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.classes[classID]; !ok {
		return class.ErrNotFound
	}
	if _, ok := repo.db.users[userID]; !ok {
		return user.ErrNotFound
	}
	repo.db.enrollments[pair{userID, classID}] = true
	return nil
}

func (repo *classRepository) IsEnrolled(ctx context.Context, userID, classID int) (bool, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	return repo.db.enrollments[pair{userID, classID}], nil
}

func (repo *classRepository) QueryMembers(ctx context.Context, classID int) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := make([]user.User, 0)
	for k := range repo.db.enrollments {
		if k[1] != classID {
			continue
		}
		if usr, ok := repo.db.users[k[0]]; ok {
			users = append(users, *usr)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i].Username < users[j].Username })
	return users, nil
}
