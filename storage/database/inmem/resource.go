package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campusmate/core/resource"
)

type resourceRepository struct {
	db *DB
}

var _ resource.Repository = (*resourceRepository)(nil) // interface compliance check

func NewResourceRepository(db *DB) *resourceRepository {
	return &resourceRepository{db: db}
}

func (repo *resourceRepository) CreateResource(ctx context.Context, res resource.Resource) (resource.Resource, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res.ID = repo.db.nextPK("resources")
	repo.db.resources[res.ID] = &res
	return res, nil
}

func (repo *resourceRepository) GetResource(ctx context.Context, id int) (resource.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if res, ok := repo.db.resources[id]; ok {
		return *res, nil
	}
	return resource.Resource{}, resource.ErrNotFound
}

func (repo *resourceRepository) QueryResources(ctx context.Context, filter resource.QueryFilter) ([]resource.Resource, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	classIDs := make(map[int]bool, len(filter.ClassIDs))
	for _, id := range filter.ClassIDs {
		classIDs[id] = true
	}
	list := make([]resource.Resource, 0)
	for _, res := range repo.db.resources {
		if !classIDs[res.ClassID] {
			continue
		}
		if filter.ClassID != 0 && res.ClassID != filter.ClassID {
			continue
		}
		if filter.Type != "" && res.Type != filter.Type {
			continue
		}
		list = append(list, *res)
	}

	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		switch filter.Sort {
		case resource.SortTitle:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case resource.SortOldest:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt)
			}
			return a.ID < b.ID
		default:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
		}
		return a.ID > b.ID
	})
	return list, nil
}

func (repo *resourceRepository) IncrementDownloads(ctx context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	res, ok := repo.db.resources[id]
	if !ok {
		return resource.ErrNotFound
	}
	res.Downloads++
	return nil
}

func (repo *resourceRepository) AddLike(ctx context.Context, id, userID int) (bool, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	res, ok := repo.db.resources[id]
	if !ok {
		return false, resource.ErrNotFound
	}
	k := pair{userID, id}
	if repo.db.resourceLikes[k] {
		return false, nil
	}
	repo.db.resourceLikes[k] = true
	res.Likes++
	return true, nil
}

func (repo *resourceRepository) DeleteResource(ctx context.Context, id int) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.resources[id]; !ok {
		return resource.ErrNotFound
	}
	delete(repo.db.resources, id)
	for k := range repo.db.resourceLikes {
		if k[1] == id {
			delete(repo.db.resourceLikes, k)
		}
	}
	return nil
}
