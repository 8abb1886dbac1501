package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campusmate/core/reward"
	"github.com/trezcool/campusmate/core/user"
)

type rewardRepository struct {
	db *DB
}

var _ reward.Repository = (*rewardRepository)(nil) // interface compliance check

func NewRewardRepository(db *DB) *rewardRepository {
	return &rewardRepository{db: db}
}

func (repo *rewardRepository) CreateEntry(ctx context.Context, entry reward.Entry) (reward.Entry, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.users[entry.UserID]; !ok {
		return reward.Entry{}, user.ErrNotFound
	}
	entry.ID = repo.db.nextPK("reward_entries")
	repo.db.rewards[entry.ID] = &entry
	return entry, nil
}

func (repo *rewardRepository) TotalPoints(ctx context.Context, userID int) (int, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	var total int
	for _, e := range repo.db.rewards {
		if e.UserID == userID {
			total += e.Points
		}
	}
	return total, nil
}

func (repo *rewardRepository) Leaderboard(ctx context.Context, limit int) ([]reward.Standing, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	totals := make(map[int]int)
	for _, e := range repo.db.rewards {
		totals[e.UserID] += e.Points
	}
	standings := make([]reward.Standing, 0, len(totals))
	for id, pts := range totals {
		if usr, ok := repo.db.users[id]; ok {
			standings = append(standings, reward.Standing{UserID: id, Username: usr.Username, Points: pts})
		}
	}
	sort.Slice(standings, func(i, j int) bool {
		if standings[i].Points == standings[j].Points {
			return standings[i].Username < standings[j].Username
		}
		return standings[i].Points > standings[j].Points
	})
	if len(standings) > limit {
		standings = standings[:limit]
	}
	return standings, nil
}
