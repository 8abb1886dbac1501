package sqlxrepos

import (
	"context"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/reward"
)

type rewardRepository struct {
	db *sqlx.DB
}

var _ reward.Repository = (*rewardRepository)(nil) // interface compliance check

func NewRewardRepository(db *sqlx.DB) *rewardRepository {
	return &rewardRepository{db: db}
}

func (repo *rewardRepository) CreateEntry(ctx context.Context, entry reward.Entry) (reward.Entry, error) {
	q := `INSERT INTO reward_entries (user_id, points, reason, created_at) VALUES ($1, $2, $3, $4) RETURNING id`
	if err := repo.db.GetContext(ctx, &entry.ID, q, entry.UserID, entry.Points, entry.Reason, entry.CreatedAt.UTC()); err != nil {
		return reward.Entry{}, errors.Wrap(err, "inserting reward entry")
	}
	return entry, nil
}

func (repo *rewardRepository) TotalPoints(ctx context.Context, userID int) (int, error) {
	var total int
	if err := repo.db.GetContext(ctx, &total, `SELECT COALESCE(SUM(points), 0) FROM reward_entries WHERE user_id = $1`, userID); err != nil {
		return 0, errors.Wrap(err, "summing points")
	}
	return total, nil
}

func (repo *rewardRepository) Leaderboard(ctx context.Context, limit int) ([]reward.Standing, error) {
	standings := make([]reward.Standing, 0, limit)
	q := `SELECT u.id AS user_id, u.username, SUM(r.points) AS points
	FROM reward_entries r JOIN users u ON u.id = r.user_id
	GROUP BY u.id, u.username
	ORDER BY points DESC, u.username
	LIMIT $1`
	rows, err := repo.db.QueryxContext(ctx, q, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying leaderboard")
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var s reward.Standing
		if err = rows.Scan(&s.UserID, &s.Username, &s.Points); err != nil {
			return nil, errors.Wrap(err, "scanning leaderboard")
		}
		standings = append(standings, s)
	}
	if err = rows.Err(); err != nil {
		return nil, errors.Wrap(err, "querying leaderboard")
	}
	return standings, nil
}
