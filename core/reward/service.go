package reward

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrUnknownReason = errors.New("unknown reward reason")

	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry) (Entry, error)
		TotalPoints(ctx context.Context, userID int) (int, error)
		// Leaderboard returns the `limit` users with the most points, most points first.
		Leaderboard(ctx context.Context, limit int) ([]Standing, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Award(ctx context.Context, userID int, reason string) (Entry, error) {
	pts := PointsFor(reason)
	if pts == 0 {
		return Entry{}, ErrUnknownReason
	}
	entry, err := svc.repo.CreateEntry(ctx, Entry{
		UserID:    userID,
		Points:    pts,
		Reason:    reason,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		return Entry{}, errors.Wrap(err, "creating reward entry")
	}
	return entry, nil
}

func (svc *Service) Summary(ctx context.Context, userID int) (Summary, error) {
	total, err := svc.repo.TotalPoints(ctx, userID)
	if err != nil {
		return Summary{}, errors.Wrap(err, "counting points")
	}
	return summarize(total), nil
}

func (svc *Service) Leaderboard(ctx context.Context, limit int) ([]Standing, error) {
	if limit <= 0 {
		limit = defaultLeaderboardSize
	} else if limit > maxLeaderboardSize {
		limit = maxLeaderboardSize
	}
	return svc.repo.Leaderboard(ctx, limit)
}
