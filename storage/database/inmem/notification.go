package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/campusmate/core/notification"
)

type notificationRepository struct {
	db *DB
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	n.ID = repo.db.nextPK("notifications")
	repo.db.notifications[n.ID] = &n
	return n, nil
}

func (repo *notificationRepository) QueryUnread(ctx context.Context, userID int) ([]notification.Notification, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	res := make([]notification.Notification, 0)
	for _, n := range repo.db.notifications {
		if n.UserID == userID && !n.Read {
			res = append(res, *n)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		if res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].ID > res[j].ID
		}
		return res[i].CreatedAt.After(res[j].CreatedAt)
	})
	return res, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID int, ids ...int) (int, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	var cnt int
	for _, id := range ids {
		if n, ok := repo.db.notifications[id]; ok && n.UserID == userID && !n.Read {
			n.Read = true
			cnt++
		}
	}
	return cnt, nil
}
