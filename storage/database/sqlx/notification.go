package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/notification"
)

type (
	notificationRow struct {
		ID        int       `db:"id"`
		UserID    int       `db:"user_id"`
		Message   string    `db:"message"`
		Type      string    `db:"type"`
		Read      bool      `db:"read"`
		CreatedAt time.Time `db:"created_at"`
	}

	notificationRepository struct {
		db *sqlx.DB
	}
)

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(db *sqlx.DB) *notificationRepository {
	return &notificationRepository{db: db}
}

func (repo *notificationRepository) CreateNotification(ctx context.Context, n notification.Notification) (notification.Notification, error) {
	row := notificationRow{
		UserID:    n.UserID,
		Message:   n.Message,
		Type:      n.Type,
		Read:      n.Read,
		CreatedAt: n.CreatedAt.UTC(),
	}
	q := `INSERT INTO notifications (user_id, message, type, read, created_at)
	VALUES (:user_id, :message, :type, :read, :created_at)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &n.ID, q, row); err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo *notificationRepository) QueryUnread(ctx context.Context, userID int) ([]notification.Notification, error) {
	var rows []notificationRow
	q := `SELECT id, user_id, message, type, read, created_at FROM notifications
	WHERE user_id = $1 AND NOT read
	ORDER BY created_at DESC, id DESC`
	if err := repo.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, errors.Wrap(err, "querying notifications")
	}
	res := make([]notification.Notification, 0, len(rows))
	for _, r := range rows {
		res = append(res, notification.Notification{
			ID:        r.ID,
			UserID:    r.UserID,
			Message:   r.Message,
			Type:      r.Type,
			Read:      r.Read,
			CreatedAt: r.CreatedAt.UTC(),
		})
	}
	return res, nil
}

func (repo *notificationRepository) MarkRead(ctx context.Context, userID int, ids ...int) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	q, args, err := inQuery(repo.db, `UPDATE notifications SET read = TRUE WHERE user_id = ? AND NOT read AND id IN (?)`, userID, ids)
	if err != nil {
		return 0, errors.Wrap(err, "building update query")
	}
	res, err := repo.db.ExecContext(ctx, q, args...)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	return rowsAffected(res)
}
