package sqlxrepos

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/campusmate/core/message"
)

const messageColumns = `id, sender_id, recipient_id, content, timestamp, message_type, status`

type (
	messageRow struct {
		ID          int       `db:"id"`
		SenderID    int       `db:"sender_id"`
		RecipientID int       `db:"recipient_id"`
		Content     string    `db:"content"`
		Timestamp   time.Time `db:"timestamp"`
		Type        string    `db:"message_type"`
		Status      string    `db:"status"`
	}

	messageRepository struct {
		db *sqlx.DB
	}
)

var _ message.Repository = (*messageRepository)(nil) // interface compliance check

func NewMessageRepository(db *sqlx.DB) *messageRepository {
	return &messageRepository{db: db}
}

func toMessageRow(msg message.Message) messageRow {
	return messageRow{
		ID:          msg.ID,
		SenderID:    msg.SenderID,
		RecipientID: msg.RecipientID,
		Content:     msg.Content,
		Timestamp:   msg.Timestamp.UTC(),
		Type:        msg.Type,
		Status:      msg.Status,
	}
}

func (r messageRow) toMessage() message.Message {
	return message.Message{
		ID:          r.ID,
		SenderID:    r.SenderID,
		RecipientID: r.RecipientID,
		Content:     r.Content,
		Timestamp:   r.Timestamp.UTC(),
		Type:        r.Type,
		Status:      r.Status,
	}
}

func (repo *messageRepository) CreateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	q := `INSERT INTO messages (sender_id, recipient_id, content, timestamp, message_type, status)
	VALUES (:sender_id, :recipient_id, :content, :timestamp, :message_type, :status)
	RETURNING id`
	if err := namedGet(ctx, repo.db, &msg.ID, q, toMessageRow(msg)); err != nil {
		return message.Message{}, errors.Wrap(err, "inserting message")
	}
	return msg, nil
}

func (repo *messageRepository) GetMessage(ctx context.Context, id int) (message.Message, error) {
	var row messageRow
	if err := repo.db.GetContext(ctx, &row, `SELECT `+messageColumns+` FROM messages WHERE id = $1`, id); err != nil {
		return message.Message{}, trapNoRowsErr(err, message.ErrNotFound, "finding message")
	}
	return row.toMessage(), nil
}

func (repo *messageRepository) UpdateMessage(ctx context.Context, msg message.Message) (message.Message, error) {
	res, err := namedExec(ctx, repo.db, `UPDATE messages SET content = :content, status = :status WHERE id = :id`, toMessageRow(msg))
	if err != nil {
		return message.Message{}, errors.Wrap(err, "updating message")
	}
	n, err := rowsAffected(res)
	if err != nil {
		return message.Message{}, errors.Wrap(err, "updating message")
	}
	if n == 0 {
		return message.Message{}, message.ErrNotFound
	}
	return msg, nil
}

const conversationWhere = ` WHERE message_type = 'message'
	AND ((sender_id = $1 AND recipient_id = $2) OR (sender_id = $2 AND recipient_id = $1))`

func (repo *messageRepository) QueryConversation(ctx context.Context, userID, peerID int) ([]message.Message, error) {
	var rows []messageRow
	q := `SELECT ` + messageColumns + ` FROM messages` + conversationWhere + ` ORDER BY timestamp, id`
	if err := repo.db.SelectContext(ctx, &rows, q, userID, peerID); err != nil {
		return nil, errors.Wrap(err, "querying conversation")
	}
	msgs := make([]message.Message, 0, len(rows))
	for _, r := range rows {
		msgs = append(msgs, r.toMessage())
	}
	return msgs, nil
}

func (repo *messageRepository) LastMessage(ctx context.Context, userID, peerID int) (message.Message, error) {
	var row messageRow
	q := `SELECT ` + messageColumns + ` FROM messages` + conversationWhere + ` ORDER BY timestamp DESC, id DESC LIMIT 1`
	if err := repo.db.GetContext(ctx, &row, q, userID, peerID); err != nil {
		return message.Message{}, trapNoRowsErr(err, message.ErrNotFound, "finding last message")
	}
	return row.toMessage(), nil
}

func (repo *messageRepository) CountUnread(ctx context.Context, recipientID, senderID int) (int, error) {
	var wb whereBuilder
	wb.add(`recipient_id = ?`, recipientID)
	wb.add(`status = ?`, message.StatusUnread)
	if senderID != 0 {
		wb.add(`sender_id = ?`, senderID)
	}
	var cnt int
	if err := repo.db.GetContext(ctx, &cnt, repo.db.Rebind(`SELECT COUNT(*) FROM messages`+wb.String()), wb.args...); err != nil {
		return 0, errors.Wrap(err, "counting unread messages")
	}
	return cnt, nil
}

func (repo *messageRepository) MarkRead(ctx context.Context, recipientID, senderID int) (int, error) {
	q := `UPDATE messages SET status = $1 WHERE recipient_id = $2 AND sender_id = $3 AND status = $4`
	res, err := repo.db.ExecContext(ctx, q, message.StatusRead, recipientID, senderID, message.StatusUnread)
	if err != nil {
		return 0, errors.Wrap(err, "marking messages read")
	}
	return rowsAffected(res)
}

func (repo *messageRepository) AddFriendship(ctx context.Context, userID, friendID int) error {
	q := `INSERT INTO friends (user_id, friend_id) VALUES ($1, $2), ($2, $1) ON CONFLICT DO NOTHING`
	if _, err := repo.db.ExecContext(ctx, q, userID, friendID); err != nil {
		return errors.Wrap(err, "adding friendship")
	}
	return nil
}

func (repo *messageRepository) AreFriends(ctx context.Context, userID, friendID int) (bool, error) {
	var ok bool
	q := `SELECT EXISTS (SELECT 1 FROM friends WHERE user_id = $1 AND friend_id = $2)`
	if err := repo.db.GetContext(ctx, &ok, q, userID, friendID); err != nil {
		return false, errors.Wrap(err, "checking friendship")
	}
	return ok, nil
}

func (repo *messageRepository) QueryFriendIDs(ctx context.Context, userID int) ([]int, error) {
	ids := make([]int, 0)
	if err := repo.db.SelectContext(ctx, &ids, `SELECT friend_id FROM friends WHERE user_id = $1 ORDER BY friend_id`, userID); err != nil {
		return nil, errors.Wrap(err, "querying friends")
	}
	return ids, nil
}
